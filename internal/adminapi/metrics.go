package adminapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wafleet/internal/webserver"
	"github.com/talkincode/wafleet/pkg/metrics"
)

type metricPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

func registerMetricsRoutes() {
	webserver.ApiGET("/metrics/:name", getMetricHistory)
}

// getMetricHistory returns the recorded points of one gauge over the last
// N hours (default 1, capped at the 7-day retention window).
func getMetricHistory(c echo.Context) error {
	name := c.Param("name")
	hours, _ := strconv.Atoi(c.QueryParam("hours"))
	if hours < 1 {
		hours = 1
	}
	if hours > 168 {
		hours = 168
	}

	end := time.Now().Unix()
	start := end - int64(hours)*3600
	points, err := metrics.Select(name, start, end)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "METRICS_ERROR", "failed to read metric history", err.Error())
	}

	out := make([]metricPoint, 0, len(points))
	for _, p := range points {
		out = append(out, metricPoint{Timestamp: p.Timestamp, Value: p.Value})
	}
	return ok(c, out)
}

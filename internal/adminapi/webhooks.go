package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wafleet/internal/webhook"
	"github.com/talkincode/wafleet/internal/webserver"
	"go.uber.org/zap"
)

// registerWebhookRoutes registers the worker webhook ingress. Workers post
// here directly, so the route lives outside the /api/v1 prefix.
func registerWebhookRoutes() {
	webserver.RootPOST("/webhooks/device", ingestDeviceWebhook)
}

// ingestDeviceWebhook accepts connection lifecycle events pushed by worker
// servers. Malformed or unknown events are acknowledged with 200 so the
// worker does not retry; only an ingest pipeline failure returns 5xx.
func ingestDeviceWebhook(c echo.Context) error {
	var evt webhook.Event
	if err := c.Bind(&evt); err != nil {
		zap.L().Warn("unparseable device webhook", zap.Error(err))
		return c.JSON(http.StatusOK, webhook.Result{Success: true})
	}

	result, err := GetAppContext(c).WebhookService().Ingest(c.Request().Context(), evt)
	if err != nil {
		zap.L().Error("device webhook ingest failed",
			zap.String("event", evt.Event),
			zap.String("account_id", evt.AccountID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, webhook.Result{
			Success:   false,
			AccountID: evt.AccountID,
			Event:     evt.Event,
		})
	}

	return c.JSON(http.StatusOK, result)
}

package registry

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/talkincode/wafleet/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Health probe classifications.
const (
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
	HealthTimeout   = "timeout"
)

const defaultProbeTimeout = 5 * time.Second

// HealthResult is the outcome of one bounded health probe. Elapsed is
// recorded for every outcome.
type HealthResult struct {
	ServerID  int64         `json:"server_id,string"`
	Name      string        `json:"name"`
	Class     string        `json:"class"`
	Elapsed   time.Duration `json:"elapsed"`
	CheckedAt time.Time     `json:"checked_at"`
	Message   string        `json:"message,omitempty"`
}

// HealthSummary aggregates recorded probe round-trip times.
type HealthSummary struct {
	Servers  int     `json:"servers"`
	MeanMs   float64 `json:"mean_ms"`
	MedianMs float64 `json:"median_ms"`
	P95Ms    float64 `json:"p95_ms"`
}

// ProbeTimeout returns the per-call timeout configured on the server.
func ProbeTimeout(server *domain.WorkerServer) time.Duration {
	if server.Timeout > 0 {
		return time.Duration(server.Timeout) * time.Second
	}
	return defaultProbeTimeout
}

func classifyProbeError(err error) string {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return HealthTimeout
	}
	return HealthUnhealthy
}

// ProbeHealth issues one bounded request to the server's health endpoint and
// classifies the outcome. It never returns an error: a failed probe degrades
// the health snapshot only, the server status stays an operator decision.
func (s *Service) ProbeHealth(ctx context.Context, server *domain.WorkerServer) HealthResult {
	result := HealthResult{
		ServerID:  server.ID,
		Name:      server.Name,
		CheckedAt: time.Now(),
	}

	resp, elapsed, err := s.client.Health(ctx, server.BaseURL, ProbeTimeout(server))
	result.Elapsed = elapsed
	switch {
	case err != nil:
		result.Class = classifyProbeError(err)
		result.Message = err.Error()
		zap.L().Debug("worker health probe failed",
			zap.Int64("server_id", server.ID),
			zap.String("class", result.Class),
			zap.Error(err))
	default:
		result.Class = HealthHealthy
		result.Message = resp.Status
	}

	// Persist the health snapshot regardless of outcome.
	if err := s.db.WithContext(ctx).
		Model(&domain.WorkerServer{}).
		Where("id = ?", server.ID).
		Updates(map[string]interface{}{
			"last_response_ms": result.Elapsed.Milliseconds(),
			"last_check_at":    result.CheckedAt,
		}).Error; err != nil {
		zap.L().Error("failed to persist health snapshot",
			zap.Int64("server_id", server.ID), zap.Error(err))
	}

	return result
}

// ProbeAllHealth concurrently probes every active server and returns exactly
// one result per server. A slow or failing probe for one server neither
// omits nor blocks the others beyond the concurrency bound.
func (s *Service) ProbeAllHealth(ctx context.Context) ([]HealthResult, error) {
	servers, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]HealthResult, len(servers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.probeConcurrency)
	for i := range servers {
		i := i
		g.Go(func() error {
			results[i] = s.ProbeHealth(gctx, &servers[i])
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// RefreshStats fetches the worker's account statistics and updates the
// current instance count in the health snapshot. Best effort.
func (s *Service) RefreshStats(ctx context.Context, server *domain.WorkerServer) {
	resp, err := s.client.Stats(ctx, server.BaseURL, ProbeTimeout(server))
	if err != nil {
		zap.L().Debug("worker stats refresh failed",
			zap.Int64("server_id", server.ID), zap.Error(err))
		return
	}
	if err := s.db.WithContext(ctx).
		Model(&domain.WorkerServer{}).
		Where("id = ?", server.ID).
		Update("instance_count", resp.Accounts.Total).Error; err != nil {
		zap.L().Error("failed to persist instance count",
			zap.Int64("server_id", server.ID), zap.Error(err))
	}
}

// Summary aggregates the recorded response times of all active servers.
func (s *Service) Summary(ctx context.Context) (*HealthSummary, error) {
	servers, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	summary := &HealthSummary{Servers: len(servers)}
	if len(servers) == 0 {
		return summary, nil
	}

	samples := make([]float64, 0, len(servers))
	for _, server := range servers {
		if !server.LastCheckAt.IsZero() {
			samples = append(samples, float64(server.LastResponseMs))
		}
	}
	if len(samples) == 0 {
		return summary, nil
	}
	summary.MeanMs, _ = stats.Mean(samples)
	summary.MedianMs, _ = stats.Median(samples)
	summary.P95Ms, _ = stats.Percentile(samples, 95)
	return summary, nil
}

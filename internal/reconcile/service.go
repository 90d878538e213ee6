// Package reconcile resolves drift between the stored device state and the
// live state on the assigned worker server.
package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/talkincode/wafleet/internal/domain"
	"github.com/talkincode/wafleet/internal/hub"
	"github.com/talkincode/wafleet/internal/registry"
	"github.com/talkincode/wafleet/internal/session"
	"github.com/talkincode/wafleet/internal/workerd"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// WorkerClient is the slice of the worker contract reconciliation needs.
type WorkerClient interface {
	Status(ctx context.Context, baseURL string, timeout time.Duration, id string) (*workerd.StatusResponse, error)
	Connect(ctx context.Context, baseURL string, timeout time.Duration, id string, reconnect bool) (*workerd.ConnectResponse, error)
	QR(ctx context.Context, baseURL string, timeout time.Duration, id string) (*workerd.QRResponse, error)
}

// Timeouts bounds each network step of a refresh independently.
type Timeouts struct {
	Status    time.Duration
	Reconnect time.Duration
	QR        time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Status <= 0 {
		t.Status = 5 * time.Second
	}
	if t.Reconnect <= 0 {
		t.Reconnect = 15 * time.Second
	}
	if t.QR <= 0 {
		t.QR = 5 * time.Second
	}
	return t
}

// Snapshot is the refresh result. It is always returned: worker
// connectivity failures degrade it, they never surface as errors.
type Snapshot struct {
	ID              int64      `json:"id,string"`
	ServerName      string     `json:"server_name"`
	Name            string     `json:"name"`
	PhoneNumber     string     `json:"phone_number"`
	Status          string     `json:"status"`
	QRCode          string     `json:"qr_code"`
	LastSeenAt      *time.Time `json:"last_seen_at"`
	WorkerReachable bool       `json:"workerReachable"`
	Refreshed       bool       `json:"refreshed"`
}

// Service reconciles one device on demand. Different devices may be
// reconciled concurrently; the session store serializes same-device writes.
type Service struct {
	store    *session.Store
	registry *registry.Service
	client   WorkerClient
	bus      EventBus.Bus
	timeouts Timeouts

	// Per-device reconnect throttle so repeated refresh calls cannot storm
	// a worker with reconnect attempts. One limiter per device ever
	// refreshed, never evicted; the map is bounded by the device count.
	limMu    sync.Mutex
	limiters map[int64]*rate.Limiter
}

func NewService(store *session.Store, reg *registry.Service, client WorkerClient, bus EventBus.Bus, timeouts Timeouts) *Service {
	return &Service{
		store:    store,
		registry: reg,
		client:   client,
		bus:      bus,
		timeouts: timeouts.withDefaults(),
		limiters: make(map[int64]*rate.Limiter),
	}
}

func (s *Service) allowReconnect(deviceID int64) bool {
	s.limMu.Lock()
	defer s.limMu.Unlock()
	lim, ok := s.limiters[deviceID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(10*time.Second), 1)
		s.limiters[deviceID] = lim
	}
	return lim.Allow()
}

// Refresh reconciles the stored state of one device with its worker. The
// only hard failure is an unknown (deviceID, ownerID) pair; every network
// step is best effort and a failed step simply contributes no new
// information.
func (s *Service) Refresh(ctx context.Context, deviceID, ownerID int64) (*Snapshot, error) {
	device, err := s.store.Get(ctx, deviceID, ownerID)
	if err != nil {
		return nil, err
	}

	server := s.resolveServer(ctx, device)
	if server == nil {
		zap.L().Warn("refresh with no resolvable worker server",
			zap.Int64("device_id", deviceID))
		snap := s.snapshot(device, "", false)
		snap.Refreshed = false
		return snap, nil
	}

	status := device.Status
	qr := device.QRCode
	lastSeen := device.LastSeenAt
	workerReachable := false

	// Step 1: live status probe.
	live, err := s.client.Status(ctx, server.BaseURL, s.timeouts.Status, device.Name)
	if err != nil {
		zap.L().Debug("refresh status probe failed",
			zap.Int64("device_id", deviceID), zap.Error(err))
	} else {
		workerReachable = true
		if mapped, ok := MapWorkerStatus(live.Status); ok {
			status = mapped
		}
		if t := ParseLastActivity(live.LastActivity); t != nil {
			lastSeen = t
		}
	}

	// Step 2: reconnect when the probe failed or reported a dead session.
	if err != nil || status == domain.DeviceStatusDisconnected || status == domain.DeviceStatusError {
		if s.allowReconnect(deviceID) {
			resp, cerr := s.client.Connect(ctx, server.BaseURL, s.timeouts.Reconnect, device.Name, true)
			if cerr != nil {
				zap.L().Debug("refresh reconnect failed",
					zap.Int64("device_id", deviceID), zap.Error(cerr))
			} else {
				workerReachable = true
				status = domain.DeviceStatusConnecting
				if resp.QR != "" {
					status = domain.DeviceStatusAuthenticating
					qr = resp.QR
				}
			}
		}
	}

	// Step 3: fetch QR material when a scan is awaited but none is held.
	if (status == domain.DeviceStatusAuthenticating || status == domain.DeviceStatusConnecting) && qr == "" {
		resp, qerr := s.client.QR(ctx, server.BaseURL, s.timeouts.QR, device.Name)
		if qerr != nil {
			zap.L().Debug("refresh qr fetch failed",
				zap.Int64("device_id", deviceID), zap.Error(qerr))
		} else if resp.QR != "" {
			workerReachable = true
			status = domain.DeviceStatusAuthenticating
			qr = resp.QR
		}
	}

	mut := session.Mutation{Status: status, QRCode: &qr, LastSeenAt: lastSeen}
	if device.ServerID == nil || *device.ServerID != server.ID {
		mut.ServerID = &server.ID
	}
	updated, _, err := s.store.Apply(ctx, deviceID, ownerID, mut, s.notify)
	if err != nil {
		return nil, err
	}

	return s.snapshot(updated, server.Name, workerReachable), nil
}

// resolveServer returns the device's assigned server when it still resolves,
// falling back to the load balancer.
func (s *Service) resolveServer(ctx context.Context, device *domain.DeviceSession) *domain.WorkerServer {
	if device.ServerID != nil {
		server, err := s.registry.GetByID(ctx, *device.ServerID)
		if err == nil {
			return server
		}
		zap.L().Warn("assigned worker server no longer resolves",
			zap.Int64("device_id", device.ID), zap.Int64("server_id", *device.ServerID))
	}
	server, err := s.registry.SelectOptimal(ctx)
	if err != nil {
		zap.L().Error("load balancer selection failed", zap.Error(err))
		return nil
	}
	return server
}

func (s *Service) notify(updated *domain.DeviceSession, statusChanged bool) {
	if !statusChanged || s.bus == nil {
		return
	}
	s.bus.Publish(hub.TopicDeviceStatus, updated.OwnerID, updated)
}

func (s *Service) snapshot(device *domain.DeviceSession, serverName string, reachable bool) *Snapshot {
	return &Snapshot{
		ID:              device.ID,
		ServerName:      serverName,
		Name:            device.Name,
		PhoneNumber:     device.PhoneNumber,
		Status:          device.Status,
		QRCode:          device.QRCode,
		LastSeenAt:      device.LastSeenAt,
		WorkerReachable: reachable,
		Refreshed:       true,
	}
}

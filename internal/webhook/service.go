package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/talkincode/wafleet/internal/domain"
	"github.com/talkincode/wafleet/internal/hub"
	"github.com/talkincode/wafleet/internal/session"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Result is the ingestion acknowledgement returned to the emitting worker.
type Result struct {
	Success       bool   `json:"success"`
	AccountID     string `json:"accountId"`
	Event         string `json:"event"`
	StatusUpdated bool   `json:"statusUpdated"`
}

// Service applies webhook events to the session store and requests a
// broadcast when state actually changes.
type Service struct {
	store *session.Store
	bus   EventBus.Bus
}

func NewService(store *session.Store, bus EventBus.Bus) *Service {
	return &Service{store: store, bus: bus}
}

// Ingest applies one event to one device. Unknown target devices and
// unrecognized payloads are acknowledged as success with no state change:
// the emitting worker must never receive an error for events about devices
// the orchestrator has not yet synced.
func (s *Service) Ingest(ctx context.Context, evt Event) (Result, error) {
	result := Result{Success: true, AccountID: evt.AccountID, Event: evt.Event}

	device, err := s.store.GetByName(ctx, evt.AccountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		zap.L().Info("webhook for unknown device acknowledged",
			zap.String("account_id", evt.AccountID), zap.String("event", evt.Event))
		return result, nil
	}
	if err != nil {
		return result, err
	}

	outcome := Transition(evt)
	if !outcome.Recognized {
		zap.L().Warn("webhook event produced no transition",
			zap.String("account_id", evt.AccountID), zap.String("event", evt.Event))
		return result, nil
	}

	mut := session.Mutation{Status: outcome.Status, QRCode: outcome.QR}
	if outcome.StampLastSeen {
		now := time.Now()
		mut.LastSeenAt = &now
	}

	_, changed, err := s.store.Apply(ctx, device.ID, device.OwnerID, mut, s.notify)
	if err != nil {
		return result, err
	}
	result.StatusUpdated = changed
	return result, nil
}

// notify publishes the committed snapshot while the per-device lock is still
// held, preserving commit order on the bus. No-op mutations stay silent.
func (s *Service) notify(updated *domain.DeviceSession, statusChanged bool) {
	if !statusChanged || s.bus == nil {
		return
	}
	s.bus.Publish(hub.TopicDeviceStatus, updated.OwnerID, updated)
	zap.L().Debug("device status broadcast requested",
		zap.Int64("device_id", updated.ID),
		zap.String("status", updated.Status))
}

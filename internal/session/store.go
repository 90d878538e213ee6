// Package session persists device-session records and serializes mutations
// per device row.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/wafleet/internal/domain"
	"github.com/talkincode/wafleet/pkg/common"
	"gorm.io/gorm"
)

// keyedMutex serializes mutations per device ID so a webhook-driven write
// and a reconciliation write on the same row commit in arrival order. The
// map keeps one mutex per device ever mutated and is never evicted;
// evicting safely would need in-flight holder tracking, and the map is
// bounded by the device count.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func (k *keyedMutex) lock(id int64) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[int64]*sync.Mutex)
	}
	l, ok := k.locks[id]
	if !ok {
		l = &sync.Mutex{}
		k.locks[id] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Store is the persisted device-session record surface. All mutations are
// scoped to (deviceID, ownerID) to prevent cross-tenant writes.
type Store struct {
	db    *gorm.DB
	locks keyedMutex
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get loads a session scoped to (deviceID, ownerID).
func (s *Store) Get(ctx context.Context, deviceID, ownerID int64) (*domain.DeviceSession, error) {
	var session domain.DeviceSession
	err := s.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", deviceID, ownerID).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetByName resolves the worker-side session identifier to a session row.
func (s *Store) GetByName(ctx context.Context, name string) (*domain.DeviceSession, error) {
	var session domain.DeviceSession
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ListByOwner returns the owner's sessions with pagination.
func (s *Store) ListByOwner(ctx context.Context, ownerID int64, page, pageSize int) ([]domain.DeviceSession, int64, error) {
	db := s.db.WithContext(ctx).Model(&domain.DeviceSession{}).Where("owner_id = ?", ownerID)
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var sessions []domain.DeviceSession
	err := db.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&sessions).Error
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// Create inserts a new session in CONNECTING state.
func (s *Store) Create(ctx context.Context, session *domain.DeviceSession) error {
	if session.ID == 0 {
		session.ID = common.UUIDint64()
	}
	if session.Status == "" {
		session.Status = domain.DeviceStatusConnecting
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	return s.db.WithContext(ctx).Create(session).Error
}

// Mutation describes a state change to apply to one session. Nil pointer
// fields are left untouched; Status empty means keep the current status.
type Mutation struct {
	Status      string
	QRCode      *string
	PhoneNumber *string
	ServerID    *int64
	LastSeenAt  *time.Time
}

// Apply commits a mutation scoped to (deviceID, ownerID) under the per-device
// lock. It enforces the QR invariant (QR material survives only in
// AUTHENTICATING), skips the write entirely when nothing would change, and
// reports whether the persisted status actually changed so callers can
// decide on broadcasting. onCommit, when non-nil, runs while the per-device
// lock is still held, so broadcast frames go out in commit order.
func (s *Store) Apply(ctx context.Context, deviceID, ownerID int64, mut Mutation, onCommit func(updated *domain.DeviceSession, statusChanged bool)) (*domain.DeviceSession, bool, error) {
	if mut.Status != "" && !domain.ValidDeviceStatus(mut.Status) {
		return nil, false, errors.Errorf("invalid device status %q", mut.Status)
	}

	unlock := s.locks.lock(deviceID)
	defer unlock()

	current, err := s.Get(ctx, deviceID, ownerID)
	if err != nil {
		return nil, false, err
	}

	newStatus := current.Status
	if mut.Status != "" {
		newStatus = mut.Status
	}
	newQR := current.QRCode
	if mut.QRCode != nil {
		newQR = *mut.QRCode
	}
	// QR material is only meaningful while a scan is awaited.
	if newStatus != domain.DeviceStatusAuthenticating {
		newQR = ""
	}

	updates := map[string]interface{}{}
	if newStatus != current.Status {
		updates["status"] = newStatus
	}
	if newQR != current.QRCode {
		updates["qr_code"] = newQR
	}
	if mut.PhoneNumber != nil && *mut.PhoneNumber != current.PhoneNumber {
		updates["phone_number"] = *mut.PhoneNumber
	}
	if mut.ServerID != nil {
		updates["server_id"] = *mut.ServerID
	}
	if mut.LastSeenAt != nil {
		updates["last_seen_at"] = *mut.LastSeenAt
	}

	statusChanged := newStatus != current.Status
	if len(updates) == 0 {
		if onCommit != nil {
			onCommit(current, false)
		}
		return current, false, nil
	}
	updates["updated_at"] = time.Now()

	err = s.db.WithContext(ctx).
		Model(&domain.DeviceSession{}).
		Where("id = ? AND owner_id = ?", deviceID, ownerID).
		Updates(updates).Error
	if err != nil {
		return nil, false, err
	}

	updated, err := s.Get(ctx, deviceID, ownerID)
	if err != nil {
		return nil, false, err
	}
	if onCommit != nil {
		onCommit(updated, statusChanged)
	}
	return updated, statusChanged, nil
}

// ClearStaleQR clears QR material older than ttl on sessions still waiting
// for a scan. Pairing material is short-lived; an expired code is useless to
// render.
func (s *Store) ClearStaleQR(ctx context.Context, ttl time.Duration) error {
	return s.db.WithContext(ctx).
		Model(&domain.DeviceSession{}).
		Where("status = ? AND qr_code <> '' AND updated_at < ?",
			domain.DeviceStatusAuthenticating, time.Now().Add(-ttl)).
		Updates(map[string]interface{}{"qr_code": "", "updated_at": time.Now()}).Error
}

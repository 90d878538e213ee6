// Package registry holds the worker-server list and implements
// load-balanced selection and bounded health probing.
package registry

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/talkincode/wafleet/internal/domain"
	"github.com/talkincode/wafleet/internal/workerd"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrServerInUse is returned when removing a server still referenced by
// device sessions.
var ErrServerInUse = errors.New("worker server is referenced by device sessions")

// SettingsProvider exposes the runtime settings the registry consults.
type SettingsProvider interface {
	GetSettingsBoolValue(category, key string) bool
}

// Service is the worker-server registry and load balancer. The server list
// is read by many concurrent probes and selections but mutated only through
// the explicit Create/Update/Remove calls.
type Service struct {
	db       *gorm.DB
	client   *workerd.Client
	settings SettingsProvider

	rndMu sync.Mutex
	rnd   *rand.Rand

	probeConcurrency int
}

// Option configures a registry Service.
type Option func(*Service)

// WithRandSource injects a deterministic random source for selection tests.
func WithRandSource(r *rand.Rand) Option {
	return func(s *Service) { s.rnd = r }
}

// WithProbeConcurrency bounds the concurrent probes of ProbeAllHealth.
func WithProbeConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.probeConcurrency = n
		}
	}
}

func NewService(db *gorm.DB, client *workerd.Client, settings SettingsProvider, opts ...Option) *Service {
	s := &Service{
		db:               db,
		client:           client,
		settings:         settings,
		rnd:              rand.New(rand.NewSource(time.Now().UnixNano())),
		probeConcurrency: 25,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListActive returns all servers with status active in registration order.
func (s *Service) ListActive(ctx context.Context) ([]domain.WorkerServer, error) {
	var servers []domain.WorkerServer
	err := s.db.WithContext(ctx).
		Where("status = ?", domain.ServerStatusActive).
		Order("id ASC").
		Find(&servers).Error
	if err != nil {
		return nil, err
	}
	return servers, nil
}

// GetByID returns a single server or gorm.ErrRecordNotFound.
func (s *Service) GetByID(ctx context.Context, id int64) (*domain.WorkerServer, error) {
	var server domain.WorkerServer
	if err := s.db.WithContext(ctx).First(&server, id).Error; err != nil {
		return nil, err
	}
	return &server, nil
}

// SelectOptimal picks a server for a new device connection. With load
// balancing disabled it returns the active server with the lowest priority
// number, ties broken by registration order. With balancing enabled it does
// a single weighted random draw over the active servers' weights, falling
// back to the first active server when the total weight is zero. Returns
// (nil, nil) when no active server exists.
func (s *Service) SelectOptimal(ctx context.Context) (*domain.WorkerServer, error) {
	servers, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(servers) == 0 {
		return nil, nil
	}

	if s.settings != nil && s.settings.GetSettingsBoolValue("balancer", "enabled") {
		picked := PickWeighted(servers, s.intn)
		return &picked, nil
	}

	picked := PickByPriority(servers)
	return &picked, nil
}

func (s *Service) intn(n int) int {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return s.rnd.Intn(n)
}

// Create registers a new server.
func (s *Service) Create(ctx context.Context, server *domain.WorkerServer) error {
	now := time.Now()
	server.CreatedAt = now
	server.UpdatedAt = now
	if server.Status == "" {
		server.Status = domain.ServerStatusActive
	}
	return s.db.WithContext(ctx).Create(server).Error
}

// Update applies the given attribute changes and stamps updated_at. Device
// sessions already assigned to the server are not touched.
func (s *Service) Update(ctx context.Context, id int64, updates map[string]interface{}) (*domain.WorkerServer, error) {
	server, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updates["updated_at"] = time.Now()
	if err := s.db.WithContext(ctx).
		Model(&domain.WorkerServer{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.GetByID(ctx, server.ID)
}

// Remove deletes a server from the registry. It refuses while any device
// session still references the server.
func (s *Service) Remove(ctx context.Context, id int64) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	var refs int64
	if err := s.db.WithContext(ctx).
		Model(&domain.DeviceSession{}).
		Where("server_id = ?", id).
		Count(&refs).Error; err != nil {
		return err
	}
	if refs > 0 {
		zap.L().Warn("refusing to remove referenced worker server",
			zap.Int64("server_id", id), zap.Int64("sessions", refs))
		return ErrServerInUse
	}
	return s.db.WithContext(ctx).Delete(&domain.WorkerServer{}, id).Error
}

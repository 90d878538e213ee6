package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/talkincode/wafleet/internal/domain"
	"github.com/talkincode/wafleet/internal/workerd"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type settingsStub struct {
	balancer bool
}

func (s settingsStub) GetSettingsBoolValue(category, key string) bool {
	return category == "balancer" && key == "enabled" && s.balancer
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.WorkerServer{}, &domain.DeviceSession{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedServer(t *testing.T, svc *Service, server *domain.WorkerServer) *domain.WorkerServer {
	t.Helper()
	if err := svc.Create(context.Background(), server); err != nil {
		t.Fatalf("create server: %v", err)
	}
	return server
}

func TestSelectOptimalEmptyRegistry(t *testing.T) {
	svc := NewService(testDB(t), workerd.NewClient(false), settingsStub{})

	server, err := svc.SelectOptimal(context.Background())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if server != nil {
		t.Fatalf("got %+v, want nil with empty registry", server)
	}
}

func TestSelectOptimalPriorityMode(t *testing.T) {
	svc := NewService(testDB(t), workerd.NewClient(false), settingsStub{balancer: false})

	seedServer(t, svc, &domain.WorkerServer{ID: 1, Name: "a", BaseURL: "http://a", Priority: 5})
	seedServer(t, svc, &domain.WorkerServer{ID: 2, Name: "b", BaseURL: "http://b", Priority: 1})
	seedServer(t, svc, &domain.WorkerServer{ID: 3, Name: "c", BaseURL: "http://c", Priority: 1})

	server, err := svc.SelectOptimal(context.Background())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if server.ID != 2 {
		t.Fatalf("selected server %d, want lowest priority with earliest id", server.ID)
	}
}

func TestSelectOptimalSkipsInactive(t *testing.T) {
	svc := NewService(testDB(t), workerd.NewClient(false), settingsStub{})

	seedServer(t, svc, &domain.WorkerServer{ID: 1, Name: "a", BaseURL: "http://a", Priority: 1, Status: domain.ServerStatusMaintenance})
	seedServer(t, svc, &domain.WorkerServer{ID: 2, Name: "b", BaseURL: "http://b", Priority: 9})

	server, err := svc.SelectOptimal(context.Background())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if server.ID != 2 {
		t.Fatalf("selected server %d, want the only active one", server.ID)
	}
}

func TestRemoveRefusesWhileReferenced(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, workerd.NewClient(false), settingsStub{})

	server := seedServer(t, svc, &domain.WorkerServer{ID: 1, Name: "a", BaseURL: "http://a"})
	serverID := server.ID
	if err := db.Create(&domain.DeviceSession{
		ID: 100, OwnerID: 1, Name: "dev", ServerID: &serverID,
		Status: domain.DeviceStatusConnected,
	}).Error; err != nil {
		t.Fatalf("create session: %v", err)
	}

	err := svc.Remove(context.Background(), serverID)
	if !errors.Is(err, ErrServerInUse) {
		t.Fatalf("remove = %v, want ErrServerInUse", err)
	}

	// Free the reference and retry.
	if err := db.Model(&domain.DeviceSession{}).Where("id = ?", 100).
		Update("server_id", nil).Error; err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if err := svc.Remove(context.Background(), serverID); err != nil {
		t.Fatalf("remove after unassign: %v", err)
	}

	_, err = svc.GetByID(context.Background(), serverID)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("get removed = %v, want ErrRecordNotFound", err)
	}
}

func TestUpdateStampsAndReturnsFreshRow(t *testing.T) {
	svc := NewService(testDB(t), workerd.NewClient(false), settingsStub{})
	server := seedServer(t, svc, &domain.WorkerServer{ID: 1, Name: "a", BaseURL: "http://a", Weight: 1})

	updated, err := svc.Update(context.Background(), server.ID, map[string]interface{}{"weight": 10})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Weight != 10 {
		t.Fatalf("weight = %d, want 10", updated.Weight)
	}
	if updated.UpdatedAt.Before(server.UpdatedAt) {
		t.Error("expected updated_at to advance")
	}
}

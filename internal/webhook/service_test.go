package webhook

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/asaskevich/EventBus"
	"github.com/talkincode/wafleet/internal/domain"
	"github.com/talkincode/wafleet/internal/hub"
	"github.com/talkincode/wafleet/internal/session"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type busRecorder struct {
	owners   []int64
	statuses []string
}

func newTestService(t *testing.T) (*Service, *session.Store, *busRecorder) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.DeviceSession{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := session.NewStore(db)
	bus := EventBus.New()
	rec := &busRecorder{}
	err = bus.Subscribe(hub.TopicDeviceStatus, func(ownerID int64, data interface{}) {
		rec.owners = append(rec.owners, ownerID)
		if device, ok := data.(*domain.DeviceSession); ok {
			rec.statuses = append(rec.statuses, device.Status)
		}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	return NewService(store, bus), store, rec
}

func TestIngestQRScenario(t *testing.T) {
	svc, store, rec := newTestService(t)
	ctx := context.Background()

	device := &domain.DeviceSession{OwnerID: 7, Name: "device-1"}
	if err := store.Create(ctx, device); err != nil {
		t.Fatalf("create device: %v", err)
	}

	result, err := svc.Ingest(ctx, Event{
		Event:     EventQR,
		AccountID: "device-1",
		Data:      map[string]interface{}{"qr": "ABC123"},
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !result.Success || !result.StatusUpdated {
		t.Fatalf("result = %+v, want success with status update", result)
	}

	got, err := store.Get(ctx, device.ID, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.DeviceStatusAuthenticating {
		t.Errorf("status = %q, want AUTHENTICATING", got.Status)
	}
	if got.QRCode != "ABC123" {
		t.Errorf("qr = %q, want ABC123", got.QRCode)
	}

	if len(rec.owners) != 1 || rec.owners[0] != 7 {
		t.Fatalf("broadcast owners = %v, want [7]", rec.owners)
	}
}

func TestIngestReadyClearsQR(t *testing.T) {
	svc, store, rec := newTestService(t)
	ctx := context.Background()

	device := &domain.DeviceSession{
		OwnerID: 7, Name: "device-1",
		Status: domain.DeviceStatusAuthenticating,
		QRCode: "ABC123",
	}
	if err := store.Create(ctx, device); err != nil {
		t.Fatalf("create device: %v", err)
	}

	result, err := svc.Ingest(ctx, Event{Event: EventReady, AccountID: "device-1"})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !result.StatusUpdated {
		t.Fatal("expected status update")
	}

	got, _ := store.Get(ctx, device.ID, 7)
	if got.Status != domain.DeviceStatusConnected {
		t.Errorf("status = %q, want CONNECTED", got.Status)
	}
	if got.QRCode != "" {
		t.Errorf("qr = %q, want cleared", got.QRCode)
	}
	if got.LastSeenAt == nil {
		t.Error("expected last_seen_at stamped")
	}
	if len(rec.statuses) != 1 || rec.statuses[0] != domain.DeviceStatusConnected {
		t.Fatalf("broadcast statuses = %v, want [CONNECTED]", rec.statuses)
	}
}

func TestIngestUnknownDeviceAcknowledged(t *testing.T) {
	svc, _, rec := newTestService(t)

	result, err := svc.Ingest(context.Background(), Event{
		Event:     EventReady,
		AccountID: "ghost-123",
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !result.Success {
		t.Fatal("unknown device must still be acknowledged")
	}
	if result.StatusUpdated {
		t.Fatal("unknown device must not report a status update")
	}
	if len(rec.owners) != 0 {
		t.Fatalf("expected no broadcast, got %v", rec.owners)
	}
}

func TestIngestDuplicateEventIsSilent(t *testing.T) {
	svc, store, rec := newTestService(t)
	ctx := context.Background()

	device := &domain.DeviceSession{OwnerID: 7, Name: "device-1"}
	if err := store.Create(ctx, device); err != nil {
		t.Fatalf("create device: %v", err)
	}

	evt := Event{Event: EventReady, AccountID: "device-1"}
	first, err := svc.Ingest(ctx, evt)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if !first.StatusUpdated {
		t.Fatal("first event should change status")
	}

	second, err := svc.Ingest(ctx, evt)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if second.StatusUpdated {
		t.Fatal("duplicate event must not report a status update")
	}
	if len(rec.owners) != 1 {
		t.Fatalf("expected exactly one broadcast, got %d", len(rec.owners))
	}
}

func TestIngestMalformedPayloadAcknowledged(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	device := &domain.DeviceSession{OwnerID: 7, Name: "device-1"}
	if err := store.Create(ctx, device); err != nil {
		t.Fatalf("create device: %v", err)
	}

	result, err := svc.Ingest(ctx, Event{
		Event:     EventQR,
		AccountID: "device-1",
		Data:      map[string]interface{}{"qr": ""},
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !result.Success || result.StatusUpdated {
		t.Fatalf("result = %+v, want acknowledged with no change", result)
	}

	got, _ := store.Get(ctx, device.ID, 7)
	if got.Status != domain.DeviceStatusConnecting {
		t.Errorf("status = %q, want untouched CONNECTING", got.Status)
	}
}

package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/talkincode/wafleet/internal/domain"
	"github.com/talkincode/wafleet/internal/workerd"
)

func TestProbeHealthHealthy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","uptime":12.5,"version":"1.0.0"}`))
	}))
	defer ts.Close()

	svc := NewService(testDB(t), workerd.NewClient(false), settingsStub{})
	server := seedServer(t, svc, &domain.WorkerServer{ID: 1, Name: "w1", BaseURL: ts.URL, Timeout: 2})

	result := svc.ProbeHealth(context.Background(), server)
	if result.Class != HealthHealthy {
		t.Fatalf("class = %q, want healthy (%s)", result.Class, result.Message)
	}
	if result.Message != "ok" {
		t.Errorf("message = %q, want worker status echoed", result.Message)
	}

	// The snapshot must be persisted.
	fresh, err := svc.GetByID(context.Background(), server.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fresh.LastCheckAt.IsZero() {
		t.Error("expected last_check_at persisted")
	}
}

func TestProbeHealthUnhealthy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"degraded"}`))
	}))
	defer ts.Close()

	svc := NewService(testDB(t), workerd.NewClient(false), settingsStub{})
	server := seedServer(t, svc, &domain.WorkerServer{ID: 1, Name: "w1", BaseURL: ts.URL, Timeout: 2})

	result := svc.ProbeHealth(context.Background(), server)
	if result.Class != HealthUnhealthy {
		t.Fatalf("class = %q, want unhealthy", result.Class)
	}

	// A failed probe never flips the operator-owned status.
	fresh, _ := svc.GetByID(context.Background(), server.ID)
	if fresh.Status != domain.ServerStatusActive {
		t.Fatalf("status = %q, probes must not change it", fresh.Status)
	}
}

func TestProbeHealthTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer ts.Close()

	svc := NewService(testDB(t), workerd.NewClient(false), settingsStub{})
	server := seedServer(t, svc, &domain.WorkerServer{ID: 1, Name: "w1", BaseURL: ts.URL, Timeout: 1})

	result := svc.ProbeHealth(context.Background(), server)
	if result.Class != HealthTimeout {
		t.Fatalf("class = %q, want timeout (%s)", result.Class, result.Message)
	}
	if result.Elapsed <= 0 {
		t.Error("elapsed must be recorded even on timeout")
	}
}

func TestProbeAllHealthOneResultPerServer(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer healthy.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()

	svc := NewService(testDB(t), workerd.NewClient(false), settingsStub{}, WithProbeConcurrency(2))
	seedServer(t, svc, &domain.WorkerServer{ID: 1, Name: "good", BaseURL: healthy.URL, Timeout: 2})
	seedServer(t, svc, &domain.WorkerServer{ID: 2, Name: "bad", BaseURL: failing.URL, Timeout: 2})
	seedServer(t, svc, &domain.WorkerServer{ID: 3, Name: "gone", BaseURL: "http://127.0.0.1:1", Timeout: 1})

	results, err := svc.ProbeAllHealth(context.Background())
	if err != nil {
		t.Fatalf("probe all: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want one per server", len(results))
	}

	byID := map[int64]HealthResult{}
	for _, result := range results {
		byID[result.ServerID] = result
	}
	if byID[1].Class != HealthHealthy {
		t.Errorf("good server class = %q", byID[1].Class)
	}
	if byID[2].Class == HealthHealthy {
		t.Errorf("bad server class = %q, want a failure class", byID[2].Class)
	}
	if byID[3].Class == HealthHealthy {
		t.Errorf("gone server class = %q, want a failure class", byID[3].Class)
	}
}

func TestRefreshStatsPersistsInstanceCount(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stats" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"accounts":{"total":17}}`))
	}))
	defer ts.Close()

	svc := NewService(testDB(t), workerd.NewClient(false), settingsStub{})
	server := seedServer(t, svc, &domain.WorkerServer{ID: 1, Name: "w1", BaseURL: ts.URL, Timeout: 2})

	svc.RefreshStats(context.Background(), server)

	fresh, err := svc.GetByID(context.Background(), server.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fresh.InstanceCount != 17 {
		t.Fatalf("instance_count = %d, want 17", fresh.InstanceCount)
	}
}

func TestSummaryAggregatesRecordedProbes(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, workerd.NewClient(false), settingsStub{})

	now := time.Now()
	seedServer(t, svc, &domain.WorkerServer{ID: 1, Name: "a", BaseURL: "http://a", LastResponseMs: 10, LastCheckAt: now})
	seedServer(t, svc, &domain.WorkerServer{ID: 2, Name: "b", BaseURL: "http://b", LastResponseMs: 30, LastCheckAt: now})
	seedServer(t, svc, &domain.WorkerServer{ID: 3, Name: "c", BaseURL: "http://c"}) // never probed

	summary, err := svc.Summary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Servers != 3 {
		t.Errorf("servers = %d, want 3", summary.Servers)
	}
	if summary.MeanMs != 20 {
		t.Errorf("mean = %v, want 20 over the probed servers only", summary.MeanMs)
	}
	if summary.MedianMs != 20 {
		t.Errorf("median = %v, want 20", summary.MedianMs)
	}
}

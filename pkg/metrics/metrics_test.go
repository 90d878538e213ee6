package metrics

import (
	"testing"
	"time"
)

func TestSelectBeforeInitReturnsNothing(t *testing.T) {
	points, err := Select("worker_servers_total", 0, time.Now().Unix())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if points != nil {
		t.Fatalf("expected no points before init, got %d", len(points))
	}
}

func TestGaugeRoundTrip(t *testing.T) {
	if err := InitMetrics(t.TempDir()); err != nil {
		t.Fatalf("init metrics: %v", err)
	}
	defer func() {
		if err := Close(); err != nil {
			t.Fatalf("close metrics: %v", err)
		}
	}()

	SetGauge("worker_servers_total", 5)

	now := time.Now().Unix()
	points, err := Select("worker_servers_total", now-60, now+60)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(points) == 0 {
		t.Fatal("expected at least one data point")
	}
	if points[len(points)-1].Value != 5 {
		t.Fatalf("value = %v, want 5", points[len(points)-1].Value)
	}
}

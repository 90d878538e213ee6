package registry

import (
	"math/rand"
	"testing"

	"github.com/talkincode/wafleet/internal/domain"
)

func TestPickByPriority(t *testing.T) {
	tests := []struct {
		name    string
		servers []domain.WorkerServer
		want    int64
	}{
		{
			name: "lowest number wins",
			servers: []domain.WorkerServer{
				{ID: 1, Priority: 5},
				{ID: 2, Priority: 1},
				{ID: 3, Priority: 3},
			},
			want: 2,
		},
		{
			name: "tie broken by registration order",
			servers: []domain.WorkerServer{
				{ID: 1, Priority: 1},
				{ID: 2, Priority: 1},
			},
			want: 1,
		},
		{
			name:    "single server",
			servers: []domain.WorkerServer{{ID: 7, Priority: 100}},
			want:    7,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := PickByPriority(tc.servers); got.ID != tc.want {
				t.Errorf("PickByPriority = server %d, want %d", got.ID, tc.want)
			}
		})
	}
}

func TestPickWeightedDeterministicDraw(t *testing.T) {
	servers := []domain.WorkerServer{
		{ID: 1, Weight: 3},
		{ID: 2, Weight: 5},
		{ID: 3, Weight: 2},
	}

	// Draws land in the cumulative ranges [0,3) [3,8) [8,10).
	tests := []struct {
		draw int
		want int64
	}{
		{0, 1},
		{2, 1},
		{3, 2},
		{7, 2},
		{8, 3},
		{9, 3},
	}

	for _, tc := range tests {
		got := PickWeighted(servers, func(n int) int {
			if n != 10 {
				t.Fatalf("intn called with %d, want total weight 10", n)
			}
			return tc.draw
		})
		if got.ID != tc.want {
			t.Errorf("draw %d = server %d, want %d", tc.draw, got.ID, tc.want)
		}
	}
}

func TestPickWeightedSkipsZeroWeight(t *testing.T) {
	servers := []domain.WorkerServer{
		{ID: 1, Weight: 0},
		{ID: 2, Weight: 4},
	}
	got := PickWeighted(servers, func(n int) int { return 0 })
	if got.ID != 2 {
		t.Fatalf("got server %d, want zero-weight server skipped", got.ID)
	}
}

func TestPickWeightedZeroTotalFallsBackToFirst(t *testing.T) {
	servers := []domain.WorkerServer{
		{ID: 1, Weight: 0},
		{ID: 2, Weight: 0},
	}
	got := PickWeighted(servers, func(n int) int {
		t.Fatal("intn must not be called with zero total weight")
		return 0
	})
	if got.ID != 1 {
		t.Fatalf("got server %d, want first server", got.ID)
	}
}

func TestPickWeightedDistribution(t *testing.T) {
	servers := []domain.WorkerServer{
		{ID: 1, Weight: 1},
		{ID: 2, Weight: 9},
	}

	rnd := rand.New(rand.NewSource(42))
	counts := map[int64]int{}
	const draws = 10000
	for i := 0; i < draws; i++ {
		counts[PickWeighted(servers, rnd.Intn).ID]++
	}

	// Expect roughly 10% / 90%; allow generous slack for a seeded source.
	if counts[1] < draws/20 || counts[1] > draws/5 {
		t.Errorf("light server drawn %d of %d times, outside expected band", counts[1], draws)
	}
	if counts[2] < draws*8/10 {
		t.Errorf("heavy server drawn %d of %d times, expected the bulk", counts[2], draws)
	}
}

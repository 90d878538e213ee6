package registry

import "github.com/talkincode/wafleet/internal/domain"

// PickByPriority returns the server with the numerically lowest priority.
// The input is expected in registration order, which breaks ties.
func PickByPriority(servers []domain.WorkerServer) domain.WorkerServer {
	best := servers[0]
	for _, server := range servers[1:] {
		if server.Priority < best.Priority {
			best = server
		}
	}
	return best
}

// PickWeighted performs a single weighted random draw over the servers'
// weights. intn must behave like rand.Intn. A non-positive total weight
// falls back to the first server.
func PickWeighted(servers []domain.WorkerServer, intn func(int) int) domain.WorkerServer {
	total := 0
	for _, server := range servers {
		if server.Weight > 0 {
			total += server.Weight
		}
	}
	if total <= 0 {
		return servers[0]
	}
	draw := intn(total)
	for _, server := range servers {
		if server.Weight <= 0 {
			continue
		}
		draw -= server.Weight
		if draw < 0 {
			return server
		}
	}
	// Unreachable with a well-formed draw; keep the fallback for safety.
	return servers[len(servers)-1]
}

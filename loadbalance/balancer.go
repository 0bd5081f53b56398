// Package loadbalance provides strategies for spreading offload calls across
// multiple registered worker endpoints.
//
// Two strategies are implemented:
//   - RoundRobin:     equal-capacity workers
//   - WeightedRandom: heterogeneous workers (different CPU/memory)
//
// Offload calls carry no affinity key (any worker can serve any entry), so
// there is no consistent-hash strategy here.
package loadbalance

import "molt-accel/registry"

// Balancer is the interface for endpoint selection strategies.
// The client calls Pick before each offload call; implementations must be
// goroutine-safe.
type Balancer interface {
	// Pick selects one worker from the available list.
	Pick(instances []registry.WorkerInstance) (*registry.WorkerInstance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

package loadbalance

import (
	"sync/atomic"

	"molt-accel/accelerr"
	"molt-accel/registry"
)

// RoundRobinBalancer distributes calls evenly across all workers in order.
// Uses an atomic counter for lock-free, goroutine-safe operation.
type RoundRobinBalancer struct {
	counter atomic.Int64
}

// Pick selects the next worker in round-robin order.
func (b *RoundRobinBalancer) Pick(instances []registry.WorkerInstance) (*registry.WorkerInstance, error) {
	if len(instances) == 0 {
		return nil, accelerr.New(accelerr.KindWorkerUnavailable, "no workers registered")
	}
	index := b.counter.Add(1) % int64(len(instances))
	return &instances[index], nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}

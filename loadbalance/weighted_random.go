package loadbalance

import (
	"math/rand"

	"molt-accel/accelerr"
	"molt-accel/registry"
)

// WeightedRandomBalancer picks workers randomly in proportion to their
// registered weight. Workers with weight <= 0 count as weight 1 so a sloppy
// registration cannot make an endpoint unreachable.
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(instances []registry.WorkerInstance) (*registry.WorkerInstance, error) {
	if len(instances) == 0 {
		return nil, accelerr.New(accelerr.KindWorkerUnavailable, "no workers registered")
	}

	totalWeight := 0
	for _, v := range instances {
		totalWeight += effectiveWeight(v.Weight)
	}

	r := rand.Intn(totalWeight)
	for i := range instances {
		r -= effectiveWeight(instances[i].Weight)
		if r < 0 {
			return &instances[i], nil
		}
	}

	// Unreachable: r starts below totalWeight.
	return &instances[len(instances)-1], nil
}

func effectiveWeight(w int) int {
	if w <= 0 {
		return 1
	}
	return w
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}

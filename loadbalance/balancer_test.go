package loadbalance

import (
	"testing"

	"molt-accel/accelerr"
	"molt-accel/registry"
)

func instances(addrs ...string) []registry.WorkerInstance {
	out := make([]registry.WorkerInstance, len(addrs))
	for i, addr := range addrs {
		out[i] = registry.WorkerInstance{Network: "tcp", Addr: addr}
	}
	return out
}

func TestRoundRobinCyclesEvenly(t *testing.T) {
	b := &RoundRobinBalancer{}
	workers := instances("a:1", "b:1", "c:1")

	picks := make(map[string]int)
	for i := 0; i < 9; i++ {
		w, err := b.Pick(workers)
		if err != nil {
			t.Fatal(err)
		}
		picks[w.Addr]++
	}
	for _, addr := range []string{"a:1", "b:1", "c:1"} {
		if picks[addr] != 3 {
			t.Fatalf("expect 3 picks for %s, got %d (all: %v)", addr, picks[addr], picks)
		}
	}
}

func TestRoundRobinEmpty(t *testing.T) {
	b := &RoundRobinBalancer{}
	_, err := b.Pick(nil)
	if accelerr.KindOf(err) != accelerr.KindWorkerUnavailable {
		t.Fatalf("expect WorkerUnavailable for empty pool, got %v", err)
	}
}

func TestWeightedRandomRespectsMembership(t *testing.T) {
	b := &WeightedRandomBalancer{}
	workers := []registry.WorkerInstance{
		{Addr: "a:1", Weight: 3},
		{Addr: "b:1", Weight: 1},
		{Addr: "c:1"}, // zero weight counts as 1
	}

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		w, err := b.Pick(workers)
		if err != nil {
			t.Fatal(err)
		}
		seen[w.Addr] = true
	}
	for _, addr := range []string{"a:1", "b:1", "c:1"} {
		if !seen[addr] {
			t.Fatalf("worker %s never picked in 200 draws", addr)
		}
	}
}

func TestWeightedRandomEmpty(t *testing.T) {
	b := &WeightedRandomBalancer{}
	_, err := b.Pick([]registry.WorkerInstance{})
	if accelerr.KindOf(err) != accelerr.KindWorkerUnavailable {
		t.Fatalf("expect WorkerUnavailable for empty pool, got %v", err)
	}
}

func TestSingleWorkerAlwaysPicked(t *testing.T) {
	only := instances("solo:1")
	for _, b := range []Balancer{&RoundRobinBalancer{}, &WeightedRandomBalancer{}} {
		for i := 0; i < 5; i++ {
			w, err := b.Pick(only)
			if err != nil {
				t.Fatalf("%s: %v", b.Name(), err)
			}
			if w.Addr != "solo:1" {
				t.Fatalf("%s: expect solo:1, got %s", b.Name(), w.Addr)
			}
		}
	}
}

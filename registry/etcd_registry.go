// etcd-based implementation of the Registry interface.
//
// etcd acts as a "distributed phonebook" for worker processes:
//
//	Key:   /molt/workers/{pool}/{addr}
//	Value: JSON-encoded WorkerInstance
//
// Registration uses TTL-based leases: if a worker crashes, its lease expires
// and the entry disappears on its own, leaving no ghost endpoints.
package registry

import (
	"context"
	"encoding/json"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyPrefix = "/molt/workers/"

// requestTimeout bounds individual etcd operations so an unreachable cluster
// surfaces as an error instead of a hang.
const requestTimeout = 3 * time.Second

// EtcdRegistry implements Registry using etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // etcd client connection (thread-safe, shared across goroutines)
}

// NewEtcdRegistry creates a registry connected to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: requestTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c}, nil
}

// Close releases the underlying etcd client connection.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}

// Register adds a worker endpoint to etcd with a TTL lease.
//
// Flow:
//  1. Grant a lease with the given TTL
//  2. Put the key with the lease attached
//  3. Start KeepAlive to renew the lease in the background
//
// The lease ID stays local to this call: storing it on the struct would race
// when multiple workers share one EtcdRegistry.
func (r *EtcdRegistry) Register(pool string, instance WorkerInstance, ttl int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, keyPrefix+pool+"/"+instance.Addr, string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	// KeepAlive outlives this call; it must not inherit the request timeout.
	ch, err := r.client.KeepAlive(context.Background(), lease.ID)
	if err != nil {
		return err
	}

	// Drain KeepAlive responses so the channel never fills up.
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes a worker endpoint from etcd.
// Called during graceful shutdown before the worker closes its listener.
func (r *EtcdRegistry) Deregister(pool string, addr string) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	_, err := r.client.Delete(ctx, keyPrefix+pool+"/"+addr)
	return err
}

// Watch monitors a pool prefix and emits updated endpoint lists whenever
// registrations change. Uses etcd's server-push Watch API instead of polling.
func (r *EtcdRegistry) Watch(pool string) <-chan []WorkerInstance {
	ctx := context.Background()
	ch := make(chan []WorkerInstance, 1)
	prefix := keyPrefix + pool + "/"

	go func() {
		watchChan := r.client.Watch(ctx, prefix, clientv3.WithPrefix())
		for range watchChan {
			// On any change, re-fetch the full list; simpler than parsing
			// individual watch events.
			instances, _ := r.Discover(pool)
			ch <- instances
		}
	}()

	return ch
}

// Discover returns the currently registered endpoints for a pool.
func (r *EtcdRegistry) Discover(pool string) ([]WorkerInstance, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	prefix := keyPrefix + pool + "/"

	resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]WorkerInstance, 0)
	for _, kv := range resp.Kvs {
		var instance WorkerInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			continue // Skip malformed entries
		}
		instances = append(instances, instance)
	}

	return instances, nil
}

// Package registry provides discovery of worker endpoints.
//
// A deployment that runs one local worker does not need it; the client takes
// a static address. With several worker processes behind one entry set, each
// worker registers its endpoint here and clients discover the live list.
package registry

// WorkerInstance describes one registered worker endpoint.
type WorkerInstance struct {
	Network string // "tcp" or "unix"
	Addr    string
	Weight  int // Weight for load balancing
	Version string
}

// Registry is the interface for worker endpoint discovery.
type Registry interface {
	Register(pool string, instance WorkerInstance, ttl int64) error
	Deregister(pool string, addr string) error
	Discover(pool string) ([]WorkerInstance, error)
	Watch(pool string) <-chan []WorkerInstance
}

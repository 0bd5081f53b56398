// Full-stack integration: worker server, pooled client, offload interceptor,
// and (when an etcd endpoint is reachable) registry-based discovery.
package test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"molt-accel/accelerr"
	"molt-accel/capability"
	"molt-accel/client"
	"molt-accel/codec"
	"molt-accel/entries"
	"molt-accel/loadbalance"
	"molt-accel/offload"
	"molt-accel/registry"
	"molt-accel/worker"
)

const etcdEndpoint = "127.0.0.1:2379"

func startWorker(t *testing.T, cfg worker.Config) *worker.Server {
	t.Helper()
	srv, err := worker.NewServer(cfg)
	require.NoError(t, err)
	srv.Use(worker.RecoveryMiddleware(zerolog.Nop()))
	require.NoError(t, entries.RegisterAll(srv))
	go srv.Serve("tcp", "127.0.0.1:0", "", "", nil)
	time.Sleep(100 * time.Millisecond)
	t.Cleanup(func() { srv.Shutdown(time.Second) })
	return srv
}

func TestOffloadEndToEnd(t *testing.T) {
	srv := startWorker(t, worker.Config{})

	cli, err := client.New(client.Config{
		Network:  "tcp",
		Addr:     srv.Addr().String(),
		PoolSize: 2,
	})
	require.NoError(t, err)
	defer cli.Close()
	require.NoError(t, cli.Connect())

	ic, err := offload.NewInterceptor(offload.Config{
		Entry:        entries.EntryListItems,
		Codec:        codec.TypeJSON,
		Timeout:      time.Second,
		Capabilities: capability.NewSet(capability.Offload),
		Contract:     entries.ListItemsContract(),
		Client:       cli,
	})
	require.NoError(t, err)

	handler := ic.Wrap(nil)
	res, err := handler(context.Background(), map[string]string{
		"user_id": "7",
		"q":       "open",
		"limit":   "25",
	})
	require.NoError(t, err)

	var page map[string]any
	require.NoError(t, json.Unmarshal(res.Body, &page))
	assert.Len(t, page["items"], 25)
	assert.Equal(t, "7:25", page["next_cursor"])
}

func TestConcurrentCallsOverPool(t *testing.T) {
	srv := startWorker(t, worker.Config{})

	cli, err := client.New(client.Config{
		Network:  "tcp",
		Addr:     srv.Addr().String(),
		PoolSize: 4,
	})
	require.NoError(t, err)
	defer cli.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			payload := []byte(fmt.Sprintf(`{"values":[%d],"scale":2}`, n))
			body, err := cli.Call(context.Background(), entries.EntryCompute, payload, codec.TypeJSON, 2*time.Second)
			if err != nil {
				errs <- err
				return
			}
			var out struct {
				Sum float64 `json:"sum"`
			}
			if err := json.Unmarshal(body, &out); err != nil {
				errs <- err
				return
			}
			if out.Sum != float64(2*n) {
				errs <- fmt.Errorf("call %d: expect sum %d, got %v", n, 2*n, out.Sum)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestCodecsAgreeOnResults(t *testing.T) {
	srv := startWorker(t, worker.Config{})

	cli, err := client.New(client.Config{Network: "tcp", Addr: srv.Addr().String()})
	require.NoError(t, err)
	defer cli.Close()

	params := map[string]string{"values": "1,2,3", "scale": "10"}
	results := map[codec.Type][]byte{}
	for _, ct := range []codec.Type{codec.TypeJSON, codec.TypeMsgpack} {
		ic, err := offload.NewInterceptor(offload.Config{
			Entry:        entries.EntryCompute,
			Codec:        ct,
			Timeout:      time.Second,
			Capabilities: capability.NewSet(capability.Offload),
			Contract:     entries.ComputeContract(),
			Client:       cli,
		})
		require.NoError(t, err)
		res, err := ic.Wrap(nil)(context.Background(), params)
		require.NoError(t, err)
		results[ct] = res.Body
	}

	var fromJSON, fromMsgpack map[string]any
	require.NoError(t, json.Unmarshal(results[codec.TypeJSON], &fromJSON))
	require.NoError(t, json.Unmarshal(results[codec.TypeMsgpack], &fromMsgpack))
	assert.Equal(t, fromJSON["sum"], fromMsgpack["sum"])
	assert.Equal(t, fromJSON["count"], fromMsgpack["count"])
}

func TestTimeoutTaintAndRecovery(t *testing.T) {
	srv := startWorker(t, worker.Config{})
	require.NoError(t, srv.RegisterEntry("stall", func(ctx context.Context, _ any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	cli, err := client.New(client.Config{Network: "tcp", Addr: srv.Addr().String(), PoolSize: 1})
	require.NoError(t, err)
	defer cli.Close()

	_, err = cli.Call(context.Background(), "stall", []byte("{}"), codec.TypeJSON, 50*time.Millisecond)
	assert.Equal(t, accelerr.KindTimeout, accelerr.KindOf(err))

	// The pool replaces the tainted connection; the client keeps working.
	_, err = cli.Call(context.Background(), entries.EntryEcho, []byte(`{"ok":true}`), codec.TypeJSON, time.Second)
	assert.NoError(t, err)
}

func TestRegistryDiscoveryRoundRobin(t *testing.T) {
	reg, err := registry.NewEtcdRegistry([]string{etcdEndpoint})
	if err != nil {
		t.Skipf("etcd not reachable at %s: %v", etcdEndpoint, err)
	}
	defer reg.Close()
	if _, err := reg.Discover("integration-probe"); err != nil {
		t.Skipf("etcd not reachable at %s: %v", etcdEndpoint, err)
	}

	pool := fmt.Sprintf("integration-%d", time.Now().UnixNano())
	var addrs []string
	for i := 0; i < 2; i++ {
		srv, err := worker.NewServer(worker.Config{})
		require.NoError(t, err)
		require.NoError(t, entries.RegisterAll(srv))

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		ln.Close()

		go srv.Serve("tcp", addr, addr, pool, reg)
		addrs = append(addrs, addr)
		t.Cleanup(func() { srv.Shutdown(time.Second) })
	}
	time.Sleep(200 * time.Millisecond)

	instances, err := reg.Discover(pool)
	require.NoError(t, err)
	require.Len(t, instances, 2)

	cli, err := client.New(client.Config{
		Network:  "tcp",
		Registry: reg,
		Balancer: &loadbalance.RoundRobinBalancer{},
		Pool:     pool,
	})
	require.NoError(t, err)
	defer cli.Close()

	for i := 0; i < 4; i++ {
		_, err := cli.Call(context.Background(), entries.EntryEcho, []byte(`{}`), codec.TypeJSON, time.Second)
		require.NoError(t, err)
	}
	_ = addrs
}

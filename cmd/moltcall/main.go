// moltcall performs one offload call from the command line.
//
// Usage:
//
//	moltcall -entry list_items -param user_id=7 -param limit=25
//	moltcall -config client.toml -entry compute -codec json -param values=1,2,3 -param scale=2
//
// Parameters run through the entry's contract when one is known (the built-in
// entry set), otherwise they are sent as a plain string map. The result is
// printed as JSON on stdout. Offload calls require the "offload" capability
// in MOLT_CAPABILITIES.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"molt-accel/capability"
	"molt-accel/client"
	"molt-accel/codec"
	"molt-accel/config"
	"molt-accel/contract"
	"molt-accel/entries"
	"molt-accel/loadbalance"
	"molt-accel/offload"
	"molt-accel/registry"
)

type paramFlags map[string]string

func (p paramFlags) String() string { return "" }

func (p paramFlags) Set(v string) error {
	key, value, ok := strings.Cut(v, "=")
	if !ok {
		return fmt.Errorf("param %q must be key=value", v)
	}
	p[key] = value
	return nil
}

func main() {
	configPath := flag.String("config", "", "path to client TOML config")
	entry := flag.String("entry", "", "entry name to invoke")
	codecName := flag.String("codec", "msgpack", "payload codec: json or msgpack")
	timeout := flag.Duration("timeout", 250*time.Millisecond, "call timeout")
	params := paramFlags{}
	flag.Var(params, "param", "payload field as key=value (repeatable)")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Str("app", "moltcall").Logger()

	if *entry == "" {
		log.Fatal().Msg("-entry is required")
	}

	cfg := config.DefaultClientConfig()
	if *configPath != "" {
		loaded, err := config.LoadClientConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("load config")
		}
		cfg = loaded
	}

	clientCfg := client.Config{
		Network:      cfg.Network,
		Addr:         cfg.Addr,
		PoolSize:     cfg.PoolSize,
		Wire:         cfg.Wire,
		MaxFrameSize: cfg.MaxFrameSize,
		DialTimeout:  cfg.DialTimeout,
		Pool:         cfg.WorkerPool,
		Logger:       &log,
	}
	if len(cfg.EtcdEndpoints) > 0 {
		reg, err := registry.NewEtcdRegistry(cfg.EtcdEndpoints)
		if err != nil {
			log.Fatal().Err(err).Msg("connect etcd")
		}
		clientCfg.Registry = reg
		clientCfg.Balancer = &loadbalance.RoundRobinBalancer{}
	}

	cli, err := client.New(clientCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create client")
	}
	defer cli.Close()

	entryContract := entries.ContractFor(*entry)
	if entryContract == nil {
		// Free-form entry: every parameter travels as a string field.
		fields := make([]contract.Field, 0, len(params))
		for name := range params {
			fields = append(fields, contract.Field{Name: name, Kind: contract.String})
		}
		entryContract = contract.NewBuilder(fields...)
	}

	interceptor, err := offload.NewInterceptor(offload.Config{
		Entry:        *entry,
		Codec:        codec.Type(*codecName),
		Timeout:      *timeout,
		Capabilities: capability.FromEnv(),
		Contract:     entryContract,
		Client:       cli,
		Middlewares: []offload.Middleware{
			offload.LoggingMiddleware(log, *entry),
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("create interceptor")
	}

	handler := interceptor.Wrap(nil)
	result, err := handler(context.Background(), params)
	if err != nil {
		log.Fatal().Err(err).Msg("call failed")
	}
	fmt.Println(string(result.Body))
}

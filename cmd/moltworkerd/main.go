// moltworkerd runs a worker process serving the built-in entry set.
//
// Usage:
//
//	moltworkerd -config worker.toml
//
// Without -config it listens on the default unix socket with the default
// settings. SIGINT/SIGTERM trigger a graceful shutdown that waits for
// in-flight entries.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"molt-accel/config"
	"molt-accel/entries"
	"molt-accel/registry"
	"molt-accel/worker"
)

func main() {
	configPath := flag.String("config", "", "path to worker TOML config")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Str("app", "moltworkerd").Logger()

	cfg := config.DefaultWorkerConfig()
	if *configPath != "" {
		loaded, err := config.LoadWorkerConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("load config")
		}
		cfg = loaded
	}

	// A stale socket file from a crashed worker blocks the new listener.
	if cfg.Network == "unix" {
		os.Remove(cfg.Listen)
	}

	srv, err := worker.NewServer(worker.Config{
		Wire:         cfg.Wire,
		MaxFrameSize: cfg.MaxFrameSize,
		MaxInflight:  cfg.MaxInflight,
		Logger:       &log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("create server")
	}

	srv.Use(worker.RecoveryMiddleware(log))
	srv.Use(worker.LoggingMiddleware(log))
	if cfg.RatePerSecond > 0 {
		srv.Use(worker.RateLimitMiddleware(cfg.RatePerSecond, cfg.RateBurst))
	}
	srv.Use(worker.TimeoutMiddleware(cfg.MaxTimeout))

	if err := entries.RegisterAll(srv); err != nil {
		log.Fatal().Err(err).Msg("register entries")
	}

	var reg registry.Registry
	if len(cfg.EtcdEndpoints) > 0 {
		etcdReg, err := registry.NewEtcdRegistry(cfg.EtcdEndpoints)
		if err != nil {
			log.Fatal().Err(err).Msg("connect etcd")
		}
		reg = etcdReg
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info().Msg("shutting down")
		if err := srv.Shutdown(5 * time.Second); err != nil {
			log.Warn().Err(err).Msg("shutdown incomplete")
		}
	}()

	log.Info().
		Str("network", cfg.Network).
		Str("listen", cfg.Listen).
		Str("wire", string(cfg.Wire)).
		Msg("worker listening")
	if err := srv.Serve(cfg.Network, cfg.Listen, cfg.Advertise, cfg.WorkerPool, reg); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}

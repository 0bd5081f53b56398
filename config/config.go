// Package config loads client and worker settings from TOML files.
//
// Files override defaults field by field: a key absent from the file keeps
// its default, an empty string does not clobber a non-empty default.
// Capabilities deliberately do not live here; they come from the process
// environment (see the capability package) so a config file cannot widen the
// permission set.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"molt-accel/codec"
	"molt-accel/framing"
)

// ClientConfig holds the settings to construct an offload client.
type ClientConfig struct {
	Network       string
	Addr          string
	PoolSize      int
	Wire          codec.Type
	MaxFrameSize  uint32
	DialTimeout   time.Duration
	EtcdEndpoints []string
	WorkerPool    string
}

// WorkerConfig holds the settings to run a worker server.
type WorkerConfig struct {
	Network       string
	Listen        string
	Advertise     string
	Wire          codec.Type
	MaxFrameSize  uint32
	MaxInflight   int
	MaxTimeout    time.Duration
	RatePerSecond float64
	RateBurst     int
	EtcdEndpoints []string
	WorkerPool    string
}

// DefaultClientConfig returns the settings for a single local worker over a
// unix socket.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Network:      "unix",
		Addr:         "/tmp/molt-worker.sock",
		PoolSize:     1,
		Wire:         codec.TypeMsgpack,
		MaxFrameSize: framing.DefaultMaxFrameSize,
		DialTimeout:  2 * time.Second,
	}
}

// DefaultWorkerConfig returns the matching worker-side defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Network:      "unix",
		Listen:       "/tmp/molt-worker.sock",
		Wire:         codec.TypeMsgpack,
		MaxFrameSize: framing.DefaultMaxFrameSize,
		MaxTimeout:   30 * time.Second,
	}
}

type clientFile struct {
	Network       string   `toml:"network"`
	Addr          string   `toml:"addr"`
	PoolSize      int      `toml:"pool_size"`
	Wire          string   `toml:"wire"`
	MaxFrameSize  uint32   `toml:"max_frame_size"`
	DialTimeout   string   `toml:"dial_timeout"`
	EtcdEndpoints []string `toml:"etcd_endpoints"`
	WorkerPool    string   `toml:"worker_pool"`
}

type workerFile struct {
	Network       string   `toml:"network"`
	Listen        string   `toml:"listen"`
	Advertise     string   `toml:"advertise"`
	Wire          string   `toml:"wire"`
	MaxFrameSize  uint32   `toml:"max_frame_size"`
	MaxInflight   int      `toml:"max_inflight"`
	MaxTimeout    string   `toml:"max_timeout"`
	RatePerSecond float64  `toml:"rate_per_second"`
	RateBurst     int      `toml:"rate_burst"`
	EtcdEndpoints []string `toml:"etcd_endpoints"`
	WorkerPool    string   `toml:"worker_pool"`
}

// LoadClientConfig reads a client TOML file over the defaults.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	var raw clientFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("load client config: %w", err)
	}

	if meta.IsDefined("network") && strings.TrimSpace(raw.Network) != "" {
		cfg.Network = strings.TrimSpace(raw.Network)
	}
	if meta.IsDefined("addr") && strings.TrimSpace(raw.Addr) != "" {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("pool_size") && raw.PoolSize > 0 {
		cfg.PoolSize = raw.PoolSize
	}
	if meta.IsDefined("wire") {
		wire, err := parseWire(raw.Wire)
		if err != nil {
			return ClientConfig{}, err
		}
		cfg.Wire = wire
	}
	if meta.IsDefined("max_frame_size") && raw.MaxFrameSize > 0 {
		cfg.MaxFrameSize = raw.MaxFrameSize
	}
	if meta.IsDefined("dial_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DialTimeout))
		if err != nil {
			return ClientConfig{}, fmt.Errorf("parse dial_timeout: %w", err)
		}
		cfg.DialTimeout = d
	}
	if meta.IsDefined("etcd_endpoints") {
		cfg.EtcdEndpoints = raw.EtcdEndpoints
	}
	if meta.IsDefined("worker_pool") {
		cfg.WorkerPool = strings.TrimSpace(raw.WorkerPool)
	}
	return cfg, nil
}

// LoadWorkerConfig reads a worker TOML file over the defaults.
func LoadWorkerConfig(path string) (WorkerConfig, error) {
	cfg := DefaultWorkerConfig()

	var raw workerFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return WorkerConfig{}, fmt.Errorf("load worker config: %w", err)
	}

	if meta.IsDefined("network") && strings.TrimSpace(raw.Network) != "" {
		cfg.Network = strings.TrimSpace(raw.Network)
	}
	if meta.IsDefined("listen") && strings.TrimSpace(raw.Listen) != "" {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("advertise") {
		cfg.Advertise = strings.TrimSpace(raw.Advertise)
	}
	if meta.IsDefined("wire") {
		wire, err := parseWire(raw.Wire)
		if err != nil {
			return WorkerConfig{}, err
		}
		cfg.Wire = wire
	}
	if meta.IsDefined("max_frame_size") && raw.MaxFrameSize > 0 {
		cfg.MaxFrameSize = raw.MaxFrameSize
	}
	if meta.IsDefined("max_inflight") {
		cfg.MaxInflight = raw.MaxInflight
	}
	if meta.IsDefined("max_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.MaxTimeout))
		if err != nil {
			return WorkerConfig{}, fmt.Errorf("parse max_timeout: %w", err)
		}
		cfg.MaxTimeout = d
	}
	if meta.IsDefined("rate_per_second") {
		cfg.RatePerSecond = raw.RatePerSecond
	}
	if meta.IsDefined("rate_burst") {
		cfg.RateBurst = raw.RateBurst
	}
	if meta.IsDefined("etcd_endpoints") {
		cfg.EtcdEndpoints = raw.EtcdEndpoints
	}
	if meta.IsDefined("worker_pool") {
		cfg.WorkerPool = strings.TrimSpace(raw.WorkerPool)
	}
	return cfg, nil
}

func parseWire(raw string) (codec.Type, error) {
	switch strings.TrimSpace(raw) {
	case "msgpack", "":
		return codec.TypeMsgpack, nil
	case "json":
		return codec.TypeJSON, nil
	default:
		return "", fmt.Errorf("unknown wire codec %q (want json or msgpack)", raw)
	}
}

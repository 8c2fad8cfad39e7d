// Package config implements §6's enumerated configuration knobs as a single
// Config struct, loadable from YAML the way the proxy/gateway repos in the
// retrieved corpus load their own server config.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML can accept either a Go duration
// string ("30s") or a bare integer number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var secs int64
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Dur returns d as a time.Duration.
func (d Duration) Dur() time.Duration { return time.Duration(d) }

// Server groups the listener-level knobs named in §6.
type Server struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	Backlog         int      `yaml:"backlog"`
	MaxConnections  int      `yaml:"max_connections"`
	IdleTimeout     Duration `yaml:"idle_timeout"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	MaxRequestBytes int64    `yaml:"max_request_bytes"`
	MaxHeaderBytes  int      `yaml:"max_header_bytes"`
}

// Pools groups the Memory Pool sizing knobs (§4.6).
type Pools struct {
	EventPoolEnabled bool `yaml:"event_pool_enabled"`
	EventPoolSize    int  `yaml:"event_pool_size"`
	ParamsPoolSize   int  `yaml:"params_pool_size"`
}

// Router groups the route-cache knobs (§4.2).
type Router struct {
	CacheEnabled  bool `yaml:"cache_enabled"`
	CacheCapacity int  `yaml:"cache_capacity"`
}

// Streaming groups the SSE backpressure knobs (§4.5).
type Streaming struct {
	SSEMaxQueueBytes  int `yaml:"sse_max_queue_bytes"`
	SSEDefaultRetryMs int `yaml:"sse_default_retry_ms"`
}

// Concurrency groups the optional worker-pool knobs (§5).
type Concurrency struct {
	WorkerThreads   int `yaml:"worker_threads"`
	ThreadStackSize int `yaml:"thread_stack_size"`
}

// Config is the complete set of knobs enumerated in §6.
type Config struct {
	Server      Server      `yaml:"server"`
	Pools       Pools       `yaml:"pools"`
	Router      Router      `yaml:"router"`
	Streaming   Streaming   `yaml:"streaming"`
	Concurrency Concurrency `yaml:"concurrency"`
}

// Default returns the configuration with every default named across §4 and
// §6: 30s idle timeout, 1000-connection cap, 64 KiB SSE queue, 1024-entry
// route cache.
func Default() Config {
	return Config{
		Server: Server{
			Host:            "0.0.0.0",
			Port:            8080,
			Backlog:         128,
			MaxConnections:  1000,
			IdleTimeout:     Duration(30 * time.Second),
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(15 * time.Second),
			MaxRequestBytes: 4 << 20,
			MaxHeaderBytes:  1 << 20,
		},
		Pools: Pools{
			EventPoolEnabled: true,
			EventPoolSize:    1024,
			ParamsPoolSize:   1024,
		},
		Router: Router{
			CacheEnabled:  true,
			CacheCapacity: 1024,
		},
		Streaming: Streaming{
			SSEMaxQueueBytes:  64 << 10,
			SSEDefaultRetryMs: 3000,
		},
		Concurrency: Concurrency{
			WorkerThreads:   0,
			ThreadStackSize: 0,
		},
	}
}

// Load reads a YAML file into a copy of Default(), so an embedder's file
// only needs to mention the knobs it wants to override.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

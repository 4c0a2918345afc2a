// Package config loads the memcached-sflow-agent's YAML configuration,
// following the same flat load-then-default pattern the original
// telemetry agent used.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for a memcached-sFlow agent
// process: the memcache server it instruments, the sFlow agent identity
// and sampling/polling cadence, where to send datagrams, optional
// persistence, and observability.
type Config struct {
	Server struct {
		Listen     string `yaml:"listen"`
		MaxEntries int    `yaml:"max_entries"`
	} `yaml:"server"`

	SFlow struct {
		AgentIP    string `yaml:"agent_ip"`
		SubAgentID uint32 `yaml:"sub_agent_id"`
		// SamplingN and PollingSecs are pointers so applyDefaults can tell
		// an omitted key apart from one explicitly set to 0 — sampling_n: 0
		// and polling_secs: 0 both mean "disabled" (spec §6), not "use the
		// default," and a bare uint32 zero value can't distinguish the two.
		SamplingN   *uint32           `yaml:"sampling_n"`
		PollingSecs *uint32           `yaml:"polling_secs"`
		MaxDatagram uint32            `yaml:"max_datagram_size"`
		Collectors  []CollectorTarget `yaml:"collectors"`
		DSClass     uint32            `yaml:"ds_class"`
		DSIndex     uint32            `yaml:"ds_index"`
	} `yaml:"sflow"`

	Aggregator struct {
		Enabled  bool   `yaml:"enabled"`
		RedisURL string `yaml:"redis_url"`
	} `yaml:"aggregator"`

	Database struct {
		Enabled       bool   `yaml:"enabled"`
		Host          string `yaml:"host"`
		Port          int    `yaml:"port"`
		Database      string `yaml:"database"`
		User          string `yaml:"user"`
		Password      string `yaml:"password"`
		PoolSize      int    `yaml:"pool_size"`
		BufferSize    int    `yaml:"buffer_size"`
		FlushInterval int    `yaml:"flush_interval"`
	} `yaml:"database"`

	Monitoring struct {
		Enabled        bool `yaml:"enabled"`
		HTTPListen     string `yaml:"http_listen"`
		PrometheusPort int    `yaml:"prometheus_port"`
		StatsInterval  int    `yaml:"stats_interval"`
	} `yaml:"monitoring"`
}

// CollectorTarget is one UDP destination an agent's receivers send
// datagrams to.
type CollectorTarget struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// Load reads and parses filename, then fills in the same kind of
// conservative defaults the original telemetry agent's loadConfig used.
func Load(filename string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = "0.0.0.0:11211"
	}
	if cfg.Server.MaxEntries == 0 {
		cfg.Server.MaxEntries = 1_000_000
	}

	if cfg.SFlow.SamplingN == nil {
		v := uint32(512)
		cfg.SFlow.SamplingN = &v
	}
	if cfg.SFlow.PollingSecs == nil {
		v := uint32(30)
		cfg.SFlow.PollingSecs = &v
	}
	if cfg.SFlow.MaxDatagram == 0 {
		cfg.SFlow.MaxDatagram = 1400
	}
	if len(cfg.SFlow.Collectors) == 0 {
		cfg.SFlow.Collectors = []CollectorTarget{{Address: "127.0.0.1", Port: 6343}}
	}

	if cfg.Database.PoolSize == 0 {
		cfg.Database.PoolSize = 20
	}
	if cfg.Database.BufferSize == 0 {
		cfg.Database.BufferSize = 5000
	}
	if cfg.Database.FlushInterval == 0 {
		cfg.Database.FlushInterval = 5
	}

	if cfg.Monitoring.HTTPListen == "" {
		cfg.Monitoring.HTTPListen = "127.0.0.1:8080"
	}
	if cfg.Monitoring.StatsInterval == 0 {
		cfg.Monitoring.StatsInterval = 30
	}
}

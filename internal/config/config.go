package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from a YAML string like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// Target describes a single monitored endpoint. The target set is fixed for
// the lifetime of the process.
type Target struct {
	Name     string   `yaml:"name"`
	URL      string   `yaml:"url"`
	Interval Duration `yaml:"interval"`
	Timeout  Duration `yaml:"timeout"`
}

// DefaultsConfig holds the fallback interval and timeout for targets that do
// not override them.
type DefaultsConfig struct {
	Interval Duration `yaml:"interval"`
	Timeout  Duration `yaml:"timeout"`
}

// SchedulerConfig holds scheduler loop settings.
type SchedulerConfig struct {
	Tick Duration `yaml:"tick"`
}

// StatusConfig holds read-side aggregation settings.
type StatusConfig struct {
	Window int `yaml:"window"`
}

// WebhookConfig holds alert webhook settings.
type WebhookConfig struct {
	URL      string   `yaml:"url"`
	Cooldown Duration `yaml:"cooldown"`
}

// AlertsConfig holds all alert configuration.
type AlertsConfig struct {
	Webhook WebhookConfig `yaml:"webhook"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Config is the root application configuration.
type Config struct {
	Targets   []Target        `yaml:"targets"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Status    StatusConfig    `yaml:"status"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
}

// Load reads, parses, and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Unmarshal into a raw intermediate so duration errors carry the target name.
	type rawTarget struct {
		Name     string `yaml:"name"`
		URL      string `yaml:"url"`
		Interval string `yaml:"interval"`
		Timeout  string `yaml:"timeout"`
	}
	type rawConfig struct {
		Targets   []rawTarget     `yaml:"targets"`
		Defaults  DefaultsConfig  `yaml:"defaults"`
		Scheduler SchedulerConfig `yaml:"scheduler"`
		Status    StatusConfig    `yaml:"status"`
		Alerts    AlertsConfig    `yaml:"alerts"`
		Server    ServerConfig    `yaml:"server"`
		Storage   StorageConfig   `yaml:"storage"`
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Apply defaults.
	if raw.Defaults.Interval.Duration == 0 {
		raw.Defaults.Interval = Duration{60 * time.Second}
	}
	if raw.Defaults.Timeout.Duration == 0 {
		raw.Defaults.Timeout = Duration{10 * time.Second}
	}
	if raw.Scheduler.Tick.Duration == 0 {
		raw.Scheduler.Tick = Duration{time.Second}
	}
	if raw.Status.Window == 0 {
		raw.Status.Window = 20
	}
	if raw.Server.Address == "" {
		raw.Server.Address = ":8080"
	}
	if raw.Storage.Path == "" {
		raw.Storage.Path = "watchdog.db"
	}

	if raw.Defaults.Interval.Duration < 0 || raw.Defaults.Timeout.Duration < 0 {
		return nil, fmt.Errorf("default interval and timeout must be positive")
	}
	if raw.Scheduler.Tick.Duration < 0 {
		return nil, fmt.Errorf("scheduler tick must be positive")
	}
	if raw.Status.Window < 0 {
		return nil, fmt.Errorf("status window must be positive")
	}
	if len(raw.Targets) == 0 {
		return nil, fmt.Errorf("at least one target must be configured")
	}

	cfg := &Config{
		Defaults:  raw.Defaults,
		Scheduler: raw.Scheduler,
		Status:    raw.Status,
		Alerts:    raw.Alerts,
		Server:    raw.Server,
		Storage:   raw.Storage,
	}

	names := make(map[string]bool, len(raw.Targets))
	for i, rt := range raw.Targets {
		if rt.Name == "" {
			return nil, fmt.Errorf("target[%d]: name is required", i)
		}
		if names[rt.Name] {
			return nil, fmt.Errorf("duplicate target name %q", rt.Name)
		}
		names[rt.Name] = true

		if rt.URL == "" {
			return nil, fmt.Errorf("target %q: url is required", rt.Name)
		}
		u, err := url.Parse(rt.URL)
		if err != nil {
			return nil, fmt.Errorf("target %q: invalid url %q: %w", rt.Name, rt.URL, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("target %q: url scheme must be http or https, got %q", rt.Name, u.Scheme)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("target %q: url %q has no host", rt.Name, rt.URL)
		}

		t := Target{
			Name: rt.Name,
			URL:  rt.URL,
		}

		// Parse interval with default.
		if rt.Interval == "" {
			t.Interval = raw.Defaults.Interval
		} else {
			d, err := time.ParseDuration(rt.Interval)
			if err != nil {
				return nil, fmt.Errorf("target %q: invalid interval %q: %w", rt.Name, rt.Interval, err)
			}
			if d <= 0 {
				return nil, fmt.Errorf("target %q: interval must be positive", rt.Name)
			}
			t.Interval = Duration{d}
		}

		// Parse timeout with default.
		if rt.Timeout == "" {
			t.Timeout = raw.Defaults.Timeout
		} else {
			d, err := time.ParseDuration(rt.Timeout)
			if err != nil {
				return nil, fmt.Errorf("target %q: invalid timeout %q: %w", rt.Name, rt.Timeout, err)
			}
			if d <= 0 {
				return nil, fmt.Errorf("target %q: timeout must be positive", rt.Name)
			}
			t.Timeout = Duration{d}
		}

		cfg.Targets = append(cfg.Targets, t)
	}

	return cfg, nil
}

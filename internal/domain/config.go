package domain

import (
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir string       `json:"data_dir" yaml:"data_dir"`
	Logger  *slog.Logger `json:"-" yaml:"-"`

	Engine    EngineConfig    `json:"engine" yaml:"engine"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
}

type EngineConfig struct {
	// MultiConnection makes a completing for-each follow every outgoing
	// default connection instead of only the first one.
	MultiConnection bool `json:"multi_connection" yaml:"multi_connection"`
}

type SchedulerConfig struct {
	// Interval is the look-ahead window of the job loader: jobs expiring
	// within it are armed on the in-process timer pool, and the loader
	// rescans persisted jobs at this cadence.
	Interval time.Duration `json:"interval" yaml:"interval"`

	// Workers caps the number of concurrently firing jobs.
	Workers int `json:"workers" yaml:"workers"`
}

// UnmarshalYAML accepts human-readable durations such as "30s" for the
// interval. Absent fields keep their current values.
func (c *SchedulerConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Interval string `yaml:"interval"`
		Workers  int    `yaml:"workers"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Interval != "" {
		interval, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return err
		}
		c.Interval = interval
	}
	if raw.Workers != 0 {
		c.Workers = raw.Workers
	}
	return nil
}

type StorageConfig struct {
	// InMemory keeps jobs in process memory instead of the badger store.
	InMemory bool   `json:"in_memory" yaml:"in_memory"`
	Dir      string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		DataDir:   "./data",
		Logger:    slog.Default(),
		Engine:    DefaultEngineConfig(),
		Scheduler: DefaultSchedulerConfig(),
		Storage:   StorageConfig{InMemory: true},
	}
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{}
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval: 10 * time.Minute,
		Workers:  1,
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return ErrInvalidConfig
	}
	if c.Scheduler.Workers <= 0 {
		return ErrInvalidConfig
	}
	if !c.Storage.InMemory && c.Storage.Dir == "" && c.DataDir == "" {
		return ErrInvalidConfig
	}
	return nil
}

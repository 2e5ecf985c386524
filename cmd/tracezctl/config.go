package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the YAML-loadable configuration for the demo CLI, in the shape
// of hrygo-cicd-tool-kit's pkg/config.Config: nested structs, yaml tags,
// time.Duration fields, defaults applied before unmarshal. The tracez
// library itself is never configured from a file - only TracerBuilder -
// this exists purely for the CLI.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Sampling SamplingConfig `yaml:"sampling"`
	Reporter ReporterConfig `yaml:"reporter"`
}

type ServiceConfig struct {
	Name string `yaml:"name"`
}

type SamplingConfig struct {
	Rate float64 `yaml:"rate"`
}

type ReporterConfig struct {
	// Kind selects the demo's reporting sink: "collect" (the default: buffer
	// spans in memory and print them as zipkin JSON at the end of the run) or
	// any other value, such as "log" (LoggingFinishedSpanHandler).
	Kind    string        `yaml:"kind"`
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the configuration used when no --config flag is given.
func DefaultConfig() Config {
	return Config{
		Service:  ServiceConfig{Name: "tracezctl-demo"},
		Sampling: SamplingConfig{Rate: 1.0},
		Reporter: ReporterConfig{Kind: "collect", Timeout: 5 * time.Second},
	}
}

// LoadConfig reads and merges a YAML file over DefaultConfig. An empty path
// is not an error - it just returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

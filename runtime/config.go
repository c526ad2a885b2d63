package runtime

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

type yamlRuntimeConfig struct {
	Mode struct {
		Debug bool `yaml:"debug"`
	} `yaml:"mode"`
	API struct {
		Address     string `yaml:"address"`
		MaxAttempts int    `yaml:"maxAttempts"`
		BackoffBase string `yaml:"backoffBase"`
	} `yaml:"api"`
}

func optionFromRuntimeConfig(cfg yamlRuntimeConfig) Option {
	return OptionFunc(func(o *Options) {
		o.DebugMode = cfg.Mode.Debug

		if cfg.API.Address != "" {
			o.Address = cfg.API.Address
		}
		if cfg.API.MaxAttempts > 0 {
			o.MaxAttempts = cfg.API.MaxAttempts
		}
		if cfg.API.BackoffBase != "" {
			d, err := time.ParseDuration(cfg.API.BackoffBase)
			if err != nil || d <= 0 {
				panic(fmt.Errorf("runtime: invalid backoff base: %q", cfg.API.BackoffBase))
			}
			o.BackoffBase = d
		}
	})
}

func optionFromConfigBytes(b []byte) (Option, error) {
	var cfg yamlRuntimeConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	return optionFromRuntimeConfig(cfg), nil
}

// WithConfig parses YAML bytes following runtime.yml structure and applies it to Options.
// It panics if the YAML is invalid.
func WithConfig(yamlBytes []byte) Option {
	opt, err := optionFromConfigBytes(yamlBytes)
	if err != nil {
		return OptionFunc(func(*Options) {
			panic(fmt.Errorf("runtime.WithConfig: %w", err))
		})
	}
	return opt
}

// WithConfigFile loads a YAML file and applies it to Options.
// It panics if the file cannot be read or YAML is invalid.
func WithConfigFile(path string) Option {
	b, err := os.ReadFile(path)
	if err != nil {
		return OptionFunc(func(*Options) {
			panic(fmt.Errorf("runtime.WithConfigFile(%s): %w", path, err))
		})
	}
	return WithConfig(b)
}

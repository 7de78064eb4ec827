// Package config loads the server configuration from defaults, an optional
// YAML file and IMAGE_PIPELINE_* environment variables, in increasing order
// of priority.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/ironsheep/image-pipeline-mcp/internal/logging"
)

const (
	// EnvPrefix prefixes every environment override:
	// pipeline.max-in-flight is read from IMAGE_PIPELINE_PIPELINE_MAX_IN_FLIGHT.
	EnvPrefix = "IMAGE_PIPELINE"

	// EnvConfigFile names the YAML file to load when no path is given.
	EnvConfigFile = "IMAGE_PIPELINE_CONFIG"

	// EnvLegacyLogLevel set to "debug" forces debug logging.
	EnvLegacyLogLevel = "IMAGE_MCP_LOG_LEVEL"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Log      logging.Config `mapstructure:"log" yaml:"log"`
}

// ServerConfig selects the transport.
type ServerConfig struct {
	// Mode is "stdio" (MCP over stdin/stdout) or "http".
	Mode string `mapstructure:"mode" yaml:"mode" default:"stdio" validate:"oneof=stdio http"`

	// HTTPAddr is the listen address in http mode.
	HTTPAddr string `mapstructure:"http-addr" yaml:"http-addr" default:":8080" validate:"required"`
}

// PipelineConfig bounds and tunes image processing.
type PipelineConfig struct {
	// MaxInFlight is the number of images processed concurrently. 0 means
	// one per CPU.
	MaxInFlight int `mapstructure:"max-in-flight" yaml:"max-in-flight" validate:"min=1"`

	// FailFast stops a batch at the first failing image.
	FailFast bool `mapstructure:"fail-fast" yaml:"fail-fast"`

	// Filter is the interpolation filter.
	Filter string `mapstructure:"filter" yaml:"filter" default:"lanczos" validate:"oneof=lanczos catmullrom linear nearest"`

	// Engine is the resampling library: imaging or nfnt.
	Engine string `mapstructure:"engine" yaml:"engine" default:"imaging" validate:"oneof=imaging nfnt"`

	// MaxBatch is the largest accepted batch.
	MaxBatch int `mapstructure:"max-batch" yaml:"max-batch" default:"101" validate:"min=1,max=101"`

	// MaxPixels is the largest output buffer, in pixels, a single image may
	// produce. Larger targets fail that image with InvalidGeometry.
	MaxPixels int `mapstructure:"max-pixels" yaml:"max-pixels" default:"100000000" validate:"min=1"`

	// OutputDir is where MCP tools write results when the request does not
	// name a directory. Empty means results are returned inline.
	OutputDir string `mapstructure:"output-dir" yaml:"output-dir"`
}

// keys lists every configuration key so that environment variables are
// honored even when the key is absent from the file.
var keys = []string{
	"server.mode", "server.http-addr",
	"pipeline.max-in-flight", "pipeline.fail-fast", "pipeline.filter",
	"pipeline.engine", "pipeline.max-batch", "pipeline.max-pixels",
	"pipeline.output-dir",
	"log.level", "log.format", "log.file", "log.max-size",
	"log.max-backups", "log.max-age", "log.compress",
}

// Default returns the configuration used when nothing is overridden.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to set defaults: %w", err)
	}
	cfg.Pipeline.MaxInFlight = runtime.NumCPU()
	return cfg, nil
}

// Load reads the configuration. path may be empty, in which case
// IMAGE_PIPELINE_CONFIG is consulted; with neither, only defaults and the
// environment apply.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv(EnvLegacyLogLevel) == "debug" {
		cfg.Log.Level = "debug"
	}
	if cfg.Pipeline.MaxInFlight == 0 {
		cfg.Pipeline.MaxInFlight = runtime.NumCPU()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks every section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

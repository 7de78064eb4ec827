// Package logging builds the structured logger shared by the pipeline and
// its transports.
//
// Log lines always go to the console writer the caller passes in (stderr
// for the MCP server, since stdout carries the protocol). When a file is
// configured, a second JSON copy is written there and rotated by size.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config is the logger configuration.
type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string `mapstructure:"level" yaml:"level" default:"info" validate:"oneof=debug info warn error"`

	// Format of console output: console or json.
	Format string `mapstructure:"format" yaml:"format" default:"console" validate:"oneof=console json"`

	// File, when set, receives a rotated JSON copy of every entry.
	File string `mapstructure:"file" yaml:"file"`

	// MaxSize is the size in megabytes at which the file is rotated.
	MaxSize int `mapstructure:"max-size" yaml:"max-size" default:"100" validate:"min=1"`

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `mapstructure:"max-backups" yaml:"max-backups" default:"10" validate:"min=0"`

	// MaxAge is the number of days to keep rotated files.
	MaxAge int `mapstructure:"max-age" yaml:"max-age" default:"7" validate:"min=0"`

	// Compress gzips rotated files.
	Compress bool `mapstructure:"compress" yaml:"compress" default:"true"`
}

// ParseLevel converts a level name to a zapcore.Level.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %s", s)
	}
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.MessageKey = "message"
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	return cfg
}

// New builds a logger writing to console and, when cfg.File is set, to a
// rotated file.
func New(cfg Config, console io.Writer) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var enc zapcore.Encoder
	switch cfg.Format {
	case "json":
		enc = zapcore.NewJSONEncoder(encoderConfig())
	case "", "console":
		enc = zapcore.NewConsoleEncoder(encoderConfig())
	default:
		return nil, fmt.Errorf("unknown log format: %s", cfg.Format)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(console)), level),
	}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

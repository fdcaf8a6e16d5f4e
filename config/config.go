// Package config loads the linkbot host configuration.
package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/robot-bridge/errors"
)

// MaxFrameLimit is the largest frame size the transport accepts.
const MaxFrameLimit = 1 << 20

// Config is the top-level configuration file.
type Config struct {
	Module string       `yaml:"module"`
	Server ServerConfig `yaml:"server"`
	Engine EngineConfig `yaml:"engine"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig describes the daemon server connection.
type ServerConfig struct {
	Address     string        `yaml:"address"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	MaxFrame    int           `yaml:"max_frame,omitempty"`
}

// EngineConfig configures the wasm runtime hosting the daemon.
type EngineConfig struct {
	// MemoryLimitPages caps daemon memory in 64KB pages. 0 means no cap.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages,omitempty"`
	EnableWASI       bool   `yaml:"enable_wasi"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"` // console or json
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Module: "linkbot_daemon.wasm",
		Server: ServerConfig{
			Address:     "127.0.0.1:42000",
			DialTimeout: 5 * time.Second,
			MaxFrame:    MaxFrameLimit,
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "read config "+path)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "decode config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	var problems []string

	if c.Module == "" {
		problems = append(problems, "module path is empty")
	}
	if c.Server.Address == "" {
		problems = append(problems, "server.address is empty")
	}
	if c.Server.DialTimeout < 0 {
		problems = append(problems, "server.dial_timeout is negative")
	}
	if c.Server.MaxFrame <= 0 || c.Server.MaxFrame > MaxFrameLimit {
		problems = append(problems, fmt.Sprintf("server.max_frame must be in (0, %d]", MaxFrameLimit))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, fmt.Sprintf("log.level %q is not a level", c.Log.Level))
	}
	switch c.Log.Encoding {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.encoding %q must be console or json", c.Log.Encoding))
	}

	if len(problems) > 0 {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("%s", strings.Join(problems, "; ")).
			Build()
	}
	return nil
}

// Logger builds a zap logger writing to stderr.
func (l LogConfig) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log level")
	}

	var zc zap.Config
	if l.Encoding == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = l.Encoding
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.DisableStacktrace = level > zapcore.DebugLevel

	return zc.Build()
}

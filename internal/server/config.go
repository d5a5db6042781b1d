package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "CLASSBOARD_"

// disabledAddr turns a listener off when given as its address.
const disabledAddr = "off"

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `env:"BURST" envDefault:"200"`
	RefillInterval time.Duration `env:"INTERVAL" envDefault:"1s"`
}

// Config holds the server settings.
type Config struct {
	// TCPAddr is the raw line-protocol listener. "off" disables it.
	TCPAddr string `env:"TCP_ADDR" envDefault:":5001"`
	// HTTPAddr serves /ws, /healthz, /metrics and /api/room. "off" disables it.
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:8080"`

	MaxLineBytes int64         `env:"MAX_LINE_BYTES" envDefault:"4096"`
	SendBuffer   int           `env:"SEND_BUFFER" envDefault:"256"`
	JoinTimeout  time.Duration `env:"JOIN_TIMEOUT" envDefault:"10s"`

	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`

	EnforceBoardLock bool `env:"ENFORCE_BOARD_LOCK" envDefault:"true"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

const (
	defaultMaxLineBytes = 4096
	defaultSendBuffer   = 256
	defaultJoinTimeout  = 10 * time.Second
	defaultBurst        = 200
)

// NewConfig returns a Config populated with default values for all settings,
// ignoring the process environment.
func NewConfig() Config {
	cfg, err := parseConfig(map[string]string{})
	if err != nil {
		// Defaults are static; failing to parse them is a programming error.
		panic(err)
	}
	return cfg
}

// LoadConfig reads CLASSBOARD_* environment variables on top of the defaults.
func LoadConfig() (Config, error) {
	return parseConfig(nil)
}

func parseConfig(environment map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{Prefix: EnvPrefix, Environment: environment}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg.sanitize(), nil
}

// sanitize replaces unusable values with defaults.
func (cfg Config) sanitize() Config {
	cfg.TCPAddr = normalizeAddr(cfg.TCPAddr)
	cfg.HTTPAddr = normalizeAddr(cfg.HTTPAddr)

	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = defaultMaxLineBytes
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = defaultJoinTimeout
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaultBurst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}

	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.AllowedOrigins = origins

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	return cfg
}

func normalizeAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if strings.EqualFold(addr, disabledAddr) {
		return ""
	}
	return addr
}

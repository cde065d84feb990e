// Package config loads service configuration from a YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/zephyrtronium/calcpipe/internal/logging"
)

// Environment variables. Each one overrides the matching file setting when it
// is set and non-empty.
const (
	EnvConfigFile = "CALCPIPE_CONFIG_FILE"

	EnvLogLevel      = "CALCPIPE_LOG_LEVEL"
	EnvLogIncludeSrc = "CALCPIPE_LOG_INCLUDE_SRC"
	EnvLogToFile     = "CALCPIPE_LOG_TO_FILE"
	EnvLogFilename   = "CALCPIPE_LOG_FILENAME"

	EnvGinDebugMode = "GIN_DEBUG_MODE"
	EnvPort         = "CALCPIPE_PORT"
	EnvAllowOrigins = "CALCPIPE_CORS_ALLOW_ORIGINS"
	EnvAPIKeys      = "CALCPIPE_API_KEYS"

	EnvArithURL     = "CALCPIPE_ARITH_URL"
	EnvArithAPIKey  = "CALCPIPE_ARITH_API_KEY"
	EnvArithTimeout = "CALCPIPE_ARITH_TIMEOUT"
	EnvArithDelay   = "CALCPIPE_ARITH_DELAY"

	EnvEvalTimeout   = "CALCPIPE_EVAL_TIMEOUT"
	EnvRetryAttempts = "CALCPIPE_RETRY_ATTEMPTS"

	EnvHistoryDSN = "CALCPIPE_HISTORY_DSN"
)

// Config is the configuration shared by the service binaries. Each binary
// uses the sections it needs.
type Config struct {
	Logging    logging.Config `yaml:"logging"`
	Gin        GinConfig      `yaml:"gin"`
	Arithmetic ArithConfig    `yaml:"arithmetic"`
	Evaluator  EvalConfig     `yaml:"evaluator"`
	History    HistoryConfig  `yaml:"history"`
}

// GinConfig configures an HTTP server.
type GinConfig struct {
	DebugMode    bool     `yaml:"debug_mode"`
	Port         string   `yaml:"port"`
	AllowOrigins []string `yaml:"allow_origins"`
	// APIKeys, if not empty, are the keys accepted in the Api-Key header.
	APIKeys []string `yaml:"api_keys"`
}

// ArithConfig configures the arithmetic service and its clients.
type ArithConfig struct {
	URL     string `yaml:"url"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
	// Delay is an artificial latency added to every operation by the server.
	Delay string `yaml:"delay"`
}

// EvalConfig configures the evaluation service.
type EvalConfig struct {
	Timeout string      `yaml:"timeout"`
	Retry   RetryConfig `yaml:"retry"`
}

// RetryConfig bounds retries of evaluations that failed in the arithmetic
// service.
type RetryConfig struct {
	Attempts   int    `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

// HistoryConfig configures the evaluation history store. An empty DSN
// disables it.
type HistoryConfig struct {
	DSN string `yaml:"dsn"`
}

// Default returns the configuration used for settings that are absent from
// both the file and the environment.
func Default() Config {
	return Config{
		Logging: logging.Config{Level: "info", MaxSize: 100, MaxAge: 28, MaxBackups: 3},
		Gin:     GinConfig{Port: "8080"},
		Arithmetic: ArithConfig{
			URL:     "http://localhost:8081",
			Timeout: "5s",
			Delay:   "0s",
		},
		Evaluator: EvalConfig{
			Timeout: "30s",
			Retry:   RetryConfig{Attempts: 3, Backoff: "100ms", MaxBackoff: "2s"},
		},
	}
}

// Load reads the configuration. If path is empty, the file named by
// CALCPIPE_CONFIG_FILE is used, and if that is also empty, no file is read.
// Environment overrides are applied last.
func Load(path string) (Config, error) {
	conf := Default()
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.UnmarshalStrict(b, &conf); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := conf.fromEnv(); err != nil {
		return Config{}, err
	}
	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

func (c *Config) fromEnv() error {
	str(&c.Logging.Level, EnvLogLevel)
	str(&c.Logging.Filename, EnvLogFilename)
	if err := boolean(&c.Logging.IncludeSrc, EnvLogIncludeSrc); err != nil {
		return err
	}
	if err := boolean(&c.Logging.ToFile, EnvLogToFile); err != nil {
		return err
	}

	if err := boolean(&c.Gin.DebugMode, EnvGinDebugMode); err != nil {
		return err
	}
	str(&c.Gin.Port, EnvPort)
	list(&c.Gin.AllowOrigins, EnvAllowOrigins)
	list(&c.Gin.APIKeys, EnvAPIKeys)

	str(&c.Arithmetic.URL, EnvArithURL)
	str(&c.Arithmetic.APIKey, EnvArithAPIKey)
	str(&c.Arithmetic.Timeout, EnvArithTimeout)
	str(&c.Arithmetic.Delay, EnvArithDelay)

	str(&c.Evaluator.Timeout, EnvEvalTimeout)
	if v := os.Getenv(EnvRetryAttempts); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvRetryAttempts, v, err)
		}
		c.Evaluator.Retry.Attempts = n
	}

	str(&c.History.DSN, EnvHistoryDSN)
	return nil
}

// Validate checks that every duration parses and that counts are sensible.
func (c *Config) Validate() error {
	durations := []struct {
		name, v string
	}{
		{"arithmetic.timeout", c.Arithmetic.Timeout},
		{"arithmetic.delay", c.Arithmetic.Delay},
		{"evaluator.timeout", c.Evaluator.Timeout},
		{"evaluator.retry.backoff", c.Evaluator.Retry.Backoff},
		{"evaluator.retry.max_backoff", c.Evaluator.Retry.MaxBackoff},
	}
	for _, d := range durations {
		if _, err := ParseDuration(d.v); err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
	}
	if c.Evaluator.Retry.Attempts < 1 {
		return fmt.Errorf("evaluator.retry.attempts must be at least 1, not %d", c.Evaluator.Retry.Attempts)
	}
	return nil
}

// ParseDuration parses a duration setting. The empty string is zero.
func ParseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid time duration '%s': %w", value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative time duration '%s'", value)
	}
	return d, nil
}

// MustDuration parses a duration that Validate has already checked.
func MustDuration(value string) time.Duration {
	d, err := ParseDuration(value)
	if err != nil {
		panic(err)
	}
	return d
}

func str(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func list(dst *[]string, env string) {
	v := os.Getenv(env)
	if v == "" {
		return
	}
	var r []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			r = append(r, s)
		}
	}
	*dst = r
}

func boolean(dst *bool, env string) error {
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", env, v, err)
	}
	*dst = b
	return nil
}

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables overriding the engine settings.
const (
	EnvJobs           = "BLUEETL_JOBLIB_JOBS"
	EnvVerbose        = "BLUEETL_JOBLIB_VERBOSE"
	EnvBackend        = "BLUEETL_JOBLIB_BACKEND"
	EnvWorkerLogLevel = "BLUEETL_SUBPROCESS_LOGGING_LEVEL"
	EnvCacheTTL       = "BLUEETL_CACHE_TTL"
)

// DefaultBackend is the backend reported when none is configured. Every
// backend runs jobs on goroutines.
const DefaultBackend = "loky"

var backends = []string{"goroutine", "loky", "multiprocessing", "threading"}

// Engine holds the settings of the execution engine.
type Engine struct {
	// Jobs is the degree of parallelism; 0 means auto.
	Jobs JobCount `yaml:"jobs"`
	// Verbose is nil when not configured; see VerboseLevel.
	Verbose *int   `yaml:"verbose"`
	Backend string `yaml:"backend"`
	// WorkerLogLevel is empty to inherit the application level.
	WorkerLogLevel string   `yaml:"worker_log_level"`
	CacheTTL       Duration `yaml:"cache_ttl"`
	QueueSize      int      `yaml:"queue_size"`
}

// Default returns the settings used when nothing is configured.
func Default() *Engine {
	return &Engine{Backend: DefaultBackend}
}

// Load reads the engine settings: defaults, then the YAML file at path when
// path is not empty, then the environment as seen through env. A nil env
// reads the process environment.
func Load(path string, env func(string) (string, bool)) (*Engine, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read engine config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse engine config %s: %w", path, err)
		}
	}
	if env == nil {
		env = os.LookupEnv
	}
	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (e *Engine) applyEnv(env func(string) (string, bool)) error {
	if v, ok := env(EnvJobs); ok && v != "" {
		jobs, err := ParseJobCount(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvJobs, err)
		}
		e.Jobs = jobs
	}
	if v, ok := env(EnvVerbose); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvVerbose, err)
		}
		e.Verbose = &n
	}
	if v, ok := env(EnvBackend); ok && v != "" {
		e.Backend = strings.TrimSpace(v)
	}
	if v, ok := env(EnvWorkerLogLevel); ok {
		e.WorkerLogLevel = strings.TrimSpace(v)
	}
	if v, ok := env(EnvCacheTTL); ok && v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCacheTTL, err)
		}
		e.CacheTTL = Duration(d)
	}
	return nil
}

// Validate checks the settings for consistency.
func (e *Engine) Validate() error {
	var errs []error
	if e.Jobs < -1 {
		errs = append(errs, fmt.Errorf("jobs must be -1, auto or positive, got %d", e.Jobs))
	}
	if !slices.Contains(backends, strings.ToLower(e.Backend)) {
		errs = append(errs, fmt.Errorf("unknown backend %q, expected one of %v", e.Backend, backends))
	}
	if _, err := e.WorkerLevel(); err != nil {
		errs = append(errs, err)
	}
	if e.CacheTTL < 0 {
		errs = append(errs, errors.New("cache_ttl must not be negative"))
	}
	if e.QueueSize < 0 {
		errs = append(errs, errors.New("queue_size must not be negative"))
	}
	return errors.Join(errs...)
}

// VerboseLevel returns the configured verbosity or, when unset, 0 for
// applications logging at warning level or above and 10 otherwise.
func (e *Engine) VerboseLevel(appLevel slog.Level) int {
	if e.Verbose != nil {
		return *e.Verbose
	}
	if appLevel >= slog.LevelWarn {
		return 0
	}
	return 10
}

// WorkerLevel parses WorkerLogLevel. It returns nil when workers inherit the
// application level.
func (e *Engine) WorkerLevel() (*slog.Level, error) {
	if e.WorkerLogLevel == "" {
		return nil, nil
	}
	level, err := ParseLevel(e.WorkerLogLevel)
	if err != nil {
		return nil, fmt.Errorf("worker_log_level: %w", err)
	}
	return &level, nil
}

// ParseLevel maps a level name to a slog level. Besides the slog names it
// accepts "warning" and "critical".
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "critical":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// JobCount is a degree of parallelism: positive, -1 for every CPU or 0 for
// auto.
type JobCount int

// ParseJobCount accepts an integer or "auto".
func ParseJobCount(s string) (JobCount, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "auto") || s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid job count %q", s)
	}
	if n == 0 || n < -1 {
		return 0, fmt.Errorf("invalid job count %d: use -1, auto or a positive number", n)
	}
	return JobCount(n), nil
}

func (j *JobCount) UnmarshalYAML(node *yaml.Node) error {
	n, err := ParseJobCount(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*j = n
	return nil
}

// Duration is a time.Duration written as "90s" or "10m" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns d as a time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

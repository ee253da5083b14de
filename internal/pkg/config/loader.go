package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigLoadResult is the outcome of loading one environment variable.
//
// Loading never fails: a value that cannot be parsed or does not pass its
// validator is replaced by the default, and a warning describing the
// replacement is returned alongside it.
//
// Example:
//
//	result := LoadEnvDuration("POLL_INTERVAL", 10*time.Second, ValidatePositiveDuration)
//	if result.FallbackApplied {
//	    logger.Warn("config fallback", slog.Any("warnings", result.Warnings))
//	}
//	interval := result.Value.(time.Duration)
type ConfigLoadResult struct {
	Value           interface{}
	Warnings        []string
	FallbackApplied bool
}

// LoadEnvString returns the variable, or defaultValue when it is unset or empty.
// No validation is performed.
func LoadEnvString(envKey, defaultValue string) string {
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return defaultValue
}

// LoadEnvWithFallback loads a string and validates it.
// The validator may be nil.
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) ConfigLoadResult {
	return load(envKey, defaultValue, func(s string) (string, error) { return s, nil }, validator)
}

// LoadEnvDuration loads a time.ParseDuration value and validates it.
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) ConfigLoadResult {
	return load(envKey, defaultValue, time.ParseDuration, validator)
}

// LoadEnvInt loads a base-10 integer and validates it.
// Surrounding whitespace is tolerated; decimals are not.
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) ConfigLoadResult {
	parse := func(s string) (int, error) {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, fmt.Errorf("invalid integer format")
		}
		return n, nil
	}
	return load(envKey, defaultValue, parse, validator)
}

// LoadEnvFloat loads a float64 and validates it.
func LoadEnvFloat(envKey string, defaultValue float64, validator func(float64) error) ConfigLoadResult {
	parse := func(s string) (float64, error) {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number format")
		}
		return f, nil
	}
	return load(envKey, defaultValue, parse, validator)
}

// LoadEnvBool loads a boolean. Accepted spellings are those of strconv.ParseBool.
func LoadEnvBool(envKey string, defaultValue bool) ConfigLoadResult {
	parse := func(s string) (bool, error) {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return false, fmt.Errorf("invalid boolean format, expected 'true' or 'false'")
		}
		return b, nil
	}
	return load[bool](envKey, defaultValue, parse, nil)
}

func load[T any](envKey string, defaultValue T, parse func(string) (T, error), validator func(T) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	fallback := func(err error) ConfigLoadResult {
		return ConfigLoadResult{
			Value: defaultValue,
			Warnings: []string{fmt.Sprintf(
				"Invalid %s='%s': %v, falling back to default '%v'", envKey, raw, err, defaultValue,
			)},
			FallbackApplied: true,
		}
	}

	value, err := parse(raw)
	if err != nil {
		return fallback(err)
	}
	if validator != nil {
		if err := validator(value); err != nil {
			return fallback(err)
		}
	}
	return ConfigLoadResult{Value: value}
}

// Loader loads the variables of one component, logging and counting every
// fallback it applies.
//
// Example:
//
//	l := config.NewLoader("poller", logger, metrics)
//	cfg.Interval = l.Duration("POLL_INTERVAL", cfg.Interval, validateInterval)
//	cfg.Concurrency = l.Int("STATS_CONCURRENCY", cfg.Concurrency, validateConcurrency)
//	l.Finish()
type Loader struct {
	component string
	logger    *slog.Logger
	metrics   *ConfigMetrics
	fallbacks []string
}

// NewLoader creates a loader. logger and metrics may be nil.
func NewLoader(component string, logger *slog.Logger, metrics *ConfigMetrics) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{component: component, logger: logger, metrics: metrics}
}

// String loads a validated string.
func (l *Loader) String(envKey, defaultValue string, validator func(string) error) string {
	return l.observe(envKey, LoadEnvWithFallback(envKey, defaultValue, validator)).(string)
}

// Duration loads a validated duration.
func (l *Loader) Duration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) time.Duration {
	return l.observe(envKey, LoadEnvDuration(envKey, defaultValue, validator)).(time.Duration)
}

// Int loads a validated integer.
func (l *Loader) Int(envKey string, defaultValue int, validator func(int) error) int {
	return l.observe(envKey, LoadEnvInt(envKey, defaultValue, validator)).(int)
}

// Float loads a validated float.
func (l *Loader) Float(envKey string, defaultValue float64, validator func(float64) error) float64 {
	return l.observe(envKey, LoadEnvFloat(envKey, defaultValue, validator)).(float64)
}

// Bool loads a boolean.
func (l *Loader) Bool(envKey string, defaultValue bool) bool {
	return l.observe(envKey, LoadEnvBool(envKey, defaultValue)).(bool)
}

// Fallbacks returns the variables that were replaced by their defaults.
func (l *Loader) Fallbacks() []string {
	return append([]string(nil), l.fallbacks...)
}

// Finish records the load timestamp and the fallback gauge.
// It returns true when at least one fallback was applied.
func (l *Loader) Finish() bool {
	active := len(l.fallbacks) > 0
	if l.metrics != nil {
		l.metrics.SetFallbackActive(l.component, active)
		l.metrics.RecordLoadTimestamp()
	}
	if active {
		l.logger.Warn("Configuration loaded with fallbacks",
			slog.String("component", l.component),
			slog.Any("fields", l.fallbacks))
	}
	return active
}

func (l *Loader) observe(envKey string, res ConfigLoadResult) interface{} {
	if !res.FallbackApplied {
		return res.Value
	}
	l.fallbacks = append(l.fallbacks, envKey)
	for _, w := range res.Warnings {
		l.logger.Warn("Configuration fallback applied",
			slog.String("component", l.component),
			slog.String("field", envKey),
			slog.String("warning", w))
	}
	if l.metrics != nil {
		l.metrics.RecordValidationError(envKey)
		l.metrics.RecordFallback(envKey, "default")
	}
	return res.Value
}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultTargetURL is used when neither --target nor API_URL is set.
const DefaultTargetURL = "http://backend:8000/api/v1"

type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

type Config struct {
	TargetURL      string            `mapstructure:"target"`
	Headers        map[string]string `mapstructure:"headers"`
	Concurrency    int               `mapstructure:"concurrency"`
	Duration       time.Duration     `mapstructure:"duration"`
	ReadRatio      float64           `mapstructure:"read_ratio"`
	ThinkTimeMin   time.Duration     `mapstructure:"think_time_min"`
	ThinkTimeMax   time.Duration     `mapstructure:"think_time_max"`
	Timeout        time.Duration     `mapstructure:"timeout"`
	Rate           int               `mapstructure:"rate"`
	Seed           int64             `mapstructure:"seed"`
	ReadMix        map[string]int    `mapstructure:"read_mix"`
	WriteMix       map[string]int    `mapstructure:"write_mix"`
	AuthToken      string            `mapstructure:"auth_token"`
	ErrorBodyLimit int               `mapstructure:"error_body_limit"`
	LogErrors      bool              `mapstructure:"log_errors"`
	LogLevel       string            `mapstructure:"log_level"`
	LogFormat      string            `mapstructure:"log_format"`
	Output         OutputFormat      `mapstructure:"output"`
	Progress       bool              `mapstructure:"progress"`
	Dashboard      bool              `mapstructure:"dashboard"`
	HistoryFile    string            `mapstructure:"history_file"`
	MetricsAddr    string            `mapstructure:"metrics_addr"`
	Tracing        TracingConfig     `mapstructure:"tracing"`
	Thresholds     []string          `mapstructure:"thresholds"`
	ConfigFile     string            `mapstructure:"-"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	ServiceName string  `mapstructure:"service_name"`
}

// Enabled reports whether spans should be exported.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// ShouldPropagate reports whether W3C trace headers are injected into requests.
func (t TracingConfig) ShouldPropagate() bool {
	return t.Enabled()
}

// Defaults returns the configuration used before files, env and flags apply.
func Defaults() *Config {
	return &Config{
		TargetURL:      DefaultTargetURL,
		Headers:        map[string]string{},
		Concurrency:    10,
		Duration:       300 * time.Second,
		ReadRatio:      0.8,
		ThinkTimeMin:   100 * time.Millisecond,
		ThinkTimeMax:   time.Second,
		Timeout:        30 * time.Second,
		ErrorBodyLimit: 200,
		LogErrors:      true,
		LogLevel:       "info",
		LogFormat:      "console",
		Output:         OutputText,
		Progress:       true,
		Tracing:        TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}
}

const (
	highConcurrency = 500
	highRate        = 1000
)

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	target := strings.TrimSpace(c.TargetURL)
	if target == "" {
		issues = append(issues, "target is required (use --help for usage information)")
	} else if u, err := url.Parse(target); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		issues = append(issues, fmt.Sprintf("target %q must be an absolute http(s) URL", target))
	}

	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if c.Duration < time.Second {
		issues = append(issues, "duration must be >= 1s")
	}
	if !(c.ReadRatio >= 0 && c.ReadRatio <= 1) {
		issues = append(issues, "read ratio must be between 0.0 and 1.0")
	}
	if c.ThinkTimeMin < 0 {
		issues = append(issues, "think time min must be >= 0")
	}
	if c.ThinkTimeMax < c.ThinkTimeMin {
		issues = append(issues, "think time max must be >= think time min")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.ErrorBodyLimit < 0 {
		issues = append(issues, "error body limit must be >= 0")
	}

	issues = append(issues, validateMix("read_mix", c.ReadMix)...)
	issues = append(issues, validateMix("write_mix", c.WriteMix)...)

	switch c.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		issues = append(issues, fmt.Sprintf("output must be 'text', 'json', or 'yaml', got %q", c.Output))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log level %q is not supported", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log format must be 'console' or 'json', got %q", c.LogFormat))
	}

	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// Warnings lists settings that are valid but worth a second look before
// pointing the run at a shared system.
func (c Config) Warnings() []string {
	var warnings []string
	if c.Concurrency > highConcurrency {
		warnings = append(warnings, fmt.Sprintf("high concurrency configured (%d workers), ensure you have authorization to test the target system", c.Concurrency))
	}
	if c.Rate > highRate {
		warnings = append(warnings, fmt.Sprintf("high rate limit configured (%d RPS), ensure you have authorization to test the target system", c.Rate))
	}
	return warnings
}

func validateMix(label string, mix map[string]int) []string {
	if len(mix) == 0 {
		return nil
	}
	var issues []string
	total := 0
	for name, weight := range mix {
		if strings.TrimSpace(name) == "" {
			issues = append(issues, fmt.Sprintf("%s: recipe name cannot be empty", label))
		}
		if weight < 0 {
			issues = append(issues, fmt.Sprintf("%s.%s: weight must be >= 0", label, name))
		}
		total += weight
	}
	if total <= 0 {
		issues = append(issues, fmt.Sprintf("%s: weights must sum to > 0", label))
	}
	return issues
}

func validateTracing(t TracingConfig) []string {
	if !t.Enabled() {
		return nil
	}
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if !(t.SampleRate >= 0 && t.SampleRate <= 1) {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}

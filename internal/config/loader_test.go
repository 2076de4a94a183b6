package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		input interface{}
		want  string
	}{
		{"hello", "hello"},
		{123, "123"},
		{true, "true"},
		{nil, ""},
		{[]byte("bytes"), "bytes"},
	}

	for _, tt := range tests {
		got, err := asString(tt.input)
		if err != nil {
			t.Errorf("asString(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asString(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		input interface{}
		want  int
	}{
		{123, 123},
		{"456", 456},
		{int64(789), 789},
		{float64(10.0), 10},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asInt(tt.input)
		if err != nil {
			t.Errorf("asInt(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asInt(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestAsBool(t *testing.T) {
	tests := []struct {
		input interface{}
		want  bool
	}{
		{true, true},
		{"true", true},
		{"1", true},
		{false, false},
		{"false", false},
		{"0", false},
		{nil, false},
	}

	for _, tt := range tests {
		got, err := asBool(tt.input)
		if err != nil {
			t.Errorf("asBool(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asBool(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{time.Second, time.Second},
		{"1m", time.Minute},
		{"300", 300 * time.Second},
		{"0.5", 500 * time.Millisecond},
		{10, 10 * time.Second},
		{1.5, 1500 * time.Millisecond},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}

	if _, err := asDuration("soon"); err == nil {
		t.Errorf("asDuration(soon) expected error")
	}
}

func TestAsIntMap(t *testing.T) {
	got, err := asIntMap(map[string]interface{}{"list_files": 2, "list_users": "3"})
	if err != nil {
		t.Fatalf("asIntMap() error = %v", err)
	}
	if got["list_files"] != 2 || got["list_users"] != 3 {
		t.Errorf("asIntMap() = %v", got)
	}

	if _, err := asIntMap(map[string]interface{}{"list_files": "many"}); err == nil {
		t.Errorf("asIntMap() expected error for non-numeric weight")
	}
}

func TestAsStringSliceKeepsExpressionsWhole(t *testing.T) {
	got, err := asStringSlice("request_duration:p99 < 500")
	if err != nil {
		t.Fatalf("asStringSlice() error = %v", err)
	}
	if len(got) != 1 || got[0] != "request_duration:p99 < 500" {
		t.Errorf("asStringSlice() = %q, want the expression as one entry", got)
	}

	got, err = asStringSlice([]interface{}{"requests:count > 1", "success_rate:pct >= 99"})
	if err != nil {
		t.Fatalf("asStringSlice() error = %v", err)
	}
	if len(got) != 2 || got[1] != "success_rate:pct >= 99" {
		t.Errorf("asStringSlice() = %q", got)
	}
}

func TestBlankEnvironmentValuesAreUnset(t *testing.T) {
	if n, err := asInt("  "); err != nil || n != 0 {
		t.Errorf("asInt(blank) = %d, %v", n, err)
	}
	if b, err := asBool(" "); err != nil || b {
		t.Errorf("asBool(blank) = %v, %v", b, err)
	}
	if n, err := asInt(" 42 "); err != nil || n != 42 {
		t.Errorf("asInt(padded) = %d, %v", n, err)
	}
}

func TestApplyConfigSettings(t *testing.T) {
	cfg := Defaults()
	settings := map[string]interface{}{
		"api_url":     "http://example.com/api/v1",
		"concurrency": 20,
		"timeout":     "5s",
		"headers": map[string]interface{}{
			"x-client": "loadgen",
		},
		"write_mix":  map[string]interface{}{"create_file": 1},
		"log_errors": false,
		"progress":   "false",
		"dashboard":  "true",
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		t.Fatalf("applyConfigSettings() error = %v", err)
	}

	if cfg.TargetURL != "http://example.com/api/v1" {
		t.Errorf("TargetURL = %q, want http://example.com/api/v1", cfg.TargetURL)
	}
	if cfg.Concurrency != 20 {
		t.Errorf("Concurrency = %d, want 20", cfg.Concurrency)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
	if cfg.Headers["X-Client"] != "loadgen" {
		t.Errorf("Headers[X-Client] = %q, want loadgen", cfg.Headers["X-Client"])
	}
	if cfg.WriteMix["create_file"] != 1 {
		t.Errorf("WriteMix = %v", cfg.WriteMix)
	}
	if cfg.LogErrors {
		t.Errorf("LogErrors = true, want false")
	}
	if cfg.Progress {
		t.Errorf("Progress = true, want false")
	}
	if !cfg.Dashboard {
		t.Errorf("Dashboard = false, want true from settings")
	}
}

func TestApplyConfigSettingsRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	err := applyConfigSettings(cfg, map[string]interface{}{"duration": "forever"})
	if err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := Defaults()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)

	args := []string{
		"--concurrency=5",
		"--read-ratio=0.25",
		"--header=X-Test=123",
		"--no-progress",
		"--dashboard",
		"--read-mix=list_files=4,list_organizations=1",
		"--tracing-endpoint=collector:4318",
		"--tracing-protocol=HTTP",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if err := applyFlagOverrides(cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}

	if cfg.Concurrency != 5 {
		t.Errorf("Concurrency = %d, want 5", cfg.Concurrency)
	}
	if cfg.ReadRatio != 0.25 {
		t.Errorf("ReadRatio = %v, want 0.25", cfg.ReadRatio)
	}
	if cfg.Headers["X-Test"] != "123" {
		t.Errorf("Headers[X-Test] = %q, want 123", cfg.Headers["X-Test"])
	}
	if cfg.Progress {
		t.Errorf("Progress = true, want false")
	}
	if !cfg.Dashboard {
		t.Errorf("Dashboard = false, want true")
	}
	if cfg.ReadMix["list_files"] != 4 || cfg.ReadMix["list_organizations"] != 1 {
		t.Errorf("ReadMix = %v", cfg.ReadMix)
	}
	if cfg.Tracing.Endpoint != "collector:4318" || cfg.Tracing.Protocol != "http" {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if cfg.Duration != 300*time.Second {
		t.Errorf("unchanged flags must not override: Duration = %s", cfg.Duration)
	}
}

func TestApplyFlagOverridesRejectsMalformedHeader(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)
	if err := fs.Parse([]string{"--header=no-equals-sign"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := applyFlagOverrides(Defaults(), fs); err == nil {
		t.Fatal("expected error for malformed header")
	}
}

func TestLoader_Load(t *testing.T) {
	t.Setenv("API_URL", "")
	t.Setenv("LOADGEN_TARGET", "")
	loader := NewLoader()
	args := []string{
		"--target=http://example.com/",
		"--concurrency=2",
		"--output=YAML",
	}

	cfg, err := loader.Load(args)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "http://example.com" {
		t.Errorf("TargetURL = %q, want http://example.com", cfg.TargetURL)
	}
	if cfg.Concurrency != 2 {
		t.Errorf("Concurrency = %d, want 2", cfg.Concurrency)
	}
	if cfg.Output != OutputYAML {
		t.Errorf("Output = %q, want yaml", cfg.Output)
	}
}

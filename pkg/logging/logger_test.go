package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Level = %s, want info", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Pretty should default to false")
	}
	if cfg.Service != ServiceName {
		t.Errorf("Service = %q, want %q", cfg.Service, ServiceName)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{input: "debug", want: LevelDebug},
		{input: "INFO", want: LevelInfo},
		{input: "", want: LevelInfo},
		{input: "warn", want: LevelWarn},
		{input: " warning ", want: LevelWarn},
		{input: "error", want: LevelError},
		{input: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseLevel(%q) should fail", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLevel(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestSetup_ServiceFields(t *testing.T) {
	tests := []struct {
		name    string
		service string
		version string
	}{
		{name: "both", service: "card-gateway", version: "1.4.0"},
		{name: "service_only", service: "card-gateway"},
		{name: "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: LevelInfo, Output: buf, Service: tt.service, Version: tt.version})
			logger.Info().Str("key", "img:42").Msg("Generated artifact")

			var record map[string]any
			if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
				t.Fatalf("output is not a JSON line: %v (%q)", err, buf.String())
			}

			for field, want := range map[string]string{"service": tt.service, "version": tt.version} {
				got, present := record[field]
				if want == "" {
					if present {
						t.Errorf("%s = %v, want it omitted", field, got)
					}
					continue
				}
				if got != want {
					t.Errorf("%s = %v, want %q", field, got, want)
				}
			}
			if record["key"] != "img:42" || record["message"] != "Generated artifact" {
				t.Errorf("unexpected record %v", record)
			}
			if _, ok := record["time"]; !ok {
				t.Error("record should carry a timestamp")
			}
		})
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  []string
		skip  []string
	}{
		{level: LevelDebug, want: []string{"cache miss", "generated", "retrying", "failed"}},
		{level: LevelInfo, want: []string{"generated", "retrying", "failed"}, skip: []string{"cache miss"}},
		{level: LevelWarn, want: []string{"retrying", "failed"}, skip: []string{"cache miss", "generated"}},
		{level: LevelError, want: []string{"failed"}, skip: []string{"cache miss", "generated", "retrying"}},
		{level: "bogus", want: []string{"generated"}, skip: []string{"cache miss"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := &bytes.Buffer{}
			Setup(Config{Level: tt.level, Output: buf})
			t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

			logger := NewLogger("generation")
			logger.Debug().Msg("cache miss")
			logger.Info().Msg("generated")
			logger.Warn().Msg("retrying")
			logger.Error().Msg("failed")

			out := buf.String()
			for _, msg := range tt.want {
				if !strings.Contains(out, msg) {
					t.Errorf("%q missing at level %s", msg, tt.level)
				}
			}
			for _, msg := range tt.skip {
				if strings.Contains(out, msg) {
					t.Errorf("%q should be filtered at level %s", msg, tt.level)
				}
			}
		})
	}
}

func TestNewLogger_Component(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf, Service: ServiceName})

	logger := NewLogger("lookup")
	logger.Info().Msg("Resolved character")

	out := buf.String()
	for _, want := range []string{`"component":"lookup"`, `"service":"card-gateway"`, "Resolved character"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q should contain %s", out, want)
		}
	}
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Output: buf, Pretty: true})
	logger.Info().Msg("Renderer ready")

	out := buf.String()
	if !strings.Contains(out, "Renderer ready") {
		t.Errorf("output %q should contain the message", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("pretty output should not be JSON: %q", out)
	}
}

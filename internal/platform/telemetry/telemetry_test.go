package telemetry_test

import (
	"context"
	"testing"

	"github.com/MahdiBaghbani/busyday-go/internal/platform/config"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/telemetry"
)

func TestSetup_NoopWhenDisabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.TelemetryConfig
	}{
		{"disabled", config.TelemetryConfig{Enabled: false, Endpoint: "localhost:4318"}},
		{"no endpoint", config.TelemetryConfig{Enabled: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := telemetry.Setup(context.Background(), tt.cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			if err := shutdown(ctx); err != nil {
				t.Fatalf("noop shutdown should not error: %v", err)
			}
		})
	}
}

func TestSetup_CreatesProvider(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		ratio    float64
	}{
		// Non-routable addresses so no export happens.
		{"host and port", "192.0.2.1:4318", 1},
		{"url", "http://192.0.2.1:4318", 0.5},
		{"never sample", "192.0.2.1:4318", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := telemetry.Setup(context.Background(), config.TelemetryConfig{
				Enabled:     true,
				Endpoint:    tt.endpoint,
				Insecure:    true,
				ServiceName: "busyday-test",
				SampleRatio: tt.ratio,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := shutdown(context.Background()); err != nil {
				t.Fatalf("shutdown error: %v", err)
			}
		})
	}
}

package alerting

import (
	"strings"
	"testing"

	"tempwatcher/internal/monitor"
)

func TestRenderAlertMessage(t *testing.T) {
	msg := RenderMessage(monitor.Event{
		Kind:           monitor.EventAlert,
		Value:          29.015,
		Threshold:      28.5,
		TimestampLabel: "2025-06-01T12:00:00Z",
	}, "Server room")

	want := "🚨 Server room temperature is ABOVE threshold: 29.02°C (threshold 28.50°C) at 2025-06-01T12:00:00Z."
	if msg != want {
		t.Fatalf("rendered %q, want %q", msg, want)
	}
}

func TestRenderRecoveredMessage(t *testing.T) {
	msg := RenderMessage(monitor.Event{
		Kind:           monitor.EventRecovered,
		Value:          28.1,
		Threshold:      28.5,
		TimestampLabel: "2025-06-01T12:05:00Z",
	}, "Server room")

	if !strings.Contains(msg, "has RECOVERED: 28.10°C (threshold 28.50°C)") {
		t.Fatalf("unexpected recovery message: %q", msg)
	}
}

func TestRenderDefaultsSensorAndTimestamp(t *testing.T) {
	msg := RenderMessage(monitor.Event{Kind: monitor.EventAlert, Value: 31, Threshold: 30}, "")
	if !strings.HasPrefix(msg, "🚨 Sensor temperature") {
		t.Fatalf("default sensor label missing: %q", msg)
	}
	if !strings.Contains(msg, NoTimestampLabel) {
		t.Fatalf("placeholder timestamp missing: %q", msg)
	}
}

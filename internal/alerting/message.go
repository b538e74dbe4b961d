package alerting

import (
	"fmt"

	"tempwatcher/internal/monitor"
)

// NoTimestampLabel is rendered when a reading carries no timestamp.
const NoTimestampLabel = "(no timestamp)"

// RenderMessage formats a decision event into the outgoing notification text.
// Deterministic, no side effects.
func RenderMessage(event monitor.Event, sensorLabel string) string {
	if sensorLabel == "" {
		sensorLabel = "Sensor"
	}
	label := event.TimestampLabel
	if label == "" {
		label = NoTimestampLabel
	}

	if event.Kind == monitor.EventAlert {
		return fmt.Sprintf("🚨 %s temperature is ABOVE threshold: %.2f°C (threshold %.2f°C) at %s.",
			sensorLabel, event.Value, event.Threshold, label)
	}
	return fmt.Sprintf("✅ %s temperature has RECOVERED: %.2f°C (threshold %.2f°C) at %s.",
		sensorLabel, event.Value, event.Threshold, label)
}

// v0
// internal/telemetry/sample.go
package telemetry

import (
	"math"
	"time"
)

// Sample is a single synthetic hardware reading. Field names on the wire
// match what the receiving app ingests at /api/telemetry.
type Sample struct {
	Timestamp float64 `json:"timestamp"` // seconds since epoch
	GPUTemp   float64 `json:"gpu_temp"`
	CPUTemp   float64 `json:"cpu_temp"`
	FanRPM    float64 `json:"fan_rpm"`
	PowerDraw float64 `json:"power_draw"`
}

// Time converts the float timestamp back to a time.Time.
func (s Sample) Time() time.Time {
	sec, frac := math.Modf(s.Timestamp)
	return time.Unix(int64(sec), int64(frac*1e9))
}

func epochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

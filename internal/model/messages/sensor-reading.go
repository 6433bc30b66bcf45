package messages

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the wall-clock format devices stamp on readings and the store
// uses for irrigation timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// ErrSentinel is the reserved metric value a device reports when one of its
// sensors failed.
const ErrSentinel = "ERR"

// Metric is a single measured value as it rides on the wire: a decimal string,
// or the error sentinel, or garbage from a misbehaving device.
type Metric string

// IsErr reports whether the metric carries the error sentinel.
func (m Metric) IsErr() bool { return string(m) == ErrSentinel }

// Value parses the metric. ok is false for the sentinel and for anything else
// that is not a number.
func (m Metric) Value() (float64, bool) {
	if m.IsErr() {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(m)), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// SensorReading is one telemetry message from a planter. Immutable once
// ingested.
type SensorReading struct {
	DeviceID     string `json:"device_id"`
	Timestamp    string `json:"timestamp"` // TimeLayout
	Temperature  Metric `json:"temperature"`
	Humidity     Metric `json:"humidity"`
	SoilMoisture Metric `json:"soil_moisture"`
}

// Validate rejects readings with a malformed shape. A bad record is skipped,
// never fatal to its batch.
func (r SensorReading) Validate() error {
	if strings.TrimSpace(r.DeviceID) == "" {
		return fmt.Errorf("reading without device_id")
	}
	if _, err := r.MeasuredAt(); err != nil {
		return err
	}
	return nil
}

// MeasuredAt parses the device timestamp.
func (r SensorReading) MeasuredAt() (time.Time, error) {
	t, err := time.ParseInLocation(TimeLayout, r.Timestamp, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", r.Timestamp, err)
	}
	return t, nil
}

// AllErr reports whether every metric is the error sentinel (total sensor
// failure).
func (r SensorReading) AllErr() bool {
	return r.Temperature.IsErr() && r.Humidity.IsErr() && r.SoilMoisture.IsErr()
}

// AnyErr reports whether at least one metric is the error sentinel.
func (r SensorReading) AnyErr() bool {
	return r.Temperature.IsErr() || r.Humidity.IsErr() || r.SoilMoisture.IsErr()
}

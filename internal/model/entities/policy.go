package entities

import (
	"encoding/json"
	"fmt"
	"os"
)

// ThresholdPolicy holds the numeric bounds for one device type. Every bound is
// optional: a nil pointer disables that check. Temperature carries separate
// day/night pairs; the day window is [8,20) local time.
type ThresholdPolicy struct {
	TempMinDay   *float64 `json:"temperature_min_day,omitempty"`
	TempMaxDay   *float64 `json:"temperature_max_day,omitempty"`
	TempMinNight *float64 `json:"temperature_min_night,omitempty"`
	TempMaxNight *float64 `json:"temperature_max_night,omitempty"`
	HumidityMin  *float64 `json:"humidity_min,omitempty"`
	HumidityMax  *float64 `json:"humidity_max,omitempty"`
	SoilMin      *float64 `json:"soil_moisture_min,omitempty"`
	SoilMax      *float64 `json:"soil_moisture_max,omitempty"`
}

// TempBounds selects the active temperature pair for the given time of day.
func (p ThresholdPolicy) TempBounds(daytime bool) (min, max *float64) {
	if daytime {
		return p.TempMinDay, p.TempMaxDay
	}
	return p.TempMinNight, p.TempMaxNight
}

// PolicyTable maps a device id to its thresholds. Read-only at runtime.
type PolicyTable map[string]ThresholdPolicy

// For returns the policy for deviceID. Devices not present in the table get an
// empty policy, so no threshold check fires: a permissive default, not an error.
func (t PolicyTable) For(deviceID string) ThresholdPolicy {
	return t[deviceID]
}

// Devices returns the configured device ids.
func (t PolicyTable) Devices() []string {
	out := make([]string, 0, len(t))
	for id := range t {
		out = append(out, id)
	}
	return out
}

// LoadPolicyTable reads a policy table from a JSON file shaped as
// {"<device>": {"temperature_min_day": 18, ...}, ...}.
func LoadPolicyTable(path string) (PolicyTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy table: %w", err)
	}
	var t PolicyTable
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse policy table: %w", err)
	}
	return t, nil
}

func f(v float64) *float64 { return &v }

// DefaultPolicyTable returns the built-in limits for the two stock planters.
func DefaultPolicyTable() PolicyTable {
	return PolicyTable{
		"Strawberry": {
			TempMinDay: f(18), TempMaxDay: f(25),
			TempMinNight: f(8), TempMaxNight: f(15),
			HumidityMin: f(60), HumidityMax: f(80),
			SoilMin: f(50), SoilMax: f(60),
		},
		"Basil": {
			TempMinDay: f(20), TempMaxDay: f(30),
			TempMinNight: f(10), TempMaxNight: f(15),
			HumidityMin: f(50), HumidityMax: f(70),
			SoilMin: f(40), SoilMax: f(50),
		},
	}
}

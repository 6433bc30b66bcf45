package entities

// AlertKind identifies the class of an alert event. The enumeration is closed:
// the aggregator switches over it exhaustively, so adding a kind is a
// compile-visible change rather than a new string to forget.
type AlertKind string

const (
	AlertSensorError         AlertKind = "sensor_error"
	AlertTemperatureHigh     AlertKind = "temperature_high"
	AlertTemperatureLow      AlertKind = "temperature_low"
	AlertHumidityHigh        AlertKind = "humidity_high"
	AlertHumidityLow         AlertKind = "humidity_low"
	AlertSoilMoistureHigh    AlertKind = "soil_moisture_high"
	AlertIrrigationTriggered AlertKind = "irrigation_triggered"
	AlertIrrigationCompleted AlertKind = "irrigation_completed"
	AlertIrrigationError     AlertKind = "irrigation_error"
	AlertDailyReport         AlertKind = "daily_report"
	AlertManualReport        AlertKind = "manual_report"
)

// Known reports whether k belongs to the enumeration. Unknown kinds are
// tolerated on the wire: they are forwarded as generic notifications and
// never counted.
func (k AlertKind) Known() bool {
	switch k {
	case AlertSensorError, AlertTemperatureHigh, AlertTemperatureLow,
		AlertHumidityHigh, AlertHumidityLow, AlertSoilMoistureHigh,
		AlertIrrigationTriggered, AlertIrrigationCompleted, AlertIrrigationError,
		AlertDailyReport, AlertManualReport:
		return true
	}
	return false
}

// Countable reports whether k feeds the per-device event counters.
// Report kinds are meta-notifications about report generation, not device
// alerts, and must leave the counters untouched.
func (k AlertKind) Countable() bool {
	switch k {
	case AlertDailyReport, AlertManualReport:
		return false
	}
	return k.Known()
}

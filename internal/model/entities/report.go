package entities

// ReportEntry aggregates one device inside a report artifact. Averages are
// computed over non-error samples only and are null when no valid sample was
// in scope.
type ReportEntry struct {
	DeviceID        string              `json:"device_id"`
	AvgTemperature  *float64            `json:"avg_temperature"`
	AvgHumidity     *float64            `json:"avg_humidity"`
	AvgSoilMoisture *float64            `json:"avg_soil_moisture"`
	EventCounts     map[AlertKind]int64 `json:"event_counts"`
}

// Report is an immutable artifact compiled from the raw sample log and the
// event counters. Scope is a device id or "ALL".
type Report struct {
	Scope     string        `json:"scope"`
	DateRange []string      `json:"date_range"`
	TimeRange string        `json:"time_range"`
	Entries   []ReportEntry `json:"entries"`
	CreatedAt string        `json:"created_at"`
}

// ReportScopeAll marks a report covering every device.
const ReportScopeAll = "ALL"

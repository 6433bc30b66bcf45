package entities

// DeviceState is the single live row per device: the latest accepted reading
// plus the timestamp of the last confirmed irrigation. The reading fields are
// written only by the evaluation engine, LastIrrigation only by the irrigation
// protocol.
type DeviceState struct {
	DeviceID       string `json:"device_id"`
	Temperature    string `json:"temperature"`
	Humidity       string `json:"humidity"`
	SoilMoisture   string `json:"soil_moisture"`
	MeasuredAt     string `json:"measure_date"`
	LastIrrigation string `json:"last_irrigation,omitempty"` // empty = never irrigated
}

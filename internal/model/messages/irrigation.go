package messages

// IrrigationRequest asks the protocol to water one device. Produced by the
// evaluation engine (automatic) or an operator call (manual). Requests carry
// no identity of their own; see the request id on the command instead.
type IrrigationRequest struct {
	DeviceID string `json:"device_id"`
}

const (
	// ActionStart is the only command the actuator understands.
	ActionStart = "start"
	// StatusDone is the confirmation a device publishes when watering finished.
	StatusDone = "done"
)

// IrrigationCommand is published on the command channel. RequestID is a uuid
// minted per attempt; the confirmation leg does not echo it (correlation is by
// device id only), it exists for log correlation.
type IrrigationCommand struct {
	DeviceID  string `json:"device_id"`
	Action    string `json:"action"`
	RequestID string `json:"request_id,omitempty"`
}

// IrrigationConfirmation arrives on the confirmation channel once the
// actuator has finished.
type IrrigationConfirmation struct {
	DeviceID string `json:"device_id"`
	Status   string `json:"status"`
}

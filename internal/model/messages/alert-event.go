package messages

import (
	"time"

	"github.com/smartpotsystem/smartpot/internal/model/entities"
)

// AlertEvent rides the alert channel. It is ephemeral: only its aggregate
// effect (counters, notifications) persists. Delivery is at-least-once; a
// redelivered event is indistinguishable from a new one.
type AlertEvent struct {
	DeviceID  string             `json:"device_id"`
	Kind      entities.AlertKind `json:"kind"`
	Details   map[string]string  `json:"details,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

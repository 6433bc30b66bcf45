package alerts

import (
	"fmt"
	"strings"

	"github.com/smartpotsystem/smartpot/internal/model/entities"
	"github.com/smartpotsystem/smartpot/internal/model/messages"
)

// renderMessage maps an alert event onto its notification text. The switch is
// exhaustive over the closed AlertKind set; anything outside it gets the
// generic line.
func renderMessage(evt messages.AlertEvent) string {
	detail := func(key string) string {
		if v, ok := evt.Details[key]; ok && v != "" {
			return v
		}
		return "N/A"
	}

	switch evt.Kind {
	case entities.AlertSensorError:
		return fmt.Sprintf("🚨 Sensor error in SmartPot %s.\n❌ Faulty sensors: %s.\nPlease check the device.",
			evt.DeviceID, strings.Join(faultySensors(evt.Details), ", "))

	case entities.AlertTemperatureHigh:
		return fmt.Sprintf("🔥 High temperature alert in SmartPot %s.\n🌡 Current: %s°C (Exceeds max limit).",
			evt.DeviceID, detail("temperature"))

	case entities.AlertTemperatureLow:
		return fmt.Sprintf("❄️ Low temperature alert in SmartPot %s.\n🌡 Current: %s°C (Below min limit).",
			evt.DeviceID, detail("temperature"))

	case entities.AlertHumidityHigh:
		return fmt.Sprintf("💦 High humidity alert in SmartPot %s.\n💧 Current: %s%% (Exceeds max limit).",
			evt.DeviceID, detail("humidity"))

	case entities.AlertHumidityLow:
		return fmt.Sprintf("🏜️ Low humidity alert in SmartPot %s.\n💧 Current: %s%% (Below min limit).",
			evt.DeviceID, detail("humidity"))

	case entities.AlertSoilMoistureHigh:
		return fmt.Sprintf("🌱 High soil moisture alert in SmartPot %s.\n💧 Moisture Level: %s%% (Above max limit).",
			evt.DeviceID, detail("soil_moisture"))

	case entities.AlertIrrigationTriggered:
		return fmt.Sprintf("💧 Irrigation activated for SmartPot %s.", evt.DeviceID)

	case entities.AlertIrrigationCompleted:
		return fmt.Sprintf("💧 Irrigation completed for SmartPot %s.", evt.DeviceID)

	case entities.AlertIrrigationError:
		return fmt.Sprintf("💧 Irrigation error for SmartPot %s.", evt.DeviceID)

	case entities.AlertDailyReport, entities.AlertManualReport:
		if msg, ok := evt.Details["message"]; ok && msg != "" {
			return msg
		}
		return "ℹ️ Report notification received."

	default:
		return fmt.Sprintf("ℹ️ Notification received for SmartPot %s: %s", evt.DeviceID, evt.Kind)
	}
}

// faultySensors lists every metric whose value equals the error sentinel, in
// a fixed order.
func faultySensors(details map[string]string) []string {
	var out []string
	for _, k := range []string{"temperature", "humidity", "soil_moisture"} {
		if details[k] == messages.ErrSentinel {
			out = append(out, k)
		}
	}
	return out
}

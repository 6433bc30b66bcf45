package evaluation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/smartpotsystem/smartpot/internal/model/entities"
	"github.com/smartpotsystem/smartpot/internal/model/messages"
	"github.com/smartpotsystem/smartpot/internal/storage"
	"github.com/smartpotsystem/smartpot/pkg/dedup"
	"github.com/smartpotsystem/smartpot/pkg/mqttbus"
)

const (
	// Day window for the temperature bound selection, local wall clock.
	dayStartHour = 8
	dayEndHour   = 20

	// Minimum gap between two irrigations of the same device. A request
	// inside the gap is suppressed outright: no alert, no log entry beyond
	// debug.
	minIrrigationGap = 5 * time.Minute
)

// Engine turns raw readings into state updates, raw-log appends, alert events
// and irrigation requests. Records are independent: a malformed record or a
// failing store is logged and never aborts the siblings in a batch.
type Engine struct {
	consumer mqttbus.IConsumer[messages.SensorReading]
	alerts   mqttbus.IPublisher
	requests mqttbus.IPublisher
	states   storage.DeviceStateStore
	samples  storage.RawSampleLog
	policies entities.PolicyTable
	loc      *time.Location

	// deduper drops byte-identical QoS1 redeliveries before decoding
	deduper *dedup.Deduper

	nowFn func() time.Time
}

func NewEngine(
	consumer mqttbus.IConsumer[messages.SensorReading],
	alerts mqttbus.IPublisher,
	requests mqttbus.IPublisher,
	states storage.DeviceStateStore,
	samples storage.RawSampleLog,
	policies entities.PolicyTable,
	loc *time.Location,
) (*Engine, error) {
	if alerts == nil || requests == nil {
		return nil, errors.New("alert and request publishers are required")
	}
	if states == nil || samples == nil {
		return nil, errors.New("state store and sample log are required")
	}
	if loc == nil {
		loc = time.Local
	}
	e := &Engine{
		consumer: consumer,
		alerts:   alerts,
		requests: requests,
		states:   states,
		samples:  samples,
		policies: policies,
		loc:      loc,
		deduper:  dedup.New(10*time.Minute, 20000),
		nowFn:    time.Now,
	}
	if consumer != nil {
		consumer.SetHandler(e.handleMessage)
	}
	return e, nil
}

// Start runs the consume loop until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	go e.consumer.Consume(ctx)
	<-ctx.Done()
}

func (e *Engine) handleMessage(_ string, msg mqtt.Message) error {
	h := sha256.Sum256(msg.Payload())
	if !e.deduper.ShouldProcess(hex.EncodeToString(h[:])) {
		return nil
	}

	var r messages.SensorReading
	if err := json.Unmarshal(msg.Payload(), &r); err != nil {
		log.Printf("evaluation: bad payload: %v", err)
		readingsTotal.WithLabelValues("malformed").Inc()
		return nil
	}
	if err := r.Validate(); err != nil {
		log.Printf("evaluation: skip record: %v", err)
		readingsTotal.WithLabelValues("malformed").Inc()
		return nil
	}
	e.Process(context.Background(), r)
	return nil
}

// ProcessBatch evaluates every record of a batch independently, in arrival
// order. Shape errors skip the record and continue.
func (e *Engine) ProcessBatch(ctx context.Context, batch []messages.SensorReading) {
	for _, r := range batch {
		if err := r.Validate(); err != nil {
			log.Printf("evaluation: skip record: %v", err)
			readingsTotal.WithLabelValues("malformed").Inc()
			continue
		}
		e.Process(ctx, r)
	}
}

// Process runs the full evaluation pipeline for one well-formed reading.
func (e *Engine) Process(ctx context.Context, r messages.SensorReading) {
	// Latest reading is upserted unconditionally, error sentinels included.
	if err := e.states.PutLatestReading(ctx, r); err != nil {
		log.Printf("evaluation: state upsert for %s: %v", r.DeviceID, err)
	}

	// Total sensor failure short-circuits everything else.
	if r.AllErr() {
		readingsTotal.WithLabelValues("sensor_error").Inc()
		e.emitAlert(r.DeviceID, entities.AlertSensorError, map[string]string{
			"temperature":   string(r.Temperature),
			"humidity":      string(r.Humidity),
			"soil_moisture": string(r.SoilMoisture),
		})
		return
	}
	readingsTotal.WithLabelValues("ok").Inc()

	// Only readings with three parseable values reach the raw log. A partial
	// sentinel skips the append silently; it is not a sensor_error.
	if !r.AnyErr() {
		if allNumeric(r) {
			if err := e.samples.Append(ctx, r); err != nil {
				log.Printf("evaluation: raw-log append for %s: %v", r.DeviceID, err)
			}
		} else {
			log.Printf("evaluation: skip raw-log append for %s: non-numeric metric", r.DeviceID)
		}
	}

	pol := e.policies.For(r.DeviceID)
	now := e.nowFn().In(e.loc)
	daytime := now.Hour() >= dayStartHour && now.Hour() < dayEndHour

	e.checkTemperature(r, pol, daytime)
	e.checkHumidity(r, pol)
	e.checkSoilMoisture(ctx, r, pol, now)
}

func (e *Engine) checkTemperature(r messages.SensorReading, pol entities.ThresholdPolicy, daytime bool) {
	if r.Temperature.IsErr() {
		return
	}
	v, ok := r.Temperature.Value()
	if !ok {
		log.Printf("evaluation: skip temperature check for %s: invalid value %q", r.DeviceID, r.Temperature)
		return
	}
	tod := "day"
	if !daytime {
		tod = "night"
	}
	details := map[string]string{"temperature": string(r.Temperature), "time_of_day": tod}

	min, max := pol.TempBounds(daytime)
	switch {
	case min != nil && v < *min:
		e.emitAlert(r.DeviceID, entities.AlertTemperatureLow, details)
	case max != nil && v > *max:
		e.emitAlert(r.DeviceID, entities.AlertTemperatureHigh, details)
	}
}

func (e *Engine) checkHumidity(r messages.SensorReading, pol entities.ThresholdPolicy) {
	if r.Humidity.IsErr() {
		return
	}
	v, ok := r.Humidity.Value()
	if !ok {
		log.Printf("evaluation: skip humidity check for %s: invalid value %q", r.DeviceID, r.Humidity)
		return
	}
	details := map[string]string{"humidity": string(r.Humidity)}
	switch {
	case pol.HumidityMin != nil && v < *pol.HumidityMin:
		e.emitAlert(r.DeviceID, entities.AlertHumidityLow, details)
	case pol.HumidityMax != nil && v > *pol.HumidityMax:
		e.emitAlert(r.DeviceID, entities.AlertHumidityHigh, details)
	}
}

func (e *Engine) checkSoilMoisture(ctx context.Context, r messages.SensorReading, pol entities.ThresholdPolicy, now time.Time) {
	if r.SoilMoisture.IsErr() {
		return
	}
	v, ok := r.SoilMoisture.Value()
	if !ok {
		log.Printf("evaluation: skip soil moisture check for %s: invalid value %q", r.DeviceID, r.SoilMoisture)
		return
	}
	switch {
	case pol.SoilMin != nil && v < *pol.SoilMin:
		e.maybeRequestIrrigation(ctx, r.DeviceID, now)
	case pol.SoilMax != nil && v > *pol.SoilMax:
		e.emitAlert(r.DeviceID, entities.AlertSoilMoistureHigh,
			map[string]string{"soil_moisture": string(r.SoilMoisture)})
	}
}

func (e *Engine) maybeRequestIrrigation(ctx context.Context, deviceID string, now time.Time) {
	last, irrigated, err := e.states.LastIrrigation(ctx, deviceID)
	if err != nil {
		log.Printf("evaluation: last_irrigation lookup for %s: %v", deviceID, err)
		return
	}
	if irrigated && now.Sub(last) < minIrrigationGap {
		return
	}

	b, _ := json.Marshal(messages.IrrigationRequest{DeviceID: deviceID})
	if err := e.requests.PublishQos(1, false, b); err != nil {
		log.Printf("evaluation: publish irrigation request for %s: %v", deviceID, err)
		return
	}
	irrigationRequestsTotal.Inc()
	log.Printf("evaluation: irrigation request for %s", deviceID)
}

func (e *Engine) emitAlert(deviceID string, kind entities.AlertKind, details map[string]string) {
	evt := messages.AlertEvent{
		DeviceID:  deviceID,
		Kind:      kind,
		Details:   details,
		Timestamp: e.nowFn(),
	}
	b, _ := json.Marshal(evt)
	if err := e.alerts.PublishQos(1, false, b); err != nil {
		log.Printf("evaluation: publish %s alert for %s: %v", kind, deviceID, err)
		return
	}
	alertsTotal.WithLabelValues(string(kind)).Inc()
	log.Printf("evaluation: %s alert for %s", kind, deviceID)
}

func allNumeric(r messages.SensorReading) bool {
	_, ok1 := r.Temperature.Value()
	_, ok2 := r.Humidity.Value()
	_, ok3 := r.SoilMoisture.Value()
	return ok1 && ok2 && ok3
}

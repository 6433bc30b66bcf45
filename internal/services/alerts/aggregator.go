package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/smartpotsystem/smartpot/internal/model/entities"
	"github.com/smartpotsystem/smartpot/internal/model/messages"
	"github.com/smartpotsystem/smartpot/internal/storage"
	"github.com/smartpotsystem/smartpot/pkg/mqttbus"
)

// Aggregator consumes alert events one at a time, keeps the per-device event
// counters and forwards rendered notifications. Delivery is at-least-once
// with no dedup key, so a redelivered event double-counts; accepted rather
// than corrected here.
type Aggregator struct {
	consumer mqttbus.IConsumer[messages.AlertEvent]
	counters storage.EventCounterStore
	notifier Notifier
}

func NewAggregator(
	consumer mqttbus.IConsumer[messages.AlertEvent],
	counters storage.EventCounterStore,
	notifier Notifier,
) (*Aggregator, error) {
	if counters == nil {
		return nil, errors.New("counter store is required")
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	a := &Aggregator{consumer: consumer, counters: counters, notifier: notifier}
	if consumer != nil {
		consumer.SetHandler(a.handleMessage)
	}
	return a, nil
}

// Start blocks consuming the alert channel until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context) {
	a.consumer.Consume(ctx)
}

func (a *Aggregator) handleMessage(_ string, msg mqtt.Message) error {
	var evt messages.AlertEvent
	if err := json.Unmarshal(msg.Payload(), &evt); err != nil {
		log.Printf("alerts: bad payload: %v", err)
		return nil
	}
	a.Process(context.Background(), evt)
	return nil
}

// Process handles one event. Report kinds are meta-notifications forwarded
// verbatim; everything else is counted, rendered and forwarded.
func (a *Aggregator) Process(ctx context.Context, evt messages.AlertEvent) {
	if strings.TrimSpace(evt.DeviceID) == "" {
		log.Printf("alerts: event without device_id, skipped")
		return
	}

	switch evt.Kind {
	case entities.AlertDailyReport, entities.AlertManualReport:
		a.notify(ctx, renderMessage(evt))
		return
	}

	if evt.Kind.Countable() {
		// Counters are persisted per event, not batched. Simplicity over
		// throughput; daily volume is bounded by sensor count times alert rate.
		if err := a.counters.Increment(ctx, evt.DeviceID, evt.Kind); err != nil {
			log.Printf("alerts: counter increment for %s/%s: %v", evt.DeviceID, evt.Kind, err)
		}
	} else {
		log.Printf("alerts: unknown kind %q for %s, forwarding without counting", evt.Kind, evt.DeviceID)
	}

	a.notify(ctx, renderMessage(evt))
}

func (a *Aggregator) notify(ctx context.Context, text string) {
	if err := a.notifier.Notify(ctx, text); err != nil {
		log.Printf("alerts: notifier error: %v", err)
	}
}

package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpotsystem/smartpot/internal/model/entities"
	"github.com/smartpotsystem/smartpot/internal/model/messages"
)

type fakeCounterStore struct {
	counts map[string]map[entities.AlertKind]int64
	err    error
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{counts: map[string]map[entities.AlertKind]int64{}}
}

func (f *fakeCounterStore) Increment(_ context.Context, id string, kind entities.AlertKind) error {
	if f.err != nil {
		return f.err
	}
	if f.counts[id] == nil {
		f.counts[id] = map[entities.AlertKind]int64{}
	}
	f.counts[id][kind]++
	return nil
}
func (f *fakeCounterStore) Snapshot(_ context.Context, id string) (map[entities.AlertKind]int64, error) {
	return f.counts[id], nil
}
func (f *fakeCounterStore) Devices(_ context.Context) ([]string, error) { return nil, nil }
func (f *fakeCounterStore) Reset(_ context.Context, _ []string) error   { return nil }

type recordingNotifier struct {
	sent []string
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, text string) error {
	n.sent = append(n.sent, text)
	return n.err
}

func event(id string, kind entities.AlertKind, details map[string]string) messages.AlertEvent {
	return messages.AlertEvent{DeviceID: id, Kind: kind, Details: details, Timestamp: time.Now()}
}

func newTestAggregator(t *testing.T) (*Aggregator, *fakeCounterStore, *recordingNotifier) {
	t.Helper()
	counters := newFakeCounterStore()
	notifier := &recordingNotifier{}
	a, err := NewAggregator(nil, counters, notifier)
	require.NoError(t, err)
	return a, counters, notifier
}

func TestThresholdAlertIsCountedAndForwarded(t *testing.T) {
	a, counters, notifier := newTestAggregator(t)

	a.Process(context.Background(), event("Strawberry", entities.AlertTemperatureHigh,
		map[string]string{"temperature": "31.2"}))
	a.Process(context.Background(), event("Strawberry", entities.AlertTemperatureHigh,
		map[string]string{"temperature": "32.0"}))

	assert.Equal(t, int64(2), counters.counts["Strawberry"][entities.AlertTemperatureHigh])
	require.Len(t, notifier.sent, 2)
	assert.Contains(t, notifier.sent[0], "High temperature alert in SmartPot Strawberry")
	assert.Contains(t, notifier.sent[0], "31.2°C")
}

func TestSensorErrorListsFaultySensors(t *testing.T) {
	a, counters, notifier := newTestAggregator(t)

	a.Process(context.Background(), event("Basil", entities.AlertSensorError,
		map[string]string{"temperature": "ERR", "humidity": "55", "soil_moisture": "ERR"}))

	assert.Equal(t, int64(1), counters.counts["Basil"][entities.AlertSensorError])
	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0], "Faulty sensors: temperature, soil_moisture.")
}

func TestReportKindForwardsMessageVerbatimWithoutCounting(t *testing.T) {
	a, counters, notifier := newTestAggregator(t)

	a.Process(context.Background(), event("ALL", entities.AlertDailyReport,
		map[string]string{"message": "✅ Daily report successfully generated: daily_report_2026-08-30.json."}))

	assert.Empty(t, counters.counts, "report notifications never touch the counters")
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "✅ Daily report successfully generated: daily_report_2026-08-30.json.", notifier.sent[0])
}

func TestUnknownKindForwardsGenericLine(t *testing.T) {
	a, counters, notifier := newTestAggregator(t)

	a.Process(context.Background(), event("Strawberry", entities.AlertKind("volcano_eruption"), nil))

	assert.Empty(t, counters.counts)
	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0], "volcano_eruption")
}

func TestEmptyDeviceIDIsSkipped(t *testing.T) {
	a, counters, notifier := newTestAggregator(t)

	a.Process(context.Background(), event("  ", entities.AlertTemperatureHigh, nil))

	assert.Empty(t, counters.counts)
	assert.Empty(t, notifier.sent)
}

func TestCounterFailureStillNotifies(t *testing.T) {
	a, counters, notifier := newTestAggregator(t)
	counters.err = errors.New("redis down")

	a.Process(context.Background(), event("Strawberry", entities.AlertHumidityLow,
		map[string]string{"humidity": "30"}))

	require.Len(t, notifier.sent, 1, "delivery does not depend on the counter write")
}

func TestNotifierFailureIsSwallowed(t *testing.T) {
	a, counters, notifier := newTestAggregator(t)
	notifier.err = errors.New("telegram 502")

	a.Process(context.Background(), event("Strawberry", entities.AlertHumidityLow,
		map[string]string{"humidity": "30"}))

	assert.Equal(t, int64(1), counters.counts["Strawberry"][entities.AlertHumidityLow])
}

func TestRenderMissingDetailFallsBack(t *testing.T) {
	text := renderMessage(event("Strawberry", entities.AlertTemperatureLow, nil))
	assert.Contains(t, text, "N/A°C")
}

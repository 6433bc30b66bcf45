package report

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpotsystem/smartpot/internal/model/entities"
	"github.com/smartpotsystem/smartpot/internal/model/messages"
	"github.com/smartpotsystem/smartpot/internal/storage"
)

type scanCall struct {
	deviceID string
	from, to time.Time
}

type fakeSampleLog struct {
	all      []messages.SensorReading
	byDevice map[string][]messages.SensorReading
	scans    []scanCall
	purged   bool
	purgeErr error
}

func (f *fakeSampleLog) Append(_ context.Context, r messages.SensorReading) error {
	f.all = append(f.all, r)
	return nil
}
func (f *fakeSampleLog) ScanAll(_ context.Context) ([]messages.SensorReading, error) {
	return f.all, nil
}
func (f *fakeSampleLog) ScanRange(_ context.Context, deviceID string, from, to time.Time) ([]messages.SensorReading, error) {
	f.scans = append(f.scans, scanCall{deviceID: deviceID, from: from, to: to})
	return f.byDevice[deviceID], nil
}
func (f *fakeSampleLog) PurgeAll(_ context.Context) error {
	if f.purgeErr != nil {
		return f.purgeErr
	}
	f.purged = true
	return nil
}

type fakeCounterStore struct {
	snapshots map[string]map[entities.AlertKind]int64
	resetWith []string
}

func (f *fakeCounterStore) Increment(_ context.Context, _ string, _ entities.AlertKind) error {
	return nil
}
func (f *fakeCounterStore) Snapshot(_ context.Context, id string) (map[entities.AlertKind]int64, error) {
	if m, ok := f.snapshots[id]; ok {
		return m, nil
	}
	return map[entities.AlertKind]int64{}, nil
}
func (f *fakeCounterStore) Devices(_ context.Context) ([]string, error) { return nil, nil }
func (f *fakeCounterStore) Reset(_ context.Context, ids []string) error {
	f.resetWith = append([]string(nil), ids...)
	return nil
}

type fakeReportStore struct {
	blobs  map[string][]byte
	types  map[string]string
	putErr error
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{blobs: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeReportStore) Put(reportType, name string, blob []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.blobs[name] = blob
	f.types[name] = reportType
	return nil
}
func (f *fakeReportStore) Get(name string) ([]byte, error) {
	b, ok := f.blobs[name]
	if !ok {
		return nil, storage.ErrReportNotFound
	}
	return b, nil
}
func (f *fakeReportStore) List() ([]storage.ReportInfo, error) {
	var out []storage.ReportInfo
	for name, typ := range f.types {
		out = append(out, storage.ReportInfo{Name: name, Type: typ})
	}
	return out, nil
}
func (f *fakeReportStore) Close() error { return nil }

type fakePublisher struct {
	mu        sync.Mutex
	published [][]byte
}

func (f *fakePublisher) Publish(p []byte) error { return f.PublishQos(0, false, p) }
func (f *fakePublisher) PublishQos(_ byte, _ bool, p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, append([]byte(nil), p...))
	return nil
}
func (f *fakePublisher) Topic() string { return "test" }
func (f *fakePublisher) Close()        {}

func (f *fakePublisher) messages(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, p := range f.published {
		var evt messages.AlertEvent
		require.NoError(t, json.Unmarshal(p, &evt))
		out = append(out, evt.Details["message"])
	}
	return out
}

func sample(id string, temp, hum, soil messages.Metric) messages.SensorReading {
	return messages.SensorReading{
		DeviceID:     id,
		Timestamp:    "2026-08-30 09:00:00",
		Temperature:  temp,
		Humidity:     hum,
		SoilMoisture: soil,
	}
}

func newTestCompiler(t *testing.T, samples *fakeSampleLog, counters *fakeCounterStore, devices []string) (*Compiler, *fakeReportStore, *fakePublisher) {
	t.Helper()
	reports := newFakeReportStore()
	alerts := &fakePublisher{}
	c, err := NewCompiler(samples, counters, reports, alerts, devices, time.Local)
	require.NoError(t, err)
	c.nowFn = func() time.Time {
		return time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)
	}
	return c, reports, alerts
}

func decodeReport(t *testing.T, blob []byte) entities.Report {
	t.Helper()
	var rep entities.Report
	require.NoError(t, json.Unmarshal(blob, &rep))
	return rep
}

func TestDailyAveragesRoundedToTwoDecimals(t *testing.T) {
	log := &fakeSampleLog{all: []messages.SensorReading{
		sample("Strawberry", "20", "60", "50"),
		sample("Strawberry", "22", "61", "50"),
		sample("Strawberry", "ERR", "62", "50"),
	}}
	counters := &fakeCounterStore{}
	c, reports, _ := newTestCompiler(t, log, counters, nil)

	name, err := c.Daily(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "daily_report_2026-08-30.json", name)

	rep := decodeReport(t, reports.blobs[name])
	require.Len(t, rep.Entries, 1)
	entry := rep.Entries[0]
	require.NotNil(t, entry.AvgTemperature)
	assert.Equal(t, 21.0, *entry.AvgTemperature, "sentinel values are excluded from the mean")
	require.NotNil(t, entry.AvgHumidity)
	assert.Equal(t, 61.0, *entry.AvgHumidity)
}

func TestDailyAverageIsNilWhenNoValidValue(t *testing.T) {
	log := &fakeSampleLog{all: []messages.SensorReading{
		sample("Basil", "ERR", "55", "45"),
	}}
	c, reports, _ := newTestCompiler(t, log, &fakeCounterStore{}, nil)

	name, err := c.Daily(context.Background())
	require.NoError(t, err)

	entry := decodeReport(t, reports.blobs[name]).Entries[0]
	assert.Nil(t, entry.AvgTemperature, "no valid sample means null, never zero")
	assert.NotNil(t, entry.AvgHumidity)
}

func TestDailyMergesCountersAndResets(t *testing.T) {
	log := &fakeSampleLog{all: []messages.SensorReading{
		sample("Basil", "21", "55", "45"),
		sample("Strawberry", "20", "70", "55"),
	}}
	counters := &fakeCounterStore{snapshots: map[string]map[entities.AlertKind]int64{
		"Strawberry": {entities.AlertTemperatureHigh: 3},
	}}
	c, reports, alerts := newTestCompiler(t, log, counters, nil)

	name, err := c.Daily(context.Background())
	require.NoError(t, err)

	rep := decodeReport(t, reports.blobs[name])
	assert.Equal(t, entities.ReportScopeAll, rep.Scope)
	require.Len(t, rep.Entries, 2)
	assert.Equal(t, "Basil", rep.Entries[0].DeviceID)
	assert.Equal(t, int64(3), rep.Entries[1].EventCounts[entities.AlertTemperatureHigh])

	assert.True(t, log.purged)
	assert.Equal(t, []string{"Basil", "Strawberry"}, counters.resetWith)
	require.Len(t, alerts.published, 1)
	assert.Contains(t, alerts.messages(t)[0], "✅ Daily report successfully generated")
}

func TestDailyEmptyLogNotifiesFailureAndPurgesNothing(t *testing.T) {
	log := &fakeSampleLog{}
	counters := &fakeCounterStore{}
	c, reports, alerts := newTestCompiler(t, log, counters, nil)

	_, err := c.Daily(context.Background())
	require.ErrorIs(t, err, ErrNoRawData)

	assert.Empty(t, reports.blobs)
	assert.False(t, log.purged)
	assert.Nil(t, counters.resetWith)
	require.Len(t, alerts.published, 1)
	assert.Contains(t, alerts.messages(t)[0], "Unable to generate daily report")
}

func TestDailyWriteFailureLeavesLogIntact(t *testing.T) {
	log := &fakeSampleLog{all: []messages.SensorReading{sample("Basil", "21", "55", "45")}}
	counters := &fakeCounterStore{}
	c, reports, _ := newTestCompiler(t, log, counters, nil)
	reports.putErr = errors.New("disk full")

	_, err := c.Daily(context.Background())
	require.Error(t, err)
	assert.False(t, log.purged, "a failed write must not discard the raw data")
	assert.Nil(t, counters.resetWith)
}

func TestDailyPurgeFailureKeepsReport(t *testing.T) {
	log := &fakeSampleLog{all: []messages.SensorReading{sample("Basil", "21", "55", "45")}}
	c, reports, _ := newTestCompiler(t, log, &fakeCounterStore{}, nil)
	log.purgeErr = errors.New("influx delete failed")

	name, err := c.Daily(context.Background())
	require.NoError(t, err, "the artifact stands even when cleanup fails")
	assert.Contains(t, reports.blobs, name)
}

func TestManualRejectsBadHoursBeforeAnyScan(t *testing.T) {
	log := &fakeSampleLog{}
	c, reports, alerts := newTestCompiler(t, log, &fakeCounterStore{}, []string{"Basil"})

	_, err := c.Manual(context.Background(), "Basil", 9, 9)
	require.ErrorIs(t, err, ErrInvalidHours)

	_, err = c.Manual(context.Background(), "Basil", -1, 5)
	require.ErrorIs(t, err, ErrInvalidHours)

	_, err = c.Manual(context.Background(), "Basil", 5, 24)
	require.ErrorIs(t, err, ErrInvalidHours)

	assert.Empty(t, log.scans, "validation happens before any storage access")
	assert.Empty(t, reports.blobs)
	assert.Empty(t, alerts.published)
}

func TestManualSingleDeviceWindowAndName(t *testing.T) {
	log := &fakeSampleLog{byDevice: map[string][]messages.SensorReading{
		"Strawberry": {sample("Strawberry", "20", "70", "55")},
	}}
	c, reports, alerts := newTestCompiler(t, log, &fakeCounterStore{}, []string{"Basil", "Strawberry"})

	name, err := c.Manual(context.Background(), "Strawberry", 9, 17)
	require.NoError(t, err)
	assert.Equal(t, "manual_report_Strawberry_9-17_2026-08-30.json", name)
	assert.Equal(t, storage.ReportTypeManual, reports.types[name])

	require.Len(t, log.scans, 1)
	assert.Equal(t, time.Date(2026, 8, 30, 9, 0, 0, 0, time.Local), log.scans[0].from)
	assert.Equal(t, time.Date(2026, 8, 30, 17, 0, 0, 0, time.Local), log.scans[0].to)

	rep := decodeReport(t, reports.blobs[name])
	assert.Equal(t, "Strawberry", rep.Scope)
	assert.Equal(t, []string{"2026-08-30"}, rep.DateRange)
	assert.Equal(t, "9:00 - 17:00", rep.TimeRange)

	require.Len(t, alerts.published, 1)
	assert.Contains(t, alerts.messages(t)[0], "✅ Manual report successfully generated")
}

func TestManualWindowCrossingMidnight(t *testing.T) {
	log := &fakeSampleLog{byDevice: map[string][]messages.SensorReading{
		"Basil": {sample("Basil", "21", "55", "45")},
	}}
	c, reports, _ := newTestCompiler(t, log, &fakeCounterStore{}, []string{"Basil"})

	name, err := c.Manual(context.Background(), "Basil", 22, 6)
	require.NoError(t, err)

	require.Len(t, log.scans, 1)
	assert.Equal(t, time.Date(2026, 8, 29, 22, 0, 0, 0, time.Local), log.scans[0].from)
	assert.Equal(t, time.Date(2026, 8, 30, 6, 0, 0, 0, time.Local), log.scans[0].to)

	rep := decodeReport(t, reports.blobs[name])
	assert.Equal(t, []string{"2026-08-29", "2026-08-30"}, rep.DateRange)
}

func TestManualAllFansOutAndOmitsEmptyDevices(t *testing.T) {
	log := &fakeSampleLog{byDevice: map[string][]messages.SensorReading{
		"Strawberry": {sample("Strawberry", "20", "70", "55")},
	}}
	c, reports, _ := newTestCompiler(t, log, &fakeCounterStore{}, []string{"Strawberry", "Basil"})

	name, err := c.Manual(context.Background(), "All", 8, 12)
	require.NoError(t, err)
	require.Len(t, log.scans, 2, "every configured device is scanned")

	rep := decodeReport(t, reports.blobs[name])
	assert.Equal(t, "All", rep.Scope)
	require.Len(t, rep.Entries, 1, "devices without samples are omitted, not nulled")
	assert.Equal(t, "Strawberry", rep.Entries[0].DeviceID)
}

func TestManualEmptyWindowWritesNothing(t *testing.T) {
	log := &fakeSampleLog{}
	c, reports, alerts := newTestCompiler(t, log, &fakeCounterStore{}, []string{"Basil"})

	_, err := c.Manual(context.Background(), "Basil", 8, 12)
	require.ErrorIs(t, err, ErrNoSamplesInWindow)
	assert.Empty(t, reports.blobs)
	assert.Empty(t, alerts.published)
}

func TestNextRunSchedulesTodayOrTomorrow(t *testing.T) {
	c, _, _ := newTestCompiler(t, &fakeSampleLog{}, &fakeCounterStore{}, nil)

	// nowFn is 10:00, so a 23:00 run is still today and an 08:00 run rolls over.
	assert.Equal(t, time.Date(2026, 8, 30, 23, 0, 0, 0, time.Local), c.nextRun(23))
	assert.Equal(t, time.Date(2026, 8, 31, 8, 0, 0, 0, time.Local), c.nextRun(8))
}

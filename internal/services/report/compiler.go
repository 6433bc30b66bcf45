package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/smartpotsystem/smartpot/internal/model/entities"
	"github.com/smartpotsystem/smartpot/internal/model/messages"
	"github.com/smartpotsystem/smartpot/internal/storage"
	"github.com/smartpotsystem/smartpot/pkg/mqttbus"
)

var (
	// ErrNoRawData means the daily rollup found nothing to report on. The
	// failure is notified instead of persisted; nothing is purged.
	ErrNoRawData = errors.New("no raw data found")

	// ErrNoSamplesInWindow means a manual window matched zero samples for
	// every requested device. No artifact is written.
	ErrNoSamplesInWindow = errors.New("no samples in requested window")

	// ErrInvalidHours rejects a bad manual range before any storage access.
	ErrInvalidHours = errors.New("invalid hour range")
)

const dateLayout = "2006-01-02"

// Compiler aggregates the raw sample log and the event counters into
// immutable report artifacts.
type Compiler struct {
	samples  storage.RawSampleLog
	counters storage.EventCounterStore
	reports  storage.ReportStore
	alerts   mqttbus.IPublisher
	devices  []string // configured fleet, drives the manual "All" fan-out
	loc      *time.Location

	nowFn func() time.Time
}

func NewCompiler(
	samples storage.RawSampleLog,
	counters storage.EventCounterStore,
	reports storage.ReportStore,
	alerts mqttbus.IPublisher,
	devices []string,
	loc *time.Location,
) (*Compiler, error) {
	if samples == nil || counters == nil || reports == nil {
		return nil, errors.New("sample log, counter store and report store are required")
	}
	if alerts == nil {
		return nil, errors.New("alert publisher is required")
	}
	if loc == nil {
		loc = time.Local
	}
	sorted := append([]string(nil), devices...)
	sort.Strings(sorted)
	return &Compiler{
		samples:  samples,
		counters: counters,
		reports:  reports,
		alerts:   alerts,
		devices:  sorted,
		loc:      loc,
		nowFn:    time.Now,
	}, nil
}

// Daily compiles the rollup over the entire raw sample log, writes a single
// multi-device artifact, then purges the log and resets the counters of every
// device included. Purge is sequenced after the write: if it fails the report
// stands and stale raw data may be double-counted next run.
func (c *Compiler) Daily(ctx context.Context) (string, error) {
	all, err := c.samples.ScanAll(ctx)
	if err != nil {
		return "", fmt.Errorf("daily scan: %w", err)
	}
	byDevice := groupByDevice(all)
	if len(byDevice) == 0 {
		c.emitReportAlert(entities.AlertDailyReport,
			"⚠️ No valid sensor data found. Unable to generate daily report.")
		return "", ErrNoRawData
	}

	ids := make([]string, 0, len(byDevice))
	for id := range byDevice {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	now := c.nowFn().In(c.loc)
	date := now.Format(dateLayout)
	rep := entities.Report{
		Scope:     entities.ReportScopeAll,
		DateRange: []string{date},
		TimeRange: "00:00 - 24:00",
		CreatedAt: now.Format(messages.TimeLayout),
	}
	for _, id := range ids {
		rep.Entries = append(rep.Entries, c.buildEntry(ctx, id, byDevice[id]))
	}

	name := fmt.Sprintf("daily_report_%s.json", date)
	blob, _ := json.MarshalIndent(rep, "", "  ")
	if err := c.reports.Put(storage.ReportTypeDaily, name, blob); err != nil {
		return "", fmt.Errorf("write daily report: %w", err)
	}
	log.Printf("report: daily report written: %s (%d devices)", name, len(rep.Entries))
	c.emitReportAlert(entities.AlertDailyReport,
		fmt.Sprintf("✅ Daily report successfully generated: %s.", name))

	if err := c.samples.PurgeAll(ctx); err != nil {
		log.Printf("report: purge raw samples: %v", err)
	}
	if err := c.counters.Reset(ctx, ids); err != nil {
		log.Printf("report: reset counters: %v", err)
	}
	return name, nil
}

// Manual compiles a report over [startHour, endHour) of today, or over the
// midnight-crossing window from yesterday startHour to today endHour when
// startHour > endHour. Devices with zero samples in the window are omitted;
// an empty result writes nothing. Never purges.
func (c *Compiler) Manual(ctx context.Context, deviceID string, startHour, endHour int) (string, error) {
	if startHour < 0 || startHour > 23 || endHour < 0 || endHour > 23 {
		return "", fmt.Errorf("%w: hours must be in 0..23", ErrInvalidHours)
	}
	if startHour == endHour {
		return "", fmt.Errorf("%w: start and end hour cannot be the same", ErrInvalidHours)
	}

	scope := strings.TrimSpace(deviceID)
	targets := []string{scope}
	if scope == "" || strings.EqualFold(scope, "all") {
		scope = "All"
		targets = c.devices
	}

	now := c.nowFn().In(c.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)

	var start, end time.Time
	var dates []string
	if startHour > endHour {
		yesterday := today.AddDate(0, 0, -1)
		start = yesterday.Add(time.Duration(startHour) * time.Hour)
		end = today.Add(time.Duration(endHour) * time.Hour)
		dates = []string{yesterday.Format(dateLayout), today.Format(dateLayout)}
	} else {
		start = today.Add(time.Duration(startHour) * time.Hour)
		end = today.Add(time.Duration(endHour) * time.Hour)
		dates = []string{today.Format(dateLayout)}
	}

	rep := entities.Report{
		Scope:     scope,
		DateRange: dates,
		TimeRange: fmt.Sprintf("%d:00 - %d:00", startHour, endHour),
		CreatedAt: now.Format(messages.TimeLayout),
	}
	for _, id := range targets {
		samples, err := c.samples.ScanRange(ctx, id, start, end)
		if err != nil {
			log.Printf("report: scan %s: %v", id, err)
			continue
		}
		if len(samples) == 0 {
			continue
		}
		rep.Entries = append(rep.Entries, c.buildEntry(ctx, id, samples))
	}
	if len(rep.Entries) == 0 {
		return "", ErrNoSamplesInWindow
	}

	name := fmt.Sprintf("manual_report_%s_%d-%d_%s.json", scope, startHour, endHour, now.Format(dateLayout))
	blob, _ := json.MarshalIndent(rep, "", "  ")
	if err := c.reports.Put(storage.ReportTypeManual, name, blob); err != nil {
		return "", fmt.Errorf("write manual report: %w", err)
	}
	log.Printf("report: manual report written: %s (%d devices)", name, len(rep.Entries))
	c.emitReportAlert(entities.AlertManualReport,
		fmt.Sprintf("✅ Manual report successfully generated: %s.", name))
	return name, nil
}

// StartDailySchedule runs the rollup once a day at the given local hour until
// ctx is cancelled.
func (c *Compiler) StartDailySchedule(ctx context.Context, hour int) {
	for {
		next := c.nextRun(hour)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if _, err := c.Daily(ctx); err != nil {
				log.Printf("report: daily rollup: %v", err)
			}
		}
	}
}

func (c *Compiler) nextRun(hour int) time.Time {
	now := c.nowFn().In(c.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, c.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (c *Compiler) buildEntry(ctx context.Context, deviceID string, samples []messages.SensorReading) entities.ReportEntry {
	var temps, hums, soils []float64
	for _, s := range samples {
		if v, ok := s.Temperature.Value(); ok {
			temps = append(temps, v)
		}
		if v, ok := s.Humidity.Value(); ok {
			hums = append(hums, v)
		}
		if v, ok := s.SoilMoisture.Value(); ok {
			soils = append(soils, v)
		}
	}
	counts, err := c.counters.Snapshot(ctx, deviceID)
	if err != nil {
		log.Printf("report: counter snapshot for %s: %v", deviceID, err)
		counts = map[entities.AlertKind]int64{}
	}
	return entities.ReportEntry{
		DeviceID:        deviceID,
		AvgTemperature:  average(temps),
		AvgHumidity:     average(hums),
		AvgSoilMoisture: average(soils),
		EventCounts:     counts,
	}
}

func (c *Compiler) emitReportAlert(kind entities.AlertKind, message string) {
	evt := messages.AlertEvent{
		DeviceID:  entities.ReportScopeAll,
		Kind:      kind,
		Details:   map[string]string{"message": message},
		Timestamp: c.nowFn(),
	}
	b, _ := json.Marshal(evt)
	if err := c.alerts.PublishQos(1, false, b); err != nil {
		log.Printf("report: publish %s alert: %v", kind, err)
	}
}

// average returns the arithmetic mean rounded to two decimals, nil for empty
// input. Never zero when there is nothing to average.
func average(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	avg := math.Round(sum/float64(len(values))*100) / 100
	return &avg
}

func groupByDevice(samples []messages.SensorReading) map[string][]messages.SensorReading {
	out := make(map[string][]messages.SensorReading)
	for _, s := range samples {
		if s.DeviceID == "" {
			continue
		}
		out[s.DeviceID] = append(out[s.DeviceID], s)
	}
	return out
}

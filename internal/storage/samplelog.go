package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/smartpotsystem/smartpot/internal/model/messages"
)

// RawSampleLog is the append-only buffer of fully valid readings that feeds
// the report compiler. Partitioning is by time and device; a daily rollup
// purges everything it has reported on.
type RawSampleLog interface {
	Append(ctx context.Context, r messages.SensorReading) error
	ScanAll(ctx context.Context) ([]messages.SensorReading, error)
	ScanRange(ctx context.Context, deviceID string, from, to time.Time) ([]messages.SensorReading, error)
	PurgeAll(ctx context.Context) error
}

const rawMeasurement = "raw_reading"

// InfluxSampleLog stores samples as points of the raw_reading measurement,
// tagged by device id. Scans pivot the three fields back into one record per
// timestamp.
type InfluxSampleLog struct {
	client    influxdb2.Client
	org       string
	bucket    string
	writeAPI  api.WriteAPIBlocking
	retention time.Duration
}

func NewInfluxSampleLog(client influxdb2.Client, org, bucket string) *InfluxSampleLog {
	return &InfluxSampleLog{
		client:    client,
		org:       org,
		bucket:    bucket,
		writeAPI:  client.WriteAPIBlocking(org, bucket),
		retention: 30 * 24 * time.Hour,
	}
}

// Append writes one reading. Only fully valid readings reach the log, so all
// three metrics must parse.
func (l *InfluxSampleLog) Append(ctx context.Context, r messages.SensorReading) error {
	at, err := r.MeasuredAt()
	if err != nil {
		return err
	}
	temp, ok := r.Temperature.Value()
	if !ok {
		return fmt.Errorf("append %s: temperature %q not numeric", r.DeviceID, r.Temperature)
	}
	hum, ok := r.Humidity.Value()
	if !ok {
		return fmt.Errorf("append %s: humidity %q not numeric", r.DeviceID, r.Humidity)
	}
	soil, ok := r.SoilMoisture.Value()
	if !ok {
		return fmt.Errorf("append %s: soil_moisture %q not numeric", r.DeviceID, r.SoilMoisture)
	}

	point := influxdb2.NewPoint(rawMeasurement,
		map[string]string{"device_id": r.DeviceID},
		map[string]interface{}{"temperature": temp, "humidity": hum, "soil_moisture": soil},
		at)
	if err := l.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("append sample for %s: %w", r.DeviceID, err)
	}
	return nil
}

func (l *InfluxSampleLog) ScanAll(ctx context.Context) ([]messages.SensorReading, error) {
	flux := fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dh)
  |> filter(fn: (r) => r._measurement == %q)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
`, l.bucket, int(l.retention.Hours()), rawMeasurement)
	return l.query(ctx, flux)
}

func (l *InfluxSampleLog) ScanRange(ctx context.Context, deviceID string, from, to time.Time) ([]messages.SensorReading, error) {
	flux := fmt.Sprintf(`
from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %q and r.device_id == %q)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
`, l.bucket, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339), rawMeasurement, deviceID)
	return l.query(ctx, flux)
}

func (l *InfluxSampleLog) query(ctx context.Context, flux string) ([]messages.SensorReading, error) {
	res, err := l.client.QueryAPI(l.org).Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("sample scan: %w", err)
	}
	defer func() { _ = res.Close() }()

	var out []messages.SensorReading
	for res.Next() {
		rec := res.Record()
		deviceID, _ := rec.ValueByKey("device_id").(string)
		if deviceID == "" {
			continue
		}
		out = append(out, messages.SensorReading{
			DeviceID:     deviceID,
			Timestamp:    rec.Time().In(time.Local).Format(messages.TimeLayout),
			Temperature:  metricOf(rec.ValueByKey("temperature")),
			Humidity:     metricOf(rec.ValueByKey("humidity")),
			SoilMoisture: metricOf(rec.ValueByKey("soil_moisture")),
		})
	}
	if res.Err() != nil {
		return nil, fmt.Errorf("sample scan iter: %w", res.Err())
	}
	return out, nil
}

// PurgeAll drops the whole measurement. Sequenced after a successful report
// write; a purge failure leaves stale raw data that the next rollup may
// double-count.
func (l *InfluxSampleLog) PurgeAll(ctx context.Context) error {
	stop := time.Now().Add(time.Minute)
	start := stop.Add(-l.retention - time.Hour)
	predicate := fmt.Sprintf(`_measurement="%s"`, rawMeasurement)
	if err := l.client.DeleteAPI().DeleteWithName(ctx, l.org, l.bucket, start, stop, predicate); err != nil {
		return fmt.Errorf("purge sample log: %w", err)
	}
	return nil
}

func metricOf(v interface{}) messages.Metric {
	switch t := v.(type) {
	case float64:
		return messages.Metric(strconv.FormatFloat(t, 'f', -1, 64))
	case int64:
		return messages.Metric(strconv.FormatInt(t, 10))
	case string:
		return messages.Metric(t)
	default:
		return messages.Metric(messages.ErrSentinel)
	}
}

package report

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpotsystem/smartpot/internal/model/entities"
	"github.com/smartpotsystem/smartpot/internal/model/messages"
	"github.com/smartpotsystem/smartpot/internal/storage"
)

type fakeStateStore struct {
	states []entities.DeviceState
}

func (f *fakeStateStore) PutLatestReading(_ context.Context, _ messages.SensorReading) error {
	return nil
}
func (f *fakeStateStore) SetLastIrrigation(_ context.Context, _ string, _ time.Time) error {
	return nil
}
func (f *fakeStateStore) LastIrrigation(_ context.Context, _ string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}
func (f *fakeStateStore) Get(_ context.Context, _ string) (entities.DeviceState, bool, error) {
	return entities.DeviceState{}, false, nil
}
func (f *fakeStateStore) All(_ context.Context) ([]entities.DeviceState, error) {
	return f.states, nil
}

func newTestServer(t *testing.T, log *fakeSampleLog, devices []string) (*httptest.Server, *fakeReportStore) {
	t.Helper()
	c, reports, _ := newTestCompiler(t, log, &fakeCounterStore{}, devices)
	states := &fakeStateStore{states: []entities.DeviceState{
		{DeviceID: "Strawberry", Temperature: "21.5", Humidity: "70", SoilMoisture: "55"},
	}}
	srv := httptest.NewServer(NewHTTPMux(c, reports, states))
	t.Cleanup(srv.Close)
	return srv, reports
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestManualEndpointReturnsFilename(t *testing.T) {
	log := &fakeSampleLog{byDevice: map[string][]messages.SensorReading{
		"Strawberry": {sample("Strawberry", "20", "70", "55")},
	}}
	srv, _ := newTestServer(t, log, []string{"Strawberry"})

	resp := postJSON(t, srv.URL+"/reports/manual",
		manualRequest{DeviceID: "Strawberry", StartHour: 9, EndHour: 17})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "manual_report_Strawberry_9-17_2026-08-30.json", body["report_filename"])
}

func TestManualEndpointInvalidHoursIs400(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSampleLog{}, []string{"Strawberry"})

	resp := postJSON(t, srv.URL+"/reports/manual",
		manualRequest{DeviceID: "Strawberry", StartHour: 9, EndHour: 9})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestManualEndpointEmptyWindowIs404(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSampleLog{}, []string{"Strawberry"})

	resp := postJSON(t, srv.URL+"/reports/manual",
		manualRequest{DeviceID: "Strawberry", StartHour: 9, EndHour: 17})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "not found", body["error"])
}

func TestDailyEndpoint(t *testing.T) {
	log := &fakeSampleLog{all: []messages.SensorReading{sample("Basil", "21", "55", "45")}}
	srv, _ := newTestServer(t, log, []string{"Basil"})

	resp := postJSON(t, srv.URL+"/reports/daily", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "daily_report_2026-08-30.json", body["report_filename"])
}

func TestDailyEndpointNoDataIs404(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSampleLog{}, nil)

	resp := postJSON(t, srv.URL+"/reports/daily", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListAndFetchReports(t *testing.T) {
	srv, reports := newTestServer(t, &fakeSampleLog{}, nil)
	require.NoError(t, reports.Put(storage.ReportTypeDaily, "daily_report_2026-08-30.json", []byte(`{"scope":"ALL"}`)))

	resp, err := http.Get(srv.URL + "/reports")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Reports []storage.ReportInfo `json:"reports"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	require.Len(t, listing.Reports, 1)
	assert.Equal(t, "daily_report_2026-08-30.json", listing.Reports[0].Name)

	got, err := http.Get(srv.URL + "/reports/daily_report_2026-08-30.json")
	require.NoError(t, err)
	defer got.Body.Close()
	assert.Equal(t, http.StatusOK, got.StatusCode)

	missing, err := http.Get(srv.URL + "/reports/daily_report_1999-01-01.json")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestLatestDataEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSampleLog{}, nil)

	resp, err := http.Get(srv.URL + "/data/latest")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Devices []entities.DeviceState `json:"devices"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Devices, 1)
	assert.Equal(t, "Strawberry", body.Devices[0].DeviceID)
}

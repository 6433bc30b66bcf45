package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReportStore(t *testing.T) *BadgerReportStore {
	t.Helper()
	s, err := NewBadgerReportStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReportStorePutGet(t *testing.T) {
	s := newTestReportStore(t)

	blob := []byte(`{"scope":"ALL"}`)
	require.NoError(t, s.Put(ReportTypeDaily, "daily_report_2026-08-30.json", blob))

	got, err := s.Get("daily_report_2026-08-30.json")
	require.NoError(t, err)
	assert.Equal(t, blob, got)

	_, err = s.Get("daily_report_1999-01-01.json")
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestReportStoreRejectsUnknownType(t *testing.T) {
	s := newTestReportStore(t)
	assert.Error(t, s.Put("weekly", "x.json", []byte("{}")))
}

func TestReportStoreGetSearchesBothTypes(t *testing.T) {
	s := newTestReportStore(t)

	require.NoError(t, s.Put(ReportTypeManual, "manual_report_Basil_9-17_2026-08-30.json", []byte("m")))
	got, err := s.Get("manual_report_Basil_9-17_2026-08-30.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("m"), got)
}

func TestReportStoreList(t *testing.T) {
	s := newTestReportStore(t)

	require.NoError(t, s.Put(ReportTypeManual, "manual_report_All_8-12_2026-08-30.json", []byte("m")))
	require.NoError(t, s.Put(ReportTypeDaily, "daily_report_2026-08-30.json", []byte("d")))
	require.NoError(t, s.Put(ReportTypeDaily, "daily_report_2026-08-29.json", []byte("d")))

	infos, err := s.List()
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, ReportInfo{Name: "daily_report_2026-08-29.json", Type: ReportTypeDaily}, infos[0])
	assert.Equal(t, ReportInfo{Name: "daily_report_2026-08-30.json", Type: ReportTypeDaily}, infos[1])
	assert.Equal(t, ReportInfo{Name: "manual_report_All_8-12_2026-08-30.json", Type: ReportTypeManual}, infos[2])
}

func TestReportStoreOverwriteSameName(t *testing.T) {
	s := newTestReportStore(t)

	require.NoError(t, s.Put(ReportTypeDaily, "daily_report_2026-08-30.json", []byte("first")))
	require.NoError(t, s.Put(ReportTypeDaily, "daily_report_2026-08-30.json", []byte("second")))

	got, err := s.Get("daily_report_2026-08-30.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

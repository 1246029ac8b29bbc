package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/argan/internal/config"
	"github.com/mamadbah2/argan/internal/domain/models"
)

type stubReports struct {
	start, end time.Time
}

func (r *stubReports) WeeklySummary(start, end time.Time) string {
	r.start, r.end = start, end
	return "weekly"
}

func (r *stubReports) SalesRows(sales []models.Sale) [][]interface{} {
	rows := [][]interface{}{{"header"}}
	for _, s := range sales {
		rows = append(rows, []interface{}{s.InvoiceNumber})
	}
	return rows
}

type stubSales []models.Sale

func (s stubSales) Sales(string) []models.Sale { return s }

type stubMessenger struct {
	sent []models.OutboundMessageRequest
	err  error
}

func (m *stubMessenger) SendOutbound(_ context.Context, req models.OutboundMessageRequest) error {
	m.sent = append(m.sent, req)
	return m.err
}

type stubMirror struct {
	sheetRange string
	rows       [][]interface{}
}

func (m *stubMirror) ReplaceRange(_ context.Context, sheetRange string, rows [][]interface{}) error {
	m.sheetRange, m.rows = sheetRange, rows
	return nil
}

func testConfig() config.Config {
	var cfg config.Config
	cfg.Reporting = config.ReportingConfig{CronSchedule: "0 20 * * 5", Timezone: "Africa/Casablanca"}
	cfg.WhatsApp.ReportTo = "212600"
	cfg.Sheets.SalesRange = "Sales!A:G"
	return cfg
}

func TestNewSchedulerRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Reporting.CronSchedule = "every friday"
	_, err := NewScheduler(cfg, &stubReports{}, stubSales{}, nil, nil, nil)
	require.Error(t, err)

	cfg = testConfig()
	cfg.Reporting.Timezone = "Mars/Olympus"
	_, err = NewScheduler(cfg, &stubReports{}, stubSales{}, nil, nil, nil)
	require.Error(t, err)
}

func TestWeeklyReportCoversLastSevenDays(t *testing.T) {
	reports := &stubReports{}
	messenger := &stubMessenger{}
	s, err := NewScheduler(testConfig(), reports, stubSales{}, messenger, nil, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2025, time.March, 14, 19, 0, 0, 0, time.UTC) }

	require.NoError(t, s.sendWeeklyReport(context.Background()))

	assert.Equal(t, time.Date(2025, time.March, 8, 0, 0, 0, 0, time.UTC), reports.start)
	assert.Equal(t, 14, reports.end.Day())
	require.Len(t, messenger.sent, 1)
	assert.Equal(t, models.OutboundMessageRequest{To: "212600", Message: "weekly"}, messenger.sent[0])
}

func TestWeeklyReportSkippedWithoutRecipient(t *testing.T) {
	cfg := testConfig()
	cfg.WhatsApp.ReportTo = ""
	messenger := &stubMessenger{}
	s, err := NewScheduler(cfg, &stubReports{}, stubSales{}, messenger, nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.sendWeeklyReport(context.Background()))
	assert.Empty(t, messenger.sent)
}

func TestWeeklyReportSendError(t *testing.T) {
	boom := errors.New("meta down")
	s, err := NewScheduler(testConfig(), &stubReports{}, stubSales{}, &stubMessenger{err: boom}, nil, nil)
	require.NoError(t, err)
	require.ErrorIs(t, s.sendWeeklyReport(context.Background()), boom)
}

func TestMirrorSales(t *testing.T) {
	mirror := &stubMirror{}
	sales := stubSales{{InvoiceNumber: "F-1"}, {InvoiceNumber: "F-2"}}
	s, err := NewScheduler(testConfig(), &stubReports{}, sales, nil, mirror, nil)
	require.NoError(t, err)

	require.NoError(t, s.mirrorSales(context.Background()))
	assert.Equal(t, "Sales!A:G", mirror.sheetRange)
	assert.Equal(t, [][]interface{}{{"header"}, {"F-1"}, {"F-2"}}, mirror.rows)
}

func TestStartAndStop(t *testing.T) {
	s, err := NewScheduler(testConfig(), &stubReports{}, stubSales{}, nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	require.Len(t, s.cron.Entries(), 1)
	s.Stop()
}

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/argan/internal/config"
	"github.com/mamadbah2/argan/internal/domain/models"
	"github.com/mamadbah2/argan/internal/repository/sheets"
)

const jobTimeout = 2 * time.Minute

// ReportBuilder renders the periodic report and the sales mirror.
type ReportBuilder interface {
	WeeklySummary(start, end time.Time) string
	SalesRows(sales []models.Sale) [][]interface{}
}

// SalesSource lists the recorded sales.
type SalesSource interface {
	Sales(search string) []models.Sale
}

// Messenger delivers the report. whatsapp.MessagingService satisfies it.
type Messenger interface {
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron      *cron.Cron
	schedule  string
	reports   ReportBuilder
	sales     SalesSource
	messenger Messenger
	mirror    sheets.Repository
	reportTo  string
	salesRng  string
	location  *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewScheduler creates a new scheduler instance. messenger and mirror may be
// nil, in which case the matching step is skipped.
func NewScheduler(cfg config.Config, reports ReportBuilder, sales SalesSource, messenger Messenger, mirror sheets.Repository, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Reporting.Timezone, err)
	}
	if _, err := cron.ParseStandard(cfg.Reporting.CronSchedule); err != nil {
		return nil, fmt.Errorf("parse report schedule %q: %w", cfg.Reporting.CronSchedule, err)
	}

	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		schedule:  cfg.Reporting.CronSchedule,
		reports:   reports,
		sales:     sales,
		messenger: messenger,
		mirror:    mirror,
		reportTo:  cfg.WhatsApp.ReportTo,
		salesRng:  cfg.Sheets.SalesRange,
		location:  loc,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runWeeklyJobs); err != nil {
		return fmt.Errorf("schedule weekly report: %w", err)
	}

	s.logger.Info("starting scheduler", zap.String("schedule", s.schedule), zap.String("timezone", s.location.String()))
	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runWeeklyJobs() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.sendWeeklyReport(ctx); err != nil {
		s.logger.Error("failed to send weekly report", zap.Error(err))
	}
	if err := s.mirrorSales(ctx); err != nil {
		s.logger.Error("failed to mirror sales", zap.Error(err))
	}
}

// sendWeeklyReport covers the seven days ending today.
func (s *Scheduler) sendWeeklyReport(ctx context.Context) error {
	if s.messenger == nil || s.reportTo == "" {
		s.logger.Debug("weekly report delivery not configured")
		return nil
	}

	now := s.now().In(s.location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -6)
	end := today.Add(24*time.Hour - time.Nanosecond)

	s.logger.Info("generating weekly report", zap.Time("start", start), zap.Time("end", end))
	report := s.reports.WeeklySummary(start, end)

	if err := s.messenger.SendOutbound(ctx, models.OutboundMessageRequest{To: s.reportTo, Message: report}); err != nil {
		return err
	}
	s.logger.Info("weekly report sent successfully")
	return nil
}

func (s *Scheduler) mirrorSales(ctx context.Context) error {
	if s.mirror == nil {
		return nil
	}

	sales := s.sales.Sales("")
	if err := s.mirror.ReplaceRange(ctx, s.salesRng, s.reports.SalesRows(sales)); err != nil {
		return err
	}
	s.logger.Info("sales mirrored", zap.Int("rows", len(sales)), zap.String("range", s.salesRng))
	return nil
}

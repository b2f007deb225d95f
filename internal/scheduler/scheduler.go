package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/dcespedes8/avicontrol/internal/config"
	"github.com/dcespedes8/avicontrol/internal/service/reporting"
	"github.com/dcespedes8/avicontrol/internal/store"
)

// Scheduler runs the periodic maintenance tasks: on-disk backup snapshots and
// the daily summary export.
type Scheduler struct {
	cron         *cron.Cron
	store        *store.Store
	reportingSvc *reporting.Service
	cfg          config.Config
	logger       *zap.Logger
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(cfg config.Config, st *store.Store, reportingSvc *reporting.Service, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		cron:         cron.New(),
		store:        st,
		reportingSvc: reportingSvc,
		cfg:          cfg,
		logger:       logger,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", zap.String("backup_cron", s.cfg.Backup.CronSchedule))

	if _, err := s.cron.AddFunc(s.cfg.Backup.CronSchedule, s.writeBackupSnapshot); err != nil {
		s.logger.Error("failed to schedule backup snapshot", zap.Error(err))
	}

	if s.cfg.SheetsEnabled() {
		// Export shortly after the backup so the spreadsheet reflects the
		// same cutoff.
		if _, err := s.cron.AddFunc(s.cfg.Backup.CronSchedule, s.exportDailySummary); err != nil {
			s.logger.Error("failed to schedule summary export", zap.Error(err))
		}
	}

	s.cron.Start()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

func (s *Scheduler) writeBackupSnapshot() {
	data, err := s.store.ExportJSON()
	if err != nil {
		s.logger.Error("backup snapshot failed", zap.Error(err))
		return
	}

	if err := os.MkdirAll(s.cfg.Storage.BackupDir, 0o755); err != nil {
		s.logger.Error("backup directory unavailable", zap.Error(err))
		return
	}

	name := fmt.Sprintf("avicontrol-%s.json", time.Now().Format("20060102-150405"))
	path := filepath.Join(s.cfg.Storage.BackupDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.logger.Error("backup snapshot write failed", zap.String("path", path), zap.Error(err))
		return
	}
	s.logger.Info("backup snapshot written", zap.String("path", path))
}

func (s *Scheduler) exportDailySummary() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.reportingSvc.ExportDailySummary(ctx); err != nil {
		s.logger.Error("daily summary export failed", zap.Error(err))
	}
}

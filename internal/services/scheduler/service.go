package scheduler

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/finsight-ai/finsight/internal/common"
	"github.com/finsight-ai/finsight/internal/interfaces"
	"github.com/finsight-ai/finsight/internal/services/resolver"
	"github.com/finsight-ai/finsight/internal/services/summary"
)

// storageGCSchedule is fixed rather than configurable; GC is cheap and a
// no-op when there is nothing to collect.
const storageGCSchedule = "@every 1h"

// Service runs background maintenance on a cron schedule: entity summary
// refresh and consistency verification. Verification only reports; repair
// is administrative and never runs automatically.
type Service struct {
	cron       *cron.Cron
	summarySvc *summary.Service
	resolver   *resolver.Service
	storage    interfaces.StorageManager
	config     *common.SchedulerConfig
	logger     arbor.ILogger

	refreshRunning int32
	verifyRunning  int32
}

// NewService creates a scheduler. Schedules use six-field cron expressions
// (with seconds).
func NewService(
	summarySvc *summary.Service,
	resolverSvc *resolver.Service,
	storage interfaces.StorageManager,
	config *common.SchedulerConfig,
	logger arbor.ILogger,
) *Service {
	return &Service{
		cron:       cron.New(cron.WithSeconds()),
		summarySvc: summarySvc,
		resolver:   resolverSvc,
		storage:    storage,
		config:     config,
		logger:     logger,
	}
}

// ErrDisabled is returned by Start when the scheduler is switched off in
// configuration. Background maintenance is strictly opt-in.
var ErrDisabled = errors.New("scheduler is disabled; set scheduler.enabled = true to run background maintenance")

// Start registers the jobs and starts the cron runner
func (s *Service) Start() error {
	if !s.config.Enabled {
		return ErrDisabled
	}

	if _, err := s.cron.AddFunc(s.config.SummaryRefreshCron, s.runSummaryRefresh); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.config.ConsistencyVerifyCron, s.runConsistencyVerify); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(storageGCSchedule, s.runStorageGC); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("summary_refresh", s.config.SummaryRefreshCron).
		Str("consistency_verify", s.config.ConsistencyVerifyCron).
		Msg("Scheduler started")
	return nil
}

// Stop stops the cron runner and waits for running jobs to finish
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// runSummaryRefresh regenerates entity narratives. Skipped when the
// previous run is still in flight.
func (s *Service) runSummaryRefresh() {
	if !atomic.CompareAndSwapInt32(&s.refreshRunning, 0, 1) {
		s.logger.Warn().Msg("Summary refresh still running; skipping this tick")
		return
	}
	defer atomic.StoreInt32(&s.refreshRunning, 0)

	if err := s.summarySvc.RefreshEntitySummaries(context.Background()); err != nil {
		s.logger.Error().Err(err).Msg("Scheduled summary refresh failed")
	}
}

// runConsistencyVerify logs a cross-collection consistency report
func (s *Service) runConsistencyVerify() {
	if !atomic.CompareAndSwapInt32(&s.verifyRunning, 0, 1) {
		s.logger.Warn().Msg("Consistency verification still running; skipping this tick")
		return
	}
	defer atomic.StoreInt32(&s.verifyRunning, 0)

	report, err := s.resolver.VerifyConsistency(context.Background())
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled consistency verification failed")
		return
	}

	if report.Consistent() {
		s.logger.Info().
			Int("compared", report.Compared).
			Msg("Collections consistent")
		return
	}

	s.logger.Warn().
		Int("mismatches", report.Mismatches).
		Int("orphan_transcripts", report.TranscriptsWithoutSummary).
		Int("orphan_summaries", report.SummariesWithoutTranscript).
		Msg("Identifier mismatches detected; run repair manually")
}

// runStorageGC reclaims storage space
func (s *Service) runStorageGC() {
	if err := s.storage.RunGC(); err != nil {
		s.logger.Error().Err(err).Msg("Storage garbage collection failed")
	}
}

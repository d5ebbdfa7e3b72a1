// Package scheduler repeats forecast runs on a cron schedule and answers bot
// commands between them.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"PriceForecaster/internal/notifier"
	"PriceForecaster/internal/recorder"
)

// Job is one unit of scheduled work, normally a pipeline run.
type Job func(ctx context.Context) error

// Scheduler manages the cron task.
type Scheduler struct {
	Cron     *cron.Cron
	Job      Job
	Recorder recorder.Recorder
	Ctx      context.Context

	running atomic.Bool
}

// NewScheduler creates a new Scheduler. Cron expressions have a seconds field.
func NewScheduler(ctx context.Context, job Job, rec recorder.Recorder) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Job:      job,
		Recorder: rec,
		Ctx:      ctx,
	}
}

// Register schedules the job.
func (s *Scheduler) Register(expr string) error {
	if _, err := s.Cron.AddFunc(expr, func() { s.RunNow() }); err != nil {
		return fmt.Errorf("register forecast task %q: %w", expr, err)
	}
	log.Info().Str("cron", expr).Msg("forecast task registered")
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunNow executes the job unless one is already running. It reports whether
// the job was started.
func (s *Scheduler) RunNow() bool {
	if !s.running.CompareAndSwap(false, true) {
		log.Warn().Msg("forecast run already in progress, skipping")
		return false
	}
	defer s.running.Store(false)

	log.Info().Msg("running forecast task")
	if err := s.Job(s.Ctx); err != nil {
		log.Error().Err(err).Msg("forecast task failed")
	}
	return true
}

// Running reports whether a job is in progress.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(_ context.Context, command string) string {
	switch commandName(command) {
	case "/run":
		if s.Running() {
			return "⏳ A forecast run is already in progress."
		}
		go s.RunNow()
		return "🚀 Forecast run started."
	case "/status":
		last, err := s.Recorder.LastRun()
		if err != nil {
			log.Error().Err(err).Msg("load last run")
			return "❌ Could not load run history."
		}
		status := notifier.FormatStatus(last)
		if s.Running() {
			status += "\n⏳ A run is in progress."
		}
		return status
	default:
		return notifier.FormatHelp()
	}
}

// commandName strips arguments and the "@botname" suffix group chats append.
func commandName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	name, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(name)
}

// Package scheduler provides the background jobs that close expired
// league sessions and roll over due goals.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ecoloop/recycle-league/internal/config"
	prommetrics "github.com/ecoloop/recycle-league/internal/metrics"
	"github.com/ecoloop/recycle-league/pkg/logger"
)

// SeasonService closes expired sessions.
type SeasonService interface {
	CloseExpired(ctx context.Context) (int, error)
}

// GoalsService rolls over due goals.
type GoalsService interface {
	RolloverDue(ctx context.Context) (int, error)
}

// Service handles background job scheduling.
type Service struct {
	config  *config.SchedulerConfig
	seasons SeasonService
	goals   GoalsService
	log     *logger.Logger
	cron    *cron.Cron
}

// NewService creates a new scheduler service.
func NewService(
	cfg *config.SchedulerConfig,
	seasons SeasonService,
	goals GoalsService,
	log *logger.Logger,
) *Service {
	return &Service{
		config:  cfg,
		seasons: seasons,
		goals:   goals,
		log:     log,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := time.LoadLocation(s.config.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	closeExpr, err := buildCronExpression(s.config.SessionCloseTime)
	if err != nil {
		return fmt.Errorf("failed to build session close schedule: %w", err)
	}

	_, err = s.cron.AddFunc(closeExpr, func() {
		s.runSessionCloseSweep(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to register session close job: %w", err)
	}

	if s.config.GoalRolloverTime != "" && s.goals != nil {
		_, err = s.cron.AddFunc(s.config.GoalRolloverTime, func() {
			s.runGoalRollover(context.Background())
		})
		if err != nil {
			return fmt.Errorf("failed to register goal rollover job: %w", err)
		}
		s.log.Info().
			Str("schedule", s.config.GoalRolloverTime).
			Msg("Goal rollover job registered")
	}

	s.cron.Start()

	entries := s.cron.Entries()
	nextRun := ""
	if len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("schedule", closeExpr).
		Str("timezone", s.config.Timezone).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// buildCronExpression generates a daily cron expression from "HH:MM".
func buildCronExpression(at string) (string, error) {
	parts := strings.Split(at, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time format %q, expected HH:MM", at)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour %q", parts[0])
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute %q", parts[1])
	}

	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// runSessionCloseSweep executes the expired-session close job.
func (s *Service) runSessionCloseSweep(ctx context.Context) {
	start := time.Now()
	defer func() {
		prommetrics.ObserveSchedulerJobDuration("session_close", time.Since(start).Seconds())
		prommetrics.SetSchedulerLastRun()
	}()

	s.log.Info().Msg("Running session close sweep")

	closed, err := s.seasons.CloseExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Session close sweep failed")
		prommetrics.RecordSchedulerJobRun("session_close", "error")
		return
	}

	prommetrics.RecordSchedulerJobRun("session_close", "success")
	s.log.Info().
		Int("sessions_closed", closed).
		Dur("duration", time.Since(start)).
		Msg("Session close sweep completed")
}

// runGoalRollover executes the due-goal rollover job.
func (s *Service) runGoalRollover(ctx context.Context) {
	start := time.Now()
	defer func() {
		prommetrics.ObserveSchedulerJobDuration("goal_rollover", time.Since(start).Seconds())
	}()

	s.log.Info().Msg("Running goal rollover job")

	processed, err := s.goals.RolloverDue(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Goal rollover job failed")
		prommetrics.RecordSchedulerJobRun("goal_rollover", "error")
		return
	}

	prommetrics.RecordSchedulerJobRun("goal_rollover", "success")
	s.log.Info().
		Int("goals_processed", processed).
		Dur("duration", time.Since(start)).
		Msg("Goal rollover job completed")
}

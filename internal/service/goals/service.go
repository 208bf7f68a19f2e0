// Package goals implements recurring recycling/reduction goal tracking.
package goals

import (
	"context"
	"math"
	"time"

	"github.com/ecoloop/recycle-league/internal/config"
	"github.com/ecoloop/recycle-league/internal/errs"
	prommetrics "github.com/ecoloop/recycle-league/internal/metrics"
	"github.com/ecoloop/recycle-league/internal/models"
	"github.com/ecoloop/recycle-league/internal/repository"
	"github.com/ecoloop/recycle-league/pkg/logger"
)

// GoalRepository interface for goal persistence.
type GoalRepository interface {
	Create(goal *models.Goal) error
	GetByID(id uint) (*models.Goal, error)
	Update(goal *models.Goal) error
	ListByUser(userID uint) ([]models.Goal, error)
	ListDue(now time.Time) ([]models.Goal, error)
}

// UserRepository interface for user lookups.
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
}

// PointsLedger awards completion points into the matching category.
type PointsLedger interface {
	Increment(ctx context.Context, userID uint, category models.PointCategory, amount int) (*models.PointsPunctuation, error)
}

// Service handles goal progress, completion scoring and due-date rollover.
type Service struct {
	goalRepo    GoalRepository
	userRepo    UserRepository
	ledger      PointsLedger
	basePoints  int
	decayFactor float64
	skipDays    int
	log         *logger.Logger
	now         func() time.Time
}

// NewService creates a new goals service with concrete repository types.
func NewService(
	goalRepo *repository.GoalRepository,
	userRepo *repository.UserRepository,
	ledger PointsLedger,
	cfg *config.GoalsConfig,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(goalRepo, userRepo, ledger, cfg, log)
}

// NewServiceWithInterfaces creates a new goals service with interface
// dependencies (useful for testing).
func NewServiceWithInterfaces(
	goalRepo GoalRepository,
	userRepo UserRepository,
	ledger PointsLedger,
	cfg *config.GoalsConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		goalRepo:    goalRepo,
		userRepo:    userRepo,
		ledger:      ledger,
		basePoints:  cfg.BasePoints,
		decayFactor: cfg.DecayFactor,
		skipDays:    cfg.DefaultSkipDays,
		log:         log,
		now:         time.Now,
	}
}

// WithClock overrides the service clock (useful for testing).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateGoal creates a new goal for a user. Goals due in the future
// start as NEXT; already-due goals start as ACTUAL.
func (s *Service) CreateGoal(ctx context.Context, goal *models.Goal) (*models.Goal, error) {
	if _, err := s.userRepo.GetByID(goal.UserID); err != nil {
		return nil, err
	}
	if goal.Kind != models.GoalKindRecycle && goal.Kind != models.GoalKindReduce {
		return nil, errs.Validation("unknown goal kind %q", goal.Kind)
	}
	if goal.NextCheck.IsZero() {
		return nil, errs.Validation("goal next check date is required")
	}

	goal.Progress = clampProgress(goal.Progress)
	if goal.Multiplier <= 0 {
		goal.Multiplier = 1
	}
	if goal.NextCheck.After(s.now()) {
		goal.Status = models.GoalStatusNext
	} else {
		goal.Status = models.GoalStatusActual
	}
	if goal.Kind == models.GoalKindReduce && goal.SkipDaysLeft == 0 {
		goal.SkipDaysLeft = s.skipDays
	}

	if err := s.goalRepo.Create(goal); err != nil {
		return nil, err
	}

	s.log.Info().
		Uint("goal_id", goal.ID).
		Uint("user_id", goal.UserID).
		Str("kind", string(goal.Kind)).
		Str("status", goal.Status).
		Msg("Goal created")

	return goal, nil
}

// ListByUser returns all goals of a user.
func (s *Service) ListByUser(ctx context.Context, userID uint) ([]models.Goal, error) {
	if _, err := s.userRepo.GetByID(userID); err != nil {
		return nil, err
	}
	return s.goalRepo.ListByUser(userID)
}

// GetByID returns a single goal.
func (s *Service) GetByID(ctx context.Context, goalID uint) (*models.Goal, error) {
	return s.goalRepo.GetByID(goalID)
}

// IncrementProgress advances a goal's progress, clamped to [0, 100].
// Reaching 100 completes the goal: points are awarded and a successor
// instance is created for the next period.
func (s *Service) IncrementProgress(ctx context.Context, goalID uint, amount float64) (*models.Goal, error) {
	goal, err := s.goalRepo.GetByID(goalID)
	if err != nil {
		return nil, err
	}
	if goal.Status != models.GoalStatusActual {
		return nil, errs.Validation("goal %d is not active (status %s)", goalID, goal.Status)
	}

	goal.Progress = clampProgress(goal.Progress + amount)

	if goal.Progress >= 100 {
		return s.complete(ctx, goal)
	}

	if err := s.goalRepo.Update(goal); err != nil {
		return nil, err
	}
	return goal, nil
}

// EditNextCheck advances a goal's due date.
func (s *Service) EditNextCheck(ctx context.Context, goalID uint, nextCheck time.Time) (*models.Goal, error) {
	goal, err := s.goalRepo.GetByID(goalID)
	if err != nil {
		return nil, err
	}
	if goal.Status == models.GoalStatusInactive {
		return nil, errs.Validation("goal %d is inactive", goalID)
	}
	if !nextCheck.After(goal.NextCheck) {
		return nil, errs.Validation("next check must advance beyond %s", goal.NextCheck.Format(time.RFC3339))
	}

	goal.NextCheck = nextCheck
	if err := s.goalRepo.Update(goal); err != nil {
		return nil, err
	}
	return goal, nil
}

// RolloverDue processes every goal whose next check has passed:
// NEXT goals become ACTUAL, incomplete ACTUAL goals either renew with a
// decayed multiplier or go INACTIVE when abandoned. Returns the number
// of goals processed.
func (s *Service) RolloverDue(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.goalRepo.ListDue(now)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range due {
		goal := &due[i]
		if err := s.rollover(goal, now); err != nil {
			s.log.Error().Err(err).Uint("goal_id", goal.ID).Msg("Failed to roll over goal")
			continue
		}
		processed++
	}

	return processed, nil
}

// rollover applies the frequency rules to one due goal.
func (s *Service) rollover(goal *models.Goal, now time.Time) error {
	switch goal.Status {
	case models.GoalStatusNext:
		goal.Status = models.GoalStatusActual
		goal.NextCheck = goal.NextCheck.Add(goal.FrequencyInterval())
		prommetrics.RecordGoalRollover("activated")

	case models.GoalStatusActual:
		if goal.Kind == models.GoalKindReduce {
			goal.SkipDaysLeft--
			if goal.SkipDaysLeft <= 0 && goal.Progress == 0 {
				goal.Status = models.GoalStatusInactive
				prommetrics.RecordGoalRollover("abandoned")
				break
			}
		} else if goal.Progress == 0 {
			goal.Status = models.GoalStatusInactive
			prommetrics.RecordGoalRollover("abandoned")
			break
		}

		goal.Multiplier = decay(goal.Multiplier, s.decayFactor)
		goal.NextCheck = goal.NextCheck.Add(goal.FrequencyInterval())
		prommetrics.RecordGoalRollover("renewed")
	}

	return s.goalRepo.Update(goal)
}

// complete finishes a goal at 100%: INACTIVE with a completion stamp,
// points awarded, successor created for the next period.
func (s *Service) complete(ctx context.Context, goal *models.Goal) (*models.Goal, error) {
	now := s.now()
	goal.Progress = 100
	goal.Status = models.GoalStatusInactive
	goal.CompletedAt = &now

	if err := s.goalRepo.Update(goal); err != nil {
		return nil, err
	}

	award := int(math.Round(float64(s.basePoints) * goal.DifficultyMultiplier() * goal.Multiplier))
	if award > 0 {
		category := models.CategoryRecycle
		if goal.Kind == models.GoalKindReduce {
			category = models.CategoryReduce
		}
		if _, err := s.ledger.Increment(ctx, goal.UserID, category, award); err != nil {
			s.log.Warn().
				Err(err).
				Uint("goal_id", goal.ID).
				Int("award", award).
				Msg("Failed to award completion points")
		}
	}

	successor := &models.Goal{
		UserID:       goal.UserID,
		Kind:         goal.Kind,
		Title:        goal.Title,
		Difficulty:   goal.Difficulty,
		Frequency:    goal.Frequency,
		Status:       models.GoalStatusNext,
		Multiplier:   1,
		NextCheck:    goal.NextCheck.Add(goal.FrequencyInterval()),
		SkipDaysLeft: goal.SkipDaysLeft,
	}
	if goal.Kind == models.GoalKindReduce {
		if successor.SkipDaysLeft <= 0 {
			successor.SkipDaysLeft = s.skipDays
		}
		for _, t := range goal.Targets {
			successor.Targets = append(successor.Targets, models.ReduceTarget{
				Material: t.Material,
				Quantity: t.Quantity,
			})
		}
	}
	if err := s.goalRepo.Create(successor); err != nil {
		s.log.Error().Err(err).Uint("goal_id", goal.ID).Msg("Failed to create successor goal")
	}

	prommetrics.RecordGoalCompleted(string(goal.Kind))

	s.log.Info().
		Uint("goal_id", goal.ID).
		Uint("user_id", goal.UserID).
		Int("award", award).
		Msg("Goal completed")

	return goal, nil
}

// clampProgress keeps progress inside [0, 100].
func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// decay applies the miss decay to a multiplier, flooring at zero.
func decay(multiplier, factor float64) float64 {
	m := multiplier * factor
	if m < 0 {
		return 0
	}
	return m
}

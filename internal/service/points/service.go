// Package points implements the per-user points ledger.
package points

import (
	"context"
	"fmt"
	"time"

	"github.com/ecoloop/recycle-league/internal/errs"
	prommetrics "github.com/ecoloop/recycle-league/internal/metrics"
	"github.com/ecoloop/recycle-league/internal/models"
	"github.com/ecoloop/recycle-league/internal/repository"
	"github.com/ecoloop/recycle-league/pkg/logger"
)

// PointsRepository interface for ledger operations.
type PointsRepository interface {
	Create(p *models.PointsPunctuation) error
	GetLatestByUserID(userID uint) (*models.PointsPunctuation, error)
	Increment(userID uint, category models.PointCategory, amount int, now time.Time) (*models.PointsPunctuation, error)
	Decrement(userID uint, category models.PointCategory, amount int, now time.Time) (*models.PointsPunctuation, error)
	Edit(userID uint, category models.PointCategory, value int, now time.Time) (*models.PointsPunctuation, error)
}

// UserRepository interface for user directory lookups.
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
}

// MembershipRepository interface for mirroring ledger deltas into the
// user's open session standing.
type MembershipRepository interface {
	GetOpenMembership(userID uint) (*models.UserPunctuation, error)
	AddSessionPoints(userID, sessionID uint, delta int) error
}

// Service implements the points ledger operations.
type Service struct {
	pointsRepo PointsRepository
	userRepo   UserRepository
	memberRepo MembershipRepository
	log        *logger.Logger
	now        func() time.Time
}

// NewService creates a new points service with concrete repository types.
func NewService(
	pointsRepo *repository.PointsRepository,
	userRepo *repository.UserRepository,
	memberRepo *repository.LeagueRepository,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(pointsRepo, userRepo, memberRepo, log)
}

// NewServiceWithInterfaces creates a new points service with interface
// dependencies (useful for testing).
func NewServiceWithInterfaces(
	pointsRepo PointsRepository,
	userRepo UserRepository,
	memberRepo MembershipRepository,
	log *logger.Logger,
) *Service {
	return &Service{
		pointsRepo: pointsRepo,
		userRepo:   userRepo,
		memberRepo: memberRepo,
		log:        log,
		now:        time.Now,
	}
}

// WithClock overrides the service clock (useful for testing).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// EnrollUser creates the initial ledger entry for a user.
func (s *Service) EnrollUser(ctx context.Context, userID uint) (*models.PointsPunctuation, error) {
	if _, err := s.userRepo.GetByID(userID); err != nil {
		return nil, err
	}

	entry := &models.PointsPunctuation{
		UserID:      userID,
		LastUpdated: s.now(),
	}
	if err := s.pointsRepo.Create(entry); err != nil {
		return nil, err
	}

	s.log.Info().Uint("user_id", userID).Msg("Points ledger entry created")
	return entry, nil
}

// Get returns the user's current ledger entry.
func (s *Service) Get(ctx context.Context, userID uint) (*models.PointsPunctuation, error) {
	if _, err := s.userRepo.GetByID(userID); err != nil {
		return nil, err
	}
	return s.pointsRepo.GetLatestByUserID(userID)
}

// GetByEmail returns the current ledger entry of the user with the given email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*models.PointsPunctuation, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	return s.pointsRepo.GetLatestByUserID(user.ID)
}

// Increment adds amount to one category of the user's ledger.
func (s *Service) Increment(ctx context.Context, userID uint, category models.PointCategory, amount int) (*models.PointsPunctuation, error) {
	if err := s.validateMutation(category, amount); err != nil {
		return nil, err
	}

	entry, err := s.pointsRepo.Increment(userID, category, amount, s.now())
	if err != nil {
		return nil, err
	}

	prommetrics.RecordPointsMutation(string(category), "increment")
	s.mirrorToSession(userID, amount)

	s.log.Debug().
		Uint("user_id", userID).
		Str("category", string(category)).
		Int("amount", amount).
		Int("total", entry.TotalPoints).
		Msg("Points incremented")

	return entry, nil
}

// Decrement subtracts amount from one category, flooring at zero.
func (s *Service) Decrement(ctx context.Context, userID uint, category models.PointCategory, amount int) (*models.PointsPunctuation, error) {
	if err := s.validateMutation(category, amount); err != nil {
		return nil, err
	}

	before, err := s.pointsRepo.GetLatestByUserID(userID)
	if err != nil {
		return nil, err
	}

	entry, err := s.pointsRepo.Decrement(userID, category, amount, s.now())
	if err != nil {
		return nil, err
	}

	prommetrics.RecordPointsMutation(string(category), "decrement")
	s.mirrorToSession(userID, entry.TotalPoints-before.TotalPoints)

	return entry, nil
}

// Edit sets one category to an absolute value. Negative values are
// rejected with a validation error, not clamped.
func (s *Service) Edit(ctx context.Context, userID uint, category models.PointCategory, value int) (*models.PointsPunctuation, error) {
	if !models.ValidCategory(category) {
		return nil, errs.Validation("unknown point category %q", category)
	}
	if value < 0 {
		return nil, errs.Validation("cannot set %s to negative value %d", category, value)
	}

	before, err := s.pointsRepo.GetLatestByUserID(userID)
	if err != nil {
		return nil, err
	}

	entry, err := s.pointsRepo.Edit(userID, category, value, s.now())
	if err != nil {
		return nil, err
	}

	prommetrics.RecordPointsMutation(string(category), "edit")
	s.mirrorToSession(userID, entry.TotalPoints-before.TotalPoints)

	return entry, nil
}

// validateMutation checks category and amount for increment/decrement.
func (s *Service) validateMutation(category models.PointCategory, amount int) error {
	if !models.ValidCategory(category) {
		return errs.Validation("unknown point category %q", category)
	}
	if amount < 0 {
		return errs.Validation("amount must be non-negative, got %d", amount)
	}
	return nil
}

// mirrorToSession applies a ledger delta to the user's open-session
// standing, if there is one. Failures are logged, not propagated; the
// ledger mutation already committed.
func (s *Service) mirrorToSession(userID uint, delta int) {
	if delta == 0 {
		return
	}

	membership, err := s.memberRepo.GetOpenMembership(userID)
	if err != nil {
		if !errs.IsNotFound(err) {
			s.log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to resolve open membership")
		}
		return
	}

	if err := s.memberRepo.AddSessionPoints(userID, membership.SessionID, delta); err != nil {
		s.log.Warn().
			Err(err).
			Uint("user_id", userID).
			Uint("session_id", membership.SessionID).
			Msg(fmt.Sprintf("Failed to mirror %+d points to session standing", delta))
	}
}

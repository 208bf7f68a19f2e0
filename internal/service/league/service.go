// Package league implements league session management and standings.
package league

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ecoloop/recycle-league/internal/cache"
	"github.com/ecoloop/recycle-league/internal/config"
	"github.com/ecoloop/recycle-league/internal/errs"
	prommetrics "github.com/ecoloop/recycle-league/internal/metrics"
	"github.com/ecoloop/recycle-league/internal/models"
	"github.com/ecoloop/recycle-league/internal/repository"
	"github.com/ecoloop/recycle-league/pkg/logger"
)

// LeagueRepository interface for league and session operations.
type LeagueRepository interface {
	GetLeagueByID(id uint) (*models.League, error)
	ListLeagues() ([]models.League, error)
	UpsertLeague(league *models.League) error
	CreateSession(session *models.LeagueSession) error
	GetSessionByID(id uint) (*models.LeagueSession, error)
	GetOpenSessionByLeague(leagueID uint) (*models.LeagueSession, error)
	Enroll(up *models.UserPunctuation) error
	GetMembers(sessionID uint) ([]models.UserPunctuation, error)
	GetOpenMembership(userID uint) (*models.UserPunctuation, error)
	GetActiveSessionForUser(userID uint, now time.Time) (*models.LeagueSession, error)
}

// UserRepository interface for user lookups.
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
}

// Service handles league sessions, enrollment and standings.
type Service struct {
	leagueRepo LeagueRepository
	userRepo   UserRepository
	cache      cache.Cache
	ttl        time.Duration
	log        *logger.Logger
	now        func() time.Time
}

// NewService creates a new league service with concrete repository types.
func NewService(
	leagueRepo *repository.LeagueRepository,
	userRepo *repository.UserRepository,
	standingsCache cache.Cache,
	cfg *config.LeaguesConfig,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(leagueRepo, userRepo, standingsCache, cfg.StandingsTTLDuration(), log)
}

// NewServiceWithInterfaces creates a new league service with interface
// dependencies (useful for testing).
func NewServiceWithInterfaces(
	leagueRepo LeagueRepository,
	userRepo UserRepository,
	standingsCache cache.Cache,
	ttl time.Duration,
	log *logger.Logger,
) *Service {
	return &Service{
		leagueRepo: leagueRepo,
		userRepo:   userRepo,
		cache:      standingsCache,
		ttl:        ttl,
		log:        log,
		now:        time.Now,
	}
}

// WithClock overrides the service clock (useful for testing).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// StandingsCacheKey returns the cache key for a session's standings.
func StandingsCacheKey(sessionID uint) string {
	return fmt.Sprintf("standings:%d", sessionID)
}

// SeedLeagues applies the league ladder definition at startup.
func (s *Service) SeedLeagues(ctx context.Context, seeds []config.LeagueSeed) error {
	for _, seed := range seeds {
		league := &models.League{
			Name:              seed.Name,
			Tier:              seed.Tier,
			MembersCount:      seed.MembersCount,
			PromotedCount:     seed.PromotedCount,
			RelegatedCount:    seed.RelegatedCount,
			PromotionEnabled:  seed.PromotionEnabled,
			RelegationEnabled: seed.RelegationEnabled,
		}
		if err := s.leagueRepo.UpsertLeague(league); err != nil {
			return fmt.Errorf("failed to seed league %q: %w", seed.Name, err)
		}
	}

	s.log.Info().Int("leagues", len(seeds)).Msg("League ladder seeded")
	return nil
}

// ListLeagues returns all leagues ordered by tier.
func (s *Service) ListLeagues(ctx context.Context) ([]models.League, error) {
	return s.leagueRepo.ListLeagues()
}

// CreateSession opens a new session for a league. The start date must
// precede the end date and the league must have no other open session.
func (s *Service) CreateSession(ctx context.Context, leagueID uint, start, end time.Time) (*models.LeagueSession, error) {
	if !start.Before(end) {
		return nil, errs.Validation("session start %s must be before end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	league, err := s.leagueRepo.GetLeagueByID(leagueID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.leagueRepo.GetOpenSessionByLeague(leagueID); err == nil {
		return nil, errs.Conflict("league %q already has open session %d", league.Name, existing.ID)
	} else if !errs.IsNotFound(err) {
		return nil, err
	}

	session := &models.LeagueSession{
		LeagueID:  leagueID,
		StartDate: start,
		EndDate:   end,
		Status:    models.SessionStatusOpen,
	}
	if err := s.leagueRepo.CreateSession(session); err != nil {
		return nil, err
	}

	prommetrics.SetOpenSessions(league.Name, 1)

	s.log.Info().
		Uint("session_id", session.ID).
		Str("league", league.Name).
		Time("start", start).
		Time("end", end).
		Msg("League session created")

	return session, nil
}

// Enroll adds a user to a session. A user may hold at most one
// open-session membership at a time.
func (s *Service) Enroll(ctx context.Context, userID, sessionID uint) (*models.UserPunctuation, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	session, err := s.leagueRepo.GetSessionByID(sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsOpen() {
		return nil, errs.Conflict("session %d is closed", sessionID)
	}

	if existing, err := s.leagueRepo.GetOpenMembership(userID); err == nil {
		return nil, errs.Conflict("user %s is already enrolled in open session %d", user.Username, existing.SessionID)
	} else if !errs.IsNotFound(err) {
		return nil, err
	}

	up := &models.UserPunctuation{
		UserID:     userID,
		SessionID:  sessionID,
		EnrolledAt: s.now(),
	}
	if err := s.leagueRepo.Enroll(up); err != nil {
		return nil, err
	}

	prommetrics.RecordEnrollment(session.League.Name)
	s.invalidateStandings(ctx, sessionID)

	s.log.Info().
		Uint("user_id", userID).
		Uint("session_id", sessionID).
		Str("league", session.League.Name).
		Msg("User enrolled in session")

	return up, nil
}

// ActiveSessionFor resolves the open session whose window contains now
// for the given user.
func (s *Service) ActiveSessionFor(ctx context.Context, userID uint) (*models.LeagueSession, error) {
	if _, err := s.userRepo.GetByID(userID); err != nil {
		return nil, err
	}
	return s.leagueRepo.GetActiveSessionForUser(userID, s.now())
}

// Standings returns the session members ordered descending by total
// points, ties broken by earliest enrollment. Results are cached.
func (s *Service) Standings(ctx context.Context, sessionID uint) ([]models.Standing, error) {
	if _, err := s.leagueRepo.GetSessionByID(sessionID); err != nil {
		return nil, err
	}

	key := StandingsCacheKey(sessionID)
	if cached, err := s.cache.Get(ctx, key); err == nil && cached != "" {
		var standings []models.Standing
		if err := json.Unmarshal([]byte(cached), &standings); err == nil {
			prommetrics.RecordStandingsCache("hit")
			return standings, nil
		}
	}
	prommetrics.RecordStandingsCache("miss")

	standings, err := s.computeStandings(sessionID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(standings); err == nil {
		if err := s.cache.Set(ctx, key, payload, s.ttl); err != nil {
			s.log.Warn().Err(err).Uint("session_id", sessionID).Msg("Failed to cache standings")
		}
	}

	return standings, nil
}

// computeStandings builds the ranked standings from session members.
func (s *Service) computeStandings(sessionID uint) ([]models.Standing, error) {
	members, err := s.leagueRepo.GetMembers(sessionID)
	if err != nil {
		return nil, err
	}

	standings := make([]models.Standing, 0, len(members))
	for i, m := range members {
		standings = append(standings, models.Standing{
			Rank:        i + 1,
			UserID:      m.UserID,
			Username:    m.User.Username,
			TotalPoints: m.TotalPoints,
			EnrolledAt:  m.EnrolledAt,
		})
	}

	return standings, nil
}

// InvalidateStandings drops the cached standings for a session.
func (s *Service) InvalidateStandings(ctx context.Context, sessionID uint) {
	s.invalidateStandings(ctx, sessionID)
}

func (s *Service) invalidateStandings(ctx context.Context, sessionID uint) {
	if err := s.cache.Del(ctx, StandingsCacheKey(sessionID)); err != nil {
		s.log.Warn().Err(err).Uint("session_id", sessionID).Msg("Failed to invalidate standings cache")
	}
}

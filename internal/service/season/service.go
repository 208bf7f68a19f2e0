// Package season implements the promotion/relegation engine that closes
// league sessions and re-seats members for the next period.
package season

import (
	"context"
	"time"

	"github.com/ecoloop/recycle-league/internal/cache"
	"github.com/ecoloop/recycle-league/internal/config"
	"github.com/ecoloop/recycle-league/internal/errs"
	prommetrics "github.com/ecoloop/recycle-league/internal/metrics"
	"github.com/ecoloop/recycle-league/internal/models"
	"github.com/ecoloop/recycle-league/internal/notify"
	"github.com/ecoloop/recycle-league/internal/repository"
	"github.com/ecoloop/recycle-league/internal/service/league"
	"github.com/ecoloop/recycle-league/pkg/logger"
)

// Notifier announces season results to a chat webhook.
type Notifier interface {
	SendSeasonSummary(leagueName string, moves []notify.SeasonMove) error
}

// Service executes session closures. All writes of one closure happen
// in a single database transaction; a configuration error rolls the
// whole closure back.
type Service struct {
	leagueRepo  *repository.LeagueRepository
	cache       cache.Cache
	notifier    Notifier
	sessionDays int
	log         *logger.Logger
	now         func() time.Time
}

// NewService creates a new season service.
func NewService(
	leagueRepo *repository.LeagueRepository,
	standingsCache cache.Cache,
	notifier Notifier,
	cfg *config.LeaguesConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		leagueRepo:  leagueRepo,
		cache:       standingsCache,
		notifier:    notifier,
		sessionDays: cfg.SessionDays,
		log:         log,
		now:         time.Now,
	}
}

// WithClock overrides the service clock (useful for testing).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CloseSession closes a session: ranks its members, promotes the top
// performers, relegates the bottom ones and enrolls everybody in the
// next period's session of their target league. Closing an
// already-closed session is a benign no-op.
func (s *Service) CloseSession(ctx context.Context, sessionID uint) (*models.CloseResult, error) {
	now := s.now()
	result := &models.CloseResult{
		SessionID:    sessionID,
		Movements:    make(map[uint]models.Movement),
		NextSessions: make(map[uint]uint),
	}

	var leagueName string
	var moves []notify.SeasonMove
	reopened := false

	err := s.leagueRepo.Transaction(func(txRepo *repository.LeagueRepository) error {
		session, err := txRepo.GetSessionByID(sessionID)
		if err != nil {
			return err
		}
		leagueName = session.League.Name

		// Claim the open->closed transition; exactly one closer wins.
		claimed, err := txRepo.ClaimClose(sessionID, now)
		if err != nil {
			return err
		}
		if !claimed {
			result.AlreadyClosed = true
			return nil
		}

		members, err := txRepo.GetMembers(sessionID)
		if err != nil {
			return err
		}

		promoted, relegated := effectiveCounts(&session.League)
		if promoted+relegated > len(members) {
			return errs.Configuration(
				"league %q: promoted_count %d + relegated_count %d exceeds %d members",
				session.League.Name, promoted, relegated, len(members))
		}

		higher, err := s.adjacentLeague(txRepo, session.League.Tier+1)
		if err != nil {
			return err
		}
		lower, err := s.adjacentLeague(txRepo, session.League.Tier-1)
		if err != nil {
			return err
		}

		nextSessions := make(map[uint]*models.LeagueSession)
		for i, m := range members {
			target := &session.League
			movement := models.MovementStayed

			switch {
			case i < promoted && higher != nil:
				target = higher
				movement = models.MovementPromoted
			case i >= len(members)-relegated && lower != nil:
				target = lower
				movement = models.MovementRelegated
			}

			next, err := s.nextSessionFor(txRepo, target, session.EndDate, nextSessions)
			if err != nil {
				return err
			}
			if next.LeagueID == session.LeagueID {
				reopened = true
			}

			up := &models.UserPunctuation{
				UserID:     m.UserID,
				SessionID:  next.ID,
				EnrolledAt: now,
			}
			if err := txRepo.Enroll(up); err != nil {
				return err
			}

			result.Movements[m.UserID] = movement
			result.NextSessions[m.UserID] = next.ID
			moves = append(moves, notify.SeasonMove{
				Username: m.User.Username,
				Movement: string(movement),
			})
		}

		return nil
	})
	if err != nil {
		prommetrics.RecordSessionClosed(leagueName, "error")
		return nil, err
	}

	if result.AlreadyClosed {
		prommetrics.RecordSessionClosed(leagueName, "already_closed")
		s.log.Info().Uint("session_id", sessionID).Msg("Session already closed, nothing to do")
		return result, nil
	}

	prommetrics.RecordSessionClosed(leagueName, "closed")
	if !reopened {
		prommetrics.SetOpenSessions(leagueName, 0)
	}
	prommetrics.ObserveSessionCloseMembers(leagueName, len(result.Movements))
	for _, movement := range result.Movements {
		prommetrics.RecordMemberMoved(leagueName, string(movement))
	}

	if err := s.cache.Del(ctx, league.StandingsCacheKey(sessionID)); err != nil {
		s.log.Warn().Err(err).Uint("session_id", sessionID).Msg("Failed to invalidate standings cache")
	}

	if s.notifier != nil {
		if err := s.notifier.SendSeasonSummary(leagueName, moves); err != nil {
			s.log.Warn().Err(err).Str("league", leagueName).Msg("Failed to send season summary")
		}
	}

	s.log.Info().
		Uint("session_id", sessionID).
		Str("league", leagueName).
		Int("members", len(result.Movements)).
		Msg("Session closed")

	return result, nil
}

// CloseExpired closes every open session whose end date has passed.
// Used by the scheduler sweep.
func (s *Service) CloseExpired(ctx context.Context) (int, error) {
	sessions, err := s.leagueRepo.ListExpiredOpenSessions(s.now())
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, session := range sessions {
		result, err := s.CloseSession(ctx, session.ID)
		if err != nil {
			s.log.Error().Err(err).Uint("session_id", session.ID).Msg("Failed to close expired session")
			continue
		}
		if !result.AlreadyClosed {
			closed++
		}
	}

	return closed, nil
}

// effectiveCounts returns the promotion and relegation counts after
// applying the league's enablement flags.
func effectiveCounts(l *models.League) (promoted, relegated int) {
	if l.PromotionEnabled {
		promoted = l.PromotedCount
	}
	if l.RelegationEnabled {
		relegated = l.RelegatedCount
	}
	return promoted, relegated
}

// adjacentLeague resolves the league at the given tier; a missing tier
// is not an error, it just makes the movement a no-op.
func (s *Service) adjacentLeague(txRepo *repository.LeagueRepository, tier int) (*models.League, error) {
	if tier < 1 {
		return nil, nil
	}
	l, err := txRepo.GetLeagueByTier(tier)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}

// nextSessionFor finds the target league's open session for the next
// period, creating one starting at the source session's end if needed.
func (s *Service) nextSessionFor(
	txRepo *repository.LeagueRepository,
	target *models.League,
	startAt time.Time,
	seen map[uint]*models.LeagueSession,
) (*models.LeagueSession, error) {
	if cached, ok := seen[target.ID]; ok {
		return cached, nil
	}

	session, err := txRepo.GetOpenSessionByLeague(target.ID)
	if err == nil {
		seen[target.ID] = session
		return session, nil
	}
	if !errs.IsNotFound(err) {
		return nil, err
	}

	session = &models.LeagueSession{
		LeagueID:  target.ID,
		StartDate: startAt,
		EndDate:   startAt.Add(time.Duration(s.sessionDays) * 24 * time.Hour),
		Status:    models.SessionStatusOpen,
	}
	if err := txRepo.CreateSession(session); err != nil {
		return nil, err
	}

	seen[target.ID] = session
	return session, nil
}

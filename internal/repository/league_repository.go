package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ecoloop/recycle-league/internal/errs"
	"github.com/ecoloop/recycle-league/internal/models"
)

// LeagueRepository handles league, session and membership database operations.
type LeagueRepository struct {
	db *DB
}

// NewLeagueRepository creates a new league repository.
func NewLeagueRepository(db *DB) *LeagueRepository {
	return &LeagueRepository{db: db}
}

// Transaction runs fn against a repository bound to a database transaction.
// Returning an error from fn rolls everything back.
func (r *LeagueRepository) Transaction(fn func(txRepo *LeagueRepository) error) error {
	return r.db.DB.Transaction(func(tx *gorm.DB) error {
		return fn(&LeagueRepository{db: &DB{tx}})
	})
}

// UpsertLeague creates a league or updates the existing one with the same tier.
func (r *LeagueRepository) UpsertLeague(league *models.League) error {
	var existing models.League
	err := r.db.Where("tier = ?", league.Tier).First(&existing).Error
	if err == nil {
		league.ID = existing.ID
		league.CreatedAt = existing.CreatedAt
		return r.db.Save(league).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to look up league tier %d: %w", league.Tier, err)
	}
	if err := r.db.Create(league).Error; err != nil {
		return fmt.Errorf("failed to create league %q: %w", league.Name, err)
	}
	return nil
}

// GetLeagueByID retrieves a league by ID.
func (r *LeagueRepository) GetLeagueByID(id uint) (*models.League, error) {
	var league models.League
	if err := r.db.First(&league, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("league %d not found", id)
		}
		return nil, fmt.Errorf("failed to get league %d: %w", id, err)
	}
	return &league, nil
}

// GetLeagueByTier retrieves a league by its tier number.
func (r *LeagueRepository) GetLeagueByTier(tier int) (*models.League, error) {
	var league models.League
	if err := r.db.Where("tier = ?", tier).First(&league).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("no league at tier %d", tier)
		}
		return nil, fmt.Errorf("failed to get league at tier %d: %w", tier, err)
	}
	return &league, nil
}

// ListLeagues retrieves all leagues ordered by tier.
func (r *LeagueRepository) ListLeagues() ([]models.League, error) {
	var leagues []models.League
	if err := r.db.Order("tier ASC").Find(&leagues).Error; err != nil {
		return nil, fmt.Errorf("failed to list leagues: %w", err)
	}
	return leagues, nil
}

// CreateSession creates a new league session.
func (r *LeagueRepository) CreateSession(session *models.LeagueSession) error {
	if err := r.db.Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSessionByID retrieves a session with its league preloaded.
func (r *LeagueRepository) GetSessionByID(id uint) (*models.LeagueSession, error) {
	var session models.LeagueSession
	if err := r.db.Preload("League").First(&session, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("session %d not found", id)
		}
		return nil, fmt.Errorf("failed to get session %d: %w", id, err)
	}
	return &session, nil
}

// GetOpenSessionByLeague retrieves the league's currently open session.
func (r *LeagueRepository) GetOpenSessionByLeague(leagueID uint) (*models.LeagueSession, error) {
	var session models.LeagueSession
	err := r.db.
		Where("league_id = ? AND status = ?", leagueID, models.SessionStatusOpen).
		Order("start_date DESC").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("league %d has no open session", leagueID)
		}
		return nil, fmt.Errorf("failed to get open session for league %d: %w", leagueID, err)
	}
	return &session, nil
}

// ListExpiredOpenSessions retrieves open sessions whose window has ended.
func (r *LeagueRepository) ListExpiredOpenSessions(now time.Time) ([]models.LeagueSession, error) {
	var sessions []models.LeagueSession
	err := r.db.
		Where("status = ? AND end_date <= ?", models.SessionStatusOpen, now).
		Order("end_date ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired sessions: %w", err)
	}
	return sessions, nil
}

// ClaimClose transitions a session from open to closed. It is a guarded
// update: exactly one caller wins the transition, every later call sees
// zero rows affected and reports alreadyClosed.
func (r *LeagueRepository) ClaimClose(sessionID uint, now time.Time) (claimed bool, err error) {
	res := r.db.Model(&models.LeagueSession{}).
		Where("id = ? AND status = ?", sessionID, models.SessionStatusOpen).
		Updates(map[string]interface{}{
			"status":    models.SessionStatusClosed,
			"closed_at": now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to close session %d: %w", sessionID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Enroll creates a membership for a user in a session.
func (r *LeagueRepository) Enroll(up *models.UserPunctuation) error {
	if err := r.db.Create(up).Error; err != nil {
		return fmt.Errorf("failed to enroll user %d in session %d: %w", up.UserID, up.SessionID, err)
	}
	return nil
}

// GetMembers retrieves all memberships of a session ranked by total
// points descending, ties broken by earliest enrollment.
func (r *LeagueRepository) GetMembers(sessionID uint) ([]models.UserPunctuation, error) {
	var members []models.UserPunctuation
	err := r.db.
		Where("session_id = ?", sessionID).
		Preload("User").
		Order("total_points DESC, enrolled_at ASC, id ASC").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get members of session %d: %w", sessionID, err)
	}
	return members, nil
}

// GetOpenMembership retrieves the user's membership in any open session.
func (r *LeagueRepository) GetOpenMembership(userID uint) (*models.UserPunctuation, error) {
	var up models.UserPunctuation
	err := r.db.
		Joins("JOIN league_sessions ON league_sessions.id = user_punctuations.session_id").
		Where("user_punctuations.user_id = ? AND league_sessions.status = ?", userID, models.SessionStatusOpen).
		First(&up).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("user %d has no open-session membership", userID)
		}
		return nil, fmt.Errorf("failed to get open membership for user %d: %w", userID, err)
	}
	return &up, nil
}

// GetActiveSessionForUser retrieves the open session containing now
// that the user is enrolled in.
func (r *LeagueRepository) GetActiveSessionForUser(userID uint, now time.Time) (*models.LeagueSession, error) {
	var session models.LeagueSession
	err := r.db.
		Joins("JOIN user_punctuations ON user_punctuations.session_id = league_sessions.id").
		Where("user_punctuations.user_id = ?", userID).
		Where("league_sessions.status = ?", models.SessionStatusOpen).
		Where("league_sessions.start_date <= ? AND league_sessions.end_date > ?", now, now).
		Preload("League").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("user %d has no active session", userID)
		}
		return nil, fmt.Errorf("failed to get active session for user %d: %w", userID, err)
	}
	return &session, nil
}

// AddSessionPoints adds a delta to the user's session standing as a
// single atomic update expression.
func (r *LeagueRepository) AddSessionPoints(userID, sessionID uint, delta int) error {
	res := r.db.Model(&models.UserPunctuation{}).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Update("total_points", gorm.Expr(
			"CASE WHEN total_points + ? < 0 THEN 0 ELSE total_points + ? END", delta, delta))
	if res.Error != nil {
		return fmt.Errorf("failed to add session points for user %d: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("user %d is not enrolled in session %d", userID, sessionID)
	}
	return nil
}

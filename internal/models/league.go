package models

import (
	"time"
)

// League is a tier grouping users of similar point totals.
// Tier 1 is the lowest tier; a higher tier number means a more
// advanced league.
type League struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Name              string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Tier              int       `gorm:"uniqueIndex;not null" json:"tier"`
	MembersCount      int       `gorm:"not null;default:0" json:"members_count"`
	PromotedCount     int       `gorm:"not null;default:0" json:"promoted_count"`
	RelegatedCount    int       `gorm:"not null;default:0" json:"relegated_count"`
	PromotionEnabled  bool      `gorm:"not null;default:true" json:"promotion_enabled"`
	RelegationEnabled bool      `gorm:"not null;default:true" json:"relegation_enabled"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName specifies the table name for League model.
func (League) TableName() string {
	return "leagues"
}

// SessionStatus constants.
const (
	SessionStatusOpen   = "open"
	SessionStatusClosed = "closed"
)

// LeagueSession is one time-bounded competition period of a league.
// A league has at most one open session at a time; once closed the
// session accepts no further enrollments.
type LeagueSession struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	LeagueID  uint       `gorm:"not null;index" json:"league_id"`
	League    League     `gorm:"foreignKey:LeagueID" json:"league,omitempty"`
	StartDate time.Time  `gorm:"not null" json:"start_date"`
	EndDate   time.Time  `gorm:"not null" json:"end_date"`
	Status    string     `gorm:"size:50;not null;default:open;index" json:"status"`
	ClosedAt  *time.Time `json:"closed_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	// Relationships
	Members []UserPunctuation `gorm:"foreignKey:SessionID" json:"members,omitempty"`
}

// TableName specifies the table name for LeagueSession model.
func (LeagueSession) TableName() string {
	return "league_sessions"
}

// IsOpen reports whether the session still accepts enrollments.
func (s *LeagueSession) IsOpen() bool {
	return s.Status == SessionStatusOpen
}

// Contains reports whether t falls inside the session window.
func (s *LeagueSession) Contains(t time.Time) bool {
	return !t.Before(s.StartDate) && t.Before(s.EndDate)
}

// UserPunctuation is a user's standing within one league session.
// Unique per (user, session); TotalPoints is the points accumulated
// during the session window.
type UserPunctuation struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	UserID      uint          `gorm:"not null;uniqueIndex:uk_user_session" json:"user_id"`
	User        User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	SessionID   uint          `gorm:"not null;uniqueIndex:uk_user_session;index" json:"session_id"`
	Session     LeagueSession `gorm:"foreignKey:SessionID" json:"session,omitempty"`
	TotalPoints int           `gorm:"not null;default:0" json:"total_points"`
	EnrolledAt  time.Time     `gorm:"not null" json:"enrolled_at"`
}

// TableName specifies the table name for UserPunctuation model.
func (UserPunctuation) TableName() string {
	return "user_punctuations"
}

// Standing is one row of a computed session ranking.
type Standing struct {
	Rank        int       `json:"rank"`
	UserID      uint      `json:"user_id"`
	Username    string    `json:"username"`
	TotalPoints int       `json:"total_points"`
	EnrolledAt  time.Time `json:"enrolled_at"`
}

// Movement describes where a member goes when a session closes.
type Movement string

// Movement constants.
const (
	MovementPromoted  Movement = "promoted"
	MovementRelegated Movement = "relegated"
	MovementStayed    Movement = "stayed"
)

// CloseResult summarizes a session closure.
type CloseResult struct {
	SessionID     uint              `json:"session_id"`
	AlreadyClosed bool              `json:"already_closed"`
	Movements     map[uint]Movement `json:"movements"`     // keyed by user ID
	NextSessions  map[uint]uint     `json:"next_sessions"` // user ID -> new session ID
}

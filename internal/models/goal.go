package models

import (
	"time"
)

// GoalKind identifies the goal subtype.
type GoalKind string

// Goal kind constants.
const (
	GoalKindRecycle GoalKind = "recycle"
	GoalKindReduce  GoalKind = "reduce"
)

// GoalDifficulty levels.
const (
	DifficultyEasy      = "EASY"
	DifficultyNormal    = "NORMAL"
	DifficultyDifficult = "DIFFICULT"
)

// GoalFrequency determines the rollover interval.
const (
	FrequencyDaily   = "DAILY"
	FrequencyWeekly  = "WEEKLY"
	FrequencyMonthly = "MONTHLY"
)

// GoalStatus values. INACTIVE is terminal for a goal instance; a
// completed goal is INACTIVE with CompletedAt set and a successor
// instance created for the next period.
const (
	GoalStatusNext     = "NEXT"
	GoalStatusActual   = "ACTUAL"
	GoalStatusInactive = "INACTIVE"
)

// Goal is a recurring recycling or reduction target for one user.
// Progress is clamped to [0, 100].
type Goal struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	User        User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Kind        GoalKind   `gorm:"size:50;not null;index" json:"kind"`
	Title       string     `gorm:"size:255" json:"title"`
	Progress    float64    `gorm:"not null;default:0" json:"progress"`
	Difficulty  string     `gorm:"size:50;not null;default:NORMAL" json:"difficulty"`
	Frequency   string     `gorm:"size:50;not null;default:WEEKLY" json:"frequency"`
	Status      string     `gorm:"size:50;not null;default:NEXT;index" json:"status"`
	Multiplier  float64    `gorm:"not null;default:1" json:"multiplier"`
	NextCheck   time.Time  `gorm:"not null" json:"next_check"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Reduce-goal extras; zero-valued for recycle goals.
	SkipDaysLeft int `gorm:"not null;default:0" json:"skip_days_left"`

	// Relationships
	Targets []ReduceTarget `gorm:"foreignKey:GoalID" json:"targets,omitempty"`
}

// TableName specifies the table name for Goal model.
func (Goal) TableName() string {
	return "goals"
}

// IsCompleted reports whether this goal instance finished at 100%.
func (g *Goal) IsCompleted() bool {
	return g.CompletedAt != nil
}

// FrequencyInterval returns the rollover interval for the goal's frequency.
func (g *Goal) FrequencyInterval() time.Duration {
	switch g.Frequency {
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyMonthly:
		return 30 * 24 * time.Hour
	default: // WEEKLY
		return 7 * 24 * time.Hour
	}
}

// DifficultyMultiplier returns the scoring multiplier for the goal's difficulty.
func (g *Goal) DifficultyMultiplier() float64 {
	switch g.Difficulty {
	case DifficultyEasy:
		return 0.5
	case DifficultyDifficult:
		return 2.0
	default: // NORMAL
		return 1.0
	}
}

// ReduceTarget is a per-material quantity target owned by a reduce goal.
type ReduceTarget struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	GoalID   uint   `gorm:"not null;index" json:"goal_id"`
	Material string `gorm:"size:100;not null" json:"material"`
	Quantity int    `gorm:"not null;default:0" json:"quantity"`
}

// TableName specifies the table name for ReduceTarget model.
func (ReduceTarget) TableName() string {
	return "reduce_targets"
}

package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ecoloop/recycle-league/internal/errs"
	"github.com/ecoloop/recycle-league/internal/models"
)

// GoalRepository handles goal-related database operations.
type GoalRepository struct {
	db *DB
}

// NewGoalRepository creates a new goal repository.
func NewGoalRepository(db *DB) *GoalRepository {
	return &GoalRepository{db: db}
}

// Create creates a new goal with its targets.
func (r *GoalRepository) Create(goal *models.Goal) error {
	if err := r.db.Create(goal).Error; err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}
	return nil
}

// GetByID retrieves a goal with its targets preloaded.
func (r *GoalRepository) GetByID(id uint) (*models.Goal, error) {
	var goal models.Goal
	if err := r.db.Preload("Targets").First(&goal, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("goal %d not found", id)
		}
		return nil, fmt.Errorf("failed to get goal %d: %w", id, err)
	}
	return &goal, nil
}

// Update saves a goal.
func (r *GoalRepository) Update(goal *models.Goal) error {
	if err := r.db.Save(goal).Error; err != nil {
		return fmt.Errorf("failed to update goal %d: %w", goal.ID, err)
	}
	return nil
}

// ListByUser retrieves all goals of a user, newest first.
func (r *GoalRepository) ListByUser(userID uint) ([]models.Goal, error) {
	var goals []models.Goal
	err := r.db.
		Where("user_id = ?", userID).
		Preload("Targets").
		Order("created_at DESC").
		Find(&goals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list goals for user %d: %w", userID, err)
	}
	return goals, nil
}

// ListDue retrieves non-terminal goals whose next check has passed.
func (r *GoalRepository) ListDue(now time.Time) ([]models.Goal, error) {
	var goals []models.Goal
	err := r.db.
		Where("status IN ? AND next_check <= ?", []string{models.GoalStatusNext, models.GoalStatusActual}, now).
		Preload("Targets").
		Order("next_check ASC").
		Find(&goals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due goals: %w", err)
	}
	return goals, nil
}

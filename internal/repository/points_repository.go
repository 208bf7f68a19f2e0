package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ecoloop/recycle-league/internal/errs"
	"github.com/ecoloop/recycle-league/internal/models"
)

// PointsRepository handles points ledger database operations.
//
// Category mutations are issued as single atomic UPDATE expressions so
// concurrent increments on the same row are never lost; the total is
// recomputed in the same statement.
type PointsRepository struct {
	db *DB
}

// NewPointsRepository creates a new points repository.
func NewPointsRepository(db *DB) *PointsRepository {
	return &PointsRepository{db: db}
}

// categoryColumn maps a point category to its ledger column.
func categoryColumn(c models.PointCategory) (string, error) {
	switch c {
	case models.CategoryRecycle:
		return "recycle_points", nil
	case models.CategoryReuse:
		return "reuse_points", nil
	case models.CategoryReduce:
		return "reduce_points", nil
	case models.CategoryKnowledge:
		return "knowledge_points", nil
	}
	return "", errs.Validation("unknown point category %q", c)
}

// otherColumns returns the sum expression of the three columns that are
// not being mutated.
func otherColumns(col string) string {
	all := []string{"recycle_points", "reuse_points", "reduce_points", "knowledge_points"}
	expr := ""
	for _, c := range all {
		if c == col {
			continue
		}
		if expr != "" {
			expr += " + "
		}
		expr += c
	}
	return expr
}

// latestEntryCond restricts an update to the user's most recent ledger entry.
const latestEntryCond = "id = (SELECT MAX(id) FROM points_punctuations WHERE user_id = ?)"

// Create creates a new ledger entry for a user.
func (r *PointsRepository) Create(p *models.PointsPunctuation) error {
	p.TotalPoints = p.Sum()
	if err := r.db.Create(p).Error; err != nil {
		return fmt.Errorf("failed to create points entry: %w", err)
	}
	return nil
}

// GetLatestByUserID retrieves the most recent ledger entry for a user.
func (r *PointsRepository) GetLatestByUserID(userID uint) (*models.PointsPunctuation, error) {
	var p models.PointsPunctuation
	err := r.db.Where("user_id = ?", userID).Order("id DESC").First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("no points entry for user %d", userID)
		}
		return nil, fmt.Errorf("failed to get points entry for user %d: %w", userID, err)
	}
	return &p, nil
}

// Increment adds amount to one category of the user's current entry.
func (r *PointsRepository) Increment(userID uint, category models.PointCategory, amount int, now time.Time) (*models.PointsPunctuation, error) {
	col, err := categoryColumn(category)
	if err != nil {
		return nil, err
	}

	res := r.db.Model(&models.PointsPunctuation{}).
		Where(latestEntryCond, userID).
		Updates(map[string]interface{}{
			col:            gorm.Expr(col+" + ?", amount),
			"total_points": gorm.Expr(col+" + ? + "+otherColumns(col), amount),
			"last_updated": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to increment %s for user %d: %w", col, userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errs.NotFound("no points entry for user %d", userID)
	}

	return r.GetLatestByUserID(userID)
}

// Decrement subtracts amount from one category, flooring at zero.
func (r *PointsRepository) Decrement(userID uint, category models.PointCategory, amount int, now time.Time) (*models.PointsPunctuation, error) {
	col, err := categoryColumn(category)
	if err != nil {
		return nil, err
	}

	// CASE keeps the floor computation inside the single UPDATE so the
	// category never observes a negative intermediate value.
	floored := "CASE WHEN " + col + " - ? < 0 THEN 0 ELSE " + col + " - ? END"
	res := r.db.Model(&models.PointsPunctuation{}).
		Where(latestEntryCond, userID).
		Updates(map[string]interface{}{
			col:            gorm.Expr(floored, amount, amount),
			"total_points": gorm.Expr("("+floored+") + "+otherColumns(col), amount, amount),
			"last_updated": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to decrement %s for user %d: %w", col, userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errs.NotFound("no points entry for user %d", userID)
	}

	return r.GetLatestByUserID(userID)
}

// Edit sets one category to an absolute value.
func (r *PointsRepository) Edit(userID uint, category models.PointCategory, value int, now time.Time) (*models.PointsPunctuation, error) {
	col, err := categoryColumn(category)
	if err != nil {
		return nil, err
	}
	if value < 0 {
		return nil, errs.Validation("%s cannot be set to negative value %d", col, value)
	}

	res := r.db.Model(&models.PointsPunctuation{}).
		Where(latestEntryCond, userID).
		Updates(map[string]interface{}{
			col:            value,
			"total_points": gorm.Expr("? + "+otherColumns(col), value),
			"last_updated": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to edit %s for user %d: %w", col, userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errs.NotFound("no points entry for user %d", userID)
	}

	return r.GetLatestByUserID(userID)
}

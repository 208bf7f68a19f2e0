// Package models defines domain models for the recycling league backend.
package models

import (
	"time"
)

// PointCategory identifies one of the four scoring categories.
type PointCategory string

// Point category constants.
const (
	CategoryRecycle   PointCategory = "recycle"
	CategoryReuse     PointCategory = "reuse"
	CategoryReduce    PointCategory = "reduce"
	CategoryKnowledge PointCategory = "knowledge"
)

// ValidCategory reports whether c is a known point category.
func ValidCategory(c PointCategory) bool {
	switch c {
	case CategoryRecycle, CategoryReuse, CategoryReduce, CategoryKnowledge:
		return true
	}
	return false
}

// PointsPunctuation is the per-user points ledger entry.
// Category values never go below zero; TotalPoints is always the sum
// of the four categories.
type PointsPunctuation struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	User            User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	RecyclePoints   int       `gorm:"not null;default:0" json:"recycle_points"`
	ReusePoints     int       `gorm:"not null;default:0" json:"reuse_points"`
	ReducePoints    int       `gorm:"not null;default:0" json:"reduce_points"`
	KnowledgePoints int       `gorm:"not null;default:0" json:"knowledge_points"`
	TotalPoints     int       `gorm:"not null;default:0" json:"total_points"`
	LastUpdated     time.Time `json:"last_updated"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName specifies the table name for PointsPunctuation model.
func (PointsPunctuation) TableName() string {
	return "points_punctuations"
}

// CategoryValue returns the current value of a single category.
func (p *PointsPunctuation) CategoryValue(c PointCategory) int {
	switch c {
	case CategoryRecycle:
		return p.RecyclePoints
	case CategoryReuse:
		return p.ReusePoints
	case CategoryReduce:
		return p.ReducePoints
	case CategoryKnowledge:
		return p.KnowledgePoints
	}
	return 0
}

// Sum recomputes the total from the four categories.
func (p *PointsPunctuation) Sum() int {
	return p.RecyclePoints + p.ReusePoints + p.ReducePoints + p.KnowledgePoints
}

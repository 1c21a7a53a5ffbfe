package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/spark-dating/spark-server/internal/db"
)

// MatchRepository provides data access methods for the Match model.
// A match is stored once per unordered pair, with the lower id first.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// sortPair normalizes an unordered pair to (low, high).
func sortPair(x, y uint64) (uint64, uint64) {
	if y < x {
		return y, x
	}
	return x, y
}

// CreateMatch records the match for an unordered pair.
//
// Behavior:
//   - The pair is normalized before insert, so {A,B} and {B,A} hit the
//     same primary key.
//   - A conflicting insert is a no-op: the returned bool reports whether
//     this call actually created the row. Exactly one of two racing
//     callers observes created == true.
func (r *MatchRepository) CreateMatch(ctx context.Context, x, y uint64) (bool, error) {
	a, b := sortPair(x, y)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&db.Match{UserAID: a, UserBID: b})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Exists reports whether the unordered pair is already matched.
func (r *MatchRepository) Exists(ctx context.Context, x, y uint64) (bool, error) {
	a, b := sortPair(x, y)
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user_a_id = ? AND user_b_id = ?", a, b).
		Count(&count).Error
	return count > 0, err
}

// MatchedIDs returns the ids of every user matched with the given user.
func (r *MatchRepository) MatchedIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("created_at").
		Find(&matches).Error
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(matches))
	for _, m := range matches {
		if m.UserAID == userID {
			ids = append(ids, m.UserBID)
		} else {
			ids = append(ids, m.UserAID)
		}
	}
	return ids, nil
}

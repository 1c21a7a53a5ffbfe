package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/spark-dating/spark-server/internal/db"
)

// SwipeRepository provides data access methods for the Swipe model.
// It encapsulates all queries related to like/dislike edges between users.
type SwipeRepository struct {
	db *gorm.DB
}

// NewSwipeRepository creates a new repository bound to the given DB connection.
func NewSwipeRepository(database *gorm.DB) *SwipeRepository {
	return &SwipeRepository{db: database}
}

// UpsertSwipe inserts or updates the directed edge actor -> target.
//
// Behavior:
//   - If the (actor_id, target_id) pair exists → the row is updated with
//     the new "liked" value.
//   - If it doesn't exist → a new row is inserted.
//   - Composite PK ensures a single row per directed pair, so like and
//     dislike can never coexist for the same edge.
//
// Example:
//
//	repo.UpsertSwipe(ctx, 1, 2, true) // user 1 liked user 2
func (r *SwipeRepository) UpsertSwipe(
	ctx context.Context,
	actorID, targetID uint64,
	liked bool,
) error {
	swipe := db.Swipe{
		ActorID:  actorID,
		TargetID: targetID,
		Liked:    liked,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "actor_id"}, {Name: "target_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"liked"}),
		}).
		Create(&swipe).Error
}

// GetSwipe fetches the edge actor -> target if it exists.
func (r *SwipeRepository) GetSwipe(
	ctx context.Context,
	actorID, targetID uint64,
) (*db.Swipe, error) {
	var swipe db.Swipe
	err := r.db.WithContext(ctx).
		Where("actor_id = ? AND target_id = ?", actorID, targetID).
		First(&swipe).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &swipe, nil
}

// HasLiked checks whether an actor has liked a target.
//
// Used for the reciprocal-edge existence check during match formation.
func (r *SwipeRepository) HasLiked(
	ctx context.Context,
	actorID, targetID uint64,
) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Where("actor_id = ? AND target_id = ? AND liked = ?", actorID, targetID, true).
		Count(&count).Error
	return count > 0, err
}

// LikedIDs returns the ids of all users the actor has liked.
func (r *SwipeRepository) LikedIDs(ctx context.Context, actorID uint64) ([]uint64, error) {
	return r.targetIDs(ctx, actorID, true)
}

// DislikedIDs returns the ids of all users the actor has disliked.
func (r *SwipeRepository) DislikedIDs(ctx context.Context, actorID uint64) ([]uint64, error) {
	return r.targetIDs(ctx, actorID, false)
}

func (r *SwipeRepository) targetIDs(ctx context.Context, actorID uint64, liked bool) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Where("actor_id = ? AND liked = ?", actorID, liked).
		Order("target_id").
		Pluck("target_id", &ids).Error
	return ids, err
}

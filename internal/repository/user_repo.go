package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/spark-dating/spark-server/internal/db"
	svcErr "github.com/spark-dating/spark-server/internal/errors"
)

// UserRepository provides data access methods for the User model.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new repository bound to the given DB connection.
func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *db.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID fetches a user by primary key. Returns ErrNotFound when absent.
func (r *UserRepository) GetByID(ctx context.Context, id uint64) (*db.User, error) {
	var user db.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail fetches a user by email. Returns ErrNotFound when absent.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	var user db.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByIDs fetches multiple users preserving no particular order.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []uint64) ([]db.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []db.User
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, err
}

// Exists reports whether a user with the given id exists.
func (r *UserRepository) Exists(ctx context.Context, id uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.User{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// UpdateProfile applies the given column updates to a user row.
func (r *UserRepository) UpdateProfile(ctx context.Context, id uint64, updates map[string]interface{}) (*db.User, error) {
	if err := r.db.WithContext(ctx).Model(&db.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// SwipeCandidates returns users the given user can still swipe on.
//
// Behavior:
//   - Excludes the user themselves and anyone they already swiped on or
//     matched with.
//   - Both gender preferences must be satisfied ("both" matches any).
func (r *UserRepository) SwipeCandidates(ctx context.Context, current *db.User, limit int) ([]db.User, error) {
	swiped := r.db.
		Table("swipes").
		Select("target_id").
		Where("actor_id = ?", current.ID)

	matched := r.db.
		Table("matches").
		Select("CASE WHEN user_a_id = ? THEN user_b_id ELSE user_a_id END", current.ID).
		Where("user_a_id = ? OR user_b_id = ?", current.ID, current.ID)

	query := r.db.WithContext(ctx).
		Where("id != ?", current.ID).
		Where("id NOT IN (?)", swiped).
		Where("id NOT IN (?)", matched).
		Where("gender_preference IN ?", []string{current.Gender, "both"})

	if current.GenderPreference != "both" {
		query = query.Where("gender = ?", current.GenderPreference)
	}

	var users []db.User
	err := query.Limit(limit).Find(&users).Error
	return users, err
}

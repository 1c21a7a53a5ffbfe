package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/spark-dating/spark-server/internal/db"
	svcErr "github.com/spark-dating/spark-server/internal/errors"
	"github.com/spark-dating/spark-server/internal/utils/pagination"
)

// MessageRepository provides data access methods for the Message model.
// It also owns the unread recount queries: counters are always derived
// from persisted message rows, never tracked incrementally.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new repository bound to the given DB connection.
func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

// Create inserts a new message row.
func (r *MessageRepository) Create(ctx context.Context, msg *db.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// GetByID fetches a message by id. Returns ErrNotFound when absent.
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*db.Message, error) {
	var msg db.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Delete removes a message row by id.
func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&db.Message{}).Error
}

// GetConversation returns messages exchanged between two users, oldest
// first, with cursor-based pagination.
//
// Example:
//
//	repo.GetConversation(ctx, 1, 2, nil, 50) // first 50 messages between 1 and 2
func (r *MessageRepository) GetConversation(
	ctx context.Context,
	userA, userB uint64,
	paginationToken *string,
	limit int,
) ([]db.Message, *string, error) {
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Where(
			"(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA,
		).
		Order("created_at, id").
		Limit(limit + 1)

	if cursor.MessageID != "" && cursor.CreatedUnix > 0 {
		ts := time.UnixMilli(cursor.CreatedUnix)
		query = query.Where(
			"(created_at > ? OR (created_at = ? AND id > ?))",
			ts, ts, cursor.MessageID,
		)
	}

	var messages []db.Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(messages) > limit {
		last := messages[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			MessageID:   last.ID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		messages = messages[:limit]
	}

	return messages, nextToken, nil
}

// MarkConversationRead flips every unread message from sender to reader
// to read in a single statement. Returns the number of rows updated.
func (r *MessageRepository) MarkConversationRead(
	ctx context.Context,
	readerID, senderID uint64,
) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND `read` = ?", readerID, senderID, false).
		Update("read", true)
	return res.RowsAffected, res.Error
}

// CountUnreadFrom recounts unread messages from one sender to a receiver.
func (r *MessageRepository) CountUnreadFrom(
	ctx context.Context,
	receiverID, senderID uint64,
) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND `read` = ?", receiverID, senderID, false).
		Count(&count).Error
	return count, err
}

// UnreadBySender recounts unread messages per sender for a receiver.
//
// The total is always the sum of this map, so callers never maintain it
// separately.
func (r *MessageRepository) UnreadBySender(
	ctx context.Context,
	receiverID uint64,
) (map[uint64]int64, error) {
	type row struct {
		SenderID uint64
		Count    int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Select("sender_id, COUNT(*) as count").
		Where("receiver_id = ? AND `read` = ?", receiverID, false).
		Group("sender_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uint64]int64, len(rows))
	for _, r := range rows {
		counts[r.SenderID] = r.Count
	}
	return counts, nil
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

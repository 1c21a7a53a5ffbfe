package unread

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spark-dating/spark-server/internal/app"
	"github.com/spark-dating/spark-server/internal/notify"
	"github.com/spark-dating/spark-server/internal/repository"
)

// Counts is a user's unread state: the total and the per-sender breakdown.
// The total always equals the sum of PerSender.
type Counts struct {
	Total     int64            `json:"total"`
	PerSender map[uint64]int64 `json:"perSender"`
}

// countPayload is the unreadCount push body.
type countPayload struct {
	Total int64 `json:"total"`
}

// mapUpdatePayload is the unreadMapUpdate push body for one conversation.
type mapUpdatePayload struct {
	ConversationID uint64 `json:"conversationId"`
	Count          int64  `json:"count"`
}

// Service maintains unread counters. Counts are always recomputed from
// the persisted messages, never adjusted incrementally, so concurrent
// sends, reads and deletes for the same pair cannot make them drift.
// Redis only caches the latest recomputed total.
type Service struct {
	appCtx   *app.AppContext
	messages *repository.MessageRepository
	notifier *notify.Notifier
}

// NewService creates an unread counter service with dependencies from AppContext.
func NewService(appCtx *app.AppContext, notifier *notify.Notifier) *Service {
	return &Service{
		appCtx:   appCtx,
		messages: repository.NewMessageRepository(appCtx.DB),
		notifier: notifier,
	}
}

// OnMessageSent recounts the receiver's unread state after a send and
// pushes the new totals to the receiver's live connections.
func (s *Service) OnMessageSent(ctx context.Context, receiverID, senderID uint64) error {
	return s.recountAndPush(ctx, receiverID, senderID)
}

// OnConversationRead marks every unread message from the other party as
// read in one statement, then recounts and pushes. Returns the reader's
// new total (the per-conversation count is zero by construction).
func (s *Service) OnConversationRead(ctx context.Context, readerID, otherPartyID uint64) (int64, error) {
	if _, err := s.messages.MarkConversationRead(ctx, readerID, otherPartyID); err != nil {
		return 0, fmt.Errorf("failed to mark conversation read: %w", err)
	}

	if err := s.recountAndPush(ctx, readerID, otherPartyID); err != nil {
		return 0, err
	}

	counts, err := s.Counts(ctx, readerID)
	if err != nil {
		return 0, err
	}
	return counts.Total, nil
}

// OnMessageDeleted recounts the receiver's state after a delete. Deleting
// an already-read message leaves the counters unchanged, but the recount
// is cheap and makes that a non-case rather than a branch to get wrong.
func (s *Service) OnMessageDeleted(ctx context.Context, receiverID, senderID uint64) error {
	return s.recountAndPush(ctx, receiverID, senderID)
}

// Counts returns the user's unread totals.
// Cache-first for the total:
//  1. Attempts to read unread:total:<id> from Redis.
//  2. The per-sender map is always recounted from the DB; on a cache miss
//     or disagreement the recounted total wins and refreshes the cache.
func (s *Service) Counts(ctx context.Context, userID uint64) (*Counts, error) {
	perSender, err := s.messages.UnreadBySender(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to recount unread: %w", err)
	}

	var total int64
	for _, n := range perSender {
		total += n
	}

	if cached, ok, _ := s.appCtx.RedisCache.GetUnreadTotal(ctx, userID); !ok || cached != total {
		_ = s.appCtx.RedisCache.UpdateUnreadTotal(ctx, userID, total)
	}

	return &Counts{Total: total, PerSender: perSender}, nil
}

// CachedTotal is the fast path for a total-only read: Redis first, DB
// recount fallback.
func (s *Service) CachedTotal(ctx context.Context, userID uint64) (int64, error) {
	if cached, err := s.appCtx.RedisCache.Get(ctx, s.appCtx.RedisCache.KeyForUnreadTotal(userID)); err == nil && cached != "" {
		if n, err := strconv.ParseInt(cached, 10, 64); err == nil {
			return n, nil
		}
	}

	counts, err := s.Counts(ctx, userID)
	if err != nil {
		return 0, err
	}
	return counts.Total, nil
}

// recountAndPush recomputes the user's counters from message rows,
// refreshes the cache and pushes both count events. Push targets may be
// offline; that is a silent no-op.
func (s *Service) recountAndPush(ctx context.Context, userID, conversationWith uint64) error {
	perSender, err := s.messages.UnreadBySender(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to recount unread: %w", err)
	}

	var total int64
	for _, n := range perSender {
		total += n
	}

	if err := s.appCtx.RedisCache.UpdateUnreadTotal(ctx, userID, total); err != nil {
		// cache is advisory; the DB recount stays authoritative
		s.appCtx.Logger.Warn("failed to cache unread total", "user_id", userID, "err", err)
	}

	s.notifier.Notify(userID, notify.EventUnreadCount, countPayload{Total: total})
	s.notifier.Notify(userID, notify.EventUnreadMapUpdate, mapUpdatePayload{
		ConversationID: conversationWith,
		Count:          perSender[conversationWith],
	})

	return nil
}

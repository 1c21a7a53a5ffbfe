package unread_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/spark-dating/spark-server/internal/app"
	"github.com/spark-dating/spark-server/internal/cache"
	"github.com/spark-dating/spark-server/internal/config"
	"github.com/spark-dating/spark-server/internal/db"
	"github.com/spark-dating/spark-server/internal/notify"
	"github.com/spark-dating/spark-server/internal/presence"
	"github.com/spark-dating/spark-server/internal/service/unread"
)

type captureConn struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *captureConn) Send(event []byte) error {
	var ev notify.Event
	if err := json.Unmarshal(event, &ev); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *captureConn) Close() {}

func (c *captureConn) lastOfType(eventType string) (notify.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Type == eventType {
			return c.events[i], true
		}
	}
	return notify.Event{}, false
}

func setupService(t *testing.T) (*unread.Service, *presence.Registry, *gorm.DB, *cache.RedisCache) {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, dbase.AutoMigrate(&db.User{}, &db.Swipe{}, &db.Match{}, &db.Message{}))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	redisCache := cache.NewRedisCache(cfg)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := app.New(dbase, redisCache, logger)

	registry := presence.NewRegistry()
	notifier := notify.NewNotifier(registry, logger)

	return unread.NewService(appCtx, notifier), registry, dbase, redisCache
}

func seedMessage(t *testing.T, dbase *gorm.DB, senderID, receiverID uint64, read bool) db.Message {
	t.Helper()
	msg := db.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    "hello",
		Read:       read,
	}
	require.NoError(t, dbase.Create(&msg).Error)
	return msg
}

// verifyInvariant asserts total == sum(perSender) == unread rows in the DB.
func verifyInvariant(t *testing.T, svc *unread.Service, dbase *gorm.DB, userID uint64) *unread.Counts {
	t.Helper()

	counts, err := svc.Counts(context.Background(), userID)
	require.NoError(t, err)

	var sum int64
	for _, n := range counts.PerSender {
		sum += n
	}
	assert.Equal(t, counts.Total, sum, "total must equal the per-sender sum")

	var persisted int64
	require.NoError(t, dbase.Model(&db.Message{}).
		Where("receiver_id = ? AND `read` = ?", userID, false).
		Count(&persisted).Error)
	assert.Equal(t, persisted, counts.Total, "total must match the persisted unread rows")

	return counts
}

func TestCounts_EmptyState(t *testing.T) {
	svc, _, dbase, _ := setupService(t)

	counts := verifyInvariant(t, svc, dbase, 1)
	assert.Zero(t, counts.Total)
	assert.Empty(t, counts.PerSender)
}

func TestOnMessageSent_RecountsAndPushes(t *testing.T) {
	ctx := context.Background()
	svc, registry, dbase, _ := setupService(t)

	conn := &captureConn{}
	registry.Register(1, conn)

	seedMessage(t, dbase, 2, 1, false)
	require.NoError(t, svc.OnMessageSent(ctx, 1, 2))
	seedMessage(t, dbase, 2, 1, false)
	require.NoError(t, svc.OnMessageSent(ctx, 1, 2))
	seedMessage(t, dbase, 3, 1, false)
	require.NoError(t, svc.OnMessageSent(ctx, 1, 3))

	counts := verifyInvariant(t, svc, dbase, 1)
	assert.Equal(t, int64(3), counts.Total)
	assert.Equal(t, int64(2), counts.PerSender[2])
	assert.Equal(t, int64(1), counts.PerSender[3])

	ev, ok := conn.lastOfType(notify.EventUnreadCount)
	require.True(t, ok)
	payload := ev.Payload.(map[string]interface{})
	assert.Equal(t, float64(3), payload["total"])

	ev, ok = conn.lastOfType(notify.EventUnreadMapUpdate)
	require.True(t, ok)
	payload = ev.Payload.(map[string]interface{})
	assert.Equal(t, float64(3), payload["conversationId"])
	assert.Equal(t, float64(1), payload["count"])
}

func TestOnConversationRead_ZeroesOneConversation(t *testing.T) {
	ctx := context.Background()
	svc, registry, dbase, _ := setupService(t)

	conn := &captureConn{}
	registry.Register(1, conn)

	seedMessage(t, dbase, 2, 1, false)
	seedMessage(t, dbase, 2, 1, false)
	seedMessage(t, dbase, 3, 1, false)

	total, err := svc.OnConversationRead(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	counts := verifyInvariant(t, svc, dbase, 1)
	assert.Equal(t, int64(1), counts.Total)
	assert.Zero(t, counts.PerSender[2])
	assert.Equal(t, int64(1), counts.PerSender[3])

	ev, ok := conn.lastOfType(notify.EventUnreadMapUpdate)
	require.True(t, ok)
	payload := ev.Payload.(map[string]interface{})
	assert.Equal(t, float64(2), payload["conversationId"])
	assert.Equal(t, float64(0), payload["count"])
}

func TestOnConversationRead_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, _, dbase, _ := setupService(t)

	seedMessage(t, dbase, 2, 1, false)

	total, err := svc.OnConversationRead(ctx, 1, 2)
	require.NoError(t, err)
	assert.Zero(t, total)

	total, err = svc.OnConversationRead(ctx, 1, 2)
	require.NoError(t, err)
	assert.Zero(t, total)

	verifyInvariant(t, svc, dbase, 1)
}

func TestOnMessageDeleted_UnreadAndReadCases(t *testing.T) {
	ctx := context.Background()
	svc, _, dbase, _ := setupService(t)

	unreadMsg := seedMessage(t, dbase, 2, 1, false)
	seedMessage(t, dbase, 2, 1, false)
	readMsg := seedMessage(t, dbase, 2, 1, true)

	// deleting an unread message decrements the counters
	require.NoError(t, dbase.Delete(&db.Message{}, "id = ?", unreadMsg.ID).Error)
	require.NoError(t, svc.OnMessageDeleted(ctx, 1, 2))
	counts := verifyInvariant(t, svc, dbase, 1)
	assert.Equal(t, int64(1), counts.Total)

	// deleting an already-read message leaves them unchanged
	require.NoError(t, dbase.Delete(&db.Message{}, "id = ?", readMsg.ID).Error)
	require.NoError(t, svc.OnMessageDeleted(ctx, 1, 2))
	counts = verifyInvariant(t, svc, dbase, 1)
	assert.Equal(t, int64(1), counts.Total)
}

func TestCachedTotal_ReconcilesWithRecount(t *testing.T) {
	ctx := context.Background()
	svc, _, dbase, redisCache := setupService(t)

	seedMessage(t, dbase, 2, 1, false)
	seedMessage(t, dbase, 2, 1, false)

	// cold cache: falls back to the recount and warms the cache
	total, err := svc.CachedTotal(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	cached, hit, err := redisCache.GetUnreadTotal(ctx, 1)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, int64(2), cached)

	// warm cache: served without touching the DB rows
	require.NoError(t, dbase.Exec("DELETE FROM messages").Error)
	total, err = svc.CachedTotal(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	// a full Counts read notices the disagreement and repairs the cache
	counts, err := svc.Counts(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, counts.Total)

	cached, hit, err = redisCache.GetUnreadTotal(ctx, 1)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Zero(t, cached)
}

func TestRecount_InterleavedSendsAndReads(t *testing.T) {
	ctx := context.Background()
	svc, _, dbase, _ := setupService(t)

	for i := 0; i < 5; i++ {
		seedMessage(t, dbase, 2, 1, false)
		require.NoError(t, svc.OnMessageSent(ctx, 1, 2))
		if i%2 == 1 {
			_, err := svc.OnConversationRead(ctx, 1, 2)
			require.NoError(t, err)
		}
	}

	counts := verifyInvariant(t, svc, dbase, 1)
	assert.Equal(t, int64(1), counts.Total)
	assert.Equal(t, int64(1), counts.PerSender[2])
}

package swipe_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/spark-dating/spark-server/internal/app"
	"github.com/spark-dating/spark-server/internal/cache"
	"github.com/spark-dating/spark-server/internal/config"
	"github.com/spark-dating/spark-server/internal/db"
	svcErr "github.com/spark-dating/spark-server/internal/errors"
	"github.com/spark-dating/spark-server/internal/notify"
	"github.com/spark-dating/spark-server/internal/presence"
	"github.com/spark-dating/spark-server/internal/service/swipe"
)

// captureConn records every event pushed to it.
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

func (c *captureConn) countType(eventType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

// setupService spins up an in-memory SQLite DB, applies migrations,
// seeds three users, starts a miniredis, and wires everything into a
// swipe service. Each test gets its own isolated DB + Redis + registry.
var setupSeq atomic.Int64

func setupService(t *testing.T) (*swipe.Service, *presence.Registry, *gorm.DB) {
	t.Helper()

	dbName := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), setupSeq.Add(1))
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

	users := []db.User{
		{ID: 1, Name: "alice", Email: "a@test.com", PasswordHash: "x", Age: 25, Gender: "female", GenderPreference: "male", Image: "alice.jpg"},
		{ID: 2, Name: "bob", Email: "b@test.com", PasswordHash: "x", Age: 27, Gender: "male", GenderPreference: "female", Image: "bob.jpg"},
		{ID: 3, Name: "carol", Email: "c@test.com", PasswordHash: "x", Age: 24, Gender: "female", GenderPreference: "male"},
	}
	require.NoError(t, dbase.Create(&users).Error)

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

	return swipe.NewService(appCtx, notifier), registry, dbase
}

func TestLike_NoMatchWithoutReciprocal(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t)

	view, matchFormed, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, matchFormed)
	assert.Equal(t, []uint64{2}, view.Liked)
	assert.Empty(t, view.Matched)
}

func TestLike_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, registry, dbase := setupService(t)

	aliceConn := &captureConn{}
	registry.Register(1, aliceConn)

	_, _, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	view, matchFormed, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, matchFormed)
	assert.Equal(t, []uint64{2}, view.Liked)

	// reciprocal like forms the match once
	_, matchFormed, err = svc.Like(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, matchFormed)

	// a repeated like after the match must not re-form it
	_, matchFormed, err = svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, matchFormed)

	assert.Equal(t, 1, aliceConn.countType(notify.EventNewMatch))

	var count int64
	dbase.Model(&db.Match{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestLike_MatchFormsAndNotifiesBothSides(t *testing.T) {
	ctx := context.Background()
	svc, registry, _ := setupService(t)

	aliceConn := &captureConn{}
	bobConn := &captureConn{}
	registry.Register(1, aliceConn)
	registry.Register(2, bobConn)

	_, _, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	view, matchFormed, err := svc.Like(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, matchFormed)
	assert.Equal(t, []uint64{1}, view.Matched)

	// matched graduates out of liked: the sets stay disjoint
	assert.Empty(t, view.Liked)

	require.Equal(t, 1, aliceConn.countType(notify.EventNewMatch))
	require.Equal(t, 1, bobConn.countType(notify.EventNewMatch))

	// the pushed profile describes the other side
	payload := aliceConn.events[0].Payload.(map[string]interface{})
	assert.Equal(t, "bob", payload["name"])
	assert.Equal(t, "bob.jpg", payload["image"])
}

func TestLike_TargetNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t)

	_, _, err := svc.Like(ctx, 1, 999)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
}

func TestLike_SelfSwipeRejected(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t)

	_, _, err := svc.Like(ctx, 1, 1)
	assert.ErrorIs(t, err, svcErr.ErrInvalidArgument)
}

func TestDislike_IdempotentAndNoEvents(t *testing.T) {
	ctx := context.Background()
	svc, registry, _ := setupService(t)

	conn := &captureConn{}
	registry.Register(3, conn)

	view, err := svc.Dislike(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, view.Disliked)

	view, err = svc.Dislike(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, view.Disliked)

	assert.Empty(t, conn.events)
}

func TestDislike_DoesNotRetractALike(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t)

	_, _, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)

	view, err := svc.Dislike(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, view.Liked)
	assert.Empty(t, view.Disliked)
}

// TestMutualLikeRace is the critical double-match-formation race: A and B
// like each other at the same instant. Every trial must end with exactly
// one match row, exactly one side reporting matchFormed, and exactly one
// newMatch push per user.
func TestMutualLikeRace(t *testing.T) {
	const trials = 50

	for trial := 0; trial < trials; trial++ {
		ctx := context.Background()
		svc, registry, dbase := setupService(t)

		aliceConn := &captureConn{}
		bobConn := &captureConn{}
		registry.Register(1, aliceConn)
		registry.Register(2, bobConn)

		var wg sync.WaitGroup
		start := make(chan struct{})
		results := make([]bool, 2)
		errs := make([]error, 2)

		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, formed, err := svc.Like(ctx, 1, 2)
			results[0], errs[0] = formed, err
		}()
		go func() {
			defer wg.Done()
			<-start
			_, formed, err := svc.Like(ctx, 2, 1)
			results[1], errs[1] = formed, err
		}()
		close(start)
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		formedCount := 0
		for _, formed := range results {
			if formed {
				formedCount++
			}
		}
		require.Equal(t, 1, formedCount, "trial %d: exactly one like call must form the match", trial)

		var matchRows int64
		dbase.Model(&db.Match{}).Count(&matchRows)
		require.Equal(t, int64(1), matchRows, "trial %d: exactly one match row", trial)

		require.Equal(t, 1, aliceConn.countType(notify.EventNewMatch), "trial %d", trial)
		require.Equal(t, 1, bobConn.countType(notify.EventNewMatch), "trial %d", trial)
	}
}

func TestMatches_ReturnsProfiles(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t)

	_, _, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	_, _, err = svc.Like(ctx, 2, 1)
	require.NoError(t, err)

	profiles, err := svc.Matches(ctx, 1)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, uint64(2), profiles[0].ID)
	assert.Equal(t, "bob", profiles[0].Name)
}

func TestCandidates_ExcludesSwipedAndMatched(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t)

	// bob's candidates: alice and carol (both female, both prefer male)
	users, err := svc.Candidates(ctx, 2, 20)
	require.NoError(t, err)
	require.Len(t, users, 2)

	// after swiping on alice only carol remains
	_, _, err = svc.Like(ctx, 2, 1)
	require.NoError(t, err)

	users, err = svc.Candidates(ctx, 2, 20)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, uint64(3), users[0].ID)

	// a formed match stays excluded
	_, _, err = svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	users, err = svc.Candidates(ctx, 2, 20)
	require.NoError(t, err)
	require.Len(t, users, 1)
}

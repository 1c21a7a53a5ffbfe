package swipe

import (
	"context"
	"fmt"

	"github.com/spark-dating/spark-server/internal/app"
	"github.com/spark-dating/spark-server/internal/db"
	svcErr "github.com/spark-dating/spark-server/internal/errors"
	"github.com/spark-dating/spark-server/internal/notify"
	"github.com/spark-dating/spark-server/internal/repository"
)

// AccountView is the actor's interest state returned after a swipe.
type AccountView struct {
	ID       uint64   `json:"id"`
	Liked    []uint64 `json:"liked"`
	Disliked []uint64 `json:"disliked"`
	Matched  []uint64 `json:"matched"`
}

// MatchProfile is the payload pushed to a user when a match forms.
type MatchProfile struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Service is the swipe/match engine. It owns all mutations of the
// like/dislike/match state and is the only component that forms matches.
type Service struct {
	appCtx   *app.AppContext
	users    *repository.UserRepository
	swipes   *repository.SwipeRepository
	matches  *repository.MatchRepository
	notifier *notify.Notifier

	pairs *pairLocks
}

// NewService creates a swipe service with dependencies from AppContext.
func NewService(appCtx *app.AppContext, notifier *notify.Notifier) *Service {
	return &Service{
		appCtx:   appCtx,
		users:    repository.NewUserRepository(appCtx.DB),
		swipes:   repository.NewSwipeRepository(appCtx.DB),
		matches:  repository.NewMatchRepository(appCtx.DB),
		notifier: notifier,
		pairs:    newPairLocks(),
	}
}

// Like records actor → target interest and forms a match when the
// reciprocal like already exists.
//
// Behavior:
//   - Idempotent: a repeated like is a no-op and never re-forms a match.
//   - Fails with ErrNotFound when the target does not exist.
//   - The reciprocal check and the match commit run under the pair lock,
//     so two users liking each other concurrently form exactly one match
//     and exactly one pair of newMatch pushes goes out.
//
// Returns the actor's updated account view and whether this call formed
// the match.
func (s *Service) Like(ctx context.Context, actorID, targetID uint64) (*AccountView, bool, error) {
	if actorID == targetID {
		return nil, false, svcErr.InvalidArgument("cannot swipe on yourself")
	}

	if err := s.requireUsers(ctx, actorID, targetID); err != nil {
		return nil, false, err
	}

	unlock := s.pairs.lock(actorID, targetID)
	defer unlock()

	existing, err := s.swipes.GetSwipe(ctx, actorID, targetID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read swipe: %w", err)
	}
	if existing != nil && existing.Liked {
		// already liked: idempotent no-op
		view, err := s.accountView(ctx, actorID)
		return view, false, err
	}

	if err := s.swipes.UpsertSwipe(ctx, actorID, targetID, true); err != nil {
		return nil, false, fmt.Errorf("failed to record like: %w", err)
	}

	matchFormed := false
	reciprocal, err := s.swipes.HasLiked(ctx, targetID, actorID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check reciprocal like: %w", err)
	}
	if reciprocal {
		created, err := s.matches.CreateMatch(ctx, actorID, targetID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to record match: %w", err)
		}
		// created is false when the pair raced us and already committed;
		// in that case the other caller owns the event emission.
		if created {
			matchFormed = true
			s.pushMatchFormed(ctx, actorID, targetID)
		}
	}

	s.appCtx.Logger.Debug("like recorded",
		"actor", actorID, "target", targetID, "match_formed", matchFormed)

	view, err := s.accountView(ctx, actorID)
	return view, matchFormed, err
}

// Dislike records actor → target disinterest.
//
// Behavior:
//   - Idempotent: repeating a dislike changes nothing.
//   - Likes are monotonic in this core, so a dislike against an existing
//     like is also a no-op rather than a retraction.
//   - No match logic, no events.
func (s *Service) Dislike(ctx context.Context, actorID, targetID uint64) (*AccountView, error) {
	if actorID == targetID {
		return nil, svcErr.InvalidArgument("cannot swipe on yourself")
	}

	if err := s.requireUsers(ctx, actorID, targetID); err != nil {
		return nil, err
	}

	existing, err := s.swipes.GetSwipe(ctx, actorID, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to read swipe: %w", err)
	}
	if existing == nil {
		if err := s.swipes.UpsertSwipe(ctx, actorID, targetID, false); err != nil {
			return nil, fmt.Errorf("failed to record dislike: %w", err)
		}
	}

	return s.accountView(ctx, actorID)
}

// Matches returns the profiles the user has matched with.
func (s *Service) Matches(ctx context.Context, userID uint64) ([]MatchProfile, error) {
	ids, err := s.matches.MatchedIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load matched users: %w", err)
	}

	profiles := make([]MatchProfile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, MatchProfile{ID: u.ID, Name: u.Name, Image: u.Image})
	}
	return profiles, nil
}

// Candidates returns profiles the user can still swipe on.
func (s *Service) Candidates(ctx context.Context, userID uint64, limit int) ([]db.User, error) {
	current, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.users.SwipeCandidates(ctx, current, limit)
}

func (s *Service) requireUsers(ctx context.Context, actorID, targetID uint64) error {
	if ok, err := s.users.Exists(ctx, actorID); err != nil {
		return fmt.Errorf("failed to resolve actor: %w", err)
	} else if !ok {
		return fmt.Errorf("actor %d: %w", actorID, svcErr.ErrNotAuthorized)
	}
	if ok, err := s.users.Exists(ctx, targetID); err != nil {
		return fmt.Errorf("failed to resolve target: %w", err)
	} else if !ok {
		return fmt.Errorf("target %d: %w", targetID, svcErr.ErrNotFound)
	}
	return nil
}

// pushMatchFormed notifies both sides of a fresh match with the other
// side's profile. Push failures never unwind the committed match.
func (s *Service) pushMatchFormed(ctx context.Context, actorID, targetID uint64) {
	users, err := s.users.GetByIDs(ctx, []uint64{actorID, targetID})
	if err != nil || len(users) != 2 {
		s.appCtx.Logger.Warn("match formed but profiles could not be loaded for push",
			"actor", actorID, "target", targetID, "err", err)
		return
	}

	byID := map[uint64]db.User{users[0].ID: users[0], users[1].ID: users[1]}
	actor, target := byID[actorID], byID[targetID]

	s.notifier.Notify(targetID, notify.EventNewMatch,
		MatchProfile{ID: actor.ID, Name: actor.Name, Image: actor.Image})
	s.notifier.Notify(actorID, notify.EventNewMatch,
		MatchProfile{ID: target.ID, Name: target.Name, Image: target.Image})
}

func (s *Service) accountView(ctx context.Context, userID uint64) (*AccountView, error) {
	liked, err := s.swipes.LikedIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load liked ids: %w", err)
	}
	disliked, err := s.swipes.DislikedIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load disliked ids: %w", err)
	}
	matched, err := s.matches.MatchedIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load matched ids: %w", err)
	}

	// Once a pair matches, the other user graduates from liked to matched;
	// the exposed sets stay pairwise disjoint.
	matchedSet := make(map[uint64]struct{}, len(matched))
	for _, id := range matched {
		matchedSet[id] = struct{}{}
	}
	filtered := liked[:0]
	for _, id := range liked {
		if _, ok := matchedSet[id]; !ok {
			filtered = append(filtered, id)
		}
	}

	return &AccountView{ID: userID, Liked: filtered, Disliked: disliked, Matched: matched}, nil
}

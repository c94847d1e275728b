package tools

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/domain"
)

const (
	syncFreshness = 10 * time.Minute
	syncMaxFetch  = 200
	syncPageSize  = 50
	syncMinRows   = 40
)

// syncUserPosts mirrors a user's recent posts into the local tables before
// the analytics reads run. Skipped while the mirror is both deep enough and
// fresh; otherwise pages newest-first until it reaches the last mirrored
// post or the fetch cap. Failures only log; the caller answers from
// whatever the mirror holds.
func syncUserPosts(ctx context.Context, d Deps, userID string) int {
	latest, count, err := d.Store.UserPostsMeta(ctx, userID)
	if err != nil {
		d.Log.Warn("user posts meta failed", zap.String("user_id", userID), zap.Error(err))
	}
	if count >= syncMinRows && !latest.IsZero() && time.Since(latest) < syncFreshness {
		return 0
	}

	inserted := 0
	for page := 1; inserted < syncMaxFetch; page++ {
		posts, err := d.Platform.GetUserPosts(ctx, userID, page, syncPageSize)
		if err != nil {
			d.Log.Warn("user posts fetch failed", zap.String("user_id", userID), zap.Int("page", page), zap.Error(err))
			break
		}
		if len(posts) == 0 {
			break
		}

		batch := posts
		if !latest.IsZero() {
			newer := postsAfter(posts, latest)
			if len(newer) == 0 && page > 1 {
				break
			}
			if len(newer) > 0 {
				batch = newer
			}
		}
		for _, p := range batch {
			if err := d.Store.UpsertPost(ctx, p); err != nil {
				d.Log.Warn("post mirror upsert failed", zap.String("post_id", p.ID), zap.Error(err))
				continue
			}
			inserted++
		}
		if len(posts) < syncPageSize {
			break
		}
	}
	if inserted > 0 {
		d.Log.Info("synced user posts", zap.String("user_id", userID), zap.Int("inserted", inserted))
	}
	return inserted
}

func postsAfter(posts []*domain.Post, cutoff time.Time) []*domain.Post {
	var out []*domain.Post
	for _, p := range posts {
		t, err := time.Parse(time.RFC3339, p.CreatedDate)
		if err != nil {
			continue
		}
		if t.After(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/domain"
)

func syncPost(id string, created time.Time) *domain.Post {
	return &domain.Post{
		ID:          id,
		UserID:      "u1",
		Content:     "<p>gm</p>",
		CreatedDate: created.UTC().Format(time.RFC3339),
	}
}

func TestSyncUserPostsColdMirror(t *testing.T) {
	now := time.Now()
	store := &fakeStore{}
	platform := &fakePlatform{userPosts: [][]*domain.Post{
		{syncPost("a", now), syncPost("b", now.Add(-time.Hour))},
	}}

	inserted := syncUserPosts(context.Background(), testDeps(store, platform, nil), "u1")

	assert.Equal(t, 2, inserted)
	require.Len(t, store.upserts, 2)
	assert.Equal(t, "a", store.upserts[0].ID)
}

func TestSyncUserPostsSkipsFreshMirror(t *testing.T) {
	store := &fakeStore{metaCount: syncMinRows, metaLatest: time.Now()}
	platform := &fakePlatform{}

	inserted := syncUserPosts(context.Background(), testDeps(store, platform, nil), "u1")

	assert.Zero(t, inserted)
	assert.Zero(t, platform.feedCalls, "a fresh mirror must not hit the feed")
}

func TestSyncUserPostsOnlyNewerThanMirror(t *testing.T) {
	now := time.Now()
	store := &fakeStore{metaCount: 5, metaLatest: now.Add(-time.Hour)}
	platform := &fakePlatform{userPosts: [][]*domain.Post{
		{syncPost("new", now), syncPost("old", now.Add(-2*time.Hour))},
	}}

	inserted := syncUserPosts(context.Background(), testDeps(store, platform, nil), "u1")

	assert.Equal(t, 1, inserted)
	require.Len(t, store.upserts, 1)
	assert.Equal(t, "new", store.upserts[0].ID)
}

func TestSyncUserPostsStopsOnEmptyFeed(t *testing.T) {
	store := &fakeStore{}
	platform := &fakePlatform{}

	inserted := syncUserPosts(context.Background(), testDeps(store, platform, nil), "u1")

	assert.Zero(t, inserted)
	assert.Equal(t, 1, platform.feedCalls)
}

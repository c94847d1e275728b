package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/domain"
)

type fakeSource struct {
	posts []*domain.Post
	err   error
}

func (f *fakeSource) GetRecentThreads(context.Context) ([]*domain.Post, error) {
	return f.posts, f.err
}

type fakeSink struct {
	upserts []*domain.Post
	failID  string
}

func (f *fakeSink) UpsertPost(_ context.Context, p *domain.Post) error {
	if p.ID == f.failID {
		return errors.New("insert failed")
	}
	f.upserts = append(f.upserts, p)
	return nil
}

func post(id string) *domain.Post {
	return &domain.Post{ID: id, UserID: "u1", Content: "<p>gm</p>"}
}

func TestRunOnceMirrorsFetchedThreads(t *testing.T) {
	sink := &fakeSink{}
	ing := New(Config{}, &fakeSource{posts: []*domain.Post{post("a"), post("b")}}, sink, zap.NewNop())

	n, err := ing.runOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sink.upserts, 2)
	assert.Equal(t, "a", sink.upserts[0].ID)
}

func TestRunOnceRespectsBatchLimit(t *testing.T) {
	sink := &fakeSink{}
	src := &fakeSource{posts: []*domain.Post{post("a"), post("b"), post("c")}}
	ing := New(Config{BatchLimit: 2}, src, sink, zap.NewNop())

	n, err := ing.runOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunOnceSkipsFailedUpserts(t *testing.T) {
	sink := &fakeSink{failID: "b"}
	src := &fakeSource{posts: []*domain.Post{post("a"), post("b"), post("c")}}
	ing := New(Config{}, src, sink, zap.NewNop())

	n, err := ing.runOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunOncePropagatesSourceError(t *testing.T) {
	ing := New(Config{}, &fakeSource{err: errors.New("partner key rejected")}, &fakeSink{}, zap.NewNop())

	_, err := ing.runOnce(context.Background())
	assert.Error(t, err)
}

func TestNextBackoff(t *testing.T) {
	floor := 10 * time.Second
	cur := floor
	var prev time.Duration
	for i := 0; i < 8; i++ {
		next := nextBackoff(cur, floor)
		assert.GreaterOrEqual(t, next, prev)
		assert.LessOrEqual(t, next, maxIngestBackoff)
		prev, cur = next, next
	}
	assert.Equal(t, maxIngestBackoff, cur)
}

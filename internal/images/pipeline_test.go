package images

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/domain"
)

type fakePlatform struct {
	mu      sync.Mutex
	replies []struct {
		postID, userID, content, imageURL string
	}
	upload domain.UploadResult
}

func (f *fakePlatform) replyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replies)
}

func (f *fakePlatform) GetNotifications(context.Context, int, int) (domain.NotificationsPage, error) {
	return domain.NotificationsPage{}, nil
}
func (f *fakePlatform) GetSinglePost(context.Context, string) (*domain.Post, error) {
	return nil, nil
}
func (f *fakePlatform) ReplyToPost(_ context.Context, postID, userID, content, imageURL string) (*domain.ReplyOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, struct {
		postID, userID, content, imageURL string
	}{postID, userID, content, imageURL})
	return &domain.ReplyOutcome{Raw: map[string]any{"threadId": "reply-1"}}, nil
}
func (f *fakePlatform) PostThread(context.Context, string, string) (map[string]any, error) {
	return nil, nil
}
func (f *fakePlatform) UploadImage(context.Context, string) domain.UploadResult { return f.upload }
func (f *fakePlatform) GetUserByHandle(context.Context, string) (*domain.UserProfile, *domain.ShareStats, error) {
	return nil, nil, nil
}
func (f *fakePlatform) GetUserPosts(context.Context, string, int, int) ([]*domain.Post, error) {
	return nil, nil
}
func (f *fakePlatform) GetTrendingFeed(context.Context) ([]map[string]any, error) { return nil, nil }
func (f *fakePlatform) GetRecentThreads(context.Context) ([]*domain.Post, error)  { return nil, nil }
func (f *fakePlatform) SearchCommunities(context.Context, string) (map[string]any, error) {
	return nil, nil
}
func (f *fakePlatform) Follow(context.Context, string) error { return nil }

type fakeStore struct {
	creations []domain.ImageCreation
}

func (f *fakeStore) LoadSeenNotifications(context.Context, time.Duration, int) ([]string, error) {
	return nil, nil
}
func (f *fakeStore) StoreSeenNotification(context.Context, string) error  { return nil }
func (f *fakeStore) StoreBotReply(context.Context, domain.BotReply) error { return nil }
func (f *fakeStore) StoreImageCreation(_ context.Context, row domain.ImageCreation) error {
	f.creations = append(f.creations, row)
	return nil
}
func (f *fakeStore) UpsertPost(context.Context, *domain.Post) error { return nil }
func (f *fakeStore) UserPostsMeta(context.Context, string) (time.Time, int, error) {
	return time.Time{}, 0, nil
}
func (f *fakeStore) TopCommunities(context.Context, int, int) ([]map[string]any, error) {
	return nil, nil
}
func (f *fakeStore) TopUsers(context.Context, int, int) ([]map[string]any, error) { return nil, nil }
func (f *fakeStore) UserRecentPosts(context.Context, string, int) ([]map[string]any, error) {
	return nil, nil
}
func (f *fakeStore) UserTopPosts(context.Context, string, int, int) ([]map[string]any, error) {
	return nil, nil
}
func (f *fakeStore) SearchKeywords(context.Context, string, time.Time, time.Time, int, string) ([]map[string]any, error) {
	return nil, nil
}
func (f *fakeStore) RecentConversations(context.Context, int, string) ([]map[string]any, error) {
	return nil, nil
}
func (f *fakeStore) TopFriends(context.Context, time.Time, time.Time, int) ([]map[string]any, error) {
	return nil, nil
}
func (f *fakeStore) CommunityTimeseries(context.Context, string, int) ([]map[string]any, error) {
	return nil, nil
}
func (f *fakeStore) ResolveUserID(context.Context, string) (string, error) { return "", nil }

// fakeModel writes a file into tempDir per call, or answers with text only.
type fakeModel struct {
	tempDir string
	text    string
	noFiles bool
}

func (f *fakeModel) Generate(context.Context, string, []string) *domain.GeneratedImage {
	if f.noFiles {
		return &domain.GeneratedImage{Text: f.text}
	}
	path := filepath.Join(f.tempDir, "genai_test.png")
	os.WriteFile(path, []byte("pngdata"), 0o644)
	abs, _ := filepath.Abs(path)
	return &domain.GeneratedImage{Files: []string{abs}}
}

func newTestPipeline(t *testing.T, platform *fakePlatform, store *fakeStore, model *fakeModel) *Pipeline {
	t.Helper()
	tempDir := t.TempDir()
	saveDir := t.TempDir()
	if model != nil {
		model.tempDir = tempDir
	}
	return NewPipeline(Config{
		QueueCap: 2,
		SaveDir:  saveDir,
		TempDir:  tempDir,
	}, platform, store, model, zap.NewNop())
}

func tempLeftovers(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestEnqueueBackpressure(t *testing.T) {
	p := newTestPipeline(t, &fakePlatform{}, &fakeStore{}, &fakeModel{noFiles: true})

	require.NoError(t, p.Enqueue(domain.ImageJob{ID: "a"}))
	require.NoError(t, p.Enqueue(domain.ImageJob{ID: "b"}))
	assert.ErrorIs(t, p.Enqueue(domain.ImageJob{ID: "c"}), ErrQueueFull)
}

func TestJobSuccessRepliesWithImage(t *testing.T) {
	platform := &fakePlatform{upload: domain.UploadResult{
		Success: true,
		URL:     "https://static.starsarena.com/out.png",
	}}
	store := &fakeStore{}
	model := &fakeModel{}
	p := newTestPipeline(t, platform, store, model)

	job := domain.ImageJob{
		ID:            "job-1",
		Prompt:        "gladius holding the trophy",
		ReplyToPostID: "p1",
		ReplyToUserID: "u1",
		Caption:       "Victory.",
	}
	p.process(context.Background(), job)

	require.Len(t, platform.replies, 1)
	assert.Equal(t, "p1", platform.replies[0].postID)
	assert.Equal(t, "Victory.", platform.replies[0].content)
	assert.Equal(t, "https://static.starsarena.com/out.png", platform.replies[0].imageURL)

	// durable record written, temp dir left clean, save dir keeps the copy
	require.Len(t, store.creations, 1)
	assert.Equal(t, "reply-1", store.creations[0].ThreadID)
	assert.Empty(t, tempLeftovers(t, p.cfg.TempDir))
	saved := tempLeftovers(t, p.cfg.SaveDir)
	assert.Contains(t, saved, "job-1.png")
}

func TestJobUploadFailureStillReplies(t *testing.T) {
	platform := &fakePlatform{upload: domain.UploadResult{Success: false, Error: "policy rejected"}}
	store := &fakeStore{}
	p := newTestPipeline(t, platform, store, &fakeModel{})

	p.process(context.Background(), domain.ImageJob{
		ID:            "job-2",
		Prompt:        "arena sunrise",
		ReplyToPostID: "p2",
		Caption:       "Here",
	})

	require.Len(t, platform.replies, 1)
	assert.Contains(t, platform.replies[0].content, "upload failed")
	assert.Contains(t, platform.replies[0].content, "policy rejected")
	assert.Empty(t, platform.replies[0].imageURL)
	assert.Empty(t, tempLeftovers(t, p.cfg.TempDir))
}

func TestJobGenerationFailureRepliesWithText(t *testing.T) {
	platform := &fakePlatform{}
	p := newTestPipeline(t, platform, &fakeStore{}, &fakeModel{noFiles: true, text: "model said no"})

	p.process(context.Background(), domain.ImageJob{
		ID:            "job-3",
		Prompt:        "impossible scene",
		ReplyToPostID: "p3",
	})

	require.Len(t, platform.replies, 1)
	assert.Equal(t, "model said no", platform.replies[0].content)
	assert.Empty(t, tempLeftovers(t, p.cfg.TempDir))
}

func TestJobGenerationFailureFallsBackToCaption(t *testing.T) {
	platform := &fakePlatform{}
	p := newTestPipeline(t, platform, &fakeStore{}, &fakeModel{noFiles: true})

	p.process(context.Background(), domain.ImageJob{
		ID:            "job-4",
		Prompt:        "whatever",
		ReplyToPostID: "p4",
		Caption:       "caption fallback",
	})

	require.Len(t, platform.replies, 1)
	assert.Equal(t, "caption fallback", platform.replies[0].content)
}

func TestSafeUnlinkRestrictedToTempDir(t *testing.T) {
	p := newTestPipeline(t, &fakePlatform{}, &fakeStore{}, &fakeModel{noFiles: true})

	outside := filepath.Join(t.TempDir(), "precious.txt")
	require.NoError(t, os.WriteFile(outside, []byte("keep me"), 0o644))

	p.safeUnlink(outside)
	_, err := os.Stat(outside)
	assert.NoError(t, err, "file outside the temp root must survive")

	inside := filepath.Join(p.cfg.TempDir, "scratch.png")
	require.NoError(t, os.WriteFile(inside, []byte("x"), 0o644))
	p.safeUnlink(inside)
	_, err = os.Stat(inside)
	assert.True(t, os.IsNotExist(err))

	p.safeUnlink("")
	p.safeUnlink(p.cfg.TempDir) // directories are never removed
	_, err = os.Stat(p.cfg.TempDir)
	assert.NoError(t, err)
}

func TestWorkerDrainsQueue(t *testing.T) {
	platform := &fakePlatform{}
	p := newTestPipeline(t, platform, &fakeStore{}, &fakeModel{noFiles: true, text: "done"})

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	require.NoError(t, p.Enqueue(domain.ImageJob{ID: "w1", Prompt: "x", ReplyToPostID: "p1"}))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && platform.replyCount() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	p.Wait()

	require.Len(t, platform.replies, 1)
	assert.Equal(t, "p1", platform.replies[0].postID)
}

func TestDrainFinishesAcceptedJobsBeforeReturning(t *testing.T) {
	platform := &fakePlatform{}
	p := newTestPipeline(t, platform, &fakeStore{}, &fakeModel{noFiles: true, text: "done"})

	require.NoError(t, p.Enqueue(domain.ImageJob{ID: "d1", Prompt: "x", ReplyToPostID: "p1", ReplyToUserID: "u1"}))
	require.NoError(t, p.Enqueue(domain.ImageJob{ID: "d2", Prompt: "y", ReplyToPostID: "p2", ReplyToUserID: "u2"}))

	p.Start(context.Background())
	p.Drain()

	require.Equal(t, 2, platform.replyCount())
	assert.Equal(t, "p1", platform.replies[0].postID)
	assert.Equal(t, "p2", platform.replies[1].postID)
}

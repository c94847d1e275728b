package tools

import (
	"context"
	"errors"
	"time"

	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/domain"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/ports"
)

// fakeStore returns canned rows and records nothing.
type fakeStore struct {
	rows       []map[string]any
	upserts    []*domain.Post
	resolveID  string
	metaLatest time.Time
	metaCount  int
}

var _ ports.Store = (*fakeStore)(nil)

func (f *fakeStore) LoadSeenNotifications(context.Context, time.Duration, int) ([]string, error) {
	return nil, nil
}
func (f *fakeStore) StoreSeenNotification(context.Context, string) error  { return nil }
func (f *fakeStore) StoreBotReply(context.Context, domain.BotReply) error { return nil }
func (f *fakeStore) StoreImageCreation(context.Context, domain.ImageCreation) error {
	return nil
}
func (f *fakeStore) UpsertPost(_ context.Context, p *domain.Post) error {
	f.upserts = append(f.upserts, p)
	return nil
}
func (f *fakeStore) UserPostsMeta(context.Context, string) (time.Time, int, error) {
	return f.metaLatest, f.metaCount, nil
}
func (f *fakeStore) TopCommunities(context.Context, int, int) ([]map[string]any, error) {
	return f.rows, nil
}
func (f *fakeStore) TopUsers(context.Context, int, int) ([]map[string]any, error) {
	return f.rows, nil
}
func (f *fakeStore) UserRecentPosts(context.Context, string, int) ([]map[string]any, error) {
	return f.rows, nil
}
func (f *fakeStore) UserTopPosts(context.Context, string, int, int) ([]map[string]any, error) {
	return f.rows, nil
}
func (f *fakeStore) SearchKeywords(context.Context, string, time.Time, time.Time, int, string) ([]map[string]any, error) {
	return f.rows, nil
}
func (f *fakeStore) RecentConversations(context.Context, int, string) ([]map[string]any, error) {
	return f.rows, nil
}
func (f *fakeStore) TopFriends(context.Context, time.Time, time.Time, int) ([]map[string]any, error) {
	return f.rows, nil
}
func (f *fakeStore) CommunityTimeseries(context.Context, string, int) ([]map[string]any, error) {
	return f.rows, nil
}
func (f *fakeStore) ResolveUserID(context.Context, string) (string, error) {
	if f.resolveID == "" {
		return "", errors.New("unknown handle")
	}
	return f.resolveID, nil
}

// fakePlatform serves a fixed post and profile.
type fakePlatform struct {
	post      *domain.Post
	postErr   error
	profile   *domain.UserProfile
	stats     *domain.ShareStats
	userPosts [][]*domain.Post
	feedCalls int
}

var _ ports.Platform = (*fakePlatform)(nil)

func (f *fakePlatform) GetNotifications(context.Context, int, int) (domain.NotificationsPage, error) {
	return domain.NotificationsPage{}, nil
}
func (f *fakePlatform) GetSinglePost(context.Context, string) (*domain.Post, error) {
	return f.post, f.postErr
}
func (f *fakePlatform) ReplyToPost(context.Context, string, string, string, string) (*domain.ReplyOutcome, error) {
	return &domain.ReplyOutcome{}, nil
}
func (f *fakePlatform) PostThread(context.Context, string, string) (map[string]any, error) {
	return nil, nil
}
func (f *fakePlatform) UploadImage(context.Context, string) domain.UploadResult {
	return domain.UploadResult{}
}
func (f *fakePlatform) GetUserByHandle(context.Context, string) (*domain.UserProfile, *domain.ShareStats, error) {
	if f.profile == nil {
		return nil, nil, errors.New("user not found")
	}
	return f.profile, f.stats, nil
}
func (f *fakePlatform) GetUserPosts(_ context.Context, _ string, page, _ int) ([]*domain.Post, error) {
	f.feedCalls++
	if page < 1 || page > len(f.userPosts) {
		return nil, nil
	}
	return f.userPosts[page-1], nil
}
func (f *fakePlatform) GetTrendingFeed(context.Context) ([]map[string]any, error) {
	return nil, nil
}
func (f *fakePlatform) GetRecentThreads(context.Context) ([]*domain.Post, error) {
	return nil, nil
}
func (f *fakePlatform) SearchCommunities(context.Context, string) (map[string]any, error) {
	return map[string]any{"results": []any{}}, nil
}
func (f *fakePlatform) Follow(context.Context, string) error { return nil }

// fakeQueue records enqueued jobs or rejects everything.
type fakeQueue struct {
	jobs   []domain.ImageJob
	reject error
}

var _ ports.ImageQueue = (*fakeQueue)(nil)

func (f *fakeQueue) Enqueue(job domain.ImageJob) error {
	if f.reject != nil {
		return f.reject
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeSearcher struct {
	resp domain.SearchResponse
}

var _ ports.Searcher = (*fakeSearcher)(nil)

func (f *fakeSearcher) Search(context.Context, domain.SearchQuery) domain.SearchResponse {
	return f.resp
}

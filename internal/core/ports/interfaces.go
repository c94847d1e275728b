package ports

import (
	"context"
	"time"

	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/domain"
)

// Platform is the Arena REST surface the agent consumes.
type Platform interface {
	GetNotifications(ctx context.Context, page, pageSize int) (domain.NotificationsPage, error)
	GetSinglePost(ctx context.Context, postID string) (*domain.Post, error)
	ReplyToPost(ctx context.Context, postID, userID, contentHTML, imageURL string) (*domain.ReplyOutcome, error)
	PostThread(ctx context.Context, contentHTML, imageURL string) (map[string]any, error)
	UploadImage(ctx context.Context, localPath string) domain.UploadResult
	GetUserByHandle(ctx context.Context, handle string) (*domain.UserProfile, *domain.ShareStats, error)
	GetUserPosts(ctx context.Context, userID string, page, pageSize int) ([]*domain.Post, error)
	GetTrendingFeed(ctx context.Context) ([]map[string]any, error)
	GetRecentThreads(ctx context.Context) ([]*domain.Post, error)
	SearchCommunities(ctx context.Context, query string) (map[string]any, error)
	Follow(ctx context.Context, userID string) error
}

// Store is the durable state gateway. Read methods return ordered mapping
// rows; absence is an empty slice, never an error.
type Store interface {
	LoadSeenNotifications(ctx context.Context, window time.Duration, limit int) ([]string, error)
	StoreSeenNotification(ctx context.Context, id string) error

	StoreBotReply(ctx context.Context, reply domain.BotReply) error
	StoreImageCreation(ctx context.Context, row domain.ImageCreation) error
	UpsertPost(ctx context.Context, post *domain.Post) error
	UserPostsMeta(ctx context.Context, userID string) (time.Time, int, error)

	TopCommunities(ctx context.Context, sinceDays, limit int) ([]map[string]any, error)
	TopUsers(ctx context.Context, sinceDays, limit int) ([]map[string]any, error)
	UserRecentPosts(ctx context.Context, userID string, limit int) ([]map[string]any, error)
	UserTopPosts(ctx context.Context, userID string, daysBack, k int) ([]map[string]any, error)
	SearchKeywords(ctx context.Context, query string, start, end time.Time, limit int, mode string) ([]map[string]any, error)
	RecentConversations(ctx context.Context, limit int, handle string) ([]map[string]any, error)
	TopFriends(ctx context.Context, start, end time.Time, limit int) ([]map[string]any, error)
	CommunityTimeseries(ctx context.Context, idOrContract string, daysBack int) ([]map[string]any, error)
	ResolveUserID(ctx context.Context, handle string) (string, error)
}

// Brain drives one chat completion over the running transcript.
// forceTool, when non-empty, constrains the model to that single tool.
type Brain interface {
	Chat(ctx context.Context, transcript []domain.Message, forceTool string) (*domain.ChatResult, error)
}

// Dispatcher routes a named tool call to its handler. It never returns an
// error: every outcome, including unknown tools and handler failures, is a
// value the orchestrator can feed back into the transcript.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args map[string]any, event *domain.Post) any
}

// Searcher is the web search endpoint.
type Searcher interface {
	Search(ctx context.Context, q domain.SearchQuery) domain.SearchResponse
}

// ImageModel turns a prompt plus reference image files into generated files.
type ImageModel interface {
	Generate(ctx context.Context, prompt string, refPaths []string) *domain.GeneratedImage
}

// ImageQueue accepts asynchronous image jobs. Enqueue fails loudly when the
// queue is at capacity.
type ImageQueue interface {
	Enqueue(job domain.ImageJob) error
}

// Notifier pings the operator about agent activity. Best-effort.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

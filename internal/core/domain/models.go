package domain

import "time"

// Notification is a platform event aimed at the agent (mention or reply).
type Notification struct {
	ID        string
	Title     string
	Link      string
	CreatedAt time.Time
}

// NotificationsPage is one page of the notification stream.
type NotificationsPage struct {
	Notifications []Notification
}

// Post is a normalized Arena thread. The API returns the same logical post
// under several nested shapes; the arena client reconciles them into this
// one record before anything else touches it.
type Post struct {
	ID          string
	ThreadType  string // "thread", "comment", "quote"
	AnswerID    string // parent post when this is a comment
	RepostID    string // quoted post when this is a quote
	UserHandle  string
	UserID      string
	CreatedDate string
	Content     string // raw HTML as returned by the API
	TipAmount   string
	Images      []PostImage
	Community   *Community
}

// PostImage is one attachment on a post.
type PostImage struct {
	ID        int64
	URL       string
	IsGIF     bool
	Caption   string
	OCRText   string
	Sentiment string
}

// Community is a token community on Arena.
type Community struct {
	ID              string
	ContractAddress string
	Name            string
}

// UserProfile is the profile block returned per handle.
type UserProfile struct {
	UserID       string
	Handle       string
	Name         string
	Display      string
	Description  string
	Followers    int
	Followings   int
	ThreadCount  int
	CreatedOn    string
	Address      string
	KeyPriceAVAX float64
	Picture      string
}

// ShareStats describes a user's ticket/trading activity.
type ShareStats struct {
	TotalHoldings       int
	TotalHolders        int
	Buys                int
	Sells               int
	FeesPaidAVAX        float64
	FeesEarnedAVAX      float64
	PortfolioValueAVAX  float64
	ReferralsEarnedAVAX float64
}

// ToolCall is one model-requested (or synthetic) tool invocation.
// RawArgs keeps the argument payload exactly as the model produced it;
// the orchestrator tolerates malformed JSON by dispatching with empty args.
type ToolCall struct {
	ID      string
	Name    string
	RawArgs string
}

// ImageJob is a queued unit of asynchronous image-generation work.
// Jobs live only in memory; a restart drops whatever was queued.
type ImageJob struct {
	ID               string
	Prompt           string
	ReplyToPostID    string
	ReplyToUserID    string
	Caption          string
	ContextImageURLs []string
}

// BotReply is the durable conversation-ledger row written after each reply.
type BotReply struct {
	ParentPostID          string
	ParentPostURL         string
	ParentUserID          string
	ParentUserHandle      string
	ParentPostContentText string

	ReplyPostID      string
	ReplyPostURL     string
	ReplyUserID      string
	ReplyUserHandle  string
	ReplyContentHTML string
	ReplyImageURL    string

	ResponseJSON map[string]any
}

// ReplyMeta is what we could tolerably extract from a reply response.
type ReplyMeta struct {
	ReplyPostID     string
	ReplyUserID     string
	ReplyUserHandle string
}

// UploadResult reports an image upload attempt.
type UploadResult struct {
	Success bool
	URL     string
	Error   string
}

// ImageCreation is the durable record of one delivered image job.
type ImageCreation struct {
	ThreadID string
	UserID   string
	Content  string
	Files    []map[string]any
}

// SearchResult is one ranked web search hit.
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// SearchResponse is the normalized web search payload handed to the model.
type SearchResponse struct {
	Success bool           `json:"success"`
	Query   string         `json:"query,omitempty"`
	Answer  string         `json:"answer,omitempty"`
	Results []SearchResult `json:"results,omitempty"`
	Error   string         `json:"error,omitempty"`
}

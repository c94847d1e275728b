package arena

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/domain"
)

// apiUser is the user object as it appears nested inside threads,
// notifications and the /user/handle response. Handle alone shows up under
// three different keys depending on the endpoint.
type apiUser struct {
	ID                 string      `json:"id"`
	Handle             string      `json:"handle"`
	IXHandle           string      `json:"ixHandle"`
	TwitterHandle      string      `json:"twitterHandle"`
	Name               string      `json:"name"`
	TwitterName        string      `json:"twitterName"`
	TwitterPicture     string      `json:"twitterPicture"`
	Address            string      `json:"address"`
	FollowerCount      int         `json:"followerCount"`
	FollowingsCount    int         `json:"followingsCount"`
	ThreadCount        int         `json:"threadCount"`
	TwitterDescription string      `json:"twitterDescription"`
	CreatedOn          string      `json:"createdOn"`
	LastKeyPrice       json.Number `json:"lastKeyPrice"`
}

func (u *apiUser) bestHandle() string {
	if u == nil {
		return ""
	}
	for _, h := range []string{u.Handle, u.IXHandle, u.TwitterHandle} {
		if h != "" {
			return strings.TrimPrefix(h, "@")
		}
	}
	return ""
}

// apiCommunity is the community object nested inside threads.
type apiCommunity struct {
	ID              string `json:"id"`
	ContractAddress string `json:"contractAddress"`
	Name            string `json:"name"`
}

// apiThread is the thread payload. Images arrive either as a list of URL
// strings or a list of objects; tipAmount is sometimes a string, sometimes
// a number. Every accepted shape is reconciled in normalize().
type apiThread struct {
	ID          string            `json:"id"`
	ThreadID    string            `json:"threadId"`
	Content     string            `json:"content"`
	UserHandle  string            `json:"userHandle"`
	UserID      string            `json:"userId"`
	User        *apiUser          `json:"user"`
	AnswerID    string            `json:"answerId"`
	RepostID    string            `json:"repostId"`
	ThreadType  string            `json:"threadType"`
	TipAmount   json.Number       `json:"tipAmount"`
	CreatedDate string            `json:"createdDate"`
	Images      []json.RawMessage `json:"images"`
	Community   *apiCommunity     `json:"community"`
}

type apiImage struct {
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	Path      string `json:"path"`
	Src       string `json:"src"`
	SourceURL string `json:"source_url"`
	IsGIF     bool   `json:"is_gif"`
}

// normalize reconciles the thread shape variants into one domain.Post.
// Accepted cases:
//   - id under "id" or "threadId"
//   - handle under "userHandle", user.handle, user.ixHandle or user.twitterHandle
//   - user id under "userId" or user.id
//   - images as []string or []object with url/path/src/source_url
func (t *apiThread) normalize() *domain.Post {
	if t == nil {
		return nil
	}
	id := t.ID
	if id == "" {
		id = t.ThreadID
	}
	handle := strings.TrimPrefix(t.UserHandle, "@")
	if handle == "" {
		handle = t.User.bestHandle()
	}
	userID := t.UserID
	if userID == "" && t.User != nil {
		userID = t.User.ID
	}

	var images []domain.PostImage
	for _, raw := range t.Images {
		if img, ok := normalizeImage(raw); ok {
			images = append(images, img)
		}
	}

	var community *domain.Community
	if t.Community != nil && t.Community.ID != "" {
		community = &domain.Community{
			ID:              t.Community.ID,
			ContractAddress: t.Community.ContractAddress,
			Name:            t.Community.Name,
		}
	}

	return &domain.Post{
		ID:          id,
		ThreadType:  t.ThreadType,
		AnswerID:    t.AnswerID,
		RepostID:    t.RepostID,
		UserHandle:  handle,
		UserID:      userID,
		CreatedDate: t.CreatedDate,
		Content:     t.Content,
		TipAmount:   t.TipAmount.String(),
		Images:      images,
		Community:   community,
	}
}

func normalizeImage(raw json.RawMessage) (domain.PostImage, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return domain.PostImage{}, false
		}
		return domain.PostImage{URL: s, IsGIF: looksLikeGIF(s)}, true
	}
	var obj apiImage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return domain.PostImage{}, false
	}
	url := firstNonEmpty(obj.URL, obj.Path, obj.Src, obj.SourceURL)
	if url == "" {
		return domain.PostImage{}, false
	}
	return domain.PostImage{ID: obj.ID, URL: url, IsGIF: obj.IsGIF || looksLikeGIF(url)}, true
}

func looksLikeGIF(url string) bool {
	l := strings.ToLower(url)
	return strings.Contains(l, ".gif") || strings.Contains(l, "tenor") || strings.Contains(l, "giphy")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// apiNotification is one row of the notification stream.
type apiNotification struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Link      string `json:"link"`
	CreatedOn string `json:"createdOn"`
}

func (n *apiNotification) toDomain() domain.Notification {
	created, _ := time.Parse(time.RFC3339, n.CreatedOn)
	return domain.Notification{
		ID:        n.ID,
		Title:     n.Title,
		Link:      n.Link,
		CreatedAt: created,
	}
}

type notificationsResponse struct {
	Notifications []apiNotification `json:"notifications"`
}

type singleThreadResponse struct {
	Thread *apiThread `json:"thread"`
}

type threadsResponse struct {
	Threads []*apiThread `json:"threads"`
}

func (r *threadsResponse) normalize() []*domain.Post {
	out := make([]*domain.Post, 0, len(r.Threads))
	for _, t := range r.Threads {
		if t == nil {
			continue
		}
		if post := t.normalize(); post != nil && post.ID != "" {
			out = append(out, post)
		}
	}
	return out
}

type uploadPolicyResponse struct {
	UploadPolicy map[string]any `json:"uploadPolicy"`
}

type userResponse struct {
	User *apiUser `json:"user"`
}

type sharesStatsResponse struct {
	TotalHoldings  int         `json:"totalHoldings"`
	TotalHolders   int         `json:"totalHolders"`
	PortfolioValue json.Number `json:"portfolioValue"`
	Stats          struct {
		Buys            int         `json:"buys"`
		Sells           int         `json:"sells"`
		FeesPaid        json.Number `json:"feesPaid"`
		FeesEarned      json.Number `json:"feesEarned"`
		ReferralsEarned json.Number `json:"referralsEarned"`
	} `json:"stats"`
}

// avax converts a wei-denominated numeric field to AVAX, rounded to 3 places.
func avax(n json.Number) float64 {
	f, err := n.Float64()
	if err != nil {
		return 0
	}
	v := f / 1e18
	return float64(int64(v*1000+0.5)) / 1000
}

// ExtractReplyMeta pulls reply identity out of a reply response, tolerating
// the three shapes the API has been seen to return: the thread under
// "thread", under "data", or at the root.
func ExtractReplyMeta(resp map[string]any) domain.ReplyMeta {
	if resp == nil {
		return domain.ReplyMeta{}
	}
	root := resp
	if t, ok := resp["thread"].(map[string]any); ok {
		root = t
	} else if d, ok := resp["data"].(map[string]any); ok {
		root = d
	}
	user, _ := root["user"].(map[string]any)

	meta := domain.ReplyMeta{
		ReplyPostID:     anyString(root["id"], root["threadId"], root["createdThreadId"]),
		ReplyUserHandle: anyString(root["userHandle"], user["handle"], user["ixHandle"]),
		ReplyUserID:     anyString(user["id"], root["userId"]),
	}
	meta.ReplyUserHandle = strings.TrimPrefix(meta.ReplyUserHandle, "@")
	return meta
}

func anyString(vals ...any) string {
	for _, v := range vals {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// BuildPostURL renders the canonical arena.social link for a post.
func BuildPostURL(handle, postID string) string {
	if handle == "" || postID == "" {
		return ""
	}
	return fmt.Sprintf("https://arena.social/%s/status/%s", strings.TrimPrefix(handle, "@"), postID)
}

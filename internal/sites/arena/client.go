package arena

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/domain"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/ports"
)

const (
	DefaultBaseURL   = "https://api.starsarena.com"
	defaultUploadURL = "https://storage.googleapis.com/starsarena-s3-01/"
	staticBaseURL    = "https://static.starsarena.com"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0"
	referer   = "https://arena.social"
)

// Client is the adapter for the Arena (StarsArena) REST API. It implements
// ports.Platform and owns authentication headers and payload reconciliation.
type Client struct {
	BaseURL    string
	UploadURL  string
	JWT        string
	PartnerKey string
	HTTPClient *http.Client

	log *zap.Logger
}

func NewClient(jwt string, log *zap.Logger) *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		UploadURL:  defaultUploadURL,
		JWT:        jwt,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// Ensure Client implements Platform interface
var _ ports.Platform = (*Client)(nil)

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.JWT)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errRes struct {
			Message string `json:"message"`
		}
		json.NewDecoder(resp.Body).Decode(&errRes)
		return fmt.Errorf("%s %s failed (%d): %s", req.Method, req.URL.Path, resp.StatusCode, errRes.Message)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) GetNotifications(ctx context.Context, page, pageSize int) (domain.NotificationsPage, error) {
	path := fmt.Sprintf("/notifications?page=%d&pageSize=%d", page, pageSize)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.NotificationsPage{}, err
	}
	var res notificationsResponse
	if err := c.doJSON(req, &res); err != nil {
		return domain.NotificationsPage{}, fmt.Errorf("fetch notifications: %w", err)
	}
	out := domain.NotificationsPage{Notifications: make([]domain.Notification, 0, len(res.Notifications))}
	for _, n := range res.Notifications {
		out.Notifications = append(out.Notifications, n.toDomain())
	}
	return out, nil
}

func (c *Client) GetSinglePost(ctx context.Context, postID string) (*domain.Post, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/threads?threadId="+url.QueryEscape(postID), nil)
	if err != nil {
		return nil, err
	}
	var res singleThreadResponse
	if err := c.doJSON(req, &res); err != nil {
		return nil, fmt.Errorf("fetch post %s: %w", postID, err)
	}
	post := res.Thread.normalize()
	if post == nil || post.ID == "" {
		return nil, fmt.Errorf("post %s not found or private", postID)
	}
	return post, nil
}

// filePayload builds the files array attached to posts and replies.
func filePayload(imageURL string) []map[string]any {
	return []map[string]any{{
		"previewURL": imageURL,
		"url":        imageURL,
		"fileType":   "image",
	}}
}

func (c *Client) ReplyToPost(ctx context.Context, postID, userID, contentHTML, imageURL string) (*domain.ReplyOutcome, error) {
	payload := map[string]any{
		"content":  contentHTML,
		"threadId": postID,
		"userId":   userID,
		"files":    []map[string]any{},
	}
	if imageURL != "" {
		payload["files"] = filePayload(imageURL)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/threads/answer", payload)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := c.doJSON(req, &raw); err != nil {
		return nil, fmt.Errorf("reply to %s: %w", postID, err)
	}
	c.log.Info("replied", zap.String("post_id", postID), zap.String("user_id", userID))
	return &domain.ReplyOutcome{Meta: ExtractReplyMeta(raw), Raw: raw}, nil
}

func (c *Client) PostThread(ctx context.Context, contentHTML, imageURL string) (map[string]any, error) {
	payload := map[string]any{
		"content":     contentHTML,
		"privacyType": 0,
	}
	if imageURL != "" {
		payload["files"] = filePayload(imageURL)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/threads", payload)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := c.doJSON(req, &raw); err != nil {
		return nil, fmt.Errorf("post thread: %w", err)
	}
	return raw, nil
}

// UploadImage runs the two-phase upload: fetch a signed policy from the API,
// then multipart-POST the file to the storage bucket. Failures are folded
// into the result so the image worker can surface them in its reply text.
func (c *Client) UploadImage(ctx context.Context, localPath string) domain.UploadResult {
	const fileType = "image/png"
	fileName := filepath.Base(localPath)

	policyPath := fmt.Sprintf("/uploads/getUploadPolicy?fileType=%s&fileName=%s",
		url.QueryEscape(fileType), url.QueryEscape(fileName))
	req, err := c.newRequest(ctx, http.MethodGet, policyPath, nil)
	if err != nil {
		return domain.UploadResult{Error: err.Error()}
	}
	var policyRes uploadPolicyResponse
	if err := c.doJSON(req, &policyRes); err != nil {
		return domain.UploadResult{Error: "failed to fetch upload policy: " + err.Error()}
	}
	policy := policyRes.UploadPolicy
	key, _ := policy["key"].(string)
	if key == "" {
		return domain.UploadResult{Error: "upload policy missing key"}
	}

	// The bucket rejects the policy's own bookkeeping fields.
	delete(policy, "enctype")
	delete(policy, "url")
	policy["Content-Type"] = fileType

	file, err := os.Open(localPath)
	if err != nil {
		return domain.UploadResult{Error: err.Error()}
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range policy {
		writer.WriteField(k, fmt.Sprintf("%v", v))
	}
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return domain.UploadResult{Error: err.Error()}
	}
	if _, err := io.Copy(part, file); err != nil {
		return domain.UploadResult{Error: err.Error()}
	}
	writer.Close()

	upReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.UploadURL, &body)
	if err != nil {
		return domain.UploadResult{Error: err.Error()}
	}
	upReq.Header.Set("Content-Type", writer.FormDataContentType())
	upReq.Header.Set("User-Agent", userAgent)
	upReq.Header.Set("Referer", referer)

	resp, err := c.HTTPClient.Do(upReq)
	if err != nil {
		return domain.UploadResult{Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return domain.UploadResult{Error: fmt.Sprintf("failed to upload image: %d", resp.StatusCode)}
	}
	return domain.UploadResult{Success: true, URL: staticBaseURL + "/" + key}
}

func (c *Client) GetUserByHandle(ctx context.Context, handle string) (*domain.UserProfile, *domain.ShareStats, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/user/handle?handle="+url.QueryEscape(handle), nil)
	if err != nil {
		return nil, nil, err
	}
	var res userResponse
	if err := c.doJSON(req, &res); err != nil {
		return nil, nil, fmt.Errorf("fetch user %s: %w", handle, err)
	}
	u := res.User
	if u == nil || u.ID == "" {
		return nil, nil, fmt.Errorf("user %s not found", handle)
	}

	profile := &domain.UserProfile{
		UserID:       u.ID,
		Handle:       u.bestHandle(),
		Name:         firstNonEmpty(u.TwitterName, u.Name),
		Description:  CleanText(u.TwitterDescription),
		Followers:    u.FollowerCount,
		Followings:   u.FollowingsCount,
		ThreadCount:  u.ThreadCount,
		CreatedOn:    u.CreatedOn,
		Address:      u.Address,
		KeyPriceAVAX: avax(u.LastKeyPrice),
		Picture:      u.TwitterPicture,
	}
	if profile.Handle != "" {
		profile.Display = "@" + profile.Handle
	}

	statsReq, err := c.newRequest(ctx, http.MethodGet, "/shares/stats?userId="+url.QueryEscape(u.ID), nil)
	if err != nil {
		return nil, nil, err
	}
	var statsRes sharesStatsResponse
	if err := c.doJSON(statsReq, &statsRes); err != nil {
		return nil, nil, fmt.Errorf("fetch share stats for %s: %w", handle, err)
	}
	shares := &domain.ShareStats{
		TotalHoldings:       statsRes.TotalHoldings,
		TotalHolders:        statsRes.TotalHolders,
		Buys:                statsRes.Stats.Buys,
		Sells:               statsRes.Stats.Sells,
		FeesPaidAVAX:        avax(statsRes.Stats.FeesPaid),
		FeesEarnedAVAX:      avax(statsRes.Stats.FeesEarned),
		PortfolioValueAVAX:  avax(statsRes.PortfolioValue),
		ReferralsEarnedAVAX: avax(statsRes.Stats.ReferralsEarned),
	}
	return profile, shares, nil
}

// GetUserPosts pages through a user's own feed, newest first. Used to sync
// a user's recent threads into the local mirror.
func (c *Client) GetUserPosts(ctx context.Context, userID string, page, pageSize int) ([]*domain.Post, error) {
	path := fmt.Sprintf("/threads/feed/user?userId=%s&page=%d&pageSize=%d",
		url.QueryEscape(userID), page, pageSize)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var res threadsResponse
	if err := c.doJSON(req, &res); err != nil {
		return nil, fmt.Errorf("fetch user posts %s: %w", userID, err)
	}
	return res.normalize(), nil
}

// GetRecentThreads pulls the newest platform-wide threads from the partners
// endpoint. Requires PartnerKey; the regular JWT is not accepted there.
func (c *Client) GetRecentThreads(ctx context.Context) ([]*domain.Post, error) {
	if c.PartnerKey == "" {
		return nil, errors.New("partner key not configured")
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/partners/recent-threads?offset=0", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.PartnerKey)
	var res threadsResponse
	if err := c.doJSON(req, &res); err != nil {
		return nil, fmt.Errorf("fetch recent threads: %w", err)
	}
	return res.normalize(), nil
}

func (c *Client) GetTrendingFeed(ctx context.Context) ([]map[string]any, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/threads/feed/trendingPosts?page=1&pageSize=20", nil)
	if err != nil {
		return nil, err
	}
	var res struct {
		Threads []map[string]any `json:"threads"`
	}
	if err := c.doJSON(req, &res); err != nil {
		return nil, fmt.Errorf("fetch trending feed: %w", err)
	}
	return res.Threads, nil
}

func (c *Client) SearchCommunities(ctx context.Context, query string) (map[string]any, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/communities/search?searchString="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := c.doJSON(req, &raw); err != nil {
		return nil, fmt.Errorf("search communities: %w", err)
	}
	return raw, nil
}

func (c *Client) Follow(ctx context.Context, userID string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/follow/follow", map[string]string{"userId": userID})
	if err != nil {
		return err
	}
	if err := c.doJSON(req, nil); err != nil {
		return fmt.Errorf("follow %s: %w", userID, err)
	}
	return nil
}

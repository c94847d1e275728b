package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/domain"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/ports"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/sites/arena"
)

// Deps carries everything the tool handlers reach out to.
type Deps struct {
	Store    ports.Store
	Platform ports.Platform
	Searcher ports.Searcher
	Queue    ports.ImageQueue
	Log      *zap.Logger
}

// NewCatalog builds the full tool registry the model sees.
func NewCatalog(d Deps) *Registry {
	r := NewRegistry(d.Log)

	r.Register(&Handler{
		Declaration: &genai.FunctionDeclaration{
			Name:        "get_top_communities",
			Description: "Get the most active communities in a recent window.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"since_days": {Type: genai.TypeInteger, Description: "Window length in days. Defaults to 7."},
					"limit_n":    {Type: genai.TypeInteger, Description: "Max communities to return (1-50). Defaults to 10."},
				},
			},
		},
		Run: func(ctx context.Context, args map[string]any, _ *domain.Post) (any, error) {
			days := clampInt(argInt(args, "since_days", 7), 1, 365)
			limit := clampInt(argInt(args, "limit_n", 10), 1, 50)
			return d.Store.TopCommunities(ctx, days, limit)
		},
	})

	r.Register(&Handler{
		Declaration: &genai.FunctionDeclaration{
			Name:        "get_community_timeseries",
			Description: "Get daily activity metrics (users, posts) for a community by UUID or contract address.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"community_id_or_contract": {Type: genai.TypeString, Description: "Community UUID or contract address (0x... or bare hex)."},
					"days_back":                {Type: genai.TypeInteger, Description: "Days of history. Defaults to 14, capped at 30."},
				},
				Required: []string{"community_id_or_contract"},
			},
		},
		Run: func(ctx context.Context, args map[string]any, _ *domain.Post) (any, error) {
			key := argString(args, "community_id_or_contract")
			if key == "" {
				return nil, errors.New("community_id_or_contract is required")
			}
			days := clampInt(argInt(args, "days_back", 14), 1, 30)
			series, err := d.Store.CommunityTimeseries(ctx, key, days)
			if err != nil {
				return nil, err
			}
			return map[string]any{"community_id": key, "series": series}, nil
		},
	})

	r.Register(&Handler{
		Declaration: &genai.FunctionDeclaration{
			Name:        "search_token_communities",
			Description: "Search Arena token communities by name OR contract address. Returns candidates with ids, contractAddress, name/ticker, owner, and stats. Use this first, then call get_community_timeseries with the chosen community's UUID or contract.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"token_name_or_contract_address": {Type: genai.TypeString, Description: "Community name (no $) or contract address (0x...)."},
				},
				Required: []string{"token_name_or_contract_address"},
			},
		},
		Run: func(ctx context.Context, args map[string]any, _ *domain.Post) (any, error) {
			q := argString(args, "token_name_or_contract_address")
			if q == "" {
				return nil, errors.New("token_name_or_contract_address is required")
			}
			return d.Platform.SearchCommunities(ctx, q)
		},
	})

	r.Register(&Handler{
		Declaration: &genai.FunctionDeclaration{
			Name:        "get_top_users",
			Description: "Top engaged users recently.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"since_days": {Type: genai.TypeInteger, Description: "Window length in days. Defaults to 7."},
					"limit_n":    {Type: genai.TypeInteger, Description: "Max users (3-25). Defaults to 12."},
				},
			},
		},
		Run: func(ctx context.Context, args map[string]any, _ *domain.Post) (any, error) {
			days := clampInt(argInt(args, "since_days", 7), 1, 365)
			limit := clampInt(argInt(args, "limit_n", 12), 3, 25)
			rows, err := d.Store.TopUsers(ctx, days, limit)
			if err != nil {
				return nil, err
			}
			for _, row := range rows {
				if h, ok := row["handle"].(string); ok && h != "" {
					row["display"] = "@" + h
				}
			}
			return rows, nil
		},
	})

	r.Register(&Handler{
		Declaration: &genai.FunctionDeclaration{
			Name:        "get_user_recent_posts",
			Description: "Recent posts for a given user id or handle, to build evidence.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"user_id": {Type: genai.TypeString, Description: "User UUID or @handle."},
					"limit_n": {Type: genai.TypeInteger, Description: "Max posts (1-15). Defaults to 8."},
				},
				Required: []string{"user_id"},
			},
		},
		Run: func(ctx context.Context, args map[string]any, _ *domain.Post) (any, error) {
			uid, err := resolveUser(ctx, d, argString(args, "user_id"))
			if err != nil {
				return nil, err
			}
			limit := clampInt(argInt(args, "limit_n", 8), 1, 15)
			rows, err := d.Store.UserRecentPosts(ctx, uid, limit)
			if err != nil {
				return nil, err
			}
			for _, row := range rows {
				if txt, ok := row["content_text"].(string); ok {
					row["content_text"] = truncate(txt, 400)
				}
			}
			return rows, nil
		},
	})

	r.Register(&Handler{
		Declaration: &genai.FunctionDeclaration{
			Name:        "get_user_stats",
			Description: "Fetch Arena user stats and a short posts excerpt by @handle for grounded roasts and comparisons.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"handle":        {Type: genai.TypeString, Description: "User handle, with or without leading @."},
					"include_posts": {Type: genai.TypeBoolean, Description: "Attach a recent-posts excerpt. Defaults to true."},
					"max_chars":     {Type: genai.TypeInteger, Description: "Excerpt size cap (500-12000). Defaults to 4000."},
				},
				Required: []string{"handle"},
			},
		},
		Run: func(ctx context.Context, args map[string]any, _ *domain.Post) (any, error) {
			return userStats(ctx, d, argString(args, "handle"),
				argBool(args, "include_posts", true),
				clampInt(argInt(args, "max_chars", 4000), 500, 12000))
		},
	})

	r.Register(&Handler{
		Declaration: &genai.FunctionDeclaration{
			Name:        "get_user_top_posts",
			Description: "Fetch a user's top posts (recent and engaged) for grounded evidence.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"user_id":   {Type: genai.TypeString, Description: "User UUID or @handle."},
					"days_back": {Type: genai.TypeInteger, Description: "Fallback window in days. Defaults to 90."},
					"k":         {Type: genai.TypeInteger, Description: "Max posts (3-50). Defaults to 20."},
				},
				Required: []string{"user_id"},
			},
		},
		Run: func(ctx context.Context, args map[string]any, _ *domain.Post) (any, error) {
			uid, err := resolveUser(ctx, d, argString(args, "user_id"))
			if err != nil {
				return nil, err
			}
			daysBack := clampInt(argInt(args, "days_back", 90), 7, 365)
			k := clampInt(argInt(args, "k", 20), 3, 50)
			return userTopPosts(ctx, d, uid, daysBack, k)
		},
	})

	r.Register(&Handler{
		Declaration: &genai.FunctionDeclaration{
			Name:        "get_trending_feed",
			Description: "Get the current trending feed posts.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"limit_n": {Type: genai.TypeInteger, Description: "Max posts (3-25). Defaults to 12."},
				},
			},
		},
		Run: func(ctx context.Context, args map[string]any, _ *domain.Post) (any, error) {
			rows, err := d.Platform.GetTrendingFeed(ctx)
			if err != nil {
				return nil, err
			}
			limit := clampInt(argInt(args, "limit_n", 12), 3, 25)
			if len(rows) > limit {
				rows = rows[:limit]
			}
			return rows, nil
		},
	})

	r.Register(&Handler{
		Declaration: &genai.FunctionDeclaration{
			Name:        "analyze_post",
			Description: "Fetch Arena post text, author, and images for a given Arena URL or UUID. Also used for fetching comments; called in a chain to walk a full comment thread.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"url_or_id": {Type: genai.TypeString, Description: "Full arena.social URL OR raw post UUID."},
				},
				Required: []string{"url_or_id"},
			},
		},
		Run: func(ctx context.Context, args map[string]any, _ *domain.Post) (any, error) {
			return analyzePost(ctx, d, argString(args, "url_or_id")), nil
		},
	})

	r.Register(&Handler{
		Declaration: &genai.FunctionDeclaration{
			Name:        "search_keywords_timewindow",
			Description: "Keyword search over posts within an IST-based day window. To search the last n days, keep days_span=n and start_days_offset=-n.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"query":             {Type: genai.TypeString, Description: "Space-separated keyword(s)."},
					"start_days_offset": {Type: genai.TypeInteger, Description: "0 means today, -1 yesterday, -7 a week ago. Never positive."},
					"days_span":         {Type: genai.TypeInteger, Description: "Window length in days (1-30). Defaults to 1."},
					"limit_n":           {Type: genai.TypeInteger, Description: "Max rows (1-100). Defaults to 50."},
					"mode":              {Type: genai.TypeString, Enum: []string{"OR", "AND"}, Description: "OR matches any keyword, AND requires all."},
				},
				Required: []string{"query", "mode"},
			},
		},
		Run: func(ctx context.Context, args map[string]any, _ *domain.Post) (any, error) {
			q := strings.Join(strings.Fields(argString(args, "query")), " ")
			if q == "" {
				return nil, errors.New("query is required")
			}
			mode := strings.ToUpper(argString(args, "mode"))
			if mode != "AND" {
				mode = "OR"
			}
			offset := argInt(args, "start_days_offset", 0)
			if offset > 0 {
				offset = 0
			}
			span := clampInt(argInt(args, "days_span", 1), 1, 30)
			limit := clampInt(argInt(args, "limit_n", 50), 1, 100)
			start, end := istDayWindow(offset, span)
			return d.Store.SearchKeywords(ctx, q, start, end, limit, mode)
		},
	})

	r.Register(&Handler{
		Declaration: &genai.FunctionDeclaration{
			Name:        "tool_get_conversation_history",
			Description: "Fetch the most recent conversations the agent had on Arena, optionally filtered by a parent user handle (case-insensitive, no @ prefix). Gives the agent awareness of prior exchanges.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"limit_n": {Type: genai.TypeInteger, Description: "Rows to fetch (1-100). Defaults to 20."},
					"handle":  {Type: genai.TypeString, Description: "Optional handle filter, no @ prefix."},
				},
			},
		},
		Run: func(ctx context.Context, args map[string]any, _ *domain.Post) (any, error) {
			limit := clampInt(argInt(args, "limit_n", 20), 1, 100)
			handle := strings.TrimPrefix(argString(args, "handle"), "@")
			return d.Store.RecentConversations(ctx, limit, handle)
		},
	})

	r.Register(&Handler{
		Declaration: &genai.FunctionDeclaration{
			Name:        "tool_top_friends",
			Description: "Return the users who interacted with the agent most within a time window. Gives the agent a sense of its closest friends.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"start_days_offset": {Type: genai.TypeInteger, Description: "Offset from today (negative = days ago, never positive). Defaults to 0."},
					"days_span":         {Type: genai.TypeInteger, Description: "Window length in days. Defaults to 7."},
					"limit_n":           {Type: genai.TypeInteger, Description: "Max users (1-100). Defaults to 20."},
				},
			},
		},
		Run: func(ctx context.Context, args map[string]any, _ *domain.Post) (any, error) {
			offset := argInt(args, "start_days_offset", 0)
			if offset > 0 {
				offset = 0
			}
			span := clampInt(argInt(args, "days_span", 7), 1, 365)
			limit := clampInt(argInt(args, "limit_n", 20), 1, 100)
			start, end := istDayWindow(offset, span)
			return d.Store.TopFriends(ctx, start, end, limit)
		},
	})

	r.Register(&Handler{
		Declaration: &genai.FunctionDeclaration{
			Name:        "generate_image",
			Description: "Queue an AI image (non-blocking); it is posted as a reply when ready. Keep Gladius as the character if needed, mentioned as [FIRST CHARACTER] in the prompt.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"prompt":           {Type: genai.TypeString, Description: "Scene prompt, including Gladius as [FIRST CHARACTER] if needed."},
					"caption":          {Type: genai.TypeString, Description: "Short line to accompany the image."},
					"reply_to_post_id": {Type: genai.TypeString},
					"reply_to_user_id": {Type: genai.TypeString},
					"context_image_urls": {
						Type:        genai.TypeArray,
						Items:       &genai.Schema{Type: genai.TypeString},
						Description: "Optional reference image URLs (profile photos, post images). If the Gladius character is in the prompt, the first URL SHOULD BE https://arena.social/ArenaGladius.",
					},
				},
				Required: []string{"prompt"},
			},
		},
		Run: func(ctx context.Context, args map[string]any, event *domain.Post) (any, error) {
			return generateImage(d, args, event), nil
		},
	})

	r.Register(&Handler{
		Declaration: &genai.FunctionDeclaration{
			Name:        "search_web",
			Description: "Search the public web and return ranked results and an optional concise answer.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"query":           {Type: genai.TypeString},
					"max_results":     {Type: genai.TypeInteger, Description: "1-10, defaults to 6."},
					"search_depth":    {Type: genai.TypeString, Enum: []string{"basic", "advanced"}},
					"include_answer":  {Type: genai.TypeBoolean, Description: "Defaults to true."},
					"include_domains": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
					"exclude_domains": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
				},
				Required: []string{"query"},
			},
		},
		Run: func(ctx context.Context, args map[string]any, _ *domain.Post) (any, error) {
			q := argString(args, "query")
			if q == "" {
				return nil, errors.New("query is required")
			}
			return d.Searcher.Search(ctx, domain.SearchQuery{
				Query:          q,
				MaxResults:     clampInt(argInt(args, "max_results", 6), 1, 10),
				Depth:          argString(args, "search_depth"),
				IncludeAnswer:  argBool(args, "include_answer", true),
				IncludeDomains: argStrings(args, "include_domains"),
				ExcludeDomains: argStrings(args, "exclude_domains"),
			}), nil
		},
	})

	return r
}

// analyzePost fetches and normalizes one post. Always returns a mapping;
// failures carry success=false so the model (and the chain walker) can
// react without the loop breaking.
func analyzePost(ctx context.Context, d Deps, urlOrID string) map[string]any {
	postID := arena.ExtractPostID(urlOrID)
	d.Log.Info("analyze_post", zap.String("input", urlOrID), zap.String("post_id", postID))

	post, err := d.Platform.GetSinglePost(ctx, postID)
	if err != nil {
		return map[string]any{"success": false, "error": err.Error(), "post_id": postID}
	}
	if post == nil || post.ID == "" {
		return map[string]any{"success": false, "error": "Post not found.", "post_id": postID}
	}

	// keep the local cache warm; failure here never blocks the answer
	if err := d.Store.UpsertPost(ctx, post); err != nil {
		d.Log.Warn("post cache upsert failed", zap.String("post_id", post.ID), zap.Error(err))
	}

	var imageURLs []string
	var media []map[string]any
	for _, img := range post.Images {
		if img.URL == "" {
			continue
		}
		imageURLs = append(imageURLs, img.URL)
		media = append(media, map[string]any{
			"url":       img.URL,
			"is_gif":    img.IsGIF,
			"caption":   img.Caption,
			"ocr_text":  img.OCRText,
			"sentiment": img.Sentiment,
		})
	}

	return map[string]any{
		"success": true,
		"post_id": post.ID,
		"author": map[string]any{
			"handle":  post.UserHandle,
			"user_id": post.UserID,
			"display": "@" + post.UserHandle,
		},
		"content_text": arena.StripHTML(post.Content),
		"answerId":     post.AnswerID,
		"repostId":     post.RepostID,
		"threadType":   post.ThreadType,
		"tipAmount":    post.TipAmount,
		"image_urls":   imageURLs,
		"media":        media,
	}
}

// generateImage resolves a reply target and enqueues the job. Explicit
// arguments win; the ambient triggering event backfills what the model
// omitted.
func generateImage(d Deps, args map[string]any, event *domain.Post) map[string]any {
	prompt := argString(args, "prompt")
	if prompt == "" {
		return map[string]any{"queued": false, "error": "prompt is required"}
	}

	postID := argString(args, "reply_to_post_id")
	userID := argString(args, "reply_to_user_id")
	if postID == "" && event != nil {
		postID = event.ID
	}
	if userID == "" && event != nil {
		userID = event.UserID
	}
	if postID == "" || userID == "" {
		return map[string]any{"queued": false, "error": "missing reply target: need reply_to_post_id and reply_to_user_id or a triggering post"}
	}

	job := domain.ImageJob{
		ID:               uuid.NewString(),
		Prompt:           prompt,
		ReplyToPostID:    postID,
		ReplyToUserID:    userID,
		Caption:          argString(args, "caption"),
		ContextImageURLs: argStrings(args, "context_image_urls"),
	}
	if err := d.Queue.Enqueue(job); err != nil {
		d.Log.Warn("image enqueue rejected", zap.String("post_id", postID), zap.Error(err))
		return map[string]any{"queued": false, "error": err.Error()}
	}
	d.Log.Info("image job queued", zap.String("job_id", job.ID), zap.String("post_id", postID))
	return map[string]any{"queued": true, "job_id": job.ID}
}

func userStats(ctx context.Context, d Deps, handle string, includePosts bool, maxChars int) (any, error) {
	handle = strings.TrimPrefix(handle, "@")
	if handle == "" {
		return nil, errors.New("handle is required")
	}
	profile, shares, err := d.Platform.GetUserByHandle(ctx, handle)
	if err != nil {
		return map[string]any{"success": false, "error": err.Error()}, nil
	}

	prof := map[string]any{
		"user_id":        profile.UserID,
		"handle":         profile.Handle,
		"name":           profile.Name,
		"display":        "@" + profile.Handle,
		"description":    profile.Description,
		"followers":      profile.Followers,
		"followings":     profile.Followings,
		"thread_count":   profile.ThreadCount,
		"created_on":     profile.CreatedOn,
		"address":        profile.Address,
		"key_price_avax": profile.KeyPriceAVAX,
	}

	// keep the mirror warm so the excerpt and later per-user reads have rows
	inserted := syncUserPosts(ctx, d, profile.UserID)

	out := map[string]any{
		"success": true,
		"profile": prof,
		"sync":    map[string]any{"attempted": true, "inserted": inserted},
		"shares": map[string]any{
			"total_holdings":       shares.TotalHoldings,
			"total_holders":        shares.TotalHolders,
			"buys":                 shares.Buys,
			"sells":                shares.Sells,
			"fees_paid_avax":       shares.FeesPaidAVAX,
			"fees_earned_avax":     shares.FeesEarnedAVAX,
			"portfolio_value_avax": shares.PortfolioValueAVAX,
			"referrals_avax":       shares.ReferralsEarnedAVAX,
		},
	}

	if includePosts {
		excerpt := ""
		if top, err := userTopPosts(ctx, d, profile.UserID, 90, 20); err == nil {
			excerpt = truncate(top["excerpt"].(string), maxChars)
		}
		out["posts_excerpt"] = excerpt
	}
	return out, nil
}

// userTopPosts prefers the newest-first cache read and falls back to the
// engagement-ranked query when the simple read comes back empty.
func userTopPosts(ctx context.Context, d Deps, userID string, daysBack, k int) (map[string]any, error) {
	rows, err := d.Store.UserRecentPosts(ctx, userID, k)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		rows, err = d.Store.UserTopPosts(ctx, userID, daysBack, k)
		if err != nil {
			return nil, err
		}
	}

	var texts []string
	for _, row := range rows {
		if t, ok := row["content_text"].(string); ok {
			if cleaned := arena.CleanText(t); cleaned != "" {
				texts = append(texts, cleaned)
			}
		}
	}
	return map[string]any{
		"posts":   rows,
		"excerpt": strings.Join(texts, "\n\n"),
	}, nil
}

// resolveUser turns a UUID or @handle into a user id, trying the local
// cache before the platform API.
func resolveUser(ctx context.Context, d Deps, idOrHandle string) (string, error) {
	idOrHandle = strings.TrimSpace(idOrHandle)
	if idOrHandle == "" {
		return "", errors.New("user_id is required")
	}
	if isUUID(idOrHandle) {
		return idOrHandle, nil
	}

	handle := strings.TrimPrefix(idOrHandle, "@")
	if uid, err := d.Store.ResolveUserID(ctx, handle); err == nil && uid != "" {
		return uid, nil
	}
	profile, _, err := d.Platform.GetUserByHandle(ctx, handle)
	if err != nil {
		return "", fmt.Errorf("could not resolve user %q: %w", idOrHandle, err)
	}
	if profile.UserID == "" {
		return "", fmt.Errorf("could not resolve user %q", idOrHandle)
	}
	// a cache miss means the mirror has likely never seen this user
	syncUserPosts(ctx, d, profile.UserID)
	return profile.UserID, nil
}

package poller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/domain"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/ports"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/sites/arena"
)

const (
	mentionPhrase = "mentioned you in a"
	commentPhrase = "replied:"

	maxBackoff = 60 * time.Second

	// posted verbatim when the model pipeline is unavailable; the user
	// always gets some reply
	overloadReply = "Too many warriors in the Arena battling with me. Try again later."
)

// Asker answers one question in the context of a triggering post.
type Asker interface {
	Ask(ctx context.Context, question string, event *domain.Post) (string, error)
}

// Config carries the supervisor tunables.
type Config struct {
	PollInterval time.Duration
	MaxPerPoll   int
	SeenWindow   time.Duration
	SeenLimit    int
	RefreshEvery time.Duration
	BotHandle    string
	BotUserID    string
}

func (c *Config) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.MaxPerPoll <= 0 {
		c.MaxPerPoll = 50
	}
	if c.SeenWindow <= 0 {
		c.SeenWindow = 48 * time.Hour
	}
	if c.SeenLimit <= 0 {
		c.SeenLimit = 1000
	}
	if c.RefreshEvery <= 0 {
		c.RefreshEvery = 24 * time.Hour
	}
	if c.BotHandle == "" {
		c.BotHandle = "arenagladius"
	}
}

// Poller is the top-level supervisor: it pulls the notification stream,
// filters already-seen entries, routes qualifying mentions into the asker,
// and records delivery state so a crash never replays old notifications.
type Poller struct {
	cfg      Config
	platform ports.Platform
	store    ports.Store
	asker    Asker
	notifier ports.Notifier
	log      *zap.Logger

	seen        map[string]struct{}
	lastRefresh time.Time
}

func New(cfg Config, platform ports.Platform, store ports.Store, asker Asker, notifier ports.Notifier, log *zap.Logger) *Poller {
	cfg.defaults()
	return &Poller{
		cfg:      cfg,
		platform: platform,
		store:    store,
		asker:    asker,
		notifier: notifier,
		log:      log,
		seen:     make(map[string]struct{}),
	}
}

// Run blocks until ctx is cancelled. Any cycle error doubles the sleep up
// to a cap; one clean cycle resets it to the base interval.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("gladius mention agent running")
	p.refreshSeen(ctx)

	backoff := time.Second
	for {
		err := p.cycle(ctx)
		var sleep time.Duration
		if err != nil {
			p.log.Error("poll cycle failed", zap.Error(err))
			// only the first failure of a streak reaches the operator
			if backoff == time.Second && p.notifier != nil {
				if nerr := p.notifier.Notify(ctx, "Poll cycle failed", excerpt(err.Error(), 300)); nerr != nil {
					p.log.Debug("operator notify failed", zap.Error(nerr))
				}
			}
			sleep = backoff
			backoff = nextBackoff(backoff)
		} else {
			backoff = time.Second
			sleep = p.cfg.PollInterval
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func (p *Poller) cycle(ctx context.Context) error {
	if time.Since(p.lastRefresh) > p.cfg.RefreshEvery {
		p.log.Info("daily refresh of seen notifications")
		p.refreshSeen(ctx)
	}

	page, err := p.platform.GetNotifications(ctx, 1, p.cfg.MaxPerPoll)
	if err != nil {
		return err
	}
	p.log.Info("fetched notifications", zap.Int("count", len(page.Notifications)))

	for _, n := range page.Notifications {
		if n.ID == "" {
			continue
		}
		if _, dup := p.seen[n.ID]; dup {
			continue
		}
		p.handleNotification(ctx, n)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// handleNotification processes one notification. The id is marked seen even
// when processing fails: retries would repeat the same failure forever and
// block the stream.
func (p *Poller) handleNotification(ctx context.Context, n domain.Notification) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("notification handler panicked", zap.String("id", n.ID), zap.Any("panic", r))
		}
		p.markSeen(ctx, n.ID)
	}()

	p.log.Info("notification", zap.String("title", n.Title), zap.String("link", n.Link))
	if !qualifies(n.Title) {
		return
	}

	postID := arena.ExtractNotificationPostID(n.Link)
	if postID == "" {
		p.log.Warn("could not extract post id from link", zap.String("link", n.Link))
		return
	}

	post, err := p.platform.GetSinglePost(ctx, postID)
	if err != nil {
		p.log.Error("fetching trigger post failed", zap.String("post_id", postID), zap.Error(err))
		return
	}
	if post == nil || post.Content == "" {
		p.log.Warn("trigger post empty", zap.String("post_id", postID))
		return
	}

	question := buildQuestion(post)
	p.log.Info("question", zap.String("text", excerpt(question, 600)))

	answer, err := p.asker.Ask(ctx, question, post)
	if err != nil {
		p.log.Error("ask failed", zap.String("post_id", postID), zap.Error(err))
		answer = overloadReply
	}
	if strings.TrimSpace(answer) == "" {
		p.log.Info("image queued; worker will reply", zap.String("post_id", postID))
		return
	}

	replyHTML := safeHTMLWrap(answer)
	outcome, err := p.platform.ReplyToPost(ctx, post.ID, post.UserID, replyHTML, "")
	if err != nil {
		p.log.Error("posting reply failed", zap.String("post_id", postID), zap.Error(err))
		return
	}
	p.log.Info("replied", zap.String("post_id", post.ID), zap.String("user_id", post.UserID))
	p.logReply(ctx, post, replyHTML, outcome)
	p.notify(ctx, post, answer)
}

func (p *Poller) logReply(ctx context.Context, post *domain.Post, replyHTML string, outcome *domain.ReplyOutcome) {
	reply := domain.BotReply{
		ParentPostID:          post.ID,
		ParentPostURL:         arena.BuildPostURL(post.UserHandle, post.ID),
		ParentUserID:          post.UserID,
		ParentUserHandle:      post.UserHandle,
		ParentPostContentText: arena.StripHTML(post.Content),
		ReplyUserID:           p.cfg.BotUserID,
		ReplyUserHandle:       p.cfg.BotHandle,
		ReplyContentHTML:      replyHTML,
	}
	if outcome != nil {
		reply.ReplyPostID = outcome.Meta.ReplyPostID
		reply.ReplyPostURL = arena.BuildPostURL(p.cfg.BotHandle, outcome.Meta.ReplyPostID)
		if outcome.Meta.ReplyUserID != "" {
			reply.ReplyUserID = outcome.Meta.ReplyUserID
		}
		reply.ResponseJSON = outcome.Raw
	}
	if err := p.store.StoreBotReply(ctx, reply); err != nil {
		p.log.Error("logging bot reply failed", zap.String("post_id", post.ID), zap.Error(err))
	}
}

func (p *Poller) notify(ctx context.Context, post *domain.Post, answer string) {
	if p.notifier == nil {
		return
	}
	title := fmt.Sprintf("Replied to @%s", post.UserHandle)
	if err := p.notifier.Notify(ctx, title, excerpt(answer, 300)); err != nil {
		p.log.Debug("operator notify failed", zap.Error(err))
	}
}

func (p *Poller) refreshSeen(ctx context.Context) {
	ids, err := p.store.LoadSeenNotifications(ctx, p.cfg.SeenWindow, p.cfg.SeenLimit)
	if err != nil {
		p.log.Error("loading seen notifications failed", zap.Error(err))
		p.lastRefresh = time.Now()
		return
	}
	p.seen = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		p.seen[id] = struct{}{}
	}
	p.lastRefresh = time.Now()
}

func (p *Poller) markSeen(ctx context.Context, id string) {
	p.seen[id] = struct{}{}
	if err := p.store.StoreSeenNotification(ctx, id); err != nil {
		p.log.Error("storing seen notification failed", zap.String("id", id), zap.Error(err))
	}
}

// qualifies keeps only mention and reply notifications; likes, follows and
// trade pings share the same stream.
func qualifies(title string) bool {
	return strings.Contains(title, mentionPhrase) ||
		strings.HasSuffix(strings.TrimSpace(title), commentPhrase)
}

// buildQuestion hands the model a short brief; the event block appended by
// the orchestrator carries the ids tools need.
func buildQuestion(post *domain.Post) string {
	handle := post.UserHandle
	if handle == "" {
		handle = "unknown"
	}
	return fmt.Sprintf("@%s:  %s", handle, truncateRunes(arena.StripHTML(post.Content), 1000))
}

// safeHTMLWrap escapes the model's plain-text answer for the platform's
// HTML post body.
func safeHTMLWrap(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\n", "<br>")
	return "<p>" + s + "</p>"
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func excerpt(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// nextBackoff doubles the failure sleep up to the ceiling.
func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

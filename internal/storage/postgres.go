package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/domain"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/ports"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/sites/arena"
)

// PostgresStore is the durable state gateway: the seen-notification ledger,
// the bot-reply conversation log, and the synced thread/user/community
// mirror the analytics tools read from.
type PostgresStore struct {
	Pool *pgxpool.Pool
	log  *zap.Logger
}

func NewPostgresStore(ctx context.Context, connStr string, log *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	s := &PostgresStore{Pool: pool, log: log}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

var _ ports.Store = (*PostgresStore)(nil)

func (s *PostgresStore) Close() {
	s.Pool.Close()
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS seen_notifications (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS bot_replies (
			id BIGSERIAL PRIMARY KEY,
			parent_post_id TEXT,
			parent_post_url TEXT,
			parent_user_id TEXT,
			parent_user_handle TEXT,
			parent_post_content_text TEXT,
			reply_post_id TEXT,
			reply_post_url TEXT,
			reply_user_id TEXT,
			reply_user_handle TEXT,
			reply_content_html TEXT,
			reply_image_url TEXT,
			response_json JSONB DEFAULT '{}',
			created_at TIMESTAMPTZ DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS image_creations (
			id BIGSERIAL PRIMARY KEY,
			thread_id TEXT,
			user_id TEXT,
			content TEXT,
			files JSONB DEFAULT '[]',
			created_at TIMESTAMPTZ DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS sa_users (
			id TEXT PRIMARY KEY,
			handle TEXT,
			name TEXT,
			picture TEXT,
			address TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS sa_communities (
			id TEXT PRIMARY KEY,
			contract_address TEXT,
			name TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS sa_threads (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			community_id TEXT,
			content_html TEXT,
			content_text TEXT,
			thread_type TEXT,
			created_at TIMESTAMPTZ,
			tip_amount TEXT
		)`,
	}

	for _, q := range queries {
		if _, err := s.Pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) LoadSeenNotifications(ctx context.Context, window time.Duration, limit int) ([]string, error) {
	cutoff := time.Now().UTC().Add(-window)
	rows, err := s.Pool.Query(ctx,
		`SELECT id FROM seen_notifications WHERE created_at >= $1 ORDER BY created_at DESC LIMIT $2`,
		cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) StoreSeenNotification(ctx context.Context, id string) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO seen_notifications (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id)
	return err
}

func (s *PostgresStore) StoreBotReply(ctx context.Context, r domain.BotReply) error {
	responseJSON, err := json.Marshal(r.ResponseJSON)
	if err != nil {
		responseJSON = []byte("{}")
	}
	_, err = s.Pool.Exec(ctx,
		`INSERT INTO bot_replies (
			parent_post_id, parent_post_url, parent_user_id, parent_user_handle, parent_post_content_text,
			reply_post_id, reply_post_url, reply_user_id, reply_user_handle,
			reply_content_html, reply_image_url, response_json
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		r.ParentPostID, r.ParentPostURL, r.ParentUserID, strings.TrimPrefix(r.ParentUserHandle, "@"), r.ParentPostContentText,
		r.ReplyPostID, r.ReplyPostURL, r.ReplyUserID, strings.TrimPrefix(r.ReplyUserHandle, "@"),
		r.ReplyContentHTML, r.ReplyImageURL, responseJSON)
	return err
}

func (s *PostgresStore) StoreImageCreation(ctx context.Context, row domain.ImageCreation) error {
	files, err := json.Marshal(row.Files)
	if err != nil {
		files = []byte("[]")
	}
	_, err = s.Pool.Exec(ctx,
		`INSERT INTO image_creations (thread_id, user_id, content, files) VALUES ($1,$2,$3,$4)`,
		row.ThreadID, row.UserID, row.Content, files)
	return err
}

// UpsertPost mirrors a fetched thread (plus its author and community rows)
// into the local tables the analytics tools read.
func (s *PostgresStore) UpsertPost(ctx context.Context, post *domain.Post) error {
	if post == nil || post.ID == "" {
		return nil
	}
	if post.UserID != "" {
		_, err := s.Pool.Exec(ctx,
			`INSERT INTO sa_users (id, handle) VALUES ($1, $2)
			 ON CONFLICT (id) DO UPDATE SET handle = COALESCE(NULLIF(EXCLUDED.handle, ''), sa_users.handle)`,
			post.UserID, strings.TrimPrefix(post.UserHandle, "@"))
		if err != nil {
			return err
		}
	}
	var communityID any
	if post.Community != nil {
		communityID = post.Community.ID
		_, err := s.Pool.Exec(ctx,
			`INSERT INTO sa_communities (id, contract_address, name) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET contract_address = EXCLUDED.contract_address, name = EXCLUDED.name`,
			post.Community.ID, post.Community.ContractAddress, post.Community.Name)
		if err != nil {
			return err
		}
	}

	createdAt := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, post.CreatedDate); err == nil {
		createdAt = t
	}
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO sa_threads (id, user_id, community_id, content_html, content_text, thread_type, created_at, tip_amount)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (id) DO UPDATE SET
		   content_html = EXCLUDED.content_html,
		   content_text = EXCLUDED.content_text,
		   thread_type = EXCLUDED.thread_type,
		   tip_amount = EXCLUDED.tip_amount`,
		post.ID, post.UserID, communityID, post.Content, arena.StripHTML(post.Content),
		post.ThreadType, createdAt, post.TipAmount)
	return err
}

// UserPostsMeta reports the newest mirrored post time and row count for a
// user, driving the freshness gate of the posts sync.
func (s *PostgresStore) UserPostsMeta(ctx context.Context, userID string) (time.Time, int, error) {
	var latest *time.Time
	var count int
	err := s.Pool.QueryRow(ctx,
		`SELECT MAX(created_at), COUNT(*) FROM sa_threads WHERE user_id = $1`,
		userID).Scan(&latest, &count)
	if err != nil {
		return time.Time{}, 0, err
	}
	if latest == nil {
		return time.Time{}, count, nil
	}
	return *latest, count, nil
}

// collectRows materializes a pgx result set into ordered mapping rows.
func collectRows(rows pgx.Rows) ([]map[string]any, error) {
	defer rows.Close()
	fields := rows.FieldDescriptions()
	out := []map[string]any{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[string(fd.Name)] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	rows, err := s.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

func (s *PostgresStore) TopCommunities(ctx context.Context, sinceDays, limit int) ([]map[string]any, error) {
	return s.query(ctx,
		`SELECT c.id, c.name, c.contract_address,
		        COUNT(t.id) AS posts, COUNT(DISTINCT t.user_id) AS users
		 FROM sa_threads t
		 JOIN sa_communities c ON c.id = t.community_id
		 WHERE t.created_at >= now() - ($1 || ' days')::interval
		 GROUP BY c.id, c.name, c.contract_address
		 ORDER BY posts DESC
		 LIMIT $2`,
		sinceDays, limit)
}

func (s *PostgresStore) TopUsers(ctx context.Context, sinceDays, limit int) ([]map[string]any, error) {
	rows, err := s.query(ctx,
		`SELECT u.id, u.handle, COUNT(t.id) AS posts
		 FROM sa_threads t
		 JOIN sa_users u ON u.id = t.user_id
		 WHERE t.created_at >= now() - ($1 || ' days')::interval
		 GROUP BY u.id, u.handle
		 ORDER BY posts DESC
		 LIMIT $2`,
		sinceDays, limit)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if h, ok := r["handle"].(string); ok && h != "" {
			r["display"] = "@" + h
		}
	}
	return rows, nil
}

func (s *PostgresStore) UserRecentPosts(ctx context.Context, userID string, limit int) ([]map[string]any, error) {
	return s.query(ctx,
		`SELECT id, content_text, thread_type, created_at, tip_amount
		 FROM sa_threads
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit)
}

func (s *PostgresStore) UserTopPosts(ctx context.Context, userID string, daysBack, k int) ([]map[string]any, error) {
	return s.query(ctx,
		`SELECT id, content_text, thread_type, created_at, tip_amount
		 FROM sa_threads
		 WHERE user_id = $1
		   AND created_at >= now() - ($2 || ' days')::interval
		 ORDER BY created_at DESC
		 LIMIT $3`,
		userID, daysBack, k)
}

func (s *PostgresStore) SearchKeywords(ctx context.Context, query string, start, end time.Time, limit int, mode string) ([]map[string]any, error) {
	words := strings.Fields(query)
	if len(words) == 0 {
		return []map[string]any{}, nil
	}
	joiner := " OR "
	if strings.EqualFold(mode, "AND") {
		joiner = " AND "
	}
	conds := make([]string, 0, len(words))
	args := []any{start, end, limit}
	for _, w := range words {
		args = append(args, "%"+w+"%")
		conds = append(conds, fmt.Sprintf("t.content_text ILIKE $%d", len(args)))
	}
	sql := fmt.Sprintf(
		`SELECT t.id, t.content_text, t.created_at, u.handle
		 FROM sa_threads t
		 LEFT JOIN sa_users u ON u.id = t.user_id
		 WHERE t.created_at >= $1 AND t.created_at < $2 AND (%s)
		 ORDER BY t.created_at DESC
		 LIMIT $3`, strings.Join(conds, joiner))
	return s.query(ctx, sql, args...)
}

func (s *PostgresStore) RecentConversations(ctx context.Context, limit int, handle string) ([]map[string]any, error) {
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if handle != "" {
		return s.query(ctx,
			`SELECT parent_user_handle, parent_post_content_text, reply_content_html, parent_post_url, created_at
			 FROM bot_replies
			 WHERE parent_user_handle ILIKE $1
			 ORDER BY created_at DESC
			 LIMIT $2`,
			strings.TrimPrefix(handle, "@"), limit)
	}
	return s.query(ctx,
		`SELECT parent_user_handle, parent_post_content_text, reply_content_html, parent_post_url, created_at
		 FROM bot_replies
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit)
}

func (s *PostgresStore) TopFriends(ctx context.Context, start, end time.Time, limit int) ([]map[string]any, error) {
	return s.query(ctx,
		`SELECT parent_user_handle AS handle, COUNT(*) AS replies
		 FROM bot_replies
		 WHERE created_at >= $1 AND created_at < $2 AND parent_user_handle <> ''
		 GROUP BY parent_user_handle
		 ORDER BY replies DESC
		 LIMIT $3`,
		start, end, limit)
}

func (s *PostgresStore) CommunityTimeseries(ctx context.Context, idOrContract string, daysBack int) ([]map[string]any, error) {
	if daysBack > 30 {
		daysBack = 30
	}
	return s.query(ctx,
		`SELECT date_trunc('day', t.created_at) AS day,
		        COUNT(t.id) AS posts, COUNT(DISTINCT t.user_id) AS users
		 FROM sa_threads t
		 JOIN sa_communities c ON c.id = t.community_id
		 WHERE (c.id = $1 OR c.contract_address = $1)
		   AND t.created_at >= now() - ($2 || ' days')::interval
		 GROUP BY day
		 ORDER BY day`,
		idOrContract, daysBack)
}

func (s *PostgresStore) ResolveUserID(ctx context.Context, handle string) (string, error) {
	var id string
	err := s.Pool.QueryRow(ctx,
		`SELECT id FROM sa_users WHERE handle ILIKE $1 LIMIT 1`,
		strings.TrimPrefix(handle, "@")).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

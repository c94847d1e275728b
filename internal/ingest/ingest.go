package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/domain"
)

// ThreadSource yields the newest platform-wide threads.
type ThreadSource interface {
	GetRecentThreads(ctx context.Context) ([]*domain.Post, error)
}

// ThreadSink mirrors fetched threads into the local tables.
type ThreadSink interface {
	UpsertPost(ctx context.Context, post *domain.Post) error
}

type Config struct {
	PollInterval time.Duration
	BatchLimit   int
}

func (c *Config) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = 100
	}
}

// Ingestor keeps the thread mirror populated independently of what the
// tools happen to look at: a steady pull of recent platform threads, upserted
// into the same tables the analytics reads query.
type Ingestor struct {
	cfg    Config
	source ThreadSource
	sink   ThreadSink
	log    *zap.Logger
}

func New(cfg Config, source ThreadSource, sink ThreadSink, log *zap.Logger) *Ingestor {
	cfg.defaults()
	return &Ingestor{cfg: cfg, source: source, sink: sink, log: log}
}

const maxIngestBackoff = 5 * time.Minute

// Run blocks until ctx is cancelled. A failed pull doubles the sleep up to
// a cap; one clean pull resets it.
func (i *Ingestor) Run(ctx context.Context) error {
	i.log.Info("thread ingest running", zap.Duration("interval", i.cfg.PollInterval))

	sleep := i.cfg.PollInterval
	for {
		if _, err := i.runOnce(ctx); err != nil {
			i.log.Error("thread ingest failed", zap.Error(err))
			sleep = nextBackoff(sleep, i.cfg.PollInterval)
		} else {
			sleep = i.cfg.PollInterval
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func (i *Ingestor) runOnce(ctx context.Context) (int, error) {
	posts, err := i.source.GetRecentThreads(ctx)
	if err != nil {
		return 0, err
	}
	if len(posts) == 0 {
		i.log.Info("ingest pull returned no threads")
		return 0, nil
	}
	if len(posts) > i.cfg.BatchLimit {
		posts = posts[:i.cfg.BatchLimit]
	}

	inserted := 0
	for _, p := range posts {
		if p == nil || p.ID == "" {
			continue
		}
		if err := i.sink.UpsertPost(ctx, p); err != nil {
			i.log.Warn("ingest upsert failed", zap.String("post_id", p.ID), zap.Error(err))
			continue
		}
		inserted++
	}
	i.log.Info("ingested threads", zap.Int("count", inserted))
	return inserted, nil
}

func nextBackoff(cur, floor time.Duration) time.Duration {
	next := cur * 2
	if next < floor {
		next = floor
	}
	if next > maxIngestBackoff {
		return maxIngestBackoff
	}
	return next
}

package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/domain"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/ports"
)

// ErrQueueFull is returned by Enqueue when the job queue is at capacity.
var ErrQueueFull = errors.New("image job queue is full")

// profilePageMarker identifies the one context URL that is an HTML profile
// page rather than an image; it is substituted with the local reference
// image instead of being downloaded.
const profilePageMarker = "arena.social/ArenaGladius"

// Config holds the pipeline tunables.
type Config struct {
	QueueCap         int
	SaveDir          string
	TempDir          string
	GladiusImagePath string
}

// Pipeline is the bounded job queue plus its single background worker.
// Once a job is accepted the origin thread is guaranteed exactly one reply:
// either the generated image or an explanatory failure message.
type Pipeline struct {
	cfg      Config
	jobs     chan domain.ImageJob
	platform ports.Platform
	store    ports.Store
	model    ports.ImageModel
	log      *zap.Logger

	httpClient *http.Client

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

func NewPipeline(cfg Config, platform ports.Platform, store ports.Store, model ports.ImageModel, log *zap.Logger) *Pipeline {
	if cfg.QueueCap < 1 {
		cfg.QueueCap = 200
	}
	if cfg.SaveDir == "" {
		cfg.SaveDir = "./generated_images"
	}
	if cfg.TempDir == "" {
		cfg.TempDir = "./temp_images"
	}
	return &Pipeline{
		cfg:        cfg,
		jobs:       make(chan domain.ImageJob, cfg.QueueCap),
		platform:   platform,
		store:      store,
		model:      model,
		log:        log,
		httpClient: &http.Client{Timeout: 25 * time.Second},
		done:       make(chan struct{}),
	}
}

var _ ports.ImageQueue = (*Pipeline)(nil)

// Enqueue accepts a job without blocking. The caller must surface
// ErrQueueFull in its own result rather than dropping the request silently.
func (p *Pipeline) Enqueue(job domain.ImageJob) error {
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the single worker goroutine. Jobs are processed
// sequentially, bounding concurrency against the external APIs.
func (p *Pipeline) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		os.MkdirAll(p.cfg.SaveDir, 0o755)
		os.MkdirAll(p.cfg.TempDir, 0o755)
		go func() {
			defer close(p.done)
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-p.jobs:
					if !ok {
						return
					}
					p.process(ctx, job)
				}
			}
		}()
	})
}

// Wait blocks until the worker has exited after context cancellation.
func (p *Pipeline) Wait() {
	<-p.done
}

// Drain closes intake and blocks until every already-accepted job has been
// processed. No Enqueue may follow. Start must have been called.
func (p *Pipeline) Drain() {
	p.closeOnce.Do(func() { close(p.jobs) })
	<-p.done
}

func (p *Pipeline) process(ctx context.Context, job domain.ImageJob) {
	var toDelete []string
	replied := false

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("image job panicked", zap.String("job_id", job.ID), zap.Any("panic", r))
			if !replied {
				p.reply(ctx, job, fmt.Sprintf("Image job blew up: %v", r), "")
			}
		}
		for _, f := range dedupe(toDelete) {
			p.safeUnlink(f)
		}
	}()

	// 1) Context images → temp files (best effort)
	var contextPaths []string
	useGladius := false
	for i, u := range job.ContextImageURLs {
		if i >= 3 {
			break
		}
		if strings.Contains(u, profilePageMarker) {
			p.log.Info("skipping profile page url; using reference image", zap.String("job_id", job.ID))
			useGladius = true
			continue
		}
		if path, ok := p.downloadToTemp(ctx, u); ok {
			contextPaths = append(contextPaths, path)
			toDelete = append(toDelete, path)
		}
	}

	// 2) Generate
	refs := contextPaths
	if (useGladius || wantsGladius(job.Prompt)) && p.cfg.GladiusImagePath != "" {
		if _, err := os.Stat(p.cfg.GladiusImagePath); err == nil {
			refs = append([]string{p.cfg.GladiusImagePath}, refs...)
		}
	}
	result := p.model.Generate(ctx, job.Prompt, refs)
	toDelete = append(toDelete, result.Files...)

	// 3) No image produced: reply with the model's text or the caption
	if len(result.Files) == 0 {
		msg := result.Text
		if msg == "" {
			msg = job.Caption
		}
		if msg == "" {
			msg = "Image attempt failed."
		}
		p.reply(ctx, job, msg, "")
		replied = true
		return
	}

	// 4) Persist a copy, upload, reply
	srcPath := result.Files[0]
	localPath := filepath.Join(p.cfg.SaveDir, job.ID+".png")
	if err := copyFile(srcPath, localPath); err != nil {
		if err := os.Rename(srcPath, localPath); err == nil {
			toDelete = remove(toDelete, srcPath)
		} else {
			localPath = srcPath
		}
	}

	up := p.platform.UploadImage(ctx, localPath)
	var outcome *domain.ReplyOutcome
	if !up.Success {
		caption := job.Caption
		if caption == "" {
			caption = "Cooked an image"
		}
		reason := up.Error
		if reason == "" {
			reason = "unknown error"
		}
		outcome = p.reply(ctx, job, fmt.Sprintf("%s but upload failed: %s", caption, reason), "")
	} else {
		caption := job.Caption
		if caption == "" {
			caption = "Visual served."
		}
		outcome = p.reply(ctx, job, caption, up.URL)
	}
	replied = true

	// 5) Durable record
	p.logCreation(ctx, job, outcome, up)
}

func (p *Pipeline) reply(ctx context.Context, job domain.ImageJob, content, imageURL string) *domain.ReplyOutcome {
	outcome, err := p.platform.ReplyToPost(ctx, job.ReplyToPostID, job.ReplyToUserID, content, imageURL)
	if err != nil {
		p.log.Error("image job reply failed", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}
	return outcome
}

func (p *Pipeline) logCreation(ctx context.Context, job domain.ImageJob, outcome *domain.ReplyOutcome, up domain.UploadResult) {
	row := domain.ImageCreation{
		ThreadID: job.ReplyToPostID,
		UserID:   job.ReplyToUserID,
		Content:  job.Caption,
	}
	if row.Content == "" {
		row.Content = job.Prompt
	}
	if outcome != nil {
		if v, ok := outcome.Raw["threadId"].(string); ok && v != "" {
			row.ThreadID = v
		}
		if v, ok := outcome.Raw["userId"].(string); ok && v != "" {
			row.UserID = v
		}
		if v, ok := outcome.Raw["content"].(string); ok && v != "" {
			row.Content = v
		}
		if files, ok := outcome.Raw["files"].([]any); ok {
			for _, f := range files {
				if m, ok := f.(map[string]any); ok {
					row.Files = append(row.Files, m)
				}
			}
		}
	}
	if len(row.Files) == 0 && up.URL != "" {
		row.Files = []map[string]any{{"url": up.URL, "fileType": "image"}}
	}
	if err := p.store.StoreImageCreation(ctx, row); err != nil {
		p.log.Error("logging image creation failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// downloadToTemp fetches a remote image into the temp dir. Failures are
// quiet so the pipeline keeps flowing; context images are best-effort.
func (p *Pipeline) downloadToTemp(ctx context.Context, url string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil || len(data) < 500 {
		// likely bad/empty
		return "", false
	}
	ext := extForContentType(resp.Header.Get("Content-Type"))
	path := filepath.Join(p.cfg.TempDir, "ctx_"+strings.Split(uuid.NewString(), "-")[0]+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return abs, true
}

// safeUnlink deletes a file only when it resolves under the temp directory,
// guarding against accidental deletion elsewhere.
func (p *Pipeline) safeUnlink(path string) {
	if path == "" {
		return
	}
	tempRoot, err := filepath.Abs(p.cfg.TempDir)
	if err != nil {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	if !strings.HasPrefix(abs, tempRoot+string(filepath.Separator)) {
		return
	}
	if info, err := os.Stat(abs); err != nil || info.IsDir() {
		return
	}
	os.Remove(abs)
}

func wantsGladius(prompt string) bool {
	t := strings.ToLower(prompt)
	return strings.Contains(t, "gladius") || strings.Contains(t, "@arenagladius")
}

func extForContentType(ct string) string {
	ct = strings.ToLower(ct)
	switch {
	case strings.Contains(ct, "jpeg"), strings.Contains(ct, "jpg"):
		return ".jpg"
	case strings.Contains(ct, "webp"):
		return ".webp"
	default:
		return ".png"
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	var out []string
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func remove(paths []string, target string) []string {
	out := paths[:0]
	for _, p := range paths {
		if p != target {
			out = append(out, p)
		}
	}
	return out
}

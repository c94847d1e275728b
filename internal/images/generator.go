package images

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/domain"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/ports"
)

// Generator produces images with Gemini image models. Transient server
// failures are retried with exponential backoff; when the primary model is
// out of attempts the fallback model gets one shot. All failures fold into
// the returned value so a job can always be answered with something.
type Generator struct {
	Client        *genai.Client
	PrimaryModel  string
	FallbackModel string
	MaxAttempts   int
	BaseSleep     time.Duration
	TempDir       string

	log *zap.Logger
}

func NewGenerator(client *genai.Client, primary, fallback string, maxAttempts int, baseSleep time.Duration, tempDir string, log *zap.Logger) *Generator {
	if primary == "" {
		primary = "gemini-2.5-flash-image"
	}
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	if baseSleep <= 0 {
		baseSleep = 1500 * time.Millisecond
	}
	return &Generator{
		Client:        client,
		PrimaryModel:  primary,
		FallbackModel: fallback,
		MaxAttempts:   maxAttempts,
		BaseSleep:     baseSleep,
		TempDir:       tempDir,
		log:           log,
	}
}

var _ ports.ImageModel = (*Generator)(nil)

func (g *Generator) Generate(ctx context.Context, prompt string, refPaths []string) *domain.GeneratedImage {
	if strings.TrimSpace(prompt) == "" {
		return &domain.GeneratedImage{Text: "empty prompt"}
	}

	parts := []*genai.Part{{Text: prompt}}
	count := 0
	for _, p := range refPaths {
		if count >= 3 {
			break
		}
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: mimeForPath(p), Data: data},
		})
		count++
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	var lastErr error
	for attempt := 1; attempt <= g.MaxAttempts; attempt++ {
		result, err := g.genOnce(ctx, g.PrimaryModel, contents)
		if err == nil && (len(result.Files) > 0 || result.Text != "") {
			return result
		}
		if err == nil {
			err = fmt.Errorf("empty response (no files, no text)")
		}
		lastErr = err
		if !isTransient(err) {
			break
		}
		sleep := g.BaseSleep * (1 << (attempt - 1))
		if sleep > 10*time.Second {
			sleep = 10 * time.Second
		}
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return &domain.GeneratedImage{Text: "gen error: " + ctx.Err().Error()}
		}
	}

	if g.FallbackModel != "" && g.FallbackModel != g.PrimaryModel {
		g.log.Warn("primary image model failed, trying fallback",
			zap.String("primary", g.PrimaryModel), zap.String("fallback", g.FallbackModel), zap.Error(lastErr))
		result, err := g.genOnce(ctx, g.FallbackModel, contents)
		if err == nil && (len(result.Files) > 0 || result.Text != "") {
			return result
		}
		if err != nil {
			lastErr = err
		}
	}
	return &domain.GeneratedImage{Text: fmt.Sprintf("gen error: %v", lastErr)}
}

func (g *Generator) genOnce(ctx context.Context, model string, contents []*genai.Content) (*domain.GeneratedImage, error) {
	resp, err := g.Client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		MaxOutputTokens: 2048,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return &domain.GeneratedImage{Text: "no candidates"}, nil
	}

	out := &domain.GeneratedImage{}
	var texts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			path, err := g.saveInline(part.InlineData.Data)
			if err != nil {
				// malformed image payload, skip it
				continue
			}
			out.Files = append(out.Files, path)
			continue
		}
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	out.Text = strings.Join(texts, "\n")
	return out, nil
}

func (g *Generator) saveInline(data []byte) (string, error) {
	if err := os.MkdirAll(g.TempDir, 0o755); err != nil {
		return "", err
	}
	name := "genai_" + strings.Split(uuid.NewString(), "-")[0] + ".png"
	path := filepath.Join(g.TempDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}

// isTransient reports whether the generation error is worth retrying
// (server-side 5xx family); everything else fails fast.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "500") || strings.Contains(s, "502") ||
		strings.Contains(s, "503") || strings.Contains(s, "internal") ||
		strings.Contains(s, "overloaded") || strings.Contains(s, "empty response")
}

func mimeForPath(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}

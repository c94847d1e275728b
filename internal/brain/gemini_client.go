package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/domain"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/ports"
)

// ModelConfig is one entry of the fallback chain with its rate budget.
type ModelConfig struct {
	Name string
	RPM  int
	RPD  int
}

// GeminiBrain drives tool-calling chat completions against Gemini models,
// walking the fallback chain when a model is over budget or rate limited.
type GeminiBrain struct {
	Client *genai.Client
	Models []ModelConfig

	declarations []*genai.FunctionDeclaration

	dailyCount   map[string]int
	minuteCount  map[string]int
	lastResetDay time.Time
	lastResetMin time.Time
	mu           sync.Mutex

	log *zap.Logger
}

func NewGeminiBrain(ctx context.Context, apiKey string, models []ModelConfig, declarations []*genai.FunctionDeclaration, log *zap.Logger) (*GeminiBrain, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GENAI_API_KEY is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		models = []ModelConfig{
			{Name: "gemini-2.5-pro", RPM: 5, RPD: 100},
			{Name: "gemini-2.5-flash", RPM: 10, RPD: 250},
		}
	}
	return &GeminiBrain{
		Client:       client,
		Models:       models,
		declarations: declarations,
		dailyCount:   make(map[string]int),
		minuteCount:  make(map[string]int),
		lastResetDay: time.Now(),
		lastResetMin: time.Now(),
		log:          log,
	}, nil
}

// Ensure implementation
var _ ports.Brain = (*GeminiBrain)(nil)

// Chat runs one completion over the transcript. When forceTool is set the
// model must answer with a call to that tool (used to guarantee parent
// context is fetched before free-form reasoning).
func (b *GeminiBrain) Chat(ctx context.Context, transcript []domain.Message, forceTool string) (*domain.ChatResult, error) {
	config := &genai.GenerateContentConfig{}
	if len(b.declarations) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: b.declarations}}
	}
	if forceTool != "" {
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingConfigModeAny,
				AllowedFunctionNames: []string{forceTool},
			},
		}
	}

	contents := b.toContents(transcript, config)

	var lastErr error
	for _, cfg := range b.Models {
		if !b.canUseModel(cfg) {
			continue
		}

		result, err := b.Client.Models.GenerateContent(ctx, cfg.Name, contents, config)
		if err != nil {
			errStr := strings.ToLower(err.Error())
			if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") || strings.Contains(errStr, "exhausted") || strings.Contains(errStr, "404") || strings.Contains(errStr, "not found") {
				lastErr = err
				continue
			}
			return nil, err
		}
		if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
			lastErr = fmt.Errorf("model %s returned no candidates", cfg.Name)
			continue
		}

		b.recordUsage(cfg)
		return b.toResult(result.Candidates[0].Content), nil
	}
	return nil, fmt.Errorf("all models failed: %w", lastErr)
}

// toContents maps the transcript onto genai contents. Gemini has no system,
// developer or tool roles: the system prompt becomes the SystemInstruction,
// developer messages are sent as user content, and tool results travel as
// user-role FunctionResponse parts.
func (b *GeminiBrain) toContents(transcript []domain.Message, config *genai.GenerateContentConfig) []*genai.Content {
	var contents []*genai.Content
	for _, m := range transcript {
		switch m.Role {
		case domain.RoleSystem:
			config.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: m.Content}},
			}
		case domain.RoleDeveloper, domain.RoleUser:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		case domain.RoleAssistant:
			parts := []*genai.Part{}
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   tc.ID,
						Name: tc.Name,
						Args: decodeArgs(tc.RawArgs),
					},
				})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})
		case domain.RoleTool:
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       m.ToolCallID,
						Name:     m.ToolName,
						Response: decodeArgs(m.Content),
					},
				}},
			})
		}
	}
	return contents
}

func (b *GeminiBrain) toResult(content *genai.Content) *domain.ChatResult {
	result := &domain.ChatResult{}
	var texts []string
	callIdx := 0
	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil {
			callIdx++
			raw, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				raw = []byte("{}")
			}
			id := part.FunctionCall.ID
			if id == "" {
				id = fmt.Sprintf("c%d", callIdx)
			}
			result.ToolCalls = append(result.ToolCalls, domain.ToolCall{
				ID:      id,
				Name:    part.FunctionCall.Name,
				RawArgs: string(raw),
			})
			continue
		}
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	result.Text = strings.TrimSpace(strings.Join(texts, "\n"))
	return result
}

// decodeArgs parses a JSON payload into the object shape genai requires.
// Non-object payloads (arrays, scalars, malformed JSON) are wrapped under a
// "result" key instead of failing the turn.
func decodeArgs(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return map[string]any{"result": raw}
	}
	if m, ok := v.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{"result": v}
}

func (b *GeminiBrain) canUseModel(cfg ModelConfig) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	if now.YearDay() != b.lastResetDay.YearDay() {
		b.dailyCount = make(map[string]int)
		b.lastResetDay = now
	}
	if now.Sub(b.lastResetMin) >= time.Minute {
		b.minuteCount = make(map[string]int)
		b.lastResetMin = now
	}
	if cfg.RPD > 0 && b.dailyCount[cfg.Name] >= cfg.RPD {
		return false
	}
	if cfg.RPM > 0 && b.minuteCount[cfg.Name] >= cfg.RPM {
		return false
	}
	return true
}

func (b *GeminiBrain) recordUsage(cfg ModelConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dailyCount[cfg.Name]++
	b.minuteCount[cfg.Name]++
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/domain"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/ports"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/sites/arena"
)

const (
	maxChainDepth = 6
	analyzeTool   = "analyze_post"
	imageTool     = "generate_image"
)

// Orchestrator drives one multi-turn exchange with the model: it submits
// the transcript, executes requested tool calls, deterministically climbs
// reply/quote chains, and resubmits until the model answers in plain text.
type Orchestrator struct {
	brain      ports.Brain
	dispatcher ports.Dispatcher
	log        *zap.Logger
}

func NewOrchestrator(brain ports.Brain, dispatcher ports.Dispatcher, log *zap.Logger) *Orchestrator {
	return &Orchestrator{brain: brain, dispatcher: dispatcher, log: log}
}

// Ask answers one question, optionally triggered by an Arena post. An empty
// answer with a nil error means an image job was queued and the visible
// reply will come from the image pipeline instead.
func (o *Orchestrator) Ask(ctx context.Context, question string, event *domain.Post) (string, error) {
	transcript := []domain.Message{
		{Role: domain.RoleSystem, Content: systemPrompt(time.Now())},
		{Role: domain.RoleDeveloper, Content: eventInstruction},
		{Role: domain.RoleUser, Content: question},
	}
	if event != nil {
		transcript = append(transcript, domain.Message{
			Role:    domain.RoleDeveloper,
			Content: formatEvent(event),
		})
	}

	// Replies are meaningless without parent context, so the first turn of
	// a comment-triggered ask is pinned to analyze_post.
	forceTool := ""
	if event != nil && event.AnswerID != "" {
		forceTool = analyzeTool
	}

	imageEnqueued := false
	synthCounter := 0

	for {
		result, err := o.brain.Chat(ctx, transcript, forceTool)
		if err != nil {
			return "", err
		}
		forceTool = ""

		if len(result.ToolCalls) == 0 {
			if imageEnqueued {
				return "", nil
			}
			o.log.Info("final answer", zap.String("text", excerpt(result.Text, 400)))
			return result.Text, nil
		}

		transcript = append(transcript, domain.Message{
			Role:      domain.RoleAssistant,
			Content:   result.Text,
			ToolCalls: result.ToolCalls,
		})

		var lastAnalyze map[string]any
		for _, tc := range result.ToolCalls {
			args := o.parseArgs(tc)
			out := o.dispatcher.Dispatch(ctx, tc.Name, args, event)
			if tc.Name == imageTool && wasQueued(out) {
				imageEnqueued = true
			}
			transcript = append(transcript, toolMessage(tc, out))
			if tc.Name == analyzeTool {
				lastAnalyze, _ = out.(map[string]any)
			}
		}

		if lastAnalyze != nil {
			transcript = o.walkChain(ctx, transcript, lastAnalyze, event, &synthCounter)
		}
	}
}

// walkChain climbs answerId parents from the last analyzed node, then
// fetches the quoted post of the origin and final nodes. The climb is
// mechanical: the model cannot know a parent id matters until it has seen
// the current node, so the transcript is augmented outside the model loop.
func (o *Orchestrator) walkChain(ctx context.Context, transcript []domain.Message, origin map[string]any, event *domain.Post, synthCounter *int) []domain.Message {
	seen := make(map[string]bool)
	cur := origin
	for depth := 0; depth < maxChainDepth; depth++ {
		parentID := strField(cur, "answerId")
		if parentID == "" || seen[parentID] {
			break
		}
		seen[parentID] = true
		transcript, cur = o.syntheticAnalyze(ctx, transcript, parentID, event, synthCounter)
		if cur == nil {
			break
		}
	}

	for _, node := range []map[string]any{origin, cur} {
		if node == nil {
			continue
		}
		quotedID := strField(node, "repostId")
		if quotedID == "" || seen[quotedID] {
			continue
		}
		seen[quotedID] = true
		transcript, _ = o.syntheticAnalyze(ctx, transcript, quotedID, event, synthCounter)
	}
	return transcript
}

// syntheticAnalyze issues one analyze_post call the model never requested,
// recording both the fabricated assistant turn and its result so the model
// sees a coherent transcript.
func (o *Orchestrator) syntheticAnalyze(ctx context.Context, transcript []domain.Message, postID string, event *domain.Post, counter *int) ([]domain.Message, map[string]any) {
	*counter++
	call := domain.ToolCall{
		ID:      fmt.Sprintf("t%d", *counter),
		Name:    analyzeTool,
		RawArgs: fmt.Sprintf(`{"url_or_id":%q}`, postID),
	}
	o.log.Info("chain analyze_post", zap.String("post_id", postID), zap.String("call_id", call.ID))

	transcript = append(transcript, domain.Message{
		Role:      domain.RoleAssistant,
		ToolCalls: []domain.ToolCall{call},
	})
	out := o.dispatcher.Dispatch(ctx, analyzeTool, map[string]any{"url_or_id": postID}, event)
	transcript = append(transcript, toolMessage(call, out))

	res, _ := out.(map[string]any)
	return transcript, res
}

// parseArgs decodes a tool call's raw argument payload, substituting an
// empty argument object when the model produced malformed JSON.
func (o *Orchestrator) parseArgs(tc domain.ToolCall) map[string]any {
	raw := tc.RawArgs
	if raw == "" {
		raw = "{}"
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		o.log.Warn("malformed tool args", zap.String("tool", tc.Name), zap.String("raw", excerpt(raw, 200)))
		return map[string]any{}
	}
	if args == nil {
		args = map[string]any{}
	}
	return args
}

func toolMessage(tc domain.ToolCall, result any) domain.Message {
	payload, err := json.Marshal(result)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"error":"unencodable tool result: %v"}`, err))
	}
	return domain.Message{
		Role:       domain.RoleTool,
		Content:    string(payload),
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
	}
}

func wasQueued(result any) bool {
	m, ok := result.(map[string]any)
	if !ok {
		return false
	}
	queued, _ := m["queued"].(bool)
	return queued
}

func strField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// formatEvent renders the triggering post as a compact EVENT block with
// tags stripped for the model's quick glance.
func formatEvent(e *domain.Post) string {
	return fmt.Sprintf(
		"EVENT:\nid: %s\nthreadType: %s\nanswerId: %s\nrepostId: %s\nuserHandle: @%s\nuserId: %s\ncreatedDate: %s\ncontent_text: %s\n",
		e.ID, e.ThreadType, e.AnswerID, e.RepostID, e.UserHandle, e.UserID, e.CreatedDate,
		arena.StripHTML(e.Content),
	)
}

func excerpt(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

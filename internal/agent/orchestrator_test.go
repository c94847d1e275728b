package agent

import (
	"context"
	"encoding/json"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/domain"
)

// scriptedBrain returns its turns in order; extra calls repeat the last one.
type scriptedBrain struct {
	turns      []*domain.ChatResult
	calls      int
	forceSeen  []string
	transcript [][]domain.Message
}

func (b *scriptedBrain) Chat(_ context.Context, transcript []domain.Message, forceTool string) (*domain.ChatResult, error) {
	b.forceSeen = append(b.forceSeen, forceTool)
	snapshot := make([]domain.Message, len(transcript))
	copy(snapshot, transcript)
	b.transcript = append(b.transcript, snapshot)

	i := b.calls
	if i >= len(b.turns) {
		i = len(b.turns) - 1
	}
	b.calls++
	return b.turns[i], nil
}

// recordingDispatcher serves analyze_post results from a fixed post graph.
type recordingDispatcher struct {
	posts map[string]map[string]any
	calls []string
}

func (d *recordingDispatcher) Dispatch(_ context.Context, name string, args map[string]any, _ *domain.Post) any {
	d.calls = append(d.calls, name)
	if name == "analyze_post" {
		id, _ := args["url_or_id"].(string)
		if res, ok := d.posts[id]; ok {
			return res
		}
		return map[string]any{"success": false, "error": "Post not found.", "post_id": id}
	}
	if name == "generate_image" {
		return map[string]any{"queued": true, "job_id": "job-1"}
	}
	return map[string]any{"ok": true}
}

func node(id, answerID, repostID string) map[string]any {
	return map[string]any{
		"success":  true,
		"post_id":  id,
		"answerId": answerID,
		"repostId": repostID,
	}
}

func toolCall(id, name, args string) domain.ToolCall {
	return domain.ToolCall{ID: id, Name: name, RawArgs: args}
}

func TestAskPlainText(t *testing.T) {
	brain := &scriptedBrain{turns: []*domain.ChatResult{{Text: "hi"}}}
	disp := &recordingDispatcher{}
	o := NewOrchestrator(brain, disp, zap.NewNop())

	out, err := o.Ask(context.Background(), "@warrior:  hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
	assert.Empty(t, disp.calls)
	assert.Equal(t, []string{""}, brain.forceSeen)
}

func TestAskForcesAnalyzeOnReplies(t *testing.T) {
	brain := &scriptedBrain{turns: []*domain.ChatResult{
		{ToolCalls: []domain.ToolCall{toolCall("c1", "analyze_post", `{"url_or_id":"p1"}`)}},
		{Text: "done"},
	}}
	disp := &recordingDispatcher{posts: map[string]map[string]any{
		"p1": node("p1", "", ""),
	}}
	o := NewOrchestrator(brain, disp, zap.NewNop())

	event := &domain.Post{ID: "p1", AnswerID: "parent1", ThreadType: "comment"}
	out, err := o.Ask(context.Background(), "q", event)
	require.NoError(t, err)
	assert.Equal(t, "done", out)

	// first turn constrained, second turn free
	assert.Equal(t, []string{"analyze_post", ""}, brain.forceSeen)
	// tool result had no answerId, so no synthetic chain call was issued
	assert.Equal(t, []string{"analyze_post"}, disp.calls)
}

func TestChainWalkClimbsParents(t *testing.T) {
	brain := &scriptedBrain{turns: []*domain.ChatResult{
		{ToolCalls: []domain.ToolCall{toolCall("c1", "analyze_post", `{"url_or_id":"p1"}`)}},
		{Text: "answer"},
	}}
	disp := &recordingDispatcher{posts: map[string]map[string]any{
		"p1": node("p1", "p2", ""),
		"p2": node("p2", "p3", ""),
		"p3": node("p3", "", ""),
	}}
	o := NewOrchestrator(brain, disp, zap.NewNop())

	out, err := o.Ask(context.Background(), "q", &domain.Post{ID: "p1", AnswerID: "p2"})
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	// model call + two synthetic climbs
	assert.Equal(t, []string{"analyze_post", "analyze_post", "analyze_post"}, disp.calls)
}

func TestChainWalkDepthBound(t *testing.T) {
	posts := map[string]map[string]any{}
	// p0 -> p1 -> ... -> p19, far deeper than the walker may go
	for i := 0; i < 20; i++ {
		posts[pid(i)] = node(pid(i), pid(i+1), "")
	}
	brain := &scriptedBrain{turns: []*domain.ChatResult{
		{ToolCalls: []domain.ToolCall{toolCall("c1", "analyze_post", `{"url_or_id":"p00"}`)}},
		{Text: "capped"},
	}}
	disp := &recordingDispatcher{posts: posts}
	o := NewOrchestrator(brain, disp, zap.NewNop())

	_, err := o.Ask(context.Background(), "q", &domain.Post{ID: "p00", AnswerID: "p01"})
	require.NoError(t, err)
	// 1 model-issued + at most 6 synthetic
	assert.Len(t, disp.calls, 7)
}

func TestChainWalkCycleGuard(t *testing.T) {
	brain := &scriptedBrain{turns: []*domain.ChatResult{
		{ToolCalls: []domain.ToolCall{toolCall("c1", "analyze_post", `{"url_or_id":"a"}`)}},
		{Text: "no loop"},
	}}
	// a -> b -> a: a hostile payload pointing back at a visited id
	disp := &recordingDispatcher{posts: map[string]map[string]any{
		"a": node("a", "b", ""),
		"b": node("b", "a", ""),
	}}
	o := NewOrchestrator(brain, disp, zap.NewNop())

	_, err := o.Ask(context.Background(), "q", &domain.Post{ID: "a", AnswerID: "b"})
	require.NoError(t, err)
	// model call + b + a, then the cycle is cut
	assert.Len(t, disp.calls, 3)
}

func TestChainWalkFetchesQuotedPost(t *testing.T) {
	brain := &scriptedBrain{turns: []*domain.ChatResult{
		{ToolCalls: []domain.ToolCall{toolCall("c1", "analyze_post", `{"url_or_id":"q1"}`)}},
		{Text: "quoted"},
	}}
	disp := &recordingDispatcher{posts: map[string]map[string]any{
		"q1":     node("q1", "", "quoted"),
		"quoted": node("quoted", "", ""),
	}}
	o := NewOrchestrator(brain, disp, zap.NewNop())

	_, err := o.Ask(context.Background(), "q", &domain.Post{ID: "q1", AnswerID: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"analyze_post", "analyze_post"}, disp.calls)
}

func TestImageEnqueuedReturnsEmpty(t *testing.T) {
	brain := &scriptedBrain{turns: []*domain.ChatResult{
		{ToolCalls: []domain.ToolCall{toolCall("c1", "generate_image", `{"prompt":"gladius wins"}`)}},
		{Text: "THIS TEXT MUST BE SUPPRESSED"},
	}}
	disp := &recordingDispatcher{}
	o := NewOrchestrator(brain, disp, zap.NewNop())

	out, err := o.Ask(context.Background(), "draw me", &domain.Post{ID: "p1", UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMalformedToolArgsDispatchEmpty(t *testing.T) {
	brain := &scriptedBrain{turns: []*domain.ChatResult{
		{ToolCalls: []domain.ToolCall{toolCall("c1", "get_trending_feed", `{not json!`)}},
		{Text: "ok"},
	}}
	disp := &recordingDispatcher{}
	o := NewOrchestrator(brain, disp, zap.NewNop())

	out, err := o.Ask(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, []string{"get_trending_feed"}, disp.calls)
}

func TestTranscriptShape(t *testing.T) {
	brain := &scriptedBrain{turns: []*domain.ChatResult{
		{ToolCalls: []domain.ToolCall{toolCall("c1", "analyze_post", `{"url_or_id":"p1"}`)}},
		{Text: "final"},
	}}
	disp := &recordingDispatcher{posts: map[string]map[string]any{
		"p1": node("p1", "", ""),
	}}
	o := NewOrchestrator(brain, disp, zap.NewNop())

	event := &domain.Post{ID: "p1", AnswerID: "x", UserHandle: "warrior", Content: "<p>yo</p>"}
	_, err := o.Ask(context.Background(), "the question", event)
	require.NoError(t, err)

	require.Len(t, brain.transcript, 2)
	first := brain.transcript[0]
	require.Len(t, first, 4)
	assert.Equal(t, domain.RoleSystem, first[0].Role)
	assert.Equal(t, domain.RoleDeveloper, first[1].Role)
	assert.Equal(t, domain.RoleUser, first[2].Role)
	assert.Contains(t, first[3].Content, "EVENT:")
	assert.Contains(t, first[3].Content, "userHandle: @warrior")
	assert.Contains(t, first[3].Content, "content_text: yo")

	second := brain.transcript[1]
	// the assistant tool-call turn and its correlated result were appended
	last := second[len(second)-1]
	assert.Equal(t, domain.RoleTool, last.Role)
	assert.Equal(t, "c1", last.ToolCallID)
	assert.Equal(t, "analyze_post", last.ToolName)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(last.Content), &payload))
	assert.Equal(t, true, payload["success"])
}

func pid(i int) string {
	return "p" + string(rune('0'+i/10)) + string(rune('0'+i%10))
}

func TestExcerptKeepsRunesIntact(t *testing.T) {
	got := excerpt("검투사는 응답한다", 4)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "검투사는...", got)

	assert.Equal(t, "ok", excerpt("ok", 4))
}

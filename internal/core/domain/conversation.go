package domain

// Role tags a transcript entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleDeveloper Role = "developer"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one transcript entry. The transcript is append-only within a
// single ask invocation; nothing is removed or rewritten.
type Message struct {
	Role    Role
	Content string

	// Assistant messages may carry zero or more pending tool calls.
	ToolCalls []ToolCall

	// Tool messages carry exactly one result, correlated by call id.
	ToolCallID string
	ToolName   string
}

// ChatResult is one model turn: either plain text or requested tool calls.
type ChatResult struct {
	Text      string
	ToolCalls []ToolCall
}

// ReplyOutcome pairs the raw reply response with the fields we could
// tolerably extract from it.
type ReplyOutcome struct {
	Meta ReplyMeta
	Raw  map[string]any
}

// SearchQuery parameterizes one web search call.
type SearchQuery struct {
	Query          string
	MaxResults     int
	Depth          string // "basic" | "advanced"
	IncludeAnswer  bool
	IncludeDomains []string
	ExcludeDomains []string
}

// GeneratedImage is the image endpoint's outcome: zero or more produced
// files, or text when the model answered without an image.
type GeneratedImage struct {
	Files []string
	Text  string
}

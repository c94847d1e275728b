package tools

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/domain"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/ports"
)

// Handler pairs a tool's model-facing declaration with its implementation.
// event is the post that triggered the current conversation; handlers that
// do not need it ignore it.
type Handler struct {
	Declaration *genai.FunctionDeclaration
	Run         func(ctx context.Context, args map[string]any, event *domain.Post) (any, error)
}

// Registry routes tool calls by name. Dispatch never raises: unknown names,
// handler errors, and panics all come back as result values the
// orchestrator can feed into the transcript.
type Registry struct {
	handlers map[string]*Handler
	order    []string
	log      *zap.Logger
}

var _ ports.Dispatcher = (*Registry)(nil)

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]*Handler),
		log:      log,
	}
}

func (r *Registry) Register(h *Handler) {
	name := h.Declaration.Name
	if _, dup := r.handlers[name]; !dup {
		r.order = append(r.order, name)
	}
	r.handlers[name] = h
}

// Declarations returns the catalog in registration order, for handing to
// the model on every completion request.
func (r *Registry) Declarations() []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.handlers[name].Declaration)
	}
	return out
}

func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any, event *domain.Post) (result any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("tool panicked", zap.String("tool", name), zap.Any("panic", rec))
			result = map[string]any{"error": fmt.Sprintf("tool %s failed: %v", name, rec)}
		}
	}()

	h, ok := r.handlers[name]
	if !ok {
		r.log.Warn("unknown tool requested", zap.String("tool", name))
		return map[string]any{"error": "unknown tool: " + name}
	}
	if args == nil {
		args = map[string]any{}
	}

	out, err := h.Run(ctx, args, event)
	if err != nil {
		r.log.Warn("tool returned error", zap.String("tool", name), zap.Error(err))
		return map[string]any{"error": err.Error()}
	}
	return out
}

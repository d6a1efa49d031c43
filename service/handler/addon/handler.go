// Package addon bridges AI_REPLY nodes to the completion provider: it
// assembles a bounded chat history and a callable-task catalog, invokes the
// model and turns the outcome into outbound text, a function-edge
// continuation, or both.
package addon

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/chatflow/chatflow/service/ai"
	"github.com/chatflow/chatflow/service/convlog"
	"github.com/chatflow/chatflow/service/handler"
)

const (
	// defaultHistoryTurns bounds the conversation context sent to the model.
	defaultHistoryTurns = 2

	// defaultHistoryDelay lets a concurrently written inbound log entry
	// become visible before history is read. A cooperative ordering
	// workaround, not a guarantee.
	defaultHistoryDelay = 500 * time.Millisecond
)

// Handler executes AI_REPLY nodes.
type Handler struct {
	deps         *handler.Deps
	historyTurns int
	historyDelay time.Duration
}

// Option customizes the addon handler.
type Option func(*Handler)

// WithHistoryTurns overrides how many log entries feed the model.
func WithHistoryTurns(turns int) Option {
	return func(h *Handler) {
		if turns > 0 {
			h.historyTurns = turns
		}
	}
}

// WithHistoryDelay overrides the pre-read settle delay. Zero disables it.
func WithHistoryDelay(delay time.Duration) Option {
	return func(h *Handler) {
		h.historyDelay = delay
	}
}

// New creates the addon handler.
func New(deps *handler.Deps, opts ...Option) *Handler {
	ret := &Handler{
		deps:         deps,
		historyTurns: defaultHistoryTurns,
		historyDelay: defaultHistoryDelay,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

var _ handler.Handler = (*Handler)(nil)

// Handle invokes the completion provider. A returned function name fires
// every matching function edge as a single-pass continuation; returned text
// is delivered verbatim. Both may occur on one call.
func (h *Handler) Handle(ctx context.Context, exec *handler.Exec) ([]*handler.FollowUp, error) {
	if h.deps.AI == nil {
		return nil, errors.New("completion provider is not configured")
	}
	history := h.history(ctx, exec)
	functions := h.functions(exec)

	completion := h.deps.AI.Complete(ctx, exec.Node.Data.Model, history, functions)
	if !completion.Success {
		h.deps.Logger.Warn("completion failed",
			zap.String("node", exec.Node.ID),
			zap.String("msg", completion.Msg))
		return nil, nil
	}

	var followUps []*handler.FollowUp
	if completion.FunctionName != "" {
		for _, edge := range exec.Flow.EdgesByHandle(completion.FunctionName) {
			if target := exec.Flow.Node(edge.Target); target != nil {
				followUps = append(followUps, &handler.FollowUp{
					Node:      target,
					Variables: exec.Variables,
					Once:      true,
				})
			}
		}
	}
	if completion.Text != "" {
		// AI text is sent verbatim, never template-resolved.
		content := map[string]interface{}{
			"text": map[string]interface{}{"body": completion.Text},
		}
		record := convlog.NewRecord(convlog.DirectionOut, "text", content)
		result := h.deps.Messenger.Send(ctx, exec.Tenant, content, exec.SenderMobile, record, exec.ConversationID)
		if !result.Success {
			h.deps.Logger.Warn("reply delivery failed",
				zap.String("node", exec.Node.ID),
				zap.String("msg", result.Msg))
		}
	}
	return followUps, nil
}

// history builds the model context: the persona instruction followed by the
// last N text-type log entries tagged by direction.
func (h *Handler) history(ctx context.Context, exec *handler.Exec) []ai.Message {
	if h.historyDelay > 0 {
		select {
		case <-time.After(h.historyDelay):
		case <-ctx.Done():
		}
	}
	var messages []ai.Message
	if instruction := exec.Node.Data.Instruction; instruction != "" {
		messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: instruction})
	}
	for _, record := range h.deps.Log.History(ctx, exec.ConversationID, h.historyTurns) {
		if record.Kind != "text" {
			continue
		}
		text := textOf(record)
		if text == "" {
			continue
		}
		role := ai.RoleUser
		if record.Direction == convlog.DirectionOut {
			role = ai.RoleAssistant
		}
		messages = append(messages, ai.Message{Role: role, Content: text})
	}
	return messages
}

// functions maps the node's task ids to callable descriptors sourced from
// the task nodes elsewhere in the graph.
func (h *Handler) functions(exec *handler.Exec) []ai.Function {
	var functions []ai.Function
	for _, taskID := range exec.Node.Data.Tasks {
		task := exec.Flow.Node(taskID)
		if task == nil || task.Data.TaskName == "" {
			continue
		}
		functions = append(functions, ai.Function{
			Name:        task.Data.TaskName,
			Description: task.Data.TaskDescription,
		})
	}
	return functions
}

// textOf extracts the plain body of a text log record.
func textOf(record *convlog.Record) string {
	switch payload := record.Payload.(type) {
	case string:
		return payload
	case map[string]interface{}:
		if text, ok := payload["text"].(map[string]interface{}); ok {
			if body, ok := text["body"].(string); ok {
				return body
			}
		}
	}
	return ""
}

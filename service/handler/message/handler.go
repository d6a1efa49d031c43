// Package message renders and delivers the outbound content of message
// nodes.
package message

import (
	"context"

	"go.uber.org/zap"

	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/model/template"
	"github.com/chatflow/chatflow/service/convlog"
	"github.com/chatflow/chatflow/service/handler"
)

// contentKinds maps a message node type to the key of its content object.
// Both interactive shapes share one key; the payload distinguishes them.
var contentKinds = map[model.NodeType]string{
	model.NodeTypeText:              "text",
	model.NodeTypeImage:             "image",
	model.NodeTypeVideo:             "video",
	model.NodeTypeAudio:             "audio",
	model.NodeTypeDocument:          "document",
	model.NodeTypeLocation:          "location",
	model.NodeTypeInteractiveList:   "interactive",
	model.NodeTypeInteractiveButton: "interactive",
}

// Handler sends one message node's content and continues over plain edges.
type Handler struct {
	deps *handler.Deps
}

// New creates the message handler.
func New(deps *handler.Deps) *Handler {
	return &Handler{deps: deps}
}

var _ handler.Handler = (*Handler)(nil)

// Handle resolves every templated field of the node's content object against
// the variable bag and hands the result to the messenger. A node without a
// renderable content object is a no-op, not an error.
func (h *Handler) Handle(ctx context.Context, exec *handler.Exec) ([]*handler.FollowUp, error) {
	kind, ok := contentKinds[exec.Node.Type]
	if !ok {
		return nil, nil
	}
	raw, ok := exec.Node.Data.MsgContent[kind]
	if !ok || raw == nil {
		return nil, nil
	}
	resolved := template.ResolveValue(raw, exec.Variables)
	content := map[string]interface{}{kind: resolved}
	record := convlog.NewRecord(convlog.DirectionOut, kind, content)

	result := h.deps.Messenger.Send(ctx, exec.Tenant, content, exec.SenderMobile, record, exec.ConversationID)
	if !result.Success {
		h.deps.Logger.Warn("message delivery failed",
			zap.String("node", exec.Node.ID),
			zap.String("recipient", exec.SenderMobile),
			zap.String("msg", result.Msg))
	}

	var followUps []*handler.FollowUp
	for _, edge := range exec.Flow.EdgesFrom(exec.Node.ID) {
		if target := exec.Flow.Node(edge.Target); target != nil {
			followUps = append(followUps, &handler.FollowUp{Node: target, Variables: exec.Variables})
		}
	}
	return followUps, nil
}

// Package tool implements the side-effect and control-flow node handlers:
// agent handoff, input capture, variable save, spreadsheet push, chat
// suppression, outbound HTTP and condition branching.
package tool

import (
	"context"
	"fmt"

	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/service/handler"
)

// Handler routes a tool node to its typed implementation.
type Handler struct {
	deps *handler.Deps
}

// New creates the tool handler.
func New(deps *handler.Deps) *Handler {
	return &Handler{deps: deps}
}

var _ handler.Handler = (*Handler)(nil)

// Handle dispatches on the node type.
func (h *Handler) Handle(ctx context.Context, exec *handler.Exec) ([]*handler.FollowUp, error) {
	switch exec.Node.Type {
	case model.NodeTypeAssignAgent:
		return h.assignAgent(ctx, exec)
	case model.NodeTypeTakeInput:
		return h.takeInput(ctx, exec)
	case model.NodeTypeSaveAsVar:
		return h.saveVariable(ctx, exec)
	case model.NodeTypeSpreadsheet:
		return h.spreadsheet(ctx, exec)
	case model.NodeTypeDisableChat:
		return h.disableChat(ctx, exec)
	case model.NodeTypeMakeRequest:
		return h.makeRequest(ctx, exec)
	case model.NodeTypeCondition:
		return h.condition(ctx, exec)
	}
	return nil, fmt.Errorf("unsupported tool node type %s", exec.Node.Type)
}

// plainContinuation returns a follow-up for every handle-less edge leaving
// the node.
func plainContinuation(exec *handler.Exec) []*handler.FollowUp {
	var followUps []*handler.FollowUp
	for _, edge := range exec.Flow.EdgesFrom(exec.Node.ID) {
		if target := exec.Flow.Node(edge.Target); target != nil {
			followUps = append(followUps, &handler.FollowUp{Node: target, Variables: exec.Variables})
		}
	}
	return followUps
}

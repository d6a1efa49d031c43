package tool

import (
	"context"
	"fmt"

	"github.com/chatflow/chatflow/service/handler"
)

// assignAgent records a human-agent handoff for the conversation. The insert
// is idempotent; repeating it is harmless. Terminal for this turn.
func (h *Handler) assignAgent(ctx context.Context, exec *handler.Exec) ([]*handler.FollowUp, error) {
	agentEmail := exec.Node.Data.AgentEmail
	if agentEmail == "" {
		return nil, nil
	}
	if err := h.deps.Lists.AssignAgent(ctx, exec.Tenant, agentEmail, exec.ConversationID); err != nil {
		return nil, fmt.Errorf("failed to assign agent %s: %w", agentEmail, err)
	}
	return nil, nil
}

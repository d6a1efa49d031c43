package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/chatflow/chatflow/internal/clock"
	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/service/dao"
	"github.com/chatflow/chatflow/service/handler"
)

// takeInput parks the node as the conversation's pending capture. The next
// inbound message is stored under the node's variable name and control
// passes to the node behind its outgoing edge; nothing else happens this
// turn.
func (h *Handler) takeInput(ctx context.Context, exec *handler.Exec) ([]*handler.FollowUp, error) {
	state, err := h.deps.States.Load(ctx, exec.UniqueID)
	if err != nil {
		if !errors.Is(err, dao.ErrNotFound) {
			return nil, fmt.Errorf("failed to load state %s: %w", exec.UniqueID, err)
		}
		state = &model.ExecutionState{UniqueID: exec.UniqueID}
	}
	state.Pending = exec.Node.Clone()
	state.UpdatedAt = clock.Now()
	if err := h.deps.States.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to persist pending input %s: %w", exec.UniqueID, err)
	}
	return nil, nil
}

package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/chatflow/chatflow/internal/clock"
	"github.com/chatflow/chatflow/service/handler"
	"github.com/chatflow/chatflow/service/liststore"
)

// disableChat suppresses the sender until the configured window elapses.
// An explicit timestamp wins over the relative hours/minutes window.
// Terminal for this turn.
func (h *Handler) disableChat(ctx context.Context, exec *handler.Exec) ([]*handler.FollowUp, error) {
	data := exec.Node.Data
	expiresAt := data.Timestamp
	if expiresAt <= 0 {
		window := time.Duration(data.Hours)*time.Hour + time.Duration(data.Minutes)*time.Minute
		if window <= 0 {
			return nil, nil
		}
		expiresAt = clock.Now().Add(window).UnixMilli()
	}
	entry := &liststore.Suppression{
		Mobile:    exec.SenderMobile,
		ExpiresAt: expiresAt,
		Timezone:  data.Timezone,
	}
	if err := h.deps.Lists.Suppress(ctx, exec.Tenant, exec.FlowID, entry); err != nil {
		return nil, fmt.Errorf("failed to suppress %s: %w", exec.SenderMobile, err)
	}
	return nil, nil
}

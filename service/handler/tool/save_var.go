package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/chatflow/chatflow/internal/clock"
	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/model/template"
	"github.com/chatflow/chatflow/service/dao"
	"github.com/chatflow/chatflow/service/handler"
)

// wholeMessagePath is the source path meaning "serialize the whole incoming
// message" rather than a field of it.
const wholeMessagePath = "previousMsg"

// saveVariable captures a value from the incoming message into the
// conversation's persisted inputs and continues over plain edges. Object
// values merge into an existing object; anything else overwrites.
func (h *Handler) saveVariable(ctx context.Context, exec *handler.Exec) ([]*handler.FollowUp, error) {
	key := exec.Node.Data.KeyToSave
	path := exec.Node.Data.StringValue
	if key == "" || path == "" {
		return nil, nil
	}

	var value interface{}
	if path == wholeMessagePath {
		value = serialize(exec.Incoming)
	} else {
		scope := map[string]interface{}{wholeMessagePath: exec.Incoming}
		value = template.ResolveValue("{{{"+path+"}}}", scope)
	}

	state, err := h.deps.States.Load(ctx, exec.UniqueID)
	if err != nil {
		if !errors.Is(err, dao.ErrNotFound) {
			return nil, fmt.Errorf("failed to load state %s: %w", exec.UniqueID, err)
		}
		state = &model.ExecutionState{UniqueID: exec.UniqueID}
	}
	state.SetInput(key, merge(state.Inputs[key], value))
	state.UpdatedAt = clock.Now()
	if err := h.deps.States.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to persist variable %s: %w", key, err)
	}

	exec.Variables[key] = state.Inputs[key]
	return plainContinuation(exec), nil
}

// merge deep-merges two JSON objects; any other combination lets the new
// value win.
func merge(existing, value interface{}) interface{} {
	existingMap, okExisting := existing.(map[string]interface{})
	valueMap, okValue := value.(map[string]interface{})
	if !okExisting || !okValue {
		return value
	}
	merged := make(map[string]interface{}, len(existingMap)+len(valueMap))
	for k, v := range existingMap {
		merged[k] = v
	}
	for k, v := range valueMap {
		merged[k] = merge(merged[k], v)
	}
	return merged
}

func serialize(value interface{}) string {
	if text, ok := value.(string); ok {
		return text
	}
	data, err := sonic.Marshal(value)
	if err != nil {
		return template.Missing
	}
	return string(data)
}

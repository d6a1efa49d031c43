package model

import "time"

// ExecutionState is the per-conversation record that survives between turns.
// It is keyed by the conversation unique id (tenant x sender x chat) and
// created lazily on the first TAKE_INPUT or SAVE_AS_VAR event.
type ExecutionState struct {
	UniqueID string `json:"uniqueId"`

	// Inputs accumulates captured variables across turns. Keys are added or
	// merged, never removed, for the life of the conversation.
	Inputs map[string]interface{} `json:"inputs,omitempty"`

	// Pending is the TAKE_INPUT node awaiting the next inbound message. It is
	// cleared exactly once, on the turn that consumes it.
	Pending *Node `json:"pending,omitempty"`

	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// ID returns the state key. Exposed for the generic DAO contract.
func (s *ExecutionState) ID() string { return s.UniqueID }

// Clone returns a copy safe to mutate without affecting stored state.
func (s *ExecutionState) Clone() *ExecutionState {
	if s == nil {
		return nil
	}
	clone := *s
	if s.Inputs != nil {
		inputs := make(map[string]interface{}, len(s.Inputs))
		for k, v := range s.Inputs {
			inputs[k] = v
		}
		clone.Inputs = inputs
	}
	clone.Pending = s.Pending.Clone()
	return &clone
}

// SetInput merges a captured value under the given variable name.
func (s *ExecutionState) SetInput(name string, value interface{}) {
	if name == "" {
		return
	}
	if s.Inputs == nil {
		s.Inputs = map[string]interface{}{}
	}
	s.Inputs[name] = value
}

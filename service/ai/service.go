// Package ai defines the chat-completion contract the addon handler talks
// to. Providers implement Service; the engine never sees provider SDKs.
package ai

import (
	"context"
	"sync"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of model context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Function advertises one routable task to the model.
type Function struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Completion is the soft outcome of a model call. Exactly one of Text and
// FunctionName is meaningful on success.
type Completion struct {
	Success      bool   `json:"success"`
	Text         string `json:"text,omitempty"`
	FunctionName string `json:"functionName,omitempty"`
	Msg          string `json:"msg,omitempty"`
}

// Service produces one completion for the supplied history and task catalog.
type Service interface {
	Complete(ctx context.Context, model string, history []Message, functions []Function) Completion
}

// Call captures one invocation observed by the Fake.
type Call struct {
	Model     string
	History   []Message
	Functions []Function
}

// Fake is a scripted Service for tests. Completions are returned in order;
// once exhausted it keeps returning the last one.
type Fake struct {
	Completions []Completion
	mu          sync.Mutex
	calls       []Call
}

var _ Service = (*Fake)(nil)

// Complete records the call and returns the next scripted completion.
func (f *Fake) Complete(ctx context.Context, model string, history []Message, functions []Function) Completion {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Model: model, History: history, Functions: functions})
	if len(f.Completions) == 0 {
		return Completion{Success: false, Msg: "no completion scripted"}
	}
	index := len(f.calls) - 1
	if index >= len(f.Completions) {
		index = len(f.Completions) - 1
	}
	return f.Completions[index]
}

// Calls returns a copy of the recorded invocations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

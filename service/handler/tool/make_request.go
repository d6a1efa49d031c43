package tool

import (
	"context"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/chatflow/chatflow/model/template"
	"github.com/chatflow/chatflow/service/fetch"
	"github.com/chatflow/chatflow/service/handler"
)

// historyKey is the body field carrying recent conversation history when the
// node configures msglength.
const historyKey = "messages"

// makeRequest issues the node's outbound HTTP call with every templated
// part resolved. A failed call is logged and swallowed; the success
// continuation re-renders each downstream node's content against the
// response payload before dispatch.
func (h *Handler) makeRequest(ctx context.Context, exec *handler.Exec) ([]*handler.FollowUp, error) {
	data := exec.Node.Data
	if data.URL == "" {
		return nil, nil
	}
	request := &fetch.Request{
		Method: data.Method,
		URL:    template.Resolve(data.URL, exec.Variables),
	}
	if len(data.Headers) > 0 {
		request.Headers = make(map[string]string, len(data.Headers))
		for name, value := range data.Headers {
			request.Headers[name] = template.Resolve(value, exec.Variables)
		}
	}
	request.Body = h.renderBody(ctx, exec)

	response := h.deps.Fetch.Do(ctx, request)
	if !response.Success {
		h.deps.Logger.Warn("outbound request failed",
			zap.String("node", exec.Node.ID),
			zap.String("url", request.URL),
			zap.Int("status", response.Status),
			zap.String("msg", response.Msg))
		return nil, nil
	}

	var followUps []*handler.FollowUp
	for _, edge := range exec.Flow.EdgesFrom(exec.Node.ID) {
		target := exec.Flow.Node(edge.Target)
		if target == nil {
			continue
		}
		clone := target.Clone()
		for kind, content := range clone.Data.MsgContent {
			clone.Data.MsgContent[kind] = template.ResolveValue(content, response.Body)
		}
		variables := make(map[string]interface{}, len(exec.Variables)+len(response.Body))
		for k, v := range exec.Variables {
			variables[k] = v
		}
		for k, v := range response.Body {
			variables[k] = v
		}
		followUps = append(followUps, &handler.FollowUp{Node: clone, Variables: variables})
	}
	return followUps, nil
}

// renderBody resolves the configured body and, for POST nodes with a
// msglength, folds in the last N conversation-log entries.
func (h *Handler) renderBody(ctx context.Context, exec *handler.Exec) string {
	data := exec.Node.Data
	resolved := template.ResolveValue(data.Body, exec.Variables)

	isPost := strings.EqualFold(strings.TrimSpace(data.Method), http.MethodPost)
	if isPost && data.MsgLength > 0 {
		body, ok := resolved.(map[string]interface{})
		if !ok {
			body = map[string]interface{}{}
		}
		body[historyKey] = h.deps.Log.History(ctx, exec.ConversationID, data.MsgLength)
		resolved = body
	}

	switch actual := resolved.(type) {
	case nil:
		return ""
	case string:
		return actual
	default:
		encoded, err := sonic.Marshal(actual)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

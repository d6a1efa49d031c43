package tool

import (
	"context"
	"strings"

	"github.com/chatflow/chatflow/service/handler"

	"github.com/chatflow/chatflow/model/template"
)

// Branch handle suffixes. The prefix comes from the node id: its first
// whitespace-delimited token with anything after the first underscore
// stripped. Ids with several underscores collapse to the first segment;
// authors relying on multi-underscore ids get surprising handles.
const (
	equalSuffix    = "_equal"
	notEqualSuffix = "_notEqual"
)

// condition compares the node's resolved literal against the serialized
// incoming message by substring containment and fires exactly the matching
// branch edge.
func (h *Handler) condition(ctx context.Context, exec *handler.Exec) ([]*handler.FollowUp, error) {
	literal := template.Resolve(exec.Node.Data.StringValue, exec.Variables)
	incoming := serialize(exec.Incoming)

	matched := contains(incoming, literal, exec.Node.Data.CaseSensitive)
	handle := branchPrefix(exec.Node.ID) + notEqualSuffix
	if matched {
		handle = branchPrefix(exec.Node.ID) + equalSuffix
	}

	var followUps []*handler.FollowUp
	for _, edge := range exec.Flow.BranchEdges(exec.Node.ID, handle) {
		if target := exec.Flow.Node(edge.Target); target != nil {
			followUps = append(followUps, &handler.FollowUp{Node: target, Variables: exec.Variables})
		}
	}
	return followUps, nil
}

func contains(haystack, needle string, caseSensitive bool) bool {
	if !caseSensitive {
		haystack = strings.ToLower(haystack)
		needle = strings.ToLower(needle)
	}
	return strings.Contains(haystack, needle)
}

func branchPrefix(nodeID string) string {
	token := nodeID
	if fields := strings.Fields(nodeID); len(fields) > 0 {
		token = fields[0]
	}
	if index := strings.Index(token, "_"); index >= 0 {
		token = token[:index]
	}
	return token
}

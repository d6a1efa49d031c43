// Package entry picks the node(s) an inbound message starts from.
package entry

import (
	"strings"

	"github.com/chatflow/chatflow/model"
)

// WildcardHandle is the catch-all keyword edge handle.
const WildcardHandle = "{{OTHER_MSG}}"

// Resolve applies the ordered entry policy:
//  1. edges whose handle equals the incoming text (all matches fire),
//  2. else the flow's AI-steered nodes when any node sets assignAi,
//  3. else the wildcard edge targets,
//  4. when still empty and a take-input node is pending, the target of
//     the pending node's outgoing edge.
func Resolve(flow *model.Flow, incomingText string, state *model.ExecutionState) []*model.Node {
	if flow == nil {
		return nil
	}
	candidates := flow.Targets(flow.EdgesByHandle(strings.TrimSpace(incomingText)))
	if len(candidates) == 0 {
		candidates = flow.AssignAINodes()
	}
	if len(candidates) == 0 {
		candidates = flow.Targets(flow.EdgesByHandle(WildcardHandle))
	}
	if len(candidates) == 0 && state != nil && state.Pending != nil {
		for _, edge := range flow.AllEdgesFrom(state.Pending.ID) {
			if node := flow.Node(edge.Target); node != nil {
				return []*model.Node{node}
			}
		}
	}
	return candidates
}

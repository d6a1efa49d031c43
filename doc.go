// Package chatflow executes visually-authored conversation flows - directed
// graphs of typed nodes - in response to inbound chat messages. An inbound
// event selects entry nodes by keyword, AI steering or wildcard, resumes
// multi-turn input capture, and runs each node through its handler:
// message nodes render and deliver templated content, tool nodes perform
// side effects (HTTP calls, spreadsheet pushes, agent handoff, chat
// suppression, branching), and addon nodes bridge to an AI completion
// provider with function-call routing back into the graph.
package chatflow

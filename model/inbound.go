package model

import "fmt"

// Inbound is one received chat event. The channel adapters construct it; the
// engine never touches transport.
type Inbound struct {
	// Tenant owning the conversation
	Tenant string `json:"tenant"`

	// FlowID selects the flow the event belongs to
	FlowID string `json:"flowId,omitempty"`

	// ChatID identifies the conversation on the channel
	ChatID string `json:"chatId"`

	SenderName   string `json:"senderName,omitempty"`
	SenderMobile string `json:"senderMobile"`

	// Text is the keyword-matchable body of the message
	Text string `json:"text,omitempty"`

	// Payload is the full message object; it becomes previousMsg in the
	// variable bag and the captured value of a pending TAKE_INPUT node.
	Payload interface{} `json:"payload,omitempty"`
}

// UniqueID is the composite key of one in-progress conversation within a flow.
func (m *Inbound) UniqueID() string {
	return fmt.Sprintf("%s_%s_%s", m.Tenant, m.SenderMobile, m.ChatID)
}

// Value returns the payload, falling back to the plain text body.
func (m *Inbound) Value() interface{} {
	if m.Payload != nil {
		return m.Payload
	}
	return m.Text
}

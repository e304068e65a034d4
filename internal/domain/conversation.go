package domain

import (
	"encoding/json"
	"fmt"
)

// Sender identifies who authored a conversation message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"

	// legacySenderAssistant is the tag older installs persisted for assistant turns.
	legacySenderAssistant = "hawy"
)

// ParseSender maps a persisted sender tag to a Sender.
func ParseSender(s string) (Sender, error) {
	switch s {
	case string(SenderUser):
		return SenderUser, nil
	case string(SenderAssistant), legacySenderAssistant:
		return SenderAssistant, nil
	default:
		return "", fmt.Errorf("domain: unknown sender %q", s)
	}
}

func (s *Sender) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("domain: decode sender: %w", err)
	}
	parsed, err := ParseSender(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Message is a single turn of the conversation log.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp Timestamp `json:"timestamp"`
}

// ConversationState is the message log plus the session identifier that
// correlates it with backend-side context.
type ConversationState struct {
	SessionID string
	Messages  []Message
}

func (c ConversationState) Len() int {
	return len(c.Messages)
}

// Last returns the most recent message, if any.
func (c ConversationState) Last() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// Clone returns a copy that shares no backing array with c.
func (c ConversationState) Clone() ConversationState {
	out := ConversationState{SessionID: c.SessionID}
	if c.Messages != nil {
		out.Messages = make([]Message, len(c.Messages))
		copy(out.Messages, c.Messages)
	}
	return out
}

// Append returns a new state with msg at the end of the log.
func (c ConversationState) Append(msg Message) ConversationState {
	out := c.Clone()
	out.Messages = append(out.Messages, msg)
	return out
}

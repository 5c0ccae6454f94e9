package domain

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is an append-only list of turns.
type Conversation []Message

func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	return append(Conversation(nil), c...)
}

// LastAssistant returns the trailing assistant message, if the conversation
// currently ends with one.
func (c Conversation) LastAssistant() (Message, bool) {
	if len(c) == 0 || c[len(c)-1].Role != RoleAssistant {
		return Message{}, false
	}
	return c[len(c)-1], true
}

package domain

// ChatRole author of a chat message.
type ChatRole string

const (
	RoleUser  ChatRole = "user"
	RoleModel ChatRole = "model"
)

// ChatMessage one turn of an advisory chat.
type ChatMessage struct {
	Role ChatRole `json:"role"`
	Text string   `json:"text"`
	// IsError marks a locally generated failure notice that is not sent back to the model.
	IsError bool `json:"is_error,omitempty"`
}

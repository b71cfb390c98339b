package chat

import (
	"time"

	"backend-fliptok/internal/profile"
)

// Chat is a 1:1 conversation as seen by one of its participants.
type Chat struct {
	ID            string       `json:"id"`
	With          profile.User `json:"with"`
	LastMessage   string       `json:"last_message"`
	LastMessageAt time.Time    `json:"last_message_at"`
	CreatedAt     time.Time    `json:"created_at"`
}

type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type OpenRequest struct {
	UserID string `json:"user_id"`
}

type SendRequest struct {
	Text string `json:"text"`
}

type MessagePage struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

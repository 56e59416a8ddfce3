package models

import "time"

// SessionState tracks where a session is in the provider lifecycle.
type SessionState string

const (
	StateDisconnected SessionState = "disconnected"
	StateStarting     SessionState = "starting"
	StateAuthorized   SessionState = "authorized"
	StateFailed       SessionState = "failed"
)

// SessionMeta is the snapshot persisted to disk for an authenticated
// session, one JSON file per session id.
type SessionMeta struct {
	Token        string    `json:"token"`
	AuthorizedAt time.Time `json:"authorized_at"`
	State        string    `json:"state"`
}

// QRCode is a one-time authentication artifact. Data is a base64-encoded
// PNG rendering of Code, the raw payload handed out by the provider.
type QRCode struct {
	Data string `json:"data"`
	Code string `json:"code"`
}

// Contact represents a WhatsApp contact
type Contact struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone"`
}

// Chat represents a WhatsApp chat
type Chat struct {
	ID               string    `json:"id"`
	Name             string    `json:"name,omitempty"`
	IsGroup          bool      `json:"is_group"`
	LastMessage      string    `json:"last_message,omitempty"`
	LastMessageTime  time.Time `json:"last_message_time,omitempty"`
	ParticipantCount int       `json:"participant_count,omitempty"`
}

// Message represents a chat message
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsFromMe  bool      `json:"is_from_me"`
}

// Participant is a group member with its admin flag.
type Participant struct {
	ID      string  `json:"id"`
	IsAdmin bool    `json:"is_admin"`
	Contact Contact `json:"contact"`
}

// Group represents a WhatsApp group
type Group struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	Owner        string        `json:"owner,omitempty"`
	CreationTime time.Time     `json:"creation_time,omitempty"`
	Participants []Participant `json:"participants"`
}

// SendResult is the normalized outcome of a send_message call.
type SendResult struct {
	MessageID string         `json:"message_id"`
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Response  map[string]any `json:"response,omitempty"`
}

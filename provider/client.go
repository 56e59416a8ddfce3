// Package provider talks to the hosted WhatsApp gateway. The gateway is
// an opaque RPC surface: sessions are started, their state is polled, and
// messaging/group calls are plain JSON round-trips.
package provider

import (
	"context"

	"github.com/wabridge/whatsapp-mcp/models"
)

// Gateway-reported session states.
const (
	StateStarting      = "starting"
	StateScanQR        = "scan_qr"
	StateAuthorized    = "authorized"
	StateNotAuthorized = "not_authorized"
	StateFailed        = "failed"
)

// Status is the gateway's answer to a state poll. QRCode is only set in
// the scan_qr state; Token is only set once authorized.
type Status struct {
	State  string `json:"state"`
	QRCode string `json:"qr_code,omitempty"`
	Token  string `json:"token,omitempty"`
}

// Client is the RPC surface of one gateway instance.
type Client interface {
	StartSession(ctx context.Context) error
	GetStatus(ctx context.Context) (Status, error)
	Logout(ctx context.Context) error

	SendMessage(ctx context.Context, payload map[string]any) (map[string]any, error)
	GetChats(ctx context.Context) ([]models.Chat, error)
	GetMessages(ctx context.Context, chatID string, limit int, beforeID string) ([]models.Message, error)

	CreateGroup(ctx context.Context, name string, participants []string) (models.Group, error)
	GetGroupParticipants(ctx context.Context, groupID string) ([]models.Participant, error)
	AddParticipant(ctx context.Context, groupID, participantID string) error
	RemoveParticipant(ctx context.Context, groupID, participantID string) error
	SetGroupName(ctx context.Context, groupID, name string) error
	SetGroupDescription(ctx context.Context, groupID, description string) error
}

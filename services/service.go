// Package services translates tool-level requests into gateway calls:
// message sending, chat/message listing and group management. Every
// operation resolves its session first and never touches the gateway for
// an unknown or unauthenticated session.
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wabridge/whatsapp-mcp/db"
	"github.com/wabridge/whatsapp-mcp/models"
	"github.com/wabridge/whatsapp-mcp/provider"
	"github.com/wabridge/whatsapp-mcp/session"
)

// Identifier suffix conventions of the gateway: individual contacts end
// in @c.us, groups in @g.us.
const (
	userSuffix  = "@c.us"
	groupSuffix = "@g.us"
)

// ErrInvalidIdentifier is returned when an identifier does not carry the
// suffix its operation requires.
var ErrInvalidIdentifier = errors.New("invalid identifier format")

// Service exposes the messaging and group operations.
type Service struct {
	sessions *session.Manager
	store    db.DB
}

// NewService creates a Service over the session manager. The db store is
// optional; when present, chats and sent messages are cached in it.
func NewService(sessions *session.Manager, store db.DB) *Service {
	return &Service{sessions: sessions, store: store}
}

// resolve returns the gateway client for sessionID, failing before any
// provider call when the session is unknown or unauthenticated.
func (s *Service) resolve(sessionID string) (provider.Client, error) {
	client := s.sessions.GetClient(sessionID)
	if client == nil {
		return nil, session.ErrSessionNotFound
	}
	if !s.sessions.IsAuthenticated(sessionID) {
		return nil, session.ErrNotAuthenticated
	}
	return client, nil
}

// SendMessage sends one content variant to a chat and returns the
// normalized result. replyTo, when set, threads the message onto an
// earlier one.
func (s *Service) SendMessage(ctx context.Context, sessionID, chatID string, content models.Content, replyTo string) (models.SendResult, error) {
	client, err := s.resolve(sessionID)
	if err != nil {
		return models.SendResult{}, err
	}

	if chatID == "" {
		return models.SendResult{}, fmt.Errorf("chat_id is required")
	}
	if content == nil {
		return models.SendResult{}, fmt.Errorf("content is required")
	}

	payload, err := buildMessagePayload(chatID, content)
	if err != nil {
		return models.SendResult{}, err
	}
	if replyTo != "" {
		payload["context"] = map[string]any{"message_id": replyTo}
	}

	resp, err := client.SendMessage(ctx, payload)
	if err != nil {
		return models.SendResult{}, fmt.Errorf("failed to send message: %w", err)
	}

	result := models.SendResult{
		MessageID: extractMessageID(resp),
		Status:    "sent",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Response:  resp,
	}

	s.cacheSentMessage(ctx, chatID, content, result)

	log.Printf("message %s sent to %s", result.MessageID, chatID)
	return result, nil
}

// extractMessageID pulls the id out of the gateway response, falling
// back to a synthesized one when the response does not carry it.
func extractMessageID(resp map[string]any) string {
	if messages, ok := resp["messages"].([]any); ok && len(messages) > 0 {
		if first, ok := messages[0].(map[string]any); ok {
			if id, ok := first["id"].(string); ok && id != "" {
				return id
			}
		}
	}
	return "msg_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (s *Service) cacheSentMessage(ctx context.Context, chatID string, content models.Content, result models.SendResult) {
	if s.store == nil {
		return
	}
	text, ok := content.(models.TextContent)
	if !ok {
		return
	}

	now := time.Now().UTC()
	chat := models.Chat{
		ID:              chatID,
		IsGroup:         strings.HasSuffix(chatID, groupSuffix),
		LastMessage:     text.Text,
		LastMessageTime: now,
	}
	// The upsert replaces the whole row; keep what the cache already
	// knows about this chat.
	if existing, err := s.store.GetChat(ctx, chatID); err == nil && existing != nil {
		chat.Name = existing.Name
		chat.IsGroup = existing.IsGroup
		chat.ParticipantCount = existing.ParticipantCount
	}
	if err := s.store.StoreChat(ctx, chat); err != nil {
		log.Printf("failed to cache chat %s: %v", chatID, err)
		return
	}
	if err := s.store.StoreMessage(ctx, models.Message{
		ID:        result.MessageID,
		ChatID:    chatID,
		Sender:    "me",
		Content:   text.Text,
		Timestamp: now,
		IsFromMe:  true,
	}); err != nil {
		log.Printf("failed to cache message %s: %v", result.MessageID, err)
	}
}

// GetChats lists chats with slice pagination.
func (s *Service) GetChats(ctx context.Context, sessionID string, limit, offset int) ([]models.Chat, error) {
	client, err := s.resolve(sessionID)
	if err != nil {
		return nil, err
	}

	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("limit and offset must be non-negative")
	}
	if limit == 0 {
		limit = 50
	}

	chats, err := client.GetChats(ctx)
	if err != nil {
		// Serve the cached listing when the provider is unreachable. An
		// empty cache surfaces the provider error instead.
		if s.store != nil {
			if cached, cacheErr := s.store.GetChats(ctx, limit, offset); cacheErr == nil && len(cached) > 0 {
				log.Printf("provider chat listing failed, serving %d cached chats: %v", len(cached), err)
				return cached, nil
			}
		}
		return nil, fmt.Errorf("failed to get chats: %w", err)
	}

	if s.store != nil {
		for _, chat := range chats {
			if err := s.store.StoreChat(ctx, chat); err != nil {
				log.Printf("failed to cache chat %s: %v", chat.ID, err)
			}
		}
	}

	if offset >= len(chats) {
		return []models.Chat{}, nil
	}
	end := offset + limit
	if end > len(chats) {
		end = len(chats)
	}
	return chats[offset:end], nil
}

// GetMessages lists messages of a chat, newest first, optionally only
// those before a message id.
func (s *Service) GetMessages(ctx context.Context, sessionID, chatID string, limit int, beforeID string) ([]models.Message, error) {
	client, err := s.resolve(sessionID)
	if err != nil {
		return nil, err
	}

	if chatID == "" {
		return nil, fmt.Errorf("chat_id is required")
	}
	if limit < 0 {
		return nil, fmt.Errorf("limit must be non-negative")
	}
	if limit == 0 {
		limit = 50
	}

	messages, err := client.GetMessages(ctx, chatID, limit, beforeID)
	if err != nil {
		// Serve the cached history when the provider is unreachable. An
		// empty cache surfaces the provider error instead.
		if s.store != nil {
			if cached, cacheErr := s.store.GetMessages(ctx, chatID, limit); cacheErr == nil && len(cached) > 0 {
				log.Printf("provider message listing failed, serving %d cached messages: %v", len(cached), err)
				return cached, nil
			}
		}
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	if s.store != nil {
		for _, msg := range messages {
			if err := s.store.StoreMessage(ctx, msg); err != nil {
				log.Printf("failed to cache message %s: %v", msg.ID, err)
			}
		}
	}

	if len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

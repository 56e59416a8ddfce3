package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wabridge/whatsapp-mcp/models"
	"github.com/wabridge/whatsapp-mcp/services"
	"github.com/wabridge/whatsapp-mcp/session"
)

// handlers routes tool calls to the session manager and the service
// layer. The current-session default lives here, behind a mutex, so a
// call that omits session_id falls back to the most recently created
// session without any process-global state.
type handlers struct {
	sessions *session.Manager
	service  *services.Service

	mu             sync.Mutex
	currentSession string
}

func (h *handlers) setCurrent(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentSession = id
}

func (h *handlers) clearCurrent(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.currentSession == id {
		h.currentSession = ""
	}
}

// resolveSessionID returns the explicit session_id argument or the
// current default.
func (h *handlers) resolveSessionID(args map[string]any) (string, error) {
	if id, ok := args["session_id"].(string); ok && id != "" {
		return id, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.currentSession == "" {
		return "", errors.New("no active session; call create_session first or pass session_id")
	}
	return h.currentSession, nil
}

func textResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (h *handlers) createSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, ok := request.Params.Arguments["session_id"].(string)
	if !ok || sessionID == "" {
		return nil, errors.New("session_id must be a non-empty string")
	}

	if err := h.sessions.Create(ctx, sessionID); err != nil {
		return nil, err
	}
	h.setCurrent(sessionID)

	return textResult(map[string]any{
		"success":    true,
		"session_id": sessionID,
		"message":    "Session created successfully",
	})
}

func (h *handlers) getQRCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := h.resolveSessionID(request.Params.Arguments)
	if err != nil {
		return nil, err
	}

	qr, err := h.sessions.GenerateQR(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if qr == nil {
		return textResult(map[string]any{
			"authenticated": true,
			"message":       "Session is already authorized; no QR code needed",
		})
	}
	return textResult(qr)
}

func (h *handlers) authenticate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := h.resolveSessionID(request.Params.Arguments)
	if err != nil {
		return nil, err
	}
	qrCode, ok := request.Params.Arguments["qr_code"].(string)
	if !ok || qrCode == "" {
		return nil, errors.New("qr_code must be a non-empty string")
	}

	success, err := h.sessions.Authenticate(ctx, sessionID, qrCode)
	if err != nil {
		return nil, err
	}
	if !success {
		return nil, errors.New("authentication failed")
	}
	return textResult(map[string]any{
		"success": true,
		"message": "Authentication successful",
	})
}

func (h *handlers) logout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := h.resolveSessionID(request.Params.Arguments)
	if err != nil {
		return nil, err
	}

	if err := h.sessions.Logout(ctx, sessionID); err != nil {
		return nil, err
	}
	h.clearCurrent(sessionID)

	return textResult(map[string]any{
		"success": true,
		"message": "Logout successful",
	})
}

func (h *handlers) restoreSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, ok := request.Params.Arguments["session_id"].(string)
	if !ok || sessionID == "" {
		return nil, errors.New("session_id must be a non-empty string")
	}

	restored, err := h.sessions.Restore(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !restored {
		return nil, fmt.Errorf("session %s could not be restored; re-authentication required", sessionID)
	}
	h.setCurrent(sessionID)

	return textResult(map[string]any{
		"success": true,
		"message": "Session restored successfully",
	})
}

func (h *handlers) checkStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := h.resolveSessionID(request.Params.Arguments)
	if err != nil {
		return nil, err
	}

	status, err := h.sessions.CheckStatus(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return textResult(status)
}

func (h *handlers) sendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := h.resolveSessionID(request.Params.Arguments)
	if err != nil {
		return nil, err
	}
	chatID, ok := request.Params.Arguments["chat_id"].(string)
	if !ok || chatID == "" {
		return nil, errors.New("chat_id must be a non-empty string")
	}
	rawContent, ok := request.Params.Arguments["content"]
	if !ok {
		return nil, errors.New("content is required")
	}

	encoded, err := json.Marshal(rawContent)
	if err != nil {
		return nil, fmt.Errorf("invalid content: %w", err)
	}
	content, err := models.ParseContent(encoded)
	if err != nil {
		return nil, err
	}

	replyTo, _ := request.Params.Arguments["reply_to"].(string)

	result, err := h.service.SendMessage(ctx, sessionID, chatID, content, replyTo)
	if err != nil {
		return nil, err
	}
	return textResult(result)
}

func (h *handlers) getChats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := h.resolveSessionID(request.Params.Arguments)
	if err != nil {
		return nil, err
	}

	limit := 50
	if l, ok := request.Params.Arguments["limit"].(float64); ok {
		limit = int(l)
	}
	offset := 0
	if o, ok := request.Params.Arguments["offset"].(float64); ok {
		offset = int(o)
	}

	chats, err := h.service.GetChats(ctx, sessionID, limit, offset)
	if err != nil {
		return nil, err
	}
	return textResult(map[string]any{"chats": chats})
}

func (h *handlers) getMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := h.resolveSessionID(request.Params.Arguments)
	if err != nil {
		return nil, err
	}
	chatID, ok := request.Params.Arguments["chat_id"].(string)
	if !ok || chatID == "" {
		return nil, errors.New("chat_id must be a non-empty string")
	}

	limit := 50
	if l, ok := request.Params.Arguments["limit"].(float64); ok {
		limit = int(l)
	}
	beforeID, _ := request.Params.Arguments["before_message_id"].(string)

	messages, err := h.service.GetMessages(ctx, sessionID, chatID, limit, beforeID)
	if err != nil {
		return nil, err
	}
	return textResult(map[string]any{"messages": messages})
}

func (h *handlers) createGroup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := h.resolveSessionID(request.Params.Arguments)
	if err != nil {
		return nil, err
	}
	groupName, ok := request.Params.Arguments["group_name"].(string)
	if !ok || groupName == "" {
		return nil, errors.New("group_name must be a non-empty string")
	}
	rawParticipants, ok := request.Params.Arguments["participants"].([]any)
	if !ok {
		return nil, errors.New("participants must be an array of phone numbers")
	}
	participants := make([]string, 0, len(rawParticipants))
	for _, p := range rawParticipants {
		phone, ok := p.(string)
		if !ok {
			return nil, errors.New("participants must be an array of phone numbers")
		}
		participants = append(participants, phone)
	}

	group, err := h.service.CreateGroup(ctx, sessionID, groupName, participants)
	if err != nil {
		return nil, err
	}
	return textResult(group)
}

func (h *handlers) getGroupParticipants(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := h.resolveSessionID(request.Params.Arguments)
	if err != nil {
		return nil, err
	}
	groupID, ok := request.Params.Arguments["group_id"].(string)
	if !ok || groupID == "" {
		return nil, errors.New("group_id must be a non-empty string")
	}

	participants, err := h.service.GetGroupParticipants(ctx, sessionID, groupID)
	if err != nil {
		return nil, err
	}
	return textResult(map[string]any{"participants": participants})
}

func (h *handlers) addParticipant(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.changeParticipant(ctx, request, h.service.AddParticipant)
}

func (h *handlers) removeParticipant(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.changeParticipant(ctx, request, h.service.RemoveParticipant)
}

func (h *handlers) changeParticipant(ctx context.Context, request mcp.CallToolRequest, op func(context.Context, string, string, string) (bool, error)) (*mcp.CallToolResult, error) {
	sessionID, err := h.resolveSessionID(request.Params.Arguments)
	if err != nil {
		return nil, err
	}
	groupID, ok := request.Params.Arguments["group_id"].(string)
	if !ok || groupID == "" {
		return nil, errors.New("group_id must be a non-empty string")
	}
	participantID, ok := request.Params.Arguments["participant_id"].(string)
	if !ok || participantID == "" {
		return nil, errors.New("participant_id must be a non-empty string")
	}

	success, err := op(ctx, sessionID, groupID, participantID)
	if err != nil {
		return nil, err
	}
	return textResult(map[string]any{"success": success})
}

func (h *handlers) updateGroupSettings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := h.resolveSessionID(request.Params.Arguments)
	if err != nil {
		return nil, err
	}
	groupID, ok := request.Params.Arguments["group_id"].(string)
	if !ok || groupID == "" {
		return nil, errors.New("group_id must be a non-empty string")
	}

	var name, description *string
	if n, ok := request.Params.Arguments["name"].(string); ok && n != "" {
		name = &n
	}
	if d, ok := request.Params.Arguments["description"].(string); ok && d != "" {
		description = &d
	}

	success, err := h.service.UpdateGroupSettings(ctx, sessionID, groupID, name, description)
	if err != nil {
		return nil, err
	}
	return textResult(map[string]any{"success": success})
}

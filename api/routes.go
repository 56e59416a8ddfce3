package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wabridge/whatsapp-mcp/models"
	"github.com/wabridge/whatsapp-mcp/session"
)

func statusCodeFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, session.ErrNotAuthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error, format string, args ...any) {
	c.JSON(statusCodeFor(err), Response{
		Success: false,
		Message: fmt.Sprintf(format+": %v", append(args, err)...),
	})
}

// CreateSessionRequest represents the request body for creating sessions
type CreateSessionRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "session_id is required",
		})
		return
	}

	if err := s.sessions.Create(c.Request.Context(), req.SessionID); err != nil {
		fail(c, err, "Failed to create session")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Session created successfully",
	})
}

func (s *Server) handleQR(c *gin.Context) {
	qr, err := s.sessions.GenerateQR(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err, "Failed to get QR code")
		return
	}

	// A nil QR means the session is already authorized
	if qr == nil {
		c.JSON(http.StatusOK, Response{
			Success: true,
			Message: "Already authorized",
		})
		return
	}

	img, err := base64.StdEncoding.DecodeString(qr.Data)
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Message: "Failed to decode QR image",
		})
		return
	}

	c.Header("X-QR-Code", qr.Code)
	c.Data(http.StatusOK, "image/png", img)
}

// AuthenticateRequest represents the request body for authentication
type AuthenticateRequest struct {
	QRCode string `json:"qr_code"`
}

func (s *Server) handleAuthenticate(c *gin.Context) {
	var req AuthenticateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.QRCode == "" {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "qr_code is required",
		})
		return
	}

	success, err := s.sessions.Authenticate(c.Request.Context(), c.Param("id"), req.QRCode)
	if err != nil {
		fail(c, err, "Failed to authenticate")
		return
	}
	if !success {
		c.JSON(http.StatusUnauthorized, Response{
			Success: false,
			Message: "Authentication failed",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Authentication successful",
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	status, err := s.sessions.CheckStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err, "Failed to get status")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    status,
	})
}

func (s *Server) handleRestore(c *gin.Context) {
	restored, err := s.sessions.Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err, "Failed to restore session")
		return
	}
	if !restored {
		c.JSON(http.StatusGone, Response{
			Success: false,
			Message: "Session could not be restored; re-authentication required",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Session restored successfully",
	})
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.sessions.Logout(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err, "Failed to logout")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Logout successful",
	})
}

// SendMessageRequest represents the request body for sending messages
type SendMessageRequest struct {
	SessionID string          `json:"session_id"`
	ChatID    string          `json:"chat_id"`
	Content   json.RawMessage `json:"content"`
	ReplyTo   string          `json:"reply_to,omitempty"`
}

func (s *Server) handleSendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "Invalid request body",
		})
		return
	}
	if req.SessionID == "" || req.ChatID == "" || len(req.Content) == 0 {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "session_id, chat_id and content are required",
		})
		return
	}

	content, err := models.ParseContent(req.Content)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	result, err := s.service.SendMessage(c.Request.Context(), req.SessionID, req.ChatID, content, req.ReplyTo)
	if err != nil {
		fail(c, err, "Failed to send message")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

func (s *Server) handleGetChats(c *gin.Context) {
	sessionID := c.Query("session_id")
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	chats, err := s.service.GetChats(c.Request.Context(), sessionID, limit, offset)
	if err != nil {
		fail(c, err, "Failed to get chats")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    chats,
	})
}

func (s *Server) handleGetMessages(c *gin.Context) {
	sessionID := c.Query("session_id")
	chatID := c.Query("chat")
	if chatID == "" {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "Missing chat parameter",
		})
		return
	}
	limit := intQuery(c, "limit", 50)

	messages, err := s.service.GetMessages(c.Request.Context(), sessionID, chatID, limit, c.Query("before"))
	if err != nil {
		fail(c, err, "Failed to get messages")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    messages,
	})
}

// CreateGroupRequest represents the request body for creating groups
type CreateGroupRequest struct {
	SessionID    string   `json:"session_id"`
	GroupName    string   `json:"group_name"`
	Participants []string `json:"participants"`
}

func (s *Server) handleCreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "Invalid request body",
		})
		return
	}

	group, err := s.service.CreateGroup(c.Request.Context(), req.SessionID, req.GroupName, req.Participants)
	if err != nil {
		fail(c, err, "Failed to create group")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    group,
	})
}

func (s *Server) handleGetGroupParticipants(c *gin.Context) {
	participants, err := s.service.GetGroupParticipants(c.Request.Context(), c.Query("session_id"), c.Param("id"))
	if err != nil {
		fail(c, err, "Failed to get group participants")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    participants,
	})
}

// ParticipantRequest represents the request body for adding participants
type ParticipantRequest struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
}

func (s *Server) handleAddParticipant(c *gin.Context) {
	var req ParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "Invalid request body",
		})
		return
	}

	success, err := s.service.AddParticipant(c.Request.Context(), req.SessionID, c.Param("id"), req.ParticipantID)
	if err != nil {
		fail(c, err, "Failed to add participant")
		return
	}

	c.JSON(http.StatusOK, Response{Success: success})
}

func (s *Server) handleRemoveParticipant(c *gin.Context) {
	success, err := s.service.RemoveParticipant(c.Request.Context(), c.Query("session_id"), c.Param("id"), c.Param("participant"))
	if err != nil {
		fail(c, err, "Failed to remove participant")
		return
	}

	c.JSON(http.StatusOK, Response{Success: success})
}

// UpdateGroupRequest represents the request body for group settings
type UpdateGroupRequest struct {
	SessionID   string  `json:"session_id"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (s *Server) handleUpdateGroupSettings(c *gin.Context) {
	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "Invalid request body",
		})
		return
	}

	success, err := s.service.UpdateGroupSettings(c.Request.Context(), req.SessionID, c.Param("id"), req.Name, req.Description)
	if err != nil {
		fail(c, err, "Failed to update group settings")
		return
	}

	c.JSON(http.StatusOK, Response{Success: success})
}

func intQuery(c *gin.Context, name string, def int) int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

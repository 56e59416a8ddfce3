package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wabridge/whatsapp-mcp/services"
	"github.com/wabridge/whatsapp-mcp/session"
)

// Server represents the API handler
type Server struct {
	sessions *session.Manager
	service  *services.Service
	router   *gin.Engine
	server   *http.Server
}

// NewServer creates a new API server
func NewServer(sessions *session.Manager, service *services.Service, port string) *Server {
	router := gin.Default()

	return &Server{
		sessions: sessions,
		service:  service,
		router:   router,
		server: &http.Server{
			Addr:    ":" + port,
			Handler: router,
		},
	}
}

// Response represents a generic API response
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (s *Server) registerRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.POST("/sessions", s.handleCreateSession)
		api.GET("/sessions/:id/qr", s.handleQR)
		api.POST("/sessions/:id/authenticate", s.handleAuthenticate)
		api.GET("/sessions/:id/status", s.handleStatus)
		api.POST("/sessions/:id/restore", s.handleRestore)
		api.DELETE("/sessions/:id", s.handleLogout)

		api.POST("/send", s.handleSendMessage)
		api.GET("/chats", s.handleGetChats)
		api.GET("/messages", s.handleGetMessages)

		api.POST("/groups", s.handleCreateGroup)
		api.GET("/groups/:id/participants", s.handleGetGroupParticipants)
		api.POST("/groups/:id/participants", s.handleAddParticipant)
		api.DELETE("/groups/:id/participants/:participant", s.handleRemoveParticipant)
		api.PATCH("/groups/:id", s.handleUpdateGroupSettings)
	}
}

func (s *Server) Start() error {
	s.registerRoutes(s.router)

	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

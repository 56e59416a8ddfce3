package main

import (
	"context"
	"log"
	"os"

	"github.com/wabridge/whatsapp-mcp/config"
	"github.com/wabridge/whatsapp-mcp/db"
	"github.com/wabridge/whatsapp-mcp/mcp"
	"github.com/wabridge/whatsapp-mcp/services"
	"github.com/wabridge/whatsapp-mcp/session"
)

func main() {
	// Stdout carries the MCP protocol; everything else goes to stderr.
	log.SetOutput(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := db.NewDB(context.Background(), cfg.SessionDir)
	if err != nil {
		log.Fatalf("Failed to initialize cache store: %v", err)
	}
	defer store.Close()

	sessions, err := session.NewManager(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize session manager: %v", err)
	}
	sessions.QRWriter = os.Stderr

	service := services.NewService(sessions, store)

	mcpServer := mcp.NewMCPServer("whatsapp-mcp", "1.0.0", sessions, service)
	if err := mcp.StartMCPServer(mcpServer); err != nil {
		log.Fatalf("Failed to start MCP server: %v", err)
	}
}

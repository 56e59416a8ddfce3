package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wabridge/whatsapp-mcp/api"
	"github.com/wabridge/whatsapp-mcp/config"
	"github.com/wabridge/whatsapp-mcp/db"
	"github.com/wabridge/whatsapp-mcp/services"
	"github.com/wabridge/whatsapp-mcp/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	store, err := db.NewDB(ctx, cfg.SessionDir)
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

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	apiServer := api.NewServer(sessions, service, cfg.Port)

	go func() {
		<-c
		log.Println("shutting down...")

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := apiServer.Stop(ctx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Println("Server gracefully stopped")
	}()

	log.Printf("WhatsApp bridge server starting on port %s", cfg.Port)
	if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
}

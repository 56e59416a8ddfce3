package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config struct to hold the configuration
type Config struct {
	Port       string `envconfig:"PORT" default:"8080"`
	SessionDir string `envconfig:"SESSION_DIR"`

	// Provider gateway settings. InstanceID and APIToken are the two
	// credentials the gateway requires; they are checked at session
	// creation, not here, so the server can start without them.
	ProviderBaseURL string `envconfig:"WHATSAPP_API_URL" default:"https://api.whatsapp-gateway.example"`
	InstanceID      string `envconfig:"WHATSAPP_INSTANCE_ID"`
	APIToken        string `envconfig:"WHATSAPP_API_TOKEN"`

	// Polling policy for the authentication lifecycle. The gateway only
	// exposes synchronous status queries, so the QR hand-out and the
	// authorization wait are both poll loops with a fixed ceiling.
	QRPollAttempts   int           `envconfig:"QR_POLL_ATTEMPTS" default:"20"`
	QRPollInterval   time.Duration `envconfig:"QR_POLL_INTERVAL" default:"1s"`
	AuthPollAttempts int           `envconfig:"AUTH_POLL_ATTEMPTS" default:"30"`
	AuthPollInterval time.Duration `envconfig:"AUTH_POLL_INTERVAL" default:"1s"`
}

// Load function to load the configuration from the environment variables
func Load() (Config, error) {
	err := godotenv.Load(".env")
	if err != nil {
		log.Println("No .env file found")
	}

	var c Config
	err = envconfig.Process("", &c)
	if err != nil {
		return Config{}, fmt.Errorf("unable to get envconfig: %w", err)
	}

	if c.SessionDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("unable to resolve home directory: %w", err)
		}
		c.SessionDir = filepath.Join(home, ".whatsapp-mcp", "sessions")
	}

	return c, nil
}

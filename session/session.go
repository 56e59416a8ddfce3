// Package session owns the session store and the authentication
// lifecycle against the WhatsApp gateway: QR hand-out, authorization
// polling, logout, and persistence of session metadata to disk.
package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mdp/qrterminal"
	"github.com/skip2/go-qrcode"

	"github.com/wabridge/whatsapp-mcp/config"
	"github.com/wabridge/whatsapp-mcp/models"
	"github.com/wabridge/whatsapp-mcp/provider"
)

// Session is one named connection to the gateway, authenticated or
// pending. Mutation goes through the Manager's lock.
type Session struct {
	ID            string
	State         models.SessionState
	Authenticated bool
	Meta          models.SessionMeta
	Client        provider.Client
}

// ClientFactory builds a gateway client for a new or restored session.
type ClientFactory func() (provider.Client, error)

// Manager is the session store plus the authentication controller. It is
// constructed once at startup and passed by reference; the mutex makes
// it safe for the HTTP bridge and the MCP loop to share.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	cfg       config.Config
	dir       string
	newClient ClientFactory

	// QRWriter, when set, receives a terminal rendering of each QR code
	// in addition to the base64 PNG returned to the caller.
	QRWriter io.Writer
}

// NewManager creates a session manager persisting to cfg.SessionDir.
func NewManager(cfg config.Config) (*Manager, error) {
	if err := os.MkdirAll(cfg.SessionDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	m := &Manager{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		dir:      cfg.SessionDir,
	}
	m.newClient = func() (provider.Client, error) {
		if cfg.InstanceID == "" || cfg.APIToken == "" {
			return nil, ErrMissingCredentials
		}
		return provider.NewHTTPClient(cfg.ProviderBaseURL, cfg.InstanceID, cfg.APIToken), nil
	}
	return m, nil
}

// SetClientFactory overrides how gateway clients are built. Tests use
// this to inject scripted fakes.
func (m *Manager) SetClientFactory(f ClientFactory) {
	m.newClient = f
}

func (m *Manager) sessionFile(id string) string {
	return filepath.Join(m.dir, id+".json")
}

// validateID rejects ids that would escape the session directory once
// joined into a file path.
func validateID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid session id %q", id)
	}
	return nil
}

// Create registers a new session under id with a fresh gateway client.
func (m *Manager) Create(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; ok {
		return ErrAlreadyExists
	}

	client, err := m.newClient()
	if err != nil {
		return err
	}

	m.sessions[id] = &Session{
		ID:     id,
		State:  models.StateDisconnected,
		Client: client,
	}
	log.Printf("session %s created", id)
	return nil
}

func (m *Manager) lookup(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (m *Manager) setState(id string, state models.SessionState, authenticated bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[id]; ok {
		sess.State = state
		sess.Authenticated = authenticated
	}
}

// GenerateQR starts the gateway session and polls its state until either
// a QR code is handed out (returned as base64 PNG plus the raw payload)
// or the gateway already reports authorized (no QR, session marked
// authenticated). The poll ceiling yields ErrQRTimeout; ctx cancels the
// wait between polls.
func (m *Manager) GenerateQR(ctx context.Context, id string) (*models.QRCode, error) {
	sess, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	if err := sess.Client.StartSession(ctx); err != nil {
		m.setState(id, models.StateFailed, false)
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	m.setState(id, models.StateStarting, false)

	for attempt := 0; attempt < m.cfg.QRPollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(m.cfg.QRPollInterval):
			}
		}

		status, err := sess.Client.GetStatus(ctx)
		if err != nil {
			return nil, fmt.Errorf("status poll failed: %w", err)
		}

		switch status.State {
		case provider.StateAuthorized:
			// Already linked on a device; no QR to hand out.
			m.setState(id, models.StateAuthorized, true)
			return nil, nil
		case provider.StateScanQR:
			if status.QRCode == "" {
				continue
			}
			qr, err := m.renderQR(status.QRCode)
			if err != nil {
				return nil, err
			}
			return qr, nil
		}
	}

	return nil, ErrQRTimeout
}

func (m *Manager) renderQR(code string) (*models.QRCode, error) {
	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return nil, fmt.Errorf("failed to encode QR code image: %w", err)
	}

	if m.QRWriter != nil {
		qrterminal.GenerateHalfBlock(code, qrterminal.L, m.QRWriter)
	}

	return &models.QRCode{
		Data: base64.StdEncoding.EncodeToString(buf.Bytes()),
		Code: code,
	}, nil
}

// Authenticate polls the gateway until it reports authorized. Scanning
// happens out-of-band on the user's device, so the QR payload is not
// verified here; the gateway's state is the only source of truth. On
// success the session metadata is snapshotted to disk. A terminal
// not_authorized/failed state returns false without error; exhausting
// the ceiling returns ErrAuthTimeout.
func (m *Manager) Authenticate(ctx context.Context, id, qrPayload string) (bool, error) {
	sess, err := m.lookup(id)
	if err != nil {
		return false, err
	}

	for attempt := 0; attempt < m.cfg.AuthPollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(m.cfg.AuthPollInterval):
			}
		}

		status, err := sess.Client.GetStatus(ctx)
		if err != nil {
			return false, fmt.Errorf("status poll failed: %w", err)
		}

		switch status.State {
		case provider.StateAuthorized:
			meta := models.SessionMeta{
				Token:        status.Token,
				AuthorizedAt: time.Now().UTC(),
				State:        string(models.StateAuthorized),
			}
			m.mu.Lock()
			sess.Authenticated = true
			sess.State = models.StateAuthorized
			sess.Meta = meta
			m.mu.Unlock()

			// The in-memory session stays authenticated even when the
			// snapshot cannot be written; only restore is affected.
			if err := m.saveMeta(id, meta); err != nil {
				return true, err
			}
			log.Printf("session %s authenticated", id)
			return true, nil
		case provider.StateNotAuthorized, provider.StateFailed:
			m.setState(id, models.StateFailed, false)
			return false, nil
		}
	}

	return false, ErrAuthTimeout
}

func (m *Manager) saveMeta(id string, meta models.SessionMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode session metadata: %w", err)
	}
	if err := os.WriteFile(m.sessionFile(id), data, 0o600); err != nil {
		return fmt.Errorf("failed to persist session %s: %w", id, err)
	}
	return nil
}

// Logout invokes the gateway logout, removes the persisted metadata and
// drops the session from the store.
func (m *Manager) Logout(ctx context.Context, id string) error {
	sess, err := m.lookup(id)
	if err != nil {
		return err
	}

	if err := sess.Client.Logout(ctx); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	if err := os.Remove(m.sessionFile(id)); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to remove session file for %s: %v", id, err)
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	log.Printf("session %s logged out", id)
	return nil
}

// Restore rebuilds a session from its persisted metadata. It returns
// false without error when there is nothing to restore or the gateway no
// longer reports the session authorized; in the latter case the stale
// file is kept so the caller can re-authenticate under the same id.
func (m *Manager) Restore(ctx context.Context, id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}

	data, err := os.ReadFile(m.sessionFile(id))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read session file: %w", err)
	}

	var meta models.SessionMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		log.Printf("corrupt session file for %s: %v", id, err)
		return false, nil
	}

	client, err := m.newClient()
	if err != nil {
		return false, fmt.Errorf("failed to initialize client for %s: %w", id, err)
	}

	status, err := client.GetStatus(ctx)
	if err != nil {
		return false, fmt.Errorf("status check failed: %w", err)
	}
	if status.State != provider.StateAuthorized {
		log.Printf("session %s is no longer authorized on the gateway", id)
		return false, nil
	}

	m.mu.Lock()
	m.sessions[id] = &Session{
		ID:            id,
		State:         models.StateAuthorized,
		Authenticated: true,
		Meta:          meta,
		Client:        client,
	}
	m.mu.Unlock()

	log.Printf("session %s restored", id)
	return true, nil
}

// CheckStatus returns the live gateway status and refreshes the cached
// session state as a side effect.
func (m *Manager) CheckStatus(ctx context.Context, id string) (provider.Status, error) {
	sess, err := m.lookup(id)
	if err != nil {
		return provider.Status{}, err
	}

	status, err := sess.Client.GetStatus(ctx)
	if err != nil {
		return provider.Status{}, fmt.Errorf("status check failed: %w", err)
	}

	state := models.StateDisconnected
	authenticated := false
	switch status.State {
	case provider.StateStarting, provider.StateScanQR:
		state = models.StateStarting
	case provider.StateAuthorized:
		state = models.StateAuthorized
		authenticated = true
	case provider.StateFailed, provider.StateNotAuthorized:
		state = models.StateFailed
	}
	m.setState(id, state, authenticated)

	return status, nil
}

// IsAuthenticated reports whether id names an authenticated session.
// Unknown ids are simply not authenticated.
func (m *Manager) IsAuthenticated(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	return ok && sess.Authenticated
}

// GetClient returns the gateway client for id, or nil when unknown.
func (m *Manager) GetClient(id string) provider.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[id]; ok {
		return sess.Client
	}
	return nil
}

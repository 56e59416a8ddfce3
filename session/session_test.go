package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/wabridge/whatsapp-mcp/config"
	"github.com/wabridge/whatsapp-mcp/models"
	"github.com/wabridge/whatsapp-mcp/provider"
)

// fakeClient is a scripted gateway client. GetStatus walks through
// statuses and then keeps returning the last one.
type fakeClient struct {
	mu          sync.Mutex
	statuses    []provider.Status
	statusCalls int
	started     bool
	loggedOut   bool
}

func (f *fakeClient) StartSession(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakeClient) GetStatus(ctx context.Context) (provider.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if len(f.statuses) == 0 {
		return provider.Status{State: provider.StateStarting}, nil
	}
	idx := f.statusCalls - 1
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	return f.statuses[idx], nil
}

func (f *fakeClient) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = true
	return nil
}

func (f *fakeClient) SendMessage(ctx context.Context, payload map[string]any) (map[string]any, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) GetChats(ctx context.Context) ([]models.Chat, error) { return nil, nil }

func (f *fakeClient) GetMessages(ctx context.Context, chatID string, limit int, beforeID string) ([]models.Message, error) {
	return nil, nil
}

func (f *fakeClient) CreateGroup(ctx context.Context, name string, participants []string) (models.Group, error) {
	return models.Group{}, nil
}

func (f *fakeClient) GetGroupParticipants(ctx context.Context, groupID string) ([]models.Participant, error) {
	return nil, nil
}

func (f *fakeClient) AddParticipant(ctx context.Context, groupID, participantID string) error {
	return nil
}

func (f *fakeClient) RemoveParticipant(ctx context.Context, groupID, participantID string) error {
	return nil
}

func (f *fakeClient) SetGroupName(ctx context.Context, groupID, name string) error { return nil }

func (f *fakeClient) SetGroupDescription(ctx context.Context, groupID, description string) error {
	return nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		SessionDir:       t.TempDir(),
		InstanceID:       "instance-1",
		APIToken:         "token-1",
		QRPollAttempts:   20,
		QRPollInterval:   0,
		AuthPollAttempts: 30,
		AuthPollInterval: 0,
	}
}

func newTestManager(t *testing.T, cfg config.Config, client *fakeClient) *Manager {
	t.Helper()
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m.SetClientFactory(func() (provider.Client, error) {
		return client, nil
	})
	return m
}

func TestCreateRejectsDuplicate(t *testing.T) {
	m := newTestManager(t, testConfig(t), &fakeClient{})
	ctx := context.Background()

	if err := m.Create(ctx, "s1"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := m.Create(ctx, "s1")
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("second create: got %v, want ErrAlreadyExists", err)
	}
	if m.GetClient("s1") == nil {
		t.Fatal("rejected create must not remove the existing session")
	}
}

func TestCreateRejectsBadID(t *testing.T) {
	m := newTestManager(t, testConfig(t), &fakeClient{})
	for _, id := range []string{"", "a/b", `a\b`} {
		if err := m.Create(context.Background(), id); err == nil {
			t.Errorf("Create(%q) succeeded, want error", id)
		}
	}
}

func TestCreateMissingCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.InstanceID = ""
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	err = m.Create(context.Background(), "s1")
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("got %v, want ErrMissingCredentials", err)
	}
	if m.GetClient("s1") != nil {
		t.Fatal("failed create must not register a session")
	}
}

func TestGenerateQRUnknownSession(t *testing.T) {
	m := newTestManager(t, testConfig(t), &fakeClient{})
	_, err := m.GenerateQR(context.Background(), "ghost")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("got %v, want ErrSessionNotFound", err)
	}
}

func TestGenerateQRAlreadyAuthorized(t *testing.T) {
	client := &fakeClient{statuses: []provider.Status{{State: provider.StateAuthorized}}}
	m := newTestManager(t, testConfig(t), client)
	ctx := context.Background()

	if err := m.Create(ctx, "s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	qr, err := m.GenerateQR(ctx, "s1")
	if err != nil {
		t.Fatalf("GenerateQR: %v", err)
	}
	if qr != nil {
		t.Fatal("already-authorized session must not produce a QR code")
	}
	if !m.IsAuthenticated("s1") {
		t.Fatal("session should be marked authenticated")
	}
	if client.statusCalls != 1 {
		t.Fatalf("polled %d times, want 1", client.statusCalls)
	}
}

func TestGenerateQRReturnsCode(t *testing.T) {
	client := &fakeClient{statuses: []provider.Status{
		{State: provider.StateStarting},
		{State: provider.StateScanQR, QRCode: "ABC123"},
	}}
	m := newTestManager(t, testConfig(t), client)
	ctx := context.Background()

	if err := m.Create(ctx, "s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	qr, err := m.GenerateQR(ctx, "s1")
	if err != nil {
		t.Fatalf("GenerateQR: %v", err)
	}
	if qr == nil {
		t.Fatal("expected a QR code")
	}
	if qr.Code != "ABC123" {
		t.Fatalf("qr.Code = %q, want ABC123", qr.Code)
	}

	img, err := base64.StdEncoding.DecodeString(qr.Data)
	if err != nil {
		t.Fatalf("qr.Data is not valid base64: %v", err)
	}
	if len(img) < 8 || string(img[1:4]) != "PNG" {
		t.Fatal("qr.Data does not decode to a PNG image")
	}
	if !client.started {
		t.Fatal("GenerateQR must start the gateway session")
	}
	if m.IsAuthenticated("s1") {
		t.Fatal("handing out a QR must not mark the session authenticated")
	}
}

func TestGenerateQRTimeoutExactCeiling(t *testing.T) {
	cfg := testConfig(t)
	cfg.QRPollAttempts = 5

	client := &fakeClient{} // never leaves starting
	m := newTestManager(t, cfg, client)
	ctx := context.Background()

	if err := m.Create(ctx, "s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := m.GenerateQR(ctx, "s1")
	if !errors.Is(err, ErrQRTimeout) {
		t.Fatalf("got %v, want ErrQRTimeout", err)
	}
	if client.statusCalls != cfg.QRPollAttempts {
		t.Fatalf("polled %d times, want exactly %d", client.statusCalls, cfg.QRPollAttempts)
	}
}

func TestGenerateQRCancellable(t *testing.T) {
	cfg := testConfig(t)
	cfg.QRPollInterval = time.Second // cancellation must win over the wait

	client := &fakeClient{}
	m := newTestManager(t, cfg, client)

	if err := m.Create(context.Background(), "s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.GenerateQR(ctx, "s1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestAuthenticateSuccessPersists(t *testing.T) {
	cfg := testConfig(t)
	client := &fakeClient{statuses: []provider.Status{
		{State: provider.StateScanQR, QRCode: "ABC123"},
		{State: provider.StateAuthorized, Token: "tok-99"},
	}}
	m := newTestManager(t, cfg, client)
	ctx := context.Background()

	if err := m.Create(ctx, "s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	ok, err := m.Authenticate(ctx, "s1", "ABC123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !ok {
		t.Fatal("Authenticate returned false")
	}
	if !m.IsAuthenticated("s1") {
		t.Fatal("session should be authenticated")
	}

	data, err := os.ReadFile(filepath.Join(cfg.SessionDir, "s1.json"))
	if err != nil {
		t.Fatalf("session file not written: %v", err)
	}
	var meta models.SessionMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("session file is not valid JSON: %v", err)
	}
	if meta.Token != "tok-99" {
		t.Fatalf("persisted token = %q, want tok-99", meta.Token)
	}
	if meta.State != string(models.StateAuthorized) {
		t.Fatalf("persisted state = %q, want authorized", meta.State)
	}
	if meta.AuthorizedAt.IsZero() {
		t.Fatal("persisted authorized_at is zero")
	}
}

func TestAuthenticateDenied(t *testing.T) {
	client := &fakeClient{statuses: []provider.Status{{State: provider.StateNotAuthorized}}}
	m := newTestManager(t, testConfig(t), client)
	ctx := context.Background()

	if err := m.Create(ctx, "s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	ok, err := m.Authenticate(ctx, "s1", "ABC123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if ok {
		t.Fatal("denied authentication must return false")
	}
	if m.IsAuthenticated("s1") {
		t.Fatal("denied session must not be authenticated")
	}
}

func TestAuthenticateTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.AuthPollAttempts = 3

	client := &fakeClient{}
	m := newTestManager(t, cfg, client)
	ctx := context.Background()

	if err := m.Create(ctx, "s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := m.Authenticate(ctx, "s1", "ABC123")
	if !errors.Is(err, ErrAuthTimeout) {
		t.Fatalf("got %v, want ErrAuthTimeout", err)
	}
	if client.statusCalls != cfg.AuthPollAttempts {
		t.Fatalf("polled %d times, want exactly %d", client.statusCalls, cfg.AuthPollAttempts)
	}
}

func TestLogoutRemovesSessionAndFile(t *testing.T) {
	cfg := testConfig(t)
	client := &fakeClient{statuses: []provider.Status{{State: provider.StateAuthorized, Token: "tok"}}}
	m := newTestManager(t, cfg, client)
	ctx := context.Background()

	if err := m.Create(ctx, "s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.Authenticate(ctx, "s1", "ABC123"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if err := m.Logout(ctx, "s1"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if !client.loggedOut {
		t.Fatal("gateway logout was not invoked")
	}
	if m.GetClient("s1") != nil {
		t.Fatal("session still in store after logout")
	}
	if _, err := os.Stat(filepath.Join(cfg.SessionDir, "s1.json")); !os.IsNotExist(err) {
		t.Fatal("session file still exists after logout")
	}

	_, err := m.GenerateQR(ctx, "s1")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("post-logout GenerateQR: got %v, want ErrSessionNotFound", err)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	client := &fakeClient{statuses: []provider.Status{{State: provider.StateAuthorized, Token: "tok-7"}}}
	m := newTestManager(t, cfg, client)
	ctx := context.Background()

	if err := m.Create(ctx, "s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.Authenticate(ctx, "s1", "ABC123"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	// A fresh manager over the same directory, as after a restart.
	restoredClient := &fakeClient{statuses: []provider.Status{{State: provider.StateAuthorized}}}
	m2 := newTestManager(t, cfg, restoredClient)

	ok, err := m2.Restore(ctx, "s1")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !ok {
		t.Fatal("Restore returned false for a valid session")
	}
	if !m2.IsAuthenticated("s1") {
		t.Fatal("restored session should be authenticated")
	}
}

func TestRestoreFailsWhenNoLongerAuthorized(t *testing.T) {
	cfg := testConfig(t)
	client := &fakeClient{statuses: []provider.Status{{State: provider.StateAuthorized, Token: "tok"}}}
	m := newTestManager(t, cfg, client)
	ctx := context.Background()

	if err := m.Create(ctx, "s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.Authenticate(ctx, "s1", "ABC123"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	staleClient := &fakeClient{statuses: []provider.Status{{State: provider.StateNotAuthorized}}}
	m2 := newTestManager(t, cfg, staleClient)

	ok, err := m2.Restore(ctx, "s1")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if ok {
		t.Fatal("Restore must fail when the gateway no longer reports authorized")
	}
	if m2.IsAuthenticated("s1") {
		t.Fatal("failed restore must not register an authenticated session")
	}
	// The stale file stays so the caller can re-authenticate.
	if _, err := os.Stat(filepath.Join(cfg.SessionDir, "s1.json")); err != nil {
		t.Fatalf("stale session file should be kept: %v", err)
	}
}

func TestRestoreRejectsBadID(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(t)
	cfg.SessionDir = filepath.Join(root, "sessions")

	// A session file sitting outside the session directory must stay out
	// of reach for path-shaped ids.
	outside := filepath.Join(root, "outside.json")
	meta, _ := json.Marshal(models.SessionMeta{Token: "tok", State: string(models.StateAuthorized)})
	if err := os.WriteFile(outside, meta, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	client := &fakeClient{statuses: []provider.Status{{State: provider.StateAuthorized}}}
	m := newTestManager(t, cfg, client)
	ctx := context.Background()

	for _, id := range []string{"../outside", `..\outside`, ""} {
		ok, err := m.Restore(ctx, id)
		if err == nil {
			t.Errorf("Restore(%q) succeeded, want error", id)
		}
		if ok {
			t.Errorf("Restore(%q) returned true", id)
		}
		if m.GetClient(id) != nil {
			t.Errorf("Restore(%q) registered a session", id)
		}
	}

	if _, err := os.Stat(outside); err != nil {
		t.Fatalf("file outside the session directory was touched: %v", err)
	}
}

func TestRestoreNoFile(t *testing.T) {
	m := newTestManager(t, testConfig(t), &fakeClient{})
	ok, err := m.Restore(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if ok {
		t.Fatal("Restore must return false without a persisted file")
	}
}

func TestCheckStatusRefreshesState(t *testing.T) {
	client := &fakeClient{statuses: []provider.Status{{State: provider.StateAuthorized, Token: "tok"}}}
	m := newTestManager(t, testConfig(t), client)
	ctx := context.Background()

	if err := m.Create(ctx, "s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	status, err := m.CheckStatus(ctx, "s1")
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if status.State != provider.StateAuthorized {
		t.Fatalf("status.State = %q, want authorized", status.State)
	}
	if !m.IsAuthenticated("s1") {
		t.Fatal("CheckStatus should refresh the authentication flag")
	}

	_, err = m.CheckStatus(ctx, "ghost")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("got %v, want ErrSessionNotFound", err)
	}
}

func TestLookupsUseSentinels(t *testing.T) {
	m := newTestManager(t, testConfig(t), &fakeClient{})
	if m.IsAuthenticated("ghost") {
		t.Fatal("unknown session must not be authenticated")
	}
	if m.GetClient("ghost") != nil {
		t.Fatal("unknown session must yield a nil client")
	}
}

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wabridge/whatsapp-mcp/models"
)

// httpClient implements Client against the gateway's REST API. All calls
// are JSON over HTTP with the API token in a header; any non-2xx answer
// or transport failure surfaces as a wrapped provider error.
type httpClient struct {
	baseURL    string
	instanceID string
	apiToken   string
	http       *http.Client
}

// NewHTTPClient creates a gateway client for one instance.
func NewHTTPClient(baseURL, instanceID, apiToken string) Client {
	return &httpClient{
		baseURL:    baseURL,
		instanceID: instanceID,
		apiToken:   apiToken,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *httpClient) endpoint(op string) string {
	return fmt.Sprintf("%s/instance/%s/%s", c.baseURL, c.instanceID, op)
}

func (c *httpClient) do(ctx context.Context, method, op string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("provider: failed to encode %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(op), reqBody)
	if err != nil {
		return fmt.Errorf("provider: failed to build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("provider: %s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("provider: %s returned %d: %s", op, resp.StatusCode, bytes.TrimSpace(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("provider: failed to decode %s response: %w", op, err)
		}
	}
	return nil
}

func (c *httpClient) StartSession(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "session/start", nil, nil)
}

func (c *httpClient) GetStatus(ctx context.Context) (Status, error) {
	var status Status
	if err := c.do(ctx, http.MethodGet, "session/status", nil, &status); err != nil {
		return Status{}, err
	}
	return status, nil
}

func (c *httpClient) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "session/logout", nil, nil)
}

func (c *httpClient) SendMessage(ctx context.Context, payload map[string]any) (map[string]any, error) {
	var resp map[string]any
	if err := c.do(ctx, http.MethodPost, "messages", payload, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *httpClient) GetChats(ctx context.Context) ([]models.Chat, error) {
	var resp struct {
		Chats []models.Chat `json:"chats"`
	}
	if err := c.do(ctx, http.MethodGet, "chats", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Chats, nil
}

func (c *httpClient) GetMessages(ctx context.Context, chatID string, limit int, beforeID string) ([]models.Message, error) {
	params := url.Values{}
	params.Set("chat", chatID)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if beforeID != "" {
		params.Set("before", beforeID)
	}

	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "messages?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *httpClient) CreateGroup(ctx context.Context, name string, participants []string) (models.Group, error) {
	body := map[string]any{
		"name":         name,
		"participants": participants,
	}
	var group models.Group
	if err := c.do(ctx, http.MethodPost, "groups", body, &group); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

func (c *httpClient) GetGroupParticipants(ctx context.Context, groupID string) ([]models.Participant, error) {
	var resp struct {
		Participants []models.Participant `json:"participants"`
	}
	op := fmt.Sprintf("groups/%s/participants", url.PathEscape(groupID))
	if err := c.do(ctx, http.MethodGet, op, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Participants, nil
}

func (c *httpClient) AddParticipant(ctx context.Context, groupID, participantID string) error {
	op := fmt.Sprintf("groups/%s/participants", url.PathEscape(groupID))
	return c.do(ctx, http.MethodPost, op, map[string]any{"participant": participantID}, nil)
}

func (c *httpClient) RemoveParticipant(ctx context.Context, groupID, participantID string) error {
	op := fmt.Sprintf("groups/%s/participants/%s", url.PathEscape(groupID), url.PathEscape(participantID))
	return c.do(ctx, http.MethodDelete, op, nil, nil)
}

func (c *httpClient) SetGroupName(ctx context.Context, groupID, name string) error {
	op := fmt.Sprintf("groups/%s/name", url.PathEscape(groupID))
	return c.do(ctx, http.MethodPut, op, map[string]any{"name": name}, nil)
}

func (c *httpClient) SetGroupDescription(ctx context.Context, groupID, description string) error {
	op := fmt.Sprintf("groups/%s/description", url.PathEscape(groupID))
	return c.do(ctx, http.MethodPut, op, map[string]any{"description": description}, nil)
}

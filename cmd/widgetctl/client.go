package main

import (
	"bytes"
	"chatwidget-gateway/internal/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// gatewayClient speaks the widget HTTP API on behalf of the terminal user.
type gatewayClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func newGatewayClient(baseURL string, timeout time.Duration) *gatewayClient {
	return &gatewayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *gatewayClient) start(ctx context.Context, token string) (*models.Snapshot, error) {
	var resp models.SessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", models.CreateSessionRequest{Token: token}, &resp); err != nil {
		return nil, err
	}
	c.token = resp.Token
	return resp.Session, nil
}

func (c *gatewayClient) send(ctx context.Context, text string) (*models.Snapshot, error) {
	var snap models.Snapshot
	err := c.do(ctx, http.MethodPost, "/v1/session/messages", models.SendMessageRequest{Message: text}, &snap)
	return &snap, err
}

func (c *gatewayClient) updateBooking(ctx context.Context, req models.UpdateBookingRequest) (*models.Snapshot, error) {
	var snap models.Snapshot
	err := c.do(ctx, http.MethodPut, "/v1/session/booking", req, &snap)
	return &snap, err
}

func (c *gatewayClient) openBooking(ctx context.Context) (*models.Snapshot, error) {
	var snap models.Snapshot
	err := c.do(ctx, http.MethodPost, "/v1/session/booking/open", nil, &snap)
	return &snap, err
}

func (c *gatewayClient) submitBooking(ctx context.Context, dateTime string) (*models.Snapshot, error) {
	var snap models.Snapshot
	err := c.do(ctx, http.MethodPost, "/v1/session/booking", models.SubmitBookingRequest{DateTime: dateTime}, &snap)
	return &snap, err
}

func (c *gatewayClient) cancelBooking(ctx context.Context) (*models.Snapshot, error) {
	var snap models.Snapshot
	err := c.do(ctx, http.MethodDelete, "/v1/session/booking", nil, &snap)
	return &snap, err
}

func (c *gatewayClient) hubspotAuth(ctx context.Context) (string, error) {
	var link models.AuthLinkResponse
	err := c.do(ctx, http.MethodGet, "/v1/session/hubspot-auth", nil, &link)
	return link.URL, err
}

func (c *gatewayClient) end(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/v1/session", nil, nil)
}

func (c *gatewayClient) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var apiErr models.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// loadToken returns the saved session token, or "" when none was saved.
func loadToken(path string) (string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func saveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token+"\n"), 0o600)
}

func defaultTokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "chatwidget", "session-token")
}

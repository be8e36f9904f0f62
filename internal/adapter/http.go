package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

const userAgent = "Notification-Engine/1.0"

// postJSON sends payload to the channel endpoint. Credentials "token" and
// "header:<Name>" become request headers.
func postJSON(ctx context.Context, client *http.Client, channel *domain.Channel, payload any) error {
	if channel.Config.Endpoint == "" {
		return fmt.Errorf("channel %s has no endpoint", channel.ID)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, channel.Config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	setCredentialHeaders(req, channel.Config.Credentials)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned non-2xx status: %d", resp.StatusCode)
	}
	return nil
}

// probeEndpoint treats any response below 500 as reachable
func probeEndpoint(ctx context.Context, client *http.Client, channel *domain.Channel) error {
	if channel.Config.Endpoint == "" {
		return fmt.Errorf("channel %s has no endpoint", channel.ID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, channel.Config.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("endpoint unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("endpoint unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func setCredentialHeaders(req *http.Request, creds map[string]string) {
	for key, value := range creds {
		switch {
		case key == "token":
			req.Header.Set("Authorization", "Bearer "+value)
		case len(key) > len("header:") && key[:len("header:")] == "header:":
			req.Header.Set(key[len("header:"):], value)
		}
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

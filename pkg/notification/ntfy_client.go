package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultNtfyServer is the public ntfy instance.
const DefaultNtfyServer = "https://ntfy.sh"

// NtfyClient publishes notifications to an ntfy topic.
type NtfyClient struct {
	server     string
	topic      string
	httpClient *http.Client
}

// Ensure NtfyClient implements Notifier
var _ Notifier = (*NtfyClient)(nil)

// NewNtfyClient creates a client for topic on server.
func NewNtfyClient(server, topic string) *NtfyClient {
	if server == "" {
		server = DefaultNtfyServer
	}
	return &NtfyClient{
		server: server,
		topic:  topic,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type ntfyMessage struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title,omitempty"`
	Message  string   `json:"message"`
	Tags     []string `json:"tags,omitempty"`
	Priority int      `json:"priority,omitempty"`
}

// Send publishes a notification using ntfy's JSON API.
func (c *NtfyClient) Send(n Notification) error {
	msg := ntfyMessage{
		Topic:    c.topic,
		Title:    n.Title,
		Message:  n.Message,
		Priority: n.Priority,
	}
	if n.State != "" {
		msg.Tags = []string{n.State}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.server, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ntfy returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	return nil
}

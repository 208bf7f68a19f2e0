// Package notify provides a chat webhook client for season announcements.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ecoloop/recycle-league/internal/config"
	"github.com/ecoloop/recycle-league/pkg/logger"
)

// Client posts notifications to a chat webhook.
type Client struct {
	webhookURL string
	channel    string
	enabled    bool
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a new webhook client.
func NewClient(cfg *config.NotifyConfig, log *logger.Logger) *Client {
	return &Client{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		enabled:    cfg.Enabled,
		httpClient: http.DefaultClient,
		log:        log,
	}
}

// Message represents a webhook message payload.
type Message struct {
	Channel  string `json:"channel,omitempty"`
	Username string `json:"username,omitempty"`
	Text     string `json:"text,omitempty"`
}

// SendMessage posts a message to the webhook.
func (c *Client) SendMessage(msg *Message) error {
	if !c.enabled {
		c.log.Debug().Msg("Notifications are disabled, skipping message")
		return nil
	}

	if msg.Channel == "" {
		msg.Channel = c.channel
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// SeasonMove is one line of a season-close announcement.
type SeasonMove struct {
	Username string
	Movement string
}

// SendSeasonSummary announces the outcome of a closed session.
func (c *Client) SendSeasonSummary(leagueName string, moves []SeasonMove) error {
	if len(moves) == 0 {
		return nil
	}

	text := fmt.Sprintf("**%s season closed**\n", leagueName)
	for _, m := range moves {
		text += fmt.Sprintf("- %s: %s\n", m.Username, m.Movement)
	}

	return c.SendMessage(&Message{
		Username: "recycle-league",
		Text:     text,
	})
}

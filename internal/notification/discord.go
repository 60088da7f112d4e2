package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"market-scannerv1/internal/model"
)

// Embed colors per alert direction.
const (
	colorBull    = 0x2ecc71
	colorBear    = 0xe74c3c
	colorNeutral = 0xf1c40f
)

// DiscordNotifier posts alerts to a Discord webhook as embeds.
type DiscordNotifier struct {
	url    string
	client *http.Client
}

// NewDiscordNotifier creates a Discord webhook notifier.
func NewDiscordNotifier(url string) *DiscordNotifier {
	return &DiscordNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

func (d *DiscordNotifier) Send(ctx context.Context, n model.Notification) error {
	payload := map[string]any{
		"embeds": []discordEmbed{{
			Title:       fmt.Sprintf("%s · %s", n.Symbol, n.Timeframe),
			Description: n.Body,
			Color:       embedColor(n.Type),
			Timestamp:   time.UnixMilli(n.Timestamp).UTC().Format(time.RFC3339),
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func embedColor(typ model.AlertType) int {
	switch typ {
	case model.AlertTrailBullFlip, model.AlertSTBullFlip, model.AlertChannelBuy, model.AlertRSIOversold:
		return colorBull
	case model.AlertTrailBearFlip, model.AlertSTBearFlip, model.AlertChannelSell, model.AlertChannelSLHit, model.AlertRSIOverbought:
		return colorBear
	default:
		return colorNeutral
	}
}

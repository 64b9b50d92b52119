package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pricewatch/price-collector/internal/metrics"
)

const maxBatchSize = 10

// WebhookNotifier implements Notifier by POSTing JSON to a webhook URL.
type WebhookNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(webhookURL string, opts ...WebhookOption) *WebhookNotifier {
	w := &WebhookNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WebhookOption configures a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *WebhookNotifier) {
		w.client = c
	}
}

// webhookPayload is the JSON body posted to the webhook.
type webhookPayload struct {
	Event  string         `json:"event"`
	Alerts []webhookAlert `json:"alerts"`
}

type webhookAlert struct {
	AlertID             int64    `json:"alert_id"`
	Store               string   `json:"store"`
	ItemID              string   `json:"item_id"`
	ItemTitle           string   `json:"item_title,omitempty"`
	ItemURL             string   `json:"item_url,omitempty"`
	ImageURL            string   `json:"image_url,omitempty"`
	CurrentPrice        float64  `json:"current_price"`
	Currency            string   `json:"currency"`
	TargetPrice         *float64 `json:"target_price,omitempty"`
	PriceDropPercentage *float64 `json:"price_drop_percentage,omitempty"`
	TriggeredBy         string   `json:"triggered_by"`
	TriggeredAt         string   `json:"triggered_at,omitempty"`
}

// SendAlert posts a single triggered alert.
func (w *WebhookNotifier) SendAlert(ctx context.Context, alert *AlertPayload) error {
	payload := webhookPayload{
		Event:  "price_alert",
		Alerts: []webhookAlert{buildWebhookAlert(alert)},
	}
	return w.post(ctx, payload)
}

// SendBatchAlert posts multiple triggered alerts in one request. Only the
// first maxBatchSize alerts are included.
func (w *WebhookNotifier) SendBatchAlert(ctx context.Context, alerts []AlertPayload) error {
	if len(alerts) == 0 {
		return nil
	}

	limit := min(len(alerts), maxBatchSize)
	out := make([]webhookAlert, 0, limit)
	for i := range limit {
		out = append(out, buildWebhookAlert(&alerts[i]))
	}

	payload := webhookPayload{
		Event:  "price_alert_batch",
		Alerts: out,
	}
	return w.post(ctx, payload)
}

func buildWebhookAlert(alert *AlertPayload) webhookAlert {
	out := webhookAlert{
		AlertID:             alert.Alert.ID,
		Store:               string(alert.Alert.Store),
		ItemID:              alert.Alert.ItemID,
		ItemTitle:           alert.ItemTitle,
		ItemURL:             alert.ItemURL,
		ImageURL:            alert.ImageURL,
		CurrentPrice:        alert.CurrentPrice,
		Currency:            alert.Currency,
		TargetPrice:         alert.Alert.TargetPrice,
		PriceDropPercentage: alert.Alert.PriceDropPercentage,
		TriggeredBy:         alert.TriggeredBy,
	}
	if alert.Alert.TriggeredAt != nil {
		out.TriggeredAt = alert.Alert.TriggeredAt.UTC().Format(time.RFC3339)
	}
	return out
}

func (w *WebhookNotifier) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		w.webhookURL,
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		metrics.NotificationFailuresTotal.Inc()
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.NotificationFailuresTotal.Inc()
		return fmt.Errorf("webhook rate limited (429)")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.NotificationFailuresTotal.Inc()
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("webhook returned %d (body unreadable)", resp.StatusCode)
		}
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, respBody)
	}

	return nil
}

package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/omnisent/sensorfleet/internal/util"
)

// webhookTimeout bounds a single webhook delivery attempt.
const webhookTimeout = 10 * time.Second

// AppName identifies the simulator in outbound notifications.
const AppName = "Omnisent Sensor Fleet"

// timestampUTC returns the current UTC time in RFC3339 form.
func timestampUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// WebhookPayload is the JSON body posted to the configured webhook.
type WebhookPayload struct {
	Event     string `json:"event"`
	Device    string `json:"device"`
	Streak    int    `json:"streak,omitempty"`
	Timestamp string `json:"timestamp"`
	App       string `json:"app"`
}

// SendFailureWebhook posts a failure streak alert to the webhook URL.
func SendFailureWebhook(url, deviceID string, streak int) error {
	return sendWebhook(url, WebhookPayload{
		Event:     "uplink_failing",
		Device:    deviceID,
		Streak:    streak,
		Timestamp: timestampUTC(),
		App:       AppName,
	})
}

// SendRecoveryWebhook posts a recovery notification to the webhook URL.
func SendRecoveryWebhook(url, deviceID string) error {
	return sendWebhook(url, WebhookPayload{
		Event:     "uplink_recovered",
		Device:    deviceID,
		Timestamp: timestampUTC(),
		App:       AppName,
	})
}

// SendTestWebhook posts a test payload so operators can verify delivery.
func SendTestWebhook(url string) error {
	return sendWebhook(url, WebhookPayload{
		Event:     "test",
		Device:    "test-device",
		Timestamp: timestampUTC(),
		App:       AppName,
	})
}

func sendWebhook(url string, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return util.WrapError("marshal webhook payload", err)
	}

	client := &http.Client{Timeout: webhookTimeout}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return util.WrapError("post webhook", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// Package notify delivers alerts when a device's uplink keeps failing.
// Three channels are supported: webhook, log file and Microsoft Graph
// email. Alerts fire once per failure streak; a recovery notification is
// sent when the device transmits successfully again.
package notify

import (
	"fmt"
	"sync"

	"github.com/omnisent/sensorfleet/internal/config"
	"github.com/omnisent/sensorfleet/internal/util"
)

// FailureNotifier tracks per-device failure streaks and triggers
// notifications when a streak reaches the configured threshold.
type FailureNotifier struct {
	cfg *config.Config

	// mu protects the notification state below
	mu sync.Mutex

	// alerted records which devices currently have an active alert
	alerted map[string]bool

	// Cached Graph client for email notifications
	graphClient *GraphClient
}

// NewFailureNotifier returns a FailureNotifier using the given config.
func NewFailureNotifier(cfg *config.Config) *FailureNotifier {
	return &FailureNotifier{
		cfg:     cfg,
		alerted: make(map[string]bool),
	}
}

// HandleOutcome processes one cycle result. streak is the device's
// current consecutive failure count (zero after a success).
func (n *FailureNotifier) HandleOutcome(deviceID string, transmitted bool, streak int) {
	snap := n.cfg.Snapshot()

	if transmitted {
		n.mu.Lock()
		wasAlerted := n.alerted[deviceID]
		delete(n.alerted, deviceID)
		n.mu.Unlock()

		if wasAlerted {
			n.sendRecovery(&snap, deviceID)
		}
		return
	}

	if streak < snap.FailureStreak {
		return
	}

	n.mu.Lock()
	shouldAlert := !n.alerted[deviceID]
	if shouldAlert {
		n.alerted[deviceID] = true
	}
	n.mu.Unlock()

	if shouldAlert {
		n.sendAlert(&snap, deviceID, streak)
	}
}

// Reset clears all alert state, for a fresh fleet run.
func (n *FailureNotifier) Reset() {
	n.mu.Lock()
	n.alerted = make(map[string]bool)
	n.mu.Unlock()
}

// sendAlert fires all configured channels for a failure streak.
func (n *FailureNotifier) sendAlert(snap *config.Snapshot, deviceID string, streak int) {
	if snap.HasWebhook() {
		go util.LogNotifyResult(
			func() error { return SendFailureWebhook(snap.WebhookURL, deviceID, streak) },
			"failure webhook",
		)
	}
	if snap.HasLogPath() {
		go util.LogNotifyResult(
			func() error { return LogFailureStreak(snap.LogPath, deviceID, streak) },
			"failure log",
		)
	}
	if snap.HasGraph() {
		go util.LogNotifyResult(
			func() error { return n.sendAlertEmail(snap, deviceID, streak) },
			"failure email",
		)
	}
}

// sendRecovery fires all configured channels when a device recovers.
func (n *FailureNotifier) sendRecovery(snap *config.Snapshot, deviceID string) {
	if snap.HasWebhook() {
		go util.LogNotifyResult(
			func() error { return SendRecoveryWebhook(snap.WebhookURL, deviceID) },
			"recovery webhook",
		)
	}
	if snap.HasLogPath() {
		go util.LogNotifyResult(
			func() error { return LogRecovery(snap.LogPath, deviceID) },
			"recovery log",
		)
	}
	if snap.HasGraph() {
		go util.LogNotifyResult(
			func() error { return n.sendRecoveryEmail(snap, deviceID) },
			"recovery email",
		)
	}
}

// getOrCreateGraphClient returns the cached Graph client, creating it if needed.
func (n *FailureNotifier) getOrCreateGraphClient(cfg *GraphConfig) (*GraphClient, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.graphClient != nil {
		return n.graphClient, nil
	}

	client, err := NewGraphClient(cfg)
	if err != nil {
		return nil, err
	}
	n.graphClient = client
	return client, nil
}

// buildGraphConfig creates a GraphConfig from the config snapshot.
func buildGraphConfig(snap *config.Snapshot) *GraphConfig {
	return &GraphConfig{
		TenantID:     snap.GraphTenantID,
		ClientID:     snap.GraphClientID,
		ClientSecret: snap.GraphClientSecret,
		FromAddress:  snap.GraphFromAddress,
		Recipients:   snap.GraphRecipients,
	}
}

// sendEmail handles the common email sending infrastructure.
func (n *FailureNotifier) sendEmail(cfg *GraphConfig, subject, body string) error {
	client, err := n.getOrCreateGraphClient(cfg)
	if err != nil {
		return util.WrapError("create Graph client", err)
	}

	recipients := ParseRecipients(cfg.Recipients)
	if len(recipients) == 0 {
		return fmt.Errorf("no valid recipients")
	}

	if err := client.SendMail(recipients, subject, body); err != nil {
		return util.WrapError("send email via Graph", err)
	}

	return nil
}

// sendAlertEmail sends a failure streak alert email.
func (n *FailureNotifier) sendAlertEmail(snap *config.Snapshot, deviceID string, streak int) error {
	subject := "[ALERT] Uplink Failing - " + snap.FleetName
	body := fmt.Sprintf(
		"Device %s has failed to transmit %d cycles in a row.\n\n"+
			"Time: %s\n\n"+
			"Failed payloads are logged for retry; please check the channel.",
		deviceID, streak, util.HumanTime(),
	)
	return n.sendEmail(buildGraphConfig(snap), subject, body)
}

// sendRecoveryEmail sends a recovery email.
func (n *FailureNotifier) sendRecoveryEmail(snap *config.Snapshot, deviceID string) error {
	subject := "[OK] Uplink Recovered - " + snap.FleetName
	body := fmt.Sprintf(
		"Device %s transmitted successfully again.\n\n"+
			"Time: %s",
		deviceID, util.HumanTime(),
	)
	return n.sendEmail(buildGraphConfig(snap), subject, body)
}

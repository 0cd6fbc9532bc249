package main

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/omnisent/sensorfleet/internal/archive"
	"github.com/omnisent/sensorfleet/internal/cyclelog"
	"github.com/omnisent/sensorfleet/internal/notify"
	"github.com/omnisent/sensorfleet/internal/types"
)

// API response helpers

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// apiKeyAuth requires the configured API key via the X-API-Key header.
// When no key is configured the endpoint is open.
func (s *Server) apiKeyAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := s.config.Snapshot().APIKey
		if key != "" {
			provided := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				s.writeError(w, http.StatusUnauthorized, "Invalid or missing API key")
				return
			}
		}
		next(w, r)
	}
}

// handleAPIStatus returns the aggregate fleet status.
// GET /api/status
func (s *Server) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, struct {
		Fleet   types.FleetStatus `json:"fleet"`
		Version types.VersionInfo `json:"version"`
	}{
		Fleet:   s.fleet.Status(),
		Version: s.version.Info(),
	})
}

// handleAPIDevices returns per-device status keyed by device ID.
// GET /api/devices
func (s *Server) handleAPIDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, s.fleet.DeviceStatuses())
}

// handleAPIEvents returns recent cycle events, newest first.
// GET /api/events?limit=50&offset=0&device=sensor_001
func (s *Server) handleAPIEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := parseQueryInt(r, "limit", 50)
	offset := parseQueryInt(r, "offset", 0)
	device := r.URL.Query().Get("device")

	snap := s.config.Snapshot()
	events, hasMore, err := cyclelog.ReadLast(snap.EventLogPath, limit, offset, device)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to read event log: "+err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, struct {
		Events  []cyclelog.Event `json:"events"`
		HasMore bool             `json:"has_more"`
	}{
		Events:  events,
		HasMore: hasMore,
	})
}

// handleAPITestWebhook sends a test payload to the configured webhook.
// POST /api/notify/test
func (s *Server) handleAPITestWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	snap := s.config.Snapshot()
	if !snap.HasWebhook() {
		s.writeError(w, http.StatusBadRequest, "No webhook URL configured")
		return
	}

	if err := notify.SendTestWebhook(snap.WebhookURL); err != nil {
		s.writeError(w, http.StatusBadGateway, "Webhook test failed: "+err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAPITestS3 verifies connectivity to the archive's S3 bucket.
// POST /api/archive/test
func (s *Server) handleAPITestS3(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	snap := s.config.Snapshot()
	if err := archive.TestS3Connection(&snap.ArchiveS3); err != nil {
		s.writeError(w, http.StatusBadGateway, "S3 test failed: "+err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseQueryInt returns the named query parameter as an int, or fallback.
func parseQueryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

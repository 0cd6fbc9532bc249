// Package config provides application configuration management.
package config

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/omnisent/sensorfleet/internal/types"
	"github.com/omnisent/sensorfleet/internal/util"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultWebPort        = 8080
	DefaultFleetName      = "Omnisent Fleet"
	DefaultWorkers        = 4
	DefaultFailureStreak  = 3
	DefaultRetentionDays  = 30
	DefaultEventLogName   = "fleet-events.jsonl"
	DefaultArchiveDirName = "payload-archive"
)

// validate is the shared validator instance for configuration checks.
// JSON tag names are used in error messages instead of struct field names.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
}

// DeviceConfig holds the immutable identity and sampling parameters of one
// simulated device. Zero or negative rate and duration are accepted: such
// a device produces empty blocks rather than failing.
type DeviceConfig struct {
	ID          string `json:"id" validate:"omitempty,max=64"`         // Unique device identity
	SampleRate  int    `json:"sample_rate" validate:"lte=10000000"`    // Samples per second
	BitDepth    int    `json:"bit_depth" validate:"lte=64"`            // Amplitude resolution in bits
	DurationSec int    `json:"duration_sec" validate:"lte=3600"`       // Capture duration per cycle
	CooldownMs  int64  `json:"cooldown_ms" validate:"gte=0,lte=86400000"` // Delay between cycles
	Cycles      int    `json:"cycles" validate:"gte=0,lte=1000000"`    // Number of cycles to run
}

// Cooldown returns the configured cooldown as a duration.
func (d *DeviceConfig) Cooldown() time.Duration {
	return time.Duration(d.CooldownMs) * time.Millisecond
}

// FleetConfig holds the device list and cycle scheduling settings.
type FleetConfig struct {
	Name             string         `json:"name" validate:"omitempty,max=64"` // Display name used in notifications
	Devices          []DeviceConfig `json:"devices" validate:"dive"`          // Simulated devices
	Strategy         types.Strategy `json:"strategy"`                         // Cycle scheduling strategy
	Workers          int            `json:"workers" validate:"gte=0,lte=256"` // Worker count for parallel stages
	SuccessRate      float64        `json:"success_rate" validate:"gte=0,lte=1"` // Transmit success probability
	TransmitDelayMs  int64          `json:"transmit_delay_ms" validate:"gte=0,lte=60000"` // Simulated channel latency
}

// SystemConfig holds system-level settings.
type SystemConfig struct {
	Port   int    `json:"port" validate:"omitempty,gte=1,lte=65535"` // HTTP server port
	APIKey string `json:"api_key" validate:"omitempty,max=128"`      // API key for mutating endpoints
}

// WebhookConfig holds webhook notification settings.
type WebhookConfig struct {
	URL string `json:"url" validate:"omitempty,url,max=2048"` // Webhook URL for failure alerts
}

// LogConfig holds log file notification settings.
type LogConfig struct {
	Path string `json:"path" validate:"omitempty,max=4096"` // Log file path for failure events
}

// EmailConfig holds Microsoft Graph email notification settings.
type EmailConfig struct {
	TenantID     string `json:"tenant_id" validate:"omitempty,max=100"`      // Azure AD tenant ID
	ClientID     string `json:"client_id" validate:"omitempty,max=100"`      // App registration client ID
	ClientSecret string `json:"client_secret" validate:"omitempty,max=500"`  // App registration client secret
	FromAddress  string `json:"from_address" validate:"omitempty,max=254"`   // Shared mailbox sender address
	Recipients   string `json:"recipients" validate:"omitempty,max=1000"`    // Comma-separated recipient addresses
}

// NotificationsConfig holds all notification channel settings.
type NotificationsConfig struct {
	FailureStreak int           `json:"failure_streak" validate:"omitempty,gte=1,lte=1000"` // Consecutive failures before alerting
	Webhook       WebhookConfig `json:"webhook"`                                            // Webhook settings
	Log           LogConfig     `json:"log"`                                                // Log file settings
	Email         EmailConfig   `json:"email"`                                              // Email settings
}

// StorageMode determines where payload archives are written.
type StorageMode string

// Supported storage modes.
const (
	StorageLocal StorageMode = "local" // Write only to the local filesystem
	StorageS3    StorageMode = "s3"    // Upload only to S3
	StorageBoth  StorageMode = "both"  // Write locally AND upload to S3
)

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint        string `json:"endpoint,omitempty" validate:"omitempty,url"` // Custom S3 endpoint (empty for AWS)
	Bucket          string `json:"bucket,omitempty" validate:"omitempty,max=63"` // S3 bucket name
	AccessKeyID     string `json:"access_key_id,omitempty"`                      // Access key ID
	SecretAccessKey string `json:"secret_access_key,omitempty"`                  // Secret access key
}

// IsConfigured returns true if S3 settings are complete.
func (c *S3Config) IsConfigured() bool {
	return c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// ArchiveConfig holds payload archive settings.
type ArchiveConfig struct {
	Enabled       bool        `json:"enabled"`                                        // Whether payloads are archived
	StorageMode   StorageMode `json:"storage_mode" validate:"omitempty,oneof=local s3 both"` // Where archives go
	LocalPath     string      `json:"local_path" validate:"omitempty,max=4096"`       // Local archive directory
	RetentionDays int         `json:"retention_days" validate:"omitempty,gte=1,lte=3650"` // Days to keep archive files
	S3            S3Config    `json:"s3"`                                             // S3 settings for s3/both modes
}

// EventLogConfig holds the cycle event log settings.
type EventLogConfig struct {
	Path string `json:"path" validate:"omitempty,max=4096"` // JSONL event log path
}

// Config holds all application configuration. It is safe for concurrent use.
type Config struct {
	Fleet         FleetConfig         `json:"fleet"`
	System        SystemConfig        `json:"system"`
	Notifications NotificationsConfig `json:"notifications"`
	Archive       ArchiveConfig       `json:"archive"`
	EventLog      EventLogConfig      `json:"event_log"`

	mu       sync.RWMutex
	filePath string
}

// New creates a new Config with default values.
func New(filePath string) *Config {
	return &Config{
		Fleet: FleetConfig{
			Name:        DefaultFleetName,
			Devices:     []DeviceConfig{},
			Strategy:    types.StrategyStaged,
			Workers:     DefaultWorkers,
			SuccessRate: types.DefaultSuccessRate,
		},
		System: SystemConfig{
			Port: DefaultWebPort,
		},
		Notifications: NotificationsConfig{
			FailureStreak: DefaultFailureStreak,
		},
		Archive: ArchiveConfig{
			StorageMode:   StorageLocal,
			RetentionDays: DefaultRetentionDays,
		},
		filePath: filePath,
	}
}

// Load reads config from file, creating a default if none exists.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		c.applyDefaults()
		return c.saveLocked()
	}
	if err != nil {
		return util.WrapError("read config", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return util.WrapError("parse config", err)
	}

	c.applyDefaults()

	return c.validateLocked()
}

// validateLocked checks all configuration fields. Caller must hold c.mu.
func (c *Config) validateLocked() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}

	if !c.Fleet.Strategy.Valid() {
		return fmt.Errorf("invalid strategy %q: must be one of sequential, staged, parallel", c.Fleet.Strategy)
	}

	seen := make(map[string]struct{}, len(c.Fleet.Devices))
	for _, d := range c.Fleet.Devices {
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("duplicate device id %q", d.ID)
		}
		seen[d.ID] = struct{}{}
	}

	if c.Archive.Enabled && c.Archive.StorageMode != StorageS3 {
		if err := util.ValidatePath("archive.local_path", c.Archive.LocalPath); err != nil {
			return err
		}
	}

	return nil
}

// formatValidationError converts validator errors into a ValidationError
// that carries every failed field, not just the first.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errorsAs(err, &verrs) || len(verrs) == 0 {
		return err
	}
	verr := types.NewValidationError()
	for _, e := range verrs {
		verr.Add(e.Field(), fmt.Sprintf("failed %q constraint", e.Tag()), e.Value())
	}
	return verr
}

// errorsAs is a small indirection so the type assertion stays readable.
func errorsAs(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors) //nolint:errorlint // validator returns the slice directly
	if ok {
		*target = verrs
	}
	return ok
}

// applyDefaults sets default values for zero-value fields.
func (c *Config) applyDefaults() {
	// Fleet defaults
	if c.Fleet.Name == "" {
		c.Fleet.Name = DefaultFleetName
	}
	if c.Fleet.Strategy == "" {
		c.Fleet.Strategy = types.StrategyStaged
	}
	if c.Fleet.Workers == 0 {
		c.Fleet.Workers = DefaultWorkers
	}
	if c.Fleet.SuccessRate == 0 {
		c.Fleet.SuccessRate = types.DefaultSuccessRate
	}
	if len(c.Fleet.Devices) == 0 {
		c.Fleet.Devices = []DeviceConfig{defaultDevice("sensor_001")}
	}
	for i := range c.Fleet.Devices {
		applyDeviceDefaults(&c.Fleet.Devices[i])
	}

	// System defaults
	if c.System.Port == 0 {
		c.System.Port = DefaultWebPort
	}

	// Notification defaults
	if c.Notifications.FailureStreak == 0 {
		c.Notifications.FailureStreak = DefaultFailureStreak
	}

	// Archive defaults
	if c.Archive.StorageMode == "" {
		c.Archive.StorageMode = StorageLocal
	}
	if c.Archive.RetentionDays == 0 {
		c.Archive.RetentionDays = DefaultRetentionDays
	}
	if c.Archive.Enabled && c.Archive.LocalPath == "" {
		c.Archive.LocalPath = filepath.Join(os.TempDir(), DefaultArchiveDirName)
	}

	// Event log default
	if c.EventLog.Path == "" {
		c.EventLog.Path = filepath.Join(os.TempDir(), DefaultEventLogName)
	}
}

// defaultDevice returns a device with the stock simulation parameters.
func defaultDevice(id string) DeviceConfig {
	return DeviceConfig{
		ID:          id,
		SampleRate:  types.DefaultSampleRate,
		BitDepth:    types.DefaultBitDepth,
		DurationSec: types.DefaultDurationSec,
		CooldownMs:  types.DefaultCooldown.Milliseconds(),
		Cycles:      types.DefaultCycles,
	}
}

// applyDeviceDefaults fills in missing per-device values. Explicit zero
// rate or duration is preserved: those devices produce empty blocks.
func applyDeviceDefaults(d *DeviceConfig) {
	if d.ID == "" {
		d.ID = "sensor-" + uuid.NewString()[:8]
	}
	if d.BitDepth == 0 {
		d.BitDepth = types.DefaultBitDepth
	}
	if d.Cycles == 0 {
		d.Cycles = types.DefaultCycles
	}
	if d.CooldownMs == 0 {
		d.CooldownMs = types.DefaultCooldown.Milliseconds()
	}
}

// saveLocked persists configuration. Caller must hold c.mu.
func (c *Config) saveLocked() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return util.WrapError("marshal config", err)
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create config directory", err)
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return util.WrapError("write config", err)
	}

	return nil
}

// --- Getters for individual settings ---

// Devices returns a copy of the configured device list.
func (c *Config) Devices() []DeviceConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.Fleet.Devices)
}

// Strategy returns the configured cycle scheduling strategy.
func (c *Config) Strategy() types.Strategy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Fleet.Strategy
}

// WebPort returns the configured HTTP server port.
func (c *Config) WebPort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.System.Port
}

// --- Snapshot for atomic reads ---

// Snapshot is a point-in-time copy of configuration values.
type Snapshot struct {
	// Fleet
	FleetName       string
	Devices         []DeviceConfig
	Strategy        types.Strategy
	Workers         int
	SuccessRate     float64
	TransmitDelayMs int64

	// System
	WebPort int
	APIKey  string

	// Notifications
	FailureStreak     int
	WebhookURL        string
	LogPath           string
	GraphTenantID     string
	GraphClientID     string
	GraphClientSecret string
	GraphFromAddress  string
	GraphRecipients   string

	// Archive
	ArchiveEnabled       bool
	ArchiveStorageMode   StorageMode
	ArchiveLocalPath     string
	ArchiveRetentionDays int
	ArchiveS3            S3Config

	// Event log
	EventLogPath string
}

// Snapshot returns a point-in-time copy of all configuration values.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		// Fleet
		FleetName:       c.Fleet.Name,
		Devices:         slices.Clone(c.Fleet.Devices),
		Strategy:        c.Fleet.Strategy,
		Workers:         cmp.Or(c.Fleet.Workers, DefaultWorkers),
		SuccessRate:     cmp.Or(c.Fleet.SuccessRate, types.DefaultSuccessRate),
		TransmitDelayMs: c.Fleet.TransmitDelayMs,

		// System
		WebPort: cmp.Or(c.System.Port, DefaultWebPort),
		APIKey:  c.System.APIKey,

		// Notifications
		FailureStreak:     cmp.Or(c.Notifications.FailureStreak, DefaultFailureStreak),
		WebhookURL:        c.Notifications.Webhook.URL,
		LogPath:           c.Notifications.Log.Path,
		GraphTenantID:     c.Notifications.Email.TenantID,
		GraphClientID:     c.Notifications.Email.ClientID,
		GraphClientSecret: c.Notifications.Email.ClientSecret,
		GraphFromAddress:  c.Notifications.Email.FromAddress,
		GraphRecipients:   c.Notifications.Email.Recipients,

		// Archive
		ArchiveEnabled:       c.Archive.Enabled,
		ArchiveStorageMode:   c.Archive.StorageMode,
		ArchiveLocalPath:     c.Archive.LocalPath,
		ArchiveRetentionDays: cmp.Or(c.Archive.RetentionDays, DefaultRetentionDays),
		ArchiveS3:            c.Archive.S3,

		// Event log
		EventLogPath: c.EventLog.Path,
	}
}

// HasWebhook reports whether a webhook URL is configured.
func (s *Snapshot) HasWebhook() bool {
	return s.WebhookURL != ""
}

// HasGraph reports whether Microsoft Graph email notifications are configured.
func (s *Snapshot) HasGraph() bool {
	return util.IsConfigured(s.GraphTenantID, s.GraphClientID, s.GraphClientSecret,
		s.GraphFromAddress, s.GraphRecipients)
}

// HasLogPath reports whether a notification log path is configured.
func (s *Snapshot) HasLogPath() bool {
	return s.LogPath != ""
}

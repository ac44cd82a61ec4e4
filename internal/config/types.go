package config

// Config is fridayd's top-level configuration.
//
// Files may be JSON or YAML (by extension); both decode strictly so a typo
// in a key fails loudly instead of silently doing nothing.
type Config struct {
	Logging  LoggingConfig   `json:"logging"`
	Storage  StorageConfig   `json:"storage"`
	Dispatch DispatchConfig  `json:"dispatch"`
	Notify   NotifyConfig    `json:"notify"`
	Janitor  JanitorConfig   `json:"janitor"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Watchdog WatchdogConfig  `json:"watchdog"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./friday_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// DispatchConfig controls the reminder dispatch loop.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type DispatchConfig struct {
	// MaxSleep caps the loop's sleep between due checks. "0s" keeps the
	// default (30s).
	MaxSleep    string `json:"max_sleep,omitempty"`
	HistorySize int    `json:"history_size,omitempty"`
	// Timezone is an IANA TZ name, e.g. "Asia/Jakarta". Empty means local.
	Timezone string `json:"timezone,omitempty"`
}

// NotifyConfig controls the notification pipeline.
type NotifyConfig struct {
	RatePerSec  int `json:"rate_per_sec,omitempty"`
	HistorySize int `json:"history_size,omitempty"`
}

// JanitorConfig controls background store maintenance.
//
// Specs are cron expressions or descriptors ("@daily", "@every 6h").
type JanitorConfig struct {
	Enabled     bool   `json:"enabled"`
	CompactSpec string `json:"compact_spec,omitempty"` // default "@daily"
	DigestSpec  string `json:"digest_spec,omitempty"`  // default "0 21 * * *"
}

// TelegramConfig configures the optional Telegram mirror sink.
// Omit the section to disable it. The token is never logged.
type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
}

// WatchdogConfig controls systemd readiness/watchdog integration.
type WatchdogConfig struct {
	Enabled bool `json:"enabled"`
}

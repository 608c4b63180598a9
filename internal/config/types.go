package config

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Storage points at the SQLite database holding events and armed triggers.
	Storage StorageConfig `json:"storage"`

	// Wake controls the durable one-shot wake service (the reminder clock).
	Wake WakeConfig `json:"wake"`

	// Notify selects and configures the notification display backend.
	Notify NotifyConfig `json:"notify"`

	HTTP HTTPConfig `json:"http"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"` // TRACE|DEBUG|INFO|WARN|ERROR
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "path": "./calendd.db" }
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// WakeConfig controls trigger arming and firing.
//
// Exact models the platform's exact-wake capability: when false, attempts to
// arm a reminder are refused and surfaced to the caller, mirroring a revoked
// exact-alarm permission. It is a pointer so "omitted" defaults to true.
//
// SweepEvery is a Go duration string for the catch-up sweep that fires
// triggers the runtime timers slept through (default "1m").
type WakeConfig struct {
	Timezone   string `json:"timezone,omitempty"` // IANA TZ; empty = system local
	Exact      *bool  `json:"exact,omitempty"`
	SweepEvery string `json:"sweep_every,omitempty"`
}

// NotifyConfig selects the display backend.
//
// When telegram.token is empty the daemon falls back to the log sink, so a
// bare config still runs.
type NotifyConfig struct {
	Telegram TelegramConfig `json:"telegram,omitempty"`
}

type TelegramConfig struct {
	Token  string `json:"token,omitempty"`
	ChatID int64  `json:"chat_id,omitempty"`

	// OpenURL is the tap-action target (the "Open calendar" button under a
	// delivered reminder). Defaults to the HTTP listen address when empty.
	OpenURL string `json:"open_url,omitempty"`
}

type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:8343"
}

// Package config loads the editor's TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvPath names the environment variable that overrides the config file path.
const EnvPath = "MEDIAKIT_CONFIG"

// Config holds all editor settings.
type Config struct {
	Editor      EditorConfig      `toml:"editor"`
	Persistence PersistenceConfig `toml:"persistence"`
	Backend     BackendConfig     `toml:"backend"`
	Registry    RegistryConfig    `toml:"registry"`
	MCP         MCPConfig         `toml:"mcp"`
}

// EditorConfig configures the in-memory engine.
type EditorConfig struct {
	// Debug enables diagnostic logging only.
	Debug        bool     `toml:"debug"`
	DocumentID   string   `toml:"document_id"`
	ReadyTimeout Duration `toml:"ready_timeout"`
	RenderDelay  Duration `toml:"render_delay"`
	HistoryLimit int      `toml:"history_limit"`
	// AllowedTypes is the drag-and-drop allow-list. Empty permits every type.
	AllowedTypes []string `toml:"allowed_types"`
}

// PersistenceConfig configures the save pipeline.
type PersistenceConfig struct {
	// Endpoint is the save endpoint URL. Empty runs the reference backend
	// in-process.
	Endpoint       string   `toml:"endpoint"`
	SecurityToken  string   `toml:"security_token"`
	Autosave       string   `toml:"autosave"`
	Debounce       Duration `toml:"debounce"`
	RequestTimeout Duration `toml:"request_timeout"`
	// Drafts is the local sqlite file holding unsaved drafts. "-" disables
	// drafts.
	Drafts string `toml:"drafts"`
}

// BackendConfig configures the reference save endpoint and its store.
type BackendConfig struct {
	Listen       string `toml:"listen"`
	Driver       string `toml:"driver"` // sqlite, mysql, postgres, mongodb
	DSN          string `toml:"dsn"`
	Database     string `toml:"database"` // mongodb database name
	Token        string `toml:"token"`
	MaxRevisions int    `toml:"max_revisions"`
}

// RegistryConfig configures the component template registry.
type RegistryConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

// MCPConfig configures the agent endpoint served by the desktop app.
type MCPConfig struct {
	// Listen enables the streamable HTTP endpoint. Empty disables it.
	Listen          string   `toml:"listen"`
	ApprovalTimeout Duration `toml:"approval_timeout"`
}

// Duration is a time.Duration that decodes from strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DataDir returns the default data directory (~/.local/share/mediakit).
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "mediakit")
}

// DefaultPath returns ~/.config/mediakit/config.toml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "mediakit", "config.toml")
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Editor: EditorConfig{
			DocumentID:   "default",
			ReadyTimeout: Duration{2 * time.Second},
			RenderDelay:  Duration{16 * time.Millisecond},
			HistoryLimit: 50,
		},
		Persistence: PersistenceConfig{
			Autosave:       "@every 30s",
			Debounce:       Duration{time.Second},
			RequestTimeout: Duration{30 * time.Second},
			Drafts:         filepath.Join(DataDir(), "drafts.db"),
		},
		Backend: BackendConfig{
			Listen:       "127.0.0.1:8765",
			Driver:       "sqlite",
			DSN:          filepath.Join(DataDir(), "mediakit.db"),
			Database:     "mediakit",
			MaxRevisions: 40,
		},
		Registry: RegistryConfig{
			Dir:   filepath.Join(home, ".config", "mediakit", "templates"),
			Watch: true,
		},
		MCP: MCPConfig{
			ApprovalTimeout: Duration{2 * time.Minute},
		},
	}
}

// Load reads the config file at path over the defaults. An empty path falls
// back to $MEDIAKIT_CONFIG, then DefaultPath. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	if c.Editor.DocumentID == "" {
		return fmt.Errorf("config: editor.document_id is required")
	}
	if c.Editor.ReadyTimeout.Duration <= 0 {
		return fmt.Errorf("config: editor.ready_timeout must be positive")
	}
	if c.Persistence.Debounce.Duration < 0 {
		return fmt.Errorf("config: persistence.debounce must not be negative")
	}
	if c.Persistence.RequestTimeout.Duration <= 0 {
		return fmt.Errorf("config: persistence.request_timeout must be positive")
	}
	switch c.Backend.Driver {
	case "sqlite", "mysql", "postgres", "mongodb":
	default:
		return fmt.Errorf("config: unsupported backend.driver %q", c.Backend.Driver)
	}
	return nil
}

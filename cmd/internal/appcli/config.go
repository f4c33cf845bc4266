// ABOUTME: Configuration file management for wyrdledger CLI binaries.
// ABOUTME: TOML file under the user's home dir, with flag overrides on top.
package appcli

import (
	"errors"
	"flag"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config is the persisted CLI configuration.
type Config struct {
	Server       string `toml:"server"`
	Email        string `toml:"email,omitempty"`
	UserID       string `toml:"user_id,omitempty"`
	Token        string `toml:"token,omitempty"`
	RefreshToken string `toml:"refresh_token,omitempty"`
	DeviceID     string `toml:"device_id,omitempty"`
	DBPath       string `toml:"db,omitempty"`
}

// ConfigPath returns the path to the CLI config file. Overridable in tests.
var ConfigPath = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".wyrdledger", "config.toml")
	}
	return filepath.Join(home, ".wyrdledger", "config.toml")
}

// LoadConfig reads the config file. A missing file yields a zero config.
func LoadConfig() (Config, error) {
	var cfg Config
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SaveConfig writes the config file, creating its directory as needed.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// RuntimeConfig captures CLI flag inputs shared across binaries.
type RuntimeConfig struct {
	ServerURL string
	DBPath    string
	Token     string
	DeviceID  string
}

// BindFlags attaches shared flags to the provided FlagSet.
func (rc *RuntimeConfig) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&rc.ServerURL, "server", rc.ServerURL, "sync server base URL")
	fs.StringVar(&rc.DBPath, "db", rc.DBPath, "path to local SQLite store")
	fs.StringVar(&rc.Token, "token", rc.Token, "bearer token")
	fs.StringVar(&rc.DeviceID, "device", rc.DeviceID, "stable device identifier")
}

// Merge layers flag values over the persisted config.
func (rc RuntimeConfig) Merge(cfg Config) Config {
	if rc.ServerURL != "" {
		cfg.Server = rc.ServerURL
	}
	if rc.DBPath != "" {
		cfg.DBPath = rc.DBPath
	}
	if rc.Token != "" {
		cfg.Token = rc.Token
	}
	if rc.DeviceID != "" {
		cfg.DeviceID = rc.DeviceID
	}
	return cfg
}

// defaultDBPath places the local store next to the config file.
func defaultDBPath() string {
	return filepath.Join(filepath.Dir(ConfigPath()), "wyrdledger.db")
}

// ResolveDBPath returns the local store path rc and the persisted config agree
// on, for tools that read the database without the full sync core.
func ResolveDBPath(rc RuntimeConfig) (string, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return "", err
	}
	cfg = rc.Merge(cfg)
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath()
	}
	return cfg.DBPath, nil
}

// ABOUTME: Tests for the appcli application layer.
// ABOUTME: Covers config round-trips, record helpers, and offline-first behavior.

package appcli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stanyfernando/wyrdledger/offline"
)

// useTempConfig redirects the config file into a throwaway directory so tests
// never touch the real home dir.
func useTempConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig := ConfigPath
	ConfigPath = func() string { return filepath.Join(dir, "config.toml") }
	t.Cleanup(func() { ConfigPath = orig })
	return dir
}

func TestConfigRoundtrip(t *testing.T) {
	useTempConfig(t)

	want := Config{
		Server:   "http://localhost:8080",
		Email:    "owner@example.com",
		UserID:   "usr_1",
		Token:    "tok_1",
		DeviceID: "dev_1",
	}
	if err := SaveConfig(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Errorf("config mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	useTempConfig(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("missing config must not error: %v", err)
	}
	if cfg != (Config{}) {
		t.Errorf("expected zero config, got %+v", cfg)
	}
}

func TestRuntimeConfigMerge(t *testing.T) {
	cfg := Config{Server: "http://persisted", DBPath: "/persisted.db", Token: "persisted"}
	rc := RuntimeConfig{ServerURL: "http://flag", DeviceID: "dev_flag"}

	merged := rc.Merge(cfg)
	if merged.Server != "http://flag" {
		t.Errorf("flag should override server: %s", merged.Server)
	}
	if merged.DBPath != "/persisted.db" {
		t.Errorf("unset flag should keep persisted value: %s", merged.DBPath)
	}
	if merged.DeviceID != "dev_flag" {
		t.Errorf("flag device id should land: %s", merged.DeviceID)
	}
}

func TestResolveDBPathPrefersFlag(t *testing.T) {
	useTempConfig(t)

	got, err := ResolveDBPath(RuntimeConfig{DBPath: "/tmp/override.db"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "/tmp/override.db" {
		t.Errorf("expected flag path, got %s", got)
	}
}

func TestResolveDBPathDefaultsNextToConfig(t *testing.T) {
	dir := useTempConfig(t)

	got, err := ResolveDBPath(RuntimeConfig{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != filepath.Join(dir, "wyrdledger.db") {
		t.Errorf("expected default next to config, got %s", got)
	}
}

func TestAppAppendAndRecordsOffline(t *testing.T) {
	dir := useTempConfig(t)

	// No server configured, nobody signed in: everything stays local.
	app, err := NewApp(RuntimeConfig{DBPath: filepath.Join(dir, "app.db")})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer app.Close()

	ctx := context.Background()
	app.Append(ctx, offline.CollectionProducts, json.RawMessage(`{"name":"anvil"}`))
	app.Append(ctx, offline.CollectionProducts, json.RawMessage(`{"name":"hammer"}`))

	got := app.Records(offline.CollectionProducts)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if string(got[1]) != `{"name":"hammer"}` {
		t.Errorf("append order lost: %s", got[1])
	}
}

func TestAppConnectWithoutSession(t *testing.T) {
	dir := useTempConfig(t)

	app, err := NewApp(RuntimeConfig{DBPath: filepath.Join(dir, "app.db")})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer app.Close()

	if app.Connect(context.Background()) {
		t.Error("connect must report false when nobody is signed in")
	}
}

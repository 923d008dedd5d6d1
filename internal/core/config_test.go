package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0644); err != nil {
		t.Fatalf("error writing test config: %v", err)
	}
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig() returned an unexpected error: %v", err)
	}

	if cfg.Lobby.Port != 5555 {
		t.Errorf("expected default lobby port = 5555, got %d", cfg.Lobby.Port)
	}
	if cfg.Launcher.PortMin != 18000 || cfg.Launcher.PortMax != 18999 {
		t.Errorf("unexpected default launcher range %d-%d", cfg.Launcher.PortMin, cfg.Launcher.PortMax)
	}
	if cfg.Sessions.TTL != 12*time.Hour {
		t.Errorf("expected default session ttl = 12h, got %v", cfg.Sessions.TTL)
	}
}

func TestLoadConfig_FileAndEnvironment(t *testing.T) {
	dir := writeConfig(t, `
hostname: 127.0.0.1
lobby:
  port: 6000
launcher:
  port_min: 20000
  port_max: 20010
database:
  engine: sqlite
  filename: test.db
sessions:
  ttl: 30m
`)
	t.Setenv("LOBBY_LAUNCHER_PORT_MAX", "20020")
	t.Setenv("LOBBY_LEADERBOARD_STORE", "redis")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig() returned an unexpected error: %v", err)
	}

	got := []interface{}{cfg.Hostname, cfg.Lobby.Port, cfg.Launcher.PortMin, cfg.Launcher.PortMax, cfg.Leaderboard.Store, cfg.Sessions.TTL}
	want := []interface{}{"127.0.0.1", 6000, 20000, 20020, "redis", 30 * time.Minute}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadConfig() produced unexpected values; diff:\n%s", diff)
	}
	if path := cfg.QualifiedPath(cfg.Database.Filename); path != filepath.Join(dir, "test.db") {
		t.Errorf("QualifiedPath() want = %s, got = %s", filepath.Join(dir, "test.db"), path)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"inverted_port_range": "launcher:\n  port_min: 19000\n  port_max: 18000\n",
		"lobby_port_in_range": "lobby:\n  port: 18005\n",
		"unknown_engine":      "database:\n  engine: mysql\n",
		"unknown_store":       "leaderboard:\n  store: s3\n",
	}

	for name, contents := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, contents))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestConfig_DatabaseURL(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Engine = "postgres"
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.Name = "testdb"
	cfg.Database.Username = "testuser"
	cfg.Database.Password = "testpassword"

	url := cfg.DatabaseURL()
	expected := "host=localhost port=5432 dbname=testdb user=testuser password=testpassword sslmode="
	if url != expected {
		t.Errorf("DatabaseURL() want = %s, got = %s", expected, url)
	}
}

func TestConfig_BrokerAddress(t *testing.T) {
	cfg := &Config{Hostname: "0.0.0.0"}
	cfg.Lobby.Port = 5555
	cfg.Launcher.Host = "127.0.0.1"

	if addr := cfg.BrokerAddress(); addr != "127.0.0.1:5555" {
		t.Errorf("BrokerAddress() want = 127.0.0.1:5555, got = %s", addr)
	}

	cfg.Launcher.BrokerAddr = "lobby.internal:7000"
	if addr := cfg.BrokerAddress(); addr != "lobby.internal:7000" {
		t.Errorf("BrokerAddress() want = lobby.internal:7000, got = %s", addr)
	}
}

func TestLoadConfig_FlagsOverrideEnvironment(t *testing.T) {
	dir := writeConfig(t, "lobby:\n  port: 6000\n")
	t.Setenv("LOBBY_LOBBY_PORT", "6001")

	flags := pflag.NewFlagSet("lobby", pflag.ContinueOnError)
	flags.Int("lobby-port", 5555, "")
	flags.String("log-level", "info", "")
	if err := flags.Parse([]string{"--lobby-port", "7000"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(dir, flags)
	if err != nil {
		t.Fatalf("LoadConfig() returned an unexpected error: %v", err)
	}
	if cfg.Lobby.Port != 7000 {
		t.Errorf("expected the flag to win, got lobby port %d", cfg.Lobby.Port)
	}
	// Unset flags leave the file and defaults alone.
	if cfg.Logging.LogLevel != "info" {
		t.Errorf("expected default log level, got %q", cfg.Logging.LogLevel)
	}
}

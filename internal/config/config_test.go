package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Engine.MaxConcurrentPings != 10 || cfg.Engine.MaxConcurrentQueries != 2 {
		t.Errorf("default caps = %d/%d", cfg.Engine.MaxConcurrentPings, cfg.Engine.MaxConcurrentQueries)
	}
	if cfg.Client.QueryPort != DefaultQueryPort {
		t.Errorf("default query port = %d", cfg.Client.QueryPort)
	}

	if _, err := os.Stat(filepath.Join(dir, DefaultConfigFile)); err != nil {
		t.Errorf("default config not written: %v", err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	body := `{
	  "server": {"svr_name": "My Host", "svr_max_players": 24},
	  "client": {"masters": ["1:192.0.2.1:27950"]}
	}`
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Name != "My Host" || cfg.Server.MaxPlayers != 24 {
		t.Errorf("overlay lost: %+v", cfg.Server)
	}
	// Untouched sections keep their defaults.
	if cfg.Engine.MaxConcurrentPings != 10 {
		t.Errorf("engine defaults lost: %+v", cfg.Engine)
	}
	if len(cfg.Client.Masters) != 1 {
		t.Errorf("masters = %v", cfg.Client.Masters)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	srv := cfg.GetServer()
	srv.InviteCode = "XK42"
	cfg.SetServer(srv)
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	again, err := Load(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.GetServer().InviteCode != "XK42" {
		t.Errorf("invite code lost on reload: %+v", again.GetServer())
	}
}

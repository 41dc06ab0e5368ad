package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Brain.MaxReplyLen != 250 || cfg.Brain.ReplyCooldown != 5*time.Second {
		t.Errorf("brain defaults = %+v", cfg.Brain)
	}
	if cfg.Fidget.Cap != 5 || cfg.Storage.Autosave != "@every 5m" {
		t.Errorf("defaults = %+v %+v", cfg.Fidget, cfg.Storage)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	writeFile(t, path, `
bot:
  name: Pedro
server:
  url: ws://localhost:9000/bot
brain:
  reply_cooldown: 2s
fidget:
  look_rate: 0.05
item_values:
  diamond: 12
`)
	t.Setenv(EnvBotName, "Override")
	t.Setenv(EnvDBPath, "/tmp/x.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bot.Name != "Override" {
		t.Errorf("name = %q, env should win", cfg.Bot.Name)
	}
	if cfg.Server.URL != "ws://localhost:9000/bot" || cfg.Storage.DBPath != "/tmp/x.db" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Brain.ReplyCooldown != 2*time.Second || cfg.Brain.MaxReplyLen != 250 {
		t.Errorf("brain = %+v", cfg.Brain)
	}
	if cfg.Fidget.LookRate != 0.05 || cfg.Fidget.JumpRate != 0.001 {
		t.Errorf("fidget = %+v", cfg.Fidget)
	}
	if cfg.ItemValues["diamond"] != 12 {
		t.Errorf("item values = %v", cfg.ItemValues)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty name", func(c *Config) { c.Bot.Name = " " }},
		{"http url", func(c *Config) { c.Server.URL = "http://example.com" }},
		{"bad rate", func(c *Config) { c.Fidget.LookRate = 2 }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"no tokens", func(c *Config) { c.LLM.MaxTokens = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			if err := c.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestWatcherReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	writeFile(t, path, "log:\n  level: info\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	changed := make(chan *Config, 1)
	w.OnChange(func(_, cur *Config) {
		select {
		case changed <- cur:
		default:
		}
	})

	writeFile(t, path, "log:\n  level: debug\n")

	select {
	case cur := <-changed:
		if cur.Log.Level != "debug" {
			t.Errorf("reloaded level = %q", cur.Log.Level)
		}
		if w.Config() != cur {
			t.Error("Config() does not return the reloaded config")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload within 5s")
	}
}

func TestWatcherKeepsConfigOnBadReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	writeFile(t, path, "log:\n  level: info\n")
	cfg, _ := Load(path)

	w, err := NewWatcher(path, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	writeFile(t, path, "log:\n  level: shouting\n")
	time.Sleep(2 * debounce)
	if w.Config() != cfg {
		t.Error("invalid file replaced the config")
	}
}

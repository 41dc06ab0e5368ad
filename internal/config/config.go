// Package config loads the agent's YAML configuration with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/sentinel/internal/motor"
)

// Environment variables that override the file.
const (
	EnvServerURL = "SENTINEL_SERVER_URL"
	EnvBotName   = "BOT_NAME"
	EnvAPIKey    = "ANTHROPIC_API_KEY"
	EnvDBPath    = "SENTINEL_DB"
	EnvLogLevel  = "SENTINEL_LOG_LEVEL"
	EnvAdminKey  = "SENTINEL_ADMIN_KEY"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full agent configuration.
type Config struct {
	Bot     BotConfig          `yaml:"bot"`
	Server  ServerConfig       `yaml:"server"`
	LLM     LLMConfig          `yaml:"llm"`
	Storage StorageConfig      `yaml:"storage"`
	API     APIConfig          `yaml:"api"`
	Log     LogConfig          `yaml:"log"`
	Brain   BrainConfig        `yaml:"brain"`
	Fidget  motor.FidgetConfig `yaml:"fidget"`

	// ItemValues overrides entries of the ledger's price table.
	ItemValues map[string]int `yaml:"item_values"`
}

type BotConfig struct {
	Name    string `yaml:"name"`
	Persona string `yaml:"persona"`
	Seed    bool   `yaml:"seed_goals"` // Seed the survival backlog on a fresh start
}

type ServerConfig struct {
	URL string `yaml:"url"` // WebSocket bridge; empty runs offline
}

type LLMConfig struct {
	APIKey        string        `yaml:"api_key"`
	Model         string        `yaml:"model"`
	MaxTokens     int           `yaml:"max_tokens"`
	RatePerMinute int           `yaml:"rate_per_minute"`
	Timeout       time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	DBPath     string `yaml:"db_path"`
	ArchiveDir string `yaml:"archive_dir"`
	Autosave   string `yaml:"autosave"` // Cron spec
}

type APIConfig struct {
	Addr     string `yaml:"addr"`      // Empty disables the status API
	AdminKey string `yaml:"admin_key"` // Bearer token for POST endpoints
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type BrainConfig struct {
	ReplyCooldown       time.Duration `yaml:"reply_cooldown"`
	MaxReplyLen         int           `yaml:"max_reply_len"`
	SaveEvery           int           `yaml:"save_every"`
	ThreatCooldownTicks int           `yaml:"threat_cooldown_ticks"`
	ChatPerMinute       int           `yaml:"chat_per_minute"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Bot: BotConfig{
			Name:    "Sentinel",
			Persona: "a laid-back survival player who is friendly but careful with strangers",
			Seed:    true,
		},
		LLM: LLMConfig{
			Model:         "claude-haiku-4-5-20251001",
			MaxTokens:     150,
			RatePerMinute: 20,
			Timeout:       30 * time.Second,
		},
		Storage: StorageConfig{
			DBPath:     "data/sentinel.db",
			ArchiveDir: "data/archive",
			Autosave:   "@every 5m",
		},
		API: APIConfig{Addr: "127.0.0.1:8080"},
		Log: LogConfig{Level: "info"},
		Brain: BrainConfig{
			ReplyCooldown:       5 * time.Second,
			MaxReplyLen:         250,
			SaveEvery:           10,
			ThreatCooldownTicks: 20,
			ChatPerMinute:       6,
		},
		Fidget: motor.DefaultFidget(),
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates. An empty path uses defaults and environment only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg; fields absent from data keep their values.
func Parse(data []byte, cfg *Config) error {
	return yaml.Unmarshal(data, cfg)
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvServerURL); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv(EnvBotName); v != "" {
		c.Bot.Name = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvAdminKey); v != "" {
		c.API.AdminKey = v
	}
}

// Validate checks ranges and required fields.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Bot.Name) == "" {
		errs = append(errs, errors.New("bot.name is required"))
	}
	if c.Server.URL != "" && !strings.HasPrefix(c.Server.URL, "ws://") && !strings.HasPrefix(c.Server.URL, "wss://") {
		errs = append(errs, fmt.Errorf("server.url %q must be ws:// or wss://", c.Server.URL))
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, errors.New("llm.max_tokens must be positive"))
	}
	if c.LLM.RatePerMinute <= 0 {
		errs = append(errs, errors.New("llm.rate_per_minute must be positive"))
	}
	if c.Brain.MaxReplyLen <= 0 {
		errs = append(errs, errors.New("brain.max_reply_len must be positive"))
	}
	if c.Brain.SaveEvery < 0 || c.Brain.ThreatCooldownTicks < 0 || c.Brain.ChatPerMinute < 0 {
		errs = append(errs, errors.New("brain counters must not be negative"))
	}
	for name, p := range map[string]float64{
		"fidget.look_rate":  c.Fidget.LookRate,
		"fidget.sneak_rate": c.Fidget.SneakRate,
		"fidget.jump_rate":  c.Fidget.JumpRate,
	} {
		if p < 0 || p > 1 {
			errs = append(errs, fmt.Errorf("%s %v outside [0, 1]", name, p))
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		errs = append(errs, fmt.Errorf("log.level %q unknown", c.Log.Level))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Command sentinel runs the autonomous game agent.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/sentinel/internal/api"
	"github.com/talgya/sentinel/internal/brain"
	"github.com/talgya/sentinel/internal/config"
	"github.com/talgya/sentinel/internal/engine"
	"github.com/talgya/sentinel/internal/ledger"
	"github.com/talgya/sentinel/internal/llm"
	"github.com/talgya/sentinel/internal/motor"
	"github.com/talgya/sentinel/internal/persistence"
	"github.com/talgya/sentinel/internal/telemetry"
	"github.com/talgya/sentinel/internal/transport"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("SENTINEL_CONFIG"), "YAML config file")
		restore    = flag.String("restore", "", "archive to import when the database holds no state (\"latest\" picks the newest)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sentinel:", err)
		os.Exit(1)
	}

	logger, logCloser, err := telemetry.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.File)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sentinel: logging:", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	slog.Info("sentinel starting", "name", cfg.Bot.Name, "server", cfg.Server.URL, "config", *configPath)

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
		slog.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(cfg.Storage.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Storage.DBPath)

	// ── Brain ─────────────────────────────────────────────────────────
	b := brain.New(brain.Options{
		Name:      cfg.Bot.Name,
		Persona:   cfg.Bot.Persona,
		MaxTokens: cfg.LLM.MaxTokens,
		Config:    cfg.Brain,
	})
	b.Ledger = ledger.New(ledger.NewValues(cfg.ItemValues))

	// ── Load or Seed State ───────────────────────────────────────────
	fresh := false
	switch {
	case db.HasState():
		slog.Info("found saved state, loading...")
		st, err := db.LoadState()
		if err != nil {
			slog.Error("failed to load state", "error", err)
			os.Exit(1)
		}
		b.Restore(st)
		slog.Info("state restored",
			"saved", humanize.Time(st.SavedAt),
			"goals", len(st.Goals.Goals),
			"players", len(st.Profiles),
			"episodes", len(st.Memory.Episodes),
		)

	case *restore != "":
		path := *restore
		if path == "latest" {
			if path, err = persistence.Latest(cfg.Storage.ArchiveDir); err != nil {
				slog.Error("no archive to restore", "dir", cfg.Storage.ArchiveDir, "error", err)
				os.Exit(1)
			}
		}
		hdr, st, err := persistence.Import(path)
		if err != nil {
			slog.Error("failed to import archive", "path", path, "error", err)
			os.Exit(1)
		}
		b.Restore(st)
		fresh = true
		slog.Info("archive imported", "path", path, "agent", hdr.Agent, "saved", humanize.Time(hdr.SavedAt))

	default:
		slog.Info("no saved state found, starting fresh")
		if cfg.Bot.Seed {
			b.Goals.Seed()
		}
		fresh = true
	}

	save := func() error { return db.SaveState(b.State()) }
	b.Save = save
	if fresh {
		if err := save(); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}

	// ── Game Connection ──────────────────────────────────────────────
	var link *transport.Client
	if cfg.Server.URL != "" {
		link = transport.NewClient(cfg.Server.URL, cfg.Bot.Name)
		link.OnChat(b.HandleChat)
		link.OnTrade(func(t transport.Trade) {
			b.HandleTrade(t.Player, t.Item, t.Quantity, t.Direction == transport.Given, t.Reason)
		})
		b.Sensor = link
		b.Motor = motor.NewQueue(link, nil, cfg.Fidget)
		link.Start()
	} else {
		slog.Warn("server.url not set, running offline (actions are logged only)")
		b.Motor = motor.NewQueue(nil, nil, cfg.Fidget)
	}

	// ── LLM Client ───────────────────────────────────────────────────
	llmClient := llm.NewClient(llm.Options{
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		MaxPerMin: cfg.LLM.RatePerMinute,
		Timeout:   cfg.LLM.Timeout,
	})
	if llmClient != nil {
		b.LLM = llmClient
		slog.Info("LLM client enabled", "model", cfg.LLM.Model)
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set, chat replies limited to ledger remarks")
	}

	// ── Config Hot Reload ────────────────────────────────────────────
	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath, cfg)
		if err != nil {
			slog.Warn("config watcher disabled", "error", err)
		} else {
			defer watcher.Close()
			watcher.OnChange(func(old, cur *config.Config) {
				telemetry.SetLevel(cur.Log.Level)
				b.Motor.SetFidget(cur.Fidget)
				b.SetConfig(cur.Brain)
				if old.Server.URL != cur.Server.URL || old.Storage.DBPath != cur.Storage.DBPath {
					slog.Warn("server and storage changes take effect on restart")
				}
			})
		}
	}

	// ── Autosave ─────────────────────────────────────────────────────
	autosaver, err := persistence.NewAutosaver(cfg.Storage.Autosave, save)
	if err != nil {
		slog.Error("bad autosave schedule", "spec", cfg.Storage.Autosave, "error", err)
		os.Exit(1)
	}
	autosaver.Start()

	// ── HTTP API ──────────────────────────────────────────────────────
	var apiServer *api.Server
	if cfg.API.Addr != "" {
		if cfg.API.AdminKey == "" {
			slog.Warn("admin key not set, admin POST endpoints will be disabled")
		}
		apiServer = &api.Server{
			Brain:    b,
			Save:     save,
			Addr:     cfg.API.Addr,
			AdminKey: cfg.API.AdminKey,
		}
		if link != nil {
			apiServer.Link = link
		}
		apiServer.Start()
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.OnTick = b.Tick
	eng.OnMinute = func(tick uint64) {
		b.Minute()
		if link != nil && !link.Connected() {
			slog.Warn("game connection down", "error", link.LastError(), "uptime", engine.Uptime(tick))
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	if cfg.API.Addr != "" {
		fmt.Printf("API: http://%s/api/v1/status\n", cfg.API.Addr)
	}
	fmt.Println("Sentinel is running... (Ctrl+C to stop)")
	eng.Run()

	// ── Shutdown ──────────────────────────────────────────────────────
	if link != nil {
		link.Close()
	}
	b.Stop()
	b.Wait()
	autosaver.Stop()
	if apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := apiServer.Shutdown(ctx); err != nil {
			slog.Warn("API shutdown", "error", err)
		}
		cancel()
	}

	slog.Info("final save...")
	st := b.State()
	if err := db.SaveState(st); err != nil {
		slog.Error("final save failed", "error", err)
	}
	if path, err := persistence.Export(cfg.Storage.ArchiveDir, cfg.Bot.Name, st); err != nil {
		slog.Error("archive export failed", "error", err)
	} else {
		slog.Info("archive written", "path", path)
	}
	fmt.Printf("Sentinel stopped after %s. State saved.\n", engine.Uptime(eng.Tick))
}

// Command bountysim runs Bounty Hunter episodes with AI agents in real time,
// recording results and serving them over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/talgya/bountyhunter/internal/agents"
	"github.com/talgya/bountyhunter/internal/api"
	"github.com/talgya/bountyhunter/internal/config"
	"github.com/talgya/bountyhunter/internal/engine"
	"github.com/talgya/bountyhunter/internal/entropy"
	"github.com/talgya/bountyhunter/internal/persistence"
	"github.com/talgya/bountyhunter/internal/replay"
)

func main() {
	rc, err := config.ParseRunner()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := newLogger(rc)
	slog.SetDefault(logger)
	slog.Info("Bounty Hunter runner")

	// ── Settings ──────────────────────────────────────────────────────
	cfg := config.Default()
	if rc.ConfigPath != "" {
		cfg, err = config.Load(rc.ConfigPath)
		if err != nil {
			slog.Error("failed to load config", "path", rc.ConfigPath, "error", err)
			os.Exit(1)
		}
		slog.Info("config loaded", "path", rc.ConfigPath)
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		slog.Error("failed to apply env overrides", "error", err)
		os.Exit(1)
	}
	if cfg.Seed == 0 {
		cfg.Seed = entropy.CryptoSeed()
		slog.Info("no seed configured, drew one", "seed", cfg.Seed)
	}

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(rc.DBPath), 0755); err != nil {
		slog.Error("failed to create data directory", "path", filepath.Dir(rc.DBPath), "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(rc.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", rc.DBPath)

	runs := 0
	if v, err := db.GetMeta("runs"); err == nil {
		runs, _ = strconv.Atoi(v)
	}
	runs++
	if err := db.SaveMeta("runs", strconv.Itoa(runs)); err != nil {
		slog.Error("save meta failed", "error", err)
	}
	if err := db.SaveMeta("last_seed", strconv.FormatInt(cfg.Seed, 10)); err != nil {
		slog.Error("save meta failed", "error", err)
	}

	// ── Game ──────────────────────────────────────────────────────────
	game := engine.New(cfg, engine.WithLogger(logger))
	if err := game.Initialize(cfg.WindowWidth, cfg.WindowHeight); err != nil {
		slog.Error("failed to initialize game", "error", err)
		os.Exit(1)
	}
	players := min(rc.Players, cfg.MaxPlayer)
	for i := 0; i < players; i++ {
		if _, err := game.AddAgent(agents.KindAI); err != nil {
			slog.Error("failed to add agent", "error", err)
			os.Exit(1)
		}
	}

	eng := engine.NewEngine(game)
	eng.Speed = rc.Speed
	eng.Episodes = rc.Episodes

	hub := api.NewHub()

	var rec *replay.Writer
	if rc.ReplayDir != "" {
		rec = replay.NewWriter(rc.ReplayDir)
		defer func() {
			if err := rec.Close(); err != nil {
				slog.Error("close replay", "error", err)
			}
		}()
		slog.Info("recording replays", "dir", rc.ReplayDir)
	}

	recording := rec != nil
	eng.OnStep = func(s engine.Snapshot) {
		hub.Broadcast(s)
		if recording {
			if err := rec.WriteStep(s); err != nil {
				slog.Error("replay write failed, recording stopped", "error", err)
				recording = false
			}
		}
	}
	eng.OnEpisodeEnd = func(r engine.EpisodeResult) {
		if err := db.SaveEpisode(r); err != nil {
			slog.Error("episode save failed", "episode", r.Episode, "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if rc.AdminKey == "" {
		slog.Warn("BOUNTY_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Eng:      eng,
		DB:       db,
		Hub:      hub,
		Port:     rc.APIPort,
		AdminKey: rc.AdminKey,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\nBounty Hunter: %d AI agents, seed %d, %d-tick episodes.\n",
		players, cfg.Seed, int(cfg.DefaultPlayTime/cfg.DeltaTimeStep))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", rc.APIPort)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	if err := eng.Run(ctx); err != nil {
		slog.Error("engine stopped with error", "error", err)
	}
	game.Terminate()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("api shutdown failed", "error", err)
	}

	if wins, err := db.WinCounts(); err == nil {
		slog.Info("win counts", "wins", wins)
	}
	fmt.Println("Simulation stopped. Results saved.")
}

func newLogger(rc config.RunnerConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(rc.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if rc.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emberdeck/combat-client-go/internal/authority"
	"github.com/emberdeck/combat-client-go/internal/catalog"
	"github.com/emberdeck/combat-client-go/internal/combat"
	"github.com/emberdeck/combat-client-go/internal/config"
	"github.com/emberdeck/combat-client-go/internal/journal"
	combatmcp "github.com/emberdeck/combat-client-go/internal/mcp"
	"github.com/emberdeck/combat-client-go/internal/progress"
	"github.com/emberdeck/combat-client-go/internal/terminal"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "dev" // set via ldflags during build

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "play":
		err = runPlay(os.Args[2:])
	case "mcp":
		err = runMCP(os.Args[2:])
	case "journal":
		err = runJournal(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  combat play [--config FILE] [--enemy ID]")
	fmt.Println("  combat mcp [--config FILE] [--enemy ID]")
	fmt.Println("  combat journal FILE")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  play      Fight an encounter in the terminal")
	fmt.Println("  mcp       Serve the encounter as MCP tools over stdio")
	fmt.Println("  journal   Print a saved turn journal")
}

// app is everything a running encounter needs.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	transport authority.Transport
	store     progress.Store
	session   *combat.Session
	closers   []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func runPlay(args []string) error {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "path to configuration file")
	enemy := fs.String("enemy", "", "opponent id (overrides combat.enemy_id)")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, *configPath, *enemy)
	if err != nil {
		return err
	}
	defer a.close()

	return terminal.NewConsole(a.session, os.Stdin, os.Stdout, a.logger).Run(ctx)
}

func runMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "path to configuration file")
	enemy := fs.String("enemy", "", "opponent id (overrides combat.enemy_id)")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stdout carries the MCP protocol; zap writes to stderr.
	a, err := setup(ctx, *configPath, *enemy)
	if err != nil {
		return err
	}
	defer a.close()

	ts := combatmcp.NewToolSession(a.session)
	defer ts.Close()

	s := server.NewMCPServer("combat", version, server.WithToolCapabilities(false))
	combatmcp.RegisterTools(s, ts)
	return server.ServeStdio(s)
}

func runJournal(args []string) error {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: combat journal FILE")
	}

	j, err := journal.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Printf("Session %s: %d exchange(s)\n", j.SessionID, j.Size())
	for e, err := j.Start(); err == nil; e, err = j.Next() {
		status := "ok"
		if e.Err != "" {
			status = "failed: " + e.Err
		}
		fmt.Printf("#%-3d %-7s %s  %6s  %s  %s\n",
			e.Seq, e.Action, e.StartedAt.Format(time.TimeOnly),
			e.Duration.Round(time.Millisecond), e.Checksum[:12], status)
		for _, line := range e.Log {
			fmt.Printf("       %s\n", line)
		}
	}
	return nil
}

// setup wires config, logging, transport, persistence and the session, then
// seeds the encounter.
func setup(ctx context.Context, configPath, enemyID string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if enemyID != "" {
		cfg.Combat.EnemyID = enemyID
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	logger.Info("starting combat client",
		zap.String("version", version),
		zap.String("config", configPath),
		zap.String("transport", cfg.Authority.Transport),
	)

	cat, err := catalog.Load(cfg.Combat.Catalog)
	if err != nil {
		a.close()
		return nil, err
	}

	a.transport, err = authority.New(cfg.Authority, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = a.transport.Close() })

	a.store, err = newStore(ctx, cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	if c, ok := a.store.(interface{ Close() }); ok {
		a.closers = append(a.closers, c.Close)
	}

	opts := []combat.SessionOption{}
	if cfg.Journal.Enabled {
		opts = append(opts, combat.WithRecorder(journal.NewRecorder(cfg.Journal.Directory, true, logger)))
	}
	a.session = combat.NewSession(combat.SessionConfig{
		HandSize:     cfg.Combat.HandSize,
		MaxSelection: cfg.Combat.MaxSelection,
		FieldSlots:   cfg.Combat.FieldSlots,
		LogLimit:     cfg.Combat.LogLimit,
	}, a.transport, logger, opts...)

	a.session.Events().SubscribeTyped(combat.EventCombatEnded, func(ev combat.Event) {
		logger.Info("combat ended", zap.String("session_id", ev.SessionID), zap.String("defeated", string(ev.Side)))
		clearCtx, cancel := context.WithTimeout(context.Background(), cfg.Authority.Timeout)
		defer cancel()
		if err := a.store.ClearCheckpoint(clearCtx); err != nil {
			logger.Warn("failed to clear checkpoint", zap.Error(err))
		}
	})

	if err := start(ctx, a, cat); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (progress.Store, error) {
	switch cfg.Progress.Backend {
	case config.BackendHTTP:
		client := authority.NewHTTPClient(cfg.Authority, nil, logger)
		return progress.NewHTTPStore(client, logger), nil
	case config.BackendPostgres:
		return progress.NewPostgresStore(ctx, cfg.Progress.DatabaseURL, cfg.Progress.UserID, logger)
	default:
		return progress.NopStore{}, nil
	}
}

// start seats the player, loads the opponent and seeds the encounter. The
// opponent comes from the authority when it knows the id, else from the
// local catalog. A failed seed leaves the locally dealt hands in play.
func start(ctx context.Context, a *app, cat *catalog.Catalog) error {
	cfg, logger := a.cfg, a.logger
	enc := combat.Encounter{
		CampaignID: cfg.Combat.CampaignID,
		RoomID:     cfg.Combat.RoomID,
		EnemyID:    cfg.Combat.EnemyID,
	}

	saved, ok, err := a.store.Load(ctx)
	if err != nil {
		logger.Warn("failed to load saved game", zap.Error(err))
	} else if ok {
		if enc.CampaignID == "" {
			enc.CampaignID = saved.CampaignID
		}
		if enc.EnemyID == "" && saved.Enemy != nil {
			enc.EnemyID = saved.Enemy.ID
		}
		logger.Info("resuming saved game",
			zap.String("campaign_id", enc.CampaignID),
			zap.String("enemy_id", enc.EnemyID),
		)
	}
	if enc.EnemyID == "" {
		if roster := cat.Enemies(); len(roster) > 0 {
			enc.EnemyID = roster[0].ID
		}
	}

	a.session.SetEncounter(enc)
	if err := a.session.StartFresh(cat.Loadout()); err != nil {
		return err
	}

	if enc.EnemyID != "" {
		profile, err := a.transport.GetEnemy(ctx, enc.EnemyID)
		if err != nil {
			logger.Warn("authority enemy lookup failed, using catalog",
				zap.String("enemy_id", enc.EnemyID), zap.Error(err))
			var found bool
			if profile, found = cat.Enemy(enc.EnemyID); !found {
				return fmt.Errorf("unknown enemy %q", enc.EnemyID)
			}
		}
		if err := a.session.LoadOpponent(profile); err != nil {
			return err
		}
	}

	if err := a.session.Bootstrap(ctx, enc); err != nil {
		logger.Warn("seed failed, keeping local opening hands", zap.Error(err))
	}
	return nil
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

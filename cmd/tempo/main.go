package main

import (
	"fmt"
	"os"

	"github.com/alexanderramin/tempo/internal/cli"
	"github.com/alexanderramin/tempo/internal/clock"
	"github.com/alexanderramin/tempo/internal/config"
	"github.com/alexanderramin/tempo/internal/db"
	"github.com/alexanderramin/tempo/internal/events"
	"github.com/alexanderramin/tempo/internal/presence"
	"github.com/alexanderramin/tempo/internal/realtime"
	"github.com/alexanderramin/tempo/internal/scheduler"
	"github.com/alexanderramin/tempo/internal/service"
	"github.com/mattn/go-isatty"
)

// hubBuffer is the per-subscriber event queue depth.
const hubBuffer = 64

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Config file: TEMPO_CONFIG or ./.env
	configPath := os.Getenv("TEMPO_CONFIG")
	if configPath == "" {
		configPath = config.DefaultFile
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	live := config.NewLive(cfg)
	logger := cfg.NewLogger(os.Stderr)

	// Open database (migrations run on open)
	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	uow := db.NewSQLiteUnitOfWork(database)
	clk := clock.System{}
	hub := events.NewHub(hubBuffer)
	observer := service.NewLogUseCaseObserver(logger)

	// Wire services. The live config is the policy source so a reload
	// reaches every rule without a restart.
	sessionSvc := service.NewSessionService(database, uow, clk, live, hub, logger, observer)
	rulesSvc := service.NewRulesService(database, uow, clk, live, hub, logger, observer)
	presenceSvc := service.NewPresenceService(presence.NewMemory(), database, clk, cfg.PresenceTTL, hub, logger)

	runner := scheduler.NewRunner(logger,
		scheduler.IdleScanJob(rulesSvc, cfg.IdleScanInterval, logger),
		scheduler.OvertimeScanJob(rulesSvc, cfg.OvertimeScanInterval, logger),
		scheduler.PresenceSweepJob(presenceSvc, cfg.PresenceTTL),
	)

	app := &cli.App{
		Sessions: sessionSvc,
		Rules:    rulesSvc,
		Alerts:   service.NewAlertService(database),
		Policy:   live,
		Clock:    clk,

		Server:     realtime.NewServer(presenceSvc, hub, clk, logger),
		Scheduler:  runner,
		Config:     live,
		ConfigPath: configPath,
		Logger:     logger,
	}

	// Detect interactive terminal for prompts and the live watch view.
	app.IsInteractive = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}

	return cli.NewRootCmd(app).Execute()
}

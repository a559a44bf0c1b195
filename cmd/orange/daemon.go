package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fentz26/orange/internal/audit"
	"github.com/fentz26/orange/internal/axtree"
	"github.com/fentz26/orange/internal/connectors/localexec"
	"github.com/fentz26/orange/internal/controlplane"
	"github.com/fentz26/orange/internal/executor"
	"github.com/fentz26/orange/internal/input"
	"github.com/fentz26/orange/internal/logging"
	"github.com/fentz26/orange/internal/models"
	"github.com/fentz26/orange/internal/planner"
	"github.com/fentz26/orange/internal/screen"
	"github.com/fentz26/orange/internal/session"
	"github.com/fentz26/orange/internal/speech"
	"github.com/fentz26/orange/internal/store"
	"github.com/fentz26/orange/internal/telemetry"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	dbPath     string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the orange daemon",
	Long:  `Starts the daemon that owns the voice session and serves the local control API.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the control API (default: control.listen)")
	daemonCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (default: store.path)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if listenAddr == "" {
		listenAddr = cfg.Control.Listen
	}
	if dbPath == "" {
		dbPath = cfg.Store.Path
	}

	level := logging.ParseLevel(cfg.Log.Level)
	if cfg.Log.Dir != "" {
		if err := logging.EnableFileLogging(cfg.Log.Dir, level); err != nil {
			return fmt.Errorf("enable file logging: %w", err)
		}
	} else {
		logging.Configure(level, os.Stderr)
	}
	logging.Info("starting orange daemon", "version", controlplane.Version, "listen", listenAddr, "planner", cfg.Planner.URL)

	s, err := store.New(dbPath)
	if err != nil {
		return err
	}

	plannerClient := planner.NewClient(cfg.Planner.URL, cfg.Planner.Timeout)

	// Telemetry goes to the planner and to the local store.
	var (
		emitter    telemetry.Emitter
		stats      controlplane.StatsSource
		dispatcher *telemetry.Dispatcher
	)
	if cfg.Telemetry.Enabled {
		dispatcher = telemetry.New(
			&telemetry.Config{QueueSize: cfg.Telemetry.QueueSize, Workers: cfg.Telemetry.Workers},
			telemetry.FuncSink("planner", plannerClient.Telemetry),
			telemetry.FuncSink("store", s.RecordTelemetry),
		)
		dispatcher.Start()
		emitter, stats = dispatcher, dispatcher
	}

	workDir, _ := os.Getwd()
	conn := localexec.New(workDir)
	tree := axtree.NewSnapshotter(conn)

	ex := executor.New(executor.Config{
		OpenAppTimeout: cfg.Execution.OpenAppTimeout,
		SearchLimits:   axLimits(cfg.Accessibility.Search.MaxDepth, cfg.Accessibility.Search.MaxNodes),
	}, input.NewScriptDispatcher(conn), tree, tree)
	ex.SetRecorder(s)

	relay := speech.NewRelay()
	orch := session.New(session.Deps{
		Speech: relay,
		Screen: screen.NewAssembler(
			screen.NewScriptAppDetector(conn),
			screen.NewScreencaptureShot(conn),
			tree,
			axLimits(cfg.Accessibility.Summary.MaxDepth, cfg.Accessibility.Summary.MaxNodes),
		),
		Planner:      plannerClient,
		Executor:     ex,
		Audit:        audit.NewRecorder(s),
		Telemetry:    emitter,
		Store:        s,
		ApprovalMode: cfg.ApprovalModeFor,
		Preferences: &models.PlannerPreferences{
			PreferredModel: cfg.Planner.PreferredModel,
			Locale:         cfg.Planner.Locale,
			LowLatency:     cfg.Planner.LowLatency,
		},
	})

	server := controlplane.NewServer(controlplane.NewService(orch, relay, s, stats), listenAddr)

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	var runErr error
	select {
	case sig := <-sigCh:
		logging.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			logging.Error("control API failed", "error", err)
			runErr = err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Abandon any in-flight command so its pipeline stops writing.
	orch.Cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Warn("control API shutdown error", "error", err)
	}
	if dispatcher != nil {
		dispatcher.Stop()
	}
	if err := s.Close(); err != nil {
		logging.Warn("database close error", "error", err)
	}

	logging.Info("shutdown complete")
	return runErr
}

func axLimits(depth, nodes int) axtree.Limits {
	return axtree.Limits{MaxDepth: depth, MaxNodes: nodes}
}

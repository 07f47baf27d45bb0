package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/omni-orchestrator/pkg/api"
	"github.com/cuemby/omni-orchestrator/pkg/autoscaler"
	"github.com/cuemby/omni-orchestrator/pkg/config"
	"github.com/cuemby/omni-orchestrator/pkg/database"
	"github.com/cuemby/omni-orchestrator/pkg/log"
	"github.com/cuemby/omni-orchestrator/pkg/nodeagent"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "omnid",
	Short: "OmniOrchestrator - multi-tenant platform control plane",
	Long: `OmniOrchestrator is the control plane of a multi-tenant cloud
platform: per-tenant database provisioning with versioned migrations,
cluster-wide component backups, a policy-driven autoscaler and the
platform bootstrap machinery, behind one authenticated HTTP API.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"OmniOrchestrator version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	serveCmd.Flags().String("listen-addr", "", "HTTP listen address (overrides "+config.EnvListenAddr+")")
	serveCmd.Flags().String("agent-url", "", "node-agent gateway base URL (overrides "+config.EnvAgentURL+")")
	serveCmd.Flags().Duration("scale-interval", autoscaler.DefaultInterval, "autoscaler evaluation interval")

	migrateCmd.Flags().Bool("yes", false, "skip the interactive confirmation prompt")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control plane",
	Long: `Run the HTTP API together with the autoscaler and bootstrap
coordinator. Initialization connects to the main database and brings its
schema to the configured version; failure to do either exits non-zero.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Init(log.Config{Level: "info"})

		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("listen-addr"); addr != "" {
			cfg.ListenAddr = addr
		}
		if url, _ := cmd.Flags().GetString("agent-url"); url != "" {
			cfg.AgentURL = url
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		db, err := database.New(ctx, cfg.DatabaseURL, database.Options{
			SQLDir:        cfg.SQLDir,
			TargetVersion: cfg.SchemaVersion,
			BypassConfirm: cfg.BypassConfirm,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		var agent nodeagent.NetworkClient
		if cfg.AgentURL != "" {
			agent = nodeagent.NewHTTPClient(cfg.AgentURL)
		} else {
			lg := log.WithComponent("main")
			lg.Warn().Msg("no agent URL configured, backups will fail at discovery")
			agent = nodeagent.NewHTTPClient("http://localhost:9000")
		}

		interval, _ := cmd.Flags().GetDuration("scale-interval")
		scaler := autoscaler.NewEngine(noopExecutor{}, interval)
		scaler.Start()
		defer scaler.Stop()

		server := api.NewServer(cfg, db, agent, scaler)
		return server.Start(ctx)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the main database and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Init(log.Config{Level: "info"})

		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		if yes, _ := cmd.Flags().GetBool("yes"); yes {
			cfg.BypassConfirm = true
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("%s is required", config.EnvDatabaseURL)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		db, err := database.New(ctx, cfg.DatabaseURL, database.Options{
			SQLDir:        cfg.SQLDir,
			TargetVersion: cfg.SchemaVersion,
			BypassConfirm: cfg.BypassConfirm,
		})
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		defer db.Close()

		fmt.Printf("main database is at schema version %d\n", cfg.SchemaVersion)
		return nil
	},
}

// noopExecutor backs the autoscaler until a placement service is wired
// in. It reports one instance and accepts every action as a no-op.
type noopExecutor struct{}

func (noopExecutor) GetCurrentCapacity(ctx context.Context, resourceID string) (int, error) {
	return 1, nil
}

func (noopExecutor) IsSafeToScale(ctx context.Context, action *autoscaler.ScaleAction) (bool, error) {
	return true, nil
}

func (noopExecutor) ExecuteScaleAction(ctx context.Context, action *autoscaler.ScaleAction) error {
	lg := log.WithComponent("main")
	lg.Info().
		Str("resource_id", action.ResourceID).
		Str("direction", string(action.Direction)).
		Int("target", action.TargetCapacity).
		Msg("scale action (noop executor)")
	return nil
}

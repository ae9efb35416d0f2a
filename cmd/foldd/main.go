// Command foldd is the fold daemon: it serves the job queue worker pool
// (C10) that drives the indexer (C9) and git sink (C12), and exposes an
// index subcommand for one-shot repository indexing.
//
// Configuration is loaded from ~/.config/fold/config.yaml when present,
// overridden by environment variables; see internal/config for the full list.
//
// Usage:
//
//	# Start the worker pool, blocking until SIGINT/SIGTERM
//	foldd serve
//
//	# Index one project's working tree once
//	foldd index --project myproj --root /path/to/repo
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Generation-One/fold/internal/config"
	"github.com/Generation-One/fold/internal/foldcore"
	"github.com/Generation-One/fold/internal/logging"
	"github.com/Generation-One/fold/internal/relstore"
	"github.com/Generation-One/fold/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "foldd",
	Short:   "fold semantic memory engine daemon",
	Version: fmt.Sprintf("%s (%s)", version, gitCommit),
}

func init() {
	rootCmd.AddCommand(serveCmd, indexCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the job queue worker pool until interrupted",
	RunE:  runServe,
}

var (
	indexProjectSlug string
	indexProjectRoot string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index one repository's working tree once and exit",
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexProjectSlug, "project", "", "project slug (required)")
	indexCmd.Flags().StringVar(&indexProjectRoot, "root", "", "repository working tree path (required)")
	_ = indexCmd.MarkFlagRequired("project")
	_ = indexCmd.MarkFlagRequired("root")
}

// runServe starts the worker pool and blocks until SIGINT/SIGTERM, per the
// graceful-shutdown discipline of cmd/contextd/main.go's run(ctx).
func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		cancel()
		_ = sig
	}()

	cfg, log, tel, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer func() { _ = tel.Shutdown(context.Background()) }()

	zlog := log.Underlying()
	d, err := buildDeps(cfg, postgresConfigFrom(cfg), dataPathFrom(cfg), zlog)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}
	defer d.Close()

	log.Info(ctx, "foldd serving", zap.Int("queue_workers", cfg.Queue.Workers))
	d.pool.Run(ctx)
	log.Info(ctx, "foldd shutdown complete")
	return nil
}

// runIndex runs one index_repository pass for the given project and exits,
// per spec §4.9's index_repository operation.
func runIndex(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	cfg, log, tel, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer func() { _ = tel.Shutdown(context.Background()) }()

	d, err := buildDeps(cfg, postgresConfigFrom(cfg), dataPathFrom(cfg), log.Underlying())
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}
	defer d.Close()

	ctx = logging.WithProjectScope(ctx, &logging.ProjectScope{ProjectSlug: indexProjectSlug})

	project, err := d.rel.GetProjectBySlug(ctx, indexProjectSlug)
	if err != nil {
		if !foldcore.Is(err, foldcore.NotFound) {
			return fmt.Errorf("looking up project %s: %w", indexProjectSlug, err)
		}
		project = foldcore.Project{
			ID:    indexProjectSlug,
			Slug:  indexProjectSlug,
			Root:  indexProjectRoot,
			Decay: foldcore.DecayParams{StrengthWeight: cfg.Decay.StrengthWeight, HalfLifeDays: cfg.Decay.HalfLifeDays},
		}
		if cerr := d.rel.CreateProject(ctx, project); cerr != nil {
			return fmt.Errorf("creating project %s: %w", indexProjectSlug, cerr)
		}
	}
	project.Root = indexProjectRoot
	ctx = logging.WithProjectScope(ctx, &logging.ProjectScope{ProjectID: project.ID, ProjectSlug: project.Slug})

	log.Info(ctx, "indexing repository", zap.String("root", indexProjectRoot))
	summary, err := d.idx.IndexRepository(ctx, project, foldcore.Repository{ProjectID: project.ID})
	if err != nil {
		return fmt.Errorf("indexing %s: %w", indexProjectSlug, err)
	}

	fmt.Printf("indexed %s: total=%d inserted=%d updated=%d skipped=%d failed=%d\n",
		indexProjectSlug, summary.Total, summary.Inserted, summary.Updated, summary.Skipped, summary.Failed)
	return nil
}

// loadConfig tries the YAML-backed loader first (~/.config/fold/config.yaml
// overridden by environment variables), falling back to environment-only
// config when LoadWithFile returns an error, such as a file that fails
// validation; a missing file is not an error, so LoadWithFile then runs on
// environment variables and its own defaults. Grounded on
// cmd/ctxd/checkpoint.go's initCheckpointService. It also stands up the
// structured logger (internal/logging) and OTel providers
// (internal/telemetry) from the same Observability section, so every span
// internal/vectorstore already opens via the process-global otel.Tracer
// exports for real instead of going to a no-op provider.
func loadConfig(ctx context.Context) (*config.Config, *logging.Logger, *telemetry.Telemetry, error) {
	cfg, err := config.LoadWithFile("")
	if err != nil {
		cfg = config.Load()
		if verr := cfg.Validate(); verr != nil {
			return nil, nil, nil, fmt.Errorf("invalid configuration: %w", verr)
		}
	}

	tel, err := telemetry.New(ctx, telemetryConfigFrom(cfg))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	logCfg := logging.NewDefaultConfig()
	logCfg.Fields["service"] = cfg.Observability.ServiceName
	if cfg.Observability.EnableTelemetry {
		logCfg.Output.OTEL = true
	} else {
		logCfg.Format = "console"
	}
	log, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	return cfg, log, tel, nil
}

// telemetryConfigFrom maps the Observability section onto the OTel SDK's
// config shape, per internal/telemetry/config.go.
func telemetryConfigFrom(cfg *config.Config) *telemetry.Config {
	telCfg := telemetry.NewDefaultConfig()
	telCfg.Enabled = cfg.Observability.EnableTelemetry
	telCfg.ServiceName = cfg.Observability.ServiceName
	telCfg.ServiceVersion = version
	if cfg.Observability.OTLPEndpoint != "" {
		telCfg.Endpoint = cfg.Observability.OTLPEndpoint
	}
	if cfg.Observability.OTLPProtocol != "" {
		telCfg.Protocol = cfg.Observability.OTLPProtocol
	}
	telCfg.Insecure = cfg.Observability.OTLPInsecure
	telCfg.TLSSkipVerify = cfg.Observability.OTLPTLSSkipVerify
	return telCfg
}

func postgresConfigFrom(cfg *config.Config) relstore.Config {
	return relstore.Config{
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     getEnvInt("POSTGRES_PORT", 5432),
		User:     getEnv("POSTGRES_USER", "fold"),
		Password: getEnv("POSTGRES_PASSWORD", ""),
		Database: getEnv("POSTGRES_DATABASE", "fold"),
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}
}

func dataPathFrom(cfg *config.Config) string {
	return cfg.Qdrant.DataPath
}

func secToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return def
	}
	return n
}

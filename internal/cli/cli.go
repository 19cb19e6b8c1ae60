package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"modpatch/internal/config"
)

// Execute runs the CLI application.
func Execute() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := newRootCmd(config.Load()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "modpatch",
		Short:        "Conflict resolution and patch generation for Paradox game mods",
		Long:         "Parses Paradox script mods into definitions, resolves conflicts by load order and writes the result as a patch mod.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(cfg.Level())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.Root, "root", cfg.Root, "Directory that holds patch mods")
	flags.StringVar(&cfg.Game, "game", cfg.Game, "Game the mods belong to")
	flags.StringVar(&cfg.RulesFile, "rules", cfg.RulesFile, "Naming rule table (TOML), built-in table when empty")
	flags.IntVar(&cfg.WorkerCount, "workers", cfg.WorkerCount, "Number of parallel workers")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")

	rootCmd.AddCommand(parseCmd(cfg))
	rootCmd.AddCommand(validateCmd(cfg))
	rootCmd.AddCommand(formatCmd())
	rootCmd.AddCommand(mergeCmd(cfg))
	rootCmd.AddCommand(stateCmd(cfg))
	rootCmd.AddCommand(patchCmd(cfg))
	rootCmd.AddCommand(indexCmd(cfg))
	rootCmd.AddCommand(catalogCmd(cfg))
	rootCmd.AddCommand(graphCmd(cfg))

	return rootCmd
}

// setupContext creates a cancellable context with signal handling.
func setupContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Warn().Msg("Received shutdown signal, cancelling...")
		cancel()
	}()

	return ctx, cancel
}

// initDependencies connects to PostgreSQL and Neo4j.
func initDependencies(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, neo4j.DriverWithContext, error) {
	pgPool, err := initPostgres(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	neo4jDriver, err := initNeo4j(ctx, cfg)
	if err != nil {
		pgPool.Close()
		return nil, nil, err
	}

	return pgPool, neo4jDriver, nil
}

func initPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect PostgreSQL: %w", err)
	}

	if err := pgPool.Ping(ctx); err != nil {
		pgPool.Close()
		return nil, fmt.Errorf("ping PostgreSQL: %w", err)
	}
	log.Info().Msg("Connected to PostgreSQL")

	return pgPool, nil
}

func initNeo4j(ctx context.Context, cfg *config.Config) (neo4j.DriverWithContext, error) {
	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""))
	if err != nil {
		return nil, fmt.Errorf("connect Neo4j: %w", err)
	}

	if err := neo4jDriver.VerifyConnectivity(ctx); err != nil {
		neo4jDriver.Close(ctx)
		return nil, fmt.Errorf("verify Neo4j connectivity: %w", err)
	}
	log.Info().Msg("Connected to Neo4j")

	return neo4jDriver, nil
}

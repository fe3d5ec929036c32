package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/voicedesk/voicedesk/pkg/agent"
	"github.com/voicedesk/voicedesk/pkg/chat"
	"github.com/voicedesk/voicedesk/pkg/config"
	"github.com/voicedesk/voicedesk/pkg/db"
)

var (
	// Version information (set at build time)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"

	// Database connection flags
	host     string
	user     string
	password string
	insecure bool

	// Application flags
	model   string
	verbose bool
)

func getVersionString() string {
	if commit != "unknown" && buildDate != "unknown" {
		return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate)
	}
	return version
}

var rootCmd = &cobra.Command{
	Use:   "voicedesk",
	Short: "Customer-service assistant with database-backed tools",
	Long: `Voicedesk is a customer-service assistant that answers callers using a
language model with tools backed by the customer database. This binary runs
the local operator console; the telephony bridge drives the same tool layer
in production.

Configuration comes from the environment (DB_HOST, DB_USER, DB_PASSWORD,
DB_TLS_SERVER_NAME, DB_CA_CERT, DB_CA_CERT_FILE, DB_INSECURE, DB_SCHEMA,
ANTHROPIC_API_KEY), optionally loaded from a .env file. Flags take
precedence over the environment.`,
	Version: getVersionString(),
	RunE:    runVoicedesk,
}

func init() {
	rootCmd.Flags().StringVar(&host, "host", "", "Database host:port (or DB_HOST)")
	rootCmd.Flags().StringVar(&user, "user", "", "Database user (or DB_USER)")
	rootCmd.Flags().StringVar(&password, "password", "", "Database password (or DB_PASSWORD)")
	rootCmd.Flags().BoolVar(&insecure, "insecure", false, "Disable TLS for local development (or DB_INSECURE)")
	rootCmd.Flags().StringVar(&model, "model", agent.DefaultModel, "Claude model to use")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "Debug logging (or DB_VERBOSE)")
}

func runVoicedesk(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// .env is a local-development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := config.FromFlags(host, user, password, insecure)

	level := zerolog.InfoLevel
	if verbose || cfg.Verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	if err := cfg.Validate(); err != nil {
		// The console still starts: the database may come online later, and
		// the tool layer degrades per request either way.
		logger.Warn().Err(err).Msg("database not configured; tools will report it offline")
	}
	logger.Info().Str("target", cfg.Redacted()).Msg("starting voicedesk")

	client := db.NewClient(cfg, logger)
	defer client.Invalidate()

	ag, err := agent.NewAgent("", model, cfg.Schema, logger)
	if err != nil {
		return err
	}

	session := chat.NewSession(client, ag, logger)

	registry := agent.NewToolRegistry()
	for _, tool := range agent.CreateSchemaTools(client) {
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("failed to register tool: %w", err)
		}
	}
	for _, tool := range agent.CreateDataTools(client, session.Approve) {
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("failed to register tool: %w", err)
		}
	}
	for _, tool := range registry.All() {
		ag.AddTool(agent.ConvertToolToDefinition(tool))
	}

	return session.Start(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

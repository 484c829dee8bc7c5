package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tendant/edu-cms/pkg/educms"
	"github.com/tendant/edu-cms/pkg/educms/config"
)

// AdminConfig holds process settings read from the environment.
type AdminConfig struct {
	LogLevel      string `env:"LOG_LEVEL" env-default:"warn"`
	EnvPrefix     string `env:"EDUCMS_ENV_PREFIX" env-default:""`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once the root command has run.
type app struct {
	proc    AdminConfig
	server  *config.ServerConfig
	runtime *config.Runtime
	logger  *slog.Logger
}

func NewRootCommand() *cobra.Command {
	a := &app{}
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "educms-admin",
		Short: "Maintenance tool for the educms content store",
		Long: `educms admin CLI

Re-runs deletions, repairs dangling references and creates the bootstrap
admin account. Storage is selected with the same DATABASE_URL, MEDIA_URL and
REDIS_URL variables the server reads. A .env file in the current directory is
loaded when present.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cleanenv.ReadEnv(&a.proc); err != nil {
				return fmt.Errorf("failed to read configuration: %w", err)
			}
			level := a.proc.LogLevel
			if verbose {
				level = "debug"
			}
			a.logger = newLogger(level)

			server, err := config.Load(config.WithEnv(a.proc.EnvPrefix))
			if err != nil {
				return err
			}
			a.server = server
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.runtime != nil {
				a.runtime.Close()
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewDeleteCommand(a))
	rootCmd.AddCommand(NewPruneCommand(a))
	rootCmd.AddCommand(NewSeedAdminCommand(a))
	rootCmd.AddCommand(NewEventsCommand(a))

	return rootCmd
}

// service builds the service on first use. The events command never needs one.
func (a *app) service(cmd *cobra.Command) (educms.Service, error) {
	if a.runtime == nil {
		rt, err := a.server.BuildService(cmd.Context(), educms.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		a.runtime = rt
	}
	return a.runtime.Service, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/soyeahso/witness/internal/config"
	"github.com/soyeahso/witness/internal/logging"
)

var (
	cfgFile  string
	logLevel string

	// loaded at init time
	paths     config.Paths
	cfg       config.Config
	log       *logging.Logger
	logCloser io.Closer
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "witness",
		Short: "Record and replay HTTP interactions",
		Long: "Witness captures HTTP request/response exchanges under deterministic ids, " +
			"groups them into sessions and replays them against other targets. " +
			"Run `witness serve` to expose the operations as MCP tools.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional
			_ = godotenv.Load()

			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}

			cfg, err = config.Load(paths.Config)
			if err != nil {
				return err
			}
			config.ResolveStoragePath(&cfg, paths)
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}

			log, logCloser, err = logging.Open(cfg.Logging.Level, cfg.Logging.ConsoleStyle, cfg.Logging.File)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.witness/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRecordCmd())
	cmd.AddCommand(newReplayCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

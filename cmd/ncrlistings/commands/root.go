// Package commands implements the CLI commands for ncrlistings.
package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/ncrlistings/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "ncrlistings",
	Short: "Resumable property listing crawler for Delhi NCR portals",
	Long: `ncrlistings crawls the paginated search results of Indian property
portals, normalizes price, area and location text into typed values and
appends new listings to a CSV, JSONL, Parquet or Postgres store.

Interrupted crawls resume from the checkpoint file, and listings already
present in the store are skipped.

Examples:
  # Crawl every configured city of 99acres into a CSV file
  ncrlistings crawl --site 99acres -o data/99acres.csv

  # Crawl two cities of magicbricks with a headless browser
  ncrlistings crawl --site magicbricks --city Noida --city Gurgaon \
      --fetch-mode dynamic -o data/magicbricks.parquet

  # Check an existing store against the plausibility ranges
  ncrlistings validate -i data/99acres.csv --export accepted.jsonl`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.ncrlistings.yaml or ./.ncrlistings.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "only log errors and hide progress")
	flags.Bool("log-json", false, "log as JSON")
	flags.Bool("no-color", false, "disable colored log output")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("quiet", flags.Lookup("quiet"))
	_ = viper.BindPFlag("log_json", flags.Lookup("log-json"))
	_ = viper.BindPFlag("no_color", flags.Lookup("no-color"))
}

func initConfig() {
	// A missing .env is normal; a broken one is worth a warning.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: reading .env: %v\n", err)
	}

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".ncrlistings")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("NCRLISTINGS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && viper.GetString("config") != "" {
			fmt.Fprintf(os.Stderr, "Warning: reading config: %v\n", err)
		}
	}
}

// newLogger builds the logger described by the global flags.
func newLogger() *slog.Logger {
	return logger.New(logger.Options{
		Debug:   viper.GetBool("debug"),
		Quiet:   viper.GetBool("quiet"),
		JSON:    viper.GetBool("log_json"),
		NoColor: viper.GetBool("no_color"),
	})
}

// bindFlags binds the flags of cmd to viper so config files and
// NCRLISTINGS_* env vars can set them. Keys keep the flag names.
func bindFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

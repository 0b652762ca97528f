package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Versioning information set at build time
var version, commit = "dev", "n/a"

// log is the CLI logger, configured by the root command before any subcommand runs
var log = slog.Default()

var quartermasterCmd = &cobra.Command{
	Use:   "quartermaster",
	Short: "Quartermaster is the resource ledger at the core of a cluster scheduler.",

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var logLevel slog.Level
		if err := logLevel.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
			return fmt.Errorf("failed to parse log level: %w", err)
		}

		options := slog.HandlerOptions{
			AddSource: viper.GetBool("log-source"),
			Level:     logLevel,
		}

		switch format := viper.GetString("log-format"); format {
		case "json":
			log = slog.New(slog.NewJSONHandler(os.Stderr, &options))
		case "text":
			log = slog.New(slog.NewTextHandler(os.Stderr, &options))
		default:
			return fmt.Errorf("unknown log format '%s'", format)
		}

		slog.SetDefault(log)
		return nil
	},
}

func init() {
	quartermasterCmd.AddCommand(inventoryCmd)
	quartermasterCmd.AddCommand(probeCmd)
	quartermasterCmd.AddCommand(simulateCmd)
	quartermasterCmd.AddCommand(versionCmd)

	quartermasterCmd.PersistentFlags().String("log-format", "text", "log format (json, text)")
	quartermasterCmd.PersistentFlags().String("log-level", "INFO", "minimum log level")
	quartermasterCmd.PersistentFlags().Bool("log-source", false, "add source code location to logs")

	viper.SetEnvPrefix("quartermaster")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	lo.Must0(viper.BindPFlags(quartermasterCmd.PersistentFlags()))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	quartermasterCmd.SetOut(os.Stdout)
	if err := quartermasterCmd.ExecuteContext(ctx); err != nil {
		lo.Must(fmt.Fprintln(os.Stderr, color.HiRedString(fmt.Sprint(err))))
		os.Exit(1)
	}
}

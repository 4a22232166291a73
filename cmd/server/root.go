package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"covidboard/internal/config"
	"covidboard/internal/logging"
)

var (
	Version        = "develop"
	CommitHash     = "n/a"
	BuildTimestamp = "n/a"

	// v holds flags, environment and config file settings for every command.
	v = config.NewViper()

	// Set up in PersistentPreRunE.
	cfg    *config.Config
	logger = zerolog.Nop()

	rootCmd = &cobra.Command{
		Use:           "covidboard",
		Short:         "COVID-19 dashboard backend: filter, aggregate and chart a cleaned dataset",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ReadFile(v, v.GetString("config")); err != nil {
				return err
			}
			var err error
			if cfg, err = config.FromViper(v); err != nil {
				return err
			}

			local := cfg.Log.Local || (!cmd.Flags().Changed("local") && logging.IsTerminal(os.Stderr))
			logger = logging.New(logging.Options{Verbose: cfg.Log.Verbose, Local: local})
			logger.Debug().Str("file", v.ConfigFileUsed()).Msg("loaded config")
			traceConfig()
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "-v for debug logs (-vv for trace)")
	rootCmd.PersistentFlags().Bool("local", false, "Print human readable logs (default when stderr is a terminal)")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a config file (default ./covidboard.yaml)")
	rootCmd.PersistentFlags().StringP("data", "d", config.Default().Data.Path, "Path to the cleaned CSV dataset")
	rootCmd.PersistentFlags().String("presets", "", "Path to a YAML file of named filter presets")

	bindFlag("log.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	bindFlag("log.local", rootCmd.PersistentFlags().Lookup("local"))
	bindFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	bindFlag("data.path", rootCmd.PersistentFlags().Lookup("data"))
	bindFlag("data.presets", rootCmd.PersistentFlags().Lookup("presets"))

	rootCmd.SetVersionTemplate(fmt.Sprintf("covidboard version: %s git_commit: %s build_time: %s\n", Version, CommitHash, BuildTimestamp))

	serveCmd.Version = rootCmd.Version
	reportCmd.Version = rootCmd.Version
	exploreCmd.Version = rootCmd.Version
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(exploreCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("command failed")
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func bindFlag(key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func traceConfig() {
	for _, k := range v.AllKeys() {
		logger.Trace().Msgf("%s=%v", k, v.Get(k))
	}
}

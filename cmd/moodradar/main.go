package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/elonfeng/moodradar/internal/config"
	"github.com/elonfeng/moodradar/internal/logging"
	"github.com/elonfeng/moodradar/internal/metrics"
)

var (
	cfgFile string
	envFile string
	version = "dev"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "moodradar",
		Short:         "Measure the public mood around a topic across social platforms",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			metrics.Init(version)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with API credentials")

	root.AddCommand(analyzeCmd())
	root.AddCommand(trendingCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func analyzeCmd() *cobra.Command {
	var (
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "analyze <topic>",
		Short: "Analyze the mood around a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), args[0], limit, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 0, "ranked posts to return (default: from config)")
	return cmd
}

func trendingCmd() *cobra.Command {
	var (
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "trending",
		Short: "Show currently trending topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrending(cmd.Context(), limit, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 0, "max topics to show (default: from config)")
	return cmd
}

func historyCmd() *cobra.Command {
	var (
		jsonOutput bool
		limit      int
		topic      string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded analysis runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), topic, limit, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to show")
	cmd.Flags().StringVar(&topic, "topic", "", "only show runs for this topic")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.Log.Level)
	return cfg, nil
}

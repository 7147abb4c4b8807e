package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evreco/app"
	"github.com/kilianp07/evreco/config"
	"github.com/kilianp07/evreco/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "evreco",
	Short: "EV charging station recommender",
	Long:  "Serves charging station recommendations over HTTP. Without a subcommand the API server is started.",
	RunE:  run,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file (empty for defaults and environment only)")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// loadConfig reads the file named by --config. The default path may be
// missing, in which case defaults and the environment apply.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgPath
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) && !cmd.Flags().Changed("config") {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.SetLevel(cfg.Logging.Level)
	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evreco/app/plugins"
	"github.com/kilianp07/evreco/config"
	"github.com/kilianp07/evreco/infra/logger"
	"github.com/kilianp07/evreco/infra/mqtt"
)

var bridgeOpts struct {
	backend  string
	command  string
	args     []string
	model    string
	endpoint string
}

var bridgeCmd = &cobra.Command{
	Use:   "model-bridge",
	Short: "Answer model requests published on MQTT with a local or HTTP model",
	RunE:  runBridge,
}

func init() {
	f := bridgeCmd.Flags()
	f.StringVar(&bridgeOpts.backend, "backend", "exec", "model backend: exec, http or mock")
	f.StringVar(&bridgeOpts.command, "command", "", "model command for the exec backend")
	f.StringSliceVar(&bridgeOpts.args, "args", nil, "arguments of the model command")
	f.StringVar(&bridgeOpts.model, "model-path", "", "trained model file checked before each call")
	f.StringVar(&bridgeOpts.endpoint, "endpoint", "", "base URL for the http backend")
	rootCmd.AddCommand(bridgeCmd)
}

func bridgeBackend() (config.PredictionConfig, error) {
	o := bridgeOpts
	switch o.backend {
	case "exec":
		return config.PredictionConfig{Type: "exec", Conf: map[string]any{
			"command": o.command, "args": o.args, "model_path": o.model,
		}}, nil
	case "http":
		return config.PredictionConfig{Type: "http", Conf: map[string]any{"endpoint": o.endpoint}}, nil
	case "mock":
		return config.PredictionConfig{Type: "mock"}, nil
	default:
		return config.PredictionConfig{}, fmt.Errorf("unsupported bridge backend %q", o.backend)
	}
}

func runBridge(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.MQTT.Validate(); err != nil {
		return err
	}
	pc, err := bridgeBackend()
	if err != nil {
		return err
	}
	backend, err := plugins.NewModelClient(pc, plugins.Env{Logger: logger.New("bridge-backend")})
	if err != nil {
		return err
	}
	r, err := mqtt.NewResponder(ctx, cfg.MQTT, backend, cfg.Recommend.ModelTimeout())
	if err != nil {
		return fmt.Errorf("mqtt responder: %w", err)
	}
	defer r.Close()
	logger.New("bridge").Infof("serving %s model on %s", pc.Type, cfg.MQTT.RequestTopic)
	<-ctx.Done()
	return nil
}

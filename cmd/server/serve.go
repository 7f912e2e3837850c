package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FreePeak/smart-slides/internal/config"
	"github.com/FreePeak/smart-slides/internal/infrastructure/logging"
	"github.com/FreePeak/smart-slides/internal/infrastructure/openai"
	"github.com/FreePeak/smart-slides/internal/infrastructure/server"
	"github.com/FreePeak/smart-slides/internal/infrastructure/tracing"
	"github.com/FreePeak/smart-slides/internal/interfaces/rest"
	"github.com/FreePeak/smart-slides/internal/usecases/slides"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket server",
	Long: `Start the server. Configuration is read from the built-in defaults,
the optional --config YAML file, the environment (OPENAI_API_KEY,
SERVER_ADDR, LOG_LEVEL, ...) and finally the command line flags.`,
	RunE: runServe,
}

func init() {
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().String("addr", "", "listen address (overrides config, e.g. :8000)")
	cmd.Flags().String("config", "", "path to a YAML configuration file, reloaded on change")
	cmd.Flags().String("log-level", "", "log level: debug, info, warn, error")
	cmd.Flags().Bool("dev", false, "development logging")
}

func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}

	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logger.Level, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("dev") {
		cfg.Logger.Development, _ = cmd.Flags().GetBool("dev")
	}
	return cfg, path, cfg.Validate()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, configPath, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:         logging.ParseLevel(cfg.Logger.Level),
		Development:   cfg.Logger.Development,
		OutputPaths:   []string{"stdout"},
		InitialFields: logging.Fields{"service": "smart-slides", "version": Version},
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()
	logging.SetDefault(logger)

	shutdownTracing, err := tracing.Setup(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "smart-slides",
		Version:     Version,
	})
	if err != nil {
		return err
	}

	if !cfg.HasCredential() {
		logger.Warn("OPENAI_API_KEY is not set; slide generation will fail until it is configured")
	}

	generator := openai.NewClient(openai.Config{
		APIKey:      cfg.OpenAI.APIKey,
		Model:       cfg.OpenAI.Model,
		Temperature: float32(cfg.OpenAI.Temperature),
		BaseURL:     cfg.OpenAI.BaseURL,
		Timeout:     cfg.OpenAI.Timeout,
		Logger:      logger,
	})

	srv := rest.NewServer(rest.Config{
		Addr:              cfg.Server.Addr,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		WebSocket: server.WebSocketOptions{
			ReadLimit:    cfg.Realtime.ReadLimit,
			WriteTimeout: cfg.Realtime.WriteTimeout,
			PingInterval: cfg.Realtime.PingInterval,
		},
		SendTimeout: cfg.Realtime.SendTimeout,
		Generator:   slides.NewService(slides.Config{Generator: generator, Logger: logger}),
		Logger:      logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if configPath != "" {
		go watchConfig(ctx, configPath, logger)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server stopped unexpectedly", logging.Fields{"error": err.Error()})
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", logging.Fields{"error": err.Error()})
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Failed to flush traces", logging.Fields{"error": err.Error()})
	}
	return <-errCh
}

// watchConfig applies the parts of a changed configuration file that can
// take effect without a restart.
func watchConfig(ctx context.Context, path string, logger *logging.Logger) {
	err := config.Watch(ctx, path,
		func(cfg *config.Config) {
			level := logging.ParseLevel(cfg.Logger.Level)
			if logger.SetLevel(level) {
				logger.Info("Configuration reloaded", logging.Fields{"log_level": string(level)})
			}
		},
		func(err error) {
			logger.Warn("Ignoring invalid configuration change", logging.Fields{"error": err.Error()})
		},
	)
	if err != nil {
		logger.Warn("Configuration watcher stopped", logging.Fields{"error": err.Error()})
	}
}

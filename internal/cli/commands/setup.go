// Package commands implements the semabridge CLI subcommands.
package commands

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semabridge/internal/cli/config"
	"github.com/leapstack-labs/semabridge/internal/engine"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Engine *engine.Engine
}

// NewCommandContext creates a CommandContext with an engine. Returns the
// context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	eng, err := createEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = eng.Close()
	}

	return &CommandContext{Cfg: cfg, Logger: logger, Engine: eng}, cleanup, nil
}

// getConfig returns the current configuration, falling back to environment
// variables when no config has been loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	return &config.Config{
		ModelsDir:    getEnvOrDefault("SEMABRIDGE_MODELS_DIR", config.DefaultModelsDir),
		StatePath:    getEnvOrDefault("SEMABRIDGE_STATE_PATH", config.DefaultStateFile),
		Environment:  getEnvOrDefault("SEMABRIDGE_ENVIRONMENT", config.DefaultEnv),
		DisplayNames: os.Getenv("SEMABRIDGE_DISPLAY_NAMES") != "false",
		Verbose:      os.Getenv("SEMABRIDGE_VERBOSE") == "true",
		Server:       config.ServerConfig{Addr: getEnvOrDefault("SEMABRIDGE_SERVER__ADDR", config.DefaultServerAddr)},
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func createEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	stateDir := filepath.Dir(cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0750); err != nil {
			return nil, err
		}
	}

	return engine.New(engine.Config{
		ModelsDir:    cfg.ModelsDir,
		StatePath:    cfg.StatePath,
		Environment:  cfg.Environment,
		DisplayNames: cfg.DisplayNames,
		Logger:       logger,
	})
}

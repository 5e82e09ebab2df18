// Package config loads project configuration for the CLI from file,
// environment variables and flags.
package config

// Defaults.
const (
	DefaultModelsDir  = "models"
	DefaultStateFile  = ".semabridge/state.db"
	DefaultEnv        = "dev"
	DefaultServerAddr = ":8080"
)

// ServerConfig holds the HTTP trigger settings.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// Config holds the full CLI configuration.
type Config struct {
	// ModelsDir is the path to the semantic-model definitions directory.
	ModelsDir string `koanf:"models_dir"`

	// StatePath is the path to the SQLite state database.
	StatePath string `koanf:"state_path"`

	// Environment is the current environment name.
	Environment string `koanf:"environment"`

	// DisplayNames replaces underscores with spaces in surfaced identifiers
	// and metric labels.
	DisplayNames bool `koanf:"display_names"`

	// Verbose enables debug logging.
	Verbose bool `koanf:"verbose"`

	// Server holds the HTTP trigger settings.
	Server ServerConfig `koanf:"server"`
}

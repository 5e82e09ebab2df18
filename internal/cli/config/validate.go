package config

import (
	"fmt"
)

// Validate checks the loaded configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.ModelsDir == "" {
		return fmt.Errorf("models_dir is required")
	}
	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	return nil
}

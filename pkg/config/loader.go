// Package config reads service settings from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load fills cfg from environment variables declared with `env` struct tags.
// Defaults come from `envDefault` tags, so a bare environment still yields a
// runnable configuration.
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

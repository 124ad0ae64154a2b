package cli

import (
	"github.com/mcoot/rpslsgame/internal/config"
)

// Config holds CLI configuration: the environment settings plus flag-only options
type Config struct {
	Env *config.Config

	Output  string
	Verbose bool
	PIN     string

	// Remote status server
	ServerURL string
	Token     string
}

// DefaultConfig loads the environment. A malformed environment is reported
// when a command runs, not when flags are registered.
func DefaultConfig() (*Config, error) {
	env, err := config.Load()
	if env == nil {
		env = &config.Config{}
	}
	return &Config{
		Env:       env,
		Output:    "text",
		ServerURL: "http://127.0.0.1:8080",
	}, err
}

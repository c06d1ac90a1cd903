package commands

import (
	"time"

	"github.com/mosaicnetworks/gossipnode/src/config"
)

//CLIConfig contains configuration for the Run and Simulate commands
type CLIConfig struct {
	Node     config.Config `mapstructure:",squash"`
	Duration time.Duration `mapstructure:"duration"`
	Client   string        `mapstructure:"client"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Node:   *config.NewDefaultConfig(),
		Client: "c0",
	}
}

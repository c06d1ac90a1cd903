package config

import (
	"io"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/gossipnode/src/common"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Protocol names accepted by Config.Protocol.
const (
	ProtocolBroadcast = "broadcast"
	ProtocolCounter   = "counter"
	ProtocolEcho      = "echo"
	ProtocolUniqueIDs = "unique-ids"
)

// Default configuration values.
const (
	DefaultLogLevel        = "info"
	DefaultLogFile         = ""
	DefaultProtocol        = ProtocolBroadcast
	DefaultGossipInterval  = 500 * time.Millisecond
	DefaultCounterInterval = 1000 * time.Millisecond
	DefaultEventBuffer     = 1024
	DefaultShutdownTimeout = 1000 * time.Millisecond
	DefaultServiceAddr     = ""
)

// Config contains all the configuration properties of a node.
type Config struct {
	// DataDir is the directory searched for the configuration file and, when
	// simulating, for peers.json.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of every log line. Logs always go to
	// stderr because stdout carries the wire protocol.
	LogFile string `mapstructure:"log-file"`

	// Protocol selects the handler the node runs: broadcast, counter, echo or
	// unique-ids.
	Protocol string `mapstructure:"protocol"`

	// GossipInterval is the period of the broadcast protocol's gossip timer.
	GossipInterval time.Duration `mapstructure:"gossip-interval"`

	// CounterInterval is the period at which the counter protocol pushes its
	// local value to the other nodes.
	CounterInterval time.Duration `mapstructure:"counter-interval"`

	// EventBuffer is the capacity of the channel that funnels inbound
	// messages and timer ticks into the node's single consumer.
	EventBuffer int `mapstructure:"event-buffer"`

	// ShutdownTimeout bounds how long a terminating node waits for its
	// inbound reader to return. A reader blocked on a stream that cannot be
	// closed is abandoned after this delay.
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`

	// ServiceAddr is the address:port of the optional HTTP service exposing
	// /stats and /metrics. The service is disabled when empty.
	ServiceAddr string `mapstructure:"service-listen"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:         DefaultDataDir(),
		LogLevel:        DefaultLogLevel,
		LogFile:         DefaultLogFile,
		Protocol:        DefaultProtocol,
		GossipInterval:  DefaultGossipInterval,
		CounterInterval: DefaultCounterInterval,
		EventBuffer:     DefaultEventBuffer,
		ShutdownTimeout: DefaultShutdownTimeout,
		ServiceAddr:     DefaultServiceAddr,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// Logger returns a formatted logrus Entry, with prefix set to "gossipnode".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = NewLogger(c.LogLevel, c.LogFile, os.Stderr)
	}
	return c.logger.WithField("prefix", "gossipnode")
}

// SetLogger overrides the logger returned by Logger.
func (c *Config) SetLogger(logger *logrus.Logger) {
	c.logger = logger
}

// Interval returns the timer period of the configured protocol. Protocols
// without a timer get 0.
func (c *Config) Interval() time.Duration {
	switch c.Protocol {
	case ProtocolBroadcast:
		return c.GossipInterval
	case ProtocolCounter:
		return c.CounterInterval
	default:
		return 0
	}
}

// NewLogger creates a logger writing to out with the prefixed formatter. If
// logFile is not empty, every level is also appended to that file.
func NewLogger(level string, logFile string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.Out = out
	logger.Level = LogLevel(level)
	logger.Formatter = new(prefixed.TextFormatter)

	if logFile != "" {
		pathMap := lfshook.PathMap{}
		for _, l := range logrus.AllLevels {
			pathMap[l] = logFile
		}
		logger.Hooks.Add(lfshook.NewHook(
			pathMap,
			&logrus.JSONFormatter{},
		))
	}

	return logger
}

// DefaultDataDir return the default directory name for top-level gossipnode
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".GossipNode")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "GossipNode")
		} else {
			return filepath.Join(home, ".gossipnode")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}

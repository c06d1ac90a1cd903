package commands

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/gossipnode/src/config"
	"github.com/mosaicnetworks/gossipnode/src/node"
	"github.com/mosaicnetworks/gossipnode/src/service"
	"github.com/mosaicnetworks/gossipnode/src/telemetry"
	"github.com/mosaicnetworks/gossipnode/src/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a node on stdin and stdout
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run a node reading stdin and writing stdout",
		PreRunE: loadConfig,
		RunE:    runNode,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runNode(cmd *cobra.Command, args []string) error {
	return serveNode(&_config.Node, os.Stdin, os.Stdout)
}

// serveNode performs the handshake on in and out, then runs the configured
// protocol until in ends, a quit message arrives, or the process is
// interrupted.
func serveNode(conf *config.Config, in io.Reader, out io.Writer) error {
	factory, err := protocolFactory(conf)
	if err != nil {
		return err
	}

	n, err := node.Bootstrap(conf, in, out, factory)
	if err != nil {
		conf.Logger().WithError(err).Error("Handshake failed")
		return err
	}

	if conf.ServiceAddr != "" {
		telemetry.SetBuildInfo(version.Version, version.GitCommit)
		serviceServer := service.NewService(conf.ServiceAddr, n, conf.Logger().WithField("component", "service"))
		go serviceServer.Serve()
	}

	stop := handleSignals(conf.Logger(), func() {
		n.Terminate()
	})
	defer stop()

	return n.Serve()
}

// handleSignals calls onSignal when the process receives SIGINT or SIGTERM.
// The returned function stops listening.
func handleSignals(logger *logrus.Entry, onSignal func()) func() {
	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			logger.WithField("signal", sig.String()).Info("Shutting down")
			onSignal()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	addNodeFlags(cmd)
}

func addNodeFlags(cmd *cobra.Command) {
	cmd.Flags().String("datadir", _config.Node.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Node.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.Node.LogFile, "Also write JSON logs to this file")

	// Protocol
	cmd.Flags().StringP("protocol", "p", _config.Node.Protocol, "broadcast, counter, echo, unique-ids")
	cmd.Flags().Duration("gossip-interval", _config.Node.GossipInterval, "Time between broadcast gossip rounds")
	cmd.Flags().Duration("counter-interval", _config.Node.CounterInterval, "Time between counter replication rounds")

	// Runtime
	cmd.Flags().Int("event-buffer", _config.Node.EventBuffer, "Capacity of the event channel")
	cmd.Flags().Duration("shutdown-timeout", _config.Node.ShutdownTimeout, "Time to wait for a blocked inbound reader on shutdown")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.Node.ServiceAddr, "Listen IP:Port for HTTP service")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	_config.Node.Logger().WithFields(logrus.Fields{
		"DataDir":         _config.Node.DataDir,
		"LogLevel":        _config.Node.LogLevel,
		"LogFile":         _config.Node.LogFile,
		"Protocol":        _config.Node.Protocol,
		"GossipInterval":  _config.Node.GossipInterval,
		"CounterInterval": _config.Node.CounterInterval,
		"Interval":        _config.Node.Interval(),
		"EventBuffer":     _config.Node.EventBuffer,
		"ShutdownTimeout": _config.Node.ShutdownTimeout,
		"ServiceAddr":     _config.Node.ServiceAddr,
		"Duration":        _config.Duration,
		"Client":          _config.Client,
	}).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/gossipnode.toml (.json, .yaml also work)
	viper.SetConfigName("gossipnode")         // name of config file (without extension)
	viper.AddConfigPath(_config.Node.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Node.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Node.Logger().Debugf("No config file found in: %s", _config.Node.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// the logger was built before the log level was known
	_config.Node.SetLogger(config.NewLogger(_config.Node.LogLevel, _config.Node.LogFile, os.Stderr))

	return nil
}

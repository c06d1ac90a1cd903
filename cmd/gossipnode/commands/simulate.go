package commands

import (
	"bufio"
	"io"
	"os"
	"time"

	"github.com/mosaicnetworks/gossipnode/src/broadcast"
	"github.com/mosaicnetworks/gossipnode/src/config"
	"github.com/mosaicnetworks/gossipnode/src/message"
	"github.com/mosaicnetworks/gossipnode/src/net"
	"github.com/mosaicnetworks/gossipnode/src/peers"
	"github.com/mosaicnetworks/gossipnode/src/service"
	"github.com/mosaicnetworks/gossipnode/src/telemetry"
	"github.com/mosaicnetworks/gossipnode/src/version"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

//NewSimulateCmd returns the command that runs a whole cluster in-memory
func NewSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run every node of [datadir]/peers.json in-memory",
		Long: `Run every node of [datadir]/peers.json in-memory.

Lines read from stdin are sent from the client id (c0 by default) and routed
by their dest field. Lines addressed to the client are written to stdout.`,
		PreRunE: loadConfig,
		RunE:    runSimulation,
	}
	AddSimulateFlags(cmd)
	return cmd
}

/*******************************************************************************
* SIMULATE
*******************************************************************************/

func runSimulation(cmd *cobra.Command, args []string) error {
	return simulate(&_config.Node, _config.Client, _config.Duration, os.Stdin, os.Stdout)
}

// simulate runs the cluster described in conf.DataDir until in ends, the
// duration elapses (if positive), or the process is interrupted.
func simulate(conf *config.Config, clientID string, duration time.Duration, in io.Reader, out io.Writer) error {
	logger := conf.Logger()

	factory, err := protocolFactory(conf)
	if err != nil {
		return err
	}

	store := peers.NewJSONPeerSet(conf.DataDir)
	peerSet, err := store.PeerSet()
	if err != nil {
		return errors.Wrapf(err, "loading %s", store.Path())
	}
	logger.WithField("peers", peerSet.Len()).Debug("Loaded peers")

	sim := net.NewSimulation(conf, peerSet.IDs())
	if err := sim.Start(factory); err != nil {
		sim.Stop()
		return err
	}

	if conf.Protocol == config.ProtocolBroadcast {
		topology := peerSet.Topology()
		err := sim.SendAll(func(id string) message.Payload {
			return &broadcast.Topology{Topology: topology}
		})
		if err != nil {
			sim.Stop()
			return errors.Wrap(err, "sending topology")
		}
	}

	client, err := sim.Transport().Connect(clientID)
	if err != nil {
		sim.Stop()
		return err
	}

	if conf.ServiceAddr != "" {
		telemetry.SetBuildInfo(version.Version, version.GitCommit)
		serviceServer := service.NewService(conf.ServiceAddr, sim, logger.WithField("component", "service"))
		go serviceServer.Serve()
	}

	outDone := make(chan struct{})
	go func() {
		defer close(outDone)
		copyLines(client, out)
	}()

	inDone := make(chan struct{})
	go func() {
		defer close(inDone)
		copyLines(in, client)
	}()

	stopCh := make(chan struct{})
	stop := handleSignals(logger, func() {
		close(stopCh)
	})
	defer stop()

	var timeout <-chan time.Time
	if duration > 0 {
		timeout = time.After(duration)
	}

	select {
	case <-inDone:
		logger.Debug("Client input ended")
		// Leave in-flight requests some time to be answered.
		if timeout == nil {
			timeout = time.After(conf.ShutdownTimeout)
		}
		select {
		case <-timeout:
		case <-stopCh:
		}
	case <-timeout:
		logger.Debug("Simulation time is up")
	case <-stopCh:
	}

	err = sim.Stop()
	<-outDone

	logger.WithField("stats", sim.GetStats()).Info("Simulation finished")

	return err
}

// copyLines copies r to w line by line, until r ends or w fails.
func copyLines(r io.Reader, w io.Writer) {
	br := bufio.NewReader(r)
	for {
		line, err := message.ReadLine(br)
		if err != nil {
			return
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return
		}
	}
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddSimulateFlags adds flags to the Simulate command
func AddSimulateFlags(cmd *cobra.Command) {
	addNodeFlags(cmd)

	cmd.Flags().Duration("duration", _config.Duration, "Stop the simulation after this long (0: when stdin ends)")
	cmd.Flags().String("client", _config.Client, "Id of the client whose lines are read from stdin")
}

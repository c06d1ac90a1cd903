package commands

import (
	"fmt"

	"github.com/mosaicnetworks/gossipnode/src/broadcast"
	"github.com/mosaicnetworks/gossipnode/src/config"
	"github.com/mosaicnetworks/gossipnode/src/counter"
	"github.com/mosaicnetworks/gossipnode/src/echo"
	"github.com/mosaicnetworks/gossipnode/src/node"
)

// protocolFactory returns the factory of the protocol named by
// conf.Protocol.
func protocolFactory(conf *config.Config) (node.Factory, error) {
	switch conf.Protocol {
	case config.ProtocolBroadcast:
		return broadcast.NewFactory(conf), nil
	case config.ProtocolCounter:
		return counter.NewFactory(conf), nil
	case config.ProtocolEcho:
		return echo.NewEchoNode, nil
	case config.ProtocolUniqueIDs:
		return echo.NewUniqueIDsNode, nil
	default:
		return nil, fmt.Errorf("unknown protocol %q", conf.Protocol)
	}
}

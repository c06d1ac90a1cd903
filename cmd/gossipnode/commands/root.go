package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for gossipnode
var RootCmd = &cobra.Command{
	Use:              "gossipnode",
	Short:            "gossip and counter replication nodes speaking JSON lines",
	TraverseChildren: true,
}

// Package config defines the configuration of a gossipnode process.
//
// Whether a node is started from Go code or from the command line, the Config
// object defined here carries the options. The command line reads them from
// flags and, optionally, from a gossipnode.toml (or .json, .yaml) file in
// Config.DataDir. The simulate command also expects the data directory to
// contain a peers.json file describing the cluster.
package config

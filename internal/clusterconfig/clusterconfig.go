// Package clusterconfig loads the cluster topology file (spec §6:
// "cluster_config.json / servers.json — cluster topology read at
// startup", treated as an opaque external collaborator by spec.md). The
// shape mirrors original_source/server/config_loader.py's ServerConfig
// almost exactly: a list of nodes, each with a name, a client-facing TCP
// address, and a peer-sync RPC address.
package clusterconfig

import (
	"encoding/json"
	"fmt"
	"os"
)

// Node describes one cluster member as it appears in the config file.
type Node struct {
	Name    string `json:"name"`
	TCPAddr string `json:"tcp_addr"`
	RPCAddr string `json:"rpc_addr"`
}

// Config is the parsed cluster topology.
type Config struct {
	Nodes []Node `json:"nodes"`
}

// Load reads and validates path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("clusterconfig: read %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("clusterconfig: malformed %s: %w", path, err)
	}
	for _, n := range cfg.Nodes {
		if n.Name == "" || n.TCPAddr == "" || n.RPCAddr == "" {
			return nil, fmt.Errorf("clusterconfig: node %q missing a required field", n.Name)
		}
	}
	return &cfg, nil
}

// Self returns the node entry named name.
func (c *Config) Self(name string) (Node, error) {
	for _, n := range c.Nodes {
		if n.Name == name {
			return n, nil
		}
	}
	return Node{}, fmt.Errorf("clusterconfig: node %q not found in config", name)
}

// Peers returns every node other than exclude, in config order.
func (c *Config) Peers(exclude string) []Node {
	var out []Node
	for _, n := range c.Nodes {
		if n.Name != exclude {
			out = append(out, n)
		}
	}
	return out
}

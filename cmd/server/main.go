// cmd/server is the main entrypoint for a replichat cluster member.
//
// Configuration is entirely via flags so a single binary can run any node
// named in the cluster config file.
//
// Example — 3-node cluster, sharing one servers.json:
//
//	./server --node node1 --config servers.json --data-dir /var/replichat/node1
//	./server --node node2 --config servers.json --data-dir /var/replichat/node2
//	./server --node node3 --config servers.json --data-dir /var/replichat/node3
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"replichat/internal/clusterconfig"
	"replichat/internal/node"
)

func main() {
	nodeName := flag.String("node", "", "Node name, must match an entry in the cluster config")
	configPath := flag.String("config", "servers.json", "Path to the cluster config file (servers.json)")
	dataDir := flag.String("data-dir", "/tmp/replichat", "Directory for the message log and account registry")
	grace := flag.Duration("grace", 500*time.Millisecond, "Startup grace period before reconciling with peers")
	peerTimeout := flag.Duration("peer-timeout", 3*time.Second, "Per-request timeout for peer Sync RPC calls")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Str("node", *nodeName).Logger()

	if *nodeName == "" {
		log.Fatal().Msg("--node is required")
	}

	cc, err := clusterconfig.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load cluster config")
	}
	self, err := cc.Self(*nodeName)
	if err != nil {
		log.Fatal().Err(err).Msg("resolve self in cluster config")
	}

	n, err := node.New(node.Config{
		Name:          *nodeName,
		TCPAddr:       self.TCPAddr,
		RPCAddr:       self.RPCAddr,
		DataDir:       *dataDir,
		ClusterConfig: *configPath,
		GracePeriod:   *grace,
		PeerTimeout:   *peerTimeout,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("construct node")
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- n.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutting down")
		n.Stop()
		os.Exit(0)
	case err := <-runErr:
		n.Stop()
		if err != nil {
			log.Fatal().Err(err).Msg("node exited with error")
		}
		os.Exit(0)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"raftkv/cluster"
	"raftkv/raft"
	"raftkv/server"
	"raftkv/storage"
)

func main() {
	dataDir := flag.String("data", "./data", "Base directory for this node's data files")
	host := flag.String("host", "localhost", "Host all cluster nodes are reachable at")
	basePort := flag.Int("base-port", 6666, "Port of node 0; node i listens on base-port+i")
	clusterSize := flag.Int("cluster-size", 3, "Number of replicas in the cluster")
	electionLo := flag.Duration("election-timeout-lo", 1500*time.Millisecond, "Lower bound of the randomized election timeout")
	electionHi := flag.Duration("election-timeout-hi", 3000*time.Millisecond, "Upper bound of the randomized election timeout")
	heartbeat := flag.Duration("heartbeat-interval", 500*time.Millisecond, "Period of the election and heartbeat ticks")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: server [flags] <node-id>")
		os.Exit(1)
	}
	nodeID, err := strconv.Atoi(flag.Arg(0))
	if err != nil {
		log.Fatalf("invalid node id %q: %v", flag.Arg(0), err)
	}

	registry := cluster.BuildFixedCluster(*host, *basePort, *clusterSize)
	selfAddr, err := registry.Address(nodeID)
	if err != nil {
		log.Fatalf("node id %d not in cluster of size %d: %v", nodeID, *clusterSize, err)
	}
	nodeDataDir := filepath.Join(*dataDir, fmt.Sprintf("node%d", nodeID))

	store, err := storage.NewStore(nodeDataDir)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	persister, err := raft.NewFilePersister(nodeDataDir)
	if err != nil {
		log.Fatalf("failed to open persister: %v", err)
	}

	node, err := raft.NewRaftNode(&raft.Config{
		ID:                nodeID,
		Peers:             registry.PeerIDs(nodeID),
		PeerAddr:          registry.Addresses(),
		Address:           selfAddr,
		ElectionTimeoutLo: *electionLo,
		ElectionTimeoutHi: *electionHi,
		HeartbeatInterval: *heartbeat,
		StateMachine:      store,
		Persister:         persister,
		LogLevel:          raft.INFO,
	})
	if err != nil {
		log.Fatalf("failed to create raft node: %v", err)
	}
	node.Start()
	defer node.Shutdown()

	srv := server.NewServer(node, store, registry, selfAddr)
	log.Printf("🚀 raftkv node %d listening at %s (cluster size %d)", nodeID, selfAddr, *clusterSize)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case <-sigCh:
		log.Println("shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

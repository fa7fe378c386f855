// Package cluster tracks the fixed set of replica addresses that make up a
// cluster. Unlike a sharded store, every replica here holds the full
// replicated log, so the registry's only job is the id -> address lookup
// raft peers and the client gateway need to reach each other.
package cluster

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the node_id -> address table for a fixed-size cluster.
// Membership is decided once, at construction, and nothing in this
// system ever adds or removes a replica while it's running — so unlike a
// registry built for dynamic membership, there is no Register/Unregister
// surface here, only the read paths raft and the client gateway actually
// call. No method changes the table after construction; the RWMutex
// only guards the read paths, not a runtime join/leave protocol.
type Registry struct {
	mu        sync.RWMutex
	addresses map[int]string
}

// BuildFixedCluster constructs a registry for node ids 0..n-1, each
// reachable at basePort+id on host, per spec: "peer i reachable at a
// well-known address derived from its id (base port + id)".
func BuildFixedCluster(host string, basePort, n int) *Registry {
	addresses := make(map[int]string, n)
	for id := 0; id < n; id++ {
		addresses[id] = fmt.Sprintf("%s:%d", host, basePort+id)
	}
	return &Registry{addresses: addresses}
}

// NewRegistryFromAddresses builds a registry from an explicit id->address
// table, for topologies (and tests) that aren't base-port-derived.
func NewRegistryFromAddresses(addresses map[int]string) *Registry {
	cp := make(map[int]string, len(addresses))
	for id, addr := range addresses {
		cp[id] = addr
	}
	return &Registry{addresses: cp}
}

// Address returns the address registered for id.
func (r *Registry) Address(id int) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	addr, ok := r.addresses[id]
	if !ok {
		return "", fmt.Errorf("node %d not found", id)
	}
	return addr, nil
}

// Addresses returns a copy of the full node id -> address table, suitable
// for handing to raft.Config.PeerAddr.
func (r *Registry) Addresses() map[int]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int]string, len(r.addresses))
	for id, addr := range r.addresses {
		out[id] = addr
	}
	return out
}

// Size returns the number of nodes in the cluster.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.addresses)
}

// PeerIDs returns every node id other than self, in ascending order.
func (r *Registry) PeerIDs(self int) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]int, 0, len(r.addresses))
	for id := range r.addresses {
		if id != self {
			peers = append(peers, id)
		}
	}
	sort.Ints(peers)
	return peers
}

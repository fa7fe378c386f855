package cluster

import "testing"

func TestRegistry_Address(t *testing.T) {
	registry := NewRegistryFromAddresses(map[int]string{1: "localhost:6667"})

	addr, err := registry.Address(1)
	if err != nil {
		t.Fatalf("Address(1): %v", err)
	}
	if addr != "localhost:6667" {
		t.Errorf("expected localhost:6667, got %s", addr)
	}

	if _, err := registry.Address(2); err == nil {
		t.Error("expected error for unknown node id")
	}
}

func TestRegistry_Addresses(t *testing.T) {
	registry := NewRegistryFromAddresses(map[int]string{
		0: "localhost:6666",
		1: "localhost:6667",
	})

	addresses := registry.Addresses()
	if len(addresses) != 2 {
		t.Errorf("expected 2 addresses, got %d", len(addresses))
	}
	if addresses[0] != "localhost:6666" {
		t.Errorf("wrong address for node 0: %s", addresses[0])
	}
	if addresses[1] != "localhost:6667" {
		t.Errorf("wrong address for node 1: %s", addresses[1])
	}

	// Mutating the returned map must not affect the registry's own state.
	addresses[0] = "tampered"
	if fresh, _ := registry.Address(0); fresh != "localhost:6666" {
		t.Errorf("Addresses() leaked internal state: got %s after mutation", fresh)
	}
}

func TestRegistry_Size(t *testing.T) {
	registry := NewRegistryFromAddresses(map[int]string{0: "a", 1: "b", 2: "c"})
	if registry.Size() != 3 {
		t.Errorf("expected 3, got %d", registry.Size())
	}
}

func TestBuildFixedCluster(t *testing.T) {
	r := BuildFixedCluster("localhost", 6666, 4)

	if r.Size() != 4 {
		t.Fatalf("expected 4 nodes, got %d", r.Size())
	}

	addr, err := r.Address(2)
	if err != nil {
		t.Fatalf("Address(2): %v", err)
	}
	if addr != "localhost:6668" {
		t.Errorf("expected localhost:6668, got %s", addr)
	}

	peers := r.PeerIDs(0)
	if len(peers) != 3 {
		t.Fatalf("expected 3 peers, got %v", peers)
	}
	for i, want := range []int{1, 2, 3} {
		if peers[i] != want {
			t.Errorf("peer[%d] = %d, want %d", i, peers[i], want)
		}
	}
}

// server/http_server_test.go
package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"raftkv/cluster"
	"raftkv/raft"
	"raftkv/storage"
)

// newTestServer brings up a single-node cluster (its own election has no
// peers to wait on, so it becomes leader almost immediately) wrapped in
// an httptest.Server, exercising the real HTTP handlers end to end.
func newTestServer(t *testing.T) (*httptest.Server, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "raftkv-server-test")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}

	store, err := storage.NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	registry := cluster.NewRegistryFromAddresses(map[int]string{0: "127.0.0.1:0"})

	node, err := raft.NewRaftNode(&raft.Config{
		ID:                0,
		Peers:             nil,
		PeerAddr:          map[int]string{0: "127.0.0.1:0"},
		Address:           "127.0.0.1:0",
		ElectionTimeoutLo: 100 * time.Millisecond,
		ElectionTimeoutHi: 200 * time.Millisecond,
		HeartbeatInterval: 20 * time.Millisecond,
		StateMachine:      store,
		LogLevel:          raft.WARN,
	})
	if err != nil {
		t.Fatalf("NewRaftNode: %v", err)
	}
	node.Start()

	srv := NewServer(node, store, registry, "")
	ts := httptest.NewServer(srv.mux())

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, isLeader := node.GetState(); isLeader {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	cleanup := func() {
		ts.Close()
		node.Shutdown()
		store.Close()
		os.RemoveAll(dir)
	}
	return ts, cleanup
}

func TestServer_CreateAndGet(t *testing.T) {
	ts, cleanup := newTestServer(t)
	defer cleanup()

	body, _ := json.Marshal(map[string]string{"key": "foo", "value": "bar"})
	resp, err := http.Post(ts.URL+"/client", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /client: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/client/foo")
	if err != nil {
		t.Fatalf("GET /client/foo: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got map[string]string
	json.NewDecoder(resp.Body).Decode(&got)
	if got["value"] != "bar" {
		t.Errorf("expected value=bar, got %q", got["value"])
	}
}

func TestServer_GetMissingKey(t *testing.T) {
	ts, cleanup := newTestServer(t)
	defer cleanup()

	resp, err := http.Get(ts.URL + "/client/absent")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestServer_UpdateDeleteCas(t *testing.T) {
	ts, cleanup := newTestServer(t)
	defer cleanup()

	create := func(key, value string) {
		body, _ := json.Marshal(map[string]string{"key": key, "value": value})
		resp, err := http.Post(ts.URL+"/client", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		resp.Body.Close()
	}
	create("k", "v1")

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/client/k", bytes.NewReader([]byte(`{"value":"v2"}`)))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 from update, got %d", resp.StatusCode)
	}

	casBody, _ := json.Marshal(map[string]string{"old_value": "v2", "new_value": "v3"})
	req, _ = http.NewRequest(http.MethodPatch, ts.URL+"/client/cas/k", bytes.NewReader(casBody))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PATCH cas: %v", err)
	}
	defer resp.Body.Close()
	var casResult map[string]bool
	json.NewDecoder(resp.Body).Decode(&casResult)
	if !casResult["status"] {
		t.Error("expected cas to succeed when old_value matches")
	}

	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/client/k", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 from delete, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/client/k")
	if err != nil {
		t.Fatalf("GET after delete: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

// server/http_server.go
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"raftkv/cluster"
	"raftkv/raft"
	"raftkv/storage"
)

const (
	defaultPollInterval = 50 * time.Millisecond
	defaultWaitTimeout  = 5 * time.Second
)

// Server is the one TCP endpoint per replica (§6): it mounts both the
// raft peer RPCs and the client-facing key/value API on the same mux.
type Server struct {
	node     *raft.RaftNode
	store    *storage.Store
	registry *cluster.Registry
	addr     string

	pollInterval time.Duration
	waitTimeout  time.Duration

	httpServer *http.Server
}

// NewServer wires a raft node, its state machine, and the cluster's
// address book into a single HTTP server listening on addr.
func NewServer(node *raft.RaftNode, store *storage.Store, registry *cluster.Registry, addr string) *Server {
	return &Server{
		node:         node,
		store:        store,
		registry:     registry,
		addr:         addr,
		pollInterval: defaultPollInterval,
		waitTimeout:  defaultWaitTimeout,
	}
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	s.node.RegisterHandlers(mux)

	mux.HandleFunc("POST /client", s.handleCreate)
	mux.HandleFunc("GET /client/{key}", s.handleGet)
	mux.HandleFunc("PUT /client/{key}", s.handleUpdate)
	mux.HandleFunc("DELETE /client/{key}", s.handleDelete)
	mux.HandleFunc("PATCH /client/cas/{key}", s.handleCas)

	return mux
}

// ListenAndServe blocks serving both the raft and client surfaces.
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.mux()}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

type createRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Key == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if _, _, ok := s.node.Propose(raft.PutCommand{Key: body.Key, Value: body.Value}); !ok {
		s.redirectOrRetry(w, r)
		return
	}

	if !s.waitForApply(func() bool {
		v, ok := s.store.Get(body.Key)
		return ok && v == body.Value
	}) {
		http.Error(w, "timed out waiting for commit", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(body)
}

// handleGet serves a local, non-linearizable read (§9 Open Question 7):
// it answers from whatever this replica has committed, without checking
// whether it's still the leader or whether a more recent commit exists
// elsewhere.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	value, ok := s.store.Get(key)
	if !ok {
		http.Error(w, "key not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"key": key, "value": value})
}

type updateRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if _, ok := s.store.Get(key); !ok {
		http.Error(w, "key not found", http.StatusNotFound)
		return
	}

	var body updateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if _, _, ok := s.node.Propose(raft.PutCommand{Key: key, Value: body.Value}); !ok {
		s.redirectOrRetry(w, r)
		return
	}

	if !s.waitForApply(func() bool {
		v, ok := s.store.Get(key)
		return ok && v == body.Value
	}) {
		http.Error(w, "timed out waiting for commit", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if _, ok := s.store.Get(key); !ok {
		http.Error(w, "key not found", http.StatusNotFound)
		return
	}

	if _, _, ok := s.node.Propose(raft.DeleteCommand{Key: key}); !ok {
		s.redirectOrRetry(w, r)
		return
	}

	if !s.waitForApply(func() bool {
		_, ok := s.store.Get(key)
		return !ok
	}) {
		http.Error(w, "timed out waiting for commit", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type casRequest struct {
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

func (s *Server) handleCas(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if _, ok := s.store.Get(key); !ok {
		http.Error(w, "key not found", http.StatusNotFound)
		return
	}

	var body casRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	requestID := newRequestID()
	if _, _, ok := s.node.Propose(raft.CasCommand{
		Key: key, OldValue: body.OldValue, NewValue: body.NewValue, RequestID: requestID,
	}); !ok {
		s.redirectOrRetry(w, r)
		return
	}

	var result bool
	if !s.waitForApply(func() bool {
		res, found := s.store.CasResult(requestID)
		result = res
		return found
	}) {
		http.Error(w, "timed out waiting for commit", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"status": result})
}

// redirectOrRetry implements §9 Open Question 5: the source redirects a
// client to -1 when the leader is unknown, which is not a usable
// address. Here the handler itself waits briefly for a leader_hint to
// appear (an election is presumably in flight) and issues a real 307
// once one does, rather than ever handing the client a bogus target.
func (s *Server) redirectOrRetry(w http.ResponseWriter, r *http.Request) {
	hint := s.node.LeaderHint()
	deadline := time.Now().Add(s.waitTimeout)
	for hint < 0 && time.Now().Before(deadline) {
		time.Sleep(s.pollInterval)
		hint = s.node.LeaderHint()
	}
	if hint < 0 {
		http.Error(w, "no leader known", http.StatusServiceUnavailable)
		return
	}
	if hint == s.node.ID() {
		http.Error(w, "leadership changed, retry", http.StatusServiceUnavailable)
		return
	}

	peerAddr, err := s.registry.Address(hint)
	if err != nil {
		http.Error(w, "leader hint points at an unknown node", http.StatusServiceUnavailable)
		return
	}
	target := "http://" + peerAddr + r.URL.RequestURI()
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

func (s *Server) waitForApply(check func() bool) bool {
	deadline := time.Now().Add(s.waitTimeout)
	for time.Now().Before(deadline) {
		if check() {
			return true
		}
		time.Sleep(s.pollInterval)
	}
	return false
}

func newRequestID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// raft/transport_http.go
package raft

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// HTTPTransport sends the four raft RPCs as fire-and-forget JSON POSTs
// (§6). It never waits for or inspects the response body: a peer replies
// 204 immediately and answers separately, later, as its own inbound
// request to the sender's reverse endpoint — the same asynchronous
// pattern as the original's send_post(..., timeout=0.0001), just with a
// real (short) timeout instead of one too small to ever succeed.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport builds a transport using client for outbound sends.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	return &HTTPTransport{client: client}
}

func (t *HTTPTransport) post(addr, path string, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		return
	}
	req, err := http.NewRequest(http.MethodPost, "http://"+addr+path, bytes.NewReader(data))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		// Unreachable peer: dropped, not retried here. The next tick
		// (heartbeat or election) will try again.
		return
	}
	resp.Body.Close()
}

func (t *HTTPTransport) SendRequestVote(addr string, msg *RequestVoteMessage) {
	t.post(addr, "/raft/request_vote", msg)
}

func (t *HTTPTransport) SendResponseVote(addr string, msg *ResponseVoteMessage) {
	t.post(addr, "/raft/response_vote", msg)
}

func (t *HTTPTransport) SendLogRequest(addr string, msg *LogRequestMessage) {
	t.post(addr, "/raft/log_request", msg)
}

func (t *HTTPTransport) SendLogResponse(addr string, msg *LogResponseMessage) {
	t.post(addr, "/raft/log_response", msg)
}

// RegisterHandlers mounts the four raft peer endpoints on mux. Each
// handler decodes the body, hands it to the matching Handle* method, and
// replies 204 with no body immediately — the real effect (a vote, an
// append acceptance) is observed later via the reverse send the Handle*
// method issues, not via this response.
func (rn *RaftNode) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/raft/request_vote", rn.handleRequestVoteHTTP)
	mux.HandleFunc("/raft/response_vote", rn.handleResponseVoteHTTP)
	mux.HandleFunc("/raft/log_request", rn.handleLogRequestHTTP)
	mux.HandleFunc("/raft/log_response", rn.handleLogResponseHTTP)
}

func (rn *RaftNode) handleRequestVoteHTTP(w http.ResponseWriter, r *http.Request) {
	var msg RequestVoteMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	rn.HandleRequestVote(&msg)
}

func (rn *RaftNode) handleResponseVoteHTTP(w http.ResponseWriter, r *http.Request) {
	var msg ResponseVoteMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	rn.HandleResponseVote(&msg)
}

func (rn *RaftNode) handleLogRequestHTTP(w http.ResponseWriter, r *http.Request) {
	var msg LogRequestMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	rn.HandleLogRequest(&msg)
}

func (rn *RaftNode) handleLogResponseHTTP(w http.ResponseWriter, r *http.Request) {
	var msg LogResponseMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	rn.HandleLogResponse(&msg)
}

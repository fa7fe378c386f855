// raft/raft_core.go
package raft

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Role is the current role of a raft node within its term.
type Role int

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "Follower"
	case Candidate:
		return "Candidate"
	case Leader:
		return "Leader"
	default:
		return "Unknown"
	}
}

// unknownLeader is the sentinel used for both votedFor and leaderHint when
// no node is known, matching the source's "-1 means none" convention
// without propagating its broken -1-as-a-redirect-target bug (§9).
const unknownLeader = -1

// StateMachine applies committed log entries to whatever storage backs
// the replicated key/value map. Implementations must be deterministic:
// applying the same entry twice, or out of order, is the caller's bug to
// avoid, not something Apply needs to defend against.
type StateMachine interface {
	Apply(entry *LogEntry) (interface{}, error)
}

// Transport sends the four raft RPCs to a peer, fire-and-forget. A send
// that errors (peer down, timed out) is simply dropped — the caller never
// blocks waiting for it and never learns whether it arrived; the next
// tick will try again.
type Transport interface {
	SendRequestVote(addr string, msg *RequestVoteMessage)
	SendResponseVote(addr string, msg *ResponseVoteMessage)
	SendLogRequest(addr string, msg *LogRequestMessage)
	SendLogResponse(addr string, msg *LogResponseMessage)
}

// Config holds everything needed to construct a RaftNode.
type Config struct {
	ID       int
	Peers    []int          // other node ids in the cluster
	PeerAddr map[int]string // node id -> host:port, for every id including self
	Address  string         // this node's own host:port

	ElectionTimeoutLo time.Duration // lower bound of randomized election deadline
	ElectionTimeoutHi time.Duration // upper bound of randomized election deadline
	HeartbeatInterval time.Duration // period of both the election and heartbeat ticks

	StateMachine StateMachine
	Persister    Persister // nil disables persistence
	LogLevel     LogLevel
}

// RaftNode is a single replica's consensus state (§3). Everything that
// isn't read-only after construction lives behind mu; no send or wait on
// the network happens while mu is held.
type RaftNode struct {
	mu sync.Mutex

	id       int
	peers    []int
	peerAddr map[int]string
	address  string

	// Persistent state (§3 invariant: durable across restarts once
	// Persister is configured).
	term     uint64
	votedFor int
	log      []LogEntry

	// Volatile state, all roles.
	commitLength uint64
	role         Role
	leaderHint   int

	// Volatile state, candidates only.
	votesReceived map[int]bool

	// Volatile state, leaders only.
	sentLength  map[int]uint64
	ackedLength map[int]uint64

	electionDeadline  time.Time
	electionTimeoutLo time.Duration
	electionTimeoutHi time.Duration
	heartbeatInterval time.Duration

	electionTicker  *time.Ticker
	heartbeatTicker *time.Ticker
	shutdownCh      chan struct{}
	shutdownOnce    sync.Once

	stateMachine StateMachine
	persister    Persister
	transport    Transport
	sendClient   *http.Client

	logger *Logger
}

// NewRaftNode constructs a node in the Follower role, recovering
// persisted (term, voted_for, log) first if a Persister is configured.
func NewRaftNode(config *Config) (*RaftNode, error) {
	if config.StateMachine == nil {
		return nil, fmt.Errorf("raft: Config.StateMachine is required")
	}

	rn := &RaftNode{
		id:                config.ID,
		peers:             append([]int(nil), config.Peers...),
		peerAddr:          config.PeerAddr,
		address:           config.Address,
		votedFor:          unknownLeader,
		leaderHint:        unknownLeader,
		role:              Follower,
		electionTimeoutLo: config.ElectionTimeoutLo,
		electionTimeoutHi: config.ElectionTimeoutHi,
		heartbeatInterval: config.HeartbeatInterval,
		shutdownCh:        make(chan struct{}),
		stateMachine:      config.StateMachine,
		persister:         config.Persister,
		sendClient:        newSendClient(config.HeartbeatInterval),
		logger:            NewLogger(config.ID, config.LogLevel),
	}
	rn.transport = NewHTTPTransport(rn.sendClient)

	if rn.persister != nil {
		term, votedFor, log, found, err := rn.persister.LoadState()
		if err != nil {
			return nil, fmt.Errorf("raft: failed to load persisted state: %w", err)
		}
		if found {
			rn.term = term
			rn.votedFor = votedFor
			rn.log = log
			rn.logger.Event(INFO, "recovered_state", "term", term, "log_length", len(log))
		}
	}

	return rn, nil
}

// Start launches the two periodic ticks that drive the protocol (§5).
func (rn *RaftNode) Start() {
	rn.logger.Event(INFO, "node_starting", "address", rn.address)

	rn.mu.Lock()
	rn.resetElectionDeadlineLocked()
	rn.mu.Unlock()

	rn.electionTicker = time.NewTicker(rn.heartbeatInterval)
	rn.heartbeatTicker = time.NewTicker(rn.heartbeatInterval)

	go rn.run()
}

// run is the main event loop: one electionTick and one heartbeatTick per
// period, exactly as described in §5 ("two independent periodic
// tickers"), rather than a single timer that's stopped and reset on every
// message the way a one-shot-timer design would do it.
func (rn *RaftNode) run() {
	for {
		select {
		case <-rn.shutdownCh:
			return

		case <-rn.electionTicker.C:
			rn.mu.Lock()
			expired := rn.role != Leader && time.Now().After(rn.electionDeadline)
			rn.mu.Unlock()
			if expired {
				rn.logger.Event(DEBUG, "election_deadline_passed")
				rn.startElection()
			}

		case <-rn.heartbeatTicker.C:
			rn.mu.Lock()
			isLeader := rn.role == Leader
			rn.mu.Unlock()
			if isLeader {
				rn.replicateToAll()
			}
		}
	}
}

// Shutdown stops the node's tickers and event loop. Safe to call more
// than once.
func (rn *RaftNode) Shutdown() {
	rn.shutdownOnce.Do(func() {
		rn.logger.Event(INFO, "node_stopping")
		close(rn.shutdownCh)
		if rn.electionTicker != nil {
			rn.electionTicker.Stop()
		}
		if rn.heartbeatTicker != nil {
			rn.heartbeatTicker.Stop()
		}
	})
}

// GetState returns the current term and whether this node believes it is
// the leader.
func (rn *RaftNode) GetState() (uint64, bool) {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	return rn.term, rn.role == Leader
}

// ID returns this node's id.
func (rn *RaftNode) ID() int { return rn.id }

// LeaderHint returns the node id this replica last heard claim
// leadership, or -1 if unknown. Used by the client gateway to build
// redirects (§4.5, §9 Open Question 5).
func (rn *RaftNode) LeaderHint() int {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	return rn.leaderHint
}

// setRoleLocked transitions role and logs the change. Caller must hold mu.
func (rn *RaftNode) setRoleLocked(role Role) {
	if rn.role == role {
		return
	}
	old := rn.role
	rn.role = role
	rn.logger.Event(INFO, "role_change", "from", old, "to", role, "term", rn.term)
}

func (rn *RaftNode) resetElectionDeadlineLocked() {
	rn.electionDeadline = time.Now().Add(randomDuration(rn.electionTimeoutLo, rn.electionTimeoutHi))
}

func (rn *RaftNode) clusterSizeLocked() int {
	return len(rn.peers) + 1
}

// persistLocked snapshots (term, votedFor, log) if a Persister is
// configured. Caller must hold mu. A persistence failure is logged, not
// fatal: it degrades durability, not correctness of the running process.
func (rn *RaftNode) persistLocked() {
	if rn.persister == nil {
		return
	}
	if err := rn.persister.SaveState(rn.term, rn.votedFor, rn.log); err != nil {
		rn.logger.Errorf("failed to persist state: %v", err)
	}
}

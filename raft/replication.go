// raft/replication.go
package raft

// LogRequestMessage is sent by the leader to propose entries (or, when
// Entries is empty, as a heartbeat) to a follower.
type LogRequestMessage struct {
	LeaderID     int        `json:"leader_id"`
	Term         uint64     `json:"term"`
	LogLength    uint64     `json:"log_length"`
	PrevLogTerm  uint64     `json:"prev_log_term"`
	CommitLength uint64     `json:"commit_length"`
	Entries      []LogEntry `json:"entries"`
}

// LogResponseMessage is the follower's asynchronous reply to a
// LogRequestMessage, delivered to the leader's /raft/log_response
// endpoint.
type LogResponseMessage struct {
	NodeID      int    `json:"node_id"`
	CurrentTerm uint64 `json:"current_term"`
	Ack         uint64 `json:"ack"`
	Status      bool   `json:"status"`
}

// replicateToAll fans a LogRequestMessage out to every peer. It doubles
// as both the heartbeat (§5 heartbeat tick) and the means by which newly
// proposed entries actually reach followers (§4.2), since both cases are
// "send each peer everything from its sent_length onward".
func (rn *RaftNode) replicateToAll() {
	rn.mu.Lock()
	if rn.role != Leader {
		rn.mu.Unlock()
		return
	}
	peers := append([]int(nil), rn.peers...)
	peerCount := len(peers)
	term := rn.term
	rn.mu.Unlock()

	rn.logger.Event(DEBUG, "replicate_fanout", "term", term, "peer_count", peerCount)

	for _, peer := range peers {
		go rn.replicateTo(peer)
	}
}

// replicateTo sends everything the leader believes peer hasn't seen yet.
func (rn *RaftNode) replicateTo(peer int) {
	rn.mu.Lock()
	if rn.role != Leader {
		rn.mu.Unlock()
		return
	}
	logLength := rn.sentLength[peer]
	prevLogTerm := uint64(0)
	if logLength > 0 && logLength <= uint64(len(rn.log)) {
		prevLogTerm = rn.log[logLength-1].Term
	}
	entries := append([]LogEntry(nil), rn.log[logLength:]...)
	msg := &LogRequestMessage{
		LeaderID:     rn.id,
		Term:         rn.term,
		LogLength:    logLength,
		PrevLogTerm:  prevLogTerm,
		CommitLength: rn.commitLength,
		Entries:      entries,
	}
	addr := rn.peerAddr[peer]
	rn.mu.Unlock()

	rn.transport.SendLogRequest(addr, msg)
}

// HandleLogRequest is the follower side of replication (§4.2). It
// updates term/role on seeing an equal-or-higher term from a leader,
// checks the log-consistency precondition, and — if it holds — truncates
// any conflicting suffix, appends the new entries, advances
// commit_length, and applies newly committed entries to the state
// machine.
func (rn *RaftNode) HandleLogRequest(req *LogRequestMessage) {
	rn.mu.Lock()

	rn.logger.Event(DEBUG, "log_request_received", "leader", req.LeaderID, "term", req.Term,
		"log_length", req.LogLength, "entries", len(req.Entries))

	if req.Term > rn.term {
		rn.term = req.Term
		rn.votedFor = unknownLeader
		rn.persistLocked()
	}
	if req.Term >= rn.term {
		rn.setRoleLocked(Follower)
		rn.leaderHint = req.LeaderID
		rn.resetElectionDeadlineLocked()
	}

	logOK := uint64(len(rn.log)) >= req.LogLength &&
		(req.LogLength == 0 || req.PrevLogTerm == rn.log[req.LogLength-1].Term)

	accepted := false
	ack := uint64(0)
	if req.Term == rn.term && logOK {
		accepted = true
		rn.appendEntriesLocked(req.LogLength, req.CommitLength, req.Entries)
		ack = req.LogLength + uint64(len(req.Entries))
	} else {
		rn.logger.Event(DEBUG, "log_request_rejected", "leader", req.LeaderID, "term", req.Term,
			"reason", "term or log consistency check failed")
	}

	term := rn.term
	id := rn.id
	addr := rn.peerAddr[req.LeaderID]

	rn.mu.Unlock()

	go rn.transport.SendLogResponse(addr, &LogResponseMessage{NodeID: id, CurrentTerm: term, Ack: ack, Status: accepted})
}

// appendEntriesLocked truncates any conflicting suffix of the log,
// appends entries not already present, and applies everything newly
// covered by leaderCommit. Caller must hold mu and must already have
// verified the log consistency precondition.
func (rn *RaftNode) appendEntriesLocked(logLength, leaderCommit uint64, entries []LogEntry) {
	if len(entries) > 0 && uint64(len(rn.log)) > logLength {
		if rn.log[logLength].Term != entries[0].Term {
			rn.log = rn.log[:logLength]
		}
	}
	if logLength+uint64(len(entries)) > uint64(len(rn.log)) {
		start := uint64(len(rn.log)) - logLength
		rn.log = append(rn.log, entries[start:]...)
	}
	rn.persistLocked()

	if leaderCommit > rn.commitLength {
		rn.applyRangeLocked(rn.commitLength, leaderCommit)
		rn.logger.Event(INFO, "commit_advanced", "from", rn.commitLength, "to", leaderCommit)
		rn.commitLength = leaderCommit
	}
}

// HandleLogResponse is the leader side: it either advances
// sent_length/acked_length and tries to commit, or, on rejection, backs
// sent_length off by one and retries — the standard Raft catch-up
// back-off (§4.2).
func (rn *RaftNode) HandleLogResponse(resp *LogResponseMessage) {
	rn.mu.Lock()

	if rn.role != Leader || resp.CurrentTerm != rn.term {
		if resp.CurrentTerm > rn.term {
			rn.stepDownLocked(resp.CurrentTerm)
		}
		rn.mu.Unlock()
		return
	}

	if resp.Status {
		if resp.Ack >= rn.ackedLength[resp.NodeID] {
			rn.sentLength[resp.NodeID] = resp.Ack
			rn.ackedLength[resp.NodeID] = resp.Ack
			rn.tryAdvanceCommitLocked()
		}
		rn.mu.Unlock()
		return
	}

	if rn.sentLength[resp.NodeID] > 0 {
		rn.sentLength[resp.NodeID]--
	}
	peer := resp.NodeID
	rn.mu.Unlock()

	rn.replicateTo(peer)
}

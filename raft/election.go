// raft/election.go
package raft

// RequestVoteMessage is sent by a candidate to every peer at the start
// of an election.
type RequestVoteMessage struct {
	NodeID    int    `json:"node_id"`
	Term      uint64 `json:"term"`
	LogLength uint64 `json:"log_length"`
	LastTerm  uint64 `json:"last_term"`
}

// ResponseVoteMessage is the asynchronous reply to a RequestVoteMessage,
// delivered as its own inbound request to the candidate's
// /raft/response_vote endpoint rather than as a synchronous RPC return
// value (§5, §6).
type ResponseVoteMessage struct {
	NodeID      int    `json:"node_id"`
	Term        uint64 `json:"term"`
	VoteGranted bool   `json:"vote_granted"`
}

// startElection increments the term, votes for self, and fans a
// RequestVoteMessage out to every peer. It does not wait for replies:
// votes arrive later via HandleResponseVote.
func (rn *RaftNode) startElection() {
	rn.mu.Lock()

	rn.term++
	rn.setRoleLocked(Candidate)
	rn.votedFor = rn.id
	rn.votesReceived = map[int]bool{rn.id: true}
	rn.persistLocked()
	rn.resetElectionDeadlineLocked()

	term := rn.term
	logLength := uint64(len(rn.log))
	lastTerm := uint64(0)
	if logLength > 0 {
		lastTerm = rn.log[logLength-1].Term
	}
	peers := append([]int(nil), rn.peers...)
	id := rn.id

	rn.mu.Unlock()

	rn.logger.Event(INFO, "election_started", "term", term)

	msg := &RequestVoteMessage{NodeID: id, Term: term, LogLength: logLength, LastTerm: lastTerm}
	for _, peer := range peers {
		addr := rn.peerAddr[peer]
		go rn.transport.SendRequestVote(addr, msg)
	}

	// A single-node cluster has no peers to wait on; it wins its own
	// election immediately.
	rn.mu.Lock()
	if rn.role == Candidate && rn.term == term && len(rn.votesReceived) >= quorumSize(rn.clusterSizeLocked()) {
		rn.becomeLeaderLocked()
	}
	rn.mu.Unlock()
}

// HandleRequestVote processes an inbound vote request and fires the
// response back to the candidate asynchronously.
func (rn *RaftNode) HandleRequestVote(req *RequestVoteMessage) {
	rn.mu.Lock()

	myLastTerm := uint64(0)
	if len(rn.log) > 0 {
		myLastTerm = rn.log[len(rn.log)-1].Term
	}
	logOK := req.LastTerm > myLastTerm ||
		(req.LastTerm == myLastTerm && req.LogLength >= uint64(len(rn.log)))

	if req.Term > rn.term {
		rn.term = req.Term
		rn.setRoleLocked(Follower)
		rn.votedFor = unknownLeader
	}
	termOK := req.Term == rn.term && (rn.votedFor == unknownLeader || rn.votedFor == req.NodeID)

	granted := logOK && termOK
	if granted {
		rn.votedFor = req.NodeID
		rn.resetElectionDeadlineLocked()
		rn.logger.Event(INFO, "vote_granted", "candidate", req.NodeID, "term", req.Term)
	} else {
		rn.logger.Event(INFO, "vote_denied", "candidate", req.NodeID, "term", req.Term,
			"log_ok", logOK, "term_ok", termOK)
	}
	rn.persistLocked()

	term := rn.term
	id := rn.id
	addr := rn.peerAddr[req.NodeID]

	rn.mu.Unlock()

	go rn.transport.SendResponseVote(addr, &ResponseVoteMessage{NodeID: id, Term: term, VoteGranted: granted})
}

// HandleResponseVote processes a vote reply. Quorum is the corrected
// count of distinct granting nodes (quorumSize), not the sum of their
// ids.
func (rn *RaftNode) HandleResponseVote(resp *ResponseVoteMessage) {
	rn.mu.Lock()
	defer rn.mu.Unlock()

	if rn.role == Candidate && resp.Term == rn.term && resp.VoteGranted {
		rn.votesReceived[resp.NodeID] = true
		if len(rn.votesReceived) >= quorumSize(rn.clusterSizeLocked()) {
			rn.becomeLeaderLocked()
		}
		return
	}
	if resp.Term > rn.term {
		rn.stepDownLocked(resp.Term)
	}
}

// becomeLeaderLocked transitions to Leader and kicks off an immediate
// replication round to establish authority. Caller must hold mu.
func (rn *RaftNode) becomeLeaderLocked() {
	rn.setRoleLocked(Leader)
	rn.leaderHint = rn.id
	logLength := uint64(len(rn.log))

	rn.sentLength = make(map[int]uint64, len(rn.peers))
	rn.ackedLength = make(map[int]uint64, len(rn.peers))
	for _, peer := range rn.peers {
		rn.sentLength[peer] = logLength
		rn.ackedLength[peer] = 0
	}
	rn.logger.Event(INFO, "election_won", "term", rn.term, "votes", len(rn.votesReceived),
		"needed", quorumSize(rn.clusterSizeLocked()))

	go rn.replicateToAll()
}

// stepDownLocked reverts to Follower on discovering a higher term.
// Caller must hold mu.
func (rn *RaftNode) stepDownLocked(term uint64) {
	oldTerm := rn.term
	rn.term = term
	rn.votedFor = unknownLeader
	rn.setRoleLocked(Follower)
	rn.sentLength = nil
	rn.ackedLength = nil
	rn.votesReceived = nil
	rn.persistLocked()
	if oldTerm != term {
		rn.logger.Event(INFO, "stepped_down", "from_term", oldTerm, "to_term", term)
	}
}

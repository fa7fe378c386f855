// raft/gateway.go
package raft

// Propose appends cmd to the log if this node is currently the leader,
// tries to advance the commit point, and kicks off replication (§4.5).
// The leader's own copy always counts toward the quorum in
// tryAdvanceCommitLocked, so in a single-node cluster the entry commits
// and is applied before Propose returns. It does not wait for peers to
// acknowledge — the caller (the client gateway) is responsible for
// observing commit separately, e.g. by polling the state machine.
//
// Returns the log index the entry was appended at (1-based, i.e. the new
// length of the log) and true on success; if this node isn't the leader,
// returns its current leader hint and false.
func (rn *RaftNode) Propose(cmd Command) (index uint64, leaderHint int, accepted bool) {
	rn.mu.Lock()
	if rn.role != Leader {
		hint := rn.leaderHint
		rn.mu.Unlock()
		return 0, hint, false
	}

	rn.log = append(rn.log, LogEntry{Term: rn.term, Command: cmd})
	rn.persistLocked()
	newLength := uint64(len(rn.log))
	rn.tryAdvanceCommitLocked()
	id := rn.id
	rn.mu.Unlock()

	go rn.replicateToAll()
	return newLength, id, true
}

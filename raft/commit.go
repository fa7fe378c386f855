// raft/commit.go
package raft

// applyRangeLocked applies log[from:to) to the state machine in order.
// Caller must hold mu. Applying under the lock keeps application strictly
// ordered across all call sites (leader commit, follower catching up on
// leaderCommit) without a second synchronization mechanism; apply itself
// is expected to be a fast in-memory operation (§4.4).
func (rn *RaftNode) applyRangeLocked(from, to uint64) {
	for i := from; i < to; i++ {
		entry := rn.log[i]
		if _, err := rn.stateMachine.Apply(&entry); err != nil {
			rn.logger.Errorf("apply failed at index %d: %v", i, err)
			continue
		}
		action := ActionType("")
		key := ""
		if entry.Command != nil {
			action = entry.Command.Action()
			switch c := entry.Command.(type) {
			case PutCommand:
				key = c.Key
			case DeleteCommand:
				key = c.Key
			case CasCommand:
				key = c.Key
			}
		}
		rn.logger.Event(INFO, "entry_applied", "index", i, "action", action, "key", key)
	}
}

// tryAdvanceCommitLocked implements §4.3's get_max_ready: the largest
// prefix length k such that a quorum of replicas (including self) has
// acked at least k entries, and the entry at k-1 belongs to the current
// term (the classic Raft safety guard against committing a previous
// leader's uncommitted entry by majority-acked coincidence). Caller must
// hold mu.
func (rn *RaftNode) tryAdvanceCommitLocked() {
	quorum := quorumSize(rn.clusterSizeLocked())
	for k := uint64(len(rn.log)); k > rn.commitLength; k-- {
		acked := 1 // self always has its own entries
		for _, peer := range rn.peers {
			if rn.ackedLength[peer] >= k {
				acked++
			}
		}
		if acked < quorum {
			continue
		}
		if rn.log[k-1].Term != rn.term {
			// A majority has this entry, but it isn't from our own
			// term: committing it now would risk later overwriting it.
			// Keep searching smaller k in case an earlier, same-term
			// prefix already qualifies.
			continue
		}
		rn.applyRangeLocked(rn.commitLength, k)
		rn.logger.Event(INFO, "commit_advanced", "from", rn.commitLength, "to", k)
		rn.commitLength = k
		return
	}
}

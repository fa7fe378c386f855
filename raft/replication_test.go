// raft/replication_test.go
package raft

import (
	"testing"
	"time"
)

func waitForLeader(t *testing.T, tc *testCluster, timeout time.Duration) *RaftNode {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if l := tc.leader(); l != nil {
			return l
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("no leader elected before timeout")
	return nil
}

func TestReplicationCommitsAndApplies(t *testing.T) {
	tc := newTestCluster(t, 3)
	defer tc.shutdown()

	tc.startAll()
	leader := waitForLeader(t, tc, time.Second)

	index, _, ok := leader.Propose(PutCommand{Key: "foo", Value: "bar"})
	if !ok {
		t.Fatal("Propose on leader should be accepted")
	}
	if index != 1 {
		t.Fatalf("expected index 1, got %d", index)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		allApplied := true
		for _, sm := range tc.sms {
			if sm.appliedCount() < 1 {
				allApplied = false
			}
		}
		if allApplied {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("entry did not replicate/apply to all nodes in time")
}

func TestProposeRejectedByFollower(t *testing.T) {
	tc := newTestCluster(t, 3)
	defer tc.shutdown()

	tc.startAll()
	waitForLeader(t, tc, time.Second)

	var follower *RaftNode
	for _, n := range tc.nodes {
		if _, isLeader := n.GetState(); !isLeader {
			follower = n
			break
		}
	}
	if follower == nil {
		t.Fatal("expected at least one follower")
	}

	_, hint, ok := follower.Propose(PutCommand{Key: "k", Value: "v"})
	if ok {
		t.Error("Propose on a follower should be rejected")
	}
	if hint == unknownLeader {
		t.Error("follower should know a leader hint once a leader exists")
	}
}

func TestCommitRequiresCurrentTermEntry(t *testing.T) {
	rn := &RaftNode{
		id:    0,
		peers: []int{1, 2},
		role:  Leader,
		term:  5,
		log: []LogEntry{
			{Term: 3, Command: PutCommand{Key: "a", Value: "1"}},
		},
		ackedLength:  map[int]uint64{1: 1, 2: 1},
		stateMachine: newMemStateMachine(),
		logger:       NewLogger(0, ERROR),
	}

	rn.tryAdvanceCommitLocked()

	if rn.commitLength != 0 {
		t.Errorf("should not commit an entry from an earlier term via majority ack alone, got commitLength=%d", rn.commitLength)
	}

	rn.log = append(rn.log, LogEntry{Term: 5, Command: PutCommand{Key: "b", Value: "2"}})
	rn.ackedLength[1] = 2
	rn.ackedLength[2] = 2
	rn.tryAdvanceCommitLocked()

	if rn.commitLength != 2 {
		t.Errorf("expected commitLength=2 once current-term entry has quorum, got %d", rn.commitLength)
	}
}

func TestLogRequestTruncatesConflictingSuffix(t *testing.T) {
	tc := newTestCluster(t, 2)
	defer tc.shutdown()

	follower := tc.nodes[0]
	follower.mu.Lock()
	follower.term = 1
	follower.log = []LogEntry{
		{Term: 1, Command: PutCommand{Key: "stale", Value: "x"}},
		{Term: 1, Command: PutCommand{Key: "conflict", Value: "old"}},
	}
	follower.mu.Unlock()

	req := &LogRequestMessage{
		LeaderID:     1,
		Term:         2,
		LogLength:    1,
		PrevLogTerm:  1,
		CommitLength: 0,
		Entries: []LogEntry{
			{Term: 2, Command: PutCommand{Key: "conflict", Value: "new"}},
		},
	}
	follower.HandleLogRequest(req)

	follower.mu.Lock()
	defer follower.mu.Unlock()
	if len(follower.log) != 2 {
		t.Fatalf("expected log length 2 after truncate+append, got %d", len(follower.log))
	}
	cmd, ok := follower.log[1].Command.(PutCommand)
	if !ok || cmd.Value != "new" {
		t.Errorf("expected conflicting entry replaced with leader's version, got %+v", follower.log[1])
	}
}

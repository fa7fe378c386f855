// storage/store.go
package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"raftkv/raft"
)

// ErrKeyNotFound reports an absent key. Get does not return it: Get
// signals absence through its boolean result.
var ErrKeyNotFound = errors.New("key not found")

// Store is the replicated key/value map (§3's "db"), backed by a WAL for
// crash recovery. It implements raft.StateMachine: committed log entries
// are applied to it strictly in order, never concurrently, by whichever
// single goroutine is running RaftNode's apply path, so Apply itself
// doesn't need to worry about out-of-order application — only about
// being safe to call concurrently with Get (the client gateway's local
// reads, which are not linearizable — §9 Open Question 7).
type Store struct {
	mu         sync.RWMutex
	data       map[string]string
	casResults map[string]bool
	wal        *WAL
}

// NewStore opens (or creates) a store backed by a WAL under dataDir,
// replaying any existing WAL to rebuild in-memory state.
func NewStore(dataDir string) (*Store, error) {
	wal, err := NewWAL(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAL: %w", err)
	}

	s := &Store{
		data:       make(map[string]string),
		casResults: make(map[string]bool),
		wal:        wal,
	}
	if err := s.recover(); err != nil {
		return nil, fmt.Errorf("failed to recover from WAL: %w", err)
	}
	return s, nil
}

// Apply dispatches a committed log entry to the matching mutation and
// implements raft.StateMachine.
func (s *Store) Apply(entry *raft.LogEntry) (interface{}, error) {
	switch cmd := entry.Command.(type) {
	case raft.PutCommand:
		return nil, s.applyPut(cmd.Key, cmd.Value)
	case raft.DeleteCommand:
		return nil, s.applyDelete(cmd.Key)
	case raft.CasCommand:
		return s.applyCas(cmd.Key, cmd.OldValue, cmd.NewValue, cmd.RequestID)
	default:
		return nil, fmt.Errorf("storage: unknown command action %q", entry.Command.Action())
	}
}

func (s *Store) applyPut(key, value string) error {
	entry := Entry{Timestamp: time.Now().UnixNano(), Op: OpPut, Key: []byte(key), Value: []byte(value)}
	if err := s.wal.Write(entry); err != nil {
		return fmt.Errorf("failed to write put to WAL: %w", err)
	}
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	return nil
}

func (s *Store) applyDelete(key string) error {
	entry := Entry{Timestamp: time.Now().UnixNano(), Op: OpDelete, Key: []byte(key)}
	if err := s.wal.Write(entry); err != nil {
		return fmt.Errorf("failed to write delete to WAL: %w", err)
	}
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// applyCas sets key to newValue iff its current value equals oldValue,
// and records the boolean outcome under requestID so a client polling
// after a leader failover can still retrieve the result of a request it
// can no longer be sure was seen (§4.4's "CAS-result records").
func (s *Store) applyCas(key, oldValue, newValue, requestID string) (bool, error) {
	entry := Entry{
		Timestamp: time.Now().UnixNano(),
		Op:        OpCas,
		Key:       []byte(key),
		OldValue:  []byte(oldValue),
		NewValue:  []byte(newValue),
		RequestID: []byte(requestID),
	}
	if err := s.wal.Write(entry); err != nil {
		return false, fmt.Errorf("failed to write cas to WAL: %w", err)
	}

	s.mu.Lock()
	cur, exists := s.data[key]
	ok := exists && cur == oldValue
	if ok {
		s.data[key] = newValue
	}
	s.casResults[requestID] = ok
	s.mu.Unlock()

	return ok, nil
}

// Get performs a local, non-linearizable read of key (§9 Open Question
// 7: any replica answers from its own committed state, which may lag the
// true commit point or — on a stale leader — be wrong about leadership
// entirely; a read-index or lease-read protocol would close this gap but
// is an explicit Non-goal).
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, exists := s.data[key]
	return value, exists
}

// CasResult returns the recorded outcome of a previously applied CAS
// request, if any.
func (s *Store) CasResult(requestID string) (bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, exists := s.casResults[requestID]
	return result, exists
}

func (s *Store) recover() error {
	entries, err := s.wal.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read WAL: %w", err)
	}

	for _, entry := range entries {
		switch entry.Op {
		case OpPut:
			s.data[string(entry.Key)] = string(entry.Value)
		case OpDelete:
			delete(s.data, string(entry.Key))
		case OpCas:
			cur, exists := s.data[string(entry.Key)]
			ok := exists && cur == string(entry.OldValue)
			if ok {
				s.data[string(entry.Key)] = string(entry.NewValue)
			}
			s.casResults[string(entry.RequestID)] = ok
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.wal.Close()
}

// Compact rewrites the WAL down to one Put record per live key, dropping
// every intervening delete and superseded update plus all recorded CAS
// outcomes (a resumed client that needed one has, by the time anyone
// calls Compact, long since timed out and retried). It's the store's
// only use of WAL.Rewrite, kept here rather than exposed as a raw reset
// so the WAL's on-disk format stays an implementation detail of Store.
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.data))
	for key, value := range s.data {
		entries = append(entries, Entry{Op: OpPut, Key: []byte(key), Value: []byte(value)})
	}
	if err := s.wal.Rewrite(entries); err != nil {
		return fmt.Errorf("failed to compact store: %w", err)
	}
	s.casResults = make(map[string]bool)
	return nil
}

// Stats reports basic store size information.
func (s *Store) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"num_keys": len(s.data),
	}
}

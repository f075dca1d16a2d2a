// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package realtime

import (
	"context"
	"hash/fnv"
	"sync"
)

// Session is one live subscriber connection.
type Session interface {
	ID() string
	// Send must not block on a slow peer.
	Send(ctx context.Context, data []byte) error
	Close(code int, reason string) error
}

const defaultShards = 32

// Registry maps poll ids to their subscribed sessions. Poll ids are spread
// over shards with independent locks, so operations on unrelated polls do
// not contend.
type Registry struct {
	shards []*shard
}

type shard struct {
	mu    sync.RWMutex
	polls map[string]map[string]Session
}

func NewRegistry() *Registry {
	return NewShardedRegistry(defaultShards)
}

func NewShardedRegistry(n int) *Registry {
	if n < 1 {
		n = 1
	}
	r := &Registry{shards: make([]*shard, n)}
	for i := range r.shards {
		r.shards[i] = &shard{polls: make(map[string]map[string]Session)}
	}
	return r
}

func (r *Registry) shardFor(pollID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(pollID))
	return r.shards[h.Sum32()%uint32(len(r.shards))]
}

// Join adds s to the poll's set. Joining twice with the same session id
// keeps a single entry.
func (r *Registry) Join(pollID string, s Session) {
	sh := r.shardFor(pollID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	set, ok := sh.polls[pollID]
	if !ok {
		set = make(map[string]Session)
		sh.polls[pollID] = set
	}
	set[s.ID()] = s
}

// Leave removes s and deletes the poll entry once it is empty. It reports
// whether s was registered.
func (r *Registry) Leave(pollID string, s Session) bool {
	sh := r.shardFor(pollID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	set, ok := sh.polls[pollID]
	if !ok {
		return false
	}
	if _, ok := set[s.ID()]; !ok {
		return false
	}
	delete(set, s.ID())
	if len(set) == 0 {
		delete(sh.polls, pollID)
	}
	return true
}

// Snapshot copies the poll's current sessions.
func (r *Registry) Snapshot(pollID string) []Session {
	sh := r.shardFor(pollID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	set := sh.polls[pollID]
	if len(set) == 0 {
		return nil
	}
	out := make([]Session, 0, len(set))
	for _, s := range set {
		out = append(out, s)
	}
	return out
}

// Drop removes the poll entry and returns the sessions it held.
func (r *Registry) Drop(pollID string) []Session {
	sh := r.shardFor(pollID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	set := sh.polls[pollID]
	delete(sh.polls, pollID)

	out := make([]Session, 0, len(set))
	for _, s := range set {
		out = append(out, s)
	}
	return out
}

// Len returns the number of sessions subscribed to the poll.
func (r *Registry) Len(pollID string) int {
	sh := r.shardFor(pollID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.polls[pollID])
}

// Has reports whether the poll currently has an entry.
func (r *Registry) Has(pollID string) bool {
	sh := r.shardFor(pollID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	_, ok := sh.polls[pollID]
	return ok
}

// Polls returns the number of polls with at least one subscriber.
func (r *Registry) Polls() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += len(sh.polls)
		sh.mu.RUnlock()
	}
	return n
}

// DropAll empties the registry shard by shard and returns every session.
func (r *Registry) DropAll() []Session {
	var out []Session
	for _, sh := range r.shards {
		sh.mu.Lock()
		for id, set := range sh.polls {
			for _, s := range set {
				out = append(out, s)
			}
			delete(sh.polls, id)
		}
		sh.mu.Unlock()
	}
	return out
}

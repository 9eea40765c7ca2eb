package api

import (
	"sync"
	"time"

	"quickmail/internal/redirect"

	"github.com/google/uuid"
)

// FlowStore keeps per-page authorization flows and the pending provider
// requests that belong to them (simple in-memory)
type FlowStore struct {
	flows   sync.Map // map[flowID]flowEntry
	pending sync.Map // map[state]PendingAuth

	flowTTL  time.Duration
	stateTTL time.Duration
	done     chan struct{}
	once     sync.Once
}

type flowEntry struct {
	flow   *redirect.Flow
	expiry time.Time
}

// PendingAuth is an authorization request waiting for the provider callback.
type PendingAuth struct {
	FlowID       string
	CodeVerifier string // For PKCE
	Immediate    bool
	Expiry       time.Time
}

// NewFlowStore creates a store and starts its cleanup loop.
func NewFlowStore(flowTTL, stateTTL time.Duration) *FlowStore {
	s := &FlowStore{
		flowTTL:  flowTTL,
		stateTTL: stateTTL,
		done:     make(chan struct{}),
	}
	go s.cleanup()
	return s
}

// NewFlow stores flow under a fresh ID.
func (s *FlowStore) NewFlow(flow *redirect.Flow) string {
	id := uuid.NewString()
	s.flows.Store(id, flowEntry{flow: flow, expiry: time.Now().Add(s.flowTTL)})
	return id
}

// Flow returns the live flow stored under id.
func (s *FlowStore) Flow(id string) (*redirect.Flow, bool) {
	val, ok := s.flows.Load(id)
	if !ok {
		return nil, false
	}
	entry := val.(flowEntry)
	if time.Now().After(entry.expiry) {
		s.flows.Delete(id)
		return nil, false
	}
	return entry.flow, true
}

// DeleteFlow removes a flow.
func (s *FlowStore) DeleteFlow(id string) {
	s.flows.Delete(id)
}

// SavePending stores a pending authorization under state.
func (s *FlowStore) SavePending(state string, p PendingAuth) {
	p.Expiry = time.Now().Add(s.stateTTL)
	s.pending.Store(state, p)
}

// TakePending checks and consumes a state (one-time use)
func (s *FlowStore) TakePending(state string) (PendingAuth, bool) {
	val, ok := s.pending.LoadAndDelete(state)
	if !ok {
		return PendingAuth{}, false
	}
	p := val.(PendingAuth)
	if time.Now().After(p.Expiry) {
		return PendingAuth{}, false
	}
	return p, true
}

// Close stops the cleanup loop.
func (s *FlowStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *FlowStore) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

func (s *FlowStore) sweep(now time.Time) {
	s.flows.Range(func(key, value any) bool {
		if now.After(value.(flowEntry).expiry) {
			s.flows.Delete(key)
		}
		return true
	})
	s.pending.Range(func(key, value any) bool {
		if now.After(value.(PendingAuth).Expiry) {
			s.pending.Delete(key)
		}
		return true
	})
}

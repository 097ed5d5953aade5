// Package conversation keeps per-call turn history in memory.
//
// A Store maps provider call ids to sessions. Each session has its own lock,
// so handlers working on different calls never contend. Sessions live until
// [Store.Drop] is called or the process exits; there is no eviction.
package conversation

import (
	"sync"
	"time"
)

// Store is an in-memory session table. The zero value is not usable; call
// [NewStore].
type Store struct {
	sessions sync.Map // call id -> *entry
	now      func() time.Time
}

type entry struct {
	mu      sync.Mutex
	session Session
	dropped bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns a snapshot of the session for callID, creating an empty
// one if none exists.
func (s *Store) GetOrCreate(callID string) Session {
	now := s.now()
	fresh := &entry{session: Session{CallID: callID, StartedAt: now, LastActivity: now}}
	v, _ := s.sessions.LoadOrStore(callID, fresh)
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.clone()
}

// Session returns a snapshot of an existing session.
func (s *Store) Session(callID string) (Session, bool) {
	e, ok := s.load(callID)
	if !ok {
		return Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dropped {
		return Session{}, false
	}
	return e.session.clone(), true
}

// AppendTurn adds a turn to an existing session. It is a no-op returning
// false when callID is unknown.
func (s *Store) AppendTurn(callID string, role Role, text string) bool {
	e, ok := s.load(callID)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dropped {
		return false
	}
	now := s.now()
	e.session.Turns = append(e.session.Turns, Turn{Role: role, Text: text, CreatedAt: now})
	e.session.LastActivity = now
	return true
}

// HistoryWindow returns the last n turns of a session, oldest first. The
// result is empty for unknown call ids and for n <= 0.
func (s *Store) HistoryWindow(callID string, n int) []Turn {
	if n <= 0 {
		return nil
	}
	e, ok := s.load(callID)
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	turns := e.session.Turns
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// SetContext sets a context tag on an existing session.
func (s *Store) SetContext(callID, key, value string) bool {
	e, ok := s.load(callID)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dropped {
		return false
	}
	if e.session.Context == nil {
		e.session.Context = make(map[string]string)
	}
	e.session.Context[key] = value
	return true
}

// Drop removes a session and returns its final state.
func (s *Store) Drop(callID string) (Session, bool) {
	v, ok := s.sessions.LoadAndDelete(callID)
	if !ok {
		return Session{}, false
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	// A handler that loaded the entry before the delete must not keep
	// writing into it.
	e.dropped = true
	return e.session.clone(), true
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	n := 0
	s.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// CallIDs lists the ids of live sessions in no particular order.
func (s *Store) CallIDs() []string {
	var ids []string
	s.sessions.Range(func(k, _ any) bool {
		ids = append(ids, k.(string))
		return true
	})
	return ids
}

func (s *Store) load(callID string) (*entry, bool) {
	v, ok := s.sessions.Load(callID)
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}

func (s Session) clone() Session {
	out := s
	if s.Turns != nil {
		out.Turns = make([]Turn, len(s.Turns))
		copy(out.Turns, s.Turns)
	}
	if s.Context != nil {
		out.Context = make(map[string]string, len(s.Context))
		for k, v := range s.Context {
			out.Context[k] = v
		}
	}
	return out
}

package session

import "fmt"

// Store is the dual index of live sessions — by connection id (every
// session has one) and by authenticated client id (only once HELLO
// succeeds). It is single-threaded with the reactor (spec.md §4.2);
// cross-thread access is not permitted.
type Store struct {
	byID       map[ID]*Session
	byClientID map[uint64]*Session

	nextClientID uint64
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		byID:       make(map[ID]*Session),
		byClientID: make(map[uint64]*Session),
	}
}

// Add registers a freshly accepted session under its connection id.
func (st *Store) Add(s *Session) {
	st.byID[s.ID] = s
}

// Get looks a session up by connection id.
func (st *Store) Get(id ID) (*Session, bool) {
	s, ok := st.byID[id]
	return s, ok
}

// GetByClientID looks a session up by its authenticated client id —
// used for counterparty trade-report fan-out.
func (st *Store) GetByClientID(clientID uint64) (*Session, bool) {
	s, ok := st.byClientID[clientID]
	return s, ok
}

// AssignClientID hands the session a fresh, process-unique client id
// and indexes it, as HELLO does on success. Client ids start at 1 (0
// means "not yet authenticated" on the wire).
func (st *Store) AssignClientID(s *Session) uint64 {
	st.nextClientID++
	s.ServerClientID = st.nextClientID
	st.byClientID[s.ServerClientID] = s
	return s.ServerClientID
}

// Remove erases a session from both indices atomically (with respect
// to observers of the store — there is no concurrent access to race
// against, since the store is single-threaded).
func (st *Store) Remove(id ID) {
	s, ok := st.byID[id]
	if !ok {
		return
	}
	delete(st.byID, id)
	if s.ServerClientID != 0 {
		delete(st.byClientID, s.ServerClientID)
	}
}

// Len returns the number of live sessions, for metrics/logging.
func (st *Store) Len() int { return len(st.byID) }

// All returns a snapshot slice of every live session, for periodic
// sweeps (heartbeat-timeout reaping, shutdown flush) that must not
// mutate the store while iterating it.
func (st *Store) All() []*Session {
	out := make([]*Session, 0, len(st.byID))
	for _, s := range st.byID {
		out = append(out, s)
	}
	return out
}

// String renders a short diagnostic summary.
func (st *Store) String() string {
	return fmt.Sprintf("session.Store{sessions=%d}", len(st.byID))
}

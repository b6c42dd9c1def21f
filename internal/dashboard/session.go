package dashboard

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/ow-stat-tracker/internal/overfast"
	"github.com/ow-stat-tracker/internal/stats"
)

// Session is the per-browser state threaded through every handler. Service
// methods take a Session and return the updated copy; nothing is global.
type Session struct {
	ID string `json:"id"`

	// Identity of the last successful fetch
	Battletag string `json:"battletag"`
	PlayerID  string `json:"playerId"`
	Gamemode  string `json:"gamemode"`
	Platform  string `json:"platform"`
	Hero      string `json:"hero"`

	Summary   *overfast.Summary `json:"summary"`
	Table     []stats.StatRow   `json:"table"`
	FetchedAt time.Time         `json:"fetchedAt"`

	// Set on every fetch attempt, successful or not
	LastFetch time.Time `json:"lastFetch"`
}

// HasData reports whether a fetch has populated the table
func (s Session) HasData() bool {
	return s.PlayerID != "" && len(s.Table) > 0
}

// DefaultSessionTTL is how long an untouched session is kept
const DefaultSessionTTL = 24 * time.Hour

const maxSessions = 10000

type sessionEntry struct {
	// op serializes Update calls; mu guards the committed session only, so
	// reads never wait on an operation in flight
	op      sync.Mutex
	mu      sync.RWMutex
	session Session
}

func (e *sessionEntry) load() Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session
}

func (e *sessionEntry) store(s Session) {
	e.mu.Lock()
	e.session = s
	e.mu.Unlock()
}

// Sessions is an in-memory registry of sessions by ID. Update runs one
// operation per session at a time; different sessions proceed independently.
// Sessions idle for longer than the TTL are dropped, as are the least
// recently used ones beyond a fixed cap.
type Sessions struct {
	entries *expirable.LRU[string, *sessionEntry]
}

// NewSessions creates an empty registry. A non-positive ttl uses
// DefaultSessionTTL.
func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{entries: expirable.NewLRU[string, *sessionEntry](maxSessions, nil, ttl)}
}

// Create registers a fresh session with a random ID
func (r *Sessions) Create() Session {
	s := Session{ID: uuid.NewString()}
	r.entries.Add(s.ID, &sessionEntry{session: s})
	return s
}

// lookup finds the entry for id and restarts its idle clock
func (r *Sessions) lookup(id string) (*sessionEntry, bool) {
	e, ok := r.entries.Get(id)
	if !ok {
		return nil, false
	}
	r.entries.Add(id, e)
	return e, true
}

// Get returns the last committed state of the session for id
func (r *Sessions) Get(id string) (Session, bool) {
	e, ok := r.lookup(id)
	if !ok {
		return Session{}, false
	}
	return e.load(), true
}

// Update applies fn to the stored session and keeps whatever session fn
// returns, even alongside an error. Unknown IDs report false.
func (r *Sessions) Update(id string, fn func(Session) (Session, error)) (Session, bool, error) {
	e, ok := r.lookup(id)
	if !ok {
		return Session{}, false, nil
	}

	e.op.Lock()
	defer e.op.Unlock()

	next, err := fn(e.load())
	next.ID = id
	e.store(next)

	// a long fetch may have outlived the idle timeout
	r.entries.Add(id, e)
	return next, true, err
}

// Len returns the number of sessions
func (r *Sessions) Len() int {
	return r.entries.Len()
}

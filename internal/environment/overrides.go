package environment

import (
	"net/http"
	"sync"
	"time"
)

// CookiePrefix prefixes the per-project override cookie name.
const CookiePrefix = "_imenvt_"

var (
	overrideExpiry = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)
	clearedExpiry  = time.Unix(1, 0).UTC()
)

// OverrideStore persists per-project environment overrides.
type OverrideStore interface {
	Lookup(project string) (Target, bool)
	Store(project string, t Target)
	Clear(project string)
}

// CookieName returns the override cookie name for project.
func CookieName(project string) string {
	return CookiePrefix + project
}

// CookieStore reads overrides from a request and writes them to the response.
// Writes are visible to later lookups on the same store. It is scoped to one
// request and is not safe for concurrent use.
type CookieStore struct {
	r       *http.Request
	w       http.ResponseWriter
	pending map[string]Target
}

// NewCookieStore binds a store to a request/response pair. w may be nil for
// read-only use.
func NewCookieStore(w http.ResponseWriter, r *http.Request) *CookieStore {
	return &CookieStore{r: r, w: w, pending: make(map[string]Target)}
}

// Lookup returns the override of project, preferring values set on this store.
func (s *CookieStore) Lookup(project string) (Target, bool) {
	if t, ok := s.pending[project]; ok {
		return t, !t.IsZero()
	}
	if s.r == nil {
		return Target{}, false
	}
	c, err := s.r.Cookie(CookieName(project))
	if err != nil || c.Value == "" {
		return Target{}, false
	}
	return ParseTarget(c.Value), true
}

// Store sets a long-lived override cookie.
func (s *CookieStore) Store(project string, t Target) {
	s.pending[project] = t
	s.write(&http.Cookie{
		Name:    CookieName(project),
		Value:   t.Value(),
		Path:    "/",
		Expires: overrideExpiry,
	})
}

// Clear expires the override cookie.
func (s *CookieStore) Clear(project string) {
	s.pending[project] = Target{}
	s.write(&http.Cookie{
		Name:    CookieName(project),
		Value:   "",
		Path:    "/",
		Expires: clearedExpiry,
	})
}

func (s *CookieStore) write(c *http.Cookie) {
	if s.w == nil {
		return
	}
	http.SetCookie(s.w, c)
}

// MemoryStore keeps overrides in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	overrides map[string]Target
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{overrides: make(map[string]Target)}
}

// Lookup returns the override of project.
func (s *MemoryStore) Lookup(project string) (Target, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.overrides[project]
	return t, ok
}

// Store sets the override of project.
func (s *MemoryStore) Store(project string, t Target) {
	s.mu.Lock()
	s.overrides[project] = t
	s.mu.Unlock()
}

// Clear removes the override of project.
func (s *MemoryStore) Clear(project string) {
	s.mu.Lock()
	delete(s.overrides, project)
	s.mu.Unlock()
}

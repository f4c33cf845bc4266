package offline

import "sync"

// Principal identifies the authenticated user owning the remote partition set.
type Principal struct {
	UserID string
	Token  string
}

// PrincipalProvider supplies the current principal. The second return is
// false when nobody is signed in; every remote path then routes to the
// offline behavior.
type PrincipalProvider interface {
	Principal() (Principal, bool)
}

// StaticPrincipal returns a provider that always yields p. Useful for tests
// and single-user hosts.
func StaticPrincipal(p Principal) PrincipalProvider {
	return staticProvider{p: p}
}

type staticProvider struct{ p Principal }

func (s staticProvider) Principal() (Principal, bool) {
	return s.p, s.p.UserID != "" && s.p.Token != ""
}

// SessionPrincipal is a mutable provider for hosts where the signed-in user
// changes at runtime.
type SessionPrincipal struct {
	mu sync.RWMutex
	p  Principal
	ok bool
}

func (s *SessionPrincipal) Principal() (Principal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.p, s.ok
}

// Set installs a new principal.
func (s *SessionPrincipal) Set(p Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = p
	s.ok = p.UserID != "" && p.Token != ""
}

// Clear signs the session out.
func (s *SessionPrincipal) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = Principal{}
	s.ok = false
}

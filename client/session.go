package client

// State is the coarse authentication state of a Session.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Identity is the account snapshot returned by the auth API. A new value
// replaces the old one wholesale.
type Identity struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	IsAdmin      bool   `json:"isAdmin"`
	ReferralCode string `json:"referralCode"`
}

// wireIdentity is an identity as the server sends it. Accounts created by
// phone may carry the phone number instead of a username.
type wireIdentity struct {
	Identity
	Phone string `json:"phone"`
}

// resolve returns the identity, or nil when it carries no id. The username
// falls back to the phone number and then to fallback.
func (w *wireIdentity) resolve(fallback string) *Identity {
	if w == nil || w.ID == 0 {
		return nil
	}
	id := w.Identity
	if id.Username == "" {
		id.Username = w.Phone
	}
	if id.Username == "" {
		id.Username = fallback
	}
	return &id
}

// Session is a copy of the manager's state at the time it was read.
type Session struct {
	user        *Identity
	loading     bool
	refreshing  bool
	initialized bool
}

// User returns a copy of the current identity, or nil when anonymous.
func (s Session) User() *Identity {
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s Session) IsAuthenticated() bool {
	return s.user != nil
}

func (s Session) IsAdmin() bool {
	return s.user != nil && s.user.IsAdmin
}

// Loading reports whether Bootstrap is in progress.
func (s Session) Loading() bool {
	return s.loading
}

// Refreshing reports whether a token refresh is in flight.
func (s Session) Refreshing() bool {
	return s.refreshing
}

func (s Session) State() State {
	switch {
	case s.loading || s.refreshing:
		return StateLoading
	case s.user != nil:
		return StateAuthenticated
	case s.initialized:
		return StateAnonymous
	default:
		return StateUninitialized
	}
}

// Session returns a copy of the current session.
func (m *SessionManager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// User is shorthand for Session().User().
func (m *SessionManager) User() *Identity {
	return m.Session().User()
}

// Reset forgets the in-memory session without touching credentials or the
// snapshot cache.
func (m *SessionManager) Reset() {
	m.mu.Lock()
	m.session = Session{}
	m.mu.Unlock()
}

// setUser replaces the identity and writes it through to the snapshot cache.
func (m *SessionManager) setUser(u *Identity) {
	var next *Identity
	if u != nil {
		cp := *u
		next = &cp
	}

	m.snapMu.Lock()
	defer m.snapMu.Unlock()

	m.mu.Lock()
	m.session.user = next
	m.session.initialized = true
	m.mu.Unlock()

	m.writeSnapshot(next)
}

func (m *SessionManager) setLoading(v bool) {
	m.mu.Lock()
	m.session.loading = v
	if !v {
		m.session.initialized = true
	}
	m.mu.Unlock()
}

func (m *SessionManager) setRefreshing(v bool) {
	m.mu.Lock()
	m.session.refreshing = v
	m.mu.Unlock()
}

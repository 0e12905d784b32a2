package client

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultTimeout bounds each HTTP request unless WithTimeout overrides it.
const DefaultTimeout = 30 * time.Second

const (
	pathMe               = "/api/me/"
	pathRefresh          = "/api/token/refresh/"
	pathLogin            = "/api/login/"
	pathAdminLogin       = "/api/admin-login/"
	pathSignup           = "/api/signup/"
	pathLogout           = "/api/logout/"
	pathWallet           = "/api/my-wallet/"
	pathGenerateReferral = "/api/generate-referral/"
	pathAdminUsers       = "/api/admin/users/"
)

// SessionManager owns the session of one application instance. Operations
// may overlap; the last completed write wins.
type SessionManager struct {
	baseURL    string
	httpClient *http.Client
	creds      CredentialStore
	cache      SnapshotCache
	retry      RetryPolicy
	log        zerolog.Logger

	mu      sync.RWMutex
	session Session

	// snapMu orders identity changes with their snapshot writes.
	snapMu sync.Mutex
}

// Option configures a SessionManager.
type Option func(*options)

type options struct {
	httpClient *http.Client
	timeout    time.Duration
	creds      CredentialStore
	cache      SnapshotCache
	retry      RetryPolicy
	logger     zerolog.Logger
}

// WithHTTPClient uses a copy of hc for requests. Its Jar is replaced by the
// credential store.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithCredentialStore sets where cookies live. Defaults to an in-memory
// cookie jar.
func WithCredentialStore(cs CredentialStore) Option {
	return func(o *options) {
		o.creds = cs
	}
}

// WithSnapshotCache sets the persistent identity cache. Defaults to an
// in-memory cache.
func WithSnapshotCache(c SnapshotCache) Option {
	return func(o *options) {
		o.cache = c
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) {
		o.retry = p
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New creates a SessionManager for the API at baseURL. The session starts
// uninitialized; call Bootstrap to resolve it.
func New(baseURL string, opts ...Option) *SessionManager {
	o := options{
		retry:  DefaultRetryPolicy(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.creds == nil {
		o.creds = NewJarCredentials()
	}
	if o.cache == nil {
		o.cache = NewMemorySnapshotCache()
	}

	var hc http.Client
	if o.httpClient != nil {
		hc = *o.httpClient
	} else {
		hc = http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if o.timeout > 0 {
		hc.Timeout = o.timeout
	}
	hc.Jar = o.creds

	return &SessionManager{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &hc,
		creds:      o.creds,
		cache:      o.cache,
		retry:      o.retry.normalized(),
		log:        o.logger,
	}
}

// BaseURL returns the API base URL without a trailing slash.
func (m *SessionManager) BaseURL() string {
	return m.baseURL
}

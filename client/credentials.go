package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CredentialStore holds the ambient credentials sent with every request.
// The auth API keeps tokens in HttpOnly cookies, so the client never reads
// them directly.
type CredentialStore interface {
	http.CookieJar
	// Clear drops every stored credential.
	Clear()
}

// MemoryCredentials keeps cookies by name, ignoring domain and path. It is
// meant for tests and single-origin tools.
type MemoryCredentials struct {
	mu      sync.Mutex
	cookies map[string]*http.Cookie
	now     func() time.Time
}

func NewMemoryCredentials() *MemoryCredentials {
	return &MemoryCredentials{
		cookies: make(map[string]*http.Cookie),
		now:     time.Now,
	}
}

func (c *MemoryCredentials) SetCookies(_ *url.URL, cookies []*http.Cookie) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, ck := range cookies {
		if ck == nil || ck.Name == "" {
			continue
		}
		if ck.MaxAge < 0 || (!ck.Expires.IsZero() && ck.Expires.Before(now) && ck.MaxAge == 0) {
			delete(c.cookies, ck.Name)
			continue
		}
		stored := &http.Cookie{Name: ck.Name, Value: ck.Value, Expires: ck.Expires}
		if ck.MaxAge > 0 {
			stored.Expires = now.Add(time.Duration(ck.MaxAge) * time.Second)
		}
		c.cookies[ck.Name] = stored
	}
}

func (c *MemoryCredentials) Cookies(_ *url.URL) []*http.Cookie {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := make([]*http.Cookie, 0, len(c.cookies))
	for name, ck := range c.cookies {
		if !ck.Expires.IsZero() && !ck.Expires.After(now) {
			delete(c.cookies, name)
			continue
		}
		out = append(out, &http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	return out
}

// Value returns the stored value of the named cookie.
func (c *MemoryCredentials) Value(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ck, ok := c.cookies[name]
	if !ok {
		return "", false
	}
	return ck.Value, true
}

// Delete removes one cookie, as if it had expired.
func (c *MemoryCredentials) Delete(name string) {
	c.mu.Lock()
	delete(c.cookies, name)
	c.mu.Unlock()
}

func (c *MemoryCredentials) Clear() {
	c.mu.Lock()
	c.cookies = make(map[string]*http.Cookie)
	c.mu.Unlock()
}

func (c *MemoryCredentials) snapshot() []*http.Cookie {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*http.Cookie, 0, len(c.cookies))
	for _, ck := range c.cookies {
		cp := *ck
		out = append(out, &cp)
	}
	return out
}

func (c *MemoryCredentials) restore(cookies []*http.Cookie) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for _, ck := range cookies {
		if !ck.Expires.IsZero() && !ck.Expires.After(now) {
			continue
		}
		c.cookies[ck.Name] = ck
	}
}

// JarCredentials is a standard cookie jar that honors domain, path and
// expiry rules.
type JarCredentials struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

func NewJarCredentials() *JarCredentials {
	return &JarCredentials{jar: newJar()}
}

func newJar() *cookiejar.Jar {
	// cookiejar.New only fails on a broken PublicSuffixList.
	jar, _ := cookiejar.New(nil)
	return jar
}

func (c *JarCredentials) SetCookies(u *url.URL, cookies []*http.Cookie) {
	c.mu.RLock()
	jar := c.jar
	c.mu.RUnlock()
	jar.SetCookies(u, cookies)
}

func (c *JarCredentials) Cookies(u *url.URL) []*http.Cookie {
	c.mu.RLock()
	jar := c.jar
	c.mu.RUnlock()
	return jar.Cookies(u)
}

func (c *JarCredentials) Clear() {
	c.mu.Lock()
	c.jar = newJar()
	c.mu.Unlock()
}

// FileCredentials persists cookies as JSON so a CLI keeps its session
// between invocations. Cookies are keyed by name like MemoryCredentials.
type FileCredentials struct {
	path string
	mem  *MemoryCredentials
	mu   sync.Mutex
	err  error
}

type persistedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitempty"`
}

// NewFileCredentials loads cookies from path. A missing file is an empty
// store.
func NewFileCredentials(path string) (*FileCredentials, error) {
	fc := &FileCredentials{path: path, mem: NewMemoryCredentials()}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fc, nil
	case err != nil:
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var stored []persistedCookie
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode credentials %s: %w", path, err)
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, p := range stored {
		cookies = append(cookies, &http.Cookie{Name: p.Name, Value: p.Value, Expires: p.Expires})
	}
	fc.mem.restore(cookies)
	return fc, nil
}

func (c *FileCredentials) SetCookies(u *url.URL, cookies []*http.Cookie) {
	c.mem.SetCookies(u, cookies)
	c.save()
}

func (c *FileCredentials) Cookies(u *url.URL) []*http.Cookie {
	return c.mem.Cookies(u)
}

func (c *FileCredentials) Clear() {
	c.mem.Clear()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.err = err
	}
}

// Err returns the last persistence error, if any. http.CookieJar has no way
// to report one.
func (c *FileCredentials) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *FileCredentials) save() {
	cookies := c.mem.snapshot()
	stored := make([]persistedCookie, 0, len(cookies))
	for _, ck := range cookies {
		stored = append(stored, persistedCookie{Name: ck.Name, Value: ck.Value, Expires: ck.Expires})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = writeFileAtomic(c.path, stored)
}

func writeFileAtomic(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

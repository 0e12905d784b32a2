package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	maxResponseBytes  = 1 << 20
)

type response struct {
	status int
	body   []byte
}

func (r response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// errorText returns the "error" field of a JSON error body.
func (r response) errorText() string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(r.body, &e) != nil {
		return ""
	}
	return e.Error
}

// send performs one request. A non-nil error means no response was received.
func (m *SessionManager) send(ctx context.Context, method, path string, body any) (response, error) {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return response{}, fmt.Errorf("marshal request body: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, rdr)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(headerAccept, contentTypeJSON)
	if body != nil {
		req.Header.Set(headerContentType, contentTypeJSON)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return response{}, fmt.Errorf("read %s response: %w", path, err)
	}
	return response{status: resp.StatusCode, body: raw}, nil
}

// call performs one request and decodes a 2xx body into out. Non-2xx
// responses become *APIError.
func (m *SessionManager) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := m.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return &APIError{StatusCode: resp.status, Message: resp.errorText()}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, path, err)
	}
	return nil
}

// authed is call with the expired-credential policy: each 401 is followed
// by one refresh and a retry, up to the retry policy's attempt bound. A
// failed refresh ends the session and returns the 401.
func (m *SessionManager) authed(ctx context.Context, method, path string, out any) error {
	for attempt := 1; ; attempt++ {
		err := m.call(ctx, method, path, nil, out)
		if !isUnauthorized(err) || attempt >= m.retry.MaxAttempts {
			return err
		}
		if rerr := m.refreshTokens(ctx); rerr != nil {
			m.log.Debug().Err(rerr).Str("path", path).Msg("refresh failed")
			m.setUser(nil)
			return err
		}
		m.log.Debug().Str("path", path).Int("attempt", attempt+1).Msg("retrying after refresh")
	}
}

// refreshTokens asks the server to rotate the credential cookies.
func (m *SessionManager) refreshTokens(ctx context.Context) error {
	m.setRefreshing(true)
	defer m.setRefreshing(false)

	resp, err := m.send(ctx, http.MethodPost, pathRefresh, nil)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return &APIError{StatusCode: resp.status, Message: resp.errorText()}
	}
	return nil
}

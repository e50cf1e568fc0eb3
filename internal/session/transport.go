package session

import (
	"net/http"
)

// Transport attaches the session token to outgoing requests and treats a 401
// answer as the authentication-rejection signal for that token.
type Transport struct {
	Store *Store
	// Base defaults to http.DefaultTransport.
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	token := t.Store.Token()
	out := req.Clone(req.Context())
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && token != "" {
		t.Store.Reject(req.Context(), token)
	}
	return resp, nil
}

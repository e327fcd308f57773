package networking

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"parkrep/core/internal/auth"
)

// ErrMissingToken reports an upgrade request without credentials.
var ErrMissingToken = errors.New("networking: missing auth token")

// Authenticator admits or rejects an upgrade request and names the subscriber.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

type allowAll struct{}

func (allowAll) Authenticate(r *http.Request) (string, error) {
	return r.RemoteAddr, nil
}

// AllowAll admits every subscriber and names it by remote address.
func AllowAll() Authenticator { return allowAll{} }

type hmacAuthenticator struct {
	verifier *auth.Signer
}

// NewHMACAuthenticator verifies hub tokens signed with secret. Tokens are read from
// the auth_token query parameter or the X-Auth-Token header.
func NewHMACAuthenticator(secret string) (Authenticator, error) {
	verifier, err := auth.NewSigner(secret, auth.WithLeeway(2*time.Second))
	if err != nil {
		return nil, err
	}
	return &hmacAuthenticator{verifier: verifier}, nil
}

func (a *hmacAuthenticator) Authenticate(r *http.Request) (string, error) {
	token := strings.TrimSpace(r.URL.Query().Get("auth_token"))
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Auth-Token"))
	}
	if token == "" {
		return "", ErrMissingToken
	}
	claims, err := a.verifier.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

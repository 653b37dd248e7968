package auth

import (
	"errors"
	"net/http"
)

// MultiAuthenticator accepts a request if any of its authenticators does.
// A request that brings no credentials for one method falls through to the
// next; a request with wrong credentials is rejected at once.
type MultiAuthenticator struct {
	authenticators []Authenticator
}

// NewMultiAuthenticator creates a MultiAuthenticator trying each in order.
func NewMultiAuthenticator(authenticators ...Authenticator) *MultiAuthenticator {
	return &MultiAuthenticator{authenticators: authenticators}
}

// Authenticate returns the first successful result.
func (a *MultiAuthenticator) Authenticate(r *http.Request) (*AuthInfo, error) {
	for _, authenticator := range a.authenticators {
		info, err := authenticator.Authenticate(r)
		if err == nil {
			return info, nil
		}
		if !errors.Is(err, ErrUnauthenticated) {
			return nil, err
		}
	}

	return nil, ErrUnauthenticated
}

// Method returns the authentication method type.
func (a *MultiAuthenticator) Method() AuthMethod {
	return AuthMethodMulti
}

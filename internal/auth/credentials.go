package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyHeader is the HTTP header name for API key authentication.
const APIKeyHeader = "X-API-Key"

// dummyHash is compared against when the user is unknown so that unknown
// and known users take the same time to reject.
//
//nolint:gosec // not a credential
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z0hZzYQ6j5Y8q8r9uK1b6YxW"

// parsePairs parses "a:b,c:d" into a map. Only the first colon of an entry
// separates the pair, so bcrypt hashes survive intact.
func parsePairs(kind, config string) (map[string]string, error) {
	trimmed := strings.TrimSpace(config)
	if trimmed == "" {
		return nil, fmt.Errorf("%s auth: config must not be empty", kind)
	}

	pairs := make(map[string]string)
	for _, entry := range strings.Split(trimmed, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		left, right, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("%s auth: invalid entry format, expected a:b", kind)
		}

		left, right = strings.TrimSpace(left), strings.TrimSpace(right)
		if left == "" || right == "" {
			return nil, fmt.Errorf("%s auth: both sides of an entry must be set", kind)
		}

		pairs[left] = right
	}

	if len(pairs) == 0 {
		return nil, fmt.Errorf("%s auth: no valid entries found", kind)
	}

	return pairs, nil
}

// BasicAuthenticator checks HTTP Basic credentials against bcrypt hashes.
type BasicAuthenticator struct {
	users map[string]string // username -> bcrypt hash
}

// NewBasicAuthenticator parses "user1:hash1,user2:hash2".
func NewBasicAuthenticator(usersConfig string) (*BasicAuthenticator, error) {
	users, err := parsePairs("basic", usersConfig)
	if err != nil {
		return nil, err
	}
	return &BasicAuthenticator{users: users}, nil
}

// Authenticate verifies the request's Basic credentials.
func (a *BasicAuthenticator) Authenticate(r *http.Request) (*AuthInfo, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, ErrUnauthenticated
	}

	hash, exists := a.users[username]
	if !exists {
		hash = dummyHash
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil || !exists {
		return nil, ErrInvalidCredentials
	}

	return &AuthInfo{
		Method:  AuthMethodBasic,
		Subject: username,
	}, nil
}

// Method returns the authentication method type.
func (a *BasicAuthenticator) Method() AuthMethod {
	return AuthMethodBasic
}

// APIKeyAuthenticator checks the X-API-Key header.
type APIKeyAuthenticator struct {
	keys map[string]string // key value -> key name
}

// NewAPIKeyAuthenticator parses "key1:name1,key2:name2".
func NewAPIKeyAuthenticator(keysConfig string) (*APIKeyAuthenticator, error) {
	keys, err := parsePairs("apikey", keysConfig)
	if err != nil {
		return nil, err
	}
	return &APIKeyAuthenticator{keys: keys}, nil
}

// Authenticate compares the presented key with every configured key in
// constant time.
func (a *APIKeyAuthenticator) Authenticate(r *http.Request) (*AuthInfo, error) {
	apiKey := r.Header.Get(APIKeyHeader)
	if apiKey == "" {
		return nil, ErrUnauthenticated
	}

	var subject string
	for key, name := range a.keys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
			subject = name
		}
	}

	if subject == "" {
		return nil, ErrInvalidAPIKey
	}

	return &AuthInfo{
		Method:  AuthMethodAPIKey,
		Subject: subject,
	}, nil
}

// Method returns the authentication method type.
func (a *APIKeyAuthenticator) Method() AuthMethod {
	return AuthMethodAPIKey
}

package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vyrodovalexey/pizzaboard/internal/auth"
)

// mockAuthenticator is a test double for auth.Authenticator.
type mockAuthenticator struct {
	info   *auth.AuthInfo
	err    error
	method auth.AuthMethod
	called bool
}

func (m *mockAuthenticator) Authenticate(_ *http.Request) (*auth.AuthInfo, error) {
	m.called = true
	return m.info, m.err
}

func (m *mockAuthenticator) Method() auth.AuthMethod {
	return m.method
}

func TestMultiAuthenticator_Authenticate(t *testing.T) {
	t.Parallel()

	basicInfo := &auth.AuthInfo{Method: auth.AuthMethodBasic, Subject: "chef"}
	keyInfo := &auth.AuthInfo{Method: auth.AuthMethodAPIKey, Subject: "kitchen"}

	tests := []struct {
		name        string
		auths       func() []*mockAuthenticator
		wantSubject string
		wantErrIs   error
		wantCalled  []bool
	}{
		{
			name:      "no authenticators",
			auths:     func() []*mockAuthenticator { return nil },
			wantErrIs: auth.ErrUnauthenticated,
		},
		{
			name: "first succeeds",
			auths: func() []*mockAuthenticator {
				return []*mockAuthenticator{{info: basicInfo}, {info: keyInfo}}
			},
			wantSubject: "chef",
			wantCalled:  []bool{true, false},
		},
		{
			name: "falls through on missing credentials",
			auths: func() []*mockAuthenticator {
				return []*mockAuthenticator{{err: auth.ErrUnauthenticated}, {info: keyInfo}}
			},
			wantSubject: "kitchen",
			wantCalled:  []bool{true, true},
		},
		{
			name: "stops on wrong credentials",
			auths: func() []*mockAuthenticator {
				return []*mockAuthenticator{{err: auth.ErrInvalidCredentials}, {info: keyInfo}}
			},
			wantErrIs:  auth.ErrInvalidCredentials,
			wantCalled: []bool{true, false},
		},
		{
			name: "all without credentials",
			auths: func() []*mockAuthenticator {
				return []*mockAuthenticator{{err: auth.ErrUnauthenticated}, {err: auth.ErrUnauthenticated}}
			},
			wantErrIs:  auth.ErrUnauthenticated,
			wantCalled: []bool{true, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			mocks := tt.auths()
			authenticators := make([]auth.Authenticator, 0, len(mocks))
			for _, m := range mocks {
				authenticators = append(authenticators, m)
			}
			multi := auth.NewMultiAuthenticator(authenticators...)

			// Act
			info, err := multi.Authenticate(httptest.NewRequest(http.MethodPost, "/pizzas", nil))

			// Assert
			if tt.wantErrIs != nil {
				if !errors.Is(err, tt.wantErrIs) {
					t.Errorf("Authenticate() error = %v, want %v", err, tt.wantErrIs)
				}
			} else {
				if err != nil {
					t.Fatalf("Authenticate() error = %v", err)
				}
				if info.Subject != tt.wantSubject {
					t.Errorf("Subject = %q, want %q", info.Subject, tt.wantSubject)
				}
			}
			for i, want := range tt.wantCalled {
				if mocks[i].called != want {
					t.Errorf("authenticator %d called = %v, want %v", i, mocks[i].called, want)
				}
			}
		})
	}
}

func TestMultiAuthenticator_Method(t *testing.T) {
	t.Parallel()

	if got := auth.NewMultiAuthenticator().Method(); got != auth.AuthMethodMulti {
		t.Errorf("Method() = %q, want %q", got, auth.AuthMethodMulti)
	}
}

func TestAuthInfoContext(t *testing.T) {
	t.Parallel()

	if _, ok := auth.FromContext(context.Background()); ok {
		t.Error("FromContext() on empty context should report false")
	}

	want := &auth.AuthInfo{Method: auth.AuthMethodBasic, Subject: "chef"}
	got, ok := auth.FromContext(auth.WithAuthInfo(context.Background(), want))

	if !ok || got != want {
		t.Errorf("FromContext() = %v, %v; want %v, true", got, ok, want)
	}
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/pizzaboard/internal/auth"
	"github.com/vyrodovalexey/pizzaboard/internal/config"
	"github.com/vyrodovalexey/pizzaboard/internal/handler"
	"github.com/vyrodovalexey/pizzaboard/internal/model"
	"github.com/vyrodovalexey/pizzaboard/internal/octopus"
	"github.com/vyrodovalexey/pizzaboard/internal/store"
	"github.com/vyrodovalexey/pizzaboard/internal/view"
)

// testAuthenticator is a mock authenticator for server tests.
type testAuthenticator struct {
	info *auth.AuthInfo
	err  error
}

func (a *testAuthenticator) Authenticate(_ *http.Request) (*auth.AuthInfo, error) {
	return a.info, a.err
}

func (a *testAuthenticator) Method() auth.AuthMethod {
	return auth.AuthMethodAPIKey
}

func testConfig() *config.Config {
	return &config.Config{
		ServerPort:      8080,
		LogLevel:        "info",
		ShutdownTimeout: 5 * time.Second,
		MetricsEnabled:  true,
		AllowedOrigins:  []string{"*"},
		AuthMode:        "none",
	}
}

// newTestServer wires a real board the way main does.
func newTestServer(t *testing.T, cfg *config.Config, authenticator auth.Authenticator) (*Server, *octopus.Octopus) {
	t.Helper()

	logger := zap.NewNop()
	surface := handler.NewSurface(logger, cfg.AllowedOrigins)
	board := octopus.New(store.New(), logger)
	board.Attach(view.NewPresenter(board, surface, logger))
	if err := board.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	srv, err := New(cfg, logger, board, surface, authenticator)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(surface.CloseAllConnections)

	return srv, board
}

func serve(srv *Server, method, path string, setup func(r *http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if setup != nil {
		setup(req)
	}
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	return rr
}

func TestNew(t *testing.T) {
	// Act
	srv, _ := newTestServer(t, testConfig(), nil)

	// Assert
	if srv.router == nil {
		t.Error("router should not be nil")
	}
	if srv.httpServer == nil {
		t.Fatal("httpServer should not be nil")
	}
	if srv.httpServer.Addr != ":8080" {
		t.Errorf("Addr = %q, want %q", srv.httpServer.Addr, ":8080")
	}
	if srv.httpServer.ReadHeaderTimeout == 0 {
		t.Error("ReadHeaderTimeout should be set")
	}
	if srv.surface == nil {
		t.Error("surface should not be nil")
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		enabled    bool
		wantStatus int
	}{
		{name: "enabled", enabled: true, wantStatus: http.StatusOK},
		{name: "disabled", enabled: false, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.MetricsEnabled = tt.enabled
			srv, _ := newTestServer(t, cfg, nil)

			rr := serve(srv, http.MethodGet, "/metrics", nil)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestServer_BoardThroughAPI(t *testing.T) {
	// Arrange
	srv, _ := newTestServer(t, testConfig(), nil)

	// Act
	for range 3 {
		if rr := serve(srv, http.MethodPost, "/api/v1/pizzas", nil); rr.Code != http.StatusCreated {
			t.Fatalf("create status = %d, want %d", rr.Code, http.StatusCreated)
		}
	}
	if rr := serve(srv, http.MethodDelete, "/api/v1/pizzas/2", nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", rr.Code, http.StatusNoContent)
	}

	// Assert
	rr := serve(srv, http.MethodGet, "/api/v1/pizzas", nil)
	var resp model.APIResponse[[]model.Pizza]
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 2 || resp.Data[0].ID != 1 || resp.Data[1].ID != 3 {
		t.Errorf("pizzas = %+v, want ids 1 and 3", resp.Data)
	}

	page := serve(srv, http.MethodGet, "/", nil).Body.String()
	if !strings.Contains(page, `data-id="1"`) || !strings.Contains(page, `data-id="3"`) {
		t.Error("page should list pizzas 1 and 3")
	}
	if strings.Contains(page, `data-id="2"`) {
		t.Error("page should not list removed pizza 2")
	}
}

func TestServer_DeleteUnknownPizza(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), nil)

	rr := serve(srv, http.MethodDelete, "/api/v1/pizzas/7", nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestServer_FormFallback(t *testing.T) {
	// Arrange
	srv, board := newTestServer(t, testConfig(), nil)
	ctx := context.Background()

	// Act
	add := serve(srv, http.MethodPost, "/pizzas", nil)
	_ = serve(srv, http.MethodPost, "/pizzas", nil)
	remove := serve(srv, http.MethodPost, "/pizzas/1/remove", nil)

	// Assert
	if add.Code != http.StatusSeeOther || remove.Code != http.StatusSeeOther {
		t.Errorf("status = %d and %d, want %d", add.Code, remove.Code, http.StatusSeeOther)
	}
	pizzas, err := board.VisiblePizzas(ctx)
	if err != nil {
		t.Fatalf("VisiblePizzas() error = %v", err)
	}
	if len(pizzas) != 1 || pizzas[0].ID != 2 {
		t.Errorf("visible = %+v, want only pizza 2", pizzas)
	}
}

func TestServer_ReadyReportsStats(t *testing.T) {
	srv, board := newTestServer(t, testConfig(), nil)
	if _, err := board.AddPizza(context.Background()); err != nil {
		t.Fatalf("AddPizza() error = %v", err)
	}

	rr := serve(srv, http.MethodGet, "/ready", nil)

	var resp model.APIResponse[handler.ReadyResponse]
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Pizzas.Created != 1 || resp.Data.Pizzas.Visible != 1 {
		t.Errorf("stats = %+v, want one visible pizza", resp.Data.Pizzas)
	}
}

func TestServer_MiddlewareApplied(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), nil)

	rr := serve(srv, http.MethodGet, "/health", func(r *http.Request) {
		r.Header.Set("Origin", "http://pizza.example")
	})

	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID should be set")
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "http://pizza.example" {
		t.Errorf("Allow-Origin = %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestServer_Auth(t *testing.T) {
	tests := []struct {
		name          string
		authenticator auth.Authenticator
		method        string
		path          string
		wantStatus    int
	}{
		{
			name:          "guarded api without credentials",
			authenticator: &testAuthenticator{err: auth.ErrUnauthenticated},
			method:        http.MethodPost,
			path:          "/api/v1/pizzas",
			wantStatus:    http.StatusUnauthorized,
		},
		{
			name:          "guarded page without credentials",
			authenticator: &testAuthenticator{err: auth.ErrUnauthenticated},
			method:        http.MethodGet,
			path:          "/",
			wantStatus:    http.StatusUnauthorized,
		},
		{
			name:          "health check stays public",
			authenticator: &testAuthenticator{err: auth.ErrUnauthenticated},
			method:        http.MethodGet,
			path:          "/health",
			wantStatus:    http.StatusOK,
		},
		{
			name:          "authenticated create",
			authenticator: &testAuthenticator{info: &auth.AuthInfo{Method: auth.AuthMethodAPIKey, Subject: "kitchen"}},
			method:        http.MethodPost,
			path:          "/api/v1/pizzas",
			wantStatus:    http.StatusCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, testConfig(), tt.authenticator)

			rr := serve(srv, tt.method, tt.path, nil)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	// Arrange
	cfg := testConfig()
	cfg.ServerPort = 0
	srv, _ := newTestServer(t, cfg, nil)

	startErr := make(chan error, 1)
	go func() { startErr <- srv.Start() }()

	// Act
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	time.Sleep(50 * time.Millisecond)
	err := srv.Shutdown(ctx)

	// Assert
	if err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	select {
	case err := <-startErr:
		if err != nil {
			t.Errorf("Start() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after Shutdown")
	}
}

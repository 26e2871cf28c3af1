package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atmoslabs/atmos-core/internal/aggregate"
	"github.com/atmoslabs/atmos-core/internal/gateway"
	"github.com/atmoslabs/atmos-core/internal/idempotency"
	"github.com/atmoslabs/atmos-core/internal/infrastructure/config"
	"github.com/atmoslabs/atmos-core/internal/infrastructure/logging"
	"github.com/atmoslabs/atmos-core/internal/registry"
	"github.com/atmoslabs/atmos-core/internal/session"
)

const (
	testAccessKey = "test-access-key"
	testJWTSecret = "0123456789abcdef0123456789abcdef"
)

type apiHarness struct {
	server   *Server
	router   http.Handler
	registry *registry.Registry
	sched    *session.Scheduler
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()

	logger := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	reg := registry.New()
	sched := session.NewScheduler(session.Timings{
		WelcomeDelay:   time.Hour,
		VoiceFallback:  time.Hour,
		ResultFallback: time.Hour,
	})
	t.Cleanup(sched.Close)
	guard := idempotency.NewGuard(time.Hour)
	t.Cleanup(func() { guard.Close() })

	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 65536, PingInterval: 30, PongTimeout: 60}, logger)

	gw := gateway.New(gateway.Config{
		Targets: []gateway.Target{
			{Name: "entrance", Mode: gateway.ModeAggregated, Channel: "display.entrance"},
		},
		ActiveWindow: 10 * time.Minute,
		Policy:       aggregate.PolicyMostRecent,
	}, gateway.Deps{
		Registry:    reg,
		Scheduler:   sched,
		Guard:       guard,
		Broadcaster: hub,
	})

	srv, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS:     config.WebSocketConfig{MaxMessageSize: 65536, PingInterval: 30, PongTimeout: 60},
		Security: config.SecurityConfig{
			AccessKey: testAccessKey,
			JWT:       config.JWTConfig{Secret: testJWTSecret, AccessTokenTTL: 15},
		},
		Logger:       logger,
		Registry:     reg,
		Scheduler:    sched,
		Gateway:      gw,
		ActiveWindow: 10 * time.Minute,
		ExternalHub:  hub,
		Version:      "test",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	srv.hub.SetSink(gw)

	return &apiHarness{
		server:   srv,
		router:   srv.buildRouter(),
		registry: reg,
		sched:    sched,
	}
}

// login performs the access-key exchange and returns a bearer token.
func (h *apiHarness) login(t *testing.T, userID string) string {
	t.Helper()

	body, _ := json.Marshal(loginRequest{AccessKey: testAccessKey, UserID: userID})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login failed with status %d: %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func (h *apiHarness) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.request(t, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" {
		t.Errorf("expected ok status, got %v", body["status"])
	}
}

func TestLogin(t *testing.T) {
	t.Run("valid access key", func(t *testing.T) {
		h := newAPIHarness(t)

		token := h.login(t, "u1")
		if token == "" {
			t.Error("expected a token")
		}
	})

	t.Run("wrong access key is rejected", func(t *testing.T) {
		h := newAPIHarness(t)

		body, _ := json.Marshal(loginRequest{AccessKey: "wrong", UserID: "u1"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("missing user_id is rejected", func(t *testing.T) {
		h := newAPIHarness(t)

		body, _ := json.Marshal(loginRequest{AccessKey: testAccessKey})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestAuthMiddleware(t *testing.T) {
	h := newAPIHarness(t)

	t.Run("no token rejected", func(t *testing.T) {
		rec := h.request(t, http.MethodGet, "/api/v1/users/active", "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		rec := h.request(t, http.MethodGet, "/api/v1/users/active", "not.a.jwt", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("valid token accepted", func(t *testing.T) {
		token := h.login(t, "u1")
		rec := h.request(t, http.MethodGet, "/api/v1/users/active", token, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestEventIntake(t *testing.T) {
	h := newAPIHarness(t)
	token := h.login(t, "u1")

	env := map[string]any{
		"uuid":    uuid.New().String(),
		"type":    gateway.EventUserJoined,
		"payload": map[string]any{"user_id": "u1", "display_name": "Ana"},
	}
	rec := h.request(t, http.MethodPost, "/api/v1/events", token, env)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	users := h.registry.ActiveUsers(time.Minute)
	if len(users) != 1 || users[0].ID != "u1" {
		t.Error("expected u1 active after event intake")
	}

	t.Run("invalid event fails closed", func(t *testing.T) {
		bad := map[string]any{"uuid": "x", "type": "user.teleported", "payload": map[string]any{}}
		rec := h.request(t, http.MethodPost, "/api/v1/events", token, bad)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestSessionEndpoints(t *testing.T) {
	h := newAPIHarness(t)
	token := h.login(t, "u1")

	t.Run("no session yields 404", func(t *testing.T) {
		rec := h.request(t, http.MethodGet, "/api/v1/session", token, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("restart starts a session", func(t *testing.T) {
		rec := h.request(t, http.MethodPost, "/api/v1/session/restart", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		rec = h.request(t, http.MethodGet, "/api/v1/session", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body map[string]any
		json.Unmarshal(rec.Body.Bytes(), &body)
		if body["stage"] != "t1" || body["label"] != "welcome" {
			t.Errorf("expected welcome stage, got %v", body)
		}
	})
}

func TestSnapshotEndpoints(t *testing.T) {
	h := newAPIHarness(t)
	token := h.login(t, "u1")

	t.Run("missing snapshot yields 404", func(t *testing.T) {
		rec := h.request(t, http.MethodGet, "/api/v1/targets/entrance/snapshot", token, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("snapshot roundtrip", func(t *testing.T) {
		temp := 22.5
		h.registry.UpdateApplied("entrance", registry.Environment{Temperature: &temp}, "dec-1")

		rec := h.request(t, http.MethodGet, "/api/v1/targets/entrance/snapshot", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var snap registry.Snapshot
		json.Unmarshal(rec.Body.Bytes(), &snap)
		if snap.DecisionID != "dec-1" || *snap.Applied.Temperature != 22.5 {
			t.Errorf("unexpected snapshot %+v", snap)
		}
	})
}

func TestWSTicketFlow(t *testing.T) {
	h := newAPIHarness(t)
	token := h.login(t, "u1")

	rec := h.request(t, http.MethodPost, "/api/v1/auth/ws-ticket", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	ticket, _ := body["ticket"].(string)
	if ticket == "" {
		t.Fatal("expected a ticket")
	}

	t.Run("ticket is bound to the user and single-use", func(t *testing.T) {
		entry, ok := h.server.validateTicket(ticket)
		if !ok {
			t.Fatal("expected valid ticket")
		}
		if entry.userID != "u1" {
			t.Errorf("expected ticket bound to u1, got %q", entry.userID)
		}
		if _, ok := h.server.validateTicket(ticket); ok {
			t.Error("expected second use to fail")
		}
	})

	t.Run("websocket upgrade without ticket rejected", func(t *testing.T) {
		rec := h.request(t, http.MethodGet, "/api/v1/ws", "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})
}

func TestTicketExpiry(t *testing.T) {
	h := newAPIHarness(t)

	ticket := generateTicket()
	h.server.tickets.mu.Lock()
	h.server.tickets.tickets[ticket] = ticketEntry{
		userID:    "u1",
		expiresAt: time.Now().Add(-time.Second),
	}
	h.server.tickets.mu.Unlock()

	if _, ok := h.server.validateTicket(ticket); ok {
		t.Error("expected expired ticket to be rejected")
	}
}

func TestStatsEndpoint(t *testing.T) {
	h := newAPIHarness(t)
	token := h.login(t, fmt.Sprintf("user-%d", time.Now().UnixNano()))

	h.registry.Connect("u1", "Ana")
	rec := h.request(t, http.MethodGet, "/api/v1/stats", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats registry.Stats
	json.Unmarshal(rec.Body.Bytes(), &stats)
	if stats.Users != 1 || stats.Connected != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

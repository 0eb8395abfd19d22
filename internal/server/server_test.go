package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/vaultbreak/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Port:                "0",
		Env:                 "development",
		LogLevel:            "error",
		HeistModeDuration:   10 * time.Minute,
		DefenseTickInterval: 30 * time.Second,
		FeedSize:            15,
		RNGSeed:             42, // deterministic feeds
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s
}

func doJSON(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	s.router.ServeHTTP(w, req)

	var resp map[string]interface{}
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
		}
	}
	return w, resp
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w, resp := doJSON(t, s, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w, _ := doJSON(t, s, "GET", "/health/live", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w, _ := doJSON(t, s, "GET", "/ready", "")
	// Server hasn't called Run() so ready is false
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	expected := []string{
		"GET:/health",
		"GET:/metrics",
		"GET:/ws",
		"GET:/api/v1/economy/stats",
		"GET:/api/v1/economy/fee",
		"GET:/api/v1/economy/loot",
		"GET:/api/v1/economy/probability",
		"GET:/api/v1/players/:id/loadout",
		"PUT:/api/v1/players/:id/loadout/:slot",
		"GET:/api/v1/players/:id/balance",
		"GET:/api/v1/matchmaking/feed",
		"GET:/api/v1/matchmaking/practice",
		"POST:/api/v1/players/:id/heist/mode",
		"POST:/api/v1/players/:id/heist/start",
		"POST:/api/v1/players/:id/heist/result",
		"POST:/api/v1/players/:id/heist/next",
		"POST:/api/v1/players/:id/heist/complete",
		"POST:/api/v1/players/:id/heist/cancel",
		"GET:/api/v1/players/:id/heist/session",
		"GET:/api/v1/players/:id/history",
		"POST:/api/v1/players/:id/insurance/quote",
		"POST:/api/v1/players/:id/insurance/purchase",
		"POST:/api/v1/players/:id/insurance/claim",
		"GET:/api/v1/players/:id/insurance/policy",
	}

	routeSet := make(map[string]bool)
	for _, route := range routes {
		routeSet[route.Method+":"+route.Path] = true
	}

	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("Core route %s not registered", e)
		}
	}
}

// ---------------------------------------------------------------------------
// End-to-end attack flow (in-memory, seeded RNG)
// ---------------------------------------------------------------------------

func TestAttackFlow(t *testing.T) {
	s := newTestServer(t)

	// New player gets a loadout and a starting balance
	w, resp := doJSON(t, s, "GET", "/api/v1/players/p1/loadout", "")
	if w.Code != http.StatusOK {
		t.Fatalf("loadout: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp["loadout"] == nil {
		t.Fatal("Expected loadout in response")
	}

	w, resp = doJSON(t, s, "GET", "/api/v1/players/p1/balance", "")
	if w.Code != http.StatusOK {
		t.Fatalf("balance: expected 200, got %d", w.Code)
	}
	bal := resp["balance"].(map[string]interface{})
	if bal["available"].(float64) <= 0 {
		t.Fatal("Expected positive starting balance")
	}

	// Attacks before activating heist mode are rejected
	w, _ = doJSON(t, s, "POST", "/api/v1/players/p1/heist/start", `{"targetId":"bot_x"}`)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 before heist mode, got %d", w.Code)
	}

	// Activate heist mode, fetch a feed, attack the first target
	w, _ = doJSON(t, s, "POST", "/api/v1/players/p1/heist/mode", "")
	if w.Code != http.StatusOK {
		t.Fatalf("mode: expected 200, got %d", w.Code)
	}

	w, resp = doJSON(t, s, "GET", "/api/v1/matchmaking/feed?rating=1000", "")
	if w.Code != http.StatusOK {
		t.Fatalf("feed: expected 200, got %d", w.Code)
	}
	targets := resp["targets"].([]interface{})
	if len(targets) == 0 {
		t.Fatal("Expected non-empty feed")
	}
	targetID := targets[0].(map[string]interface{})["id"].(string)

	w, _ = doJSON(t, s, "POST", "/api/v1/players/p1/heist/start", `{"targetId":"`+targetID+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("start: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// Play all three modules clean
	for i := 0; i < 3; i++ {
		w, _ = doJSON(t, s, "POST", "/api/v1/players/p1/heist/result",
			`{"score":0.9,"passed":true,"timeSpentMs":4000}`)
		if w.Code != http.StatusOK {
			t.Fatalf("result %d: expected 200, got %d: %s", i, w.Code, w.Body.String())
		}
		w, _ = doJSON(t, s, "POST", "/api/v1/players/p1/heist/next", "")
		if w.Code != http.StatusOK {
			t.Fatalf("next %d: expected 200, got %d: %s", i, w.Code, w.Body.String())
		}
	}

	w, resp = doJSON(t, s, "POST", "/api/v1/players/p1/heist/complete", "")
	if w.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	result := resp["result"].(map[string]interface{})
	if result["success"] != true {
		t.Errorf("Expected successful breach, got %v", result)
	}

	// History records the attack
	w, resp = doJSON(t, s, "GET", "/api/v1/players/p1/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", w.Code)
	}
	attacks := resp["attacks"].([]interface{})
	if len(attacks) != 1 {
		t.Errorf("Expected 1 recorded attack, got %d", len(attacks))
	}
}

// ---------------------------------------------------------------------------
// Param validation
// ---------------------------------------------------------------------------

func TestInvalidPlayerIDRejected(t *testing.T) {
	s := newTestServer(t)

	w, _ := doJSON(t, s, "GET", "/api/v1/players/bad%20id/loadout", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed player id, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// 404 test
// ---------------------------------------------------------------------------

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w, _ := doJSON(t, s, "GET", "/api/v1/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Admin endpoint tests
// ---------------------------------------------------------------------------

func TestAdminDisabledWithoutSecret(t *testing.T) {
	s := newTestServer(t)

	w, resp := doJSON(t, s, "GET", "/api/v1/admin/tuning", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 with no ADMIN_SECRET, got %d", w.Code)
	}
	if resp["error"] != "admin_disabled" {
		t.Errorf("Expected admin_disabled, got %v", resp["error"])
	}
}

func TestAdminAuth(t *testing.T) {
	cfg := testConfig()
	cfg.AdminSecret = "test-secret"
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	// Wrong secret is rejected.
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/admin/tuning", nil)
	req.Header.Set("X-Admin-Secret", "wrong")
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong secret, got %d", w.Code)
	}

	// Correct secret via header.
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/v1/admin/tuning", nil)
	req.Header.Set("X-Admin-Secret", "test-secret")
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for correct secret, got %d", w.Code)
	}

	// Correct secret via bearer token.
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/v1/admin/realtime", nil)
	req.Header.Set("Authorization", "Bearer test-secret")
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for bearer secret, got %d", w.Code)
	}
}

package server

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/danielpatrickdp/intervene/internal/engine"
	"github.com/danielpatrickdp/intervene/internal/feedback"
	"github.com/danielpatrickdp/intervene/internal/gate"
	"github.com/danielpatrickdp/intervene/internal/history"
	"github.com/danielpatrickdp/intervene/internal/selector"
	"github.com/danielpatrickdp/intervene/internal/strategy"
	"github.com/danielpatrickdp/intervene/internal/telemetry"
)

var serveAt = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, provider telemetry.Provider) *gin.Engine {
	t.Helper()
	store := history.NewMemStore()
	catalog := strategy.NewBuiltinCatalog()
	clock := func() time.Time { return serveAt }

	eng := engine.New(
		gate.New(gate.DefaultConfig()),
		selector.New(catalog, selector.DefaultWeights(), nil),
		feedback.New(catalog, store, nil),
		store,
		engine.Options{Now: clock, RNG: rand.New(rand.NewSource(7))},
	)
	srv := New(eng, catalog, store, Options{Provider: provider, Now: clock})
	return srv.Router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t, nil)
	w := doJSON(t, router, http.MethodGet, "/healthcheck", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
}

func TestInterventionRequiresUserID(t *testing.T) {
	router := newTestRouter(t, nil)
	w := doJSON(t, router, http.MethodPost, "/api/intervention", `{"cognitive_load": 0.5}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
}

func TestInterventionDelivers(t *testing.T) {
	router := newTestRouter(t, nil)
	w := doJSON(t, router, http.MethodPost, "/api/intervention",
		`{"user_id": "u1", "cognitive_load": 0.6, "stress_level": 0.3, "focus_state": "shallow", "persona_type": "developer"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}

	var res engine.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Delivered {
		t.Fatalf("expected delivery, got defer %q (%s)", res.Reason, res.Detail)
	}
	if res.Intervention == nil || len(res.Intervention.ActionSteps) == 0 {
		t.Fatal("delivered result missing actionable intervention")
	}
	if res.RecordID == "" {
		t.Fatal("missing record id")
	}
}

func TestSecondInterventionDeferred(t *testing.T) {
	router := newTestRouter(t, nil)
	body := `{"user_id": "u1", "cognitive_load": 0.5, "focus_state": "shallow"}`

	first := doJSON(t, router, http.MethodPost, "/api/intervention", body)
	if first.Code != http.StatusOK {
		t.Fatalf("first: %d", first.Code)
	}
	second := doJSON(t, router, http.MethodPost, "/api/intervention", body)
	if second.Code != http.StatusOK {
		t.Fatalf("second: %d", second.Code)
	}

	var res engine.Result
	if err := json.Unmarshal(second.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Delivered || res.Reason != gate.ReasonCooldownActive {
		t.Errorf("got delivered=%v reason=%q", res.Delivered, res.Reason)
	}
}

func TestFeedbackRoundTrip(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/intervention",
		`{"user_id": "u1", "cognitive_load": 0.6, "focus_state": "shallow"}`)
	var res engine.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Delivered {
		t.Fatalf("expected delivery, got %q", res.Reason)
	}

	fb := doJSON(t, router, http.MethodPost, "/api/feedback",
		`{"record_id": "`+res.RecordID+`", "effectiveness": 0.9, "completed": true}`)
	if fb.Code != http.StatusOK {
		t.Fatalf("feedback status: %d body %s", fb.Code, fb.Body.String())
	}

	var out engine.FeedbackResult
	if err := json.Unmarshal(fb.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Strategy != res.Strategy || out.UpdatedWeight <= 0 {
		t.Errorf("feedback result: %+v", out)
	}
}

func TestFeedbackUnknownRecordIs404(t *testing.T) {
	router := newTestRouter(t, nil)
	w := doJSON(t, router, http.MethodPost, "/api/feedback",
		`{"record_id": "nope", "effectiveness": 0.5}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: got %d", w.Code)
	}
}

func TestFeedbackMissingRecordIDIs400(t *testing.T) {
	router := newTestRouter(t, nil)
	w := doJSON(t, router, http.MethodPost, "/api/feedback", `{"effectiveness": 0.5}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", w.Code)
	}
}

func TestStrategiesListsBuiltins(t *testing.T) {
	router := newTestRouter(t, nil)
	w := doJSON(t, router, http.MethodGet, "/api/strategies", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}

	var out struct {
		Strategies []strategyView `json:"strategies"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Strategies) != len(strategy.Builtins()) {
		t.Errorf("strategies: got %d want %d", len(out.Strategies), len(strategy.Builtins()))
	}
	for _, sv := range out.Strategies {
		if sv.Name == "" || sv.CooldownSeconds <= 0 {
			t.Errorf("incomplete view: %+v", sv)
		}
	}
}

func TestHistoryEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	doJSON(t, router, http.MethodPost, "/api/intervention",
		`{"user_id": "u1", "cognitive_load": 0.6, "focus_state": "shallow"}`)

	w := doJSON(t, router, http.MethodGet, "/api/history/u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var out struct {
		Records []history.InterventionRecord `json:"records"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Records) != 1 {
		t.Errorf("records: got %d want 1", len(out.Records))
	}

	bad := doJSON(t, router, http.MethodGet, "/api/history/u1?limit=zero", "")
	if bad.Code != http.StatusBadRequest {
		t.Errorf("bad limit status: %d", bad.Code)
	}
}

func TestRouterHonorsConfiguredOrigins(t *testing.T) {
	store := history.NewMemStore()
	catalog := strategy.NewBuiltinCatalog()
	clock := func() time.Time { return serveAt }
	eng := engine.New(
		gate.New(gate.DefaultConfig()),
		selector.New(catalog, selector.DefaultWeights(), nil),
		feedback.New(catalog, store, nil),
		store,
		engine.Options{Now: clock},
	)
	srv := New(eng, catalog, store, Options{
		AllowedOrigins: []string{"https://app.example.com"},
		Now:            clock,
	})
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("allowed origin status: %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allow-origin header: got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("disallowed origin status: got %d", w.Code)
	}
}

func TestTelemetryIngestion(t *testing.T) {
	// No writable backend wired: ingestion is unavailable.
	bare := newTestRouter(t, nil)
	w := doJSON(t, bare, http.MethodPost, "/api/telemetry",
		`{"user_id": "u1", "cognitive_load": 0.95}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("no-provider status: got %d", w.Code)
	}

	provider, err := telemetry.NewStaticProvider(map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	router := newTestRouter(t, provider)

	w = doJSON(t, router, http.MethodPost, "/api/telemetry", `{"cognitive_load": 0.95}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing user_id status: got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/telemetry",
		`{"user_id": "u1", "cognitive_load": 0.95, "focus_state": "shallow"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("publish status: got %d body %s", w.Code, w.Body.String())
	}

	// A thin decision request now sees the published signals: the 0.95
	// load trips the gate ceiling.
	w = doJSON(t, router, http.MethodPost, "/api/intervention", `{"user_id": "u1"}`)
	var res engine.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Delivered || res.Reason != gate.ReasonSuboptimalTiming {
		t.Errorf("published signals ignored: delivered=%v reason=%q", res.Delivered, res.Reason)
	}
}

func TestTelemetryBlobMergedUnderBody(t *testing.T) {
	provider, err := telemetry.NewStaticProvider(map[string]any{
		"u1": map[string]any{"user_id": "u1", "cognitive_load": 0.95, "focus_state": "shallow"},
	})
	if err != nil {
		t.Fatal(err)
	}
	router := newTestRouter(t, provider)

	// Thin request: blob's 0.95 load trips the gate ceiling.
	w := doJSON(t, router, http.MethodPost, "/api/intervention", `{"user_id": "u1"}`)
	var res engine.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Delivered || res.Reason != gate.ReasonSuboptimalTiming {
		t.Errorf("blob load ignored: delivered=%v reason=%q", res.Delivered, res.Reason)
	}

	// Body override wins over the blob.
	w = doJSON(t, router, http.MethodPost, "/api/intervention",
		`{"user_id": "u1", "cognitive_load": 0.5}`)
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Delivered {
		t.Errorf("body override lost: reason=%q (%s)", res.Reason, res.Detail)
	}
}

package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lumen-support/backend/internal/models"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestRouter(c *Controller) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(c, nil)
	router := gin.New()
	router.POST("/sessions", h.CreateSession)
	router.POST("/sessions/:code/join", h.JoinSession)
	router.POST("/sessions/:code/signals", h.SubmitSignal)
	router.GET("/sessions/:code/signals", h.PollSignals)
	router.POST("/sessions/:code/control", h.SetRemoteControl)
	router.POST("/sessions/:code/end", h.EndSession)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope from %q: %v", w.Body.String(), err)
		}
	}
	return w, env
}

func TestHandler_SessionLifecycle(t *testing.T) {
	c, _ := newTestController(10 * time.Minute)
	router := newTestRouter(c)

	w, env := doJSON(t, router, http.MethodPost, "/sessions", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var created struct {
		Code       string `json:"code"`
		HostSecret string `json:"host_secret"`
	}
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode create data: %v", err)
	}
	if created.Code == "" || created.HostSecret == "" {
		t.Fatalf("expected code and host secret, got %s", env.Data)
	}

	w, env = doJSON(t, router, http.MethodPost, "/sessions/"+created.Code+"/join", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var joined struct {
		ViewerSecret string `json:"viewer_secret"`
	}
	if err := json.Unmarshal(env.Data, &joined); err != nil {
		t.Fatalf("decode join data: %v", err)
	}
	if joined.ViewerSecret == "" || joined.ViewerSecret == created.HostSecret {
		t.Fatalf("expected a distinct viewer secret")
	}

	// The viewer seat is claimable once.
	w, _ = doJSON(t, router, http.MethodPost, "/sessions/"+created.Code+"/join", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("second join: expected 409, got %d", w.Code)
	}

	submit := func(role models.Role, secret string, typ models.SignalType) *httptest.ResponseRecorder {
		body := map[string]interface{}{
			"secret": secret,
			"signal": map[string]interface{}{
				"from": role,
				"type": typ,
				"data": map[string]string{"sdp": "x"},
			},
		}
		w, _ := doJSON(t, router, http.MethodPost, "/sessions/"+created.Code+"/signals", body)
		return w
	}

	if w := submit(models.RoleHost, created.HostSecret, models.SignalOffer); w.Code != http.StatusOK {
		t.Fatalf("host submit: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if w := submit(models.RoleViewer, joined.ViewerSecret, models.SignalAnswer); w.Code != http.StatusOK {
		t.Fatalf("viewer submit: expected 200, got %d", w.Code)
	}
	if w := submit(models.RoleHost, "wrong", models.SignalCandidate); w.Code != http.StatusForbidden {
		t.Fatalf("bad secret: expected 403, got %d", w.Code)
	}

	pollPath := fmt.Sprintf("/sessions/%s/signals?role=viewer&secret=%s&after=0", created.Code, joined.ViewerSecret)
	w, env = doJSON(t, router, http.MethodGet, pollPath, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("poll: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var poll PollResult
	if err := json.Unmarshal(env.Data, &poll); err != nil {
		t.Fatalf("decode poll: %v", err)
	}
	if len(poll.Signals) != 1 || poll.Signals[0].Type != models.SignalOffer {
		t.Fatalf("expected the offer, got %+v", poll.Signals)
	}
	if poll.Status != models.StatusConnected {
		t.Fatalf("expected connected, got %q", poll.Status)
	}

	enabled := true
	w, _ = doJSON(t, router, http.MethodPost, "/sessions/"+created.Code+"/control",
		map[string]interface{}{"secret": created.HostSecret, "enabled": enabled})
	if w.Code != http.StatusOK {
		t.Fatalf("control: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	w, _ = doJSON(t, router, http.MethodPost, "/sessions/"+created.Code+"/control",
		map[string]interface{}{"secret": joined.ViewerSecret, "enabled": enabled})
	if w.Code != http.StatusForbidden {
		t.Fatalf("viewer control: expected 403, got %d", w.Code)
	}

	w, _ = doJSON(t, router, http.MethodPost, "/sessions/"+created.Code+"/end",
		map[string]interface{}{"role": "viewer", "secret": joined.ViewerSecret})
	if w.Code != http.StatusOK {
		t.Fatalf("end: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	// Ending twice stays 200; submitting afterwards conflicts.
	w, _ = doJSON(t, router, http.MethodPost, "/sessions/"+created.Code+"/end",
		map[string]interface{}{"role": "host", "secret": created.HostSecret})
	if w.Code != http.StatusOK {
		t.Fatalf("second end: expected 200, got %d", w.Code)
	}
	if w := submit(models.RoleHost, created.HostSecret, models.SignalCandidate); w.Code != http.StatusConflict {
		t.Fatalf("submit after end: expected 409, got %d", w.Code)
	}
}

func TestHandler_ErrorStatuses(t *testing.T) {
	c, clk := newTestController(10 * time.Minute)
	router := newTestRouter(c)

	w, _ := doJSON(t, router, http.MethodPost, "/sessions/000000000/join", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown code: expected 404, got %d", w.Code)
	}

	w, env := doJSON(t, router, http.MethodPost, "/sessions", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", w.Code)
	}
	var created struct {
		Code       string `json:"code"`
		HostSecret string `json:"host_secret"`
	}
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Malformed bodies and cursors are rejected before any relay work.
	w, _ = doJSON(t, router, http.MethodPost, "/sessions/"+created.Code+"/signals", map[string]string{"secret": created.HostSecret})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing signal: expected 400, got %d", w.Code)
	}
	w, _ = doJSON(t, router, http.MethodGet,
		"/sessions/"+created.Code+"/signals?role=host&secret="+created.HostSecret+"&after=abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad cursor: expected 400, got %d", w.Code)
	}
	w, _ = doJSON(t, router, http.MethodGet, "/sessions/"+created.Code+"/signals?role=host", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing secret: expected 400, got %d", w.Code)
	}

	clk.Advance(11 * time.Minute)
	w, _ = doJSON(t, router, http.MethodGet,
		"/sessions/"+created.Code+"/signals?role=host&secret="+created.HostSecret, nil)
	if w.Code != http.StatusGone {
		t.Fatalf("expired poll: expected 410, got %d (%s)", w.Code, w.Body.String())
	}
}

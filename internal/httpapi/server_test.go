package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oakline/upkeep/internal/approval"
	"github.com/oakline/upkeep/internal/completion"
	"github.com/oakline/upkeep/internal/db"
	"github.com/oakline/upkeep/internal/models"
	"github.com/oakline/upkeep/internal/notify"
	"github.com/oakline/upkeep/internal/store"
	"github.com/oakline/upkeep/internal/triage"
)

// echoClient answers every intake turn with a follow-up question.
type echoClient struct{}

func (echoClient) Complete(ctx context.Context, req completion.Request) (string, error) {
	return "Could you tell me more about the problem?", nil
}

type testEnv struct {
	router    *gin.Engine
	store     *store.Store
	approvals *approval.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st, err := store.New(conn)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}

	registry := notify.NewRegistry()
	dispatcher, err := notify.NewDispatcher(notify.DispatcherOpts{
		Registry: registry,
		Parties:  st,
		Recorder: st,
	})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	mgr, err := triage.NewManager(triage.ManagerOpts{
		Client: echoClient{},
		Store:  st,
		OrgID:  "org-1",
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	approvals, err := approval.NewService(approval.ServiceOpts{
		Secret:  "test-secret",
		Store:   st,
		BaseURL: "https://upkeep.example",
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	router, err := newRouter(StartOpts{
		Triage:     mgr,
		Approvals:  approvals,
		Dispatcher: dispatcher,
		Registry:   registry,
	})
	if err != nil {
		t.Fatalf("newRouter: %v", err)
	}
	return &testEnv{router: router, store: st, approvals: approvals}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return body
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["notify"]; !ok {
		t.Error("health body missing notify counters")
	}
}

func TestTriageStart(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/triage",
		`{"requester_id":"party-1","message":"my boiler is broken"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["session_id"] == "" || body["session_id"] == nil {
		t.Error("expected a session ID")
	}
	if body["completed"] != false {
		t.Errorf("completed = %v", body["completed"])
	}
}

func TestTriageStart_MissingMessage(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/triage", `{"requester_id":"party-1"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestTriageMessage_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/triage", `{"message":"leaking sink"}`)
	body := decodeBody(t, w)
	sessionID := body["session_id"].(string)

	w = env.do(t, http.MethodPost, "/api/triage/"+sessionID+"/message",
		`{"message":"in the kitchen"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestTriageMessage_UnknownSession(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/triage/triage-nope/message", `{"message":"hi"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func issueTestToken(t *testing.T, env *testEnv) string {
	t.Helper()
	appt := &models.Appointment{OrgID: "org-1", CaseID: "case-1", Status: models.AppointmentPending}
	if err := env.store.CreateAppointment(appt); err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	issued, err := env.approvals.Issue(context.Background(), appt.ID, 24)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return issued.Token
}

func TestApproval_StatusThenApprove(t *testing.T) {
	env := newTestEnv(t)
	token := issueTestToken(t, env)

	w := env.do(t, http.MethodGet, "/api/approvals/"+token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status query = %d, body %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["status"] != "pending" {
		t.Errorf("status = %v, want pending", body["status"])
	}

	// The email link is a plain GET with a decision parameter.
	w = env.do(t, http.MethodGet, "/api/approvals/"+token+"?decision=approve", "")
	if w.Code != http.StatusOK {
		t.Fatalf("approve = %d, body %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["status"] != "approved" {
		t.Errorf("status = %v, want approved", body["status"])
	}
}

func TestApproval_SecondResponseConflicts(t *testing.T) {
	env := newTestEnv(t)
	token := issueTestToken(t, env)

	env.do(t, http.MethodGet, "/api/approvals/"+token+"?decision=approve", "")
	w := env.do(t, http.MethodGet, "/api/approvals/"+token+"?decision=decline", "")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestApproval_DeclineWithCounter(t *testing.T) {
	env := newTestEnv(t)
	token := issueTestToken(t, env)

	w := env.do(t, http.MethodPost, "/api/approvals/"+token,
		`{"decision":"decline","counter_start":"2026-04-02T09:00:00Z","counter_end":"2026-04-02T12:00:00Z","reason":"away until thursday"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["status"] != "declined" {
		t.Errorf("status = %v, want declined", body["status"])
	}
}

func TestApproval_InvalidToken(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/approvals/garbage-token", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestApproval_BadDecision(t *testing.T) {
	env := newTestEnv(t)
	token := issueTestToken(t, env)
	w := env.do(t, http.MethodGet, "/api/approvals/"+token+"?decision=maybe", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestEvents_RequiresAddressing(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/events", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestNewRouter_RequiresCollaborators(t *testing.T) {
	if _, err := newRouter(StartOpts{}); err == nil {
		t.Fatal("expected error for missing collaborators")
	}
}

func TestSSEConn_BufferFull(t *testing.T) {
	conn := newSSEConn()
	for i := 0; i < 16; i++ {
		if err := conn.Send([]byte("x")); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := conn.Send([]byte("overflow")); err == nil {
		t.Fatal("expected error once the buffer is full")
	}
}

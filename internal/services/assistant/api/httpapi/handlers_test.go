package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
	"github.com/vmitra/vmitra/internal/platform/httpx"
	"github.com/vmitra/vmitra/internal/services/assistant/model"
	"github.com/vmitra/vmitra/internal/services/assistant/session"
	"github.com/vmitra/vmitra/internal/services/assistant/summary"
	businessapp "github.com/vmitra/vmitra/internal/services/business/app"
	"github.com/vmitra/vmitra/internal/services/business/catalog"
	"github.com/vmitra/vmitra/internal/services/business/storage/sqlite"
	"golang.org/x/net/websocket"
)

// scriptedModel replays responses in order; the last one repeats.
type scriptedModel struct {
	mu        sync.Mutex
	responses []model.Response
}

func (m *scriptedModel) Generate(context.Context, model.Request) (model.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) == 0 {
		return model.Response{}, nil
	}
	next := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return next, nil
}

func saleThenReply() *scriptedModel {
	return &scriptedModel{responses: []model.Response{
		{Calls: []model.FunctionCall{{
			ID:   "call-1",
			Name: session.ToolRecordSale,
			Args: map[string]any{"items": []any{map[string]any{"name": "cheeni", "quantity": 2}}},
		}}},
		{Text: "Ho gaya, 84 rupaye."},
	}}
}

// saleThenQuota bills 2 cheeni and then fails every later call with a 429.
func saleThenQuota() model.Model {
	var mu sync.Mutex
	calls := 0
	return model.ModelFunc(func(context.Context, model.Request) (model.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return saleThenReply().responses[0], nil
		}
		return model.Response{}, errors.New("googleapi: Error 429: quota")
	})
}

type fixture struct {
	business *businessapp.Service
	handler  http.Handler
}

func newFixture(t *testing.T, m model.Model) fixture {
	t.Helper()
	store, err := sqlite.Open(t.TempDir() + "/business.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	business, err := businessapp.NewService(store, businessapp.Config{
		Clock: func() time.Time { return time.Date(2026, time.January, 15, 4, 30, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new business: %v", err)
	}
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	if _, err := business.Seed(t.Context(), cat, false); err != nil {
		t.Fatalf("seed: %v", err)
	}

	registry, err := session.NewRegistry(business, session.Config{Model: m})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	summarizer, err := summary.New(business, summary.Config{})
	if err != nil {
		t.Fatalf("new summarizer: %v", err)
	}
	mux := http.NewServeMux()
	NewHandler(registry, summarizer, nil).Register(mux, nil)
	return fixture{business: business, handler: mux}
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rr.Body.String(), err)
	}
	return out
}

func TestSummaryWithoutModelUsesStats(t *testing.T) {
	f := newFixture(t, nil)

	rr := do(t, f.handler, http.MethodGet, "/api/v1/assistant/summary", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	result := decode[summary.Result](t, rr)
	if !result.Fallback || !strings.HasPrefix(result.Text, "Sale: ") {
		t.Fatalf("unexpected summary %+v", result)
	}
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t, saleThenReply())

	started := do(t, f.handler, http.MethodPost, "/api/v1/assistant/sessions", `{"language":"Hindi","location":"Indore"}`)
	if started.Code != http.StatusCreated {
		t.Fatalf("start status = %d, body %s", started.Code, started.Body.String())
	}
	info := decode[session.Info](t, started)
	if info.ID == "" || info.Location != "Indore" {
		t.Fatalf("unexpected session %+v", info)
	}

	turn := do(t, f.handler, http.MethodPost, "/api/v1/assistant/sessions/"+info.ID+"/turns", `{"text":"do kilo cheeni"}`)
	if turn.Code != http.StatusOK {
		t.Fatalf("turn status = %d, body %s", turn.Code, turn.Body.String())
	}
	result := decode[session.TurnResult](t, turn)
	if result.Message != "Bill Save ho gaya: ₹84" || len(result.Tools) != 1 || !result.Tools[0].Success {
		t.Fatalf("unexpected turn %+v", result)
	}

	end := do(t, f.handler, http.MethodPost, "/api/v1/assistant/sessions/"+info.ID+"/end", "")
	if end.Code != http.StatusOK {
		t.Fatalf("end status = %d, body %s", end.Code, end.Body.String())
	}
	if got := decode[session.EndResult](t, end); !got.Saved || got.Chat == nil {
		t.Fatalf("expected saved chat, got %+v", got)
	}

	again := do(t, f.handler, http.MethodPost, "/api/v1/assistant/sessions/"+info.ID+"/end", "")
	if again.Code != http.StatusNotFound {
		t.Fatalf("second end status = %d, want 404", again.Code)
	}
}

func TestSessionErrors(t *testing.T) {
	f := newFixture(t, &scriptedModel{})

	bad := do(t, f.handler, http.MethodPost, "/api/v1/assistant/sessions", `{"language":"Klingon"}`)
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", bad.Code)
	}
	if body := decode[httpx.ErrorBody](t, bad); body.Error.Code != apperrors.CodeAssistantLanguage {
		t.Fatalf("unexpected error %+v", body)
	}

	empty := do(t, f.handler, http.MethodPost, "/api/v1/assistant/sessions", "")
	if empty.Code != http.StatusCreated {
		t.Fatalf("start without body status = %d", empty.Code)
	}
	info := decode[session.Info](t, empty)
	blank := do(t, f.handler, http.MethodPost, "/api/v1/assistant/sessions/"+info.ID+"/turns", `{"text":"  "}`)
	if blank.Code != http.StatusBadRequest {
		t.Fatalf("blank turn status = %d, want 400", blank.Code)
	}

	noModel := newFixture(t, nil)
	unavailable := do(t, noModel.handler, http.MethodPost, "/api/v1/assistant/sessions", "")
	if unavailable.Code != http.StatusServiceUnavailable {
		t.Fatalf("no model status = %d, want 503", unavailable.Code)
	}
}

type liveFrame struct {
	Type      string `json:"type"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	Name      string `json:"name"`
	Message   string `json:"message"`
	Success   *bool  `json:"success"`
	Code      string `json:"code"`
	SessionID string `json:"sessionId"`
	ChatID    string `json:"chatId"`
}

func dialLive(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/assistant/live" + query
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	if err := json.NewEncoder(conn).Encode(frame); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) liveFrame {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	var got liveFrame
	if err := json.NewDecoder(conn).Decode(&got); err != nil {
		t.Fatalf("decode server frame: %v", err)
	}
	return got
}

func TestLiveSocketTurnAndEnd(t *testing.T) {
	f := newFixture(t, saleThenReply())
	srv := httptest.NewServer(f.handler)
	t.Cleanup(srv.Close)

	conn := dialLive(t, srv, "?language=Hinglish&location=Pune")
	writeFrame(t, conn, map[string]any{"type": "text", "text": "do kilo cheeni"})

	if got := readFrame(t, conn); got.Type != FrameTranscript || got.Role != "user" || got.Text != "do kilo cheeni" {
		t.Fatalf("unexpected user transcript %+v", got)
	}
	tool := readFrame(t, conn)
	if tool.Type != FrameTool || tool.Name != session.ToolRecordSale || tool.Success == nil || !*tool.Success {
		t.Fatalf("unexpected tool frame %+v", tool)
	}
	if got := readFrame(t, conn); got.Type != FrameTranscript || got.Role != "ai" || got.Text != "Ho gaya, 84 rupaye." {
		t.Fatalf("unexpected ai transcript %+v", got)
	}

	writeFrame(t, conn, map[string]any{"type": "bogus"})
	if got := readFrame(t, conn); got.Type != FrameError || got.Code != string(apperrors.CodeInvalidRequest) {
		t.Fatalf("unexpected error frame %+v", got)
	}

	writeFrame(t, conn, map[string]any{"type": "end"})
	saved := readFrame(t, conn)
	if saved.Type != FrameSaved || saved.SessionID == "" || saved.ChatID == "" {
		t.Fatalf("unexpected saved frame %+v", saved)
	}

	chats, err := f.business.ListHistory(t.Context())
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(chats) != 1 || len(chats[0].Messages) != 2 {
		t.Fatalf("expected one chat with two messages, got %+v", chats)
	}
}

func TestTurnFailureStillReportsSale(t *testing.T) {
	f := newFixture(t, saleThenQuota())

	info := decode[session.Info](t, do(t, f.handler, http.MethodPost, "/api/v1/assistant/sessions", ""))
	rr := do(t, f.handler, http.MethodPost, "/api/v1/assistant/sessions/"+info.ID+"/turns", `{"text":"do kilo cheeni"}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	body := decode[turnErrorBody](t, rr)
	if body.Error.Code != apperrors.CodeAssistantQuotaExceeded {
		t.Fatalf("unexpected error %+v", body.Error)
	}
	if len(body.Tools) != 1 || !body.Tools[0].Success || body.Message != "Bill Save ho gaya: ₹84" {
		t.Fatalf("expected the saved bill in the error body, got %+v", body)
	}
}

func TestLiveSocketSendsToolBeforeError(t *testing.T) {
	f := newFixture(t, saleThenQuota())
	srv := httptest.NewServer(f.handler)
	t.Cleanup(srv.Close)

	conn := dialLive(t, srv, "")
	writeFrame(t, conn, map[string]any{"type": "text", "text": "do kilo cheeni"})

	if got := readFrame(t, conn); got.Type != FrameTranscript || got.Role != "user" {
		t.Fatalf("unexpected user transcript %+v", got)
	}
	tool := readFrame(t, conn)
	if tool.Type != FrameTool || tool.Name != session.ToolRecordSale || tool.Success == nil || !*tool.Success {
		t.Fatalf("expected tool frame before the error, got %+v", tool)
	}
	if got := readFrame(t, conn); got.Type != FrameError || got.Code != string(apperrors.CodeAssistantQuotaExceeded) {
		t.Fatalf("unexpected error frame %+v", got)
	}

	writeFrame(t, conn, map[string]any{"type": "end"})
	if saved := readFrame(t, conn); saved.Type != FrameSaved || saved.ChatID == "" {
		t.Fatalf("unexpected saved frame %+v", saved)
	}
	chats, err := f.business.ListHistory(t.Context())
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(chats) != 1 || len(chats[0].Messages) != 2 || chats[0].Messages[1].Text != "Bill Save ho gaya: ₹84" {
		t.Fatalf("expected the bill in the saved chat, got %+v", chats)
	}
}

func TestLiveSocketCloseSavesTranscript(t *testing.T) {
	f := newFixture(t, &scriptedModel{responses: []model.Response{{Text: "Namaste"}}})
	srv := httptest.NewServer(f.handler)
	t.Cleanup(srv.Close)

	conn := dialLive(t, srv, "")
	writeFrame(t, conn, map[string]any{"type": "text", "text": "namaste"})
	readFrame(t, conn)
	readFrame(t, conn)
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		chats, err := f.business.ListHistory(t.Context())
		if err != nil {
			t.Fatalf("list history: %v", err)
		}
		if len(chats) == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected transcript saved after close, got %d chats", len(chats))
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestLiveSocketRejectsBadLanguage(t *testing.T) {
	f := newFixture(t, &scriptedModel{})
	srv := httptest.NewServer(f.handler)
	t.Cleanup(srv.Close)

	conn := dialLive(t, srv, "?language=Klingon")
	if got := readFrame(t, conn); got.Type != FrameError || got.Code != string(apperrors.CodeAssistantLanguage) {
		t.Fatalf("unexpected frame %+v", got)
	}
}

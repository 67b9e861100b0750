package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ronbot/internal/a2a"
	"ronbot/internal/eventbus"
	"ronbot/internal/remind"
	logx "ronbot/pkg/logx"
)

type nopSender struct{}

func (nopSender) Send(ctx context.Context, r remind.Reminder) error { return nil }

type handlerFixture struct {
	h     *Handler
	store *remind.Store
	bus   *eventbus.Bus
}

func newFixture(t *testing.T) *handlerFixture {
	t.Helper()
	store := remind.NewStore()
	bus := eventbus.New()
	sched := remind.New(remind.Config{Enabled: true}, store, nopSender{}, bus, logx.Nop())
	h := NewHandler(HandlerConfig{AgentPath: DefaultAgentPath}, store, sched, nil, nil, bus, logx.Nop())
	return &handlerFixture{h: h, store: store, bus: bus}
}

func rpcBody(id, method, contextID, text string, callbackURL string) string {
	req := a2a.Request{
		JSONRPC: a2a.Version,
		ID:      json.RawMessage(`"` + id + `"`),
		Method:  method,
		Params: a2a.SendParams{
			ContextID: contextID,
			Message: a2a.Message{
				Role:      a2a.RoleUser,
				Parts:     []a2a.Part{{Kind: a2a.KindText, Text: text}},
				MessageID: "m-1",
			},
		},
	}
	if callbackURL != "" {
		req.Params.Configuration = &a2a.SendConfiguration{
			Blocking:               true,
			PushNotificationConfig: &a2a.PushNotificationConfig{URL: callbackURL, Token: "cb-token"},
		}
	}
	b, _ := json.Marshal(req)
	return string(b)
}

func postRPC(t *testing.T, h *Handler, body string) a2a.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, DefaultAgentPath, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.HandleRPC(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rr.Code, rr.Body.String())
	}
	var resp a2a.Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}

func replyText(t *testing.T, resp a2a.Response) string {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	if resp.Result == nil {
		t.Fatal("response has no result")
	}
	return resp.Result.Message.FirstText()
}

func TestRPCCreatesReminder(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	ch, unsub := fx.bus.Subscribe(8)
	defer unsub()

	resp := postRPC(t, fx.h, rpcBody("req-1", a2a.MethodMessageSend, "ctx-42", `/remindme "Call mom" in 5 minutes`, "https://telex.example/push"))

	if resp.Result.Status != a2a.StatusCompleted {
		t.Fatalf("status = %q, want completed", resp.Result.Status)
	}
	if resp.Result.ContextID != "ctx-42" {
		t.Fatalf("contextId = %q", resp.Result.ContextID)
	}
	reply := replyText(t, resp)
	if !strings.HasPrefix(reply, `✅ Got it! I'll remind you to "Call mom" at `) || !strings.HasSuffix(reply, ".") {
		t.Fatalf("unexpected ack: %q", reply)
	}

	pending := fx.store.Pending()
	if len(pending) != 1 {
		t.Fatalf("store holds %d reminders, want 1", len(pending))
	}
	r := pending[0]
	if r.Message != "Call mom" || r.CallbackURL != "https://telex.example/push" || r.CallbackToken != "cb-token" {
		t.Fatalf("stored reminder = %+v", r)
	}
	wantDue := time.Now().Add(5 * time.Minute)
	if d := r.DueAt.Sub(wantDue); d < -2*time.Second || d > 2*time.Second {
		t.Fatalf("DueAt = %v, want about %v", r.DueAt, wantDue)
	}

	var created bool
drain:
	for {
		select {
		case ev := <-ch:
			if ev.Type == remind.EventCreated {
				created = true
			}
		default:
			break drain
		}
	}
	if !created {
		t.Fatal("no reminder.created event published")
	}
}

func TestRPCHelpOnUnparsableText(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	resp := postRPC(t, fx.h, rpcBody("req-2", a2a.MethodExecute, "ctx-42", "hello there", "https://telex.example/push"))
	if got := replyText(t, resp); got != remind.HelpText {
		t.Fatalf("reply = %q, want help text", got)
	}
	if fx.store.Size() != 0 {
		t.Fatalf("store holds %d reminders, want 0", fx.store.Size())
	}
}

func TestRPCRejectsMissingCallback(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	resp := postRPC(t, fx.h, rpcBody("req-3", a2a.MethodMessageSend, "ctx-42", `/remindme "Call mom" in 5 minutes`, ""))
	if got := replyText(t, resp); got != MissingCallbackText {
		t.Fatalf("reply = %q, want missing-callback text", got)
	}
	if fx.store.Size() != 0 {
		t.Fatalf("store holds %d reminders, want 0", fx.store.Size())
	}
}

func TestRPCEnvelopeErrors(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{name: "invalid json", body: `{"jsonrpc":"2.0",`, code: a2a.CodeParseError},
		{name: "wrong version", body: `{"jsonrpc":"1.0","id":"x","method":"message/send","params":{"message":{"role":"user","parts":[]},"contextId":"c"}}`, code: a2a.CodeInvalidRequest},
		{name: "unknown method", body: rpcBody("req-4", "task/cancel", "ctx", "x", ""), code: a2a.CodeMethodNotFound},
		{name: "missing contextId", body: rpcBody("req-5", a2a.MethodMessageSend, "  ", "x", ""), code: a2a.CodeInvalidParams},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			resp := postRPC(t, fx.h, tt.body)
			if resp.Error == nil {
				t.Fatal("expected rpc error")
			}
			if resp.Error.Code != tt.code {
				t.Fatalf("code = %d, want %d", resp.Error.Code, tt.code)
			}
			if resp.Result != nil {
				t.Fatal("error response carries a result")
			}
		})
	}
}

func TestRPCEchoesRequestID(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	resp := postRPC(t, fx.h, rpcBody("req-echo", a2a.MethodMessageSend, "ctx", "hello", ""))
	if string(resp.ID) != `"req-echo"` {
		t.Fatalf("id = %s, want \"req-echo\"", resp.ID)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	rr := httptest.NewRecorder()
	fx.h.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	var got struct {
		Status string `json:"status"`
		Agent  string `json:"agent"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if got.Status != "healthy" || got.Agent != defaultAgentName {
		t.Fatalf("health = %+v", got)
	}
}

func TestAgentCard(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/agent.json", nil)
	req.Host = "ron.example:8000"
	rr := httptest.NewRecorder()
	fx.h.HandleAgentCard(rr, req)

	var card a2a.AgentCard
	if err := json.Unmarshal(rr.Body.Bytes(), &card); err != nil {
		t.Fatalf("unmarshal card: %v", err)
	}
	if card.Name != defaultAgentName {
		t.Fatalf("card name = %q", card.Name)
	}
	if card.URL != "http://ron.example:8000"+DefaultAgentPath {
		t.Fatalf("card url = %q", card.URL)
	}
	if !card.Capabilities.PushNotifications {
		t.Fatal("card does not advertise push notifications")
	}
	if len(card.Skills) == 0 || len(card.Skills[0].Examples) == 0 {
		t.Fatalf("card skills = %+v", card.Skills)
	}
}

func TestStatusPayload(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	fx.store.Insert(remind.Reminder{
		Message:       "x",
		DueAt:         time.Now().Add(time.Hour),
		CallbackURL:   "https://telex.example/push",
		CallbackToken: "sekrit",
	})

	rr := httptest.NewRecorder()
	fx.h.HandleStatus(rr, httptest.NewRequest(http.MethodGet, "/status", nil))

	var got struct {
		Agent     string          `json:"agent"`
		Scheduler remind.Snapshot `json:"scheduler"`
		Pending   []struct {
			Message string `json:"message"`
		} `json:"pending"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if got.Agent != defaultAgentName {
		t.Fatalf("agent = %q", got.Agent)
	}
	if got.Scheduler.Pending != 1 {
		t.Fatalf("pending = %d, want 1", got.Scheduler.Pending)
	}
	if len(got.Pending) != 1 || got.Pending[0].Message != "x" {
		t.Fatalf("pending list = %+v", got.Pending)
	}
	// The queue view must never expose delivery credentials.
	if body := rr.Body.String(); strings.Contains(body, "sekrit") || strings.Contains(body, "telex.example") {
		t.Fatalf("status leaks callback details: %s", body)
	}
}

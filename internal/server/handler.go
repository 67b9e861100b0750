package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"ronbot/internal/a2a"
	"ronbot/internal/eventbus"
	"ronbot/internal/history"
	"ronbot/internal/remind"
	rtsup "ronbot/internal/runtime/supervisor"
	logx "ronbot/pkg/logx"
)

const agentVersion = "1.0.0"

const defaultAgentName = "Ron the Reminder"

// MissingCallbackText is the reply when a request carries no push URL:
// without one there is nowhere to deliver the reminder later.
const MissingCallbackText = "Sorry, I can't set a reminder. The chat configuration is missing my callback URL."

// ackTimeLayout renders the due time in the confirmation reply,
// e.g. "4:30 PM on Oct 31".
const ackTimeLayout = "3:04 PM on Jan 02"

// maxRPCBody bounds inbound request bodies.
const maxRPCBody = 1 << 20

// HandlerConfig is the hot-reloadable part of the request handler.
type HandlerConfig struct {
	AgentName string
	AgentPath string
	// PublicURL overrides the advertised endpoint in the agent card.
	PublicURL string
}

// Handler implements the agent endpoints on top of the reminder pipeline.
// It validates the JSON-RPC envelope itself; everything inside params is
// answered in-band with a completed task result, the way a chat peer
// expects replies.
type Handler struct {
	mu  sync.Mutex
	cfg HandlerConfig

	log   logx.Logger
	store *remind.Store
	sched *remind.Service
	hist  history.Store
	sup   *rtsup.Supervisor
	bus   *eventbus.Bus

	startedAt time.Time
}

func NewHandler(cfg HandlerConfig, store *remind.Store, sched *remind.Service, hist history.Store, sup *rtsup.Supervisor, bus *eventbus.Bus, log logx.Logger) *Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.AgentName) == "" {
		cfg.AgentName = defaultAgentName
	}
	return &Handler{
		cfg:       cfg,
		log:       log,
		store:     store,
		sched:     sched,
		hist:      hist,
		sup:       sup,
		bus:       bus,
		startedAt: time.Now(),
	}
}

func (h *Handler) Apply(cfg HandlerConfig) {
	if strings.TrimSpace(cfg.AgentName) == "" {
		cfg.AgentName = defaultAgentName
	}
	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()
}

// SetSupervisor installs the runtime supervisor surfaced by /status.
// The app wires it after Start creates one; until then the section is empty.
func (h *Handler) SetSupervisor(sup *rtsup.Supervisor) {
	h.mu.Lock()
	h.sup = sup
	h.mu.Unlock()
}

func (h *Handler) supervisor() *rtsup.Supervisor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sup
}

func (h *Handler) config() HandlerConfig {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg
}

// HandleRPC serves the JSON-RPC endpoint.
func (h *Handler) HandleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRPCBody))
	if err != nil {
		h.writeJSON(w, http.StatusOK, a2a.NewErrorResponse(json.RawMessage("null"), a2a.CodeParseError, "request body unreadable"))
		return
	}

	var req a2a.Request
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeJSON(w, http.StatusOK, a2a.NewErrorResponse(json.RawMessage("null"), a2a.CodeParseError, "invalid JSON"))
		return
	}
	if req.JSONRPC != a2a.Version {
		h.writeJSON(w, http.StatusOK, a2a.NewErrorResponse(req.ID, a2a.CodeInvalidRequest, `jsonrpc must be "2.0"`))
		return
	}
	switch req.Method {
	case a2a.MethodMessageSend, a2a.MethodExecute:
	default:
		h.writeJSON(w, http.StatusOK, a2a.NewErrorResponse(req.ID, a2a.CodeMethodNotFound, "method not found"))
		return
	}
	if strings.TrimSpace(req.Params.ContextID) == "" {
		h.writeJSON(w, http.StatusOK, a2a.NewErrorResponse(req.ID, a2a.CodeInvalidParams, "params.contextId is required"))
		return
	}

	reply := h.process(req.Params)
	h.writeJSON(w, http.StatusOK, a2a.NewResponse(req.ID, a2a.TaskResult{
		ContextID: req.Params.ContextID,
		Status:    a2a.StatusCompleted,
		Message:   a2a.NewAgentMessage(reply),
	}))
}

// process turns one inbound message into the reply text, creating the
// reminder when the request is understood and deliverable.
func (h *Handler) process(params a2a.SendParams) string {
	loc := h.sched.Location()
	now := time.Now().In(loc)

	parsed, err := remind.Parse(params.Message.FirstText(), now)
	if err != nil {
		h.log.Debug("reminder request not understood",
			logx.String("context_id", params.ContextID),
			logx.Err(err),
		)
		return remind.HelpText
	}

	callbackURL := params.CallbackURL()
	if callbackURL == "" {
		h.log.Warn("reminder rejected: request carries no callback url",
			logx.String("context_id", params.ContextID),
		)
		return MissingCallbackText
	}

	id := h.store.Insert(remind.Reminder{
		ContextID:     params.ContextID,
		Message:       parsed.Task,
		DueAt:         parsed.DueAt,
		CallbackURL:   callbackURL,
		CallbackToken: params.CallbackToken(),
	})
	h.bus.Publish(eventbus.Event{Type: remind.EventCreated, Data: remind.ReminderEvent{
		ID:        id,
		ContextID: params.ContextID,
		DueAt:     parsed.DueAt,
		At:        time.Now().UTC(),
	}})
	h.log.Info("reminder created",
		logx.String("id", id),
		logx.String("context_id", params.ContextID),
		logx.Time("due_at", parsed.DueAt),
		logx.Int("pending", h.store.Size()),
	)

	return ackText(parsed.Task, parsed.DueAt.In(loc))
}

func ackText(task string, due time.Time) string {
	return fmt.Sprintf("✅ Got it! I'll remind you to \"%s\" at %s.", task, due.Format(ackTimeLayout))
}

// HandleHealth serves the liveness probe.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		Agent  string `json:"agent"`
	}{Status: "healthy", Agent: h.config().AgentName})
}

// HandleAgentCard serves the discovery document.
func (h *Handler) HandleAgentCard(w http.ResponseWriter, r *http.Request) {
	cfg := h.config()

	endpoint := strings.TrimSpace(cfg.PublicURL)
	if endpoint == "" {
		endpoint = "http://" + r.Host + normalizeAgentPath(cfg.AgentPath)
	}

	h.writeJSON(w, http.StatusOK, a2a.AgentCard{
		Name:        cfg.AgentName,
		Description: "Sets one-shot reminders from chat and pushes them back when due.",
		URL:         endpoint,
		Version:     agentVersion,
		Capabilities: a2a.Capabilities{
			PushNotifications: true,
		},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Skills: []a2a.Skill{{
			ID:          "set-reminder",
			Name:        "Set a reminder",
			Description: "Schedules a reminder from a /remindme command and delivers it to the chat's push URL when due.",
			Tags:        []string{"reminder", "scheduling"},
			Examples: []string{
				`/remindme "Water the plants" in 10 minutes`,
				`/remindme "Stand-up" at 16:30`,
			},
		}},
	})
}

// HandleStatus serves operational state for humans and dashboards.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	// pendingView omits the callback URL and token; /status readers get to
	// see what is queued, not where or with which credentials it ships.
	type pendingView struct {
		ID        string    `json:"id"`
		ContextID string    `json:"context_id"`
		Message   string    `json:"message"`
		DueAt     time.Time `json:"due_at"`
	}
	type statusPayload struct {
		Agent      string                   `json:"agent"`
		Version    string                   `json:"version"`
		Now        time.Time                `json:"now"`
		Uptime     string                   `json:"uptime"`
		Scheduler  remind.Snapshot          `json:"scheduler"`
		Pending    []pendingView            `json:"pending,omitempty"`
		Supervisor rtsup.SupervisorSnapshot `json:"supervisor"`
		Recent     []history.Entry          `json:"recent_deliveries,omitempty"`
	}

	payload := statusPayload{
		Agent:      h.config().AgentName,
		Version:    agentVersion,
		Now:        time.Now().UTC(),
		Uptime:     time.Since(h.startedAt).Round(time.Second).String(),
		Scheduler:  h.sched.Snapshot(),
		Supervisor: h.supervisor().Snapshot(),
	}
	for _, rem := range h.store.Pending() {
		payload.Pending = append(payload.Pending, pendingView{
			ID:        rem.ID,
			ContextID: rem.ContextID,
			Message:   rem.Message,
			DueAt:     rem.DueAt,
		})
	}
	if h.hist != nil {
		recent, err := h.hist.Recent(r.Context(), 20)
		if err != nil {
			h.log.Debug("history read failed", logx.Err(err))
		} else {
			payload.Recent = recent
		}
	}

	h.writeJSON(w, http.StatusOK, payload)
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug("response write failed", logx.Err(err))
	}
}

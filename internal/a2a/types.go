// Package a2a holds the agent-to-agent JSON-RPC wire types: inbound
// message/send requests, immediate task results, and the outbound
// message/push request used for deferred notifications. Field names and
// casing follow the protocol, so everything here round-trips through
// encoding/json untouched.
package a2a

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Version is the fixed jsonrpc envelope version.
const Version = "2.0"

// Methods this agent understands or emits.
const (
	MethodMessageSend = "message/send"
	MethodExecute     = "execute"
	MethodMessagePush = "message/push"
)

// Message part kinds.
const (
	KindText = "text"
	KindData = "data"
	KindFile = "file"
)

// Message roles.
const (
	RoleUser   = "user"
	RoleAgent  = "agent"
	RoleSystem = "system"
)

// Task states reported in a TaskResult.
const (
	StatusCompleted = "completed"
	StatusWorking   = "working"
	StatusFailed    = "failed"
)

// Part is one fragment of a message. Only text parts carry payload this
// agent reads; data/file parts are passed through untouched.
type Part struct {
	Kind string `json:"kind"`
	Text string `json:"text,omitempty"`
}

// Message is the A2A chat message envelope.
type Message struct {
	Role      string `json:"role"`
	Parts     []Part `json:"parts"`
	MessageID string `json:"messageId"`
}

// NewAgentMessage builds a single-text-part agent message with a fresh id.
func NewAgentMessage(text string) Message {
	return Message{
		Role:      RoleAgent,
		Parts:     []Part{{Kind: KindText, Text: text}},
		MessageID: uuid.NewString(),
	}
}

// FirstText returns the trimmed text of the first text part, or "".
func (m Message) FirstText() string {
	for _, p := range m.Parts {
		if p.Kind == KindText {
			return strings.TrimSpace(p.Text)
		}
	}
	return ""
}

// PushNotificationConfig tells the agent where (and with what bearer
// token) to deliver deferred messages for this conversation.
type PushNotificationConfig struct {
	URL   string `json:"url"`
	Token string `json:"token,omitempty"`
}

// SendConfiguration is the optional configuration block on message/send.
type SendConfiguration struct {
	Blocking               bool                    `json:"blocking,omitempty"`
	PushNotificationConfig *PushNotificationConfig `json:"pushNotificationConfig,omitempty"`
}

// SendParams carries the message payload for both inbound sends and
// outbound pushes (a push has no configuration block).
type SendParams struct {
	Message       Message            `json:"message"`
	ContextID     string             `json:"contextId"`
	Configuration *SendConfiguration `json:"configuration,omitempty"`
}

// CallbackURL returns the push URL if one was supplied, else "".
func (p SendParams) CallbackURL() string {
	if p.Configuration == nil || p.Configuration.PushNotificationConfig == nil {
		return ""
	}
	return strings.TrimSpace(p.Configuration.PushNotificationConfig.URL)
}

// CallbackToken returns the push bearer token if one was supplied, else "".
func (p SendParams) CallbackToken() string {
	if p.Configuration == nil || p.Configuration.PushNotificationConfig == nil {
		return ""
	}
	return p.Configuration.PushNotificationConfig.Token
}

// Request is a JSON-RPC request envelope.
//
// ID is kept raw and echoed back verbatim: peers send strings, some send
// numbers, and the envelope must not care.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  SendParams      `json:"params"`
}

// NewPushRequest builds the outbound message/push request for one
// deferred notification.
func NewPushRequest(contextID, text string) Request {
	return Request{
		JSONRPC: Version,
		ID:      json.RawMessage(strconv.Quote(uuid.NewString())),
		Method:  MethodMessagePush,
		Params: SendParams{
			ContextID: contextID,
			Message:   NewAgentMessage(text),
		},
	}
}

// TaskResult is the immediate reply on message/send.
type TaskResult struct {
	ContextID string  `json:"contextId"`
	Status    string  `json:"status"`
	Message   Message `json:"message"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Response is a JSON-RPC response envelope. Exactly one of Result and
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  *TaskResult     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResponse wraps a completed task result for the given request id.
func NewResponse(id json.RawMessage, result TaskResult) Response {
	return Response{JSONRPC: Version, ID: id, Result: &result}
}

// NewErrorResponse builds an error reply for the given request id.
func NewErrorResponse(id json.RawMessage, code int, message string) Response {
	return Response{JSONRPC: Version, ID: id, Error: &Error{Code: code, Message: message}}
}

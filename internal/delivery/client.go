// Package delivery pushes due reminders to their callback URLs as A2A
// message/push requests. One attempt per reminder: the caller already
// removed the reminder from the store, so a failure here is final.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"ronbot/internal/a2a"
	"ronbot/internal/remind"
	logx "ronbot/pkg/logx"
)

// pushPrefix marks deferred notifications apart from direct replies.
const pushPrefix = "🔔 REMINDER: "

const defaultTimeout = 10 * time.Second

// maxErrBody bounds how much of a rejecting response we keep for logs.
const maxErrBody = 512

// Config controls the push client.
type Config struct {
	// Timeout bounds one push end to end (dial, TLS, request, response).
	Timeout time.Duration
	// RatePerSec throttles outbound pushes; <= 0 means unthrottled.
	RatePerSec int
}

// Client delivers reminders over HTTP. Safe for concurrent use; the
// sweep dispatches several pushes at once.
type Client struct {
	mu      sync.Mutex
	cfg     Config
	hc      *http.Client
	limiter *rate.Limiter

	log logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Client{log: log}
	c.applyLocked(cfg)
	return c
}

func (c *Client) Apply(cfg Config) {
	c.mu.Lock()
	c.applyLocked(cfg)
	c.mu.Unlock()
}

func (c *Client) applyLocked(cfg Config) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c.cfg = cfg
	if cfg.RatePerSec > 0 {
		// Token bucket: burst = rate per sec, same shape as the alert limiter.
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	} else {
		c.limiter = nil
	}
	// Timeout is enforced per request via context; the client itself has
	// no global deadline so Apply never invalidates in-flight pushes.
	if c.hc == nil {
		c.hc = &http.Client{}
	}
}

// Send pushes one reminder to its callback URL. It returns nil on any
// 2xx response and a *Error otherwise. Send never retries.
func (c *Client) Send(ctx context.Context, r remind.Reminder) error {
	c.mu.Lock()
	hc := c.hc
	limiter := c.limiter
	timeout := c.cfg.Timeout
	c.mu.Unlock()

	target := strings.TrimSpace(r.CallbackURL)
	if target == "" {
		return errors.New("reminder has no callback url")
	}
	host := hostOf(target)

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return &Error{Kind: KindConnection, Host: host, Err: err}
		}
	}

	body, err := json.Marshal(a2a.NewPushRequest(r.ContextID, pushPrefix+r.Message))
	if err != nil {
		return &Error{Kind: KindConnection, Host: host, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return &Error{Kind: KindConnection, Host: host, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.CallbackToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.CallbackToken)
	}

	c.log.Debug("pushing reminder",
		logx.String("id", r.ID),
		logx.String("context_id", r.ContextID),
		logx.String("host", host),
	)

	resp, err := hc.Do(req)
	if err != nil {
		kind := KindConnection
		if isTimeout(err) {
			kind = KindTimeout
		}
		return &Error{Kind: kind, Host: host, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrBody))
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
	return &Error{
		Kind:   KindStatus,
		Host:   host,
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(snippet)),
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "invalid-url"
	}
	return u.Host
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue) && ue.Timeout()
}

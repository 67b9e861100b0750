package alert

import (
	"context"
	"errors"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"
)

// Config identifies the operator chat that receives alert lines.
type Config struct {
	Token  string
	ChatID int64
}

// Telegram sends alert lines to a fixed chat via the Bot API.
// It satisfies logx.Sender. Sends are best-effort; failures are returned
// to the caller, which is expected to drop them.
type Telegram struct {
	mu  sync.Mutex
	cfg Config
	bot *tele.Bot
}

func NewTelegram(cfg Config) *Telegram {
	return &Telegram{cfg: cfg}
}

// Apply swaps the target at runtime. A token change drops the cached bot
// so the next Send reconnects with the new credentials.
func (t *Telegram) Apply(cfg Config) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if strings.TrimSpace(cfg.Token) != strings.TrimSpace(t.cfg.Token) {
		t.bot = nil
	}
	t.cfg = cfg
}

func (t *Telegram) Send(ctx context.Context, text string) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	t.mu.Lock()
	cfg := t.cfg
	bot := t.bot
	t.mu.Unlock()

	if strings.TrimSpace(cfg.Token) == "" {
		return errors.New("alert: telegram token not configured")
	}
	if cfg.ChatID == 0 {
		return errors.New("alert: telegram chat_id not configured")
	}

	if bot == nil {
		// Offline skips the getMe probe so a down API never blocks startup;
		// a bad token surfaces on the first Send instead.
		b, err := tele.NewBot(tele.Settings{Token: cfg.Token, Offline: true})
		if err != nil {
			return err
		}
		t.mu.Lock()
		if t.bot == nil && t.cfg.Token == cfg.Token {
			t.bot = b
		}
		t.mu.Unlock()
		// Deliver with the fresh bot even if a concurrent Apply dropped the
		// cache; this send observed cfg.Token and should use it.
		bot = b
	}

	_, err := bot.Send(&tele.Chat{ID: cfg.ChatID}, text, &tele.SendOptions{DisableWebPagePreview: true})
	return err
}

package remind

import (
	"context"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"ronbot/internal/eventbus"
	logx "ronbot/pkg/logx"
)

// DefaultSweep is the sweep schedule used when none is configured.
const DefaultSweep = "@every 1m"

const defaultMaxConcurrent = 8

// Sender delivers one claimed reminder. Implementations own their timeout;
// the sweep only passes the run context.
type Sender interface {
	Send(ctx context.Context, r Reminder) error
}

// Config controls the sweep service.
type Config struct {
	Enabled       bool
	Sweep         string // cron spec or Go duration
	Timezone      string // IANA TZ for cron and wall-clock "now"
	MaxConcurrent int    // parallel deliveries per sweep
}

// Service is the scheduler loop: a cron-driven sweep that claims due
// reminders from the store and hands each to the sender exactly once.
// The claim (DueSnapshot) removes the reminder first, so a failed or slow
// delivery is never retried.
type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	store  *Store
	sender Sender
	bus    *eventbus.Bus

	c     *cron.Cron
	entry cron.EntryID

	runCtx    context.Context
	runCancel context.CancelFunc
	stopCh    chan struct{}
	// stopDone is non-nil while a Stop() is in progress; it is closed when
	// in-flight dispatches fully exit.
	stopDone chan struct{}

	dispatchWG sync.WaitGroup

	// sweep accounting for /status
	sweeps    atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
	lastMu    sync.Mutex
	lastAt    time.Time
	lastDue   int
}

func New(cfg Config, store *Store, sender Sender, bus *eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		log:    log,
		store:  store,
		sender: sender,
		bus:    bus,
	}
}

// Enabled reports the current config flag. (Thread-safe; Apply() may run concurrently.)
func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Location returns the wall-clock zone absolute reminder times resolve in.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc != nil {
		return s.loc
	}
	return s.locationLocked()
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldSweep := strings.TrimSpace(s.cfg.Sweep)
	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	s.cfg = cfg

	if s.stopCh == nil {
		return
	}
	if oldSweep != strings.TrimSpace(cfg.Sweep) || oldTZ != strings.TrimSpace(cfg.Timezone) {
		// restart cron with the new spec/location
		s.stopCronLocked()
		s.startCronLocked()
	}
	// MaxConcurrent is read fresh at each sweep.
}

func (s *Service) Start(ctx context.Context) {
	// If a Stop() is still finalizing, wait for it so we never run two cron
	// runners at once.
	for {
		s.mu.Lock()
		if s.stopCh == nil {
			s.stopCh = make(chan struct{})
			s.runCtx, s.runCancel = context.WithCancel(ctx)
			s.startCronLocked()
			spec := s.sweepSpecLocked()
			tz := s.loc.String()
			s.mu.Unlock()
			s.log.Info("sweep service started", logx.String("sweep", spec), logx.String("tz", tz))
			return
		}
		done := s.stopDone
		s.mu.Unlock()
		if done == nil {
			// already running
			return
		}
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.log.Info("stop requested")
	// If a stop is already in progress, just wait (best-effort).
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
	// Initiate stop.
	done := make(chan struct{})
	s.stopDone = done
	stopCh := s.stopCh
	cancel := s.runCancel
	c := s.c
	// prevent new ticks quickly
	s.c = nil
	s.runCancel = nil
	s.mu.Unlock()

	// signal dispatches to exit promptly; in-flight deliveries are abandoned
	close(stopCh)
	if cancel != nil {
		cancel()
	}

	if c != nil {
		<-c.Stop().Done()
	}

	// finalize cleanup in background so Stop() can return on timeout safely.
	go func() {
		s.dispatchWG.Wait()
		s.mu.Lock()
		s.stopCh = nil
		s.runCtx = nil
		s.stopDone = nil
		s.mu.Unlock()
		close(done)
		s.log.Info("sweep service stopped", logx.Duration("took", time.Since(start)))
	}()

	select {
	case <-done:
		return
	case <-ctx.Done():
		// stop continues in background
		return
	}
}

func (s *Service) locationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) sweepSpecLocked() string {
	raw := strings.TrimSpace(s.cfg.Sweep)
	if raw == "" {
		raw = DefaultSweep
	}
	ps, err := ParseSweep(raw)
	if err != nil {
		s.log.Error("invalid sweep schedule; using default", logx.String("sweep", raw), logx.Err(err))
		return DefaultSweep
	}
	return ps.CronSpec()
}

func (s *Service) startCronLocked() {
	loc := s.locationLocked()
	s.loc = loc
	c := cron.New(cron.WithParser(sweepParser), cron.WithLocation(loc))

	spec := s.sweepSpecLocked()
	id, err := c.AddFunc(spec, s.tick)
	if err != nil {
		s.log.Error("sweep schedule rejected by cron; using default", logx.String("spec", spec), logx.Err(err))
		id, _ = c.AddFunc(DefaultSweep, s.tick)
	}
	s.entry = id
	s.c = c
	c.Start()
}

func (s *Service) stopCronLocked() {
	if s.c != nil {
		s.c.Stop()
		s.c = nil
	}
}

func (s *Service) tick() {
	s.mu.Lock()
	ctx := s.runCtx
	loc := s.loc
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if loc == nil {
		loc = time.Local
	}
	s.sweep(ctx, time.Now().In(loc))
}

// sweep is one Idle -> Processing -> Idle cycle: claim everything due,
// dispatch with bounded concurrency, wait for the batch to finish.
func (s *Service) sweep(ctx context.Context, now time.Time) {
	s.mu.Lock()
	store := s.store
	maxc := s.cfg.MaxConcurrent
	stopCh := s.stopCh
	s.mu.Unlock()
	if maxc <= 0 {
		maxc = defaultMaxConcurrent
	}

	s.sweeps.Add(1)
	due := store.DueSnapshot(now)
	s.lastMu.Lock()
	s.lastAt = now
	s.lastDue = len(due)
	s.lastMu.Unlock()
	if len(due) == 0 {
		return
	}

	s.log.Info("due reminders claimed", logx.Int("count", len(due)), logx.Int("pending", store.Size()))

	sem := make(chan struct{}, maxc)
	var wg sync.WaitGroup
	for i, r := range due {
		// Claimed reminders that the shutdown races past are abandoned,
		// consistent with at-most-once.
		select {
		case <-ctx.Done():
			s.log.Warn("sweep interrupted; abandoning claimed reminders", logx.Int("abandoned", len(due)-i))
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		s.dispatchWG.Add(1)
		go func(r Reminder) {
			defer s.dispatchWG.Done()
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if rec := recover(); rec != nil {
					s.log.Error("panic in reminder dispatch", logx.String("id", r.ID), logx.Any("panic", rec), logx.Stack(string(debug.Stack())))
				}
			}()
			s.dispatch(ctx, stopCh, r)
		}(r)
	}
	wg.Wait()
}

func (s *Service) dispatch(ctx context.Context, stopCh chan struct{}, r Reminder) {
	// Fast exit when a stop raced the claim.
	select {
	case <-stopCh:
		return
	case <-ctx.Done():
		return
	default:
	}

	start := time.Now()
	err := s.sender.Send(ctx, r)
	dur := time.Since(start)

	ev := ReminderEvent{
		ID:        r.ID,
		ContextID: r.ContextID,
		DueAt:     r.DueAt,
		At:        time.Now().UTC(),
	}
	ev.Latency = ev.At.Sub(r.DueAt)

	if err != nil {
		s.failed.Add(1)
		ev.Error = err.Error()
		s.log.Warn("reminder delivery failed",
			logx.String("id", r.ID),
			logx.String("context_id", r.ContextID),
			logx.Duration("took", dur),
			logx.Err(err),
		)
		s.bus.Publish(eventbus.Event{Type: EventFailed, Time: ev.At, Data: ev})
		return
	}

	s.delivered.Add(1)
	s.log.Info("reminder delivered",
		logx.String("id", r.ID),
		logx.String("context_id", r.ContextID),
		logx.Duration("took", dur),
		logx.Duration("late_by", ev.Latency),
	)
	s.bus.Publish(eventbus.Event{Type: EventDelivered, Time: ev.At, Data: ev})
}

// Snapshot is a point-in-time view of the sweep service for /status.
type Snapshot struct {
	Enabled       bool      `json:"enabled"`
	Running       bool      `json:"running"`
	Sweep         string    `json:"sweep"`
	Timezone      string    `json:"timezone"`
	MaxConcurrent int       `json:"max_concurrent"`
	Pending       int       `json:"pending"`
	Sweeps        uint64    `json:"sweeps"`
	Delivered     uint64    `json:"delivered"`
	Failed        uint64    `json:"failed"`
	LastSweepAt   time.Time `json:"last_sweep_at,omitempty"`
	LastSweepDue  int       `json:"last_sweep_due"`
	NextSweepAt   time.Time `json:"next_sweep_at,omitempty"`
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Enabled:       s.cfg.Enabled,
		Running:       s.stopCh != nil,
		Sweep:         s.sweepSpecLocked(),
		MaxConcurrent: s.cfg.MaxConcurrent,
	}
	if snap.MaxConcurrent <= 0 {
		snap.MaxConcurrent = defaultMaxConcurrent
	}
	if s.loc != nil {
		snap.Timezone = s.loc.String()
	} else {
		snap.Timezone = s.locationLocked().String()
	}
	if s.c != nil {
		snap.NextSweepAt = s.c.Entry(s.entry).Next
	}
	store := s.store
	s.mu.Unlock()

	if store != nil {
		snap.Pending = store.Size()
	}
	snap.Sweeps = s.sweeps.Load()
	snap.Delivered = s.delivered.Load()
	snap.Failed = s.failed.Load()

	s.lastMu.Lock()
	snap.LastSweepAt = s.lastAt
	snap.LastSweepDue = s.lastDue
	s.lastMu.Unlock()

	return snap
}

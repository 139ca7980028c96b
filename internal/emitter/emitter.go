// Package emitter produces the enter and exit tracking signals for a
// navigating client: exactly one enter per settled navigation, at most
// one best-effort exit carrying the dwell time.
package emitter

import (
	"context"
	"sync"
	"time"

	"github.com/radiusdt/vector-analytics/internal/models"
	"github.com/radiusdt/vector-analytics/internal/session"
	"go.uber.org/zap"
)

// Options tunes the emitter; zero values fall back to the defaults the
// site client ships with.
type Options struct {
	// SettleDelay is how long a navigation must survive before its enter
	// event fires. Navigations replaced within the delay never send.
	SettleDelay time.Duration
	// MinDwellSeconds is the dwell threshold for exit events.
	MinDwellSeconds int
	// SendTimeout bounds the enter-event request.
	SendTimeout time.Duration
}

const (
	defaultSettleDelay = time.Second
	defaultMinDwell    = 5
	defaultSendTimeout = 5 * time.Second
)

// Tracker emits page events for one client. Navigate and Unload are
// called from the client's cooperative loop; the settle timer fires on
// its own goroutine and synchronizes through the tracker mutex.
type Tracker struct {
	sessions  *session.Manager
	transport Transport
	beacon    Transport
	opts      Options
	logger    *zap.Logger
	now       func() time.Time

	mu         sync.Mutex
	generation uint64
	path       string
	referrer   string
	enteredAt  time.Time
	sent       bool
	exited     bool
	timer      *time.Timer
	closed     bool
}

// NewTracker creates a tracker. transport carries enter events; beacon
// carries exit events and must tolerate page teardown.
func NewTracker(sessions *session.Manager, transport, beacon Transport, opts Options, logger *zap.Logger) *Tracker {
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = defaultSettleDelay
	}
	if opts.MinDwellSeconds <= 0 {
		opts.MinDwellSeconds = defaultMinDwell
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	return &Tracker{
		sessions:  sessions,
		transport: transport,
		beacon:    beacon,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// Navigate records a navigation change: the dwell clock resets, the
// sent-guard clears, and a settle timer is armed. A pending enter send
// for the superseded navigation is cancelled and never fires.
func (t *Tracker) Navigate(path, referrer string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	if t.timer != nil {
		t.timer.Stop()
	}

	t.generation++
	gen := t.generation
	t.path = path
	t.referrer = referrer
	t.enteredAt = t.now()
	t.sent = false
	t.exited = false

	t.timer = time.AfterFunc(t.opts.SettleDelay, func() {
		t.fireEnter(gen)
	})
}

// fireEnter sends the enter event for the given navigation generation.
// A stale generation means the navigation was superseded while the timer
// callback raced the next Navigate, in which case nothing is sent.
func (t *Tracker) fireEnter(gen uint64) {
	t.mu.Lock()
	if t.closed || gen != t.generation || t.sent {
		t.mu.Unlock()
		return
	}
	t.sent = true

	sessionID, isNewVisitor := t.sessions.Resolve()
	ev := &models.PageEvent{
		SessionID:    sessionID,
		Path:         t.path,
		Referrer:     t.referrer,
		ArticleID:    models.ExtractArticleID(t.path),
		IsNewVisitor: isNewVisitor,
	}
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), t.opts.SendTimeout)
	defer cancel()

	if err := t.transport.Send(ctx, ev); err != nil {
		// Tracking must never degrade the page; drop and log.
		t.logger.Debug("enter event dropped",
			zap.String("path", ev.Path),
			zap.Error(err),
		)
	}
}

// Unload emits the exit event for the current navigation when the dwell
// time exceeds the threshold. The send is best-effort and not awaited;
// it fires at most once per navigation.
func (t *Tracker) Unload() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.path == "" || t.exited {
		return
	}
	t.exited = true

	if t.timer != nil {
		t.timer.Stop()
	}

	dwell := int(t.now().Sub(t.enteredAt).Round(time.Second).Seconds())
	if dwell <= t.opts.MinDwellSeconds {
		return
	}

	sessionID, _ := t.sessions.Resolve()
	ev := &models.PageEvent{
		SessionID:    sessionID,
		Path:         t.path,
		Referrer:     t.referrer,
		ArticleID:    models.ExtractArticleID(t.path),
		TimeSpent:    &dwell,
		IsNewVisitor: false,
	}

	if err := t.beacon.Send(context.Background(), ev); err != nil {
		t.logger.Debug("exit event dropped",
			zap.String("path", ev.Path),
			zap.Error(err),
		)
	}
}

// Close cancels any pending enter send and stops the tracker.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	if t.timer != nil {
		t.timer.Stop()
	}
}

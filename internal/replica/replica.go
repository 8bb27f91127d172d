// Package replica is the client side of the synchronization protocol: a
// local view of one session that applies the participant's own edits
// optimistically, sends them through an ordered task queue and merges
// server state by polling.
//
// While an edit is queued or in flight, and for a lock window after the
// last one, poll results are discarded so the local view never flickers
// back to a state that predates the participant's own writes.
package replica

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/splitlive/internal/calculator"
	"github.com/mmynk/splitlive/internal/common"
	"github.com/mmynk/splitlive/internal/models"
	"github.com/mmynk/splitlive/pkg/api"
	"github.com/mmynk/splitlive/pkg/api/apiconnect"
)

const (
	DefaultLockWindow   = 6 * time.Second
	DefaultPollInterval = 3 * time.Second

	defaultRequestTimeout = 10 * time.Second
)

var (
	ErrClosed    = errors.New("replica closed")
	ErrNotLoaded = errors.New("replica not loaded")
)

// Backend is the part of the session service a replica calls.
// apiconnect.SessionServiceClient satisfies it.
type Backend interface {
	Poll(context.Context, *connect.Request[api.PollRequest]) (*connect.Response[api.PollResponse], error)
	Assign(context.Context, *connect.Request[api.AssignRequest]) (*connect.Response[api.SessionResponse], error)
	AssignAll(context.Context, *connect.Request[api.AssignAllRequest]) (*connect.Response[api.SessionResponse], error)
	SetItemMode(context.Context, *connect.Request[api.SetItemModeRequest]) (*connect.Response[api.SessionResponse], error)
	UpdateParticipant(context.Context, *connect.Request[api.UpdateParticipantRequest]) (*connect.Response[api.SessionResponse], error)
}

type Option func(*Replica)

// WithLockWindow sets how long poll results are ignored after an edit.
func WithLockWindow(d time.Duration) Option {
	return func(r *Replica) {
		r.lockWindow = d
	}
}

// WithPollInterval sets the Run ticker interval.
func WithPollInterval(d time.Duration) Option {
	return func(r *Replica) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithRequestTimeout bounds every queued call.
func WithRequestTimeout(d time.Duration) Option {
	return func(r *Replica) {
		if d > 0 {
			r.requestTimeout = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Replica) {
		r.now = now
	}
}

// WithOwnerToken makes the replica act as the host.
func WithOwnerToken(token string) Option {
	return func(r *Replica) {
		r.ownerToken = token
	}
}

// WithErrorHandler receives every failed edit after it was rolled back.
func WithErrorHandler(fn func(error)) Option {
	return func(r *Replica) {
		r.onError = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Replica) {
		r.logger = l
	}
}

// task is one queued server call. A task with done set is a Flush barrier.
type task struct {
	name string
	run  func(ctx context.Context) error
	edit *edit
	done chan struct{}
}

// edit is an optimistic change the server has not confirmed yet.
type edit struct {
	name  string
	apply func(s *models.Session) error
}

// Replica is one participant's view of a session.
type Replica struct {
	backend       Backend
	sessionID     string
	participantID string
	ownerToken    string

	lockWindow     time.Duration
	pollInterval   time.Duration
	requestTimeout time.Duration
	now            func() time.Time
	onError        func(error)
	logger         *slog.Logger

	mu   sync.Mutex
	cond *sync.Cond

	// base is the server state as last known: the latest poll plus every
	// edit the server confirmed since. view is base with pending replayed.
	base        *models.Session
	view        *models.Session
	pending     []*edit
	lastUpdated int64
	lockUntil   time.Time
	queue       []task
	failures    []error
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a replica for participantID and starts its task worker.
// Call Load before editing.
func New(backend Backend, sessionID, participantID string, opts ...Option) *Replica {
	r := &Replica{
		backend:        backend,
		sessionID:      sessionID,
		participantID:  participantID,
		lockWindow:     DefaultLockWindow,
		pollInterval:   DefaultPollInterval,
		requestTimeout: defaultRequestTimeout,
		now:            time.Now,
		logger:         slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	r.cond = sync.NewCond(&r.mu)
	r.ctx, r.cancel = context.WithCancel(context.Background())

	r.wg.Add(1)
	go r.worker()
	return r
}

// Close stops the worker after the queued tasks have run.
func (r *Replica) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.cond.Broadcast()
	r.mu.Unlock()

	r.wg.Wait()
	r.cancel()
}

// request wraps msg with the caller headers.
func request[T any](r *Replica, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	if r.participantID != "" {
		req.Header().Set(apiconnect.ParticipantIDHeader, r.participantID)
	}
	if r.ownerToken != "" {
		req.Header().Set(apiconnect.AuthorizationHeader, "Bearer "+r.ownerToken)
	}
	return req
}

// Load fetches the full session, ignoring any lock. Edits still pending
// are replayed on top of it.
func (r *Replica) Load(ctx context.Context) error {
	resp, err := r.backend.Poll(ctx, request(r, &api.PollRequest{SessionID: r.sessionID}))
	if err != nil {
		return mapError(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applyLocked(resp.Msg)
}

// PollOnce asks for changes since the last applied state and applies them
// unless the interaction lock is held. It reports whether the view changed.
// Transient failures are swallowed; the next poll retries.
func (r *Replica) PollOnce(ctx context.Context) (bool, error) {
	r.mu.Lock()
	since := r.lastUpdated
	r.mu.Unlock()

	resp, err := r.backend.Poll(ctx, request(r, &api.PollRequest{SessionID: r.sessionID, LastUpdate: since}))
	if err != nil {
		err = mapError(err)
		if common.IsTerminal(err) {
			return false, err
		}
		r.logger.Debug("poll failed, retrying next interval", "session_id", r.sessionID, "error", err)
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !resp.Msg.HasChanges {
		return false, nil
	}
	if r.lockedLocked() {
		r.logger.Debug("discarding poll during interaction lock",
			"session_id", r.sessionID,
			"pending", len(r.pending),
			"last_updated", resp.Msg.LastUpdated,
		)
		return false, nil
	}
	if err := r.applyLocked(resp.Msg); err != nil {
		return false, err
	}
	return true, nil
}

// Run polls every poll interval until ctx is done or the session is gone.
func (r *Replica) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.PollOnce(ctx); err != nil {
				return err
			}
		}
	}
}

func (r *Replica) applyLocked(msg *api.PollResponse) error {
	if !msg.HasChanges || msg.Session == nil {
		return nil
	}
	s, err := msg.Session.Model()
	if err != nil {
		return err
	}
	s.LastUpdated = msg.LastUpdated
	r.base = s
	r.lastUpdated = msg.LastUpdated
	r.replayLocked()
	return nil
}

// replayLocked rebuilds the view from base and the pending edits. An edit
// that no longer applies stays queued; the server will reject it too.
func (r *Replica) replayLocked() {
	view := prepare(r.base.Clone())
	for _, e := range r.pending {
		next := view.Clone()
		if err := e.apply(next); err != nil {
			r.logger.Debug("pending edit no longer applies locally", "session_id", r.sessionID, "task", e.name, "error", err)
			continue
		}
		view = next
	}
	r.view = view
}

// prepare makes the maps of s writable.
func prepare(s *models.Session) *models.Session {
	if s == nil {
		return nil
	}
	if s.Assignments == nil {
		s.Assignments = models.Assignments{}
	}
	if s.SavedModes == nil {
		s.SavedModes = models.SavedModes{}
	}
	return s
}

func (r *Replica) lockedLocked() bool {
	return len(r.pending) > 0 || r.now().Before(r.lockUntil)
}

// Locked reports whether poll results are currently being discarded.
func (r *Replica) Locked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lockedLocked()
}

// touchLock restarts the lock window.
func (r *Replica) touchLock() {
	r.mu.Lock()
	r.lockUntil = r.now().Add(r.lockWindow)
	r.mu.Unlock()
}

// View returns a copy of the local session.
func (r *Replica) View() *models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view.Clone()
}

// Totals computes the participants' totals from the local view, or returns
// the frozen snapshot of a finalized session.
func (r *Replica) Totals() []models.ParticipantTotal {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.view == nil {
		return nil
	}
	if r.view.Status == models.StatusFinalized && r.view.Totals != nil {
		return r.view.Clone().Totals
	}
	return calculator.Freeze(calculator.ComputeSession(r.view), r.view.Currency)
}

// Flush waits for every queued edit to finish and returns the failures
// collected since the previous Flush.
func (r *Replica) Flush(ctx context.Context) error {
	done := make(chan struct{})
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.queue = append(r.queue, task{name: "flush", done: done})
	r.cond.Signal()
	r.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.mu.Lock()
	failures := r.failures
	r.failures = nil
	r.mu.Unlock()
	return errors.Join(failures...)
}

func (r *Replica) worker() {
	defer r.wg.Done()
	for {
		r.mu.Lock()
		for len(r.queue) == 0 && !r.closed {
			r.cond.Wait()
		}
		if len(r.queue) == 0 {
			r.mu.Unlock()
			return
		}
		t := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()

		r.runTask(t)
	}
}

func (r *Replica) runTask(t task) {
	if t.done != nil {
		close(t.done)
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.requestTimeout)
	err := mapError(t.run(ctx))
	cancel()

	r.mu.Lock()
	r.dropPendingLocked(t.edit)
	r.lockUntil = r.now().Add(r.lockWindow)
	if err == nil {
		// Confirmed: fold it into base so later rollbacks keep it.
		next := prepare(r.base.Clone())
		if t.edit.apply(next) == nil {
			r.base = next
		}
	} else {
		r.replayLocked()
		if !known(err) {
			// The server may have applied part of the edit: refetch everything.
			r.lastUpdated = 0
		}
		r.failures = append(r.failures, fmt.Errorf("%s: %w", t.name, err))
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("edit rolled back", "session_id", r.sessionID, "task", t.name, "error", err)
		if r.onError != nil {
			r.onError(err)
		}
	}
}

func (r *Replica) dropPendingLocked(e *edit) {
	for i, p := range r.pending {
		if p == e {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			return
		}
	}
}

// mutation is one optimistic edit.
type mutation struct {
	name string
	// editable requires the session to be assigning.
	editable bool
	// apply edits a session copy; an error rejects the edit before sending.
	// It runs again whenever the view is rebuilt, so it must not depend on
	// anything but its argument after the first call.
	apply func(s *models.Session) error
	// send performs the edit on the server.
	send func(ctx context.Context) error
}

func (r *Replica) mutate(m mutation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.view == nil {
		return ErrNotLoaded
	}
	if m.editable && r.view.Status != models.StatusAssigning {
		return common.Statef("session is %s", r.view.Status)
	}

	next := prepare(r.view.Clone())
	if err := m.apply(next); err != nil {
		return err
	}
	e := &edit{name: m.name, apply: m.apply}
	r.view = next
	r.pending = append(r.pending, e)
	r.lockUntil = r.now().Add(r.lockWindow)
	r.queue = append(r.queue, task{name: m.name, run: m.send, edit: e})
	r.cond.Signal()
	return nil
}

// mapError turns Connect codes back into the error taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var ce *connect.Error
	if !errors.As(err, &ce) {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %v", common.ErrNetwork, err)
		}
		return err
	}
	var sentinel error
	switch ce.Code() {
	case connect.CodeNotFound:
		sentinel = common.ErrNotFound
	case connect.CodePermissionDenied, connect.CodeUnauthenticated:
		sentinel = common.ErrForbidden
	case connect.CodeResourceExhausted:
		sentinel = common.ErrInvalidCapacity
	case connect.CodeFailedPrecondition:
		sentinel = common.ErrInvalidState
	case connect.CodeInvalidArgument:
		sentinel = common.ErrInvalidInput
	case connect.CodeUnavailable, connect.CodeDeadlineExceeded, connect.CodeUnknown, connect.CodeCanceled, connect.CodeAborted:
		sentinel = common.ErrNetwork
	default:
		return err
	}
	return fmt.Errorf("%w: %s", sentinel, ce.Message())
}

func known(err error) bool {
	for _, sentinel := range []error{
		common.ErrNotFound,
		common.ErrForbidden,
		common.ErrInvalidCapacity,
		common.ErrInvalidState,
		common.ErrInvalidInput,
		common.ErrNetwork,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

package replica

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/splitlive/internal/common"
	"github.com/mmynk/splitlive/internal/models"
	"github.com/mmynk/splitlive/pkg/api"
)

type fakeBackend struct {
	mu        sync.Mutex
	poll      *api.PollResponse
	pollErr   error
	pollSince []int64
	assignErr func(*api.AssignRequest) error
	assigns   []api.AssignRequest
	modes     []api.SetItemModeRequest
	renames   []api.UpdateParticipantRequest
	// release, when set, holds every Assign until it is closed.
	release chan struct{}
}

func (f *fakeBackend) Poll(_ context.Context, req *connect.Request[api.PollRequest]) (*connect.Response[api.PollResponse], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollSince = append(f.pollSince, req.Msg.LastUpdate)
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	resp := *f.poll
	if resp.LastUpdated <= req.Msg.LastUpdate {
		return connect.NewResponse(&api.PollResponse{LastUpdated: resp.LastUpdated}), nil
	}
	return connect.NewResponse(&resp), nil
}

func (f *fakeBackend) Assign(_ context.Context, req *connect.Request[api.AssignRequest]) (*connect.Response[api.SessionResponse], error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigns = append(f.assigns, *req.Msg)
	if f.assignErr != nil {
		if err := f.assignErr(req.Msg); err != nil {
			return nil, err
		}
	}
	return connect.NewResponse(&api.SessionResponse{}), nil
}

func (f *fakeBackend) AssignAll(context.Context, *connect.Request[api.AssignAllRequest]) (*connect.Response[api.SessionResponse], error) {
	return connect.NewResponse(&api.SessionResponse{}), nil
}

func (f *fakeBackend) SetItemMode(_ context.Context, req *connect.Request[api.SetItemModeRequest]) (*connect.Response[api.SessionResponse], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modes = append(f.modes, *req.Msg)
	return connect.NewResponse(&api.SessionResponse{}), nil
}

func (f *fakeBackend) UpdateParticipant(_ context.Context, req *connect.Request[api.UpdateParticipantRequest]) (*connect.Response[api.SessionResponse], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renames = append(f.renames, *req.Msg)
	return connect.NewResponse(&api.SessionResponse{}), nil
}

func (f *fakeBackend) setPoll(s *models.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.poll = &api.PollResponse{HasChanges: true, LastUpdated: s.LastUpdated, Session: api.FromSession(s, false)}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func fixtureSession() *models.Session {
	return &models.Session{
		ID:       "s1",
		Status:   models.StatusAssigning,
		Currency: models.DefaultCurrency,
		Participants: []models.Participant{
			{ID: "host", Name: "Host", Role: models.RoleOwner},
			{ID: "ana", Name: "Ana", Role: models.RoleEditor},
			{ID: "ben", Name: "Ben", Role: models.RoleEditor},
		},
		Items: []models.Item{
			{ID: "beer", Name: "Beer", UnitPrice: 4, Quantity: 2, Mode: models.ModeIndividual},
			{ID: "fries", Name: "Fries", UnitPrice: 6, Quantity: 1, Mode: models.ModeIndividual},
			{ID: "nachos", Name: "Nachos", UnitPrice: 9, Quantity: 3, Mode: models.ModeGrupal, PerUnit: true},
		},
		Assignments: models.Assignments{
			models.UnitScope("nachos", 0): {{ParticipantID: "ana", Quantity: 1}},
		},
		SavedModes:  models.SavedModes{},
		LastUpdated: 1000,
	}
}

func newReplica(t *testing.T, f *fakeBackend, participantID string, opts ...Option) (*Replica, *clock) {
	t.Helper()
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	if f.poll == nil {
		f.setPoll(fixtureSession())
	}
	opts = append([]Option{WithClock(c.Now)}, opts...)
	r := New(f, "s1", participantID, opts...)
	t.Cleanup(r.Close)
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return r, c
}

func claimOf(s *models.Session, scope models.Scope, participantID string) float64 {
	for _, sh := range s.Assignments[scope] {
		if sh.ParticipantID == participantID {
			return sh.Quantity
		}
	}
	return 0
}

func TestOptimisticClaimRolledBackOnNetworkFailure(t *testing.T) {
	f := &fakeBackend{
		release: make(chan struct{}),
		assignErr: func(*api.AssignRequest) error {
			return connect.NewError(connect.CodeUnavailable, errors.New("connection reset"))
		},
	}
	var reported []error
	r, _ := newReplica(t, f, "ana", WithErrorHandler(func(err error) { reported = append(reported, err) }))

	beer := models.ItemScope("beer")
	if err := r.Claim(beer, 1, true); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if got := claimOf(r.View(), beer, "ana"); got != 1 {
		t.Fatalf("optimistic claim = %v, want 1", got)
	}
	if !r.Locked() {
		t.Error("expected the interaction lock while the edit is in flight")
	}

	close(f.release)
	err := r.Flush(context.Background())
	if !errors.Is(err, common.ErrNetwork) {
		t.Fatalf("Flush error = %v, want ErrNetwork", err)
	}
	if got := claimOf(r.View(), beer, "ana"); got != 0 {
		t.Errorf("claim after rollback = %v, want 0", got)
	}
	if len(reported) != 1 {
		t.Errorf("error handler called %d times, want 1", len(reported))
	}
}

func TestLocalRejectionSendsNothing(t *testing.T) {
	f := &fakeBackend{}
	r, _ := newReplica(t, f, "ana")

	if err := r.Claim(models.ItemScope("beer"), 3, true); !errors.Is(err, common.ErrInvalidCapacity) {
		t.Errorf("Claim error = %v, want ErrInvalidCapacity", err)
	}
	if err := r.Claim(models.ItemScope("nachos"), 1, true); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("item-level claim on a per-unit item error = %v, want ErrInvalidInput", err)
	}
	if err := r.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if len(f.assigns) != 0 {
		t.Errorf("rejected edits reached the server: %+v", f.assigns)
	}
}

func TestServerRejectionRevertsOnlyThatItem(t *testing.T) {
	f := &fakeBackend{
		assignErr: func(req *api.AssignRequest) error {
			if req.ItemID == "beer" {
				return connect.NewError(connect.CodeResourceExhausted, errors.New("only 0 of Beer left"))
			}
			return nil
		},
	}
	r, _ := newReplica(t, f, "ana")

	if err := r.Claim(models.ItemScope("fries"), 1, true); err != nil {
		t.Fatalf("Claim fries failed: %v", err)
	}
	if err := r.Claim(models.ItemScope("beer"), 2, true); err != nil {
		t.Fatalf("Claim beer failed: %v", err)
	}
	err := r.Flush(context.Background())
	if !errors.Is(err, common.ErrInvalidCapacity) {
		t.Fatalf("Flush error = %v, want ErrInvalidCapacity", err)
	}

	view := r.View()
	if got := claimOf(view, models.ItemScope("beer"), "ana"); got != 0 {
		t.Errorf("beer claim = %v, want rolled back", got)
	}
	if got := claimOf(view, models.ItemScope("fries"), "ana"); got != 1 {
		t.Errorf("fries claim = %v, want kept", got)
	}
	if f.assigns[0].ItemID != "fries" || f.assigns[1].ItemID != "beer" {
		t.Errorf("edits sent out of order: %+v", f.assigns)
	}
}

func TestPollDiscardedDuringLockWindow(t *testing.T) {
	f := &fakeBackend{}
	r, c := newReplica(t, f, "ana", WithLockWindow(6*time.Second))
	ctx := context.Background()

	if err := r.Claim(models.ItemScope("beer"), 1, true); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if err := r.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	// The server has not seen the claim yet.
	stale := fixtureSession()
	stale.LastUpdated = 2000
	stale.Title = "stale"
	f.setPoll(stale)

	applied, err := r.PollOnce(ctx)
	if err != nil || applied {
		t.Fatalf("PollOnce during lock = %v, %v; want discarded", applied, err)
	}
	if got := claimOf(r.View(), models.ItemScope("beer"), "ana"); got != 1 {
		t.Fatalf("lock did not protect the optimistic claim")
	}

	c.Advance(6 * time.Second)
	fresh := fixtureSession()
	fresh.LastUpdated = 3000
	fresh.Assignments[models.ItemScope("beer")] = []models.Share{{ParticipantID: "ana", Quantity: 1}}
	f.setPoll(fresh)

	applied, err = r.PollOnce(ctx)
	if err != nil || !applied {
		t.Fatalf("PollOnce after lock = %v, %v; want applied", applied, err)
	}
	if view := r.View(); view.LastUpdated != 3000 || claimOf(view, models.ItemScope("beer"), "ana") != 1 {
		t.Errorf("unexpected view after poll: %+v", view)
	}

	applied, _ = r.PollOnce(ctx)
	if applied {
		t.Error("unchanged poll should not apply")
	}
}

func TestPollFailures(t *testing.T) {
	f := &fakeBackend{}
	r, _ := newReplica(t, f, "ana", WithPollInterval(10*time.Millisecond))
	ctx := context.Background()

	f.pollErr = connect.NewError(connect.CodeUnavailable, errors.New("offline"))
	if applied, err := r.PollOnce(ctx); applied || err != nil {
		t.Errorf("network poll failure = %v, %v; want silently ignored", applied, err)
	}

	f.pollErr = connect.NewError(connect.CodeNotFound, errors.New("session s1 expired"))
	if _, err := r.PollOnce(ctx); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expired poll error = %v, want ErrNotFound", err)
	}
	if err := r.Run(ctx); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Run error = %v, want ErrNotFound", err)
	}
}

func TestUnknownFailureForcesReload(t *testing.T) {
	f := &fakeBackend{
		assignErr: func(*api.AssignRequest) error {
			return connect.NewError(connect.CodeInternal, errors.New("disk full"))
		},
	}
	r, c := newReplica(t, f, "ana", WithLockWindow(time.Second))
	ctx := context.Background()

	if err := r.Claim(models.ItemScope("beer"), 1, true); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if err := r.Flush(ctx); err == nil {
		t.Fatal("expected the internal error from Flush")
	}

	c.Advance(time.Second)
	if _, err := r.PollOnce(ctx); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}
	if last := f.pollSince[len(f.pollSince)-1]; last != 0 {
		t.Errorf("poll after unknown failure sent last_update %d, want 0", last)
	}
}

func TestFinalizedViewRejectsClaims(t *testing.T) {
	f := &fakeBackend{}
	s := fixtureSession()
	s.Status = models.StatusFinalized
	s.Totals = []models.ParticipantTotal{{ParticipantID: "host", Name: "Host", Total: 42}}
	f.setPoll(s)
	r, _ := newReplica(t, f, "ana")

	if err := r.Claim(models.ItemScope("beer"), 1, true); !errors.Is(err, common.ErrInvalidState) {
		t.Errorf("Claim error = %v, want ErrInvalidState", err)
	}
	if err := r.Rename("Ana B."); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if err := r.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if len(f.renames) != 1 || *f.renames[0].Name != "Ana B." {
		t.Errorf("unexpected renames: %+v", f.renames)
	}
	if totals := r.Totals(); len(totals) != 1 || totals[0].Total != 42 {
		t.Errorf("Totals = %+v, want the frozen snapshot", totals)
	}
}

func TestSetUnitClaimantsBatches(t *testing.T) {
	f := &fakeBackend{}
	r, _ := newReplica(t, f, "host", WithOwnerToken("token"))

	if err := r.SetUnitClaimants("nachos", 0, []string{"ben", "host"}); err != nil {
		t.Fatalf("SetUnitClaimants failed: %v", err)
	}
	view := r.View()
	scope := models.UnitScope("nachos", 0)
	if claimOf(view, scope, "ana") != 0 || claimOf(view, scope, "ben") != 0.5 || claimOf(view, scope, "host") != 0.5 {
		t.Errorf("unexpected optimistic unit: %+v", view.Assignments[scope])
	}

	if err := r.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if len(f.assigns) != 3 {
		t.Fatalf("expected 3 assign calls, got %d", len(f.assigns))
	}
	if f.assigns[0].ParticipantID != "ana" || f.assigns[0].IsAssigned {
		t.Errorf("removal batch must go first, got %+v", f.assigns[0])
	}
	for _, a := range f.assigns[1:] {
		if !a.IsAssigned || a.ItemID != "nachos_unit_0" {
			t.Errorf("unexpected addition %+v", a)
		}
	}
}

func TestSwitchModeRestoresLocally(t *testing.T) {
	f := &fakeBackend{}
	r, _ := newReplica(t, f, "ana")

	if err := r.SwitchMode("nachos", models.SplitAll); err != nil {
		t.Fatalf("SwitchMode failed: %v", err)
	}
	if err := r.SwitchMode("nachos", models.SplitUnit); err != nil {
		t.Fatalf("SwitchMode back failed: %v", err)
	}
	if err := r.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	view := r.View()
	if got := claimOf(view, models.UnitScope("nachos", 0), "ana"); got != 1 {
		t.Errorf("unit claim after round trip = %v, want 1", got)
	}
	if len(f.modes) != 2 || f.modes[0].Mode != "all" || f.modes[1].Mode != "unit" {
		t.Errorf("unexpected mode calls: %+v", f.modes)
	}
}

func TestEditsBeforeLoad(t *testing.T) {
	r := New(&fakeBackend{}, "s1", "ana")
	defer r.Close()
	if err := r.Claim(models.ItemScope("beer"), 1, true); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Claim error = %v, want ErrNotLoaded", err)
	}
	if r.Totals() != nil {
		t.Error("Totals before Load should be nil")
	}
}

func TestStackedFailuresRollBackToServerState(t *testing.T) {
	f := &fakeBackend{
		release: make(chan struct{}),
		assignErr: func(*api.AssignRequest) error {
			return connect.NewError(connect.CodeUnavailable, errors.New("connection reset"))
		},
	}
	r, c := newReplica(t, f, "ana", WithLockWindow(time.Second))
	ctx := context.Background()

	beer := models.ItemScope("beer")
	if err := r.Claim(beer, 1, true); err != nil {
		t.Fatalf("Claim(1) failed: %v", err)
	}
	if err := r.Claim(beer, 2, true); err != nil {
		t.Fatalf("Claim(2) failed: %v", err)
	}
	if got := claimOf(r.View(), beer, "ana"); got != 2 {
		t.Fatalf("optimistic claim = %v, want 2", got)
	}

	close(f.release)
	if err := r.Flush(ctx); !errors.Is(err, common.ErrNetwork) {
		t.Fatalf("Flush error = %v, want ErrNetwork", err)
	}
	if got := claimOf(r.View(), beer, "ana"); got != 0 {
		t.Errorf("claim after both edits failed = %v, want 0", got)
	}

	c.Advance(time.Second)
	if _, err := r.PollOnce(ctx); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}
	if got := claimOf(r.View(), beer, "ana"); got != 0 {
		t.Errorf("claim after poll = %v, want 0", got)
	}
}

func TestConfirmedEditSurvivesLaterRollback(t *testing.T) {
	f := &fakeBackend{
		assignErr: func(req *api.AssignRequest) error {
			if req.Quantity == 2 {
				return connect.NewError(connect.CodeResourceExhausted, errors.New("only 1 of Beer left"))
			}
			return nil
		},
	}
	r, _ := newReplica(t, f, "ana")

	beer := models.ItemScope("beer")
	if err := r.Claim(beer, 1, true); err != nil {
		t.Fatalf("Claim(1) failed: %v", err)
	}
	if err := r.Claim(beer, 2, true); err != nil {
		t.Fatalf("Claim(2) failed: %v", err)
	}
	if err := r.Flush(context.Background()); !errors.Is(err, common.ErrInvalidCapacity) {
		t.Fatalf("Flush error = %v, want ErrInvalidCapacity", err)
	}
	if got := claimOf(r.View(), beer, "ana"); got != 1 {
		t.Errorf("claim = %v, want the confirmed 1", got)
	}
}

func TestLoadReplaysPendingEdits(t *testing.T) {
	f := &fakeBackend{
		release: make(chan struct{}),
		assignErr: func(*api.AssignRequest) error {
			return connect.NewError(connect.CodeUnavailable, errors.New("connection reset"))
		},
	}
	r, _ := newReplica(t, f, "ana")
	ctx := context.Background()

	fries, beer := models.ItemScope("fries"), models.ItemScope("beer")
	if err := r.Claim(fries, 1, true); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	fresh := fixtureSession()
	fresh.LastUpdated = 2000
	fresh.Assignments[beer] = []models.Share{{ParticipantID: "ben", Quantity: 1}}
	f.setPoll(fresh)
	if err := r.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	view := r.View()
	if claimOf(view, beer, "ben") != 1 || claimOf(view, fries, "ana") != 1 {
		t.Fatalf("reloaded view lost server or pending state: %+v", view.Assignments)
	}

	close(f.release)
	if err := r.Flush(ctx); !errors.Is(err, common.ErrNetwork) {
		t.Fatalf("Flush error = %v, want ErrNetwork", err)
	}
	view = r.View()
	if claimOf(view, fries, "ana") != 0 {
		t.Errorf("failed claim kept: %+v", view.Assignments)
	}
	if claimOf(view, beer, "ben") != 1 || view.LastUpdated != 2000 {
		t.Errorf("rollback overwrote the reloaded state: %+v", view)
	}
}

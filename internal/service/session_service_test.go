package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/splitlive/internal/auth"
	"github.com/mmynk/splitlive/internal/middleware"
	"github.com/mmynk/splitlive/internal/session"
	"github.com/mmynk/splitlive/internal/storage/sqlite"
	"github.com/mmynk/splitlive/pkg/api"
	"github.com/mmynk/splitlive/pkg/api/apiconnect"
)

// setupTestServer creates a test server backed by a temporary SQLite database.
func setupTestServer(t *testing.T, opts ...session.Option) (apiconnect.SessionServiceClient, *httptest.Server) {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	tokens := auth.NewTokenManager("test-secret")
	manager := session.NewManager(store, tokens, opts...)
	svc := NewSessionService(manager, tokens, slog.Default())

	path, handler := apiconnect.NewSessionServiceHandler(svc, connect.WithInterceptors(
		middleware.Identify(tokens),
		middleware.LoggingInterceptor(slog.Default()),
	))
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	return apiconnect.NewSessionServiceClient(http.DefaultClient, server.URL), server
}

// as sets the caller headers on a request.
func as[T any](msg *T, participantID, ownerToken string) *connect.Request[T] {
	req := connect.NewRequest(msg)
	if participantID != "" {
		req.Header().Set(apiconnect.ParticipantIDHeader, participantID)
	}
	if ownerToken != "" {
		req.Header().Set(apiconnect.AuthorizationHeader, "Bearer "+ownerToken)
	}
	return req
}

func createPizza(t *testing.T, client apiconnect.SessionServiceClient) *api.CreateSessionResponse {
	t.Helper()
	resp, err := client.CreateSession(context.Background(), connect.NewRequest(&api.CreateSessionRequest{
		Title:    "Pizza night",
		HostName: "Host",
		Items:    []api.Item{{ID: "pizza", Name: "Pizza", UnitPrice: 10000, Quantity: 1}},
	}))
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return resp.Msg
}

func join(t *testing.T, client apiconnect.SessionServiceClient, sessionID, name string) string {
	t.Helper()
	resp, err := client.Join(context.Background(), connect.NewRequest(&api.JoinRequest{SessionID: sessionID, Name: name}))
	if err != nil {
		t.Fatalf("Join(%s) failed: %v", name, err)
	}
	if resp.Msg.Participant.Role != "editor" {
		t.Errorf("joined role = %q, want editor", resp.Msg.Participant.Role)
	}
	return resp.Msg.Participant.ID
}

func TestPizzaOverRPC(t *testing.T) {
	client, _ := setupTestServer(t)
	ctx := context.Background()

	created := createPizza(t, client)
	id, host, token := created.Session.ID, created.HostID, created.OwnerToken

	if _, err := client.SetItemMode(ctx, as(&api.SetItemModeRequest{SessionID: id, ItemID: "pizza", Mode: "all"}, host, "")); err != nil {
		t.Fatalf("SetItemMode failed: %v", err)
	}
	for _, name := range []string{"Ana", "Ben"} {
		pid := join(t, client, id, name)
		_, err := client.Assign(ctx, connect.NewRequest(&api.AssignRequest{
			SessionID:     id,
			ItemID:        "pizza",
			ParticipantID: pid,
			IsAssigned:    true,
			UpdatedBy:     pid,
		}))
		if err != nil {
			t.Fatalf("Assign(%s) failed: %v", name, err)
		}
	}

	tip := api.Charge{Name: "Tip", Value: 10, ValueType: "percent", Distribution: "proportional"}
	if _, err := client.UpdateCharges(ctx, connect.NewRequest(&api.UpdateChargesRequest{SessionID: id, Charges: []api.Charge{tip}, OwnerToken: token})); err != nil {
		t.Fatalf("UpdateCharges failed: %v", err)
	}

	fin, err := client.Finalize(ctx, connect.NewRequest(&api.FinalizeRequest{SessionID: id, OwnerToken: token}))
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if fin.Msg.Status != "finalized" || len(fin.Msg.Totals) != 3 {
		t.Fatalf("Finalize returned status %q with %d totals", fin.Msg.Status, len(fin.Msg.Totals))
	}
	for _, pt := range fin.Msg.Totals {
		if pt.Total != 3666.67 {
			t.Errorf("%s total = %v, want 3666.67", pt.Name, pt.Total)
		}
	}

	summary, err := client.GetSummary(ctx, connect.NewRequest(&api.GetSummaryRequest{SessionID: id}))
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if !strings.Contains(summary.Msg.Text, "Pizza night") || !strings.Contains(summary.Msg.Text, "Total:") {
		t.Errorf("unexpected summary:\n%s", summary.Msg.Text)
	}

	_, err = client.Assign(ctx, as(&api.AssignRequest{SessionID: id, ItemID: "pizza", ParticipantID: host}, host, ""))
	if connect.CodeOf(err) != connect.CodeFailedPrecondition {
		t.Errorf("Assign while finalized code = %v, want FailedPrecondition", connect.CodeOf(err))
	}

	reopened, err := client.Reopen(ctx, as(&api.ReopenRequest{SessionID: id}, host, token))
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if reopened.Msg.Status != "assigning" || reopened.Msg.Session.Totals != nil {
		t.Errorf("Reopen left status %q totals %v", reopened.Msg.Status, reopened.Msg.Session.Totals)
	}
}

func TestErrorCodes(t *testing.T) {
	client, _ := setupTestServer(t)
	ctx := context.Background()

	created := createPizza(t, client)
	id, host, token := created.Session.ID, created.HostID, created.OwnerToken
	ana := join(t, client, id, "Ana")

	tests := []struct {
		name string
		call func() error
		want connect.Code
	}{
		{"unknown session", func() error {
			_, err := client.Poll(ctx, connect.NewRequest(&api.PollRequest{SessionID: "missing"}))
			return err
		}, connect.CodeNotFound},
		{"missing session id", func() error {
			_, err := client.Poll(ctx, connect.NewRequest(&api.PollRequest{}))
			return err
		}, connect.CodeInvalidArgument},
		{"editor finalizes", func() error {
			_, err := client.Finalize(ctx, as(&api.FinalizeRequest{SessionID: id}, ana, ""))
			return err
		}, connect.CodePermissionDenied},
		{"forged owner token", func() error {
			_, err := client.Finalize(ctx, connect.NewRequest(&api.FinalizeRequest{SessionID: id, OwnerToken: "forged"}))
			return err
		}, connect.CodePermissionDenied},
		{"over capacity", func() error {
			_, err := client.Assign(ctx, as(&api.AssignRequest{SessionID: id, ItemID: "pizza", ParticipantID: ana, Quantity: 2, IsAssigned: true}, ana, ""))
			return err
		}, connect.CodeResourceExhausted},
		{"unknown mode", func() error {
			_, err := client.SetItemMode(ctx, as(&api.SetItemModeRequest{SessionID: id, ItemID: "pizza", Mode: "half"}, ana, ""))
			return err
		}, connect.CodeInvalidArgument},
		{"reopen while assigning", func() error {
			_, err := client.Reopen(ctx, as(&api.ReopenRequest{SessionID: id}, host, token))
			return err
		}, connect.CodeFailedPrecondition},
		{"remove host", func() error {
			_, err := client.RemoveParticipant(ctx, as(&api.RemoveParticipantRequest{SessionID: id, ParticipantID: host}, host, token))
			return err
		}, connect.CodePermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := connect.CodeOf(tt.call()); got != tt.want {
				t.Errorf("code = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestItemCRUD(t *testing.T) {
	client, _ := setupTestServer(t)
	ctx := context.Background()

	created := createPizza(t, client)
	id, host, token := created.Session.ID, created.HostID, created.OwnerToken

	added, err := client.AddItem(ctx, as(&api.AddItemRequest{SessionID: id, Item: api.Item{Name: "Soda", UnitPrice: 1500, Quantity: 3}}, host, token))
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if added.Msg.Item.ID != "Soda" || added.Msg.Item.Mode != "individual" {
		t.Errorf("added item = %+v", added.Msg.Item)
	}

	if _, err := client.SetItemMode(ctx, as(&api.SetItemModeRequest{SessionID: id, ItemID: "Soda", Mode: "unit"}, host, token)); err != nil {
		t.Fatalf("SetItemMode failed: %v", err)
	}
	resp, err := client.Assign(ctx, as(&api.AssignRequest{SessionID: id, ItemID: "Soda_unit_2", ParticipantID: host, IsAssigned: true}, host, token))
	if err != nil {
		t.Fatalf("Assign unit failed: %v", err)
	}
	if got := resp.Msg.Session.Assignments["Soda_unit_2"]; len(got) != 1 || got[0].Quantity != 1 {
		t.Errorf("unit claim = %+v", got)
	}

	qty := 2
	resp, err = client.UpdateItem(ctx, as(&api.UpdateItemRequest{SessionID: id, ItemID: "Soda", Quantity: &qty}, host, token))
	if err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}
	if _, ok := resp.Msg.Session.Assignments["Soda_unit_2"]; ok {
		t.Error("unit past the new quantity should be dropped")
	}

	resp, err = client.DeleteItem(ctx, as(&api.DeleteItemRequest{SessionID: id, ItemID: "Soda"}, host, token))
	if err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}
	if len(resp.Msg.Session.Items) != 1 {
		t.Errorf("expected 1 item left, got %d", len(resp.Msg.Session.Items))
	}
}

func TestPollWireFormat(t *testing.T) {
	client, server := setupTestServer(t)

	created := createPizza(t, client)
	id := created.Session.ID

	post := func(since int64) map[string]any {
		t.Helper()
		body, _ := json.Marshal(api.PollRequest{SessionID: id, LastUpdate: since})
		resp, err := http.Post(server.URL+apiconnect.SessionServicePollProcedure, "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("POST failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var out map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		return out
	}

	full := post(0)
	if full["has_changes"] != true || full["status"] != "assigning" {
		t.Errorf("unexpected poll: %v", full)
	}
	if v, ok := full["totals"]; !ok || v != nil {
		t.Errorf("totals = %v (present %v), want null", v, ok)
	}
	for _, key := range []string{"participants", "items", "assignments", "charges", "last_updated"} {
		if _, ok := full[key]; !ok {
			t.Errorf("poll response missing %q", key)
		}
	}

	same := post(created.Session.LastUpdated)
	if same["has_changes"] != false {
		t.Errorf("expected has_changes=false, got %v", same)
	}
	if _, ok := same["participants"]; ok {
		t.Error("unchanged poll should not carry the session")
	}
}

func TestCreateSessionFromReceipt(t *testing.T) {
	client, _ := setupTestServer(t)
	ctx := context.Background()

	receipt := json.RawMessage(`{
		"title": "Tacos",
		"subtotal": 30,
		"items": [
			{"name": "Taco", "unit_price": 5, "quantity": 4},
			{"name": "Guacamole", "unit_price": 10, "mode": "grupal"}
		],
		"charges": [{"name": "IVA", "value": 19, "value_type": "percent"}]
	}`)
	resp, err := client.CreateSession(ctx, connect.NewRequest(&api.CreateSessionRequest{HostName: "Host", Receipt: receipt}))
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	s := resp.Msg.Session
	if s.Title != "Tacos" || s.Subtotal != 30 || len(s.Items) != 2 || len(s.Charges) != 1 {
		t.Fatalf("unexpected seeded session: %+v", s)
	}
	if s.Charges[0].Distribution != "proportional" {
		t.Errorf("distribution = %q, want proportional", s.Charges[0].Distribution)
	}

	_, err = client.CreateSession(ctx, connect.NewRequest(&api.CreateSessionRequest{HostName: "Host", Receipt: json.RawMessage(`{"items": []}`)}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("empty receipt code = %v, want InvalidArgument", connect.CodeOf(err))
	}

	exported, err := client.ExportTotals(ctx, connect.NewRequest(&api.ExportTotalsRequest{SessionID: s.ID}))
	if err != nil {
		t.Fatalf("ExportTotals failed: %v", err)
	}
	if !bytes.HasPrefix(exported.Msg.Content, []byte("PK")) || !strings.HasSuffix(exported.Msg.Filename, ".xlsx") {
		t.Errorf("unexpected export %q (%d bytes)", exported.Msg.Filename, len(exported.Msg.Content))
	}
}

func TestParticipantsAndSettings(t *testing.T) {
	client, _ := setupTestServer(t)
	ctx := context.Background()

	created := createPizza(t, client)
	id, host, token := created.Session.ID, created.HostID, created.OwnerToken
	ana := join(t, client, id, "Ana")

	name := "Ana María"
	resp, err := client.UpdateParticipant(ctx, as(&api.UpdateParticipantRequest{SessionID: id, ParticipantID: ana, Name: &name}, ana, ""))
	if err != nil {
		t.Fatalf("UpdateParticipant failed: %v", err)
	}
	if resp.Msg.Session.Participants[1].Name != name {
		t.Errorf("name = %q, want %q", resp.Msg.Session.Participants[1].Name, name)
	}

	passcode := "1234"
	title := "Friday"
	if _, err := client.UpdateSettings(ctx, connect.NewRequest(&api.UpdateSettingsRequest{SessionID: id, Title: &title, Passcode: &passcode, OwnerToken: token})); err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	_, err = client.Join(ctx, connect.NewRequest(&api.JoinRequest{SessionID: id, Name: "Ben"}))
	if connect.CodeOf(err) != connect.CodePermissionDenied {
		t.Errorf("join without passcode code = %v, want PermissionDenied", connect.CodeOf(err))
	}

	resp, err = client.RemoveParticipant(ctx, as(&api.RemoveParticipantRequest{SessionID: id, ParticipantID: ana}, host, token))
	if err != nil {
		t.Fatalf("RemoveParticipant failed: %v", err)
	}
	if len(resp.Msg.Session.Participants) != 1 || !resp.Msg.Session.HasPasscode || resp.Msg.Session.Title != title {
		t.Errorf("unexpected session after removal: %+v", resp.Msg.Session)
	}
}

// testClock is a settable manager clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func TestExpiredSessionWithOwnerToken(t *testing.T) {
	// The session is created two hours in the past with a one hour TTL, so
	// both it and its owner token are expired at the real current time.
	clock := &testClock{now: time.Now().Add(-2 * time.Hour)}
	client, _ := setupTestServer(t, session.WithClock(clock.Now), session.WithTTL(time.Hour))
	ctx := context.Background()

	created := createPizza(t, client)
	id, host, token := created.Session.ID, created.HostID, created.OwnerToken
	editor := join(t, client, id, "Ana")

	clock.Set(time.Now())

	tests := []struct {
		name string
		call func() error
	}{
		{"editor poll", func() error {
			_, err := client.Poll(ctx, as(&api.PollRequest{SessionID: id}, editor, ""))
			return err
		}},
		{"host poll with bearer token", func() error {
			_, err := client.Poll(ctx, as(&api.PollRequest{SessionID: id}, host, token))
			return err
		}},
		{"host assign with bearer token", func() error {
			_, err := client.Assign(ctx, as(&api.AssignRequest{SessionID: id, ItemID: "pizza", ParticipantID: host, Quantity: 1, IsAssigned: true}, host, token))
			return err
		}},
		{"host finalize with body token", func() error {
			_, err := client.Finalize(ctx, connect.NewRequest(&api.FinalizeRequest{SessionID: id, OwnerToken: token}))
			return err
		}},
		{"host charges with body token", func() error {
			_, err := client.UpdateCharges(ctx, connect.NewRequest(&api.UpdateChargesRequest{SessionID: id, OwnerToken: token}))
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := connect.CodeOf(tt.call()); code != connect.CodeNotFound {
				t.Errorf("code = %v, want %v", code, connect.CodeNotFound)
			}
		})
	}
}

func TestPhonesOnlyForHost(t *testing.T) {
	client, _ := setupTestServer(t)
	ctx := context.Background()

	created := createPizza(t, client)
	id, host, token := created.Session.ID, created.HostID, created.OwnerToken

	joined, err := client.Join(ctx, connect.NewRequest(&api.JoinRequest{SessionID: id, Name: "Ana", Phone: "+14155550123"}))
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	ana := joined.Msg.Participant.ID
	if joined.Msg.Participant.Phone != "+14155550123" {
		t.Errorf("joiner's own phone = %q, want it echoed back", joined.Msg.Participant.Phone)
	}

	phoneOf := func(s *api.Session, participantID string) string {
		for _, p := range s.Participants {
			if p.ID == participantID {
				return p.Phone
			}
		}
		return ""
	}

	if phone := phoneOf(joined.Msg.Session, ana); phone != "" {
		t.Errorf("Join session snapshot leaked phone %q", phone)
	}

	editorPoll, err := client.Poll(ctx, as(&api.PollRequest{SessionID: id}, ana, ""))
	if err != nil {
		t.Fatalf("editor Poll failed: %v", err)
	}
	if phone := phoneOf(editorPoll.Msg.Session, ana); phone != "" {
		t.Errorf("editor Poll leaked phone %q", phone)
	}

	hostPoll, err := client.Poll(ctx, as(&api.PollRequest{SessionID: id}, host, token))
	if err != nil {
		t.Fatalf("host Poll failed: %v", err)
	}
	if phone := phoneOf(hostPoll.Msg.Session, ana); phone != "+14155550123" {
		t.Errorf("host Poll phone = %q, want +14155550123", phone)
	}

	assigned, err := client.Assign(ctx, as(&api.AssignRequest{SessionID: id, ItemID: "pizza", ParticipantID: ana, Quantity: 1, IsAssigned: true}, ana, ""))
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if phone := phoneOf(assigned.Msg.Session, ana); phone != "" {
		t.Errorf("Assign response leaked phone %q", phone)
	}
}

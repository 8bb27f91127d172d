package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splitlive/internal/auth"
	"github.com/mmynk/splitlive/internal/calculator"
	"github.com/mmynk/splitlive/internal/common"
	"github.com/mmynk/splitlive/internal/ingest"
	"github.com/mmynk/splitlive/internal/middleware"
	"github.com/mmynk/splitlive/internal/models"
	"github.com/mmynk/splitlive/internal/session"
	"github.com/mmynk/splitlive/pkg/api"
	"github.com/mmynk/splitlive/pkg/api/apiconnect"
)

var _ apiconnect.SessionServiceHandler = (*SessionService)(nil)

// SessionService implements the Connect SessionService
type SessionService struct {
	sessions *session.Manager
	tokens   *auth.TokenManager
	logger   *slog.Logger
}

// NewSessionService creates a SessionService on top of a session manager.
func NewSessionService(sessions *session.Manager, tokens *auth.TokenManager, logger *slog.Logger) *SessionService {
	return &SessionService{sessions: sessions, tokens: tokens, logger: logger}
}

// toConnectError maps the error taxonomy to Connect codes.
func toConnectError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, common.ErrForbidden):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, common.ErrInvalidCapacity):
		return connect.NewError(connect.CodeResourceExhausted, err)
	case errors.Is(err, common.ErrInvalidState):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, common.ErrInvalidInput):
		return connect.NewError(connect.CodeInvalidArgument, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// actor resolves the caller from the headers set by middleware.Identify,
// falling back to the updated_by and owner_token body fields.
func (s *SessionService) actor(ctx context.Context, updatedBy, ownerToken string) (auth.Actor, error) {
	a := middleware.ActorFrom(ctx)
	if a.ParticipantID == "" {
		a.ParticipantID = updatedBy
	}
	if a.Owner == nil && ownerToken != "" {
		claims, err := s.tokens.Validate(ownerToken)
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			// The session expired with it; let the manager say so.
		case err != nil:
			return a, toConnectError(common.Forbiddenf("%v", err))
		default:
			a.Owner = claims
		}
	}
	return a, nil
}

func requireSessionID(id string) error {
	if id == "" {
		return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session_id is required"))
	}
	return nil
}

// wireSession converts s for a. Only the host sees phone numbers.
func wireSession(a auth.Actor, s *models.Session) *api.Session {
	if s == nil {
		return nil
	}
	return api.FromSession(s, a.IsOwner(s))
}

func sessionResponse(a auth.Actor) func(*models.Session, error) (*connect.Response[api.SessionResponse], error) {
	return func(s *models.Session, err error) (*connect.Response[api.SessionResponse], error) {
		if err != nil {
			return nil, toConnectError(err)
		}
		return connect.NewResponse(&api.SessionResponse{Session: wireSession(a, s)}), nil
	}
}

// CreateSession starts a session, optionally seeded from an OCR receipt.
func (s *SessionService) CreateSession(ctx context.Context, req *connect.Request[api.CreateSessionRequest]) (*connect.Response[api.CreateSessionResponse], error) {
	msg := req.Msg
	params := session.CreateParams{
		Title:            msg.Title,
		HostName:         msg.HostName,
		HostPhone:        msg.HostPhone,
		Passcode:         msg.Passcode,
		Currency:         api.ModelCurrency(msg.Currency),
		Subtotal:         msg.Subtotal,
		Items:            api.ModelItems(msg.Items),
		Charges:          api.ModelCharges(msg.Charges),
		AllowEditorItems: msg.AllowEditorItems,
	}

	if len(msg.Receipt) > 0 {
		receipt, err := ingest.Parse(msg.Receipt)
		if err != nil {
			s.logger.Warn("CreateSession: rejected receipt", "error", err)
			return nil, toConnectError(err)
		}
		params.Items = receipt.ModelItems()
		params.Charges = receipt.ModelCharges()
		params.Subtotal = receipt.Subtotal
		if params.Title == "" {
			params.Title = receipt.Title
		}
	}

	created, err := s.sessions.Create(ctx, params)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.CreateSessionResponse{
		Session:    api.FromSession(created.Session, true),
		HostID:     created.Host.ID,
		OwnerToken: created.OwnerToken,
	}), nil
}

// Join adds an editor to a session.
func (s *SessionService) Join(ctx context.Context, req *connect.Request[api.JoinRequest]) (*connect.Response[api.JoinResponse], error) {
	if err := requireSessionID(req.Msg.SessionID); err != nil {
		return nil, err
	}
	sess, p, err := s.sessions.Join(ctx, req.Msg.SessionID, session.JoinParams{
		Name:     req.Msg.Name,
		Phone:    req.Msg.Phone,
		Passcode: req.Msg.Passcode,
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.JoinResponse{
		Participant: api.FromParticipant(p),
		Session:     api.FromSession(sess, false),
	}), nil
}

// Assign toggles one participant's claim in one scope.
func (s *SessionService) Assign(ctx context.Context, req *connect.Request[api.AssignRequest]) (*connect.Response[api.SessionResponse], error) {
	msg := req.Msg
	if err := requireSessionID(msg.SessionID); err != nil {
		return nil, err
	}
	actor, err := s.actor(ctx, msg.UpdatedBy, "")
	if err != nil {
		return nil, err
	}
	scope, err := api.ParseScope(msg.ItemID)
	if err != nil {
		return nil, toConnectError(err)
	}
	participantID := msg.ParticipantID
	if participantID == "" {
		participantID = actor.ID()
	}
	return sessionResponse(actor)(s.sessions.Assign(ctx, msg.SessionID, actor, session.AssignParams{
		Scope:         scope,
		ParticipantID: participantID,
		Quantity:      msg.Quantity,
		Assigned:      msg.IsAssigned,
	}))
}

// AssignAll assigns everyone to a grupal scope, or clears it.
func (s *SessionService) AssignAll(ctx context.Context, req *connect.Request[api.AssignAllRequest]) (*connect.Response[api.SessionResponse], error) {
	msg := req.Msg
	if err := requireSessionID(msg.SessionID); err != nil {
		return nil, err
	}
	actor, err := s.actor(ctx, msg.UpdatedBy, "")
	if err != nil {
		return nil, err
	}
	scope, err := api.ParseScope(msg.ItemID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return sessionResponse(actor)(s.sessions.AssignAll(ctx, msg.SessionID, actor, scope, msg.IsAssigned))
}

// SetItemMode switches an item between individual, all and unit.
func (s *SessionService) SetItemMode(ctx context.Context, req *connect.Request[api.SetItemModeRequest]) (*connect.Response[api.SessionResponse], error) {
	msg := req.Msg
	if err := requireSessionID(msg.SessionID); err != nil {
		return nil, err
	}
	actor, err := s.actor(ctx, msg.UpdatedBy, "")
	if err != nil {
		return nil, err
	}
	mode, err := api.ModelMode(msg.Mode)
	if err != nil {
		return nil, toConnectError(err)
	}
	return sessionResponse(actor)(s.sessions.SetItemMode(ctx, msg.SessionID, actor, msg.ItemID, mode))
}

// AddItem appends an item.
func (s *SessionService) AddItem(ctx context.Context, req *connect.Request[api.AddItemRequest]) (*connect.Response[api.AddItemResponse], error) {
	msg := req.Msg
	if err := requireSessionID(msg.SessionID); err != nil {
		return nil, err
	}
	actor, err := s.actor(ctx, msg.UpdatedBy, "")
	if err != nil {
		return nil, err
	}
	sess, item, err := s.sessions.AddItem(ctx, msg.SessionID, actor, api.ModelItems([]api.Item{msg.Item})[0])
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.AddItemResponse{
		Item:    api.FromItem(item),
		Session: wireSession(actor, sess),
	}), nil
}

// UpdateItem edits an item's name, price or quantity.
func (s *SessionService) UpdateItem(ctx context.Context, req *connect.Request[api.UpdateItemRequest]) (*connect.Response[api.SessionResponse], error) {
	msg := req.Msg
	if err := requireSessionID(msg.SessionID); err != nil {
		return nil, err
	}
	actor, err := s.actor(ctx, msg.UpdatedBy, "")
	if err != nil {
		return nil, err
	}
	return sessionResponse(actor)(s.sessions.UpdateItem(ctx, msg.SessionID, actor, msg.ItemID, session.ItemPatch{
		Name:      msg.Name,
		UnitPrice: msg.UnitPrice,
		Quantity:  msg.Quantity,
	}))
}

// DeleteItem removes an item and its claims.
func (s *SessionService) DeleteItem(ctx context.Context, req *connect.Request[api.DeleteItemRequest]) (*connect.Response[api.SessionResponse], error) {
	msg := req.Msg
	if err := requireSessionID(msg.SessionID); err != nil {
		return nil, err
	}
	actor, err := s.actor(ctx, msg.UpdatedBy, "")
	if err != nil {
		return nil, err
	}
	return sessionResponse(actor)(s.sessions.DeleteItem(ctx, msg.SessionID, actor, msg.ItemID))
}

// UpdateParticipant edits a participant's name or phone.
func (s *SessionService) UpdateParticipant(ctx context.Context, req *connect.Request[api.UpdateParticipantRequest]) (*connect.Response[api.SessionResponse], error) {
	msg := req.Msg
	if err := requireSessionID(msg.SessionID); err != nil {
		return nil, err
	}
	actor, err := s.actor(ctx, msg.UpdatedBy, "")
	if err != nil {
		return nil, err
	}
	return sessionResponse(actor)(s.sessions.UpdateParticipant(ctx, msg.SessionID, actor, msg.ParticipantID, session.ParticipantPatch{
		Name:  msg.Name,
		Phone: msg.Phone,
	}))
}

// RemoveParticipant removes a participant; editors may only remove themselves.
func (s *SessionService) RemoveParticipant(ctx context.Context, req *connect.Request[api.RemoveParticipantRequest]) (*connect.Response[api.SessionResponse], error) {
	msg := req.Msg
	if err := requireSessionID(msg.SessionID); err != nil {
		return nil, err
	}
	actor, err := s.actor(ctx, msg.UpdatedBy, "")
	if err != nil {
		return nil, err
	}
	return sessionResponse(actor)(s.sessions.RemoveParticipant(ctx, msg.SessionID, actor, msg.ParticipantID))
}

// UpdateCharges replaces the charge list.
func (s *SessionService) UpdateCharges(ctx context.Context, req *connect.Request[api.UpdateChargesRequest]) (*connect.Response[api.SessionResponse], error) {
	msg := req.Msg
	if err := requireSessionID(msg.SessionID); err != nil {
		return nil, err
	}
	actor, err := s.actor(ctx, "", msg.OwnerToken)
	if err != nil {
		return nil, err
	}
	return sessionResponse(actor)(s.sessions.UpdateCharges(ctx, msg.SessionID, actor, api.ModelCharges(msg.Charges)))
}

// UpdateSettings edits the session's title, currency, permissions and passcode.
func (s *SessionService) UpdateSettings(ctx context.Context, req *connect.Request[api.UpdateSettingsRequest]) (*connect.Response[api.SessionResponse], error) {
	msg := req.Msg
	if err := requireSessionID(msg.SessionID); err != nil {
		return nil, err
	}
	actor, err := s.actor(ctx, "", msg.OwnerToken)
	if err != nil {
		return nil, err
	}
	return sessionResponse(actor)(s.sessions.UpdateSettings(ctx, msg.SessionID, actor, session.SettingsPatch{
		Title:            msg.Title,
		Currency:         api.ModelCurrency(msg.Currency),
		AllowEditorItems: msg.AllowEditorItems,
		Passcode:         msg.Passcode,
	}))
}

// Finalize freezes the totals.
func (s *SessionService) Finalize(ctx context.Context, req *connect.Request[api.FinalizeRequest]) (*connect.Response[api.FinalizeResponse], error) {
	msg := req.Msg
	if err := requireSessionID(msg.SessionID); err != nil {
		return nil, err
	}
	actor, err := s.actor(ctx, "", msg.OwnerToken)
	if err != nil {
		return nil, err
	}
	res, err := s.sessions.Finalize(ctx, msg.SessionID, actor)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.FinalizeResponse{
		Status:     string(res.Session.Status),
		Totals:     api.FromTotals(res.Session.Totals),
		Reconciled: res.Reconciled,
		Session:    wireSession(actor, res.Session),
	}), nil
}

// Reopen discards the frozen totals.
func (s *SessionService) Reopen(ctx context.Context, req *connect.Request[api.ReopenRequest]) (*connect.Response[api.ReopenResponse], error) {
	msg := req.Msg
	if err := requireSessionID(msg.SessionID); err != nil {
		return nil, err
	}
	actor, err := s.actor(ctx, "", msg.OwnerToken)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Reopen(ctx, msg.SessionID, actor)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.ReopenResponse{
		Status:  string(sess.Status),
		Session: wireSession(actor, sess),
	}), nil
}

// Poll returns the full session when it changed after last_update.
func (s *SessionService) Poll(ctx context.Context, req *connect.Request[api.PollRequest]) (*connect.Response[api.PollResponse], error) {
	if err := requireSessionID(req.Msg.SessionID); err != nil {
		return nil, err
	}
	res, err := s.sessions.Poll(ctx, req.Msg.SessionID, req.Msg.LastUpdate)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.PollResponse{
		HasChanges:  res.HasChanges,
		LastUpdated: res.LastUpdated,
		Session:     wireSession(middleware.ActorFrom(ctx), res.Session),
	}), nil
}

// GetSummary renders the totals as chat text.
func (s *SessionService) GetSummary(ctx context.Context, req *connect.Request[api.GetSummaryRequest]) (*connect.Response[api.GetSummaryResponse], error) {
	if err := requireSessionID(req.Msg.SessionID); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, toConnectError(err)
	}
	totals := session.Totals(sess)
	return connect.NewResponse(&api.GetSummaryResponse{
		Text:   calculator.Summary(sess, totals),
		Totals: api.FromTotals(totals),
	}), nil
}

// ExportTotals returns the totals as an XLSX workbook.
func (s *SessionService) ExportTotals(ctx context.Context, req *connect.Request[api.ExportTotalsRequest]) (*connect.Response[api.ExportTotalsResponse], error) {
	if err := requireSessionID(req.Msg.SessionID); err != nil {
		return nil, err
	}
	data, err := s.sessions.ExportTotals(ctx, req.Msg.SessionID)
	if err != nil {
		s.logger.Error("ExportTotals failed", "session_id", req.Msg.SessionID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.ExportTotalsResponse{
		Filename: "splitlive-" + req.Msg.SessionID + ".xlsx",
		Content:  data,
	}), nil
}

// Package apiconnect wires the api messages to Connect handlers and clients
// for splitlive.v1.SessionService.
package apiconnect

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitlive/pkg/api"
)

// SessionServiceName is the fully-qualified name of the SessionService service.
const SessionServiceName = "splitlive.v1.SessionService"

// Procedure paths, in the form "/service/method".
const (
	SessionServiceCreateSessionProcedure     = "/splitlive.v1.SessionService/CreateSession"
	SessionServiceJoinProcedure              = "/splitlive.v1.SessionService/Join"
	SessionServiceAssignProcedure            = "/splitlive.v1.SessionService/Assign"
	SessionServiceAssignAllProcedure         = "/splitlive.v1.SessionService/AssignAll"
	SessionServiceSetItemModeProcedure       = "/splitlive.v1.SessionService/SetItemMode"
	SessionServiceAddItemProcedure           = "/splitlive.v1.SessionService/AddItem"
	SessionServiceUpdateItemProcedure        = "/splitlive.v1.SessionService/UpdateItem"
	SessionServiceDeleteItemProcedure        = "/splitlive.v1.SessionService/DeleteItem"
	SessionServiceUpdateParticipantProcedure = "/splitlive.v1.SessionService/UpdateParticipant"
	SessionServiceRemoveParticipantProcedure = "/splitlive.v1.SessionService/RemoveParticipant"
	SessionServiceUpdateChargesProcedure     = "/splitlive.v1.SessionService/UpdateCharges"
	SessionServiceUpdateSettingsProcedure    = "/splitlive.v1.SessionService/UpdateSettings"
	SessionServiceFinalizeProcedure          = "/splitlive.v1.SessionService/Finalize"
	SessionServiceReopenProcedure            = "/splitlive.v1.SessionService/Reopen"
	SessionServicePollProcedure              = "/splitlive.v1.SessionService/Poll"
	SessionServiceGetSummaryProcedure        = "/splitlive.v1.SessionService/GetSummary"
	SessionServiceExportTotalsProcedure      = "/splitlive.v1.SessionService/ExportTotals"
)

// Headers identifying the caller. The owner token travels as a bearer token.
const (
	ParticipantIDHeader = "Participant-Id"
	AuthorizationHeader = "Authorization"
)

// Codec encodes api messages as plain JSON. It is registered under the name
// "json", replacing connect's protobuf JSON codec.
type Codec struct{}

func (Codec) Name() string                       { return "json" }
func (Codec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// SessionServiceClient is a client for the splitlive.v1.SessionService service.
type SessionServiceClient interface {
	CreateSession(context.Context, *connect.Request[api.CreateSessionRequest]) (*connect.Response[api.CreateSessionResponse], error)
	Join(context.Context, *connect.Request[api.JoinRequest]) (*connect.Response[api.JoinResponse], error)
	Assign(context.Context, *connect.Request[api.AssignRequest]) (*connect.Response[api.SessionResponse], error)
	AssignAll(context.Context, *connect.Request[api.AssignAllRequest]) (*connect.Response[api.SessionResponse], error)
	SetItemMode(context.Context, *connect.Request[api.SetItemModeRequest]) (*connect.Response[api.SessionResponse], error)
	AddItem(context.Context, *connect.Request[api.AddItemRequest]) (*connect.Response[api.AddItemResponse], error)
	UpdateItem(context.Context, *connect.Request[api.UpdateItemRequest]) (*connect.Response[api.SessionResponse], error)
	DeleteItem(context.Context, *connect.Request[api.DeleteItemRequest]) (*connect.Response[api.SessionResponse], error)
	UpdateParticipant(context.Context, *connect.Request[api.UpdateParticipantRequest]) (*connect.Response[api.SessionResponse], error)
	RemoveParticipant(context.Context, *connect.Request[api.RemoveParticipantRequest]) (*connect.Response[api.SessionResponse], error)
	UpdateCharges(context.Context, *connect.Request[api.UpdateChargesRequest]) (*connect.Response[api.SessionResponse], error)
	UpdateSettings(context.Context, *connect.Request[api.UpdateSettingsRequest]) (*connect.Response[api.SessionResponse], error)
	Finalize(context.Context, *connect.Request[api.FinalizeRequest]) (*connect.Response[api.FinalizeResponse], error)
	Reopen(context.Context, *connect.Request[api.ReopenRequest]) (*connect.Response[api.ReopenResponse], error)
	Poll(context.Context, *connect.Request[api.PollRequest]) (*connect.Response[api.PollResponse], error)
	GetSummary(context.Context, *connect.Request[api.GetSummaryRequest]) (*connect.Response[api.GetSummaryResponse], error)
	ExportTotals(context.Context, *connect.Request[api.ExportTotalsRequest]) (*connect.Response[api.ExportTotalsResponse], error)
}

// NewSessionServiceClient constructs a client for the
// splitlive.v1.SessionService service. baseURL is the server root, e.g.
// http://localhost:8080.
func NewSessionServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) SessionServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &sessionServiceClient{
		createSession:     connect.NewClient[api.CreateSessionRequest, api.CreateSessionResponse](httpClient, baseURL+SessionServiceCreateSessionProcedure, opts...),
		join:              connect.NewClient[api.JoinRequest, api.JoinResponse](httpClient, baseURL+SessionServiceJoinProcedure, opts...),
		assign:            connect.NewClient[api.AssignRequest, api.SessionResponse](httpClient, baseURL+SessionServiceAssignProcedure, opts...),
		assignAll:         connect.NewClient[api.AssignAllRequest, api.SessionResponse](httpClient, baseURL+SessionServiceAssignAllProcedure, opts...),
		setItemMode:       connect.NewClient[api.SetItemModeRequest, api.SessionResponse](httpClient, baseURL+SessionServiceSetItemModeProcedure, opts...),
		addItem:           connect.NewClient[api.AddItemRequest, api.AddItemResponse](httpClient, baseURL+SessionServiceAddItemProcedure, opts...),
		updateItem:        connect.NewClient[api.UpdateItemRequest, api.SessionResponse](httpClient, baseURL+SessionServiceUpdateItemProcedure, opts...),
		deleteItem:        connect.NewClient[api.DeleteItemRequest, api.SessionResponse](httpClient, baseURL+SessionServiceDeleteItemProcedure, opts...),
		updateParticipant: connect.NewClient[api.UpdateParticipantRequest, api.SessionResponse](httpClient, baseURL+SessionServiceUpdateParticipantProcedure, opts...),
		removeParticipant: connect.NewClient[api.RemoveParticipantRequest, api.SessionResponse](httpClient, baseURL+SessionServiceRemoveParticipantProcedure, opts...),
		updateCharges:     connect.NewClient[api.UpdateChargesRequest, api.SessionResponse](httpClient, baseURL+SessionServiceUpdateChargesProcedure, opts...),
		updateSettings:    connect.NewClient[api.UpdateSettingsRequest, api.SessionResponse](httpClient, baseURL+SessionServiceUpdateSettingsProcedure, opts...),
		finalize:          connect.NewClient[api.FinalizeRequest, api.FinalizeResponse](httpClient, baseURL+SessionServiceFinalizeProcedure, opts...),
		reopen:            connect.NewClient[api.ReopenRequest, api.ReopenResponse](httpClient, baseURL+SessionServiceReopenProcedure, opts...),
		poll:              connect.NewClient[api.PollRequest, api.PollResponse](httpClient, baseURL+SessionServicePollProcedure, opts...),
		getSummary:        connect.NewClient[api.GetSummaryRequest, api.GetSummaryResponse](httpClient, baseURL+SessionServiceGetSummaryProcedure, opts...),
		exportTotals:      connect.NewClient[api.ExportTotalsRequest, api.ExportTotalsResponse](httpClient, baseURL+SessionServiceExportTotalsProcedure, opts...),
	}
}

type sessionServiceClient struct {
	createSession     *connect.Client[api.CreateSessionRequest, api.CreateSessionResponse]
	join              *connect.Client[api.JoinRequest, api.JoinResponse]
	assign            *connect.Client[api.AssignRequest, api.SessionResponse]
	assignAll         *connect.Client[api.AssignAllRequest, api.SessionResponse]
	setItemMode       *connect.Client[api.SetItemModeRequest, api.SessionResponse]
	addItem           *connect.Client[api.AddItemRequest, api.AddItemResponse]
	updateItem        *connect.Client[api.UpdateItemRequest, api.SessionResponse]
	deleteItem        *connect.Client[api.DeleteItemRequest, api.SessionResponse]
	updateParticipant *connect.Client[api.UpdateParticipantRequest, api.SessionResponse]
	removeParticipant *connect.Client[api.RemoveParticipantRequest, api.SessionResponse]
	updateCharges     *connect.Client[api.UpdateChargesRequest, api.SessionResponse]
	updateSettings    *connect.Client[api.UpdateSettingsRequest, api.SessionResponse]
	finalize          *connect.Client[api.FinalizeRequest, api.FinalizeResponse]
	reopen            *connect.Client[api.ReopenRequest, api.ReopenResponse]
	poll              *connect.Client[api.PollRequest, api.PollResponse]
	getSummary        *connect.Client[api.GetSummaryRequest, api.GetSummaryResponse]
	exportTotals      *connect.Client[api.ExportTotalsRequest, api.ExportTotalsResponse]
}

func (c *sessionServiceClient) CreateSession(ctx context.Context, req *connect.Request[api.CreateSessionRequest]) (*connect.Response[api.CreateSessionResponse], error) {
	return c.createSession.CallUnary(ctx, req)
}

func (c *sessionServiceClient) Join(ctx context.Context, req *connect.Request[api.JoinRequest]) (*connect.Response[api.JoinResponse], error) {
	return c.join.CallUnary(ctx, req)
}

func (c *sessionServiceClient) Assign(ctx context.Context, req *connect.Request[api.AssignRequest]) (*connect.Response[api.SessionResponse], error) {
	return c.assign.CallUnary(ctx, req)
}

func (c *sessionServiceClient) AssignAll(ctx context.Context, req *connect.Request[api.AssignAllRequest]) (*connect.Response[api.SessionResponse], error) {
	return c.assignAll.CallUnary(ctx, req)
}

func (c *sessionServiceClient) SetItemMode(ctx context.Context, req *connect.Request[api.SetItemModeRequest]) (*connect.Response[api.SessionResponse], error) {
	return c.setItemMode.CallUnary(ctx, req)
}

func (c *sessionServiceClient) AddItem(ctx context.Context, req *connect.Request[api.AddItemRequest]) (*connect.Response[api.AddItemResponse], error) {
	return c.addItem.CallUnary(ctx, req)
}

func (c *sessionServiceClient) UpdateItem(ctx context.Context, req *connect.Request[api.UpdateItemRequest]) (*connect.Response[api.SessionResponse], error) {
	return c.updateItem.CallUnary(ctx, req)
}

func (c *sessionServiceClient) DeleteItem(ctx context.Context, req *connect.Request[api.DeleteItemRequest]) (*connect.Response[api.SessionResponse], error) {
	return c.deleteItem.CallUnary(ctx, req)
}

func (c *sessionServiceClient) UpdateParticipant(ctx context.Context, req *connect.Request[api.UpdateParticipantRequest]) (*connect.Response[api.SessionResponse], error) {
	return c.updateParticipant.CallUnary(ctx, req)
}

func (c *sessionServiceClient) RemoveParticipant(ctx context.Context, req *connect.Request[api.RemoveParticipantRequest]) (*connect.Response[api.SessionResponse], error) {
	return c.removeParticipant.CallUnary(ctx, req)
}

func (c *sessionServiceClient) UpdateCharges(ctx context.Context, req *connect.Request[api.UpdateChargesRequest]) (*connect.Response[api.SessionResponse], error) {
	return c.updateCharges.CallUnary(ctx, req)
}

func (c *sessionServiceClient) UpdateSettings(ctx context.Context, req *connect.Request[api.UpdateSettingsRequest]) (*connect.Response[api.SessionResponse], error) {
	return c.updateSettings.CallUnary(ctx, req)
}

func (c *sessionServiceClient) Finalize(ctx context.Context, req *connect.Request[api.FinalizeRequest]) (*connect.Response[api.FinalizeResponse], error) {
	return c.finalize.CallUnary(ctx, req)
}

func (c *sessionServiceClient) Reopen(ctx context.Context, req *connect.Request[api.ReopenRequest]) (*connect.Response[api.ReopenResponse], error) {
	return c.reopen.CallUnary(ctx, req)
}

func (c *sessionServiceClient) Poll(ctx context.Context, req *connect.Request[api.PollRequest]) (*connect.Response[api.PollResponse], error) {
	return c.poll.CallUnary(ctx, req)
}

func (c *sessionServiceClient) GetSummary(ctx context.Context, req *connect.Request[api.GetSummaryRequest]) (*connect.Response[api.GetSummaryResponse], error) {
	return c.getSummary.CallUnary(ctx, req)
}

func (c *sessionServiceClient) ExportTotals(ctx context.Context, req *connect.Request[api.ExportTotalsRequest]) (*connect.Response[api.ExportTotalsResponse], error) {
	return c.exportTotals.CallUnary(ctx, req)
}

// SessionServiceHandler is implemented by the session service.
type SessionServiceHandler interface {
	CreateSession(context.Context, *connect.Request[api.CreateSessionRequest]) (*connect.Response[api.CreateSessionResponse], error)
	Join(context.Context, *connect.Request[api.JoinRequest]) (*connect.Response[api.JoinResponse], error)
	Assign(context.Context, *connect.Request[api.AssignRequest]) (*connect.Response[api.SessionResponse], error)
	AssignAll(context.Context, *connect.Request[api.AssignAllRequest]) (*connect.Response[api.SessionResponse], error)
	SetItemMode(context.Context, *connect.Request[api.SetItemModeRequest]) (*connect.Response[api.SessionResponse], error)
	AddItem(context.Context, *connect.Request[api.AddItemRequest]) (*connect.Response[api.AddItemResponse], error)
	UpdateItem(context.Context, *connect.Request[api.UpdateItemRequest]) (*connect.Response[api.SessionResponse], error)
	DeleteItem(context.Context, *connect.Request[api.DeleteItemRequest]) (*connect.Response[api.SessionResponse], error)
	UpdateParticipant(context.Context, *connect.Request[api.UpdateParticipantRequest]) (*connect.Response[api.SessionResponse], error)
	RemoveParticipant(context.Context, *connect.Request[api.RemoveParticipantRequest]) (*connect.Response[api.SessionResponse], error)
	UpdateCharges(context.Context, *connect.Request[api.UpdateChargesRequest]) (*connect.Response[api.SessionResponse], error)
	UpdateSettings(context.Context, *connect.Request[api.UpdateSettingsRequest]) (*connect.Response[api.SessionResponse], error)
	Finalize(context.Context, *connect.Request[api.FinalizeRequest]) (*connect.Response[api.FinalizeResponse], error)
	Reopen(context.Context, *connect.Request[api.ReopenRequest]) (*connect.Response[api.ReopenResponse], error)
	Poll(context.Context, *connect.Request[api.PollRequest]) (*connect.Response[api.PollResponse], error)
	GetSummary(context.Context, *connect.Request[api.GetSummaryRequest]) (*connect.Response[api.GetSummaryResponse], error)
	ExportTotals(context.Context, *connect.Request[api.ExportTotalsRequest]) (*connect.Response[api.ExportTotalsResponse], error)
}

// NewSessionServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewSessionServiceHandler(svc SessionServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)
	mux := http.NewServeMux()
	mux.Handle(SessionServiceCreateSessionProcedure, connect.NewUnaryHandler(SessionServiceCreateSessionProcedure, svc.CreateSession, opts...))
	mux.Handle(SessionServiceJoinProcedure, connect.NewUnaryHandler(SessionServiceJoinProcedure, svc.Join, opts...))
	mux.Handle(SessionServiceAssignProcedure, connect.NewUnaryHandler(SessionServiceAssignProcedure, svc.Assign, opts...))
	mux.Handle(SessionServiceAssignAllProcedure, connect.NewUnaryHandler(SessionServiceAssignAllProcedure, svc.AssignAll, opts...))
	mux.Handle(SessionServiceSetItemModeProcedure, connect.NewUnaryHandler(SessionServiceSetItemModeProcedure, svc.SetItemMode, opts...))
	mux.Handle(SessionServiceAddItemProcedure, connect.NewUnaryHandler(SessionServiceAddItemProcedure, svc.AddItem, opts...))
	mux.Handle(SessionServiceUpdateItemProcedure, connect.NewUnaryHandler(SessionServiceUpdateItemProcedure, svc.UpdateItem, opts...))
	mux.Handle(SessionServiceDeleteItemProcedure, connect.NewUnaryHandler(SessionServiceDeleteItemProcedure, svc.DeleteItem, opts...))
	mux.Handle(SessionServiceUpdateParticipantProcedure, connect.NewUnaryHandler(SessionServiceUpdateParticipantProcedure, svc.UpdateParticipant, opts...))
	mux.Handle(SessionServiceRemoveParticipantProcedure, connect.NewUnaryHandler(SessionServiceRemoveParticipantProcedure, svc.RemoveParticipant, opts...))
	mux.Handle(SessionServiceUpdateChargesProcedure, connect.NewUnaryHandler(SessionServiceUpdateChargesProcedure, svc.UpdateCharges, opts...))
	mux.Handle(SessionServiceUpdateSettingsProcedure, connect.NewUnaryHandler(SessionServiceUpdateSettingsProcedure, svc.UpdateSettings, opts...))
	mux.Handle(SessionServiceFinalizeProcedure, connect.NewUnaryHandler(SessionServiceFinalizeProcedure, svc.Finalize, opts...))
	mux.Handle(SessionServiceReopenProcedure, connect.NewUnaryHandler(SessionServiceReopenProcedure, svc.Reopen, opts...))
	mux.Handle(SessionServicePollProcedure, connect.NewUnaryHandler(SessionServicePollProcedure, svc.Poll, opts...))
	mux.Handle(SessionServiceGetSummaryProcedure, connect.NewUnaryHandler(SessionServiceGetSummaryProcedure, svc.GetSummary, opts...))
	mux.Handle(SessionServiceExportTotalsProcedure, connect.NewUnaryHandler(SessionServiceExportTotalsProcedure, svc.ExportTotals, opts...))
	return "/" + SessionServiceName + "/", mux
}

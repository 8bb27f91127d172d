package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/splitlive/internal/auth"
	"github.com/mmynk/splitlive/pkg/api"
	"github.com/mmynk/splitlive/pkg/api/apiconnect"
)

// setupEchoServer serves GetSummary with a handler that echoes the actor.
func setupEchoServer(t *testing.T, tokens *auth.TokenManager) *connect.Client[api.GetSummaryRequest, api.GetSummaryResponse] {
	t.Helper()

	echo := func(ctx context.Context, _ *connect.Request[api.GetSummaryRequest]) (*connect.Response[api.GetSummaryResponse], error) {
		a := ActorFrom(ctx)
		text := a.ParticipantID
		if a.Owner != nil {
			text += "|owner:" + a.Owner.SessionID
		}
		return connect.NewResponse(&api.GetSummaryResponse{Text: text}), nil
	}

	interceptors := connect.WithInterceptors(
		MetricsInterceptor(),
		Identify(tokens),
		LoggingInterceptor(slog.Default()),
	)
	mux := http.NewServeMux()
	mux.Handle(apiconnect.SessionServiceGetSummaryProcedure, connect.NewUnaryHandler(
		apiconnect.SessionServiceGetSummaryProcedure, echo,
		connect.WithCodec(apiconnect.Codec{}), interceptors,
	))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return connect.NewClient[api.GetSummaryRequest, api.GetSummaryResponse](
		http.DefaultClient,
		server.URL+apiconnect.SessionServiceGetSummaryProcedure,
		connect.WithCodec(apiconnect.Codec{}),
	)
}

func TestIdentify(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret")
	client := setupEchoServer(t, tokens)

	ownerToken, err := tokens.Generate("s1", "host", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	expiredToken, err := tokens.Generate("s1", "host", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	tests := []struct {
		name          string
		participantID string
		authorization string
		want          string
		wantCode      connect.Code
	}{
		{name: "anonymous", want: ""},
		{name: "participant", participantID: "ana", want: "ana"},
		{name: "owner", participantID: "host", authorization: "Bearer " + ownerToken, want: "host|owner:s1"},
		{name: "bad scheme", authorization: "Basic abc", wantCode: connect.CodeUnauthenticated},
		{name: "bad token", authorization: "Bearer nope", wantCode: connect.CodeUnauthenticated},
		{name: "expired token", participantID: "host", authorization: "Bearer " + expiredToken, want: "host"},
		{name: "expired token wrong secret", authorization: "Bearer " + mustForeignToken(t), wantCode: connect.CodeUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := connect.NewRequest(&api.GetSummaryRequest{SessionID: "s1"})
			if tt.participantID != "" {
				req.Header().Set(apiconnect.ParticipantIDHeader, tt.participantID)
			}
			if tt.authorization != "" {
				req.Header().Set(apiconnect.AuthorizationHeader, tt.authorization)
			}

			resp, err := client.CallUnary(context.Background(), req)
			if tt.wantCode != 0 {
				if connect.CodeOf(err) != tt.wantCode {
					t.Fatalf("code = %v, want %v (err %v)", connect.CodeOf(err), tt.wantCode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Msg.Text != tt.want {
				t.Errorf("actor = %q, want %q", resp.Msg.Text, tt.want)
			}
		})
	}
}

func mustForeignToken(t *testing.T) string {
	t.Helper()
	token, err := auth.NewTokenManager("other-secret").Generate("s1", "host", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return token
}

func TestActorFromEmptyContext(t *testing.T) {
	a := ActorFrom(context.Background())
	if a.ParticipantID != "" || a.Owner != nil {
		t.Errorf("expected zero actor, got %+v", a)
	}
}

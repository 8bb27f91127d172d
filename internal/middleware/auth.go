package middleware

import (
	"context"
	"errors"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitlive/internal/auth"
	"github.com/mmynk/splitlive/pkg/api/apiconnect"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// actorKey is the context key for the caller's auth.Actor.
const actorKey contextKey = "actor"

// WithActor stores the caller in ctx.
func WithActor(ctx context.Context, a auth.Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFrom extracts the caller from ctx.
// Returns the zero Actor if not found.
func ActorFrom(ctx context.Context) auth.Actor {
	a, _ := ctx.Value(actorKey).(auth.Actor)
	return a
}

// Identify returns an interceptor that reads the caller from the request
// headers: the participant ID from Participant-Id and, when present, the
// owner token from "Authorization: Bearer <token>". Requests without a token
// pass through as plain participants, and so do requests whose token merely
// expired, leaving the expired session to be reported downstream. A
// malformed or invalid token is rejected.
func Identify(tokens *auth.TokenManager) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			actor := auth.Actor{
				ParticipantID: strings.TrimSpace(req.Header().Get(apiconnect.ParticipantIDHeader)),
			}

			if authHeader := req.Header().Get(apiconnect.AuthorizationHeader); authHeader != "" {
				parts := strings.Split(authHeader, " ")
				if len(parts) != 2 || parts[0] != "Bearer" {
					return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
				}
				claims, err := tokens.Validate(parts[1])
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					// Owner tokens expire with their session.
				case err != nil:
					return nil, connect.NewError(connect.CodeUnauthenticated, err)
				default:
					actor.Owner = claims
				}
			}

			return next(WithActor(ctx, actor), req)
		}
	}
}

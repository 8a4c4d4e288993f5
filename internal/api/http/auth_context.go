package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/haggle-hub/haggle-hub/internal/domain/offer"
)

type authContextKey string

const authUserKey authContextKey = "authUser"

// AuthUser represents the authenticated caller in context.
type AuthUser struct {
	ActorID uuid.UUID
}

func withAuthUser(ctx context.Context, u *AuthUser) context.Context {
	if u == nil {
		return ctx
	}
	return context.WithValue(ctx, authUserKey, u)
}

func authUserFromContext(ctx context.Context) *AuthUser {
	val := ctx.Value(authUserKey)
	if v, ok := val.(*AuthUser); ok {
		return v
	}
	return nil
}

// actorFromRequest returns the negotiation actor of an authenticated request.
func actorFromRequest(r *http.Request) offer.Actor {
	if u := authUserFromContext(r.Context()); u != nil {
		return offer.Actor{ID: u.ActorID}
	}
	return offer.SystemActor
}

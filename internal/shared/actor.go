package shared

import "context"

// Actor is the authenticated caller on whose behalf a service operation runs.
type Actor struct {
	UserID int64    `json:"user_id"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
	// TokenID is the jti of the bearer token the actor authenticated with.
	TokenID string `json:"-"`
}

// IsZero reports whether no caller is attached.
func (a Actor) IsZero() bool {
	return a.UserID == 0
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	if !ok || actor.IsZero() {
		return Actor{}, false
	}
	return actor, true
}

// Package authz implements the capability gate consulted before every
// enquiry operation.
package authz

import (
	"context"
	"slices"
)

// Actions.
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
)

// ResourceEnquiry names the enquiry resource class.
const ResourceEnquiry = "Enquiry"

// Actor is the authenticated principal on whose behalf a request runs.
type Actor struct {
	UserName string
	Role     string
}

// Gate answers capability questions. It has no side effects.
type Gate interface {
	Authorize(ctx context.Context, actor Actor, action, resource string) bool
}

// RoleGate grants actions by role. Permissions apply to every resource; an
// unknown role or an empty user name is denied.
type RoleGate struct {
	permissions map[string][]string
}

func NewRoleGate(permissions map[string][]string) *RoleGate {
	cp := make(map[string][]string, len(permissions))
	for role, actions := range permissions {
		cp[role] = slices.Clone(actions)
	}
	return &RoleGate{permissions: cp}
}

func (g *RoleGate) Authorize(ctx context.Context, actor Actor, action, resource string) bool {
	if actor.UserName == "" {
		return false
	}
	return slices.Contains(g.permissions[actor.Role], action)
}

// GateFunc adapts a function to Gate.
type GateFunc func(ctx context.Context, actor Actor, action, resource string) bool

func (f GateFunc) Authorize(ctx context.Context, actor Actor, action, resource string) bool {
	return f(ctx, actor, action, resource)
}

type ctxKey string

const actorKey ctxKey = "actor"

// WithActor stores actor in ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom returns the actor stored by WithActor.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}

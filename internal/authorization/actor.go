package authorization

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type ActorKind string

const (
	ActorAdmin    ActorKind = "admin"
	ActorCompany  ActorKind = "company"
	ActorEmployee ActorKind = "employee"
)

func ParseActorKind(value string) (ActorKind, bool) {
	switch ActorKind(value) {
	case ActorAdmin, ActorCompany, ActorEmployee:
		return ActorKind(value), true
	default:
		return "", false
	}
}

// Actor is the authenticated principal carried by the request credential.
type Actor struct {
	Kind           ActorKind
	ID             snowflake.ID
	CompanyID      snowflake.ID
	DepartmentID   snowflake.ID
	DepartmentName string
	Email          string
	Name           string
}

func (a Actor) Valid() bool {
	_, ok := ParseActorKind(string(a.Kind))
	return ok && a.ID != 0
}

func (a Actor) IDString() string {
	return a.ID.String()
}

// Resource carries the scoping ids of the target. The zero value addresses a collection.
type Resource struct {
	DepartmentID snowflake.ID
	CompanyID    *snowflake.ID
	EmployeeID   *snowflake.ID
	owned        bool
}

// Collection addresses a whole resource type (list, create without a known owner).
func Collection() Resource {
	return Resource{}
}

// Owned addresses a single row with its department, company and employee owners.
func Owned(departmentID snowflake.ID, companyID, employeeID *snowflake.ID) Resource {
	return Resource{
		DepartmentID: departmentID,
		CompanyID:    companyID,
		EmployeeID:   employeeID,
		owned:        true,
	}
}

type actorKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok && actor.Valid()
}

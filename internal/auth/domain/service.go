package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/workdesk/internal/authorization"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResult struct {
	Token        string                  `json:"token"`
	ExpiresAt    time.Time               `json:"expires_at"`
	Kind         authorization.ActorKind `json:"kind"`
	ID           snowflake.ID            `json:"id"`
	Name         string                  `json:"name"`
	Email        string                  `json:"email"`
	CompanyID    snowflake.ID            `json:"company_id,omitempty"`
	DepartmentID snowflake.ID            `json:"department_id"`
	Department   string                  `json:"department,omitempty"`
}

type Service interface {
	Login(ctx context.Context, kind authorization.ActorKind, req LoginRequest) (LoginResult, error)
	// Authenticate verifies a bearer credential and returns the actor it was issued to.
	Authenticate(ctx context.Context, raw string) (authorization.Actor, error)
}

// TokenIssuer signs and verifies credentials.
type TokenIssuer interface {
	Issue(actor authorization.Actor) (string, time.Time, error)
	Parse(raw string) (authorization.Actor, error)
}

// AttemptLimiter throttles login attempts per key.
type AttemptLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

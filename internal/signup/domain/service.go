package domain

import (
	"context"
	"errors"

	authdomain "github.com/smallbiznis/workdesk/internal/auth/domain"
	directorydomain "github.com/smallbiznis/workdesk/internal/directory/domain"
)

type Service interface {
	Signup(ctx context.Context, req Request) (*Result, error)
}

type Request struct {
	Name     string `json:"name" binding:"required,max=200"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type Result struct {
	Company directorydomain.Company `json:"company"`
	Session authdomain.LoginResult  `json:"session"`
}

var ErrInvalidRequest = errors.New("invalid_signup_request")

package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidActorKind   = errors.New("invalid_actor_kind")
	ErrInvalidToken       = errors.New("invalid_token")
	ErrTokenExpired       = errors.New("token_expired")
	ErrMissingSecret      = errors.New("missing_jwt_secret")
	ErrTooManyAttempts    = errors.New("too_many_login_attempts")
)

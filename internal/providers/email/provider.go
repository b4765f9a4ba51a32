package email

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

var (
	ErrInvalidAddress = errors.New("invalid_email_address")
	ErrDelivery       = errors.New("email_delivery_failed")
)

var addressPattern = regexp.MustCompile(`^[\w.-]+@([\w-]+\.)+[\w-]{2,4}$`)

// Provider delivers plain-text mail, optionally with a single attachment.
type Provider interface {
	Send(ctx context.Context, to string, subject string, body string) error
	SendWithAttachment(ctx context.Context, to string, subject string, body string, attachment []byte, filename string) error
}

// ValidateAddress accepts a bare address only; display names are rejected.
func ValidateAddress(address string) error {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" || trimmed != address {
		return ErrInvalidAddress
	}
	if !addressPattern.MatchString(trimmed) {
		return ErrInvalidAddress
	}
	parsed, err := mail.ParseAddress(trimmed)
	if err != nil || parsed.Address != trimmed {
		return ErrInvalidAddress
	}
	return nil
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to string, subject string, body string) error {
	return ValidateAddress(to)
}

func (p *NoOpProvider) SendWithAttachment(ctx context.Context, to string, subject string, body string, attachment []byte, filename string) error {
	return ValidateAddress(to)
}

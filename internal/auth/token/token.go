package token

import (
	"crypto/rand"
	"errors"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	authdomain "github.com/smallbiznis/workdesk/internal/auth/domain"
	"github.com/smallbiznis/workdesk/internal/authorization"
	"github.com/smallbiznis/workdesk/internal/clock"
	"github.com/smallbiznis/workdesk/internal/config"
	"go.uber.org/zap"
)

const (
	issuer     = "workdesk"
	DefaultTTL = time.Hour
)

// Claims carries the actor identity. The audience holds the actor kind.
type Claims struct {
	ID           string `json:"id"`
	CompanyID    string `json:"company_id,omitempty"`
	DepartmentID string `json:"department_id"`
	Department   string `json:"department,omitempty"`
	Email        string `json:"email,omitempty"`
	Name         string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256 credentials.
type Manager struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewManager(secret []byte, ttl time.Duration, clk clock.Clock) (*Manager, error) {
	if len(secret) == 0 {
		return nil, authdomain.ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Manager{secret: secret, ttl: ttl, clock: clk}, nil
}

// NewFromConfig requires AUTH_JWT_SECRET in production; elsewhere a random per-process secret is used.
func NewFromConfig(cfg config.Config, clk clock.Clock, log *zap.Logger) (authdomain.TokenIssuer, error) {
	secret := []byte(cfg.AuthJWTSecret)
	if len(secret) == 0 {
		if cfg.IsProduction() {
			return nil, authdomain.ErrMissingSecret
		}
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		log.Warn("AUTH_JWT_SECRET not set, using an ephemeral signing secret")
	}
	return NewManager(secret, cfg.AuthTokenTTL, clk)
}

func (m *Manager) Issue(actor authorization.Actor) (string, time.Time, error) {
	if !actor.Valid() {
		return "", time.Time{}, authorization.ErrInvalidActor
	}

	now := m.clock.Now()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		ID:           actor.ID.String(),
		DepartmentID: actor.DepartmentID.String(),
		Department:   actor.DepartmentName,
		Email:        actor.Email,
		Name:         actor.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   actor.ID.String(),
			Audience:  jwt.ClaimStrings{string(actor.Kind)},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if actor.CompanyID != 0 {
		claims.CompanyID = actor.CompanyID.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (m *Manager) Parse(raw string) (authorization.Actor, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return authorization.Actor{}, authdomain.ErrTokenExpired
		}
		return authorization.Actor{}, authdomain.ErrInvalidToken
	}

	if len(claims.Audience) != 1 {
		return authorization.Actor{}, authdomain.ErrInvalidToken
	}
	kind, ok := authorization.ParseActorKind(claims.Audience[0])
	if !ok {
		return authorization.Actor{}, authdomain.ErrInvalidToken
	}

	id, err := parseID(claims.ID)
	if err != nil || id == 0 || claims.Subject != claims.ID {
		return authorization.Actor{}, authdomain.ErrInvalidToken
	}
	departmentID, err := parseID(claims.DepartmentID)
	if err != nil {
		return authorization.Actor{}, authdomain.ErrInvalidToken
	}
	var companyID snowflake.ID
	if claims.CompanyID != "" {
		if companyID, err = parseID(claims.CompanyID); err != nil {
			return authorization.Actor{}, authdomain.ErrInvalidToken
		}
	}

	return authorization.Actor{
		Kind:           kind,
		ID:             id,
		CompanyID:      companyID,
		DepartmentID:   departmentID,
		DepartmentName: claims.Department,
		Email:          claims.Email,
		Name:           claims.Name,
	}, nil
}

func parseID(value string) (snowflake.ID, error) {
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return snowflake.ID(parsed), nil
}

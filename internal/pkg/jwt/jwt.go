package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/derlev/sandwich-spawnpoint/internal/models"
	jwtlib "github.com/golang-jwt/jwt/v5"
)

// DefaultLifetime is how long an issued session stays valid.
const DefaultLifetime = 18 * time.Hour

var (
	ErrMissingSecret  = errors.New("jwt: no app secret configured")
	ErrInvalidToken   = errors.New("jwt: invalid token")
	ErrInvalidExpiry  = errors.New("jwt: expiry must be after issued-at")
	ErrInvalidSubject = errors.New("jwt: subject, name and role are required")
)

// claimKeys is the exact key set a session token carries.
var claimKeys = []string{"sub", "name", "role", "iat", "exp"}

// SessionClaim is the decoded session carried by a bearer token.
type SessionClaim struct {
	Subject   string
	Name      string
	Role      models.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Token is the result of issuing a session.
type Token struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

type claims struct {
	Name string      `json:"name"`
	Role models.Role `json:"role"`
	jwtlib.RegisteredClaims
}

// Issuer signs and verifies HS256 session tokens with a single secret.
type Issuer struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

type Option func(*Issuer)

func WithLifetime(d time.Duration) Option {
	return func(i *Issuer) {
		if d > 0 {
			i.lifetime = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer returns ErrMissingSecret when secret is blank.
func NewIssuer(secret string, opts ...Option) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	i := &Issuer{secret: []byte(secret), lifetime: DefaultLifetime, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

func (i *Issuer) Lifetime() time.Duration { return i.lifetime }

// Issue signs a session for the user. A non-nil expiresAt replaces the default lifetime,
// which keeps the original expiry when a session is re-issued after a role change.
func (i *Issuer) Issue(userID, name string, role models.Role, expiresAt *time.Time) (*Token, error) {
	if userID == "" || !role.Valid() {
		return nil, ErrInvalidSubject
	}
	now := i.now().Truncate(time.Second)
	exp := now.Add(i.lifetime)
	if expiresAt != nil {
		exp = expiresAt.Truncate(time.Second)
	}
	if !exp.After(now) {
		return nil, ErrInvalidExpiry
	}

	c := claims{
		Name: name,
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(exp),
		},
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &Token{Token: signed, ExpiresIn: int64(exp.Sub(now) / time.Second)}, nil
}

// Validate verifies the signature and expiry and checks the claim set is exactly the session schema.
// Every failure wraps ErrInvalidToken.
func (i *Issuer) Validate(token string) (*SessionClaim, error) {
	parser := jwtlib.NewParser(
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithIssuedAt(),
		jwtlib.WithTimeFunc(i.now),
	)
	mc := jwtlib.MapClaims{}
	parsed, err := parser.ParseWithClaims(token, mc, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	claim, err := decodeClaim(mc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claim, nil
}

func decodeClaim(mc jwtlib.MapClaims) (*SessionClaim, error) {
	if len(mc) != len(claimKeys) {
		return nil, fmt.Errorf("expected claims %v, got %d fields", claimKeys, len(mc))
	}
	for _, k := range claimKeys {
		if _, ok := mc[k]; !ok {
			return nil, fmt.Errorf("missing claim %q", k)
		}
	}

	sub, ok := mc["sub"].(string)
	if !ok || sub == "" {
		return nil, errors.New("sub must be a non-empty string")
	}
	name, ok := mc["name"].(string)
	if !ok {
		return nil, errors.New("name must be a string")
	}
	rawRole, ok := mc["role"].(string)
	if !ok || !models.Role(rawRole).Valid() {
		return nil, fmt.Errorf("role %v is not allowed", mc["role"])
	}
	iat, err := mc.GetIssuedAt()
	if err != nil || iat == nil {
		return nil, errors.New("iat must be a number")
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("exp must be a number")
	}
	if !exp.After(iat.Time) {
		return nil, errors.New("exp must be after iat")
	}

	return &SessionClaim{
		Subject:   sub,
		Name:      name,
		Role:      models.Role(rawRole),
		IssuedAt:  iat.Time,
		ExpiresAt: exp.Time,
	}, nil
}

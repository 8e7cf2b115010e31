package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/derlev/sandwich-spawnpoint/internal/models"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "a-long-enough-test-secret"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestIssuer(t *testing.T, now time.Time) *Issuer {
	t.Helper()
	iss, err := NewIssuer(testSecret, WithClock(fixedClock(now)))
	require.NoError(t, err)
	return iss
}

func signRaw(t *testing.T, mc jwtlib.MapClaims) string {
	t.Helper()
	s, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, mc).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := NewIssuer("   ")
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestIssueValidateRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t, now)

	tok, err := iss.Issue("user-1", "Ada", models.RoleVIP, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultLifetime/time.Second), tok.ExpiresIn)

	claim, err := iss.Validate(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claim.Subject)
	assert.Equal(t, "Ada", claim.Name)
	assert.Equal(t, models.RoleVIP, claim.Role)
	assert.Equal(t, DefaultLifetime, claim.ExpiresAt.Sub(claim.IssuedAt))
}

func TestIssueKeepsExplicitExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t, now)
	exp := now.Add(3 * time.Hour)

	tok, err := iss.Issue("user-1", "Ada", models.RoleAdmin, &exp)
	require.NoError(t, err)
	assert.Equal(t, int64(3*60*60), tok.ExpiresIn)

	claim, err := iss.Validate(tok.Token)
	require.NoError(t, err)
	assert.True(t, claim.ExpiresAt.Equal(exp))
	assert.Equal(t, models.RoleAdmin, claim.Role)
}

func TestIssueRejectsPastExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t, now)
	past := now.Add(-time.Minute)

	_, err := iss.Issue("user-1", "Ada", models.RoleUser, &past)
	assert.ErrorIs(t, err, ErrInvalidExpiry)

	_, err = iss.Issue("user-1", "Ada", models.Role("ROOT"), nil)
	assert.ErrorIs(t, err, ErrInvalidSubject)
}

func TestValidateRejectsTamperedSignature(t *testing.T) {
	iss := newTestIssuer(t, time.Now())
	tok, err := iss.Issue("user-1", "Ada", models.RoleUser, nil)
	require.NoError(t, err)

	parts := strings.Split(tok.Token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	mid := len(sig) / 2
	if sig[mid] == 'A' {
		sig[mid] = 'B'
	} else {
		sig[mid] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = iss.Validate(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tok, err := newTestIssuer(t, issuedAt).Issue("user-1", "Ada", models.RoleUser, nil)
	require.NoError(t, err)

	later := newTestIssuer(t, issuedAt.Add(DefaultLifetime+time.Minute))
	_, err = later.Validate(tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsOtherSecret(t *testing.T) {
	tok, err := newTestIssuer(t, time.Now()).Issue("user-1", "Ada", models.RoleUser, nil)
	require.NoError(t, err)

	other, err := NewIssuer("some-other-secret")
	require.NoError(t, err)
	_, err = other.Validate(tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsSchemaViolations(t *testing.T) {
	iss := newTestIssuer(t, time.Now())
	now := time.Now().Unix()
	base := func() jwtlib.MapClaims {
		return jwtlib.MapClaims{"sub": "user-1", "name": "Ada", "role": "USER", "iat": now, "exp": now + 60}
	}

	cases := map[string]func(jwtlib.MapClaims){
		"extra field":       func(mc jwtlib.MapClaims) { mc["admin"] = true },
		"missing name":      func(mc jwtlib.MapClaims) { delete(mc, "name") },
		"unknown role":      func(mc jwtlib.MapClaims) { mc["role"] = "ROOT" },
		"numeric sub":       func(mc jwtlib.MapClaims) { mc["sub"] = 42 },
		"exp not after iat": func(mc jwtlib.MapClaims) { mc["exp"] = mc["iat"] },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			mc := base()
			mutate(mc)
			_, err := iss.Validate(signRaw(t, mc))
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestValidateRejectsNoneAlgorithm(t *testing.T) {
	iss := newTestIssuer(t, time.Now())
	now := time.Now().Unix()
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, jwtlib.MapClaims{
		"sub": "user-1", "name": "Ada", "role": "ADMIN", "iat": now, "exp": now + 60,
	})
	s, err := tok.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = iss.Validate(s)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

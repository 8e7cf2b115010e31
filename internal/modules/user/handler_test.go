package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/derlev/sandwich-spawnpoint/internal/models"
	"github.com/derlev/sandwich-spawnpoint/internal/modules/appconfig"
	"github.com/derlev/sandwich-spawnpoint/internal/modules/bruteforce"
	"github.com/derlev/sandwich-spawnpoint/internal/pkg/jwt"
	"github.com/derlev/sandwich-spawnpoint/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	issuer *jwt.Issuer
	store  *appconfig.Store
	svc    *Service
	router *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	issuer, err := jwt.NewIssuer("user-test-secret")
	require.NoError(t, err)
	store := appconfig.NewStore(db, appconfig.Schema("changeme"), testutil.Hasher())
	require.NoError(t, store.Reconcile(context.Background()))
	ledger := bruteforce.NewLedger(db, bruteforce.DefaultPolicy())

	svc := NewService(db, issuer, ledger, store)
	r := testutil.Router()
	NewHandler(svc, store, issuer).RegisterRoutes(r.Group("/api"))
	return &fixture{db: db, issuer: issuer, store: store, svc: svc, router: r}
}

type session struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

func (f *fixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.Request(t, f.router, method, path, token, body)
}

func (f *fixture) signup(t *testing.T, name string) session {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/user/new", "", gin.H{"name": name})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var s session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	return s
}

func (f *fixture) expiry(t *testing.T, token string) time.Time {
	t.Helper()
	claim, err := f.issuer.Validate(token)
	require.NoError(t, err)
	return claim.ExpiresAt
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	s := f.signup(t, "Ada")

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "Ada", s.Name)
	assert.Equal(t, "USER", s.Role)
	assert.Equal(t, int64(jwt.DefaultLifetime/time.Second), s.ExpiresIn)

	claim, err := f.issuer.Validate(s.Token)
	require.NoError(t, err)
	assert.Equal(t, s.ID, claim.Subject)
	assert.Equal(t, models.RoleUser, claim.Role)

	w := f.do(t, http.MethodPost, "/api/user/new", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "A JSON body must be supplied", testutil.Message(t, w))

	w = f.do(t, http.MethodPost, "/api/user/new", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Issue with request body: name is required", testutil.Message(t, w))
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	s := f.signup(t, "Ada")

	w := f.do(t, http.MethodGet, "/api/user/me", s.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Ada"`)

	require.NoError(t, f.svc.Delete(context.Background(), s.ID))
	w = f.do(t, http.MethodGet, "/api/user/me", s.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User does not exist", testutil.Message(t, w))
}

func TestAdminUpgradeLockout(t *testing.T) {
	f := newFixture(t)
	s := f.signup(t, "Mallory")

	for i := 0; i < 3; i++ {
		w := f.do(t, http.MethodPost, "/api/user/upgrade/admin", s.Token, gin.H{"password": "guess"})
		require.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Invalid password", testutil.Message(t, w))
	}

	w := f.do(t, http.MethodPost, "/api/user/upgrade/admin", s.Token, gin.H{"password": "changeme"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Too many attempts", testutil.Message(t, w))

	var attempts int64
	require.NoError(t, f.db.Model(&models.BruteforceModel{}).Count(&attempts).Error)
	assert.Equal(t, int64(3), attempts)

	u, err := f.svc.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, u.Role)
}

func TestAdminUpgradeKeepsExpiry(t *testing.T) {
	f := newFixture(t)
	s := f.signup(t, "Ada")

	w := f.do(t, http.MethodPost, "/api/user/upgrade/admin", s.Token, gin.H{"password": "changeme"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var upgraded session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &upgraded))

	assert.Equal(t, "ADMIN", upgraded.Role)
	assert.Equal(t, s.ID, upgraded.ID)
	assert.Equal(t, f.expiry(t, s.Token), f.expiry(t, upgraded.Token))

	w = f.do(t, http.MethodPost, "/api/user/upgrade/admin", upgraded.Token, gin.H{"password": "changeme"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestVipRedeem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.signup(t, "Ada")
	second := f.signup(t, "Grace")

	code, err := f.store.CreateOtp(ctx)
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/user/upgrade/vip", first.Token, gin.H{"otp": code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var upgraded session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &upgraded))
	assert.Equal(t, "VIP", upgraded.Role)
	assert.Equal(t, f.expiry(t, first.Token), f.expiry(t, upgraded.Token))

	w = f.do(t, http.MethodPost, "/api/user/upgrade/vip", second.Token, gin.H{"otp": code})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Invalid code", testutil.Message(t, w))

	w = f.do(t, http.MethodPost, "/api/user/upgrade/vip", upgraded.Token, gin.H{"otp": code})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/user/upgrade/vip", second.Token, gin.H{"otp": "12ab56"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVipCodeAdministration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.signup(t, "Root")
	_, _, err := f.svc.UpgradeToAdmin(ctx, &jwt.SessionClaim{Subject: admin.ID, ExpiresAt: time.Now().Add(time.Hour)}, "192.0.2.1", "changeme")
	require.NoError(t, err)
	adminToken, err := f.issuer.Issue(admin.ID, admin.Name, models.RoleAdmin, nil)
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/user/vip/new", adminToken.Token, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Otp string `json:"otp"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Len(t, created.Otp, 6)

	w = f.do(t, http.MethodPost, "/api/user/vip/new", admin.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodDelete, "/api/user/vip/delete", adminToken.Token, gin.H{"otp": created.Otp})
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodDelete, "/api/user/vip/delete", adminToken.Token, gin.H{"otp": created.Otp})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Code does not exist", testutil.Message(t, w))
}

func TestListAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.signup(t, "Ada")
	f.signup(t, "Grace")
	require.NoError(t, f.db.Create(&models.OrderModel{UserID: ada.ID}).Error)
	adminToken, err := f.issuer.Issue(ada.ID, "Ada", models.RoleAdmin, nil)
	require.NoError(t, err)

	w := f.do(t, http.MethodGet, "/api/user/list?orders=true&id="+ada.ID, adminToken.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []models.UserModel
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Len(t, users[0].Orders, 1)

	w = f.do(t, http.MethodGet, "/api/user/list?role=USER", adminToken.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	assert.Len(t, users, 2)

	w = f.do(t, http.MethodGet, "/api/user/list?role=KING", adminToken.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodDelete, "/api/user/delete/not-a-uuid", adminToken.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodDelete, "/api/user/delete/"+ada.ID, adminToken.Token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	var orders int64
	require.NoError(t, f.db.Model(&models.OrderModel{}).Count(&orders).Error)
	assert.Zero(t, orders)

	w = f.do(t, http.MethodDelete, "/api/user/delete/"+ada.ID, adminToken.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	_, err = f.svc.Get(ctx, ada.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPruneExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := models.UserModel{Name: "Old", Role: models.RoleUser}
	old.CreatedAt = time.Now().UTC().Add(-19 * time.Hour)
	require.NoError(t, f.db.Create(&old).Error)
	fresh := f.signup(t, "Fresh")

	n, err := f.svc.PruneExpired(ctx, jwt.DefaultLifetime)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.svc.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Get(ctx, fresh.ID)
	assert.NoError(t, err)

	n, err = f.svc.PruneExpired(ctx, jwt.DefaultLifetime)
	require.NoError(t, err)
	assert.Zero(t, n)
}

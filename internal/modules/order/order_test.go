package order

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"testing"

	"github.com/derlev/sandwich-spawnpoint/internal/models"
	"github.com/derlev/sandwich-spawnpoint/internal/modules/appconfig"
	"github.com/derlev/sandwich-spawnpoint/internal/pkg/jwt"
	"github.com/derlev/sandwich-spawnpoint/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	aliceID = "00000000-0000-0000-0000-0000000000a1"
	bobID   = "00000000-0000-0000-0000-0000000000b0"
	adminID = "00000000-0000-0000-0000-0000000000ad"
)

type fixture struct {
	db     *gorm.DB
	store  *appconfig.Store
	svc    *Service
	router *gin.Engine
	tokens map[string]string

	bread, cheese, ham, hidden models.IngredientModel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewDB(t)
	issuer, err := jwt.NewIssuer("order-test-secret")
	require.NoError(t, err)
	store := appconfig.NewStore(db, appconfig.Schema("changeme"), testutil.Hasher())
	require.NoError(t, store.Reconcile(ctx))
	require.NoError(t, store.Update(ctx, appconfig.KeyAllowOrders, true))

	svc := NewService(db)
	r := testutil.Router()
	NewHandler(svc, store, issuer, testutil.Logger()).RegisterRoutes(r.Group("/api"))

	f := &fixture{db: db, store: store, svc: svc, router: r, tokens: map[string]string{}}
	for id, role := range map[string]models.Role{aliceID: models.RoleUser, bobID: models.RoleVIP, adminID: models.RoleAdmin} {
		tok, err := issuer.Issue(id, "someone", role, nil)
		require.NoError(t, err)
		f.tokens[id] = tok.Token
	}

	f.bread = f.ingredient(t, "Rye", models.IngredientBread, true)
	f.cheese = f.ingredient(t, "Gouda", models.IngredientCheese, true)
	f.ham = f.ingredient(t, "Ham", models.IngredientMeat, true)
	f.hidden = f.ingredient(t, "Caviar", models.IngredientSpecial, false)
	return f
}

func (f *fixture) ingredient(t *testing.T, name string, typ models.IngredientType, enabled bool) models.IngredientModel {
	t.Helper()
	row := models.IngredientModel{Name: name, Type: typ, Enabled: enabled}
	require.NoError(t, f.db.Select("*").Create(&row).Error)
	return row
}

func (f *fixture) place(t *testing.T, who string, ingredients ...string) models.OrderModel {
	t.Helper()
	w := testutil.Request(t, f.router, http.MethodPost, "/api/order/new", f.tokens[who], gin.H{"ingredients": ingredients})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var o models.OrderModel
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &o))
	return o
}

// counts maps ingredient ids to their stored amount for an order.
func (f *fixture) counts(t *testing.T, orderID string) map[string]int {
	t.Helper()
	var rows []models.IngredientOnOrderModel
	require.NoError(t, f.db.Where(map[string]interface{}{"orderId": orderID}).Find(&rows).Error)
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.IngredientID] = r.IngredientNumber
	}
	return out
}

func TestTally(t *testing.T) {
	assert.Equal(t, []line{{"a", 2}, {"b", 1}, {"c", 3}}, tally([]string{"a", "b", "a", "c", "c", "c"}))
	assert.Empty(t, tally(nil))
}

func TestCreateCountsDuplicates(t *testing.T) {
	f := newFixture(t)
	o := f.place(t, aliceID, f.bread.ID, f.cheese.ID, f.cheese.ID)

	assert.Equal(t, aliceID, o.UserID)
	assert.Equal(t, models.OrderInQueue, o.Status)
	require.Len(t, o.Ingredients, 2)
	for _, line := range o.Ingredients {
		require.NotNil(t, line.Ingredient)
	}
	assert.Equal(t, map[string]int{f.bread.ID: 1, f.cheese.ID: 2}, f.counts(t, o.ID))
}

func TestCreateRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w := testutil.Request(t, f.router, http.MethodPost, "/api/order/new", f.tokens[aliceID], gin.H{"ingredients": []string{f.hidden.ID}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Some ingredients do not exist or are disabled", testutil.Message(t, w))

	w = testutil.Request(t, f.router, http.MethodPost, "/api/order/new", f.tokens[aliceID], gin.H{"ingredients": []string{"nope"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = testutil.Request(t, f.router, http.MethodPost, "/api/order/new", f.tokens[aliceID], gin.H{"ingredients": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = testutil.Request(t, f.router, http.MethodPost, "/api/order/new", "", gin.H{"ingredients": []string{f.bread.ID}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	require.NoError(t, f.store.Update(ctx, appconfig.KeyAllowOrders, false))
	w = testutil.Request(t, f.router, http.MethodPost, "/api/order/new", f.tokens[aliceID], gin.H{"ingredients": []string{f.bread.ID}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Orders are currently disabled", testutil.Message(t, w))

	var n int64
	require.NoError(t, f.db.Model(&models.OrderModel{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestMineAndList(t *testing.T) {
	f := newFixture(t)
	f.place(t, aliceID, f.bread.ID)
	f.place(t, aliceID, f.ham.ID)
	bobs := f.place(t, bobID, f.cheese.ID)

	w := testutil.Request(t, f.router, http.MethodGet, "/api/order/mine", f.tokens[aliceID], nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []models.OrderModel
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	assert.Len(t, mine, 2)

	w = testutil.Request(t, f.router, http.MethodGet, "/api/order/list", f.tokens[aliceID], nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testutil.Request(t, f.router, http.MethodGet, "/api/order/list?uid="+bobID, f.tokens[adminID], nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []models.OrderModel
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, bobs.ID, listed[0].ID)

	w = testutil.Request(t, f.router, http.MethodGet, "/api/order/list?status=DONE", f.tokens[adminID], nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = testutil.Request(t, f.router, http.MethodGet, "/api/order/list?status=LOST", f.tokens[adminID], nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	queued := f.place(t, aliceID, f.bread.ID)
	started := f.place(t, aliceID, f.ham.ID)
	status := string(models.OrderBeingMade)
	_, err := f.svc.Modify(ctx, started.ID, ModifyDTO{Status: &status})
	require.NoError(t, err)

	w := testutil.Request(t, f.router, http.MethodDelete, "/api/order/cancel/"+queued.ID, f.tokens[bobID], nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testutil.Request(t, f.router, http.MethodDelete, "/api/order/cancel/"+started.ID, f.tokens[aliceID], nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Only queued orders can be cancelled", testutil.Message(t, w))

	w = testutil.Request(t, f.router, http.MethodDelete, "/api/order/cancel/"+queued.ID, f.tokens[aliceID], nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, f.counts(t, queued.ID))

	w = testutil.Request(t, f.router, http.MethodDelete, "/api/order/cancel/"+queued.ID, f.tokens[aliceID], nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestModifyDiff(t *testing.T) {
	f := newFixture(t)
	o := f.place(t, aliceID, f.bread.ID, f.cheese.ID, f.cheese.ID)

	// bread untouched, cheese 2 -> 1, ham added, and the disabled one is fine for admins
	body := gin.H{"ingredients": []string{f.bread.ID, f.cheese.ID, f.ham.ID, f.hidden.ID}, "status": "BEINGMADE"}
	w := testutil.Request(t, f.router, http.MethodPatch, "/api/order/modify/"+o.ID, f.tokens[adminID], body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var modified models.OrderModel
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &modified))
	assert.Equal(t, models.OrderBeingMade, modified.Status)
	assert.Equal(t, map[string]int{f.bread.ID: 1, f.cheese.ID: 1, f.ham.ID: 1, f.hidden.ID: 1}, f.counts(t, o.ID))

	w = testutil.Request(t, f.router, http.MethodPatch, "/api/order/modify/"+o.ID, f.tokens[adminID], gin.H{"ingredients": []string{f.ham.ID, f.ham.ID}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]int{f.ham.ID: 2}, f.counts(t, o.ID))

	w = testutil.Request(t, f.router, http.MethodPatch, "/api/order/modify/"+o.ID, f.tokens[adminID], gin.H{"status": "DONE"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &modified))
	assert.Equal(t, models.OrderDone, modified.Status)
	assert.Equal(t, map[string]int{f.ham.ID: 2}, f.counts(t, o.ID))
}

func TestModifyRollsBackUnknownIngredient(t *testing.T) {
	f := newFixture(t)
	o := f.place(t, aliceID, f.bread.ID)

	body := gin.H{"ingredients": []string{"44444444-4444-4444-4444-444444444444"}, "status": "DONE"}
	w := testutil.Request(t, f.router, http.MethodPatch, "/api/order/modify/"+o.ID, f.tokens[adminID], body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	got, err := f.svc.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderInQueue, got.Status)
	assert.Equal(t, map[string]int{f.bread.ID: 1}, f.counts(t, o.ID))

	w = testutil.Request(t, f.router, http.MethodPatch, "/api/order/modify/44444444-4444-4444-4444-444444444444", f.tokens[adminID], gin.H{"status": "DONE"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Order does not exist", testutil.Message(t, w))
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	a := f.place(t, aliceID, f.bread.ID)
	b := f.place(t, bobID, f.ham.ID)

	w := testutil.Request(t, f.router, http.MethodDelete, "/api/order/delete/"+a.ID, f.tokens[adminID], nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = testutil.Request(t, f.router, http.MethodDelete, "/api/order/delete/"+a.ID, f.tokens[adminID], nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var ids []string
	require.NoError(t, f.db.Model(&models.OrderModel{}).Pluck("id", &ids).Error)
	sort.Strings(ids)
	assert.Equal(t, []string{b.ID}, ids)
	assert.Empty(t, f.counts(t, a.ID))
}

package syncproxy

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/derlev/sandwich-spawnpoint/internal/models"
	"github.com/derlev/sandwich-spawnpoint/internal/pkg/jwt"
)

var ErrTableNotAllowed = errors.New("table is not allowed")

// WhereMismatchError carries the only where clause the caller may use for the table.
type WhereMismatchError struct {
	Allowed string
}

func (e *WhereMismatchError) Error() string {
	return fmt.Sprintf("where clause must be %q", e.Allowed)
}

// Query is the subset of the shape API a client may send.
type Query struct {
	Table   string `form:"table"   binding:"required"`
	Offset  string `form:"offset"  binding:"required"`
	Live    string `form:"live"    binding:"omitempty,oneof=true false"`
	Cursor  string `form:"cursor"`
	Handle  string `form:"handle"`
	Where   string `form:"where"`
	Columns string `form:"columns"`
	Replica string `form:"replica"`
}

// Encode renders the non-empty parameters as a query string with %20 for spaces.
func (q Query) Encode() string {
	v := url.Values{}
	for _, p := range []struct{ key, val string }{
		{"table", q.Table},
		{"offset", q.Offset},
		{"live", q.Live},
		{"cursor", q.Cursor},
		{"handle", q.Handle},
		{"where", q.Where},
		{"columns", q.Columns},
		{"replica", q.Replica},
	} {
		if p.val != "" {
			v.Set(p.key, p.val)
		}
	}
	return strings.ReplaceAll(v.Encode(), "+", "%20")
}

// Rule pins a table to the one where clause non-admins may request.
type Rule struct {
	Table string
	Where string
}

// Rules returns the allowlist for userID. The subject comes from a signed token, so it is
// safe to interpolate.
func Rules(userID string) []Rule {
	return []Rule{
		{Table: `"Order"`, Where: fmt.Sprintf(`"userId"='%s'`, userID)},
		{Table: `"Ingredient"`, Where: "enabled=true"},
	}
}

// Authorize decides whether claim may request the shape described by q. Admins may request
// anything.
func Authorize(claim *jwt.SessionClaim, q Query) error {
	if claim.Role == models.RoleAdmin {
		return nil
	}
	for _, rule := range Rules(claim.Subject) {
		if rule.Table != q.Table {
			continue
		}
		if rule.Where != q.Where {
			return &WhereMismatchError{Allowed: rule.Where}
		}
		return nil
	}
	return ErrTableNotAllowed
}

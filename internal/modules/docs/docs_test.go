package docs

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/derlev/sandwich-spawnpoint/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeOpenAPI(t *testing.T) {
	h, err := NewHandler()
	require.NoError(t, err)
	r := testutil.Router()
	h.RegisterRoutes(r)

	w := testutil.Request(t, r, http.MethodGet, Path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var doc struct {
		OpenAPI string `json:"openapi"`
		Info    struct {
			Title   string `json:"title"`
			Version string `json:"version"`
		} `json:"info"`
		Paths map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "3.1.1", doc.OpenAPI)
	assert.Equal(t, "Sandwich Spawnpoint API", doc.Info.Title)
	assert.Equal(t, "1.0.0", doc.Info.Version)
	for _, p := range []string{"/user/new", "/order/new", "/ingredient/list", "/config/get", "/sync", "/admin/jobs"} {
		assert.Contains(t, doc.Paths, p)
	}
}

func TestRenderRejectsBadInput(t *testing.T) {
	_, err := Render([]byte("info: {title: x}\n"))
	assert.Error(t, err)

	_, err = Render([]byte("openapi: [unterminated\n"))
	assert.Error(t, err)

	_, err = Render([]byte("openapi: 3.1.1\npaths:\n  1: {}\n"))
	assert.Error(t, err, "non-string keys cannot be rendered as JSON")
}

package app

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/derlev/sandwich-spawnpoint/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

const devNotice = "The app is currently in development mode!"

func isAPIPath(p string) bool {
	return p == "/api" || strings.HasPrefix(p, "/api/")
}

// spaHandler serves files from dir and falls back to index.html so client-side routes load.
// API paths and non-GET requests never fall through to the frontend.
func spaHandler(dir string) gin.HandlerFunc {
	index := filepath.Join(dir, "index.html")
	return func(c *gin.Context) {
		method := c.Request.Method
		if isAPIPath(c.Request.URL.Path) || (method != http.MethodGet && method != http.MethodHead) {
			response.NotFound(c, "Route not found")
			return
		}

		rel := path.Clean("/" + c.Request.URL.Path)
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if info, err := os.Stat(full); err == nil && !info.IsDir() {
			c.File(full)
			return
		}
		if _, err := os.Stat(index); err != nil {
			response.NotFound(c, "Route not found")
			return
		}
		c.File(index)
	}
}

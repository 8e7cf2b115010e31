// Package docs serves the OpenAPI document. It is authored in YAML and rendered as JSON once at
// startup.
package docs

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

const Path = "/oas/openapi.json"

//go:embed openapi.yaml
var source []byte

type Handler struct {
	doc []byte
}

func NewHandler() (*Handler, error) {
	doc, err := Render(source)
	if err != nil {
		return nil, err
	}
	return &Handler{doc: doc}, nil
}

// Render converts a YAML OpenAPI document to JSON. Mapping keys must be strings.
func Render(src []byte) ([]byte, error) {
	var tree map[string]interface{}
	if err := yaml.Unmarshal(src, &tree); err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	if _, ok := tree["openapi"]; !ok {
		return nil, fmt.Errorf("parse openapi document: missing openapi version")
	}
	doc, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("render openapi document: %w", err)
	}
	return doc, nil
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET(Path, h.serve)
}

func (h *Handler) serve(c *gin.Context) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", h.doc)
}

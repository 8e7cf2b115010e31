package appconfig

import (
	"errors"
	"net/http"

	"github.com/derlev/sandwich-spawnpoint/internal/middleware"
	"github.com/derlev/sandwich-spawnpoint/internal/models"
	"github.com/derlev/sandwich-spawnpoint/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type modifyRequest struct {
	Object string      `json:"object" binding:"required"`
	Value  interface{} `json:"value"`
}

type Handler struct {
	store  *Store
	tokens middleware.TokenValidator
}

func NewHandler(store *Store, tokens middleware.TokenValidator) *Handler {
	return &Handler{store: store, tokens: tokens}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/config")
	g.GET("/get", middleware.OptionalAuth(h.tokens), h.get)
	g.PATCH("/modify", middleware.Auth(h.tokens, models.RoleAdmin), h.modify)
}

func (h *Handler) get(c *gin.Context) {
	cfg, err := h.store.Get(c.Request.Context(), !middleware.HasRole(c, models.RoleAdmin))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, cfg)
}

func (h *Handler) modify(c *gin.Context) {
	var req modifyRequest
	if !response.BindJSON(c, &req) {
		return
	}
	// false and 0 are valid values, so presence is checked here instead of by the validator
	if req.Value == nil {
		response.BadRequest(c, "Issue with request body: value is required")
		return
	}
	if err := h.store.Update(c.Request.Context(), req.Object, req.Value); err != nil {
		response.Fail(c, mapError(err))
		return
	}

	cfg, err := h.store.Get(c.Request.Context(), false)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, cfg)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKey):
		return response.NewError(http.StatusNotFound, "Config object does not exist", nil)
	case errors.Is(err, ErrProtectedType):
		return response.NewError(http.StatusForbidden, "Config object cannot be modified directly", nil)
	case errors.Is(err, ErrInvalidValue):
		return response.NewError(http.StatusBadRequest, "Value does not match the type of the config object", nil)
	}
	return err
}

package user

import (
	"errors"

	"github.com/derlev/sandwich-spawnpoint/internal/middleware"
	"github.com/derlev/sandwich-spawnpoint/internal/models"
	"github.com/derlev/sandwich-spawnpoint/internal/modules/appconfig"
	"github.com/derlev/sandwich-spawnpoint/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc    *Service
	config *appconfig.Store
	tokens middleware.TokenValidator
}

func NewHandler(svc *Service, config *appconfig.Store, tokens middleware.TokenValidator) *Handler {
	return &Handler{svc: svc, config: config, tokens: tokens}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/user")
	admin := middleware.Auth(h.tokens, models.RoleAdmin)

	g.POST("/new", h.create)
	g.GET("/me", middleware.Auth(h.tokens), h.me)
	g.GET("/list", admin, h.list)
	g.DELETE("/delete/:id", admin, h.delete)

	g.POST("/upgrade/admin", middleware.Auth(h.tokens, models.RoleUser, models.RoleVIP), h.upgradeAdmin)
	g.POST("/upgrade/vip", middleware.Auth(h.tokens, models.RoleUser), h.upgradeVip)

	g.POST("/vip/new", admin, h.createOtp)
	g.DELETE("/vip/delete", admin, h.deleteOtp)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateDTO
	if !response.BindJSON(c, &dto) {
		return
	}
	u, tok, err := h.svc.Create(c.Request.Context(), dto.Name)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, sessionResponse{UserModel: u, Token: tok})
}

func (h *Handler) me(c *gin.Context) {
	claim, _ := middleware.CurrentSession(c)
	u, err := h.svc.Get(c.Request.Context(), claim.Subject)
	if err != nil {
		response.Fail(c, mapError(err))
		return
	}
	response.OK(c, u)
}

func (h *Handler) list(c *gin.Context) {
	var q ListQuery
	if !response.BindQuery(c, &q) {
		return
	}
	users, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, users)
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := response.PathID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		response.Fail(c, mapError(err))
		return
	}
	response.NoContent(c)
}

func (h *Handler) upgradeAdmin(c *gin.Context) {
	var dto UpgradeAdminDTO
	if !response.BindJSON(c, &dto) {
		return
	}
	claim, _ := middleware.CurrentSession(c)
	u, tok, err := h.svc.UpgradeToAdmin(c.Request.Context(), claim, c.ClientIP(), dto.Password)
	if err != nil {
		response.Fail(c, mapError(err))
		return
	}
	response.OK(c, sessionResponse{UserModel: u, Token: tok})
}

func (h *Handler) upgradeVip(c *gin.Context) {
	var dto OtpDTO
	if !response.BindJSON(c, &dto) {
		return
	}
	claim, _ := middleware.CurrentSession(c)
	u, tok, err := h.svc.RedeemVip(c.Request.Context(), claim, c.ClientIP(), dto.Otp)
	if err != nil {
		response.Fail(c, mapError(err))
		return
	}
	response.OK(c, sessionResponse{UserModel: u, Token: tok})
}

func (h *Handler) createOtp(c *gin.Context) {
	code, err := h.config.CreateOtp(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, gin.H{"otp": code})
}

func (h *Handler) deleteOtp(c *gin.Context) {
	var dto OtpDTO
	if !response.BindJSON(c, &dto) {
		return
	}
	found, err := h.config.ConsumeOtp(c.Request.Context(), dto.Otp)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if !found {
		response.NotFound(c, "Code does not exist")
		return
	}
	response.NoContent(c)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return response.ErrNotFound("User does not exist")
	case errors.Is(err, ErrTooManyAttempts):
		return response.ErrForbidden("Too many attempts")
	case errors.Is(err, ErrInvalidPassword):
		return response.ErrForbidden("Invalid password")
	case errors.Is(err, ErrInvalidCode):
		return response.ErrForbidden("Invalid code")
	}
	return err
}

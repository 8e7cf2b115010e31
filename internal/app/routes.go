package app

import (
	"fmt"
	"net/http"

	"github.com/derlev/sandwich-spawnpoint/internal/middleware"
	"github.com/derlev/sandwich-spawnpoint/internal/modules/appconfig"
	"github.com/derlev/sandwich-spawnpoint/internal/modules/docs"
	"github.com/derlev/sandwich-spawnpoint/internal/modules/health"
	"github.com/derlev/sandwich-spawnpoint/internal/modules/ingredient"
	"github.com/derlev/sandwich-spawnpoint/internal/modules/order"
	"github.com/derlev/sandwich-spawnpoint/internal/modules/syncproxy"
	"github.com/derlev/sandwich-spawnpoint/internal/modules/user"
	"github.com/derlev/sandwich-spawnpoint/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes() error {
	r := a.router

	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})
	if a.cfg.IsProduction() {
		r.NoRoute(spaHandler(a.cfg.PublicDir))
	} else {
		r.GET("/", func(c *gin.Context) {
			c.String(http.StatusOK, devNotice)
		})
		r.NoRoute(func(c *gin.Context) {
			response.NotFound(c, "Route not found")
		})
	}

	oas, err := docs.NewHandler()
	if err != nil {
		return err
	}
	oas.RegisterRoutes(r)

	api := r.Group("/api")
	health.NewHandler(a.db, a.sched, a.issuer).RegisterRoutes(r, api)

	users := user.NewService(a.db, a.issuer, a.ledger, a.store)
	user.NewHandler(users, a.store, a.issuer).RegisterRoutes(api)

	ingredient.NewHandler(ingredient.NewService(a.db), a.issuer).RegisterRoutes(api)

	var writeMW []gin.HandlerFunc
	if a.redis != nil {
		writeMW = append(writeMW, middleware.Idempotence(a.redis.Raw()))
	}
	order.NewHandler(order.NewService(a.db), a.store, a.issuer, a.logger.Named("OrderService")).RegisterRoutes(api, writeMW...)

	appconfig.NewHandler(a.store, a.issuer).RegisterRoutes(api)

	proxy, err := syncproxy.New(a.cfg.ElectricURL, a.issuer, a.logger.Named("SyncProxy"))
	if err != nil {
		return fmt.Errorf("sync proxy: %w", err)
	}
	proxy.RegisterRoutes(api)

	return nil
}

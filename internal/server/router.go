package server

import (
	"net/http"
	"time"

	"github.com/KaiserRuben/AI-Website-Workshop/internal/auth"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/config"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/metrics"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/mw"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// SetupRouter assembles middleware, the REST API and the websocket
// endpoint.
func SetupRouter(cfg config.Config, db *gorm.DB, h *Handler, wsHandler *ws.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mw.CORS(cfg.Env))
	r.Use(metrics.GinMiddleware())
	// Keeps one misbehaving workshop participant from flooding the API.
	r.Use(mw.RateLimit(rate.Every(time.Second/20), 40))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")

	api.POST("/auth/signup", h.Signup)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/logout", h.Logout)

	authed := api.Group("")
	authed.Use(auth.SessionMiddleware(db))

	authed.GET("/websites", h.ListWebsites)
	authed.GET("/websites/:id", h.GetWebsite)
	authed.PUT("/websites/:id", h.UpdateWebsite)
	authed.POST("/websites/:id/rollback", h.Rollback)
	authed.POST("/websites/clone/:userId", h.CloneTemplate)
	authed.GET("/gallery", h.Gallery)
	authed.POST("/admin/token", h.AdminToken)

	admin := api.Group("/admin")
	admin.Use(auth.AdminMiddleware(cfg, db))
	admin.GET("/stats", h.AdminStats)

	r.GET("/ws", ws.Serve(wsHandler, db))

	return r
}

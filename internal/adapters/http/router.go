package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/voxcord/voxcord/internal/adapters/signal"
	"github.com/voxcord/voxcord/internal/app"
	"github.com/voxcord/voxcord/internal/config"
	"github.com/voxcord/voxcord/internal/core"
)

func SetupRouter(cfg *config.Config, verifier core.TokenVerifier, hub *app.Hub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.String(200, "ok")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctl := signal.NewController(hub, cfg)
	r.GET("/ws", AuthMiddleware(verifier), ctl.HandleWS)

	return r
}

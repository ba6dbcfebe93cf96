// Package http exposes the quote engine over a versioned REST API.
package http

import (
	"context"
	"errors"
	gohttp "net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/blockworks-foundation/autobahn-sub002/internal/config"
	"github.com/blockworks-foundation/autobahn-sub002/internal/http/httputil"
	"github.com/blockworks-foundation/autobahn-sub002/internal/http/middlewares"
)

const apiVersion = "v1"

type Server struct {
	server   *gohttp.Server
	conf     *config.Config
	handlers []httputil.Handler
}

func NewServer(conf *config.Config, handlers ...httputil.Handler) *Server {
	return &Server{conf: conf, handlers: handlers}
}

func (s *Server) Start() error {
	if s.conf.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	corsConf := cors.DefaultConfig()
	corsConf.AllowAllOrigins = true
	r.Use(cors.New(corsConf))

	r.Use(middlewares.Metrics())
	r.Use(middlewares.NewRateLimiter(10, 20).Middleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(gohttp.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("api").Group(apiVersion)
	for _, h := range s.handlers {
		h.SetRoutes(api.Group(h.Root()))
	}

	s.server = &gohttp.Server{
		Addr:    s.conf.HTTPHost + ":" + s.conf.HTTPPort,
		Handler: r,
	}
	log.Info().Str("host", s.conf.HTTPHost).Str("port", s.conf.HTTPPort).Msg("http server started")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, gohttp.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
		return err
	}
	log.Info().Msg("http server stopped gracefully")
	return nil
}

// Package server exposes the checkout pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"checkout-orchestrator/internal/config"
	"checkout-orchestrator/internal/logger"
	"checkout-orchestrator/internal/service"
)

// HealthCheck reports a dependency as down by returning an error.
type HealthCheck func(ctx context.Context) error

type Server struct {
	cfg      *config.Config
	checkout service.CheckoutService
	checks   map[string]HealthCheck
	limiter  *submitLimiter
	engine   *gin.Engine
}

func New(cfg *config.Config, checkout service.CheckoutService, checks map[string]HealthCheck) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		checkout: checkout,
		checks:   checks,
		limiter:  newSubmitLimiter(cfg.SubmitRatePerMinute),
	}
	s.engine = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", SessionHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", s.health)
	if s.cfg.EnableMetrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api/checkout")
	api.Use(AuthMiddleware(s.cfg.JWTSecret), RequireSession())
	{
		api.GET("/payment", s.loadPayment)
		api.PUT("/method", s.selectMethod)

		submit := api.Group("")
		submit.Use(s.limiter.middleware())
		submit.POST("/card", s.submitCard)
		submit.POST("/wallet/order", s.createWalletOrder)
		submit.POST("/wallet/approve", s.approveWallet)
		submit.POST("/cod", s.confirmPayOnDelivery)

		api.POST("/wallet/cancel", s.cancelWallet)
	}
	return r
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to 10 seconds.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.cfg.OrderAPITimeout + s.cfg.ProviderTimeout + 10*time.Second,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("http server shutting down", nil)
	return srv.Shutdown(shutdownCtx)
}

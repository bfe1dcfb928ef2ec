package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/progresspay/internal/audit"
	auditdomain "github.com/smallbiznis/progresspay/internal/audit/domain"
	"github.com/smallbiznis/progresspay/internal/config"
	"github.com/smallbiznis/progresspay/internal/lienwaiver"
	lienwaiverdomain "github.com/smallbiznis/progresspay/internal/lienwaiver/domain"
	"github.com/smallbiznis/progresspay/internal/observability"
	obslogger "github.com/smallbiznis/progresspay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/progresspay/internal/observability/metrics"
	obstracing "github.com/smallbiznis/progresspay/internal/observability/tracing"
	"github.com/smallbiznis/progresspay/internal/payapp"
	payappdomain "github.com/smallbiznis/progresspay/internal/payapp/domain"
	"github.com/smallbiznis/progresspay/internal/projectlock"
	"github.com/smallbiznis/progresspay/internal/providers"
	"github.com/smallbiznis/progresspay/internal/ratelimit"
	"github.com/smallbiznis/progresspay/internal/sov"
	sovdomain "github.com/smallbiznis/progresspay/internal/sov/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	projectlock.Module,
	ratelimit.Module,
	providers.Module,
	sov.Module,
	payapp.Module,
	lienwaiver.Module,
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	log           *zap.Logger
	limiter       *ratelimit.WriteLimiter
	auditSvc      auditdomain.Service
	sovSvc        sovdomain.Service
	payAppSvc     payappdomain.Service
	lienWaiverSvc lienwaiverdomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Log           *zap.Logger
	Limiter       *ratelimit.WriteLimiter `optional:"true"`
	AuditSvc      auditdomain.Service
	SOVSvc        sovdomain.Service
	PayAppSvc     payappdomain.Service
	LienWaiverSvc lienwaiverdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		log:           p.Log,
		limiter:       p.Limiter,
		auditSvc:      p.AuditSvc,
		sovSvc:        p.SOVSvc,
		payAppSvc:     p.PayAppSvc,
		lienWaiverSvc: p.LienWaiverSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(OrgContext(), RateLimitWrites(s.limiter, s.log))

	// -------- Schedule of values --------
	api.GET("/projects/:project_id/sov-items", s.ListSOVItems)
	api.POST("/projects/:project_id/sov-items", s.CreateSOVItem)
	api.GET("/sov-items/:id", s.GetSOVItem)
	api.PUT("/sov-items/:id", s.UpdateSOVItem)
	api.DELETE("/sov-items/:id", s.DeleteSOVItem)

	// -------- Pay applications --------
	api.GET("/projects/:project_id/pay-applications", s.ListPayApplications)
	api.POST("/projects/:project_id/pay-applications", s.CreatePayApplication)
	api.GET("/pay-applications/:id", s.GetPayApplication)
	api.PATCH("/pay-applications/:id", s.UpdatePayApplication)
	api.DELETE("/pay-applications/:id", s.DeletePayApplication)
	api.POST("/pay-applications/:id/transitions", s.TransitionPayApplication)
	api.GET("/pay-applications/:id/totals", s.GetPayApplicationTotals)
	api.GET("/pay-applications/:id/document", s.GetPayApplicationDocument)
	api.GET("/pay-applications/:id/history", s.GetPayApplicationHistory)
	api.PATCH("/pay-app-line-items/:id", s.UpdatePayAppLineItem)

	// -------- Lien waivers --------
	api.GET("/pay-applications/:id/lien-waivers", s.ListLienWaivers)
	api.POST("/pay-applications/:id/lien-waivers", s.RecordLienWaiver)

	api.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

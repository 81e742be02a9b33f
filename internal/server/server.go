package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/docflow/internal/config"
	ingestiondomain "github.com/smallbiznis/docflow/internal/ingestion/domain"
	"github.com/smallbiznis/docflow/internal/observability"
	obsmiddleware "github.com/smallbiznis/docflow/internal/observability/logger"
	obstracing "github.com/smallbiznis/docflow/internal/observability/tracing"
	processingdomain "github.com/smallbiznis/docflow/internal/processing/domain"
	"github.com/smallbiznis/docflow/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
	cfg           config.Config
	processingSvc processingdomain.Service
	ingestionSvc  ingestiondomain.Service
	ingestLimiter *ratelimit.IngestLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	ProcessingSvc processingdomain.Service
	IngestionSvc  ingestiondomain.Service
	IngestLimiter *ratelimit.IngestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		processingSvc: p.ProcessingSvc,
		ingestionSvc:  p.IngestionSvc,
		ingestLimiter: p.IngestLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerInboundRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(TenantContext())

	api.POST("/documents", UserRequired(), s.IngestRateLimit(scopeUpload, tenantKey), s.UploadDocument)
	api.POST("/documents/:id/process", s.ProcessDocument)
	api.POST("/documents/:id/retry", s.RetryDocument)
	api.POST("/documents/:id/validate", s.ValidateDocument)
	api.GET("/documents/:id/attempts", s.ListDocumentAttempts)

	api.GET("/processing/stats", UserRequired(), s.GetProcessingStats)

	api.GET("/email-settings", UserRequired(), s.GetEmailSettings)
	api.PUT("/email-settings", UserRequired(), s.UpdateEmailSettings)
}

// Inbound mail is resolved to a tenant from its addresses, not from headers.
func (s *Server) registerInboundRoutes() {
	inbound := s.engine.Group("/inbound")
	inbound.POST("/email", s.IngestRateLimit(scopeEmail, clientIPKey), s.IngestEmail)
}

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/fundops/internal/audit"
	auditdomain "github.com/smallbiznis/fundops/internal/audit/domain"
	"github.com/smallbiznis/fundops/internal/config"
	"github.com/smallbiznis/fundops/internal/fund"
	funddomain "github.com/smallbiznis/fundops/internal/fund/domain"
	"github.com/smallbiznis/fundops/internal/investment"
	obsmetrics "github.com/smallbiznis/fundops/internal/observability/metrics"
	"github.com/smallbiznis/fundops/internal/pricing"
	pricingdomain "github.com/smallbiznis/fundops/internal/pricing/domain"
	"github.com/smallbiznis/fundops/internal/tranche"
	tranchedomain "github.com/smallbiznis/fundops/internal/tranche/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	audit.Module,
	fund.Module,
	pricing.Module,
	investment.Module,
	tranche.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestMetadata())
	r.Use(OrgContext(cfg))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
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
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	genID  *snowflake.Node

	fundSvc    funddomain.Service
	pricingSvc pricingdomain.Service
	trancheSvc tranchedomain.Service
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin   *gin.Engine
	Cfg   config.Config
	DB    *gorm.DB
	GenID *snowflake.Node

	FundSvc    funddomain.Service
	PricingSvc pricingdomain.Service
	TrancheSvc tranchedomain.Service
	AuditSvc   auditdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		genID:      p.GenID,
		fundSvc:    p.FundSvc,
		pricingSvc: p.PricingSvc,
		trancheSvc: p.TrancheSvc,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	funds := v1.Group("/funds")
	funds.GET("", s.ListFunds)
	funds.GET("/:id", s.GetFund)
	funds.GET("/:id/progress", s.GetFundProgress)
	funds.GET("/:id/tranches", s.ListTranches)
	funds.GET("/:id/tranches/active", s.GetActiveTranche)
	funds.POST("/:id/tranches", s.CreateTranches)
	funds.PATCH("/:id/tranches/:trancheId", s.UpdateTranche)
	funds.POST("/:id/quotes", s.QuotePurchase)
	funds.POST("/:id/purchases", s.ExecutePurchase)
	funds.GET("/:id/investment-tranches", s.ListFundInvestmentTranches)
	funds.GET("/:id/tranche-stats", s.GetFundTrancheStats)
	funds.POST("/:id/overdue-detection", s.DetectOverdueTranches)

	investments := v1.Group("/investments")
	investments.POST("/:id/schedule", s.CreateSchedule)
	investments.GET("/:id/tranches", s.ListInvestmentTranches)
	investments.POST("/:id/recalculate", s.RecalculateInvestmentFunded)

	investmentTranches := v1.Group("/investment-tranches")
	investmentTranches.GET("/:id", s.GetInvestmentTranche)
	investmentTranches.POST("/:id/transition", s.TransitionTrancheStatus)

	v1.GET("/audit-logs", s.ListAuditLogs)
}

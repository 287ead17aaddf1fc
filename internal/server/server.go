// Package server exposes the compliance core over HTTP: the obligation and
// earned-credit lifecycles, the eLicensing integration seams, and the
// invoice mirror. Authentication happens upstream; this layer trusts the
// gateway's actor headers and enforces role capability per transition.
package server

import (
	"context"
	"net/http"
	"time"

	adjustmentdomain "github.com/cleanbc/obps/internal/adjustment/domain"
	"github.com/cleanbc/obps/internal/clock"
	complianceperioddomain "github.com/cleanbc/obps/internal/complianceperiod/domain"
	compliancereportdomain "github.com/cleanbc/obps/internal/compliancereport/domain"
	compliancestatusdomain "github.com/cleanbc/obps/internal/compliancestatus/domain"
	"github.com/cleanbc/obps/internal/config"
	earnedcreditdomain "github.com/cleanbc/obps/internal/earnedcredit/domain"
	integrationdomain "github.com/cleanbc/obps/internal/elicensing/integration/domain"
	invoicedomain "github.com/cleanbc/obps/internal/elicensing/invoice/domain"
	manualhandlingdomain "github.com/cleanbc/obps/internal/manualhandling/domain"
	obligationdomain "github.com/cleanbc/obps/internal/obligation/domain"
	penaltydomain "github.com/cleanbc/obps/internal/penalty/domain"
	"github.com/cleanbc/obps/internal/providers/pdf"
	registrydomain "github.com/cleanbc/obps/internal/registry/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(RunHTTP),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ActorMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
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
	log    *zap.Logger
	clock  clock.Clock

	obligationSvc     obligationdomain.Service
	earnedCreditSvc   earnedcreditdomain.Service
	versionSvc        compliancereportdomain.Service
	invoiceSvc        invoicedomain.Service
	integrationSvc    integrationdomain.Service
	penaltySvc        penaltydomain.Service
	statusSvc         compliancestatusdomain.Service
	adjustmentSvc     adjustmentdomain.Service
	manualHandlingSvc manualhandlingdomain.Service
	periodSvc         complianceperioddomain.Service
	registry          registrydomain.Repository
	pdf               pdf.Provider
}

type ServerParams struct {
	fx.In

	Gin   *gin.Engine
	Cfg   config.Config
	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock

	ObligationSvc     obligationdomain.Service
	EarnedCreditSvc   earnedcreditdomain.Service
	VersionSvc        compliancereportdomain.Service
	InvoiceSvc        invoicedomain.Service
	IntegrationSvc    integrationdomain.Service
	PenaltySvc        penaltydomain.Service
	StatusSvc         compliancestatusdomain.Service
	AdjustmentSvc     adjustmentdomain.Service
	ManualHandlingSvc manualhandlingdomain.Service
	PeriodSvc         complianceperioddomain.Service
	Registry          registrydomain.Repository
	PDF               pdf.Provider
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:            p.Gin,
		cfg:               p.Cfg,
		db:                p.DB,
		log:               p.Log.Named("http"),
		clock:             p.Clock,
		obligationSvc:     p.ObligationSvc,
		earnedCreditSvc:   p.EarnedCreditSvc,
		versionSvc:        p.VersionSvc,
		invoiceSvc:        p.InvoiceSvc,
		integrationSvc:    p.IntegrationSvc,
		penaltySvc:        p.PenaltySvc,
		statusSvc:         p.StatusSvc,
		adjustmentSvc:     p.AdjustmentSvc,
		manualHandlingSvc: p.ManualHandlingSvc,
		periodSvc:         p.PeriodSvc,
		registry:          p.Registry,
		pdf:               p.PDF,
	}
}

func RegisterRoutes(s *Server) {
	s.RegisterAPIRoutes()
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api/v1")

	versions := api.Group("/compliance-report-versions")
	versions.POST("/:id/resolve", s.ResolveReportVersion)
	versions.GET("/:id/obligation", s.GetObligation)
	versions.GET("/:id/earned-credit", s.GetEarnedCredit)
	versions.GET("/:id/invoice", s.GetObligationInvoice)
	versions.POST("/:id/status-pass", s.RunStatusPass)
	versions.POST("/:id/adjustments/preview", s.PreviewAdjustments)
	versions.POST("/:id/adjustments/apply", s.ApplyAdjustments)
	versions.GET("/:id/manual-handling", s.GetManualHandling)
	versions.PUT("/:id/manual-handling/analyst", s.UpdateManualHandlingAnalyst)
	versions.PUT("/:id/manual-handling/director", s.UpdateManualHandlingDirector)

	obligations := api.Group("/obligations")
	obligations.GET("/:id", s.GetObligationByID)
	obligations.POST("/:id/penalty", s.CreatePenalty)
	obligations.GET("/:id/penalty", s.GetPenalty)
	obligations.GET("/:id/penalty-notice.pdf", s.DownloadPenaltyNotice)

	credits := api.Group("/earned-credits")
	credits.POST("/:id/request-issuance", s.RequestIssuance)
	credits.POST("/:id/submit", s.SubmitForApproval)
	credits.POST("/:id/approve", s.ApproveIssuance)
	credits.POST("/:id/request-changes", s.RequestIssuanceChanges)
	credits.POST("/:id/decline", s.DeclineIssuance)

	invoices := api.Group("/invoices")
	invoices.GET("/:id", s.GetInvoice)
	invoices.POST("/:id/refresh", s.RefreshInvoice)
	invoices.GET("/:id/statement.pdf", s.DownloadStatement)

	integration := api.Group("/integration")
	integration.POST("/jobs/:id/process", s.ProcessIntegrationJob)
	integration.POST("/drain", s.DrainIntegrationQueue)

	rates := api.Group("/interest-rates")
	rates.GET("", s.ListInterestRates)
	rates.POST("", s.SaveInterestRate)
}

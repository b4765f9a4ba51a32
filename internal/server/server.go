package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/workdesk/internal/audit"
	auditdomain "github.com/smallbiznis/workdesk/internal/audit/domain"
	"github.com/smallbiznis/workdesk/internal/auth"
	authdomain "github.com/smallbiznis/workdesk/internal/auth/domain"
	"github.com/smallbiznis/workdesk/internal/authorization"
	"github.com/smallbiznis/workdesk/internal/config"
	"github.com/smallbiznis/workdesk/internal/directory"
	directorydomain "github.com/smallbiznis/workdesk/internal/directory/domain"
	"github.com/smallbiznis/workdesk/internal/invoice"
	invoicedomain "github.com/smallbiznis/workdesk/internal/invoice/domain"
	"github.com/smallbiznis/workdesk/internal/notification"
	"github.com/smallbiznis/workdesk/internal/observability"
	obsmiddleware "github.com/smallbiznis/workdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/workdesk/internal/observability/metrics"
	obstracing "github.com/smallbiznis/workdesk/internal/observability/tracing"
	"github.com/smallbiznis/workdesk/internal/providers"
	"github.com/smallbiznis/workdesk/internal/ratelimit"
	"github.com/smallbiznis/workdesk/internal/signup"
	signupdomain "github.com/smallbiznis/workdesk/internal/signup/domain"
	"github.com/smallbiznis/workdesk/internal/taxrate"
	taxdomain "github.com/smallbiznis/workdesk/internal/taxrate/domain"
	"github.com/smallbiznis/workdesk/internal/workorder"
	workorderdomain "github.com/smallbiznis/workdesk/internal/workorder/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	auth.Module,
	directory.Module,
	signup.Module,
	taxrate.Module,
	providers.Module,
	notification.Module,
	ratelimit.Module,
	invoice.Module,
	workorder.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
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

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine       *gin.Engine
	cfg          config.Config
	authsvc      authdomain.Service
	authzSvc     authorization.Service
	auditSvc     auditdomain.Service
	signupsvc    signupdomain.Service
	directorySvc directorydomain.Service
	taxRateSvc   taxdomain.Service
	invoiceSvc   invoicedomain.Service
	workOrderSvc workorderdomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Authsvc      authdomain.Service
	AuthzSvc     authorization.Service
	AuditSvc     auditdomain.Service
	Signupsvc    signupdomain.Service
	DirectorySvc directorydomain.Service
	TaxRateSvc   taxdomain.Service
	InvoiceSvc   invoicedomain.Service
	WorkOrderSvc workorderdomain.Service
}

func NewServer(p ServerParams) *Server {
	useJSONFieldNames()

	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		authsvc:      p.Authsvc,
		authzSvc:     p.AuthzSvc,
		auditSvc:     p.AuditSvc,
		signupsvc:    p.Signupsvc,
		directorySvc: p.DirectorySvc,
		taxRateSvc:   p.TaxRateSvc,
		invoiceSvc:   p.InvoiceSvc,
		workOrderSvc: p.WorkOrderSvc,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/login/:kind", s.Login)
	auth.POST("/register", s.Signup)
	auth.GET("/me", s.AuthRequired(), s.Me)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Work orders --------
	api.POST("/work-orders", s.CreateWorkOrder)
	api.GET("/work-orders", s.ListWorkOrders)
	api.GET("/work-orders/:id", s.GetWorkOrder)
	api.GET("/work-orders/:id/history", s.GetWorkOrderHistory)
	api.PUT("/work-orders/:id", s.UpdateWorkOrder)
	api.PUT("/work-orders/:id/complete", s.CompleteWorkOrder)
	api.POST("/work-orders/:id/decline", s.DeclineWorkOrder)
	api.DELETE("/work-orders/:id", s.DeleteWorkOrder)

	// -------- Invoices --------
	api.GET("/invoices", s.ListInvoices)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.PATCH("/invoices/:id/payment", s.UpdateInvoicePayment)
	api.GET("/invoices/:id/pdf", s.DownloadInvoice)

	// -------- Tax rates --------
	api.GET("/tax-rates", s.ListTaxRates)
	api.GET("/tax-rates/:type/history", s.ListTaxRateHistory)
	api.PUT("/tax-rates/:type", s.SetTaxRate)

	// -------- Directory --------
	api.GET("/departments", s.ListDepartments)
	api.POST("/departments", s.CreateDepartment)
	api.GET("/departments/:id", s.GetDepartment)
	api.PUT("/departments/:id", s.UpdateDepartment)
	api.DELETE("/departments/:id", s.DeleteDepartment)

	api.GET("/companies", s.ListCompanies)
	api.POST("/companies", s.CreateCompany)
	api.GET("/companies/:id", s.GetCompany)
	api.PUT("/companies/:id", s.UpdateCompany)
	api.DELETE("/companies/:id", s.DeleteCompany)

	api.GET("/employees", s.ListEmployees)
	api.POST("/employees", s.CreateEmployee)
	api.GET("/employees/:id", s.GetEmployee)
	api.PUT("/employees/:id", s.UpdateEmployee)
	api.DELETE("/employees/:id", s.DeleteEmployee)

	api.GET("/admins", s.ListAdmins)
	api.POST("/admins", s.CreateAdmin)
	api.GET("/admins/:id", s.GetAdmin)
	api.PUT("/admins/:id", s.UpdateAdmin)
	api.DELETE("/admins/:id", s.DeleteAdmin)

	// -------- Audit --------
	api.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/argan/internal/domain/models"
	"github.com/mamadbah2/argan/internal/server/handlers"
	"github.com/mamadbah2/argan/internal/server/live"
)

// Options selects the handlers and limits the router is built with.
type Options struct {
	Ledger *handlers.LedgerHandler
	// Webhook routes are only registered when set.
	Webhook *handlers.WebhookHandler
	// Live serves /api/live when set.
	Live *live.Hub
	// RateLimit is the number of requests allowed per client IP in
	// RateWindow. Zero disables limiting.
	RateLimit  int
	RateWindow time.Duration
}

// New wires the Gin engine with required routes and middlewares.
func New(opts Options, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if logger == nil {
		logger = zap.NewNop()
	}
	ledger, webhook := opts.Ledger, opts.Webhook

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))
	r.Use(secureHeaders(logger))
	if opts.RateLimit > 0 {
		r.Use(rateLimit(opts.RateLimit, opts.RateWindow))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		records(api, "/members", models.CollectionMembers, ledger, ledger.ListMembers, ledger.SaveMember)
		records(api, "/purchases", models.CollectionPurchases, ledger, ledger.ListPurchases, ledger.SavePurchase)
		records(api, "/production", models.CollectionProduction, ledger, ledger.ListProduction, ledger.SaveProduction)
		records(api, "/sales", models.CollectionSales, ledger, ledger.ListSales, ledger.SaveSale)
		records(api, "/stock", models.CollectionStock, ledger, ledger.ListStock, ledger.SaveStock)
		records(api, "/accounting", models.CollectionAccounting, ledger, ledger.ListAccounting, ledger.SaveAccounting)

		api.GET("/dashboard", ledger.Dashboard)
		api.GET("/alerts", ledger.Alerts)
		api.GET("/accounting/stats", ledger.AccountingStats)
		api.GET("/charts/monthly", ledger.MonthlyChart)
		api.GET("/charts/yields", ledger.YieldChart)
		api.GET("/charts/annual", ledger.AnnualChart)
		api.GET("/export/sales.csv", ledger.ExportSales)
		api.GET("/settings", ledger.GetSettings)
		api.PUT("/settings", ledger.SaveSettings)

		if opts.Live != nil {
			api.GET("/live", opts.Live.ServeWS)
		}
	}

	if webhook != nil {
		r.GET("/webhook", webhook.Verify)
		r.POST("/webhook", webhook.Receive)
		r.POST("/send-message", webhook.SendMessage)
	}

	logger.Info("router initialized",
		zap.Bool("webhook", webhook != nil),
		zap.Bool("live", opts.Live != nil),
		zap.Int("rate_limit", opts.RateLimit))

	return r
}

func records(api *gin.RouterGroup, path string, collection models.Collection, h *handlers.LedgerHandler, list, save gin.HandlerFunc) {
	group := api.Group(path)
	group.GET("", list)
	group.POST("", save)
	group.PUT("/:id", save)
	group.DELETE("/:id", h.Delete(collection))
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("request completed", fields...)
			return
		}
		logger.Info("request completed", fields...)
	}
}

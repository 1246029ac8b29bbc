package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/argan/internal/domain/models"
	"github.com/mamadbah2/argan/internal/service/ledger"
)

// LedgerService is the part of the ledger engine exposed over HTTP.
type LedgerService interface {
	RecordPurchase(ctx context.Context, in ledger.PurchaseInput) (models.Purchase, error)
	RecordProduction(ctx context.Context, in ledger.ProductionInput) (models.ProductionBatch, error)
	RecordSale(ctx context.Context, in ledger.SaleInput) (models.Sale, error)
	RecordStockAdjustment(ctx context.Context, in ledger.StockInput) (models.StockItem, error)
	RecordAccountingEntry(ctx context.Context, in ledger.AccountingInput) (models.AccountingEntry, error)
	SaveMember(ctx context.Context, in ledger.MemberInput) (models.Member, error)
	DeleteRecord(ctx context.Context, collection models.Collection, id string) error
	SaveSettings(ctx context.Context, update models.Settings) (models.Settings, error)

	CheckProduction(fruitsUsed float64) *models.Warning
	CheckSale(product string, quantity float64) *models.Warning

	DashboardSummary() models.DashboardSummary
	LowStockAlerts() []models.StockItem
	AccountingStats() models.AccountingStats
	MonthlyFlows() []models.MonthlyFlow
	ProductionYields(limit int) []models.YieldPoint
	AnnualAccounting() []models.AnnualTotals
	Members(f ledger.MemberFilter) []models.Member
	Purchases(search string) []models.Purchase
	Production() []models.ProductionBatch
	Sales(search string) []models.Sale
	Stock() []models.StockItem
	Accounting(f ledger.AccountingFilter) []models.AccountingEntry
	Settings() models.Settings
}

// SalesExporter renders the sales table.
type SalesExporter interface {
	WriteSalesCSV(w io.Writer, sales []models.Sale) error
}

// LedgerHandler serves the record, projection and export endpoints.
type LedgerHandler struct {
	ledger   LedgerService
	exporter SalesExporter
	fileName string
	logger   *zap.Logger
}

// NewLedgerHandler constructs the HTTP handler adapter.
func NewLedgerHandler(svc LedgerService, exporter SalesExporter, exportFileName string, logger *zap.Logger) *LedgerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerHandler{ledger: svc, exporter: exporter, fileName: exportFileName, logger: logger}
}

// ListMembers supports ?search= and ?role=.
func (h *LedgerHandler) ListMembers(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.Members(ledger.MemberFilter{
		Search: c.Query("search"),
		Role:   models.Role(c.Query("role")),
	}))
}

// SaveMember creates a member on POST and overwrites one on PUT.
func (h *LedgerHandler) SaveMember(c *gin.Context) {
	save[memberRequest](h, c, nil, h.ledger.SaveMember)
}

// ListPurchases supports ?search= on the supplier.
func (h *LedgerHandler) ListPurchases(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.Purchases(c.Query("search")))
}

// SavePurchase creates or overwrites a purchase.
func (h *LedgerHandler) SavePurchase(c *gin.Context) {
	save[purchaseRequest](h, c, nil, h.ledger.RecordPurchase)
}

// ListProduction returns the batches, newest first.
func (h *LedgerHandler) ListProduction(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.Production())
}

// SaveProduction answers 409 with the stock warning unless ?confirm=true.
func (h *LedgerHandler) SaveProduction(c *gin.Context) {
	save[productionRequest](h, c, func(in ledger.ProductionInput) *models.Warning {
		return h.ledger.CheckProduction(in.FruitsUsed)
	}, h.ledger.RecordProduction)
}

// ListSales supports ?search= on the client and the invoice number.
func (h *LedgerHandler) ListSales(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.Sales(c.Query("search")))
}

// SaveSale answers 409 with the stock warning unless ?confirm=true.
func (h *LedgerHandler) SaveSale(c *gin.Context) {
	save[saleRequest](h, c, func(in ledger.SaleInput) *models.Warning {
		return h.ledger.CheckSale(in.Product, in.Quantity)
	}, h.ledger.RecordSale)
}

// ListStock returns the stock items in insertion order.
func (h *LedgerHandler) ListStock(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.Stock())
}

// SaveStock creates or overwrites a stock item.
func (h *LedgerHandler) SaveStock(c *gin.Context) {
	save[stockRequest](h, c, nil, h.ledger.RecordStockAdjustment)
}

// ListAccounting supports ?search= and ?category=.
func (h *LedgerHandler) ListAccounting(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.Accounting(ledger.AccountingFilter{
		Search:   c.Query("search"),
		Category: c.Query("category"),
	}))
}

// SaveAccounting creates or overwrites an accounting entry.
func (h *LedgerHandler) SaveAccounting(c *gin.Context) {
	save[accountingRequest](h, c, nil, h.ledger.RecordAccountingEntry)
}

// Delete returns a handler removing records of collection. The request must
// carry ?confirm=true.
func (h *LedgerHandler) Delete(collection models.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !confirmed(c) {
			c.JSON(http.StatusPreconditionRequired, gin.H{"error": "deletion must be confirmed with ?confirm=true"})
			return
		}

		id := c.Param("id")
		if err := h.ledger.DeleteRecord(c.Request.Context(), collection, id); err != nil {
			h.logger.Error("delete failed", zap.String("collection", string(collection)), zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete record"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// Dashboard returns the headline figures.
func (h *LedgerHandler) Dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.DashboardSummary())
}

// Alerts returns the stock items below their minimum.
func (h *LedgerHandler) Alerts(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.LowStockAlerts())
}

// AccountingStats returns revenue, expenses and balance.
func (h *LedgerHandler) AccountingStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.AccountingStats())
}

// MonthlyChart returns sales and purchase totals per month.
func (h *LedgerHandler) MonthlyChart(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.MonthlyFlows())
}

// YieldChart supports ?limit=, defaulting to the last ten batches.
func (h *LedgerHandler) YieldChart(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	c.JSON(http.StatusOK, h.ledger.ProductionYields(limit))
}

// AnnualChart returns revenue and expenses per year.
func (h *LedgerHandler) AnnualChart(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.AnnualAccounting())
}

// ExportSales streams every sale as a CSV attachment.
func (h *LedgerHandler) ExportSales(c *gin.Context) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.fileName))
	c.Status(http.StatusOK)

	if err := h.exporter.WriteSalesCSV(c.Writer, h.ledger.Sales("")); err != nil {
		h.logger.Error("sales export failed", zap.Error(err))
	}
}

// GetSettings returns the organization settings.
func (h *LedgerHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.Settings())
}

// SaveSettings merges the non-empty fields of the body.
func (h *LedgerHandler) SaveSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid settings payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	settings, err := h.ledger.SaveSettings(c.Request.Context(), models.Settings{Name: req.Name, Phone: req.Phone, Address: req.Address})
	if err != nil {
		h.logger.Error("save settings failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save settings"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

type requestBody[In any] interface {
	input(id string) (In, error)
}

// save binds R, runs the optional advisory check on creation and applies op.
// A POST creates (201), a PUT overwrites the :id record (200) or answers 204
// when that record no longer exists.
func save[R requestBody[In], In any, Out any](
	h *LedgerHandler,
	c *gin.Context,
	check func(In) *models.Warning,
	op func(context.Context, In) (Out, error),
) {
	var req R
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid record payload", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id := c.Param("id")
	in, err := req.input(id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if id == "" && check != nil && !confirmed(c) {
		if warning := check(in); warning != nil {
			c.JSON(http.StatusConflict, gin.H{"warning": warning})
			return
		}
	}

	record, err := op(c.Request.Context(), in)
	switch {
	case errors.Is(err, ledger.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ledger.ErrDuplicateInvoice):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("record operation failed", zap.String("path", c.FullPath()), zap.Error(err))
		body := gin.H{"error": "failed to save record"}
		if recordID(&record) != "" {
			body["record"] = record
		}
		c.JSON(http.StatusInternalServerError, body)
		return
	}

	switch {
	case id == "":
		c.JSON(http.StatusCreated, record)
	case recordID(&record) == "":
		c.Status(http.StatusNoContent)
	default:
		c.JSON(http.StatusOK, record)
	}
}

func recordID(record any) string {
	if r, ok := record.(interface{ GetID() string }); ok {
		return r.GetID()
	}
	return ""
}

func confirmed(c *gin.Context) bool {
	ok, _ := strconv.ParseBool(c.Query("confirm"))
	return ok
}

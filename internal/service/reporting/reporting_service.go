package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/argan/internal/domain/models"
)

const (
	// DateLayout is the day-first layout used in exports and chat replies.
	DateLayout = "02/01/2006"
	// SalesFileName is the suggested name of the sales export.
	SalesFileName = "argan_sales.csv"

	csvSeparator = ';'
)

// Source is the read side of the ledger the summaries are built from.
type Source interface {
	DashboardSummary() models.DashboardSummary
	AccountingStats() models.AccountingStats
	LowStockAlerts() []models.StockItem
	Stock() []models.StockItem
	Purchases(search string) []models.Purchase
	Production() []models.ProductionBatch
	Sales(search string) []models.Sale
}

// Service formats ledger data for exports, chat replies and scheduled reports.
type Service struct {
	source   Source
	currency string
	logger   *zap.Logger
}

// NewService wires a new reporting service instance.
func NewService(source Source, currency string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if currency == "" {
		currency = "MAD"
	}
	return &Service{source: source, currency: strings.ToUpper(currency), logger: logger}
}

// Currency returns the ISO code amounts are displayed in.
func (s *Service) Currency() string {
	return s.currency
}

// FormatCurrency renders amount with two decimals and the currency symbol.
// Unknown currency codes fall back to "<amount> <code>".
func (s *Service) FormatCurrency(amount float64) string {
	cur := money.GetCurrency(s.currency)
	if cur == nil {
		return fmt.Sprintf("%s %s", formatNumber(amount), s.currency)
	}

	factor, _ := decimal.NewFromInt(10).PowInt32(int32(cur.Fraction))
	minor := decimal.NewFromFloat(amount).Mul(factor).Round(0)
	return money.New(minor.IntPart(), s.currency).Display()
}

// SalesHeader is the first row of every sales export.
func (s *Service) SalesHeader() []string {
	return []string{
		"Invoice No.",
		"Date",
		"Client",
		"Product",
		"Quantity",
		fmt.Sprintf("Unit Price (%s)", s.currency),
		fmt.Sprintf("Total (%s)", s.currency),
	}
}

// WriteSalesCSV writes sales as a semicolon separated table with a header row.
func (s *Service) WriteSalesCSV(w io.Writer, sales []models.Sale) error {
	writer := csv.NewWriter(w)
	writer.Comma = csvSeparator

	if err := writer.Write(s.SalesHeader()); err != nil {
		return fmt.Errorf("write sales header: %w", err)
	}
	for _, sale := range sales {
		if err := writer.Write(saleRecord(sale)); err != nil {
			return fmt.Errorf("write sale %s: %w", sale.InvoiceNumber, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush sales export: %w", err)
	}
	return nil
}

// SalesRows renders sales, header first, in the shape the Sheets API expects.
func (s *Service) SalesRows(sales []models.Sale) [][]interface{} {
	rows := make([][]interface{}, 0, len(sales)+1)
	rows = append(rows, toRow(s.SalesHeader()))
	for _, sale := range sales {
		rows = append(rows, toRow(saleRecord(sale)))
	}
	return rows
}

// WeeklySummary reports activity between start and end along with the
// running totals.
func (s *Service) WeeklySummary(start, end time.Time) string {
	var bought, boughtCost float64
	var purchases int
	for _, p := range s.source.Purchases("") {
		if inPeriod(p.Date, start, end) {
			bought += p.Quantity
			boughtCost += p.Total
			purchases++
		}
	}

	var pressed, oil float64
	var batches int
	for _, b := range s.source.Production() {
		if inPeriod(b.Date, start, end) {
			pressed += b.FruitsUsed
			oil += b.OilProduced
			batches++
		}
	}

	var revenue float64
	var sales int
	for _, sale := range s.source.Sales("") {
		if inPeriod(sale.Date, start, end) {
			revenue += sale.Total
			sales++
		}
	}

	summary := s.source.DashboardSummary()

	var b strings.Builder
	fmt.Fprintf(&b, "Weekly report (%s-%s)\n", start.Format(DateLayout), end.Format(DateLayout))
	if purchases+batches+sales == 0 {
		b.WriteString("No activity recorded this period.\n")
	} else {
		fmt.Fprintf(&b, "Purchases: %s kg of fruit for %s (%d)\n", formatNumber(bought), s.FormatCurrency(boughtCost), purchases)
		fmt.Fprintf(&b, "Production: %s L of oil from %s kg (%d batches)\n", formatNumber(oil), formatNumber(pressed), batches)
		fmt.Fprintf(&b, "Sales: %s (%d)\n", s.FormatCurrency(revenue), sales)
	}
	fmt.Fprintf(&b, "Fruit stock: %s kg\n", formatNumber(summary.FruitStock))
	fmt.Fprintf(&b, "Oil available: %s L\n", formatNumber(summary.OilAvailable))
	fmt.Fprintf(&b, "Total revenue: %s\n", s.FormatCurrency(summary.TotalRevenue))
	fmt.Fprintf(&b, "Net profit: %s", s.FormatCurrency(summary.NetProfit))

	if alerts := s.source.LowStockAlerts(); len(alerts) > 0 {
		fmt.Fprintf(&b, "\n%d item(s) below minimum, send /alerts for details.", len(alerts))
	}
	return b.String()
}

// StockSummary lists every stock item and the derived fruit balance.
func (s *Service) StockSummary() string {
	var b strings.Builder
	b.WriteString("Stock\n")
	fmt.Fprintf(&b, "- Fruit: %s kg\n", formatNumber(s.source.DashboardSummary().FruitStock))

	items := s.source.Stock()
	if len(items) == 0 {
		b.WriteString("No stock items recorded.")
		return b.String()
	}
	for i, item := range items {
		fmt.Fprintf(&b, "- %s: %s %s (min %s)", item.Item, formatNumber(item.Available), item.Unit, formatNumber(item.Minimum))
		if item.Low() {
			b.WriteString(" LOW")
		}
		if i < len(items)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// AlertsSummary lists the items below their minimum.
func (s *Service) AlertsSummary() string {
	alerts := s.source.LowStockAlerts()
	if len(alerts) == 0 {
		return "All stock levels are above their minimum."
	}

	lines := make([]string, 0, len(alerts)+1)
	lines = append(lines, fmt.Sprintf("%d item(s) below minimum:", len(alerts)))
	for _, item := range alerts {
		lines = append(lines, fmt.Sprintf("- %s: %s %s (min %s)", item.Item, formatNumber(item.Available), item.Unit, formatNumber(item.Minimum)))
	}
	return strings.Join(lines, "\n")
}

// AccountingSummary reports the ledger balance.
func (s *Service) AccountingSummary() string {
	stats := s.source.AccountingStats()
	return fmt.Sprintf("Revenue: %s\nExpenses: %s\nBalance: %s",
		s.FormatCurrency(stats.Revenue), s.FormatCurrency(stats.Expenses), s.FormatCurrency(stats.Balance))
}

func saleRecord(sale models.Sale) []string {
	return []string{
		sale.InvoiceNumber,
		formatDate(sale.Date),
		sale.Client,
		sale.Product,
		formatNumber(sale.Quantity),
		formatNumber(sale.UnitPrice),
		formatNumber(sale.Total),
	}
}

func toRow(values []string) []interface{} {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

func inPeriod(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// formatNumber rounds the exact binary value of v, so 1.005 (stored as
// 1.00499...) prints "1.00" and exact ties such as 0.125 round up.
func formatNumber(v float64) string {
	return decimal.NewFromFloatWithExponent(v, -30).StringFixed(2)
}

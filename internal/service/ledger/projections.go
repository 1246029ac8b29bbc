package ledger

import (
	"slices"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/mamadbah2/argan/internal/domain/models"
)

// DefaultYieldWindow is the number of batches shown on the yield chart.
const DefaultYieldWindow = 10

// MemberFilter narrows the member list. Zero values match everything.
type MemberFilter struct {
	Search string
	Role   models.Role
}

// AccountingFilter narrows the ledger. Category matches entries whose
// category starts with its first word, so "Expense (Transport)" selects
// every "Expense…" entry.
type AccountingFilter struct {
	Search   string
	Category string
}

// DashboardSummary computes the headline figures over the full history.
// Fruit stock may be negative when batches used more fruit than was bought.
func (e *Engine) DashboardSummary() models.DashboardSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var summary models.DashboardSummary
	var purchaseCost float64
	for _, p := range e.state.purchases {
		summary.FruitStock += p.Quantity
		purchaseCost += p.Total
	}
	for _, b := range e.state.production {
		summary.FruitStock -= b.FruitsUsed
		summary.OilProduced += b.OilProduced
	}
	for _, s := range e.state.sales {
		summary.TotalRevenue += s.Total
	}
	if oil, ok := findOil(e.state.stock); ok {
		summary.OilAvailable = oil.Available
	}
	summary.NetProfit = summary.TotalRevenue - purchaseCost
	return summary
}

// LowStockAlerts returns the items below their minimum, in stock order.
func (e *Engine) LowStockAlerts() []models.StockItem {
	e.mu.RLock()
	defer e.mu.RUnlock()

	alerts := []models.StockItem{}
	for _, item := range e.state.stock {
		if item.Low() {
			alerts = append(alerts, item)
		}
	}
	return alerts
}

// AccountingStats sums the ledger by direction.
func (e *Engine) AccountingStats() models.AccountingStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var stats models.AccountingStats
	for _, a := range e.state.accounting {
		if a.Kind() == models.KindRevenue {
			stats.Revenue += a.Amount
		} else {
			stats.Expenses += a.Amount
		}
	}
	stats.Balance = stats.Revenue - stats.Expenses
	return stats
}

// MonthlyFlows totals sales and purchases per calendar month, oldest first.
// Undated records are left out.
func (e *Engine) MonthlyFlows() []models.MonthlyFlow {
	e.mu.RLock()
	defer e.mu.RUnlock()

	byMonth := make(map[string]*models.MonthlyFlow)
	bucket := func(t time.Time) *models.MonthlyFlow {
		key := t.Format("2006-01")
		flow, ok := byMonth[key]
		if !ok {
			flow = &models.MonthlyFlow{Month: key}
			byMonth[key] = flow
		}
		return flow
	}

	for _, s := range e.state.sales {
		if !s.Date.IsZero() {
			bucket(s.Date).Sales += s.Total
		}
	}
	for _, p := range e.state.purchases {
		if !p.Date.IsZero() {
			bucket(p.Date).Purchases += p.Total
		}
	}

	flows := make([]models.MonthlyFlow, 0, len(byMonth))
	for _, flow := range byMonth {
		flows = append(flows, *flow)
	}
	sort.Slice(flows, func(i, j int) bool { return flows[i].Month < flows[j].Month })
	return flows
}

// ProductionYields returns the yield of the latest limit batches, oldest
// first. A non-positive limit uses DefaultYieldWindow.
func (e *Engine) ProductionYields(limit int) []models.YieldPoint {
	if limit <= 0 {
		limit = DefaultYieldWindow
	}

	batches := e.Production()
	if len(batches) > limit {
		batches = batches[:limit]
	}
	slices.Reverse(batches)

	points := make([]models.YieldPoint, 0, len(batches))
	for _, b := range batches {
		point := models.YieldPoint{BatchID: b.ID, Date: b.Date.Format(time.DateOnly)}
		if y, ok := b.Yield(); ok {
			point.Yield = &y
		}
		points = append(points, point)
	}
	return points
}

// AnnualAccounting totals the ledger per calendar year, oldest first.
func (e *Engine) AnnualAccounting() []models.AnnualTotals {
	e.mu.RLock()
	defer e.mu.RUnlock()

	byYear := make(map[int]*models.AnnualTotals)
	for _, a := range e.state.accounting {
		if a.Date.IsZero() {
			continue
		}
		year := a.Date.Year()
		totals, ok := byYear[year]
		if !ok {
			totals = &models.AnnualTotals{Year: year}
			byYear[year] = totals
		}
		if a.Kind() == models.KindRevenue {
			totals.Revenue += a.Amount
		} else {
			totals.Expenses += a.Amount
		}
	}

	out := make([]models.AnnualTotals, 0, len(byYear))
	for _, totals := range byYear {
		out = append(out, *totals)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// Members lists members matching f in insertion order. Search matches the
// name or the role.
func (e *Engine) Members(f MemberFilter) []models.Member {
	e.mu.RLock()
	defer e.mu.RUnlock()

	search := fold(f.Search)
	out := []models.Member{}
	for _, m := range e.state.members {
		if !contains(m.Name, search) && !contains(string(m.Role), search) {
			continue
		}
		if f.Role != "" && m.Role != f.Role {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Purchases lists purchases whose supplier matches search, newest first.
func (e *Engine) Purchases(search string) []models.Purchase {
	e.mu.RLock()
	defer e.mu.RUnlock()

	search = fold(search)
	out := []models.Purchase{}
	for _, p := range e.state.purchases {
		if contains(p.Supplier, search) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

// Production lists every batch, newest first.
func (e *Engine) Production() []models.ProductionBatch {
	e.mu.RLock()
	out := slices.Clone(e.state.production)
	e.mu.RUnlock()

	if out == nil {
		out = []models.ProductionBatch{}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

// Sales lists sales whose client or invoice number matches search, newest first.
func (e *Engine) Sales(search string) []models.Sale {
	e.mu.RLock()
	defer e.mu.RUnlock()

	search = fold(search)
	out := []models.Sale{}
	for _, s := range e.state.sales {
		if contains(s.Client, search) || contains(s.InvoiceNumber, search) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

// Stock lists every stock item in insertion order.
func (e *Engine) Stock() []models.StockItem {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := slices.Clone(e.state.stock)
	if out == nil {
		out = []models.StockItem{}
	}
	return out
}

// Accounting lists ledger entries matching f, newest first.
func (e *Engine) Accounting(f AccountingFilter) []models.AccountingEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()

	search := fold(f.Search)
	prefix := ""
	if fields := strings.Fields(f.Category); len(fields) > 0 {
		prefix = fields[0]
	}

	out := []models.AccountingEntry{}
	for _, a := range e.state.accounting {
		if !contains(a.Description, search) && !contains(a.Category, search) {
			continue
		}
		if !strings.HasPrefix(a.Category, prefix) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

// OilStock returns the finished-oil stock item, located by name.
func (e *Engine) OilStock() (models.StockItem, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return findOil(e.state.stock)
}

// Settings returns the shared organization settings.
func (e *Engine) Settings() models.Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.settings
}

func findOil(items []models.StockItem) (models.StockItem, bool) {
	for _, item := range items {
		if item.Item == models.OilStockItemName {
			return item, true
		}
	}
	return models.StockItem{}, false
}

// contains reports whether value holds needle, ignoring case and accents,
// so "aicha" finds "Aïcha". needle must already be folded.
func contains(value, needle string) bool {
	return strings.Contains(fold(value), needle)
}

func fold(s string) string {
	if s == "" {
		return s
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())
	folded, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return folded
}

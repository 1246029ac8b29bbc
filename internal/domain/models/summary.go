package models

// DashboardSummary is recomputed from the collections on every request.
type DashboardSummary struct {
	FruitStock   float64 `json:"fruitStock"`
	OilProduced  float64 `json:"oilProduced"`
	OilAvailable float64 `json:"oilAvailable"`
	TotalRevenue float64 `json:"totalRevenue"`
	NetProfit    float64 `json:"netProfit"`
}

// AccountingStats sums the ledger by direction.
type AccountingStats struct {
	Revenue  float64 `json:"revenue"`
	Expenses float64 `json:"expenses"`
	Balance  float64 `json:"balance"`
}

// MonthlyFlow is one point of the sales versus purchases chart.
type MonthlyFlow struct {
	Month     string  `json:"month"` // YYYY-MM
	Sales     float64 `json:"sales"`
	Purchases float64 `json:"purchases"`
}

// YieldPoint is one point of the production yield chart. Yield is nil
// when the batch used no fruit.
type YieldPoint struct {
	BatchID string   `json:"batchId"`
	Date    string   `json:"date"`
	Yield   *float64 `json:"yield"`
}

// AnnualTotals groups the ledger by calendar year.
type AnnualTotals struct {
	Year     int     `json:"year"`
	Revenue  float64 `json:"revenue"`
	Expenses float64 `json:"expenses"`
}

// Warning is an advisory stock check result. Callers should ask for
// confirmation before proceeding; nothing enforces it.
type Warning struct {
	Code      string  `json:"code"`
	Message   string  `json:"message"`
	Requested float64 `json:"requested"`
	Available float64 `json:"available"`
}

package models

import "strings"

// Reserved categories written by the purchase and sale cascades.
const (
	CategorySale     = "Sale"
	CategoryPurchase = "Purchase"
)

// EntryKind is the direction of an accounting entry.
type EntryKind string

const (
	KindRevenue EntryKind = "Revenue"
	KindExpense EntryKind = "Expense"
)

// ClassifyCategory derives the entry direction from its category.
// "Sale" and anything mentioning "Revenue" count as revenue, the rest as expense.
func ClassifyCategory(category string) EntryKind {
	if category == CategorySale || strings.Contains(category, string(KindRevenue)) {
		return KindRevenue
	}
	return KindExpense
}

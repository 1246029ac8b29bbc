package models

import (
	"slices"
	"strings"
	"unicode"
)

const (
	// OilStockItemName is the natural key of the finished-oil stock item.
	OilStockItemName = "Argan Oil (Food Grade)"
	// DefaultOilMinimum is the alert threshold given to a freshly created oil item.
	DefaultOilMinimum = 10.0

	UnitLiter = "L"
	UnitPiece = "unit"
)

var oilKeywords = []string{"oil", "oils", "huile", "huiles"}

// StockItem is an inventory line keyed by its item name.
type StockItem struct {
	ID        string  `json:"id"`
	Item      string  `json:"item"`
	Available float64 `json:"available"`
	Unit      string  `json:"unit"`
	Minimum   float64 `json:"minimum"`
}

// Low reports whether the item sits below its minimum threshold.
func (i StockItem) Low() bool {
	return i.Available < i.Minimum
}

// IsOilProduct classifies free-text product names by keyword. Keywords
// match whole words only, so "soil" or "foil" are not oil.
func IsOilProduct(product string) bool {
	words := strings.FieldsFunc(strings.ToLower(product), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	return slices.ContainsFunc(words, func(w string) bool {
		return slices.Contains(oilKeywords, w)
	})
}

package models

import (
	"strings"
	"time"
)

// Collection names one record collection in the backing store.
type Collection string

const (
	CollectionMembers    Collection = "members"
	CollectionPurchases  Collection = "purchases"
	CollectionProduction Collection = "production"
	CollectionSales      Collection = "sales"
	CollectionStock      Collection = "stock"
	CollectionAccounting Collection = "accounting"
)

// Collections lists every per-user collection in a stable order.
func Collections() []Collection {
	return []Collection{
		CollectionMembers,
		CollectionPurchases,
		CollectionProduction,
		CollectionSales,
		CollectionStock,
		CollectionAccounting,
	}
}

// ParseCollection validates a collection name coming from the outside world.
func ParseCollection(name string) (Collection, bool) {
	for _, c := range Collections() {
		if string(c) == strings.ToLower(strings.TrimSpace(name)) {
			return c, true
		}
	}
	return "", false
}

// Role is the position a member holds in the cooperative.
type Role string

const (
	RolePresident     Role = "President"
	RoleVicePresident Role = "Vice-President"
	RoleTreasurer     Role = "Treasurer"
	RoleSecretary     Role = "Secretary"
	RoleMember        Role = "Member"
	RoleProducer      Role = "Producer"
)

// Member is a cooperative member. It has no relation to other records.
type Member struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	Phone    string    `json:"phone"`
	JoinDate time.Time `json:"date"`
}

// Purchase captures raw fruit bought from a supplier.
type Purchase struct {
	ID       string    `json:"id"`
	Date     time.Time `json:"date"`
	Supplier string    `json:"supplier"`
	Quantity float64   `json:"quantity"` // kg
	Price    float64   `json:"price"`    // per kg
	Total    float64   `json:"total"`
}

// ComputeTotal returns quantity × price. Stored totals are never trusted.
func (p Purchase) ComputeTotal() float64 {
	return p.Quantity * p.Price
}

// ProductionBatch captures one pressing of fruit into oil.
type ProductionBatch struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	FruitsUsed  float64   `json:"fruitsUsed"`  // kg
	OilProduced float64   `json:"oilProduced"` // L
	Responsible string    `json:"responsible"`
}

// Yield returns the oil yield in percent. ok is false when no fruit was
// used, in which case the yield is undefined.
func (b ProductionBatch) Yield() (value float64, ok bool) {
	if b.FruitsUsed == 0 {
		return 0, false
	}
	return b.OilProduced / b.FruitsUsed * 100, true
}

// Sale captures an invoiced sale of a product.
type Sale struct {
	ID            string    `json:"id"`
	InvoiceNumber string    `json:"invoiceNumber"`
	Date          time.Time `json:"date"`
	Client        string    `json:"client"`
	Product       string    `json:"product"`
	Quantity      float64   `json:"quantity"`
	UnitPrice     float64   `json:"unitPrice"`
	Total         float64   `json:"total"`
}

// ComputeTotal returns quantity × unit price.
func (s Sale) ComputeTotal() float64 {
	return s.Quantity * s.UnitPrice
}

// IsOil reports whether the sold product depletes the oil stock.
func (s Sale) IsOil() bool {
	return IsOilProduct(s.Product)
}

// Unit is the display unit of the sold quantity.
func (s Sale) Unit() string {
	if s.IsOil() {
		return UnitLiter
	}
	return UnitPiece
}

// AccountingEntry is a ledger line. Amount is always a non-negative
// magnitude; its direction comes from the category.
type AccountingEntry struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
}

// Kind classifies the entry as revenue or expense.
func (a AccountingEntry) Kind() EntryKind {
	return ClassifyCategory(a.Category)
}

// Settings holds the organization-wide details shared by every user.
type Settings struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Merge overlays the non-empty fields of update on s.
func (s Settings) Merge(update Settings) Settings {
	if update.Name != "" {
		s.Name = update.Name
	}
	if update.Phone != "" {
		s.Phone = update.Phone
	}
	if update.Address != "" {
		s.Address = update.Address
	}
	return s
}

// Store accessors used when decoding records from their documents.

func (m *Member) GetID() string            { return m.ID }
func (m *Member) SetID(id string)          { m.ID = id }
func (p *Purchase) GetID() string          { return p.ID }
func (p *Purchase) SetID(id string)        { p.ID = id }
func (b *ProductionBatch) GetID() string   { return b.ID }
func (b *ProductionBatch) SetID(id string) { b.ID = id }
func (s *Sale) GetID() string              { return s.ID }
func (s *Sale) SetID(id string)            { s.ID = id }
func (i *StockItem) GetID() string         { return i.ID }
func (i *StockItem) SetID(id string)       { i.ID = id }
func (a *AccountingEntry) GetID() string   { return a.ID }
func (a *AccountingEntry) SetID(id string) { a.ID = id }
func (s *Settings) GetID() string          { return s.ID }
func (s *Settings) SetID(id string)        { s.ID = id }

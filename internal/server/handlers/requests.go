package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/mamadbah2/argan/internal/domain/models"
	"github.com/mamadbah2/argan/internal/service/ledger"
)

// Request bodies accepted by the record endpoints. Dates are YYYY-MM-DD;
// RFC 3339 timestamps are accepted too.

type purchaseRequest struct {
	Date     string  `json:"date"`
	Supplier string  `json:"supplier" binding:"required"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

func (r purchaseRequest) input(id string) (ledger.PurchaseInput, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return ledger.PurchaseInput{}, err
	}
	return ledger.PurchaseInput{ID: id, Date: date, Supplier: r.Supplier, Quantity: r.Quantity, Price: r.Price}, nil
}

type productionRequest struct {
	Date        string  `json:"date"`
	FruitsUsed  float64 `json:"fruitsUsed"`
	OilProduced float64 `json:"oilProduced"`
	Responsible string  `json:"responsible"`
}

func (r productionRequest) input(id string) (ledger.ProductionInput, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return ledger.ProductionInput{}, err
	}
	return ledger.ProductionInput{ID: id, Date: date, FruitsUsed: r.FruitsUsed, OilProduced: r.OilProduced, Responsible: r.Responsible}, nil
}

type saleRequest struct {
	InvoiceNumber string  `json:"invoiceNumber" binding:"required"`
	Date          string  `json:"date"`
	Client        string  `json:"client" binding:"required"`
	Product       string  `json:"product" binding:"required"`
	Quantity      float64 `json:"quantity"`
	UnitPrice     float64 `json:"unitPrice"`
}

func (r saleRequest) input(id string) (ledger.SaleInput, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return ledger.SaleInput{}, err
	}
	return ledger.SaleInput{
		ID:            id,
		InvoiceNumber: r.InvoiceNumber,
		Date:          date,
		Client:        r.Client,
		Product:       r.Product,
		Quantity:      r.Quantity,
		UnitPrice:     r.UnitPrice,
	}, nil
}

type stockRequest struct {
	Item      string  `json:"item" binding:"required"`
	Available float64 `json:"available"`
	Unit      string  `json:"unit"`
	Minimum   float64 `json:"minimum"`
}

func (r stockRequest) input(id string) (ledger.StockInput, error) {
	return ledger.StockInput{ID: id, Item: r.Item, Available: r.Available, Unit: r.Unit, Minimum: r.Minimum}, nil
}

type accountingRequest struct {
	Date        string  `json:"date"`
	Category    string  `json:"category" binding:"required"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

func (r accountingRequest) input(id string) (ledger.AccountingInput, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return ledger.AccountingInput{}, err
	}
	return ledger.AccountingInput{ID: id, Date: date, Category: r.Category, Description: r.Description, Amount: r.Amount}, nil
}

type memberRequest struct {
	Name  string `json:"name" binding:"required"`
	Role  string `json:"role"`
	Phone string `json:"phone"`
	Date  string `json:"date"`
}

func (r memberRequest) input(id string) (ledger.MemberInput, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return ledger.MemberInput{}, err
	}
	return ledger.MemberInput{ID: id, Name: r.Name, Role: models.Role(r.Role), Phone: r.Phone, JoinDate: date}, nil
}

type settingsRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", value)
	}
	return t, nil
}

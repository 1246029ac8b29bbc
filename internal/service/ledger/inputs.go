package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mamadbah2/argan/internal/domain/models"
)

// An empty ID in any input creates a record; a non-empty one overwrites it.

// PurchaseInput describes a fruit purchase. Quantity is in kg and Price per kg.
type PurchaseInput struct {
	ID       string
	Date     time.Time
	Supplier string  `validate:"required"`
	Quantity float64 `validate:"finite,gte=0"`
	Price    float64 `validate:"finite,gte=0"`
}

// ProductionInput describes a pressing: kg of fruit in, litres of oil out.
type ProductionInput struct {
	ID          string
	Date        time.Time
	FruitsUsed  float64 `validate:"finite,gte=0"`
	OilProduced float64 `validate:"finite,gte=0"`
	Responsible string
}

// SaleInput describes one invoiced sale line.
type SaleInput struct {
	ID            string
	InvoiceNumber string `validate:"required"`
	Date          time.Time
	Client        string  `validate:"required"`
	Product       string  `validate:"required"`
	Quantity      float64 `validate:"finite,gte=0"`
	UnitPrice     float64 `validate:"finite,gte=0"`
}

// StockInput is a manual stock adjustment, keyed by item name.
type StockInput struct {
	ID        string
	Item      string  `validate:"required"`
	Available float64 `validate:"finite"`
	Unit      string
	Minimum   float64 `validate:"finite,gte=0"`
}

// AccountingInput is a manual ledger entry. Amount is a magnitude; the category decides its sign.
type AccountingInput struct {
	ID          string
	Date        time.Time
	Category    string `validate:"required"`
	Description string
	Amount      float64 `validate:"finite,gte=0"`
}

// MemberInput describes a cooperative member. An empty Role means Member.
type MemberInput struct {
	ID       string
	Name     string      `validate:"required"`
	Role     models.Role `validate:"omitempty,oneof=President Vice-President Treasurer Secretary Member Producer"`
	Phone    string
	JoinDate time.Time
}

func newValidator() *validator.Validate {
	v := validator.New()
	// NaN fails gte on its own, infinities do not.
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	return v
}

func (e *Engine) check(input any) error {
	if err := e.validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/argan/internal/domain/models"
	"github.com/mamadbah2/argan/internal/service/ledger"
)

// ErrInvalidArguments indicates the command payload could not be parsed.
var ErrInvalidArguments = errors.New("invalid command arguments")

// ErrUnsupportedCommand indicates we do not yet support the requested command.
var ErrUnsupportedCommand = errors.New("unsupported command")

const (
	dateFormat    = "02/01/2006"
	defaultClient = "Walk-in"
)

// LedgerAdapter defines the ledger operations required by the dispatcher.
type LedgerAdapter interface {
	RecordPurchase(ctx context.Context, in ledger.PurchaseInput) (models.Purchase, error)
	RecordProduction(ctx context.Context, in ledger.ProductionInput) (models.ProductionBatch, error)
	RecordSale(ctx context.Context, in ledger.SaleInput) (models.Sale, error)
	CheckProduction(fruitsUsed float64) *models.Warning
	CheckSale(product string, quantity float64) *models.Warning
}

// ReportingAdapter defines the reporting functions required by the dispatcher.
type ReportingAdapter interface {
	FormatCurrency(amount float64) string
	WeeklySummary(start, end time.Time) string
	StockSummary() string
	AlertsSummary() string
}

// Dispatcher executes parsed commands against the ledger.
type Dispatcher interface {
	HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error)
}

// Service implements the Dispatcher interface.
type Service struct {
	ledger    LedgerAdapter
	reporting ReportingAdapter
	logger    *zap.Logger
	location  *time.Location
	now       func() time.Time
}

// NewService constructs a command dispatcher. Record dates are taken as the
// current day in loc.
func NewService(ledger LedgerAdapter, reporting ReportingAdapter, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		ledger:    ledger,
		reporting: reporting,
		logger:    logger,
		location:  loc,
		now:       time.Now,
	}
}

// HandleCommand runs the command and returns the reply text. Record commands
// skip the confirmation step of the dashboard; any stock warning is appended
// to the reply instead.
func (s *Service) HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error) {
	now := s.now().In(s.location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	s.logger.Debug("dispatching command", zap.String("command", string(cmd.Type)), zap.String("sender", sender), zap.Strings("args", cmd.Args))

	switch cmd.Type {
	case models.CommandPurchase:
		in, err := buildPurchase(cmd, today)
		if err != nil {
			return "", err
		}
		purchase, err := s.ledger.RecordPurchase(ctx, in)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Purchase saved for %s: %s kg from %s, total %s.",
			purchase.Date.Format(dateFormat), formatQuantity(purchase.Quantity), purchase.Supplier, s.reporting.FormatCurrency(purchase.Total)), nil
	case models.CommandProduction:
		in, err := buildProduction(cmd, today)
		if err != nil {
			return "", err
		}
		warning := s.ledger.CheckProduction(in.FruitsUsed)
		batch, err := s.ledger.RecordProduction(ctx, in)
		if err != nil {
			return "", err
		}
		message := fmt.Sprintf("Production saved for %s: %s L of oil from %s kg of fruit.",
			batch.Date.Format(dateFormat), formatQuantity(batch.OilProduced), formatQuantity(batch.FruitsUsed))
		if y, ok := batch.Yield(); ok {
			message += fmt.Sprintf(" Yield %.2f%%.", y)
		}
		return withWarning(message, warning), nil
	case models.CommandSale:
		in, err := buildSale(cmd, today)
		if err != nil {
			return "", err
		}
		warning := s.ledger.CheckSale(in.Product, in.Quantity)
		sale, err := s.ledger.RecordSale(ctx, in)
		if err != nil {
			return "", err
		}
		message := fmt.Sprintf("Sale #%s saved for %s: %s %s of %s @ %s, total %s.",
			sale.InvoiceNumber, sale.Client, formatQuantity(sale.Quantity), sale.Unit(), sale.Product,
			s.reporting.FormatCurrency(sale.UnitPrice), s.reporting.FormatCurrency(sale.Total))
		return withWarning(message, warning), nil
	case models.CommandSummary:
		return s.reporting.WeeklySummary(mondayStart(today), today.Add(24*time.Hour-time.Nanosecond)), nil
	case models.CommandStock:
		return s.reporting.StockSummary(), nil
	case models.CommandAlerts:
		return s.reporting.AlertsSummary(), nil
	default:
		return "", ErrUnsupportedCommand
	}
}

func buildPurchase(cmd models.Command, date time.Time) (ledger.PurchaseInput, error) {
	if len(cmd.Args) < 3 {
		return ledger.PurchaseInput{}, ErrInvalidArguments
	}

	quantity, err := parseNumber(cmd.Args[0])
	if err != nil {
		return ledger.PurchaseInput{}, ErrInvalidArguments
	}
	price, err := parseNumber(cmd.Args[1])
	if err != nil {
		return ledger.PurchaseInput{}, ErrInvalidArguments
	}

	return ledger.PurchaseInput{
		Date:     date,
		Supplier: strings.Join(cmd.Args[2:], " "),
		Quantity: quantity,
		Price:    price,
	}, nil
}

func buildProduction(cmd models.Command, date time.Time) (ledger.ProductionInput, error) {
	if len(cmd.Args) < 2 {
		return ledger.ProductionInput{}, ErrInvalidArguments
	}

	fruits, err := parseNumber(cmd.Args[0])
	if err != nil {
		return ledger.ProductionInput{}, ErrInvalidArguments
	}
	oil, err := parseNumber(cmd.Args[1])
	if err != nil {
		return ledger.ProductionInput{}, ErrInvalidArguments
	}

	responsible := ""
	if len(cmd.Args) > 2 {
		responsible = strings.Join(cmd.Args[2:], " ")
	}

	return ledger.ProductionInput{
		Date:        date,
		FruitsUsed:  fruits,
		OilProduced: oil,
		Responsible: responsible,
	}, nil
}

func buildSale(cmd models.Command, date time.Time) (ledger.SaleInput, error) {
	if len(cmd.Args) < 4 {
		return ledger.SaleInput{}, ErrInvalidArguments
	}

	quantity, err := parseNumber(cmd.Args[1])
	if err != nil {
		return ledger.SaleInput{}, ErrInvalidArguments
	}
	unitPrice, err := parseNumber(cmd.Args[2])
	if err != nil {
		return ledger.SaleInput{}, ErrInvalidArguments
	}

	rest := cmd.Args[3:]
	client := defaultClient
	for i := len(rest) - 2; i >= 1; i-- {
		if strings.EqualFold(rest[i], "to") {
			client = strings.Join(rest[i+1:], " ")
			rest = rest[:i]
			break
		}
	}

	return ledger.SaleInput{
		InvoiceNumber: cmd.Args[0],
		Date:          date,
		Client:        client,
		Product:       strings.Join(rest, " "),
		Quantity:      quantity,
		UnitPrice:     unitPrice,
	}, nil
}

// parseNumber accepts both "12.5" and "12,5".
func parseNumber(value string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64)
}

func formatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func withWarning(message string, warning *models.Warning) string {
	if warning == nil {
		return message
	}
	return message + "\nWarning: " + warning.Message
}

func mondayStart(t time.Time) time.Time {
	weekday := int(t.Weekday())
	daysSinceMonday := (weekday + 6) % 7
	start := t.AddDate(0, 0, -daysSinceMonday)
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, t.Location())
}

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/mamadbah2/argan/internal/domain/models"
	"github.com/mamadbah2/argan/internal/repository"
)

// RecordPurchase saves a purchase. Creating one also books a "Purchase"
// accounting entry for its total; editing one never does.
//
// A zero Purchase with a nil error means the edited ID no longer exists.
func (e *Engine) RecordPurchase(ctx context.Context, in PurchaseInput) (models.Purchase, error) {
	if err := e.check(in); err != nil {
		return models.Purchase{}, err
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	purchase := models.Purchase{
		ID:       in.ID,
		Date:     in.Date,
		Supplier: in.Supplier,
		Quantity: in.Quantity,
		Price:    in.Price,
	}
	purchase.Total = purchase.ComputeTotal()

	if in.ID != "" {
		if !e.exists(models.CollectionPurchases, in.ID) {
			e.logMiss(models.CollectionPurchases, in.ID)
			return models.Purchase{}, nil
		}
		if err := e.save(ctx, models.CollectionPurchases, &purchase); err != nil {
			return models.Purchase{}, fmt.Errorf("save purchase: %w", err)
		}
		return purchase, nil
	}

	if err := e.save(ctx, models.CollectionPurchases, &purchase); err != nil {
		return models.Purchase{}, fmt.Errorf("save purchase: %w", err)
	}

	entry := models.AccountingEntry{
		Date:        purchase.Date,
		Category:    models.CategoryPurchase,
		Description: fmt.Sprintf("Purchase of %s kg of fruit from %s", formatQuantity(purchase.Quantity), purchase.Supplier),
		Amount:      purchase.Total,
	}
	if err := e.save(ctx, models.CollectionAccounting, &entry); err != nil {
		return purchase, fmt.Errorf("book purchase %s: %w", purchase.ID, err)
	}

	e.logger.Info("purchase recorded",
		zap.String("id", purchase.ID),
		zap.String("supplier", purchase.Supplier),
		zap.Float64("total", purchase.Total))
	return purchase, nil
}

// RecordProduction saves a production batch and adds its oil to the oil
// stock item, creating the item on first use. Edits add their oil again:
// the stock level only ever moves by forward deltas. The fruit balance is
// allowed to go negative.
func (e *Engine) RecordProduction(ctx context.Context, in ProductionInput) (models.ProductionBatch, error) {
	if err := e.check(in); err != nil {
		return models.ProductionBatch{}, err
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	batch := models.ProductionBatch{
		ID:          in.ID,
		Date:        in.Date,
		FruitsUsed:  in.FruitsUsed,
		OilProduced: in.OilProduced,
		Responsible: in.Responsible,
	}

	if in.ID != "" && !e.exists(models.CollectionProduction, in.ID) {
		e.logMiss(models.CollectionProduction, in.ID)
		return models.ProductionBatch{}, nil
	}

	if err := e.save(ctx, models.CollectionProduction, &batch); err != nil {
		return models.ProductionBatch{}, fmt.Errorf("save production batch: %w", err)
	}

	item := models.StockItem{
		Item:      models.OilStockItemName,
		Available: batch.OilProduced,
		Unit:      models.UnitLiter,
		Minimum:   models.DefaultOilMinimum,
	}
	current, ok, err := e.storedOil(ctx)
	if err != nil {
		return batch, fmt.Errorf("add batch %s to oil stock: %w", batch.ID, err)
	}
	if ok {
		item.ID = current.ID
		item.Available = current.Available + batch.OilProduced
		item.Minimum = current.Minimum
	}
	if err := e.save(ctx, models.CollectionStock, &item); err != nil {
		return batch, fmt.Errorf("add batch %s to oil stock: %w", batch.ID, err)
	}

	e.logger.Info("production recorded",
		zap.String("id", batch.ID),
		zap.Bool("edit", in.ID != ""),
		zap.Float64("oil_produced", batch.OilProduced),
		zap.Float64("oil_available", item.Available))
	return batch, nil
}

// RecordSale saves a sale. Creating one depletes the oil stock for oil
// products, floored at zero, and books a "Sale" accounting entry. Editing
// one only overwrites the sale.
func (e *Engine) RecordSale(ctx context.Context, in SaleInput) (models.Sale, error) {
	if err := e.check(in); err != nil {
		return models.Sale{}, err
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.invoiceTaken(in.InvoiceNumber, in.ID) {
		return models.Sale{}, fmt.Errorf("%w: %s", ErrDuplicateInvoice, in.InvoiceNumber)
	}

	sale := models.Sale{
		ID:            in.ID,
		InvoiceNumber: in.InvoiceNumber,
		Date:          in.Date,
		Client:        in.Client,
		Product:       in.Product,
		Quantity:      in.Quantity,
		UnitPrice:     in.UnitPrice,
	}
	sale.Total = sale.ComputeTotal()

	if in.ID != "" {
		if !e.exists(models.CollectionSales, in.ID) {
			e.logMiss(models.CollectionSales, in.ID)
			return models.Sale{}, nil
		}
		if err := e.save(ctx, models.CollectionSales, &sale); err != nil {
			return models.Sale{}, fmt.Errorf("save sale: %w", err)
		}
		return sale, nil
	}

	if err := e.save(ctx, models.CollectionSales, &sale); err != nil {
		return models.Sale{}, fmt.Errorf("save sale: %w", err)
	}

	if sale.IsOil() {
		item, ok, err := e.storedOil(ctx)
		if err != nil {
			return sale, fmt.Errorf("deplete oil stock for sale %s: %w", sale.ID, err)
		}
		if ok {
			item.Available = math.Max(0, item.Available-sale.Quantity)
			if err := e.save(ctx, models.CollectionStock, &item); err != nil {
				return sale, fmt.Errorf("deplete oil stock for sale %s: %w", sale.ID, err)
			}
		}
	}

	entry := models.AccountingEntry{
		Date:        sale.Date,
		Category:    models.CategorySale,
		Description: fmt.Sprintf("Sale #%s to %s (%s %s)", sale.InvoiceNumber, sale.Client, formatQuantity(sale.Quantity), sale.Product),
		Amount:      sale.Total,
	}
	if err := e.save(ctx, models.CollectionAccounting, &entry); err != nil {
		return sale, fmt.Errorf("book sale %s: %w", sale.ID, err)
	}

	e.logger.Info("sale recorded",
		zap.String("id", sale.ID),
		zap.String("invoice", sale.InvoiceNumber),
		zap.Float64("total", sale.Total))
	return sale, nil
}

// RecordStockAdjustment upserts a stock item. No cascades.
func (e *Engine) RecordStockAdjustment(ctx context.Context, in StockInput) (models.StockItem, error) {
	if err := e.check(in); err != nil {
		return models.StockItem{}, err
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	if in.ID != "" && !e.exists(models.CollectionStock, in.ID) {
		e.logMiss(models.CollectionStock, in.ID)
		return models.StockItem{}, nil
	}

	item := models.StockItem{
		ID:        in.ID,
		Item:      in.Item,
		Available: in.Available,
		Unit:      in.Unit,
		Minimum:   in.Minimum,
	}
	if err := e.save(ctx, models.CollectionStock, &item); err != nil {
		return models.StockItem{}, fmt.Errorf("save stock item: %w", err)
	}
	return item, nil
}

// RecordAccountingEntry upserts a ledger line. No cascades.
func (e *Engine) RecordAccountingEntry(ctx context.Context, in AccountingInput) (models.AccountingEntry, error) {
	if err := e.check(in); err != nil {
		return models.AccountingEntry{}, err
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	if in.ID != "" && !e.exists(models.CollectionAccounting, in.ID) {
		e.logMiss(models.CollectionAccounting, in.ID)
		return models.AccountingEntry{}, nil
	}

	entry := models.AccountingEntry{
		ID:          in.ID,
		Date:        in.Date,
		Category:    in.Category,
		Description: in.Description,
		Amount:      in.Amount,
	}
	if err := e.save(ctx, models.CollectionAccounting, &entry); err != nil {
		return models.AccountingEntry{}, fmt.Errorf("save accounting entry: %w", err)
	}
	return entry, nil
}

// SaveMember upserts a member. No cascades.
func (e *Engine) SaveMember(ctx context.Context, in MemberInput) (models.Member, error) {
	if err := e.check(in); err != nil {
		return models.Member{}, err
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	if in.ID != "" && !e.exists(models.CollectionMembers, in.ID) {
		e.logMiss(models.CollectionMembers, in.ID)
		return models.Member{}, nil
	}

	role := in.Role
	if role == "" {
		role = models.RoleMember
	}
	member := models.Member{
		ID:       in.ID,
		Name:     in.Name,
		Role:     role,
		Phone:    in.Phone,
		JoinDate: in.JoinDate,
	}
	if err := e.save(ctx, models.CollectionMembers, &member); err != nil {
		return models.Member{}, fmt.Errorf("save member: %w", err)
	}
	return member, nil
}

// DeleteRecord removes a record. Cascades it once triggered stay applied.
func (e *Engine) DeleteRecord(ctx context.Context, collection models.Collection, id string) error {
	col, ok := e.cols[collection]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	if !e.exists(collection, id) {
		e.logMiss(collection, id)
		return nil
	}

	if err := col.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}

	e.logger.Info("record deleted", zap.String("collection", string(collection)), zap.String("id", id))
	return e.refresh(ctx, collection)
}

// SaveSettings merges the non-empty fields of update into the shared
// organization settings.
func (e *Engine) SaveSettings(ctx context.Context, update models.Settings) (models.Settings, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	merged := e.Settings().Merge(update)
	merged.ID = repository.SettingsDocumentID

	data, err := json.Marshal(merged)
	if err != nil {
		return models.Settings{}, fmt.Errorf("encode settings: %w", err)
	}
	if _, err := e.settings.Upsert(ctx, repository.SettingsDocumentID, data); err != nil {
		return models.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	docs, err := e.settings.List(ctx)
	if err != nil {
		return merged, fmt.Errorf("reload settings: %w", err)
	}
	return merged, e.applySettings(docs)
}

// CheckProduction warns when a batch would use more fruit than is in stock.
// It is advisory only.
func (e *Engine) CheckProduction(fruitsUsed float64) *models.Warning {
	available := e.DashboardSummary().FruitStock
	if fruitsUsed <= available {
		return nil
	}
	return &models.Warning{
		Code:      "fruit_stock_exceeded",
		Message:   fmt.Sprintf("Using %s kg of fruit but only %.2f kg remain; the fruit stock will go negative.", formatQuantity(fruitsUsed), available),
		Requested: fruitsUsed,
		Available: available,
	}
}

// CheckSale warns when an oil sale exceeds the oil in stock. It is advisory only.
func (e *Engine) CheckSale(product string, quantity float64) *models.Warning {
	if !models.IsOilProduct(product) {
		return nil
	}
	var available float64
	if item, ok := e.OilStock(); ok {
		available = item.Available
	}
	if quantity <= available {
		return nil
	}
	return &models.Warning{
		Code:      "oil_stock_exceeded",
		Message:   fmt.Sprintf("Selling %s L but only %.2f L of oil are in stock.", formatQuantity(quantity), available),
		Requested: quantity,
		Available: available,
	}
}

func (e *Engine) exists(collection models.Collection, id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	switch collection {
	case models.CollectionMembers:
		return indexOf(e.state.members, id) >= 0
	case models.CollectionPurchases:
		return indexOf(e.state.purchases, id) >= 0
	case models.CollectionProduction:
		return indexOf(e.state.production, id) >= 0
	case models.CollectionSales:
		return indexOf(e.state.sales, id) >= 0
	case models.CollectionStock:
		return indexOf(e.state.stock, id) >= 0
	case models.CollectionAccounting:
		return indexOf(e.state.accounting, id) >= 0
	}
	return false
}

func (e *Engine) invoiceTaken(invoice, exceptID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, s := range e.state.sales {
		if s.InvoiceNumber == invoice && s.ID != exceptID {
			return true
		}
	}
	return false
}

func (e *Engine) logMiss(collection models.Collection, id string) {
	e.logger.Debug("referenced record is gone, ignoring", zap.String("collection", string(collection)), zap.String("id", id))
}

func indexOf[T any, P interface {
	*T
	GetID() string
}](records []T, id string) int {
	for i := range records {
		if P(&records[i]).GetID() == id {
			return i
		}
	}
	return -1
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

// storedOil locates the oil item in the cache and reads its current level
// from the store, so a late snapshot cannot feed a stale level into a delta.
func (e *Engine) storedOil(ctx context.Context) (models.StockItem, bool, error) {
	cached, ok := e.OilStock()
	if !ok {
		return models.StockItem{}, false, nil
	}

	doc, err := e.cols[models.CollectionStock].Get(ctx, cached.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.StockItem{}, false, nil
	}
	if err != nil {
		return models.StockItem{}, false, fmt.Errorf("read oil stock: %w", err)
	}

	var item models.StockItem
	if err := json.Unmarshal(doc.Data, &item); err != nil {
		return models.StockItem{}, false, fmt.Errorf("decode oil stock: %w", err)
	}
	item.SetID(doc.ID)
	return item, true, nil
}

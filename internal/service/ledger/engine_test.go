package ledger

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/argan/internal/domain/models"
	"github.com/mamadbah2/argan/internal/repository"
	"github.com/mamadbah2/argan/internal/repository/memory"
	"github.com/mamadbah2/argan/internal/repository/redisstore"
)

var testNamespace = repository.Namespace{AppID: "app", UserID: "user"}

func newTestEngine(t *testing.T) (*Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	engine := NewEngine(store, testNamespace, nil)
	require.NoError(t, engine.Start(context.Background()))
	t.Cleanup(engine.Close)
	return engine, store
}

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestPurchaseTotalIsRecomputed(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	purchase, err := engine.RecordPurchase(ctx, PurchaseInput{Date: day(1), Supplier: "Ahmed", Quantity: 50, Price: 20})
	require.NoError(t, err)
	require.NotEmpty(t, purchase.ID)
	assert.Equal(t, 1000.0, purchase.Total)

	_, err = engine.RecordPurchase(ctx, PurchaseInput{ID: purchase.ID, Date: day(1), Supplier: "Ahmed", Quantity: 60, Price: 20})
	require.NoError(t, err)

	purchases := engine.Purchases("")
	require.Len(t, purchases, 1)
	assert.Equal(t, 1200.0, purchases[0].Total)
}

func TestStoredTotalsAreIgnored(t *testing.T) {
	engine, _ := newTestEngine(t)

	err := engine.ApplySnapshot(models.CollectionSales, []repository.Document{
		{ID: "s1", Data: []byte(`{"invoiceNumber":"F-1","client":"Hotel","product":"Soap","quantity":3,"unitPrice":12.5,"total":1}`)},
	})
	require.NoError(t, err)
	err = engine.ApplySnapshot(models.CollectionPurchases, []repository.Document{
		{ID: "p1", Data: []byte(`{"supplier":"Ahmed","quantity":4,"price":2.5,"total":999}`)},
	})
	require.NoError(t, err)

	sales := engine.Sales("")
	require.Len(t, sales, 1)
	assert.Equal(t, "s1", sales[0].ID)
	assert.Equal(t, 37.5, sales[0].Total)
	assert.Equal(t, 10.0, engine.Purchases("")[0].Total)
}

func TestProductionYields(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	_, err := engine.RecordProduction(ctx, ProductionInput{Date: day(2), FruitsUsed: 100, OilProduced: 18})
	require.NoError(t, err)
	_, err = engine.RecordProduction(ctx, ProductionInput{Date: day(3), FruitsUsed: 0, OilProduced: 1})
	require.NoError(t, err)

	points := engine.ProductionYields(0)
	require.Len(t, points, 2)
	require.NotNil(t, points[0].Yield)
	assert.InDelta(t, 18.0, *points[0].Yield, 1e-9)
	assert.Equal(t, "2025-03-02", points[0].Date)
	assert.Nil(t, points[1].Yield)
}

func TestProductionYieldsKeepsLatestBatches(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	for d := 1; d <= 12; d++ {
		_, err := engine.RecordProduction(ctx, ProductionInput{Date: day(d), FruitsUsed: 100, OilProduced: float64(d)})
		require.NoError(t, err)
	}

	points := engine.ProductionYields(DefaultYieldWindow)
	require.Len(t, points, DefaultYieldWindow)
	assert.Equal(t, "2025-03-03", points[0].Date)
	assert.Equal(t, "2025-03-12", points[len(points)-1].Date)
}

func TestPurchaseBooksAccountingOnCreateOnly(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	purchase, err := engine.RecordPurchase(ctx, PurchaseInput{Date: day(1), Supplier: "Ahmed", Quantity: 50, Price: 20})
	require.NoError(t, err)

	entries := engine.Accounting(AccountingFilter{})
	require.Len(t, entries, 1)
	assert.Equal(t, models.CategoryPurchase, entries[0].Category)
	assert.Equal(t, 1000.0, entries[0].Amount)
	assert.Equal(t, "Purchase of 50 kg of fruit from Ahmed", entries[0].Description)

	_, err = engine.RecordPurchase(ctx, PurchaseInput{ID: purchase.ID, Date: day(1), Supplier: "Ahmed", Quantity: 60, Price: 20})
	require.NoError(t, err)

	entries = engine.Accounting(AccountingFilter{})
	require.Len(t, entries, 1)
	assert.Equal(t, 1000.0, entries[0].Amount)
	assert.Empty(t, engine.Stock())
}

func TestProductionIncrementsOilStock(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	_, err := engine.RecordProduction(ctx, ProductionInput{Date: day(1), FruitsUsed: 100, OilProduced: 18})
	require.NoError(t, err)

	first, ok := engine.OilStock()
	require.True(t, ok)
	assert.Equal(t, 18.0, first.Available)
	assert.Equal(t, models.DefaultOilMinimum, first.Minimum)
	assert.Equal(t, models.UnitLiter, first.Unit)

	_, err = engine.RecordProduction(ctx, ProductionInput{Date: day(2), FruitsUsed: 30, OilProduced: 5})
	require.NoError(t, err)

	second, ok := engine.OilStock()
	require.True(t, ok)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 23.0, second.Available)
	assert.Len(t, engine.Stock(), 1)
}

func TestProductionKeepsCustomOilMinimum(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	_, err := engine.RecordStockAdjustment(ctx, StockInput{Item: models.OilStockItemName, Available: 2, Unit: "L", Minimum: 40})
	require.NoError(t, err)
	_, err = engine.RecordProduction(ctx, ProductionInput{Date: day(1), FruitsUsed: 10, OilProduced: 3})
	require.NoError(t, err)

	oil, ok := engine.OilStock()
	require.True(t, ok)
	assert.Equal(t, 5.0, oil.Available)
	assert.Equal(t, 40.0, oil.Minimum)
}

func TestProductionEditAddsOilAgain(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	batch, err := engine.RecordProduction(ctx, ProductionInput{Date: day(1), FruitsUsed: 100, OilProduced: 18})
	require.NoError(t, err)
	edited, err := engine.RecordProduction(ctx, ProductionInput{ID: batch.ID, Date: day(1), FruitsUsed: 100, OilProduced: 20})
	require.NoError(t, err)
	assert.Equal(t, batch.ID, edited.ID)

	oil, _ := engine.OilStock()
	assert.Equal(t, 38.0, oil.Available)
	require.Len(t, engine.Production(), 1)
	assert.Equal(t, 20.0, engine.Production()[0].OilProduced)
	assert.Len(t, engine.Stock(), 1)
}

func TestOilDeltasReadTheStoredLevel(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)
	stock := store.Collection(testNamespace.CollectionPath(string(models.CollectionStock)))

	_, err := engine.RecordProduction(ctx, ProductionInput{Date: day(1), FruitsUsed: 100, OilProduced: 18})
	require.NoError(t, err)
	stale, err := stock.List(ctx)
	require.NoError(t, err)

	_, err = engine.RecordProduction(ctx, ProductionInput{Date: day(2), FruitsUsed: 20, OilProduced: 5})
	require.NoError(t, err)

	// A snapshot listed before the last write arrives late.
	require.NoError(t, engine.ApplySnapshot(models.CollectionStock, stale))
	oil, _ := engine.OilStock()
	require.Equal(t, 18.0, oil.Available)

	_, err = engine.RecordProduction(ctx, ProductionInput{Date: day(3), FruitsUsed: 10, OilProduced: 2})
	require.NoError(t, err)
	oil, _ = engine.OilStock()
	assert.Equal(t, 25.0, oil.Available)

	require.NoError(t, engine.ApplySnapshot(models.CollectionStock, stale))
	_, err = engine.RecordSale(ctx, SaleInput{InvoiceNumber: "F-1", Date: day(4), Client: "Hotel", Product: "Argan oil", Quantity: 5, UnitPrice: 100})
	require.NoError(t, err)
	oil, _ = engine.OilStock()
	assert.Equal(t, 20.0, oil.Available)
}

func TestOilSaleDepletesStockFlooredAtZero(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	_, err := engine.RecordProduction(ctx, ProductionInput{Date: day(1), FruitsUsed: 100, OilProduced: 23})
	require.NoError(t, err)

	_, err = engine.RecordSale(ctx, SaleInput{InvoiceNumber: "F-1", Date: day(2), Client: "Hotel", Product: "Argan oil 1L", Quantity: 5, UnitPrice: 200})
	require.NoError(t, err)
	oil, _ := engine.OilStock()
	assert.Equal(t, 18.0, oil.Available)

	_, err = engine.RecordSale(ctx, SaleInput{InvoiceNumber: "F-2", Date: day(3), Client: "Spa", Product: "Huile cosmétique", Quantity: 30, UnitPrice: 150})
	require.NoError(t, err)
	oil, _ = engine.OilStock()
	assert.Equal(t, 0.0, oil.Available)

	entries := engine.Accounting(AccountingFilter{Category: models.CategorySale})
	require.Len(t, entries, 2)
	assert.Equal(t, "Sale #F-2 to Spa (30 Huile cosmétique)", entries[0].Description)
	assert.Equal(t, 4500.0, entries[0].Amount)
}

func TestNonOilSaleLeavesStockAlone(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	_, err := engine.RecordProduction(ctx, ProductionInput{Date: day(1), FruitsUsed: 100, OilProduced: 10})
	require.NoError(t, err)
	_, err = engine.RecordSale(ctx, SaleInput{InvoiceNumber: "F-1", Date: day(2), Client: "Hotel", Product: "Amlou", Quantity: 4, UnitPrice: 80})
	require.NoError(t, err)

	oil, _ := engine.OilStock()
	assert.Equal(t, 10.0, oil.Available)
	assert.Len(t, engine.Accounting(AccountingFilter{}), 1)

	_, err = engine.RecordSale(ctx, SaleInput{InvoiceNumber: "F-2", Date: day(3), Client: "Nursery", Product: "Argan soil compost", Quantity: 4, UnitPrice: 30})
	require.NoError(t, err)
	oil, _ = engine.OilStock()
	assert.Equal(t, 10.0, oil.Available)
	assert.Nil(t, engine.CheckSale("Argan soil compost", 400))
}

func TestOilSaleWithoutOilItemCreatesNothing(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	_, err := engine.RecordSale(ctx, SaleInput{InvoiceNumber: "F-1", Date: day(2), Client: "Hotel", Product: "Argan oil", Quantity: 4, UnitPrice: 80})
	require.NoError(t, err)

	assert.Empty(t, engine.Stock())
	assert.Len(t, engine.Accounting(AccountingFilter{}), 1)
}

func TestSaleEditHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	_, err := engine.RecordProduction(ctx, ProductionInput{Date: day(1), FruitsUsed: 100, OilProduced: 20})
	require.NoError(t, err)
	sale, err := engine.RecordSale(ctx, SaleInput{InvoiceNumber: "F-1", Date: day(2), Client: "Hotel", Product: "Argan oil", Quantity: 5, UnitPrice: 100})
	require.NoError(t, err)

	edited, err := engine.RecordSale(ctx, SaleInput{ID: sale.ID, InvoiceNumber: "F-1", Date: day(2), Client: "Hotel", Product: "Argan oil", Quantity: 8, UnitPrice: 100})
	require.NoError(t, err)
	assert.Equal(t, 800.0, edited.Total)

	oil, _ := engine.OilStock()
	assert.Equal(t, 15.0, oil.Available)
	assert.Len(t, engine.Accounting(AccountingFilter{}), 1)
}

func TestFruitStockIndependentOfOrder(t *testing.T) {
	ctx := context.Background()

	record := func(t *testing.T, engine *Engine, productionFirst bool) {
		purchases := func() {
			for _, q := range []float64{100, 105} {
				_, err := engine.RecordPurchase(ctx, PurchaseInput{Date: day(1), Supplier: "Coop", Quantity: q, Price: 1})
				require.NoError(t, err)
			}
		}
		production := func() {
			for _, q := range []float64{60, 40} {
				_, err := engine.RecordProduction(ctx, ProductionInput{Date: day(2), FruitsUsed: q, OilProduced: 1})
				require.NoError(t, err)
			}
		}
		if productionFirst {
			production()
			purchases()
		} else {
			purchases()
			production()
		}
	}

	for _, productionFirst := range []bool{false, true} {
		engine, _ := newTestEngine(t)
		record(t, engine, productionFirst)
		assert.Equal(t, 105.0, engine.DashboardSummary().FruitStock)
	}
}

func TestDashboardSummary(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	_, err := engine.RecordPurchase(ctx, PurchaseInput{Date: day(1), Supplier: "Ahmed", Quantity: 50, Price: 20})
	require.NoError(t, err)
	_, err = engine.RecordProduction(ctx, ProductionInput{Date: day(2), FruitsUsed: 80, OilProduced: 12})
	require.NoError(t, err)
	_, err = engine.RecordSale(ctx, SaleInput{InvoiceNumber: "F-1", Date: day(3), Client: "Hotel", Product: "Argan oil", Quantity: 2, UnitPrice: 700})
	require.NoError(t, err)

	summary := engine.DashboardSummary()
	assert.Equal(t, -30.0, summary.FruitStock)
	assert.Equal(t, 12.0, summary.OilProduced)
	assert.Equal(t, 10.0, summary.OilAvailable)
	assert.Equal(t, 1400.0, summary.TotalRevenue)
	assert.Equal(t, 400.0, summary.NetProfit)
}

func TestLowStockAlerts(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	_, err := engine.RecordStockAdjustment(ctx, StockInput{Item: "Bottles", Available: 50, Unit: "unit", Minimum: 20})
	require.NoError(t, err)
	labels, err := engine.RecordStockAdjustment(ctx, StockInput{Item: "Labels", Available: 5, Unit: "unit", Minimum: 10})
	require.NoError(t, err)

	alerts := engine.LowStockAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, labels.ID, alerts[0].ID)

	_, err = engine.RecordStockAdjustment(ctx, StockInput{ID: labels.ID, Item: "Labels", Available: 10, Unit: "unit", Minimum: 10})
	require.NoError(t, err)
	assert.Empty(t, engine.LowStockAlerts())
}

func TestDeleteSaleDoesNotReverseCascade(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	_, err := engine.RecordProduction(ctx, ProductionInput{Date: day(1), FruitsUsed: 100, OilProduced: 20})
	require.NoError(t, err)
	sale, err := engine.RecordSale(ctx, SaleInput{InvoiceNumber: "F-1", Date: day(2), Client: "Hotel", Product: "Argan oil", Quantity: 5, UnitPrice: 100})
	require.NoError(t, err)

	require.NoError(t, engine.DeleteRecord(ctx, models.CollectionSales, sale.ID))

	assert.Empty(t, engine.Sales(""))
	oil, _ := engine.OilStock()
	assert.Equal(t, 15.0, oil.Available)
	assert.Len(t, engine.Accounting(AccountingFilter{}), 1)
}

func TestReferentialMissIsNoOp(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	require.NoError(t, engine.DeleteRecord(ctx, models.CollectionSales, "missing"))

	purchase, err := engine.RecordPurchase(ctx, PurchaseInput{ID: "missing", Date: day(1), Supplier: "Ahmed", Quantity: 1, Price: 1})
	require.NoError(t, err)
	assert.Empty(t, purchase.ID)
	assert.Empty(t, engine.Purchases(""))
	assert.Empty(t, engine.Accounting(AccountingFilter{}))
}

func TestDeleteUnknownCollection(t *testing.T) {
	engine, _ := newTestEngine(t)
	err := engine.DeleteRecord(context.Background(), models.Collection("invoices"), "x")
	require.ErrorIs(t, err, ErrUnknownCollection)
}

func TestValidationRejectsBadNumbers(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	cases := map[string]PurchaseInput{
		"negative quantity": {Supplier: "Ahmed", Quantity: -1, Price: 1},
		"negative price":    {Supplier: "Ahmed", Quantity: 1, Price: -1},
		"nan":               {Supplier: "Ahmed", Quantity: math.NaN(), Price: 1},
		"infinite":          {Supplier: "Ahmed", Quantity: math.Inf(1), Price: 1},
		"missing supplier":  {Quantity: 1, Price: 1},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := engine.RecordPurchase(ctx, in)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Empty(t, engine.Purchases(""))

	_, err := engine.SaveMember(ctx, MemberInput{Name: "Fatima", Role: "Chief"})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestDuplicateInvoiceRejected(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	sale, err := engine.RecordSale(ctx, SaleInput{InvoiceNumber: "F-1", Date: day(1), Client: "Hotel", Product: "Soap", Quantity: 1, UnitPrice: 10})
	require.NoError(t, err)

	_, err = engine.RecordSale(ctx, SaleInput{InvoiceNumber: "F-1", Date: day(2), Client: "Spa", Product: "Soap", Quantity: 1, UnitPrice: 10})
	require.ErrorIs(t, err, ErrDuplicateInvoice)

	_, err = engine.RecordSale(ctx, SaleInput{ID: sale.ID, InvoiceNumber: "F-1", Date: day(1), Client: "Hotel", Product: "Soap", Quantity: 2, UnitPrice: 10})
	require.NoError(t, err)
}

func TestCascadeFailureKeepsPrimaryRecord(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)
	boom := errors.New("store unavailable")

	store.FailNextWrite(testNamespace.CollectionPath(string(models.CollectionAccounting)), boom)
	purchase, err := engine.RecordPurchase(ctx, PurchaseInput{Date: day(1), Supplier: "Ahmed", Quantity: 2, Price: 5})
	require.ErrorIs(t, err, boom)
	assert.NotEmpty(t, purchase.ID)
	assert.Len(t, engine.Purchases(""), 1)
	assert.Empty(t, engine.Accounting(AccountingFilter{}))
}

func TestAdvisoryChecks(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	_, err := engine.RecordPurchase(ctx, PurchaseInput{Date: day(1), Supplier: "Ahmed", Quantity: 50, Price: 1})
	require.NoError(t, err)
	assert.Nil(t, engine.CheckProduction(50))

	warning := engine.CheckProduction(60)
	require.NotNil(t, warning)
	assert.Equal(t, 50.0, warning.Available)

	assert.Nil(t, engine.CheckSale("Amlou", 100))
	warning = engine.CheckSale("argan OIL", 1)
	require.NotNil(t, warning)
	assert.Equal(t, 0.0, warning.Available)
}

func TestProjectionsAndFilters(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	_, err := engine.RecordPurchase(ctx, PurchaseInput{Date: time.Date(2024, time.December, 10, 0, 0, 0, 0, time.UTC), Supplier: "Ahmed", Quantity: 10, Price: 10})
	require.NoError(t, err)
	_, err = engine.RecordPurchase(ctx, PurchaseInput{Date: day(5), Supplier: "Brahim", Quantity: 10, Price: 5})
	require.NoError(t, err)
	_, err = engine.RecordSale(ctx, SaleInput{InvoiceNumber: "F-9", Date: day(6), Client: "Hotel Atlas", Product: "Soap", Quantity: 10, UnitPrice: 30})
	require.NoError(t, err)
	_, err = engine.RecordAccountingEntry(ctx, AccountingInput{Date: day(7), Category: "Expense (Transport)", Description: "Truck", Amount: 20})
	require.NoError(t, err)
	_, err = engine.RecordAccountingEntry(ctx, AccountingInput{Date: day(8), Category: "Revenue (Grant)", Description: "Region", Amount: 500})
	require.NoError(t, err)

	flows := engine.MonthlyFlows()
	require.Len(t, flows, 2)
	assert.Equal(t, models.MonthlyFlow{Month: "2024-12", Purchases: 100}, flows[0])
	assert.Equal(t, models.MonthlyFlow{Month: "2025-03", Sales: 300, Purchases: 50}, flows[1])

	stats := engine.AccountingStats()
	assert.Equal(t, models.AccountingStats{Revenue: 800, Expenses: 170, Balance: 630}, stats)

	annual := engine.AnnualAccounting()
	require.Len(t, annual, 2)
	assert.Equal(t, models.AnnualTotals{Year: 2024, Expenses: 100}, annual[0])
	assert.Equal(t, models.AnnualTotals{Year: 2025, Revenue: 800, Expenses: 70}, annual[1])

	purchases := engine.Purchases("")
	require.Len(t, purchases, 2)
	assert.Equal(t, "Brahim", purchases[0].Supplier)
	assert.Len(t, engine.Purchases("ahm"), 1)

	assert.Len(t, engine.Sales("atlas"), 1)
	assert.Len(t, engine.Sales("f-9"), 1)
	assert.Empty(t, engine.Sales("spa"))

	expenses := engine.Accounting(AccountingFilter{Category: "Expense (Other)"})
	require.Len(t, expenses, 1)
	assert.Equal(t, "Truck", expenses[0].Description)
	assert.Len(t, engine.Accounting(AccountingFilter{Search: "region"}), 1)
}

func TestMembersFilter(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	member, err := engine.SaveMember(ctx, MemberInput{Name: "Fatima Zahra", Phone: "0600"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, member.Role)
	_, err = engine.SaveMember(ctx, MemberInput{Name: "Aicha", Role: models.RoleTreasurer})
	require.NoError(t, err)

	assert.Len(t, engine.Members(MemberFilter{}), 2)
	assert.Len(t, engine.Members(MemberFilter{Search: "fatima"}), 1)
	assert.Len(t, engine.Members(MemberFilter{Search: "treas"}), 1)

	treasurers := engine.Members(MemberFilter{Role: models.RoleTreasurer})
	require.Len(t, treasurers, 1)
	assert.Equal(t, "Aicha", treasurers[0].Name)
}

func TestSaveSettingsMerges(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)

	_, err := engine.SaveSettings(ctx, models.Settings{Name: "Tifaout", Phone: "0528"})
	require.NoError(t, err)
	merged, err := engine.SaveSettings(ctx, models.Settings{Address: "Taroudant"})
	require.NoError(t, err)

	assert.Equal(t, models.Settings{ID: repository.SettingsDocumentID, Name: "Tifaout", Phone: "0528", Address: "Taroudant"}, merged)
	assert.Equal(t, merged, engine.Settings())

	docs, err := store.Collection(testNamespace.SettingsPath()).List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, repository.SettingsDocumentID, docs[0].ID)
}

func TestSubscriptionUpdatesFromOtherWriters(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)

	_, err := store.Collection(testNamespace.CollectionPath(string(models.CollectionStock))).
		Upsert(ctx, "", []byte(`{"item":"Jars","available":1,"unit":"unit","minimum":5}`))
	require.NoError(t, err)

	alerts := engine.LowStockAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "Jars", alerts[0].Item)
}

func TestCascadesOnRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := redisstore.NewWithClient(client, nil)
	t.Cleanup(func() { _ = store.Close(ctx) })

	engine := NewEngine(store, testNamespace, nil)
	require.NoError(t, engine.Sync(ctx))

	_, err := engine.RecordProduction(ctx, ProductionInput{Date: day(1), FruitsUsed: 100, OilProduced: 18})
	require.NoError(t, err)
	_, err = engine.RecordProduction(ctx, ProductionInput{Date: day(2), FruitsUsed: 20, OilProduced: 5})
	require.NoError(t, err)
	_, err = engine.RecordSale(ctx, SaleInput{InvoiceNumber: "F-1", Date: day(3), Client: "Hotel", Product: "Argan oil", Quantity: 3, UnitPrice: 250})
	require.NoError(t, err)

	oil, ok := engine.OilStock()
	require.True(t, ok)
	assert.Equal(t, 20.0, oil.Available)

	reloaded := NewEngine(store, testNamespace, nil)
	require.NoError(t, reloaded.Sync(ctx))
	assert.Equal(t, engine.DashboardSummary(), reloaded.DashboardSummary())
	assert.Equal(t, engine.Accounting(AccountingFilter{}), reloaded.Accounting(AccountingFilter{}))
}

func TestSearchIgnoresAccentsAndCase(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	_, err := engine.SaveMember(ctx, MemberInput{Name: "Aïcha Oubella"})
	require.NoError(t, err)
	_, err = engine.RecordSale(ctx, SaleInput{InvoiceNumber: "F-1", Date: day(1), Client: "Hôtel Atlas", Product: "Soap", Quantity: 1, UnitPrice: 1})
	require.NoError(t, err)

	assert.Len(t, engine.Members(MemberFilter{Search: "AICHA"}), 1)
	assert.Len(t, engine.Sales("hotel"), 1)
	assert.Len(t, engine.Sales("HÔTEL"), 1)
	assert.Empty(t, engine.Sales("riad"))
}

func TestOnChangeFiresForEverySnapshot(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	seen := map[models.Collection]int{}
	engine.OnChange(func(c models.Collection) { seen[c]++ })

	_, err := engine.RecordPurchase(ctx, PurchaseInput{Date: day(1), Supplier: "Ahmed", Quantity: 1, Price: 1})
	require.NoError(t, err)

	assert.Positive(t, seen[models.CollectionPurchases])
	assert.Positive(t, seen[models.CollectionAccounting])
	assert.Zero(t, seen[models.CollectionSales])
}

// Package ledger keeps the cooperative's record collections consistent.
//
// Creating a purchase, production batch or sale cascades into the stock and
// accounting collections. Cascades are ordered store writes without
// rollback: when a later step fails the earlier ones stay committed.
//
// The engine's in-memory state changes only through ApplySnapshot, fed by
// store subscriptions and by a re-list of each collection the engine writes.
// Nothing mutates the cached slices directly.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mamadbah2/argan/internal/domain/models"
	"github.com/mamadbah2/argan/internal/repository"
)

var (
	// ErrInvalidInput wraps every validation failure.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownCollection is returned for collection names the engine does not manage.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrDuplicateInvoice is returned when an invoice number is already used by another sale.
	ErrDuplicateInvoice = errors.New("invoice number already used")
)

// Engine owns the cached collections and every mutation rule.
type Engine struct {
	cols     map[models.Collection]repository.Collection
	settings repository.Collection
	validate *validator.Validate
	logger   *zap.Logger

	// opMu serializes record operations so a cascade always sees the
	// state its own earlier steps produced.
	opMu sync.Mutex

	mu    sync.RWMutex
	state state

	cancelMu sync.Mutex
	cancels  []func()

	listenMu  sync.RWMutex
	listeners []func(models.Collection)
}

type state struct {
	members    []models.Member
	purchases  []models.Purchase
	production []models.ProductionBatch
	sales      []models.Sale
	stock      []models.StockItem
	accounting []models.AccountingEntry
	settings   models.Settings
}

// NewEngine binds the engine to the collections of ns in store.
func NewEngine(store repository.Store, ns repository.Namespace, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	cols := make(map[models.Collection]repository.Collection, len(models.Collections()))
	for _, c := range models.Collections() {
		cols[c] = store.Collection(ns.CollectionPath(string(c)))
	}

	return &Engine{
		cols:     cols,
		settings: store.Collection(ns.SettingsPath()),
		validate: newValidator(),
		logger:   logger,
	}
}

// Start loads every collection and subscribes to changes. A backend that
// cannot push changes is logged and skipped; the engine still refreshes
// after its own writes.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Sync(ctx); err != nil {
		return err
	}

	for _, c := range models.Collections() {
		c := c
		cancel, err := e.cols[c].Subscribe(ctx, func(docs []repository.Document) {
			if err := e.ApplySnapshot(c, docs); err != nil {
				e.logger.Error("apply snapshot failed", zap.String("collection", string(c)), zap.Error(err))
			}
		})
		if err != nil {
			e.logger.Warn("live updates unavailable", zap.String("collection", string(c)), zap.Error(err))
			continue
		}
		e.addCancel(cancel)
	}

	cancel, err := e.settings.Subscribe(ctx, func(docs []repository.Document) {
		if err := e.applySettings(docs); err != nil {
			e.logger.Error("apply settings snapshot failed", zap.Error(err))
		}
	})
	if err != nil {
		e.logger.Warn("live settings unavailable", zap.Error(err))
	} else {
		e.addCancel(cancel)
	}

	e.logger.Info("ledger engine started")
	return nil
}

// Close stops every subscription.
func (e *Engine) Close() {
	e.cancelMu.Lock()
	cancels := e.cancels
	e.cancels = nil
	e.cancelMu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (e *Engine) addCancel(cancel func()) {
	e.cancelMu.Lock()
	e.cancels = append(e.cancels, cancel)
	e.cancelMu.Unlock()
}

// OnChange registers fn to run after every applied collection snapshot.
// fn runs on the goroutine that delivered the snapshot and must not block.
func (e *Engine) OnChange(fn func(models.Collection)) {
	e.listenMu.Lock()
	e.listeners = append(e.listeners, fn)
	e.listenMu.Unlock()
}

func (e *Engine) changed(collection models.Collection) {
	e.listenMu.RLock()
	listeners := e.listeners
	e.listenMu.RUnlock()

	for _, fn := range listeners {
		fn(collection)
	}
}

// Sync re-lists every collection from the store and applies the results.
func (e *Engine) Sync(ctx context.Context) error {
	collections := models.Collections()
	snapshots := make([][]repository.Document, len(collections))
	var settings []repository.Document

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range collections {
		i, c := i, c
		g.Go(func() error {
			docs, err := e.cols[c].List(gctx)
			if err != nil {
				return fmt.Errorf("list %s: %w", c, err)
			}
			snapshots[i] = docs
			return nil
		})
	}
	g.Go(func() error {
		docs, err := e.settings.List(gctx)
		if err != nil {
			return fmt.Errorf("list settings: %w", err)
		}
		settings = docs
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for i, c := range collections {
		if err := e.ApplySnapshot(c, snapshots[i]); err != nil {
			return err
		}
	}
	return e.applySettings(settings)
}

// ApplySnapshot replaces the cached contents of collection with docs.
// Derived totals are recomputed; stored ones are ignored.
func (e *Engine) ApplySnapshot(collection models.Collection, docs []repository.Document) error {
	switch collection {
	case models.CollectionMembers:
		members, err := decodeAll[models.Member](docs)
		if err != nil {
			return err
		}
		e.mu.Lock()
		e.state.members = members
		e.mu.Unlock()
	case models.CollectionPurchases:
		purchases, err := decodeAll[models.Purchase](docs)
		if err != nil {
			return err
		}
		for i := range purchases {
			purchases[i].Total = purchases[i].ComputeTotal()
		}
		e.mu.Lock()
		e.state.purchases = purchases
		e.mu.Unlock()
	case models.CollectionProduction:
		batches, err := decodeAll[models.ProductionBatch](docs)
		if err != nil {
			return err
		}
		e.mu.Lock()
		e.state.production = batches
		e.mu.Unlock()
	case models.CollectionSales:
		sales, err := decodeAll[models.Sale](docs)
		if err != nil {
			return err
		}
		for i := range sales {
			sales[i].Total = sales[i].ComputeTotal()
		}
		e.mu.Lock()
		e.state.sales = sales
		e.mu.Unlock()
	case models.CollectionStock:
		items, err := decodeAll[models.StockItem](docs)
		if err != nil {
			return err
		}
		e.mu.Lock()
		e.state.stock = items
		e.mu.Unlock()
	case models.CollectionAccounting:
		entries, err := decodeAll[models.AccountingEntry](docs)
		if err != nil {
			return err
		}
		e.mu.Lock()
		e.state.accounting = entries
		e.mu.Unlock()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}

	e.changed(collection)
	return nil
}

func (e *Engine) applySettings(docs []repository.Document) error {
	all, err := decodeAll[models.Settings](docs)
	if err != nil {
		return err
	}

	var current models.Settings
	for _, s := range all {
		if s.ID == repository.SettingsDocumentID {
			current = s
		}
	}

	e.mu.Lock()
	e.state.settings = current
	e.mu.Unlock()
	return nil
}

type storable interface {
	GetID() string
	SetID(id string)
}

// save upserts rec, stores the assigned ID back into it and refreshes the
// collection from the store.
func (e *Engine) save(ctx context.Context, collection models.Collection, rec storable) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", collection, err)
	}

	id, err := e.cols[collection].Upsert(ctx, rec.GetID(), data)
	if err != nil {
		return err
	}
	rec.SetID(id)

	return e.refresh(ctx, collection)
}

func (e *Engine) refresh(ctx context.Context, collection models.Collection) error {
	docs, err := e.cols[collection].List(ctx)
	if err != nil {
		return fmt.Errorf("reload %s: %w", collection, err)
	}
	return e.ApplySnapshot(collection, docs)
}

type decodable[T any] interface {
	*T
	SetID(id string)
}

func decodeAll[T any, P decodable[T]](docs []repository.Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var rec T
		if err := json.Unmarshal(doc.Data, &rec); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", doc.ID, err)
		}
		P(&rec).SetID(doc.ID)
		out = append(out, rec)
	}
	return out, nil
}

// Package shipping implements the shipping quote and checkout session for a single product.
package shipping

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"finitefield.org/storefront/internal/domain"
)

// State is the lifecycle position of the shipping session.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateQuoting  State = "quoting"
	StateQuoted   State = "quoted"
	StateCheckout State = "checkout"
)

const missingETA = "-"

var (
	// ErrDestinationRequired is returned by Calculate when no destination has been chosen.
	ErrDestinationRequired = fmt.Errorf("%w: destination is required", domain.ErrInvalidArgument)
	// ErrOutOfStock is returned by Open for products without stock.
	ErrOutOfStock = fmt.Errorf("%w: product is out of stock", domain.ErrInvalidArgument)
	// ErrNoSession is returned by operations that need an open session.
	ErrNoSession = fmt.Errorf("%w: no open shipping session", domain.ErrInvalidArgument)
	// ErrUnknownDestination is returned by SetDestination for names that were not loaded.
	ErrUnknownDestination = fmt.Errorf("%w: unknown destination", domain.ErrInvalidArgument)
	// ErrProductMissing is returned by Checkout when the product left the catalog.
	ErrProductMissing = fmt.Errorf("%w: product is no longer in the catalog", domain.ErrInvalidArgument)
	// ErrSessionClosed is returned when the session was closed or replaced while a call was in flight.
	ErrSessionClosed = errors.New("shipping: session closed")
)

// Quoter prices a shipment.
type Quoter interface {
	Quote(ctx context.Context, destination string, weightKg float64) (domain.ShippingQuote, error)
}

// ProductUpdater persists a full product record.
type ProductUpdater interface {
	UpdateProduct(ctx context.Context, product domain.Product) (domain.Product, error)
}

// Catalog is the read side of the loaded catalog the workflow validates against.
type Catalog interface {
	FindByID(id string) (domain.Product, bool)
	LookupDestination(name string) (string, bool)
}

// Confirmer asks the operator to approve a checkout.
type Confirmer interface {
	Confirm(ctx context.Context, product domain.Product, result Result) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, product domain.Product, result Result) bool

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, product domain.Product, result Result) bool {
	if f == nil {
		return false
	}
	return f(ctx, product, result)
}

// Deps bundles the collaborators of a Workflow.
type Deps struct {
	Quoter  Quoter
	Updater ProductUpdater
	Catalog Catalog
	Logger  *zap.Logger
}

// Result holds the derived totals of a successful quote. Amounts are exact.
type Result struct {
	Destination  string
	Quantity     int
	TotalWeight  decimal.Decimal
	ProductTotal decimal.Decimal
	ShippingCost decimal.Decimal
	ETA          string
	GrandTotal   decimal.Decimal
}

// Receipt describes a checkout attempt.
type Receipt struct {
	Confirmed bool
	Product   domain.Product
	Quantity  int
	Result    Result
}

// Snapshot is a read-only copy of the session.
type Snapshot struct {
	State       State
	Product     domain.Product
	Quantity    int
	Destination string
	Busy        bool
	Result      *Result
}

// Workflow is the shipping session. One instance serves one operator; all methods are safe for
// concurrent use and the internal lock is never held during a remote call.
type Workflow struct {
	quoter  Quoter
	updater ProductUpdater
	catalog Catalog
	logger  *zap.Logger

	mu          sync.Mutex
	state       State
	product     domain.Product
	quantity    int
	destination string
	result      *Result
	busy        bool
	session     uint64
}

// New constructs a closed Workflow.
func New(deps Deps) (*Workflow, error) {
	if deps.Quoter == nil {
		return nil, errors.New("shipping: quoter is required")
	}
	if deps.Updater == nil {
		return nil, errors.New("shipping: product updater is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("shipping: catalog is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		quoter:  deps.Quoter,
		updater: deps.Updater,
		catalog: deps.Catalog,
		logger:  logger.Named("shipping"),
		state:   StateClosed,
	}, nil
}

// Open starts a new session for product with quantity 1 and no destination.
func (w *Workflow) Open(product domain.Product) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.busy {
		return domain.ErrBusy
	}
	switch w.state {
	case StateClosed, StateOpen, StateQuoted:
	default:
		return domain.InvalidArgument("cannot open shipping from state %s", w.state)
	}
	if !product.CanShip() {
		return ErrOutOfStock
	}

	w.session++
	w.state = StateOpen
	w.product = product
	w.quantity = 1
	w.destination = ""
	w.result = nil
	w.logger.Debug("session opened", zap.String("product_id", product.ID), zap.Int("stock", product.Stock))
	return nil
}

// SetQuantity moves the quantity by delta, clamped to [1, stock] of the product's current stock.
// Reaching a bound is a silent no-op. A change while quoted discards the quote.
func (w *Workflow) SetQuantity(delta int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.requireEditableLocked(); err != nil {
		return err
	}
	if current, ok := w.catalog.FindByID(w.product.ID); ok {
		w.product = current
	}

	next := clamp(w.quantity+delta, 1, w.product.Stock)
	if next == w.quantity {
		return nil
	}
	w.quantity = next
	w.invalidateLocked("quantity changed")
	return nil
}

// SetDestination selects a loaded destination. A change while quoted discards the quote.
func (w *Workflow) SetDestination(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.requireEditableLocked(); err != nil {
		return err
	}
	name = domain.NormalizeDestination(name)
	if name == "" {
		return ErrDestinationRequired
	}
	canonical, ok := w.catalog.LookupDestination(name)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownDestination, name)
	}
	name = canonical
	if name == w.destination {
		return nil
	}
	w.destination = name
	w.invalidateLocked("destination changed")
	return nil
}

// Calculate requests a quote for the current selection and derives the totals. On failure the
// session returns to open with no quote.
func (w *Workflow) Calculate(ctx context.Context) (Result, error) {
	w.mu.Lock()
	if err := w.requireEditableLocked(); err != nil {
		w.mu.Unlock()
		return Result{}, err
	}
	if w.destination == "" {
		w.mu.Unlock()
		return Result{}, ErrDestinationRequired
	}
	product, quantity, destination, session := w.product, w.quantity, w.destination, w.session
	w.busy = true
	w.state = StateQuoting
	w.mu.Unlock()

	qty := decimal.NewFromInt(int64(quantity))
	totalWeight := decimal.NewFromFloat(product.WeightKg).Mul(qty)

	quote, err := w.quoter.Quote(ctx, destination, totalWeight.InexactFloat64())

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session != session {
		return Result{}, ErrSessionClosed
	}
	w.busy = false
	if err != nil {
		w.state = StateOpen
		w.result = nil
		w.logger.Warn("quote failed",
			zap.String("product_id", product.ID),
			zap.String("destination", destination),
			zap.Error(err),
		)
		return Result{}, fmt.Errorf("shipping: calculate: %w", err)
	}

	result := deriveResult(product, quantity, destination, totalWeight, quote)
	w.state = StateQuoted
	w.result = &result
	w.logger.Debug("quote received",
		zap.String("product_id", product.ID),
		zap.String("destination", destination),
		zap.Int("quantity", quantity),
		zap.String("grand_total", result.GrandTotal.String()),
	)
	return result, nil
}

// Checkout commits the quoted quantity against stock after confirmation. The quantity is
// re-checked against the current catalog first; declining leaves the session quoted.
func (w *Workflow) Checkout(ctx context.Context, confirmer Confirmer) (Receipt, error) {
	w.mu.Lock()
	if w.busy {
		w.mu.Unlock()
		return Receipt{}, domain.ErrBusy
	}
	if w.state == StateClosed {
		w.mu.Unlock()
		return Receipt{}, ErrNoSession
	}
	if w.state != StateQuoted || w.result == nil {
		state := w.state
		w.mu.Unlock()
		return Receipt{}, domain.InvalidArgument("checkout requires a quote, state is %s", state)
	}
	current, ok := w.catalog.FindByID(w.product.ID)
	if !ok {
		id := w.product.ID
		w.mu.Unlock()
		return Receipt{}, fmt.Errorf("%w: %s", ErrProductMissing, id)
	}
	if w.quantity > current.Stock {
		err := &domain.InsufficientStockError{ProductID: current.ID, Requested: w.quantity, Available: current.Stock}
		w.mu.Unlock()
		return Receipt{}, err
	}
	quantity, result, session := w.quantity, *w.result, w.session
	w.busy = true
	w.state = StateCheckout
	w.mu.Unlock()

	receipt := Receipt{Product: current, Quantity: quantity, Result: result}

	if confirmer == nil || !confirmer.Confirm(ctx, current, result) {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.session == session {
			w.busy = false
			w.state = StateQuoted
		}
		w.logger.Debug("checkout declined", zap.String("product_id", current.ID))
		return receipt, nil
	}
	receipt.Confirmed = true

	updated, err := w.updater.UpdateProduct(ctx, current.WithStock(current.Stock-quantity))

	w.mu.Lock()
	defer w.mu.Unlock()
	sameSession := w.session == session
	if sameSession {
		w.busy = false
	}
	if err != nil {
		if sameSession {
			w.state = StateQuoted
		}
		w.logger.Warn("checkout failed", zap.String("product_id", current.ID), zap.Error(err))
		return Receipt{}, fmt.Errorf("shipping: checkout: %w", err)
	}

	receipt.Product = updated
	if sameSession {
		w.closeLocked()
	}
	w.logger.Info("checkout completed",
		zap.String("product_id", current.ID),
		zap.Int("quantity", quantity),
		zap.Int("stock", updated.Stock),
	)
	return receipt, nil
}

// Close discards the session from any state. Results of calls still in flight are dropped.
func (w *Workflow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeLocked()
}

// Sync reconciles the session with a freshly loaded catalog. The product is refreshed and the
// quantity clamped to its stock; a product that vanished or sold out closes the session.
func (w *Workflow) Sync() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateClosed || w.busy {
		return
	}
	current, ok := w.catalog.FindByID(w.product.ID)
	if !ok || !current.CanShip() {
		w.logger.Debug("session closed after reload", zap.String("product_id", w.product.ID))
		w.closeLocked()
		return
	}

	changed := current != w.product
	w.product = current
	if clamped := clamp(w.quantity, 1, current.Stock); clamped != w.quantity {
		w.quantity = clamped
		changed = true
	}
	if w.destination != "" {
		// Unknown names come back empty, which clears the selection.
		if canonical, _ := w.catalog.LookupDestination(w.destination); canonical != w.destination {
			w.destination = canonical
			changed = true
		}
	}
	if changed {
		w.invalidateLocked("catalog reloaded")
	}
}

// Snapshot returns a copy of the session.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := Snapshot{
		State:       w.state,
		Product:     w.product,
		Quantity:    w.quantity,
		Destination: w.destination,
		Busy:        w.busy,
	}
	if w.result != nil {
		r := *w.result
		snap.Result = &r
	}
	return snap
}

func (w *Workflow) requireEditableLocked() error {
	if w.busy {
		return domain.ErrBusy
	}
	if w.state != StateOpen && w.state != StateQuoted {
		return fmt.Errorf("%w, state is %s", ErrNoSession, w.state)
	}
	return nil
}

func (w *Workflow) invalidateLocked(reason string) {
	if w.state == StateQuoted {
		w.state = StateOpen
		w.result = nil
		w.logger.Debug("quote invalidated", zap.String("reason", reason))
	}
}

func (w *Workflow) closeLocked() {
	w.session++
	w.state = StateClosed
	w.product = domain.Product{}
	w.quantity = 0
	w.destination = ""
	w.result = nil
	w.busy = false
}

func deriveResult(product domain.Product, quantity int, destination string, totalWeight decimal.Decimal, quote domain.ShippingQuote) Result {
	qty := decimal.NewFromInt(int64(quantity))
	productTotal := decimal.NewFromFloat(product.Price).Mul(qty)

	shippingCost := decimal.Zero
	if c := quote.TotalCost; c != 0 && !math.IsNaN(c) && !math.IsInf(c, 0) {
		shippingCost = decimal.NewFromFloat(c)
	}
	eta := quote.ETA
	if eta == "" {
		eta = missingETA
	}

	return Result{
		Destination:  destination,
		Quantity:     quantity,
		TotalWeight:  totalWeight,
		ProductTotal: productTotal,
		ShippingCost: shippingCost,
		ETA:          eta,
		GrandTotal:   productTotal.Add(shippingCost),
	}
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Package app wires the catalog, shipping and editor sessions behind a command dispatcher.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"finitefield.org/storefront/internal/catalog"
	"finitefield.org/storefront/internal/domain"
	"finitefield.org/storefront/internal/editor"
	"finitefield.org/storefront/internal/inventory"
	"finitefield.org/storefront/internal/logistics"
	"finitefield.org/storefront/internal/notify"
	"finitefield.org/storefront/internal/shipping"
)

// Action names a user command.
type Action string

const (
	ActionReload            Action = "reload"
	ActionShippingOpen      Action = "shipping.open"
	ActionShippingClose     Action = "shipping.close"
	ActionQuantityIncrement Action = "shipping.quantity.increment"
	ActionQuantityDecrement Action = "shipping.quantity.decrement"
	ActionSetDestination    Action = "shipping.destination"
	ActionCalculate         Action = "shipping.calculate"
	ActionCheckout          Action = "shipping.checkout"
	ActionEditorCreate      Action = "editor.create"
	ActionEditorEdit        Action = "editor.edit"
	ActionEditorSubmit      Action = "editor.submit"
)

// Level classifies a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a message for the operator.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Command is a single user action.
type Command struct {
	Action      Action       `json:"action"`
	ProductID   string       `json:"product_id,omitempty"`
	Destination string       `json:"destination,omitempty"`
	Form        *editor.Form `json:"form,omitempty"`
	// Confirmed approves a checkout; without it the checkout is declined.
	Confirmed bool `json:"confirmed,omitempty"`
}

// Outcome is the result of dispatching a Command.
type Outcome struct {
	Action   Action      `json:"action"`
	Notice   *Notice     `json:"notice,omitempty"`
	Session  SessionView `json:"session"`
	Editor   EditorView  `json:"editor"`
	Reloaded bool        `json:"reloaded"`
	// Ignored is set when the action was disabled or already in flight.
	Ignored bool `json:"ignored"`
}

// Deps bundles the collaborators of a Controller.
type Deps struct {
	Inventory   inventory.Service
	Logistics   logistics.Service
	Notifier    notify.Notifier
	Logger      *zap.Logger
	IDGenerator func() string
	Clock       func() time.Time
}

type handler func(ctx context.Context, cmd Command, out *Outcome)

// Controller owns the client state and dispatches commands against it.
type Controller struct {
	inventory inventory.Service
	logistics logistics.Service
	notifier  notify.Notifier
	logger    *zap.Logger
	clock     func() time.Time

	catalog  *catalog.Catalog
	shipping *shipping.Workflow
	editor   *editor.Editor
	handlers map[Action]handler

	loads singleflight.Group

	mu     sync.RWMutex
	status LoadStatus
}

// New constructs a Controller with empty catalog and closed sessions.
func New(deps Deps) (*Controller, error) {
	if deps.Inventory == nil {
		return nil, errors.New("app: inventory service is required")
	}
	if deps.Logistics == nil {
		return nil, errors.New("app: logistics service is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	cat := catalog.New()
	wf, err := shipping.New(shipping.Deps{
		Quoter:  deps.Logistics,
		Updater: deps.Inventory,
		Catalog: cat,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	ed, err := editor.New(editor.Deps{
		Products:    deps.Inventory,
		Catalog:     cat,
		IDGenerator: deps.IDGenerator,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	c := &Controller{
		inventory: deps.Inventory,
		logistics: deps.Logistics,
		notifier:  notifier,
		logger:    logger.Named("app"),
		clock:     clock,
		catalog:   cat,
		shipping:  wf,
		editor:    ed,
	}
	c.handlers = map[Action]handler{
		ActionReload:            c.handleReload,
		ActionShippingOpen:      c.handleOpen,
		ActionShippingClose:     c.handleClose,
		ActionQuantityIncrement: c.handleQuantity(+1),
		ActionQuantityDecrement: c.handleQuantity(-1),
		ActionSetDestination:    c.handleDestination,
		ActionCalculate:         c.handleCalculate,
		ActionCheckout:          c.handleCheckout,
		ActionEditorCreate:      c.handleEditorCreate,
		ActionEditorEdit:        c.handleEditorEdit,
		ActionEditorSubmit:      c.handleEditorSubmit,
	}
	return c, nil
}

// Actions lists the supported actions.
func (c *Controller) Actions() []Action {
	return []Action{
		ActionReload, ActionShippingOpen, ActionShippingClose, ActionQuantityIncrement,
		ActionQuantityDecrement, ActionSetDestination, ActionCalculate, ActionCheckout,
		ActionEditorCreate, ActionEditorEdit, ActionEditorSubmit,
	}
}

// Dispatch runs cmd and returns the resulting state and notice. Failures are reported through
// the notice; Dispatch itself never fails.
func (c *Controller) Dispatch(ctx context.Context, cmd Command) Outcome {
	out := Outcome{Action: cmd.Action}
	h, ok := c.handlers[cmd.Action]
	if !ok {
		out.Notice = errorNotice(msgUnknownAction)
	} else {
		c.logger.Debug("dispatch", zap.String("action", string(cmd.Action)), zap.String("product_id", cmd.ProductID))
		h(ctx, cmd, &out)
	}
	out.Session = newSessionView(c.shipping.Snapshot())
	out.Editor = newEditorView(c.editor.Snapshot())
	return out
}

// Reload fetches products and destinations independently. Concurrent reloads share one request
// per service. The returned error joins the failures of both loads.
func (c *Controller) Reload(ctx context.Context) error {
	var wg sync.WaitGroup
	var productsErr, destinationsErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		productsErr = c.loadProducts(ctx)
	}()
	go func() {
		defer wg.Done()
		destinationsErr = c.loadDestinations(ctx)
	}()
	wg.Wait()

	c.shipping.Sync()
	c.editor.Sync()

	c.mu.Lock()
	c.status.LoadedAt = c.clock().UTC()
	c.mu.Unlock()
	return errors.Join(productsErr, destinationsErr)
}

func (c *Controller) loadProducts(ctx context.Context) error {
	_, err, _ := c.loads.Do("products", func() (any, error) {
		products, err := c.inventory.ListProducts(ctx)
		if err != nil {
			return nil, err
		}
		c.catalog.Replace(products)
		return nil, nil
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.status.ProductsError = msgLoadProductsFailed
		c.logger.Warn("load products failed", zap.Error(err))
		return fmt.Errorf("app: load products: %w", err)
	}
	c.status.ProductsLoaded = true
	c.status.ProductsError = ""
	return nil
}

func (c *Controller) loadDestinations(ctx context.Context) error {
	_, err, _ := c.loads.Do("destinations", func() (any, error) {
		destinations, err := c.logistics.ListDestinations(ctx)
		if err != nil {
			return nil, err
		}
		c.catalog.ReplaceDestinations(destinations)
		return nil, nil
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.status.DestinationsError = msgLoadDestinationsFailed
		c.logger.Warn("load destinations failed", zap.Error(err))
		return fmt.Errorf("app: load destinations: %w", err)
	}
	c.status.DestinationsLoaded = true
	c.status.DestinationsError = ""
	return nil
}

// Products returns the catalog with display strings.
func (c *Controller) Products() []ProductView {
	products := c.catalog.Products()
	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		out = append(out, newProductView(p))
	}
	return out
}

// Destinations returns the loaded destinations.
func (c *Controller) Destinations() []domain.Destination {
	return c.catalog.Destinations()
}

// State returns the session, editor and load status.
func (c *Controller) State() StateView {
	c.mu.RLock()
	status := c.status
	c.mu.RUnlock()
	return StateView{
		Session: newSessionView(c.shipping.Snapshot()),
		Editor:  newEditorView(c.editor.Snapshot()),
		Status:  status,
	}
}

func (c *Controller) handleReload(ctx context.Context, _ Command, out *Outcome) {
	err := c.Reload(ctx)
	out.Reloaded = true
	c.mu.RLock()
	status := c.status
	c.mu.RUnlock()
	switch {
	case err == nil:
		out.Notice = infoNotice(msgReloaded)
	case status.ProductsError != "":
		out.Notice = errorNotice(status.ProductsError)
	default:
		out.Notice = errorNotice(status.DestinationsError)
	}
}

func (c *Controller) handleOpen(_ context.Context, cmd Command, out *Outcome) {
	product, ok := c.catalog.FindByID(cmd.ProductID)
	if !ok {
		out.Notice = errorNotice(msgProductNotFound)
		return
	}
	if !product.CanShip() {
		out.Ignored = true
		out.Notice = errorNotice(msgOutOfStock)
		return
	}
	if err := c.shipping.Open(product); err != nil {
		c.shippingFailure(out, err, msgNoSession)
	}
}

func (c *Controller) handleClose(context.Context, Command, *Outcome) {
	c.shipping.Close()
}

func (c *Controller) handleQuantity(delta int) handler {
	return func(_ context.Context, _ Command, out *Outcome) {
		if err := c.shipping.SetQuantity(delta); err != nil {
			c.shippingFailure(out, err, msgNoSession)
		}
	}
}

func (c *Controller) handleDestination(_ context.Context, cmd Command, out *Outcome) {
	if err := c.shipping.SetDestination(cmd.Destination); err != nil {
		c.shippingFailure(out, err, msgNoSession)
	}
}

func (c *Controller) handleCalculate(ctx context.Context, _ Command, out *Outcome) {
	if _, err := c.shipping.Calculate(ctx); err != nil {
		c.shippingFailure(out, err, msgCalculateFailed)
	}
}

func (c *Controller) handleCheckout(ctx context.Context, cmd Command, out *Outcome) {
	confirmed := cmd.Confirmed
	receipt, err := c.shipping.Checkout(ctx, shipping.ConfirmFunc(func(context.Context, domain.Product, shipping.Result) bool {
		return confirmed
	}))
	if err != nil {
		c.shippingFailure(out, err, msgCheckoutFailed)
		return
	}
	if !receipt.Confirmed {
		out.Notice = infoNotice(msgCheckoutDeclined)
		return
	}

	c.publish(ctx, notify.Event{
		Kind:        notify.KindCheckoutCompleted,
		ProductID:   receipt.Product.ID,
		ProductName: receipt.Product.Name,
		Quantity:    receipt.Quantity,
		Stock:       receipt.Product.Stock,
		Destination: receipt.Result.Destination,
		GrandTotal:  receipt.Result.GrandTotal.String(),
	})
	c.reloadAfterMutation(ctx, out)
	out.Notice = successNotice(fmt.Sprintf(msgCheckoutDone, receipt.Product.Name, receipt.Product.Stock))
}

func (c *Controller) handleEditorCreate(_ context.Context, _ Command, out *Outcome) {
	if err := c.editor.BeginCreate(); errors.Is(err, domain.ErrBusy) {
		out.Ignored = true
	}
}

func (c *Controller) handleEditorEdit(_ context.Context, cmd Command, out *Outcome) {
	product, ok := c.catalog.FindByID(cmd.ProductID)
	if !ok {
		out.Notice = errorNotice(msgProductNotFound)
		return
	}
	if err := c.editor.BeginEdit(product); errors.Is(err, domain.ErrBusy) {
		out.Ignored = true
	}
}

func (c *Controller) handleEditorSubmit(ctx context.Context, cmd Command, out *Outcome) {
	if cmd.Form == nil {
		out.Notice = errorNotice(msgInvalidForm)
		return
	}
	mode := c.editor.Snapshot().Mode

	saved, err := c.editor.Submit(ctx, *cmd.Form)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrBusy):
		out.Ignored = true
		return
	case errors.Is(err, domain.ErrValidation):
		out.Notice = errorNotice(msgInvalidForm)
		return
	case mode == editor.ModeEdit:
		out.Notice = errorNotice(msgUpdateFailed)
		return
	default:
		out.Notice = errorNotice(msgCreateFailed)
		return
	}

	kind, message := notify.KindProductCreated, msgProductCreated
	if saved.Mode == editor.ModeEdit {
		kind, message = notify.KindProductUpdated, msgProductUpdated
	}
	c.publish(ctx, notify.Event{
		Kind:        kind,
		ProductID:   saved.Product.ID,
		ProductName: saved.Product.Name,
		Stock:       saved.Product.Stock,
	})
	c.reloadAfterMutation(ctx, out)
	out.Notice = successNotice(message)
}

func (c *Controller) shippingFailure(out *Outcome, err error, fallback string) {
	if errors.Is(err, domain.ErrBusy) || errors.Is(err, shipping.ErrSessionClosed) {
		out.Ignored = true
		return
	}
	out.Notice = shippingNotice(err, fallback)
}

// reloadAfterMutation forgets any load already in flight so the catalog reflects the mutation.
func (c *Controller) reloadAfterMutation(ctx context.Context, out *Outcome) {
	out.Reloaded = true
	c.loads.Forget("products")
	if err := c.Reload(ctx); err != nil {
		c.logger.Warn("reload after mutation failed", zap.Error(err))
	}
}

func (c *Controller) publish(ctx context.Context, event notify.Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = c.clock().UTC()
	}
	if err := c.notifier.Notify(ctx, event); err != nil {
		c.logger.Warn("notify failed", zap.String("kind", string(event.Kind)), zap.Error(err))
	}
}

// Package editor implements the admin create/edit product session.
package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"finitefield.org/storefront/internal/domain"
)

// Mode selects whether a submit creates a new product or updates the edit target.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

const idPrefix = "PROD-"

// ProductWriter persists products.
type ProductWriter interface {
	CreateProduct(ctx context.Context, draft domain.ProductDraft) (domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (domain.Product, error)
}

// Catalog resolves products of the last-loaded catalog.
type Catalog interface {
	FindByID(id string) (domain.Product, bool)
}

// Deps bundles the collaborators of an Editor.
type Deps struct {
	Products    ProductWriter
	Catalog     Catalog
	IDGenerator func() string
	Logger      *zap.Logger
}

// Saved describes a successful submit.
type Saved struct {
	Mode    Mode
	Product domain.Product
}

// Snapshot is a read-only copy of the editor session.
type Snapshot struct {
	Mode     Mode
	TargetID string
	Form     Form
	Busy     bool
}

// Editor is the admin product form session. Methods are safe for concurrent use and no lock is
// held during a remote call.
type Editor struct {
	products ProductWriter
	catalog  Catalog
	newID    func() string
	logger   *zap.Logger

	mu     sync.Mutex
	mode   Mode
	target string
	form   Form
	busy   bool
}

// New constructs an Editor in create mode.
func New(deps Deps) (*Editor, error) {
	if deps.Products == nil {
		return nil, errors.New("editor: product writer is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("editor: catalog is required")
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return idPrefix + ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Editor{
		products: deps.Products,
		catalog:  deps.Catalog,
		newID:    idGen,
		logger:   logger.Named("editor"),
		mode:     ModeCreate,
	}, nil
}

// BeginCreate switches to create mode with an empty form.
func (e *Editor) BeginCreate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return domain.ErrBusy
	}
	e.resetLocked()
	return nil
}

// BeginEdit targets product and prefills the form from it.
func (e *Editor) BeginEdit(product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return domain.InvalidArgument("product id is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return domain.ErrBusy
	}
	e.mode = ModeEdit
	e.target = product.ID
	e.form = FormFromProduct(product)
	return nil
}

// Submit validates form and creates or updates the product depending on the mode. Invalid input
// never reaches the inventory service. After a successful save the editor is back in create mode;
// on a remote failure mode and target are kept.
func (e *Editor) Submit(ctx context.Context, form Form) (Saved, error) {
	form = form.Normalize()

	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return Saved{}, domain.ErrBusy
	}
	e.form = form
	if err := form.Validate(); err != nil {
		e.mu.Unlock()
		return Saved{}, err
	}
	mode, target := e.mode, e.target
	e.busy = true
	e.mu.Unlock()

	var (
		saved domain.Product
		err   error
	)
	switch mode {
	case ModeEdit:
		saved, err = e.products.UpdateProduct(ctx, form.product(target))
	default:
		id := e.newID()
		saved, err = e.products.CreateProduct(ctx, domain.ProductDraft(form.product(id)))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy = false
	if err != nil {
		e.logger.Warn("save failed", zap.String("mode", string(mode)), zap.String("target_id", target), zap.Error(err))
		return Saved{}, fmt.Errorf("editor: save: %w", err)
	}

	e.logger.Info("product saved", zap.String("mode", string(mode)), zap.String("product_id", saved.ID))
	e.resetLocked()
	return Saved{Mode: mode, Product: saved}, nil
}

// Sync falls back to create mode when the edit target is no longer in the catalog.
func (e *Editor) Sync() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy || e.mode != ModeEdit {
		return
	}
	if _, ok := e.catalog.FindByID(e.target); !ok {
		e.logger.Debug("edit target vanished after reload", zap.String("target_id", e.target))
		e.resetLocked()
	}
}

// Snapshot returns a copy of the session.
func (e *Editor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{Mode: e.mode, TargetID: e.target, Form: e.form, Busy: e.busy}
}

func (e *Editor) resetLocked() {
	e.mode = ModeCreate
	e.target = ""
	e.form = Form{}
}

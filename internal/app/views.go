package app

import (
	"time"

	"finitefield.org/storefront/internal/domain"
	"finitefield.org/storefront/internal/editor"
	"finitefield.org/storefront/internal/format"
	"finitefield.org/storefront/internal/shipping"
)

// ProductView is a catalog entry with its display strings.
type ProductView struct {
	domain.Product
	StockStatus   domain.StockStatus `json:"stock_status"`
	StockLabel    string             `json:"stock_label"`
	BadgeClass    string             `json:"badge_class"`
	CategoryLabel string             `json:"category_label"`
	PriceLabel    string             `json:"price_label"`
	WeightLabel   string             `json:"weight_label"`
	ShipLabel     string             `json:"ship_label"`
	CanShip       bool               `json:"can_ship"`
}

// QuoteView renders a shipping result.
type QuoteView struct {
	Destination       string `json:"destination"`
	Quantity          int    `json:"quantity"`
	QuantityLabel     string `json:"quantity_label"`
	TotalWeight       string `json:"total_weight"`
	TotalWeightLabel  string `json:"total_weight_label"`
	ProductTotal      string `json:"product_total"`
	ProductTotalLabel string `json:"product_total_label"`
	ShippingCost      string `json:"shipping_cost"`
	ShippingCostLabel string `json:"shipping_cost_label"`
	ETA               string `json:"eta"`
	GrandTotal        string `json:"grand_total"`
	GrandTotalLabel   string `json:"grand_total_label"`
}

// SessionView renders the shipping session.
type SessionView struct {
	State         shipping.State `json:"state"`
	Product       *ProductView   `json:"product,omitempty"`
	Quantity      int            `json:"quantity"`
	QuantityLabel string         `json:"quantity_label,omitempty"`
	Destination   string         `json:"destination,omitempty"`
	Busy          bool           `json:"busy"`
	Quote         *QuoteView     `json:"quote,omitempty"`
}

// EditorView renders the admin form session.
type EditorView struct {
	Mode     editor.Mode `json:"mode"`
	TargetID string      `json:"target_id,omitempty"`
	Form     editor.Form `json:"form"`
	Busy     bool        `json:"busy"`
}

// LoadStatus records the outcome of the latest loads. Products and destinations load
// independently, so one may fail while the other is usable.
type LoadStatus struct {
	ProductsLoaded     bool      `json:"products_loaded"`
	ProductsError      string    `json:"products_error,omitempty"`
	DestinationsLoaded bool      `json:"destinations_loaded"`
	DestinationsError  string    `json:"destinations_error,omitempty"`
	LoadedAt           time.Time `json:"loaded_at,omitempty"`
}

// StateView is the full client state.
type StateView struct {
	Session SessionView `json:"session"`
	Editor  EditorView  `json:"editor"`
	Status  LoadStatus  `json:"status"`
}

func newProductView(p domain.Product) ProductView {
	return ProductView{
		Product:       p,
		StockStatus:   domain.StockStatusOf(p.Stock),
		StockLabel:    format.StockLabel(p.Stock),
		BadgeClass:    format.StockBadgeClass(p.Stock),
		CategoryLabel: format.Category(p.Category),
		PriceLabel:    format.Currency(p.Price),
		WeightLabel:   format.Weight(p.WeightKg),
		ShipLabel:     format.ShippingButtonLabel(p.Stock),
		CanShip:       p.CanShip(),
	}
}

func newQuoteView(r shipping.Result) *QuoteView {
	return &QuoteView{
		Destination:       r.Destination,
		Quantity:          r.Quantity,
		QuantityLabel:     format.Quantity(r.Quantity),
		TotalWeight:       r.TotalWeight.String(),
		TotalWeightLabel:  format.Weight(r.TotalWeight.InexactFloat64()),
		ProductTotal:      r.ProductTotal.String(),
		ProductTotalLabel: format.Rupiah(r.ProductTotal),
		ShippingCost:      r.ShippingCost.String(),
		ShippingCostLabel: format.Rupiah(r.ShippingCost),
		ETA:               format.ETA(r.ETA),
		GrandTotal:        r.GrandTotal.String(),
		GrandTotalLabel:   format.Rupiah(r.GrandTotal),
	}
}

func newSessionView(s shipping.Snapshot) SessionView {
	view := SessionView{
		State:       s.State,
		Quantity:    s.Quantity,
		Destination: s.Destination,
		Busy:        s.Busy,
	}
	if s.State != shipping.StateClosed {
		p := newProductView(s.Product)
		view.Product = &p
		view.QuantityLabel = format.Quantity(s.Quantity)
	}
	if s.Result != nil {
		view.Quote = newQuoteView(*s.Result)
	}
	return view
}

func newEditorView(s editor.Snapshot) EditorView {
	return EditorView{Mode: s.Mode, TargetID: s.TargetID, Form: s.Form, Busy: s.Busy}
}

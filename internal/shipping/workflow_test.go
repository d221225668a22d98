package shipping

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"finitefield.org/storefront/internal/catalog"
	"finitefield.org/storefront/internal/domain"
)

type stubQuoter struct {
	calls   atomic.Int32
	quoteFn func(ctx context.Context, destination string, weightKg float64) (domain.ShippingQuote, error)
}

func (s *stubQuoter) Quote(ctx context.Context, destination string, weightKg float64) (domain.ShippingQuote, error) {
	s.calls.Add(1)
	if s.quoteFn != nil {
		return s.quoteFn(ctx, destination, weightKg)
	}
	return domain.ShippingQuote{}, nil
}

type stubUpdater struct {
	calls    atomic.Int32
	updateFn func(ctx context.Context, product domain.Product) (domain.Product, error)
}

func (s *stubUpdater) UpdateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	s.calls.Add(1)
	if s.updateFn != nil {
		return s.updateFn(ctx, product)
	}
	return product, nil
}

var p1 = domain.Product{ID: "P1", Name: "Kopi", Category: "Minuman", Price: 50000, Stock: 5, WeightKg: 1.2}

func always(ok bool) Confirmer {
	return ConfirmFunc(func(context.Context, domain.Product, Result) bool { return ok })
}

func newWorkflow(t *testing.T, quoter *stubQuoter, updater *stubUpdater) (*Workflow, *catalog.Catalog) {
	t.Helper()
	cat := catalog.New()
	cat.Replace([]domain.Product{p1, {ID: "P0", Name: "Habis", Price: 1000, Stock: 0, WeightKg: 1}})
	cat.ReplaceDestinations([]domain.Destination{{Name: "Jakarta"}, {Name: "Bandung"}})

	if quoter == nil {
		quoter = &stubQuoter{}
	}
	if updater == nil {
		updater = &stubUpdater{}
	}
	wf, err := New(Deps{Quoter: quoter, Updater: updater, Catalog: cat})
	require.NoError(t, err)
	return wf, cat
}

func quoteOf(cost float64, eta string) *stubQuoter {
	return &stubQuoter{quoteFn: func(context.Context, string, float64) (domain.ShippingQuote, error) {
		return domain.ShippingQuote{TotalCost: cost, ETA: eta}, nil
	}}
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := New(Deps{})
	require.Error(t, err)
	_, err = New(Deps{Quoter: &stubQuoter{}, Updater: &stubUpdater{}})
	require.Error(t, err)
}

func TestOpenResetsSelection(t *testing.T) {
	t.Parallel()

	wf, _ := newWorkflow(t, quoteOf(15000, "2 hari"), nil)
	require.NoError(t, wf.Open(p1))
	require.NoError(t, wf.SetQuantity(+1))
	require.NoError(t, wf.SetDestination("Jakarta"))
	_, err := wf.Calculate(context.Background())
	require.NoError(t, err)

	require.NoError(t, wf.Open(p1))
	snap := wf.Snapshot()
	require.Equal(t, StateOpen, snap.State)
	require.Equal(t, 1, snap.Quantity)
	require.Empty(t, snap.Destination)
	require.Nil(t, snap.Result)
}

func TestOpenRejectsOutOfStock(t *testing.T) {
	t.Parallel()

	wf, _ := newWorkflow(t, nil, nil)
	err := wf.Open(domain.Product{ID: "P0", Stock: 0})
	require.ErrorIs(t, err, ErrOutOfStock)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	require.Equal(t, StateClosed, wf.Snapshot().State)
}

func TestQuantityStaysWithinStockBounds(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 11))
	for round := 0; round < 50; round++ {
		stock := rng.IntN(12) + 1
		product := domain.Product{ID: "PX", Name: "x", Price: 1, Stock: stock, WeightKg: 1}

		cat := catalog.New()
		cat.Replace([]domain.Product{product})
		wf, err := New(Deps{Quoter: &stubQuoter{}, Updater: &stubUpdater{}, Catalog: cat})
		require.NoError(t, err)
		require.NoError(t, wf.Open(product))

		expected := 1
		for press := 0; press < 40; press++ {
			delta := 1
			if rng.IntN(2) == 0 {
				delta = -1
			}
			require.NoError(t, wf.SetQuantity(delta))
			expected = clamp(expected+delta, 1, stock)

			q := wf.Snapshot().Quantity
			require.Equal(t, expected, q)
			require.GreaterOrEqual(t, q, 1)
			require.LessOrEqual(t, q, stock)
		}
	}
}

func TestSetQuantityUsesCurrentStock(t *testing.T) {
	t.Parallel()

	wf, cat := newWorkflow(t, nil, nil)
	require.NoError(t, wf.Open(p1))
	cat.Replace([]domain.Product{p1.WithStock(2)})

	for i := 0; i < 5; i++ {
		require.NoError(t, wf.SetQuantity(+1))
	}
	require.Equal(t, 2, wf.Snapshot().Quantity)
}

func TestSetDestinationRequiresLoadedDestination(t *testing.T) {
	t.Parallel()

	wf, _ := newWorkflow(t, nil, nil)
	require.ErrorIs(t, wf.SetDestination("Jakarta"), ErrNoSession)

	require.NoError(t, wf.Open(p1))
	err := wf.SetDestination("Atlantis")
	require.ErrorIs(t, err, ErrUnknownDestination)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	require.ErrorIs(t, wf.SetDestination(" "), ErrDestinationRequired)
	require.NoError(t, wf.SetDestination(" Bandung "))
	require.Equal(t, "Bandung", wf.Snapshot().Destination)
}

func TestSetDestinationUsesLoadedSpelling(t *testing.T) {
	t.Parallel()

	var sent string
	quoter := &stubQuoter{quoteFn: func(_ context.Context, destination string, _ float64) (domain.ShippingQuote, error) {
		sent = destination
		return domain.ShippingQuote{TotalCost: 15000, ETA: "2 hari"}, nil
	}}
	wf, _ := newWorkflow(t, quoter, nil)
	require.NoError(t, wf.Open(p1))
	require.NoError(t, wf.SetDestination("  JAKARTA "))
	require.Equal(t, "Jakarta", wf.Snapshot().Destination)

	result, err := wf.Calculate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Jakarta", sent)
	require.Equal(t, "Jakarta", result.Destination)
}

func TestCalculateDerivesTotals(t *testing.T) {
	t.Parallel()

	var gotDestination string
	var gotWeight float64
	quoter := &stubQuoter{quoteFn: func(_ context.Context, destination string, weightKg float64) (domain.ShippingQuote, error) {
		gotDestination, gotWeight = destination, weightKg
		return domain.ShippingQuote{TotalCost: 15000, ETA: "2 hari"}, nil
	}}
	wf, _ := newWorkflow(t, quoter, nil)

	require.NoError(t, wf.Open(p1))
	require.NoError(t, wf.SetQuantity(+1))
	require.NoError(t, wf.SetQuantity(+1))
	require.NoError(t, wf.SetDestination("Jakarta"))

	result, err := wf.Calculate(context.Background())
	require.NoError(t, err)

	require.Equal(t, "Jakarta", gotDestination)
	require.Equal(t, 3.6, gotWeight)
	require.Equal(t, "Jakarta", result.Destination)
	require.Equal(t, 3, result.Quantity)
	require.True(t, result.TotalWeight.Equal(decimal.RequireFromString("3.6")), result.TotalWeight.String())
	require.True(t, result.ProductTotal.Equal(decimal.NewFromInt(150000)))
	require.True(t, result.ShippingCost.Equal(decimal.NewFromInt(15000)))
	require.True(t, result.GrandTotal.Equal(decimal.NewFromInt(165000)))
	require.Equal(t, "2 hari", result.ETA)

	snap := wf.Snapshot()
	require.Equal(t, StateQuoted, snap.State)
	require.NotNil(t, snap.Result)
	require.False(t, snap.Busy)
}

func TestCalculateDefaultsMissingQuoteFields(t *testing.T) {
	t.Parallel()

	wf, _ := newWorkflow(t, quoteOf(0, ""), nil)
	require.NoError(t, wf.Open(p1))
	require.NoError(t, wf.SetDestination("Jakarta"))

	result, err := wf.Calculate(context.Background())
	require.NoError(t, err)
	require.True(t, result.ShippingCost.IsZero())
	require.True(t, result.GrandTotal.Equal(decimal.NewFromInt(50000)))
	require.Equal(t, "-", result.ETA)
}

func TestCalculateIsIdempotentForUnchangedInputs(t *testing.T) {
	t.Parallel()

	wf, _ := newWorkflow(t, quoteOf(15000, "2 hari"), nil)
	require.NoError(t, wf.Open(p1))
	require.NoError(t, wf.SetDestination("Jakarta"))

	first, err := wf.Calculate(context.Background())
	require.NoError(t, err)
	second, err := wf.Calculate(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestCalculateRequiresDestination(t *testing.T) {
	t.Parallel()

	quoter := &stubQuoter{}
	wf, _ := newWorkflow(t, quoter, nil)
	require.NoError(t, wf.Open(p1))

	_, err := wf.Calculate(context.Background())
	require.ErrorIs(t, err, ErrDestinationRequired)
	require.Zero(t, quoter.calls.Load())
	require.Equal(t, StateOpen, wf.Snapshot().State)
}

func TestCalculateFailureRevertsToOpen(t *testing.T) {
	t.Parallel()

	fail := false
	quoter := &stubQuoter{quoteFn: func(context.Context, string, float64) (domain.ShippingQuote, error) {
		if fail {
			return domain.ShippingQuote{}, &domain.NetworkError{Op: "quote", Err: errors.New("dial tcp: refused")}
		}
		return domain.ShippingQuote{TotalCost: 15000, ETA: "2 hari"}, nil
	}}
	wf, _ := newWorkflow(t, quoter, nil)
	require.NoError(t, wf.Open(p1))
	require.NoError(t, wf.SetDestination("Jakarta"))
	_, err := wf.Calculate(context.Background())
	require.NoError(t, err)

	fail = true
	_, err = wf.Calculate(context.Background())
	require.ErrorIs(t, err, domain.ErrNetwork)

	snap := wf.Snapshot()
	require.Equal(t, StateOpen, snap.State)
	require.Nil(t, snap.Result)
	require.False(t, snap.Busy)
	require.Equal(t, "Jakarta", snap.Destination)
}

func TestChangingInputsInvalidatesQuote(t *testing.T) {
	t.Parallel()

	wf, _ := newWorkflow(t, quoteOf(15000, "2 hari"), nil)
	require.NoError(t, wf.Open(p1))
	require.NoError(t, wf.SetDestination("Jakarta"))
	_, err := wf.Calculate(context.Background())
	require.NoError(t, err)

	// no-op at lower bound keeps the quote
	require.NoError(t, wf.SetQuantity(-1))
	require.Equal(t, StateQuoted, wf.Snapshot().State)

	require.NoError(t, wf.SetQuantity(+1))
	require.Equal(t, StateOpen, wf.Snapshot().State)
	require.Nil(t, wf.Snapshot().Result)

	_, err = wf.Calculate(context.Background())
	require.NoError(t, err)
	require.NoError(t, wf.SetDestination("Jakarta"))
	require.Equal(t, StateQuoted, wf.Snapshot().State)
	require.NoError(t, wf.SetDestination("Bandung"))
	require.Equal(t, StateOpen, wf.Snapshot().State)
}

func TestConcurrentCalculateIssuesOneRequest(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	quoter := &stubQuoter{quoteFn: func(context.Context, string, float64) (domain.ShippingQuote, error) {
		close(entered)
		<-release
		return domain.ShippingQuote{TotalCost: 15000, ETA: "2 hari"}, nil
	}}
	wf, _ := newWorkflow(t, quoter, nil)
	require.NoError(t, wf.Open(p1))
	require.NoError(t, wf.SetDestination("Jakarta"))

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = wf.Calculate(context.Background())
	}()

	<-entered
	require.Equal(t, StateQuoting, wf.Snapshot().State)
	require.True(t, wf.Snapshot().Busy)

	_, err := wf.Calculate(context.Background())
	require.ErrorIs(t, err, domain.ErrBusy)
	require.ErrorIs(t, wf.SetQuantity(+1), domain.ErrBusy)

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	require.EqualValues(t, 1, quoter.calls.Load())
	require.Equal(t, StateQuoted, wf.Snapshot().State)
}

func TestCloseDuringQuoteDropsResult(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	quoter := &stubQuoter{quoteFn: func(context.Context, string, float64) (domain.ShippingQuote, error) {
		close(entered)
		<-release
		return domain.ShippingQuote{TotalCost: 15000}, nil
	}}
	wf, _ := newWorkflow(t, quoter, nil)
	require.NoError(t, wf.Open(p1))
	require.NoError(t, wf.SetDestination("Jakarta"))

	errCh := make(chan error, 1)
	go func() {
		_, err := wf.Calculate(context.Background())
		errCh <- err
	}()
	<-entered
	wf.Close()
	close(release)

	require.ErrorIs(t, <-errCh, ErrSessionClosed)
	require.Equal(t, StateClosed, wf.Snapshot().State)
}

func TestCheckoutDecrementsStock(t *testing.T) {
	t.Parallel()

	var sent domain.Product
	updater := &stubUpdater{updateFn: func(_ context.Context, product domain.Product) (domain.Product, error) {
		sent = product
		return product, nil
	}}
	wf, _ := newWorkflow(t, quoteOf(15000, "2 hari"), updater)
	require.NoError(t, wf.Open(p1))
	require.NoError(t, wf.SetQuantity(+1))
	require.NoError(t, wf.SetQuantity(+1))
	require.NoError(t, wf.SetDestination("Jakarta"))
	_, err := wf.Calculate(context.Background())
	require.NoError(t, err)

	var confirmedTotal decimal.Decimal
	receipt, err := wf.Checkout(context.Background(), ConfirmFunc(func(_ context.Context, product domain.Product, result Result) bool {
		require.Equal(t, "P1", product.ID)
		confirmedTotal = result.GrandTotal
		return true
	}))
	require.NoError(t, err)
	require.True(t, receipt.Confirmed)
	require.True(t, confirmedTotal.Equal(decimal.NewFromInt(165000)))
	require.Equal(t, p1.WithStock(2), sent)
	require.Equal(t, 2, receipt.Product.Stock)
	require.Equal(t, 3, receipt.Quantity)
	require.Equal(t, StateClosed, wf.Snapshot().State)
}

func TestCheckoutInsufficientStockMakesNoUpdate(t *testing.T) {
	t.Parallel()

	updater := &stubUpdater{}
	wf, cat := newWorkflow(t, quoteOf(15000, "2 hari"), updater)
	require.NoError(t, wf.Open(p1))
	for i := 0; i < 3; i++ {
		require.NoError(t, wf.SetQuantity(+1))
	}
	require.NoError(t, wf.SetDestination("Jakarta"))
	_, err := wf.Calculate(context.Background())
	require.NoError(t, err)

	cat.Replace([]domain.Product{p1.WithStock(2)})
	confirmCalls := 0
	_, err = wf.Checkout(context.Background(), ConfirmFunc(func(context.Context, domain.Product, Result) bool {
		confirmCalls++
		return true
	}))

	var insufficient *domain.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	require.Equal(t, 4, insufficient.Requested)
	require.Equal(t, 2, insufficient.Available)
	require.Zero(t, updater.calls.Load())
	require.Zero(t, confirmCalls)
	require.Equal(t, StateQuoted, wf.Snapshot().State)
}

func TestCheckoutDeclinedStaysQuoted(t *testing.T) {
	t.Parallel()

	updater := &stubUpdater{}
	wf, _ := newWorkflow(t, quoteOf(15000, "2 hari"), updater)
	require.NoError(t, wf.Open(p1))
	require.NoError(t, wf.SetDestination("Jakarta"))
	_, err := wf.Calculate(context.Background())
	require.NoError(t, err)

	receipt, err := wf.Checkout(context.Background(), always(false))
	require.NoError(t, err)
	require.False(t, receipt.Confirmed)
	require.Zero(t, updater.calls.Load())

	snap := wf.Snapshot()
	require.Equal(t, StateQuoted, snap.State)
	require.False(t, snap.Busy)
}

func TestCheckoutFailureStaysQuoted(t *testing.T) {
	t.Parallel()

	updater := &stubUpdater{updateFn: func(context.Context, domain.Product) (domain.Product, error) {
		return domain.Product{}, &domain.RemoteError{Op: "update", Status: 500}
	}}
	wf, cat := newWorkflow(t, quoteOf(15000, "2 hari"), updater)
	require.NoError(t, wf.Open(p1))
	require.NoError(t, wf.SetDestination("Jakarta"))
	_, err := wf.Calculate(context.Background())
	require.NoError(t, err)

	_, err = wf.Checkout(context.Background(), always(true))
	require.ErrorIs(t, err, domain.ErrRemote)
	require.Equal(t, StateQuoted, wf.Snapshot().State)

	current, ok := cat.FindByID("P1")
	require.True(t, ok)
	require.Equal(t, p1.Stock, current.Stock)
}

func TestCheckoutRequiresQuote(t *testing.T) {
	t.Parallel()

	wf, _ := newWorkflow(t, nil, nil)
	_, err := wf.Checkout(context.Background(), always(true))
	require.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, wf.Open(p1))
	_, err = wf.Checkout(context.Background(), always(true))
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	require.NotErrorIs(t, err, ErrNoSession)
}

func TestCheckoutMissingProductMakesNoUpdate(t *testing.T) {
	t.Parallel()

	updater := &stubUpdater{}
	wf, cat := newWorkflow(t, quoteOf(15000, "2 hari"), updater)
	require.NoError(t, wf.Open(p1))
	require.NoError(t, wf.SetDestination("Jakarta"))
	_, err := wf.Calculate(context.Background())
	require.NoError(t, err)

	cat.Replace(nil)
	_, err = wf.Checkout(context.Background(), always(true))
	require.ErrorIs(t, err, ErrProductMissing)
	require.Zero(t, updater.calls.Load())
	require.Equal(t, StateQuoted, wf.Snapshot().State)
}

func TestSyncClampsAndInvalidates(t *testing.T) {
	t.Parallel()

	wf, cat := newWorkflow(t, quoteOf(15000, "2 hari"), nil)
	require.NoError(t, wf.Open(p1))
	for i := 0; i < 4; i++ {
		require.NoError(t, wf.SetQuantity(+1))
	}
	require.NoError(t, wf.SetDestination("Jakarta"))
	_, err := wf.Calculate(context.Background())
	require.NoError(t, err)

	cat.Replace([]domain.Product{p1.WithStock(3)})
	wf.Sync()
	snap := wf.Snapshot()
	require.Equal(t, StateOpen, snap.State)
	require.Equal(t, 3, snap.Quantity)
	require.Equal(t, 3, snap.Product.Stock)

	cat.Replace([]domain.Product{p1.WithStock(0)})
	wf.Sync()
	require.Equal(t, StateClosed, wf.Snapshot().State)
}

func TestSyncKeepsQuoteWhenNothingChanged(t *testing.T) {
	t.Parallel()

	wf, _ := newWorkflow(t, quoteOf(15000, "2 hari"), nil)
	require.NoError(t, wf.Open(p1))
	require.NoError(t, wf.SetDestination("Jakarta"))
	_, err := wf.Calculate(context.Background())
	require.NoError(t, err)

	wf.Sync()
	require.Equal(t, StateQuoted, wf.Snapshot().State)
}

package app

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookexchange/pkg/domain"
	"bookexchange/pkg/store"
)

const racers = 20

// race runs fn from racers goroutines released together and returns their errors.
func race(fn func() error) []error {
	var (
		start sync.WaitGroup
		done  sync.WaitGroup
		mu    sync.Mutex
		errs  []error
	)
	start.Add(1)
	for i := 0; i < racers; i++ {
		done.Add(1)
		go func() {
			defer done.Done()
			start.Wait()
			err := fn()
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	start.Done()
	done.Wait()
	return errs
}

func countDecisions(t *testing.T, errs []error) int {
	t.Helper()
	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyDecided)
	}
	return wins
}

func TestConcurrentAcceptSwapWritesOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice, _ := env.signUp(t, "alice")
	bob, _ := env.signUp(t, "bob")
	wanted := env.addBook(t, alice, "Dune", "100", "swap")
	offered := env.addBook(t, bob, "Emma", "40", "swap")
	swap, err := env.app.RequestSwap(ctx, bob, SwapInput{
		RequestedBookID: wanted.ID,
		OfferedBookID:   offered.ID,
		Mobile:          "9876543210",
	})
	require.NoError(t, err)

	errs := race(func() error {
		_, err := env.app.AcceptSwap(ctx, alice, swap.ID)
		return err
	})

	assert.Equal(t, 1, countDecisions(t, errs))
	assert.Len(t, env.transactions(t), 1)
	sales, err := env.store.ListSales(ctx, store.SaleFilter{SwapRequestID: swap.ID})
	require.NoError(t, err)
	assert.Len(t, sales, 1)
	stored, ok, err := env.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.SwapAccepted, stored.Status)
}

func TestConcurrentVerifyPaymentWritesOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	seller, _ := env.signUp(t, "seller")
	buyer, _ := env.signUp(t, "buyer")
	book := env.addBook(t, seller, "Dune", "250", "sell")
	payment, err := env.app.BuyBook(ctx, buyer, book.ID, PurchaseInput{Method: "GPay", TransactionRef: "UTR-9"}, nil)
	require.NoError(t, err)

	errs := race(func() error {
		_, err := env.app.VerifyPayment(ctx, seller, payment.ID, "9999999999")
		return err
	})

	assert.Equal(t, 1, countDecisions(t, errs))
	txns := env.transactions(t)
	require.Len(t, txns, 1)
	assert.True(t, txns[0].Amount.Equal(decimal.NewFromInt(250)), "amount = %s", txns[0].Amount)
	stored, ok, err := env.store.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.PaymentVerified, stored.Status)
}

func TestConcurrentMixedSwapDecisions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice, _ := env.signUp(t, "alice")
	bob, _ := env.signUp(t, "bob")
	wanted := env.addBook(t, alice, "Dune", "100", "swap")
	swap, err := env.app.RequestSwap(ctx, bob, SwapInput{RequestedBookID: wanted.ID, Mobile: "9876543210"})
	require.NoError(t, err)

	var (
		mu       sync.Mutex
		calls    int
		accepted int
		rejected int
	)
	errs := race(func() error {
		mu.Lock()
		calls++
		accept := calls%2 == 0
		mu.Unlock()
		if accept {
			_, err := env.app.AcceptSwap(ctx, alice, swap.ID)
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
			return err
		}
		_, err := env.app.RejectSwap(ctx, alice, swap.ID)
		if err == nil {
			mu.Lock()
			rejected++
			mu.Unlock()
		}
		return err
	})

	assert.Equal(t, 1, countDecisions(t, errs))
	assert.Equal(t, 1, accepted+rejected)
	stored, ok, err := env.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)
	require.True(t, ok)
	if accepted == 1 {
		assert.Equal(t, domain.SwapAccepted, stored.Status)
		assert.Len(t, env.transactions(t), 1)
	} else {
		assert.Equal(t, domain.SwapRejected, stored.Status)
		assert.Empty(t, env.transactions(t))
	}
}

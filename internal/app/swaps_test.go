package app

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookexchange/pkg/domain"
	"bookexchange/pkg/events"
	"bookexchange/pkg/store"
)

func TestSwapScenarioAcceptWritesTransactionAndSale(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice, _ := env.signUp(t, "alice")
	bob, _ := env.signUp(t, "bob")
	wanted := env.addBook(t, alice, "Dune", "100", "swap")
	offered := env.addBook(t, bob, "Emma", "40", "swap")

	swap, err := env.app.RequestSwap(ctx, bob, SwapInput{
		RequestedBookID: wanted.ID,
		OfferedBookID:   offered.ID,
		Message:         "trade?",
		Mobile:          "9876543210",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SwapPending, swap.Status)
	assert.Equal(t, alice.ID, swap.OwnerID)

	out, err := env.app.AcceptSwap(ctx, alice, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SwapAccepted, out.Swap.Status)

	txns := env.transactions(t)
	require.Len(t, txns, 1)
	txn := txns[0]
	assert.Equal(t, bob.ID, txn.BuyerID)
	assert.Equal(t, alice.ID, txn.SellerID)
	assert.Equal(t, wanted.ID, txn.BookID)
	assert.True(t, txn.Amount.Equal(decimal.NewFromInt(100)), "amount = %s", txn.Amount)
	assert.Equal(t, domain.TransactionSuccess, txn.Status)
	assert.Equal(t, "9876543210", txn.Mobile)

	sales, err := env.store.ListSales(ctx, store.SaleFilter{SwapRequestID: swap.ID})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, txn.ID, sales[0].TransactionID)
	assert.Equal(t, bob.ID, sales[0].BuyerID)
	assert.Equal(t, alice.ID, sales[0].SellerID)

	offeredAfter, err := env.app.GetBook(ctx, offered.ID)
	require.NoError(t, err)
	assert.True(t, offeredAfter.Sold, "offered book should be sold")

	stored, ok, err := env.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.SwapAccepted, stored.Status)

	assert.Contains(t, env.events.types(), events.SwapAccepted)
}

func TestSwapDecisionIsFinal(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice, _ := env.signUp(t, "alice")
	bob, _ := env.signUp(t, "bob")
	wanted := env.addBook(t, alice, "Dune", "100", "swap")

	swap, err := env.app.RequestSwap(ctx, bob, SwapInput{RequestedBookID: wanted.ID, Mobile: "9876543210"})
	require.NoError(t, err)

	_, err = env.app.AcceptSwap(ctx, alice, swap.ID)
	require.NoError(t, err)

	_, err = env.app.AcceptSwap(ctx, alice, swap.ID)
	require.ErrorIs(t, err, ErrAlreadyDecided)
	_, err = env.app.RejectSwap(ctx, alice, swap.ID)
	require.ErrorIs(t, err, ErrAlreadyDecided)

	assert.Len(t, env.transactions(t), 1, "a repeated decision must not add transactions")
	stored, _, err := env.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SwapAccepted, stored.Status)
}

func TestRejectSwapHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice, _ := env.signUp(t, "alice")
	bob, _ := env.signUp(t, "bob")
	wanted := env.addBook(t, alice, "Dune", "100", "swap")
	offered := env.addBook(t, bob, "Emma", "40", "swap")

	swap, err := env.app.RequestSwap(ctx, bob, SwapInput{RequestedBookID: wanted.ID, OfferedBookID: offered.ID, Mobile: "9876543210"})
	require.NoError(t, err)

	rejected, err := env.app.RejectSwap(ctx, alice, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SwapRejected, rejected.Status)

	_, err = env.app.AcceptSwap(ctx, alice, swap.ID)
	require.ErrorIs(t, err, ErrAlreadyDecided)

	assert.Empty(t, env.transactions(t))
	offeredAfter, err := env.app.GetBook(ctx, offered.ID)
	require.NoError(t, err)
	assert.False(t, offeredAfter.Sold)
}

func TestRequestSwapRejectsInvalidMobile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice, _ := env.signUp(t, "alice")
	bob, _ := env.signUp(t, "bob")
	wanted := env.addBook(t, alice, "Dune", "100", "swap")

	for _, mobile := range []string{"123", "", "98765abc10", "1234567890123456", "+919876543210"} {
		_, err := env.app.RequestSwap(ctx, bob, SwapInput{RequestedBookID: wanted.ID, Mobile: mobile})
		require.ErrorIs(t, err, ErrValidation, "mobile %q", mobile)
	}

	swaps, err := env.app.ListSwapsSent(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, swaps, "invalid mobile must not persist a swap request")
}

func TestRequestSwapChecksBooks(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice, _ := env.signUp(t, "alice")
	bob, _ := env.signUp(t, "bob")
	wanted := env.addBook(t, alice, "Dune", "100", "swap")
	alicesOther := env.addBook(t, alice, "Emma", "40", "swap")

	_, err := env.app.RequestSwap(ctx, bob, SwapInput{RequestedBookID: "missing", Mobile: "9876543210"})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = env.app.RequestSwap(ctx, bob, SwapInput{RequestedBookID: wanted.ID, OfferedBookID: alicesOther.ID, Mobile: "9876543210"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestSwapDecisionsRequireOwner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice, _ := env.signUp(t, "alice")
	bob, _ := env.signUp(t, "bob")
	wanted := env.addBook(t, alice, "Dune", "100", "swap")

	swap, err := env.app.RequestSwap(ctx, bob, SwapInput{RequestedBookID: wanted.ID, Mobile: "9876543210"})
	require.NoError(t, err)

	_, err = env.app.AcceptSwap(ctx, bob, swap.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = env.app.RejectSwap(ctx, bob, swap.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = env.app.AcceptSwap(ctx, alice, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSwapListings(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice, _ := env.signUp(t, "alice")
	bob, _ := env.signUp(t, "bob")
	swapOnly := env.addBook(t, alice, "Dune", "0", "swap")
	both := env.addBook(t, alice, "Emma", "10", "both")
	env.addBook(t, alice, "Ulysses", "10", "sell")
	env.addBook(t, bob, "Own", "0", "swap")

	books, err := env.app.ListSwappableBooks(ctx, bob)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, both.ID, books[0].ID)
	assert.Equal(t, swapOnly.ID, books[1].ID)

	first, err := env.app.RequestSwap(ctx, bob, SwapInput{RequestedBookID: swapOnly.ID, Mobile: "9876543210"})
	require.NoError(t, err)
	second, err := env.app.RequestSwap(ctx, bob, SwapInput{RequestedBookID: both.ID, Mobile: "9876543210"})
	require.NoError(t, err)

	sent, err := env.app.ListSwapsSent(ctx, bob)
	require.NoError(t, err)
	require.Len(t, sent, 2)
	assert.Equal(t, second.ID, sent[0].ID)
	assert.Equal(t, first.ID, sent[1].ID)

	received, err := env.app.ListSwapsReceived(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, received, 2)
	none, err := env.app.ListSwapsReceived(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, none)
}

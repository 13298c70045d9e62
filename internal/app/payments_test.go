package app

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookexchange/pkg/domain"
	"bookexchange/pkg/events"
)

func TestPaymentVerifyScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	seller, _ := env.signUp(t, "seller")
	buyer, _ := env.signUp(t, "buyer")
	book := env.addBook(t, seller, "Dune", "250", "sell")
	_, err := env.app.UpdateProfile(ctx, buyer, ProfileInput{Mobile: "9123456780"})
	require.NoError(t, err)

	payment, err := env.app.BuyBook(ctx, buyer, book.ID, PurchaseInput{Method: "PhonePe", TransactionRef: "UPI-1"}, pngUpload("proof.png", "img"))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, payment.Status)
	assert.Equal(t, domain.MethodPhonePe, payment.Method)
	assert.Equal(t, "9123456780", payment.Mobile)
	assert.NotEmpty(t, payment.ScreenshotKey)
	require.True(t, payment.Amount.Valid)
	assert.True(t, payment.Amount.Decimal.Equal(decimal.NewFromInt(250)))

	pending, err := env.app.PendingPayments(ctx, seller)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	out, err := env.app.VerifyPayment(ctx, seller, payment.ID, " 9999999999 ")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentVerified, out.Payment.Status)
	assert.Equal(t, "9999999999", out.Payment.Mobile)

	txns := env.transactions(t)
	require.Len(t, txns, 1)
	assert.True(t, txns[0].Amount.Equal(decimal.NewFromInt(250)), "amount = %s", txns[0].Amount)
	assert.Equal(t, buyer.ID, txns[0].BuyerID)
	assert.Equal(t, seller.ID, txns[0].SellerID)
	assert.Equal(t, "9999999999", txns[0].Mobile)
	assert.Equal(t, domain.TransactionSuccess, txns[0].Status)

	bookAfter, err := env.app.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.True(t, bookAfter.Sold)

	stored, ok, err := env.store.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.PaymentVerified, stored.Status)
	assert.Equal(t, "9999999999", stored.Mobile)

	purchases, err := env.app.Purchases(ctx, buyer)
	require.NoError(t, err)
	assert.Len(t, purchases, 1)
	sales, err := env.app.Sales(ctx, seller)
	require.NoError(t, err)
	assert.Len(t, sales, 1)
	pending, err = env.app.PendingPayments(ctx, seller)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = env.app.VerifyPayment(ctx, seller, payment.ID, "9999999999")
	require.ErrorIs(t, err, ErrAlreadyDecided)
	_, err = env.app.RejectPayment(ctx, seller, payment.ID)
	require.ErrorIs(t, err, ErrAlreadyDecided)
	assert.Len(t, env.transactions(t), 1)

	assert.Contains(t, env.events.types(), events.PaymentVerified)
}

func TestVerifyPaymentRequiresMobile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	seller, _ := env.signUp(t, "seller")
	buyer, _ := env.signUp(t, "buyer")
	book := env.addBook(t, seller, "Dune", "250", "sell")
	payment, err := env.app.BuyBook(ctx, buyer, book.ID, PurchaseInput{}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodGPay, payment.Method)

	_, err = env.app.VerifyPayment(ctx, seller, payment.ID, "   ")
	require.ErrorIs(t, err, ErrValidation)

	stored, _, err := env.store.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, stored.Status)
	assert.Empty(t, env.transactions(t))
}

func TestCheckoutSnapshotsSellerAndVerifyFillsAmount(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	seller, _ := env.signUp(t, "seller")
	buyer, _ := env.signUp(t, "buyer")
	book := env.addBook(t, seller, "Dune", "99.50", "sell")
	_, err := env.app.UpdateProfile(ctx, seller, ProfileInput{UPIID: "seller@upi"})
	require.NoError(t, err)
	_, err = env.app.SetPaymentQR(ctx, seller, *pngUpload("qr.png", "qr"))
	require.NoError(t, err)

	payment, err := env.app.Checkout(ctx, buyer, book.ID, "REF-9", nil)
	require.NoError(t, err)
	assert.False(t, payment.Amount.Valid, "checkout leaves amount unset")
	assert.Equal(t, "seller@upi", payment.SellerUPIID)
	assert.NotEmpty(t, payment.SellerQRKey)

	// Later profile edits do not change the snapshot.
	_, err = env.app.UpdateProfile(ctx, seller, ProfileInput{UPIID: "changed@upi"})
	require.NoError(t, err)
	stored, _, err := env.store.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "seller@upi", stored.SellerUPIID)

	out, err := env.app.VerifyPayment(ctx, seller, payment.ID, "9999999999")
	require.NoError(t, err)
	require.True(t, out.Payment.Amount.Valid)
	assert.Equal(t, "99.50", out.Payment.Amount.Decimal.StringFixed(2))
	assert.Equal(t, "99.50", out.Transaction.Amount.StringFixed(2))
}

func TestRejectPayment(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	seller, _ := env.signUp(t, "seller")
	buyer, _ := env.signUp(t, "buyer")
	book := env.addBook(t, seller, "Dune", "250", "sell")
	payment, err := env.app.BuyBook(ctx, buyer, book.ID, PurchaseInput{}, nil)
	require.NoError(t, err)

	_, err = env.app.RejectPayment(ctx, buyer, payment.ID)
	require.ErrorIs(t, err, ErrNotFound, "only the seller decides")

	rejected, err := env.app.RejectPayment(ctx, seller, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRejected, rejected.Status)

	_, err = env.app.VerifyPayment(ctx, seller, payment.ID, "9999999999")
	require.ErrorIs(t, err, ErrAlreadyDecided)
	assert.Empty(t, env.transactions(t))
	bookAfter, err := env.app.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.False(t, bookAfter.Sold)
}

func TestBuyBookRules(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	seller, _ := env.signUp(t, "seller")
	buyer, _ := env.signUp(t, "buyer")
	book := env.addBook(t, seller, "Dune", "250", "sell")

	_, err := env.app.BuyBook(ctx, seller, book.ID, PurchaseInput{}, nil)
	require.ErrorIs(t, err, ErrOwnBook)
	_, err = env.app.Checkout(ctx, seller, book.ID, "", nil)
	require.ErrorIs(t, err, ErrOwnBook)

	_, err = env.app.BuyBook(ctx, buyer, "missing", PurchaseInput{}, nil)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = env.app.BuyBook(ctx, buyer, book.ID, PurchaseInput{Method: "Cash"}, nil)
	require.ErrorIs(t, err, ErrValidation)

	_, err = env.app.BuyBook(ctx, buyer, book.ID, PurchaseInput{}, pngUpload("proof.exe", "x"))
	require.ErrorIs(t, err, ErrValidation)

	require.NoError(t, env.store.MarkBookSold(ctx, book.ID))
	_, err = env.app.BuyBook(ctx, buyer, book.ID, PurchaseInput{}, nil)
	require.ErrorIs(t, err, ErrBookSold)
}

func TestVerifyPaymentAfterBookDeleted(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	seller, _ := env.signUp(t, "seller")
	buyer, _ := env.signUp(t, "buyer")
	book := env.addBook(t, seller, "Dune", "250", "sell")
	payment, err := env.app.Checkout(ctx, buyer, book.ID, "", nil)
	require.NoError(t, err)
	require.NoError(t, env.app.DeleteBook(ctx, seller, book.ID))

	out, err := env.app.VerifyPayment(ctx, seller, payment.ID, "9999999999")
	require.NoError(t, err)
	assert.Empty(t, out.Payment.BookID)
	assert.True(t, out.Transaction.Amount.IsZero())
}

func TestPaymentSuccess(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, PaymentSuccessMessage, env.app.PaymentSuccess())
}

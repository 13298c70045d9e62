package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"bookexchange/internal/util"
	"bookexchange/pkg/domain"
	"bookexchange/pkg/events"
	"bookexchange/pkg/store"
)

const maxTransactionRefLen = 100

// PaymentSuccessMessage is the confirmation shown after submitting a payment.
const PaymentSuccessMessage = "Payment submitted. Awaiting seller verification."

// PurchaseInput is the buyer's proof of an out-of-band payment.
type PurchaseInput struct {
	Method         string
	TransactionRef string
}

// VerifyOutcome is what verifying a payment wrote.
type VerifyOutcome struct {
	Payment     domain.Payment
	Transaction domain.Transaction
}

// purchasableBook loads a book the buyer may pay for.
func (a *App) purchasableBook(ctx context.Context, buyer domain.User, bookID string) (domain.Book, error) {
	book, err := a.GetBook(ctx, bookID)
	if err != nil {
		return domain.Book{}, err
	}
	if book.OwnerID == buyer.ID {
		return domain.Book{}, ErrOwnBook
	}
	if book.Sold {
		return domain.Book{}, ErrBookSold
	}
	return book, nil
}

func parsePurchase(in PurchaseInput) (domain.PaymentMethod, string, error) {
	method := domain.MethodGPay
	if m := strings.TrimSpace(in.Method); m != "" {
		method = domain.PaymentMethod(m)
		if !method.Valid() {
			return "", "", invalid("method", fmt.Sprintf("unknown payment method %q", m))
		}
	}
	ref := strings.TrimSpace(in.TransactionRef)
	if len(ref) > maxTransactionRefLen {
		return "", "", invalid("transactionRef", "transaction reference is too long")
	}
	return method, ref, nil
}

// BuyBook submits a Pending payment at the book's price, using the buyer's
// profile mobile as the contact number.
func (a *App) BuyBook(ctx context.Context, buyer domain.User, bookID string, in PurchaseInput, screenshot *Upload) (domain.Payment, error) {
	method, ref, err := parsePurchase(in)
	if err != nil {
		return domain.Payment{}, err
	}
	book, err := a.purchasableBook(ctx, buyer, bookID)
	if err != nil {
		return domain.Payment{}, err
	}
	profile, err := a.EnsureProfile(ctx, buyer.ID)
	if err != nil {
		return domain.Payment{}, err
	}
	payment := domain.Payment{
		ID:             util.NewID(),
		BuyerID:        buyer.ID,
		SellerID:       book.OwnerID,
		BookID:         book.ID,
		Amount:         decimal.NewNullDecimal(book.Price),
		Mobile:         profile.Mobile,
		Method:         method,
		TransactionRef: ref,
		Status:         domain.PaymentPending,
	}
	return a.submitPayment(ctx, payment, screenshot)
}

// Checkout submits a Pending payment with no amount, snapshotting the
// seller's UPI id and QR code as they were at checkout time.
func (a *App) Checkout(ctx context.Context, buyer domain.User, bookID, transactionRef string, screenshot *Upload) (domain.Payment, error) {
	_, ref, err := parsePurchase(PurchaseInput{TransactionRef: transactionRef})
	if err != nil {
		return domain.Payment{}, err
	}
	book, err := a.purchasableBook(ctx, buyer, bookID)
	if err != nil {
		return domain.Payment{}, err
	}
	seller, err := a.EnsureProfile(ctx, book.OwnerID)
	if err != nil {
		return domain.Payment{}, err
	}
	payment := domain.Payment{
		ID:             util.NewID(),
		BuyerID:        buyer.ID,
		SellerID:       book.OwnerID,
		BookID:         book.ID,
		Method:         domain.MethodGPay,
		TransactionRef: ref,
		SellerUPIID:    seller.UPIID,
		SellerQRKey:    seller.QRKey,
		Status:         domain.PaymentPending,
	}
	return a.submitPayment(ctx, payment, screenshot)
}

func (a *App) submitPayment(ctx context.Context, payment domain.Payment, screenshot *Upload) (domain.Payment, error) {
	key, err := a.saveUpload(ctx, kindScreenshot, "screenshot", screenshot)
	if err != nil {
		return domain.Payment{}, err
	}
	payment.ScreenshotKey = key
	payment.CreatedAt = a.now()
	if err := a.store.CreatePayment(ctx, payment); err != nil {
		a.deleteBlobs(ctx, key)
		return domain.Payment{}, fmt.Errorf("save payment: %w", err)
	}
	a.publish(ctx, events.New(events.PaymentSubmitted, payment.ID, payment.BuyerID, map[string]string{
		"seller_id": payment.SellerID,
		"book_id":   payment.BookID,
	}))
	return payment, nil
}

// receivedPayment loads a payment owed to seller.
func (a *App) receivedPayment(ctx context.Context, seller domain.User, id string) (domain.Payment, error) {
	payment, ok, err := a.store.GetPayment(ctx, id)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("fetch payment: %w", err)
	}
	if !ok || payment.SellerID != seller.ID {
		return domain.Payment{}, ErrNotFound
	}
	return payment, nil
}

// VerifyPayment confirms a Pending payment. In one database transaction it
// records the seller's contact mobile, fills a missing amount from the book
// price, marks the book sold and writes a success Transaction.
func (a *App) VerifyPayment(ctx context.Context, seller domain.User, paymentID, mobile string) (VerifyOutcome, error) {
	mobile = strings.TrimSpace(mobile)
	if mobile == "" {
		return VerifyOutcome{}, invalid("mobile", "please enter your mobile number before verifying")
	}
	if len(mobile) > maxMobileLen {
		return VerifyOutcome{}, invalid("mobile", "mobile number is too long")
	}
	payment, err := a.receivedPayment(ctx, seller, paymentID)
	if err != nil {
		return VerifyOutcome{}, err
	}
	var out VerifyOutcome
	err = a.store.WithTx(ctx, func(tx store.Store) error {
		payment.Status = domain.PaymentVerified
		payment.Mobile = mobile
		var book domain.Book
		hasBook := false
		if payment.BookID != "" {
			b, ok, err := tx.GetBook(ctx, payment.BookID)
			if err != nil {
				return fmt.Errorf("fetch book: %w", err)
			}
			book, hasBook = b, ok
		}
		if hasBook && !payment.Amount.Valid {
			payment.Amount = decimal.NewNullDecimal(book.Price)
		}
		if err := tx.TransitionPayment(ctx, payment, domain.PaymentPending); err != nil {
			return err
		}
		if hasBook {
			if err := tx.MarkBookSold(ctx, book.ID); err != nil {
				return fmt.Errorf("mark book sold: %w", err)
			}
		}
		amount := decimal.Zero
		if payment.Amount.Valid {
			amount = payment.Amount.Decimal
		}
		txn := domain.Transaction{
			ID:        util.NewID(),
			BuyerID:   payment.BuyerID,
			SellerID:  seller.ID,
			BookID:    payment.BookID,
			Amount:    amount,
			Status:    domain.TransactionSuccess,
			Mobile:    payment.Mobile,
			CreatedAt: a.now(),
		}
		if err := tx.CreateTransaction(ctx, txn); err != nil {
			return fmt.Errorf("save transaction: %w", err)
		}
		out = VerifyOutcome{Payment: payment, Transaction: txn}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrStaleStatus) {
			return VerifyOutcome{}, ErrAlreadyDecided
		}
		return VerifyOutcome{}, fmt.Errorf("verify payment: %w", err)
	}
	a.publish(ctx, events.New(events.PaymentVerified, payment.ID, seller.ID, map[string]string{
		"transaction_id": out.Transaction.ID,
		"amount":         out.Transaction.Amount.StringFixed(2),
	}))
	return out, nil
}

// RejectPayment moves a Pending payment to Rejected. Nothing else changes.
func (a *App) RejectPayment(ctx context.Context, seller domain.User, paymentID string) (domain.Payment, error) {
	payment, err := a.receivedPayment(ctx, seller, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	payment.Status = domain.PaymentRejected
	if err := a.store.TransitionPayment(ctx, payment, domain.PaymentPending); err != nil {
		if errors.Is(err, store.ErrStaleStatus) {
			return domain.Payment{}, ErrAlreadyDecided
		}
		return domain.Payment{}, fmt.Errorf("reject payment: %w", err)
	}
	a.publish(ctx, events.New(events.PaymentRejected, payment.ID, seller.ID, nil))
	return payment, nil
}

// PendingPayments is the seller's verification queue.
func (a *App) PendingPayments(ctx context.Context, seller domain.User) ([]domain.Payment, error) {
	return a.store.ListPayments(ctx, store.PaymentFilter{SellerID: seller.ID, Status: domain.PaymentPending})
}

// Purchases returns the buyer's verified payments.
func (a *App) Purchases(ctx context.Context, buyer domain.User) ([]domain.Payment, error) {
	return a.store.ListPayments(ctx, store.PaymentFilter{BuyerID: buyer.ID, Status: domain.PaymentVerified})
}

// Sales returns the seller's verified payments.
func (a *App) Sales(ctx context.Context, seller domain.User) ([]domain.Payment, error) {
	return a.store.ListPayments(ctx, store.PaymentFilter{SellerID: seller.ID, Status: domain.PaymentVerified})
}

// PaymentSuccess returns the post-submission confirmation.
func (a *App) PaymentSuccess() string {
	return PaymentSuccessMessage
}

package store

import (
	"context"
	"errors"
	"time"

	"bookexchange/pkg/domain"
)

var (
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("store: conflict")
	// ErrNotFound is returned by writes that target a missing row.
	ErrNotFound = errors.New("store: not found")
	// ErrStaleStatus is returned when a status check-and-set finds the row
	// no longer in the expected source state.
	ErrStaleStatus = errors.New("store: stale status")
)

// BookFilter narrows ListBooks. Zero values match everything.
type BookFilter struct {
	OwnerID        string
	ExcludeOwnerID string
	Availability   []domain.Availability
	// Query matches title or author, case-insensitively.
	Query string
	Limit int
}

type SwapFilter struct {
	RequesterID string
	OwnerID     string
}

type PaymentFilter struct {
	BuyerID  string
	SellerID string
	Status   domain.PaymentStatus
}

type TransactionFilter struct {
	BuyerID  string
	SellerID string
}

type SaleFilter struct {
	BuyerID       string
	SellerID      string
	SwapRequestID string
}

// Store defines persistence operations for the exchange.
type Store interface {
	// users
	CreateUser(ctx context.Context, user domain.User) error
	UpdateUser(ctx context.Context, user domain.User) error
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, bool, error)
	UserCount(ctx context.Context) (int64, error)
	DeleteUser(ctx context.Context, id string) error

	// profiles
	EnsureProfile(ctx context.Context, userID string) (domain.Profile, error)
	GetProfile(ctx context.Context, userID string) (domain.Profile, bool, error)
	SaveProfile(ctx context.Context, profile domain.Profile) error

	// books
	SaveBook(ctx context.Context, book domain.Book) error
	GetBook(ctx context.Context, id string) (domain.Book, bool, error)
	ListBooks(ctx context.Context, filter BookFilter) ([]domain.Book, error)
	MarkBookSold(ctx context.Context, id string) error
	DeleteBook(ctx context.Context, id string) error

	// swaps
	CreateSwap(ctx context.Context, swap domain.SwapRequest) error
	GetSwap(ctx context.Context, id string) (domain.SwapRequest, bool, error)
	ListSwaps(ctx context.Context, filter SwapFilter) ([]domain.SwapRequest, error)
	TransitionSwap(ctx context.Context, id string, from, to domain.SwapStatus) error

	// payments
	CreatePayment(ctx context.Context, payment domain.Payment) error
	GetPayment(ctx context.Context, id string) (domain.Payment, bool, error)
	ListPayments(ctx context.Context, filter PaymentFilter) ([]domain.Payment, error)
	// TransitionPayment writes payment's status, amount and mobile only if the
	// stored row is still in state from.
	TransitionPayment(ctx context.Context, payment domain.Payment, from domain.PaymentStatus) error

	// transactions and sales
	CreateTransaction(ctx context.Context, txn domain.Transaction) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, error)
	CreateSale(ctx context.Context, sale domain.Sale) error
	ListSales(ctx context.Context, filter SaleFilter) ([]domain.Sale, error)

	// reviews
	CreateReview(ctx context.Context, review domain.Review) error
	ListReviews(ctx context.Context, bookID string) ([]domain.Review, error)
	AverageRating(ctx context.Context, bookID string) (float64, bool, error)

	// WithTx runs fn against a Store bound to a single database transaction.
	// The transaction commits when fn returns nil.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(ctx context.Context, userID string) (string, error)
	GetUserIDByToken(ctx context.Context, token string) (string, bool, error)
	DeleteSession(ctx context.Context, token string) error
}

// UserSessionRevoker is an optional capability that revokes all sessions
// issued for a user up to a cutoff time.
type UserSessionRevoker interface {
	RevokeUserSessions(ctx context.Context, userID string, since time.Time) error
}

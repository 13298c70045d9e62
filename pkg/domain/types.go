package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type BookCondition string

const (
	ConditionNew  BookCondition = "new"
	ConditionUsed BookCondition = "used"
)

type Availability string

const (
	AvailableSwap Availability = "swap"
	AvailableSell Availability = "sell"
	AvailableBoth Availability = "both"
)

type SwapStatus string

const (
	SwapPending  SwapStatus = "pending"
	SwapAccepted SwapStatus = "accepted"
	SwapRejected SwapStatus = "rejected"
)

type PaymentMethod string

const (
	MethodGPay    PaymentMethod = "GPay"
	MethodPhonePe PaymentMethod = "PhonePe"
	MethodPaytm   PaymentMethod = "Paytm"
	MethodOther   PaymentMethod = "Other"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "Pending"
	PaymentVerified PaymentStatus = "Verified"
	PaymentRejected PaymentStatus = "Rejected"
)

type TransactionStatus string

const (
	TransactionInitiated TransactionStatus = "initiated"
	TransactionSuccess   TransactionStatus = "success"
	TransactionFailed    TransactionStatus = "failed"
)

// Valid reports whether c is a known condition.
func (c BookCondition) Valid() bool {
	return c == ConditionNew || c == ConditionUsed
}

// Valid reports whether a is a known availability.
func (a Availability) Valid() bool {
	switch a {
	case AvailableSwap, AvailableSell, AvailableBoth:
		return true
	}
	return false
}

// Swappable reports whether books with this availability show up in swap listings.
func (a Availability) Swappable() bool {
	return a == AvailableSwap || a == AvailableBoth
}

// SwappableAvailabilities lists every availability for which Swappable holds.
func SwappableAvailabilities() []Availability {
	var out []Availability
	for _, av := range []Availability{AvailableSwap, AvailableSell, AvailableBoth} {
		if av.Swappable() {
			out = append(out, av)
		}
	}
	return out
}

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodGPay, MethodPhonePe, MethodPaytm, MethodOther:
		return true
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile holds the payment contact details shown to buyers.
type Profile struct {
	UserID    string    `json:"userId"`
	Mobile    string    `json:"mobile,omitempty"`
	UPIID     string    `json:"upiId,omitempty"`
	QRKey     string    `json:"-"`
	AvatarKey string    `json:"-"`
	Place     string    `json:"place,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Book struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"ownerId"`
	Title        string          `json:"title"`
	Author       string          `json:"author,omitempty"`
	Genre        string          `json:"genre,omitempty"`
	Condition    BookCondition   `json:"condition"`
	Description  string          `json:"description,omitempty"`
	CoverKey     string          `json:"-"`
	Availability Availability    `json:"availability"`
	Price        decimal.Decimal `json:"price"`
	Sold         bool            `json:"sold"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type SwapRequest struct {
	ID              string     `json:"id"`
	RequesterID     string     `json:"requesterId"`
	OwnerID         string     `json:"ownerId"`
	RequestedBookID string     `json:"requestedBookId"`
	OfferedBookID   string     `json:"offeredBookId,omitempty"`
	Message         string     `json:"message,omitempty"`
	Mobile          string     `json:"mobile"`
	Status          SwapStatus `json:"status"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Payment is a buyer's claim of an out-of-band payment awaiting seller verification.
// BookID is empty once the book has been deleted. Amount is unset for checkout
// payments until the seller verifies them.
type Payment struct {
	ID             string              `json:"id"`
	BuyerID        string              `json:"buyerId"`
	SellerID       string              `json:"sellerId"`
	BookID         string              `json:"bookId,omitempty"`
	Amount         decimal.NullDecimal `json:"amount"`
	Mobile         string              `json:"mobile,omitempty"`
	Method         PaymentMethod       `json:"method"`
	TransactionRef string              `json:"transactionRef,omitempty"`
	ScreenshotKey  string              `json:"-"`
	SellerUPIID    string              `json:"sellerUpiId,omitempty"`
	SellerQRKey    string              `json:"-"`
	Status         PaymentStatus       `json:"status"`
	CreatedAt      time.Time           `json:"createdAt"`
}

type Transaction struct {
	ID        string            `json:"id"`
	BuyerID   string            `json:"buyerId"`
	SellerID  string            `json:"sellerId"`
	BookID    string            `json:"bookId"`
	Amount    decimal.Decimal   `json:"amount"`
	Status    TransactionStatus `json:"status"`
	Mobile    string            `json:"mobile,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Sale links a completed swap to the transaction it produced.
type Sale struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transactionId,omitempty"`
	BuyerID       string    `json:"buyerId"`
	SellerID      string    `json:"sellerId"`
	BookID        string    `json:"bookId,omitempty"`
	SwapRequestID string    `json:"swapRequestId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Review struct {
	ID         string    `json:"id"`
	BookID     string    `json:"bookId"`
	ReviewerID string    `json:"reviewerId"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"createdAt"`
}

package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// GORM models used for persistence. Optional references are stored as empty
// strings rather than NULL.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Email        string    `gorm:"not null"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type ProfileModel struct {
	UserID    string    `gorm:"primaryKey"`
	Mobile    string    `gorm:"size:20"`
	UPIID     string    `gorm:"column:upi_id;size:50"`
	QRKey     string    `gorm:"column:qr_key;size:512"`
	AvatarKey string    `gorm:"size:512"`
	Place     string    `gorm:"size:100"`
	UpdatedAt time.Time `gorm:"not null"`
}

type BookModel struct {
	ID           string          `gorm:"primaryKey"`
	OwnerID      string          `gorm:"not null;index"`
	Title        string          `gorm:"not null"`
	Author       string          `gorm:"size:255"`
	Genre        string          `gorm:"size:100"`
	Condition    string          `gorm:"not null;default:used"`
	Description  string          `gorm:"type:text"`
	CoverKey     string          `gorm:"size:512"`
	Availability string          `gorm:"not null;default:swap;index"`
	Price        decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Sold         bool            `gorm:"not null;default:false"`
	CreatedAt    time.Time       `gorm:"not null;index"`
	UpdatedAt    time.Time       `gorm:"not null"`
}

type SwapRequestModel struct {
	ID              string    `gorm:"primaryKey"`
	RequesterID     string    `gorm:"not null;index"`
	OwnerID         string    `gorm:"not null;index"`
	RequestedBookID string    `gorm:"not null;index"`
	OfferedBookID   string    `gorm:"index"`
	Message         string    `gorm:"type:text"`
	Mobile          string    `gorm:"size:15"`
	Status          string    `gorm:"not null;index"`
	CreatedAt       time.Time `gorm:"not null;index"`
}

type PaymentModel struct {
	ID             string              `gorm:"primaryKey"`
	BuyerID        string              `gorm:"not null;index"`
	SellerID       string              `gorm:"not null;index"`
	BookID         string              `gorm:"index"`
	Amount         decimal.NullDecimal `gorm:"type:numeric(10,2)"`
	Mobile         string              `gorm:"size:15"`
	Method         string              `gorm:"not null;default:GPay"`
	TransactionRef string              `gorm:"size:100"`
	ScreenshotKey  string              `gorm:"size:512"`
	SellerUPIID    string              `gorm:"column:seller_upi_id;size:50"`
	SellerQRKey    string              `gorm:"column:seller_qr_key;size:512"`
	Status         string              `gorm:"not null;index"`
	CreatedAt      time.Time           `gorm:"not null;index"`
}

type TransactionModel struct {
	ID        string          `gorm:"primaryKey"`
	BuyerID   string          `gorm:"not null;index"`
	SellerID  string          `gorm:"not null;index"`
	BookID    string          `gorm:"not null;index"`
	Amount    decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Status    string          `gorm:"not null"`
	Mobile    string          `gorm:"size:20"`
	CreatedAt time.Time       `gorm:"not null;index"`
}

type SaleModel struct {
	ID            string    `gorm:"primaryKey"`
	TransactionID *string   `gorm:"uniqueIndex"`
	BuyerID       string    `gorm:"index"`
	SellerID      string    `gorm:"index"`
	BookID        string    `gorm:"index"`
	SwapRequestID string    `gorm:"index"`
	CreatedAt     time.Time `gorm:"not null;index"`
}

type ReviewModel struct {
	ID         string    `gorm:"primaryKey"`
	BookID     string    `gorm:"not null;index"`
	ReviewerID string    `gorm:"not null;index"`
	Rating     int       `gorm:"not null"`
	Comment    string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

func allModels() []any {
	return []any{
		&UserModel{},
		&ProfileModel{},
		&BookModel{},
		&SwapRequestModel{},
		&PaymentModel{},
		&TransactionModel{},
		&SaleModel{},
		&ReviewModel{},
	}
}

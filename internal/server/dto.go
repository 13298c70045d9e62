package server

import (
	"context"

	"bookexchange/internal/app"
	"bookexchange/pkg/domain"
)

type signupRequest struct {
	Username string `json:"username" form:"username" validate:"required,max=150"`
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
	Confirm  string `json:"confirmPassword" form:"confirmPassword" validate:"required"`
	Mobile   string `json:"mobile" form:"mobile"`
	Place    string `json:"place" form:"place" validate:"max=100"`
}

type loginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

type accountUpdateRequest struct {
	Username string `json:"username" validate:"omitempty,max=150"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password"`
	Confirm  string `json:"confirmPassword"`
}

type bookRequest struct {
	Title        string `json:"title" form:"title" validate:"required,max=255"`
	Author       string `json:"author" form:"author" validate:"max=255"`
	Genre        string `json:"genre" form:"genre" validate:"max=100"`
	Condition    string `json:"condition" form:"condition"`
	Description  string `json:"description" form:"description"`
	Availability string `json:"availability" form:"availability"`
	Price        string `json:"price" form:"price"`
}

func (r bookRequest) input() app.BookInput {
	return app.BookInput{
		Title:        r.Title,
		Author:       r.Author,
		Genre:        r.Genre,
		Condition:    r.Condition,
		Description:  r.Description,
		Availability: r.Availability,
		Price:        r.Price,
	}
}

type reviewRequest struct {
	Rating  int    `json:"rating" form:"rating" validate:"gte=1,lte=5"`
	Comment string `json:"comment" form:"comment" validate:"required"`
}

type swapRequest struct {
	RequestedBookID string `json:"requestedBookId" form:"requestedBookId" validate:"required"`
	OfferedBookID   string `json:"offeredBookId" form:"offeredBookId"`
	Message         string `json:"message" form:"message"`
	Mobile          string `json:"mobile" form:"mobile" validate:"required"`
}

type profileRequest struct {
	Place  string `json:"place" form:"place"`
	Mobile string `json:"mobile" form:"mobile"`
	UPIID  string `json:"upiId" form:"upiId"`
}

type purchaseRequest struct {
	Method         string `json:"method" form:"method"`
	TransactionRef string `json:"transactionRef" form:"transactionRef"`
}

type checkoutRequest struct {
	TransactionRef string `json:"transactionRef" form:"transactionRef"`
}

type verifyRequest struct {
	Mobile string `json:"mobile" form:"mobile"`
}

type authResponse struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

type profileResponse struct {
	domain.Profile
	AvatarURL string `json:"avatarUrl,omitempty"`
	QRURL     string `json:"qrUrl,omitempty"`
}

type meResponse struct {
	User    domain.User     `json:"user"`
	Profile profileResponse `json:"profile"`
}

type bookResponse struct {
	domain.Book
	CoverURL string `json:"coverUrl,omitempty"`
}

type bookDetailsResponse struct {
	Book    bookResponse    `json:"book"`
	Reviews []domain.Review `json:"reviews"`
	Average *float64        `json:"averageRating"`
}

type paymentResponse struct {
	domain.Payment
	ScreenshotURL string `json:"screenshotUrl,omitempty"`
	SellerQRURL   string `json:"sellerQrUrl,omitempty"`
}

type dashboardResponse struct {
	Books         []bookResponse       `json:"books"`
	SwapsSent     []domain.SwapRequest `json:"swapsSent"`
	SwapsReceived []domain.SwapRequest `json:"swapsReceived"`
	Purchases     []domain.Transaction `json:"purchases"`
	Sales         []domain.Transaction `json:"sales"`
}

func (s *Server) profileDTO(ctx context.Context, p domain.Profile) profileResponse {
	return profileResponse{
		Profile:   p,
		AvatarURL: s.app.BlobURL(ctx, p.AvatarKey),
		QRURL:     s.app.BlobURL(ctx, p.QRKey),
	}
}

func (s *Server) bookDTO(ctx context.Context, b domain.Book) bookResponse {
	return bookResponse{Book: b, CoverURL: s.app.BlobURL(ctx, b.CoverKey)}
}

func (s *Server) bookDTOs(ctx context.Context, books []domain.Book) []bookResponse {
	out := make([]bookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, s.bookDTO(ctx, b))
	}
	return out
}

func (s *Server) paymentDTO(ctx context.Context, p domain.Payment) paymentResponse {
	return paymentResponse{
		Payment:       p,
		ScreenshotURL: s.app.BlobURL(ctx, p.ScreenshotKey),
		SellerQRURL:   s.app.BlobURL(ctx, p.SellerQRKey),
	}
}

func (s *Server) paymentDTOs(ctx context.Context, payments []domain.Payment) []paymentResponse {
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, s.paymentDTO(ctx, p))
	}
	return out
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

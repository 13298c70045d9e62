package store

import (
	"context"

	"bookexchange/pkg/domain"
)

// CreateSwap stores a new swap request.
func (s *GormStore) CreateSwap(ctx context.Context, swap domain.SwapRequest) error {
	model := swapToModel(swap)
	return s.db.WithContext(ctx).Create(&model).Error
}

// GetSwap retrieves a swap request.
func (s *GormStore) GetSwap(ctx context.Context, id string) (domain.SwapRequest, bool, error) {
	var model SwapRequestModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if notFound(err) {
			return domain.SwapRequest{}, false, nil
		}
		return domain.SwapRequest{}, false, err
	}
	return swapFromModel(model), true, nil
}

// ListSwaps returns swap requests matching filter, newest first.
func (s *GormStore) ListSwaps(ctx context.Context, filter SwapFilter) ([]domain.SwapRequest, error) {
	tx := s.db.WithContext(ctx).Model(&SwapRequestModel{})
	if filter.RequesterID != "" {
		tx = tx.Where("requester_id = ?", filter.RequesterID)
	}
	if filter.OwnerID != "" {
		tx = tx.Where("owner_id = ?", filter.OwnerID)
	}
	var models []SwapRequestModel
	if err := tx.Order("created_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.SwapRequest, 0, len(models))
	for _, m := range models {
		res = append(res, swapFromModel(m))
	}
	return res, nil
}

// TransitionSwap moves a swap from one status to another. It returns
// ErrStaleStatus when the swap is no longer in state from.
func (s *GormStore) TransitionSwap(ctx context.Context, id string, from, to domain.SwapStatus) error {
	res := s.db.WithContext(ctx).Model(&SwapRequestModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// CreatePayment stores a new payment claim.
func (s *GormStore) CreatePayment(ctx context.Context, p domain.Payment) error {
	model := paymentToModel(p)
	return s.db.WithContext(ctx).Create(&model).Error
}

// GetPayment retrieves a payment.
func (s *GormStore) GetPayment(ctx context.Context, id string) (domain.Payment, bool, error) {
	var model PaymentModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if notFound(err) {
			return domain.Payment{}, false, nil
		}
		return domain.Payment{}, false, err
	}
	return paymentFromModel(model), true, nil
}

// ListPayments returns payments matching filter, newest first.
func (s *GormStore) ListPayments(ctx context.Context, filter PaymentFilter) ([]domain.Payment, error) {
	tx := s.db.WithContext(ctx).Model(&PaymentModel{})
	if filter.BuyerID != "" {
		tx = tx.Where("buyer_id = ?", filter.BuyerID)
	}
	if filter.SellerID != "" {
		tx = tx.Where("seller_id = ?", filter.SellerID)
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	var models []PaymentModel
	if err := tx.Order("created_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Payment, 0, len(models))
	for _, m := range models {
		res = append(res, paymentFromModel(m))
	}
	return res, nil
}

// TransitionPayment writes the payment's status, amount and mobile if the row
// is still in state from, and returns ErrStaleStatus otherwise.
func (s *GormStore) TransitionPayment(ctx context.Context, p domain.Payment, from domain.PaymentStatus) error {
	res := s.db.WithContext(ctx).Model(&PaymentModel{}).
		Where("id = ? AND status = ?", p.ID, string(from)).
		Updates(map[string]any{
			"status": string(p.Status),
			"amount": p.Amount,
			"mobile": p.Mobile,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// CreateTransaction records a completed exchange.
func (s *GormStore) CreateTransaction(ctx context.Context, t domain.Transaction) error {
	model := transactionToModel(t)
	return s.db.WithContext(ctx).Create(&model).Error
}

// ListTransactions returns transactions matching filter, newest first.
func (s *GormStore) ListTransactions(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, error) {
	tx := s.db.WithContext(ctx).Model(&TransactionModel{})
	if filter.BuyerID != "" {
		tx = tx.Where("buyer_id = ?", filter.BuyerID)
	}
	if filter.SellerID != "" {
		tx = tx.Where("seller_id = ?", filter.SellerID)
	}
	var models []TransactionModel
	if err := tx.Order("created_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Transaction, 0, len(models))
	for _, m := range models {
		res = append(res, transactionFromModel(m))
	}
	return res, nil
}

// CreateSale stores a sale record. A transaction backs at most one sale;
// reusing one yields ErrConflict.
func (s *GormStore) CreateSale(ctx context.Context, sale domain.Sale) error {
	model := saleToModel(sale)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// ListSales returns sales matching filter, newest first.
func (s *GormStore) ListSales(ctx context.Context, filter SaleFilter) ([]domain.Sale, error) {
	tx := s.db.WithContext(ctx).Model(&SaleModel{})
	if filter.BuyerID != "" {
		tx = tx.Where("buyer_id = ?", filter.BuyerID)
	}
	if filter.SellerID != "" {
		tx = tx.Where("seller_id = ?", filter.SellerID)
	}
	if filter.SwapRequestID != "" {
		tx = tx.Where("swap_request_id = ?", filter.SwapRequestID)
	}
	var models []SaleModel
	if err := tx.Order("created_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Sale, 0, len(models))
	for _, m := range models {
		res = append(res, saleFromModel(m))
	}
	return res, nil
}

func swapToModel(s domain.SwapRequest) SwapRequestModel {
	return SwapRequestModel{
		ID:              s.ID,
		RequesterID:     s.RequesterID,
		OwnerID:         s.OwnerID,
		RequestedBookID: s.RequestedBookID,
		OfferedBookID:   s.OfferedBookID,
		Message:         s.Message,
		Mobile:          s.Mobile,
		Status:          string(s.Status),
		CreatedAt:       s.CreatedAt,
	}
}

func swapFromModel(m SwapRequestModel) domain.SwapRequest {
	return domain.SwapRequest{
		ID:              m.ID,
		RequesterID:     m.RequesterID,
		OwnerID:         m.OwnerID,
		RequestedBookID: m.RequestedBookID,
		OfferedBookID:   m.OfferedBookID,
		Message:         m.Message,
		Mobile:          m.Mobile,
		Status:          domain.SwapStatus(m.Status),
		CreatedAt:       m.CreatedAt.UTC(),
	}
}

func paymentToModel(p domain.Payment) PaymentModel {
	return PaymentModel{
		ID:             p.ID,
		BuyerID:        p.BuyerID,
		SellerID:       p.SellerID,
		BookID:         p.BookID,
		Amount:         p.Amount,
		Mobile:         p.Mobile,
		Method:         string(p.Method),
		TransactionRef: p.TransactionRef,
		ScreenshotKey:  p.ScreenshotKey,
		SellerUPIID:    p.SellerUPIID,
		SellerQRKey:    p.SellerQRKey,
		Status:         string(p.Status),
		CreatedAt:      p.CreatedAt,
	}
}

func paymentFromModel(m PaymentModel) domain.Payment {
	return domain.Payment{
		ID:             m.ID,
		BuyerID:        m.BuyerID,
		SellerID:       m.SellerID,
		BookID:         m.BookID,
		Amount:         m.Amount,
		Mobile:         m.Mobile,
		Method:         domain.PaymentMethod(m.Method),
		TransactionRef: m.TransactionRef,
		ScreenshotKey:  m.ScreenshotKey,
		SellerUPIID:    m.SellerUPIID,
		SellerQRKey:    m.SellerQRKey,
		Status:         domain.PaymentStatus(m.Status),
		CreatedAt:      m.CreatedAt.UTC(),
	}
}

func transactionToModel(t domain.Transaction) TransactionModel {
	return TransactionModel{
		ID:        t.ID,
		BuyerID:   t.BuyerID,
		SellerID:  t.SellerID,
		BookID:    t.BookID,
		Amount:    t.Amount,
		Status:    string(t.Status),
		Mobile:    t.Mobile,
		CreatedAt: t.CreatedAt,
	}
}

func transactionFromModel(m TransactionModel) domain.Transaction {
	return domain.Transaction{
		ID:        m.ID,
		BuyerID:   m.BuyerID,
		SellerID:  m.SellerID,
		BookID:    m.BookID,
		Amount:    m.Amount,
		Status:    domain.TransactionStatus(m.Status),
		Mobile:    m.Mobile,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func saleToModel(s domain.Sale) SaleModel {
	return SaleModel{
		ID:            s.ID,
		TransactionID: nullableID(s.TransactionID),
		BuyerID:       s.BuyerID,
		SellerID:      s.SellerID,
		BookID:        s.BookID,
		SwapRequestID: s.SwapRequestID,
		CreatedAt:     s.CreatedAt,
	}
}

func saleFromModel(m SaleModel) domain.Sale {
	return domain.Sale{
		ID:            m.ID,
		TransactionID: derefID(m.TransactionID),
		BuyerID:       m.BuyerID,
		SellerID:      m.SellerID,
		BookID:        m.BookID,
		SwapRequestID: m.SwapRequestID,
		CreatedAt:     m.CreatedAt.UTC(),
	}
}

func nullableID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func derefID(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}

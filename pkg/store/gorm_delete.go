package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// DeleteUser removes a user together with their books, swaps, payments,
// transactions, sales, reviews and profile.
func (s *GormStore) DeleteUser(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bookIDs []string
		if err := tx.Model(&BookModel{}).Where("owner_id = ?", id).Pluck("id", &bookIDs).Error; err != nil {
			return fmt.Errorf("list user books: %w", err)
		}
		if err := deleteBooks(tx, bookIDs); err != nil {
			return err
		}

		var swapIDs []string
		if err := tx.Model(&SwapRequestModel{}).
			Where("requester_id = ? OR owner_id = ?", id, id).
			Pluck("id", &swapIDs).Error; err != nil {
			return fmt.Errorf("list user swaps: %w", err)
		}
		if err := deleteSwaps(tx, swapIDs); err != nil {
			return err
		}

		if err := tx.Where("buyer_id = ? OR seller_id = ?", id, id).Delete(&PaymentModel{}).Error; err != nil {
			return fmt.Errorf("delete user payments: %w", err)
		}

		var txnIDs []string
		if err := tx.Model(&TransactionModel{}).
			Where("buyer_id = ? OR seller_id = ?", id, id).
			Pluck("id", &txnIDs).Error; err != nil {
			return fmt.Errorf("list user transactions: %w", err)
		}
		if err := deleteTransactions(tx, txnIDs); err != nil {
			return err
		}
		if err := tx.Where("buyer_id = ? OR seller_id = ?", id, id).Delete(&SaleModel{}).Error; err != nil {
			return fmt.Errorf("delete user sales: %w", err)
		}

		if err := tx.Where("reviewer_id = ?", id).Delete(&ReviewModel{}).Error; err != nil {
			return fmt.Errorf("delete user reviews: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&ProfileModel{}).Error; err != nil {
			return fmt.Errorf("delete profile: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&UserModel{})
		if res.Error != nil {
			return fmt.Errorf("delete user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// deleteBooks removes books and their dependents. Payments and sales keep
// their rows with the book reference cleared.
func deleteBooks(tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("book_id IN ?", ids).Delete(&ReviewModel{}).Error; err != nil {
		return fmt.Errorf("delete reviews: %w", err)
	}

	var swapIDs []string
	if err := tx.Model(&SwapRequestModel{}).
		Where("requested_book_id IN ? OR offered_book_id IN ?", ids, ids).
		Pluck("id", &swapIDs).Error; err != nil {
		return fmt.Errorf("list book swaps: %w", err)
	}
	if err := deleteSwaps(tx, swapIDs); err != nil {
		return err
	}

	var txnIDs []string
	if err := tx.Model(&TransactionModel{}).Where("book_id IN ?", ids).Pluck("id", &txnIDs).Error; err != nil {
		return fmt.Errorf("list book transactions: %w", err)
	}
	if err := deleteTransactions(tx, txnIDs); err != nil {
		return err
	}

	if err := tx.Model(&PaymentModel{}).Where("book_id IN ?", ids).Update("book_id", "").Error; err != nil {
		return fmt.Errorf("detach payments: %w", err)
	}
	if err := tx.Model(&SaleModel{}).Where("book_id IN ?", ids).Update("book_id", "").Error; err != nil {
		return fmt.Errorf("detach sales: %w", err)
	}
	res := tx.Where("id IN ?", ids).Delete(&BookModel{})
	if res.Error != nil {
		return fmt.Errorf("delete books: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteSwaps(tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Model(&SaleModel{}).Where("swap_request_id IN ?", ids).Update("swap_request_id", "").Error; err != nil {
		return fmt.Errorf("detach sales from swaps: %w", err)
	}
	if err := tx.Where("id IN ?", ids).Delete(&SwapRequestModel{}).Error; err != nil {
		return fmt.Errorf("delete swaps: %w", err)
	}
	return nil
}

func deleteTransactions(tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("transaction_id IN ?", ids).Delete(&SaleModel{}).Error; err != nil {
		return fmt.Errorf("delete transaction sales: %w", err)
	}
	if err := tx.Where("id IN ?", ids).Delete(&TransactionModel{}).Error; err != nil {
		return fmt.Errorf("delete transactions: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bookexchange/pkg/domain"
)

// SaveBook stores or updates a book.
func (s *GormStore) SaveBook(ctx context.Context, b domain.Book) error {
	model := bookToModel(b)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "author", "genre", "condition", "description",
			"cover_key", "availability", "price", "sold", "updated_at",
		}),
	}).Create(&model).Error
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(ctx context.Context, id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if notFound(err) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooks returns books matching filter, newest first.
func (s *GormStore) ListBooks(ctx context.Context, filter BookFilter) ([]domain.Book, error) {
	tx := s.db.WithContext(ctx).Model(&BookModel{})
	if filter.OwnerID != "" {
		tx = tx.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.ExcludeOwnerID != "" {
		tx = tx.Where("owner_id <> ?", filter.ExcludeOwnerID)
	}
	if len(filter.Availability) > 0 {
		values := make([]string, 0, len(filter.Availability))
		for _, a := range filter.Availability {
			values = append(values, string(a))
		}
		tx = tx.Where("availability IN ?", values)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		tx = tx.Where("(LOWER(title) LIKE ? OR LOWER(author) LIKE ?)", pattern, pattern)
	}
	if filter.Limit > 0 {
		tx = tx.Limit(filter.Limit)
	}
	var models []BookModel
	if err := tx.Order("created_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// MarkBookSold flags a book as no longer available.
func (s *GormStore) MarkBookSold(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&BookModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"sold": true, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBook removes a book and everything that depends on it.
func (s *GormStore) DeleteBook(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteBooks(tx, []string{id})
	})
}

// CreateReview stores a review.
func (s *GormStore) CreateReview(ctx context.Context, r domain.Review) error {
	model := reviewToModel(r)
	return s.db.WithContext(ctx).Create(&model).Error
}

// ListReviews returns reviews for a book, or all reviews when bookID is empty.
func (s *GormStore) ListReviews(ctx context.Context, bookID string) ([]domain.Review, error) {
	tx := s.db.WithContext(ctx).Model(&ReviewModel{})
	if bookID != "" {
		tx = tx.Where("book_id = ?", bookID)
	}
	var models []ReviewModel
	if err := tx.Order("created_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Review, 0, len(models))
	for _, m := range models {
		res = append(res, reviewFromModel(m))
	}
	return res, nil
}

// AverageRating returns the mean rating of a book. ok is false when the book
// has no reviews.
func (s *GormStore) AverageRating(ctx context.Context, bookID string) (float64, bool, error) {
	var avg sql.NullFloat64
	row := s.db.WithContext(ctx).Model(&ReviewModel{}).
		Select("AVG(rating)").
		Where("book_id = ?", bookID).
		Row()
	if err := row.Scan(&avg); err != nil {
		return 0, false, err
	}
	if !avg.Valid {
		return 0, false, nil
	}
	return avg.Float64, true, nil
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:           b.ID,
		OwnerID:      b.OwnerID,
		Title:        b.Title,
		Author:       b.Author,
		Genre:        b.Genre,
		Condition:    string(b.Condition),
		Description:  b.Description,
		CoverKey:     b.CoverKey,
		Availability: string(b.Availability),
		Price:        b.Price,
		Sold:         b.Sold,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:           m.ID,
		OwnerID:      m.OwnerID,
		Title:        m.Title,
		Author:       m.Author,
		Genre:        m.Genre,
		Condition:    domain.BookCondition(m.Condition),
		Description:  m.Description,
		CoverKey:     m.CoverKey,
		Availability: domain.Availability(m.Availability),
		Price:        m.Price,
		Sold:         m.Sold,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

func reviewToModel(r domain.Review) ReviewModel {
	return ReviewModel{
		ID:         r.ID,
		BookID:     r.BookID,
		ReviewerID: r.ReviewerID,
		Rating:     r.Rating,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt,
	}
}

func reviewFromModel(m ReviewModel) domain.Review {
	return domain.Review{
		ID:         m.ID,
		BookID:     m.BookID,
		ReviewerID: m.ReviewerID,
		Rating:     m.Rating,
		Comment:    m.Comment,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

package app

import (
	"context"
	"fmt"
	"strings"

	"bookexchange/internal/util"
	"bookexchange/pkg/domain"
)

// AddReview attaches a 1-5 rating and a comment to a book.
func (a *App) AddReview(ctx context.Context, reviewer domain.User, bookID string, rating int, comment string) (domain.Review, error) {
	if rating < 1 || rating > 5 {
		return domain.Review{}, invalid("rating", "rating must be between 1 and 5")
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return domain.Review{}, invalid("comment", "comment is required")
	}
	book, err := a.GetBook(ctx, bookID)
	if err != nil {
		return domain.Review{}, err
	}
	review := domain.Review{
		ID:         util.NewID(),
		BookID:     book.ID,
		ReviewerID: reviewer.ID,
		Rating:     rating,
		Comment:    comment,
		CreatedAt:  a.now(),
	}
	if err := a.store.CreateReview(ctx, review); err != nil {
		return domain.Review{}, fmt.Errorf("save review: %w", err)
	}
	return review, nil
}

// ListReviews returns all reviews, newest first.
func (a *App) ListReviews(ctx context.Context) ([]domain.Review, error) {
	return a.store.ListReviews(ctx, "")
}

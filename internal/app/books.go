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

const (
	homeFeedSize  = 5
	maxTitleLen   = 255
	maxAuthorLen  = 255
	maxGenreLen   = 100
	maxPriceValue = 99999999.99
)

// BookInput is the add/edit form for a listing. Empty condition,
// availability and price take their defaults.
type BookInput struct {
	Title        string
	Author       string
	Genre        string
	Condition    string
	Description  string
	Availability string
	Price        string
}

// BookDetails is a book with its reviews and average rating. Average is
// nil when the book has no reviews.
type BookDetails struct {
	Book    domain.Book
	Reviews []domain.Review
	Average *float64
}

type bookFields struct {
	title, author, genre, description string
	condition                         domain.BookCondition
	availability                      domain.Availability
	price                             decimal.Decimal
}

func parseBookInput(in BookInput) (bookFields, error) {
	f := bookFields{
		title:        strings.TrimSpace(in.Title),
		author:       strings.TrimSpace(in.Author),
		genre:        strings.TrimSpace(in.Genre),
		description:  strings.TrimSpace(in.Description),
		condition:    domain.ConditionUsed,
		availability: domain.AvailableSwap,
		price:        decimal.Zero,
	}
	switch {
	case f.title == "":
		return f, invalid("title", "title is required")
	case len(f.title) > maxTitleLen:
		return f, invalid("title", "title is too long")
	case len(f.author) > maxAuthorLen:
		return f, invalid("author", "author is too long")
	case len(f.genre) > maxGenreLen:
		return f, invalid("genre", "genre is too long")
	}
	if c := strings.TrimSpace(in.Condition); c != "" {
		f.condition = domain.BookCondition(strings.ToLower(c))
		if !f.condition.Valid() {
			return f, invalid("condition", fmt.Sprintf("unknown condition %q", c))
		}
	}
	if av := strings.TrimSpace(in.Availability); av != "" {
		f.availability = domain.Availability(strings.ToLower(av))
		if !f.availability.Valid() {
			return f, invalid("availability", fmt.Sprintf("unknown availability %q", av))
		}
	}
	if p := strings.TrimSpace(in.Price); p != "" {
		price, err := decimal.NewFromString(p)
		if err != nil {
			return f, invalid("price", "price must be a number")
		}
		if price.IsNegative() {
			return f, invalid("price", "price must be >= 0")
		}
		if !price.Equal(price.Round(2)) {
			return f, invalid("price", "price has at most 2 decimal places")
		}
		if price.GreaterThan(decimal.NewFromFloat(maxPriceValue)) {
			return f, invalid("price", "price is too large")
		}
		f.price = price.Round(2)
	}
	return f, nil
}

// Home returns the latest listings.
func (a *App) Home(ctx context.Context) ([]domain.Book, error) {
	return a.store.ListBooks(ctx, store.BookFilter{Limit: homeFeedSize})
}

// ListBooks returns every listing, newest first.
func (a *App) ListBooks(ctx context.Context) ([]domain.Book, error) {
	return a.store.ListBooks(ctx, store.BookFilter{})
}

// MyBooks returns the user's own listings.
func (a *App) MyBooks(ctx context.Context, user domain.User) ([]domain.Book, error) {
	return a.store.ListBooks(ctx, store.BookFilter{OwnerID: user.ID})
}

// SearchPurchasable returns books the user does not own, optionally matching
// q against title or author.
func (a *App) SearchPurchasable(ctx context.Context, user domain.User, q string) ([]domain.Book, error) {
	return a.store.ListBooks(ctx, store.BookFilter{ExcludeOwnerID: user.ID, Query: q})
}

// ListSwappableBooks returns other users' books offered for swap.
func (a *App) ListSwappableBooks(ctx context.Context, user domain.User) ([]domain.Book, error) {
	return a.store.ListBooks(ctx, store.BookFilter{
		ExcludeOwnerID: user.ID,
		Availability:   domain.SwappableAvailabilities(),
	})
}

// AddBook creates a listing owned by owner with an optional cover image.
func (a *App) AddBook(ctx context.Context, owner domain.User, in BookInput, cover *Upload) (domain.Book, error) {
	f, err := parseBookInput(in)
	if err != nil {
		return domain.Book{}, err
	}
	return a.createBook(ctx, owner, f, cover)
}

// SellBook is AddBook with availability forced to sell.
func (a *App) SellBook(ctx context.Context, owner domain.User, in BookInput, cover *Upload) (domain.Book, error) {
	f, err := parseBookInput(in)
	if err != nil {
		return domain.Book{}, err
	}
	f.availability = domain.AvailableSell
	return a.createBook(ctx, owner, f, cover)
}

func (a *App) createBook(ctx context.Context, owner domain.User, f bookFields, cover *Upload) (domain.Book, error) {
	key, err := a.saveUpload(ctx, kindCover, "cover", cover)
	if err != nil {
		return domain.Book{}, err
	}
	now := a.now()
	book := domain.Book{
		ID:           util.NewID(),
		OwnerID:      owner.ID,
		Title:        f.title,
		Author:       f.author,
		Genre:        f.genre,
		Condition:    f.condition,
		Description:  f.description,
		CoverKey:     key,
		Availability: f.availability,
		Price:        f.price,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveBook(ctx, book); err != nil {
		a.deleteBlobs(ctx, key)
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// ownedBook loads a book and hides it from everyone but its owner.
func (a *App) ownedBook(ctx context.Context, owner domain.User, id string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(ctx, id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok || book.OwnerID != owner.ID {
		return domain.Book{}, ErrNotFound
	}
	return book, nil
}

// EditBook rewrites a listing's fields. Only the owner can edit.
func (a *App) EditBook(ctx context.Context, owner domain.User, id string, in BookInput) (domain.Book, error) {
	book, err := a.ownedBook(ctx, owner, id)
	if err != nil {
		return domain.Book{}, err
	}
	f, err := parseBookInput(in)
	if err != nil {
		return domain.Book{}, err
	}
	book.Title = f.title
	book.Author = f.author
	book.Genre = f.genre
	book.Condition = f.condition
	book.Description = f.description
	book.Availability = f.availability
	book.Price = f.price
	book.UpdatedAt = a.now()
	if err := a.store.SaveBook(ctx, book); err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// SetBookCover replaces a listing's cover image.
func (a *App) SetBookCover(ctx context.Context, owner domain.User, id string, up Upload) (domain.Book, error) {
	book, err := a.ownedBook(ctx, owner, id)
	if err != nil {
		return domain.Book{}, err
	}
	key, err := a.saveUpload(ctx, kindCover, "cover", &up)
	if err != nil {
		return domain.Book{}, err
	}
	old := book.CoverKey
	book.CoverKey = key
	book.UpdatedAt = a.now()
	if err := a.store.SaveBook(ctx, book); err != nil {
		a.deleteBlobs(ctx, key)
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	a.deleteBlobs(ctx, old)
	return book, nil
}

// DeleteBook removes a listing and its dependents. Only the owner can delete.
func (a *App) DeleteBook(ctx context.Context, owner domain.User, id string) error {
	book, err := a.ownedBook(ctx, owner, id)
	if err != nil {
		return err
	}
	if err := a.store.DeleteBook(ctx, book.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete book: %w", err)
	}
	a.deleteBlobs(ctx, book.CoverKey)
	a.publish(ctx, events.New(events.BookDeleted, book.ID, owner.ID, nil))
	return nil
}

// GetBook returns a single listing.
func (a *App) GetBook(ctx context.Context, id string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(ctx, id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrNotFound
	}
	return book, nil
}

// BookDetails returns a book, its reviews and the average rating.
func (a *App) BookDetails(ctx context.Context, id string) (BookDetails, error) {
	book, err := a.GetBook(ctx, id)
	if err != nil {
		return BookDetails{}, err
	}
	reviews, err := a.store.ListReviews(ctx, book.ID)
	if err != nil {
		return BookDetails{}, fmt.Errorf("list reviews: %w", err)
	}
	avg, ok, err := a.store.AverageRating(ctx, book.ID)
	if err != nil {
		return BookDetails{}, fmt.Errorf("average rating: %w", err)
	}
	details := BookDetails{Book: book, Reviews: reviews}
	if ok {
		details.Average = &avg
	}
	return details, nil
}

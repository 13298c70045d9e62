package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"bookexchange/pkg/domain"
	"bookexchange/pkg/store"
)

// Dashboard is a user's overview page.
type Dashboard struct {
	Books         []domain.Book
	SwapsSent     []domain.SwapRequest
	SwapsReceived []domain.SwapRequest
	Purchases     []domain.Transaction
	Sales         []domain.Transaction
}

// Dashboard loads the five dashboard lists concurrently.
func (a *App) Dashboard(ctx context.Context, user domain.User) (Dashboard, error) {
	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Books, err = a.store.ListBooks(gctx, store.BookFilter{OwnerID: user.ID})
		return err
	})
	g.Go(func() (err error) {
		d.SwapsSent, err = a.store.ListSwaps(gctx, store.SwapFilter{RequesterID: user.ID})
		return err
	})
	g.Go(func() (err error) {
		d.SwapsReceived, err = a.store.ListSwaps(gctx, store.SwapFilter{OwnerID: user.ID})
		return err
	})
	g.Go(func() (err error) {
		d.Purchases, err = a.store.ListTransactions(gctx, store.TransactionFilter{BuyerID: user.ID})
		return err
	})
	g.Go(func() (err error) {
		d.Sales, err = a.store.ListTransactions(gctx, store.TransactionFilter{SellerID: user.ID})
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, fmt.Errorf("load dashboard: %w", err)
	}
	return d, nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bookexchange/internal/util"
	"bookexchange/pkg/domain"
	"bookexchange/pkg/events"
	"bookexchange/pkg/store"
)

// SwapInput is a swap request against RequestedBookID. OfferedBookID is
// optional and must belong to the requester.
type SwapInput struct {
	RequestedBookID string
	OfferedBookID   string
	Message         string
	Mobile          string
}

// SwapOutcome is what accepting a swap wrote.
type SwapOutcome struct {
	Swap        domain.SwapRequest
	Transaction domain.Transaction
	Sale        domain.Sale
}

// RequestSwap records a pending swap request addressed to the requested
// book's owner.
func (a *App) RequestSwap(ctx context.Context, requester domain.User, in SwapInput) (domain.SwapRequest, error) {
	mobile := strings.TrimSpace(in.Mobile)
	if err := checkMobile(mobile); err != nil {
		return domain.SwapRequest{}, err
	}
	requested, err := a.GetBook(ctx, in.RequestedBookID)
	if err != nil {
		return domain.SwapRequest{}, err
	}
	offeredID := strings.TrimSpace(in.OfferedBookID)
	if offeredID != "" {
		offered, ok, err := a.store.GetBook(ctx, offeredID)
		if err != nil {
			return domain.SwapRequest{}, fmt.Errorf("fetch offered book: %w", err)
		}
		if !ok || offered.OwnerID != requester.ID {
			return domain.SwapRequest{}, invalid("offeredBookId", "offered book must be one of your own books")
		}
	}
	swap := domain.SwapRequest{
		ID:              util.NewID(),
		RequesterID:     requester.ID,
		OwnerID:         requested.OwnerID,
		RequestedBookID: requested.ID,
		OfferedBookID:   offeredID,
		Message:         strings.TrimSpace(in.Message),
		Mobile:          mobile,
		Status:          domain.SwapPending,
		CreatedAt:       a.now(),
	}
	if err := a.store.CreateSwap(ctx, swap); err != nil {
		return domain.SwapRequest{}, fmt.Errorf("save swap: %w", err)
	}
	a.publish(ctx, events.New(events.SwapRequested, swap.ID, requester.ID, map[string]string{
		"owner_id":          swap.OwnerID,
		"requested_book_id": swap.RequestedBookID,
	}))
	return swap, nil
}

// receivedSwap loads a swap addressed to owner.
func (a *App) receivedSwap(ctx context.Context, owner domain.User, id string) (domain.SwapRequest, error) {
	swap, ok, err := a.store.GetSwap(ctx, id)
	if err != nil {
		return domain.SwapRequest{}, fmt.Errorf("fetch swap: %w", err)
	}
	if !ok || swap.OwnerID != owner.ID {
		return domain.SwapRequest{}, ErrNotFound
	}
	return swap, nil
}

// AcceptSwap moves a pending swap to accepted and, in the same database
// transaction, marks the offered book sold and records the Transaction and
// Sale for the exchange.
func (a *App) AcceptSwap(ctx context.Context, owner domain.User, swapID string) (SwapOutcome, error) {
	swap, err := a.receivedSwap(ctx, owner, swapID)
	if err != nil {
		return SwapOutcome{}, err
	}
	var out SwapOutcome
	err = a.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.TransitionSwap(ctx, swap.ID, domain.SwapPending, domain.SwapAccepted); err != nil {
			return err
		}
		swap.Status = domain.SwapAccepted

		if swap.OfferedBookID != "" {
			if err := tx.MarkBookSold(ctx, swap.OfferedBookID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("mark offered book sold: %w", err)
			}
		}
		requested, ok, err := tx.GetBook(ctx, swap.RequestedBookID)
		if err != nil {
			return fmt.Errorf("fetch requested book: %w", err)
		}
		if !ok {
			return ErrNotFound
		}
		buyerProfile, err := tx.EnsureProfile(ctx, swap.RequesterID)
		if err != nil {
			return fmt.Errorf("ensure requester profile: %w", err)
		}
		if _, err := tx.EnsureProfile(ctx, swap.OwnerID); err != nil {
			return fmt.Errorf("ensure owner profile: %w", err)
		}
		mobile := swap.Mobile
		if mobile == "" {
			mobile = buyerProfile.Mobile
		}
		now := a.now()
		txn := domain.Transaction{
			ID:        util.NewID(),
			BuyerID:   swap.RequesterID,
			SellerID:  swap.OwnerID,
			BookID:    requested.ID,
			Amount:    requested.Price,
			Status:    domain.TransactionSuccess,
			Mobile:    mobile,
			CreatedAt: now,
		}
		if err := tx.CreateTransaction(ctx, txn); err != nil {
			return fmt.Errorf("save transaction: %w", err)
		}
		sale := domain.Sale{
			ID:            util.NewID(),
			TransactionID: txn.ID,
			BuyerID:       swap.RequesterID,
			SellerID:      swap.OwnerID,
			BookID:        requested.ID,
			SwapRequestID: swap.ID,
			CreatedAt:     now,
		}
		if err := tx.CreateSale(ctx, sale); err != nil {
			return fmt.Errorf("save sale: %w", err)
		}
		out = SwapOutcome{Swap: swap, Transaction: txn, Sale: sale}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrStaleStatus) {
			return SwapOutcome{}, ErrAlreadyDecided
		}
		if errors.Is(err, ErrNotFound) {
			return SwapOutcome{}, err
		}
		return SwapOutcome{}, fmt.Errorf("accept swap: %w", err)
	}
	a.publish(ctx, events.New(events.SwapAccepted, swap.ID, owner.ID, map[string]string{
		"transaction_id": out.Transaction.ID,
		"sale_id":        out.Sale.ID,
	}))
	return out, nil
}

// RejectSwap moves a pending swap to rejected. Nothing else changes.
func (a *App) RejectSwap(ctx context.Context, owner domain.User, swapID string) (domain.SwapRequest, error) {
	swap, err := a.receivedSwap(ctx, owner, swapID)
	if err != nil {
		return domain.SwapRequest{}, err
	}
	if err := a.store.TransitionSwap(ctx, swap.ID, domain.SwapPending, domain.SwapRejected); err != nil {
		if errors.Is(err, store.ErrStaleStatus) {
			return domain.SwapRequest{}, ErrAlreadyDecided
		}
		return domain.SwapRequest{}, fmt.Errorf("reject swap: %w", err)
	}
	swap.Status = domain.SwapRejected
	a.publish(ctx, events.New(events.SwapRejected, swap.ID, owner.ID, nil))
	return swap, nil
}

// ListSwapsSent returns the user's outgoing swap requests.
func (a *App) ListSwapsSent(ctx context.Context, user domain.User) ([]domain.SwapRequest, error) {
	return a.store.ListSwaps(ctx, store.SwapFilter{RequesterID: user.ID})
}

// ListSwapsReceived returns swap requests addressed to the user.
func (a *App) ListSwapsReceived(ctx context.Context, user domain.User) ([]domain.SwapRequest, error) {
	return a.store.ListSwaps(ctx, store.SwapFilter{OwnerID: user.ID})
}

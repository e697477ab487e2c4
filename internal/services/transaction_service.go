// Package services – TransactionService
//
// This file implements the transaction ledger state machine:
//
//	pending ──complete──▶ completed
//	   └─────cancel────▶ cancelled
//
// Both end states are terminal. Completing a transaction and flipping its
// listing to unavailable happen in one database transaction; the status
// write is a compare-and-swap on the pending state so a concurrent or
// repeated completion fails with ErrTransactionTerminal instead of applying
// twice. The listing flip is conditional on availability, so a second
// transaction over an already sold listing fails with ErrListingUnavailable
// and rolls back.
package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/campus-market/internal/domain"
	"github.com/tbourn/campus-market/internal/repo"
)

// CreateTransactionInput is a buyer's request to exchange a listing.
type CreateTransactionInput struct {
	ListingID string
	SellerID  string
	// Amount defaults to the listing price when nil.
	Amount *float64
}

// TransactionService implements the transaction lifecycle.
type TransactionService struct {
	DB *gorm.DB
}

func (s *TransactionService) tracer() trace.Tracer {
	return otel.Tracer("services/TransactionService")
}

// Create opens a pending transaction for buyer against an available listing.
// It does not reserve the listing; availability changes only on completion.
func (s *TransactionService) Create(ctx context.Context, buyer Actor, in CreateTransactionInput) (*domain.Transaction, error) {
	ctx, span := s.tracer().Start(ctx, "Create", trace.WithAttributes(
		attribute.String("user.id", buyer.ID),
		attribute.String("listing.id", in.ListingID),
	))
	defer span.End()

	v := &ValidationError{}
	if in.ListingID == "" {
		v.Add("listing_id", "listing_id is required")
	}
	if in.SellerID == "" {
		v.Add("seller_id", "seller_id is required")
	} else if in.SellerID == buyer.ID {
		v.Add("seller_id", "you cannot buy your own item")
	}
	if in.Amount != nil && *in.Amount < 0 {
		v.Add("amount", "amount cannot be negative")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	l, err := repo.GetListing(ctx, s.DB, in.ListingID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	if l.SellerID == buyer.ID {
		return nil, invalid("seller_id", "you cannot buy your own item")
	}
	if l.SellerID != in.SellerID {
		return nil, invalid("seller_id", "seller_id does not own this listing")
	}
	if !l.IsAvailable || l.IsHidden {
		return nil, ErrListingUnavailable
	}

	t := &domain.Transaction{
		ListingID:    l.ID,
		ListingTitle: l.Title,
		SellerID:     l.SellerID,
		BuyerID:      buyer.ID,
		Amount:       l.Price,
		Status:       domain.TxPending,
	}
	if in.Amount != nil {
		t.Amount = *in.Amount
	}
	if err := repo.CreateTransaction(ctx, s.DB, t); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create transaction")
		return nil, err
	}
	txTransitions.WithLabelValues(domain.TxPending).Inc()
	span.SetAttributes(attribute.String("transaction.id", t.ID))
	return t, nil
}

// Complete marks transaction id completed and the listing unavailable as one
// unit of work. Only the buyer or the seller may complete.
func (s *TransactionService) Complete(ctx context.Context, actor Actor, id string) (*domain.Transaction, error) {
	return s.transition(ctx, actor, id, domain.TxCompleted)
}

// Cancel marks transaction id cancelled. The listing is left untouched, so
// it stays on the market.
func (s *TransactionService) Cancel(ctx context.Context, actor Actor, id string) (*domain.Transaction, error) {
	return s.transition(ctx, actor, id, domain.TxCancelled)
}

func (s *TransactionService) transition(ctx context.Context, actor Actor, id, to string) (*domain.Transaction, error) {
	ctx, span := s.tracer().Start(ctx, "Transition", trace.WithAttributes(
		attribute.String("user.id", actor.ID),
		attribute.String("transaction.id", id),
		attribute.String("transaction.to", to),
	))
	defer span.End()

	var out *domain.Transaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := repo.GetTransaction(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrTransactionNotFound
			}
			return err
		}
		if !t.Involves(actor.ID) {
			return ErrNotParticipant
		}
		if t.IsTerminal() {
			return ErrTransactionTerminal
		}

		now := time.Now().UTC()
		var completedAt *time.Time
		if to == domain.TxCompleted {
			completedAt = &now
		}
		swapped, err := repo.TransitionTransaction(ctx, tx, id, domain.TxPending, to, completedAt)
		if err != nil {
			return err
		}
		if !swapped {
			return ErrTransactionTerminal
		}
		if to == domain.TxCompleted {
			if err := repo.MarkListingSold(ctx, tx, t.ListingID); err != nil {
				if errors.Is(err, repo.ErrUnavailable) {
					return ErrListingUnavailable
				}
				return err
			}
		}

		t.Status = to
		t.CompletedAt = completedAt
		t.UpdatedAt = now
		out = t
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	txTransitions.WithLabelValues(to).Inc()
	return out, nil
}

// Get returns transaction id to one of its parties or an admin.
func (s *TransactionService) Get(ctx context.Context, actor Actor, id string) (*domain.Transaction, error) {
	t, err := repo.GetTransaction(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	if !t.Involves(actor.ID) && !actor.IsAdmin() {
		return nil, ErrNotParticipant
	}
	return t, nil
}

// ListMine returns the actor's transactions newest first. role narrows to
// "buyer" or "seller"; anything else returns both sides.
func (s *TransactionService) ListMine(ctx context.Context, actor Actor, role, status string, page, pageSize int) (Page[domain.Transaction], error) {
	f := domain.TransactionFilter{Status: status}
	switch role {
	case "buyer":
		f.BuyerID = actor.ID
	case "seller":
		f.SellerID = actor.ID
	default:
		f.Participant = actor.ID
	}
	return s.List(ctx, f, page, pageSize)
}

// List returns ledger rows matching f newest first.
func (s *TransactionService) List(ctx context.Context, f domain.TransactionFilter, page, pageSize int) (Page[domain.Transaction], error) {
	page, pageSize, offset := normalizePage(page, pageSize)
	out := Page[domain.Transaction]{Items: []domain.Transaction{}, Page: page, PageSize: pageSize}
	if f.Status != "" && f.Status != domain.TxPending && f.Status != domain.TxCompleted && f.Status != domain.TxCancelled {
		return out, invalid("status", "status must be one of pending, completed, cancelled")
	}

	total, err := repo.CountTransactions(ctx, s.DB, f)
	if err != nil {
		return out, err
	}
	out.Total = total
	if total == 0 {
		return out, nil
	}
	items, err := repo.ListTransactionsPage(ctx, s.DB, f, offset, pageSize)
	if err != nil {
		return out, err
	}
	out.Items = items
	return out, nil
}

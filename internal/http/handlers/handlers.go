// Package handlers exposes the marketplace REST endpoints.
//
// Handlers are transport-thin: they bind and shape input, call application
// services, and translate results into HTTP responses. All service errors go
// through writeError.
package handlers

import (
	"context"
	"io"

	"github.com/tbourn/campus-market/internal/domain"
	"github.com/tbourn/campus-market/internal/imaging"
	"github.com/tbourn/campus-market/internal/repo"
	"github.com/tbourn/campus-market/internal/services"
)

//
// Service contracts (context-aware)
//

// AuthService covers identity and session use-cases.
type AuthService interface {
	Signup(ctx context.Context, in services.SignupInput) (*services.Session, error)
	Signin(ctx context.Context, email, password string) (*services.Session, error)
	Me(ctx context.Context, actor services.Actor) (*domain.User, error)
	Profile(ctx context.Context, id string) (*domain.UserSummary, error)
	UpdateProfile(ctx context.Context, actor services.Actor, p services.ProfilePatch) (*domain.User, error)
}

// ListingService covers the listing store.
type ListingService interface {
	Create(ctx context.Context, sellerID string, in services.ListingInput) (*domain.Listing, error)
	Update(ctx context.Context, actor services.Actor, id string, p services.ListingPatch) (*domain.Listing, error)
	Delete(ctx context.Context, actor services.Actor, id string) error
	Get(ctx context.Context, viewer services.Actor, id string) (*domain.Listing, error)
	ListPage(ctx context.Context, f domain.ListingFilter, page, pageSize int) (services.Page[domain.Listing], error)
	// Fingerprint summarizes the listings matching f for list validators.
	Fingerprint(ctx context.Context, f domain.ListingFilter) (domain.ListingSetStats, error)
	Similar(ctx context.Context, id string, k int) ([]domain.Listing, error)
}

// TransactionService covers the transaction state machine.
type TransactionService interface {
	Create(ctx context.Context, buyer services.Actor, in services.CreateTransactionInput) (*domain.Transaction, error)
	Complete(ctx context.Context, actor services.Actor, id string) (*domain.Transaction, error)
	Cancel(ctx context.Context, actor services.Actor, id string) (*domain.Transaction, error)
	Get(ctx context.Context, actor services.Actor, id string) (*domain.Transaction, error)
	ListMine(ctx context.Context, actor services.Actor, role, status string, page, pageSize int) (services.Page[domain.Transaction], error)
	List(ctx context.Context, f domain.TransactionFilter, page, pageSize int) (services.Page[domain.Transaction], error)
}

// ReviewService covers review submission and aggregates.
type ReviewService interface {
	Submit(ctx context.Context, reviewer services.Actor, in services.ReviewInput) (*domain.Review, error)
	Get(ctx context.Context, id string) (*domain.Review, error)
	ListFor(ctx context.Context, userID string, page, pageSize int) (services.Page[domain.Review], error)
	Stats(ctx context.Context, userID string) (domain.ReviewStats, error)
}

// MessageService covers the conversation log.
type MessageService interface {
	Send(ctx context.Context, sender services.Actor, in services.SendMessageInput) (*domain.Message, error)
	Conversations(ctx context.Context, actor services.Actor) ([]domain.Conversation, error)
	Conversation(ctx context.Context, actor services.Actor, id string, page, pageSize int) (services.Page[domain.Message], error)
	MarkRead(ctx context.Context, actor services.Actor, id string) (int64, error)
	UnreadCount(ctx context.Context, actor services.Actor) (int64, error)
}

// ModerationService covers the admin surface.
type ModerationService interface {
	DeleteUser(ctx context.Context, admin services.Actor, userID string) (services.CascadeResult, error)
	SuspendUser(ctx context.Context, admin services.Actor, userID string, suspended bool) (*domain.User, error)
	VerifyUser(ctx context.Context, userID string, verified bool) (*domain.User, error)
	SetListingAvailability(ctx context.Context, listingID string, available bool) (*domain.Listing, error)
	SetListingHidden(ctx context.Context, listingID string, hidden bool) (*domain.Listing, error)
	DeleteListing(ctx context.Context, listingID string) error
	ListUsers(ctx context.Context, f repo.UserFilter, page, pageSize int) (services.Page[domain.User], error)
	Stats(ctx context.Context) (services.PlatformStats, error)
}

// ReportService covers complaint filing and triage.
type ReportService interface {
	File(ctx context.Context, reporter services.Actor, in services.ReportInput) (*domain.Report, error)
	List(ctx context.Context, status string, page, pageSize int) (services.Page[domain.Report], error)
	Resolve(ctx context.Context, admin services.Actor, id, status string) (*domain.Report, error)
}

// IdempotencyService persists the outcome of keyed create requests.
type IdempotencyService interface {
	Remember(ctx context.Context, userID, scope, key, resourceID string, status int) error
}

// ImageStore persists uploaded images.
type ImageStore interface {
	Save(r io.Reader) (string, *imaging.ProcessResult, error)
}

//
// Handler wiring
//

// Deps bundles the services the handlers depend on.
type Deps struct {
	Auth         AuthService
	Listings     ListingService
	Transactions TransactionService
	Reviews      ReviewService
	Messages     MessageService
	Moderation   ModerationService
	Reports      ReportService
	Idempotency  IdempotencyService
	Images       ImageStore
}

// Handlers groups every HTTP endpoint. It depends on abstract service
// interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	auth     AuthService
	listings ListingService
	txs      TransactionService
	reviews  ReviewService
	msgs     MessageService
	mod      ModerationService
	reports  ReportService
	idem     IdempotencyService
	images   ImageStore
}

// New constructs a Handlers instance bound to the given services.
func New(d Deps) *Handlers {
	return &Handlers{
		auth:     d.Auth,
		listings: d.Listings,
		txs:      d.Transactions,
		reviews:  d.Reviews,
		msgs:     d.Messages,
		mod:      d.Moderation,
		reports:  d.Reports,
		idem:     d.Idempotency,
		images:   d.Images,
	}
}

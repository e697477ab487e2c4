package domain

import "time"

// Transaction states. Completed and cancelled are terminal.
const (
	TxPending   = "pending"
	TxCompleted = "completed"
	TxCancelled = "cancelled"
)

// Transaction is a ledger row for an exchange over one listing. Rows are
// never deleted and carry a snapshot of the listing title so they outlive
// the listing.
type Transaction struct {
	ID           string     `json:"id"                     gorm:"type:char(36);primaryKey"`
	ListingID    string     `json:"listing_id"             gorm:"type:char(36);not null;index"`
	ListingTitle string     `json:"listing_title"          gorm:"type:varchar(200);not null"`
	SellerID     string     `json:"seller_id"              gorm:"type:char(36);not null;index:idx_tx_seller"`
	BuyerID      string     `json:"buyer_id"               gorm:"type:char(36);not null;index:idx_tx_buyer;check:buyer_id <> seller_id"`
	Amount       float64    `json:"amount"                 gorm:"not null;default:0;check:amount >= 0"`
	Status       string     `json:"status"                 gorm:"type:varchar(16);not null;default:'pending';index;check:status IN ('pending','completed','cancelled')"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" gorm:"index"`
	CreatedAt    time.Time  `json:"created_at"             gorm:"index"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Transaction.
func (Transaction) TableName() string { return "transactions" }

// IsTerminal reports whether no further transition is allowed.
func (t Transaction) IsTerminal() bool {
	return t.Status == TxCompleted || t.Status == TxCancelled
}

// Involves reports whether userID is the buyer or the seller.
func (t Transaction) Involves(userID string) bool {
	return userID != "" && (t.BuyerID == userID || t.SellerID == userID)
}

// Counterparty returns the other side of the transaction for userID.
func (t Transaction) Counterparty(userID string) string {
	if t.BuyerID == userID {
		return t.SellerID
	}
	return t.BuyerID
}

// TransactionFilter selects ledger rows. Empty fields do not constrain;
// Participant matches either side.
type TransactionFilter struct {
	BuyerID     string
	SellerID    string
	Participant string
	Status      string
	ListingID   string
}

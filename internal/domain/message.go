package domain

import "time"

// Message is a single entry in a two-party conversation. Messages are
// append-only; only IsRead changes after creation.
//
// ListingTitle is a snapshot taken when the message was sent so the thread
// still renders after the listing is deleted.
type Message struct {
	ID             string    `json:"id"                       gorm:"type:char(36);primaryKey"`
	ConversationID string    `json:"conversation_id"          gorm:"type:varchar(80);not null;index:idx_msgs_conv,priority:1"`
	SenderID       string    `json:"sender_id"                gorm:"type:char(36);not null;index"`
	ReceiverID     string    `json:"receiver_id"              gorm:"type:char(36);not null;index:idx_msgs_receiver_read,priority:1"`
	Content        string    `json:"content"                  gorm:"type:text;not null"`
	ListingID      *string   `json:"listing_id,omitempty"     gorm:"type:char(36)"`
	ListingTitle   *string   `json:"listing_title,omitempty"  gorm:"type:varchar(200)"`
	IsRead         bool      `json:"is_read"                  gorm:"not null;default:false;index:idx_msgs_receiver_read,priority:2"`
	CreatedAt      time.Time `json:"created_at"               gorm:"index:idx_msgs_conv,priority:2"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Conversation is a read projection over messages; it is never stored.
type Conversation struct {
	ID           ConversationKey `json:"id"`
	Other        *UserSummary    `json:"other_user,omitempty"`
	OtherID      string          `json:"other_user_id"`
	LastMessage  Message         `json:"last_message"`
	ListingID    *string         `json:"listing_id,omitempty"`
	ListingTitle *string         `json:"listing_title,omitempty"`
	UnreadCount  int64           `json:"unread_count"`
}

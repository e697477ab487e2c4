// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model and the conversation projections derived from it.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/campus-market/internal/domain"
)

// CreateMessage inserts m, assigning a UUID and UTC timestamp when unset.
func CreateMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(m).Error
}

// ListConversationPage returns messages of one conversation ordered
// deterministically (CreatedAt ASC, ID ASC).
func ListConversationPage(ctx context.Context, db *gorm.DB, key domain.ConversationKey, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ?", key.String()).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountConversation returns the number of messages in a conversation.
func CountConversation(ctx context.Context, db *gorm.DB, key domain.ConversationKey) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("conversation_id = ?", key.String()).
		Count(&total).Error
	return total, err
}

// ConversationRow is one conversation touching a user: its latest message,
// its latest message that references a listing (nil when none does) and the
// user's unread count.
type ConversationRow struct {
	ConversationID string
	Unread         int64
	Last           domain.Message
	Ref            *domain.Message
}

// conversationHeadsSQL keeps, per conversation, the newest message and the
// newest listing-referencing message. The unread count rides along on every
// row as a window sum.
const conversationHeadsSQL = `
SELECT * FROM (
	SELECT messages.*,
		SUM(CASE WHEN receiver_id = ? AND is_read = ? THEN 1 ELSE 0 END)
			OVER (PARTITION BY conversation_id) AS unread,
		ROW_NUMBER() OVER (PARTITION BY conversation_id
			ORDER BY created_at DESC, id DESC) AS rn_all,
		ROW_NUMBER() OVER (PARTITION BY conversation_id, listing_id IS NULL
			ORDER BY created_at DESC, id DESC) AS rn_ref
	FROM messages
	WHERE sender_id = ? OR receiver_id = ?
) heads
WHERE rn_all = 1 OR (listing_id IS NOT NULL AND rn_ref = 1)
ORDER BY conversation_id`

type conversationHead struct {
	domain.Message
	Unread int64
	RnAll  int64
	RnRef  int64
}

// ConversationsFor builds every conversation touching userID in a single
// query, ordered by conversation id.
func ConversationsFor(ctx context.Context, db *gorm.DB, userID string) ([]ConversationRow, error) {
	var heads []conversationHead
	if err := db.WithContext(ctx).
		Raw(conversationHeadsSQL, userID, false, userID, userID).
		Scan(&heads).Error; err != nil {
		return nil, err
	}

	out := make([]ConversationRow, 0, len(heads))
	idx := make(map[string]int, len(heads))
	for _, h := range heads {
		i, ok := idx[h.ConversationID]
		if !ok {
			i = len(out)
			idx[h.ConversationID] = i
			out = append(out, ConversationRow{ConversationID: h.ConversationID, Unread: h.Unread})
		}
		if h.RnAll == 1 {
			out[i].Last = h.Message
		}
		if h.ListingID != nil && h.RnRef == 1 {
			m := h.Message
			out[i].Ref = &m
		}
	}
	return out, nil
}

// MarkConversationRead flips is_read for every message in the conversation
// addressed to receiverID and returns how many rows changed.
func MarkConversationRead(ctx context.Context, db *gorm.DB, key domain.ConversationKey, receiverID string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", key.String(), receiverID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// CountUnread returns how many messages addressed to userID are unread.
func CountUnread(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Count(&total).Error
	return total, err
}

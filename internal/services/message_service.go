// Package services – MessageService
//
// This file implements the conversation log. Messages are appended under a
// conversation key derived from the two participant ids; conversations are
// a read projection grouped from those messages and are never stored.
// Clients poll; there is no push delivery.
//
// Observability: Send is OpenTelemetry-instrumented; spans include the
// sender and conversation identifiers.
package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/campus-market/internal/domain"
	"github.com/tbourn/campus-market/internal/repo"
)

const maxMessageRunes = 2000

// SendMessageInput is a message from the caller to ReceiverID, optionally
// about a listing.
type SendMessageInput struct {
	ReceiverID string
	Content    string
	ListingID  *string
}

// MessageService coordinates message persistence and conversation views.
type MessageService struct {
	DB *gorm.DB
}

// Send appends a message from sender to in.ReceiverID. The message starts
// unread for the receiver. A referenced listing's title is copied onto the
// message so the thread still reads correctly after the listing is gone.
func (s *MessageService) Send(ctx context.Context, sender Actor, in SendMessageInput) (*domain.Message, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "Send",
		trace.WithAttributes(attribute.String("user.id", sender.ID)),
	)
	defer span.End()

	in.Content = strings.TrimSpace(in.Content)
	in.ReceiverID = strings.TrimSpace(in.ReceiverID)
	v := &ValidationError{}
	switch {
	case in.ReceiverID == "":
		v.Add("receiver_id", "receiver_id is required")
	case in.ReceiverID == sender.ID:
		v.Add("receiver_id", "you cannot message yourself")
	}
	checkRequiredText(v, "content", in.Content, maxMessageRunes)
	if err := v.Err(); err != nil {
		return nil, err
	}

	if _, err := repo.GetUser(ctx, s.DB, in.ReceiverID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	key := domain.NewConversationKey(sender.ID, in.ReceiverID)
	m := &domain.Message{
		ConversationID: key.String(),
		SenderID:       sender.ID,
		ReceiverID:     in.ReceiverID,
		Content:        in.Content,
	}
	if in.ListingID != nil && strings.TrimSpace(*in.ListingID) != "" {
		l, err := repo.GetListing(ctx, s.DB, strings.TrimSpace(*in.ListingID))
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrListingNotFound
			}
			return nil, err
		}
		id, title := l.ID, l.Title
		m.ListingID, m.ListingTitle = &id, &title
	}
	span.SetAttributes(attribute.String("conversation.id", key.String()))
	if err := repo.CreateMessage(ctx, s.DB, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Conversations lists every conversation touching actor, most recently
// active first, each with its latest message, the other participant, the
// latest referenced listing and the actor's unread count.
func (s *MessageService) Conversations(ctx context.Context, actor Actor) ([]domain.Conversation, error) {
	rows, err := repo.ConversationsFor(ctx, s.DB, actor.ID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Conversation, 0, len(rows))
	others := make([]string, 0, len(rows))
	for _, row := range rows {
		key := domain.ConversationKey(row.ConversationID)
		conv := domain.Conversation{
			ID:          key,
			OtherID:     key.Other(actor.ID),
			LastMessage: row.Last,
			UnreadCount: row.Unread,
		}
		if row.Ref != nil {
			conv.ListingID, conv.ListingTitle = row.Ref.ListingID, row.Ref.ListingTitle
		}
		out = append(out, conv)
		others = append(others, conv.OtherID)
	}

	sums, err := repo.GetUserSummaries(ctx, s.DB, others)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if sum, ok := sums[out[i].OtherID]; ok {
			out[i].Other = &sum
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		la, lb := out[a].LastMessage, out[b].LastMessage
		if !la.CreatedAt.Equal(lb.CreatedAt) {
			return la.CreatedAt.After(lb.CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

// Conversation returns a page of one thread, oldest first. id is either a
// conversation key or the other participant's user id.
func (s *MessageService) Conversation(ctx context.Context, actor Actor, id string, page, pageSize int) (Page[domain.Message], error) {
	page, pageSize, offset := normalizePage(page, pageSize)
	out := Page[domain.Message]{Items: []domain.Message{}, Page: page, PageSize: pageSize}

	key, err := s.resolveKey(actor, id)
	if err != nil {
		return out, err
	}
	total, err := repo.CountConversation(ctx, s.DB, key)
	if err != nil {
		return out, err
	}
	out.Total = total
	if total == 0 {
		return out, nil
	}
	items, err := repo.ListConversationPage(ctx, s.DB, key, offset, pageSize)
	if err != nil {
		return out, err
	}
	out.Items = items
	return out, nil
}

// MarkRead flags every message addressed to actor in the conversation as
// read and returns how many changed.
func (s *MessageService) MarkRead(ctx context.Context, actor Actor, id string) (int64, error) {
	key, err := s.resolveKey(actor, id)
	if err != nil {
		return 0, err
	}
	return repo.MarkConversationRead(ctx, s.DB, key, actor.ID)
}

// UnreadCount returns how many messages addressed to actor are unread.
func (s *MessageService) UnreadCount(ctx context.Context, actor Actor) (int64, error) {
	return repo.CountUnread(ctx, s.DB, actor.ID)
}

func (s *MessageService) resolveKey(actor Actor, id string) (domain.ConversationKey, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", invalid("id", "conversation id is required")
	}
	if key, _, err := domain.ParseConversationKey(id); err == nil {
		if !key.Has(actor.ID) {
			return "", ErrNotInConversation
		}
		return key, nil
	}
	if id == actor.ID {
		return "", invalid("id", "you cannot open a conversation with yourself")
	}
	return domain.NewConversationKey(actor.ID, id), nil
}

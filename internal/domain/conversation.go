package domain

import (
	"errors"
	"strings"
)

// conversationSep joins the two participant ids. UUIDs never contain it.
const conversationSep = "_"

// ConversationKey identifies a two-party thread. It is a pure function of
// the two participant ids, so either side computes the same key.
type ConversationKey string

// NewConversationKey builds the key for users a and b, independent of order.
func NewConversationKey(a, b string) ConversationKey {
	if b < a {
		a, b = b, a
	}
	return ConversationKey(a + conversationSep + b)
}

// ErrBadConversationKey is returned when a key does not split into two ids.
var ErrBadConversationKey = errors.New("malformed conversation key")

// ParseConversationKey validates k and returns its participants in sorted order.
func ParseConversationKey(k string) (ConversationKey, [2]string, error) {
	a, b, ok := strings.Cut(k, conversationSep)
	if !ok || a == "" || b == "" || strings.Contains(b, conversationSep) || b < a {
		return "", [2]string{}, ErrBadConversationKey
	}
	return ConversationKey(k), [2]string{a, b}, nil
}

// Participants returns both ids in the key.
func (k ConversationKey) Participants() (string, string) {
	a, b, _ := strings.Cut(string(k), conversationSep)
	return a, b
}

// Has reports whether userID takes part in the conversation.
func (k ConversationKey) Has(userID string) bool {
	a, b := k.Participants()
	return userID != "" && (a == userID || b == userID)
}

// Other returns the participant that is not userID.
func (k ConversationKey) Other(userID string) string {
	a, b := k.Participants()
	if a == userID {
		return b
	}
	return a
}

func (k ConversationKey) String() string { return string(k) }

package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dmc-digital/chat-session-engine/internal/model"
)

// signature is the deduplication key: the backend id when the server has
// assigned one, otherwise a composite of sender, trimmed text, timestamp
// and conversation id.
func signature(m model.Message) string {
	if m.BackendID != nil {
		return fmt.Sprintf("backend-%d", *m.BackendID)
	}

	conversation := ""
	if m.ConversationID != nil {
		conversation = fmt.Sprintf("%d", *m.ConversationID)
	}

	return strings.Join([]string{
		string(m.Sender),
		strings.TrimSpace(m.Text),
		m.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		conversation,
	}, "|")
}

// Merge folds incoming messages into base. On a key collision the incoming
// fields win, except that the existing local id is kept so the UI never
// re-keys a rendered message, and the read receipt is OR-combined so it
// never regresses once true. The result is re-sorted ascending by creation
// time with a stable sort, so equal timestamps keep base-then-incoming
// relative order. Merging the same incoming set twice is a no-op.
func Merge(base, incoming []model.Message) []model.Message {
	if len(incoming) == 0 && len(base) == 0 {
		return nil
	}

	items := make([]model.Message, len(base))
	copy(items, base)

	indexBySignature := make(map[string]int, len(items))
	for i, item := range items {
		indexBySignature[signature(item)] = i
	}

	for _, item := range incoming {
		sig := signature(item)
		existingIndex, exists := indexBySignature[sig]
		if !exists {
			items = append(items, item)
			indexBySignature[sig] = len(items) - 1
			continue
		}

		current := items[existingIndex]
		merged := item
		merged.ID = current.ID
		merged.Read = mergeRead(current.Read, item.Read)
		if merged.ConversationID == nil {
			merged.ConversationID = current.ConversationID
		}
		items[existingIndex] = merged
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	return items
}

func mergeRead(current, incoming *bool) *bool {
	if (current != nil && *current) || (incoming != nil && *incoming) {
		return model.BoolPtr(true)
	}
	if incoming != nil {
		return incoming
	}
	return current
}

// MarkConversationRead sets the read receipt on every client-sent message
// of the given conversation. Used by the push channel's "messages read"
// event.
func MarkConversationRead(messages []model.Message, conversationID int64) []model.Message {
	updated := make([]model.Message, len(messages))
	copy(updated, messages)

	for i, m := range updated {
		if m.Sender == model.SenderClient && m.ConversationID != nil && *m.ConversationID == conversationID {
			updated[i].Read = model.BoolPtr(true)
		}
	}

	return updated
}

// LatestConversationID returns the conversation id carried by the most
// recent message that has one, or nil.
func LatestConversationID(messages []model.Message) *int64 {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].ConversationID != nil {
			return messages[i].ConversationID
		}
	}
	return nil
}

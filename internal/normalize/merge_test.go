package normalize

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/dmc-digital/chat-session-engine/internal/model"
)

func fixedNow() time.Time {
	return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
}

func backendMessage(id int64, text string, read bool, at time.Time) model.Message {
	return model.Message{
		ID:             fmt.Sprintf("historial-%d", id),
		BackendID:      model.Int64Ptr(id),
		ConversationID: model.Int64Ptr(7),
		Sender:         model.SenderOperator,
		Text:           text,
		Read:           model.BoolPtr(read),
		CreatedAt:      at,
		Kind:           model.KindChat,
	}
}

func texts(messages []model.Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Text)
	}
	return out
}

func TestMergeDeduplicatesByBackendID(t *testing.T) {
	at := fixedNow()

	first := backendMessage(42, "hola", false, at)
	second := backendMessage(42, "hola", true, at)

	merged := Merge([]model.Message{first}, []model.Message{second})

	if len(merged) != 1 {
		t.Fatalf("expected 1 message, got %d", len(merged))
	}
	if *merged[0].BackendID != 42 {
		t.Fatalf("unexpected backend id %d", *merged[0].BackendID)
	}
	if !merged[0].IsRead() {
		t.Fatal("read receipt should be true after merging a read copy")
	}
	if merged[0].ID != first.ID {
		t.Fatalf("local id must stay stable, got %q", merged[0].ID)
	}
}

func TestMergeReadReceiptNeverRegresses(t *testing.T) {
	at := fixedNow()

	read := backendMessage(42, "hola", true, at)
	unread := backendMessage(42, "hola", false, at)

	merged := Merge([]model.Message{read}, []model.Message{unread})

	if len(merged) != 1 {
		t.Fatalf("expected 1 message, got %d", len(merged))
	}
	if !merged[0].IsRead() {
		t.Fatal("read receipt regressed to false")
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	at := fixedNow()

	base := []model.Message{
		backendMessage(1, "uno", false, at),
		{
			ID:        "cliente-x",
			Sender:    model.SenderClient,
			Text:      "local",
			CreatedAt: at.Add(time.Second),
			Kind:      model.KindChat,
		},
	}
	incoming := []model.Message{
		backendMessage(1, "uno", true, at),
		backendMessage(2, "dos", false, at.Add(2*time.Second)),
	}

	once := Merge(base, incoming)
	twice := Merge(once, incoming)

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("merge is not idempotent:\nonce:  %v\ntwice: %v", texts(once), texts(twice))
	}
}

func TestMergeCompositeKeyWithoutBackendID(t *testing.T) {
	at := fixedNow()

	local := model.Message{
		ID:        "cliente-a",
		Sender:    model.SenderClient,
		Text:      "  hola  ",
		CreatedAt: at,
		Kind:      model.KindChat,
	}
	duplicate := model.Message{
		ID:        "cliente-b",
		Sender:    model.SenderClient,
		Text:      "hola",
		CreatedAt: at,
		Kind:      model.KindChat,
	}

	merged := Merge([]model.Message{local}, []model.Message{duplicate})

	if len(merged) != 1 {
		t.Fatalf("trimmed-text duplicates should collapse, got %d messages", len(merged))
	}
	if merged[0].ID != "cliente-a" {
		t.Fatalf("existing id should win, got %q", merged[0].ID)
	}
}

func TestMergeSortsChronologicallyAndStable(t *testing.T) {
	at := fixedNow()

	base := []model.Message{
		backendMessage(3, "tercero", false, at.Add(2*time.Second)),
		backendMessage(1, "primero", false, at),
	}
	incoming := []model.Message{
		backendMessage(2, "segundo", false, at.Add(time.Second)),
		// Same timestamp as backend 1: must land after it (base first).
		{
			ID:        "cliente-tie",
			Sender:    model.SenderClient,
			Text:      "empate",
			CreatedAt: at,
			Kind:      model.KindChat,
		},
	}

	merged := Merge(base, incoming)

	want := []string{"primero", "empate", "segundo", "tercero"}
	if got := texts(merged); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected order %v, want %v", got, want)
	}

	for i := 1; i < len(merged); i++ {
		if merged[i].CreatedAt.Before(merged[i-1].CreatedAt) {
			t.Fatalf("createdAt not non-decreasing at index %d", i)
		}
	}
}

func TestMergeIncomingFieldsWin(t *testing.T) {
	at := fixedNow()

	base := backendMessage(5, "borrador", false, at)
	update := backendMessage(5, "definitivo", false, at.Add(time.Second))

	merged := Merge([]model.Message{base}, []model.Message{update})

	if len(merged) != 1 {
		t.Fatalf("expected 1 message, got %d", len(merged))
	}
	if merged[0].Text != "definitivo" {
		t.Fatalf("incoming text should win, got %q", merged[0].Text)
	}
	if !merged[0].CreatedAt.Equal(at.Add(time.Second)) {
		t.Fatal("incoming timestamp should win")
	}
}

func TestMarkConversationRead(t *testing.T) {
	at := fixedNow()

	messages := []model.Message{
		{
			ID:             "cliente-1",
			Sender:         model.SenderClient,
			ConversationID: model.Int64Ptr(7),
			Text:           "mío",
			Read:           model.BoolPtr(false),
			CreatedAt:      at,
			Kind:           model.KindChat,
		},
		{
			ID:             "cliente-2",
			Sender:         model.SenderClient,
			ConversationID: model.Int64Ptr(9),
			Text:           "otra conversación",
			Read:           model.BoolPtr(false),
			CreatedAt:      at,
			Kind:           model.KindChat,
		},
		backendMessage(1, "del operador", false, at),
	}

	updated := MarkConversationRead(messages, 7)

	if !updated[0].IsRead() {
		t.Fatal("client message in conversation 7 should be read")
	}
	if updated[1].IsRead() {
		t.Fatal("client message in another conversation must not change")
	}
	if updated[2].IsRead() {
		t.Fatal("operator message must not change")
	}
	if messages[0].IsRead() {
		t.Fatal("input slice must not be mutated")
	}
}

func TestLatestConversationID(t *testing.T) {
	at := fixedNow()

	if got := LatestConversationID(nil); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}

	messages := []model.Message{
		{ID: "a", Sender: model.SenderClient, Text: "sin id", CreatedAt: at},
		{ID: "b", Sender: model.SenderClient, Text: "con id", ConversationID: model.Int64Ptr(3), CreatedAt: at},
		{ID: "c", Sender: model.SenderSystem, Text: "local", CreatedAt: at},
	}

	got := LatestConversationID(messages)
	if got == nil || *got != 3 {
		t.Fatalf("expected conversation id 3, got %v", got)
	}
}

package bot

import (
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auto-order/internal/models"
)

func TestParseAddProduct(t *testing.T) {
	p, err := ParseAddProduct("Netflix 1 Month | 20.000 | shared profile | account=1")
	require.NoError(t, err)
	assert.Equal(t, "Netflix 1 Month", p.Name)
	assert.Equal(t, int64(20000), p.Price)
	assert.Equal(t, "shared profile", p.Note)
	assert.True(t, p.RequiresAccountInfo)

	p, err = ParseAddProduct("Spotify | 15000")
	require.NoError(t, err)
	assert.False(t, p.RequiresAccountInfo)
	assert.Empty(t, p.Note)

	_, err = ParseAddProduct("Spotify")
	assert.Error(t, err)
	_, err = ParseAddProduct("Spotify | -5")
	assert.Error(t, err)
}

func TestParseSetProduct(t *testing.T) {
	p, err := ParseSetProduct("3 | Spotify | 15000 | active=0 | family plan")
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.ID)
	assert.False(t, p.Active)
	assert.Equal(t, "family plan", p.Note)

	p, err = ParseSetProduct("#4 | Spotify | 15000")
	require.NoError(t, err)
	assert.Equal(t, int64(4), p.ID)
	assert.True(t, p.Active)

	_, err = ParseSetProduct("x | Spotify | 15000")
	assert.Error(t, err)
}

func TestParseAddVoucher(t *testing.T) {
	v, err := ParseAddVoucher("hemat10 | percent | 10 | 100 | 2024-12-31", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "hemat10", v.Code)
	assert.Equal(t, models.DiscountPercent, v.DiscountType)
	assert.Equal(t, int64(10), v.Value)
	assert.Equal(t, 100, v.MaxUses)
	require.NotNil(t, v.ExpiresOn)
	assert.Equal(t, "2024-12-31", v.ExpiresOn.Format("2006-01-02"))

	v, err = ParseAddVoucher("FLAT | fixed | 5000", nil)
	require.NoError(t, err)
	assert.Zero(t, v.MaxUses)
	assert.Nil(t, v.ExpiresOn)

	_, err = ParseAddVoucher("X | bogus | 5", nil)
	assert.Error(t, err)
	_, err = ParseAddVoucher("X | fixed | 5 | -1", nil)
	assert.Error(t, err)
	_, err = ParseAddVoucher("X | fixed | 5 | 1 | 31/12/2024", nil)
	assert.Error(t, err)
}

func TestLimiter(t *testing.T) {
	l := NewLimiter(0.001, 2)
	assert.True(t, l.Allow(1))
	assert.True(t, l.Allow(1))
	assert.False(t, l.Allow(1))
	assert.True(t, l.Allow(2))

	unlimited := NewLimiter(0, 1)
	for i := 0; i < 50; i++ {
		assert.True(t, unlimited.Allow(1))
	}
}

func TestLimiter_BoundedUnderActiveUsers(t *testing.T) {
	l := NewLimiter(0.001, 1)
	l.maxKeys = 3

	for id := int64(1); id <= 20; id++ {
		assert.True(t, l.Allow(id))
		assert.LessOrEqual(t, len(l.users), 3)
	}

	// the newest user keeps its drained bucket
	assert.False(t, l.Allow(20))
}

func TestNotifier(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender)
	ctx := context.Background()

	paid := &models.OrderEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeOrderPaid},
		OrderID:   12,
		UserID:    42,
		Amount:    36200,
		Lane:      models.LaneManual,
		Status:    models.StatusPaid,
	}
	require.NoError(t, n.NotifyUser(ctx, 42, paid))
	assert.Equal(t, int64(42), sender.last().chatID)
	assert.Contains(t, sender.last().text, "order #12 (Rp36.200)")

	require.NoError(t, n.NotifyAdmin(ctx, 1000, paid))
	assert.Equal(t, []string{"adm_done_12"}, sender.last().kb.data())

	proof := &models.OrderEvent{
		BaseEvent:    models.BaseEvent{EventType: models.EventTypeOrderProofSubmitted},
		OrderID:      12,
		Lane:         models.LaneManual,
		Status:       models.StatusProofSubmitted,
		ProofFileID:  "file-1",
		ProofCaption: "#12",
	}
	require.NoError(t, n.NotifyAdmin(ctx, 1000, proof))
	last := sender.last()
	assert.Equal(t, "photo", last.kind)
	assert.Equal(t, "file-1", last.fileID)
	assert.Equal(t, []string{"adm_approve_12", "adm_reject_12", "adm_cancel_12"}, last.kb.data())

	rejected := &models.OrderEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeOrderRejected},
		OrderID:   12,
		AdminNote: "blurry photo",
	}
	require.NoError(t, n.NotifyUser(ctx, 42, rejected))
	assert.Contains(t, sender.last().text, "Note: blurry photo")
}

func TestToEvent(t *testing.T) {
	from := &tgbotapi.User{ID: 42, UserName: "budi"}
	chat := &tgbotapi.Chat{ID: 42}

	ev, ok := toEvent(tgbotapi.Update{Message: &tgbotapi.Message{
		From: from, Chat: chat, Text: "/addprod Netflix | 20000",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 8}},
	}})
	require.True(t, ok)
	assert.Equal(t, EventCommand, ev.Kind)
	assert.Equal(t, "addprod", ev.Command)
	assert.Equal(t, "Netflix | 20000", ev.Args)
	assert.Equal(t, "@budi", ev.Username)

	ev, ok = toEvent(tgbotapi.Update{Message: &tgbotapi.Message{
		From: from, Chat: chat, Caption: "#12",
		Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}},
	}})
	require.True(t, ok)
	assert.Equal(t, EventPhoto, ev.Kind)
	assert.Equal(t, "large", ev.PhotoID)
	assert.Equal(t, "#12", ev.Caption)

	ev, ok = toEvent(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID: "cb-1", From: from, Data: "qty_inc",
		Message: &tgbotapi.Message{MessageID: 9, Chat: chat},
	}})
	require.True(t, ok)
	assert.Equal(t, EventCallback, ev.Kind)
	assert.Equal(t, 9, ev.MessageID)
	assert.Equal(t, "qty_inc", ev.Data)

	_, ok = toEvent(tgbotapi.Update{Message: &tgbotapi.Message{From: from, Chat: chat}})
	assert.False(t, ok)
}

func TestCatalogView(t *testing.T) {
	text, kb := catalogView([]models.Product{{ID: 7, Name: "Netflix", Price: 20000, Note: "1 month"}})
	assert.Contains(t, text, "Netflix - Rp20.000")
	assert.Equal(t, []string{"buy_7", cbHome}, kb.data())

	text, _ = catalogView(nil)
	assert.Equal(t, "The catalog is empty right now.", text)
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qzero991/telegram-rpg-trade-client/internal/arbitrage"
	"github.com/Qzero991/telegram-rpg-trade-client/internal/database"
	"github.com/Qzero991/telegram-rpg-trade-client/internal/extract"
	"github.com/Qzero991/telegram-rpg-trade-client/internal/matcher"
)

// fakeExtractor maps message text to scripted entries.
type fakeExtractor struct {
	entries map[string][]extract.RawEntry
}

func (f *fakeExtractor) Extract(_ context.Context, message string) ([]extract.RawEntry, error) {
	return f.entries[message], nil
}

type fakeNotifier struct {
	alerts []*database.ArbitrageContext
}

func (n *fakeNotifier) NotifyArbitrage(_ context.Context, ac *database.ArbitrageContext) error {
	n.alerts = append(n.alerts, ac)
	return nil
}

type env struct {
	db       *database.Database
	notifier *fakeNotifier
	coord    *Coordinator
}

func newEnv(t *testing.T, extractor Extractor) *env {
	t.Helper()
	dsn := fmt.Sprintf("file:pipe_%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.New(dsn)
	require.NoError(t, err)

	require.NoError(t, db.InsertItem(&database.Item{
		GameID: 42, Name: "Меч рыцаря", Kind: database.KindEquipment,
		Grade: "[II]", Duration: "undefined",
	}))

	items, err := db.ListItems()
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	coord := NewCoordinator(db, matcher.New(items), extractor, arbitrage.NewDetector(db, notifier))
	return &env{db: db, notifier: notifier, coord: coord}
}

func entry(offerType string, price int) extract.RawEntry {
	return extract.RawEntry{
		ItemName:     "Меч рыцаря",
		ItemGrade:    "undefined",
		ItemDuration: "undefined",
		PriceForOne:  json.Number(fmt.Sprint(price)),
		OfferType:    offerType,
		Currency:     "money",
	}
}

func msg(sender int64, text string) InboundMessage {
	return InboundMessage{SenderID: sender, SenderUsername: "trader", Text: text, SentAt: time.Now().UTC()}
}

func TestProcessMessage_CrossingPairEndToEnd(t *testing.T) {
	e := newEnv(t, &fakeExtractor{entries: map[string][]extract.RawEntry{
		"куплю мечи за 150": {entry("buy", 150)},
		"продам мечи по 100": {entry("sell", 100)},
	}})
	ctx := context.Background()

	e.coord.ProcessMessage(ctx, msg(1, "куплю мечи за 150"))
	assert.Empty(t, e.notifier.alerts)

	e.coord.ProcessMessage(ctx, msg(2, "продам мечи по 100"))

	require.Len(t, e.notifier.alerts, 1)
	rec := e.notifier.alerts[0].Arbitrage
	assert.Equal(t, 50, rec.ProfitPerUnit)
	assert.Equal(t, database.CurrencyMoney, rec.Currency)
	assert.Equal(t, "Меч рыцаря", e.notifier.alerts[0].Item.Name)
}

func TestProcessMessage_DuplicateMessageSkipped(t *testing.T) {
	e := newEnv(t, &fakeExtractor{entries: map[string][]extract.RawEntry{
		"куплю мечи за 150": {entry("buy", 150)},
	}})
	ctx := context.Background()

	e.coord.ProcessMessage(ctx, msg(1, "куплю мечи за 150"))
	e.coord.ProcessMessage(ctx, msg(2, "куплю мечи за 150"))

	var count int64
	offers, err := e.db.FindCrossingOffers(&database.Offer{
		ItemID: 1, Type: database.OfferSell, Currency: database.CurrencyMoney, UnitPrice: 0,
	})
	require.NoError(t, err)
	count = int64(len(offers))
	assert.Equal(t, int64(1), count)
}

func TestProcessMessage_UnresolvedMentionSkipped(t *testing.T) {
	raw := entry("buy", 150)
	raw.ItemName = "яяяяяяяяяя"
	e := newEnv(t, &fakeExtractor{entries: map[string][]extract.RawEntry{"шум": {raw}}})

	e.coord.ProcessMessage(context.Background(), msg(1, "шум"))
	assert.Empty(t, e.notifier.alerts)
}

func TestValidateEntry(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*extract.RawEntry)
		wantErr bool
	}{
		{name: "valid", mutate: func(e *extract.RawEntry) {}},
		{name: "fractional_price", mutate: func(e *extract.RawEntry) { e.PriceForOne = "10.5" }, wantErr: true},
		{name: "unknown_currency", mutate: func(e *extract.RawEntry) { e.Currency = "gold" }, wantErr: true},
		{name: "unknown_offer_type", mutate: func(e *extract.RawEntry) { e.OfferType = "trade" }, wantErr: true},
		{name: "empty_name", mutate: func(e *extract.RawEntry) { e.ItemName = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := entry("buy", 100)
			tt.mutate(&raw)
			got, err := ValidateEntry(raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, database.OfferBuy, got.Type)
			assert.Equal(t, 100, got.UnitPrice)
		})
	}
}

func TestValidateEntry_EmptyHintsDefaultToUndefined(t *testing.T) {
	raw := entry("sell", 10)
	raw.ItemGrade = ""
	raw.ItemDuration = ""

	got, err := ValidateEntry(raw)
	require.NoError(t, err)
	assert.Equal(t, matcher.GradeUndefined, got.Grade)
	assert.Equal(t, matcher.GradeUndefined, got.Duration)
}

func TestRun_DrainsChannelInOrderAndStopsOnClose(t *testing.T) {
	e := newEnv(t, &fakeExtractor{entries: map[string][]extract.RawEntry{
		"куплю мечи за 150": {entry("buy", 150)},
		"продам мечи по 100": {entry("sell", 100)},
	}})

	in := make(chan InboundMessage, 2)
	in <- msg(1, "куплю мечи за 150")
	in <- msg(2, "продам мечи по 100")
	close(in)

	err := e.coord.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, e.notifier.alerts, 1)
}

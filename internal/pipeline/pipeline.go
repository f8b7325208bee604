// Package pipeline wires inbound trade messages through extraction,
// resolution, offer persistence and arbitrage detection, strictly in
// arrival order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Qzero991/telegram-rpg-trade-client/internal/database"
	"github.com/Qzero991/telegram-rpg-trade-client/internal/extract"
	"github.com/Qzero991/telegram-rpg-trade-client/internal/matcher"
)

// InboundMessage is one trade-group message as delivered by the transport.
type InboundMessage struct {
	SenderID       int64
	SenderUsername string
	GroupMessageID int
	Text           string
	SentAt         time.Time
}

// Entry is a validated trade entry. Raw extraction output never crosses
// this boundary unchecked.
type Entry struct {
	ItemName  string
	Quantity  *int
	Grade     string
	Duration  string
	UnitPrice int
	Type      database.OfferType
	Currency  database.Currency
}

// ValidateEntry checks a raw extraction entry into a typed one. Entries with
// a non-integer price, unknown currency or unknown offer type are rejected.
func ValidateEntry(raw extract.RawEntry) (*Entry, error) {
	if raw.ItemName == "" {
		return nil, errors.New("empty item name")
	}

	price, err := raw.PriceForOne.Int64()
	if err != nil {
		return nil, fmt.Errorf("unit price %q is not an integer", raw.PriceForOne.String())
	}

	var offerType database.OfferType
	switch raw.OfferType {
	case "buy":
		offerType = database.OfferBuy
	case "sell":
		offerType = database.OfferSell
	default:
		return nil, fmt.Errorf("unknown offer type %q", raw.OfferType)
	}

	var currency database.Currency
	switch raw.Currency {
	case "cookies":
		currency = database.CurrencyCookies
	case "money":
		currency = database.CurrencyMoney
	default:
		return nil, fmt.Errorf("unknown currency %q", raw.Currency)
	}

	grade := raw.ItemGrade
	if grade == "" {
		grade = matcher.GradeUndefined
	}
	duration := raw.ItemDuration
	if duration == "" {
		duration = matcher.GradeUndefined
	}

	return &Entry{
		ItemName:  raw.ItemName,
		Quantity:  raw.Quantity,
		Grade:     grade,
		Duration:  duration,
		UnitPrice: int(price),
		Type:      offerType,
		Currency:  currency,
	}, nil
}

// Extractor is the external extraction collaborator.
type Extractor interface {
	Extract(ctx context.Context, message string) ([]extract.RawEntry, error)
}

// Detector runs arbitrage detection against a newly recorded offer.
type Detector interface {
	Detect(ctx context.Context, offer *database.Offer) (int, error)
}

// Ledger is the slice of the persistence contract the coordinator writes to.
type Ledger interface {
	InsertMessage(msg *database.Message) (uint, error)
	InsertOffer(offer *database.Offer) error
}

// Coordinator is the single sequential consumer of the inbound queue. No two
// entries are ever resolved or persisted concurrently.
type Coordinator struct {
	ledger    Ledger
	matcher   *matcher.Matcher
	extractor Extractor
	detector  Detector
}

func NewCoordinator(ledger Ledger, m *matcher.Matcher, extractor Extractor, detector Detector) *Coordinator {
	return &Coordinator{
		ledger:    ledger,
		matcher:   m,
		extractor: extractor,
		detector:  detector,
	}
}

// Run drains the inbound channel until it closes or the context is canceled.
func (c *Coordinator) Run(ctx context.Context, in <-chan InboundMessage) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-in:
			if !ok {
				return nil
			}
			c.ProcessMessage(ctx, msg)
		}
	}
}

// ProcessMessage handles one inbound message end to end. Every failure is
// local: it skips the message or entry and the queue moves on.
func (c *Coordinator) ProcessMessage(ctx context.Context, msg InboundMessage) {
	log.Info().Int64("sender", msg.SenderID).Str("text", firstLine(msg.Text)).
		Msg("New trade message")

	raws, err := c.extractor.Extract(ctx, msg.Text)
	if err != nil {
		log.Error().Err(err).Msg("Extraction failed, skipping message")
		return
	}
	if len(raws) == 0 {
		log.Debug().Msg("Message ignored, no valid parsed data")
		return
	}

	messageID, err := c.ledger.InsertMessage(&database.Message{
		SenderID:       msg.SenderID,
		SenderUsername: msg.SenderUsername,
		GroupMessageID: msg.GroupMessageID,
		Text:           msg.Text,
		SentAt:         msg.SentAt,
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			log.Debug().Msg("Duplicate message, skipping")
		} else {
			log.Error().Err(err).Msg("Message insertion failed, skipping")
		}
		return
	}

	for _, raw := range raws {
		c.processEntry(ctx, raw, messageID)
	}
}

func (c *Coordinator) processEntry(ctx context.Context, raw extract.RawEntry, messageID uint) {
	entry, err := ValidateEntry(raw)
	if err != nil {
		log.Debug().Err(err).Str("item", raw.ItemName).Msg("Skipping entry, failed validation")
		return
	}

	res, err := c.matcher.Match(entry.ItemName, entry.Grade, entry.Duration)
	if err != nil {
		log.Info().Err(err).Str("mention", entry.ItemName).Msg("Skipping entry, unresolved item")
		return
	}

	log.Info().Str("mention", entry.ItemName).Str("item", res.Item.Name).
		Float64("score", res.Score).Msg("Item resolved")

	offer := &database.Offer{
		MentionName: entry.ItemName,
		ItemName:    res.Item.Name,
		ItemID:      res.Item.ID,
		Quantity:    entry.Quantity,
		Type:        entry.Type,
		Currency:    entry.Currency,
		UnitPrice:   entry.UnitPrice,
		MessageID:   messageID,
	}
	if err := c.ledger.InsertOffer(offer); err != nil {
		log.Error().Err(err).Str("item", offer.ItemName).Msg("Offer insert failed, skipping entry")
		return
	}

	log.Info().Uint("offer_id", offer.ID).Str("item", offer.ItemName).
		Str("type", string(offer.Type)).Int("unit_price", offer.UnitPrice).
		Msg("Offer recorded")

	if _, err := c.detector.Detect(ctx, offer); err != nil {
		log.Error().Err(err).Uint("offer_id", offer.ID).Msg("Arbitrage detection failed")
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
		if i > 60 {
			return s[:i] + "…"
		}
	}
	return s
}

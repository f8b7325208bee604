// Package arbitrage detects profitable crossing pairs between opposite
// offers on the same item and currency.
package arbitrage

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/Qzero991/telegram-rpg-trade-client/internal/database"
)

// Ledger is the slice of the persistence contract the detector needs.
type Ledger interface {
	FindCrossingOffers(offer *database.Offer) ([]database.Offer, error)
	InsertArbitrage(a *database.Arbitrage) error
	GetArbitrageContext(id uint) (*database.ArbitrageContext, error)
}

// Notifier receives one call per materialized arbitrage record.
type Notifier interface {
	NotifyArbitrage(ctx context.Context, ac *database.ArbitrageContext) error
}

// Detector materializes arbitrage records for each crossing pair.
type Detector struct {
	ledger   Ledger
	notifier Notifier
}

func NewDetector(ledger Ledger, notifier Notifier) *Detector {
	return &Detector{ledger: ledger, notifier: notifier}
}

// Detect finds every open opposite-type offer crossing the newly recorded
// offer and records one arbitrage entry per pair. N crossing offers produce
// N independent records. Returns how many records were stored.
func (d *Detector) Detect(ctx context.Context, offer *database.Offer) (int, error) {
	crossing, err := d.ledger.FindCrossingOffers(offer)
	if err != nil {
		return 0, err
	}
	if len(crossing) == 0 {
		log.Debug().Uint("offer_id", offer.ID).Msg("No crossing offers")
		return 0, nil
	}

	recorded := 0
	for i := range crossing {
		other := &crossing[i]

		var buy, sell *database.Offer
		if offer.Type == database.OfferSell {
			buy, sell = other, offer
		} else {
			buy, sell = offer, other
		}

		rec := buildRecord(buy, sell)
		if err := d.ledger.InsertArbitrage(rec); err != nil {
			// A conflict on one candidate must not stop the remaining ones.
			if errors.Is(err, database.ErrDuplicate) {
				log.Warn().Uint("buy_offer", buy.ID).Uint("sell_offer", sell.ID).
					Msg("Duplicate arbitrage record, skipping candidate")
				continue
			}
			log.Error().Err(err).Uint("buy_offer", buy.ID).Uint("sell_offer", sell.ID).
				Msg("Failed to store arbitrage record, skipping candidate")
			continue
		}
		recorded++

		log.Info().
			Uint("buy_offer", buy.ID).
			Uint("sell_offer", sell.ID).
			Int("profit_per_unit", rec.ProfitPerUnit).
			Str("currency", string(rec.Currency)).
			Msg("💰 Arbitrage found")

		d.notify(ctx, rec.ID)
	}
	return recorded, nil
}

// buildRecord derives the profit figures for one crossing pair. The crossing
// query guarantees buy price > sell price, so profit per unit is positive.
func buildRecord(buy, sell *database.Offer) *database.Arbitrage {
	rec := &database.Arbitrage{
		BuyOfferID:    buy.ID,
		SellOfferID:   sell.ID,
		Currency:      sell.Currency,
		ProfitPerUnit: buy.UnitPrice - sell.UnitPrice,
		UnitPrice:     sell.UnitPrice,
	}

	if buy.Quantity != nil && sell.Quantity != nil {
		qty := min(*buy.Quantity, *sell.Quantity)
		profitTotal := qty * rec.ProfitPerUnit
		priceTotal := qty * sell.UnitPrice
		rec.Quantity = &qty
		rec.ProfitTotal = &profitTotal
		rec.PriceTotal = &priceTotal
	}
	return rec
}

func (d *Detector) notify(ctx context.Context, arbitrageID uint) {
	if d.notifier == nil {
		return
	}
	ac, err := d.ledger.GetArbitrageContext(arbitrageID)
	if err != nil {
		log.Error().Err(err).Uint("arbitrage_id", arbitrageID).
			Msg("Failed to load arbitrage context for notification")
		return
	}
	if err := d.notifier.NotifyArbitrage(ctx, ac); err != nil {
		log.Error().Err(err).Uint("arbitrage_id", arbitrageID).
			Msg("Arbitrage notification failed")
	}
}

package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
// Callers treat it as skip-and-continue, never as fatal.
var ErrDuplicate = errors.New("duplicate record")

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	default:
		return err
	}
}

// Item operations

// InsertItem persists one enumerated catalog item. A (name, grade, duration)
// collision returns ErrDuplicate and leaves the store untouched.
func (d *Database) InsertItem(item *Item) error {
	if err := translate(d.db.Create(item).Error); err != nil {
		return fmt.Errorf("insert item %q: %w", item.Name, err)
	}
	return nil
}

// ListItems returns the whole catalog in insertion order.
func (d *Database) ListItems() ([]Item, error) {
	var items []Item
	err := d.db.Order("id ASC").Find(&items).Error
	return items, err
}

// DeleteItem removes a catalog item together with every offer and arbitrage
// record that depends on it, in one transaction.
func (d *Database) DeleteItem(id uint) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		var offerIDs []uint
		if err := tx.Model(&Offer{}).Where("item_id = ?", id).Pluck("id", &offerIDs).Error; err != nil {
			return err
		}
		if len(offerIDs) > 0 {
			if err := tx.Where("buy_offer_id IN ? OR sell_offer_id IN ?", offerIDs, offerIDs).
				Delete(&Arbitrage{}).Error; err != nil {
				return err
			}
			if err := tx.Where("item_id = ?", id).Delete(&Offer{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&Item{}, id).Error
	})
}

// Message operations

// InsertMessage stores a source message and returns its id. A message whose
// normalized hash was seen before returns ErrDuplicate.
func (d *Database) InsertMessage(msg *Message) (uint, error) {
	if msg.TextHash == "" {
		msg.TextHash = HashMessage(msg.Text)
	}
	if msg.AddedAt.IsZero() {
		msg.AddedAt = time.Now().UTC()
	}
	if err := translate(d.db.Create(msg).Error); err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// Offer operations

func (d *Database) InsertOffer(offer *Offer) error {
	return translate(d.db.Create(offer).Error)
}

func (d *Database) GetOffer(id uint) (*Offer, error) {
	var offer Offer
	if err := translate(d.db.First(&offer, id).Error); err != nil {
		return nil, err
	}
	return &offer, nil
}

// FindCrossingOffers returns every open opposite-type offer on the same item
// and currency that crosses the given offer in price: for a new sell, open
// buys above its price; for a new buy, open sells below.
func (d *Database) FindCrossingOffers(offer *Offer) ([]Offer, error) {
	q := d.db.Where("item_id = ? AND currency = ?", offer.ItemID, offer.Currency)
	switch offer.Type {
	case OfferSell:
		q = q.Where("type = ? AND unit_price > ?", OfferBuy, offer.UnitPrice)
	case OfferBuy:
		q = q.Where("type = ? AND unit_price < ?", OfferSell, offer.UnitPrice)
	default:
		return nil, fmt.Errorf("unknown offer type %q", offer.Type)
	}

	var offers []Offer
	err := q.Order("id ASC").Find(&offers).Error
	return offers, err
}

// DeleteOffer removes an offer and every arbitrage record referencing it,
// in one transaction. Exposed for the editing bot.
func (d *Database) DeleteOffer(id uint) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("buy_offer_id = ? OR sell_offer_id = ?", id, id).
			Delete(&Arbitrage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Offer{}, id).Error
	})
}

// UpdateOfferQuantity sets a new quantity on an existing offer. Exposed for
// the editing bot.
func (d *Database) UpdateOfferQuantity(id uint, quantity int) error {
	res := d.db.Model(&Offer{}).Where("id = ?", id).Update("quantity", quantity)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Arbitrage operations

func (d *Database) InsertArbitrage(a *Arbitrage) error {
	return translate(d.db.Create(a).Error)
}

// ArbitrageContext is the joined view handed to the notification bot.
type ArbitrageContext struct {
	Arbitrage   Arbitrage
	Item        Item
	BuyOffer    Offer
	SellOffer   Offer
	BuyMessage  Message
	SellMessage Message
}

// GetArbitrageContext loads an arbitrage record with its item, both offers
// and both source messages.
func (d *Database) GetArbitrageContext(id uint) (*ArbitrageContext, error) {
	var ctx ArbitrageContext
	if err := translate(d.db.First(&ctx.Arbitrage, id).Error); err != nil {
		return nil, fmt.Errorf("arbitrage %d: %w", id, err)
	}
	if err := translate(d.db.First(&ctx.BuyOffer, ctx.Arbitrage.BuyOfferID).Error); err != nil {
		return nil, fmt.Errorf("buy offer %d: %w", ctx.Arbitrage.BuyOfferID, err)
	}
	if err := translate(d.db.First(&ctx.SellOffer, ctx.Arbitrage.SellOfferID).Error); err != nil {
		return nil, fmt.Errorf("sell offer %d: %w", ctx.Arbitrage.SellOfferID, err)
	}
	if err := translate(d.db.First(&ctx.Item, ctx.BuyOffer.ItemID).Error); err != nil {
		return nil, fmt.Errorf("item %d: %w", ctx.BuyOffer.ItemID, err)
	}
	if err := translate(d.db.First(&ctx.BuyMessage, ctx.BuyOffer.MessageID).Error); err != nil {
		return nil, fmt.Errorf("buy message %d: %w", ctx.BuyOffer.MessageID, err)
	}
	if err := translate(d.db.First(&ctx.SellMessage, ctx.SellOffer.MessageID).Error); err != nil {
		return nil, fmt.Errorf("sell message %d: %w", ctx.SellOffer.MessageID, err)
	}
	return &ctx, nil
}

// ProfitStats aggregates detected arbitrage for the /stats command.
type ProfitStats struct {
	TotalRecords     int64
	TotalProfit      decimal.Decimal // sum of known per-pair total profits
	AvgProfitPerUnit decimal.Decimal
}

func (d *Database) GetProfitStats() (*ProfitStats, error) {
	stats := &ProfitStats{}

	if err := d.db.Model(&Arbitrage{}).Count(&stats.TotalRecords).Error; err != nil {
		return nil, err
	}

	var totals struct {
		Profit int64
		PerSum int64
	}
	err := d.db.Model(&Arbitrage{}).
		Select("COALESCE(SUM(profit_total), 0) as profit, COALESCE(SUM(profit_per_unit), 0) as per_sum").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}

	stats.TotalProfit = decimal.NewFromInt(totals.Profit)
	if stats.TotalRecords > 0 {
		stats.AvgProfitPerUnit = decimal.NewFromInt(totals.PerSum).
			Div(decimal.NewFromInt(stats.TotalRecords)).Round(2)
	}
	return stats, nil
}

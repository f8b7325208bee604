// Package bot is the operator-facing Telegram bot: it announces detected
// arbitrage pairs and lets the operator delete or edit the offers behind
// them without touching the database directly.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/Qzero991/telegram-rpg-trade-client/internal/database"
	"github.com/Qzero991/telegram-rpg-trade-client/internal/telegram"
)

// Bot handles operator interactions
type Bot struct {
	session      *telegram.Session
	db           *database.Database
	notifyChatID int64
	tradeGroupID int64

	mu           sync.Mutex
	pendingEdits map[int64]uint // chat id -> offer awaiting a new quantity

	stopCh chan struct{}
}

// New creates the operator bot on an existing session.
func New(session *telegram.Session, db *database.Database, notifyChatID, tradeGroupID int64) *Bot {
	return &Bot{
		session:      session,
		db:           db,
		notifyChatID: notifyChatID,
		tradeGroupID: tradeGroupID,
		pendingEdits: make(map[int64]uint),
		stopCh:       make(chan struct{}),
	}
}

// Start begins consuming control updates from the session.
func (b *Bot) Start() {
	go b.listen()
}

// Stop stops the bot
func (b *Bot) Stop() {
	close(b.stopCh)
}

func (b *Bot) listen() {
	for {
		select {
		case <-b.stopCh:
			return
		case update, ok := <-b.session.Control():
			if !ok {
				return
			}
			if update.CallbackQuery != nil {
				b.handleCallback(update.CallbackQuery)
			} else if update.Message != nil {
				b.handleMessage(update.Message)
			}
		}
	}
}

// NotifyArbitrage satisfies arbitrage.Notifier: one alert per record, with
// inline controls for both offers.
func (b *Bot) NotifyArbitrage(ctx context.Context, ac *database.ArbitrageContext) error {
	if b.notifyChatID == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	text := b.formatAlert(ac)

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑️ Delete BUY", fmt.Sprintf("delete:buy:%d", ac.BuyOffer.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑️ Delete SELL", fmt.Sprintf("delete:sell:%d", ac.SellOffer.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Edit BUY", fmt.Sprintf("edit:buy:%d", ac.BuyOffer.ID)),
			tgbotapi.NewInlineKeyboardButtonData("✏️ Edit SELL", fmt.Sprintf("edit:sell:%d", ac.SellOffer.ID)),
		),
	)

	msg := tgbotapi.NewMessage(b.notifyChatID, text)
	msg.ReplyMarkup = keyboard
	msg.DisableWebPagePreview = true

	_, err := b.session.API().Send(msg)
	return err
}

func (b *Bot) formatAlert(ac *database.ArbitrageContext) string {
	var sb strings.Builder

	sb.WriteString("🚨🚨  ARBITRAGE FOUND!  🚨🚨\n\n")

	sb.WriteString("📦 ITEM INFO\n━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&sb, "🪙 Name: %s\n", ac.Item.Name)
	fmt.Fprintf(&sb, "🏷️ Type: %s\n", ac.Item.Kind)
	fmt.Fprintf(&sb, "⭐ Grade: %s\n", ac.Item.Grade)
	fmt.Fprintf(&sb, "⌛ Duration: %s\n\n", ac.Item.Duration)

	sb.WriteString("💰 ARBITRAGE DATA\n━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&sb, "💵 Currency: %s\n", ac.Arbitrage.Currency)
	fmt.Fprintf(&sb, "📈 Profit (per one): %d\n", ac.Arbitrage.ProfitPerUnit)
	fmt.Fprintf(&sb, "💹 Profit (total): %s\n", fmtOptional(ac.Arbitrage.ProfitTotal))
	fmt.Fprintf(&sb, "💰 Total price: %s\n\n", fmtOptional(ac.Arbitrage.PriceTotal))

	sb.WriteString("📤 SELL OFFER\n━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&sb, "🔗 Message: %s\n", b.messageLink(ac.SellMessage.GroupMessageID))
	fmt.Fprintf(&sb, "👤 Seller: %s\n", senderLink(ac.SellMessage.SenderUsername))
	fmt.Fprintf(&sb, "💵 Price (per one): %d\n", ac.SellOffer.UnitPrice)
	fmt.Fprintf(&sb, "📦 Quantity: %s\n\n", fmtOptional(ac.SellOffer.Quantity))

	sb.WriteString("📥 BUY OFFER\n━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&sb, "🔗 Message: %s\n", b.messageLink(ac.BuyMessage.GroupMessageID))
	fmt.Fprintf(&sb, "👤 Buyer: %s\n", senderLink(ac.BuyMessage.SenderUsername))
	fmt.Fprintf(&sb, "💵 Price (per one): %d\n", ac.BuyOffer.UnitPrice)
	fmt.Fprintf(&sb, "📦 Quantity: %s\n", fmtOptional(ac.BuyOffer.Quantity))

	return sb.String()
}

// messageLink builds a t.me deep link into the trade group. Private group
// ids carry a -100 prefix that the link format drops.
func (b *Bot) messageLink(messageID int) string {
	group := strconv.FormatInt(b.tradeGroupID, 10)
	group = strings.TrimPrefix(group, "-100")
	group = strings.TrimPrefix(group, "-")
	return fmt.Sprintf("https://t.me/c/%s/%d", group, messageID)
}

func senderLink(username string) string {
	if username == "" {
		return "unknown"
	}
	return "https://t.me/" + username
}

func fmtOptional(v *int) string {
	if v == nil {
		return "unknown"
	}
	return strconv.Itoa(*v)
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	log.Debug().Int64("chat_id", chatID).Str("text", msg.Text).Msg("Received control message")

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			b.cmdHelp(chatID)
		case "stats":
			b.cmdStats(chatID)
		default:
			b.reply(chatID, "Unknown command. Try /help")
		}
		return
	}

	// A plain message while an edit is pending is the new quantity.
	b.mu.Lock()
	offerID, waiting := b.pendingEdits[chatID]
	if waiting {
		delete(b.pendingEdits, chatID)
	}
	b.mu.Unlock()

	if !waiting {
		return
	}

	qty, err := strconv.Atoi(strings.TrimSpace(msg.Text))
	if err != nil || qty < 0 {
		b.reply(chatID, "❌ Quantity must be a non-negative integer. Edit canceled.")
		return
	}
	if err := b.db.UpdateOfferQuantity(offerID, qty); err != nil {
		log.Error().Err(err).Uint("offer_id", offerID).Msg("Quantity update failed")
		b.reply(chatID, "❌ Failed to update the offer.")
		return
	}
	b.reply(chatID, fmt.Sprintf("✅ Offer %d quantity set to %d.", offerID, qty))
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		// Callbacks on messages too old for the bot API to include.
		log.Debug().Str("data", cb.Data).Msg("Callback without message, ignoring")
		return
	}
	chatID := cb.Message.Chat.ID
	data := cb.Data

	log.Debug().Int64("chat_id", chatID).Str("data", data).Msg("Received callback")

	b.session.API().Request(tgbotapi.NewCallback(cb.ID, ""))

	parts := strings.Split(data, ":")
	switch {
	case parts[0] == "delete" && len(parts) == 3:
		confirm := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", "confirm_delete:"+parts[1]+":"+parts[2]),
				tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "cancel"),
			),
		)
		msg := tgbotapi.NewMessage(chatID,
			fmt.Sprintf("Are you sure you want to delete the %s offer?", strings.ToUpper(parts[1])))
		msg.ReplyMarkup = confirm
		b.session.API().Send(msg)

	case parts[0] == "confirm_delete" && len(parts) == 3:
		offerID, err := strconv.ParseUint(parts[2], 10, 32)
		if err != nil {
			return
		}
		if err := b.db.DeleteOffer(uint(offerID)); err != nil {
			log.Error().Err(err).Uint64("offer_id", offerID).Msg("Offer deletion failed")
			b.editText(cb, "❌ Failed to delete the offer.")
			return
		}
		b.editText(cb, fmt.Sprintf("✅ %s offer was deleted successfully.", strings.ToUpper(parts[1])))

	case parts[0] == "edit" && len(parts) == 3:
		offerID, err := strconv.ParseUint(parts[2], 10, 32)
		if err != nil {
			return
		}
		b.mu.Lock()
		b.pendingEdits[chatID] = uint(offerID)
		b.mu.Unlock()
		b.reply(chatID, fmt.Sprintf("Send the new quantity for the %s offer.", strings.ToUpper(parts[1])))

	case parts[0] == "cancel":
		b.editText(cb, "Canceled.")
	}
}

func (b *Bot) cmdHelp(chatID int64) {
	b.reply(chatID, `📖 Commands:

/stats - Arbitrage statistics
/help - This message

Alerts arrive automatically when a crossing pair is detected. Use the
buttons under an alert to delete an offer or fix its quantity.`)
}

func (b *Bot) cmdStats(chatID int64) {
	stats, err := b.db.GetProfitStats()
	if err != nil {
		log.Error().Err(err).Msg("Stats query failed")
		b.reply(chatID, "❌ Failed to load statistics.")
		return
	}
	b.reply(chatID, fmt.Sprintf(`📊 Arbitrage Stats

Records: %d
Known total profit: %s
Avg profit per unit: %s`,
		stats.TotalRecords, stats.TotalProfit.String(), stats.AvgProfitPerUnit.String()))
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.session.API().Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) editText(cb *tgbotapi.CallbackQuery, text string) {
	edit := tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID, text)
	if _, err := b.session.API().Send(edit); err != nil {
		log.Error().Err(err).Msg("Failed to edit message")
	}
}

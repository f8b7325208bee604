// Package telegram owns the bot-API session and routes its single update
// stream to the interested components: trade-group messages to the pipeline,
// info-group replies to the catalog enumerator, everything else to the
// operator bot.
package telegram

import (
	"context"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/Qzero991/telegram-rpg-trade-client/internal/catalog"
	"github.com/Qzero991/telegram-rpg-trade-client/internal/pipeline"
)

// Session is an explicitly constructed handle around one bot-API connection,
// with a defined start/stop lifecycle. Components receive it by reference.
type Session struct {
	api          *tgbotapi.BotAPI
	tradeGroupID int64
	infoGroupID  int64

	inbound    chan pipeline.InboundMessage
	pipelineOn atomic.Bool
	replies    chan catalog.Reply
	control    chan tgbotapi.Update

	stopCh chan struct{}
}

// NewSession connects to the bot API and prepares the routing channels.
func NewSession(token string, tradeGroupID, infoGroupID int64) (*Session, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram session connected")

	return &Session{
		api:          api,
		tradeGroupID: tradeGroupID,
		infoGroupID:  infoGroupID,
		inbound:      make(chan pipeline.InboundMessage, 64),
		replies:      make(chan catalog.Reply, 16),
		control:      make(chan tgbotapi.Update, 16),
		stopCh:       make(chan struct{}),
	}, nil
}

// API exposes the underlying bot API for the operator bot.
func (s *Session) API() *tgbotapi.BotAPI { return s.api }

// Inbound registers the trade pipeline as a consumer and streams trade-group
// messages in arrival order. Until the first call the dispatcher drops
// trade-group traffic: in enumerate mode nobody reads this channel, and a
// blocking send there would wedge the dispatcher and starve oracle replies.
func (s *Session) Inbound() <-chan pipeline.InboundMessage {
	s.pipelineOn.Store(true)
	return s.inbound
}

// Replies streams info-group messages; part of the catalog.Channel contract.
func (s *Session) Replies() <-chan catalog.Reply { return s.replies }

// Control streams updates that belong to the operator bot: private chat
// messages and callback queries.
func (s *Session) Control() <-chan tgbotapi.Update { return s.control }

// Send posts a command to the info group; part of catalog.Channel.
func (s *Session) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.api.Send(tgbotapi.NewMessage(s.infoGroupID, text))
	return err
}

// Start begins long-polling and routing updates.
func (s *Session) Start() {
	go s.dispatch()
}

// Stop ends the update loop. In-flight sends fail naturally and get logged
// by their callers.
func (s *Session) Stop() {
	close(s.stopCh)
	s.api.StopReceivingUpdates()
}

func (s *Session) dispatch() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := s.api.GetUpdatesChan(u)

	for {
		select {
		case <-s.stopCh:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.route(update)
		}
	}
}

func (s *Session) route(update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		s.routeControl(update)
		return
	}

	msg := update.Message
	if msg == nil {
		return
	}

	switch msg.Chat.ID {
	case s.tradeGroupID:
		if !s.pipelineOn.Load() {
			log.Warn().Msg("No pipeline attached, dropping trade message")
			return
		}
		// Blocking send keeps strict arrival order; the pipeline is the
		// single consumer and applies its own pacing.
		select {
		case s.inbound <- pipeline.InboundMessage{
			SenderID:       senderID(msg),
			SenderUsername: senderUsername(msg),
			GroupMessageID: msg.MessageID,
			Text:           msg.Text,
			SentAt:         time.Unix(int64(msg.Date), 0).UTC(),
		}:
		case <-s.stopCh:
		}
	case s.infoGroupID:
		select {
		case s.replies <- catalog.Reply{Text: msg.Text, ReceivedAt: time.Now()}:
		default:
			log.Warn().Msg("Oracle reply buffer full, dropping reply")
		}
	default:
		s.routeControl(update)
	}
}

// routeControl never blocks: in enumerate mode nobody consumes control
// updates and the dispatcher must keep serving oracle replies.
func (s *Session) routeControl(update tgbotapi.Update) {
	select {
	case s.control <- update:
	default:
		log.Debug().Msg("Control buffer full, dropping update")
	}
}

func senderID(msg *tgbotapi.Message) int64 {
	if msg.From != nil {
		return msg.From.ID
	}
	return 0
}

func senderUsername(msg *tgbotapi.Message) string {
	if msg.From != nil {
		return msg.From.UserName
	}
	return ""
}

package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Qzero991/telegram-rpg-trade-client/internal/database"
)

// Channel is the oracle transport: commands go out as plain text, replies
// arrive asynchronously and uncorrelated.
type Channel interface {
	Send(ctx context.Context, text string) error
	Replies() <-chan Reply
}

// Reply is one inbound oracle message.
type Reply struct {
	Text       string
	ReceivedAt time.Time
}

// Store is the slice of the persistence contract the enumerator writes to.
type Store interface {
	InsertItem(item *database.Item) error
}

// Markers are the literal reply strings the oracle uses for its negative and
// rate-limit conditions. Protocol data, supplied by config.
type Markers struct {
	RateLimit       string
	NotFound        []string
	NotTransferable string
}

// Options tune the protocol timing.
type Options struct {
	ReplyTimeout time.Duration // wait window before re-sending, default 60s
	Cooldown     time.Duration // pause after a rate-limit reply, default 20s
	SendInterval time.Duration // minimum gap between outbound commands, default 1s
}

// pending is the single-slot request context. Capacity is exactly one:
// issuing a new command replaces the slot, a consumed reply empties it.
type pending struct {
	Kind     database.ItemKind
	GameID   int
	Command  string
	IssuedAt time.Time
}

type outcome int

const (
	outcomeDone outcome = iota
	outcomeRateLimited
	outcomeUnmatched
)

// Enumerator drives the lookup protocol id by id. Strictly sequential: each
// id reaches a terminal state before the next command is issued.
type Enumerator struct {
	ch       Channel
	store    Store
	markers  Markers
	commands map[database.ItemKind]string

	replyTimeout time.Duration
	cooldown     time.Duration
	limiter      *rate.Limiter

	slot *pending // nil when empty
}

// NewEnumerator builds an enumerator. commands maps each item kind to the
// oracle lookup verb (e.g. equipment -> "/getequip").
func NewEnumerator(ch Channel, store Store, commands map[database.ItemKind]string, markers Markers, opts Options) *Enumerator {
	if opts.ReplyTimeout <= 0 {
		opts.ReplyTimeout = 60 * time.Second
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 20 * time.Second
	}
	if opts.SendInterval <= 0 {
		opts.SendInterval = time.Second
	}
	return &Enumerator{
		ch:           ch,
		store:        store,
		markers:      markers,
		commands:     commands,
		replyTimeout: opts.ReplyTimeout,
		cooldown:     opts.Cooldown,
		limiter:      rate.NewLimiter(rate.Every(opts.SendInterval), 1),
	}
}

// Enumerate looks up every id in [0, lastID] for the given kind.
func (e *Enumerator) Enumerate(ctx context.Context, kind database.ItemKind, lastID int) error {
	verb, ok := e.commands[kind]
	if !ok {
		return fmt.Errorf("no lookup command configured for kind %q", kind)
	}

	log.Info().
		Str("kind", string(kind)).
		Str("command", verb).
		Int("last_id", lastID).
		Msg("Starting catalog enumeration")

	for id := 0; id <= lastID; id++ {
		if err := e.enumerateOne(ctx, kind, verb, id); err != nil {
			return fmt.Errorf("enumerate %s %d: %w", kind, id, err)
		}
	}

	log.Info().Str("kind", string(kind)).Msg("Catalog enumeration finished")
	return nil
}

func (e *Enumerator) enumerateOne(ctx context.Context, kind database.ItemKind, verb string, id int) error {
	cmd := fmt.Sprintf("%s %d", verb, id)
	if err := e.send(ctx, kind, id, cmd); err != nil {
		return err
	}

	timer := time.NewTimer(e.replyTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case reply, ok := <-e.ch.Replies():
			if !ok {
				return errors.New("oracle channel closed")
			}
			switch e.consume(reply) {
			case outcomeDone:
				return nil
			case outcomeRateLimited:
				// The slot keeps its context through the cool-down; the
				// identical command goes out again afterwards.
				if err := sleepCtx(ctx, e.cooldown); err != nil {
					return err
				}
				if err := e.send(ctx, kind, id, cmd); err != nil {
					return err
				}
				resetTimer(timer, e.replyTimeout)
			case outcomeUnmatched:
				// Stray reply with an empty slot, keep waiting.
			}

		case <-timer.C:
			log.Warn().Str("command", cmd).Dur("timeout", e.replyTimeout).
				Msg("No oracle reply within window, re-sending")
			if err := e.send(ctx, kind, id, cmd); err != nil {
				return err
			}
			timer.Reset(e.replyTimeout)
		}
	}
}

// send fills the pending slot and issues the command. A still-occupied slot
// is replaced, which is the designed behavior for re-sends.
func (e *Enumerator) send(ctx context.Context, kind database.ItemKind, id int, cmd string) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}
	if e.slot != nil {
		log.Debug().Str("command", e.slot.Command).Msg("Replacing pending oracle request")
	}
	e.slot = &pending{Kind: kind, GameID: id, Command: cmd, IssuedAt: time.Now()}
	return e.ch.Send(ctx, cmd)
}

// consume classifies one inbound reply against the pending slot.
func (e *Enumerator) consume(r Reply) outcome {
	if e.slot == nil {
		log.Warn().Str("text", truncate(r.Text, 80)).Msg("Unmatched oracle reply discarded")
		return outcomeUnmatched
	}

	if r.Text == e.markers.RateLimit {
		log.Warn().Str("command", e.slot.Command).Msg("Oracle rate limit hit, cooling down")
		return outcomeRateLimited
	}

	req := *e.slot
	e.slot = nil

	if e.isNegative(r.Text) {
		log.Debug().Int("game_id", req.GameID).Str("kind", string(req.Kind)).
			Msg("Item not found or not transferable")
		return outcomeDone
	}

	item, err := ParseReply(req.Kind, req.GameID, r.Text)
	if err != nil {
		// Fail-open: an unparseable reply still terminates this id so the
		// run cannot stall, at the cost of a possible catalog gap.
		log.Warn().Err(err).Int("game_id", req.GameID).Str("kind", string(req.Kind)).
			Str("text", truncate(r.Text, 80)).
			Msg("Unrecognized oracle reply, advancing")
		return outcomeDone
	}

	if err := e.store.InsertItem(item); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			log.Warn().Str("name", item.Name).Str("grade", item.Grade).
				Msg("Duplicate catalog item, skipping")
		} else {
			log.Error().Err(err).Str("name", item.Name).Msg("Failed to store catalog item")
		}
		return outcomeDone
	}

	log.Info().Str("name", item.Name).Str("grade", item.Grade).
		Str("duration", item.Duration).Int("game_id", item.GameID).
		Msg("Catalog item stored")
	return outcomeDone
}

func (e *Enumerator) isNegative(text string) bool {
	for _, m := range e.markers.NotFound {
		if text == m {
			return true
		}
	}
	return e.markers.NotTransferable != "" && strings.Contains(text, e.markers.NotTransferable)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

// Package database is the persistence layer for the catalog, offers,
// source messages and detected arbitrage pairs.
package database

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	db *gorm.DB
}

// Enums

type ItemKind string

const (
	KindEquipment ItemKind = "equipment"
	KindResource  ItemKind = "resource"
)

type OfferType string

const (
	OfferBuy  OfferType = "buy"
	OfferSell OfferType = "sell"
)

type Currency string

const (
	CurrencyCookies Currency = "cookies"
	CurrencyMoney   Currency = "money"
)

// Models

// Item is one canonical catalog entry. Items are append-only: enumeration
// creates them, nothing mutates them afterwards.
type Item struct {
	ID       uint     `gorm:"primaryKey;autoIncrement"`
	GameID   int      `gorm:"not null"`
	Name     string   `gorm:"not null;uniqueIndex:idx_items_identity"`
	Kind     ItemKind `gorm:"not null"`
	Grade    string   `gorm:"size:10;not null;uniqueIndex:idx_items_identity"`
	Duration string   `gorm:"size:20;not null;uniqueIndex:idx_items_identity"`
}

// Message is an ingested trade-group message, deduplicated by normalized
// content hash and kept for offer traceability.
type Message struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	SenderID       int64  `gorm:"not null"`
	SenderUsername string
	GroupMessageID int
	Text           string `gorm:"not null"`
	TextHash       string `gorm:"size:64;not null;uniqueIndex"`
	SentAt         time.Time
	AddedAt        time.Time
}

// Offer is a standing buy or sell intent resolved to a catalog item.
type Offer struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	MentionName string `gorm:"not null"` // item name as written in the message
	ItemName    string `gorm:"not null"` // canonical catalog name
	ItemID      uint   `gorm:"index;not null"`
	Quantity    *int
	Type        OfferType `gorm:"not null"`
	Currency    Currency  `gorm:"not null"`
	UnitPrice   int       `gorm:"not null"`
	MessageID   uint      `gorm:"index;not null"`
}

// Arbitrage is one detected crossing pair. ProfitPerUnit is always > 0;
// the nullable fields stay nil when either offer has unknown quantity.
type Arbitrage struct {
	ID            uint     `gorm:"primaryKey;autoIncrement"`
	BuyOfferID    uint     `gorm:"index;not null"`
	SellOfferID   uint     `gorm:"index;not null"`
	Currency      Currency `gorm:"not null"`
	ProfitPerUnit int      `gorm:"not null"`
	ProfitTotal   *int
	UnitPrice     int `gorm:"not null"` // sell-side price per unit
	PriceTotal    *int
	Quantity      *int
}

// New opens the database selected by the DSN (postgres:// strings go to
// Postgres, anything else is treated as a SQLite path) and migrates the
// schema.
func New(dsn string) (*Database, error) {
	var db *gorm.DB
	var err error

	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Database connected (PostgreSQL)")
	} else {
		if dir := filepath.Dir(dsn); dir != "." && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
		db, err = gorm.Open(sqlite.Open(dsn), gormCfg)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dsn).Msg("Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&Item{}, &Message{}, &Offer{}, &Arbitrage{}); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// HashMessage normalizes a message text (trim + lowercase) and returns its
// sha256 hex digest. Used for ingestion dedup.
func HashMessage(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// LedgerModel is the persisted row of a ledger entry.
type LedgerModel struct {
	Seq           uint            `gorm:"primaryKey;autoIncrement"`
	ID            string          `gorm:"type:varchar(36);uniqueIndex;not null"`
	BrokerOrderID string          `gorm:"type:varchar(64);not null"`
	Symbol        string          `gorm:"type:varchar(40);not null"`
	Quantity      int64           `gorm:"not null"`
	AveragePrice  decimal.Decimal `gorm:"type:text;not null"`
	Side          string          `gorm:"type:varchar(4);not null"`
	Tag           string          `gorm:"type:varchar(64);index;not null"`
	CreatedAt     time.Time       `gorm:"not null"`
}

// TableName sets the table of LedgerModel.
func (LedgerModel) TableName() string {
	return "ledger_entries"
}

func toLedgerModel(e domain.LedgerEntry) LedgerModel {
	return LedgerModel{
		ID:            e.ID,
		BrokerOrderID: e.BrokerOrderID,
		Symbol:        e.Symbol,
		Quantity:      e.Quantity,
		AveragePrice:  e.AveragePrice,
		Side:          string(e.Side),
		Tag:           e.Tag,
		CreatedAt:     e.CreatedAt,
	}
}

func (m LedgerModel) toDomain() domain.LedgerEntry {
	return domain.LedgerEntry{
		ID:            m.ID,
		BrokerOrderID: m.BrokerOrderID,
		Symbol:        m.Symbol,
		Quantity:      m.Quantity,
		AveragePrice:  m.AveragePrice,
		Side:          domain.Side(m.Side),
		Tag:           m.Tag,
		CreatedAt:     m.CreatedAt,
	}
}

// SQLLedgerStore persists the ledger in SQLite through gorm.
type SQLLedgerStore struct {
	db *gorm.DB
}

// OpenSQLLedgerStore opens (creating if needed) the SQLite database at dsn and
// migrates the ledger table. ":memory:" gives a private in-memory database.
func OpenSQLLedgerStore(dsn string) (*SQLLedgerStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	if dsn == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open ledger database: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&LedgerModel{}); err != nil {
		return nil, fmt.Errorf("migrate ledger table: %w", err)
	}
	return &SQLLedgerStore{db: db}, nil
}

// Save inserts an entry.
func (s *SQLLedgerStore) Save(ctx context.Context, e domain.LedgerEntry) error {
	m := toLedgerModel(e)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("save ledger entry %s: %w", e.ID, err)
	}
	return nil
}

// All returns every entry in insertion order.
func (s *SQLLedgerStore) All(ctx context.Context) ([]domain.LedgerEntry, error) {
	var rows []LedgerModel
	if err := s.db.WithContext(ctx).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load ledger entries: %w", err)
	}
	result := make([]domain.LedgerEntry, len(rows))
	for i, r := range rows {
		result[i] = r.toDomain()
	}
	return result, nil
}

// Close releases the database handle.
func (s *SQLLedgerStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

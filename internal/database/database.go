package database

import (
	"fmt"

	"github.com/openbid/auction-api/internal/database/migrations"
	"github.com/openbid/auction-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer; one pooled connection keeps concurrent
	// transactions from tripping over SQLITE_BUSY.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	// Auction schema first, the ledger migration indexes it
	if err := db.AutoMigrate(&types.Auction{}); err != nil {
		return nil, err
	}

	if err := migrations.AddBidLedger(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Package store persists settlement records. Each liquidity provider
// instance owns two independent record sets, one per role (locks it
// created, locks it received and verified); the originating service owns
// a third shape for sender-visible settlement records. Records are
// append-mostly and never deleted: they double as the settlement audit
// trail.
package store

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens (and migrates) the sqlite database at path. ":memory:" is
// accepted for tests.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", path, err)
	}
	return db, nil
}

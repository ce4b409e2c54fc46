package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSequenceAllocator hands out strictly increasing numbers per
// (dealer, kind). The increment happens in a single upsert statement so
// concurrent callers can never observe or reuse the same value; the
// database serializes them on the row lock.
type GormSequenceAllocator struct {
	db *gorm.DB
}

// NewGormSequenceAllocator creates a new GormSequenceAllocator
func NewGormSequenceAllocator(db *gorm.DB) *GormSequenceAllocator {
	return &GormSequenceAllocator{db: db}
}

const nextSequenceSQL = `
INSERT INTO dealer_sequences (dealer_id, kind, value)
VALUES (?, ?, 1)
ON CONFLICT (dealer_id, kind)
DO UPDATE SET value = dealer_sequences.value + 1
RETURNING value`

// Next returns the next number for the dealer and kind
func (a *GormSequenceAllocator) Next(ctx context.Context, dealerID uuid.UUID, kind string) (int64, error) {
	return a.next(a.db.WithContext(ctx), dealerID, kind)
}

// NextTx returns the next number within an existing transaction, so a
// document and its number commit or roll back together
func (a *GormSequenceAllocator) NextTx(tx *gorm.DB, dealerID uuid.UUID, kind string) (int64, error) {
	if tx == nil {
		tx = a.db
	}
	return a.next(tx, dealerID, kind)
}

func (a *GormSequenceAllocator) next(db *gorm.DB, dealerID uuid.UUID, kind string) (int64, error) {
	var value int64
	if err := db.Raw(nextSequenceSQL, dealerID, kind).Scan(&value).Error; err != nil {
		return 0, err
	}
	return value, nil
}

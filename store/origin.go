package store

import (
	"context"
	"errors"
	"time"

	crossborder "github.com/norges-bank/cbdc-sandbox-cross-border"
	"gorm.io/gorm"
)

// OriginRecord is the originating service's sender-visible settlement
// record: the secret/hash pair generated at discovery plus the lock id
// back-filled once the sender's lock appears on-chain.
type OriginRecord struct {
	PaymentID      string    `gorm:"column:payment_id;primaryKey"`
	TargetAddress  string    `gorm:"column:target_address;not null;index"`
	SourceAddress  string    `gorm:"column:source_address;not null"`
	SourceCurrency string    `gorm:"column:source_currency;not null"`
	Amount         int64     `gorm:"column:amount;not null"`
	Hash           string    `gorm:"column:hash;not null"`
	Secret         string    `gorm:"column:secret;not null"`
	LockID         string    `gorm:"column:lock_id"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (OriginRecord) TableName() string { return "origin_records" }

// OriginStore holds the originating service's records.
type OriginStore struct {
	db *gorm.DB
}

// NewOriginStore migrates and wraps the origin record table.
func NewOriginStore(db *gorm.DB) (*OriginStore, error) {
	if err := db.AutoMigrate(&OriginRecord{}); err != nil {
		return nil, err
	}
	return &OriginStore{db: db}, nil
}

// Create inserts a record; a replayed paymentId is a duplicate.
func (s *OriginStore) Create(ctx context.Context, rec OriginRecord) error {
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return crossborder.Errorf(crossborder.ErrCodeDuplicatePayment,
				"origin record for payment %s already exists", rec.PaymentID)
		}
		return err
	}
	return nil
}

// ByPaymentID fetches the record for a payment.
func (s *OriginStore) ByPaymentID(ctx context.Context, paymentID string) (OriginRecord, error) {
	var rec OriginRecord
	err := s.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return OriginRecord{}, crossborder.Errorf(crossborder.ErrCodeUnknownPayment,
			"no origin record for payment %s", paymentID)
	}
	return rec, err
}

// ByTargetAddress lists a recipient's records, newest first.
func (s *OriginStore) ByTargetAddress(ctx context.Context, target string) ([]OriginRecord, error) {
	var recs []OriginRecord
	err := s.db.WithContext(ctx).
		Where("target_address = ?", target).
		Order("created_at DESC").
		Find(&recs).Error
	return recs, err
}

// AttachLockID back-fills the lock id observed on-chain for the record
// matching the hashlock and recipient of a creation event.
func (s *OriginStore) AttachLockID(ctx context.Context, hash, targetAddress, lockID string) error {
	return s.db.WithContext(ctx).Model(&OriginRecord{}).
		Where("hash = ? AND target_address = ?", hash, targetAddress).
		Update("lock_id", lockID).Error
}

package store

import (
	"context"
	"errors"
	"time"

	crossborder "github.com/norges-bank/cbdc-sandbox-cross-border"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Payment record statuses. A record starts open and reaches exactly one
// of the two terminal states.
const (
	StatusOpen      = "OPEN"
	StatusWithdrawn = "WITHDRAWN"
	StatusRefunded  = "REFUNDED"
)

// PaymentRecord is one hop's view of one on-chain lock. LockID is the
// natural primary key (one record per lock); PaymentID carries a
// uniqueness constraint so a payment is processed at most once per role.
type PaymentRecord struct {
	LockID             string    `gorm:"column:lock_id;primaryKey"`
	PaymentID          string    `gorm:"column:payment_id;unique"`
	Hash               string    `gorm:"column:hash;not null"`
	Amount             int64     `gorm:"column:amount;not null"`
	CounterpartyWallet string    `gorm:"column:counterparty_wallet;not null"`
	Instruction        string    `gorm:"column:instruction;not null"`
	Status             string    `gorm:"column:status;not null"`
	Secret             string    `gorm:"column:secret"`
	CreatedAt          time.Time `gorm:"column:created_at"`
}

// RecordSet is one role's payment records, backed by its own table.
type RecordSet struct {
	db    *gorm.DB
	table string
}

// NewRecordSet migrates and wraps the table named table.
func NewRecordSet(db *gorm.DB, table string) (*RecordSet, error) {
	if err := db.Table(table).AutoMigrate(&PaymentRecord{}); err != nil {
		return nil, err
	}
	return &RecordSet{db: db, table: table}, nil
}

func (s *RecordSet) scope(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table)
}

// Create inserts a new record. A replayed lockId or paymentId violates a
// uniqueness constraint and surfaces as a duplicate_payment error, which
// is how idempotent message replay is detected.
func (s *RecordSet) Create(ctx context.Context, rec PaymentRecord) error {
	if rec.Status == "" {
		rec.Status = StatusOpen
	}
	if err := s.scope(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return crossborder.Errorf(crossborder.ErrCodeDuplicatePayment,
				"record for payment %s / lock %s already exists", rec.PaymentID, rec.LockID)
		}
		return err
	}
	return nil
}

// ByLockID fetches the record keyed by lockID.
func (s *RecordSet) ByLockID(ctx context.Context, lockID string) (PaymentRecord, error) {
	var rec PaymentRecord
	err := s.scope(ctx).Where("lock_id = ?", lockID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PaymentRecord{}, crossborder.Errorf(crossborder.ErrCodeUnknownPayment,
			"no record for lock %s", lockID)
	}
	return rec, err
}

// ByPaymentID fetches the record for a payment.
func (s *RecordSet) ByPaymentID(ctx context.Context, paymentID string) (PaymentRecord, error) {
	var rec PaymentRecord
	err := s.scope(ctx).Where("payment_id = ?", paymentID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PaymentRecord{}, crossborder.Errorf(crossborder.ErrCodeUnknownPayment,
			"no record for payment %s", paymentID)
	}
	return rec, err
}

// MarkWithdrawn moves an open record to its withdrawn terminal state and
// stores the verified secret. The caller must have checked the secret
// against the record's hash first. A record already in a terminal state
// is left untouched, so a late withdrawal event cannot overwrite a
// committed refund.
func (s *RecordSet) MarkWithdrawn(ctx context.Context, lockID, secret string) error {
	return s.scope(ctx).Where("lock_id = ? AND status = ?", lockID, StatusOpen).
		Updates(map[string]interface{}{"status": StatusWithdrawn, "secret": secret}).Error
}

// MarkRefunded moves the record to its refunded terminal state.
func (s *RecordSet) MarkRefunded(ctx context.Context, lockID string) error {
	return s.scope(ctx).Where("lock_id = ?", lockID).
		Update("status", StatusRefunded).Error
}

// Open lists records still awaiting a terminal state, oldest first.
func (s *RecordSet) Open(ctx context.Context) ([]PaymentRecord, error) {
	var recs []PaymentRecord
	err := s.scope(ctx).Where("status = ?", StatusOpen).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}}).
		Find(&recs).Error
	return recs, err
}

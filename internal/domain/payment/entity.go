// internal/domain/payment/entity.go
package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/your-org/marketplace-backend/internal/domain/purchasable"
	"gorm.io/gorm"
)

// Status represents payment status
type Status string

const (
	StatusPending               Status = "pending"
	StatusSucceeded             Status = "succeeded"
	StatusFailed                Status = "failed"
	StatusCanceled              Status = "canceled"
	StatusRequiresPaymentMethod Status = "requires_payment_method"
	StatusRequiresConfirmation  Status = "requires_confirmation"
	StatusRequiresAction        Status = "requires_action"
)

// IsTerminal reports whether no further transition is allowed
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSucceeded, StatusFailed, StatusCanceled,
		StatusRequiresPaymentMethod, StatusRequiresConfirmation, StatusRequiresAction:
		return true
	}
	return false
}

// CanTransitionTo reports whether s may move to next
func (s Status) CanTransitionTo(next Status) bool {
	return !s.IsTerminal() && next.Valid() && next != s
}

// openStatuses are the states a guarded transition may start from
var openStatuses = []Status{
	StatusPending,
	StatusRequiresPaymentMethod,
	StatusRequiresConfirmation,
	StatusRequiresAction,
}

// Record is one checkout attempt against the payment provider
type Record struct {
	ID                    uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID                uuid.UUID       `gorm:"type:uuid;not null;index:idx_payment_records_user_status,priority:1" json:"user_id"`
	ExternalSessionID     string          `gorm:"size:255;not null;uniqueIndex" json:"external_session_id"`
	ExternalPaymentIntent *string         `gorm:"size:255" json:"external_payment_intent,omitempty"`
	Amount                decimal.Decimal `gorm:"type:decimal(10,2);not null;check:amount > 0" json:"amount"`
	Currency              string          `gorm:"size:3;not null;default:'usd'" json:"currency"`
	Status                Status          `gorm:"size:32;not null;default:'pending';index:idx_payment_records_user_status,priority:2" json:"status"`
	CheckoutURL           string          `gorm:"size:1024" json:"checkout_url,omitempty"`
	ExpiresAt             time.Time       `json:"expires_at"`
	FailureReason         string          `gorm:"size:500" json:"failure_reason,omitempty"`
	CompletedAt           *time.Time      `json:"completed_at,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`

	// Relationships
	LineItems []LineItem `gorm:"foreignKey:PaymentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"line_items,omitempty"`
}

// TableName overrides the table name
func (Record) TableName() string {
	return "payment_records"
}

// BeforeCreate assigns the primary key
func (r *Record) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// LineItem is the snapshot of one cart entry that was sent to the provider
type LineItem struct {
	ID         uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	PaymentID  uuid.UUID        `gorm:"type:uuid;not null;index" json:"payment_id"`
	ItemKind   purchasable.Kind `gorm:"size:32;not null" json:"item_kind"`
	ItemID     uuid.UUID        `gorm:"type:uuid;not null" json:"item_id"`
	Title      string           `gorm:"size:255;not null" json:"title"`
	UnitPrice  decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	UnitAmount int64            `gorm:"not null" json:"unit_amount"` // minor units
	Quantity   int              `gorm:"not null" json:"quantity"`
	LineTotal  decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"line_total"`
	Position   int              `gorm:"not null;default:0" json:"position"`
}

// TableName overrides the table name
func (LineItem) TableName() string {
	return "payment_line_items"
}

// BeforeCreate assigns the primary key
func (l *LineItem) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// internal/domain/cart/entity.go
package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/your-org/marketplace-backend/internal/domain/purchasable"
	"gorm.io/gorm"
)

// CartEntry is one (user, item) row. Rows are hard-deleted so the unique slot is freed.
type CartEntry struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_cart_entries_user_item,priority:1" json:"user_id"`
	ItemKind  purchasable.Kind `gorm:"size:32;not null;uniqueIndex:idx_cart_entries_user_item,priority:2;index:idx_cart_entries_item,priority:1" json:"item_kind"`
	ItemID    uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_cart_entries_user_item,priority:3;index:idx_cart_entries_item,priority:2" json:"item_id"`
	Quantity  int              `gorm:"not null;default:1;check:quantity >= 1" json:"quantity"`
	AddedAt   time.Time        `gorm:"not null" json:"added_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// TableName overrides the table name
func (CartEntry) TableName() string {
	return "cart_entries"
}

// BeforeCreate assigns the primary key
func (e *CartEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Ref returns the entry's item reference
func (e *CartEntry) Ref() purchasable.Ref {
	return purchasable.Ref{Kind: e.ItemKind, ID: e.ItemID}
}

// Line is a cart entry joined with its live item
type Line struct {
	ID        uuid.UUID        `json:"id"`
	Kind      purchasable.Kind `json:"kind"`
	ItemID    uuid.UUID        `json:"item_id"`
	Title     string           `json:"title"`
	Summary   string           `json:"description"`
	ItemType  string           `json:"type"`
	ImageURL  string           `json:"image_url,omitempty"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	Quantity  int              `json:"quantity"`
	LineTotal decimal.Decimal  `json:"line_total"`
	AddedAt   time.Time        `json:"added_at"`
}

// CartTotals represents calculated cart totals
type CartTotals struct {
	ItemCount     int             `json:"item_count"`     // Number of unique items
	TotalQuantity int             `json:"total_quantity"` // Sum of all quantities
	SubTotal      decimal.Decimal `json:"sub_total"`
}

// CartResponse represents a cart with resolved lines and summary
type CartResponse struct {
	UserID     uuid.UUID  `json:"user_id"`
	Items      []Line     `json:"items"`
	Totals     CartTotals `json:"totals"`
	StaleCount int        `json:"stale_count,omitempty"`
}

package wishlist

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/your-org/marketplace-backend/internal/domain/purchasable"
	"gorm.io/gorm"
)

// WishlistEntry marks an item as saved by a user
type WishlistEntry struct {
	ID       uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID   uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_wishlist_entries_user_item,priority:1" json:"user_id"`
	ItemKind purchasable.Kind `gorm:"size:32;not null;uniqueIndex:idx_wishlist_entries_user_item,priority:2;index:idx_wishlist_entries_item,priority:1" json:"item_kind"`
	ItemID   uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_wishlist_entries_user_item,priority:3;index:idx_wishlist_entries_item,priority:2" json:"item_id"`
	AddedAt  time.Time        `gorm:"not null" json:"added_at"`
}

// TableName overrides the table name
func (WishlistEntry) TableName() string {
	return "wishlist_entries"
}

// BeforeCreate assigns the primary key
func (e *WishlistEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Ref returns the entry's item reference
func (e *WishlistEntry) Ref() purchasable.Ref {
	return purchasable.Ref{Kind: e.ItemKind, ID: e.ItemID}
}

// WishlistItemResponse represents a wishlist entry with live item details
type WishlistItemResponse struct {
	ID        uuid.UUID        `json:"id"`
	Kind      purchasable.Kind `json:"kind"`
	ItemID    uuid.UUID        `json:"item_id"`
	Title     string           `json:"title"`
	Summary   string           `json:"description"`
	ItemType  string           `json:"type"`
	ImageURL  string           `json:"image_url,omitempty"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	AddedAt   time.Time        `json:"added_at"`
}

// WishlistResponse represents a wishlist with items and summary
type WishlistResponse struct {
	Items      []WishlistItemResponse `json:"items"`
	Count      int                    `json:"count"`
	TotalValue decimal.Decimal        `json:"total_value"`
	StaleCount int                    `json:"stale_count,omitempty"`
}

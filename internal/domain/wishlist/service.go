package wishlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/domain/cart"
	"github.com/your-org/marketplace-backend/internal/domain/purchasable"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotInWishlist is returned when moving an item that was never saved
var ErrNotInWishlist = errors.New("item is not in wishlist")

// Service handles wishlist business logic
type Service struct {
	db          *gorm.DB
	registry    *purchasable.Registry
	cartService *cart.Service
	log         logrus.FieldLogger
}

// NewService creates a new wishlist service
func NewService(db *gorm.DB, registry *purchasable.Registry, cartService *cart.Service, log logrus.FieldLogger) *Service {
	return &Service{
		db:          db,
		registry:    registry,
		cartService: cartService,
		log:         log,
	}
}

// AddToWishlistRequest represents add to wishlist request
type AddToWishlistRequest struct {
	Kind   string `json:"kind" binding:"required"`
	ItemID string `json:"item_id" binding:"required,uuid"`
}

// MoveToCartRequest represents move to cart request
type MoveToCartRequest struct {
	Quantity int `json:"quantity" binding:"omitempty,min=1"`
}

// Add saves ref for the user. Adding an item twice keeps the original entry.
func (s *Service) Add(ctx context.Context, userID uuid.UUID, ref purchasable.Ref) (*WishlistEntry, error) {
	if !s.registry.Known(ref.Kind) {
		return nil, fmt.Errorf("%w: %q", purchasable.ErrUnknownKind, ref.Kind)
	}
	if _, err := s.registry.Resolve(ctx, ref); err != nil {
		return nil, err
	}

	entry := WishlistEntry{
		UserID:   userID,
		ItemKind: ref.Kind,
		ItemID:   ref.ID,
		AddedAt:  time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "item_kind"}, {Name: "item_id"}},
		DoNothing: true,
	}).Create(&entry).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("failed to add to wishlist: %w", err)
	}

	var stored WishlistEntry
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND item_kind = ? AND item_id = ?", userID, ref.Kind, ref.ID).
		First(&stored).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load wishlist entry: %w", err)
	}
	return &stored, nil
}

// Remove deletes ref from the wishlist. It returns false when there was nothing to remove.
func (s *Service) Remove(ctx context.Context, userID uuid.UUID, ref purchasable.Ref) (bool, error) {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND item_kind = ? AND item_id = ?", userID, ref.Kind, ref.ID).
		Delete(&WishlistEntry{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to remove from wishlist: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// List returns the user's wishlist, newest first, skipping items that no longer exist
func (s *Service) List(ctx context.Context, userID uuid.UUID) (*WishlistResponse, error) {
	var entries []WishlistEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("added_at DESC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve wishlist: %w", err)
	}

	resp := &WishlistResponse{
		Items:      make([]WishlistItemResponse, 0, len(entries)),
		TotalValue: decimal.Zero,
	}
	for i := range entries {
		entry := &entries[i]
		item, err := s.registry.Resolve(ctx, entry.Ref())
		if err != nil {
			if errors.Is(err, purchasable.ErrNotFound) || errors.Is(err, purchasable.ErrUnknownKind) {
				s.log.WithFields(logrus.Fields{
					"user_id": userID,
					"kind":    entry.ItemKind,
					"item_id": entry.ItemID,
				}).WithError(err).Warn("Skipping stale wishlist entry")
				resp.StaleCount++
				continue
			}
			return nil, fmt.Errorf("failed to resolve wishlist item: %w", err)
		}

		resp.Items = append(resp.Items, WishlistItemResponse{
			ID:        entry.ID,
			Kind:      entry.ItemKind,
			ItemID:    entry.ItemID,
			Title:     item.DisplayTitle(),
			Summary:   item.Summary(),
			ItemType:  item.ItemType(),
			ImageURL:  purchasable.ImageOf(item),
			UnitPrice: item.UnitPrice(),
			AddedAt:   entry.AddedAt,
		})
		resp.TotalValue = resp.TotalValue.Add(item.UnitPrice())
	}
	resp.Count = len(resp.Items)
	return resp, nil
}

// IsInWishlist checks if ref is saved by the user
func (s *Service) IsInWishlist(ctx context.Context, userID uuid.UUID, ref purchasable.Ref) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&WishlistEntry{}).
		Where("user_id = ? AND item_kind = ? AND item_id = ?", userID, ref.Kind, ref.ID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check wishlist: %w", err)
	}
	return count > 0, nil
}

// MoveToCart adds ref to the cart and then drops it from the wishlist
func (s *Service) MoveToCart(ctx context.Context, userID uuid.UUID, ref purchasable.Ref, quantity int) (*cart.CartEntry, error) {
	saved, err := s.IsInWishlist(ctx, userID, ref)
	if err != nil {
		return nil, err
	}
	if !saved {
		return nil, fmt.Errorf("item %s: %w", ref, ErrNotInWishlist)
	}

	entry, err := s.cartService.Add(ctx, userID, ref, quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to add to cart: %w", err)
	}

	if _, err := s.Remove(ctx, userID, ref); err != nil {
		s.log.WithFields(logrus.Fields{
			"user_id": userID,
			"kind":    ref.Kind,
			"item_id": ref.ID,
		}).WithError(err).Warn("Item moved to cart but wishlist entry was kept")
	}
	return entry, nil
}

// PurgeItem removes every wishlist row referencing ref
func (s *Service) PurgeItem(tx *gorm.DB, ref purchasable.Ref) (int64, error) {
	result := tx.Where("item_kind = ? AND item_id = ?", ref.Kind, ref.ID).Delete(&WishlistEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge wishlist entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}

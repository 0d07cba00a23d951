// internal/domain/cart/service.go
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/domain/purchasable"
	"gorm.io/gorm"
)

// ErrInvalidQuantity is returned for negative add quantities
var ErrInvalidQuantity = errors.New("quantity must be a positive number")

// Service handles cart business logic
type Service struct {
	store    *Store
	registry *purchasable.Registry
	log      logrus.FieldLogger
}

// NewService creates a new cart service
func NewService(db *gorm.DB, registry *purchasable.Registry, log logrus.FieldLogger) *Service {
	return &Service{
		store:    NewStore(db),
		registry: registry,
		log:      log,
	}
}

// Store exposes the underlying store for transactional callers
func (s *Service) Store() *Store {
	return s.store
}

// AddToCartRequest represents add to cart request
type AddToCartRequest struct {
	Kind     string `json:"kind" binding:"required"`
	ItemID   string `json:"item_id" binding:"required,uuid"`
	Quantity int    `json:"quantity" binding:"omitempty,min=1"`
}

// Add puts quantity of ref into the user's cart, accumulating onto an existing row.
// A zero quantity means one.
func (s *Service) Add(ctx context.Context, userID uuid.UUID, ref purchasable.Ref, quantity int) (*CartEntry, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if quantity == 0 {
		quantity = 1
	}
	if err := s.checkResolvable(ctx, ref); err != nil {
		return nil, err
	}

	entry, err := s.store.Upsert(ctx, userID, ref, quantity)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"kind":     ref.Kind,
		"item_id":  ref.ID,
		"quantity": entry.Quantity,
	}).Debug("Cart entry upserted")

	return entry, nil
}

// Remove deletes ref from the cart. It returns false when there was nothing to remove.
func (s *Service) Remove(ctx context.Context, userID uuid.UUID, ref purchasable.Ref) (bool, error) {
	return s.store.Delete(ctx, userID, ref)
}

// List returns the cart with live item details. Entries whose item is gone are skipped.
func (s *Service) List(ctx context.Context, userID uuid.UUID) (*CartResponse, error) {
	entries, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := &CartResponse{
		UserID: userID,
		Items:  make([]Line, 0, len(entries)),
	}

	for i := range entries {
		entry := &entries[i]
		item, err := s.registry.Resolve(ctx, entry.Ref())
		if err != nil {
			if isStale(err) {
				s.logStale(userID, entry, err)
				resp.StaleCount++
				continue
			}
			return nil, fmt.Errorf("failed to resolve cart item: %w", err)
		}

		resp.Items = append(resp.Items, NewLine(entry, item))
	}

	resp.Totals = CalculateTotals(resp.Items)
	return resp, nil
}

// Entries returns the raw rows of the user's cart
func (s *Service) Entries(ctx context.Context, userID uuid.UUID) ([]CartEntry, error) {
	return s.store.ListByUser(ctx, userID)
}

// Clear empties the user's cart
func (s *Service) Clear(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.store.DeleteByUser(ctx, userID)
}

// Count returns the sum of quantities in the user's cart
func (s *Service) Count(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.store.SumQuantity(ctx, userID)
}

func (s *Service) checkResolvable(ctx context.Context, ref purchasable.Ref) error {
	if !s.registry.Known(ref.Kind) {
		return fmt.Errorf("%w: %q", purchasable.ErrUnknownKind, ref.Kind)
	}
	if _, err := s.registry.Resolve(ctx, ref); err != nil {
		return err
	}
	return nil
}

func (s *Service) logStale(userID uuid.UUID, entry *CartEntry, err error) {
	s.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"entry_id": entry.ID,
		"kind":     entry.ItemKind,
		"item_id":  entry.ItemID,
	}).WithError(err).Warn("Skipping stale cart entry")
}

// NewLine joins an entry with its resolved item
func NewLine(entry *CartEntry, item purchasable.Purchasable) Line {
	price := item.UnitPrice()
	return Line{
		ID:        entry.ID,
		Kind:      entry.ItemKind,
		ItemID:    entry.ItemID,
		Title:     item.DisplayTitle(),
		Summary:   item.Summary(),
		ItemType:  item.ItemType(),
		ImageURL:  purchasable.ImageOf(item),
		UnitPrice: price,
		Quantity:  entry.Quantity,
		LineTotal: price.Mul(decimal.NewFromInt(int64(entry.Quantity))),
		AddedAt:   entry.AddedAt,
	}
}

// CalculateTotals sums a set of resolved lines
func CalculateTotals(lines []Line) CartTotals {
	totals := CartTotals{SubTotal: decimal.Zero}
	for _, line := range lines {
		totals.ItemCount++
		totals.TotalQuantity += line.Quantity
		totals.SubTotal = totals.SubTotal.Add(line.LineTotal)
	}
	return totals
}

// isStale reports whether a resolution error means the item was deleted.
// Unknown kinds are stale too: the kind was unregistered after the row was written.
func isStale(err error) bool {
	return errors.Is(err, purchasable.ErrNotFound) || errors.Is(err, purchasable.ErrUnknownKind)
}

package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/your-org/marketplace-backend/internal/domain/purchasable"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const pgUniqueViolation = "23505"

// Store persists cart entries
type Store struct {
	db *gorm.DB
}

// NewStore creates a new cart store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx returns a store bound to tx
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx}
}

// Upsert adds quantity to the (user, item) row, creating it if needed, in one statement.
func (s *Store) Upsert(ctx context.Context, userID uuid.UUID, ref purchasable.Ref, quantity int) (*CartEntry, error) {
	now := time.Now().UTC()
	entry := CartEntry{
		UserID:    userID,
		ItemKind:  ref.Kind,
		ItemID:    ref.ID,
		Quantity:  quantity,
		AddedAt:   now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "item_kind"}, {Name: "item_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("cart_entries.quantity + excluded.quantity"),
			"updated_at": now,
		}),
	}).Create(&entry).Error

	if err != nil {
		if !isDuplicateKey(err) {
			return nil, fmt.Errorf("failed to upsert cart entry: %w", err)
		}
		// Lost a race on a store without native upsert support.
		if err := s.increment(ctx, userID, ref, quantity, now); err != nil {
			return nil, err
		}
	}

	return s.Find(ctx, userID, ref)
}

func (s *Store) increment(ctx context.Context, userID uuid.UUID, ref purchasable.Ref, quantity int, now time.Time) error {
	result := s.db.WithContext(ctx).Model(&CartEntry{}).
		Where("user_id = ? AND item_kind = ? AND item_id = ?", userID, ref.Kind, ref.ID).
		Updates(map[string]interface{}{
			"quantity":   gorm.Expr("quantity + ?", quantity),
			"updated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to increment cart entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to increment cart entry: row vanished")
	}
	return nil
}

// Find returns the (user, item) row
func (s *Store) Find(ctx context.Context, userID uuid.UUID, ref purchasable.Ref) (*CartEntry, error) {
	var entry CartEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND item_kind = ? AND item_id = ?", userID, ref.Kind, ref.ID).
		First(&entry).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load cart entry: %w", err)
	}
	return &entry, nil
}

// Delete removes the (user, item) row and reports whether it existed
func (s *Store) Delete(ctx context.Context, userID uuid.UUID, ref purchasable.Ref) (bool, error) {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND item_kind = ? AND item_id = ?", userID, ref.Kind, ref.ID).
		Delete(&CartEntry{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete cart entry: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListByUser returns the user's rows in stable display order
func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID) ([]CartEntry, error) {
	var entries []CartEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("added_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve cart entries: %w", err)
	}
	return entries, nil
}

// DeleteByUser removes every row of the user
func (s *Store) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&CartEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clear cart: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// SumQuantity returns the total quantity across the user's rows
func (s *Store) SumQuantity(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&CartEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count cart items: %w", err)
	}
	return total, nil
}

// PurgeItem removes every row referencing ref
func (s *Store) PurgeItem(tx *gorm.DB, ref purchasable.Ref) (int64, error) {
	result := tx.Where("item_kind = ? AND item_id = ?", ref.Kind, ref.ID).Delete(&CartEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge cart entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists payment records
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new payment repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create stores a record together with its line items
func (r *Repository) Create(ctx context.Context, record *Record) error {
	if !record.Amount.IsPositive() {
		return fmt.Errorf("payment amount must be positive, got %s", record.Amount)
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create payment record: %w", err)
	}
	return nil
}

// FindBySession returns the record for a provider session id
func (r *Repository) FindBySession(ctx context.Context, sessionID string) (*Record, error) {
	return r.first(ctx, r.db.Where("external_session_id = ?", sessionID))
}

// FindForUser returns one of the user's records
func (r *Repository) FindForUser(ctx context.Context, userID, id uuid.UUID) (*Record, error) {
	return r.first(ctx, r.db.Where("id = ? AND user_id = ?", id, userID))
}

// FindByID returns a record regardless of owner
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return r.first(ctx, r.db.Where("id = ?", id))
}

// LatestPending returns the user's most recent pending record
func (r *Repository) LatestPending(ctx context.Context, userID uuid.UUID) (*Record, error) {
	return r.first(ctx, r.db.
		Where("user_id = ? AND status = ?", userID, StatusPending).
		Order("created_at DESC, id DESC"))
}

// ListByUser returns the user's records, newest first
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var records []Record
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve payments: %w", err)
	}
	return records, nil
}

func (r *Repository) first(ctx context.Context, query *gorm.DB) (*Record, error) {
	var record Record
	err := query.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve payment record: %w", err)
	}
	return &record, nil
}

// MarkSucceeded moves an open record to succeeded. It reports false when the
// record was already terminal, so the caller knows it lost the race.
func (r *Repository) MarkSucceeded(ctx context.Context, id uuid.UUID, paymentIntent string) (bool, error) {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":       StatusSucceeded,
		"completed_at": now,
		"updated_at":   now,
	}
	if paymentIntent != "" {
		updates["external_payment_intent"] = paymentIntent
	}
	return r.transition(ctx, id, updates)
}

// MarkClosed moves an open record to failed or canceled
func (r *Repository) MarkClosed(ctx context.Context, id uuid.UUID, status Status, reason string) (bool, error) {
	if status != StatusFailed && status != StatusCanceled {
		return false, fmt.Errorf("%w: cannot close with %q", ErrInvalidTransition, status)
	}
	now := time.Now().UTC()
	return r.transition(ctx, id, map[string]interface{}{
		"status":         status,
		"failure_reason": reason,
		"completed_at":   now,
		"updated_at":     now,
	})
}

// MarkOpen records an intermediate provider state such as requires_action
func (r *Repository) MarkOpen(ctx context.Context, id uuid.UUID, status Status) (bool, error) {
	if status.IsTerminal() || !status.Valid() {
		return false, fmt.Errorf("%w: %q is not an open status", ErrInvalidTransition, status)
	}
	return r.transition(ctx, id, map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	})
}

// transition applies updates only while the record is still open
func (r *Repository) transition(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).Model(&Record{}).
		Where("id = ? AND status IN ?", id, openStatuses).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update payment status: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

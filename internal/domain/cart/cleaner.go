package cart

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/domain/purchasable"
	"gorm.io/gorm"
)

// Purger deletes every row that references an item
type Purger interface {
	PurgeItem(tx *gorm.DB, ref purchasable.Ref) (int64, error)
}

// Cleaner removes cart and wishlist rows when the referenced entity is deleted
type Cleaner struct {
	db      *gorm.DB
	log     logrus.FieldLogger
	purgers []Purger
}

// NewCleaner creates a cleaner over the given purgers
func NewCleaner(db *gorm.DB, log logrus.FieldLogger, purgers ...Purger) *Cleaner {
	return &Cleaner{db: db, log: log, purgers: purgers}
}

// OnEntityDeleted purges all references to ref in one transaction
func (c *Cleaner) OnEntityDeleted(ctx context.Context, ref purchasable.Ref) error {
	var removed int64
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range c.purgers {
			n, err := p.PurgeItem(tx, ref)
			if err != nil {
				return err
			}
			removed += n
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clean up references to %s: %w", ref, err)
	}

	c.log.WithFields(logrus.Fields{
		"kind":    ref.Kind,
		"item_id": ref.ID,
		"removed": removed,
	}).Info("Removed references to deleted item")
	return nil
}

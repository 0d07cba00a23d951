package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/marketplace-backend/internal/domain/purchasable"
	"github.com/your-org/marketplace-backend/internal/testutil"
	"gorm.io/gorm"
)

type fakeItem struct {
	title string
	price decimal.Decimal
}

func (f fakeItem) UnitPrice() decimal.Decimal { return f.price }
func (f fakeItem) DisplayTitle() string       { return f.title }
func (f fakeItem) Summary() string            { return f.title + " summary" }
func (f fakeItem) ItemType() string           { return "Fake" }

// fakeCatalog is an in-memory resolver keyed by id
type fakeCatalog struct {
	mu    sync.Mutex
	items map[uuid.UUID]fakeItem
	err   error
}

func (c *fakeCatalog) put(title, price string) purchasable.Ref {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.New()
	c.items[id] = fakeItem{title: title, price: decimal.RequireFromString(price)}
	return purchasable.Ref{Kind: purchasable.KindService, ID: id}
}

func (c *fakeCatalog) drop(ref purchasable.Ref) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, ref.ID)
}

func (c *fakeCatalog) resolve(_ context.Context, id uuid.UUID) (purchasable.Purchasable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	item, ok := c.items[id]
	if !ok {
		return nil, purchasable.ErrNotFound
	}
	return item, nil
}

func newTestCart(t *testing.T) (*Service, *fakeCatalog, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t, &CartEntry{})
	catalog := &fakeCatalog{items: make(map[uuid.UUID]fakeItem)}
	reg := purchasable.NewRegistry()
	reg.Register(purchasable.KindService, catalog.resolve)
	return NewService(db, reg, testutil.NewLogger()), catalog, db
}

func countRows(t *testing.T, db *gorm.DB, userID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&CartEntry{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

func TestAddAccumulatesQuantity(t *testing.T) {
	svc, catalog, db := newTestCart(t)
	ctx := context.Background()
	user := uuid.New()
	ref := catalog.put("Logo", "20.00")

	first, err := svc.Add(ctx, user, ref, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Quantity)

	second, err := svc.Add(ctx, user, ref, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, second.Quantity)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), countRows(t, db, user))
}

func TestAddDefaultsToOne(t *testing.T) {
	svc, catalog, _ := newTestCart(t)
	ref := catalog.put("Logo", "20.00")

	entry, err := svc.Add(context.Background(), uuid.New(), ref, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Quantity)
}

func TestAddRejectsBadInput(t *testing.T) {
	svc, catalog, db := newTestCart(t)
	ctx := context.Background()
	user := uuid.New()
	ref := catalog.put("Logo", "20.00")

	_, err := svc.Add(ctx, user, ref, -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Add(ctx, user, purchasable.Ref{Kind: purchasable.KindMentorship, ID: uuid.New()}, 1)
	assert.ErrorIs(t, err, purchasable.ErrUnknownKind)

	_, err = svc.Add(ctx, user, purchasable.Ref{Kind: purchasable.KindService, ID: uuid.New()}, 1)
	assert.ErrorIs(t, err, purchasable.ErrNotFound)

	assert.Equal(t, int64(0), countRows(t, db, user))
}

func TestUsersHaveSeparateRows(t *testing.T) {
	svc, catalog, db := newTestCart(t)
	ctx := context.Background()
	ref := catalog.put("Logo", "20.00")
	alice, bob := uuid.New(), uuid.New()

	_, err := svc.Add(ctx, alice, ref, 1)
	require.NoError(t, err)
	_, err = svc.Add(ctx, bob, ref, 4)
	require.NoError(t, err)

	assert.Equal(t, int64(1), countRows(t, db, alice))
	assert.Equal(t, int64(1), countRows(t, db, bob))
}

func TestRemoveIsIdempotent(t *testing.T) {
	svc, catalog, db := newTestCart(t)
	ctx := context.Background()
	user := uuid.New()
	kept := catalog.put("Kept", "5.00")
	removed := catalog.put("Removed", "7.00")

	_, err := svc.Add(ctx, user, kept, 1)
	require.NoError(t, err)
	_, err = svc.Add(ctx, user, removed, 1)
	require.NoError(t, err)

	ok, err := svc.Remove(ctx, user, removed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Remove(ctx, user, removed)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Remove(ctx, user, catalog.put("Never added", "1.00"))
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, int64(1), countRows(t, db, user))
}

func TestListSkipsStaleEntries(t *testing.T) {
	svc, catalog, _ := newTestCart(t)
	ctx := context.Background()
	user := uuid.New()
	a := catalog.put("A", "20.00")
	b := catalog.put("B", "45.00")
	gone := catalog.put("Gone", "99.00")

	for _, ref := range []purchasable.Ref{a, gone, b} {
		_, err := svc.Add(ctx, user, ref, 1)
		require.NoError(t, err)
	}
	_, err := svc.Add(ctx, user, a, 1)
	require.NoError(t, err)
	catalog.drop(gone)

	cart, err := svc.List(ctx, user)
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, "A", cart.Items[0].Title)
	assert.Equal(t, "B", cart.Items[1].Title)
	assert.Equal(t, 1, cart.StaleCount)
	assert.Equal(t, 2, cart.Totals.ItemCount)
	assert.Equal(t, 3, cart.Totals.TotalQuantity)
	assert.True(t, cart.Totals.SubTotal.Equal(decimal.RequireFromString("85.00")), cart.Totals.SubTotal.String())
}

func TestListPropagatesResolverFailures(t *testing.T) {
	svc, catalog, _ := newTestCart(t)
	ctx := context.Background()
	user := uuid.New()
	_, err := svc.Add(ctx, user, catalog.put("A", "1.00"), 1)
	require.NoError(t, err)

	catalog.err = errors.New("catalog unavailable")
	_, err = svc.List(ctx, user)
	assert.ErrorContains(t, err, "catalog unavailable")
}

func TestCountAndClear(t *testing.T) {
	svc, catalog, _ := newTestCart(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := svc.Add(ctx, user, catalog.put("A", "1.00"), 2)
	require.NoError(t, err)
	_, err = svc.Add(ctx, user, catalog.put("B", "1.00"), 3)
	require.NoError(t, err)

	count, err := svc.Count(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	removed, err := svc.Clear(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	count, err = svc.Count(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestConcurrentAddKeepsOneRow(t *testing.T) {
	svc, catalog, db := newTestCart(t)
	ctx := context.Background()
	user := uuid.New()
	ref := catalog.put("Hot item", "10.00")

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Add(ctx, user, ref, 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), countRows(t, db, user))
	entry, err := svc.Store().Find(ctx, user, ref)
	require.NoError(t, err)
	assert.Equal(t, workers, entry.Quantity)
}

type wishlistRow struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	ItemKind purchasable.Kind
	ItemID   uuid.UUID `gorm:"type:uuid"`
}

type wishlistPurger struct{}

func (wishlistPurger) PurgeItem(tx *gorm.DB, ref purchasable.Ref) (int64, error) {
	result := tx.Where("item_kind = ? AND item_id = ?", ref.Kind, ref.ID).Delete(&wishlistRow{})
	return result.RowsAffected, result.Error
}

func TestCleanerPurgesAllStores(t *testing.T) {
	svc, catalog, db := newTestCart(t)
	require.NoError(t, db.AutoMigrate(&wishlistRow{}))
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	doomed := catalog.put("Doomed", "3.00")
	survivor := catalog.put("Survivor", "4.00")

	for _, user := range []uuid.UUID{alice, bob} {
		_, err := svc.Add(ctx, user, doomed, 1)
		require.NoError(t, err)
	}
	_, err := svc.Add(ctx, alice, survivor, 1)
	require.NoError(t, err)
	require.NoError(t, db.Create(&wishlistRow{ID: uuid.New(), ItemKind: doomed.Kind, ItemID: doomed.ID}).Error)

	cleaner := NewCleaner(db, testutil.NewLogger(), svc.Store(), wishlistPurger{})
	require.NoError(t, cleaner.OnEntityDeleted(ctx, doomed))

	assert.Equal(t, int64(1), countRows(t, db, alice))
	assert.Equal(t, int64(0), countRows(t, db, bob))

	var wished int64
	require.NoError(t, db.Model(&wishlistRow{}).Count(&wished).Error)
	assert.Equal(t, int64(0), wished)
}

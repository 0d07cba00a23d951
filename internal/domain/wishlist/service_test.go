package wishlist

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/marketplace-backend/internal/domain/cart"
	"github.com/your-org/marketplace-backend/internal/domain/purchasable"
	"github.com/your-org/marketplace-backend/internal/testutil"
	"gorm.io/gorm"
)

type listing struct {
	title string
	price decimal.Decimal
}

func (l listing) UnitPrice() decimal.Decimal { return l.price }
func (l listing) DisplayTitle() string       { return l.title }
func (l listing) Summary() string            { return "" }
func (l listing) ItemType() string           { return "Service" }

type fixture struct {
	svc   *Service
	carts *cart.Service
	db    *gorm.DB
	mu    sync.Mutex
	items map[uuid.UUID]listing
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:    testutil.NewDB(t, &WishlistEntry{}, &cart.CartEntry{}),
		items: make(map[uuid.UUID]listing),
	}
	reg := purchasable.NewRegistry()
	reg.Register(purchasable.KindService, func(_ context.Context, id uuid.UUID) (purchasable.Purchasable, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		item, ok := f.items[id]
		if !ok {
			return nil, purchasable.ErrNotFound
		}
		return item, nil
	})
	log := testutil.NewLogger()
	f.carts = cart.NewService(f.db, reg, log)
	f.svc = NewService(f.db, reg, f.carts, log)
	return f
}

func (f *fixture) put(title, price string) purchasable.Ref {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.items[id] = listing{title: title, price: decimal.RequireFromString(price)}
	return purchasable.Ref{Kind: purchasable.KindService, ID: id}
}

func TestAddIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()
	ref := f.put("Landing page", "300.00")

	first, err := f.svc.Add(ctx, user, ref)
	require.NoError(t, err)
	second, err := f.svc.Add(ctx, user, ref)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var n int64
	require.NoError(t, f.db.Model(&WishlistEntry{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestAddUnknownKind(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Add(context.Background(), uuid.New(), purchasable.Ref{Kind: purchasable.KindMentorship, ID: uuid.New()})
	assert.ErrorIs(t, err, purchasable.ErrUnknownKind)
}

func TestRemoveReportsPresence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()
	ref := f.put("Audit", "10.00")

	_, err := f.svc.Add(ctx, user, ref)
	require.NoError(t, err)

	ok, err := f.svc.Remove(ctx, user, ref)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.Remove(ctx, user, ref)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListFiltersStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()
	kept := f.put("Kept", "12.50")
	gone := f.put("Gone", "1.00")

	_, err := f.svc.Add(ctx, user, kept)
	require.NoError(t, err)
	_, err = f.svc.Add(ctx, user, gone)
	require.NoError(t, err)

	f.mu.Lock()
	delete(f.items, gone.ID)
	f.mu.Unlock()

	list, err := f.svc.List(ctx, user)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Kept", list.Items[0].Title)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, 1, list.StaleCount)
	assert.True(t, list.TotalValue.Equal(decimal.RequireFromString("12.50")))
}

func TestMoveToCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()
	ref := f.put("Review", "40.00")

	_, err := f.svc.MoveToCart(ctx, user, ref, 1)
	assert.ErrorIs(t, err, ErrNotInWishlist)

	_, err = f.svc.Add(ctx, user, ref)
	require.NoError(t, err)

	entry, err := f.svc.MoveToCart(ctx, user, ref, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Quantity)

	saved, err := f.svc.IsInWishlist(ctx, user, ref)
	require.NoError(t, err)
	assert.False(t, saved)

	count, err := f.carts.Count(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestCleanerRemovesWishlistAndCartRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()
	ref := f.put("Doomed", "5.00")

	_, err := f.svc.Add(ctx, user, ref)
	require.NoError(t, err)
	_, err = f.carts.Add(ctx, user, ref, 1)
	require.NoError(t, err)

	cleaner := cart.NewCleaner(f.db, testutil.NewLogger(), f.carts.Store(), f.svc)
	require.NoError(t, cleaner.OnEntityDeleted(ctx, ref))

	saved, err := f.svc.IsInWishlist(ctx, user, ref)
	require.NoError(t, err)
	assert.False(t, saved)

	count, err := f.carts.Count(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

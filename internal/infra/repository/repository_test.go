package repository_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"ecorder/internal/domain/model"
	"ecorder/internal/infra/db"
	infra "ecorder/internal/infra/repository"
	repo "ecorder/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// in-memoryは接続ごとに別DBになるので1本に絞る
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func seedProduct(t *testing.T, gdb *gorm.DB, name string, price string, stock int64) model.Product {
	t.Helper()
	p, err := infra.NewProductGormRepository(gdb).Create(context.Background(), model.Product{
		Name:     name,
		Category: model.CategoryShirt,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
	})
	require.NoError(t, err)
	return p
}

func TestInventory_DecreaseStockIfEnough(t *testing.T) {
	gdb := newTestDB(t)
	ctx := context.Background()
	inv := infra.NewInventoryGormRepository(gdb)
	products := infra.NewProductGormRepository(gdb)

	p := seedProduct(t, gdb, "Shirt", "12.50", 5)

	ok, err := inv.DecreaseStockIfEnough(ctx, p.ID, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	// 残り2なので3は通らない
	ok, err = inv.DecreaseStockIfEnough(ctx, p.ID, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = inv.DecreaseStockIfEnough(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Stock)

	require.NoError(t, inv.IncreaseStock(ctx, p.ID, 3))
	got, err = products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Stock)

	assert.ErrorIs(t, inv.IncreaseStock(ctx, 9999, 1), repo.ErrNotFound)
}

func TestInventory_ConcurrentDecreaseForLastUnit(t *testing.T) {
	// 複数接続で同時に書き込ませるためファイルDBを使う
	dsn := filepath.Join(t.TempDir(), "stock.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(4)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))

	ctx := context.Background()
	inv := infra.NewInventoryGormRepository(gdb)
	p := seedProduct(t, gdb, "Last", "10", 1)

	const workers = 2
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		oks   = make([]bool, workers)
		errs  = make([]error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			oks[i], errs[i] = inv.DecreaseStockIfEnough(ctx, p.ID, 1)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		if oks[i] {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)

	got, err := infra.NewProductGormRepository(gdb).FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Stock)
}

func TestInventory_SetStockReturnsPrevious(t *testing.T) {
	gdb := newTestDB(t)
	ctx := context.Background()
	inv := infra.NewInventoryGormRepository(gdb)

	p := seedProduct(t, gdb, "Pants", "30", 4)

	prev, err := inv.SetStock(ctx, p.ID, 11)
	require.NoError(t, err)
	assert.Equal(t, int64(4), prev)

	_, err = inv.SetStock(ctx, 9999, 1)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	require.NoError(t, inv.CreateAdjustment(ctx, model.InventoryAdjustment{
		ProductID: p.ID, ActorUserID: 1, Delta: 7, Reason: model.InventoryReasonAdminSet,
	}))
	adjs, err := inv.ListAdjustments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, adjs, 1)
	assert.Equal(t, int64(7), adjs[0].Delta)
}

func TestCart_UpsertMergesSameProduct(t *testing.T) {
	gdb := newTestDB(t)
	ctx := context.Background()
	carts := infra.NewCartGormRepository(gdb)

	p := seedProduct(t, gdb, "Shirt", "10", 10)

	cart, err := carts.GetOrCreateByUserID(ctx, 7)
	require.NoError(t, err)
	again, err := carts.GetOrCreateByUserID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, again.ID)

	_, err = carts.UpsertByCartAndProduct(ctx, cart.ID, p.ID, 2)
	require.NoError(t, err)
	item, err := carts.UpsertByCartAndProduct(ctx, cart.ID, p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), item.Quantity)

	items, err := carts.ListByCartID(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(5), items[0].Quantity)

	// 他人のカートの明細は見えない
	_, err = carts.FindOwned(ctx, item.ID, 8)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	owned, err := carts.FindOwned(ctx, item.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, item.ID, owned.ID)

	require.NoError(t, carts.Clear(ctx, cart.ID))
	items, err = carts.ListByCartID(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestOrder_CreateAndIdempotencyLookup(t *testing.T) {
	gdb := newTestDB(t)
	ctx := context.Background()
	orders := infra.NewOrderGormRepository(gdb)
	items := infra.NewOrderItemGormRepository(gdb)

	key := "key-1"
	o, err := orders.Create(ctx, model.Order{
		UserID:         1,
		Status:         model.OrderStatusPending,
		TotalAmount:    decimal.Zero,
		IdempotencyKey: &key,
	})
	require.NoError(t, err)
	assert.NotZero(t, o.ID)
	assert.Equal(t, model.TrackStatusNone, o.TrackStatus)

	found, ok, err := orders.FindByIdempotencyKey(ctx, 1, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, o.ID, found.ID)

	_, ok, err = orders.FindByIdempotencyKey(ctx, 1, "other")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, items.CreateBulk(ctx, o.ID, []model.OrderItem{
		{ProductID: 1, ProductName: "Shirt", PriceAtPurchase: decimal.RequireFromString("12.50"), Quantity: 2},
		{ProductID: 2, ProductName: "Cap", PriceAtPurchase: decimal.RequireFromString("0.99"), Quantity: 3},
	}))
	lines, err := items.ListByOrderID(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	total := model.ComputeTotal(lines)
	require.NoError(t, orders.UpdateTotals(ctx, o.ID, total, model.LoyaltyPoints(total)))

	got, err := orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("27.97")), "got %s", got.TotalAmount)
	assert.Equal(t, int64(2), got.LoyaltyPointsEarned)

	track := model.TrackStatusShipping
	require.NoError(t, orders.UpdateStatus(ctx, o.ID, model.OrderStatusPaid, &track))
	got, err = orders.FindByIDForUpdate(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, got.Status)
	assert.Equal(t, model.TrackStatusShipping, got.TrackStatus)

	assert.False(t, got.StockReleased)
	require.NoError(t, orders.MarkStockReleased(ctx, o.ID))
	got, err = orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.StockReleased)
	assert.ErrorIs(t, orders.MarkStockReleased(ctx, 9999), repo.ErrNotFound)

	_, err = orders.FindByID(ctx, 9999)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestOrder_ListByUserIDNewestFirst(t *testing.T) {
	gdb := newTestDB(t)
	ctx := context.Background()
	orders := infra.NewOrderGormRepository(gdb)

	var ids []int64
	for i := 0; i < 3; i++ {
		o, err := orders.Create(ctx, model.Order{UserID: 1, Status: model.OrderStatusPending, TotalAmount: decimal.Zero})
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}
	_, err := orders.Create(ctx, model.Order{UserID: 2, Status: model.OrderStatusPending, TotalAmount: decimal.Zero})
	require.NoError(t, err)

	list, err := orders.ListByUserID(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[0], list[2].ID)

	st := string(model.OrderStatusPending)
	all, err := orders.ListAdmin(ctx, repo.AdminOrderListFilter{Status: st})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestPaymentAndRefund(t *testing.T) {
	gdb := newTestDB(t)
	ctx := context.Background()
	payments := infra.NewPaymentGormRepository(gdb)
	refunds := infra.NewRefundGormRepository(gdb)

	_, ok, err := payments.FindByOrderID(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, payments.UpdateStatusByOrderID(ctx, 1, model.PaymentStatusRefunded), repo.ErrNotFound)

	p, err := payments.Create(ctx, model.Payment{OrderID: 1, UserID: 1, ProofRef: "proof", Status: model.PaymentStatusPending})
	require.NoError(t, err)
	require.NoError(t, payments.UpdateStatusByOrderID(ctx, 1, model.PaymentStatusRefunded))
	got, err := payments.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusRefunded, got.Status)

	exists, err := refunds.ExistsPendingByOrderID(ctx, 1)
	require.NoError(t, err)
	assert.False(t, exists)

	r, err := refunds.Create(ctx, model.RefundRequest{OrderID: 1, UserID: 1, Reason: model.DefaultRefundReason, Status: model.RefundStatusPending})
	require.NoError(t, err)
	exists, err = refunds.ExistsPendingByOrderID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, exists)

	note := "ok"
	require.NoError(t, refunds.UpdateStatus(ctx, r.ID, model.RefundStatusApproved, &note))
	locked, err := refunds.FindByIDForUpdate(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RefundStatusApproved, locked.Status)
	require.NotNil(t, locked.AdminNote)
	assert.Equal(t, "ok", *locked.AdminNote)

	list, err := refunds.List(ctx, repo.RefundListFilter{Status: string(model.RefundStatusPending)})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	gdb := newTestDB(t)
	ctx := context.Background()
	txm := infra.NewTxManagerGorm(gdb)
	p := seedProduct(t, gdb, "Shirt", "10", 5)

	boom := fmt.Errorf("boom")
	err := txm.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, p.ID, 5)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := infra.NewProductGormRepository(gdb).FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Stock)
}

func TestAuditLog_ListFilters(t *testing.T) {
	gdb := newTestDB(t)
	ctx := context.Background()
	logs := infra.NewAuditLogGormRepository(gdb)

	for _, id := range []int64{1, 1, 2} {
		require.NoError(t, logs.Create(ctx, model.AuditLog{
			ActorUserID:  9,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   id,
		}))
	}

	rt := model.AuditResourceOrder
	rid := int64(1)
	got, err := logs.List(ctx, repo.AuditLogFilter{ResourceType: &rt, ResourceID: &rid})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Greater(t, got[0].ID, got[1].ID)
}

func TestUser_CreateAndFind(t *testing.T) {
	gdb := newTestDB(t)
	ctx := context.Background()
	users := infra.NewUserGormRepository(gdb)

	u := &model.User{Email: "a@example.com", PasswordHash: "x", Role: model.RoleUser, IsActive: true}
	require.NoError(t, users.Create(ctx, u))
	assert.NotZero(t, u.ID)

	got, err := users.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = users.FindByID(ctx, 9999)
	assert.ErrorIs(t, err, repo.ErrUserNotFound)

	require.NoError(t, users.TouchLastLogin(ctx, u.ID))
	got, err = users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastLoginAt)
}

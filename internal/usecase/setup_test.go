package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"ecorder/internal/domain/model"
	"ecorder/internal/events"
	"ecorder/internal/infra/db"
	infra "ecorder/internal/infra/repository"
	"ecorder/internal/metrics"
	repo "ecorder/internal/repository"
	"ecorder/internal/usecase"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// 1テスト分のDBとusecase一式
type testEnv struct {
	db        *gorm.DB
	users     repo.UserRepository
	products  *infra.ProductGormRepository
	inventory *infra.InventoryGormRepository
	payments  *infra.PaymentGormRepository
	audit     repo.AuditLogRepository
	publisher *recordingPublisher
	metrics   *metrics.Metrics

	orders     *usecase.OrderUsecase
	carts      *usecase.CartUsecase
	pay        *usecase.PaymentUsecase
	refunds    *usecase.RefundUsecase
	adminOrder *usecase.AdminOrderUsecase
	product    *usecase.ProductUsecase
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func newEnv(t *testing.T, policy usecase.StockPolicy) *testEnv {
	t.Helper()

	gdb := newTestDB(t)
	env := &testEnv{
		db:        gdb,
		users:     infra.NewUserGormRepository(gdb),
		products:  infra.NewProductGormRepository(gdb),
		inventory: infra.NewInventoryGormRepository(gdb),
		payments:  infra.NewPaymentGormRepository(gdb),
		audit:     infra.NewAuditLogGormRepository(gdb),
		publisher: &recordingPublisher{},
		metrics:   metrics.New(prometheus.NewRegistry()),
	}
	txm := infra.NewTxManagerGorm(gdb)
	cartRepo := infra.NewCartGormRepository(gdb)

	env.orders = usecase.NewOrderUsecase(txm, env.users, env.publisher, env.metrics)
	env.carts = usecase.NewCartUsecase(cartRepo, cartRepo, env.products)
	env.pay = usecase.NewPaymentUsecase(txm, policy, env.publisher, env.metrics)
	env.refunds = usecase.NewRefundUsecase(txm, env.payments, infra.NewRefundGormRepository(gdb), policy, env.publisher, env.metrics)
	env.adminOrder = usecase.NewAdminOrderUsecase(txm, env.audit, env.publisher, env.metrics)
	env.product = usecase.NewProductUsecase(txm, env.products, env.inventory)
	return env
}

func (e *testEnv) seedUser(t *testing.T, email string, role model.Role, address string) int64 {
	t.Helper()
	u := &model.User{Email: email, PasswordHash: "x", Role: role, IsActive: true, Address: address}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u.ID
}

func (e *testEnv) seedProduct(t *testing.T, name, price string, stock int64) model.Product {
	t.Helper()
	p, err := e.products.Create(context.Background(), model.Product{
		Name:     name,
		Category: model.CategoryShirt,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) stock(t *testing.T, productID int64) int64 {
	t.Helper()
	p, err := e.products.FindByID(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

// 支払い申請まで済んだ pending 注文
func (e *testEnv) pendingOrderWithPayment(t *testing.T, userID int64, productID int64, qty int64) (usecase.OrderOutput, model.Payment) {
	t.Helper()
	ctx := context.Background()

	o, _, err := e.orders.Checkout(ctx, userID, usecase.CheckoutInput{
		Items: []usecase.CheckoutItemInput{{ProductID: productID, Quantity: qty}},
	})
	require.NoError(t, err)

	p, err := e.pay.Submit(ctx, userID, usecase.SubmitPaymentInput{OrderID: o.ID, ProofRef: "receipt-1"})
	require.NoError(t, err)
	return o, p
}

func requireCode(t *testing.T, err error, status int, code usecase.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	var he *usecase.HTTPError
	require.True(t, errors.As(err, &he), "want HTTPError, got %T: %v", err, err)
	require.Equal(t, status, he.Status, he.Message)
	require.Equal(t, code, he.Code, he.Message)
}

func itoa(v int64) string {
	return fmt.Sprintf("%d", v)
}

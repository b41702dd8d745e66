package repository

import (
	"context"

	"ecorder/internal/domain/model"

	"github.com/shopspring/decimal"
)

type AdminOrderListFilter struct {
	Status string
	UserID *int64
	Limit  int
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	// 行ロック付き取得。状態遷移はこれで読み直してから判定する
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, limit int) ([]model.Order, error)
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, error)
	Create(ctx context.Context, order model.Order) (model.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus, trackStatus *string) error
	UpdateTotals(ctx context.Context, orderID int64, total decimal.Decimal, loyaltyPoints int64) error
	UpdateTotal(ctx context.Context, orderID int64, total decimal.Decimal) error
	MarkStockReleased(ctx context.Context, orderID int64) error

	//同じキーなら同じ注文
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error)
}

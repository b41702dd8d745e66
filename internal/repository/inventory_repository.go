package repository

import (
	"context"

	"ecorder/internal/domain/model"
)

type InventoryRepository interface {
	// 在庫が足りるときだけ減算。足りなければ false
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（キャンセルなど）
	IncreaseStock(ctx context.Context, productID int64, qty int64) error

	// 在庫の現在値を設定し、前の値を返す
	SetStock(ctx context.Context, productID int64, newStock int64) (int64, error)

	// 増減履歴
	CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error
	ListAdjustments(ctx context.Context, productID int64) ([]model.InventoryAdjustment, error)
}

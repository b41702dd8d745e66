package repository

import (
	"context"

	"ecorder/internal/domain/model"
)

type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	// 同一商品は数量を加算。加算後の明細を返す
	UpsertByCartAndProduct(ctx context.Context, cartID int64, productID int64, addQty int64) (model.CartItem, error)
	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	DeleteByID(ctx context.Context, cartItemID int64) error
	DeleteByIDs(ctx context.Context, cartItemIDs []int64) error
	// 他人の明細は見つからない扱い
	FindOwned(ctx context.Context, cartItemID int64, userID int64) (model.CartItem, error)
}

package usecase

import (
	"context"
	"errors"

	"ecorder/internal/domain/model"
	repo "ecorder/internal/repository"
)

// 在庫の確保。足りなければ何も減らさず InsufficientStock を返す
func reserveStock(ctx context.Context, r repo.TxRepos, productID, qty int64, orderID *int64, actorID int64) error {
	ok, err := r.Inventory().DecreaseStockIfEnough(ctx, productID, qty)
	if err != nil {
		return internalError(ctx, "reserve stock", err)
	}
	if !ok {
		//なぜ失敗したかを読み直して判定
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("product")
		}
		if err != nil {
			return internalError(ctx, "reserve stock", err)
		}
		return errInsufficientStock(productID, p.Stock, qty)
	}

	if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
		ProductID:   productID,
		OrderID:     orderID,
		ActorUserID: actorID,
		Delta:       -qty,
		Reason:      model.InventoryReasonReserve,
	}); err != nil {
		return internalError(ctx, "reserve stock", err)
	}
	return nil
}

// 注文の全明細の在庫を戻す。o は行ロック済みで読んだもの。
// 戻し済みの注文は何もしない
func releaseOrderStock(ctx context.Context, r repo.TxRepos, o model.Order, actorID int64, note string) error {
	if o.StockReleased {
		return nil
	}

	items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
	if err != nil {
		return internalError(ctx, "release stock", err)
	}

	for _, it := range items {
		err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity)
		if errors.Is(err, repo.ErrNotFound) {
			// 商品が削除済みなら戻し先がない
			continue
		}
		if err != nil {
			return internalError(ctx, "release stock", err)
		}

		oid := o.ID
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   it.ProductID,
			OrderID:     &oid,
			ActorUserID: actorID,
			Delta:       it.Quantity,
			Reason:      model.InventoryReasonRelease,
			Note:        note,
		}); err != nil {
			return internalError(ctx, "release stock", err)
		}
	}

	if err := r.Orders().MarkStockReleased(ctx, o.ID); err != nil {
		return internalError(ctx, "release stock", err)
	}
	return nil
}

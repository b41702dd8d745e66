package usecase

import (
	"context"
	"errors"
	"strings"

	"ecorder/internal/domain/model"
	"ecorder/internal/events"
	"ecorder/internal/metrics"
	repo "ecorder/internal/repository"
)

type AdminOrderUsecase struct {
	tx        repo.TransactionManager
	auditRepo repo.AuditLogRepository
	notifier
}

func NewAdminOrderUsecase(tx repo.TransactionManager, auditRepo repo.AuditLogRepository, publisher events.Publisher, m *metrics.Metrics) *AdminOrderUsecase {
	return &AdminOrderUsecase{
		tx:        tx,
		auditRepo: auditRepo,
		notifier:  notifier{publisher: publisher, metrics: m},
	}
}

type AdminOrderListInput struct {
	Status string
	UserID *int64
}

// TrackStatusがnilなら追跡ラベルは変えない
type AdminUpdateOrderStatusInput struct {
	Status      string
	TrackStatus *string
}

// 注文一覧（件数は固定上限）
func (u *AdminOrderUsecase) List(ctx context.Context, in AdminOrderListInput) ([]OrderOutput, error) {
	if in.Status != "" {
		if _, ok := model.ParseOrderStatus(in.Status); !ok {
			return []OrderOutput{}, errValidation("invalid status")
		}
	}

	var outs []OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().ListAdmin(ctx, repo.AdminOrderListFilter{
			Status: in.Status,
			UserID: in.UserID,
			Limit:  100,
		})
		if err != nil {
			return internalError(ctx, "admin list orders", err)
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return internalError(ctx, "admin list orders", err)
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})
	if err != nil {
		return []OrderOutput{}, txError(ctx, "admin list orders", err)
	}
	return outs, nil
}

// UpdateStatus は管理者による強制変更。遷移ルールは見ない。
// 在庫を押さえている状態から cancelled にするときだけ在庫を戻す
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdateOrderStatusInput) (OrderOutput, error) {
	if actorAdminUserID <= 0 {
		return OrderOutput{}, errUnauthorized()
	}
	if orderID <= 0 {
		return OrderOutput{}, errValidation("invalid id")
	}
	newStatus, ok := model.ParseOrderStatus(strings.TrimSpace(in.Status))
	if !ok {
		return OrderOutput{}, errValidation("invalid status")
	}
	var track *string
	if in.TrackStatus != nil {
		t := strings.TrimSpace(*in.TrackStatus)
		if t == "" || len(t) > 50 {
			return OrderOutput{}, errValidation("invalid track_status")
		}
		track = &t
	}

	var out OrderOutput
	var updated model.Order
	changed := false
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("order")
		}
		if err != nil {
			return internalError(ctx, "admin update order status", err)
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return internalError(ctx, "admin update order status", err)
		}

		// すでに同じなら何もしない
		if o.Status == newStatus && (track == nil || *track == o.TrackStatus) {
			out = toOrderOutput(o, items)
			return nil
		}

		if newStatus == model.OrderStatusCancelled && o.Status.HoldsReservation() {
			if err := releaseOrderStock(ctx, r, o, actorAdminUserID, "cancelled by admin"); err != nil {
				return err
			}
		}

		before := map[string]interface{}{"status": o.Status, "track_status": o.TrackStatus}
		if err := r.Orders().UpdateStatus(ctx, orderID, newStatus, track); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return errNotFound("order")
			}
			return internalError(ctx, "admin update order status", err)
		}
		o.Status = newStatus
		if track != nil {
			o.TrackStatus = *track
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   auditJSON(before),
			AfterJSON:    auditJSON(map[string]interface{}{"status": o.Status, "track_status": o.TrackStatus}),
		}); err != nil {
			return internalError(ctx, "admin update order status", err)
		}

		changed = true
		updated = o
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, txError(ctx, "admin update order status", err)
	}

	if changed {
		u.orderEvent(ctx, events.OrderStatusOverridden, updated, actorAdminUserID)
	}
	return out, nil
}

// RecalculateTotal は明細から合計を計算し直して保存する。ポイントは変えない
func (u *AdminOrderUsecase) RecalculateTotal(ctx context.Context, actorAdminUserID int64, orderID int64) (OrderOutput, error) {
	if actorAdminUserID <= 0 {
		return OrderOutput{}, errUnauthorized()
	}
	if orderID <= 0 {
		return OrderOutput{}, errValidation("invalid id")
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("order")
		}
		if err != nil {
			return internalError(ctx, "recalculate total", err)
		}
		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return internalError(ctx, "recalculate total", err)
		}

		total := model.ComputeTotal(items)
		if !total.Equal(o.TotalAmount) {
			if err := r.Orders().UpdateTotal(ctx, orderID, total); err != nil {
				return internalError(ctx, "recalculate total", err)
			}
			if err := r.AuditLogs().Create(ctx, model.AuditLog{
				ActorUserID:  actorAdminUserID,
				Action:       model.AuditActionRecalculateTotal,
				ResourceType: model.AuditResourceOrder,
				ResourceID:   orderID,
				BeforeJSON:   auditJSON(map[string]interface{}{"total_amount": o.TotalAmount}),
				AfterJSON:    auditJSON(map[string]interface{}{"total_amount": total}),
			}); err != nil {
				return internalError(ctx, "recalculate total", err)
			}
			o.TotalAmount = total
		}

		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, txError(ctx, "recalculate total", err)
	}
	return out, nil
}

// 注文の監査ログ（新しい順）
func (u *AdminOrderUsecase) AuditTrail(ctx context.Context, orderID int64) ([]model.AuditLog, error) {
	if orderID <= 0 {
		return nil, errValidation("invalid id")
	}
	rt := model.AuditResourceOrder
	logs, err := u.auditRepo.List(ctx, repo.AuditLogFilter{
		ResourceType: &rt,
		ResourceID:   &orderID,
		Limit:        100,
	})
	if err != nil {
		return nil, internalError(ctx, "audit trail", err)
	}
	return logs, nil
}

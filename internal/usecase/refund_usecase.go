package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ecorder/internal/domain/model"
	"ecorder/internal/events"
	"ecorder/internal/logging"
	"ecorder/internal/metrics"
	repo "ecorder/internal/repository"

	"go.uber.org/zap"
)

type RefundUsecase struct {
	tx repo.TransactionManager
	// 返金承認後の支払いステータス同期用（トランザクション外）
	payments repo.PaymentRepository
	refunds  repo.RefundRepository
	policy   StockPolicy
	notifier
}

func NewRefundUsecase(
	tx repo.TransactionManager,
	payments repo.PaymentRepository,
	refunds repo.RefundRepository,
	policy StockPolicy,
	publisher events.Publisher,
	m *metrics.Metrics,
) *RefundUsecase {
	return &RefundUsecase{
		tx:       tx,
		payments: payments,
		refunds:  refunds,
		policy:   policy,
		notifier: notifier{publisher: publisher, metrics: m},
	}
}

// Request は返金申請。支払い確認済みの注文で、未処理の申請が無いときだけ
func (u *RefundUsecase) Request(ctx context.Context, userID int64, orderID int64, reason string) (model.RefundRequest, error) {
	if userID <= 0 {
		return model.RefundRequest{}, errUnauthorized()
	}
	if orderID <= 0 {
		return model.RefundRequest{}, errValidation("invalid id")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = model.DefaultRefundReason
	}

	var out model.RefundRequest
	var order model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("order")
		}
		if err != nil {
			return internalError(ctx, "request refund", err)
		}
		if o.UserID != userID {
			return errNotFound("order")
		}

		if o.Status == model.OrderStatusRefunded {
			return errInvalidTransition("order has already been refunded")
		}
		if !o.Status.CanRequestRefund() {
			return errInvalidTransition(fmt.Sprintf("refund cannot be requested for order in status %s", o.Status))
		}

		pending, err := r.Refunds().ExistsPendingByOrderID(ctx, o.ID)
		if err != nil {
			return internalError(ctx, "request refund", err)
		}
		if pending {
			return errDuplicate("a refund request is already pending for this order")
		}

		rr, err := r.Refunds().Create(ctx, model.RefundRequest{
			OrderID: o.ID,
			UserID:  userID,
			Reason:  reason,
			Status:  model.RefundStatusPending,
		})
		if err != nil {
			return internalError(ctx, "request refund", err)
		}
		out = rr
		order = o
		return nil
	})
	if err != nil {
		return model.RefundRequest{}, txError(ctx, "request refund", err)
	}

	u.orderEvent(ctx, events.RefundRequested, order, userID)
	return out, nil
}

type RefundListInput struct {
	Status  string
	OrderID *int64
}

func (u *RefundUsecase) List(ctx context.Context, in RefundListInput) ([]model.RefundRequest, error) {
	switch model.RefundStatus(in.Status) {
	case "", model.RefundStatusPending, model.RefundStatusApproved, model.RefundStatusRejected, model.RefundStatusProcessed:
	default:
		return nil, errValidation("invalid status")
	}

	items, err := u.refunds.List(ctx, repo.RefundListFilter{
		Status:  in.Status,
		OrderID: in.OrderID,
		Limit:   100,
	})
	if err != nil {
		return nil, internalError(ctx, "list refunds", err)
	}
	return items, nil
}

// ApproveBulk は1件ずつ別トランザクションで承認し、結果を1件ずつ返す
func (u *RefundUsecase) ApproveBulk(ctx context.Context, adminID int64, refundIDs []int64, note *string) ([]BulkResult, error) {
	if adminID <= 0 {
		return nil, errUnauthorized()
	}
	if err := validateBulkIDs(refundIDs); err != nil {
		return nil, err
	}
	note = normalizeNote(note)
	return runBulk(refundIDs, func(id int64) error {
		return u.approve(ctx, adminID, id, note)
	}), nil
}

func (u *RefundUsecase) RejectBulk(ctx context.Context, adminID int64, refundIDs []int64, note *string) ([]BulkResult, error) {
	if adminID <= 0 {
		return nil, errUnauthorized()
	}
	if err := validateBulkIDs(refundIDs); err != nil {
		return nil, err
	}
	note = normalizeNote(note)
	return runBulk(refundIDs, func(id int64) error {
		return u.reject(ctx, adminID, id, note)
	}), nil
}

func (u *RefundUsecase) approve(ctx context.Context, adminID int64, refundID int64, note *string) error {
	var order model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//ロック順は refund → order
		rr, err := r.Refunds().FindByIDForUpdate(ctx, refundID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("refund request")
		}
		if err != nil {
			return internalError(ctx, "approve refund", err)
		}
		if rr.Status != model.RefundStatusPending {
			return errInvalidTransition(fmt.Sprintf("refund request is already %s", rr.Status))
		}

		o, err := r.Orders().FindByIDForUpdate(ctx, rr.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("order")
		}
		if err != nil {
			return internalError(ctx, "approve refund", err)
		}
		// 申請後にキャンセル等で状態が変わっていたら承認しない
		if !o.Status.IsPaymentConfirmed() {
			return errInvalidTransition(fmt.Sprintf("order in status %s cannot be refunded", o.Status))
		}

		if u.policy.RestockOnRefund && o.Status.HoldsReservation() {
			if err := releaseOrderStock(ctx, r, o, adminID, "refund approved"); err != nil {
				return err
			}
		}

		if err := r.Refunds().UpdateStatus(ctx, rr.ID, model.RefundStatusApproved, note); err != nil {
			return internalError(ctx, "approve refund", err)
		}
		track := model.TrackStatusRefunded
		if err := r.Orders().UpdateStatus(ctx, o.ID, model.OrderStatusRefunded, &track); err != nil {
			return internalError(ctx, "approve refund", err)
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminID,
			Action:       model.AuditActionApproveRefund,
			ResourceType: model.AuditResourceRefund,
			ResourceID:   rr.ID,
			BeforeJSON:   auditJSON(map[string]interface{}{"refund_status": rr.Status, "order_status": o.Status}),
			AfterJSON:    auditJSON(map[string]interface{}{"refund_status": model.RefundStatusApproved, "order_status": model.OrderStatusRefunded}),
		}); err != nil {
			return internalError(ctx, "approve refund", err)
		}

		o.Status = model.OrderStatusRefunded
		o.TrackStatus = track
		order = o
		return nil
	})
	if err != nil {
		return txError(ctx, "approve refund", err)
	}

	//支払いの同期はベストエフォート。失敗しても返金承認は取り消さない
	if err := u.payments.UpdateStatusByOrderID(ctx, order.ID, model.PaymentStatusRefunded); err != nil {
		logging.FromContext(ctx).Warn("sync payment status after refund failed",
			zap.Int64("order_id", order.ID),
			zap.Int64("refund_id", refundID),
			zap.Error(err),
		)
	}

	u.orderEvent(ctx, events.RefundApproved, order, adminID)
	return nil
}

func (u *RefundUsecase) reject(ctx context.Context, adminID int64, refundID int64, note *string) error {
	return txError(ctx, "reject refund", u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		rr, err := r.Refunds().FindByIDForUpdate(ctx, refundID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("refund request")
		}
		if err != nil {
			return internalError(ctx, "reject refund", err)
		}
		if rr.Status != model.RefundStatusPending {
			return errInvalidTransition(fmt.Sprintf("refund request is already %s", rr.Status))
		}

		if err := r.Refunds().UpdateStatus(ctx, rr.ID, model.RefundStatusRejected, note); err != nil {
			return internalError(ctx, "reject refund", err)
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminID,
			Action:       model.AuditActionRejectRefund,
			ResourceType: model.AuditResourceRefund,
			ResourceID:   rr.ID,
			BeforeJSON:   auditJSON(map[string]interface{}{"refund_status": rr.Status}),
			AfterJSON:    auditJSON(map[string]interface{}{"refund_status": model.RefundStatusRejected}),
		}); err != nil {
			return internalError(ctx, "reject refund", err)
		}
		return nil
	}))
}

func normalizeNote(note *string) *string {
	if note == nil {
		return nil
	}
	s := strings.TrimSpace(*note)
	if s == "" {
		return nil
	}
	return &s
}

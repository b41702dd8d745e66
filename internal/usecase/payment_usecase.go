package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ecorder/internal/domain/model"
	"ecorder/internal/events"
	"ecorder/internal/metrics"
	repo "ecorder/internal/repository"
)

type PaymentUsecase struct {
	tx     repo.TransactionManager
	policy StockPolicy
	notifier
}

func NewPaymentUsecase(tx repo.TransactionManager, policy StockPolicy, publisher events.Publisher, m *metrics.Metrics) *PaymentUsecase {
	return &PaymentUsecase{
		tx:       tx,
		policy:   policy,
		notifier: notifier{publisher: publisher, metrics: m},
	}
}

type SubmitPaymentInput struct {
	OrderID  int64
	ProofRef string
}

// Submit は支払い証跡の登録。pending の自分の注文に1件だけ
func (u *PaymentUsecase) Submit(ctx context.Context, userID int64, in SubmitPaymentInput) (model.Payment, error) {
	if userID <= 0 {
		return model.Payment{}, errUnauthorized()
	}
	if in.OrderID <= 0 {
		return model.Payment{}, errValidation("invalid order_id")
	}
	proof := strings.TrimSpace(in.ProofRef)
	if proof == "" {
		return model.Payment{}, errValidation("proof_ref required")
	}
	if len(proof) > 1024 {
		return model.Payment{}, errValidation("proof_ref too long")
	}

	var out model.Payment
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, in.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("order")
		}
		if err != nil {
			return internalError(ctx, "submit payment", err)
		}
		if o.UserID != userID {
			return errNotFound("order")
		}

		_, found, err := r.Payments().FindByOrderID(ctx, o.ID)
		if err != nil {
			return internalError(ctx, "submit payment", err)
		}
		if found {
			return errDuplicate("payment already submitted for this order")
		}
		if o.Status != model.OrderStatusPending {
			return errInvalidTransition(fmt.Sprintf("payment cannot be submitted for order in status %s", o.Status))
		}

		p, err := r.Payments().Create(ctx, model.Payment{
			OrderID:  o.ID,
			UserID:   userID,
			ProofRef: proof,
			Status:   model.PaymentStatusPending,
		})
		if errors.Is(err, repo.ErrDuplicate) {
			return errDuplicate("payment already submitted for this order")
		}
		if err != nil {
			return internalError(ctx, "submit payment", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return model.Payment{}, txError(ctx, "submit payment", err)
	}
	return out, nil
}

// Get は本人か管理者だけ。他人の支払いは存在しない扱い
func (u *PaymentUsecase) Get(ctx context.Context, userID int64, isAdmin bool, paymentID int64) (model.Payment, error) {
	if userID <= 0 {
		return model.Payment{}, errUnauthorized()
	}
	if paymentID <= 0 {
		return model.Payment{}, errValidation("invalid id")
	}

	var out model.Payment
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Payments().FindByID(ctx, paymentID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("payment")
		}
		if err != nil {
			return internalError(ctx, "get payment", err)
		}
		if !isAdmin && p.UserID != userID {
			return errNotFound("payment")
		}
		out = p
		return nil
	})
	if err != nil {
		return model.Payment{}, txError(ctx, "get payment", err)
	}
	return out, nil
}

type PaymentDecisionOutput struct {
	Payment model.Payment `json:"payment"`
	Order   OrderOutput   `json:"order"`
}

// Approve は支払い承認。注文は paid（追跡 shipping）になる
func (u *PaymentUsecase) Approve(ctx context.Context, adminID int64, paymentID int64) (PaymentDecisionOutput, error) {
	return u.decide(ctx, adminID, paymentID, true)
}

// Reject は支払い却下。注文は cancelled になり、設定次第で在庫を戻す
func (u *PaymentUsecase) Reject(ctx context.Context, adminID int64, paymentID int64) (PaymentDecisionOutput, error) {
	return u.decide(ctx, adminID, paymentID, false)
}

func (u *PaymentUsecase) ApproveBulk(ctx context.Context, adminID int64, paymentIDs []int64) ([]BulkResult, error) {
	if err := validateBulkIDs(paymentIDs); err != nil {
		return nil, err
	}
	return runBulk(paymentIDs, func(id int64) error {
		_, err := u.decide(ctx, adminID, id, true)
		return err
	}), nil
}

func (u *PaymentUsecase) RejectBulk(ctx context.Context, adminID int64, paymentIDs []int64) ([]BulkResult, error) {
	if err := validateBulkIDs(paymentIDs); err != nil {
		return nil, err
	}
	return runBulk(paymentIDs, func(id int64) error {
		_, err := u.decide(ctx, adminID, id, false)
		return err
	}), nil
}

func (u *PaymentUsecase) decide(ctx context.Context, adminID int64, paymentID int64, approve bool) (PaymentDecisionOutput, error) {
	if adminID <= 0 {
		return PaymentDecisionOutput{}, errUnauthorized()
	}
	if paymentID <= 0 {
		return PaymentDecisionOutput{}, errValidation("invalid id")
	}

	op := "reject payment"
	if approve {
		op = "approve payment"
	}

	var out PaymentDecisionOutput
	var order model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//ロック順は payment → order
		p, err := r.Payments().FindByIDForUpdate(ctx, paymentID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("payment")
		}
		if err != nil {
			return internalError(ctx, op, err)
		}
		o, err := r.Orders().FindByIDForUpdate(ctx, p.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("order")
		}
		if err != nil {
			return internalError(ctx, op, err)
		}

		if p.Status != model.PaymentStatusPending {
			return errInvalidTransition(fmt.Sprintf("payment is already %s", p.Status))
		}
		if o.Status != model.OrderStatusPending {
			return errInvalidTransition(fmt.Sprintf("order is %s, expected pending", o.Status))
		}

		before := map[string]interface{}{"payment_status": p.Status, "order_status": o.Status}

		var (
			payStatus   model.PaymentStatus
			orderStatus model.OrderStatus
			track       string
			action      model.AuditAction
		)
		if approve {
			payStatus, orderStatus, track, action = model.PaymentStatusApproved, model.OrderStatusPaid, model.TrackStatusShipping, model.AuditActionApprovePayment
		} else {
			payStatus, orderStatus, track, action = model.PaymentStatusRejected, model.OrderStatusCancelled, model.TrackStatusNone, model.AuditActionRejectPayment
			if u.policy.ReleaseOnPaymentReject {
				if err := releaseOrderStock(ctx, r, o, adminID, "payment rejected"); err != nil {
					return err
				}
			}
		}

		if err := r.Payments().UpdateStatus(ctx, p.ID, payStatus); err != nil {
			return internalError(ctx, op, err)
		}
		if err := r.Orders().UpdateStatus(ctx, o.ID, orderStatus, &track); err != nil {
			return internalError(ctx, op, err)
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminID,
			Action:       action,
			ResourceType: model.AuditResourcePayment,
			ResourceID:   p.ID,
			BeforeJSON:   auditJSON(before),
			AfterJSON:    auditJSON(map[string]interface{}{"payment_status": payStatus, "order_status": orderStatus}),
		}); err != nil {
			return internalError(ctx, op, err)
		}

		p.Status = payStatus
		o.Status = orderStatus
		o.TrackStatus = track

		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return internalError(ctx, op, err)
		}
		order = o
		out = PaymentDecisionOutput{Payment: p, Order: toOrderOutput(o, items)}
		return nil
	})
	if err != nil {
		return PaymentDecisionOutput{}, txError(ctx, op, err)
	}

	if approve {
		u.orderEvent(ctx, events.PaymentApproved, order, adminID)
	} else {
		u.orderEvent(ctx, events.PaymentRejected, order, adminID)
	}
	return out, nil
}

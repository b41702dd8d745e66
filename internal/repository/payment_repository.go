package repository

import (
	"context"

	"ecorder/internal/domain/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, p model.Payment) (model.Payment, error)
	FindByID(ctx context.Context, paymentID int64) (model.Payment, error)
	FindByIDForUpdate(ctx context.Context, paymentID int64) (model.Payment, error)
	FindByOrderID(ctx context.Context, orderID int64) (model.Payment, bool, error)
	UpdateStatus(ctx context.Context, paymentID int64, status model.PaymentStatus) error
	// 注文に紐づく支払いのステータスを更新。支払いが無ければ ErrNotFound
	UpdateStatusByOrderID(ctx context.Context, orderID int64, status model.PaymentStatus) error
}

package repository

import (
	"context"

	"ecorder/internal/domain/model"
)

type RefundListFilter struct {
	Status  string
	OrderID *int64
	Limit   int
}

type RefundRepository interface {
	Create(ctx context.Context, r model.RefundRequest) (model.RefundRequest, error)
	FindByIDForUpdate(ctx context.Context, refundID int64) (model.RefundRequest, error)
	ExistsPendingByOrderID(ctx context.Context, orderID int64) (bool, error)
	List(ctx context.Context, f RefundListFilter) ([]model.RefundRequest, error)
	UpdateStatus(ctx context.Context, refundID int64, status model.RefundStatus, adminNote *string) error
}

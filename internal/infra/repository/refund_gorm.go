package repository

import (
	"context"
	"errors"

	"ecorder/internal/domain/model"
	repo "ecorder/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RefundGormRepository struct {
	db *gorm.DB
}

func NewRefundGormRepository(db *gorm.DB) *RefundGormRepository {
	return &RefundGormRepository{db: db}
}

func (r *RefundGormRepository) Create(ctx context.Context, rr model.RefundRequest) (model.RefundRequest, error) {
	if err := r.db.WithContext(ctx).Create(&rr).Error; err != nil {
		return model.RefundRequest{}, err
	}
	return rr, nil
}

func (r *RefundGormRepository) FindByIDForUpdate(ctx context.Context, refundID int64) (model.RefundRequest, error) {
	var rr model.RefundRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", refundID).
		First(&rr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.RefundRequest{}, repo.ErrNotFound
	}
	if err != nil {
		return model.RefundRequest{}, err
	}
	return rr, nil
}

func (r *RefundGormRepository) ExistsPendingByOrderID(ctx context.Context, orderID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.RefundRequest{}).
		Where("order_id = ? AND status = ?", orderID, model.RefundStatusPending).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *RefundGormRepository) List(ctx context.Context, f repo.RefundListFilter) ([]model.RefundRequest, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 100
	}
	q := r.db.WithContext(ctx).Model(&model.RefundRequest{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.OrderID != nil {
		q = q.Where("order_id = ?", *f.OrderID)
	}

	var out []model.RefundRequest
	if err := q.Order("id desc").Limit(f.Limit).Find(&out).Error; err != nil {
		return []model.RefundRequest{}, err
	}
	return out, nil
}

// adminNoteがnilならメモは上書きしない
func (r *RefundGormRepository) UpdateStatus(ctx context.Context, refundID int64, status model.RefundStatus, adminNote *string) error {
	updates := map[string]interface{}{"status": status}
	if adminNote != nil {
		updates["admin_note"] = *adminNote
	}
	res := r.db.WithContext(ctx).Model(&model.RefundRequest{}).
		Where("id = ?", refundID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

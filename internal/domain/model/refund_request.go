package model

import "time"

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusApproved  RefundStatus = "approved"
	RefundStatusRejected  RefundStatus = "rejected"
	RefundStatusProcessed RefundStatus = "processed"
)

// 理由が空のときに入れる文言
const DefaultRefundReason = "Customer requested refund"

type RefundRequest struct {
	ID        int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64        `gorm:"not null;index" json:"order_id"`
	UserID    int64        `gorm:"not null;index" json:"user_id"`
	Reason    string       `gorm:"type:text;not null" json:"reason"`
	Status    RefundStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	AdminNote *string      `gorm:"type:text" json:"admin_note"`
	CreatedAt time.Time    `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

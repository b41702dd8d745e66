package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// 振込スクショなどの支払い証跡。注文ごとに1件まで。
// ProofRefは保存先のキー/URLで、作成後は変えない。
type Payment struct {
	ID        int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64         `gorm:"not null;uniqueIndex" json:"order_id"`
	UserID    int64         `gorm:"not null;index" json:"user_id"`
	ProofRef  string        `gorm:"type:varchar(1024);not null" json:"proof_ref"`
	Status    PaymentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt time.Time     `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time     `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

package model

import "time"

type InventoryReason string

const (
	InventoryReasonReserve  InventoryReason = "order_reserve"
	InventoryReasonRelease  InventoryReason = "order_release"
	InventoryReasonAdminSet InventoryReason = "admin_set"
)

// 在庫の増減履歴。在庫を動かしたトランザクション内で必ず1行積む。
type InventoryAdjustment struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID   int64           `gorm:"not null;index" json:"product_id"`
	OrderID     *int64          `gorm:"index" json:"order_id"`
	ActorUserID int64           `gorm:"not null;index" json:"actor_user_id"`
	Delta       int64           `gorm:"not null" json:"delta"`
	Reason      InventoryReason `gorm:"type:varchar(50);not null" json:"reason"`
	Note        string          `gorm:"type:varchar(255)" json:"note"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}

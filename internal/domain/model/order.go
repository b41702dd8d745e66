package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// 表示用の追跡ラベル（statusとは別物）
const (
	TrackStatusNone     = "-"
	TrackStatusShipping = "shipping"
	TrackStatusRefunded = "Order cancel and refunded"
)

var AllOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, st := range AllOrderStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// 出荷・配達済み・終端状態からはキャンセル不可
func (s OrderStatus) CanCancel() bool {
	switch s {
	case OrderStatusCancelled, OrderStatusRefunded, OrderStatusDelivered, OrderStatusShipped:
		return false
	}
	return true
}

// 支払い承認済みとみなす状態
func (s OrderStatus) IsPaymentConfirmed() bool {
	switch s {
	case OrderStatusPaid, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

func (s OrderStatus) CanRequestRefund() bool {
	return s.IsPaymentConfirmed()
}

// 在庫を押さえたままの状態か（cancelled/refundedは戻し済み or 戻さない）
func (s OrderStatus) HoldsReservation() bool {
	return s != OrderStatusCancelled && s != OrderStatusRefunded
}

type Order struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID              int64           `gorm:"not null;index" json:"user_id"`
	ShippingAddress     string          `gorm:"type:text" json:"shipping_address"`
	Status              OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	TrackStatus         string          `gorm:"type:varchar(50);not null;default:'-'" json:"track_status"`
	TotalAmount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	LoyaltyPointsEarned int64           `gorm:"not null;default:0" json:"loyalty_points_earned"`
	IdempotencyKey      *string         `gorm:"type:varchar(255);uniqueIndex" json:"-"`
	// 予約在庫を戻し済みか。ステータスが戻されても二重に戻さない
	StockReleased bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 明細の小計合計。何度呼んでも同じ値。
func ComputeTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

var loyaltyDivisor = decimal.NewFromInt(10)

// floor(total / 10)、マイナスにはしない
func LoyaltyPoints(total decimal.Decimal) int64 {
	pts := total.Div(loyaltyDivisor).Floor().IntPart()
	if pts < 0 {
		return 0
	}
	return pts
}

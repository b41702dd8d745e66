package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// 注文ライフサイクルのイベント種別。トピック名の末尾になる
type Type string

const (
	OrderPlaced           Type = "placed"
	OrderCancelled        Type = "cancelled"
	PaymentApproved       Type = "payment_approved"
	PaymentRejected       Type = "payment_rejected"
	RefundRequested       Type = "refund_requested"
	RefundApproved        Type = "refund_approved"
	OrderStatusOverridden Type = "status_overridden"
)

type OrderEvent struct {
	EventID     string          `json:"event_id"`
	Type        Type            `json:"type"`
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ActorID     int64           `json:"actor_id,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

func NewOrderEvent(t Type, orderID, userID int64, status string, total decimal.Decimal) OrderEvent {
	return OrderEvent{
		EventID:     uuid.NewString(),
		Type:        t,
		OrderID:     orderID,
		UserID:      userID,
		Status:      status,
		TotalAmount: total,
		Timestamp:   time.Now().UTC(),
	}
}

// Publisher はコミット後に呼ばれる。失敗しても業務処理は巻き戻さない
type Publisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
	Close() error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, OrderEvent) error { return nil }
func (NoopPublisher) Close() error                              { return nil }

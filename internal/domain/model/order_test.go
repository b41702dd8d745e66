package model_test

import (
	"testing"

	"ecorder/internal/domain/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoyaltyPoints(t *testing.T) {
	cases := []struct {
		total string
		want  int64
	}{
		{"105.00", 10},
		{"9.99", 0},
		{"10", 1},
		{"0", 0},
		{"-25", 0},
		{"1999.99", 199},
	}
	for _, tc := range cases {
		t.Run(tc.total, func(t *testing.T) {
			assert.Equal(t, tc.want, model.LoyaltyPoints(decimal.RequireFromString(tc.total)))
		})
	}
}

func TestComputeTotal_SumOfSnapshots(t *testing.T) {
	items := []model.OrderItem{
		{PriceAtPurchase: decimal.RequireFromString("12.50"), Quantity: 2},
		{PriceAtPurchase: decimal.RequireFromString("0.99"), Quantity: 3},
	}

	first := model.ComputeTotal(items)
	second := model.ComputeTotal(items)

	assert.True(t, first.Equal(decimal.RequireFromString("27.97")), "got %s", first)
	assert.True(t, first.Equal(second))
	assert.True(t, model.ComputeTotal(nil).IsZero())
}

func TestOrderStatus_CanCancel(t *testing.T) {
	allowed := map[model.OrderStatus]bool{
		model.OrderStatusPending:    true,
		model.OrderStatusPaid:       true,
		model.OrderStatusProcessing: true,
		model.OrderStatusShipped:    false,
		model.OrderStatusDelivered:  false,
		model.OrderStatusCancelled:  false,
		model.OrderStatusRefunded:   false,
	}
	for st, want := range allowed {
		assert.Equal(t, want, st.CanCancel(), "status=%s", st)
	}
}

func TestOrderStatus_CanRequestRefund(t *testing.T) {
	allowed := map[model.OrderStatus]bool{
		model.OrderStatusPending:    false,
		model.OrderStatusPaid:       true,
		model.OrderStatusProcessing: true,
		model.OrderStatusShipped:    true,
		model.OrderStatusDelivered:  true,
		model.OrderStatusCancelled:  false,
		model.OrderStatusRefunded:   false,
	}
	for st, want := range allowed {
		assert.Equal(t, want, st.CanRequestRefund(), "status=%s", st)
	}
}

func TestParseOrderStatus(t *testing.T) {
	st, ok := model.ParseOrderStatus("delivered")
	assert.True(t, ok)
	assert.Equal(t, model.OrderStatusDelivered, st)

	_, ok = model.ParseOrderStatus("shipping")
	assert.False(t, ok)
}

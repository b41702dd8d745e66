package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ecorder/internal/domain/model"
	"ecorder/internal/events"
	"ecorder/internal/metrics"
	repo "ecorder/internal/repository"

	"github.com/shopspring/decimal"
)

type OrderUsecase struct {
	tx    repo.TransactionManager
	users repo.UserRepository
	notifier
}

func NewOrderUsecase(tx repo.TransactionManager, users repo.UserRepository, publisher events.Publisher, m *metrics.Metrics) *OrderUsecase {
	return &OrderUsecase{
		tx:       tx,
		users:    users,
		notifier: notifier{publisher: publisher, metrics: m},
	}
}

type CheckoutItemInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// UseCart=true ならカートから、false なら Items から注文する
type CheckoutInput struct {
	UseCart         bool
	Items           []CheckoutItemInput
	ShippingAddress string
	IdempotencyKey  string
}

type OrderItemOutput struct {
	ID              int64           `json:"id"`
	ProductID       int64           `json:"product_id"`
	ProductName     string          `json:"product_name"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	Quantity        int64           `json:"quantity"`
	Subtotal        decimal.Decimal `json:"subtotal"`
}

type OrderOutput struct {
	ID                  int64             `json:"id"`
	UserID              int64             `json:"user_id"`
	Status              string            `json:"status"`
	TrackStatus         string            `json:"track_status"`
	ShippingAddress     string            `json:"shipping_address"`
	TotalAmount         decimal.Decimal   `json:"total_amount"`
	LoyaltyPointsEarned int64             `json:"loyalty_points_earned"`
	CreatedAt           time.Time         `json:"created_at"`
	Items               []OrderItemOutput `json:"items"`
}

// Checkout は注文確定。在庫確保・明細スナップショット・合計計算・カートを空にするまで1トランザクション。
// 同じ IdempotencyKey の再送は既存の注文を返す（replayed=true）
func (u *OrderUsecase) Checkout(ctx context.Context, userID int64, in CheckoutInput) (out OrderOutput, replayed bool, err error) {
	if userID <= 0 {
		return OrderOutput{}, false, errUnauthorized()
	}
	if in.UseCart && len(in.Items) > 0 {
		return OrderOutput{}, false, errValidation("use_cart and items cannot be combined")
	}
	var lines []CheckoutItemInput
	if !in.UseCart {
		if len(in.Items) == 0 {
			return OrderOutput{}, false, errValidation("no items provided")
		}
		lines, err = mergeCheckoutLines(in.Items)
		if err != nil {
			return OrderOutput{}, false, err
		}
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > 255 {
		return OrderOutput{}, false, errValidation("invalid idempotency key")
	}

	//住所が無ければユーザーの登録住所
	address := strings.TrimSpace(in.ShippingAddress)
	if address == "" {
		user, err := u.users.FindByID(ctx, userID)
		if errors.Is(err, repo.ErrUserNotFound) {
			return OrderOutput{}, false, errUnauthorized()
		}
		if err != nil {
			return OrderOutput{}, false, internalError(ctx, "checkout", err)
		}
		address = user.Address
	}

	var created model.Order
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		if key != "" {
			existing, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
			if err != nil {
				return internalError(ctx, "checkout", err)
			}
			if found {
				items, err := r.OrderItems().ListByOrderID(ctx, existing.ID)
				if err != nil {
					return internalError(ctx, "checkout", err)
				}
				out = toOrderOutput(existing, items)
				replayed = true
				return nil
			}
		}

		var cart model.Cart
		if in.UseCart {
			cart, err = r.Carts().GetOrCreateByUserID(ctx, userID)
			if err != nil {
				return internalError(ctx, "checkout", err)
			}
			lines, err = cartLines(ctx, r, cart)
			if err != nil {
				return internalError(ctx, "checkout", err)
			}
			if len(lines) == 0 {
				return errValidation("cart is empty")
			}
		}

		//書き込む前に全明細を検証する
		products := make(map[int64]model.Product, len(lines))
		for _, l := range lines {
			p, err := r.Products().FindByID(ctx, l.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				return errNotFound(fmt.Sprintf("product %d", l.ProductID))
			}
			if err != nil {
				return internalError(ctx, "checkout", err)
			}
			if p.Stock < l.Quantity {
				return errInsufficientStock(p.ID, p.Stock, l.Quantity)
			}
			products[p.ID] = p
		}

		var keyPtr *string
		if key != "" {
			keyPtr = &key
		}
		order, err := r.Orders().Create(ctx, model.Order{
			UserID:          userID,
			ShippingAddress: address,
			Status:          model.OrderStatusPending,
			TrackStatus:     model.TrackStatusNone,
			TotalAmount:     decimal.Zero,
			IdempotencyKey:  keyPtr,
		})
		if errors.Is(err, repo.ErrDuplicate) {
			return errDuplicate("idempotency key already used")
		}
		if err != nil {
			return internalError(ctx, "checkout", err)
		}

		//在庫確保（同時注文に負けたらここで InsufficientStock になり全部戻る）
		orderItems := make([]model.OrderItem, 0, len(lines))
		for _, l := range lines {
			if err := reserveStock(ctx, r, l.ProductID, l.Quantity, &order.ID, userID); err != nil {
				return err
			}
			p := products[l.ProductID]
			orderItems = append(orderItems, model.OrderItem{
				ProductID:       p.ID,
				ProductName:     p.Name,
				PriceAtPurchase: p.Price,
				Quantity:        l.Quantity,
			})
		}

		if err := r.OrderItems().CreateBulk(ctx, order.ID, orderItems); err != nil {
			return internalError(ctx, "checkout", err)
		}

		total := model.ComputeTotal(orderItems)
		points := model.LoyaltyPoints(total)
		if err := r.Orders().UpdateTotals(ctx, order.ID, total, points); err != nil {
			return internalError(ctx, "checkout", err)
		}
		order.TotalAmount = total
		order.LoyaltyPointsEarned = points

		if in.UseCart {
			if err := r.Carts().Clear(ctx, cart.ID); err != nil {
				return internalError(ctx, "checkout", err)
			}
		}

		created = order
		out = toOrderOutput(order, orderItems)
		return nil
	})
	if err != nil {
		u.metrics.Checkout("failed")
		return OrderOutput{}, false, txError(ctx, "checkout", err)
	}
	if replayed {
		u.metrics.Checkout("replayed")
		return out, true, nil
	}

	u.metrics.Checkout("ok")
	u.orderEvent(ctx, events.OrderPlaced, created, userID)
	return out, false, nil
}

// 同じ商品は数量をまとめる。順序は最初に出てきた順
func mergeCheckoutLines(items []CheckoutItemInput) ([]CheckoutItemInput, error) {
	merged := make([]CheckoutItemInput, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, it := range items {
		if it.ProductID <= 0 {
			return nil, errValidation("invalid product_id")
		}
		if it.Quantity < 1 {
			return nil, errValidation("quantity must be greater than 0")
		}
		if i, ok := index[it.ProductID]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(merged)
		merged = append(merged, it)
	}
	return merged, nil
}

// Cancel はユーザーによるキャンセル。全明細の在庫を戻す
func (u *OrderUsecase) Cancel(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, errUnauthorized()
	}
	if orderID <= 0 {
		return OrderOutput{}, errValidation("invalid id")
	}

	var out OrderOutput
	var cancelled model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("order")
		}
		if err != nil {
			return internalError(ctx, "cancel order", err)
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return errNotFound("order")
		}
		if !o.Status.CanCancel() {
			return errInvalidTransition(fmt.Sprintf("order in status %s cannot be cancelled", o.Status))
		}

		if err := releaseOrderStock(ctx, r, o, userID, "cancelled by user"); err != nil {
			return err
		}
		if err := r.Orders().UpdateStatus(ctx, o.ID, model.OrderStatusCancelled, nil); err != nil {
			return internalError(ctx, "cancel order", err)
		}
		o.Status = model.OrderStatusCancelled

		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return internalError(ctx, "cancel order", err)
		}
		cancelled = o
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, txError(ctx, "cancel order", err)
	}

	u.orderEvent(ctx, events.OrderCancelled, cancelled, userID)
	return out, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, errUnauthorized()
	}

	var outs []OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().ListByUserID(ctx, userID, 50)
		if err != nil {
			return internalError(ctx, "list orders", err)
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return internalError(ctx, "list orders", err)
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})
	if err != nil {
		return []OrderOutput{}, txError(ctx, "list orders", err)
	}
	return outs, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	o, items, err := u.loadOwnOrder(ctx, userID, orderID)
	if err != nil {
		return OrderOutput{}, err
	}
	return toOrderOutput(o, items), nil
}

type InvoiceCustomer struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type InvoiceLine struct {
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int64           `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type InvoiceOutput struct {
	InvoiceID           string          `json:"invoice_id"`
	OrderID             int64           `json:"order_id"`
	Date                time.Time       `json:"date"`
	Customer            InvoiceCustomer `json:"customer"`
	ShippingAddress     string          `json:"shipping_address"`
	Items               []InvoiceLine   `json:"items"`
	Total               decimal.Decimal `json:"total"`
	LoyaltyPointsEarned int64           `json:"loyalty_points_earned"`
	OrderStatus         string          `json:"order_status"`
}

// Invoice は明細から合計を計算して返すだけで、注文は更新しない
func (u *OrderUsecase) Invoice(ctx context.Context, userID int64, orderID int64) (InvoiceOutput, error) {
	o, items, err := u.loadOwnOrder(ctx, userID, orderID)
	if err != nil {
		return InvoiceOutput{}, err
	}

	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repo.ErrUserNotFound) {
		return InvoiceOutput{}, errUnauthorized()
	}
	if err != nil {
		return InvoiceOutput{}, internalError(ctx, "invoice", err)
	}

	lines := make([]InvoiceLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, InvoiceLine{
			ProductName: it.ProductName,
			UnitPrice:   it.PriceAtPurchase,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal(),
		})
	}

	return InvoiceOutput{
		InvoiceID:           fmt.Sprintf("INV-%d", o.ID),
		OrderID:             o.ID,
		Date:                o.CreatedAt,
		Customer:            InvoiceCustomer{ID: user.ID, Email: user.Email},
		ShippingAddress:     o.ShippingAddress,
		Items:               lines,
		Total:               model.ComputeTotal(items),
		LoyaltyPointsEarned: o.LoyaltyPointsEarned,
		OrderStatus:         string(o.Status),
	}, nil
}

func (u *OrderUsecase) loadOwnOrder(ctx context.Context, userID int64, orderID int64) (model.Order, []model.OrderItem, error) {
	if userID <= 0 {
		return model.Order{}, nil, errUnauthorized()
	}
	if orderID <= 0 {
		return model.Order{}, nil, errValidation("invalid id")
	}

	var o model.Order
	var items []model.OrderItem
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		o, err = r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("order")
		}
		if err != nil {
			return internalError(ctx, "get order", err)
		}
		if o.UserID != userID {
			return errNotFound("order")
		}

		items, err = r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return internalError(ctx, "get order", err)
		}
		return nil
	})
	if err != nil {
		return model.Order{}, nil, txError(ctx, "get order", err)
	}
	return o, items, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ID:              it.ID,
			ProductID:       it.ProductID,
			ProductName:     it.ProductName,
			PriceAtPurchase: it.PriceAtPurchase,
			Quantity:        it.Quantity,
			Subtotal:        it.Subtotal(),
		})
	}

	return OrderOutput{
		ID:                  o.ID,
		UserID:              o.UserID,
		Status:              string(o.Status),
		TrackStatus:         o.TrackStatus,
		ShippingAddress:     o.ShippingAddress,
		TotalAmount:         o.TotalAmount,
		LoyaltyPointsEarned: o.LoyaltyPointsEarned,
		CreatedAt:           o.CreatedAt,
		Items:               outItems,
	}
}

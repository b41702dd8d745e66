package usecase_test

import (
	"context"
	"net/http"
	"testing"

	"ecorder/internal/domain/model"
	"ecorder/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart_AddMergesAndChecksStock(t *testing.T) {
	env := newEnv(t, usecase.DefaultStockPolicy())
	ctx := context.Background()
	userID := env.seedUser(t, "buyer@example.com", model.RoleUser, "")
	p := env.seedProduct(t, "A", "15", 5)

	cart, err := env.carts.AddToCart(ctx, userID, usecase.AddCartInput{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	cart, err = env.carts.AddToCart(ctx, userID, usecase.AddCartInput{ProductID: p.ID, Quantity: 3})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(5), cart.Items[0].Quantity)
	assert.True(t, cart.Total.Equal(decimal.NewFromInt(75)))

	// 既存5 + 1 は在庫5を超える
	_, err = env.carts.AddToCart(ctx, userID, usecase.AddCartInput{ProductID: p.ID, Quantity: 1})
	requireCode(t, err, http.StatusBadRequest, usecase.CodeInsufficientStock)

	_, err = env.carts.AddToCart(ctx, userID, usecase.AddCartInput{ProductID: 9999, Quantity: 1})
	requireCode(t, err, http.StatusNotFound, usecase.CodeNotFound)
	_, err = env.carts.AddToCart(ctx, userID, usecase.AddCartInput{ProductID: p.ID, Quantity: 0})
	requireCode(t, err, http.StatusBadRequest, usecase.CodeValidation)

	// カートは在庫を押さえない
	assert.Equal(t, int64(5), env.stock(t, p.ID))
}

func TestCart_UpdateAndDelete(t *testing.T) {
	env := newEnv(t, usecase.DefaultStockPolicy())
	ctx := context.Background()
	userID := env.seedUser(t, "buyer@example.com", model.RoleUser, "")
	otherID := env.seedUser(t, "other@example.com", model.RoleUser, "")
	a := env.seedProduct(t, "A", "10", 5)
	b := env.seedProduct(t, "B", "1.25", 5)

	_, err := env.carts.AddToCart(ctx, userID, usecase.AddCartInput{ProductID: a.ID, Quantity: 1})
	require.NoError(t, err)
	cart, err := env.carts.AddToCart(ctx, userID, usecase.AddCartInput{ProductID: b.ID, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	itemA, itemB := cart.Items[0].ID, cart.Items[1].ID

	_, err = env.carts.UpdateCartItem(ctx, otherID, itemA, usecase.UpdateCartItemInput{Quantity: 2})
	requireCode(t, err, http.StatusNotFound, usecase.CodeNotFound)

	_, err = env.carts.UpdateCartItem(ctx, userID, itemA, usecase.UpdateCartItemInput{Quantity: 6})
	requireCode(t, err, http.StatusBadRequest, usecase.CodeInsufficientStock)

	cart, err = env.carts.UpdateCartItem(ctx, userID, itemA, usecase.UpdateCartItemInput{Quantity: 4})
	require.NoError(t, err)
	assert.True(t, cart.Total.Equal(decimal.RequireFromString("42.50")), "got %s", cart.Total)

	// 0 は削除
	cart, err = env.carts.UpdateCartItem(ctx, userID, itemB, usecase.UpdateCartItemInput{Quantity: 0})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	cart, err = env.carts.DeleteCartItem(ctx, userID, itemA)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.Total.IsZero())

	_, err = env.carts.DeleteCartItem(ctx, userID, itemA)
	requireCode(t, err, http.StatusNotFound, usecase.CodeNotFound)
}

func TestCart_DropsDeletedProducts(t *testing.T) {
	env := newEnv(t, usecase.DefaultStockPolicy())
	ctx := context.Background()
	userID := env.seedUser(t, "buyer@example.com", model.RoleUser, "")
	a := env.seedProduct(t, "A", "10", 5)
	b := env.seedProduct(t, "B", "10", 5)

	_, err := env.carts.AddToCart(ctx, userID, usecase.AddCartInput{ProductID: a.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = env.carts.AddToCart(ctx, userID, usecase.AddCartInput{ProductID: b.ID, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, env.db.Delete(&model.Product{}, b.ID).Error)

	cart, err := env.carts.GetCart(ctx, userID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, a.ID, cart.Items[0].ProductID)

	cleared, err := env.carts.ClearCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, cart.CartID, cleared.CartID)
	assert.Empty(t, cleared.Items)
}

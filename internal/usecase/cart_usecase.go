package usecase

import (
	"context"
	"errors"

	"ecorder/internal/domain/model"
	repo "ecorder/internal/repository"

	"github.com/shopspring/decimal"
)

// CartUsecase は /cart の業務ロジックです。
type CartUsecase struct {
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
}

func NewCartUsecase(
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
	}
}

// price は現在の商品価格（カートは価格を固定しない）
type CartItemResponse struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type CartResponse struct {
	CartID int64              `json:"cart_id"`
	Items  []CartItemResponse `json:"items"`
	Total  decimal.Decimal    `json:"total"`
}

type AddCartInput struct {
	ProductID int64
	Quantity  int64
}

type UpdateCartItemInput struct {
	Quantity int64
}

// GetCart はカート取得（無ければ作って空を返す）。
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, errUnauthorized()
	}

	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, internalError(ctx, "get cart", err)
	}
	return u.buildCartResponse(ctx, cart.ID)
}

// AddToCart はカートに追加（同一商品は数量加算）。
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddCartInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, errUnauthorized()
	}
	if in.ProductID <= 0 {
		return CartResponse{}, errValidation("invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, errValidation("quantity must be greater than 0")
	}

	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, errNotFound("product")
	}
	if err != nil {
		return CartResponse{}, internalError(ctx, "add to cart", err)
	}

	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, internalError(ctx, "add to cart", err)
	}

	//既存数量＋追加分が在庫を超えないか
	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, internalError(ctx, "add to cart", err)
	}
	var existingQty int64
	for _, it := range items {
		if it.ProductID == in.ProductID {
			existingQty = it.Quantity
			break
		}
	}
	if existingQty+in.Quantity > p.Stock {
		return CartResponse{}, errInsufficientStock(p.ID, p.Stock, existingQty+in.Quantity)
	}

	if _, err := u.cartItemRepo.UpsertByCartAndProduct(ctx, cart.ID, in.ProductID, in.Quantity); err != nil {
		return CartResponse{}, internalError(ctx, "add to cart", err)
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// 数量変更。0以下なら明細を消す
func (u *CartUsecase) UpdateCartItem(ctx context.Context, userID int64, cartItemID int64, in UpdateCartItemInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, errUnauthorized()
	}
	if cartItemID <= 0 {
		return CartResponse{}, errValidation("invalid id")
	}

	item, err := u.cartItemRepo.FindOwned(ctx, cartItemID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, errNotFound("cart item")
	}
	if err != nil {
		return CartResponse{}, internalError(ctx, "update cart item", err)
	}

	if in.Quantity <= 0 {
		if err := u.cartItemRepo.DeleteByID(ctx, item.ID); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, internalError(ctx, "update cart item", err)
		}
		return u.buildCartResponse(ctx, item.CartID)
	}

	p, err := u.productRepo.FindByID(ctx, item.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, errNotFound("product")
	}
	if err != nil {
		return CartResponse{}, internalError(ctx, "update cart item", err)
	}
	if in.Quantity > p.Stock {
		return CartResponse{}, errInsufficientStock(p.ID, p.Stock, in.Quantity)
	}

	if err := u.cartItemRepo.UpdateQuantity(ctx, item.ID, in.Quantity); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, errNotFound("cart item")
		}
		return CartResponse{}, internalError(ctx, "update cart item", err)
	}
	return u.buildCartResponse(ctx, item.CartID)
}

// 明細削除
func (u *CartUsecase) DeleteCartItem(ctx context.Context, userID int64, cartItemID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, errUnauthorized()
	}
	if cartItemID <= 0 {
		return CartResponse{}, errValidation("invalid id")
	}

	item, err := u.cartItemRepo.FindOwned(ctx, cartItemID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, errNotFound("cart item")
	}
	if err != nil {
		return CartResponse{}, internalError(ctx, "delete cart item", err)
	}

	if err := u.cartItemRepo.DeleteByID(ctx, item.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, errNotFound("cart item")
		}
		return CartResponse{}, internalError(ctx, "delete cart item", err)
	}
	return u.buildCartResponse(ctx, item.CartID)
}

// カートを空にする（カート自体は残す）
func (u *CartUsecase) ClearCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, errUnauthorized()
	}

	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, internalError(ctx, "clear cart", err)
	}
	if err := u.cartRepo.Clear(ctx, cart.ID); err != nil {
		return CartResponse{}, internalError(ctx, "clear cart", err)
	}
	return CartResponse{CartID: cart.ID, Items: []CartItemResponse{}, Total: decimal.Zero}, nil
}

// cartIDの明細をまとめてCartResponseを作る。
// 商品が消えている明細はここで黙って掃除する
func (u *CartUsecase) buildCartResponse(ctx context.Context, cartID int64) (CartResponse, error) {
	items, err := u.cartItemRepo.ListByCartID(ctx, cartID)
	if err != nil {
		return CartResponse{}, internalError(ctx, "build cart", err)
	}

	respItems := make([]CartItemResponse, 0, len(items))
	total := decimal.Zero
	var dangling []int64

	for _, it := range items {
		p, err := u.productRepo.FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			dangling = append(dangling, it.ID)
			continue
		}
		if err != nil {
			return CartResponse{}, internalError(ctx, "build cart", err)
		}

		subtotal := p.Price.Mul(decimal.NewFromInt(it.Quantity))
		respItems = append(respItems, CartItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  it.Quantity,
			Subtotal:  subtotal,
		})
		total = total.Add(subtotal)
	}

	if len(dangling) > 0 {
		if err := u.cartItemRepo.DeleteByIDs(ctx, dangling); err != nil {
			return CartResponse{}, internalError(ctx, "build cart", err)
		}
	}

	return CartResponse{CartID: cartID, Items: respItems, Total: total}, nil
}

// 注文用: カート明細を商品IDと数量の組にする。消えた商品の明細は除く
func cartLines(ctx context.Context, r repo.TxRepos, cart model.Cart) ([]CheckoutItemInput, error) {
	items, err := r.CartItems().ListByCartID(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	lines := make([]CheckoutItemInput, 0, len(items))
	var dangling []int64
	for _, it := range items {
		if _, err := r.Products().FindByID(ctx, it.ProductID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				dangling = append(dangling, it.ID)
				continue
			}
			return nil, err
		}
		lines = append(lines, CheckoutItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	if len(dangling) > 0 {
		if err := r.CartItems().DeleteByIDs(ctx, dangling); err != nil {
			return nil, err
		}
	}
	return lines, nil
}

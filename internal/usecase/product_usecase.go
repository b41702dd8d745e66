package usecase

import (
	"context"
	"errors"
	"strings"

	"ecorder/internal/domain/model"
	repo "ecorder/internal/repository"

	"github.com/shopspring/decimal"
)

type ProductUsecase struct {
	tx            repo.TransactionManager
	productRepo   repo.ProductRepository
	inventoryRepo repo.InventoryRepository
}

// DI
func NewProductUsecase(
	tx repo.TransactionManager,
	productRepo repo.ProductRepository,
	inventoryRepo repo.InventoryRepository,
) *ProductUsecase {
	return &ProductUsecase{
		tx:            tx,
		productRepo:   productRepo,
		inventoryRepo: inventoryRepo,
	}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Limit    int
	Offset   int
	Category string
	Q        string
}

func (u *ProductUsecase) ListProducts(ctx context.Context, in ListProductsInput) ([]model.Product, error) {
	if in.Limit < 0 || in.Limit > 100 {
		return []model.Product{}, errValidation("invalid limit")
	}
	if in.Offset < 0 {
		return []model.Product{}, errValidation("invalid offset")
	}
	if len(in.Q) > 100 {
		return []model.Product{}, errValidation("q too long")
	}
	if in.Category != "" && !model.ProductCategory(in.Category).Valid() {
		return []model.Product{}, errValidation("invalid category")
	}

	items, err := u.productRepo.List(ctx, repo.ProductListQuery{
		Limit:    in.Limit,
		Offset:   in.Offset,
		Category: model.ProductCategory(in.Category),
		Q:        strings.TrimSpace(in.Q),
	})
	if err != nil {
		return []model.Product{}, internalError(ctx, "list products", err)
	}
	return items, nil
}

func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, errValidation("invalid product id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, errNotFound("product")
	}
	if err != nil {
		return model.Product{}, internalError(ctx, "get product", err)
	}
	return p, nil
}

type AdminCreateProductInput struct {
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Stock       int64
}

func (u *ProductUsecase) AdminCreateProduct(ctx context.Context, adminUserID int64, in AdminCreateProductInput) (model.Product, error) {
	if adminUserID <= 0 {
		return model.Product{}, errUnauthorized()
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Product{}, errValidation("name required")
	}
	if !model.ProductCategory(in.Category).Valid() {
		return model.Product{}, errValidation("invalid category")
	}
	if in.Price.IsNegative() {
		return model.Product{}, errValidation("price must be >= 0")
	}
	if in.Stock < 0 {
		return model.Product{}, errValidation("stock must be >= 0")
	}

	p, err := u.productRepo.Create(ctx, model.Product{
		Name:        name,
		Description: in.Description,
		Category:    model.ProductCategory(in.Category),
		Price:       in.Price.Round(2),
		Stock:       in.Stock,
	})
	if err != nil {
		return model.Product{}, internalError(ctx, "create product", err)
	}
	return p, nil
}

// AdminUpdateInventory は在庫の現在値を設定する。差分を増減履歴に、前後の値を監査ログに残す
func (u *ProductUsecase) AdminUpdateInventory(ctx context.Context, adminUserID int64, productID int64, newStock int64, reason string) (model.Product, error) {
	if adminUserID <= 0 {
		return model.Product{}, errUnauthorized()
	}
	if productID <= 0 {
		return model.Product{}, errValidation("invalid product id")
	}
	if newStock < 0 {
		return model.Product{}, errValidation("stock must be >= 0")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.Product{}, errValidation("reason required")
	}

	var out model.Product
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		oldStock, err := r.Inventory().SetStock(ctx, productID, newStock)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("product")
		}
		if err != nil {
			return internalError(ctx, "update inventory", err)
		}

		//履歴を作成（差分）
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   productID,
			ActorUserID: adminUserID,
			Delta:       newStock - oldStock,
			Reason:      model.InventoryReasonAdminSet,
			Note:        reason,
		}); err != nil {
			return internalError(ctx, "update inventory", err)
		}

		//監査ログを作成（在庫更新）
		//「誰が」「何を」「どの対象に」「どう変えたか」を残す
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   auditJSON(map[string]interface{}{"stock": oldStock}),
			AfterJSON:    auditJSON(map[string]interface{}{"stock": newStock, "reason": reason}),
		}); err != nil {
			return internalError(ctx, "update inventory", err)
		}

		p, err := r.Products().FindByID(ctx, productID)
		if err != nil {
			return internalError(ctx, "update inventory", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return model.Product{}, txError(ctx, "update inventory", err)
	}
	return out, nil
}

// 在庫の増減履歴（古い順）
func (u *ProductUsecase) AdminListAdjustments(ctx context.Context, productID int64) ([]model.InventoryAdjustment, error) {
	if productID <= 0 {
		return nil, errValidation("invalid product id")
	}
	items, err := u.inventoryRepo.ListAdjustments(ctx, productID)
	if err != nil {
		return nil, internalError(ctx, "list adjustments", err)
	}
	return items, nil
}

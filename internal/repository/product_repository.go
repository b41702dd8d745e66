package repository

import (
	"context"
	"errors"

	"ecorder/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 一意制約違反（2件目の支払いなど）
var ErrDuplicate = errors.New("duplicate")

type ProductListQuery struct {
	Limit    int
	Offset   int
	Category model.ProductCategory
	Q        string
}

// 商品マスタ（カタログ）の窓口
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
	List(ctx context.Context, q ProductListQuery) ([]model.Product, error)
	Create(ctx context.Context, p model.Product) (model.Product, error)
}

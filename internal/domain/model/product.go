package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductCategory string

const (
	CategoryShirt         ProductCategory = "shirt"
	CategoryPants         ProductCategory = "pants"
	CategoryShalwarKameez ProductCategory = "shalwar_kameez"
	CategoryAccessories   ProductCategory = "accessories"
)

func (c ProductCategory) Valid() bool {
	switch c {
	case CategoryShirt, CategoryPants, CategoryShalwarKameez, CategoryAccessories:
		return true
	}
	return false
}

// 在庫(stock)は0未満にならない。減算は条件付きUPDATEでのみ行う。
type Product struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Category    ProductCategory `gorm:"type:varchar(50);not null;index" json:"category"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Stock       int64           `gorm:"not null;check:stock >= 0" json:"stock"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}

package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductListFilter 查询商品列表的过滤条件
type ProductListFilter struct {
	Page          int
	PageSize      int
	Brands        []string
	CategorySlugs []string
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	Keyword       string
}

// SaleVariantFilter 查询折扣规格的过滤条件
type SaleVariantFilter struct {
	Page             int
	PageSize         int
	MinDiscountRatio decimal.Decimal
}

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page          int
	PageSize      int
	UserID        uint
	OrderStatus   string
	PaymentStatus string
	Keyword       string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

// PaymentTransactionListFilter 查询支付流水列表的过滤条件
type PaymentTransactionListFilter struct {
	Page          int
	PageSize      int
	Status        string
	Reference     string
	CreatedBefore *time.Time
}

// BrandCount 品牌与商品数量
type BrandCount struct {
	Brand string `json:"brand"`
	Count int64  `json:"count"`
}

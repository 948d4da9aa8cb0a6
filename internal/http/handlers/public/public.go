package public

import (
	"strconv"
	"strings"

	"github.com/emarket-next/internal/http/response"
	"github.com/emarket-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// parseProductQuery 解析商品列表通用筛选参数：brand、category 为逗号分隔列表
func parseProductQuery(c *gin.Context) (service.ProductQuery, bool) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	query := service.ProductQuery{
		Page:       page,
		Brands:     splitCommaList(c.Query("brand")),
		Categories: splitCommaList(c.Query("category")),
	}
	for _, bound := range []struct {
		name   string
		target **decimal.Decimal
	}{
		{"min_price", &query.MinPrice},
		{"max_price", &query.MaxPrice},
	} {
		raw := strings.TrimSpace(c.Query(bound.name))
		if raw == "" {
			continue
		}
		value, err := decimal.NewFromString(raw)
		if err != nil || value.IsNegative() {
			respondError(c, response.CodeBadRequest, "error.price_filter_invalid", nil)
			return query, false
		}
		*bound.target = &value
	}
	return query, true
}

func splitCommaList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// GetProducts 商品列表
func (h *Handler) GetProducts(c *gin.Context) {
	query, ok := parseProductQuery(c)
	if !ok {
		return
	}
	products, total, pageSize, err := h.CatalogService.ListProducts(query)
	if err != nil {
		respondError(c, response.CodeInternal, "error.product_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, products, response.BuildPagination(query.Page, pageSize, total))
}

// GetSwiperProducts 首页轮播商品
func (h *Handler) GetSwiperProducts(c *gin.Context) {
	products, err := h.CatalogService.SwiperProducts()
	if err != nil {
		respondError(c, response.CodeInternal, "error.product_fetch_failed", err)
		return
	}
	response.Success(c, products)
}

// SearchProducts 关键字搜索
func (h *Handler) SearchProducts(c *gin.Context) {
	query, ok := parseProductQuery(c)
	if !ok {
		return
	}
	products, total, pageSize, err := h.CatalogService.SearchProducts(c.Param("keyword"), query)
	if err != nil {
		respondWithMappedError(c, err, catalogErrorRules, response.CodeInternal, "error.product_fetch_failed")
		return
	}
	response.SuccessWithPage(c, products, response.BuildPagination(query.Page, pageSize, total))
}

// GetProductBySlug 商品详情
func (h *Handler) GetProductBySlug(c *gin.Context) {
	product, err := h.CatalogService.GetProductBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondWithMappedError(c, err, catalogErrorRules, response.CodeInternal, "error.product_fetch_failed")
		return
	}
	response.Success(c, product)
}

// GetSales 折扣规格列表
func (h *Handler) GetSales(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	variants, total, pageSize, err := h.CatalogService.ListSaleVariants(page)
	if err != nil {
		respondError(c, response.CodeInternal, "error.product_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, variants, response.BuildPagination(page, pageSize, total))
}

// GetSaleSwiper 折扣轮播
func (h *Handler) GetSaleSwiper(c *gin.Context) {
	variants, err := h.CatalogService.SaleSwiper()
	if err != nil {
		respondError(c, response.CodeInternal, "error.product_fetch_failed", err)
		return
	}
	response.Success(c, variants)
}

// GetCategories 分类列表
func (h *Handler) GetCategories(c *gin.Context) {
	categories, err := h.CatalogService.ListCategories()
	if err != nil {
		respondError(c, response.CodeInternal, "error.category_fetch_failed", err)
		return
	}
	response.Success(c, categories)
}

// GetBrands 品牌列表，可按分类与关键字过滤
func (h *Handler) GetBrands(c *gin.Context) {
	brands, err := h.CatalogService.ListBrands(strings.TrimSpace(c.Query("category")), strings.TrimSpace(c.Query("search")))
	if err != nil {
		respondError(c, response.CodeInternal, "error.product_fetch_failed", err)
		return
	}
	response.Success(c, brands)
}

// GetShippingSettings 运费配置
func (h *Handler) GetShippingSettings(c *gin.Context) {
	settings, err := h.ShippingService.ListShippingSettings()
	if err != nil {
		respondError(c, response.CodeInternal, "error.shipping_fetch_failed", err)
		return
	}
	response.Success(c, settings)
}

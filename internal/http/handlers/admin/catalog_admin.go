package admin

import (
	"strconv"

	"github.com/emarket-next/internal/http/response"
	"github.com/emarket-next/internal/models"
	"github.com/emarket-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ====================  分类管理  ====================

// CategoryRequest 分类请求
type CategoryRequest struct {
	Name               string `json:"name" binding:"required"`
	Slug               string `json:"slug"`
	ShortDescription   string `json:"short_description"`
	IsSpecial          bool   `json:"is_special"`
	SpecialTitle       string `json:"special_title"`
	SpecialDescription string `json:"special_description"`
}

func (r CategoryRequest) toInput() service.CategoryInput {
	return service.CategoryInput{
		Name:               r.Name,
		Slug:               r.Slug,
		ShortDescription:   r.ShortDescription,
		IsSpecial:          r.IsSpecial,
		SpecialTitle:       r.SpecialTitle,
		SpecialDescription: r.SpecialDescription,
	}
}

// GetAdminCategories 获取分类列表 (Admin)
func (h *Handler) GetAdminCategories(c *gin.Context) {
	categories, err := h.CatalogService.ListCategories()
	if err != nil {
		respondError(c, response.CodeInternal, "error.category_fetch_failed", err)
		return
	}
	response.Success(c, categories)
}

// CreateCategory 创建分类
func (h *Handler) CreateCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	category, err := h.CatalogService.CreateCategory(req.toInput())
	if err != nil {
		respondWithMappedError(c, err, adminCatalogErrorRules, response.CodeInternal, "error.category_create_failed")
		return
	}
	response.Success(c, category)
}

// UpdateCategory 更新分类
func (h *Handler) UpdateCategory(c *gin.Context) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		return
	}
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	category, err := h.CatalogService.UpdateCategory(id, req.toInput())
	if err != nil {
		respondWithMappedError(c, err, adminCatalogErrorRules, response.CodeInternal, "error.category_update_failed")
		return
	}
	response.Success(c, category)
}

// DeleteCategory 删除分类，仍有商品时拒绝
func (h *Handler) DeleteCategory(c *gin.Context) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		return
	}
	if err := h.CatalogService.DeleteCategory(id); err != nil {
		respondWithMappedError(c, err, adminCatalogErrorRules, response.CodeInternal, "error.category_delete_failed")
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// ====================  商品管理  ====================

// ProductRequest 商品请求
type ProductRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Brand       string `json:"brand"`
	CategoryID  *uint  `json:"category_id"`
	Priority    *int   `json:"priority"`
}

func (r ProductRequest) toInput() service.ProductInput {
	return service.ProductInput{
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		Brand:       r.Brand,
		CategoryID:  r.CategoryID,
		Priority:    r.Priority,
	}
}

// GetAdminProducts 获取商品列表 (Admin)
func (h *Handler) GetAdminProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	products, total, pageSize, err := h.CatalogService.ListProducts(service.ProductQuery{Page: page})
	if err != nil {
		respondError(c, response.CodeInternal, "error.product_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, products, response.BuildPagination(page, pageSize, total))
}

// GetAdminProduct 获取商品详情 (Admin)
func (h *Handler) GetAdminProduct(c *gin.Context) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		return
	}
	product, err := h.CatalogService.GetProduct(id)
	if err != nil {
		respondWithMappedError(c, err, adminCatalogErrorRules, response.CodeInternal, "error.product_fetch_failed")
		return
	}
	response.Success(c, product)
}

// CreateProduct 创建商品
func (h *Handler) CreateProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	product, err := h.CatalogService.CreateProduct(req.toInput())
	if err != nil {
		respondWithMappedError(c, err, adminCatalogErrorRules, response.CodeInternal, "error.product_create_failed")
		return
	}
	response.Success(c, product)
}

// UpdateProduct 更新商品
func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		return
	}
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	product, err := h.CatalogService.UpdateProduct(c.Request.Context(), id, req.toInput())
	if err != nil {
		respondWithMappedError(c, err, adminCatalogErrorRules, response.CodeInternal, "error.product_update_failed")
		return
	}
	response.Success(c, product)
}

// DeleteProduct 删除商品
func (h *Handler) DeleteProduct(c *gin.Context) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		return
	}
	if err := h.CatalogService.DeleteProduct(c.Request.Context(), id); err != nil {
		respondWithMappedError(c, err, adminCatalogErrorRules, response.CodeInternal, "error.product_delete_failed")
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// ====================  规格管理  ====================

// VariantRequest 规格请求，库存通过更新规格调整
type VariantRequest struct {
	SizeML        *int          `json:"size_ml"`
	Price         *models.Money `json:"price"`
	Discount      *models.Money `json:"discount"`
	ClearDiscount bool          `json:"clear_discount"`
	Stock         *int          `json:"stock"`
	WithBox       *bool         `json:"with_box"`
	TravelSize    *bool         `json:"travel_size"`
	Caption       *string       `json:"caption"`
}

func (r VariantRequest) toInput() service.VariantInput {
	return service.VariantInput{
		SizeML:        r.SizeML,
		Price:         r.Price,
		Discount:      r.Discount,
		ClearDiscount: r.ClearDiscount,
		Stock:         r.Stock,
		WithBox:       r.WithBox,
		TravelSize:    r.TravelSize,
		Caption:       r.Caption,
	}
}

// CreateVariant 为商品新增规格
func (h *Handler) CreateVariant(c *gin.Context) {
	productID, ok := parsePathUint(c, "id")
	if !ok {
		return
	}
	var req VariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	variant, err := h.CatalogService.CreateVariant(c.Request.Context(), productID, req.toInput())
	if err != nil {
		respondWithMappedError(c, err, adminCatalogErrorRules, response.CodeInternal, "error.variant_save_failed")
		return
	}
	response.Success(c, variant)
}

// UpdateVariant 更新规格
func (h *Handler) UpdateVariant(c *gin.Context) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		return
	}
	var req VariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	variant, err := h.CatalogService.UpdateVariant(c.Request.Context(), id, req.toInput())
	if err != nil {
		respondWithMappedError(c, err, adminCatalogErrorRules, response.CodeInternal, "error.variant_save_failed")
		return
	}
	response.Success(c, variant)
}

// DeleteVariant 删除规格
func (h *Handler) DeleteVariant(c *gin.Context) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		return
	}
	if err := h.CatalogService.DeleteVariant(c.Request.Context(), id); err != nil {
		respondWithMappedError(c, err, adminCatalogErrorRules, response.CodeInternal, "error.variant_delete_failed")
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

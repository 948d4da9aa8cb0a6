package public

import (
	"strconv"

	"github.com/emarket-next/internal/http/response"
	"github.com/emarket-next/internal/models"
	"github.com/emarket-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CartSessionContextKey 游客会话标识在 gin 上下文中的键
const CartSessionContextKey = "cart_session_key"

// AddCartItemRequest 加入购物车请求
type AddCartItemRequest struct {
	VariantID uint `json:"variant_id" binding:"required"`
	Quantity  int  `json:"quantity"`
}

// UpdateCartItemRequest 修改数量请求
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// CartItemResponse 购物车项响应
type CartItemResponse struct {
	ID          uint         `json:"id"`
	VariantID   uint         `json:"variant_id"`
	ProductID   uint         `json:"product_id"`
	ProductName string       `json:"product_name"`
	ProductSlug string       `json:"product_slug"`
	SizeML      int          `json:"size_ml"`
	Quantity    int          `json:"quantity"`
	Stock       int          `json:"stock"`
	UnitPrice   models.Money `json:"unit_price"`
	LineTotal   models.Money `json:"line_total"`
}

// cartIdentity 登录用户优先使用用户购物车，否则使用游客会话
func cartIdentity(c *gin.Context) service.CartIdentity {
	if value, ok := c.Get("user_id"); ok {
		if uid, ok := value.(uint); ok && uid > 0 {
			return service.CartIdentity{UserID: uid}
		}
	}
	return service.CartIdentity{SessionKey: c.GetString(CartSessionContextKey)}
}

func buildCartResponse(detail *service.CartDetail) gin.H {
	items := make([]CartItemResponse, 0)
	if detail != nil && detail.Cart != nil {
		for _, item := range detail.Cart.Items {
			resp := CartItemResponse{
				ID:        item.ID,
				VariantID: item.VariantID,
				Quantity:  item.Quantity,
			}
			if item.Variant != nil {
				unit := item.Variant.EffectivePrice()
				resp.ProductID = item.Variant.ProductID
				resp.SizeML = item.Variant.SizeML
				resp.Stock = item.Variant.Stock
				resp.UnitPrice = unit
				resp.LineTotal = item.LineTotal()
				if item.Variant.Product != nil {
					resp.ProductName = item.Variant.Product.Name
					resp.ProductSlug = item.Variant.Product.Slug
				}
			}
			items = append(items, resp)
		}
	}
	result := gin.H{"items": items}
	if detail != nil {
		result["subtotal"] = detail.Subtotal
		result["item_count"] = detail.ItemCount
	}
	return result
}

// GetCart 获取购物车
func (h *Handler) GetCart(c *gin.Context) {
	detail, err := h.CartService.GetCartDetail(cartIdentity(c))
	if err != nil {
		respondCartError(c, err, "error.cart_fetch_failed")
		return
	}
	response.Success(c, buildCartResponse(detail))
}

// AddCartItem 加入购物车
func (h *Handler) AddCartItem(c *gin.Context) {
	var req AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	identity := cartIdentity(c)
	cart, err := h.CartService.GetOrCreateCart(identity)
	if err != nil {
		respondCartError(c, err, "error.cart_update_failed")
		return
	}
	if _, err := h.CartService.AddItem(cart, req.VariantID, req.Quantity); err != nil {
		respondCartError(c, err, "error.cart_update_failed")
		return
	}
	h.respondCartDetail(c, identity)
}

// UpdateCartItem 修改购物车项数量
func (h *Handler) UpdateCartItem(c *gin.Context) {
	itemID, ok := parseCartItemID(c)
	if !ok {
		return
	}
	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	identity := cartIdentity(c)
	cart, err := h.CartService.GetOrCreateCart(identity)
	if err != nil {
		respondCartError(c, err, "error.cart_update_failed")
		return
	}
	if _, err := h.CartService.UpdateQuantity(cart, itemID, req.Quantity); err != nil {
		respondCartError(c, err, "error.cart_update_failed")
		return
	}
	h.respondCartDetail(c, identity)
}

// DeleteCartItem 删除购物车项
func (h *Handler) DeleteCartItem(c *gin.Context) {
	itemID, ok := parseCartItemID(c)
	if !ok {
		return
	}
	identity := cartIdentity(c)
	cart, err := h.CartService.GetOrCreateCart(identity)
	if err != nil {
		respondCartError(c, err, "error.cart_update_failed")
		return
	}
	if err := h.CartService.RemoveItem(cart, itemID); err != nil {
		respondCartError(c, err, "error.cart_update_failed")
		return
	}
	h.respondCartDetail(c, identity)
}

func (h *Handler) respondCartDetail(c *gin.Context, identity service.CartIdentity) {
	detail, err := h.CartService.GetCartDetail(identity)
	if err != nil {
		respondCartError(c, err, "error.cart_fetch_failed")
		return
	}
	response.Success(c, buildCartResponse(detail))
}

func parseCartItemID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "error.cart_item_invalid", nil)
		return 0, false
	}
	return uint(id), true
}

package admin

import (
	"github.com/emarket-next/internal/http/response"
	"github.com/emarket-next/internal/models"
	"github.com/emarket-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ShippingSettingRequest 运费配置请求
type ShippingSettingRequest struct {
	Governorate string        `json:"governorate"`
	Cost        *models.Money `json:"cost"`
}

func (r ShippingSettingRequest) toInput() service.ShippingSettingInput {
	return service.ShippingSettingInput{Governorate: r.Governorate, Cost: r.Cost}
}

// GetShippingSettings 运费配置列表
func (h *Handler) GetShippingSettings(c *gin.Context) {
	settings, err := h.ShippingService.ListShippingSettings()
	if err != nil {
		respondError(c, response.CodeInternal, "error.shipping_fetch_failed", err)
		return
	}
	response.Success(c, settings)
}

// CreateShippingSetting 新增运费配置
func (h *Handler) CreateShippingSetting(c *gin.Context) {
	var req ShippingSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	setting, err := h.ShippingService.Create(req.toInput())
	if err != nil {
		respondWithMappedError(c, err, adminShippingErrorRules, response.CodeInternal, "error.shipping_save_failed")
		return
	}
	response.Success(c, setting)
}

// UpdateShippingSetting 修改运费配置
func (h *Handler) UpdateShippingSetting(c *gin.Context) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		return
	}
	var req ShippingSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	setting, err := h.ShippingService.Update(id, req.toInput())
	if err != nil {
		respondWithMappedError(c, err, adminShippingErrorRules, response.CodeInternal, "error.shipping_save_failed")
		return
	}
	response.Success(c, setting)
}

// DeleteShippingSetting 删除运费配置
func (h *Handler) DeleteShippingSetting(c *gin.Context) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		return
	}
	if err := h.ShippingService.Delete(id); err != nil {
		respondWithMappedError(c, err, adminShippingErrorRules, response.CodeInternal, "error.shipping_delete_failed")
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

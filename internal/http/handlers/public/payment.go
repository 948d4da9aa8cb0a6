package public

import (
	"errors"
	"io"
	"net/http"

	"github.com/emarket-next/internal/constants"
	handlershared "github.com/emarket-next/internal/http/handlers/shared"
	"github.com/emarket-next/internal/http/response"
	"github.com/emarket-next/internal/i18n"
	"github.com/emarket-next/internal/service"

	"github.com/gin-gonic/gin"
)

// opayCallbackMaxBody 回调报文上限
const opayCallbackMaxBody = 64 << 10

// CheckoutRequest 结账请求
type CheckoutRequest struct {
	Name            string                              `json:"name"`
	Email           string                              `json:"email"`
	CustomerPhone   string                              `json:"customer_phone"`
	Governorate     string                              `json:"governorate"`
	City            string                              `json:"city"`
	Street          string                              `json:"street"`
	BuildingNumber  string                              `json:"building_number"`
	FloorNumber     string                              `json:"floor_number"`
	ApartmentNumber string                              `json:"apartment_number"`
	Landmark        string                              `json:"landmark"`
	CaptchaPayload  handlershared.CaptchaPayloadRequest `json:"captcha_payload"`
}

// Checkout 发起 OPay 收银台支付
func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	identity := cartIdentity(c)
	if identity.UserID == 0 && !h.verifyCaptcha(c, constants.CaptchaSceneGuestCheckout, req.CaptchaPayload) {
		return
	}

	result, err := h.CheckoutService.Initiate(c.Request.Context(), identity, service.CheckoutInput{
		Name:            req.Name,
		Email:           req.Email,
		CustomerPhone:   req.CustomerPhone,
		Governorate:     req.Governorate,
		City:            req.City,
		Street:          req.Street,
		BuildingNumber:  req.BuildingNumber,
		FloorNumber:     req.FloorNumber,
		ApartmentNumber: req.ApartmentNumber,
		Landmark:        req.Landmark,
	})
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, result)
}

// OpayCallback OPay 支付结果回调，使用真实 HTTP 状态码
func (h *Handler) OpayCallback(c *gin.Context) {
	log := requestLog(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, opayCallbackMaxBody)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Warnw("opay_callback_body_read_failed", "client_ip", c.ClientIP(), "error", err)
		respondCallbackError(c, response.CodeBadRequest, "error.payment_callback_malformed", nil)
		return
	}
	log.Infow("opay_callback_received", "client_ip", c.ClientIP(), "body_size", len(body))

	result, err := h.PaymentService.HandleOpayCallbackBody(c.Request.Context(), body)
	if err != nil {
		for _, rule := range opayCallbackErrorRules {
			if errors.Is(err, rule.target) {
				log.Warnw("opay_callback_rejected", "code", rule.code, "error", err)
				respondCallbackError(c, rule.code, rule.key, nil)
				return
			}
		}
		respondCallbackError(c, response.CodeInternal, "error.payment_callback_failed", err)
		return
	}
	response.Success(c, result)
}

func respondCallbackError(c *gin.Context, code int, key string, err error) {
	msg := i18n.T(i18n.ResolveLocale(c), key)
	if err != nil {
		requestLog(c).Errorw("handler_error", "code", code, "message", msg, "error", err)
	}
	response.ErrorWithStatus(c, code, msg, nil)
}

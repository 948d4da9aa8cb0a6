package opay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

var (
	ErrConfigInvalid    = errors.New("opay config invalid")
	ErrRequestFailed    = errors.New("opay request failed")
	ErrResponseInvalid  = errors.New("opay response invalid")
	ErrCallbackInvalid  = errors.New("opay callback invalid")
	ErrSignatureInvalid = errors.New("opay callback signature invalid")
)

const (
	SandboxBaseURL    = "https://sandboxapi.opaycheckout.com"
	ProductionBaseURL = "https://api.opaycheckout.com"

	cashierCreatePath    = "/api/v1/international/cashier/create"
	successResponseCode  = "00000"
	defaultTimeout       = 30 * time.Second
	defaultExpireMinutes = 30
	referenceLength      = 18
)

// StatusSuccess 网关回调中的支付成功状态
const StatusSuccess = "SUCCESS"

// Config OPay 收银台配置。
type Config struct {
	BaseURL       string        `json:"base_url"`
	Sandbox       bool          `json:"sandbox"`
	PublicKey     string        `json:"public_key"`
	SecretKey     string        `json:"secret_key"`
	MerchantID    string        `json:"merchant_id"`
	Country       string        `json:"country"`
	Currency      string        `json:"currency"`
	ExpireMinutes int           `json:"expire_minutes"`
	Timeout       time.Duration `json:"-"`
}

// UserInfo 付款人信息。
type UserInfo struct {
	Email  string `json:"userEmail"`
	ID     string `json:"userId"`
	Mobile string `json:"userMobile"`
	Name   string `json:"userName"`
}

// Product 收银台商品行，单价为最小货币单位。
type Product struct {
	ProductID   string `json:"productId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Quantity    int    `json:"quantity"`
}

// CreateInput 创建收银台输入。
type CreateInput struct {
	Reference   string
	AmountMinor int64
	Currency    string
	ReturnURL   string
	CallbackURL string
	CancelURL   string
	UserInfo    UserInfo
	Products    []Product
	PayMethod   string
}

// CashierResult 创建收银台返回。
type CashierResult struct {
	Reference  string
	OrderNo    string
	CashierURL string
	Status     string
	Raw        map[string]interface{}
}

// APIError 网关业务错误，Message 为网关返回的可读信息。
type APIError struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: http=%d code=%s message=%s", ErrResponseInvalid.Error(), e.HTTPStatus, e.Code, e.Message)
}

// Unwrap 使 errors.Is(err, ErrResponseInvalid) 成立。
func (e *APIError) Unwrap() error {
	return ErrResponseInvalid
}

type createRequest struct {
	Country     string      `json:"country"`
	Reference   string      `json:"reference"`
	Amount      amountBlock `json:"amount"`
	ReturnURL   string      `json:"returnUrl"`
	CallbackURL string      `json:"callbackUrl"`
	CancelURL   string      `json:"cancelUrl"`
	ExpireAt    int         `json:"expireAt"`
	UserInfo    UserInfo    `json:"userInfo"`
	ProductList []Product   `json:"productList"`
	PayMethod   string      `json:"payMethod"`
}

type amountBlock struct {
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

// Normalize 清理空白并填充默认值。
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.PublicKey = strings.TrimSpace(c.PublicKey)
	c.SecretKey = strings.TrimSpace(c.SecretKey)
	c.MerchantID = strings.TrimSpace(c.MerchantID)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		if c.Sandbox {
			c.BaseURL = SandboxBaseURL
		} else {
			c.BaseURL = ProductionBaseURL
		}
	}
	c.Country = strings.ToUpper(strings.TrimSpace(c.Country))
	if c.Country == "" {
		c.Country = "EG"
	}
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	if c.Currency == "" {
		c.Currency = "EGP"
	}
	if c.ExpireMinutes <= 0 {
		c.ExpireMinutes = defaultExpireMinutes
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// ValidateConfig 校验配置。
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if cfg.PublicKey == "" {
		return fmt.Errorf("%w: public_key is required", ErrConfigInvalid)
	}
	if cfg.MerchantID == "" {
		return fmt.Errorf("%w: merchant_id is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return fmt.Errorf("%w: base_url is invalid", ErrConfigInvalid)
	}
	return nil
}

// NewReference 生成 18 位网关参考号。
func NewReference() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:referenceLength])
}

// CreateCashier 创建收银台会话，任何网络、状态码或报文异常都转换为结构化错误。
func CreateCashier(ctx context.Context, cfg *Config, input CreateInput) (*CashierResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	cfg.Normalize()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Reference) == "" || input.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: reference and positive amount are required", ErrConfigInvalid)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = cfg.Currency
	}
	products := input.Products
	if products == nil {
		products = []Product{}
	}

	body, err := json.Marshal(createRequest{
		Country:     cfg.Country,
		Reference:   strings.TrimSpace(input.Reference),
		Amount:      amountBlock{Total: input.AmountMinor, Currency: currency},
		ReturnURL:   input.ReturnURL,
		CallbackURL: input.CallbackURL,
		CancelURL:   input.CancelURL,
		ExpireAt:    cfg.ExpireMinutes,
		UserInfo:    input.UserInfo,
		ProductList: products,
		PayMethod:   input.PayMethod,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request failed", ErrRequestFailed)
	}

	respBody, status, err := doJSONRequest(ctx, cfg, cashierCreatePath, body)
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(respBody, &raw); err != nil {
		if status < 200 || status >= 300 {
			return nil, &APIError{HTTPStatus: status, Message: strings.TrimSpace(string(respBody))}
		}
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	code := readString(raw, "code")
	message := readString(raw, "message")
	if status < 200 || status >= 300 || code != successResponseCode {
		return nil, &APIError{HTTPStatus: status, Code: code, Message: message}
	}

	result := &CashierResult{
		Reference:  readString(raw, "data", "reference"),
		OrderNo:    readString(raw, "data", "orderNo"),
		CashierURL: readString(raw, "data", "cashierUrl"),
		Status:     readString(raw, "data", "status"),
		Raw:        raw,
	}
	if result.CashierURL == "" {
		return nil, fmt.Errorf("%w: missing cashierUrl", ErrResponseInvalid)
	}
	if result.Reference == "" {
		result.Reference = strings.TrimSpace(input.Reference)
	}
	return result, nil
}

// Callback 网关异步回调。
type Callback struct {
	Type          string
	Reference     string
	Status        string
	Amount        string
	Currency      string
	TransactionID string
	Timestamp     string
	Token         string
	Refunded      bool
	Signature     string
	Payload       map[string]interface{}
}

// ParseCallback 解析回调报文 {payload:{...}, sha512, type}，缺少 payload 时返回 ErrCallbackInvalid。
func ParseCallback(body []byte) (*Callback, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: body is not json", ErrCallbackInvalid)
	}
	payload, ok := raw["payload"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: payload is missing", ErrCallbackInvalid)
	}
	return &Callback{
		Type:          strings.TrimSpace(readString(raw, "type")),
		Reference:     strings.TrimSpace(readString(payload, "reference")),
		Status:        strings.ToUpper(strings.TrimSpace(readString(payload, "status"))),
		Amount:        readString(payload, "amount"),
		Currency:      readString(payload, "currency"),
		TransactionID: readString(payload, "transactionId"),
		Timestamp:     readString(payload, "timestamp"),
		Token:         readString(payload, "token"),
		Refunded:      readBool(payload, "refunded"),
		Signature:     strings.TrimSpace(readString(raw, "sha512")),
		Payload:       payload,
	}, nil
}

// SignaturePayload 构建回调验签原文。
func SignaturePayload(cb *Callback) string {
	refunded := "f"
	if cb.Refunded {
		refunded = "t"
	}
	return fmt.Sprintf(`{Amount:"%s",Currency:"%s",Reference:"%s",Refunded:%s,Status:"%s",Timestamp:"%s",Token:"%s",TransactionID:"%s"}`,
		cb.Amount, cb.Currency, cb.Reference, refunded, cb.Status, cb.Timestamp, cb.Token, cb.TransactionID)
}

// Sign 使用密钥计算 HMAC-SHA3-512 十六进制签名。
func Sign(secretKey, payload string) string {
	mac := hmac.New(sha3.New512, []byte(secretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCallbackSignature 校验回调签名。
func VerifyCallbackSignature(cfg *Config, cb *Callback) error {
	if cfg == nil || strings.TrimSpace(cfg.SecretKey) == "" {
		return fmt.Errorf("%w: secret_key is required", ErrConfigInvalid)
	}
	if cb == nil || cb.Signature == "" {
		return ErrSignatureInvalid
	}
	expected := Sign(strings.TrimSpace(cfg.SecretKey), SignaturePayload(cb))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(cb.Signature))) {
		return ErrSignatureInvalid
	}
	return nil
}

func doJSONRequest(ctx context.Context, cfg *Config, endpoint string, body []byte) ([]byte, int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.PublicKey)
	req.Header.Set("MerchantId", cfg.MerchantID)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, 0, fmt.Errorf("%w: request timeout after %s", ErrRequestFailed, cfg.Timeout)
		}
		return nil, 0, fmt.Errorf("%w: http request failed", ErrRequestFailed)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response failed", ErrRequestFailed)
	}
	return respBody, resp.StatusCode, nil
}

func readString(raw map[string]interface{}, path ...string) string {
	var current interface{} = raw
	for _, seg := range path {
		next, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current = next[seg]
	}
	switch v := current.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func readBool(raw map[string]interface{}, key string) bool {
	switch v := raw[key].(type) {
	case bool:
		return v
	case string:
		parsed, _ := strconv.ParseBool(strings.TrimSpace(v))
		return parsed || strings.EqualFold(strings.TrimSpace(v), "t")
	default:
		return false
	}
}

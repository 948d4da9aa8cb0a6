package router

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/emarket-next/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func TestKeyByIPAndJSONField(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(`{"email":" Test@Example.com "}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.RemoteAddr = "1.2.3.4:5678"

	key := KeyByIPAndJSONField("email")(c)
	if key != "test@example.com|1.2.3.4" {
		t.Fatalf("key want test@example.com|1.2.3.4 got %s", key)
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		t.Fatalf("read body after key extraction failed: %v", err)
	}
	if !strings.Contains(string(body), "Test@Example.com") {
		t.Fatalf("request body should be restored after reading field")
	}
}

func TestRateLimitMiddlewareWithoutClient(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimitMiddleware(nil, RateLimitRule{WindowSeconds: 60, MaxRequests: 1}, KeyByIP))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("expected handler response body, got %s", w.Body.String())
	}
}

func TestToInt64(t *testing.T) {
	cases := []struct {
		name  string
		input interface{}
		want  int64
		ok    bool
	}{
		{name: "int64", input: int64(10), want: 10, ok: true},
		{name: "int", input: int(11), want: 11, ok: true},
		{name: "uint64", input: uint64(12), want: 12, ok: true},
		{name: "float64", input: float64(13.9), want: 13, ok: true},
		{name: "string", input: "bad", want: 0, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := toInt64(tc.input)
			if ok != tc.ok {
				t.Fatalf("ok want %v got %v", tc.ok, ok)
			}
			if got != tc.want {
				t.Fatalf("value want %d got %d", tc.want, got)
			}
		})
	}
}

func TestKeyByCartIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/checkout", nil)
	c.Request.RemoteAddr = "9.9.9.9:1000"

	if key := KeyByCartIdentity(c); key != "9.9.9.9" {
		t.Fatalf("fallback key want 9.9.9.9 got %s", key)
	}
	c.Set(cartSessionContextKey, "sess-1")
	if key := KeyByCartIdentity(c); key != "session:sess-1" {
		t.Fatalf("session key want session:sess-1 got %s", key)
	}
	c.Set("user_id", uint(7))
	if key := KeyByCartIdentity(c); key != "user:7" {
		t.Fatalf("user key want user:7 got %s", key)
	}
}

func TestRateLimitMiddlewareRedisDown(t *testing.T) {
	gin.SetMode(gin.TestMode)

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	build := func(rule RateLimitRule) *gin.Engine {
		r := gin.New()
		r.Use(RateLimitMiddleware(client, rule, KeyByIP))
		r.POST("/callback", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})
		return r
	}

	base := RateLimitRule{Prefix: "test:webhook", WindowSeconds: 60, MaxRequests: 5, HTTPStatus: true}

	openRule := base
	openRule.FailOpen = true
	w := httptest.NewRecorder()
	build(openRule).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/callback", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("fail-open rule should pass through, got %d %s", w.Code, w.Body.String())
	}

	w2 := httptest.NewRecorder()
	build(base).ServeHTTP(w2, httptest.NewRequest(http.MethodPost, "/callback", nil))
	if w2.Code != http.StatusInternalServerError {
		t.Fatalf("fail-closed rule should return 500, got %d", w2.Code)
	}
}

func TestRuleFromConfig(t *testing.T) {
	rule := RuleFromConfig("em:rate:checkout", config.RateLimitConfig{WindowSeconds: 60, MaxAttempts: 10, BlockSeconds: 120})
	if rule.Prefix != "em:rate:checkout" || rule.WindowSeconds != 60 || rule.MaxRequests != 10 || rule.BlockSeconds != 120 {
		t.Fatalf("unexpected rule: %+v", rule)
	}
	if rule.FailOpen || rule.HTTPStatus {
		t.Fatalf("config rule should default to fail-closed envelope responses")
	}
}

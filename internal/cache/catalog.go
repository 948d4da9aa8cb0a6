package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

func productDetailKey(slug string) string {
	return fmt.Sprintf("catalog:product:%s", strings.ToLower(strings.TrimSpace(slug)))
}

// GetProductDetail 读取商品详情缓存
func GetProductDetail(ctx context.Context, slug string, dest interface{}) (bool, error) {
	if strings.TrimSpace(slug) == "" {
		return false, nil
	}
	return GetJSON(ctx, productDetailKey(slug), dest)
}

// SetProductDetail 写入商品详情缓存
func SetProductDetail(ctx context.Context, slug string, value interface{}, ttl time.Duration) error {
	if strings.TrimSpace(slug) == "" || ttl <= 0 {
		return nil
	}
	return SetJSON(ctx, productDetailKey(slug), value, ttl)
}

// DelProductDetails 批量失效商品详情缓存
func DelProductDetails(ctx context.Context, slugs ...string) error {
	keys := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		if strings.TrimSpace(slug) == "" {
			continue
		}
		keys = append(keys, productDetailKey(slug))
	}
	return Del(ctx, keys...)
}

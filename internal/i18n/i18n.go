package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

const (
	LocaleEnUS = "en-US"
	LocaleArEG = "ar-EG"

	DefaultLocale = LocaleEnUS
	localeHeader  = "X-Locale"
)

//go:embed locales/*.json
var localeFS embed.FS

var (
	loadOnce sync.Once
	catalogs map[string]map[string]string
)

func load() {
	catalogs = make(map[string]map[string]string)
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		raw, err := localeFS.ReadFile(path.Join("locales", name))
		if err != nil {
			continue
		}
		messages := make(map[string]string)
		if err := json.Unmarshal(raw, &messages); err != nil {
			continue
		}
		catalogs[strings.TrimSuffix(name, ".json")] = messages
	}
}

// Supported 返回是否支持该语言
func Supported(locale string) bool {
	loadOnce.Do(load)
	_, ok := catalogs[locale]
	return ok
}

// T 翻译 key，缺失时回退默认语言，再缺失返回 key 本身。
func T(locale, key string) string {
	loadOnce.Do(load)
	if messages, ok := catalogs[locale]; ok {
		if msg, ok := messages[key]; ok && msg != "" {
			return msg
		}
	}
	if messages, ok := catalogs[DefaultLocale]; ok {
		if msg, ok := messages[key]; ok && msg != "" {
			return msg
		}
	}
	return key
}

// Sprintf 翻译后格式化。
func Sprintf(locale, key string, args ...interface{}) string {
	msg := T(locale, key)
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// ResolveLocale 依次读取 X-Locale 与 Accept-Language 头。
func ResolveLocale(c *gin.Context) string {
	if c == nil || c.Request == nil {
		return DefaultLocale
	}
	if locale := normalizeLocale(c.GetHeader(localeHeader)); locale != "" {
		return locale
	}
	for _, part := range strings.Split(c.GetHeader("Accept-Language"), ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if locale := normalizeLocale(tag); locale != "" {
			return locale
		}
	}
	return DefaultLocale
}

func normalizeLocale(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	switch {
	case strings.HasPrefix(raw, "ar"):
		return LocaleArEG
	case strings.HasPrefix(raw, "en"):
		return LocaleEnUS
	default:
		return ""
	}
}

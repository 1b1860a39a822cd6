package i18n

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

// 支持的语言
const (
	LocaleZH = "zh-CN"
	LocaleEN = "en-US"
)

// DefaultLocale 默认语言
const DefaultLocale = LocaleZH

var supportedLocales = map[string]bool{
	LocaleZH: true,
	LocaleEN: true,
}

// ResolveLocale 解析请求语言：query 参数 > X-Locale 头 > Accept-Language 头 > 默认
func ResolveLocale(c *gin.Context) string {
	if c == nil {
		return DefaultLocale
	}
	if locale := normalizeLocale(c.Query("locale")); locale != "" {
		return locale
	}
	if locale := normalizeLocale(c.GetHeader("X-Locale")); locale != "" {
		return locale
	}
	accept := c.GetHeader("Accept-Language")
	for _, part := range strings.Split(accept, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if locale := normalizeLocale(tag); locale != "" {
			return locale
		}
	}
	return DefaultLocale
}

func normalizeLocale(raw string) string {
	tag := strings.TrimSpace(raw)
	if tag == "" {
		return ""
	}
	if supportedLocales[tag] {
		return tag
	}
	lower := strings.ToLower(tag)
	switch {
	case strings.HasPrefix(lower, "zh"):
		return LocaleZH
	case strings.HasPrefix(lower, "en"):
		return LocaleEN
	}
	return ""
}

// T 按语言取文案，未命中时回退默认语言，仍未命中返回 key 本身
func T(locale, key string) string {
	if catalog, ok := messages[locale]; ok {
		if text, ok := catalog[key]; ok {
			return text
		}
	}
	if locale != DefaultLocale {
		if text, ok := messages[DefaultLocale][key]; ok {
			return text
		}
	}
	return key
}

// Sprintf 取文案并格式化
func Sprintf(locale, key string, args ...interface{}) string {
	return fmt.Sprintf(T(locale, key), args...)
}

package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	merchantNumberCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	tradeNoSuffixCharset  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// GenerateMerchantNumber 生成商户号：M + 4位年份 + 11位随机大写字母或数字，定长16。
func GenerateMerchantNumber(now time.Time) string {
	return fmt.Sprintf("M%s%s", now.Format("2006"), randFromCharset(merchantNumberCharset, 11))
}

// GenerateTradeNo 生成平台单号：P + yymmddHHMMSS + 6位微秒 + 5位随机大写字母，定长24。
// 单号按下单时区取时间，冲突时由调用方重新生成。
func GenerateTradeNo(now time.Time) string {
	micro := now.Nanosecond() / int(time.Microsecond)
	return fmt.Sprintf("P%s%06d%s", now.Format("060102150405"), micro, randFromCharset(tradeNoSuffixCharset, 5))
}

// GenerateRefundNo 生成退款单号：R + 2位年份 + 13位随机大写字母或数字，定长16。
func GenerateRefundNo(now time.Time) string {
	return fmt.Sprintf("R%s%s", now.Format("06"), randFromCharset(merchantNumberCharset, 13))
}

func randFromCharset(charset string, length int) string {
	var b strings.Builder
	limit := big.NewInt(int64(len(charset)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			b.WriteByte(charset[0])
			continue
		}
		b.WriteByte(charset[n.Int64()])
	}
	return b.String()
}

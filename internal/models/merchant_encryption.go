package models

import (
	"time"
)

// MerchantEncryption 商户签名配置表（一户一行）
type MerchantEncryption struct {
	ID           uint      `gorm:"primarykey" json:"id"`                               // 主键
	MerchantID   uint      `gorm:"uniqueIndex;not null" json:"merchant_id"`            // 商户 ID
	Mode         string    `gorm:"not null;default:open;type:varchar(16)" json:"mode"` // 加密模式（open/only_xxh/only_sha3/only_sm3/only_rsa2）
	HashKey      string    `gorm:"not null;type:varchar(64)" json:"-"`                 // 32 字节共享摘要密钥
	AESKey       string    `gorm:"type:varchar(64)" json:"-"`                          // 可选的 32 字节对称密钥
	RSAPublicKey string    `gorm:"type:text" json:"-"`                                 // 商户 RSA2 公钥（Base64，无 PEM 头）
	CreatedAt    time.Time `json:"created_at"`                                         // 创建时间
	UpdatedAt    time.Time `json:"updated_at"`                                         // 更新时间
}

// TableName 指定表名
func (MerchantEncryption) TableName() string {
	return "merchant_encryptions"
}

// AllowSignType 判断模式是否允许指定签名算法
func (e *MerchantEncryption) AllowSignType(signType string) bool {
	if e == nil {
		return false
	}
	switch e.Mode {
	case "open":
		switch signType {
		case "xxh", "sha3", "sm3", "rsa2":
			return true
		}
		return false
	case "only_xxh":
		return signType == "xxh"
	case "only_sha3":
		return signType == "sha3"
	case "only_sm3":
		return signType == "sm3"
	case "only_rsa2":
		return signType == "rsa2"
	}
	return false
}

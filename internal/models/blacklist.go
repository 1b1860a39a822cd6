package models

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/sha3"
	"gorm.io/gorm"
)

// Blacklist 风控黑名单
type Blacklist struct {
	ID          uint           `gorm:"primarykey" json:"id"`                                     // 主键
	EntityType  string         `gorm:"not null;type:varchar(32)" json:"entity_type"`             // 实体类型
	EntityValue string         `gorm:"not null;type:varchar(255)" json:"entity_value"`           // 实体原始值
	EntityHash  string         `gorm:"uniqueIndex;not null;type:varchar(64)" json:"entity_hash"` // SHA3-224(type‖value) 十六进制
	Reason      string         `gorm:"type:varchar(255)" json:"reason"`                          // 拉黑原因
	Origin      string         `gorm:"not null;type:varchar(32)" json:"origin"`                  // 来源
	ExpiredAt   *time.Time     `gorm:"index" json:"expired_at"`                                  // 过期时间（空为永久）
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                                  // 创建时间
	UpdatedAt   time.Time      `json:"updated_at"`                                               // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                           // 软删除时间
}

// TableName 指定表名
func (Blacklist) TableName() string {
	return "blacklists"
}

// IsEffective 判断黑名单条目当前是否生效
func (b *Blacklist) IsEffective(now time.Time) bool {
	if b == nil {
		return false
	}
	return b.ExpiredAt == nil || b.ExpiredAt.After(now)
}

// BlacklistEntityHash 计算实体哈希：SHA3-224(type‖value) 十六进制
func BlacklistEntityHash(entityType, entityValue string) string {
	sum := sha3.Sum224([]byte(entityType + entityValue))
	return hex.EncodeToString(sum[:])
}

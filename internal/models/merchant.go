package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// ChannelWhitelistAccount 商户白名单子账户项
type ChannelWhitelistAccount struct {
	AccountID uint  `json:"account_id"`     // 子账户 ID
	Rate      *Rate `json:"rate,omitempty"` // 商户级子账户费率（优先级最高）
}

// ChannelWhitelistEntry 商户白名单渠道项
type ChannelWhitelistEntry struct {
	ChannelID      uint                      `json:"channel_id"`         // 渠道 ID
	Rate           *Rate                     `json:"rate,omitempty"`     // 商户级渠道费率
	UseAllAccounts bool                      `json:"use_all_accounts"`   // 是否放开全部子账户
	Accounts       []ChannelWhitelistAccount `json:"accounts,omitempty"` // 指定子账户列表
}

// ChannelWhitelist 商户渠道白名单（空表示不限制）
type ChannelWhitelist []ChannelWhitelistEntry

// Value 实现 driver.Valuer 接口
func (w ChannelWhitelist) Value() (driver.Value, error) {
	if w == nil {
		return nil, nil
	}
	return json.Marshal(w)
}

// Scan 实现 sql.Scanner 接口
func (w *ChannelWhitelist) Scan(value interface{}) error {
	if value == nil {
		*w = ChannelWhitelist{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, w)
	case string:
		return json.Unmarshal([]byte(v), w)
	}
	return nil
}

// Entry 返回指定渠道的白名单项
func (w ChannelWhitelist) Entry(channelID uint) *ChannelWhitelistEntry {
	for i := range w {
		if w[i].ChannelID == channelID {
			return &w[i]
		}
	}
	return nil
}

// Merchant 商户表
type Merchant struct {
	ID               uint             `gorm:"primarykey" json:"id"`                                         // 主键
	MerchantNumber   string           `gorm:"uniqueIndex;not null;type:varchar(32)" json:"merchant_number"` // 商户号（M+年份+11 位大写字母数字）
	Name             string           `gorm:"not null" json:"name"`                                         // 商户名称
	Email            string           `gorm:"index" json:"email"`                                           // 联系邮箱
	Mobile           string           `gorm:"type:varchar(32)" json:"mobile"`                               // 联系手机号
	Status           bool             `gorm:"not null;default:true;index" json:"status"`                    // 是否启用
	RiskStatus       bool             `gorm:"not null;default:false" json:"risk_status"`                    // 是否风控拦截
	BuyerPayFee      bool             `gorm:"not null;default:false" json:"buyer_pay_fee"`                  // 手续费是否由买家承担
	Competence       StringArray      `gorm:"type:json" json:"competence"`                                  // 能力集合（pay/refund/withdraw）
	ChannelWhitelist ChannelWhitelist `gorm:"type:json" json:"channel_whitelist"`                           // 渠道白名单
	PasswordSalt     string           `gorm:"type:varchar(64)" json:"-"`                                    // 密码盐
	PasswordHash     string           `json:"-"`                                                            // 密码哈希
	CreatedAt        time.Time        `gorm:"index" json:"created_at"`                                      // 创建时间
	UpdatedAt        time.Time        `json:"updated_at"`                                                   // 更新时间
	DeletedAt        gorm.DeletedAt   `gorm:"index" json:"-"`                                               // 软删除时间
}

// TableName 指定表名
func (Merchant) TableName() string {
	return "merchants"
}

// HasCompetence 判断商户是否具备指定能力
func (m *Merchant) HasCompetence(code string) bool {
	if m == nil {
		return false
	}
	return m.Competence.Contains(code)
}

// ChannelAllowed 判断渠道是否在白名单内（空白名单不限制）
func (m *Merchant) ChannelAllowed(channelID uint) bool {
	if m == nil || len(m.ChannelWhitelist) == 0 {
		return true
	}
	return m.ChannelWhitelist.Entry(channelID) != nil
}

// AccountAllowed 判断子账户是否在白名单内
func (m *Merchant) AccountAllowed(channelID, accountID uint) bool {
	if m == nil || len(m.ChannelWhitelist) == 0 {
		return true
	}
	entry := m.ChannelWhitelist.Entry(channelID)
	if entry == nil {
		return false
	}
	if entry.UseAllAccounts {
		return true
	}
	for _, acc := range entry.Accounts {
		if acc.AccountID == accountID {
			return true
		}
	}
	return false
}

// GetRate 返回商户协议费率，子账户级优先于渠道级，未配置返回 nil
func (m *Merchant) GetRate(channelID, accountID uint) *Rate {
	if m == nil {
		return nil
	}
	entry := m.ChannelWhitelist.Entry(channelID)
	if entry == nil {
		return nil
	}
	for _, acc := range entry.Accounts {
		if acc.AccountID == accountID && acc.Rate != nil {
			return acc.Rate
		}
	}
	return entry.Rate
}

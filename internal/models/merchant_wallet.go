package models

import (
	"time"
)

// MerchantWallet 商户钱包表（一户一行）
type MerchantWallet struct {
	ID                 uint      `gorm:"primarykey" json:"id"`                                             // 主键
	MerchantID         uint      `gorm:"uniqueIndex;not null" json:"merchant_id"`                          // 商户 ID
	AvailableBalance   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"available_balance"`   // 可用余额
	UnavailableBalance Money     `gorm:"type:decimal(20,2);not null;default:0" json:"unavailable_balance"` // 在途（不可用）余额
	Prepaid            Money     `gorm:"type:decimal(20,2);not null;default:0" json:"prepaid"`             // 预付款（垫资待冲抵）
	Margin             Money     `gorm:"type:decimal(20,2);not null;default:0" json:"margin"`              // 保证金
	CreatedAt          time.Time `json:"created_at"`                                                       // 创建时间
	UpdatedAt          time.Time `json:"updated_at"`                                                       // 更新时间
}

// TableName 指定表名
func (MerchantWallet) TableName() string {
	return "merchant_wallets"
}

// MerchantWalletRecord 可用/在途余额变动流水（仅追加）
type MerchantWalletRecord struct {
	ID               uint      `gorm:"primarykey" json:"id"`                                           // 主键
	MerchantID       uint      `gorm:"index;not null" json:"merchant_id"`                              // 商户 ID
	Type             string    `gorm:"not null;type:varchar(32);index" json:"type"`                    // 变动类型
	OldAvailable     Money     `gorm:"type:decimal(20,2);not null;default:0" json:"old_available"`     // 变动前可用余额
	DeltaAvailable   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"delta_available"`   // 可用余额变动额
	NewAvailable     Money     `gorm:"type:decimal(20,2);not null;default:0" json:"new_available"`     // 变动后可用余额
	OldUnavailable   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"old_unavailable"`   // 变动前在途余额
	DeltaUnavailable Money     `gorm:"type:decimal(20,2);not null;default:0" json:"delta_unavailable"` // 在途余额变动额
	NewUnavailable   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"new_unavailable"`   // 变动后在途余额
	TradeNo          string    `gorm:"index;type:varchar(32)" json:"trade_no"`                         // 关联交易号
	Remark           string    `gorm:"type:varchar(255)" json:"remark"`                                // 备注
	CreatedAt        time.Time `gorm:"index" json:"created_at"`                                        // 创建时间
}

// TableName 指定表名
func (MerchantWalletRecord) TableName() string {
	return "merchant_wallet_records"
}

// MerchantWalletPrepaidRecord 预付款变动流水（仅追加）
type MerchantWalletPrepaidRecord struct {
	ID           uint      `gorm:"primarykey" json:"id"`                                       // 主键
	MerchantID   uint      `gorm:"index;not null" json:"merchant_id"`                          // 商户 ID
	Type         string    `gorm:"not null;type:varchar(32);index" json:"type"`                // 变动类型
	OldPrepaid   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"old_prepaid"`   // 变动前预付款
	DeltaPrepaid Money     `gorm:"type:decimal(20,2);not null;default:0" json:"delta_prepaid"` // 预付款变动额
	NewPrepaid   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"new_prepaid"`   // 变动后预付款
	Remark       string    `gorm:"type:varchar(255)" json:"remark"`                            // 备注
	CreatedAt    time.Time `gorm:"index" json:"created_at"`                                    // 创建时间
}

// TableName 指定表名
func (MerchantWalletPrepaidRecord) TableName() string {
	return "merchant_wallet_prepaid_records"
}

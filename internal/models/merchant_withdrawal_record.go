package models

import (
	"time"
)

// MerchantWithdrawalRecord 商户提现/清账记录
// 不变量：amount = prepaid_deducted + received_amount + (fee_type ? 0 : fee)
type MerchantWithdrawalRecord struct {
	ID              uint      `gorm:"primarykey" json:"id"`                                          // 主键
	MerchantID      uint      `gorm:"index;not null" json:"merchant_id"`                             // 商户 ID
	PayeeInfo       JSON      `gorm:"type:json" json:"payee_info"`                                   // 收款人信息
	Amount          Money     `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`           // 申请金额
	PrepaidDeducted Money     `gorm:"type:decimal(20,2);not null;default:0" json:"prepaid_deducted"` // 预付款冲抵金额
	ReceivedAmount  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"received_amount"`  // 实际到账金额
	Fee             Money     `gorm:"type:decimal(20,2);not null;default:0" json:"fee"`              // 提现手续费
	FeeType         bool      `gorm:"not null;default:false" json:"fee_type"`                        // 手续费是否内扣
	Status          string    `gorm:"not null;type:varchar(16);index" json:"status"`                 // 状态（PENDING/PROCESSING/COMPLETED/FAILED/REJECTED/CANCELED）
	RejectReason    string    `gorm:"type:varchar(255)" json:"reject_reason"`                        // 拒绝/失败原因
	CreatedAt       time.Time `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt       time.Time `json:"updated_at"`                                                    // 更新时间
}

// TableName 指定表名
func (MerchantWithdrawalRecord) TableName() string {
	return "merchant_withdrawal_records"
}

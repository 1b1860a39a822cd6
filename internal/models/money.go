package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Money 统一金额类型（保留 2 位小数，银行家舍入）
type Money struct {
	decimal.Decimal
}

// NewMoneyFromDecimal 从 decimal 创建金额
func NewMoneyFromDecimal(amount decimal.Decimal) Money {
	return Money{Decimal: amount.RoundBank(2)}
}

// NewMoneyFromString 从字符串创建金额
func NewMoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return NewMoneyFromDecimal(d), nil
}

// MarshalJSON 统一输出 2 位小数的字符串
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Decimal.RoundBank(2).StringFixed(2))
}

// UnmarshalJSON 解析金额（字符串或数字）
func (m *Money) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		m.Decimal = d.RoundBank(2)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	m.Decimal = decimal.NewFromFloat(f).RoundBank(2)
	return nil
}

// Value 用于数据库写入
func (m Money) Value() (driver.Value, error) {
	return m.Decimal.RoundBank(2).Value()
}

// Scan 用于数据库读取
func (m *Money) Scan(value interface{}) error {
	if err := m.Decimal.Scan(value); err != nil {
		return err
	}
	m.Decimal = m.Decimal.RoundBank(2)
	return nil
}

// String 返回 2 位小数格式
func (m Money) String() string {
	return m.Decimal.RoundBank(2).StringFixed(2)
}

// Rate 费率类型（小数形式，保留 4 位小数，1.5% 存储为 0.0150）
type Rate struct {
	decimal.Decimal
}

// NewRateFromDecimal 从 decimal 创建费率
func NewRateFromDecimal(rate decimal.Decimal) Rate {
	return Rate{Decimal: rate.RoundBank(4)}
}

// MarshalJSON 统一输出 4 位小数的字符串
func (r Rate) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Decimal.RoundBank(4).StringFixed(4))
}

// UnmarshalJSON 解析费率（字符串或数字）
func (r *Rate) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		r.Decimal = d.RoundBank(4)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	r.Decimal = decimal.NewFromFloat(f).RoundBank(4)
	return nil
}

// Value 用于数据库写入
func (r Rate) Value() (driver.Value, error) {
	return r.Decimal.RoundBank(4).Value()
}

// Scan 用于数据库读取
func (r *Rate) Scan(value interface{}) error {
	if err := r.Decimal.Scan(value); err != nil {
		return err
	}
	r.Decimal = r.Decimal.RoundBank(4)
	return nil
}

// String 返回 4 位小数格式
func (r Rate) String() string {
	return r.Decimal.RoundBank(4).StringFixed(4)
}

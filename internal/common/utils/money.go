// Package utils 金额、分页与指针等小工具
package utils

import "github.com/shopspring/decimal"

// MinPayable 最小可支付金额 0.01
var MinPayable = decimal.New(1, -2)

// RoundMoney 四舍五入到分
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ToFen 元转分，打款接口以分为单位
func ToFen(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

package backtest

import "github.com/shopspring/decimal"

// FeeSchedule 描述台股現股交易成本。
// 買賣各收成交金額 0.1425% 的手續費（單筆最低 20 元），
// 賣出另收 0.3% 證券交易稅。
type FeeSchedule struct {
	feeRate decimal.Decimal
	minFee  decimal.Decimal
	taxRate decimal.Decimal
}

// NewFeeSchedule 以設定檔的費率建立費用表。
func NewFeeSchedule(feeRate, minFee, taxRate float64) FeeSchedule {
	return FeeSchedule{
		feeRate: decimal.NewFromFloat(feeRate),
		minFee:  decimal.NewFromFloat(minFee),
		taxRate: decimal.NewFromFloat(taxRate),
	}
}

// DefaultFeeSchedule 是台股現行的法定費率。
func DefaultFeeSchedule() FeeSchedule {
	return NewFeeSchedule(0.001425, 20, 0.003)
}

func (f FeeSchedule) amount(price float64, shares int64) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(shares))
}

// BuyFee 回傳買進手續費，含最低收費下限。
func (f FeeSchedule) BuyFee(price float64, shares int64) decimal.Decimal {
	fee := f.amount(price, shares).Mul(f.feeRate)
	if fee.LessThan(f.minFee) {
		return f.minFee
	}
	return fee
}

// SellFee 回傳賣出手續費，含最低收費下限。
func (f FeeSchedule) SellFee(price float64, shares int64) decimal.Decimal {
	return f.BuyFee(price, shares)
}

// Tax 回傳賣出證交稅，無下限。
func (f FeeSchedule) Tax(price float64, shares int64) decimal.Decimal {
	return f.amount(price, shares).Mul(f.taxRate)
}

// EntryCost 回傳進場的總支出（股款加買進手續費）。
func (f FeeSchedule) EntryCost(price float64, shares int64) decimal.Decimal {
	return f.amount(price, shares).Add(f.BuyFee(price, shares))
}

// NetPnL 回傳扣除雙邊手續費與證交稅後的損益。
func (f FeeSchedule) NetPnL(entryPrice, exitPrice float64, shares int64) float64 {
	gross := f.amount(exitPrice, shares).Sub(f.amount(entryPrice, shares))
	net := gross.
		Sub(f.BuyFee(entryPrice, shares)).
		Sub(f.SellFee(exitPrice, shares)).
		Sub(f.Tax(exitPrice, shares))
	v, _ := net.Float64()
	return v
}

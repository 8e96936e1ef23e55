package backtest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"twquant/internal/market"
)

// Metric 是單一績效指標。Value 為 nil 代表該指標在此樣本下無定義，
// 顯示時呈現 Formatted，絕不以 0 充數。
type Metric struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Value       *float64 `json:"value"`
	Unit        string   `json:"unit"`
	Formatted   string   `json:"formatted"`
	Description string   `json:"description"`
}

const noValue = "—"

func fptr(v float64) *float64 { return &v }
func metricVal(code, name string, v *float64, unit, formatted, desc string) Metric {
	return Metric{Code: code, Name: name, Value: v, Unit: unit, Formatted: formatted, Description: desc}
}

// ComputeMetrics 依成交紀錄與回測區間計算八項績效指標。
// 沒有交易時除總交易次數外全部無定義。
func ComputeMetrics(trades []Trade, bars []market.Bar, fees FeeSchedule) []Metric {
	total := len(trades)
	out := make([]Metric, 0, 8)

	var (
		wins, losses           int
		grossProfit, grossLoss float64
		pnls                   []float64
		returns                []float64
	)
	for _, t := range trades {
		pnls = append(pnls, t.PnL)
		cost, _ := fees.EntryCost(t.EntryPrice, t.Shares).Float64()
		if cost > 0 {
			returns = append(returns, t.PnL/cost)
		}
		switch {
		case t.PnL > 0:
			wins++
			grossProfit += t.PnL
		case t.PnL < 0:
			losses++
			grossLoss += -t.PnL
		}
	}

	out = append(out, winRate(total, wins))
	out = append(out, profitFactor(total, losses, grossProfit, grossLoss))
	out = append(out, expectedValue(pnls))
	out = append(out, maxDrawdown(trades, fees))
	out = append(out, sharpeRatio(returns))
	out = append(out, profitLossRatio(wins, losses, grossProfit, grossLoss))
	out = append(out, annualReturn(trades, bars, fees))
	out = append(out, metricVal("total_trades", "總交易次數",
		fptr(float64(total)), "次", fmt.Sprintf("%d 次", total),
		"回測期間完成的進出場次數"))
	return out
}

func winRate(total, wins int) Metric {
	desc := "獲利交易占總交易的比例"
	if total == 0 {
		return metricVal("win_rate", "勝率", nil, "%", noValue, desc)
	}
	v := float64(wins) / float64(total) * 100
	return metricVal("win_rate", "勝率", fptr(v), "%", fmt.Sprintf("%.2f%%", v), desc)
}

func profitFactor(total, losses int, grossProfit, grossLoss float64) Metric {
	desc := "總獲利除以總虧損"
	switch {
	case total == 0:
		return metricVal("profit_factor", "獲利因子", nil, "倍", noValue, desc)
	case losses == 0:
		// 沒有虧損交易時比值發散，以無限大呈現。
		return metricVal("profit_factor", "獲利因子", nil, "倍", "∞", desc)
	}
	v := grossProfit / grossLoss
	return metricVal("profit_factor", "獲利因子", fptr(v), "倍", fmt.Sprintf("%.2f 倍", v), desc)
}

func expectedValue(pnls []float64) Metric {
	desc := "每筆交易的平均損益"
	if len(pnls) == 0 {
		return metricVal("expected_value", "期望值", nil, "元", noValue, desc)
	}
	v := stat.Mean(pnls, nil)
	return metricVal("expected_value", "期望值", fptr(v), "元", fmt.Sprintf("%.2f 元", v), desc)
}

// maxDrawdown 以逐筆交易後的權益序列計算最大回撤，
// 權益基準取第一筆交易的進場成本。
func maxDrawdown(trades []Trade, fees FeeSchedule) Metric {
	desc := "權益曲線自峰值回落的最大幅度"
	if len(trades) == 0 {
		return metricVal("max_drawdown", "最大回撤", nil, "%", noValue, desc)
	}
	capital, _ := fees.EntryCost(trades[0].EntryPrice, trades[0].Shares).Float64()
	if capital <= 0 {
		return metricVal("max_drawdown", "最大回撤", nil, "%", noValue, desc)
	}
	equity := capital
	peak := capital
	maxDD := 0.0
	for _, t := range trades {
		equity += t.PnL
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if dd := (peak - equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	v := maxDD * 100
	return metricVal("max_drawdown", "最大回撤", fptr(v), "%", fmt.Sprintf("%.2f%%", v), desc)
}

func sharpeRatio(returns []float64) Metric {
	desc := "每筆報酬率的平均除以標準差（未年化）"
	if len(returns) < 2 {
		return metricVal("sharpe_ratio", "夏普比率", nil, "", noValue, desc)
	}
	mean := stat.Mean(returns, nil)
	sd := stat.StdDev(returns, nil)
	if sd == 0 || math.IsNaN(sd) {
		return metricVal("sharpe_ratio", "夏普比率", nil, "", noValue, desc)
	}
	v := mean / sd
	return metricVal("sharpe_ratio", "夏普比率", fptr(v), "", fmt.Sprintf("%.2f", v), desc)
}

func profitLossRatio(wins, losses int, grossProfit, grossLoss float64) Metric {
	desc := "平均獲利金額除以平均虧損金額"
	if wins == 0 || losses == 0 {
		return metricVal("profit_loss_ratio", "平均獲利虧損比", nil, "倍", noValue, desc)
	}
	avgWin := grossProfit / float64(wins)
	avgLoss := grossLoss / float64(losses)
	v := avgWin / avgLoss
	return metricVal("profit_loss_ratio", "平均獲利虧損比", fptr(v), "倍", fmt.Sprintf("%.2f 倍", v), desc)
}

// annualReturn 以日曆天數折算年化報酬率（CAGR）。
func annualReturn(trades []Trade, bars []market.Bar, fees FeeSchedule) Metric {
	desc := "依回測區間日曆天數折算的複利年化報酬率"
	if len(trades) == 0 {
		return metricVal("annual_return", "年化報酬率", nil, "%", noValue, desc)
	}
	days := market.SpanDays(bars)
	if days <= 0 {
		return metricVal("annual_return", "年化報酬率", nil, "%", noValue, desc)
	}
	capital, _ := fees.EntryCost(trades[0].EntryPrice, trades[0].Shares).Float64()
	if capital <= 0 {
		return metricVal("annual_return", "年化報酬率", nil, "%", noValue, desc)
	}
	final := capital
	for _, t := range trades {
		final += t.PnL
	}
	var v float64
	if final <= 0 {
		// 權益歸零以下時複利公式無定義，視為全數虧損。
		v = -100
	} else {
		years := days / 365
		v = (math.Pow(final/capital, 1/years) - 1) * 100
	}
	return metricVal("annual_return", "年化報酬率", fptr(v), "%", fmt.Sprintf("%.2f%%", v), desc)
}

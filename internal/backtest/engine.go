// Package backtest 以每日訊號模擬台股現股多頭進出，並統計績效。
package backtest

import "twquant/internal/market"

// Trade 是一筆完整的進出場紀錄。損益已扣除手續費與證交稅。
type Trade struct {
	EntryDate  string  `json:"entry_date"`
	EntryPrice float64 `json:"entry_price"`
	ExitDate   string  `json:"exit_date"`
	ExitPrice  float64 `json:"exit_price"`
	Shares     int64   `json:"shares"`
	PnL        float64 `json:"pnl"`
}

type positionState int

const (
	flat positionState = iota
	long
)

// Simulate 逐日走訪訊號並產生交易清單。
// 規則：每日最多一次狀態轉換（不做當日沖銷）、以當日收盤價成交、
// 最後一天不再進場、回測結束時持倉以最後收盤價強制平倉。
func Simulate(bars []market.Bar, entry, exit []bool, shares int64, fees FeeSchedule) []Trade {
	n := len(bars)
	trades := make([]Trade, 0)
	state := flat
	var entryIdx int

	for i := 0; i < n; i++ {
		if state == flat {
			if entry[i] && i < n-1 {
				state = long
				entryIdx = i
			}
		} else if exit[i] {
			trades = append(trades, closeTrade(bars, entryIdx, i, shares, fees))
			state = flat
		}
	}
	if state == long {
		trades = append(trades, closeTrade(bars, entryIdx, n-1, shares, fees))
	}
	return trades
}

func closeTrade(bars []market.Bar, entryIdx, exitIdx int, shares int64, fees FeeSchedule) Trade {
	entryPrice := bars[entryIdx].Close
	exitPrice := bars[exitIdx].Close
	return Trade{
		EntryDate:  bars[entryIdx].Date,
		EntryPrice: entryPrice,
		ExitDate:   bars[exitIdx].Date,
		ExitPrice:  exitPrice,
		Shares:     shares,
		PnL:        fees.NetPnL(entryPrice, exitPrice, shares),
	}
}

package indicator

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"twquant/internal/market"
)

// MA 計算收盤價的簡單移動平均，前 period-1 筆為 nil。
func MA(closes []float64, period int) (Series, error) {
	if err := checkPeriod("ma", period); err != nil {
		return nil, err
	}
	if len(closes) < period {
		return nilSeries(len(closes)), nil
	}
	return mask(talib.Sma(closes, period), period-1), nil
}

// RSI 以 Wilder 平滑法計算，前 period 筆為 nil。
// 平均跌幅為零（至今沒有任何下跌，含全程平盤）時 RSI 為 100。
func RSI(closes []float64, period int) (Series, error) {
	if err := checkPeriod("rsi", period); err != nil {
		return nil, err
	}
	if len(closes) < period+1 {
		return nilSeries(len(closes)), nil
	}
	out := mask(talib.Rsi(closes, period), period)
	// TA-Lib 在漲跌皆零時回 0，這裡跟 100-100/(1+RS) 的極限對齊。
	declined := false
	for i := 1; i < len(closes); i++ {
		if closes[i] < closes[i-1] {
			declined = true
		}
		if i >= period && !declined {
			out[i] = ptr(100.0)
		}
	}
	return out, nil
}

// MACD 回傳 DIF、MACD（訊號線）、OSC 三條序列。
// DIF 自 slow-1 起有值；訊號線與 OSC 自 slow+signal-2 起有值。
// OSC = DIF - MACD。
func MACD(closes []float64, fast, slow, signal int) (dif, macdLine, osc Series, err error) {
	if err := checkPeriod("macd fast", fast); err != nil {
		return nil, nil, nil, err
	}
	if err := checkPeriod("macd slow", slow); err != nil {
		return nil, nil, nil, err
	}
	if err := checkPeriod("macd signal", signal); err != nil {
		return nil, nil, nil, err
	}
	if fast >= slow {
		return nil, nil, nil, fmt.Errorf("%w: macd fast(%d) 必須小於 slow(%d)", market.ErrConfig, fast, slow)
	}
	n := len(closes)
	dif = nilSeries(n)
	macdLine = nilSeries(n)
	osc = nilSeries(n)
	if n < slow {
		return dif, macdLine, osc, nil
	}

	emaFast := talib.Ema(closes, fast)
	emaSlow := talib.Ema(closes, slow)
	difStart := slow - 1
	dense := make([]float64, 0, n-difStart)
	for i := difStart; i < n; i++ {
		v := emaFast[i] - emaSlow[i]
		dif[i] = ptr(v)
		dense = append(dense, v)
	}
	if len(dense) < signal {
		return dif, macdLine, osc, nil
	}
	sig := talib.Ema(dense, signal)
	for j := signal - 1; j < len(sig); j++ {
		idx := difStart + j
		macdLine[idx] = ptr(sig[j])
		osc[idx] = ptr(dense[j] - sig[j])
	}
	return dif, macdLine, osc, nil
}

// KD 計算隨機指標（台股慣用的遞迴平滑法），K、D 皆以 50 起算。
// TA-Lib 的 Stoch 採 SMA 平滑，與台股慣例不同，故自行實作。
// 窗口內最高價等於最低價時 RSV 取中性值 50。
func KD(highs, lows, closes []float64, period, smooth int) (k, d Series, err error) {
	if err := checkPeriod("kd", period); err != nil {
		return nil, nil, err
	}
	if err := checkPeriod("kd smooth", smooth); err != nil {
		return nil, nil, err
	}
	n := len(closes)
	k = nilSeries(n)
	d = nilSeries(n)
	if n < period {
		return k, d, nil
	}

	kPrev, dPrev := 50.0, 50.0
	for i := period - 1; i < n; i++ {
		highest := highs[i-period+1]
		lowest := lows[i-period+1]
		for j := i - period + 2; j <= i; j++ {
			if highs[j] > highest {
				highest = highs[j]
			}
			if lows[j] < lowest {
				lowest = lows[j]
			}
		}
		rsv := 50.0
		if highest != lowest {
			rsv = (closes[i] - lowest) / (highest - lowest) * 100.0
		}
		kVal := (kPrev*float64(smooth-1) + rsv) / float64(smooth)
		dVal := (dPrev*float64(smooth-1) + kVal) / float64(smooth)
		k[i] = ptr(kVal)
		d[i] = ptr(dVal)
		kPrev, dPrev = kVal, dVal
	}
	return k, d, nil
}

// Bollinger 回傳上、中、下軌；中軌為 MA(period)，上下軌為中軌 ± k 倍母體標準差。
func Bollinger(closes []float64, period int, stdDev float64) (upper, mid, lower Series, err error) {
	if err := checkPeriod("bollinger", period); err != nil {
		return nil, nil, nil, err
	}
	if stdDev <= 0 {
		return nil, nil, nil, fmt.Errorf("%w: bollinger 標準差倍數必須為正（收到 %v）", market.ErrConfig, stdDev)
	}
	n := len(closes)
	if n < period {
		return nilSeries(n), nilSeries(n), nilSeries(n), nil
	}
	u, m, l := talib.BBands(closes, period, stdDev, stdDev, talib.SMA)
	return mask(u, period-1), mask(m, period-1), mask(l, period-1), nil
}

func checkPeriod(name string, period int) error {
	if period <= 0 {
		return fmt.Errorf("%w: %s 期數必須為正整數（收到 %d）", market.ErrConfig, name, period)
	}
	return nil
}

// BuildSet 依日線建立完整的預設指標序列（含收盤價本身）。
func BuildSet(bars []market.Bar) (SeriesSet, error) {
	n := len(bars)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}

	set := make(SeriesSet)
	set[KeyClose] = mask(closes, 0)

	for _, p := range MAPeriods {
		s, err := MA(closes, p)
		if err != nil {
			return nil, err
		}
		set[MAKey(p)] = s
	}
	for _, p := range RSIPeriods {
		s, err := RSI(closes, p)
		if err != nil {
			return nil, err
		}
		set[RSIKey(p)] = s
	}
	dif, macdLine, osc, err := MACD(closes, MACDFast, MACDSlow, MACDSignal)
	if err != nil {
		return nil, err
	}
	set[KeyDIF] = dif
	set[KeyMACD] = macdLine
	set[KeyOSC] = osc

	k, d, err := KD(highs, lows, closes, KDPeriod, KDSmooth)
	if err != nil {
		return nil, err
	}
	set[KeyK] = k
	set[KeyD] = d

	upper, mid, lower, err := Bollinger(closes, BollPeriod, BollStdDev)
	if err != nil {
		return nil, err
	}
	set[KeyBollUpper] = upper
	set[KeyBollMid] = mid
	set[KeyBollLower] = lower

	return set, nil
}

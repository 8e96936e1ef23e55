package indicator

import "fmt"

// Series 是與日線逐根對齊的指標序列，暖機期內的值為 nil（而非 0）。
type Series []*float64

// SeriesSet 以內部鍵（ASCII）索引各指標序列。
// 顯示用的在地化名稱（上軌、收盤價…）由傳輸層對應，不進入核心。
type SeriesSet map[string]Series

// 固定序列鍵。MA/RSI 依期數展開（MAKey / RSIKey）。
const (
	KeyClose     = "CLOSE"
	KeyDIF       = "DIF"
	KeyMACD      = "MACD"
	KeyOSC       = "OSC"
	KeyK         = "K"
	KeyD         = "D"
	KeyBollUpper = "BOLL_UPPER"
	KeyBollMid   = "BOLL_MID"
	KeyBollLower = "BOLL_LOWER"
)

// 預設指標參數，對齊常見台股看盤設定。
var (
	MAPeriods  = []int{5, 10, 20, 60, 120, 240}
	RSIPeriods = []int{6, 12, 24}
)

const (
	MACDFast   = 12
	MACDSlow   = 26
	MACDSignal = 9
	KDPeriod   = 9
	KDSmooth   = 3
	BollPeriod = 20
	BollStdDev = 2.0
)

func MAKey(period int) string  { return fmt.Sprintf("MA%d", period) }
func RSIKey(period int) string { return fmt.Sprintf("RSI%d", period) }

// At 回傳序列第 i 筆；越界視同暖機期（nil）。
func (s Series) At(i int) *float64 {
	if i < 0 || i >= len(s) {
		return nil
	}
	return s[i]
}

func ptr(v float64) *float64 { return &v }

// nilSeries 產生全 nil 序列（資料短於暖機窗時整條未定義）。
func nilSeries(n int) Series { return make(Series, n) }

// mask 將原始輸出轉為 Series：前 warm 筆視為暖機期設為 nil，其餘逐筆取值。
func mask(values []float64, warm int) Series {
	out := make(Series, len(values))
	for i := warm; i < len(values); i++ {
		out[i] = ptr(values[i])
	}
	return out
}

package market

import (
	"errors"
	"fmt"
	"time"
)

// ErrConfig 表示呼叫端輸入不合法（參數、K 線序列或規則設定），
// 對應 HTTP 層的 400 回應。
var ErrConfig = errors.New("設定無效")

const dateLayout = "2006-01-02"

// Bar 是單日 OHLCV 紀錄，date 採 YYYY-MM-DD。
type Bar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// ParseDate 解析 Bar 的日期欄位。
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: 日期格式錯誤 %q", ErrConfig, s)
	}
	return t, nil
}

// ValidateBars 檢查日線序列：日期嚴格遞增、價格為正、成交量非負。
// 序列本身允許為空（由呼叫端決定最小長度），但任何一筆欄位不合法都視為設定錯誤。
func ValidateBars(bars []Bar) error {
	var prev time.Time
	for i, b := range bars {
		t, err := ParseDate(b.Date)
		if err != nil {
			return err
		}
		if i > 0 && !t.After(prev) {
			return fmt.Errorf("%w: 日期未遞增（第 %d 筆 %s）", ErrConfig, i, b.Date)
		}
		prev = t
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return fmt.Errorf("%w: 第 %d 筆價格必須為正", ErrConfig, i)
		}
		if b.Volume < 0 {
			return fmt.Errorf("%w: 第 %d 筆成交量為負", ErrConfig, i)
		}
	}
	return nil
}

// SpanDays 回傳首尾兩筆之間的日曆天數；序列不足兩筆時為 0。
func SpanDays(bars []Bar) float64 {
	if len(bars) < 2 {
		return 0
	}
	first, err1 := ParseDate(bars[0].Date)
	last, err2 := ParseDate(bars[len(bars)-1].Date)
	if err1 != nil || err2 != nil {
		return 0
	}
	return last.Sub(first).Hours() / 24
}

package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twquant/internal/market"
)

func constSlice(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func rampSlice(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestMA_ConstantSeries(t *testing.T) {
	s, err := MA(constSlice(50, 10), 5)
	require.NoError(t, err)
	require.Len(t, s, 10)

	for i := 0; i < 4; i++ {
		assert.Nil(t, s[i], "第 %d 筆應在暖機期", i)
	}
	for i := 4; i < 10; i++ {
		require.NotNil(t, s[i])
		assert.Equal(t, 50.0, *s[i])
	}
}

func TestMA_ShortSeries(t *testing.T) {
	s, err := MA(constSlice(50, 3), 5)
	require.NoError(t, err)
	require.Len(t, s, 3)
	for i := range s {
		assert.Nil(t, s[i])
	}
}

func TestMA_InvalidPeriod(t *testing.T) {
	_, err := MA(constSlice(50, 10), 0)
	assert.ErrorIs(t, err, market.ErrConfig)
}

func TestRSI_WarmupAndBounds(t *testing.T) {
	closes := []float64{100, 102, 101, 104, 103, 106, 108, 107, 110, 109, 111, 113}
	s, err := RSI(closes, 6)
	require.NoError(t, err)
	require.Len(t, s, len(closes))

	for i := 0; i <= 5; i++ {
		assert.Nil(t, s[i])
	}
	for i := 6; i < len(s); i++ {
		require.NotNil(t, s[i])
		assert.GreaterOrEqual(t, *s[i], 0.0)
		assert.LessOrEqual(t, *s[i], 100.0)
	}
}

func TestRSI_AllGains(t *testing.T) {
	s, err := RSI(rampSlice(100, 1, 10), 6)
	require.NoError(t, err)
	require.NotNil(t, s[9])
	assert.InDelta(t, 100.0, *s[9], 1e-9, "只漲不跌時 RSI 應為 100")
}

func TestRSI_FlatSeries(t *testing.T) {
	s, err := RSI(constSlice(100, 10), 6)
	require.NoError(t, err)

	for i := 0; i <= 5; i++ {
		assert.Nil(t, s[i])
	}
	for i := 6; i < 10; i++ {
		require.NotNil(t, s[i])
		assert.Equal(t, 100.0, *s[i], "平均跌幅為零時 RSI 應為 100")
	}
}

func TestRSI_DeclineEndsStreak(t *testing.T) {
	// 第 8 筆出現下跌後，平均跌幅不再為零，不得再釘在 100。
	closes := []float64{100, 100, 100, 100, 100, 100, 100, 100, 99, 99}
	s, err := RSI(closes, 6)
	require.NoError(t, err)

	require.NotNil(t, s[7])
	assert.Equal(t, 100.0, *s[7])
	require.NotNil(t, s[8])
	assert.Less(t, *s[8], 100.0)
	require.NotNil(t, s[9])
	assert.Less(t, *s[9], 100.0)
}

func TestMACD_WarmupIndexes(t *testing.T) {
	closes := rampSlice(100, 0.5, 40)
	dif, macdLine, osc, err := MACD(closes, 12, 26, 9)
	require.NoError(t, err)

	for i := 0; i < 25; i++ {
		assert.Nil(t, dif[i])
	}
	require.NotNil(t, dif[25], "DIF 自 slow-1 起有值")

	for i := 0; i < 33; i++ {
		assert.Nil(t, macdLine[i])
		assert.Nil(t, osc[i])
	}
	require.NotNil(t, macdLine[33], "訊號線自 slow+signal-2 起有值")
	require.NotNil(t, osc[33])

	for i := 33; i < len(closes); i++ {
		assert.InDelta(t, *dif[i]-*macdLine[i], *osc[i], 1e-9)
	}
}

func TestMACD_FastMustBeLessThanSlow(t *testing.T) {
	_, _, _, err := MACD(constSlice(100, 40), 26, 12, 9)
	assert.ErrorIs(t, err, market.ErrConfig)
}

func TestKD_FlatWindowStaysNeutral(t *testing.T) {
	n := 15
	k, d, err := KD(constSlice(100, n), constSlice(100, n), constSlice(100, n), 9, 3)
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		assert.Nil(t, k[i])
		assert.Nil(t, d[i])
	}
	for i := 8; i < n; i++ {
		require.NotNil(t, k[i])
		require.NotNil(t, d[i])
		assert.Equal(t, 50.0, *k[i], "平盤時 RSV 取中性值，K 維持 50")
		assert.Equal(t, 50.0, *d[i])
	}
}

func TestKD_RecursiveSmoothing(t *testing.T) {
	// 收盤貼著最高價時 RSV=100，首日 K=(50*2+100)/3。
	n := 9
	highs := rampSlice(101, 1, n)
	lows := rampSlice(99, 1, n)
	closes := rampSlice(101, 1, n)

	k, d, err := KD(highs, lows, closes, 9, 3)
	require.NoError(t, err)
	require.NotNil(t, k[8])
	require.NotNil(t, d[8])

	wantK := (50.0*2 + 100.0) / 3
	assert.InDelta(t, wantK, *k[8], 1e-9)
	assert.InDelta(t, (50.0*2+wantK)/3, *d[8], 1e-9)
}

func TestBollinger_ConstantSeries(t *testing.T) {
	upper, mid, lower, err := Bollinger(constSlice(80, 25), 20, 2.0)
	require.NoError(t, err)

	assert.Nil(t, mid[18])
	require.NotNil(t, mid[19])
	assert.Equal(t, 80.0, *mid[19])
	assert.Equal(t, 80.0, *upper[19], "標準差為零時三軌重合")
	assert.Equal(t, 80.0, *lower[19])
}

func TestBollinger_InvalidStdDev(t *testing.T) {
	_, _, _, err := Bollinger(constSlice(80, 25), 20, 0)
	assert.ErrorIs(t, err, market.ErrConfig)
}

func TestBuildSet_Keys(t *testing.T) {
	bars := make([]market.Bar, 30)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = market.Bar{
			Date: "2024-01-01", Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000,
		}
	}
	set, err := BuildSet(bars)
	require.NoError(t, err)

	want := []string{KeyClose, KeyDIF, KeyMACD, KeyOSC, KeyK, KeyD, KeyBollUpper, KeyBollMid, KeyBollLower}
	for _, p := range MAPeriods {
		want = append(want, MAKey(p))
	}
	for _, p := range RSIPeriods {
		want = append(want, RSIKey(p))
	}
	for _, key := range want {
		s, ok := set[key]
		require.True(t, ok, "缺少序列 %s", key)
		assert.Len(t, s, len(bars))
	}

	// 收盤價本身沒有暖機期。
	for i := range bars {
		require.NotNil(t, set[KeyClose][i])
	}
	// 資料不足 240 根時長天期均線整條未定義。
	for i := range bars {
		assert.Nil(t, set[MAKey(240)][i])
	}
}

func TestSeries_At(t *testing.T) {
	s := Series{nil, ptr(1.5)}
	assert.Nil(t, s.At(-1))
	assert.Nil(t, s.At(0))
	require.NotNil(t, s.At(1))
	assert.Equal(t, 1.5, *s.At(1))
	assert.Nil(t, s.At(2))
}

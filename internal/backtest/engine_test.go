package backtest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twquant/internal/market"
)

func makeBars(closes ...float64) []market.Bar {
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{
			Date:   fmt.Sprintf("2024-01-%02d", i+1),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func TestSimulate_EntryThenExit(t *testing.T) {
	bars := makeBars(100, 105, 110, 108, 112)
	entry := []bool{false, true, false, false, false}
	exit := []bool{false, false, false, true, false}

	trades := Simulate(bars, entry, exit, 1000, DefaultFeeSchedule())
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, "2024-01-02", tr.EntryDate)
	assert.Equal(t, 105.0, tr.EntryPrice)
	assert.Equal(t, "2024-01-04", tr.ExitDate)
	assert.Equal(t, 108.0, tr.ExitPrice)
	assert.Equal(t, int64(1000), tr.Shares)
	assert.Greater(t, tr.PnL, 0.0)
	assert.Less(t, tr.PnL, 3000.0, "損益應扣除交易成本")
}

func TestSimulate_OneTransitionPerDay(t *testing.T) {
	// 進出訊號同日同時成立時當日只進場，隔日才可能出場。
	bars := makeBars(100, 101, 102, 103)
	always := []bool{true, true, true, true}

	trades := Simulate(bars, always, always, 1000, DefaultFeeSchedule())
	require.Len(t, trades, 2)
	assert.Equal(t, "2024-01-01", trades[0].EntryDate)
	assert.Equal(t, "2024-01-02", trades[0].ExitDate)
	assert.Equal(t, "2024-01-03", trades[1].EntryDate)
	assert.Equal(t, "2024-01-04", trades[1].ExitDate)
}

func TestSimulate_NoEntryOnLastBar(t *testing.T) {
	bars := makeBars(100, 101, 102)
	entry := []bool{false, false, true}
	exit := []bool{false, false, false}

	trades := Simulate(bars, entry, exit, 1000, DefaultFeeSchedule())
	assert.Empty(t, trades)
}

func TestSimulate_ForceCloseAtEnd(t *testing.T) {
	bars := makeBars(100, 105, 110)
	entry := []bool{true, false, false}
	exit := []bool{false, false, false}

	trades := Simulate(bars, entry, exit, 1000, DefaultFeeSchedule())
	require.Len(t, trades, 1)
	assert.Equal(t, "2024-01-03", trades[0].ExitDate)
	assert.Equal(t, 110.0, trades[0].ExitPrice)
}

func TestSimulate_NoSignals(t *testing.T) {
	bars := makeBars(100, 101, 102)
	none := []bool{false, false, false}
	trades := Simulate(bars, none, none, 1000, DefaultFeeSchedule())
	assert.Empty(t, trades)
}

package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twquant/internal/indicator"
	"twquant/internal/rule"
)

func fp(v float64) *float64 { return &v }

func crossSet() indicator.SeriesSet {
	// MA5 在第 2 天向上穿越 MA20，第 4 天向下穿越。
	return indicator.SeriesSet{
		"MA5":  indicator.Series{nil, fp(9.0), fp(11.0), fp(10.5), fp(9.5)},
		"MA20": indicator.Series{nil, fp(10.0), fp(10.0), fp(10.0), fp(10.0)},
		"RSI6": indicator.Series{nil, fp(40.0), fp(65.0), fp(75.0), fp(30.0)},
	}
}

func TestEvalCondition_Comparison(t *testing.T) {
	set := crossSet()
	c := rule.Condition{IndicatorType: rule.TypeRSI, Left: "RSI6", Op: rule.OpLT, Right: "70", Logic: rule.LogicAnd}

	assert.False(t, EvalCondition(c, set, 0), "暖身期 nil 應視為不成立")
	assert.True(t, EvalCondition(c, set, 1))
	assert.True(t, EvalCondition(c, set, 2))
	assert.False(t, EvalCondition(c, set, 3))
}

func TestEvalCondition_UnknownKey(t *testing.T) {
	set := crossSet()
	c := rule.Condition{IndicatorType: rule.TypeMA, Left: "MA999", Op: rule.OpGT, Right: "0", Logic: rule.LogicAnd}
	for i := 0; i < 5; i++ {
		assert.False(t, EvalCondition(c, set, i))
	}
}

func TestEvalCondition_CrossAbove(t *testing.T) {
	set := crossSet()
	c := rule.Condition{IndicatorType: rule.TypeMA, Left: "MA5", Op: rule.OpCrossAbove, Right: "MA20", Logic: rule.LogicAnd}

	assert.False(t, EvalCondition(c, set, 0), "第一天沒有前一日可比")
	assert.False(t, EvalCondition(c, set, 1), "前一日為 nil")
	assert.True(t, EvalCondition(c, set, 2))
	assert.False(t, EvalCondition(c, set, 3), "持續在上方不算再次穿越")
	assert.False(t, EvalCondition(c, set, 4))
}

func TestEvalCondition_CrossBelow(t *testing.T) {
	set := crossSet()
	c := rule.Condition{IndicatorType: rule.TypeMA, Left: "MA5", Op: rule.OpCrossBelow, Right: "MA20", Logic: rule.LogicAnd}

	for i := 0; i < 4; i++ {
		assert.False(t, EvalCondition(c, set, i))
	}
	assert.True(t, EvalCondition(c, set, 4))
}

func TestEvalGroup_LeftToRightFold(t *testing.T) {
	set := crossSet()
	cross := rule.Condition{IndicatorType: rule.TypeMA, Left: "MA5", Op: rule.OpCrossAbove, Right: "MA20", Logic: rule.LogicAnd}
	rsiLow := rule.Condition{IndicatorType: rule.TypeRSI, Left: "RSI6", Op: rule.OpLT, Right: "70", Logic: rule.LogicAnd}
	rsiHigh := rule.Condition{IndicatorType: rule.TypeRSI, Left: "RSI6", Op: rule.OpGT, Right: "70", Logic: rule.LogicOr}

	andGroup := rule.Group{RuleType: rule.RuleTypeEntry, Conditions: []rule.Condition{cross, rsiLow}}
	assert.True(t, EvalGroup(andGroup, set, 2))
	assert.False(t, EvalGroup(andGroup, set, 3))

	// (cross AND rsi<70) OR rsi>70：第 3 天前半不成立但 OR 後半成立。
	mixed := rule.Group{RuleType: rule.RuleTypeEntry, Conditions: []rule.Condition{cross, rsiLow, rsiHigh}}
	assert.True(t, EvalGroup(mixed, set, 2))
	assert.True(t, EvalGroup(mixed, set, 3))
	assert.False(t, EvalGroup(mixed, set, 1))
}

func TestEvalGroup_Empty(t *testing.T) {
	set := crossSet()
	g := rule.Group{RuleType: rule.RuleTypeEntry}
	for i := 0; i < 5; i++ {
		assert.False(t, EvalGroup(g, set, i))
	}
}

func TestSignals_RoutesAndORs(t *testing.T) {
	set := crossSet()
	entryCross := rule.Group{RuleType: rule.RuleTypeEntry, Conditions: []rule.Condition{
		{IndicatorType: rule.TypeMA, Left: "MA5", Op: rule.OpCrossAbove, Right: "MA20", Logic: rule.LogicAnd},
	}}
	entryRSI := rule.Group{RuleType: rule.RuleTypeEntry, Conditions: []rule.Condition{
		{IndicatorType: rule.TypeRSI, Left: "RSI6", Op: rule.OpLT, Right: "35", Logic: rule.LogicAnd},
	}}
	exitCross := rule.Group{RuleType: rule.RuleTypeExit, Conditions: []rule.Condition{
		{IndicatorType: rule.TypeMA, Left: "MA5", Op: rule.OpCrossBelow, Right: "MA20", Logic: rule.LogicAnd},
	}}

	entry, exit := Signals([]rule.Group{entryCross, entryRSI, exitCross}, set, 5)
	require.Len(t, entry, 5)
	require.Len(t, exit, 5)

	assert.Equal(t, []bool{false, false, true, false, true}, entry, "兩個進場群組取 OR")
	assert.Equal(t, []bool{false, false, false, false, true}, exit)
}

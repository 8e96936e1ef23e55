// Package signal 將規則群組套用到指標序列上，逐日產生進出場布林序列。
package signal

import (
	"twquant/internal/indicator"
	"twquant/internal/rule"
)

// resolve 取出參數在第 i 天的數值。數值常數不受日期影響，
// 序列鍵則查 SeriesSet；查不到或該日為 nil 視為無值。
func resolve(param string, set indicator.SeriesSet, i int) (float64, bool) {
	if v, ok := rule.IsConstant(param); ok {
		return v, true
	}
	p := set[param].At(i)
	if p == nil {
		return 0, false
	}
	return *p, true
}

// EvalCondition 評估單一條件在第 i 天是否成立。
// 任一邊取不到值（暖身期、未知鍵）一律回 false，不視為錯誤。
func EvalCondition(c rule.Condition, set indicator.SeriesSet, i int) bool {
	switch c.Op {
	case rule.OpCrossAbove, rule.OpCrossBelow:
		// 交叉需要前一天的值才能判斷方向。
		if i < 1 {
			return false
		}
		prevL, ok1 := resolve(c.Left, set, i-1)
		prevR, ok2 := resolve(c.Right, set, i-1)
		curL, ok3 := resolve(c.Left, set, i)
		curR, ok4 := resolve(c.Right, set, i)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return false
		}
		if c.Op == rule.OpCrossAbove {
			return prevL <= prevR && curL > curR
		}
		return prevL >= prevR && curL < curR
	}

	left, ok := resolve(c.Left, set, i)
	if !ok {
		return false
	}
	right, ok := resolve(c.Right, set, i)
	if !ok {
		return false
	}
	switch c.Op {
	case rule.OpGT:
		return left > right
	case rule.OpGTE:
		return left >= right
	case rule.OpLT:
		return left < right
	case rule.OpLTE:
		return left <= right
	case rule.OpEQ:
		return left == right
	}
	return false
}

// EvalGroup 評估群組在第 i 天是否成立。條件依序由左至右合併，
// 每個條件的 logic_operator 描述它與前面累計結果的關係，無優先序。
// 空群組恆為 false。
func EvalGroup(g rule.Group, set indicator.SeriesSet, i int) bool {
	if len(g.Conditions) == 0 {
		return false
	}
	result := EvalCondition(g.Conditions[0], set, i)
	for _, c := range g.Conditions[1:] {
		v := EvalCondition(c, set, i)
		if c.Logic == rule.LogicOr {
			result = result || v
		} else {
			result = result && v
		}
	}
	return result
}

// Signals 把群組依 rule_type 分流後逐日評估。
// 同類型多個群組之間取 OR，任何一組成立即視為該日有訊號。
func Signals(groups []rule.Group, set indicator.SeriesSet, n int) (entry, exit []bool) {
	entry = make([]bool, n)
	exit = make([]bool, n)
	for _, g := range groups {
		var target []bool
		switch g.RuleType {
		case rule.RuleTypeEntry:
			target = entry
		case rule.RuleTypeExit:
			target = exit
		default:
			continue
		}
		for i := 0; i < n; i++ {
			if target[i] {
				continue
			}
			if EvalGroup(g, set, i) {
				target[i] = true
			}
		}
	}
	return entry, exit
}

package rule

import (
	"fmt"
	"strconv"
	"strings"

	"twquant/internal/indicator"
	"twquant/internal/market"
)

// IndicatorType 是條件所屬的技術指標分類。
type IndicatorType string

const (
	TypeMA        IndicatorType = "MA"
	TypeRSI       IndicatorType = "RSI"
	TypeMACD      IndicatorType = "MACD"
	TypeKD        IndicatorType = "KD"
	TypeBollinger IndicatorType = "BOLLINGER"
)

// Operator 是條件的比較運算子。
type Operator string

const (
	OpGT         Operator = ">"
	OpGTE        Operator = ">="
	OpLT         Operator = "<"
	OpLTE        Operator = "<="
	OpEQ         Operator = "=="
	OpCrossAbove Operator = "cross_above"
	OpCrossBelow Operator = "cross_below"
)

// LogicOperator 連接本條件與前一個條件。
type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
)

// 規則群組類型。
const (
	RuleTypeEntry = "entry"
	RuleTypeExit  = "exit"
)

// Condition 是單一比較條件。Left/Right 可為指標序列鍵（如 MA5）或數值常數（如 70）。
// Logic 表示與「前一個」條件的連接方式，群組內第一個條件的 Logic 不生效。
type Condition struct {
	ID            string        `json:"id"`
	IndicatorType IndicatorType `json:"indicator_type"`
	Left          string        `json:"left_param"`
	Op            Operator      `json:"operator"`
	Right         string        `json:"right_param"`
	Logic         LogicOperator `json:"logic_operator"`
}

// Group 是一組進場或出場條件，依序以各條件的 Logic 由左至右折疊求值。
type Group struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	RuleType   string      `json:"rule_type"`
	Conditions []Condition `json:"conditions"`
}

func ParseIndicatorType(s string) (IndicatorType, error) {
	switch IndicatorType(strings.ToUpper(strings.TrimSpace(s))) {
	case TypeMA:
		return TypeMA, nil
	case TypeRSI:
		return TypeRSI, nil
	case TypeMACD:
		return TypeMACD, nil
	case TypeKD:
		return TypeKD, nil
	case TypeBollinger:
		return TypeBollinger, nil
	}
	return "", fmt.Errorf("%w: 未知的指標類型 %q", market.ErrConfig, s)
}

func ParseOperator(s string) (Operator, error) {
	switch Operator(strings.TrimSpace(s)) {
	case OpGT, OpGTE, OpLT, OpLTE, OpEQ, OpCrossAbove, OpCrossBelow:
		return Operator(strings.TrimSpace(s)), nil
	}
	return "", fmt.Errorf("%w: 不支援的運算子 %q", market.ErrConfig, s)
}

func ParseLogicOperator(s string) (LogicOperator, error) {
	switch LogicOperator(strings.ToUpper(strings.TrimSpace(s))) {
	case LogicAnd:
		return LogicAnd, nil
	case LogicOr:
		return LogicOr, nil
	case "":
		return LogicAnd, nil
	}
	return "", fmt.Errorf("%w: 邏輯運算子必須為 AND 或 OR（收到 %q）", market.ErrConfig, s)
}

func ParseRuleType(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case RuleTypeEntry:
		return RuleTypeEntry, nil
	case RuleTypeExit:
		return RuleTypeExit, nil
	}
	return "", fmt.Errorf("%w: rule_type 必須為 entry 或 exit（收到 %q）", market.ErrConfig, s)
}

// Validate 檢查條件欄位是否齊備合法。
func (c Condition) Validate() error {
	if _, err := ParseIndicatorType(string(c.IndicatorType)); err != nil {
		return err
	}
	if _, err := ParseOperator(string(c.Op)); err != nil {
		return err
	}
	if _, err := ParseLogicOperator(string(c.Logic)); err != nil {
		return err
	}
	if strings.TrimSpace(c.Left) == "" || strings.TrimSpace(c.Right) == "" {
		return fmt.Errorf("%w: 條件參數不能為空", market.ErrConfig)
	}
	return nil
}

// IsConstant 判斷參數是否為數值常數。
func IsConstant(param string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(param), 64)
	return v, err == nil
}

// ReferencedKeys 收集群組列表中引用到的指標序列鍵（排除常數）。
func ReferencedKeys(groups []Group) map[string]bool {
	keys := make(map[string]bool)
	for _, g := range groups {
		for _, c := range g.Conditions {
			for _, p := range []string{c.Left, c.Right} {
				if _, ok := IsConstant(p); ok {
					continue
				}
				keys[p] = true
			}
		}
	}
	return keys
}

// ParamsFor 回傳指標類型在規則編輯器可選的參數清單（序列鍵與常用門檻常數）。
func ParamsFor(t IndicatorType) []string {
	switch t {
	case TypeMA:
		out := make([]string, 0, len(indicator.MAPeriods)+1)
		for _, p := range indicator.MAPeriods {
			out = append(out, indicator.MAKey(p))
		}
		return append(out, indicator.KeyClose)
	case TypeRSI:
		out := make([]string, 0, len(indicator.RSIPeriods)+5)
		for _, p := range indicator.RSIPeriods {
			out = append(out, indicator.RSIKey(p))
		}
		return append(out, "50", "70", "30", "80", "20")
	case TypeMACD:
		return []string{indicator.KeyDIF, indicator.KeyMACD, indicator.KeyOSC, "0"}
	case TypeKD:
		return []string{indicator.KeyK, indicator.KeyD, "20", "50", "80"}
	case TypeBollinger:
		return []string{indicator.KeyBollUpper, indicator.KeyBollMid, indicator.KeyBollLower, indicator.KeyClose}
	}
	return nil
}

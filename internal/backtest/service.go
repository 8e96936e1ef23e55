package backtest

import (
	"context"
	"fmt"

	"twquant/internal/config"
	"twquant/internal/indicator"
	"twquant/internal/market"
	"twquant/internal/rule"
	"twquant/internal/signal"
)

// Result 是一次回測的完整輸出。
type Result struct {
	Dates   []string              `json:"dates"`
	Trades  []Trade               `json:"trades"`
	Metrics []Metric              `json:"metrics"`
	Entry   []bool                `json:"entry_signals"`
	Exit    []bool                `json:"exit_signals"`
	Series  map[string][]*float64 `json:"series"`
}

// Service 串起規則庫、指標計算、訊號評估與交易模擬。
type Service struct {
	repo          rule.Repository
	fees          FeeSchedule
	defaultShares int64
}

// NewService 依配置建立回測服務。
func NewService(repo rule.Repository, cfg config.BacktestConfig) *Service {
	return &Service{
		repo:          repo,
		fees:          NewFeeSchedule(cfg.FeeRate, cfg.MinFee, cfg.TaxRate),
		defaultShares: int64(cfg.DefaultShares),
	}
}

// Run 以規則庫中全部規則群組對日線序列執行回測。
// shares 小於等於 0 時使用配置的預設股數。
func (s *Service) Run(ctx context.Context, bars []market.Bar, shares int64) (*Result, error) {
	if len(bars) < 2 {
		return nil, fmt.Errorf("%w: 回測至少需要兩根日線（收到 %d 根）", market.ErrConfig, len(bars))
	}
	if err := market.ValidateBars(bars); err != nil {
		return nil, err
	}
	if shares <= 0 {
		shares = s.defaultShares
	}
	if shares <= 0 {
		return nil, fmt.Errorf("%w: 股數必須為正數", market.ErrConfig)
	}

	groups, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	set, err := indicator.BuildSet(bars)
	if err != nil {
		return nil, err
	}
	entry, exit := signal.Signals(groups, set, len(bars))
	trades := Simulate(bars, entry, exit, shares, s.fees)

	dates := make([]string, len(bars))
	for i, b := range bars {
		dates[i] = b.Date
	}
	return &Result{
		Dates:   dates,
		Trades:  trades,
		Metrics: ComputeMetrics(trades, bars, s.fees),
		Entry:   entry,
		Exit:    exit,
		Series:  referencedSeries(groups, set),
	}, nil
}

// referencedSeries 只回傳規則實際引用到的指標序列，
// 並把同族指標補齊（MACD 三線、KD 雙線、布林三軌），方便前端疊圖。
func referencedSeries(groups []rule.Group, set indicator.SeriesSet) map[string][]*float64 {
	keys := rule.ReferencedKeys(groups)
	expandFamilies(keys)
	delete(keys, indicator.KeyClose)

	out := make(map[string][]*float64, len(keys))
	for key := range keys {
		if s, ok := set[key]; ok {
			out[key] = s
		}
	}
	return out
}

func expandFamilies(keys map[string]bool) {
	families := [][]string{
		{indicator.KeyDIF, indicator.KeyMACD, indicator.KeyOSC},
		{indicator.KeyK, indicator.KeyD},
		{indicator.KeyBollUpper, indicator.KeyBollMid, indicator.KeyBollLower},
	}
	for _, family := range families {
		hit := false
		for _, key := range family {
			if keys[key] {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		for _, key := range family {
			keys[key] = true
		}
	}
}

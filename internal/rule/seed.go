package rule

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"twquant/internal/logger"
)

// seedSchema 約束種子檔的結構；內容錯誤在載入期就擋下，不帶進規則庫。
const seedSchema = `{
  "type": "object",
  "required": ["rule_groups"],
  "properties": {
    "rule_groups": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "rule_type", "conditions"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "rule_type": {"enum": ["entry", "exit"]},
          "conditions": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["indicator_type", "left_param", "operator", "right_param"],
              "properties": {
                "indicator_type": {"enum": ["MA", "RSI", "MACD", "KD", "BOLLINGER"]},
                "left_param": {"type": "string", "minLength": 1},
                "operator": {"enum": [">", ">=", "<", "<=", "==", "cross_above", "cross_below"]},
                "right_param": {"type": "string", "minLength": 1},
                "logic_operator": {"enum": ["AND", "OR"]}
              }
            }
          }
        }
      }
    }
  }
}`

// ConditionTemplate 對應種子檔中的單一條件。
type ConditionTemplate struct {
	IndicatorType string `mapstructure:"indicator_type"`
	Left          string `mapstructure:"left_param"`
	Operator      string `mapstructure:"operator"`
	Right         string `mapstructure:"right_param"`
	Logic         string `mapstructure:"logic_operator"`
}

// GroupTemplate 對應種子檔中的一個規則群組範本。
type GroupTemplate struct {
	Name       string              `mapstructure:"name"`
	RuleType   string              `mapstructure:"rule_type"`
	Conditions []ConditionTemplate `mapstructure:"conditions"`
}

type seedFile struct {
	RuleGroups []GroupTemplate `mapstructure:"rule_groups"`
}

// SeedSnapshot 是種子範本的唯讀快照。
type SeedSnapshot struct {
	Version  int64
	LoadedAt time.Time
	Groups   []GroupTemplate
}

// SeedChangeListener 在種子檔重載時被呼叫。
type SeedChangeListener func(SeedSnapshot)

// SeedRegistry 讀取預設規則種子檔並監聽熱更新。範本僅存在記憶體，
// 匯入規則庫（ImportInto / Bind）才會落地。
type SeedRegistry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  SeedSnapshot
	listeners []SeedChangeListener
	owned     map[string]bool
}

// NewSeedRegistry 讀取種子檔並開始監聽 FS 事件。
func NewSeedRegistry(path string) (*SeedRegistry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("seed registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read rule seed failed: %w", err)
	}
	r := &SeedRegistry{path: path, v: v, owned: make(map[string]bool)}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("rule seed reload failed (%s): %v", evt.Name, err)
			return
		}
		r.notify()
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot 回傳目前的範本快照。
func (r *SeedRegistry) Snapshot() SeedSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSeedSnapshot(r.snapshot)
}

// Subscribe 註冊重載監聽器。
func (r *SeedRegistry) Subscribe(fn SeedChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// ImportInto 將全部範本匯入規則庫，回傳建立的群組數。
// 建立的群組會登記為種子所有，供重載時判斷能否整批重建。
func (r *SeedRegistry) ImportInto(ctx context.Context, repo Repository) (int, error) {
	snap := r.Snapshot()
	count := 0
	for _, tpl := range snap.Groups {
		g, err := repo.Create(ctx, tpl.Name, tpl.RuleType)
		if err != nil {
			return count, err
		}
		r.mu.Lock()
		r.owned[g.ID] = true
		r.mu.Unlock()
		for _, ct := range tpl.Conditions {
			cond := Condition{
				IndicatorType: IndicatorType(ct.IndicatorType),
				Left:          ct.Left,
				Op:            Operator(ct.Operator),
				Right:         ct.Right,
				Logic:         LogicOperator(ct.Logic),
			}
			if _, err := repo.AddCondition(ctx, g.ID, cond); err != nil {
				return count, err
			}
		}
		count++
	}
	return count, nil
}

// Bind 把範本綁定到規則庫：庫為空時先匯入一份，之後種子檔每次重載，
// 只要庫裡全部群組仍是種子建立的，就整批換成新範本；
// 一旦出現使用者自建或跨次啟動留下的群組，重載只刷新範本快照，不動規則庫。
func (r *SeedRegistry) Bind(ctx context.Context, repo Repository) error {
	groups, err := repo.List(ctx)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		n, err := r.ImportInto(ctx, repo)
		if err != nil {
			return err
		}
		logger.Infof("已匯入 %d 組預設規則", n)
	}
	r.Subscribe(func(snap SeedSnapshot) {
		if err := r.resync(context.Background(), repo); err != nil {
			logger.Errorf("套用規則種子更新失敗: %v", err)
			return
		}
		logger.Infof("規則種子已更新（版本 %d，共 %d 組範本）", snap.Version, len(snap.Groups))
	})
	return nil
}

// resync 以最新範本重建規則庫中的種子群組。
func (r *SeedRegistry) resync(ctx context.Context, repo Repository) error {
	groups, err := repo.List(ctx)
	if err != nil {
		return err
	}
	r.mu.RLock()
	seedOnly := true
	for _, g := range groups {
		if !r.owned[g.ID] {
			seedOnly = false
			break
		}
	}
	r.mu.RUnlock()
	if !seedOnly {
		logger.Warnf("規則庫含非種子群組，本次種子更新不改動規則庫")
		return nil
	}
	for _, g := range groups {
		if err := repo.Delete(ctx, g.ID); err != nil {
			return err
		}
		r.mu.Lock()
		delete(r.owned, g.ID)
		r.mu.Unlock()
	}
	_, err = r.ImportInto(ctx, repo)
	return err
}

func (r *SeedRegistry) reload() error {
	groups, err := readSeedFile(r.path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snapshot = SeedSnapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Groups:   groups,
	}
	r.mu.Unlock()
	logger.Infof("rule seed loaded %d groups from %s", len(groups), filepath.Base(r.path))
	return nil
}

func (r *SeedRegistry) notify() {
	r.mu.RLock()
	snap := cloneSeedSnapshot(r.snapshot)
	listeners := append([]SeedChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb SeedChangeListener) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorf("rule seed listener panic: %v", rec)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func readSeedFile(path string) ([]GroupTemplate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse rule seed failed: %w", err)
	}
	// jsonschema 驗證走 JSON 型別，先經過一次 round-trip 正規化。
	jsonRaw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var normalized any
	if err := json.Unmarshal(jsonRaw, &normalized); err != nil {
		return nil, err
	}
	schema, err := jsonschema.CompileString("rules_seed.json", seedSchema)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(normalized); err != nil {
		return nil, fmt.Errorf("rule seed schema validation failed: %w", err)
	}

	var file seedFile
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &file,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(normalized); err != nil {
		return nil, fmt.Errorf("decode rule seed failed: %w", err)
	}
	for i, tpl := range file.RuleGroups {
		if _, err := ParseRuleType(tpl.RuleType); err != nil {
			return nil, fmt.Errorf("rule seed group %d: %w", i, err)
		}
		for j, ct := range tpl.Conditions {
			cond := Condition{
				IndicatorType: IndicatorType(ct.IndicatorType),
				Left:          ct.Left,
				Op:            Operator(ct.Operator),
				Right:         ct.Right,
				Logic:         LogicOperator(ct.Logic),
			}
			if cond.Logic == "" {
				cond.Logic = LogicAnd
			}
			if err := cond.Validate(); err != nil {
				return nil, fmt.Errorf("rule seed group %d condition %d: %w", i, j, err)
			}
		}
	}
	return file.RuleGroups, nil
}

func cloneSeedSnapshot(src SeedSnapshot) SeedSnapshot {
	dst := src
	dst.Groups = append([]GroupTemplate(nil), src.Groups...)
	return dst
}

package rule

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"twquant/internal/market"
)

// ErrNotFound 表示查無規則群組或條件。
var ErrNotFound = fmt.Errorf("規則不存在")

// Repository 是規則群組的存取介面。回測引擎只透過 List 取得一次性
// 讀取快照，不會回寫任何狀態。
type Repository interface {
	Create(ctx context.Context, name, ruleType string) (Group, error)
	Get(ctx context.Context, id string) (Group, error)
	List(ctx context.Context) ([]Group, error)
	Delete(ctx context.Context, id string) error
	AddCondition(ctx context.Context, groupID string, c Condition) (Condition, error)
	RemoveCondition(ctx context.Context, groupID, conditionID string) error
}

// MemoryRepository 是純記憶體實作，供測試與種子匯入使用。
type MemoryRepository struct {
	mu     sync.RWMutex
	groups map[string]*Group
	order  []string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{groups: make(map[string]*Group)}
}

func newID() string { return uuid.NewString()[:8] }

func (r *MemoryRepository) Create(_ context.Context, name, ruleType string) (Group, error) {
	rt, err := ParseRuleType(ruleType)
	if err != nil {
		return Group{}, err
	}
	if name == "" {
		return Group{}, fmt.Errorf("%w: 群組名稱不能為空", market.ErrConfig)
	}
	g := &Group{ID: newID(), Name: name, RuleType: rt}
	r.mu.Lock()
	r.groups[g.ID] = g
	r.order = append(r.order, g.ID)
	r.mu.Unlock()
	return *g, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[id]
	if !ok {
		return Group{}, ErrNotFound
	}
	return cloneGroup(*g), nil
}

func (r *MemoryRepository) List(_ context.Context) ([]Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Group, 0, len(r.order))
	for _, id := range r.order {
		if g, ok := r.groups[id]; ok {
			out = append(out, cloneGroup(*g))
		}
	}
	return out, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[id]; !ok {
		return ErrNotFound
	}
	delete(r.groups, id)
	for i, gid := range r.order {
		if gid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *MemoryRepository) AddCondition(_ context.Context, groupID string, c Condition) (Condition, error) {
	if c.Logic == "" {
		c.Logic = LogicAnd
	}
	if err := c.Validate(); err != nil {
		return Condition{}, err
	}
	if c.ID == "" {
		c.ID = newID()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[groupID]
	if !ok {
		return Condition{}, ErrNotFound
	}
	g.Conditions = append(g.Conditions, c)
	return c, nil
}

func (r *MemoryRepository) RemoveCondition(_ context.Context, groupID, conditionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[groupID]
	if !ok {
		return ErrNotFound
	}
	for i, c := range g.Conditions {
		if c.ID == conditionID {
			g.Conditions = append(g.Conditions[:i], g.Conditions[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func cloneGroup(g Group) Group {
	g.Conditions = append([]Condition(nil), g.Conditions...)
	return g
}

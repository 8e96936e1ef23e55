package rule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"twquant/internal/market"
)

// GroupModel 是規則群組的持久化模型，條件以 JSON 欄位整組存放。
type GroupModel struct {
	ID             string         `gorm:"column:id;primaryKey"`
	Name           string         `gorm:"column:name"`
	RuleType       string         `gorm:"column:rule_type;index"`
	ConditionsJSON datatypes.JSON `gorm:"column:conditions_json;type:TEXT"`
	CreatedAtUnix  int64          `gorm:"column:created_at"`
	UpdatedAtUnix  int64          `gorm:"column:updated_at"`
}

func (GroupModel) TableName() string { return "rule_groups" }

// Store 以 gorm + sqlite 實作 Repository。
type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("規則庫路徑不能為空")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&GroupModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Create(ctx context.Context, name, ruleType string) (Group, error) {
	rt, err := ParseRuleType(ruleType)
	if err != nil {
		return Group{}, err
	}
	if name == "" {
		return Group{}, fmt.Errorf("%w: 群組名稱不能為空", market.ErrConfig)
	}
	g := Group{ID: newID(), Name: name, RuleType: rt}
	m, err := toModel(g)
	if err != nil {
		return Group{}, err
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return Group{}, err
	}
	return g, nil
}

func (s *Store) Get(ctx context.Context, id string) (Group, error) {
	var m GroupModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Group{}, ErrNotFound
	}
	if err != nil {
		return Group{}, err
	}
	return fromModel(m)
}

func (s *Store) List(ctx context.Context) ([]Group, error) {
	var models []GroupModel
	if err := s.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Group, 0, len(models))
	for _, m := range models {
		g, err := fromModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&GroupModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) AddCondition(ctx context.Context, groupID string, c Condition) (Condition, error) {
	if c.Logic == "" {
		c.Logic = LogicAnd
	}
	if err := c.Validate(); err != nil {
		return Condition{}, err
	}
	if c.ID == "" {
		c.ID = newID()
	}
	g, err := s.Get(ctx, groupID)
	if err != nil {
		return Condition{}, err
	}
	g.Conditions = append(g.Conditions, c)
	if err := s.saveConditions(ctx, g); err != nil {
		return Condition{}, err
	}
	return c, nil
}

func (s *Store) RemoveCondition(ctx context.Context, groupID, conditionID string) error {
	g, err := s.Get(ctx, groupID)
	if err != nil {
		return err
	}
	found := false
	for i, c := range g.Conditions {
		if c.ID == conditionID {
			g.Conditions = append(g.Conditions[:i], g.Conditions[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return ErrNotFound
	}
	return s.saveConditions(ctx, g)
}

func (s *Store) saveConditions(ctx context.Context, g Group) error {
	raw, err := json.Marshal(g.Conditions)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&GroupModel{}).
		Where("id = ?", g.ID).
		Updates(map[string]any{
			"conditions_json": datatypes.JSON(raw),
			"updated_at":      time.Now().Unix(),
		}).Error
}

func toModel(g Group) (GroupModel, error) {
	raw, err := json.Marshal(g.Conditions)
	if err != nil {
		return GroupModel{}, err
	}
	now := time.Now().Unix()
	return GroupModel{
		ID:             g.ID,
		Name:           g.Name,
		RuleType:       g.RuleType,
		ConditionsJSON: datatypes.JSON(raw),
		CreatedAtUnix:  now,
		UpdatedAtUnix:  now,
	}, nil
}

func fromModel(m GroupModel) (Group, error) {
	g := Group{ID: m.ID, Name: m.Name, RuleType: m.RuleType}
	if len(m.ConditionsJSON) > 0 {
		if err := json.Unmarshal(m.ConditionsJSON, &g.Conditions); err != nil {
			return Group{}, fmt.Errorf("解析規則條件失敗 (%s): %w", m.ID, err)
		}
	}
	return g, nil
}

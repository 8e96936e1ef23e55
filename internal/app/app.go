// Package app 負責應用級編排：載入配置、初始化依賴、啟動 HTTP 服務。
package app

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"twquant/internal/backtest"
	"twquant/internal/config"
	"twquant/internal/logger"
	"twquant/internal/market"
	"twquant/internal/rule"
	apihttp "twquant/internal/transport/http"
)

// App 持有全部已初始化的服務。
type App struct {
	cfg       *config.Config
	ruleStore *rule.Store
	priceDB   *market.Store
	seeds     *rule.SeedRegistry
	server    *apihttp.Server
}

// NewApp 根據配置建構應用物件（不啟動）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	ruleStore, err := rule.NewStore(cfg.Rules.DBPath)
	if err != nil {
		return nil, fmt.Errorf("初始化規則庫失敗: %w", err)
	}
	priceDB, err := market.NewStore(cfg.Data.Root)
	if err != nil {
		return nil, fmt.Errorf("初始化行情資料庫失敗: %w", err)
	}

	app := &App{cfg: cfg, ruleStore: ruleStore, priceDB: priceDB}
	if err := app.loadSeeds(context.Background()); err != nil {
		return nil, err
	}

	svc := backtest.NewService(ruleStore, cfg.Backtest)
	server, err := apihttp.NewServer(apihttp.Config{
		Addr:  cfg.App.HTTPAddr,
		Repo:  ruleStore,
		Svc:   svc,
		Store: priceDB,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 HTTP 服務失敗: %w", err)
	}
	app.server = server
	return app, nil
}

// loadSeeds 讀取預設規則範本並綁定規則庫：庫為空時匯入一份，
// 之後種子檔的熱更新由 Bind 同步進規則庫。
// 種子檔不存在時跳過，不視為錯誤。
func (a *App) loadSeeds(ctx context.Context) error {
	path := a.cfg.Rules.SeedPath
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warnf("找不到規則種子檔 %s，略過預設規則", path)
		return nil
	}
	seeds, err := rule.NewSeedRegistry(path)
	if err != nil {
		return fmt.Errorf("載入規則種子失敗: %w", err)
	}
	a.seeds = seeds

	if err := seeds.Bind(ctx, a.ruleStore); err != nil {
		return fmt.Errorf("匯入預設規則失敗: %w", err)
	}
	return nil
}

// Run 啟動 HTTP 服務，阻塞直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.server == nil {
		return fmt.Errorf("app not initialized")
	}
	logger.Infof("✓ 服務啟動（環境=%s，位址=%s）", a.cfg.App.Env, a.cfg.App.HTTPAddr)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	err := group.Wait()
	a.close()
	return err
}

func (a *App) close() {
	if a.ruleStore != nil {
		if err := a.ruleStore.Close(); err != nil {
			logger.Warnf("關閉規則庫失敗: %v", err)
		}
	}
	if a.priceDB != nil {
		if err := a.priceDB.Close(); err != nil {
			logger.Warnf("關閉行情資料庫失敗: %v", err)
		}
	}
}

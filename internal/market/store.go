package market

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// Markets 列出支援的市場代號（上市 / 上櫃）。
var Markets = []string{"TWSE", "TPEX"}

// StockName 是個股代碼與名稱的對照。
type StockName struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Market string `json:"market"`
}

// Store 以 sqlite 保存各市場的日線與股名對照，一個市場一個檔案。
type Store struct {
	root string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("data root 不能為空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root, dbs: make(map[string]*sql.DB)}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for k, db := range s.dbs {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.dbs, k)
	}
	return firstErr
}

func normalizeMarket(market string) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(market))
	for _, known := range Markets {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: market 必須為 TWSE 或 TPEX（收到 %q）", ErrConfig, market)
}

func (s *Store) db(market string) (*sql.DB, error) {
	m, err := normalizeMarket(market)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[m]; ok && db != nil {
		return db, nil
	}
	path := filepath.Join(s.root, strings.ToLower(m)+".db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.dbs[m] = db
	return db, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS daily_bars (
			code   TEXT NOT NULL,
			date   TEXT NOT NULL,
			open   REAL NOT NULL,
			high   REAL NOT NULL,
			low    REAL NOT NULL,
			close  REAL NOT NULL,
			volume INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (code, date)
		);`,
		`CREATE TABLE IF NOT EXISTS stock_names (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// UpsertBars 批次寫入日線（重複日期以新值覆蓋）。
func (s *Store) UpsertBars(ctx context.Context, market, code string, bars []Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	if code == "" {
		return 0, fmt.Errorf("%w: code 不能為空", ErrConfig)
	}
	if err := ValidateBars(bars); err != nil {
		return 0, err
	}
	db, err := s.db(market)
	if err != nil {
		return 0, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_bars (code, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code, date) DO UPDATE SET
		    open=excluded.open,
		    high=excluded.high,
		    low=excluded.low,
		    close=excluded.close,
		    volume=excluded.volume`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	count := 0
	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, code, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// RangeBars 回傳 start~end（閉區間，YYYY-MM-DD）內的日線，依日期升冪。
func (s *Store) RangeBars(ctx context.Context, market, code, start, end string) ([]Bar, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: code 不能為空", ErrConfig)
	}
	if _, err := ParseDate(start); err != nil {
		return nil, err
	}
	if _, err := ParseDate(end); err != nil {
		return nil, err
	}
	db, err := s.db(market)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume
		FROM daily_bars
		WHERE code = ? AND date BETWEEN ? AND ?
		ORDER BY date ASC`, code, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Bar
	for rows.Next() {
		var b Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

// UpsertStockNames 更新股名對照表。
func (s *Store) UpsertStockNames(ctx context.Context, market string, names []StockName) error {
	if len(names) == 0 {
		return nil
	}
	db, err := s.db(market)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stock_names (code, name) VALUES (?, ?)
		ON CONFLICT(code) DO UPDATE SET name=excluded.name`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, n := range names {
		if n.Code == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, n.Code, n.Name); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SearchStocks 以代碼或名稱模糊搜尋，兩個市場各取前 20 筆。
func (s *Store) SearchStocks(ctx context.Context, keyword string) ([]StockName, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, nil
	}
	pattern := "%" + keyword + "%"
	var out []StockName
	for _, m := range Markets {
		db, err := s.db(m)
		if err != nil {
			return nil, err
		}
		rows, err := db.QueryContext(ctx, `
			SELECT code, name FROM stock_names
			WHERE code LIKE ? OR name LIKE ?
			ORDER BY code LIMIT 20`, pattern, pattern)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var n StockName
			if err := rows.Scan(&n.Code, &n.Name); err != nil {
				rows.Close()
				return nil, err
			}
			n.Market = m
			out = append(out, n)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

// 包 store 提供缓存库实现（SQLite）：四类缓存各自的表、按键查询与按键事务写入。
// 每个键的写入与其“已抓取”标记在同一事务内提交，要么全部可见，要么全部不可见。
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"go-keiba-collector/internal/model"
)

// 缓存名，同时作为 cache_keys.cache 的取值。
const (
	CacheCalendar     = "calendar"
	CacheRaceListing  = "race_listing"
	CacheRaceResult   = "race_result"
	CacheHorseHistory = "horse_history"
)

// Caches 为全部缓存名（固定顺序，用于统计输出）。
var Caches = []string{CacheCalendar, CacheRaceListing, CacheRaceResult, CacheHorseHistory}

// SQLite 封装 *sql.DB，基于 modernc.org/sqlite（纯 Go 实现）。
type SQLite struct {
	db *sql.DB
}

// OpenSQLite 打开（必要时创建）缓存库并执行自动迁移。
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// migrate 执行建表语句，保持幂等。
func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cache_keys (
            cache TEXT NOT NULL,
            cache_key TEXT NOT NULL,
            fetched_at TEXT NOT NULL,
            PRIMARY KEY (cache, cache_key)
        );`,
		`CREATE TABLE IF NOT EXISTS race_calendar (
            year INTEGER NOT NULL,
            month INTEGER NOT NULL,
            date TEXT NOT NULL,
            course TEXT NOT NULL,
            url TEXT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_race_calendar_key ON race_calendar(year, month);`,
		`CREATE TABLE IF NOT EXISTS race_listing (
            day_url TEXT NOT NULL,
            date TEXT NOT NULL,
            course TEXT NOT NULL,
            race_number INTEGER NOT NULL,
            race_name TEXT NOT NULL,
            track_type TEXT NOT NULL,
            distance INTEGER NOT NULL,
            condition TEXT NOT NULL,
            horse_count INTEGER NOT NULL,
            url TEXT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_race_listing_key ON race_listing(day_url);`,
		`CREATE TABLE IF NOT EXISTS race_result_race (
            race_url TEXT PRIMARY KEY,
            date TEXT NOT NULL,
            course TEXT NOT NULL,
            race_number INTEGER NOT NULL,
            race_name TEXT NOT NULL,
            track_type TEXT NOT NULL,
            distance INTEGER NOT NULL,
            condition TEXT NOT NULL,
            horse_count INTEGER NOT NULL,
            url TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS race_result_horse (
            race_url TEXT NOT NULL,
            horse_order TEXT NOT NULL,
            name TEXT NOT NULL,
            popularity INTEGER,
            weight INTEGER,
            elapsed_seconds REAL,
            url TEXT NOT NULL,
            payout REAL,
            number INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_race_result_horse_key ON race_result_horse(race_url);`,
		`CREATE TABLE IF NOT EXISTS horse_history (
            horse_url TEXT NOT NULL,
            date TEXT NOT NULL,
            course TEXT NOT NULL,
            race_number INTEGER NOT NULL,
            race_name TEXT NOT NULL,
            track_type TEXT NOT NULL,
            distance INTEGER NOT NULL,
            condition TEXT NOT NULL,
            horse_count INTEGER NOT NULL,
            race_url TEXT NOT NULL,
            horse_order TEXT NOT NULL,
            name TEXT NOT NULL,
            popularity INTEGER,
            weight INTEGER,
            elapsed_seconds REAL,
            url TEXT NOT NULL,
            payout REAL,
            number INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_horse_history_key ON horse_history(horse_url);`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

// fetched 判断某缓存键是否已抓取（标记存在即命中，空结果同样命中）。
func (s *SQLite) fetched(ctx context.Context, cache, key string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM cache_keys WHERE cache = ? AND cache_key = ?`, cache, key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query cache key %s/%s: %w", cache, key, err)
	}
	return n > 0, nil
}

// withTx 在单个事务中执行 fn，fn 成功后才提交；任何错误都会回滚。
func (s *SQLite) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// markFetched 写入已抓取标记；重复写入同一键会因主键冲突报错（只在未命中时写入）。
func markFetched(ctx context.Context, tx *sql.Tx, cache, key string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO cache_keys(cache, cache_key, fetched_at) VALUES(?,?,?)`,
		cache, key, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("mark %s/%s fetched: %w", cache, key, err)
	}
	return nil
}

// Stats 统计每个缓存的键数与行数。
func (s *SQLite) Stats(ctx context.Context) (model.Stats, error) {
	tables := map[string]string{
		CacheCalendar:     "race_calendar",
		CacheRaceListing:  "race_listing",
		CacheRaceResult:   "race_result_horse",
		CacheHorseHistory: "horse_history",
	}
	st := model.Stats{UpdatedAt: time.Now()}
	for _, c := range Caches {
		cs := model.CacheStats{Cache: c}
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM cache_keys WHERE cache = ?`, c).Scan(&cs.Keys); err != nil {
			return st, fmt.Errorf("count %s keys: %w", c, err)
		}
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM `+tables[c]).Scan(&cs.Rows); err != nil {
			return st, fmt.Errorf("count %s rows: %w", c, err)
		}
		st.Caches = append(st.Caches, cs)
	}
	return st, nil
}

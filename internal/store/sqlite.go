package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"rebalance-backtest/internal/config"
)

// Store 封装 SQLite 连接，价格缓存与回测记录共用同一个库。
type Store struct {
	db *sql.DB
}

var pragmas = []struct {
	stmt string
	desc string
}{
	{"PRAGMA journal_mode=WAL;", "WAL 模式"},
	{"PRAGMA synchronous=NORMAL;", "同步级别"},
}

// NewSQLite 根据配置打开数据库；InMemory 时使用单连接内存库。
func NewSQLite(cfg config.DatabaseConfig) (*Store, error) {
	dsn := cfg.Path
	if cfg.InMemory {
		dsn = ":memory:"
	} else if err := ensureDir(filepath.Dir(cfg.Path)); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("打开 SQLite 数据库失败: %w", err)
	}

	if cfg.InMemory {
		// 每个连接各自持有一个内存库
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	for _, p := range pragmas {
		if _, err := conn.Exec(p.stmt); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("设置 SQLite %s失败: %w", p.desc, err)
		}
	}

	s := &Store{db: conn}
	if _, err := conn.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
	name TEXT PRIMARY KEY,
	applied_at TEXT NOT NULL
);`); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("初始化迁移表失败: %w", err)
	}
	return s, nil
}

// DB 返回底层 *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate 执行一次命名的建表语句，已执行过的名字直接跳过。
func (s *Store) Migrate(ctx context.Context, name, stmt string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE name = ?`, name).Scan(&exists)
		if err != nil {
			return fmt.Errorf("查询迁移 %s 失败: %w", name, err)
		}
		if exists > 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("执行迁移 %s 失败: %w", name, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`,
			name, time.Now().UTC().Format(time.RFC3339),
		)
		return err
	})
}

// WithTx 在事务中执行 fn，fn 返回错误时回滚。
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("创建目录 %q 失败: %w", path, err)
	}
	return nil
}

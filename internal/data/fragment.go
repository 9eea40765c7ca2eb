package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quickmail/internal/biz"
)

// sqliteFragmentRepo SQLite 实现的片段仓库
type sqliteFragmentRepo struct {
	db *sql.DB
}

// NewSQLiteFragmentRepo 创建 SQLite 片段仓库
func NewSQLiteFragmentRepo(db *sql.DB) biz.FragmentRepo {
	return &sqliteFragmentRepo{db: db}
}

// SaveFragment 保存片段，同 key 覆盖
func (r *sqliteFragmentRepo) SaveFragment(ctx context.Context, key, body string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO fragments (key, body) VALUES (?, ?)", key, body)
	if err != nil {
		return fmt.Errorf("failed to insert fragment: %w", err)
	}
	return nil
}

// TakeFragment 读取并删除片段，单条语句保证只被读取一次
func (r *sqliteFragmentRepo) TakeFragment(ctx context.Context, key string) (string, error) {
	var body string
	err := r.db.QueryRowContext(ctx,
		"DELETE FROM fragments WHERE key = ? RETURNING body", key,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", biz.ErrFragmentNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to take fragment: %w", err)
	}
	return body, nil
}

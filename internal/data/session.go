package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"quickmail/internal/biz"

	"github.com/google/uuid"
)

// sqliteSessionRepo SQLite 实现的会话仓库
type sqliteSessionRepo struct {
	db *sql.DB
}

// NewSQLiteSessionRepo 创建 SQLite 会话仓库
func NewSQLiteSessionRepo(db *sql.DB) biz.SessionRepo {
	return &sqliteSessionRepo{db: db}
}

// CreateSession 创建会话
func (r *sqliteSessionRepo) CreateSession(ctx context.Context, email string, token biz.Token) (*biz.Session, error) {
	s := &biz.Session{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Token:     token,
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO sessions (id, email, access_token, refresh_token, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		s.ID, s.Email, token.AccessToken, token.RefreshToken, expiresAt(token), s.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}
	return s, nil
}

// GetSession 获取会话
func (r *sqliteSessionRepo) GetSession(ctx context.Context, id string) (*biz.Session, error) {
	s := &biz.Session{ID: id}
	var expiry sql.NullTime
	err := r.db.QueryRowContext(ctx,
		"SELECT email, access_token, refresh_token, expires_at, created_at FROM sessions WHERE id = ?", id,
	).Scan(&s.Email, &s.AccessToken, &s.RefreshToken, &expiry, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", biz.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	if expiry.Valid {
		s.Expiry = expiry.Time
	}
	return s, nil
}

// UpdateToken 更新会话令牌（刷新后）
func (r *sqliteSessionRepo) UpdateToken(ctx context.Context, id string, token biz.Token) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET access_token = ?, refresh_token = ?, expires_at = ? WHERE id = ?",
		token.AccessToken, token.RefreshToken, expiresAt(token), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update session token: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", biz.ErrSessionNotFound, id)
	}
	return nil
}

// DeleteSession 删除会话
func (r *sqliteSessionRepo) DeleteSession(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// expiresAt 零值存为 NULL
func expiresAt(token biz.Token) any {
	if token.Expiry.IsZero() {
		return nil
	}
	return token.Expiry.UTC().Truncate(time.Second)
}

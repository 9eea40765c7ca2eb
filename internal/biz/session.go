package biz

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// expiryDelta 提前判定过期，避免令牌在请求途中失效
const expiryDelta = 10 * time.Second

// Token 会话持有的 OAuth 令牌
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time // 零值表示不过期
}

// Session 登录会话：重定向表单 POST 回页面时创建
type Session struct {
	ID        string
	Email     string
	CreatedAt time.Time
	Token
}

// Expired 访问令牌在 now 时是否已过期
func (s *Session) Expired(now time.Time) bool {
	return !s.Expiry.IsZero() && !now.Before(s.Expiry.Add(-expiryDelta))
}

// SessionRepo 会话仓库接口
type SessionRepo interface {
	// CreateSession 保存 user/token，返回新会话
	CreateSession(ctx context.Context, email string, token Token) (*Session, error)
	// GetSession 按 ID 获取会话，不存在返回 ErrSessionNotFound
	GetSession(ctx context.Context, id string) (*Session, error)
	// UpdateToken 替换会话的令牌
	UpdateToken(ctx context.Context, id string, token Token) error
	// DeleteSession 删除会话，不存在时不报错
	DeleteSession(ctx context.Context, id string) error
}

// TokenRefresher 用刷新令牌换取新的访问令牌
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (Token, error)
}

// SessionUsecase 会话业务逻辑：过期的访问令牌用刷新令牌续期，续期失败则会话作废
type SessionUsecase struct {
	repo      SessionRepo
	refresher TokenRefresher
	now       func() time.Time
}

// NewSessionUsecase 创建 SessionUsecase，refresher 为 nil 时过期会话直接作废
func NewSessionUsecase(repo SessionRepo, refresher TokenRefresher) *SessionUsecase {
	return &SessionUsecase{repo: repo, refresher: refresher, now: time.Now}
}

// CreateSession 创建会话
func (uc *SessionUsecase) CreateSession(ctx context.Context, email string, token Token) (*Session, error) {
	return uc.repo.CreateSession(ctx, email, token)
}

// GetSession 获取会话，必要时刷新令牌
func (uc *SessionUsecase) GetSession(ctx context.Context, id string) (*Session, error) {
	s, err := uc.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.Expired(uc.now()) {
		return s, nil
	}

	if uc.refresher == nil || s.RefreshToken == "" {
		uc.repo.DeleteSession(ctx, id)
		return nil, ErrSessionExpired
	}
	token, err := uc.refresher.RefreshToken(ctx, s.RefreshToken)
	if err != nil {
		uc.repo.DeleteSession(ctx, id)
		return nil, fmt.Errorf("%w: refresh failed: %v", ErrSessionExpired, err)
	}
	// 提供方通常不会重新下发刷新令牌
	if token.RefreshToken == "" {
		token.RefreshToken = s.RefreshToken
	}
	if err := uc.repo.UpdateToken(ctx, id, token); err != nil {
		return nil, err
	}
	s.Token = token
	return s, nil
}

// DeleteSession 删除会话
func (uc *SessionUsecase) DeleteSession(ctx context.Context, id string) error {
	return uc.repo.DeleteSession(ctx, id)
}

package biz

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"quickmail/internal/sanitize"
)

var ErrFragmentNotFound = errors.New("fragment not found")

// FragmentRepo 一次性 HTML 片段仓库
type FragmentRepo interface {
	// SaveFragment 保存片段
	SaveFragment(ctx context.Context, key, body string) error
	// TakeFragment 读取并删除片段，不存在返回 ErrFragmentNotFound
	TakeFragment(ctx context.Context, key string) (string, error)
}

// FragmentUsecase 片段业务逻辑：先清洗再保存，读取一次即失效
type FragmentUsecase struct {
	repo      FragmentRepo
	sanitizer *sanitize.Sanitizer
	urlPolicy sanitize.URLPolicy
}

// NewFragmentUsecase 创建 FragmentUsecase
func NewFragmentUsecase(repo FragmentRepo, sanitizer *sanitize.Sanitizer) *FragmentUsecase {
	return &FragmentUsecase{
		repo:      repo,
		sanitizer: sanitizer,
		urlPolicy: sanitize.Identity,
	}
}

// CreateFragment 清洗 raw 并保存，返回读取用的 key
func (uc *FragmentUsecase) CreateFragment(ctx context.Context, raw string) (string, error) {
	body, err := uc.sanitizer.Sanitize(raw, uc.urlPolicy)
	if err != nil {
		return "", fmt.Errorf("sanitize fragment: %w", err)
	}
	key, err := generateKey()
	if err != nil {
		return "", err
	}
	if err := uc.repo.SaveFragment(ctx, key, body); err != nil {
		return "", err
	}
	return key, nil
}

// TakeFragment 读取片段（一次性）
func (uc *FragmentUsecase) TakeFragment(ctx context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrFragmentNotFound
	}
	return uc.repo.TakeFragment(ctx, key)
}

// generateKey 生成 64 字符的 URL 安全随机 key
func generateKey() (string, error) {
	b := make([]byte, 48)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate fragment key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

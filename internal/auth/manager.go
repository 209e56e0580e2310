// Package auth は登録・ログイン・ログアウトとログイン必須ページの保護を提供します。
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/yourusername/secrets/internal/config"
	"github.com/yourusername/secrets/internal/jobs"
	"github.com/yourusername/secrets/internal/session"
	"github.com/yourusername/secrets/internal/users"
)

const (
	sessionKeyUser     = "user_id"
	sessionKeyToken    = "token"
	sessionKeyIssuedAt = "issued_at"

	// ContextUserKey は、ハンドラー間でログイン済みユーザーIDを共有するためのキーです。
	ContextUserKey = "auth.user"

	// recentActivityLimit は保護ページに表示する履歴の件数です。
	recentActivityLimit = 5
)

// 画面に表示するメッセージ
const (
	msgInvalidEmail       = "Invalid email format."
	msgWeakPassword       = "Password must be at least 6 characters, include uppercase, lowercase, and a number."
	msgEmailTaken         = "Email already registered."
	msgRegisterFailed     = "Registration failed. Try again."
	msgInvalidCredentials = "Invalid email or password."
	msgLoginFailed        = "Login failed. Try again."
	msgTooManyAttempts    = "Too many failed attempts. Try again later."
	msgSecretsFailed      = "Could not load your page. Try again."
)

// Activity はアクティビティの記録先です。jobs.Manager が実装します。
type Activity interface {
	Record(ctx context.Context, event jobs.Event) error
	Recent(ctx context.Context, userID string, limit int) ([]jobs.Event, error)
}

// Manager は認証処理と状態をまとめた構造体です。
type Manager struct {
	users    users.Store
	tokens   *TokenIssuer
	activity Activity
	limiter  *loginLimiter
	now      func() time.Time

	secureCookie bool
}

// NewManager は認証マネージャーを作成します。activity は nil でも構いません。
func NewManager(cfg *config.Config, store users.Store, activity Activity) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if store == nil {
		return nil, errors.New("user store is nil")
	}
	tokens, err := NewTokenIssuer([]byte(cfg.JWTSecret), session.Lifetime)
	if err != nil {
		return nil, err
	}
	return &Manager{
		users:    store,
		tokens:   tokens,
		activity: activity,
		limiter:  newLoginLimiter(time.Now),
		now:      time.Now,

		secureCookie: cfg.CookieSecure,
	}, nil
}

// Tokens はログイン時に使うトークン発行者を返します。
func (m *Manager) Tokens() *TokenIssuer {
	return m.tokens
}

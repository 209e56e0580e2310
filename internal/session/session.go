// Package session はサーバー側セッションストアの構築を担います。
// Cookie には不透明なセッションIDだけを載せ、中身は Redis に保存します。
package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/memstore"
	"github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	redigo "github.com/gomodule/redigo/redis"
)

const (
	// CookieName はセッションIDを運ぶCookieの名前です。
	CookieName = "secrets_session"
	// Lifetime はセッションの絶対的な有効期間です。アクセスしても延長しません。
	Lifetime = time.Hour
)

// MaxAgeSeconds はクッキーの MaxAge に利用する秒数を返します。
func MaxAgeSeconds() int {
	return int(Lifetime.Seconds())
}

// Options はセッションCookieの属性を返します。
func Options(secure bool) sessions.Options {
	return sessions.Options{
		Path:     "/",
		MaxAge:   MaxAgeSeconds(),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// NewRedisStore は Redis をバックエンドにしたセッションストアを作成します。
// 作成時に接続確認を行うため、Redis に到達できない場合はエラーを返します。
func NewRedisStore(redisURL string, secret []byte, secure bool) (sessions.Store, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("session secret is empty")
	}
	pool := &redigo.Pool{
		MaxIdle:     10,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redigo.Conn, error) {
			return redigo.DialURL(redisURL)
		},
		TestOnBorrow: func(c redigo.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	conn := pool.Get()
	_, err := conn.Do("PING")
	_ = conn.Close()
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to reach redis for sessions: %w", err)
	}

	store, err := redis.NewStoreWithPool(pool, secret)
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to create redis session store: %w", err)
	}
	store.Options(Options(secure))
	return store, nil
}

// NewMemoryStore はプロセス内にセッションを保持するストアを作成します。
// Redis が使えない場合の退避先とテストに使います。
func NewMemoryStore(secret []byte, secure bool) sessions.Store {
	store := memstore.NewStore(secret)
	store.Options(Options(secure))
	return store
}

// Middleware はセッションを各リクエストに紐付けるミドルウェアを返します。
func Middleware(store sessions.Store) gin.HandlerFunc {
	return sessions.Sessions(CookieName, store)
}

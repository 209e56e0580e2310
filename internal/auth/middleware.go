package auth

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/secrets/internal/session"
)

// RequireLogin はセッションを検証するミドルウェアを返します。
// 未ログインと期限切れは区別せず、どちらも /login へリダイレクトします。
func (m *Manager) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		user, ok := s.Get(sessionKeyUser).(string)
		if !ok || user == "" {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		// 有効期限は発行時刻からの絶対時間で判定し、延長はしない
		issuedAt := readUnix(s.Get(sessionKeyIssuedAt))
		if issuedAt.IsZero() || m.now().Sub(issuedAt) > session.Lifetime {
			_ = m.destroySession(s)
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// destroySession はセッションの中身を消し、ストア側のレコードも削除させます。
// 削除用Cookieは発行時と同じ属性にする。
func (m *Manager) destroySession(s sessions.Session) error {
	s.Clear()
	opts := session.Options(m.secureCookie)
	opts.MaxAge = -1
	s.Options(opts)
	return s.Save()
}

func readUnix(v interface{}) time.Time {
	switch t := v.(type) {
	case int64:
		return time.Unix(t, 0)
	case int:
		return time.Unix(int64(t), 0)
	case float64:
		return time.Unix(int64(t), 0)
	default:
		return time.Time{}
	}
}

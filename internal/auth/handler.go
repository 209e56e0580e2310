package auth

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/secrets/internal/jobs"
	"github.com/yourusername/secrets/internal/users"
)

// ShowHome は GET / のハンドラーです。
func (m *Manager) ShowHome(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{})
}

// ShowRegister は GET /register のハンドラーです。
func (m *Manager) ShowRegister(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", gin.H{"title": "Register", "error": nil})
}

// Register は POST /register のハンドラーです。
func (m *Manager) Register(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("name"))
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")

	fail := func(message string) {
		c.HTML(http.StatusOK, "register.html", gin.H{
			"title": "Register",
			"error": message,
			"name":  name,
			"email": email,
		})
	}

	if !ValidEmail(email) {
		fail(msgInvalidEmail)
		return
	}
	if !ValidPassword(password) {
		fail(msgWeakPassword)
		return
	}

	ctx := c.Request.Context()
	if _, err := m.users.FindByEmail(ctx, email); err == nil {
		fail(msgEmailTaken)
		return
	} else if !errors.Is(err, users.ErrNotFound) {
		log.Error().Err(err).Msg("failed to look up email on registration")
		fail(msgRegisterFailed)
		return
	}

	hash, err := HashPassword(password)
	if err != nil {
		log.Error().Err(err).Msg("failed to hash password")
		fail(msgRegisterFailed)
		return
	}

	user := &users.User{Name: name, Email: email, PasswordHash: hash}
	if err := m.users.Create(ctx, user); err != nil {
		// 事前チェックをすり抜けた同時登録はストア側で弾かれる
		if errors.Is(err, users.ErrEmailTaken) {
			fail(msgEmailTaken)
			return
		}
		log.Error().Err(err).Msg("failed to create user")
		fail(msgRegisterFailed)
		return
	}

	m.recordActivity(c, jobs.EventRegister, user.ID)
	c.Redirect(http.StatusFound, "/login")
}

// ShowLogin は GET /login のハンドラーです。
func (m *Manager) ShowLogin(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{"title": "Login", "error": nil})
}

// Login は POST /login のハンドラーです。
func (m *Manager) Login(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")

	fail := func(status int, message string) {
		c.HTML(status, "login.html", gin.H{
			"title": "Login",
			"error": message,
			"email": email,
		})
	}

	ip := c.ClientIP()
	if retryAfter := m.limiter.retryAfter(ip); retryAfter > 0 {
		// Retry-After は秒数またはHTTP-Date形式が推奨されているため秒数で返す
		c.Header("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
		fail(http.StatusTooManyRequests, msgTooManyAttempts)
		return
	}

	if !ValidEmail(email) {
		fail(http.StatusOK, msgInvalidEmail)
		return
	}

	ctx := c.Request.Context()
	user, err := m.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		log.Error().Err(err).Msg("failed to look up user on login")
		fail(http.StatusOK, msgLoginFailed)
		return
	}
	// ユーザー不在とパスワード不一致は同じメッセージにする
	if user == nil || !VerifyPassword(password, user.PasswordHash) {
		remaining := m.limiter.recordFailure(ip)
		log.Info().Str("ip", ip).Int("remaining", remaining).Msg("login failed")
		fail(http.StatusOK, msgInvalidCredentials)
		return
	}

	token, err := m.tokens.Issue(user.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to issue token")
		fail(http.StatusOK, msgLoginFailed)
		return
	}

	s := sessions.Default(c)
	s.Clear()
	s.Set(sessionKeyUser, user.ID)
	s.Set(sessionKeyToken, token)
	s.Set(sessionKeyIssuedAt, m.now().Unix())
	if err := s.Save(); err != nil {
		log.Error().Err(err).Msg("failed to save session")
		fail(http.StatusOK, msgLoginFailed)
		return
	}

	m.limiter.reset(ip)
	m.recordActivity(c, jobs.EventLogin, user.ID)
	c.Redirect(http.StatusFound, "/secrets")
}

// Logout は POST /logout のハンドラーです。セッションの有無に関わらず /login へ戻します。
func (m *Manager) Logout(c *gin.Context) {
	s := sessions.Default(c)
	if user, ok := s.Get(sessionKeyUser).(string); ok && user != "" {
		m.recordActivity(c, jobs.EventLogout, user)
	}
	if err := m.destroySession(s); err != nil {
		log.Error().Err(err).Msg("failed to destroy session")
	}
	c.Redirect(http.StatusFound, "/login")
}

// ShowSecrets は GET /secrets のハンドラーです。RequireLogin の後ろに置きます。
func (m *Manager) ShowSecrets(c *gin.Context) {
	userID := c.GetString(ContextUserKey)
	ctx := c.Request.Context()

	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			_ = m.destroySession(sessions.Default(c))
			c.Redirect(http.StatusFound, "/login")
			return
		}
		log.Error().Err(err).Str("user", userID).Msg("failed to load user")
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{"error": msgSecretsFailed})
		return
	}

	var activity []jobs.Event
	if m.activity != nil {
		activity, err = m.activity.Recent(ctx, user.ID, recentActivityLimit)
		if err != nil {
			log.Warn().Err(err).Str("user", user.ID).Msg("failed to load activity")
			activity = nil
		}
	}

	c.HTML(http.StatusOK, "secrets.html", gin.H{
		"title":    "Secrets",
		"user":     user,
		"activity": activity,
	})
}

func (m *Manager) recordActivity(c *gin.Context, kind jobs.EventKind, userID string) {
	if m.activity == nil {
		return
	}
	event := jobs.Event{
		UserID:    userID,
		Kind:      kind,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		At:        m.now().UTC(),
	}
	// 記録の失敗で利用者の操作は失敗させない
	if err := m.activity.Record(c.Request.Context(), event); err != nil {
		log.Warn().Err(err).Str("user", userID).Str("kind", string(kind)).Msg("failed to record activity")
	}
}

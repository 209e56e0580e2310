package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/secrets/internal/config"
	"github.com/yourusername/secrets/internal/jobs"
	"github.com/yourusername/secrets/internal/session"
	"github.com/yourusername/secrets/internal/users"
	"github.com/yourusername/secrets/internal/views"
)

type stubActivity struct {
	mu        sync.Mutex
	events    []jobs.Event
	recordErr error
}

func (s *stubActivity) Record(ctx context.Context, event jobs.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	s.events = append(s.events, event)
	return nil
}

func (s *stubActivity) Recent(ctx context.Context, userID string, limit int) ([]jobs.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []jobs.Event
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if s.events[i].UserID == userID {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

func (s *stubActivity) kinds() []jobs.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]jobs.EventKind, 0, len(s.events))
	for _, e := range s.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// faultyStore は特定の操作だけ失敗させるためのラッパーです。
type faultyStore struct {
	users.Store
	createErr error
	findErr   error
	byIDErr   error
}

func (s *faultyStore) Create(ctx context.Context, user *users.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	return s.Store.Create(ctx, user)
}

func (s *faultyStore) FindByEmail(ctx context.Context, email string) (*users.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.Store.FindByEmail(ctx, email)
}

func (s *faultyStore) FindByID(ctx context.Context, id string) (*users.User, error) {
	if s.byIDErr != nil {
		return nil, s.byIDErr
	}
	return s.Store.FindByID(ctx, id)
}

type testClient struct {
	t      *testing.T
	router *gin.Engine
	jar    *cookiejar.Jar
}

var baseURL, _ = url.Parse("http://example.com/")

func newTestManager(t *testing.T, store users.Store, activity Activity) (*Manager, *testClient) {
	t.Helper()
	cfg := &config.Config{SessionSecret: "session-secret", JWTSecret: "jwt-secret"}
	return newTestManagerWithConfig(t, cfg, store, activity)
}

func newTestManagerWithConfig(t *testing.T, cfg *config.Config, store users.Store, activity Activity) (*Manager, *testClient) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := NewManager(cfg, store, activity)
	require.NoError(t, err)

	router := gin.New()
	require.NoError(t, router.SetTrustedProxies(nil))
	router.SetHTMLTemplate(views.MustParse())
	router.Use(session.Middleware(session.NewMemoryStore([]byte(cfg.SessionSecret), cfg.CookieSecure)))
	router.GET("/", m.ShowHome)
	router.GET("/register", m.ShowRegister)
	router.POST("/register", m.Register)
	router.GET("/login", m.ShowLogin)
	router.POST("/login", m.Login)
	router.GET("/secrets", m.RequireLogin(), m.ShowSecrets)
	router.POST("/logout", m.Logout)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return m, &testClient{t: t, router: router, jar: jar}
}

func (tc *testClient) do(req *http.Request) *httptest.ResponseRecorder {
	tc.t.Helper()
	for _, c := range tc.jar.Cookies(baseURL) {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	tc.router.ServeHTTP(rec, req)
	tc.jar.SetCookies(baseURL, rec.Result().Cookies())
	return rec
}

func (tc *testClient) get(path string) *httptest.ResponseRecorder {
	return tc.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (tc *testClient) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return tc.do(req)
}

func (tc *testClient) register(name, email, password string) *httptest.ResponseRecorder {
	return tc.post("/register", url.Values{"name": {name}, "email": {email}, "password": {password}})
}

func (tc *testClient) login(email, password string) *httptest.ResponseRecorder {
	return tc.post("/login", url.Values{"email": {email}, "password": {password}})
}

func sessionValue(c *gin.Context, key string) interface{} {
	return sessions.Default(c).Get(key)
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	require.Equal(t, http.StatusFound, rec.Code, "body=%s", rec.Body.String())
	assert.Equal(t, location, rec.Header().Get("Location"))
}

func TestPublicPages(t *testing.T) {
	_, tc := newTestManager(t, users.NewMemoryStore(), nil)
	for _, path := range []string{"/", "/register", "/login"} {
		rec := tc.get(path)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotContains(t, rec.Body.String(), `class="error"`, path)
	}
}

func TestRegisterLoginSecretsFlow(t *testing.T) {
	store := users.NewMemoryStore()
	activity := &stubActivity{}
	_, tc := newTestManager(t, store, activity)

	assertRedirect(t, tc.register("A", "a@b.com", "Abcdef1"), "/login")
	assert.Equal(t, 1, store.Len())

	stored, err := store.FindByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.NotEqual(t, "Abcdef1", stored.PasswordHash)

	assertRedirect(t, tc.login("a@b.com", "Abcdef1"), "/secrets")

	rec := tc.get("/secrets")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome, A")
	assert.Contains(t, rec.Body.String(), "a@b.com")
	assert.Contains(t, rec.Body.String(), "Recent activity")

	assert.Equal(t, []jobs.EventKind{jobs.EventRegister, jobs.EventLogin}, activity.kinds())
}

func TestRegisterAndLoginWithLongPassword(t *testing.T) {
	store := users.NewMemoryStore()
	_, tc := newTestManager(t, store, nil)
	password := "Abcdef1" + strings.Repeat("x", 70)

	assertRedirect(t, tc.register("A", "a@b.com", password), "/login")
	assert.Equal(t, 1, store.Len())

	assertRedirect(t, tc.login("a@b.com", password), "/secrets")
	assert.Equal(t, http.StatusOK, tc.get("/secrets").Code)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := users.NewMemoryStore()
	_, tc := newTestManager(t, store, nil)

	assertRedirect(t, tc.register("A", "a@b.com", "Abcdef1"), "/login")

	rec := tc.register("B", "a@b.com", "Xyzxyz9")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), msgEmailTaken)
	assert.Equal(t, 1, store.Len())
}

func TestRegisterDuplicateDetectedByStore(t *testing.T) {
	store := &faultyStore{Store: users.NewMemoryStore(), createErr: users.ErrEmailTaken}
	_, tc := newTestManager(t, store, nil)

	rec := tc.register("A", "a@b.com", "Abcdef1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), msgEmailTaken)
}

func TestRegisterRejectsInvalidInputBeforeWrite(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		message  string
	}{
		{"bad email", "not-an-email", "Abcdef1", msgInvalidEmail},
		{"too short", "a@b.com", "Ab1", msgWeakPassword},
		{"no upper", "a@b.com", "abcdef1", msgWeakPassword},
		{"no lower", "a@b.com", "ABCDEF1", msgWeakPassword},
		{"no digit", "a@b.com", "Abcdefg", msgWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := users.NewMemoryStore()
			_, tc := newTestManager(t, store, nil)

			rec := tc.register("A", tt.email, tt.password)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
			assert.Equal(t, 0, store.Len())
		})
	}
}

func TestRegisterStoreFailure(t *testing.T) {
	store := &faultyStore{Store: users.NewMemoryStore(), createErr: errors.New("connection refused")}
	_, tc := newTestManager(t, store, nil)

	rec := tc.register("A", "a@b.com", "Abcdef1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), msgRegisterFailed)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	_, tc := newTestManager(t, users.NewMemoryStore(), nil)
	assertRedirect(t, tc.register("A", "a@b.com", "Abcdef1"), "/login")

	for _, creds := range [][2]string{
		{"a@b.com", "Abcdef2"},
		{"other@b.com", "Abcdef1"},
	} {
		rec := tc.login(creds[0], creds[1])
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), msgInvalidCredentials)
	}

	assertRedirect(t, tc.get("/secrets"), "/login")
}

func TestLoginInvalidEmailFormat(t *testing.T) {
	_, tc := newTestManager(t, users.NewMemoryStore(), nil)

	rec := tc.login("nope", "Abcdef1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), msgInvalidEmail)
}

func TestLoginStoreFailure(t *testing.T) {
	store := &faultyStore{Store: users.NewMemoryStore(), findErr: errors.New("timeout")}
	_, tc := newTestManager(t, store, nil)

	rec := tc.login("a@b.com", "Abcdef1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), msgLoginFailed)
}

func TestLoginThrottle(t *testing.T) {
	_, tc := newTestManager(t, users.NewMemoryStore(), nil)
	assertRedirect(t, tc.register("A", "a@b.com", "Abcdef1"), "/login")

	for i := 0; i < maxLoginAttempts; i++ {
		rec := tc.login("a@b.com", "Wrong123")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := tc.login("a@b.com", "Abcdef1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), msgTooManyAttempts)
}

func TestSecretsRequiresLogin(t *testing.T) {
	_, tc := newTestManager(t, users.NewMemoryStore(), nil)
	assertRedirect(t, tc.get("/secrets"), "/login")
}

func TestSecretsExpiresAfterOneHour(t *testing.T) {
	m, tc := newTestManager(t, users.NewMemoryStore(), nil)
	assertRedirect(t, tc.register("A", "a@b.com", "Abcdef1"), "/login")
	assertRedirect(t, tc.login("a@b.com", "Abcdef1"), "/secrets")

	start := time.Now()
	m.now = func() time.Time { return start.Add(59 * time.Minute) }
	require.Equal(t, http.StatusOK, tc.get("/secrets").Code)

	// アクセスしても期限は延びない
	m.now = func() time.Time { return start.Add(61 * time.Minute) }
	assertRedirect(t, tc.get("/secrets"), "/login")

	m.now = time.Now
	assertRedirect(t, tc.get("/secrets"), "/login")
}

func TestLogoutInvalidatesSession(t *testing.T) {
	activity := &stubActivity{}
	_, tc := newTestManager(t, users.NewMemoryStore(), activity)
	assertRedirect(t, tc.register("A", "a@b.com", "Abcdef1"), "/login")
	assertRedirect(t, tc.login("a@b.com", "Abcdef1"), "/secrets")

	oldCookies := tc.jar.Cookies(baseURL)
	require.NotEmpty(t, oldCookies)

	assertRedirect(t, tc.post("/logout", nil), "/login")
	assertRedirect(t, tc.get("/secrets"), "/login")

	// ログアウト前のCookieを使い回しても保護ページには入れない
	req := httptest.NewRequest(http.MethodGet, "/secrets", nil)
	for _, c := range oldCookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	tc.router.ServeHTTP(rec, req)
	assertRedirect(t, rec, "/login")

	assert.Equal(t, []jobs.EventKind{jobs.EventRegister, jobs.EventLogin, jobs.EventLogout}, activity.kinds())
}

func TestLogoutWithoutSession(t *testing.T) {
	_, tc := newTestManager(t, users.NewMemoryStore(), nil)
	assertRedirect(t, tc.post("/logout", nil), "/login")
}

func TestLogoutDeletionCookieKeepsAttributes(t *testing.T) {
	cfg := &config.Config{SessionSecret: "session-secret", JWTSecret: "jwt-secret", CookieSecure: true}
	_, tc := newTestManagerWithConfig(t, cfg, users.NewMemoryStore(), nil)

	rec := httptest.NewRecorder()
	tc.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))
	assertRedirect(t, rec, "/login")

	var deleted *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			deleted = c
		}
	}
	require.NotNil(t, deleted, "deletion cookie not set")
	assert.Less(t, deleted.MaxAge, 0)
	assert.Equal(t, "/", deleted.Path)
	assert.True(t, deleted.Secure)
	assert.True(t, deleted.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, deleted.SameSite)
}

func TestSecretsUserMissing(t *testing.T) {
	store := &faultyStore{Store: users.NewMemoryStore()}
	_, tc := newTestManager(t, store, nil)
	assertRedirect(t, tc.register("A", "a@b.com", "Abcdef1"), "/login")
	assertRedirect(t, tc.login("a@b.com", "Abcdef1"), "/secrets")

	store.byIDErr = users.ErrNotFound
	assertRedirect(t, tc.get("/secrets"), "/login")

	store.byIDErr = nil
	assertRedirect(t, tc.get("/secrets"), "/login")
}

func TestSecretsStoreFailure(t *testing.T) {
	store := &faultyStore{Store: users.NewMemoryStore()}
	_, tc := newTestManager(t, store, nil)
	assertRedirect(t, tc.register("A", "a@b.com", "Abcdef1"), "/login")
	assertRedirect(t, tc.login("a@b.com", "Abcdef1"), "/secrets")

	store.byIDErr = errors.New("connection reset")
	rec := tc.get("/secrets")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), msgSecretsFailed)
}

func TestActivityFailureDoesNotBlockLogin(t *testing.T) {
	activity := &stubActivity{recordErr: errors.New("queue down")}
	_, tc := newTestManager(t, users.NewMemoryStore(), activity)

	assertRedirect(t, tc.register("A", "a@b.com", "Abcdef1"), "/login")
	assertRedirect(t, tc.login("a@b.com", "Abcdef1"), "/secrets")
	rec := tc.get("/secrets")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Recent activity")
}

func TestLoginStoresVerifiableToken(t *testing.T) {
	m, tc := newTestManager(t, users.NewMemoryStore(), nil)
	assertRedirect(t, tc.register("A", "a@b.com", "Abcdef1"), "/login")
	assertRedirect(t, tc.login("a@b.com", "Abcdef1"), "/secrets")

	user, err := m.users.FindByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)

	var token string
	tc.router.GET("/debug/token", func(c *gin.Context) {
		token, _ = sessionValue(c, sessionKeyToken).(string)
	})
	tc.get("/debug/token")

	userID, err := m.Tokens().Parse(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(nil, users.NewMemoryStore(), nil)
	require.Error(t, err)
	_, err = NewManager(&config.Config{JWTSecret: "x"}, nil, nil)
	require.Error(t, err)
	_, err = NewManager(&config.Config{}, users.NewMemoryStore(), nil)
	require.Error(t, err)
}

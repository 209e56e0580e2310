// Package main はWebサーバーのエントリーポイントです。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/secrets/internal/auth"
	"github.com/yourusername/secrets/internal/config"
	"github.com/yourusername/secrets/internal/logger"
	"github.com/yourusername/secrets/internal/session"
	"github.com/yourusername/secrets/internal/users"
	"github.com/yourusername/secrets/internal/views"
)

func main() {
	// 設定の読み込み（秘密鍵が無ければ起動しない）
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.GinMode, cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	opt, err := redis.ParseURL(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid DATABASE_URL")
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	// 接続できなくても起動は続け、個々のリクエストでエラーを返す
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Error().Err(err).Msg("database connection error")
	} else {
		log.Info().Msg("connected to database")
	}
	cancel()

	router, err := newRouter(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create router")
	}
	router.Use(session.Middleware(setupSessionStore(cfg)))

	if origins := cfg.AllowedOrigins(); len(origins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
		router.Use(cors.New(corsConfig))
	}

	router.GET("/health", handleHealth(rdb))

	activity, stopActivity := setupActivity(cfg, rdb)
	defer stopActivity()

	if err := setupRoutes(router, cfg, users.NewRedisStore(rdb), activity); err != nil {
		log.Fatal().Err(err).Msg("failed to set up routes")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("mode", cfg.GinMode).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

// newRouter は共通ミドルウェア・テンプレート・静的ファイルを設定したルーターを作成します。
// 信頼するプロキシ以外から届いた X-Forwarded-For は無視し、接続元アドレスを ClientIP とします。
func newRouter(cfg *config.Config) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies()); err != nil {
		return nil, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}
	router.Use(gin.Recovery(), logger.Middleware())
	router.SetHTMLTemplate(views.MustParse())
	router.StaticFS("/public", http.FS(views.Static()))
	return router, nil
}

// setupSessionStore は Redis のセッションストアを作成します。
// Redis に届かない場合はプロセス内ストアで起動を続けます。
func setupSessionStore(cfg *config.Config) sessions.Store {
	store, err := session.NewRedisStore(cfg.DatabaseURL, []byte(cfg.SessionSecret), cfg.CookieSecure)
	if err != nil {
		log.Error().Err(err).Msg("session store unavailable, falling back to in-memory sessions")
		return session.NewMemoryStore([]byte(cfg.SessionSecret), cfg.CookieSecure)
	}
	return store
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":  status,
			"service": "secrets",
		})
	}
}

// setupRoutes は画面とログイン保護の配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, store users.Store, activity auth.Activity) error {
	authManager, err := auth.NewManager(cfg, store, activity)
	if err != nil {
		return err
	}

	router.GET("/", authManager.ShowHome)
	router.GET("/register", authManager.ShowRegister)
	router.POST("/register", authManager.Register)
	router.GET("/login", authManager.ShowLogin)
	router.POST("/login", authManager.Login)
	router.POST("/logout", authManager.Logout)

	protected := router.Group("")
	protected.Use(authManager.RequireLogin())
	{
		protected.GET("/secrets", authManager.ShowSecrets)
	}
	return nil
}

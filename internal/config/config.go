// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// データストア設定
	DatabaseURL string // ユーザー・セッション・アクティビティを保存する Redis の接続URL

	// 認証設定
	SessionSecret string // セッションCookie署名用の秘密鍵
	JWTSecret     string // ログイン時に発行するトークンの署名鍵
	CookieSecure  bool   // セッションCookieに Secure 属性を付けるか

	// サーバー設定
	Port     string // HTTPサーバーのポート番号
	GinMode  string // Ginの実行モード (debug, release, test)
	LogLevel string // zerolog のログレベル

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り、空なら無効）

	// プロキシ設定
	TrustedProxiesList string // X-Forwarded-For を信頼するプロキシ（カンマ区切りのIP/CIDR、空なら信頼しない）

	// アクティビティログ設定
	ActivityEnabled        bool // ログイン履歴をキュー経由で記録するか
	ActivityRetentionHours int  // 履歴の保持時間（時間）
}

// Load は環境変数から設定を読み込みます。
// .env.local / .env ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		DatabaseURL: getEnv("DATABASE_URL", "redis://127.0.0.1:6379/0"),

		// 秘密鍵にはデフォルト値を持たせない
		SessionSecret: getEnv("SESSION_SECRET", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		CookieSecure:  getEnvAsBool("COOKIE_SECURE", false),

		Port:     getEnv("PORT", "3000"),
		GinMode:  getEnv("GIN_MODE", "debug"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		TrustedProxiesList: getEnv("TRUSTED_PROXIES", ""),

		ActivityEnabled:        getEnvAsBool("ACTIVITY_LOG_ENABLED", true),
		ActivityRetentionHours: getEnvAsInt("ACTIVITY_RETENTION_HOURS", 168),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	// 先に読み込んだ値が優先される
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	return nil
}

// AllowedOrigins はCORS許可オリジンを配列で返します。
func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// TrustedProxies は信頼するプロキシの一覧を返します。未設定なら nil で、転送ヘッダーは無視されます。
func (c *Config) TrustedProxies() []string {
	return splitList(c.TrustedProxiesList)
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// ActivityRetention はアクティビティ履歴の保持期間を返します。
func (c *Config) ActivityRetention() time.Duration {
	if c.ActivityRetentionHours <= 0 {
		return 168 * time.Hour
	}
	return time.Duration(c.ActivityRetentionHours) * time.Hour
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します。
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

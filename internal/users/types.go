// Package users は利用者アカウントの永続化を担います。
package users

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound は該当するユーザーが存在しないことを表します。
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken はメールアドレスが既に登録済みであることを表します。
	ErrEmailTaken = errors.New("email already registered")
)

// User は登録済みの利用者です。平文のパスワードは保持しません。
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store はユーザー情報の保存先です。
type Store interface {
	// Create は新しいユーザーを保存します。ID と CreatedAt が空なら採番します。
	// メールアドレスが使用済みなら ErrEmailTaken を返します。
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
}

// NormalizeEmail は検索キーとして使うメールアドレスを正規化します。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

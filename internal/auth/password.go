package auth

import "golang.org/x/crypto/bcrypt"

const (
	// passwordCost は bcrypt のコストです。既存ハッシュとの互換のため固定します。
	passwordCost = 10
	// maxPasswordBytes は bcrypt が扱える入力の上限です。超えた分は使いません。
	maxPasswordBytes = 72
)

// HashPassword は平文パスワードをソルト付きハッシュに変換します。
// 72バイトを超える部分は切り捨ててからハッシュ化します。
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(truncatePassword(plain), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword は平文パスワードがハッシュと一致するかを返します。
func VerifyPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), truncatePassword(plain)) == nil
}

func truncatePassword(plain string) []byte {
	b := []byte(plain)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}

package auth

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	validate = validator.New()

	// 改行を含まない6文字以上
	passwordLength = regexp.MustCompile(`^.{6,}$`)
	passwordLower  = regexp.MustCompile(`[a-z]`)
	passwordUpper  = regexp.MustCompile(`[A-Z]`)
	passwordDigit  = regexp.MustCompile(`[0-9]`)
)

// ValidEmail はメールアドレスの書式が正しいかを返します。
func ValidEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// ValidPassword はパスワードが構成ルールを満たすかを返します。
// 6文字以上で、英小文字・英大文字・数字をそれぞれ1文字以上含む必要があります。
func ValidPassword(password string) bool {
	return passwordLength.MatchString(password) &&
		passwordLower.MatchString(password) &&
		passwordUpper.MatchString(password) &&
		passwordDigit.MatchString(password)
}

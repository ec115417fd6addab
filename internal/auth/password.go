// Package auth は認証・認可機能を提供します。
package auth

import "golang.org/x/crypto/bcrypt"

// bcryptCost はパスワードハッシュのコストファクターです。
// 既存ユーザーのハッシュと互換性を保つため変更しないでください。
const bcryptCost = 12

// HashPassword は平文パスワードを bcrypt でハッシュ化します。
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword は平文パスワードとハッシュの一致を検証します。
// 比較の時間特性は bcrypt 側で保証されます。
func VerifyPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

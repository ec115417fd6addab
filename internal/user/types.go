// Package user はユーザー資格情報の永続化を提供します。
package user

import (
	"errors"
	"time"
)

// Role はユーザーの権限区分を表します。
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Record はユーザーの現在状態を表します。
// PasswordHash には bcrypt ハッシュのみを保存し、平文は決して保持しません。
type Record struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsAdmin は管理者権限を持つかどうかを返します。
func (r *Record) IsAdmin() bool {
	return r != nil && r.Role == RoleAdmin
}

var (
	// ErrDuplicateEmail は既存ユーザーとメールアドレスが重複した場合に返されます。
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrNotFound は対象ユーザーが存在しない場合に返されます。
	ErrNotFound = errors.New("user not found")
)

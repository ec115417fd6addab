// Package audit は認証イベントの監査ログを提供します。
package audit

import "time"

// Kind はイベントの種別を表します。
type Kind string

const (
	KindSignup      Kind = "signup"
	KindLogin       Kind = "login"
	KindLoginFailed Kind = "login_failed"
	KindLogout      Kind = "logout"
	KindPromote     Kind = "promote"
	KindDemote      Kind = "demote"
)

// Event は1件の監査イベントを表します。
type Event struct {
	ID     string    `json:"id"`
	Kind   Kind      `json:"kind"`
	Target string    `json:"target,omitempty"` // 対象ユーザー名（特定できない場合は空）
	Email  string    `json:"email,omitempty"`
	Actor  string    `json:"actor,omitempty"` // 操作を行った管理者（権限変更時のみ）
	IP     string    `json:"ip,omitempty"`
	At     time.Time `json:"at"`
}

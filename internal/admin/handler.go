// Package admin は管理者向けのユーザー管理機能を提供します。
package admin

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/membergate/internal/audit"
	"github.com/yourusername/membergate/internal/auth"
	"github.com/yourusername/membergate/internal/user"
)

// UserDirectory は管理画面が必要とするユーザー操作を提供します。
type UserDirectory interface {
	ListAll(ctx context.Context) ([]*user.Record, error)
	UpdateRole(ctx context.Context, username string, role user.Role) (*user.Record, error)
}

// AuditLog は監査イベントの記録と参照を提供します。
type AuditLog interface {
	RecordWithActor(ctx context.Context, kind, target, email, actor, ip string)
	Recent(ctx context.Context, n int64) ([]*audit.Event, error)
}

// Handler は /admin 配下のハンドラー群です。
// 認証・権限チェックはミドルウェア（RequireLogin + RequireAdmin）側で済んでいる前提です。
type Handler struct {
	users  UserDirectory
	audit  AuditLog
	logger *log.Logger
}

// NewHandler は Handler を作成します。audit は nil でも動作します。
func NewHandler(users UserDirectory, audit AuditLog, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		users:  users,
		audit:  audit,
		logger: logger,
	}
}

type roleForm struct {
	Username string `form:"username" binding:"required,alphanum,max=20"`
}

// Dashboard は GET /admin のハンドラーです。全ユーザーと直近の監査イベントを表示します。
func (h *Handler) Dashboard(c *gin.Context) {
	records, err := h.users.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Printf("failed to list users: %v", err)
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Status":  http.StatusInternalServerError,
			"Message": "ユーザー一覧の取得に失敗しました。",
		})
		return
	}

	var events []*audit.Event
	if h.audit != nil {
		events, err = h.audit.Recent(c.Request.Context(), 50)
		if err != nil {
			// 監査ログが読めなくてもユーザー管理は継続できるようにする
			h.logger.Printf("failed to load audit events: %v", err)
			events = nil
		}
	}

	csrf, _ := c.Get(auth.ContextCSRFKey)
	c.HTML(http.StatusOK, "admin.html", gin.H{
		"Users":  records,
		"Events": events,
		"CSRF":   csrf,
	})
}

// Promote は POST /promoteUser のハンドラーです。
func (h *Handler) Promote(c *gin.Context) {
	h.setRole(c, user.RoleAdmin, "promote")
}

// Demote は POST /demoteUser のハンドラーです。
func (h *Handler) Demote(c *gin.Context) {
	h.setRole(c, user.RoleUser, "demote")
}

func (h *Handler) setRole(c *gin.Context, role user.Role, kind string) {
	var form roleForm
	if err := c.ShouldBind(&form); err != nil {
		c.HTML(http.StatusUnprocessableEntity, "error.html", gin.H{
			"Status":  http.StatusUnprocessableEntity,
			"Message": "入力内容が正しくありません。",
		})
		return
	}

	record, err := h.users.UpdateRole(c.Request.Context(), form.Username, role)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			c.HTML(http.StatusNotFound, "error.html", gin.H{
				"Status":  http.StatusNotFound,
				"Message": "指定されたユーザーは存在しません。",
			})
			return
		}
		h.logger.Printf("failed to update role username=%s: %v", form.Username, err)
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Status":  http.StatusInternalServerError,
			"Message": "権限の変更に失敗しました。",
		})
		return
	}

	if h.audit != nil {
		actor, _ := auth.CurrentUsername(c)
		h.audit.RecordWithActor(c.Request.Context(), kind, record.Username, record.Email, actor, c.ClientIP())
	}
	c.Redirect(http.StatusSeeOther, "/admin")
}

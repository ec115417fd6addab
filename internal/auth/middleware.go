package auth

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/membergate/internal/user"
)

// ContextUserKey は、ハンドラー間でログイン済みユーザー名を共有するためのキーです。
const ContextUserKey = "auth.user"

// ContextCSRFKey は、フォーム描画用のCSRFトークンを共有するためのキーです。
const ContextCSRFKey = "auth.csrf"

// csrfFormField はフォームに埋め込むCSRFトークンのフィールド名です。
const csrfFormField = "_csrf"

// RoleFinder は権限判定に必要なユーザー検索を提供します。
type RoleFinder interface {
	FindByUsername(ctx context.Context, username string) (*user.Record, error)
}

// RequireLogin はセッションを検証するミドルウェアを返します。
// 未認証・期限切れの場合はログインページへリダイレクトします。
// 検証に成功するとユーザー名とCSRFトークンをコンテキストに載せます。
func (m *SessionManager) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		record, err := m.Current(c)
		if err != nil {
			renderError(c, http.StatusInternalServerError, "セッション情報の取得に失敗しました。")
			c.Abort()
			return
		}
		if record == nil {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		c.Set(ContextUserKey, record.Username)
		c.Set(ContextCSRFKey, record.CSRFToken)
		c.Next()
	}
}

// RequireAdmin は admin 権限を要求するミドルウェアを返します。
// 必ず RequireLogin の後段に配線してください。セッションではなく
// RequireLogin が確定させたユーザー名だけを入力として扱います。
func RequireAdmin(users RoleFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := CurrentUsername(c)
		if !ok {
			// RequireLogin を経由していない配線ミス
			renderError(c, http.StatusInternalServerError, "認証情報が確定していません。")
			c.Abort()
			return
		}

		record, err := users.FindByUsername(c.Request.Context(), username)
		if err != nil {
			renderError(c, http.StatusInternalServerError, "ユーザー情報の取得に失敗しました。")
			c.Abort()
			return
		}
		if !record.IsAdmin() {
			renderError(c, http.StatusForbidden, "このページを表示する権限がありません。")
			c.Abort()
			return
		}
		c.Next()
	}
}

// VerifyFormToken はフォームの hidden フィールドでダブルサブミットされた
// CSRFトークンを検証するミドルウェアです。RequireLogin の後段に配線してください。
func VerifyFormToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		expected, ok := c.Get(ContextCSRFKey)
		expectedToken, _ := expected.(string)
		if !ok || expectedToken == "" {
			renderError(c, http.StatusForbidden, "CSRFトークンが設定されていません。")
			c.Abort()
			return
		}

		received := c.PostForm(csrfFormField)
		if subtle.ConstantTimeCompare([]byte(expectedToken), []byte(received)) != 1 {
			renderError(c, http.StatusForbidden, "CSRFトークンが一致しません。")
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUsername は RequireLogin が確定させたユーザー名を取り出します。
func CurrentUsername(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return "", false
	}
	username, ok := v.(string)
	if !ok || username == "" {
		return "", false
	}
	return username, true
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

func renderError(c *gin.Context, status int, message string) {
	c.HTML(status, "error.html", gin.H{
		"Status":  status,
		"Message": message,
	})
}

package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/membergate/internal/user"
)

// CredentialStore は認証フローが必要とするユーザー操作を提供します。
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*user.Record, error)
	Insert(ctx context.Context, username, email, passwordHash string, role user.Role) (*user.Record, error)
}

// SessionStore はセッションの確立・破棄を提供します。
type SessionStore interface {
	Establish(c *gin.Context, username string) (*SessionRecord, error)
	Current(c *gin.Context) (*SessionRecord, error)
	Destroy(c *gin.Context) (string, error)
}

// EventRecorder は監査イベントの記録を提供します。
type EventRecorder interface {
	Record(ctx context.Context, kind, target, email, ip string)
}

// Handler はサインアップ・ログイン・ログアウトのハンドラー群です。
type Handler struct {
	users    CredentialStore
	sessions SessionStore
	limiter  *loginLimiter
	audit    EventRecorder
	logger   *log.Logger
}

// NewHandler は Handler を作成します。audit は nil でも動作します。
func NewHandler(users CredentialStore, sessions SessionStore, audit EventRecorder, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		users:    users,
		sessions: sessions,
		limiter:  newLoginLimiter(),
		audit:    audit,
		logger:   logger,
	}
}

type signupForm struct {
	Username string `form:"username" binding:"required,alphanum,max=20"`
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required,max=20"`
}

type loginForm struct {
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required,max=20"`
}

// ShowSignup は GET /signup のハンドラーです。
func (h *Handler) ShowSignup(c *gin.Context) {
	c.HTML(http.StatusOK, "signup.html", gin.H{})
}

// ShowLogin は GET /login のハンドラーです。
func (h *Handler) ShowLogin(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{})
}

// CreateUser は POST /createUser のハンドラーです。
// 入力検証 → メール重複チェック → ハッシュ化 → 登録 → セッション確立、の順で処理し、
// 成功時はそのまま認証済みとしてメンバーページへ誘導します。
func (h *Handler) CreateUser(c *gin.Context) {
	var form signupForm
	if err := c.ShouldBind(&form); err != nil {
		c.HTML(http.StatusUnprocessableEntity, "signup.html", gin.H{
			"Error": "入力内容が正しくありません。",
		})
		return
	}

	existing, err := h.users.FindByEmail(c.Request.Context(), form.Email)
	if err != nil {
		h.logger.Printf("failed to check email: %v", err)
		renderError(c, http.StatusInternalServerError, "登録処理に失敗しました。")
		return
	}
	if existing != nil {
		c.HTML(http.StatusConflict, "signup.html", gin.H{
			"Error": "このメールアドレスは既に登録されています。",
		})
		return
	}

	hash, err := HashPassword(form.Password)
	if err != nil {
		h.logger.Printf("failed to hash password: %v", err)
		renderError(c, http.StatusInternalServerError, "登録処理に失敗しました。")
		return
	}

	record, err := h.users.Insert(c.Request.Context(), form.Username, form.Email, hash, user.RoleUser)
	if err != nil {
		// 事前チェック後に同時登録で先を越された場合もここで拒否される
		if errors.Is(err, user.ErrDuplicateEmail) {
			c.HTML(http.StatusConflict, "signup.html", gin.H{
				"Error": "このメールアドレスは既に登録されています。",
			})
			return
		}
		h.logger.Printf("failed to insert user: %v", err)
		renderError(c, http.StatusInternalServerError, "登録処理に失敗しました。")
		return
	}

	if _, err := h.sessions.Establish(c, record.Username); err != nil {
		h.logger.Printf("failed to establish session: %v", err)
		renderError(c, http.StatusInternalServerError, "セッションの確立に失敗しました。")
		return
	}

	h.record(c, "signup", record.Username, record.Email)
	c.Redirect(http.StatusSeeOther, "/members")
}

// LoggingIn は POST /loggingin のハンドラーです。
func (h *Handler) LoggingIn(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		c.HTML(http.StatusUnprocessableEntity, "login.html", gin.H{
			"Error": "入力内容が正しくありません。",
		})
		return
	}

	ip := c.ClientIP()
	if retryAfter := h.limiter.checkLock(ip); retryAfter > 0 {
		c.Header("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
		c.HTML(http.StatusTooManyRequests, "login.html", gin.H{
			"Error": "試行回数の上限に達しました。しばらく時間をおいて再度お試しください。",
		})
		return
	}

	record, err := h.users.FindByEmail(c.Request.Context(), form.Email)
	if err != nil {
		h.logger.Printf("failed to find user by email: %v", err)
		renderError(c, http.StatusInternalServerError, "ログイン処理に失敗しました。")
		return
	}
	if record == nil {
		h.limiter.recordFailure(ip)
		h.record(c, "login_failed", "", form.Email)
		c.HTML(http.StatusUnauthorized, "login.html", gin.H{
			"Error": "このメールアドレスは登録されていません。",
		})
		return
	}

	if !VerifyPassword(form.Password, record.PasswordHash) {
		h.limiter.recordFailure(ip)
		h.record(c, "login_failed", record.Username, record.Email)
		c.HTML(http.StatusUnauthorized, "login.html", gin.H{
			"Error": "パスワードが正しくありません。",
		})
		return
	}

	h.limiter.reset(ip)

	if _, err := h.sessions.Establish(c, record.Username); err != nil {
		h.logger.Printf("failed to establish session: %v", err)
		renderError(c, http.StatusInternalServerError, "セッションの確立に失敗しました。")
		return
	}

	h.record(c, "login", record.Username, record.Email)
	c.Redirect(http.StatusSeeOther, "/members")
}

// Logout は GET /logout のハンドラーです。
func (h *Handler) Logout(c *gin.Context) {
	username, err := h.sessions.Destroy(c)
	if err != nil {
		h.logger.Printf("failed to destroy session: %v", err)
		renderError(c, http.StatusInternalServerError, "ログアウト処理に失敗しました。")
		return
	}
	if username != "" {
		h.record(c, "logout", username, "")
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) record(c *gin.Context, kind, target, email string) {
	if h.audit == nil {
		return
	}
	h.audit.Record(c.Request.Context(), kind, target, email, c.ClientIP())
}

package web

import (
	"fmt"
	"log"
	"math/rand"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/membergate/internal/auth"
)

// SessionReader はランディングページの出し分けに必要なセッション参照を提供します。
type SessionReader interface {
	Current(c *gin.Context) (*auth.SessionRecord, error)
}

// Handler はトップページ・メンバーページ等の描画ハンドラー群です。
type Handler struct {
	sessions SessionReader
	logger   *log.Logger
}

// NewHandler は Handler を作成します。
func NewHandler(sessions SessionReader, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		sessions: sessions,
		logger:   logger,
	}
}

// Landing は GET / のハンドラーです。セッション状態でページを出し分けます。
func (h *Handler) Landing(c *gin.Context) {
	record, err := h.sessions.Current(c)
	if err != nil {
		h.logger.Printf("failed to load session: %v", err)
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Status":  http.StatusInternalServerError,
			"Message": "セッション情報の取得に失敗しました。",
		})
		return
	}

	if record == nil {
		c.HTML(http.StatusOK, "index.html", gin.H{})
		return
	}
	c.HTML(http.StatusOK, "index.html", gin.H{
		"LoggedIn": true,
		"Username": record.Username,
	})
}

// Members は GET /members のハンドラーです。RequireLogin の後段に配線してください。
func (h *Handler) Members(c *gin.Context) {
	username, ok := auth.CurrentUsername(c)
	if !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	// 3枚の画像からランダムに1枚表示する
	image := fmt.Sprintf("/public/image%d.png", rand.Intn(3)+1)
	c.HTML(http.StatusOK, "members.html", gin.H{
		"Username": username,
		"Image":    image,
	})
}

// NotFound は未定義ルートのハンドラーです。
func (h *Handler) NotFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "notfound.html", gin.H{})
}

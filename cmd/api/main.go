// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/membergate/internal/admin"
	"github.com/yourusername/membergate/internal/auth"
	"github.com/yourusername/membergate/internal/config"
	"github.com/yourusername/membergate/internal/user"
	"github.com/yourusername/membergate/internal/web"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// Redisクライアントの初期化と疎通確認
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to parse redis url: %v", err)
	}
	rdb := redis.NewClient(opt)

	userStore := user.NewStore(rdb)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := userStore.Ping(pingCtx); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}

	// 初期管理者の昇格（未実施の場合のみ一度だけ実行される）
	if cfg.SeedAdminUsername != "" {
		promoted, err := userStore.SeedAdmin(pingCtx, cfg.SeedAdminUsername)
		if err != nil {
			log.Fatalf("Failed to seed admin user: %v", err)
		}
		if promoted {
			log.Printf("Seeded admin user: %s", cfg.SeedAdminUsername)
		}
	}

	sessionManager := auth.NewSessionManager(rdb, time.Duration(cfg.SessionExpireHours)*time.Hour)

	// 監査ログワーカーの起動
	auditManager, err := setupAudit(cfg, rdb)
	if err != nil {
		log.Fatalf("Failed to setup audit: %v", err)
	}
	auditManager.StartWorkers()

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()
	router.SetHTMLTemplate(web.Templates())

	// セッションクッキーの設定（クッキーには不透明なセッションIDのみを載せる）
	secret := cfg.SessionSecret
	if secret == "" {
		// ローカル開発向け。再起動すると既存セッションは無効になる
		secret = generateDevSecret()
		log.Printf("SESSION_SECRET is not set; using a generated development secret")
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   sessionManager.MaxAgeSeconds(),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteStrictMode,
	})
	router.Use(sessions.Sessions(auth.SessionCookieName, store))

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowCredentials = true

	router.Use(cors.New(corsConfig))

	// 静的ファイル（メンバーページの画像など）
	router.Static("/public", "./public")

	// ルーティングの設定
	authHandler := auth.NewHandler(userStore, sessionManager, auditManager, log.Default())
	webHandler := web.NewHandler(sessionManager, log.Default())
	adminHandler := admin.NewHandler(userStore, auditManager, log.Default())
	setupRoutes(router, sessionManager, userStore, authHandler, webHandler, adminHandler)

	// サーバーの起動と明示的なシャットダウン
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Printf("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := auditManager.Shutdown(shutdownCtx); err != nil {
		log.Printf("Audit shutdown error: %v", err)
	}
	if err := rdb.Close(); err != nil {
		log.Printf("Redis close error: %v", err)
	}
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "membergate-api",
		"version": "0.1.0",
	})
}

// setupRoutes はルートと認証ガードの配線を行います。
// 権限ガード（RequireAdmin）は必ず RequireLogin の後段に置きます。
func setupRoutes(
	router *gin.Engine,
	sessionManager *auth.SessionManager,
	userStore *user.Store,
	authHandler *auth.Handler,
	webHandler *web.Handler,
	adminHandler *admin.Handler,
) {
	router.GET("/health", handleHealth)

	// 公開ルート
	router.GET("/", webHandler.Landing)
	router.GET("/signup", authHandler.ShowSignup)
	router.GET("/login", authHandler.ShowLogin)
	router.POST("/createUser", authHandler.CreateUser)
	router.POST("/loggingin", authHandler.LoggingIn)
	router.GET("/logout", authHandler.Logout)

	// 認証必須ルート
	members := router.Group("")
	members.Use(sessionManager.RequireLogin())
	{
		members.GET("/members", webHandler.Members)
	}

	// 管理者ルート
	adminRoutes := router.Group("")
	adminRoutes.Use(sessionManager.RequireLogin(), auth.RequireAdmin(userStore))
	{
		adminRoutes.GET("/admin", adminHandler.Dashboard)
		adminRoutes.POST("/promoteUser", auth.VerifyFormToken(), adminHandler.Promote)
		adminRoutes.POST("/demoteUser", auth.VerifyFormToken(), adminHandler.Demote)
	}

	router.NoRoute(webHandler.NotFound)
}

func generateDevSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("Failed to generate session secret: %v", err)
	}
	return hex.EncodeToString(buf)
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/membergate/internal/user"
)

type stubRoleFinder struct {
	records map[string]*user.Record
	err     error
}

func (s *stubRoleFinder) FindByUsername(ctx context.Context, username string) (*user.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records[username], nil
}

func identityMiddleware(username string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextUserKey, username)
		c.Next()
	}
}

func okHandler(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func TestRequireAdminAllowsAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	finder := &stubRoleFinder{
		records: map[string]*user.Record{
			"root": {Username: "root", Role: user.RoleAdmin},
		},
	}

	router := gin.New()
	router.SetHTMLTemplate(testTemplates())
	router.GET("/admin", identityMiddleware("root"), RequireAdmin(finder), okHandler)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRequireAdminDeniesNonAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	finder := &stubRoleFinder{
		records: map[string]*user.Record{
			"alice": {Username: "alice", Role: user.RoleUser},
		},
	}

	router := gin.New()
	router.SetHTMLTemplate(testTemplates())
	router.GET("/admin", identityMiddleware("alice"), RequireAdmin(finder), okHandler)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRequireAdminDeniesUnknownUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	finder := &stubRoleFinder{}

	router := gin.New()
	router.SetHTMLTemplate(testTemplates())
	router.GET("/admin", identityMiddleware("ghost"), RequireAdmin(finder), okHandler)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRequireAdminWithoutIdentityFails(t *testing.T) {
	// RequireLogin を経由していない配線はリクエストを通してはならない
	gin.SetMode(gin.TestMode)
	finder := &stubRoleFinder{
		records: map[string]*user.Record{
			"root": {Username: "root", Role: user.RoleAdmin},
		},
	}

	router := gin.New()
	router.SetHTMLTemplate(testTemplates())
	router.GET("/admin", RequireAdmin(finder), okHandler)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRequireAdminStoreError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	finder := &stubRoleFinder{err: errors.New("store down")}

	router := gin.New()
	router.SetHTMLTemplate(testTemplates())
	router.GET("/admin", identityMiddleware("root"), RequireAdmin(finder), okHandler)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
}

func csrfMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextCSRFKey, token)
		c.Next()
	}
}

func TestVerifyFormTokenMatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.SetHTMLTemplate(testTemplates())
	router.POST("/submit", csrfMiddleware("token-1"), VerifyFormToken(), okHandler)

	form := url.Values{"_csrf": {"token-1"}}
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestVerifyFormTokenMismatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.SetHTMLTemplate(testTemplates())
	router.POST("/submit", csrfMiddleware("token-1"), VerifyFormToken(), okHandler)

	form := url.Values{"_csrf": {"token-2"}}
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestVerifyFormTokenSkipsSafeMethods(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.SetHTMLTemplate(testTemplates())
	router.GET("/view", VerifyFormToken(), okHandler)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/view", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
}

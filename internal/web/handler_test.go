package web

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/membergate/internal/auth"
)

type stubSessionReader struct {
	record *auth.SessionRecord
	err    error
}

func (s *stubSessionReader) Current(c *gin.Context) (*auth.SessionRecord, error) {
	return s.record, s.err
}

func newWebTestRouter(sessions *stubSessionReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.SetHTMLTemplate(Templates())

	handler := NewHandler(sessions, nil)
	router.GET("/", handler.Landing)
	router.GET("/members", func(c *gin.Context) {
		c.Set(auth.ContextUserKey, "alice")
		c.Next()
	}, handler.Members)
	router.NoRoute(handler.NotFound)
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLandingLoggedOut(t *testing.T) {
	router := newWebTestRouter(&stubSessionReader{})

	rec := get(router, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "/signup") || !strings.Contains(body, "/login") {
		t.Fatalf("expected signup and login links, got %s", body)
	}
	if strings.Contains(body, "/logout") {
		t.Fatal("logged-out landing must not show a logout link")
	}
}

func TestLandingLoggedIn(t *testing.T) {
	router := newWebTestRouter(&stubSessionReader{
		record: &auth.SessionRecord{Authenticated: true, Username: "alice"},
	})

	rec := get(router, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "alice") {
		t.Fatalf("expected the username in the view, got %s", body)
	}
	if !strings.Contains(body, "/logout") || !strings.Contains(body, "/members") {
		t.Fatalf("expected members and logout links, got %s", body)
	}
}

func TestLandingStoreError(t *testing.T) {
	router := newWebTestRouter(&stubSessionReader{err: errors.New("redis down")})

	rec := get(router, "/")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("infrastructure failure must surface as 5xx, got %d", rec.Code)
	}
}

func TestMembersShowsImage(t *testing.T) {
	router := newWebTestRouter(&stubSessionReader{})

	rec := get(router, "/members")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "alice") {
		t.Fatalf("expected the username in the view, got %s", body)
	}
	if !strings.Contains(body, "/public/image") {
		t.Fatalf("expected a member image, got %s", body)
	}
}

func TestNotFound(t *testing.T) {
	router := newWebTestRouter(&stubSessionReader{})

	rec := get(router, "/no-such-page")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

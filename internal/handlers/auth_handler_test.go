package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"folio/internal/middleware"
	"folio/internal/state"
	"folio/internal/testutil"
	"folio/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

func newContainer() *state.Container {
	return state.NewContainer(testutil.NewMemoryGateway(), zap.NewNop().Sugar(), time.Second)
}

func setupAuthRouter(h *AuthHandler) *gin.Engine {
	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	return r
}

// injectOwner stands in for AuthMiddleware in handler tests.
func injectOwner(ownerID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.OwnerIDKey, ownerID)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := parseJSON(t, rec)
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestRegister(t *testing.T) {
	t.Run("first_owner_becomes_master", func(t *testing.T) {
		c := newContainer()
		r := setupAuthRouter(NewAuthHandler(c))

		rec := doRequest(r, http.MethodPost, "/auth/register",
			`{"email":"kay@example.com","password":"longenough1","name":"Kay"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		body := parseJSON(t, rec)
		owner := body["owner"].(map[string]interface{})
		if owner["role"] != "master" {
			t.Errorf("expected first owner to be master, got %v", owner["role"])
		}
		if body["token"] == "" {
			t.Error("expected a token")
		}
	})

	t.Run("second_owner_defaults_to_owner_role", func(t *testing.T) {
		c := newContainer()
		r := setupAuthRouter(NewAuthHandler(c))
		doRequest(r, http.MethodPost, "/auth/register",
			`{"email":"first@example.com","password":"longenough1"}`)

		rec := doRequest(r, http.MethodPost, "/auth/register",
			`{"email":"second@example.com","password":"longenough1"}`)
		owner := parseJSON(t, rec)["owner"].(map[string]interface{})
		if owner["role"] != "owner" {
			t.Errorf("expected owner role, got %v", owner["role"])
		}
	})

	t.Run("duplicate_email", func(t *testing.T) {
		c := newContainer()
		r := setupAuthRouter(NewAuthHandler(c))
		doRequest(r, http.MethodPost, "/auth/register",
			`{"email":"kay@example.com","password":"longenough1"}`)

		rec := doRequest(r, http.MethodPost, "/auth/register",
			`{"email":"KAY@example.com","password":"longenough1"}`)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		if code := errorCode(t, rec); code != "DUPLICATE_EMAIL" {
			t.Errorf("expected DUPLICATE_EMAIL, got %s", code)
		}
	})

	t.Run("short_password_rejected", func(t *testing.T) {
		c := newContainer()
		r := setupAuthRouter(NewAuthHandler(c))
		rec := doRequest(r, http.MethodPost, "/auth/register",
			`{"email":"kay@example.com","password":"short"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestLogin(t *testing.T) {
	register := func(t *testing.T) (*state.Container, *gin.Engine) {
		t.Helper()
		c := newContainer()
		r := setupAuthRouter(NewAuthHandler(c))
		rec := doRequest(r, http.MethodPost, "/auth/register",
			`{"email":"kay@example.com","password":"longenough1","name":"Kay"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("register failed: %s", rec.Body.String())
		}
		return c, r
	}

	t.Run("valid_credentials", func(t *testing.T) {
		_, r := register(t)
		rec := doRequest(r, http.MethodPost, "/auth/login",
			`{"email":"kay@example.com","password":"longenough1"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if parseJSON(t, rec)["token"] == "" {
			t.Error("expected a token")
		}
	})

	t.Run("wrong_password", func(t *testing.T) {
		_, r := register(t)
		rec := doRequest(r, http.MethodPost, "/auth/login",
			`{"email":"kay@example.com","password":"wrongpassword"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if code := errorCode(t, rec); code != "INVALID_CREDENTIALS" {
			t.Errorf("expected INVALID_CREDENTIALS, got %s", code)
		}
	})

	t.Run("unknown_email", func(t *testing.T) {
		_, r := register(t)
		rec := doRequest(r, http.MethodPost, "/auth/login",
			`{"email":"nobody@example.com","password":"longenough1"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

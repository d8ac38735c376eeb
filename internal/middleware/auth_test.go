package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nailerHeum/AjouNICE/internal/service"
)

func setupAuthRouter(t *testing.T, seen **service.Identity) (*gin.Engine, service.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	auth := service.NewAuthService(service.NewJWTService("test-secret-key-at-least-32-chars", time.Hour))
	r := gin.New()
	r.Use(Auth(auth, slog.Default()))
	r.POST("/graphql", func(c *gin.Context) {
		*seen = service.IdentityFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})
	return r, auth
}

func TestAuth(t *testing.T) {
	var seen *service.Identity
	r, auth := setupAuthRouter(t, &seen)

	token, err := auth.IssueToken(service.Identity{UserIdx: 42, UserID: "alice"})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	tests := []struct {
		name        string
		header      string
		wantStatus  int
		wantUserIdx int64
	}{
		{name: "anonymous", header: "", wantStatus: http.StatusOK},
		{name: "non-bearer scheme stays anonymous", header: "Basic abc", wantStatus: http.StatusOK},
		{name: "valid token", header: "Bearer " + token, wantStatus: http.StatusOK, wantUserIdx: 42},
		{name: "forged token", header: "Bearer not.a.jwt", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				var body struct {
					Errors []struct {
						Extensions map[string]string `json:"extensions"`
					} `json:"errors"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
					t.Fatalf("invalid body: %v", err)
				}
				if len(body.Errors) != 1 || body.Errors[0].Extensions["code"] != "UNAUTHENTICATED" {
					t.Errorf("unexpected body: %s", w.Body.String())
				}
				if seen != nil {
					t.Error("handler ran for a rejected token")
				}
				return
			}
			switch {
			case tt.wantUserIdx == 0 && seen != nil:
				t.Errorf("expected anonymous request, got %+v", seen)
			case tt.wantUserIdx != 0 && (seen == nil || seen.UserIdx != tt.wantUserIdx):
				t.Errorf("identity = %+v, want user %d", seen, tt.wantUserIdx)
			}
		})
	}
}

func TestTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name         string
		upgrade      bool
		wantDeadline bool
	}{
		{name: "plain request gets a deadline", wantDeadline: true},
		{name: "websocket upgrade keeps parent context", upgrade: true, wantDeadline: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ctx context.Context
			r := gin.New()
			r.Use(Timeout(time.Second))
			r.GET("/graphql", func(c *gin.Context) {
				ctx = c.Request.Context()
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/graphql", nil)
			if tt.upgrade {
				req.Header.Set("Upgrade", "websocket")
				req.Header.Set("Connection", "keep-alive, Upgrade")
			}
			r.ServeHTTP(httptest.NewRecorder(), req)

			_, hasDeadline := ctx.Deadline()
			if hasDeadline != tt.wantDeadline {
				t.Errorf("deadline present = %v, want %v", hasDeadline, tt.wantDeadline)
			}
		})
	}
}

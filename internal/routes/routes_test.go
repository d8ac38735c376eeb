package routes

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nailerHeum/AjouNICE/internal/config"
	"github.com/nailerHeum/AjouNICE/internal/handlers"
	"github.com/nailerHeum/AjouNICE/internal/metrics"
	"github.com/nailerHeum/AjouNICE/internal/service"
	"github.com/nailerHeum/AjouNICE/internal/storage"
)

type noFiles struct{}

func (noFiles) Open(ctx context.Context, key string) (*storage.Object, error) {
	return nil, storage.ErrNotFound
}

func setupRouter(t *testing.T, playground bool) (*gin.Engine, service.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		GraphQLPath:      "/graphql",
		RequestTimeout:   time.Second,
		AllowedOrigins:   []string{"https://ajounice.com"},
		EnablePlayground: playground,
	}
	auth := service.NewAuthService(service.NewJWTService("test-secret-key-at-least-32-chars", time.Hour))

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if service.IdentityFromContext(r.Context()) != nil {
			_, _ = w.Write([]byte("authenticated"))
			return
		}
		_, _ = w.Write([]byte("anonymous"))
	})

	reg := prometheus.NewRegistry()
	router := gin.New()
	Setup(router, Handlers{
		GraphQL: handlers.NewGraphQLHandler(echo, "/graphql"),
		Files:   handlers.NewFileHandler(noFiles{}, slog.Default()),
		Health:  handlers.NewHealthHandler(map[string]handlers.Check{}),
	}, cfg, auth, metrics.New(reg), reg, slog.Default())
	return router, auth
}

func TestSetup_Routes(t *testing.T) {
	router, auth := setupRouter(t, false)
	token, err := auth.IssueToken(service.Identity{UserIdx: 1})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	tests := []struct {
		name       string
		method     string
		path       string
		authHeader string
		wantStatus int
		wantBody   string
	}{
		{name: "health", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK},
		{name: "missing file", method: http.MethodGet, path: "/files/board/x.png", wantStatus: http.StatusNotFound},
		{name: "anonymous graphql", method: http.MethodPost, path: "/graphql", wantStatus: http.StatusOK, wantBody: "anonymous"},
		{name: "authenticated graphql", method: http.MethodPost, path: "/graphql", authHeader: "Bearer " + token, wantStatus: http.StatusOK, wantBody: "authenticated"},
		{name: "forged token", method: http.MethodPost, path: "/graphql", authHeader: "Bearer forged", wantStatus: http.StatusUnauthorized},
		{name: "playground disabled", method: http.MethodGet, path: "/playground", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}"))
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestSetup_Playground(t *testing.T) {
	router, _ := setupRouter(t, true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/playground", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

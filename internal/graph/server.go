package graph

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/extension"
	"github.com/99designs/gqlgen/graphql/handler/lru"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/gorilla/websocket"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/nailerHeum/AjouNICE/internal/service"
)

// multipartSlack leaves room for the operations and map parts of an upload
// request so that the file itself is measured by the upload coordinator.
const multipartSlack = 1 << 20

// ServerConfig tunes the GraphQL handler.
type ServerConfig struct {
	MaxDepth            int
	MaxComplexity       int
	MaxUploadBytes      int64
	EnableIntrospection bool
	// APQCache stores persisted queries; nil disables them.
	APQCache graphql.Cache[string]
	// CheckOrigin vets websocket upgrades; nil allows same-origin only.
	CheckOrigin func(r *http.Request) bool
	KeepAlive   time.Duration
}

// NewServer builds the gqlgen handler: GET, POST, multipart uploads and
// graphql-ws subscriptions, with depth and complexity limits.
func NewServer(es graphql.ExecutableSchema, cfg ServerConfig, auth service.AuthService, logger *slog.Logger) *handler.Server {
	if logger == nil {
		logger = slog.Default()
	}
	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 10 * time.Second
	}

	srv := handler.New(es)

	srv.AddTransport(transport.Websocket{
		KeepAlivePingInterval: keepAlive,
		Upgrader: websocket.Upgrader{
			CheckOrigin: cfg.CheckOrigin,
		},
		InitFunc: websocketInit(auth, logger),
	})
	srv.AddTransport(transport.Options{})
	srv.AddTransport(transport.GET{})
	srv.AddTransport(transport.POST{})
	srv.AddTransport(transport.MultipartForm{
		MaxUploadSize: cfg.MaxUploadBytes + multipartSlack,
		MaxMemory:     32 << 20,
	})

	srv.SetQueryCache(lru.New[*ast.QueryDocument](1000))

	if cfg.EnableIntrospection {
		srv.Use(extension.Introspection{})
	}
	if cfg.APQCache != nil {
		srv.Use(extension.AutomaticPersistedQuery{Cache: cfg.APQCache})
	}
	if cfg.MaxDepth > 0 {
		srv.Use(DepthLimit{Max: cfg.MaxDepth})
	}
	if cfg.MaxComplexity > 0 {
		srv.Use(extension.FixedComplexityLimit(cfg.MaxComplexity))
	}

	srv.SetErrorPresenter(ErrorPresenter(logger))
	srv.SetRecoverFunc(RecoverFunc(logger))

	return srv
}

// websocketInit resolves the Authorization entry of connection_init. An
// identity already attached by the HTTP middleware is kept when the payload
// carries none.
func websocketInit(auth service.AuthService, logger *slog.Logger) transport.WebsocketInitFunc {
	return func(ctx context.Context, payload transport.InitPayload) (context.Context, *transport.InitPayload, error) {
		header := payload.Authorization()
		if header == "" {
			header = payload.GetString("Authorization")
		}
		if header == "" {
			return ctx, &payload, nil
		}

		identity, err := auth.ResolveIdentity(ctx, header)
		if err != nil {
			logger.Debug("websocket authentication failed", "error", err)
			return ctx, nil, err
		}
		if identity != nil {
			ctx = service.WithIdentity(ctx, identity)
		}
		return ctx, &payload, nil
	}
}

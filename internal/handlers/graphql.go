package handlers

import (
	"net/http"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/gin-gonic/gin"
)

// GraphQLHandler adapts the GraphQL server and its playground to gin.
type GraphQLHandler struct {
	server     http.Handler
	playground http.Handler
}

func NewGraphQLHandler(server http.Handler, endpoint string) *GraphQLHandler {
	return &GraphQLHandler{
		server:     server,
		playground: playground.Handler("AjouNICE", endpoint),
	}
}

func (h *GraphQLHandler) Serve(c *gin.Context) {
	h.server.ServeHTTP(c.Writer, c.Request)
}

func (h *GraphQLHandler) Playground(c *gin.Context) {
	h.playground.ServeHTTP(c.Writer, c.Request)
}

// Package middleware provides HTTP middleware for the board gateway.
package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins is a list of browser origins allowed to call the API.
	// A single "*" allows any origin.
	AllowedOrigins []string
	AllowedMethods string
	AllowedHeaders string
}

type originSet struct {
	any     bool
	allowed map[string]bool
}

func newOriginSet(origins []string) originSet {
	set := originSet{allowed: make(map[string]bool)}
	for _, origin := range origins {
		if origin == "*" {
			set.any = true
			continue
		}
		// Normalize: remove trailing slash, lowercase
		set.allowed[strings.TrimSuffix(strings.ToLower(origin), "/")] = true
	}
	return set
}

func (s originSet) contains(origin string) bool {
	if s.any {
		return true
	}
	return isAllowedOrigin(origin, s.allowed)
}

// CORS answers preflight requests and sets the Access-Control headers for
// allowed origins. Requests from other origins get no CORS headers, so
// browsers refuse to expose the response.
func CORS(config CORSConfig) gin.HandlerFunc {
	origins := newOriginSet(config.AllowedOrigins)
	methods := config.AllowedMethods
	if methods == "" {
		methods = "GET,POST,OPTIONS"
	}
	headers := config.AllowedHeaders
	if headers == "" {
		headers = "Content-Type,Authorization"
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && origins.contains(origin) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// OriginChecker vets websocket upgrades against the same allow list.
// Requests without an Origin header come from non-browser clients and pass;
// otherwise the Origin (or, failing that, the Referer) must be allowed.
func OriginChecker(allowedOrigins []string) func(r *http.Request) bool {
	origins := newOriginSet(allowedOrigins)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			referer := r.Header.Get("Referer")
			if referer == "" {
				return true
			}
			origin = extractOrigin(referer)
		}
		return origins.contains(origin)
	}
}

// isAllowedOrigin checks if the given origin is in the allowed set.
func isAllowedOrigin(origin string, allowedSet map[string]bool) bool {
	normalized := strings.TrimSuffix(strings.ToLower(origin), "/")
	return allowedSet[normalized]
}

// extractOrigin extracts the origin (scheme://host:port) from a URL.
func extractOrigin(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}

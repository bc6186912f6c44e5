// Package cors answers browser preflights for the registry API.
package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	allowHeaders  = []string{"Content-Type", "X-Requested-With", "X-Request-ID", "X-Confirm"}
	allowMethods  = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	exposeHeaders = []string{"X-Request-ID", "X-Registry-Revision", "Content-Disposition"}
)

// New allows the listed origins, or any origin when the list is empty.
// Preflight requests are answered with 204 and never reach the handlers.
func New(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
			continue
		}
		originSet[normalise(origin)] = struct{}{}
	}

	methods := strings.Join(allowMethods, ", ")
	headers := strings.Join(allowHeaders, ", ")
	exposed := strings.Join(exposeHeaders, ", ")

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		origin := c.GetHeader("Origin")
		allowed := false
		switch {
		case origin == "":
			if allowAll {
				h.Set("Access-Control-Allow-Origin", "*")
			}
		case allowAll:
			allowed = true
		default:
			_, allowed = originSet[normalise(origin)]
		}
		if allowed {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		}

		h.Set("Access-Control-Allow-Headers", headers)
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Expose-Headers", exposed)
		h.Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func normalise(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}

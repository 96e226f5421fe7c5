// Package middlewares holds the HTTP middlewares of the API server.
package middlewares

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"
)

// CORSMiddleware allows cross-origin requests to the API.
func CORSMiddleware() func(*ginext.Context) {
	return func(c *ginext.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

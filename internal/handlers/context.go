package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
)

// requestContext extracts the caller's context so intake and manual digest
// runs stop when the client disconnects. Test contexts may carry no request,
// hence the background fallback.
func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

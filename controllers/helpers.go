package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joshshshshs/mymacroai-sub002/middleware"
	"github.com/joshshshshs/mymacroai-sub002/utils"
)

// getUserID extracts the authenticated user ID set by the auth middleware.
func getUserID(ctx *gin.Context) (uint, bool) {
	v, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
		return 0, false
	}
	switch id := v.(type) {
	case uint:
		return id, true
	case int:
		return uint(id), true
	case float64:
		return uint(id), true
	default:
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
		return 0, false
	}
}

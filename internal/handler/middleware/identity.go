package middleware

import (
	"net/http"
	"strconv"

	"invest-core/internal/handler/response"
	"invest-core/internal/model"
	"invest-core/pkg/errno"

	"github.com/gin-gonic/gin"
)

// 上游网关完成认证后注入的身份头
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	ctxUserID   = "uid"
	ctxUserRole = "role"
)

// Identity 解析身份头，缺失或非法时返回 401
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.GetHeader(HeaderUserID), 10, 64)
		if err != nil || id == 0 {
			response.Abort(c, http.StatusUnauthorized, errno.ErrUnauthorized)
			return
		}
		role := c.GetHeader(HeaderUserRole)
		if role == "" {
			role = model.RoleUser
		}
		c.Set(ctxUserID, id)
		c.Set(ctxUserRole, role)
		c.Next()
	}
}

// RequireAdmin 必须挂在 Identity 之后
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxUserRole) != model.RoleAdmin {
			response.Abort(c, http.StatusForbidden, errno.ErrForbidden)
			return
		}
		c.Next()
	}
}

// UserID 当前请求的用户 ID
func UserID(c *gin.Context) uint64 {
	return c.GetUint64(ctxUserID)
}

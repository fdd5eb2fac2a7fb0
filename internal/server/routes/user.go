package routes

import (
	"github.com/gin-gonic/gin"

	"invest-core/internal/handler"
	"invest-core/internal/handler/middleware"
)

// RegisterUserRoutes 注册用户模块路由
func RegisterUserRoutes(rg *gin.RouterGroup, h *handler.UserHandler) {
	// 公开接口
	rg.POST("/signup", h.Signup)
	rg.GET("/referrers/:code", h.Referrer)

	auth := rg.Group("", middleware.Identity())
	{
		auth.GET("/me", h.Me)
		auth.PUT("/me", h.UpdateProfile)
		auth.GET("/me/balance", h.Balance)
		auth.GET("/me/statistics", h.Statistics)
		auth.GET("/me/team", h.Team)
		auth.GET("/me/team/:level", h.TeamLevel)
		auth.PUT("/me/pin", h.SetPin)

		auth.GET("/plans", h.Plans)
		auth.POST("/investments", h.Subscribe)
		auth.GET("/investments", h.Investments)

		auth.POST("/withdrawals", h.CreateWithdrawal)
		auth.GET("/withdrawals", h.Withdrawals)
	}
}

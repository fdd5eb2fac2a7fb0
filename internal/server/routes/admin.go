package routes

import (
	"invest-core/internal/handler"
	"invest-core/internal/handler/middleware"
	"invest-core/internal/service/profit"
	"invest-core/internal/service/rank"

	"github.com/gin-gonic/gin"
)

func RegisterAdminRoutes(rg *gin.RouterGroup, h *handler.AdminHandler) {
	adminGroup := rg.Group("/admin", middleware.Identity(), middleware.RequireAdmin())
	{
		adminGroup.GET("/investments", h.ListInvestments)
		adminGroup.POST("/investments/:id/approve", h.ApproveInvestment)
		adminGroup.POST("/investments/:id/reject", h.RejectInvestment)

		adminGroup.GET("/withdrawals", h.ListWithdrawals)
		adminGroup.POST("/withdrawals/:id/review", h.ReviewWithdrawal)

		adminGroup.GET("/plans", h.ListPlans)
		adminGroup.POST("/plans", h.CreatePlan)
		adminGroup.PUT("/plans/:id", h.UpdatePlan)
		adminGroup.DELETE("/plans/:id", h.DeletePlan)

		adminGroup.GET("/users", h.ListUsers)
		adminGroup.PUT("/users/:id/active", h.SetUserActive)
		adminGroup.PUT("/users/:id/suspended", h.SetUserSuspended)
		adminGroup.DELETE("/users/:id", h.DeleteUser)
		adminGroup.POST("/users/bulk-delete", h.BulkDeleteUsers)

		adminGroup.GET("/statistics", h.Statistics)
		adminGroup.GET("/ranks", h.ListRanks)
		adminGroup.POST("/ranks/seed", h.SeedRanks)

		adminGroup.POST("/jobs/daily-profit", h.RunJob(profit.JobName))
		adminGroup.POST("/jobs/rank-rewards", h.RunJob(rank.JobName))
	}
}

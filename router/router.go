package router

import (
	"context"
	"time"

	"budget/api"
	"budget/config"
	_ "budget/docs"
	"budget/middleware"
	"budget/service"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRouter 设置路由
// ctx 结束时停止限流器的后台清理
func SetupRouter(ctx context.Context, cfg *config.Config, budgets *service.BudgetService) *gin.Engine {
	// 设置运行模式
	gin.SetMode(cfg.Server.Mode)

	r := gin.Default()

	// CORS 中间件
	r.Use(CORSMiddleware())

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		// 认证相关路由（无需登录）
		authHandler := api.NewAuthHandler(cfg)
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", middleware.LoginRateLimit(ctx, cfg.Server.LoginRateLimit, time.Minute), authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
		}

		// 需要 JWT 认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth())
		{
			authorized.GET("/auth/profile", authHandler.GetProfile)
			authorized.POST("/auth/logout", authHandler.Logout)

			budgetHandler := api.NewBudgetHandler(budgets)
			expenseHandler := api.NewExpenseHandler(budgets)
			exportHandler := api.NewExportHandler(budgets)

			b := authorized.Group("/budgets")
			{
				b.POST("", budgetHandler.Create)
				b.GET("", budgetHandler.List)
				b.GET("/:id", budgetHandler.Get)
				b.PUT("/:id", budgetHandler.Update)
				b.PATCH("/:id", budgetHandler.Patch)
				b.DELETE("/:id", budgetHandler.Delete)
				b.GET("/:id/summary", budgetHandler.Summary)

				// 支出挂在预算下
				b.GET("/:id/expenses", expenseHandler.List)
				b.POST("/:id/expenses", expenseHandler.Create)
				b.GET("/:id/expenses/:eid", expenseHandler.Get)
				b.PUT("/:id/expenses/:eid", expenseHandler.Update)
				b.PATCH("/:id/expenses/:eid", expenseHandler.Patch)
				b.DELETE("/:id/expenses/:eid", expenseHandler.Delete)

				b.GET("/:id/export/csv", exportHandler.ExportCSV)
				b.GET("/:id/export/excel", exportHandler.ExportExcel)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	return r
}

// CORSMiddleware CORS 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

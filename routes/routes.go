package routes

import (
	"time"

	"webtv-display-service/config"
	"webtv-display-service/controllers"
	_ "webtv-display-service/docs"
	"webtv-display-service/middleware"
	"webtv-display-service/services/container"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRouter 初始化并返回配置好的路由
func SetupRouter(serviceContainer *container.ServiceContainer, cfg *config.Config) *gin.Engine {
	// 初始化 Gin
	r := gin.Default()

	// 添加 CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
	// 设置正确的Content-Type，确保UTF-8编码
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json; charset=utf-8")
		c.Next()
	})
	// 添加 Swagger 文档路由
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 注册路由
	registerRoutes(r, serviceContainer)
	return r
}

// registerRoutes 配置所有API路由
func registerRoutes(
	r *gin.Engine,
	container *container.ServiceContainer,
) {
	// API 路由根路径
	api := r.Group("/api")
	// 注册显示端路由
	registerDisplayRoutes(api, container)
	// 注册管理端路由
	registerAdminRoutes(api, container)
}

// registerDisplayRoutes 注册显示端轮询的路由
func registerDisplayRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	// 健康检查
	api.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// 显示端状态轮询，按路径限流抵挡轮询风暴
	api.GET("/display/state",
		middleware.PathRateLimiter(50, 100),
		controllers.HandleDisplayFunc(container, "getDisplayState"))
}

// registerAdminRoutes 注册管理端路由
func registerAdminRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	// 叫号路由，新建按IP限流防止误触连点
	api.POST("/calls",
		middleware.IPRateLimiter(5, 10),
		controllers.HandleCallFunc(container, "createCall"))
	api.GET("/calls",
		middleware.CacheByParams(10*time.Second, "page", "page_size"),
		controllers.HandleCallFunc(container, "getCallRecords"))
	api.POST("/calls/:id/recall",
		middleware.IPRateLimiter(5, 10),
		controllers.HandleCallFunc(container, "recallCall"))
	api.DELETE("/calls", controllers.HandleCallFunc(container, "clearHistory"))

	// 手动播报
	api.POST("/display/announce",
		middleware.IPRateLimiter(5, 10),
		controllers.HandleDisplayFunc(container, "triggerAnnounce"))

	// 轮播素材路由
	api.GET("/playlist/carousel", controllers.HandlePlaylistFunc(container, "getCarouselItems"))
	api.POST("/playlist/carousel", controllers.HandlePlaylistFunc(container, "addCarouselItem"))
	api.PUT("/playlist/carousel/:id", controllers.HandlePlaylistFunc(container, "updateCarouselItem"))
	api.DELETE("/playlist/carousel/:id", controllers.HandlePlaylistFunc(container, "deleteCarouselItem"))
	api.POST("/playlist/carousel/reorder", controllers.HandlePlaylistFunc(container, "reorderCarousel"))

	// 背景视频路由
	api.GET("/playlist/videos", controllers.HandlePlaylistFunc(container, "getVideoItems"))
	api.POST("/playlist/videos", controllers.HandlePlaylistFunc(container, "addVideoItem"))
	api.PUT("/playlist/videos/:id/enabled", controllers.HandlePlaylistFunc(container, "setVideoEnabled"))
	api.DELETE("/playlist/videos/:id", controllers.HandlePlaylistFunc(container, "deleteVideoItem"))
	api.POST("/playlist/videos/reorder", controllers.HandlePlaylistFunc(container, "reorderVideos"))

	// 显示配置与背景视频控制路由
	api.GET("/settings", controllers.HandleSettingsFunc(container, "getSettings"))
	api.PUT("/settings", controllers.HandleSettingsFunc(container, "updateSettings"))
	api.POST("/settings/video-control", controllers.HandleSettingsFunc(container, "controlVideo"))
}

package handler

import "github.com/gin-gonic/gin"

// 跳转路由不处理的首段路径
var reservedSegments = map[string]struct{}{
	"healthz": {},
	"api":     {},
	"code":    {},
	"swagger": {},
}

func isReserved(segment string) bool {
	_, ok := reservedSegments[segment]
	return ok
}

// RegisterRoutes 注册全部路由
func RegisterRoutes(router *gin.Engine, h *LinkHandler) {
	router.GET("/healthz", h.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/links", h.CreateLink)
		api.GET("/links", h.ListLinks)
		api.GET("/links/:code", h.GetLink)
		api.DELETE("/links/:code", h.DeleteLink)
		api.GET("/stats", h.GetStats)
	}

	// 放在最后，静态路由优先匹配
	router.GET("/:code", h.RedirectToTarget)
	router.NoRoute(h.NoRoute)
}

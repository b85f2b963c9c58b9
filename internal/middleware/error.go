package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tinylink/internal/apperrors"
)

// ErrorHandler 全局错误中间件
// 处理器通过 c.Error 上报错误，由这里统一转换为 {"error": "..."} 响应
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := apperrors.KindOf(err).HTTPStatus()
		if status >= http.StatusInternalServerError {
			logger.Error("请求处理失败",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(status, gin.H{"error": "Internal server error"})
			return
		}

		c.AbortWithStatusJSON(status, gin.H{"error": apperrors.MessageOf(err)})
	}
}

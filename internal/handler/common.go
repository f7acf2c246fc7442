package handler

import (
	"strconv"

	"Civic_Report/internal/middleware"
	"Civic_Report/internal/service"

	"github.com/gin-gonic/gin"
)

func userIDFromCtx(c *gin.Context) string {
	return c.GetString(middleware.ContextUserIDKey)
}

// fail 按 ServiceError 的状态码返回，内部错误不暴露细节
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(service.StatusCode(err), gin.H{"msg": service.PublicMessage(err)})
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

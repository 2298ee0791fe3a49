package handler

import (
	"net/http"
	"strconv"

	"CommunityHub/internal/pkg"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// fail 把业务错误映射为状态码，5xx 记录完整错误
func fail(c *gin.Context, log *zap.Logger, err error) {
	status := pkg.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", pkg.KindOf(err).String()),
			zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"msg": pkg.PublicMessage(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"msg": msg})
}

func queryInt(c *gin.Context, key string) int {
	v, _ := strconv.Atoi(c.Query(key))
	return v
}

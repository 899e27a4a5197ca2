package controller

import (
	"community-intelligence-backend/request"
	"community-intelligence-backend/response"
	unitparser "community-intelligence-backend/service/unit-parser"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ParsePath 诊断接口：查看压缩包内路径会被解析为哪个单元
// 无法解析时data为null
func ParsePath(c *gin.Context) {
	var req request.ParsePathRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		slog.Error(ErrParseRequest.Error(), "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, response.Response{
			Msg: ErrParseRequest.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.Response{
		Data: unitparser.ParseUnitFromPath(req.Path),
	})
}

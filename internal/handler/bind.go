package handler

import (
	"strconv"

	"invest-core/internal/handler/response"
	"invest-core/pkg/errno"
	"invest-core/pkg/validator"

	"github.com/gin-gonic/gin"
)

// bindJSON 绑定并校验请求体，失败时已写入响应
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return false
	}
	return true
}

// paramID 解析路径中的数字 ID
func paramID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, errno.ErrBind.WithMessage("invalid "+name))
		return 0, false
	}
	return id, true
}

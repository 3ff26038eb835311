package controller

import (
	"net/http"

	"github.com/mayugoro/xray/logger"
	"github.com/mayugoro/xray/web/entity"

	"github.com/gin-gonic/gin"
)

func jsonObj(c *gin.Context, obj any) {
	c.JSON(http.StatusOK, entity.Msg{Success: true, Obj: obj})
}

func jsonMsg(c *gin.Context, status int, msg string, err error) {
	if err != nil {
		logger.Warning(msg+":", err)
		c.JSON(status, entity.Msg{Success: false, Msg: msg + ": " + err.Error()})
		return
	}
	c.JSON(status, entity.Msg{Success: true, Msg: msg})
}

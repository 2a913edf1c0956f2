package api

import (
	"net/http"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/module/zabbix"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

const ModuleName = "ItOpsZabbix"

const (
	ItOpsZabbix_BadRequest_InvalidParameter = ModuleName + ".BadRequest.InvalidParameter"
	ItOpsZabbix_NotFound_Object             = ModuleName + ".NotFound.Object"
	ItOpsZabbix_Conflict_LimitExceeded      = ModuleName + ".Conflict.LimitExceeded"
	ItOpsZabbix_BadGateway_RemoteCallError  = ModuleName + ".BadGateway.RemoteCallError"
	ItOpsZabbix_InternalError_InternalError = ModuleName + ".InternalError.InternalError"
)

type ErrorInfo struct {
	httpCode    int
	errorCode   string
	description string
}

var (
	InvalidParameter = ErrorInfo{http.StatusBadRequest, ItOpsZabbix_BadRequest_InvalidParameter, "参数不合法"}
	NotFound         = ErrorInfo{http.StatusNotFound, ItOpsZabbix_NotFound_Object, "对象不存在"}
	LimitExceeded    = ErrorInfo{http.StatusConflict, ItOpsZabbix_Conflict_LimitExceeded, "结果数量达到上限"}
	RemoteCallError  = ErrorInfo{http.StatusBadGateway, ItOpsZabbix_BadGateway_RemoteCallError, "Zabbix 调用失败"}
	InternalError    = ErrorInfo{http.StatusInternalServerError, ItOpsZabbix_InternalError_InternalError, "内部错误"}
)

// HTTPError 错误响应体。
type HTTPError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Detail      any    `json:"detail,omitempty"`
}

func replyError(c *gin.Context, info ErrorInfo, detail any) {
	c.AbortWithStatusJSON(info.httpCode, HTTPError{
		Code:        info.errorCode,
		Description: info.description,
		Detail:      detail,
	})
}

// replyDomainError 记录错误后按类型映射状态码。
func replyDomainError(c *gin.Context, msg string, err error) {
	zabbix.ContainErr(msg, err)

	var re *core.RemoteError
	var ve validator.ValidationErrors
	switch {
	case zabbix.IsNotFound(err):
		replyError(c, NotFound, err.Error())
	case errors.As(err, &re):
		replyError(c, RemoteCallError, gin.H{
			"type":    re.Type(),
			"method":  re.Method,
			"code":    re.Code,
			"message": re.Message,
			"data":    re.Data,
		})
	case errors.As(err, &ve):
		replyError(c, InvalidParameter, err.Error())
	default:
		replyError(c, InternalError, err.Error())
	}
}

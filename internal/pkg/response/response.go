package response

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
)

// 业务错误码，HTTP 状态始终为 200
const (
	CodeSuccess             = 0
	CodeParamError          = 1000
	CodeAuthFailed          = 1001
	CodePermissionDenied    = 1002
	CodeResourceNotFound    = 1003
	CodeInsufficientCredits = 1004
	CodeDuplicateAction     = 1005
	CodeUpgradeRequired     = 1006
	CodeRateLimited         = 1007
	CodeServerError         = 5000
)

var codeMessages = map[int]string{
	CodeSuccess:             "success",
	CodeParamError:          "参数错误",
	CodeAuthFailed:          "认证失败",
	CodePermissionDenied:    "权限不足",
	CodeResourceNotFound:    "资源不存在",
	CodeInsufficientCredits: "积分不足",
	CodeDuplicateAction:     "重复操作",
	CodeUpgradeRequired:     "请升级到付费套餐",
	CodeRateLimited:         "请求过于频繁，请稍后再试",
	CodeServerError:         "服务器内部错误",
}

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// PageData 分页数据结构
type PageData struct {
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Items    interface{} `json:"items"`
}

// DefaultMessage 错误码的默认提示，未知错误码返回空串
func DefaultMessage(code int) string {
	return codeMessages[code]
}

func Success(c *gin.Context, data interface{}) {
	SuccessWithMessage(c, codeMessages[CodeSuccess], data)
}

func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// SuccessPage 分页成功响应，空列表输出 [] 而不是 null
func SuccessPage(c *gin.Context, total int64, page, pageSize int, items interface{}) {
	if isNilSlice(items) {
		items = []struct{}{}
	}
	Success(c, PageData{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Items:    items,
	})
}

// Error 错误响应，message 为空时使用错误码的默认提示
func Error(c *gin.Context, code int, message string) {
	if message == "" {
		message = codeMessages[code]
	}
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

func ParamError(c *gin.Context, message string) { Error(c, CodeParamError, message) }

func AuthError(c *gin.Context, message string) { Error(c, CodeAuthFailed, message) }

func PermissionError(c *gin.Context, message string) { Error(c, CodePermissionDenied, message) }

func NotFoundError(c *gin.Context, message string) { Error(c, CodeResourceNotFound, message) }

// InsufficientCredits 可用积分不足以支付本次操作
func InsufficientCredits(c *gin.Context, message string) {
	Error(c, CodeInsufficientCredits, message)
}

func DuplicateError(c *gin.Context, message string) { Error(c, CodeDuplicateAction, message) }

// UpgradeRequired 功能仅对付费用户开放
func UpgradeRequired(c *gin.Context, message string) { Error(c, CodeUpgradeRequired, message) }

func RateLimited(c *gin.Context, message string) { Error(c, CodeRateLimited, message) }

func ServerError(c *gin.Context, message string) { Error(c, CodeServerError, message) }

func isNilSlice(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Slice && rv.IsNil()
}

// Package middleware file: internal/transport/http/middleware/error_handler.go
package middleware

import (
	"GWExplorer/internal/core/domain"
	"GWExplorer/internal/core/port"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var wireTagOnce sync.Once

// RegisterWireTagNames 让校验错误按 json/form 标签名而非 Go 字段名报告，
// 保证错误信封中的 loc 使用线上参数名。路由器装配时调用一次即可。
func RegisterWireTagNames() {
	wireTagOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return fld.Name
		})
	})
}

// ErrorHandlingMiddleware 是一个Gin中间件，用于集中处理错误。
// 处理器通过 c.Error(err) 附加的错误在这里统一转换为响应。
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// 只处理最后一个错误，它通常是根本原因
		lastError := c.Errors.Last()
		err := lastError.Err

		// 参数绑定/校验错误转换为固定的缺失字段形状
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			detail := make([]domain.ValidationDetail, 0, len(ve))
			for _, fe := range ve {
				detail = append(detail, domain.ValidationDetail{
					Loc:  []string{"query", fe.Field()},
					Msg:  "field required",
					Type: "value_error.missing",
				})
			}
			c.JSON(http.StatusBadRequest, domain.ValidationError{Detail: detail})
			return
		}

		// 业务错误按类型映射状态码
		switch {
		case errors.Is(err, port.ErrAccessDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "权限不足"})

		case errors.Is(err, port.ErrResourceNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
		}
	}
}

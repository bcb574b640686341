// Package validator 提供信标地址等数据合法性校验，并注册为 go-playground/validator 的自定义 tag.
package validator

import (
	"net"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// TagBSSID 自定义校验 tag 名称.
const TagBSSID = "bssid"

// 十六进制分组，以 ':' 或 '-' 分隔。不强制 6 组 2 位，兼容采集端导出的非标准写法。
var bssidRegex = regexp.MustCompile(`^[0-9A-Fa-f]{1,4}([:-][0-9A-Fa-f]{1,4}){2,7}$`)

// IsValidBSSID 校验接入点地址：十六进制分组形式，且不能是 IP 地址。
func IsValidBSSID(s string) bool {
	if !bssidRegex.MatchString(s) {
		return false
	}
	return net.ParseIP(s) == nil
}

// New 返回注册了全部自定义 tag 的校验器.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	Register(v)
	return v
}

// Register 在已有校验器上注册自定义 tag.
func Register(v *validator.Validate) {
	// 只有在 tag 名冲突时才会失败，属于编程错误
	if err := v.RegisterValidation(TagBSSID, func(fl validator.FieldLevel) bool {
		return IsValidBSSID(fl.Field().String())
	}); err != nil {
		panic(err)
	}
}

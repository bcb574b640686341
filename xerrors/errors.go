// Package xerrors 提供带类型、错误码与堆栈的增强型错误.
package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType 错误的大类
type ErrorType uint

const (
	ErrUnknown ErrorType = iota
	ErrInternal
	ErrInvalidArg
	ErrConfiguration
	ErrParse
	ErrIO
)

// Error 增强型错误结构
type Error struct {
	Type    ErrorType      `json:"type"`
	Code    int            `json:"code"`    // 业务自定义错误码
	Message string         `json:"message"` // 对外展示的友好消息
	Detail  string         `json:"detail"`  // 对内调试的详细信息
	Cause   error          `json:"-"`       // 原始错误
	Stack   []string       `json:"stack"`   // 堆栈追踪
	Context map[string]any `json:"context"` // 上下文数据 (行号、token、信标地址等)
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %d: %s (Cause: %v)", e.Type.String(), e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %d: %s", e.Type.String(), e.Code, e.Message)
}

// Unwrap 实现 Go 1.13 解包接口
func (e *Error) Unwrap() error {
	return e.Cause
}

func (t ErrorType) String() string {
	names := [...]string{"Unknown", "Internal", "InvalidArg", "Configuration", "Parse", "IO"}
	if int(t) >= len(names) {
		return "Unknown"
	}
	return names[t]
}

// --- 核心构造函数 ---

// New 创建新错误并自动捕获堆栈
func New(errType ErrorType, code int, message string, detail string, cause error) *Error {
	e := &Error{
		Type:    errType,
		Code:    code,
		Message: message,
		Detail:  detail,
		Cause:   cause,
		Context: make(map[string]any),
	}
	e.captureStack()
	return e
}

// captureStack 捕获当前调用栈 (深度限制 10 层)
func (e *Error) captureStack() {
	const depth = 10
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:]) // 跳过 captureStack, New 和上层构造函数
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		e.Stack = append(e.Stack, fmt.Sprintf("%s:%d (%s)", frame.File, frame.Line, frame.Function))
		if !more || len(e.Stack) >= depth {
			break
		}
	}
}

// --- 链式 API ---

// WithContext 附加一项诊断上下文.
func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// WithDetail 设置详细描述.
func (e *Error) WithDetail(format string, args ...any) *Error {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// --- 快捷构造工具 ---

// Internal 程序内部错误，退出码 1.
func Internal(msg string, cause error) *Error {
	return New(ErrInternal, 500, msg, "", cause)
}

// InvalidArg 非法参数，退出码 2.
func InvalidArg(msg string, cause error) *Error {
	return New(ErrInvalidArg, 400, msg, "", cause)
}

// Configuration 依赖缺失或配置非法，属于致命错误，不得静默降级为默认值。
func Configuration(msg string, cause error) *Error {
	return New(ErrConfiguration, 412, msg, "", cause)
}

// Parse 输入 token 无法解析为期望的数值类型。
func Parse(msg string, cause error) *Error {
	return New(ErrParse, 422, msg, "", cause)
}

// IO 读写外部数据源失败。
func IO(msg string, cause error) *Error {
	return New(ErrIO, 503, msg, "", cause)
}

// Wrap 包装现有错误并捕获堆栈
func Wrap(err error, errType ErrorType, msg string) *Error {
	if err == nil {
		return nil
	}
	// 已经是 *Error 时沿用其类型与错误码，原错误作为 Cause 保留在链上
	if e, ok := FromError(err); ok {
		return New(e.Type, e.Code, msg, e.Detail, err)
	}
	return New(errType, int(errType), msg, "", err)
}

// --- 分类 ---

// TypeOf 返回错误链上第一个 *Error 的类型，没有则为 ErrUnknown。
func TypeOf(err error) ErrorType {
	if e, ok := FromError(err); ok {
		return e.Type
	}
	return ErrUnknown
}

// IsType 判断错误链上是否存在指定类型的 *Error。
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// ExitCode 将错误类型映射为进程退出码。
func (e *Error) ExitCode() int {
	switch e.Type {
	case ErrConfiguration, ErrInvalidArg:
		return 2
	case ErrParse:
		return 3
	case ErrIO:
		return 4
	default:
		return 1
	}
}

// ExitCode 对任意错误给出退出码，nil 为 0。
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if e, ok := FromError(err); ok {
		return e.ExitCode()
	}
	return 1
}

// FromError 尝试沿错误链提取 *Error
func FromError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

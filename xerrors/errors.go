// Package xerrors 提供了带错误码、堆栈与上下文的结构化错误类型。
package xerrors

import (
	"errors"
	"fmt"
	"maps"
	"runtime"

	"google.golang.org/grpc/codes"
)

// ErrorType 错误的大类
type ErrorType uint

const (
	ErrUnknown ErrorType = iota
	ErrInternal
	ErrInvalidArg
	ErrNotFound
	ErrUnavailable
)

// Error 增强型错误结构
type Error struct {
	Type    ErrorType      `json:"type"`
	Code    int            `json:"code"`    // 业务自定义错误码
	Message string         `json:"message"` // 对外展示的友好消息
	Detail  string         `json:"detail"`  // 对内调试的详细信息
	Cause   error          `json:"-"`       // 原始错误
	Stack   []string       `json:"stack"`   // 堆栈追踪
	Context map[string]any `json:"context"` // 上下文数据
}

// Error 实现 error 接口
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %d: %s", e.Type.String(), e.Code, e.Message)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (Cause: %v)", e.Cause)
	}
	return msg
}

// Unwrap 实现 Go 1.13 解包接口
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 以错误码判定等价，派生错误与预定义错误可直接用 errors.Is 比较。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return t.Code == e.Code && t.Type == e.Type
}

func (t ErrorType) String() string {
	names := [...]string{"Unknown", "Internal", "InvalidArg", "NotFound", "Unavailable"}
	if int(t) >= len(names) {
		return "Unknown"
	}
	return names[t]
}

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
	e.captureStack(3)
	return e
}

// captureStack 捕获当前调用栈 (深度限制 10 层)
func (e *Error) captureStack(skip int) {
	const depth = 10
	var pcs [depth]uintptr
	n := runtime.Callers(skip, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	e.Stack = e.Stack[:0]
	for {
		frame, more := frames.Next()
		e.Stack = append(e.Stack, fmt.Sprintf("%s:%d (%s)", frame.File, frame.Line, frame.Function))
		if !more || len(e.Stack) >= depth {
			break
		}
	}
}

// Detailf 基于预定义错误派生一个携带调试详情的新错误，原错误保持不变。
func (e *Error) Detailf(format string, args ...any) *Error {
	derived := &Error{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Detail:  fmt.Sprintf(format, args...),
		Cause:   e.Cause,
		Context: maps.Clone(e.Context),
	}
	if derived.Context == nil {
		derived.Context = make(map[string]any)
	}
	derived.captureStack(3)
	return derived
}

// WithContext 追加上下文数据。
func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// --- 快捷构造工具 ---

func Internal(msg string, cause error) *Error {
	return New(ErrInternal, 500, msg, "", cause)
}

func InvalidArg(msg string) *Error {
	return New(ErrInvalidArg, 400, msg, "", nil)
}

// Wrap 包装现有错误并捕获堆栈
func Wrap(err error, errType ErrorType, msg string) *Error {
	if err == nil {
		return nil
	}
	if e, ok := FromError(err); ok {
		return &Error{
			Type:    e.Type,
			Code:    e.Code,
			Message: msg,
			Detail:  e.Detail,
			Cause:   err,
			Stack:   e.Stack,
			Context: maps.Clone(e.Context),
		}
	}
	return New(errType, int(errType), msg, "", err)
}

// --- 协议转换 ---

// GRPCCode 自动映射 gRPC 状态码
func (e *Error) GRPCCode() codes.Code {
	switch e.Type {
	case ErrInvalidArg:
		return codes.InvalidArgument
	case ErrNotFound:
		return codes.NotFound
	case ErrUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// FromError 沿错误链查找 *Error，支持被 fmt.Errorf("%w") 包装的错误。
func FromError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

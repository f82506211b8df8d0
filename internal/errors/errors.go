package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode 错误码类型
type ErrorCode int

// 错误码定义（按模块分组）
const (
	// 通用错误 (1000-1999)
	ErrUnknown          ErrorCode = 1000
	ErrInvalidParam     ErrorCode = 1001
	ErrNotFound         ErrorCode = 1002
	ErrAlreadyExists    ErrorCode = 1003
	ErrPermissionDenied ErrorCode = 1004
	ErrTimeout          ErrorCode = 1005
	ErrCanceled         ErrorCode = 1006
	ErrRateLimited      ErrorCode = 1007

	// 成长与技能错误 (2000-2999)
	ErrRequirementNotMet    ErrorCode = 2000
	ErrInsufficientResource ErrorCode = 2001
	ErrOnCooldown           ErrorCode = 2002

	// 数据库错误 (5000-5999)
	ErrPersistence      ErrorCode = 5000
	ErrDatabaseConnect  ErrorCode = 5001
	ErrDatabaseMigrate  ErrorCode = 5002
	ErrSchemaVersion    ErrorCode = 5003

	// 配置错误 (6000-6999)
	ErrConfigLoad     ErrorCode = 6000
	ErrConfigParse    ErrorCode = 6001
	ErrConfigValidate ErrorCode = 6002
	ErrCatalogInvalid ErrorCode = 6003
)

// 错误码消息映射
var errorMessages = map[ErrorCode]string{
	ErrUnknown:          "未知错误",
	ErrInvalidParam:     "无效的参数",
	ErrNotFound:         "资源未找到",
	ErrAlreadyExists:    "资源已存在",
	ErrPermissionDenied: "权限不足",
	ErrTimeout:          "操作超时",
	ErrCanceled:         "操作已取消",
	ErrRateLimited:      "请求过于频繁",

	ErrRequirementNotMet:    "条件不满足",
	ErrInsufficientResource: "资源不足",
	ErrOnCooldown:           "冷却中",

	ErrPersistence:     "数据持久化失败",
	ErrDatabaseConnect: "数据库连接失败",
	ErrDatabaseMigrate: "数据库迁移失败",
	ErrSchemaVersion:   "不支持的数据版本",

	ErrConfigLoad:     "配置加载失败",
	ErrConfigParse:    "配置解析失败",
	ErrConfigValidate: "配置验证失败",
	ErrCatalogInvalid: "目录定义无效",
}

// Condition 门槛或资源条件，描述具体哪一项未满足
type Condition string

const (
	CondLevel              Condition = "level"
	CondMoney              Condition = "money"
	CondPreviousProfession Condition = "previous_profession"
	CondProfession         Condition = "profession"
	CondPermission         Condition = "permission"
	CondNotLearned         Condition = "not_learned"
	CondAlreadyLearned     Condition = "already_learned"
	CondAlreadyCurrent     Condition = "already_current"
	CondPassive            Condition = "passive"
	CondMaxLevel           Condition = "max_level"
	CondStatPoints         Condition = "stat_points"
	CondTalentPoints       Condition = "talent_points"
	CondSkillPoints        Condition = "skill_points"
	CondMana               Condition = "mana"
)

// AppError 应用错误结构
type AppError struct {
	Code      ErrorCode     `json:"code"`                // 错误码
	Message   string        `json:"message"`             // 错误消息
	Details   string        `json:"details"`             // 详细信息
	Condition Condition     `json:"condition,omitempty"` // 未满足的条件
	Remaining time.Duration `json:"remaining,omitempty"` // 冷却剩余时间
	Cause     error         `json:"-"`                   // 原始错误
	Stack     []StackFrame  `json:"stack,omitempty"`     // 调用栈
}

// StackFrame 调用栈帧
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 添加原因错误
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}

	err := &AppError{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}

	err.captureStack(2)

	return err
}

// Newf 创建格式化的应用错误
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	details := fmt.Sprintf(format, args...)
	return New(code, details)
}

// NotFound 未知的职业/天赋/技能等标识
func NotFound(kind, id string) *AppError {
	return New(ErrNotFound, fmt.Sprintf("%s不存在: %s", kind, id))
}

// RequirementNotMet 门槛未满足，携带具体条件
func RequirementNotMet(cond Condition, details string) *AppError {
	err := New(ErrRequirementNotMet, details)
	err.Condition = cond
	return err
}

// InsufficientResource 资源不足，携带具体资源
func InsufficientResource(cond Condition, details string) *AppError {
	err := New(ErrInsufficientResource, details)
	err.Condition = cond
	return err
}

// OnCooldown 技能冷却中，携带剩余时间
func OnCooldown(remaining time.Duration) *AppError {
	err := New(ErrOnCooldown, fmt.Sprintf("剩余 %.1f 秒", remaining.Seconds()))
	err.Remaining = remaining
	return err
}

// Persistence 包装后端存储错误
func Persistence(err error, details string) *AppError {
	if err == nil {
		return nil
	}
	return New(ErrPersistence, details).WithCause(err)
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	// 如果已经是AppError，保留原始错误码
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		if len(details) > 0 {
			appErr.WithDetails(strings.Join(details, "; ") + "; " + appErr.Details)
		}
		return appErr
	}

	return New(code, details...).WithCause(err)
}

// Wrapf 包装格式化错误
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	details := fmt.Sprintf(format, args...)
	return Wrap(err, code, details)
}

// As 提取AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if err == nil || !stderrors.As(err, &appErr) {
		return nil, false
	}
	return appErr, true
}

// Is 判断错误是否为指定错误码
func Is(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// GetCode 获取错误码
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}

	if appErr, ok := As(err); ok {
		return appErr.Code
	}

	return ErrUnknown
}

// GetCondition 获取未满足的条件
func GetCondition(err error) Condition {
	if appErr, ok := As(err); ok {
		return appErr.Condition
	}
	return ""
}

// CooldownRemaining 获取冷却剩余时间
func CooldownRemaining(err error) (time.Duration, bool) {
	appErr, ok := As(err)
	if !ok || appErr.Code != ErrOnCooldown {
		return 0, false
	}
	return appErr.Remaining, true
}

// IsGating 判断是否为预期内的门槛类错误（不需要记录错误日志）
func IsGating(err error) bool {
	switch GetCode(err) {
	case ErrNotFound, ErrRequirementNotMet, ErrInsufficientResource, ErrOnCooldown, ErrInvalidParam:
		return true
	default:
		return false
	}
}

// captureStack 捕获调用栈
func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)

	if n > 0 {
		frames := runtime.CallersFrames(pcs[:n])
		for {
			frame, more := frames.Next()

			// 跳过runtime和本包的调用
			if strings.Contains(frame.Function, "runtime.") ||
				strings.Contains(frame.Function, "github.com/wfunc/superrpg-core/internal/errors") {
				if !more {
					break
				}
				continue
			}

			e.Stack = append(e.Stack, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})

			if !more {
				break
			}

			// 只保留前10个栈帧
			if len(e.Stack) >= 10 {
				break
			}
		}
	}
}

// GetStack 获取格式化的调用栈
func (e *AppError) GetStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, frame := range e.Stack {
		builder.WriteString(fmt.Sprintf("%d. %s\n   %s:%d\n",
			i+1, frame.Function, frame.File, frame.Line))
	}

	return builder.String()
}

// HTTPStatus 返回对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch {
	case e.Code == ErrInvalidParam || e.Code == ErrAlreadyExists:
		return 400 // Bad Request
	case e.Code == ErrNotFound:
		return 404 // Not Found
	case e.Code == ErrPermissionDenied:
		return 403 // Forbidden
	case e.Code == ErrTimeout:
		return 408 // Request Timeout
	case e.Code == ErrRateLimited:
		return 429 // Too Many Requests
	case e.Code >= 2000 && e.Code <= 2999:
		return 409 // Conflict
	case e.Code >= 5000 && e.Code <= 5999:
		return 503 // Service Unavailable
	default:
		return 500 // Internal Server Error
	}
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case ErrTimeout, ErrPersistence, ErrDatabaseConnect:
		return true
	default:
		return false
	}
}

// ErrorResponse API错误响应结构
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     *AppError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(err *AppError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     err,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}

// ResultLabel 操作结果标签，用于指标统计
func ResultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	switch GetCode(err) {
	case ErrInvalidParam:
		return "invalid_param"
	case ErrNotFound:
		return "not_found"
	case ErrRequirementNotMet:
		return "requirement_not_met"
	case ErrInsufficientResource:
		return "insufficient_resource"
	case ErrOnCooldown:
		return "on_cooldown"
	case ErrPersistence, ErrSchemaVersion:
		return "persistence_failure"
	default:
		return "error"
	}
}

package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX），可穿透 fmt.Errorf("%w") 包装
//
// 错误分级：
//   - 致命：INVALID_NORMALIZATION / SCHEMA_MISMATCH / EMPTY_SAMPLE / UNKNOWN_ALGORITHM，
//     在任何训练开始前中止整个 run
//   - 可恢复：TRAINING_FAILED，只记录在对应算法的结果槽位上
type DomainError struct {
	Code    string // 错误代码（如 "SCHEMA_MISMATCH"）
	Message string // 错误消息，带上 source 名称、计算值等诊断上下文
	Module  string // 模块名称（如 "weight", "corpus", "registry"）
	Err     error  // 底层错误（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// IsDomainError 检查错误链上是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链上的第一个 DomainError，如果没有则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 创建包装底层错误的领域错误
func WrapDomainError(module, code, message string, err error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 错误代码常量
const (
	ErrorCodeInvalidNormalization = "INVALID_NORMALIZATION" // 归一化分母 <= 0
	ErrorCodeSchemaMismatch       = "SCHEMA_MISMATCH"       // 特征 schema 不一致
	ErrorCodeEmptySample          = "EMPTY_SAMPLE"          // 选择后样本为空
	ErrorCodeUnknownAlgorithm     = "UNKNOWN_ALGORITHM"     // 未注册的算法名
	ErrorCodeTrainingFailed       = "TRAINING_FAILED"       // 单个算法训练/打分失败

	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
)

// 模块名称常量
const (
	ModuleWeight    = "weight"
	ModuleSample    = "sample"
	ModuleCorpus    = "corpus"
	ModuleSelection = "selection"
	ModuleRegistry  = "registry"
	ModuleAlgorithm = "algorithm"
	ModuleTrainer   = "trainer"
	ModuleSink      = "sink"
	ModuleStore     = "store"
	ModuleConfig    = "config"
)

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsInvalidNormalization 检查错误是否为 INVALID_NORMALIZATION
func IsInvalidNormalization(err error) bool { return hasCode(err, ErrorCodeInvalidNormalization) }

// IsSchemaMismatch 检查错误是否为 SCHEMA_MISMATCH
func IsSchemaMismatch(err error) bool { return hasCode(err, ErrorCodeSchemaMismatch) }

// IsEmptySample 检查错误是否为 EMPTY_SAMPLE
func IsEmptySample(err error) bool { return hasCode(err, ErrorCodeEmptySample) }

// IsUnknownAlgorithm 检查错误是否为 UNKNOWN_ALGORITHM
func IsUnknownAlgorithm(err error) bool { return hasCode(err, ErrorCodeUnknownAlgorithm) }

// IsTrainingFailed 检查错误是否为 TRAINING_FAILED
func IsTrainingFailed(err error) bool { return hasCode(err, ErrorCodeTrainingFailed) }

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool { return hasCode(err, ErrorCodeNotSupported) }

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool { return hasCode(err, ErrorCodeInvalidInput) }

// IsFatal 判断错误是否应中止整个 run。
// 只有 TRAINING_FAILED 是可恢复的；其他错误（包括非 DomainError）一律视为致命。
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !IsTrainingFailed(err)
}

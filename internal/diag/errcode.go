package diag

import (
	"context"
	"errors"
	"os"
	"time"

	"tsckit/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown     Code = "unknown"
	CodeEncoding    Code = "encoding"
	CodeTranslation Code = "translation"
	CodeCollision   Code = "collision"
	CodeInvariant   Code = "invariant"
	CodeCancel      Code = "cancel"
	CodeIO          Code = "io"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	// 文本编解码
	if errors.Is(err, contract.ErrEncoding) {
		return CodeEncoding
	}
	// 翻译映射不完整或含陈旧条目
	if errors.Is(err, contract.ErrMissingTranslation) || errors.Is(err, contract.ErrUnknownTranslation) {
		return CodeTranslation
	}
	// 标识符冲突
	if errors.Is(err, contract.ErrIdentifierCollision) {
		return CodeCollision
	}
	// 不变量
	if errors.Is(err, contract.ErrInvalidInput) || errors.Is(err, contract.ErrPathInvalid) {
		return CodeInvariant
	}
	// I/O
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}

// NowUTC 返回 RFC3339 UTC 时间字符串（用于结构化日志字段 ts）。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

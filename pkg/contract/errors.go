package contract

import "errors"

// 最小错误分类（哨兵；上层用 errors.Is 判定，不做字符串匹配）。
var (
	// ErrEncoding: 值无法在其定宽槽位中表示（如参数溢出 4 位十进制），
	// 或对白文本无法编码到目标字符集。逐文件致命，必须指明出错的命令/标识。
	ErrEncoding = errors.New("encoding error")
	// ErrMissingTranslation: 回写时对白 id 不在所给映射中。
	// 逐 id 致命；跨文件收集后统一报告，绝不静默回退原文。
	ErrMissingTranslation = errors.New("missing translation")
	// ErrUnknownTranslation: 所给映射含有提取结果之外的多余 id（不允许静默新增）。
	ErrUnknownTranslation = errors.New("unknown translation id")
	// ErrIdentifierCollision: 同一文件内出现重复对白 id。
	// 序数分配正确时不可能发生；出现即视为构建器缺陷，整次运行作废。
	ErrIdentifierCollision = errors.New("identifier collision")
	// ErrInvalidInput: 输入违反调用契约（非法 id 键、重复交换条目等）。
	ErrInvalidInput = errors.New("invalid input")
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
)

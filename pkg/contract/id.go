package contract

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// String 将 DialogueID 序列化为交换文件键："<file>:<ordinal>"。
func (id DialogueID) String() string {
	return fmt.Sprintf("%s:%d", id.File, id.Ordinal)
}

// ParseDialogueID 解析 "<file>:<ordinal>" 键。
// 文件名自身可含 ':'（理论上），故在最后一个 ':' 处分割。
func ParseDialogueID(s string) (DialogueID, error) {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return DialogueID{}, fmt.Errorf("dialogue id %q: %w", s, ErrInvalidInput)
	}
	n, err := strconv.Atoi(s[i+1:])
	if err != nil || n < 0 {
		return DialogueID{}, fmt.Errorf("dialogue id %q: ordinal: %w", s, ErrInvalidInput)
	}
	return DialogueID{File: FileID(s[:i]), Ordinal: n}, nil
}

// NormalizeFileID 规范化路径，统一为跨平台稳定的 FileID。
// 规则：
// - 使用正斜杠分隔符；
// - 清理多余分隔符与路径片段（.、..）；
// - 保留相对/绝对语义，不做隐式绝对化。
func NormalizeFileID(p string) FileID {
	s := strings.ReplaceAll(p, "\\", "/")
	return FileID(path.Clean(s))
}

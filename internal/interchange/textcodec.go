package interchange

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"tsckit/pkg/contract"
)

// TextCodec 在“脚本内对白字节”与“交换文件 UTF-8 文本”之间转换。
// 仅作用于对白载荷；结构字节永不经过本层，保证逐字节往返不受影响。
type TextCodec interface {
	// DecodeText: 脚本字节 → 交换文本。
	DecodeText(b []byte) (string, error)
	// EncodeText: 交换文本 → 脚本字节。
	EncodeText(s string) ([]byte, error)
	Name() string
}

// NewTextCodec 按名称构造编解码器。
// "utf8"（或空）为字节直通；"sjis" 在 Shift-JIS（日版脚本的实际编码）
// 与 UTF-8 之间转换，让翻译者始终编辑合法 UTF-8。
func NewTextCodec(name string) (TextCodec, error) {
	switch name {
	case "", "utf8":
		return rawCodec{}, nil
	case "sjis":
		return sjisCodec{}, nil
	}
	return nil, fmt.Errorf("text codec %q not registered: %w", name, contract.ErrInvalidInput)
}

// rawCodec: 字节直通。对任意输入都成功，未改动的条目必然逐字节复原。
type rawCodec struct{}

func (rawCodec) DecodeText(b []byte) (string, error) { return string(b), nil }
func (rawCodec) EncodeText(s string) ([]byte, error) { return []byte(s), nil }
func (rawCodec) Name() string                        { return "utf8" }

// sjisCodec: Shift-JIS ↔ UTF-8。
// 非法序列与不可编码字符快速失败并归类 ErrEncoding——静默替换
// 会让损坏悄悄写进游戏数据。
type sjisCodec struct{}

func (sjisCodec) DecodeText(b []byte) (string, error) {
	out, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), b)
	if err != nil {
		return "", fmt.Errorf("shift-jis decode: %v: %w", err, contract.ErrEncoding)
	}
	// 解码器对非法序列产出 U+FFFD 而不报错；Shift-JIS 本身无法编码
	// U+FFFD，因此替换符出现当且仅当输入非法。
	if strings.ContainsRune(string(out), utf8.RuneError) {
		return "", fmt.Errorf("shift-jis decode: invalid byte sequence: %w", contract.ErrEncoding)
	}
	return string(out), nil
}

func (sjisCodec) EncodeText(s string) ([]byte, error) {
	out, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte(s))
	if err != nil {
		return nil, fmt.Errorf("shift-jis encode: %v: %w", err, contract.ErrEncoding)
	}
	return out, nil
}

func (sjisCodec) Name() string { return "sjis" }

// Package script 实现 TSC 明文的分词、还原与脚本模型构建。
//
// 语法：命令以引导字节 '<' 开始，后接 3 字节助记符与零或多个
// 4 位十进制定宽参数（':' 分隔），参数个数由静态表决定。
// 其余一切字节都是字面文本。引导字节后接不成立的模式不算错误，
// 按普通文本处理——命令只在完整 助记符+参数 模式逐字节成立的
// 位置被识别，尽力而为的字面回退避免杂散字节引发伪损坏。
package script

import (
	"bytes"
	"fmt"

	"tsckit/pkg/contract"
)

const (
	introducer  = '<'
	mnemonicLen = 3
	argWidth    = 4
	argSep      = ':'
)

// Tokenize 将明文字节扫描为有序 Token 序列。永不失败：
// 任何不匹配命令语法的字节都并入文本 Token。
// 文本在可显示段与控制字节段的边界处切分，使构建器能把
// 控制段归为结构字节而不混入对白载荷。
func Tokenize(p []byte) []contract.Token {
	var toks []contract.Token
	var text []byte
	flush := func() {
		if len(text) > 0 {
			toks = append(toks, contract.Token{Kind: contract.TokenText, Text: text})
			text = nil
		}
	}
	for i := 0; i < len(p); {
		if p[i] == introducer {
			if cmd, n, ok := matchCommand(p[i:]); ok {
				flush()
				toks = append(toks, cmd)
				i += n
				continue
			}
		}
		b := p[i]
		if len(text) > 0 && displayableByte(b) != displayableByte(text[len(text)-1]) {
			flush()
		}
		text = append(text, b)
		i++
	}
	flush()
	return toks
}

// matchCommand 尝试在 p 开头识别一个完整命令。
// 返回命令 Token、消耗的字节数与是否成立；模式不完整或参数
// 槽位含非数字字节时整体不成立（调用方按文本回退）。
func matchCommand(p []byte) (contract.Token, int, bool) {
	if len(p) < 1+mnemonicLen {
		return contract.Token{}, 0, false
	}
	mnemonic := string(p[1 : 1+mnemonicLen])
	arity, ok := commandArgs[mnemonic]
	if !ok {
		return contract.Token{}, 0, false
	}
	off := 1 + mnemonicLen
	var args []int
	for a := 0; a < arity; a++ {
		if a > 0 {
			if off >= len(p) || p[off] != argSep {
				return contract.Token{}, 0, false
			}
			off++
		}
		if off+argWidth > len(p) {
			return contract.Token{}, 0, false
		}
		v := 0
		for _, d := range p[off : off+argWidth] {
			if d < '0' || d > '9' {
				return contract.Token{}, 0, false
			}
			v = v*10 + int(d-'0')
		}
		args = append(args, v)
		off += argWidth
	}
	return contract.Token{Kind: contract.TokenCommand, Mnemonic: mnemonic, Args: args}, off, true
}

// Detokenize 将 Token 序列还原为明文字节，是 Tokenize 的精确逆。
// 参数值超出定宽槽位（[0,9999]）或助记符/参数个数与表不符时返回
// ErrEncoding——显式检查，绝不静默截断。
func Detokenize(tokens []contract.Token) ([]byte, error) {
	var buf bytes.Buffer
	for _, tk := range tokens {
		switch tk.Kind {
		case contract.TokenText:
			buf.Write(tk.Text)
		case contract.TokenCommand:
			arity, ok := commandArgs[tk.Mnemonic]
			if !ok {
				return nil, fmt.Errorf("detokenize: command <%s not in table: %w", tk.Mnemonic, contract.ErrEncoding)
			}
			if arity != len(tk.Args) {
				return nil, fmt.Errorf("detokenize: command <%s wants %d args, has %d: %w", tk.Mnemonic, arity, len(tk.Args), contract.ErrEncoding)
			}
			buf.WriteByte(introducer)
			buf.WriteString(tk.Mnemonic)
			for j, a := range tk.Args {
				if j > 0 {
					buf.WriteByte(argSep)
				}
				if a < 0 || a > 9999 {
					return nil, fmt.Errorf("detokenize: command <%s arg %d value %d overflows 4-digit slot: %w", tk.Mnemonic, j, a, contract.ErrEncoding)
				}
				buf.WriteString(pad4(a))
			}
		default:
			return nil, fmt.Errorf("detokenize: unknown token kind %d: %w", tk.Kind, contract.ErrEncoding)
		}
	}
	return buf.Bytes(), nil
}

// displayableByte: 可显示字节（含制表/换行与所有高位字节，后者承载
// Shift-JIS 等多字节文本）；其余低位控制字节归入独立的结构文本段。
func displayableByte(b byte) bool {
	return b >= 0x20 || b == '\t' || b == '\r' || b == '\n'
}

// pad4 输出 4 位零填充十进制。调用方保证 v 在 [0,9999]。
func pad4(v int) string {
	var d [argWidth]byte
	for i := argWidth - 1; i >= 0; i-- {
		d[i] = byte('0' + v%10)
		v /= 10
	}
	return string(d[:])
}

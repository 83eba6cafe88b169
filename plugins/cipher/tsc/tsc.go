// Package tsc 实现 TSC 脚本文件的中点加法混淆。
//
// 变换自描述：密钥是文件正中（len/2 下取整）的那个字节，该字节本身
// 在两个方向上都保持原样；其余每个字节解码时回绕减去密钥、编码时
// 回绕加上密钥。空文件没有密钥字节，两个方向均为恒等变换。
package tsc

import "tsckit/pkg/contract"

// Cipher 实现 contract.Cipher。无状态，可并发复用。
type Cipher struct{}

// New 创建 TSC Cipher。
func New() *Cipher { return &Cipher{} }

var _ contract.Cipher = (*Cipher)(nil)

// Decode 从 raw 恢复明文。对任意输入都成功（本层不判定内容有效性）。
func (*Cipher) Decode(raw []byte) []byte {
	return apply(raw, func(b, k byte) byte { return b - k })
}

// Encode 将明文重新混淆为磁盘字节。密钥取自明文同一中点位置，
// 因该字节在 Decode 中未被改动，Encode(Decode(x)) == x 成立。
func (*Cipher) Encode(plain []byte) []byte {
	return apply(plain, func(b, k byte) byte { return b + k })
}

func apply(b []byte, op func(b, k byte) byte) []byte {
	out := make([]byte, len(b))
	if len(b) == 0 {
		return out
	}
	mid := len(b) / 2
	key := b[mid]
	for i, c := range b {
		if i == mid {
			out[i] = c
			continue
		}
		out[i] = op(c, key)
	}
	return out
}

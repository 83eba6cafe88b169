// Package plain 提供恒等 Cipher，用于处理已解密的脚本集
// （部分移植版随游戏数据直接发行明文 .tsc）。
package plain

import "tsckit/pkg/contract"

// Cipher 实现 contract.Cipher 的恒等变换。
type Cipher struct{}

// New 创建恒等 Cipher。
func New() *Cipher { return &Cipher{} }

var _ contract.Cipher = (*Cipher)(nil)

// Decode 原样拷贝。
func (*Cipher) Decode(raw []byte) []byte { return clone(raw) }

// Encode 原样拷贝。
func (*Cipher) Encode(plain []byte) []byte { return clone(plain) }

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

package contract

// Cipher: 按文件粒度的可逆字节变换，隔离“磁盘字节”与“明文命令/文本字节”。
// 约束：
//  1. Encode(Decode(x)) == x 与 Decode(Encode(x)) == x 对任意字节序列成立；
//  2. 密钥从原始字节中确定性恢复（自描述），不依赖外部状态；
//  3. 本层永不失败——任何字节序列在语法上都可解；
//     拒绝无意义内容是下游分词/构建层的职责；
//  4. 纯计算，无 I/O，无内部并发。
type Cipher interface {
	Decode(raw []byte) []byte
	Encode(plain []byte) []byte
}

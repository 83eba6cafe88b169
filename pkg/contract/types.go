package contract

// FileID: 逻辑脚本文件ID（通常为相对路径，需规范化，跨平台一致）。
type FileID string

// TokenKind: Token 的标签。
type TokenKind uint8

const (
	// TokenText: 连续的字面字节段（含换行、控制字节）。
	TokenText TokenKind = iota
	// TokenCommand: 固定语法的脚本命令（助记符 + 定宽参数）。
	TokenCommand
)

// Token: 脚本的原子词法单元。
// 约束：
// - 同一文件内 Token 为有序序列，顺序即脚本引擎的执行顺序；
// - Kind==TokenText 时仅 Text 有效；Kind==TokenCommand 时仅 Mnemonic/Args 有效；
// - Detokenize(Tokenize(p)) == p 必须逐字节成立。
type Token struct {
	Kind     TokenKind
	Text     []byte
	Mnemonic string
	Args     []int
}

// IsText 判断是否为字面文本 Token。
func (t Token) IsText() bool { return t.Kind == TokenText }

// Role: ScriptElement 的角色标注。
type Role uint8

const (
	// RoleStructural: 必须逐字节复原的结构字节（命令、控制段、填充文本）。
	RoleStructural Role = iota
	// RoleDialogue: 面向玩家显示、可翻译的文本载荷。
	RoleDialogue
)

// ScriptElement: 带角色标注的 Token。
// 不变量：翻译只改变 RoleDialogue 元素的文本载荷；
// RoleStructural 元素的集合与顺序永不改变。
type ScriptElement struct {
	Token Token
	Role  Role
	// ID: 仅 RoleDialogue 有效；由文件名与序数派生，永不依赖内容。
	ID DialogueID
	// Speaker: 可选说话者标注（来自最近的立绘命令）；仅供交换文件参考。
	Speaker string
}

// DialogueID: 稳定对白标识 (file, ordinal)。
// Ordinal 为该文件内对白元素的零基序数，按构建遍历顺序分配；
// 提取与回写使用同一遍历顺序，这是扁平映射能对回结构位置的承重不变量。
type DialogueID struct {
	File    FileID
	Ordinal int
}

// DialogueEntry: 交换映射中的一条对白。
type DialogueEntry struct {
	ID      DialogueID
	Text    string
	Speaker string
}

// DialogueMap: 提取与回写之间唯一的交换工件。
// 外部翻译器的全部契约：读 Text、可替换 Text、不得增删改键。
type DialogueMap map[DialogueID]DialogueEntry

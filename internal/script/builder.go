package script

import "tsckit/pkg/contract"

// Build 将 Token 序列标注为脚本元素序列。
// 对白判定策略：仅当文本 Token 是消息框族命令的显示载荷时才是对白；
// 框外文本、空白/控制段一律结构化，即便词法上是文本。
// 序数在同一次遍历中分配，提取与回写共享该遍历顺序。
func Build(tokens []contract.Token, file contract.FileID) []contract.ScriptElement {
	elems := make([]contract.ScriptElement, 0, len(tokens))
	ordinal := 0
	boxOpen := false
	speaker := "NP"
	for _, tk := range tokens {
		if tk.Kind == contract.TokenCommand {
			switch {
			case isMessageOpen(tk.Mnemonic):
				boxOpen = true
				speaker = "NP"
			case isBoxClose(tk.Mnemonic):
				boxOpen = false
			case tk.Mnemonic == "FAC" && len(tk.Args) == 1:
				speaker = FaceName(tk.Args[0])
			}
			elems = append(elems, contract.ScriptElement{Token: tk, Role: contract.RoleStructural})
			continue
		}
		if boxOpen && displayable(tk.Text) {
			elems = append(elems, contract.ScriptElement{
				Token:   tk,
				Role:    contract.RoleDialogue,
				ID:      contract.DialogueID{File: file, Ordinal: ordinal},
				Speaker: speaker,
			})
			ordinal++
			continue
		}
		elems = append(elems, contract.ScriptElement{Token: tk, Role: contract.RoleStructural})
	}
	return elems
}

// Flatten 丢弃角色标注，还原 Token 序列（Build 的逆，忽略标注）。
func Flatten(elems []contract.ScriptElement) []contract.Token {
	tokens := make([]contract.Token, len(elems))
	for i, e := range elems {
		tokens[i] = e.Token
	}
	return tokens
}

// displayable: 至少含一个非空白的可显示字节才算对白候选。
func displayable(b []byte) bool {
	for _, c := range b {
		if !displayableByte(c) {
			return false
		}
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return true
	}
	return false
}

// Package extract 实现单文件的对白提取：decode → tokenize → build →
// 收集对白条目。只读，不产生任何磁盘副作用。
package extract

import (
	"fmt"

	"tsckit/internal/interchange"
	"tsckit/internal/script"
	"tsckit/pkg/contract"
)

// Model: 单文件的脚本模型（解密并构建后的元素序列）。
// 同一阶段独占持有，在提取/回写之间传递，不共享。
type Model struct {
	File     contract.FileID
	Elements []contract.ScriptElement
}

// Parse 将磁盘字节解为脚本模型。本身不失败：密码层与分词层对任意
// 输入都有定义；内容是否有意义由对白判定与回写校验兜底。
func Parse(cipher contract.Cipher, fileID contract.FileID, raw []byte) Model {
	plain := cipher.Decode(raw)
	tokens := script.Tokenize(plain)
	return Model{File: fileID, Elements: script.Build(tokens, fileID)}
}

// Dialogues 收集模型中的全部对白条目（交换文本经 codec 转换）。
// 同一文件内 id 重复即构建器缺陷，致命且不可跳过。
func Dialogues(codec interchange.TextCodec, m Model) ([]contract.DialogueEntry, error) {
	var entries []contract.DialogueEntry
	seen := make(map[contract.DialogueID]struct{})
	for _, e := range m.Elements {
		if e.Role != contract.RoleDialogue {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("extract %s: %w", e.ID, contract.ErrIdentifierCollision)
		}
		seen[e.ID] = struct{}{}
		text, err := codec.DecodeText(e.Token.Text)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", e.ID, err)
		}
		entries = append(entries, contract.DialogueEntry{ID: e.ID, Text: text, Speaker: e.Speaker})
	}
	return entries, nil
}

// File 一步完成单文件提取。
func File(cipher contract.Cipher, codec interchange.TextCodec, fileID contract.FileID, raw []byte) ([]contract.DialogueEntry, error) {
	return Dialogues(codec, Parse(cipher, fileID, raw))
}

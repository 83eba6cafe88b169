// Package interchange 定义提取与回写之间的交换工件及其序列化。
//
// 交换文件是单个 JSON 文档：头部字段 + 有序 entries 数组。
// 用数组而不用 JSON 对象承载映射，有两个承重理由：
// 发现顺序得以保留（序数稳定性可直接对拍），且重复 id 在
// 读取时可检出而不是被对象键静默吞并。
package interchange

import (
	"encoding/json"
	"fmt"
	"io"

	"tsckit/pkg/contract"
)

// Version 为当前交换文档格式版本。
const Version = 1

// Document: 交换文件的持久化形状。
type Document struct {
	Version int `json:"version"`
	// GameDataRoot: 提取时的数据根（参考信息；回写不依赖它）。
	GameDataRoot string  `json:"game_data_root,omitempty"`
	Entries      []Entry `json:"entries"`
}

// Entry: 一条对白。ID 形如 "<file>:<ordinal>"；Speaker 为参考元信息，
// 回写只按 ID 匹配。
type Entry struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Speaker string `json:"speaker,omitempty"`
}

// Encode 将文档写出为缩进 JSON。不转义 HTML（对白常含 <、>）。
func Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Decode 从 r 严格解析文档（拒绝未知字段），并校验版本。
func Decode(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("interchange decode: %w", err)
	}
	if doc.Version != Version {
		return nil, fmt.Errorf("interchange decode: unsupported version %d: %w", doc.Version, contract.ErrInvalidInput)
	}
	return &doc, nil
}

// FromEntries 按发现顺序构造文档。
func FromEntries(root string, entries []contract.DialogueEntry) *Document {
	doc := &Document{Version: Version, GameDataRoot: root, Entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		doc.Entries = append(doc.Entries, Entry{ID: e.ID.String(), Text: e.Text, Speaker: e.Speaker})
	}
	return doc
}

// ToMap 将文档转换为 DialogueMap。
// 重复 id 违反唯一性不变量，直接失败。
func (d *Document) ToMap() (contract.DialogueMap, error) {
	m := make(contract.DialogueMap, len(d.Entries))
	for _, e := range d.Entries {
		id, err := contract.ParseDialogueID(e.ID)
		if err != nil {
			return nil, err
		}
		if _, dup := m[id]; dup {
			return nil, fmt.Errorf("interchange: duplicate entry %s: %w", id, contract.ErrInvalidInput)
		}
		m[id] = contract.DialogueEntry{ID: id, Text: e.Text, Speaker: e.Speaker}
	}
	return m, nil
}

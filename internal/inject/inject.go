// Package inject 实现对白回写：把翻译映射代入脚本模型，再序列化、
// 重新混淆为磁盘字节。未被翻译触及的结构元素逐字节保留。
package inject

import (
	"fmt"
	"sort"
	"strings"

	"tsckit/internal/extract"
	"tsckit/internal/interchange"
	"tsckit/internal/script"
	"tsckit/pkg/contract"
)

// MissingError 汇总单个文件内全部缺失的翻译 id。
// 一次报告全部缺失，避免补一条跑一遍的拉锯。
type MissingError struct {
	File contract.FileID
	IDs  []contract.DialogueID
}

func (e *MissingError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("inject %s: %d missing translation(s): %s", e.File, len(e.IDs), strings.Join(ids, ", "))
}

// Is 使 errors.Is(err, contract.ErrMissingTranslation) 成立。
func (e *MissingError) Is(target error) bool { return target == contract.ErrMissingTranslation }

// Apply 将 dmap 中的翻译代入模型并产出磁盘字节。
// 任一对白在 dmap 中缺失即整文件失败；禁止部分回写。
func Apply(m extract.Model, dmap contract.DialogueMap, codec interchange.TextCodec, cipher contract.Cipher) ([]byte, error) {
	elems := make([]contract.ScriptElement, len(m.Elements))
	copy(elems, m.Elements)

	var missing []contract.DialogueID
	for i := range elems {
		if elems[i].Role != contract.RoleDialogue {
			continue
		}
		entry, ok := dmap[elems[i].ID]
		if !ok {
			missing = append(missing, elems[i].ID)
			continue
		}
		payload, err := codec.EncodeText(entry.Text)
		if err != nil {
			return nil, fmt.Errorf("inject %s: %w", elems[i].ID, err)
		}
		elems[i].Token.Text = payload
	}
	if len(missing) > 0 {
		return nil, &MissingError{File: m.File, IDs: missing}
	}

	plain, err := script.Detokenize(script.Flatten(elems))
	if err != nil {
		return nil, fmt.Errorf("inject %s: %w", m.File, err)
	}
	return cipher.Encode(plain), nil
}

// Claimed 返回模型中出现的全部对白 id。回写前的预检用它对拍翻译
// 文件：模型之外的 id 即陈旧条目，必须在任何写出发生前拒绝。
func Claimed(m extract.Model) map[contract.DialogueID]struct{} {
	ids := make(map[contract.DialogueID]struct{})
	for _, e := range m.Elements {
		if e.Role == contract.RoleDialogue {
			ids[e.ID] = struct{}{}
		}
	}
	return ids
}

// Unclaimed 求翻译映射中不属于任何模型的 id，按字典序返回。
func Unclaimed(dmap contract.DialogueMap, claimed map[contract.DialogueID]struct{}) []contract.DialogueID {
	var extra []contract.DialogueID
	for id := range dmap {
		if _, ok := claimed[id]; !ok {
			extra = append(extra, id)
		}
	}
	sort.Slice(extra, func(i, j int) bool {
		if extra[i].File != extra[j].File {
			return extra[i].File < extra[j].File
		}
		return extra[i].Ordinal < extra[j].Ordinal
	})
	return extra
}

package registry

import (
	"bytes"
	"errors"
	"io"

	"gopkg.in/yaml.v3"

	"tsckit/pkg/contract"
	cplain "tsckit/plugins/cipher/plain"
	ctsc "tsckit/plugins/cipher/tsc"
	rfs "tsckit/plugins/reader/filesystem"
	wfs "tsckit/plugins/writer/filesystem"
)

// strictDecode: 将 Options 子树严格解码进 v，拒绝未知字段。
// 空子树保持 v 的零值（默认选项）。
func strictDecode(node *yaml.Node, v any) error {
	if node == nil || node.IsZero() {
		return nil
	}
	raw, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// NewReader 工厂签名：接收原样 YAML Options 子树。
type NewReader func(node *yaml.Node) (contract.Reader, error)

// NewWriter 工厂签名：接收原样 YAML Options 子树。
type NewWriter func(node *yaml.Node) (contract.Writer, error)

// NewCipher 工厂签名：密码层无选项，保留签名以与其余工厂一致。
type NewCipher func(node *yaml.Node) (contract.Cipher, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统 Reader（按扩展名过滤脚本）
	"fs": func(node *yaml.Node) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictDecode(node, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(node *yaml.Node) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictDecode(node, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}

// Cipher 工厂注册表。
var Cipher = map[string]NewCipher{
	// tsc: 中点加法混淆（原始脚本集的磁盘格式）
	"tsc": func(node *yaml.Node) (contract.Cipher, error) {
		if err := strictDecode(node, &struct{}{}); err != nil {
			return nil, err
		}
		return ctsc.New(), nil
	},
	// plain: 恒等变换（明文脚本集）
	"plain": func(node *yaml.Node) (contract.Cipher, error) {
		if err := strictDecode(node, &struct{}{}); err != nil {
			return nil, err
		}
		return cplain.New(), nil
	},
}

package config

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"tsckit/internal/interchange"
	"tsckit/internal/pipeline"
	"tsckit/pkg/registry"
)

// Validate 对最小必要边界做静态校验。
// needWriter: write 模式额外要求输出目录与 Writer 实现。
func Validate(cfg Config, needWriter bool) error {
	if strings.TrimSpace(cfg.GameDataRoot) == "" {
		return errors.New("config: game_data_root empty")
	}
	if cfg.Concurrency < 1 {
		return errors.New("config: concurrency must be >= 1")
	}
	if _, err := interchange.NewTextCodec(cfg.TextEncoding); err != nil {
		return fmt.Errorf("config: text_encoding %q not supported", cfg.TextEncoding)
	}
	// 组件名若为空，使用默认名（由 Defaults() 提供）。此处只要最终有值即可。
	if name := effName(cfg.Cipher, Defaults().Cipher); registry.Cipher[name] == nil {
		return fmt.Errorf("config: cipher %q not registered", name)
	}
	if name := effName(cfg.Components.Reader, Defaults().Components.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("config: reader %q not registered", name)
	}
	if needWriter {
		if name := effName(cfg.Components.Writer, Defaults().Components.Writer); registry.Writer[name] == nil {
			return fmt.Errorf("config: writer %q not registered", name)
		}
		if strings.TrimSpace(cfg.OutputDir) == "" {
			return errors.New("config: output_dir empty")
		}
	}
	return nil
}

// Assemble 构造 pipeline.Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 YAML 子树。
func Assemble(cfg Config, needWriter bool) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg, needWriter); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	// 有效名称
	d := Defaults()
	cn := effName(cfg.Cipher, d.Cipher)
	rn := effName(cfg.Components.Reader, d.Components.Reader)

	// 构造实例
	cipher, err := registry.Cipher[cn](nil)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	reader, err := registry.Reader[rn](&cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	codec, err := interchange.NewTextCodec(cfg.TextEncoding)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	comp := pipeline.Components{
		Reader: reader,
		Cipher: cipher,
		Codec:  codec,
	}

	if needWriter {
		wn := effName(cfg.Components.Writer, d.Components.Writer)
		node, err := writerOptions(cfg)
		if err != nil {
			return pipeline.Components{}, pipeline.Settings{}, err
		}
		w, err := registry.Writer[wn](node)
		if err != nil {
			return pipeline.Components{}, pipeline.Settings{}, err
		}
		comp.Writer = w
	}

	set := pipeline.Settings{
		Root:        cfg.GameDataRoot,
		Concurrency: cfg.Concurrency,
	}
	return comp, set, nil
}

// writerOptions 将顶层 output_dir 注入 Writer Options 子树。
// 顶层值（CLI/ENV 合并结果）优先于子树内的 output_dir。
func writerOptions(cfg Config) (*yaml.Node, error) {
	m := map[string]any{}
	if !cfg.Options.Writer.IsZero() {
		if err := cfg.Options.Writer.Decode(&m); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(cfg.OutputDir) != "" {
		m["output_dir"] = cfg.OutputDir
	}
	var n yaml.Node
	if err := n.Encode(m); err != nil {
		return nil, err
	}
	return &n, nil
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}

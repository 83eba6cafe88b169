package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults 返回带有安全默认值的 Config 雏形。
// 注意：GameDataRoot 不设默认（必须由 YAML/ENV/CLI 提供）。
func Defaults() Config {
	return Config{
		Concurrency:  1,
		Cipher:       "tsc",
		TextEncoding: "utf8",
		Components: Components{
			Reader: "fs",
			Writer: "fs",
		},
	}
}

// LoadYAML 从文件路径或原始 YAML 解析 Config（严格拒绝未知字段）。
func LoadYAML(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 YAML 子树为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	// 顶层
	if strings.TrimSpace(over.GameDataRoot) != "" {
		out.GameDataRoot = strings.TrimSpace(over.GameDataRoot)
	}
	if strings.TrimSpace(over.TranslationFile) != "" {
		out.TranslationFile = strings.TrimSpace(over.TranslationFile)
	}
	if strings.TrimSpace(over.OutputDir) != "" {
		out.OutputDir = strings.TrimSpace(over.OutputDir)
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if strings.TrimSpace(over.Cipher) != "" {
		out.Cipher = strings.TrimSpace(over.Cipher)
	}
	if strings.TrimSpace(over.TextEncoding) != "" {
		out.TextEncoding = strings.TrimSpace(over.TextEncoding)
	}
	// Logging
	if strings.TrimSpace(over.Logging.Level) != "" {
		out.Logging.Level = strings.TrimSpace(over.Logging.Level)
	}
	if strings.TrimSpace(over.Logging.Dir) != "" {
		out.Logging.Dir = strings.TrimSpace(over.Logging.Dir)
	}

	// 组件名（空不覆盖）
	if over.Components.Reader != "" {
		out.Components.Reader = over.Components.Reader
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}

	// Options（完整替换对应键）
	if !over.Options.Reader.IsZero() {
		out.Options.Reader = over.Options.Reader
	}
	if !over.Options.Writer.IsZero() {
		out.Options.Writer = over.Options.Writer
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 TSCKIT_；集合之外的键忽略。
// 支持：GAME_DATA_ROOT, TRANSLATION_FILE, OUTPUT_DIR, CONCURRENCY,
// CIPHER, TEXT_ENCODING, LOG_LEVEL, LOG_DIR
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, "TSCKIT_") {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len("TSCKIT_") {
			continue
		}
		key := kv[:eq]
		val := kv[eq+1:]
		switch strings.TrimPrefix(key, "TSCKIT_") {
		case "GAME_DATA_ROOT":
			over.GameDataRoot = strings.TrimSpace(val)
		case "TRANSLATION_FILE":
			over.TranslationFile = strings.TrimSpace(val)
		case "OUTPUT_DIR":
			over.OutputDir = strings.TrimSpace(val)
		case "CONCURRENCY":
			if v, err := atoi(val); err == nil {
				over.Concurrency = v
			}
		case "CIPHER":
			over.Cipher = strings.TrimSpace(val)
		case "TEXT_ENCODING":
			over.TextEncoding = strings.TrimSpace(val)
		case "LOG_LEVEL":
			over.Logging.Level = strings.TrimSpace(val)
		case "LOG_DIR":
			over.Logging.Dir = strings.TrimSpace(val)
		}
	}
	return over, nil
}

func atoi(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

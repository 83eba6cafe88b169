package config

import (
	"gopkg.in/yaml.v3"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// YAML 使用 snake_case；未知字段在解析期失败。
type Config struct {
	// GameDataRoot: 脚本所在目录（dump/verify 的输入，write 的基准）。
	GameDataRoot string `yaml:"game_data_root"`
	// TranslationFile: 交换文件路径（dump 的输出，write 的输入）。
	TranslationFile string `yaml:"translation_file"`
	// OutputDir: write 的输出根目录。
	OutputDir   string `yaml:"output_dir"`
	Concurrency int    `yaml:"concurrency"`
	// Cipher: 密码层实现名（tsc|plain）。
	Cipher string `yaml:"cipher"`
	// TextEncoding: 对白载荷编码（utf8|sjis）。
	TextEncoding string  `yaml:"text_encoding"`
	Logging      Logging `yaml:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `yaml:"components"`

	// 各组件 Options 子树，原样 YAML 传入工厂。
	Options Options `yaml:"options"`
}

// Logging: 日志等级与目录可配置；轮转策略为固定默认。
type Logging struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader string `yaml:"reader"`
	Writer string `yaml:"writer"`
}

// Options: 各组件的原样 YAML Options。
type Options struct {
	Reader yaml.Node `yaml:"reader"`
	Writer yaml.Node `yaml:"writer"`
}

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	cfgpkg "tsckit/internal/config"
	"tsckit/internal/diag"
	"tsckit/internal/interchange"
	"tsckit/internal/pipeline"
	"tsckit/pkg/contract"
)

var (
	pipelineDump   = pipeline.Dump
	pipelineWrite  = pipeline.Write
	pipelineVerify = pipeline.Verify
)

// 子命令式 CLI：dump | write | verify。
// 位置参数为 game_data_root（覆盖配置）。
// 全局旗标（最小集）：--config, --translation-file, --output-dir,
// --concurrency, --cipher, --text-encoding, --status, --init-config
func main() {
	os.Exit(run())
}

func run() int {
	start := time.Now()
	corrID := genCorrID()
	// 在任何 ENV 读取前，尝试加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = loadDotEnv(".env")
	// 先占位默认 logger，解析/合并配置后以最终 level 重建
	logger := diag.NewLogger(corrID, "info", "")

	mode, rest := splitMode(os.Args[1:])

	// flags
	var (
		flagConfig      string
		flagTranslation string
		flagOutputDir   string
		flagConcurrency int
		flagCipher      string
		flagEncoding    string
		flagInitDir     string
		flagStatus      bool
	)
	flag.StringVar(&flagConfig, "config", "", "配置文件路径（YAML）；缺省读取 ./config.yaml（若存在）")
	flag.StringVar(&flagTranslation, "translation-file", "", "交换文件路径（dump 的输出 / write 的输入；\"-\" 表示标准流）")
	flag.StringVar(&flagOutputDir, "output-dir", "", "write 的输出根目录（覆盖配置）")
	flag.IntVar(&flagConcurrency, "concurrency", 0, "并发度（覆盖配置）")
	flag.StringVar(&flagCipher, "cipher", "", "密码层名称：tsc | plain（覆盖配置）")
	flag.StringVar(&flagEncoding, "text-encoding", "", "对白载荷编码：utf8 | sjis（覆盖配置）")
	flag.StringVar(&flagInitDir, "init-config", "", "在指定目录生成默认配置 config.yaml 和 .env 模板（不覆盖已存在文件）；不带值时默认当前目录")
	flag.BoolVar(&flagStatus, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	rest = normalizeInitArg(rest)
	if err := flag.CommandLine.Parse(rest); err != nil {
		return 3
	}

	// --init-config: 生成模板并退出（不需要子命令）
	if initDir := strings.TrimSpace(flagInitDir); initDir != "" {
		if err := initConfig(initDir); err != nil {
			fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
			logger.Error("cli", string(diag.Classify(err)), "init config", &start)
			return 3
		}
		return 0
	}

	switch mode {
	case "dump", "write", "verify":
	default:
		usage()
		return 3
	}

	// 位置参数：至多一个 game_data_root
	args := flag.Args()
	if len(args) > 1 {
		fprintf(os.Stderr, "多余的位置参数: %v\n", args[1:])
		usage()
		return 3
	}

	// YAML 配置（文件或 ENV: TSCKIT_CONFIG_YAML）
	var cfgYAML []byte
	if s := os.Getenv("TSCKIT_CONFIG_YAML"); s != "" {
		cfgYAML = []byte(s)
	}
	if flagConfig == "" {
		if s := os.Getenv("TSCKIT_CONFIG_FILE"); s != "" {
			flagConfig = s
		}
	}
	// 默认读取工作目录下 config.yaml（若存在）
	if flagConfig == "" && len(cfgYAML) == 0 {
		if _, err := os.Stat("config.yaml"); err == nil {
			flagConfig = "config.yaml"
		}
	}

	cfg := cfgpkg.Defaults()
	if flagConfig != "" || len(cfgYAML) > 0 {
		base, err := cfgpkg.LoadYAML(flagConfig, cfgYAML)
		if err != nil {
			fprintf(os.Stderr, "配置解析失败: %v\n", err)
			logger.Error("cli", string(diag.Classify(err)), "load config", &start)
			return 3
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	// ENV 覆盖（最小集合）
	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		fprintf(os.Stderr, "环境变量解析失败: %v\n", err)
		logger.Error("cli", string(diag.Classify(err)), "env overlay", &start)
		return 3
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	// CLI 覆盖
	var overCLI cfgpkg.Config
	if len(args) == 1 {
		overCLI.GameDataRoot = args[0]
	}
	overCLI.TranslationFile = flagTranslation
	overCLI.OutputDir = flagOutputDir
	if flagConcurrency > 0 {
		overCLI.Concurrency = flagConcurrency
	}
	overCLI.Cipher = flagCipher
	overCLI.TextEncoding = flagEncoding
	cfg = cfgpkg.Merge(cfg, overCLI)

	// write 模式要求交换文件来源
	needWriter := mode == "write"
	if needWriter && strings.TrimSpace(cfg.TranslationFile) == "" {
		fprintf(os.Stderr, "write 需要 --translation-file（或配置 translation_file）\n")
		return 3
	}

	// 基本校验 & 装配
	if err := cfgpkg.Validate(cfg, needWriter); err != nil {
		fprintf(os.Stderr, "配置校验失败: %v\n", err)
		// 提示打印有效配置，便于诊断
		_ = dumpConfig(cfg)
		logger.Error("cli", string(diag.Classify(err)), "validate", &start)
		return 3
	}

	// 使用最终配置中的日志级别/目录重建 logger
	logLevel := "info"
	if strings.TrimSpace(cfg.Logging.Level) != "" {
		logLevel = strings.TrimSpace(cfg.Logging.Level)
	}
	logger = diag.NewLogger(corrID, logLevel, cfg.Logging.Dir)

	comp, set, err := cfgpkg.Assemble(cfg, needWriter)
	if err != nil {
		fprintf(os.Stderr, "装配失败: %v\n", err)
		logger.Error("cli", string(diag.Classify(err)), "assemble", &start)
		return 3
	}

	// 终端信息提示（非日志）：按 CLI 启用，默认开启
	term := diag.NewTerminal(os.Stderr, flagStatus)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)

	// debug: 输出运行时配置信息
	if logger != nil {
		kv := map[string]string{
			"mode":          mode,
			"root":          cfg.GameDataRoot,
			"concurrency":   fmt.Sprintf("%d", cfg.Concurrency),
			"cipher":        cfg.Cipher,
			"text_encoding": cfg.TextEncoding,
			"reader":        cfg.Components.Reader,
			"writer":        cfg.Components.Writer,
		}
		logger.DebugStart("config", "effective", "", kv)
	}

	t := logger.Start("cli", mode)
	if err := dispatch(context.Background(), mode, cfg, comp, set, logger); err != nil {
		code := string(diag.Classify(err))
		logger.Error("cli", code, "first error", &start)
		diag.IncOp("cli", "error", "error")
		if code != "" && code != string(diag.CodeUnknown) {
			diag.IncError("cli", code)
		}
		if !errors.Is(err, context.Canceled) {
			fprintf(os.Stderr, "运行失败: %v\n", err)
		}
		return 1
	}
	if t != nil {
		t.Finish(mode, 0)
	}
	diag.IncOp("cli", "finish", "success")
	diag.ObserveDuration("cli", "finish", time.Since(start).Milliseconds())
	return 0
}

// dispatch 按子命令运行流水线，并处理交换文件的读写两端。
func dispatch(ctx context.Context, mode string, cfg cfgpkg.Config, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) error {
	switch mode {
	case "dump":
		doc, err := pipelineDump(ctx, comp, set, logger)
		if err != nil {
			return err
		}
		return writeDocument(cfg.TranslationFile, doc)
	case "write":
		dmap, err := readTranslation(cfg.TranslationFile)
		if err != nil {
			return err
		}
		return pipelineWrite(ctx, comp, set, logger, dmap)
	case "verify":
		return pipelineVerify(ctx, comp, set, logger)
	}
	return fmt.Errorf("unknown mode: %s", mode)
}

// readTranslation 读取并解析交换文件，产出 id→译文映射。
// 路径 "-" 表示标准输入。
func readTranslation(path string) (contract.DialogueMap, error) {
	var f *os.File
	if strings.TrimSpace(path) == "-" {
		f = os.Stdin
	} else {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
	}
	doc, err := interchange.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("translation file: %w", err)
	}
	return doc.ToMap()
}

// writeDocument 序列化交换文档。路径为空或 "-" 时写 stdout；
// 否则经同目录临时文件 + rename 原子落盘，失败不破坏旧文件。
func writeDocument(path string, doc *interchange.Document) error {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		return interchange.Encode(os.Stdout, doc)
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(dir, ".tsckit-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if err := interchange.Encode(tmp, doc); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func fprintf(w *os.File, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func usage() {
	fprintf(os.Stderr, "用法: tsckit <dump|write|verify> [flags] [game_data_root]\n")
	fprintf(os.Stderr, "      tsckit --init-config [dir]\n")
	fprintf(os.Stderr, "旗标:\n")
	flag.PrintDefaults()
}

// splitMode 取出首个子命令参数，其余参数原样保留。
// 按命令名匹配而不是按位置，允许旗标写在子命令前后任意一侧。
func splitMode(args []string) (string, []string) {
	for i, a := range args {
		switch a {
		case "dump", "write", "verify":
			rest := make([]string, 0, len(args)-1)
			rest = append(rest, args[:i]...)
			rest = append(rest, args[i+1:]...)
			return a, rest
		}
	}
	return "", args
}

func dumpConfig(c cfgpkg.Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	_, _ = os.Stderr.Write(append([]byte("有效配置:\n"), b...))
	return nil
}

// initConfig 在目标目录生成 config.yaml 与 .env 模板。
// config.yaml 已存在视为错误（不覆盖）；.env 已存在则静默跳过。
func initConfig(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	cfgPath := filepath.Join(dir, "config.yaml")
	f, err := os.OpenFile(cfgPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(cfgpkg.TemplateYAML); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := writeDotEnv(filepath.Join(dir, ".env")); err != nil {
		fprintf(os.Stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
	}
	return nil
}

func genCorrID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(b[:])
}

// loadDotEnv 读取简单的 .env 文件格式并注入进程环境。
// 规则：
// - 忽略不存在的文件；无法读取时返回错误（但调用处可忽略）。
// - 跳过空行与以 # 开头的行；支持可选的前缀 "export ".
// - 仅按首个 '=' 分割；key 为左侧去空白；value 去首尾空白；
// - 若 value 被成对的单/双引号包裹，则去除外层引号；双引号内常见转义 \n/\t/\\/\" 作最小处理。
// - 不覆盖已存在的环境变量（保持系统/调用者优先）。
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		if key == "" {
			continue
		}
		// 去除成对引号
		if len(val) >= 2 {
			if (val[0] == '\'' && val[len(val)-1] == '\'') || (val[0] == '"' && val[len(val)-1] == '"') {
				quoted := val[0]
				val = val[1 : len(val)-1]
				if quoted == '"' {
					// 最小转义处理
					val = strings.ReplaceAll(val, "\\n", "\n")
					val = strings.ReplaceAll(val, "\\t", "\t")
					val = strings.ReplaceAll(val, "\\r", "\r")
					val = strings.ReplaceAll(val, "\\\"", "\"")
					val = strings.ReplaceAll(val, "\\\\", "\\")
				}
			}
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return s.Err()
}

// normalizeInitArg: 允许 --init-config 在未提供路径值时采用默认值当前目录 "."。
// 兼容以下形式：
//
//	--init-config                => 等价于 --init-config .
//	--init-config=out
//	--init-config out
//
// 仅在检测到“裸开关或后继为下一个开关”的情况下插入默认值。
func normalizeInitArg(args []string) []string {
	out := make([]string, 0, len(args)+1)
	for i := 0; i < len(args); i++ {
		a := args[i]
		out = append(out, a)
		if a == "--init-config" || a == "-init-config" {
			if i == len(args)-1 || strings.HasPrefix(args[i+1], "-") {
				out = append(out, ".")
			}
		}
	}
	return out
}

// writeDotEnv 生成 .env 模板（若文件已存在则跳过）。
// 仅创建文件；不覆盖，不合并。
func writeDotEnv(path string) error {
	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		// 已存在直接跳过
		return nil
	} else if err != nil && !os.IsNotExist(err) {
		return err
	}
	var b strings.Builder
	b.WriteString("# tsckit .env 模板（由 --init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > YAML\n")
	b.WriteString("# 空值表示未设置；按需填写后移除本行注释。\n\n")

	b.WriteString("# 配置来源（可二选一）\n")
	b.WriteString("TSCKIT_CONFIG_FILE=\n")
	b.WriteString("TSCKIT_CONFIG_YAML=\n\n")

	b.WriteString("# 运行参数覆盖\n")
	b.WriteString("TSCKIT_GAME_DATA_ROOT=\n")
	b.WriteString("TSCKIT_TRANSLATION_FILE=\n")
	b.WriteString("TSCKIT_OUTPUT_DIR=\n")
	b.WriteString("TSCKIT_CONCURRENCY=\n")
	b.WriteString("TSCKIT_CIPHER=\n")
	b.WriteString("TSCKIT_TEXT_ENCODING=\n\n")

	b.WriteString("# 日志\n")
	b.WriteString("TSCKIT_LOG_LEVEL=\n")
	b.WriteString("TSCKIT_LOG_DIR=\n")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		return err
	}
	return nil
}

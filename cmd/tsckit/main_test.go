package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tsckit/internal/diag"
	"tsckit/internal/interchange"
	"tsckit/internal/pipeline"
	"tsckit/pkg/contract"
)

func resetFlag(args []string) {
	flag.CommandLine = flag.NewFlagSet(args[0], flag.ContinueOnError)
	os.Args = args
}

// 最小可校验配置（无需磁盘上的真实脚本目录）
const minimalYAML = "game_data_root: \"data\"\n"

func TestSplitMode(t *testing.T) {
	mode, rest := splitMode([]string{"--status=false", "dump", "--concurrency", "2", "data"})
	if mode != "dump" {
		t.Fatalf("mode = %q", mode)
	}
	if len(rest) != 4 || rest[0] != "--status=false" || rest[3] != "data" {
		t.Fatalf("rest = %v", rest)
	}
	// 带值旗标在子命令之前也不会被误认成子命令
	mode, rest = splitMode([]string{"--config", "c.yaml", "verify"})
	if mode != "verify" || len(rest) != 2 || rest[1] != "c.yaml" {
		t.Fatalf("旗标值被误判: %q %v", mode, rest)
	}
	mode, rest = splitMode([]string{"--init-config"})
	if mode != "" || len(rest) != 1 {
		t.Fatalf("无子命令应返回空: %q %v", mode, rest)
	}
}

func TestNormalizeInitArg(t *testing.T) {
	out := normalizeInitArg([]string{"--init-config"})
	if len(out) != 2 || out[1] != "." {
		t.Fatalf("裸开关未补默认值: %v", out)
	}
	out = normalizeInitArg([]string{"--init-config", "--status=false"})
	if len(out) != 3 || out[1] != "." {
		t.Fatalf("后继开关未补默认值: %v", out)
	}
	out = normalizeInitArg([]string{"--init-config", "emit"})
	if len(out) != 2 || out[1] != "emit" {
		t.Fatalf("显式值被改写: %v", out)
	}
}

func TestRunInitConfig(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	outDir := filepath.Join(dir, "emit")
	resetFlag([]string{"tsckit", "--init-config", outDir})
	if code := run(); code != 0 {
		t.Fatalf("run return %d", code)
	}
	if _, err := os.Stat(filepath.Join(outDir, "config.yaml")); err != nil {
		t.Fatalf("config 未生成: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, ".env")); err != nil {
		t.Fatalf(".env 未生成: %v", err)
	}
}

func TestRunInitConfigDefault(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	resetFlag([]string{"tsckit", "--init-config"})
	if code := run(); code != 0 {
		t.Fatalf("run return %d", code)
	}
	if _, err := os.Stat("config.yaml"); err != nil {
		t.Fatalf("config 未生成: %v", err)
	}
}

func TestRunInitConfigFileExists(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	outDir := filepath.Join(dir, "emit")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "config.yaml"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	resetFlag([]string{"tsckit", "--init-config", outDir})
	if code := run(); code != 3 {
		t.Fatalf("expect 3, got %d", code)
	}
}

func TestRunNoMode(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	resetFlag([]string{"tsckit"})
	if code := run(); code != 3 {
		t.Fatalf("expect 3, got %d", code)
	}
}

func TestRunUnknownMode(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	resetFlag([]string{"tsckit", "translate"})
	if code := run(); code != 3 {
		t.Fatalf("expect 3, got %d", code)
	}
}

func TestRunConfigFileNotFound(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	resetFlag([]string{"tsckit", "verify", "--config", "missing.yaml"})
	if code := run(); code != 3 {
		t.Fatalf("expect 3, got %d", code)
	}
}

func TestRunValidateError(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	// game_data_root 缺失
	t.Setenv("TSCKIT_CONFIG_YAML", "concurrency: 2\n")
	resetFlag([]string{"tsckit", "verify", "--status=false"})
	if code := run(); code != 3 {
		t.Fatalf("expect 3, got %d", code)
	}
}

func TestRunVerifySuccess(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)
	t.Setenv("TSCKIT_CONFIG_YAML", minimalYAML)

	resetFlag([]string{"tsckit", "verify", "--status=false"})
	called := false
	orig := pipelineVerify
	pipelineVerify = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) error {
		called = true
		if set.Root != "data" {
			t.Fatalf("root = %q", set.Root)
		}
		return nil
	}
	defer func() { pipelineVerify = orig }()

	if code := run(); code != 0 {
		t.Fatalf("run return %d", code)
	}
	if !called {
		t.Fatalf("pipelineVerify 未被调用")
	}
}

func TestRunCLIOverrides(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)
	t.Setenv("TSCKIT_CONFIG_YAML", minimalYAML)

	resetFlag([]string{"tsckit", "verify", "--status=false", "--concurrency", "2", "--cipher", "plain", "alt-root"})
	orig := pipelineVerify
	defer func() { pipelineVerify = orig }()
	pipelineVerify = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) error {
		if set.Concurrency != 2 || set.Root != "alt-root" {
			t.Fatalf("CLI 覆盖未生效: %+v", set)
		}
		return nil
	}
	if code := run(); code != 0 {
		t.Fatalf("run return %d", code)
	}
}

func TestRunEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)
	t.Setenv("TSCKIT_GAME_DATA_ROOT", "env-root")
	t.Setenv("TSCKIT_CONCURRENCY", "5")

	resetFlag([]string{"tsckit", "verify", "--status=false"})
	orig := pipelineVerify
	defer func() { pipelineVerify = orig }()
	pipelineVerify = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) error {
		if set.Root != "env-root" || set.Concurrency != 5 {
			t.Fatalf("ENV 覆盖未生效: %+v", set)
		}
		return nil
	}
	if code := run(); code != 0 {
		t.Fatalf("run return %d", code)
	}
}

func TestRunPipelineError(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)
	t.Setenv("TSCKIT_CONFIG_YAML", minimalYAML)

	resetFlag([]string{"tsckit", "verify", "--status=false"})
	orig := pipelineVerify
	defer func() { pipelineVerify = orig }()
	pipelineVerify = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) error {
		return errors.New("boom")
	}
	if code := run(); code != 1 {
		t.Fatalf("expect 1, got %d", code)
	}
}

func TestRunDumpWritesFile(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)
	t.Setenv("TSCKIT_CONFIG_YAML", minimalYAML)

	out := filepath.Join(dir, "nested", "dialogue.json")
	resetFlag([]string{"tsckit", "dump", "--status=false", "--translation-file", out})
	orig := pipelineDump
	defer func() { pipelineDump = orig }()
	pipelineDump = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) (*interchange.Document, error) {
		entries := []contract.DialogueEntry{
			{ID: contract.DialogueID{File: "Head.tsc", Ordinal: 0}, Text: "Hello", Speaker: "NP"},
		}
		return interchange.FromEntries(set.Root, entries), nil
	}
	if code := run(); code != 0 {
		t.Fatalf("run return %d", code)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("交换文件未写出: %v", err)
	}
	if !strings.Contains(string(b), `"Head.tsc:0"`) || !strings.Contains(string(b), `"Hello"`) {
		t.Fatalf("交换文件内容不完整: %s", b)
	}
}

func TestRunWriteReadsTranslation(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)
	t.Setenv("TSCKIT_CONFIG_YAML", minimalYAML+"output_dir: \"out\"\n")

	// 先写出一份合法交换文件
	tf := filepath.Join(dir, "dialogue.json")
	doc := interchange.FromEntries("data", []contract.DialogueEntry{
		{ID: contract.DialogueID{File: "Head.tsc", Ordinal: 0}, Text: "Bonjour", Speaker: "NP"},
	})
	f, err := os.Create(tf)
	if err != nil {
		t.Fatal(err)
	}
	if err := interchange.Encode(f, doc); err != nil {
		t.Fatal(err)
	}
	f.Close()

	resetFlag([]string{"tsckit", "write", "--status=false", "--translation-file", tf})
	var got contract.DialogueMap
	orig := pipelineWrite
	defer func() { pipelineWrite = orig }()
	pipelineWrite = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger, dmap contract.DialogueMap) error {
		got = dmap
		return nil
	}
	if code := run(); code != 0 {
		t.Fatalf("run return %d", code)
	}
	e, ok := got[contract.DialogueID{File: "Head.tsc", Ordinal: 0}]
	if !ok || e.Text != "Bonjour" {
		t.Fatalf("翻译映射未传入: %+v", got)
	}
}

func TestRunWriteMissingTranslation(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)
	t.Setenv("TSCKIT_CONFIG_YAML", minimalYAML+"output_dir: \"out\"\n")

	resetFlag([]string{"tsckit", "write", "--status=false"})
	if code := run(); code != 3 {
		t.Fatalf("expect 3, got %d", code)
	}
}

func TestRunWriteBadTranslationFile(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)
	t.Setenv("TSCKIT_CONFIG_YAML", minimalYAML+"output_dir: \"out\"\n")

	tf := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(tf, []byte(`{"version":99,"entries":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	resetFlag([]string{"tsckit", "write", "--status=false", "--translation-file", tf})
	if code := run(); code != 1 {
		t.Fatalf("expect 1, got %d", code)
	}
}

func TestRunDefaultConfigFile(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	if err := os.WriteFile("config.yaml", []byte(minimalYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	resetFlag([]string{"tsckit", "verify", "--status=false"})
	called := false
	orig := pipelineVerify
	defer func() { pipelineVerify = orig }()
	pipelineVerify = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) error {
		called = true
		return nil
	}
	if code := run(); code != 0 {
		t.Fatalf("run return %d", code)
	}
	if !called {
		t.Fatalf("pipelineVerify 未被调用")
	}
}

func TestWriteDocumentReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dialogue.json")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	doc := interchange.FromEntries("data", nil)
	if err := writeDocument(path, doc); err != nil {
		t.Fatalf("writeDocument: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"version": 1`) {
		t.Fatalf("旧内容未被替换: %s", b)
	}
	// 临时文件不残留
	ents, _ := os.ReadDir(dir)
	if len(ents) != 1 {
		t.Fatalf("目录残留临时文件: %v", ents)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	content := "# comment\nexport TSCKIT_TEST_A=plain\nTSCKIT_TEST_B=\"x\\ny\"\nTSCKIT_TEST_C='quoted'\nbroken line\n"
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"TSCKIT_TEST_A", "TSCKIT_TEST_B", "TSCKIT_TEST_C"} {
		os.Unsetenv(k)
		defer os.Unsetenv(k)
	}
	t.Setenv("TSCKIT_TEST_C", "keep")
	if err := loadDotEnv(p); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}
	if v := os.Getenv("TSCKIT_TEST_A"); v != "plain" {
		t.Fatalf("A = %q", v)
	}
	if v := os.Getenv("TSCKIT_TEST_B"); v != "x\ny" {
		t.Fatalf("B = %q", v)
	}
	if v := os.Getenv("TSCKIT_TEST_C"); v != "keep" {
		t.Fatalf("已有 ENV 被覆盖: %q", v)
	}
	if err := loadDotEnv(filepath.Join(dir, "absent.env")); err != nil {
		t.Fatalf("不存在的文件应被忽略: %v", err)
	}
}

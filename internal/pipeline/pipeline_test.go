package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	readerfs "tsckit/plugins/reader/filesystem"
	writerfs "tsckit/plugins/writer/filesystem"

	ciphertsc "tsckit/plugins/cipher/tsc"

	"tsckit/internal/interchange"
	"tsckit/pkg/contract"
)

func writeScript(t *testing.T, root, rel, plain string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	raw := ciphertsc.New().Encode([]byte(plain))
	if err := os.WriteFile(p, raw, 0o644); err != nil {
		t.Fatal(err)
	}
}

func newComponents(t *testing.T, outDir, codecName string) Components {
	t.Helper()
	codec, err := interchange.NewTextCodec(codecName)
	if err != nil {
		t.Fatal(err)
	}
	comp := Components{
		Reader: readerfs.New(nil),
		Cipher: ciphertsc.New(),
		Codec:  codec,
	}
	if outDir != "" {
		w, err := writerfs.New(&writerfs.Options{OutputDir: outDir})
		if err != nil {
			t.Fatal(err)
		}
		comp.Writer = w
	}
	return comp
}

// TestDumpWriteRoundTrip 提取→改写→回写→再提取的端到端往返。
func TestDumpWriteRoundTrip(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeScript(t, root, "Stage/Almond.tsc", "#0100\r\n<MSGHello!<NOD<CLRBye.<NOD<END")
	writeScript(t, root, "Head.tsc", "#0090\r\n<MSGShared line<NOD<END")

	comp := newComponents(t, out, "utf8")
	set := Settings{Root: root, Concurrency: 4}

	doc, err := Dump(context.Background(), comp, set, nil)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	// 目录优先于文件，目录内字典序
	wantIDs := []string{"Stage/Almond.tsc:0", "Stage/Almond.tsc:1", "Head.tsc:0"}
	if len(doc.Entries) != len(wantIDs) {
		t.Fatalf("entries = %d, want %d", len(doc.Entries), len(wantIDs))
	}
	for i, want := range wantIDs {
		if doc.Entries[i].ID != want {
			t.Fatalf("entry %d id = %s, want %s", i, doc.Entries[i].ID, want)
		}
	}

	// 改写一条，原样保留其余
	doc.Entries[0].Text = "Bonjour !"
	dmap, err := doc.ToMap()
	if err != nil {
		t.Fatal(err)
	}
	if err := Write(context.Background(), comp, set, nil, dmap); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// 回写结果再提取，文本应为替换后的
	set2 := Settings{Root: out, Concurrency: 1}
	doc2, err := Dump(context.Background(), comp, set2, nil)
	if err != nil {
		t.Fatalf("Dump(out): %v", err)
	}
	if doc2.Entries[0].Text != "Bonjour !" || doc2.Entries[1].Text != "Bye." {
		t.Fatalf("round trip entries: %+v", doc2.Entries)
	}

	// 未改写的文件必须逐字节一致
	a, _ := os.ReadFile(filepath.Join(root, "Head.tsc"))
	b, _ := os.ReadFile(filepath.Join(out, "Head.tsc"))
	if !bytes.Equal(a, b) {
		t.Fatal("未改写文件回写后字节不一致")
	}
}

// TestWritePreflightMissing 缺失翻译时不产生任何输出文件。
func TestWritePreflightMissing(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeScript(t, root, "a.tsc", "<MSGone<NOD<CLRtwo<NOD<END")

	comp := newComponents(t, out, "utf8")
	set := Settings{Root: root, Concurrency: 2}
	dmap := contract.DialogueMap{
		{File: "a.tsc", Ordinal: 0}: {ID: contract.DialogueID{File: "a.tsc", Ordinal: 0}, Text: "x"},
	}
	err := Write(context.Background(), comp, set, nil, dmap)
	if !errors.Is(err, contract.ErrMissingTranslation) {
		t.Fatalf("want ErrMissingTranslation, got %v", err)
	}
	ents, _ := os.ReadDir(out)
	if len(ents) != 0 {
		t.Fatalf("预检失败仍产生了输出: %v", ents)
	}
}

// TestWritePreflightUnknown 多余条目在任何写出前拒绝，并点名全部 id。
func TestWritePreflightUnknown(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeScript(t, root, "a.tsc", "<MSGone<NOD<END")

	comp := newComponents(t, out, "utf8")
	set := Settings{Root: root, Concurrency: 2}
	dmap := contract.DialogueMap{
		{File: "a.tsc", Ordinal: 0}:    {ID: contract.DialogueID{File: "a.tsc", Ordinal: 0}, Text: "x"},
		{File: "gone.tsc", Ordinal: 3}: {ID: contract.DialogueID{File: "gone.tsc", Ordinal: 3}, Text: "stale"},
	}
	err := Write(context.Background(), comp, set, nil, dmap)
	if !errors.Is(err, contract.ErrUnknownTranslation) {
		t.Fatalf("want ErrUnknownTranslation, got %v", err)
	}
	if !strings.Contains(err.Error(), "gone.tsc:3") {
		t.Fatalf("错误未点名陈旧条目: %v", err)
	}
	ents, _ := os.ReadDir(out)
	if len(ents) != 0 {
		t.Fatalf("预检失败仍产生了输出: %v", ents)
	}
}

// TestDumpCollectsAllErrors 单文件失败不截断其余文件，错误聚合报告。
func TestDumpCollectsAllErrors(t *testing.T) {
	root := t.TempDir()
	bad := []byte("<MSG")
	bad = append(bad, 0x82) // 截断的 Shift-JIS 序列
	bad = append(bad, []byte("<NOD<END")...)
	os.WriteFile(filepath.Join(root, "bad1.tsc"), ciphertsc.New().Encode(bad), 0o644)
	os.WriteFile(filepath.Join(root, "bad2.tsc"), ciphertsc.New().Encode(bad), 0o644)
	writeScript(t, root, "good.tsc", "<MSGok<NOD<END")

	comp := newComponents(t, "", "sjis")
	_, err := Dump(context.Background(), comp, Settings{Root: root, Concurrency: 2}, nil)
	if err == nil {
		t.Fatal("expect aggregate error")
	}
	var run RunErrors
	if !errors.As(err, &run) {
		t.Fatalf("want RunErrors, got %T", err)
	}
	if len(run) != 2 {
		t.Fatalf("len(RunErrors) = %d, want 2", len(run))
	}
	if !errors.Is(err, contract.ErrEncoding) {
		t.Fatalf("聚合层应穿透哨兵: %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "bad1.tsc") || !strings.Contains(msg, "bad2.tsc") {
		t.Fatalf("错误应点名全部失败文件: %s", msg)
	}
}

// TestVerifyOK 任意结构（含未知命令与控制字节）都满足往返不变量。
func TestVerifyOK(t *testing.T) {
	root := t.TempDir()
	writeScript(t, root, "a.tsc", "#0100\r\n<MSGHi<NOD<XYZ<FAO0004<END")
	weird := []byte("<MSG\x00\x01")
	weird = append(weird, []byte("text<NOD<TRA0012:0100:0005:0002")...)
	os.WriteFile(filepath.Join(root, "b.tsc"), ciphertsc.New().Encode(weird), 0o644)

	comp := newComponents(t, "", "utf8")
	if err := Verify(context.Background(), comp, Settings{Root: root, Concurrency: 2}, nil); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

// TestVerifyReportsEncodingFailure 无法解码的对白让 verify 失败并归因到文件。
func TestVerifyReportsEncodingFailure(t *testing.T) {
	root := t.TempDir()
	bad := []byte("<MSG")
	bad = append(bad, 0x82)
	bad = append(bad, []byte("<NOD<END")...)
	os.WriteFile(filepath.Join(root, "bad.tsc"), ciphertsc.New().Encode(bad), 0o644)

	comp := newComponents(t, "", "sjis")
	err := Verify(context.Background(), comp, Settings{Root: root, Concurrency: 1}, nil)
	if !errors.Is(err, contract.ErrEncoding) {
		t.Fatalf("want ErrEncoding, got %v", err)
	}
}

// TestRelativeID 路径换算
func TestRelativeID(t *testing.T) {
	cases := []struct {
		root string
		fid  contract.FileID
		want contract.FileID
	}{
		{"/data", "/data/Stage/Almond.tsc", "Stage/Almond.tsc"},
		{"/data/", "/data/Head.tsc", "Head.tsc"},
		{"/data/Head.tsc", "/data/Head.tsc", "Head.tsc"},
		{"/other", "/data/Head.tsc", "/data/Head.tsc"},
	}
	for _, c := range cases {
		if got := relativeID(c.root, c.fid); got != c.want {
			t.Fatalf("relativeID(%q, %q) = %q, want %q", c.root, c.fid, got, c.want)
		}
	}
}

// TestSanity 组件缺失与默认并发
func TestSanity(t *testing.T) {
	s := Settings{Root: "x"}
	if err := sanity(Components{}, &s); err == nil {
		t.Fatal("missing components should fail")
	}
	comp := newComponents(t, "", "utf8")
	if err := sanity(comp, &s); err != nil {
		t.Fatalf("sanity: %v", err)
	}
	if s.Concurrency != 1 {
		t.Fatalf("default concurrency = %d", s.Concurrency)
	}
	s2 := Settings{Root: "  "}
	if err := sanity(comp, &s2); err == nil {
		t.Fatal("empty root should fail")
	}
}

// TestForEachCancel 取消后不再领取新任务
func TestForEachCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var ran int32
	forEach(ctx, 2, 100, func(i int) { atomic.AddInt32(&ran, 1) })
	if atomic.LoadInt32(&ran) == 100 {
		t.Fatal("cancelled run should not process every index")
	}
}

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"tsckit/internal/diag"
	"tsckit/internal/extract"
	"tsckit/internal/inject"
	"tsckit/internal/interchange"
	"tsckit/pkg/contract"
)

// - 单点并发：仅此层管理并发与背压；原子组件均为同步、无内部并发。
// - 全量报告：单文件失败不取消其余文件；所有错误聚合后一次返回。
//   取消（ctx）是唯一的提前停止途径。
// - 两段回写：先全量预检（缺失/多余 id），任何写出发生前拒绝；
//   预检通过后才进入替换与落盘。

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader contract.Reader
	Cipher contract.Cipher
	Writer contract.Writer
	Codec  interchange.TextCodec
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	// Root: 游戏数据根目录；FileID 相对它计算。
	Root        string
	Concurrency int
}

// FileError 将错误与其所属文件绑定。
type FileError struct {
	File contract.FileID
	Err  error
}

func (e FileError) Error() string { return fmt.Sprintf("%s: %v", e.File, e.Err) }
func (e FileError) Unwrap() error { return e.Err }

// RunErrors 聚合一次运行中全部文件级错误。
type RunErrors []FileError

func (e RunErrors) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d file(s) failed:", len(e))
	for _, fe := range e {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Error())
	}
	return sb.String()
}

// Unwrap 暴露全部子错误，errors.Is/As 可穿透聚合层。
func (e RunErrors) Unwrap() []error {
	out := make([]error, len(e))
	for i, fe := range e {
		out[i] = fe
	}
	return out
}

// rawFile: 收集阶段的单文件快照。脚本文件都很小，整读入内存。
type rawFile struct {
	id   contract.FileID
	data []byte
}

// Dump 扫描 Root 下全部脚本，提取对白并按发现顺序产出交换文档。
func Dump(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (*interchange.Document, error) {
	if err := sanity(comp, &set); err != nil {
		return nil, fmt.Errorf("sanity: %w", err)
	}
	files, err := gather(ctx, comp, set, logger)
	if err != nil {
		return nil, err
	}
	runStart := time.Now()
	if t := diag.GetTerminal(); t != nil {
		t.RunStart("dump", set.Concurrency, len(files))
	}

	perFile := make([][]contract.DialogueEntry, len(files))
	errs := make([]error, len(files))
	forEach(ctx, set.Concurrency, len(files), func(i int) {
		f := files[i]
		timer := (*diag.Timer)(nil)
		if logger != nil {
			timer = logger.StartWith("extract", "extract", string(f.id))
		}
		entries, err := extract.File(comp.Cipher, comp.Codec, f.id, f.data)
		if err != nil {
			errs[i] = err
			logError(logger, "extract", err, f.id)
			finishFile(f.id, false, timer, 0)
			return
		}
		perFile[i] = entries
		finishFile(f.id, true, timer, int64(len(entries)))
	})

	runErr := collect(files, errs)
	if t := diag.GetTerminal(); t != nil {
		t.RunFinish(runErr == nil, time.Since(runStart))
	}
	if runErr != nil {
		return nil, runErr
	}

	var all []contract.DialogueEntry
	for _, entries := range perFile {
		all = append(all, entries...)
	}
	if logger != nil {
		logger.InfoFinish("dump", "dump", runStart, int64(len(all)))
	}
	return interchange.FromEntries(set.Root, all), nil
}

// Write 将翻译映射代入 Root 下全部脚本并经 Writer 落盘。
// 预检失败（缺失或多余 id）时不产生任何输出文件。
func Write(ctx context.Context, comp Components, set Settings, logger *diag.Logger, dmap contract.DialogueMap) error {
	if err := sanity(comp, &set); err != nil {
		return fmt.Errorf("sanity: %w", err)
	}
	if comp.Writer == nil {
		return errors.New("pipeline: missing writer")
	}
	files, err := gather(ctx, comp, set, logger)
	if err != nil {
		return err
	}
	runStart := time.Now()
	if t := diag.GetTerminal(); t != nil {
		t.RunStart("write", set.Concurrency, len(files))
	}

	// 阶段一：构建全部模型（纯内存，先并发完成）
	models := make([]extract.Model, len(files))
	forEach(ctx, set.Concurrency, len(files), func(i int) {
		models[i] = extract.Parse(comp.Cipher, files[i].id, files[i].data)
	})

	// 预检：缺失与多余 id 都在任何写出发生前一次性报告
	if err := preflight(models, dmap, logger); err != nil {
		if t := diag.GetTerminal(); t != nil {
			t.RunFinish(false, time.Since(runStart))
		}
		return err
	}

	// 阶段二：替换、序列化、落盘
	errs := make([]error, len(files))
	forEach(ctx, set.Concurrency, len(files), func(i int) {
		f := files[i]
		timer := (*diag.Timer)(nil)
		if logger != nil {
			timer = logger.StartWith("inject", "write", string(f.id))
		}
		out, err := inject.Apply(models[i], dmap, comp.Codec, comp.Cipher)
		if err != nil {
			errs[i] = err
			logError(logger, "inject", err, f.id)
			finishFile(f.id, false, timer, 0)
			return
		}
		if err := comp.Writer.Write(ctx, contract.ArtifactID(f.id), bytes.NewReader(out)); err != nil {
			errs[i] = err
			logError(logger, "writer", err, f.id)
			finishFile(f.id, false, timer, 0)
			return
		}
		finishFile(f.id, true, timer, int64(len(out)))
	})

	runErr := collect(files, errs)
	if t := diag.GetTerminal(); t != nil {
		t.RunFinish(runErr == nil, time.Since(runStart))
	}
	if runErr == nil && logger != nil {
		logger.InfoFinish("write", "write", runStart, int64(len(files)))
	}
	return runErr
}

// Verify 对 Root 下每个脚本做提取→原样回写，比对磁盘字节。
// 任何不一致都意味着编解码往返被破坏。
func Verify(ctx context.Context, comp Components, set Settings, logger *diag.Logger) error {
	if err := sanity(comp, &set); err != nil {
		return fmt.Errorf("sanity: %w", err)
	}
	files, err := gather(ctx, comp, set, logger)
	if err != nil {
		return err
	}
	runStart := time.Now()
	if t := diag.GetTerminal(); t != nil {
		t.RunStart("verify", set.Concurrency, len(files))
	}

	errs := make([]error, len(files))
	forEach(ctx, set.Concurrency, len(files), func(i int) {
		f := files[i]
		timer := (*diag.Timer)(nil)
		if logger != nil {
			timer = logger.StartWith("verify", "roundtrip", string(f.id))
		}
		err := roundTrip(comp, f)
		if err != nil {
			errs[i] = err
			logError(logger, "verify", err, f.id)
		}
		finishFile(f.id, err == nil, timer, int64(len(f.data)))
	})

	runErr := collect(files, errs)
	if t := diag.GetTerminal(); t != nil {
		t.RunFinish(runErr == nil, time.Since(runStart))
	}
	if runErr == nil && logger != nil {
		logger.InfoFinish("verify", "verify", runStart, int64(len(files)))
	}
	return runErr
}

func roundTrip(comp Components, f rawFile) error {
	m := extract.Parse(comp.Cipher, f.id, f.data)
	entries, err := extract.Dialogues(comp.Codec, m)
	if err != nil {
		return err
	}
	dmap := make(contract.DialogueMap, len(entries))
	for _, e := range entries {
		dmap[e.ID] = e
	}
	out, err := inject.Apply(m, dmap, comp.Codec, comp.Cipher)
	if err != nil {
		return err
	}
	if !bytes.Equal(out, f.data) {
		return fmt.Errorf("round trip mismatch (%d -> %d bytes): %w", len(f.data), len(out), contract.ErrInvalidInput)
	}
	return nil
}

// preflight 对拍模型与翻译映射：模型需要的 id 必须齐全，映射中的 id
// 必须都有归属。两类缺陷合并报告。
func preflight(models []extract.Model, dmap contract.DialogueMap, logger *diag.Logger) error {
	var run RunErrors
	claimed := make(map[contract.DialogueID]struct{})
	for _, m := range models {
		var missing []contract.DialogueID
		for _, e := range m.Elements {
			if e.Role != contract.RoleDialogue {
				continue
			}
			claimed[e.ID] = struct{}{}
			if _, ok := dmap[e.ID]; !ok {
				missing = append(missing, e.ID)
			}
		}
		if len(missing) > 0 {
			err := &inject.MissingError{File: m.File, IDs: missing}
			run = append(run, FileError{File: m.File, Err: err})
			logError(logger, "preflight", err, m.File)
		}
	}
	if extra := inject.Unclaimed(dmap, claimed); len(extra) > 0 {
		ids := make([]string, len(extra))
		for i, id := range extra {
			ids[i] = id.String()
		}
		err := fmt.Errorf("%d stale entr(ies) match no script: %s: %w",
			len(extra), strings.Join(ids, ", "), contract.ErrUnknownTranslation)
		run = append(run, FileError{File: "", Err: err})
		logError(logger, "preflight", err, "")
	}
	if len(run) > 0 {
		return run
	}
	return nil
}

// gather 顺序遍历 Root，读全部文件进内存并换算相对 FileID。
// 遍历本身保持单线程，确保发现顺序稳定；并发只发生在纯计算阶段。
func gather(ctx context.Context, comp Components, set Settings, logger *diag.Logger) ([]rawFile, error) {
	timer := (*diag.Timer)(nil)
	if logger != nil {
		timer = logger.Start("reader", "iterate")
	}
	var files []rawFile
	err := comp.Reader.Iterate(ctx, []string{set.Root}, func(fid contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return err
		}
		files = append(files, rawFile{id: relativeID(set.Root, fid), data: data})
		return nil
	})
	if err != nil {
		logError(logger, "reader", err, "")
		return nil, fmt.Errorf("reader iterate: %w", err)
	}
	if timer != nil {
		timer.Finish("iterate", int64(len(files)))
		diag.IncOp("reader", "finish", "success")
	}
	return files, nil
}

// relativeID 将 Reader 产出的路径换算为相对 Root 的规范 FileID。
// Root 指向单个文件时退化为基名。
func relativeID(root string, fid contract.FileID) contract.FileID {
	norm := string(contract.NormalizeFileID(root))
	s := string(fid)
	if s == norm {
		return contract.FileID(path.Base(s))
	}
	if strings.HasPrefix(s, norm+"/") {
		return contract.FileID(s[len(norm)+1:])
	}
	return fid
}

// forEach 以有界 worker 池对 [0,n) 执行 fn。ctx 取消后不再领取新任务。
func forEach(ctx context.Context, concurrency, n int, fn func(i int)) {
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > n {
		concurrency = n
	}
	idx := make(chan int)
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for w := 0; w < concurrency; w++ {
		go func() {
			defer wg.Done()
			for i := range idx {
				fn(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			close(idx)
			wg.Wait()
			return
		case idx <- i:
		}
	}
	close(idx)
	wg.Wait()
}

// collect 将 per-index 错误压成 RunErrors，保持文件顺序。
func collect(files []rawFile, errs []error) error {
	var run RunErrors
	for i, err := range errs {
		if err != nil {
			run = append(run, FileError{File: files[i].id, Err: err})
		}
	}
	if len(run) > 0 {
		return run
	}
	return nil
}

func logError(logger *diag.Logger, comp string, err error, fid contract.FileID) {
	if logger == nil || err == nil {
		return
	}
	code := diag.Classify(err)
	logger.ErrorWith(comp, string(code), err.Error(), nil, string(fid))
	diag.IncOp(comp, "error", "error")
	if code != diag.CodeUnknown {
		diag.IncError(comp, string(code))
	}
}

func finishFile(fid contract.FileID, ok bool, timer *diag.Timer, count int64) {
	if timer != nil {
		if ok {
			timer.Finish("done", count)
		}
	}
	if t := diag.GetTerminal(); t != nil {
		t.FileFinish(string(fid), ok, 0)
	}
}

func sanity(c Components, s *Settings) error {
	if c.Reader == nil || c.Cipher == nil || c.Codec == nil {
		return errors.New("pipeline: missing components")
	}
	if strings.TrimSpace(s.Root) == "" {
		return errors.New("pipeline: empty root")
	}
	if s.Concurrency < 1 {
		s.Concurrency = 1
	}
	return nil
}

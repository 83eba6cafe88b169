package filesystem

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tsckit/pkg/contract"
)

// Options 为 FileSystem Reader 的可选配置（最小必要）。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `yaml:"buf_size"`
	// ExcludeDirNames: 在扫描目录时跳过这些目录名（基名完全匹配）。
	// 例如 [".git","__backup"]。仅影响目录递归，不影响单文件 root。
	ExcludeDirNames []string `yaml:"exclude_dir_names"`
	// AllowExts: 仅收录这些扩展名（小写匹配，含点）。默认 [".tsc"]。
	// 置为 ["*"] 可收录全部常规文件。
	AllowExts []string `yaml:"allow_exts"`
}

// FileSystem 实现基于文件系统的 Reader，按稳定顺序遍历脚本文件。
type FileSystem struct {
	bufSize int
	// 以小写形式保存，比较时按小写基名匹配。
	excludeDir map[string]struct{}
	allowExt   map[string]struct{}
	allowAll   bool
}

// New 创建 FileSystem Reader。
func New(opts *Options) *FileSystem {
	const defaultBuf = 64 * 1024
	b := defaultBuf
	if opts != nil && opts.BufSize > 0 {
		b = opts.BufSize
	}
	ex := make(map[string]struct{})
	if opts != nil && len(opts.ExcludeDirNames) > 0 {
		for _, name := range opts.ExcludeDirNames {
			if name == "" {
				continue
			}
			// 小写基名匹配，调用方无需关心大小写与前后斜杠。
			ex[strings.ToLower(name)] = struct{}{}
		}
	}
	fs := &FileSystem{bufSize: b, excludeDir: ex, allowExt: make(map[string]struct{})}
	exts := []string{".tsc"}
	if opts != nil && len(opts.AllowExts) > 0 {
		exts = opts.AllowExts
	}
	for _, e := range exts {
		if e == "*" {
			fs.allowAll = true
			continue
		}
		fs.allowExt[strings.ToLower(e)] = struct{}{}
	}
	return fs
}

var _ contract.Reader = (*FileSystem)(nil)

// Iterate 遍历 roots，按稳定顺序对每个通过扩展名过滤的常规文件调用 yield。
// root 指向单文件时无条件收录（调用方点名的文件不做过滤）。
func (r *FileSystem) Iterate(ctx context.Context, roots []string, yield func(fileID contract.FileID, rc io.ReadCloser) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	for _, root := range roots {
		if err := r.iterateOne(ctx, root, yield); err != nil {
			return err
		}
	}
	return nil
}

func (r *FileSystem) iterateOne(ctx context.Context, root string, yield func(contract.FileID, io.ReadCloser) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	info, err := os.Lstat(root)
	if err != nil {
		return err
	}
	// 仅跟随到常规文件；目录符号链接不跟随（忽略）
	if info.Mode()&os.ModeSymlink != 0 {
		t, err := os.Stat(root)
		if err != nil {
			return err
		}
		if t.Mode().IsRegular() {
			return r.emit(root, yield)
		}
		// 非常规目标（含目录）：忽略，不报错
		return nil
	}

	if info.IsDir() {
		return r.walkDir(ctx, root, yield)
	}
	if !info.Mode().IsRegular() { // 跳过非常规文件
		return nil
	}
	return r.emit(root, yield)
}

func (r *FileSystem) walkDir(ctx context.Context, dir string, yield func(contract.FileID, io.ReadCloser) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	// 稳定顺序：字典序
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	// 先目录（不跟随目录符号链接）
	for _, e := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if e.IsDir() {
			// 跳过指定目录名
			if _, skip := r.excludeDir[strings.ToLower(e.Name())]; skip {
				continue
			}
			if err := r.walkDir(ctx, filepath.Join(dir, e.Name()), yield); err != nil {
				return err
			}
		}
	}
	// 再文件（允许指向常规文件的符号链接；目录符号链接忽略）
	for _, e := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if e.IsDir() {
			continue
		}
		if !r.wantExt(e.Name()) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		// 判断符号链接目标
		if e.Type()&os.ModeSymlink != 0 {
			t, err := os.Stat(p)
			if err != nil {
				return err
			}
			if !t.Mode().IsRegular() {
				// 目标不是常规文件（如目录等）则忽略
				continue
			}
		}
		info, err := e.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() && info.Mode()&os.ModeSymlink == 0 {
			// 非常规且不是符号链接（如设备等）跳过
			continue
		}
		if err := r.emit(p, yield); err != nil {
			return err
		}
	}
	return nil
}

func (r *FileSystem) wantExt(name string) bool {
	if r.allowAll {
		return true
	}
	_, ok := r.allowExt[strings.ToLower(filepath.Ext(name))]
	return ok
}

func (r *FileSystem) emit(p string, yield func(contract.FileID, io.ReadCloser) error) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	brc := newBufferedCloser(f, r.bufSize)
	// 关闭责任在消费方；yield 报错时兜底关闭
	if err := yield(contract.NormalizeFileID(p), brc); err != nil {
		_ = brc.Close()
		return err
	}
	return nil
}

// bufferedCloser 将 bufio.Reader 与底层 Closer 组合为 ReadCloser。
type bufferedCloser struct {
	*bufio.Reader
	c io.Closer
}

func newBufferedCloser(c io.ReadCloser, bufSize int) *bufferedCloser {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	return &bufferedCloser{Reader: bufio.NewReaderSize(c, bufSize), c: c}
}

func (b *bufferedCloser) Close() error { return b.c.Close() }

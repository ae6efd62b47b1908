package archiver

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"

	"github.com/flowshot-io/zipdir/pkg/logger"
)

// walker traverses a source tree depth first, visiting the children of each
// directory in name order, and feeds every entry to an archiveWriter.
type walker struct {
	fs        afero.Fs
	logger    logger.Logger
	w         *archiveWriter
	dangling  SymlinkPolicy
	skip      []string
	skipInfos []os.FileInfo
	ancestors []os.FileInfo
}

func newWalker(fs afero.Fs, log logger.Logger, w *archiveWriter, dangling SymlinkPolicy) *walker {
	wk := &walker{
		fs:       fs,
		logger:   log,
		w:        w,
		dangling: dangling,
		skip:     w.ownPaths(),
	}

	for _, p := range wk.skip {
		if info, err := fs.Stat(p); err == nil {
			wk.skipInfos = append(wk.skipInfos, info)
		}
	}

	return wk
}

// walkDir writes the directory entry for fsPath and then everything below it.
// name is the entry name inside the archive.
func (wk *walker) walkDir(ctx context.Context, fsPath string, name string, info os.FileInfo) error {
	for _, ancestor := range wk.ancestors {
		if os.SameFile(ancestor, info) {
			return &IOError{Op: "walk", Path: fsPath, Err: ErrSymlinkLoop}
		}
	}

	if name != "" {
		if err := wk.w.add(name, info, nil); err != nil {
			return &IOError{Op: "write", Path: fsPath, Err: err}
		}
		wk.logger.Debug("Added directory", map[string]interface{}{
			"entry": name + "/",
		})
	}

	children, err := afero.ReadDir(wk.fs, fsPath)
	if err != nil {
		return &IOError{Op: "read", Path: fsPath, Err: err}
	}

	wk.ancestors = append(wk.ancestors, info)
	defer func() {
		wk.ancestors = wk.ancestors[:len(wk.ancestors)-1]
	}()

	for _, child := range children {
		err := wk.visit(ctx, filepath.Join(fsPath, child.Name()), path.Join(name, child.Name()), child)
		if err != nil {
			return err
		}
	}

	return nil
}

func (wk *walker) visit(ctx context.Context, fsPath string, name string, info os.FileInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		resolved, err := wk.resolveLink(fsPath)
		if err != nil {
			return err
		}
		if resolved == nil {
			return nil
		}
		info = resolved
	}

	if wk.isOwnOutput(fsPath, info) {
		wk.logger.Debug("Skipping archive output inside source tree", map[string]interface{}{
			"path": fsPath,
		})
		return nil
	}

	switch {
	case info.IsDir():
		return wk.walkDir(ctx, fsPath, name, info)
	case info.Mode().IsRegular():
		return wk.addFile(fsPath, name, info)
	default:
		wk.logger.Warn("Skipping special file", map[string]interface{}{
			"path": fsPath,
			"mode": info.Mode().String(),
		})
		return nil
	}
}

func (wk *walker) addFile(fsPath string, name string, info os.FileInfo) error {
	f, err := wk.fs.Open(fsPath)
	if err != nil {
		return &IOError{Op: "open", Path: fsPath, Err: err}
	}
	defer f.Close()

	if err := wk.w.add(name, info, f); err != nil {
		return &IOError{Op: "write", Path: fsPath, Err: err}
	}

	wk.logger.Debug("Added file", map[string]interface{}{
		"entry": name,
		"size":  info.Size(),
	})

	return nil
}

// resolveLink follows the symlink at fsPath. It returns a nil info without
// error when the link is dangling and the policy says to skip it.
func (wk *walker) resolveLink(fsPath string) (os.FileInfo, error) {
	info, err := wk.fs.Stat(fsPath)
	if err == nil {
		return info, nil
	}

	if !os.IsNotExist(err) && !errors.Is(err, syscall.ELOOP) && !errors.Is(err, syscall.ENOTDIR) {
		return nil, &IOError{Op: "stat", Path: fsPath, Err: err}
	}

	target := wk.readlink(fsPath)
	if wk.dangling == SkipDangling {
		wk.logger.Warn("Skipping dangling symlink", map[string]interface{}{
			"path":   fsPath,
			"target": target,
		})
		return nil, nil
	}

	return nil, &DanglingSymlinkError{Path: fsPath, Target: target}
}

func (wk *walker) readlink(fsPath string) string {
	reader, ok := wk.fs.(afero.LinkReader)
	if !ok {
		return ""
	}

	target, err := reader.ReadlinkIfPossible(fsPath)
	if err != nil {
		return ""
	}

	return target
}

func (wk *walker) isOwnOutput(fsPath string, info os.FileInfo) bool {
	for _, p := range wk.skip {
		if p == fsPath {
			return true
		}
	}

	for _, own := range wk.skipInfos {
		if os.SameFile(own, info) {
			return true
		}
	}

	return false
}

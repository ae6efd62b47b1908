package archiver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/afero"

	"github.com/flowshot-io/zipdir/pkg/logger"
)

// Ext is the suffix every archive path ends with.
const Ext = ".zip"

type (
	// SymlinkPolicy decides what happens to links that cannot be resolved.
	// Links that do resolve are always followed.
	SymlinkPolicy int

	Options struct {
		Fs               afero.Fs
		Logger           logger.Logger
		DanglingSymlinks SymlinkPolicy
		// SkipVerify disables reading the archive back before it is moved into place.
		SkipVerify bool
	}

	// Archiver packages a directory tree into a single zip file.
	Archiver struct {
		fs               afero.Fs
		logger           logger.Logger
		danglingSymlinks SymlinkPolicy
		verify           bool
	}
)

const (
	// FailOnDangling aborts the whole run on the first dangling symlink.
	FailOnDangling SymlinkPolicy = iota
	// SkipDangling leaves dangling symlinks out of the archive.
	SkipDangling
)

func (p SymlinkPolicy) String() string {
	switch p {
	case FailOnDangling:
		return "fail"
	case SkipDangling:
		return "skip"
	default:
		return fmt.Sprintf("SymlinkPolicy(%d)", int(p))
	}
}

// New returns an Archiver working on the OS filesystem unless opts says otherwise.
func New(opts *Options) *Archiver {
	if opts == nil {
		opts = &Options{}
	}

	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	if opts.Logger == nil {
		opts.Logger = logger.New(nil)
	}

	return &Archiver{
		fs:               opts.Fs,
		logger:           opts.Logger,
		danglingSymlinks: opts.DanglingSymlinks,
		verify:           !opts.SkipVerify,
	}
}

// ResolveOutputPath appends Ext to outputPath unless it already ends with it.
func ResolveOutputPath(outputPath string) string {
	if !strings.EqualFold(filepath.Ext(outputPath), Ext) {
		outputPath += Ext
	}
	return outputPath
}

// Create writes a zip archive of sourceDir to outputPath and returns the
// path actually written. Entries are named after the base name of sourceDir.
// The archive is assembled in a temporary file next to the destination and
// only renamed into place once complete, so a failed run leaves nothing at
// the returned path.
func (a *Archiver) Create(ctx context.Context, sourceDir string, outputPath string) (string, error) {
	root, rootInfo, err := a.resolveSource(sourceDir)
	if err != nil {
		a.logger.Error("Invalid source directory", map[string]interface{}{
			"source": sourceDir,
			"error":  err.Error(),
		})
		return "", err
	}

	dest, err := a.resolveOutput(outputPath)
	if err != nil {
		a.logger.Error("Invalid output path", map[string]interface{}{
			"output": outputPath,
			"error":  err.Error(),
		})
		return "", err
	}

	a.logger.Info("Creating archive", map[string]interface{}{
		"source": root,
		"output": dest,
	})

	w, err := newArchiveWriter(a.fs, dest)
	if err != nil {
		a.logger.Error("Error creating archive file", map[string]interface{}{
			"output": dest,
			"error":  err.Error(),
		})
		return "", err
	}

	err = a.build(ctx, w, root, rootInfo)
	if err == nil {
		err = w.commit(a.verify)
	}
	if err != nil {
		w.abort()
		a.logger.Error("Archive creation failed, partial output removed", map[string]interface{}{
			"output": dest,
			"error":  err.Error(),
		})
		return "", err
	}

	a.logger.Info("Archive created", map[string]interface{}{
		"output":  dest,
		"entries": len(w.names),
	})

	return dest, nil
}

func (a *Archiver) build(ctx context.Context, w *archiveWriter, root string, rootInfo os.FileInfo) error {
	wk := newWalker(a.fs, a.logger, w, a.danglingSymlinks)

	name := filepath.Base(root)
	if name == string(filepath.Separator) || name == "." {
		name = ""
	}

	if err := wk.walkDir(ctx, root, name, rootInfo); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return fmt.Errorf("archive creation interrupted: %w", err)
		}
		return err
	}

	return nil
}

func (a *Archiver) resolveSource(sourceDir string) (string, os.FileInfo, error) {
	if sourceDir == "" {
		return "", nil, &NotFoundError{Path: sourceDir}
	}

	root, err := filepath.Abs(sourceDir)
	if err != nil {
		return "", nil, &IOError{Op: "resolve", Path: sourceDir, Err: err}
	}

	info, err := a.fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) || errors.Is(err, syscall.ENOTDIR) {
			return "", nil, &NotFoundError{Path: sourceDir}
		}
		return "", nil, &IOError{Op: "stat", Path: sourceDir, Err: err}
	}

	if !info.IsDir() {
		return "", nil, &NotADirectoryError{Path: sourceDir}
	}

	return root, info, nil
}

func (a *Archiver) resolveOutput(outputPath string) (string, error) {
	if outputPath == "" {
		return "", &OutputWriteError{Path: outputPath, Err: errors.New("output path is empty")}
	}

	abs, err := filepath.Abs(outputPath)
	if err != nil {
		return "", &OutputWriteError{Path: outputPath, Err: err}
	}

	dest := ResolveOutputPath(abs)
	if info, err := a.fs.Stat(dest); err == nil && info.IsDir() {
		return "", &OutputWriteError{Path: dest, Err: errors.New("path is a directory")}
	}

	return dest, nil
}

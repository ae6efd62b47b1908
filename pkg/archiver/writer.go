package archiver

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mholt/archiver/v3"
	"github.com/spf13/afero"
)

// archiveWriter streams entries into a temporary zip file and moves it onto
// dest once the archive is complete.
type archiveWriter struct {
	fs      afero.Fs
	dest    string
	tmp     afero.File
	tmpPath string
	mode    os.FileMode
	zip     *archiver.Zip
	names   []string
}

// defaultMode is what a plain create gives under the usual 022 umask.
const defaultMode os.FileMode = 0o644

func newArchiveWriter(fs afero.Fs, dest string) (*archiveWriter, error) {
	// Temp files are owner-only; an overwritten archive keeps its permissions.
	mode := defaultMode
	if info, err := fs.Stat(dest); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := afero.TempFile(fs, filepath.Dir(dest), "."+filepath.Base(dest)+"-*.tmp")
	if err != nil {
		return nil, &OutputWriteError{Path: dest, Err: err}
	}

	z := archiver.NewZip()
	if err := z.Create(tmp); err != nil {
		tmp.Close()
		fs.Remove(tmp.Name())
		return nil, &OutputWriteError{Path: dest, Err: err}
	}

	return &archiveWriter{
		fs:      fs,
		dest:    dest,
		tmp:     tmp,
		tmpPath: tmp.Name(),
		mode:    mode,
		zip:     z,
	}, nil
}

// ownPaths returns the files this writer produces, which must never end up
// inside the archive themselves.
func (w *archiveWriter) ownPaths() []string {
	return []string{w.tmpPath, w.dest}
}

// add writes one entry. content is nil for directories.
func (w *archiveWriter) add(name string, info os.FileInfo, content io.ReadCloser) error {
	err := w.zip.Write(archiver.File{
		FileInfo: archiver.FileInfo{
			FileInfo:   info,
			CustomName: name,
		},
		ReadCloser: content,
	})
	if err != nil {
		return err
	}

	if info.IsDir() {
		name += "/"
	}
	w.names = append(w.names, name)

	return nil
}

func (w *archiveWriter) commit(verify bool) error {
	if err := w.zip.Close(); err != nil {
		return &IOError{Op: "finalize", Path: w.tmpPath, Err: err}
	}

	if err := w.tmp.Sync(); err != nil {
		return &IOError{Op: "sync", Path: w.tmpPath, Err: err}
	}

	if err := w.tmp.Close(); err != nil {
		return &IOError{Op: "close", Path: w.tmpPath, Err: err}
	}

	if verify {
		if err := w.verify(); err != nil {
			return err
		}
	}

	if err := w.fs.Chmod(w.tmpPath, w.mode); err != nil {
		return &IOError{Op: "chmod", Path: w.tmpPath, Err: err}
	}

	if err := w.fs.Rename(w.tmpPath, w.dest); err != nil {
		return &OutputWriteError{Path: w.dest, Err: err}
	}

	return nil
}

// verify reads the finished archive back and checks it lists exactly the
// entries that were written, in the same order.
func (w *archiveWriter) verify() error {
	entries, err := List(w.fs, w.tmpPath)
	if err != nil {
		return &IOError{Op: "verify", Path: w.dest, Err: err}
	}

	if len(entries) != len(w.names) {
		return &IOError{Op: "verify", Path: w.dest, Err: fmt.Errorf("archive holds %d entries, %d were written", len(entries), len(w.names))}
	}

	for i, entry := range entries {
		if entry.Name != w.names[i] {
			return &IOError{Op: "verify", Path: w.dest, Err: fmt.Errorf("entry %d is %q, expected %q", i, entry.Name, w.names[i])}
		}
	}

	return nil
}

// abort discards the temporary file. Errors are ignored since the run has
// already failed.
func (w *archiveWriter) abort() {
	w.zip.Close()
	w.tmp.Close()
	w.fs.Remove(w.tmpPath)
}

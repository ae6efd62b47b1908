package archiver

import (
	"errors"
	"fmt"
)

// ErrSymlinkLoop is wrapped by an IOError when a followed directory link
// leads back to one of its own ancestors.
var ErrSymlinkLoop = errors.New("symlink loop")

type (
	// NotFoundError is returned when the source directory does not exist.
	NotFoundError struct {
		Path string
	}

	// NotADirectoryError is returned when the source path is not a directory.
	NotADirectoryError struct {
		Path string
	}

	// DanglingSymlinkError is returned when a symlink in the tree cannot be resolved.
	DanglingSymlinkError struct {
		Path   string
		Target string
	}

	// IOError reports a read, write or stat failure on a specific path.
	IOError struct {
		Op   string
		Path string
		Err  error
	}

	// OutputWriteError is returned when the archive cannot be created at its destination.
	OutputWriteError struct {
		Path string
		Err  error
	}
)

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("source directory %s does not exist", e.Path)
}

func (e *NotADirectoryError) Error() string {
	return fmt.Sprintf("source path %s is not a directory", e.Path)
}

func (e *DanglingSymlinkError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("dangling symlink %s", e.Path)
	}
	return fmt.Sprintf("dangling symlink %s -> %s", e.Path, e.Target)
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *OutputWriteError) Error() string {
	return fmt.Sprintf("cannot write archive %s: %v", e.Path, e.Err)
}

func (e *OutputWriteError) Unwrap() error { return e.Err }

package archiver

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
	"github.com/mholt/archiver/v3"
	"github.com/spf13/afero"
)

// Entry describes one record of a zip archive.
type Entry struct {
	Name  string
	IsDir bool
	Size  int64
}

// List returns the entries of the zip archive at archivePath in archive order.
func List(fs afero.Fs, archivePath string) ([]Entry, error) {
	f, err := fs.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("error opening archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("error stating archive: %w", err)
	}

	z := archiver.NewZip()
	if err := z.Open(f, info.Size()); err != nil {
		return nil, fmt.Errorf("error reading archive: %w", err)
	}
	defer z.Close()

	var entries []Entry
	for {
		file, err := z.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading archive entry: %w", err)
		}
		file.Close()

		header, ok := file.Header.(zip.FileHeader)
		if !ok {
			return nil, fmt.Errorf("unexpected header type %T for entry %s", file.Header, file.Name())
		}

		entries = append(entries, Entry{
			Name:  header.Name,
			IsDir: file.IsDir(),
			Size:  int64(header.UncompressedSize64),
		})
	}

	return entries, nil
}

package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/filerelay/internal/filex"
)

// Source is an inbound file. Name and Size come from metadata and are not
// trusted; Download writes the content into dst and reports cumulative
// progress while doing so.
type Source interface {
	Name() string
	Size() int64
	Download(ctx context.Context, dst io.Writer, progress func(done, total int64)) error
}

// FileSource reads a file from the local disk.
type FileSource struct {
	path string
	name string
	size int64
}

func NewFileSource(path string) (*FileSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &FileSource{path: path, name: filepath.Base(path), size: fi.Size()}, nil
}

func (s *FileSource) Name() string { return s.name }
func (s *FileSource) Size() int64  { return s.size }

func (s *FileSource) Download(ctx context.Context, dst io.Writer, progress func(done, total int64)) error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = filex.CopyWithProgress(ctx, dst, f, s.size, progress)
	return err
}

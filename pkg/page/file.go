package page

import (
	"bytes"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// File is one entry of a file input's selection.
type File interface {
	// Name is the file's base name.
	Name() string

	// Size is the file's length in bytes, or -1 when unknown.
	Size() int64

	// Open returns the file's contents.
	Open() (io.ReadCloser, error)
}

type pathFile struct {
	path string
}

// FileFromPath returns a File backed by the file at path.
func FileFromPath(path string) File {
	return pathFile{path: path}
}

func (f pathFile) Name() string { return filepath.Base(f.path) }

func (f pathFile) Size() int64 {
	info, err := os.Stat(f.path)
	if err != nil {
		return -1
	}
	return info.Size()
}

func (f pathFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

type bytesFile struct {
	name string
	data []byte
}

// FileFromBytes returns a File holding data.
func FileFromBytes(name string, data []byte) File {
	return bytesFile{name: name, data: data}
}

func (f bytesFile) Name() string { return f.name }
func (f bytesFile) Size() int64  { return int64(len(f.data)) }

func (f bytesFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

type headerFile struct {
	fh *multipart.FileHeader
}

// FileFromHeader returns a File for one part of a multipart form.
func FileFromHeader(fh *multipart.FileHeader) File {
	return headerFile{fh: fh}
}

func (f headerFile) Name() string { return f.fh.Filename }
func (f headerFile) Size() int64  { return f.fh.Size }

func (f headerFile) Open() (io.ReadCloser, error) {
	return f.fh.Open()
}

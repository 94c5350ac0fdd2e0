package codec

import (
	"bytes"
	"fmt"

	"github.com/xitongsys/parquet-go/source"
)

// memFile is an in-memory source.ParquetFile. A file built by newMemWriter
// only accepts writes; one built by newMemReader only serves reads, and Open
// hands out independent cursors over the same bytes.
type memFile struct {
	buf  *bytes.Buffer
	data []byte
	r    *bytes.Reader
}

func newMemWriter() *memFile {
	return &memFile{buf: &bytes.Buffer{}}
}

func newMemReader(data []byte) *memFile {
	return &memFile{data: data, r: bytes.NewReader(data)}
}

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }

func (m *memFile) Open(string) (source.ParquetFile, error) {
	if m.r == nil {
		return nil, fmt.Errorf("open not supported on a write buffer")
	}
	return newMemReader(m.data), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	if m.r != nil {
		return m.r.Seek(offset, whence)
	}
	return int64(m.buf.Len()), nil
}

func (m *memFile) Read(b []byte) (int, error) {
	if m.r == nil {
		return 0, fmt.Errorf("read not supported on a write buffer")
	}
	return m.r.Read(b)
}

func (m *memFile) Write(b []byte) (int, error) {
	if m.buf == nil {
		return 0, fmt.Errorf("write not supported on a read buffer")
	}
	return m.buf.Write(b)
}

func (m *memFile) Close() error  { return nil }
func (m *memFile) Bytes() []byte { return m.buf.Bytes() }

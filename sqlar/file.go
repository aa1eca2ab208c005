package sqlar

import (
	"bytes"
	"compress/zlib"
	"io"
	"os"
	"path"
	"time"

	"crawshaw.io/sqlite"
	"github.com/pkg/errors"
)

// file is an open archive member. Read files stream their blob, written files
// are buffered and stored on Close.
type file struct {
	fs       *FS
	name     string
	info     *fileInfo
	children []os.FileInfo

	// read
	blob   *sqlite.Blob
	reader io.Reader
	offset int64

	// write
	perm os.FileMode
	buf  *bytes.Buffer
}

func newReadFile(fs *FS, id int64, name string, info *fileInfo) (*file, error) {
	f := &file{fs: fs, name: name, info: info}
	if info.dataNull || info.stored == 0 {
		f.reader = bytes.NewReader(nil)
		return f, nil
	}

	var err error
	f.blob, err = fs.cursor.OpenBlob("", "sqlar", "data", id, false)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", name)
	}
	if err := f.rewind(); err != nil {
		f.blob.Close() // nolint:errcheck
		return nil, errors.Wrapf(err, "could not read %s", name)
	}
	return f, nil
}

func newWriteFile(fs *FS, name string, perm os.FileMode) *file {
	return &file{fs: fs, name: name, perm: perm, buf: &bytes.Buffer{}}
}

func (f *file) rewind() error {
	if _, err := f.blob.Seek(0, io.SeekStart); err != nil {
		return err
	}
	f.offset = 0
	if !f.info.compressed() {
		f.reader = f.blob
		return nil
	}
	if resetter, ok := f.reader.(zlib.Resetter); ok {
		return resetter.Reset(f.blob, nil)
	}
	zr, err := zlib.NewReader(f.blob)
	if err != nil {
		return err
	}
	f.reader = zr
	return nil
}

func (f *file) Name() string {
	return path.Base("/" + f.name)
}

func (f *file) Read(p []byte) (int, error) {
	if f.reader == nil {
		return 0, &os.PathError{Op: "read", Path: f.name, Err: ErrNotSupported}
	}
	n, err := f.reader.Read(p)
	f.offset += int64(n)
	return n, err
}

func (f *file) ReadAt(p []byte, off int64) (int, error) {
	if f.blob == nil || f.info.compressed() {
		return 0, &os.PathError{Op: "readat", Path: f.name, Err: ErrNotSupported}
	}
	return f.blob.ReadAt(p, off)
}

// Seek moves the read offset. Compressed files are decompressed again from
// the start if the offset moves backwards.
func (f *file) Seek(offset int64, whence int) (int64, error) {
	if f.reader == nil {
		return 0, &os.PathError{Op: "seek", Path: f.name, Err: ErrNotSupported}
	}

	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.offset + offset
	case io.SeekEnd:
		abs = f.info.size + offset
	default:
		return 0, errors.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}

	switch {
	case f.blob == nil:
		f.offset = abs
		return abs, nil
	case !f.info.compressed():
		n, err := f.blob.Seek(abs, io.SeekStart)
		f.offset = n
		return n, err
	case abs < f.offset:
		if err := f.rewind(); err != nil {
			return 0, err
		}
	}

	_, err := io.CopyN(io.Discard, f.reader, abs-f.offset)
	if err != nil && err != io.EOF {
		return 0, err
	}
	f.offset = abs
	return abs, nil
}

func (f *file) Readdir(count int) ([]os.FileInfo, error) {
	n := len(f.children)
	if count > 0 && count < n {
		n = count
	}
	return f.children[:n], nil
}

func (f *file) Readdirnames(n int) ([]string, error) {
	infos, err := f.Readdir(n)
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, err
}

func (f *file) Stat() (os.FileInfo, error) {
	if f.buf != nil {
		return &fileInfo{name: f.name, size: int64(f.buf.Len()), mode: int64(modeFile | f.perm.Perm()), mtime: time.Now()}, nil
	}
	return f.info, nil
}

func (f *file) Write(p []byte) (int, error) {
	if f.buf == nil {
		return 0, &os.PathError{Op: "write", Path: f.name, Err: os.ErrPermission}
	}
	return f.buf.Write(p)
}

func (f *file) WriteAt(p []byte, off int64) (int, error) {
	return 0, &os.PathError{Op: "writeat", Path: f.name, Err: ErrNotSupported}
}

func (f *file) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

func (f *file) Truncate(size int64) error {
	if f.buf == nil || size < 0 || size > int64(f.buf.Len()) {
		return &os.PathError{Op: "truncate", Path: f.name, Err: ErrNotSupported}
	}
	f.buf.Truncate(int(size))
	return nil
}

func (f *file) Sync() error {
	return nil
}

func (f *file) Close() error {
	if f.buf != nil {
		return f.store()
	}
	if closer, ok := f.reader.(io.Closer); ok && f.info.compressed() {
		if err := closer.Close(); err != nil {
			return err
		}
	}
	if f.blob != nil {
		return f.blob.Close()
	}
	return nil
}

// store writes the buffered content. It is zlib compressed if that makes it
// smaller.
func (f *file) store() error {
	data := f.buf.Bytes()
	stored := data

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(data); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	if compressed.Len() < len(data) {
		stored = compressed.Bytes()
	}

	return f.fs.exec(`INSERT OR REPLACE INTO sqlar (name, mode, mtime, sz, data) VALUES (?, ?, ?, ?, ?)`,
		f.name, int64(modeFile|f.perm.Perm()), time.Now().Unix(), int64(len(data)), stored)
}

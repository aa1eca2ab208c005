// Package sqlar implements an afero.Fs on SQLite archive files, as created by
// "sqlite3 -A". Evidence collections stored this way can be converted without
// unpacking them first.
package sqlar

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"crawshaw.io/sqlite"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const table = `CREATE TABLE IF NOT EXISTS sqlar(
  name TEXT PRIMARY KEY,  -- name of the file
  mode INT,               -- access permissions
  mtime INT,              -- last modification time
  sz INT,                 -- original file size
  data BLOB               -- compressed content
);`

// unix file type bits as stored in the mode column
const (
	modeType = 0o170000
	modeDir  = 0o040000
	modeFile = 0o100000
)

const columns = `name, mode, mtime, sz, coalesce(length(data), 0) AS stored, data IS NULL AS datanull`

// ErrNotSupported is returned for operations SQLite archives cannot perform,
// e.g. appending to a file.
var ErrNotSupported = errors.New("not supported by sqlar")

// FS is a SQLite archive.
type FS struct {
	cursor *sqlite.Conn
}

// New opens the archive at url. The archive is created if it does not exist.
func New(url string) (*FS, error) {
	cursor, err := sqlite.OpenConn(url, 0)
	if err != nil {
		return nil, err
	}
	fs := &FS{cursor: cursor}
	if err := fs.exec(table); err != nil {
		cursor.Close() // nolint:errcheck
		return nil, err
	}
	return fs, nil
}

func (fs *FS) Name() string {
	return "sqlar"
}

func (fs *FS) Create(name string) (afero.File, error) {
	return fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
}

func (fs *FS) Open(name string) (afero.File, error) {
	return fs.OpenFile(name, os.O_RDONLY, 0)
}

// OpenFile opens a file for reading or, if flag contains a write flag, for
// writing. Written files are stored on Close. Appending is not supported.
func (fs *FS) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	name = clean(name)

	if flag&os.O_APPEND != 0 {
		return nil, &os.PathError{Op: "open", Path: name, Err: ErrNotSupported}
	}
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0 {
		if flag&os.O_CREATE == 0 {
			if _, _, err := fs.stat(name); err != nil {
				return nil, err
			}
		}
		return newWriteFile(fs, name, perm), nil
	}

	info, id, err := fs.stat(name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		children, err := fs.children(name)
		if err != nil {
			return nil, err
		}
		return &file{fs: fs, name: name, info: info, children: children}, nil
	}
	return newReadFile(fs, id, name, info)
}

func (fs *FS) Stat(name string) (os.FileInfo, error) {
	info, _, err := fs.stat(clean(name))
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (fs *FS) Mkdir(name string, perm os.FileMode) error {
	name = clean(name)
	if _, _, err := fs.stat(name); err == nil {
		return &os.PathError{Op: "mkdir", Path: name, Err: os.ErrExist}
	}
	return fs.exec(`INSERT INTO sqlar (name, mode, mtime, sz, data) VALUES (?, ?, ?, 0, NULL)`,
		name, int64(modeDir|perm.Perm()), time.Now().Unix())
}

func (fs *FS) MkdirAll(p string, perm os.FileMode) error {
	all := ""
	for _, part := range strings.Split(clean(p), "/") {
		if part == "" {
			continue
		}
		all = path.Join(all, part)
		info, _, err := fs.stat(all)
		switch {
		case err == nil && info.IsDir():
			continue
		case err == nil:
			return &os.PathError{Op: "mkdir", Path: all, Err: errors.New("not a directory")}
		}
		if err := fs.Mkdir(all, perm); err != nil {
			return err
		}
	}
	return nil
}

func (fs *FS) Remove(name string) error {
	name = clean(name)
	if _, _, err := fs.stat(name); err != nil {
		return err
	}
	return fs.exec(`DELETE FROM sqlar WHERE name = ?`, name)
}

func (fs *FS) RemoveAll(p string) error {
	p = clean(p)
	if p == "" {
		return fs.exec(`DELETE FROM sqlar`)
	}
	return fs.exec(`DELETE FROM sqlar WHERE name = $name OR substr(name, 1, length($prefix)) = $prefix`,
		named{"$name": p, "$prefix": p + "/"})
}

func (fs *FS) Rename(oldname, newname string) error {
	oldname, newname = clean(oldname), clean(newname)
	if _, _, err := fs.stat(oldname); err != nil {
		return err
	}
	return fs.exec(`UPDATE sqlar SET name = $new || substr(name, length($old) + 1) `+
		`WHERE name = $old OR substr(name, 1, length($prefix)) = $prefix`,
		named{"$old": oldname, "$new": newname, "$prefix": oldname + "/"})
}

func (fs *FS) Chmod(name string, mode os.FileMode) error {
	return fs.exec(`UPDATE sqlar SET mode = (mode & ?) | ? WHERE name = ?`,
		int64(modeType), int64(mode.Perm()), clean(name))
}

func (fs *FS) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return fs.exec(`UPDATE sqlar SET mtime = ? WHERE name = ?`, mtime.Unix(), clean(name))
}

// Close closes the archive.
func (fs *FS) Close() error {
	return fs.cursor.Close()
}

// stat returns the file info and rowid of name. Directories that only exist
// as prefix of other names have the rowid 0.
func (fs *FS) stat(name string) (*fileInfo, int64, error) {
	if name == "" {
		return &fileInfo{name: "/", mode: modeDir | 0o755}, 0, nil
	}

	stmt, err := fs.cursor.Prepare(`SELECT rowid, ` + columns + ` FROM sqlar WHERE name = ?`)
	if err != nil {
		return nil, 0, err
	}
	stmt.BindText(1, name)
	hasRow, err := stmt.Step()
	if err != nil {
		stmt.Finalize() // nolint:errcheck
		return nil, 0, err
	}
	if hasRow {
		info := rowInfo(stmt)
		id := stmt.GetInt64("rowid")
		return info, id, stmt.Finalize()
	}
	if err := stmt.Finalize(); err != nil {
		return nil, 0, err
	}

	stmt, err = fs.cursor.Prepare(`SELECT 1 FROM sqlar WHERE substr(name, 1, length($prefix)) = $prefix LIMIT 1`)
	if err != nil {
		return nil, 0, err
	}
	stmt.SetText("$prefix", name+"/")
	hasRow, err = stmt.Step()
	if err != nil {
		stmt.Finalize() // nolint:errcheck
		return nil, 0, err
	}
	if err := stmt.Finalize(); err != nil {
		return nil, 0, err
	}
	if !hasRow {
		return nil, 0, &os.PathError{Op: "stat", Path: name, Err: os.ErrNotExist}
	}
	return &fileInfo{name: name, mode: modeDir | 0o755}, 0, nil
}

// children lists the direct children of dir, including directories that are
// only implied by deeper names.
func (fs *FS) children(dir string) ([]os.FileInfo, error) {
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}

	stmt, err := fs.cursor.Prepare(`SELECT ` + columns + ` FROM sqlar ` +
		`WHERE substr(name, 1, length($prefix)) = $prefix ORDER BY name`)
	if err != nil {
		return nil, err
	}
	stmt.SetText("$prefix", prefix)

	var children []os.FileInfo
	seen := map[string]bool{}
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			stmt.Finalize() // nolint:errcheck
			return nil, err
		} else if !hasRow {
			break
		}

		rest := strings.TrimPrefix(stmt.GetText("name"), prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			rest = rest[:i]
			if rest != "" && !seen[rest] {
				children = append(children, &fileInfo{name: prefix + rest, mode: modeDir | 0o755})
			}
		} else if rest != "" && !seen[rest] {
			children = append(children, rowInfo(stmt))
		}
		seen[rest] = true
	}
	return children, stmt.Finalize()
}

// named binds parameters by name.
type named map[string]interface{}

func (fs *FS) exec(query string, args ...interface{}) error {
	stmt, err := fs.cursor.Prepare(query)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		if params, ok := args[0].(named); ok {
			for name, value := range params {
				stmt.SetText(name, value.(string))
			}
			args = nil
		}
	}
	for i, arg := range args {
		switch arg := arg.(type) {
		case nil:
			stmt.BindNull(i + 1)
		case string:
			stmt.BindText(i+1, arg)
		case int64:
			stmt.BindInt64(i+1, arg)
		case []byte:
			stmt.BindBytes(i+1, arg)
		}
	}
	if _, err := stmt.Step(); err != nil {
		stmt.Finalize() // nolint:errcheck
		return err
	}
	return stmt.Finalize()
}

// clean converts name into an archive path without leading slash. The root
// directory is "".
func clean(name string) string {
	return strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(name)), "/")
}

type fileInfo struct {
	name     string
	size     int64
	stored   int64
	mode     int64
	mtime    time.Time
	dataNull bool
}

func rowInfo(stmt *sqlite.Stmt) *fileInfo {
	return &fileInfo{
		name:     stmt.GetText("name"),
		size:     stmt.GetInt64("sz"),
		stored:   stmt.GetInt64("stored"),
		mode:     stmt.GetInt64("mode"),
		mtime:    time.Unix(stmt.GetInt64("mtime"), 0),
		dataNull: stmt.GetInt64("datanull") == 1,
	}
}

func (i *fileInfo) Name() string {
	return path.Base(i.name)
}

func (i *fileInfo) Size() int64 {
	return i.size
}

func (i *fileInfo) Mode() os.FileMode {
	mode := os.FileMode(i.mode).Perm()
	if i.IsDir() {
		mode |= os.ModeDir
	}
	return mode
}

func (i *fileInfo) ModTime() time.Time {
	return i.mtime
}

// IsDir reports directories by their mode. Archives that store no file type
// bits mark directories by missing data.
func (i *fileInfo) IsDir() bool {
	if i.mode&modeType != 0 {
		return i.mode&modeType == modeDir
	}
	return i.dataNull && i.size == 0
}

func (i *fileInfo) Sys() interface{} {
	return nil
}

// compressed reports whether the data is zlib compressed.
func (i *fileInfo) compressed() bool {
	return i.stored < i.size
}

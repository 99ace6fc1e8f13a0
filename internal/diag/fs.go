package diag

import (
	"bytes"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/smazurov/signalnode/internal/fault"
	"github.com/smazurov/signalnode/internal/timing"
)

// Instance is one subdevice whose state can be rendered.
type Instance interface {
	Name() string
	Variant() timing.Variant
	Snapshot() timing.Descriptor
}

// Lister enumerates the registered instances.
type Lister interface {
	Instances() []Instance
}

// FS exposes every instance as a directory of diagnostic files at
// <instance>/<file>. File contents are rendered when opened.
type FS struct {
	lister Lister
	limit  int
}

// NewFS returns a file system over lister. limit bounds each file; zero
// means DefaultLimit.
func NewFS(lister Lister, limit int) *FS {
	return &FS{lister: lister, limit: limit}
}

// Contents renders one file of one instance, failing with NOT_FOUND or
// TRUNCATED.
func (f *FS) Contents(name string) ([]byte, error) {
	instance, file, ok := strings.Cut(name, "/")
	if !ok {
		return nil, fault.New(fault.CodeNotFound, "diagnostic path must be <instance>/<file>",
			map[string]any{"path": name})
	}
	inst := f.find(instance)
	if inst == nil {
		return nil, fault.New(fault.CodeNotFound, "unknown instance", map[string]any{"instance": instance})
	}
	return Render(inst.Variant(), file, inst.Snapshot(), f.limit)
}

// Open implements fs.FS. Directories and files of an instance carry the
// capture time of its current descriptor as their modification time.
func (f *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	if name == "." {
		var entries []fs.DirEntry
		for _, inst := range f.lister.Instances() {
			info := dirInfo{name: inst.Name(), modTime: inst.Snapshot().CapturedAt}
			entries = append(entries, fs.FileInfoToDirEntry(info))
		}
		return newDir(".", time.Time{}, entries), nil
	}

	parts := strings.Split(name, "/")
	inst := f.find(parts[0])
	if inst == nil || len(parts) > 2 {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	d := inst.Snapshot()

	if len(parts) == 1 {
		var entries []fs.DirEntry
		for _, file := range Files(inst.Variant()) {
			data, _ := Render(inst.Variant(), file, d, f.limit)
			info := fileInfo{name: file, size: int64(len(data)), modTime: d.CapturedAt}
			entries = append(entries, fs.FileInfoToDirEntry(info))
		}
		return newDir(name, d.CapturedAt, entries), nil
	}

	data, err := Render(inst.Variant(), parts[1], d, f.limit)
	if fault.HasCode(err, fault.CodeNotFound) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &memFile{
		Reader: bytes.NewReader(data),
		info:   fileInfo{name: parts[1], size: int64(len(data)), modTime: d.CapturedAt},
	}, nil
}

func (f *FS) find(name string) Instance {
	for _, inst := range f.lister.Instances() {
		if inst.Name() == name {
			return inst
		}
	}
	return nil
}

type fileInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (i fileInfo) Name() string       { return i.name }
func (i fileInfo) Size() int64        { return i.size }
func (i fileInfo) Mode() fs.FileMode  { return 0o444 }
func (i fileInfo) ModTime() time.Time { return i.modTime }
func (i fileInfo) IsDir() bool        { return false }
func (i fileInfo) Sys() any           { return nil }

type dirInfo struct {
	name    string
	modTime time.Time
}

func (i dirInfo) Name() string       { return i.name }
func (i dirInfo) Size() int64        { return 0 }
func (i dirInfo) Mode() fs.FileMode  { return fs.ModeDir | 0o555 }
func (i dirInfo) ModTime() time.Time { return i.modTime }
func (i dirInfo) IsDir() bool        { return true }
func (i dirInfo) Sys() any           { return nil }

// memFile is a rendered file. It embeds *bytes.Reader so http.FS can seek.
type memFile struct {
	*bytes.Reader
	info fileInfo
}

func (m *memFile) Stat() (fs.FileInfo, error) { return m.info, nil }
func (m *memFile) Close() error               { return nil }

type dir struct {
	info    dirInfo
	entries []fs.DirEntry
	offset  int
}

func newDir(name string, modTime time.Time, entries []fs.DirEntry) *dir {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return &dir{info: dirInfo{name: path.Base(name), modTime: modTime}, entries: entries}
}

func (d *dir) Stat() (fs.FileInfo, error) { return d.info, nil }
func (d *dir) Close() error               { return nil }

func (d *dir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.info.name, Err: fs.ErrInvalid}
}

// ReadDir implements fs.ReadDirFile.
func (d *dir) ReadDir(n int) ([]fs.DirEntry, error) {
	remaining := d.entries[d.offset:]
	if n <= 0 {
		d.offset = len(d.entries)
		return remaining, nil
	}
	if len(remaining) == 0 {
		return nil, io.EOF
	}
	if n > len(remaining) {
		n = len(remaining)
	}
	d.offset += n
	return remaining[:n], nil
}

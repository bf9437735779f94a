package filestore

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/arthur-debert/synthfs/pkg/synthfs/filesystem"
	"github.com/spf13/afero"
)

// rootedFs exposes an afero.Fs below root as a synthfs filesystem, so
// batches run against the same filesystem the store reads.
type rootedFs struct {
	fs   afero.Fs
	root string
}

var _ filesystem.FullFileSystem = (*rootedFs)(nil)

func newRootedFs(fsys afero.Fs, root string) *rootedFs {
	return &rootedFs{fs: fsys, root: root}
}

func (r *rootedFs) path(name string) string {
	return filepath.Join(r.root, filepath.FromSlash(name))
}

func (r *rootedFs) Open(name string) (fs.File, error) {
	return r.fs.Open(r.path(name))
}

func (r *rootedFs) Stat(name string) (fs.FileInfo, error) {
	return r.fs.Stat(r.path(name))
}

func (r *rootedFs) WriteFile(name string, data []byte, perm fs.FileMode) error {
	return afero.WriteFile(r.fs, r.path(name), data, perm)
}

func (r *rootedFs) MkdirAll(path string, perm fs.FileMode) error {
	return r.fs.MkdirAll(r.path(path), perm)
}

func (r *rootedFs) Remove(name string) error {
	return r.fs.Remove(r.path(name))
}

func (r *rootedFs) RemoveAll(name string) error {
	return r.fs.RemoveAll(r.path(name))
}

func (r *rootedFs) Symlink(oldname, newname string) error {
	linker, ok := r.fs.(afero.Linker)
	if !ok {
		return &os.LinkError{Op: "symlink", Old: oldname, New: newname, Err: afero.ErrNoSymlink}
	}
	return linker.SymlinkIfPossible(oldname, r.path(newname))
}

func (r *rootedFs) Readlink(name string) (string, error) {
	reader, ok := r.fs.(afero.LinkReader)
	if !ok {
		return "", &os.PathError{Op: "readlink", Path: name, Err: afero.ErrNoReadlink}
	}
	return reader.ReadlinkIfPossible(r.path(name))
}

func (r *rootedFs) Rename(oldpath, newpath string) error {
	return r.fs.Rename(r.path(oldpath), r.path(newpath))
}

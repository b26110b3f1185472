package server

import (
	"io"
	"os"
	"path/filepath"

	afserrors "github.com/EricZhang12138/Distributed-Filesystem/pkg/errors"
	"github.com/EricZhang12138/Distributed-Filesystem/pkg/wire"
)

// fsd is the in-core filesystem-data half of the Server File Service (spec
// §4.8): the piece that actually touches the host filesystem under the
// exported root, kept separate from the HBI reactor plumbing in
// server.go/session.go.
//
// There is no inode table: every operation is addressed by the
// server-absolute path a client already resolved, so there is nothing
// to cache beyond the root handle itself.
type fsd struct {
	root string
}

func newFSD(root string) (*fsd, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, afserrors.FromHostError("stat", root, err)
	}
	if !fi.IsDir() {
		return nil, afserrors.Of(afserrors.InvalidState, "export root %s is not a directory", root)
	}
	return &fsd{root: root}, nil
}

// hostPath maps a server-absolute path (already rooted at "/") to the real
// filesystem path under the exported root.
func (f *fsd) hostPath(path string) string {
	return filepath.Join(f.root, path)
}

// mtimeNS extracts the authoritative timestamp at nanosecond precision:
// sec·10⁹ + nsec (spec §4.8, "authoritative mtime extracted from the
// host").
func mtimeNS(fi os.FileInfo) int64 {
	mt := fi.ModTime()
	return mt.Unix()*1_000_000_000 + int64(mt.Nanosecond())
}

// openForRead opens path for a streamed open() reply, returning the file,
// its size and its authoritative mtime. A missing file is created empty
// (with any missing parent directories) and reported at the mtime of that
// new file, matching CreateFile's expectation that
// opening a not-yet-existing path is how a file gets created (spec §6
// create -> open_file).
func (f *fsd) openForRead(path string) (*os.File, int64, int64, error) {
	hp := f.hostPath(path)
	file, err := os.OpenFile(hp, os.O_RDONLY, 0644)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(filepath.Dir(hp), 0755); mkErr != nil {
			return nil, 0, 0, afserrors.FromHostError("mkdir", filepath.Dir(hp), mkErr)
		}
		file, err = os.OpenFile(hp, os.O_RDONLY|os.O_CREATE, 0644)
	}
	if err != nil {
		return nil, 0, 0, afserrors.FromHostError("open", hp, err)
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, 0, afserrors.FromHostError("stat", hp, err)
	}
	return file, fi.Size(), mtimeNS(fi), nil
}

// compare reports whether the host copy of path is newer than clientTS,
// per spec §4.8: "if server mtime ≤ client timestamp, replies with
// update_bit=0 ... otherwise streams the full current content".
func (f *fsd) compare(path string, clientTS int64) (updated bool, ts int64, err error) {
	hp := f.hostPath(path)
	fi, err := os.Stat(hp)
	if err != nil {
		return false, 0, afserrors.FromHostError("stat", hp, err)
	}
	ts = mtimeNS(fi)
	return ts > clientTS, ts, nil
}

// writeFromStream writes size bytes read from r to path, creating parent
// directories as needed (spec §4.8 close: "opens the first-chunk's target
// path (creating parent directories as needed), streams bytes to disk"),
// then returns the new authoritative timestamp. The content goes to a temp
// file in the same directory that is renamed over path once synced, so the
// file at path is replaced whole.
func (f *fsd) writeFromStream(path string, r io.Reader, size int64) (int64, error) {
	hp := f.hostPath(path)
	if err := os.MkdirAll(filepath.Dir(hp), 0755); err != nil {
		return 0, afserrors.FromHostError("mkdir", filepath.Dir(hp), err)
	}

	file, err := os.CreateTemp(filepath.Dir(hp), ".afsd-*")
	if err != nil {
		return 0, afserrors.FromHostError("create-temp", hp, err)
	}
	tmpPath := file.Name()
	defer os.Remove(tmpPath) // nothing left to remove once renamed into place
	defer file.Close()

	if err := file.Chmod(0644); err != nil {
		return 0, afserrors.FromHostError("chmod", tmpPath, err)
	}
	if _, err := io.CopyN(file, r, size); err != nil && err != io.EOF {
		return 0, afserrors.FromHostError("write", hp, err)
	}
	if err := file.Sync(); err != nil {
		return 0, afserrors.FromHostError("sync", hp, err)
	}
	if err := os.Rename(tmpPath, hp); err != nil {
		return 0, afserrors.FromHostError("rename", hp, err)
	}

	fi, err := file.Stat()
	if err != nil {
		return 0, afserrors.FromHostError("stat", hp, err)
	}
	return mtimeNS(fi), nil
}

// getattr returns the attribute snapshot for path. A missing path reports
// ok=false, which callers surface silently (spec §4.8: "Returns NOT_FOUND
// for non-existent paths silently (not an error log)").
func (f *fsd) getattr(path string) (attr wire.Attr, ok bool, err error) {
	hp := f.hostPath(path)
	fi, statErr := os.Stat(hp)
	if os.IsNotExist(statErr) {
		return wire.Attr{}, false, nil
	}
	if statErr != nil {
		return wire.Attr{}, false, afserrors.FromHostError("stat", hp, statErr)
	}

	sysAttr := attrFromFileInfo(fi)
	return sysAttr, true, nil
}

// ls lists the entries of a directory (spec §4.8: "returns a mapping of
// entry name -> type tag").
func (f *fsd) ls(path string) ([]wire.DirEntry, bool, error) {
	hp := f.hostPath(path)
	entries, err := os.ReadDir(hp)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, afserrors.FromHostError("readdir", hp, err)
	}

	out := make([]wire.DirEntry, 0, len(entries))
	for _, e := range entries {
		kind := wire.RegularFile
		if e.IsDir() {
			kind = wire.Directory
		}
		out = append(out, wire.DirEntry{Name: e.Name(), Kind: kind})
	}
	return out, true, nil
}

// mkdir creates a directory, idempotent if it already exists as a
// directory, erroring if the name exists as a plain file (spec §4.8).
func (f *fsd) mkdir(path string, mode uint32) error {
	hp := f.hostPath(path)
	if fi, err := os.Stat(hp); err == nil {
		if fi.IsDir() {
			return nil
		}
		return afserrors.Of(afserrors.AlreadyExists, "mkdir %s: exists as a file", path)
	}
	if err := os.MkdirAll(hp, os.FileMode(mode)); err != nil {
		return afserrors.FromHostError("mkdir", hp, err)
	}
	return nil
}

// rename creates any needed destination parent directories, then performs
// the atomic rename (spec §4.8).
func (f *fsd) rename(oldPath, newPath string) error {
	oldHP, newHP := f.hostPath(oldPath), f.hostPath(newPath)
	if err := os.MkdirAll(filepath.Dir(newHP), 0755); err != nil {
		return afserrors.FromHostError("mkdir", filepath.Dir(newHP), err)
	}
	if err := os.Rename(oldHP, newHP); err != nil {
		return afserrors.FromHostError("rename", oldHP, err)
	}
	return nil
}

// unlink removes path.
func (f *fsd) unlink(path string) error {
	hp := f.hostPath(path)
	if err := os.RemoveAll(hp); err != nil {
		return afserrors.FromHostError("remove", hp, err)
	}
	return nil
}

// truncate resizes path on the server.
func (f *fsd) truncate(path string, size int64) error {
	hp := f.hostPath(path)
	if err := os.Truncate(hp, size); err != nil {
		return afserrors.FromHostError("truncate", hp, err)
	}
	return nil
}

// attrFromFileInfo builds the wire attribute snapshot getattr replies with.
// nlink is always reported as 1. Uid/Gid are left zero here: spec §3
// requires them "rewritten to the local invoking user," which only the
// client can know, so the client stamps its own uid/gid on receipt rather
// than the server reporting its own (see pkg/client/client.go's
// GetAttributes and pkg/client/protocol.go's refreshAttrLocked).
func attrFromFileInfo(fi os.FileInfo) wire.Attr {
	mode := uint32(fi.Mode().Perm())
	if fi.IsDir() {
		mode |= 1 << 31 // high bit flags directory
	}
	ts := mtimeNS(fi)
	return wire.Attr{
		Size:  uint64(fi.Size()),
		Mode:  mode,
		Nlink: 1,
		Atime: ts,
		Mtime: ts,
		Ctime: ts,
	}
}

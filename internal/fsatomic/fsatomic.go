// Package fsatomic writes run outputs so that the final path only ever
// holds a complete artifact: data is staged at path+".tmp", fsynced, and
// renamed into place with the parent directory synced around the rename.
package fsatomic

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// PendingFile is a streaming output staged at path+".tmp" until Commit
// promotes it. Abort (safe to defer past Commit) discards the staging
// file, so an aborted or cancelled run leaves nothing at the final path.
type PendingFile struct {
	f         *os.File
	path, tmp string
	done      bool
}

// Create stages a pending file for path, creating parent directories.
func Create(path string, perm fs.FileMode) (*PendingFile, error) {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return nil, err
	}
	return &PendingFile{f: f, path: path, tmp: tmp}, nil
}

func (p *PendingFile) Write(b []byte) (int, error) { return p.f.Write(b) }

// Commit fsyncs the staging file, renames it into place, and syncs the
// parent directory on both sides of the rename.
func (p *PendingFile) Commit() error {
	if p.done {
		return nil
	}
	p.done = true
	if err := p.f.Sync(); err != nil {
		p.discard()
		return err
	}
	if err := p.f.Close(); err != nil {
		_ = os.Remove(p.tmp)
		return err
	}
	dir := filepath.Dir(p.path)
	if err := fsyncDir(dir); err != nil {
		_ = os.Remove(p.tmp)
		return err
	}
	if err := os.Rename(p.tmp, p.path); err != nil {
		_ = os.Remove(p.tmp)
		return err
	}
	return fsyncDir(dir)
}

// Abort discards the staging file. No-op after Commit.
func (p *PendingFile) Abort() {
	if p.done {
		return
	}
	p.done = true
	p.discard()
}

func (p *PendingFile) discard() {
	_ = p.f.Close()
	_ = os.Remove(p.tmp)
}

// SaveJSON atomically writes v as pretty JSON to path. If perm is 0,
// 0644 is used.
func SaveJSON(path string, v any, perm fs.FileMode) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	p, err := Create(path, perm)
	if err != nil {
		return err
	}
	if _, err := p.Write(b); err != nil {
		p.Abort()
		return err
	}
	return p.Commit()
}

// fsyncDir persists directory metadata; no-op on Windows where
// directories cannot be opened for sync.
func fsyncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

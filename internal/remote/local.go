package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
)

// LocalDialer serves the archive layout from a directory on disk. Remote
// paths are resolved below root, so "/feed/20260204" becomes
// <root>/feed/20260204.
type LocalDialer struct {
	root string
}

// NewLocal creates a dialer rooted at root.
func NewLocal(root string) *LocalDialer {
	return &LocalDialer{root: root}
}

// Connect checks that the root exists.
func (d *LocalDialer) Connect(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("connect", d.root, err)
	}
	info, err := os.Stat(d.root)
	if err != nil {
		return nil, wrap("connect", d.root, err)
	}
	if !info.IsDir() {
		return nil, wrap("connect", d.root, fmt.Errorf("not a directory"))
	}
	return &localSession{root: d.root, cwd: "/"}, nil
}

type localSession struct {
	root string
	cwd  string
}

func (s *localSession) ChangeDir(dir string) error {
	target := s.resolve(dir)
	info, err := os.Stat(s.disk(target))
	if err != nil {
		return wrap("cwd", target, err)
	}
	if !info.IsDir() {
		return wrap("cwd", target, fmt.Errorf("not a directory"))
	}
	s.cwd = target
	return nil
}

func (s *localSession) List() ([]string, error) {
	entries, err := os.ReadDir(s.disk(s.cwd))
	if err != nil {
		return nil, wrap("list", s.cwd, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *localSession) Retrieve(name string, w io.Writer) error {
	p := s.resolve(name)
	f, err := os.Open(s.disk(p))
	if err != nil {
		return wrap("retrieve", p, err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return wrap("retrieve", p, err)
	}
	return nil
}

func (s *localSession) Store(name string, r io.Reader) error {
	p := s.resolve(name)
	f, err := os.Create(s.disk(p))
	if err != nil {
		return wrap("store", p, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return wrap("store", p, err)
	}
	return wrap("store", p, f.Close())
}

func (s *localSession) Delete(name string) error {
	p := s.resolve(name)
	return wrap("delete", p, os.Remove(s.disk(p)))
}

func (s *localSession) MakeDir(dir string) error {
	p := s.resolve(dir)
	return wrap("mkdir", p, os.MkdirAll(s.disk(p), 0755))
}

func (s *localSession) Close() error { return nil }

func (s *localSession) resolve(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(s.cwd, p)
}

// disk maps a cleaned remote path onto the filesystem. Cleaning an absolute
// path removes any "..", so the result never leaves root.
func (s *localSession) disk(p string) string {
	return filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+p)))
}

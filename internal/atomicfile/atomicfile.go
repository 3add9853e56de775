// Package atomicfile writes workspace files so that readers only ever observe
// the previous content or the complete new content.
package atomicfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const defaultPerm os.FileMode = 0o644

// staged is a fully written and synced temp file beside its destination.
type staged struct {
	tmp, dest string
}

// stage writes fn's output to a hidden temp file in dest's directory. perm 0
// keeps the mode of an existing dest.
func stage(dest string, perm os.FileMode, fn func(io.Writer) error) (*staged, error) {
	if perm == 0 {
		perm = defaultPerm
		if st, err := os.Stat(dest); err == nil {
			perm = st.Mode().Perm()
		}
	}
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return nil, err
	}
	s := &staged{tmp: f.Name(), dest: dest}

	err = fn(f)
	if err == nil {
		_ = f.Chmod(perm)
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.discard()
		return nil, fmt.Errorf("write %s: %w", dest, err)
	}
	return s, nil
}

func (s *staged) discard() { _ = os.Remove(s.tmp) }

// replace renames the temp file over dest. Windows refuses to rename onto
// an existing file, so a failed rename is retried once after removing dest.
func (s *staged) replace() error {
	if err := os.Rename(s.tmp, s.dest); err == nil {
		return nil
	}
	_ = os.Remove(s.dest)
	if err := os.Rename(s.tmp, s.dest); err != nil {
		s.discard()
		return fmt.Errorf("replace %s: %w", s.dest, err)
	}
	return nil
}

// link publishes the temp file at dest only if dest does not exist yet.
func (s *staged) link() error {
	defer s.discard()
	err := os.Link(s.tmp, s.dest)
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("create %s: %w", s.dest, os.ErrExist)
	}
	// No hard links here: claim the name exclusively, then fill it.
	f, err := os.OpenFile(s.dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, defaultPerm)
	if err != nil {
		return fmt.Errorf("create %s: %w", s.dest, err)
	}
	_ = f.Close()
	return os.Rename(s.tmp, s.dest)
}

// WriteFunc streams fn's output into path atomically. When fn fails, path
// is left as it was.
func WriteFunc(path string, perm os.FileMode, fn func(w io.Writer) error) error {
	s, err := stage(path, perm, fn)
	if err != nil {
		return err
	}
	return s.replace()
}

// WriteFile is WriteFunc for a byte slice. Parent directories are created.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	return WriteFunc(path, perm, bytesWriter(data))
}

// CreateNew writes data to path unless something is already there, in which
// case the error matches os.ErrExist and the existing file is untouched.
func CreateNew(path string, data []byte, perm os.FileMode) error {
	s, err := stage(path, perm, bytesWriter(data))
	if err != nil {
		return err
	}
	return s.link()
}

// CopyFile copies src to dst atomically, keeping src's mode.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	st, err := in.Stat()
	if err != nil {
		return err
	}
	return WriteFunc(dst, st.Mode().Perm(), func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

// Move renames src to dst, creating dst's directory. Where rename cannot
// work, such as across devices, it copies and removes src.
func Move(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if os.Rename(src, dst) == nil {
		return nil
	}
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func bytesWriter(data []byte) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}
}

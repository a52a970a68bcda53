package vfs

import (
	stderrors "errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-pawnc/errors"
)

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

// ErrIsDir is the cause when a file would replace a directory.
var ErrIsDir = stderrors.New("is a directory")

// Include is one file to stage beneath the include root.
type Include struct {
	// Path is slash separated and relative to the include root.
	Path    string
	Content []byte
}

// Store stages files in the module's private filesystem.
type Store struct {
	fs   afero.Fs
	log  *zap.Logger
	root string
	mu   sync.Mutex
}

// NewStore returns a Store over fs with includes rooted at root.
// fs is expected to be rooted at the directory the module sees as "/".
func NewStore(fs afero.Fs, root string) *Store {
	return &Store{
		fs:   fs,
		root: path.Clean("/" + root),
	}
}

// NewDirStore returns a Store over the host directory dir.
func NewDirStore(dir, root string) *Store {
	return NewStore(afero.NewBasePathFs(afero.NewOsFs(), dir), root)
}

// WithLogger makes s log to l instead of the package logger.
func (s *Store) WithLogger(l *zap.Logger) *Store {
	s.log = l
	return s
}

func (s *Store) logger() *zap.Logger {
	if s.log != nil {
		return s.log
	}
	return Logger()
}

// Fs returns the underlying filesystem.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// Root returns the include root.
func (s *Store) Root() string {
	return s.root
}

// EnsureRoot creates the include root if it does not exist yet.
func (s *Store) EnsureRoot() error {
	return s.Mkdir(s.root)
}

// AddInclude writes content at name beneath the include root, creating
// intermediate directories as needed. An existing file is removed before the
// new content is written.
func (s *Store) AddInclude(name string, content []byte) error {
	rel, err := cleanInclude(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	segments := strings.Split(rel, "/")
	dir := s.root
	for _, seg := range segments[:len(segments)-1] {
		dir = path.Join(dir, seg)
		if err := s.mkdir(dir); err != nil {
			return err
		}
	}

	target := path.Join(s.root, rel)
	if err := s.replace(target, content); err != nil {
		return err
	}

	s.logger().Debug("include staged",
		zap.String("path", target),
		zap.Int("size", len(content)))
	return nil
}

// AddIncludes stages list in order. The first failure stops the remaining
// entries; entries before it stay staged.
func (s *Store) AddIncludes(list []Include) error {
	for i, inc := range list {
		if err := s.AddInclude(inc.Path, inc.Content); err != nil {
			return errors.New(errors.PhaseFilesystem, errors.KindIO).
				Path(inc.Path).
				Detail("include %d of %d", i, len(list)).
				Cause(err).
				Build()
		}
	}
	return nil
}

// Exists reports whether p exists.
func (s *Store) Exists(p string) (bool, error) {
	p = path.Clean(p)
	ok, err := afero.Exists(s.fs, p)
	if err != nil {
		return false, errors.Filesystem("stat", p, err)
	}
	return ok, nil
}

// ReadFile returns the content at p. A missing file yields an error that
// matches os.ErrNotExist.
func (s *Store) ReadFile(p string) ([]byte, error) {
	p = path.Clean(p)
	data, err := afero.ReadFile(s.fs, p)
	if err != nil {
		return nil, errors.Filesystem("read", p, err)
	}
	return data, nil
}

// WriteFile replaces the file at p. A directory at p is an error.
func (s *Store) WriteFile(p string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replace(path.Clean(p), data)
}

// Remove unlinks p. A missing file is not an error.
func (s *Store) Remove(p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(path.Clean(p))
}

// Mkdir creates the directory p. An existing entry is not an error.
func (s *Store) Mkdir(p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mkdir(path.Clean(p))
}

func (s *Store) mkdir(p string) error {
	err := s.fs.Mkdir(p, dirPerm)
	if err == nil || stderrors.Is(err, os.ErrExist) {
		return nil
	}
	return errors.Filesystem("mkdir", p, err)
}

// replace removes the file at p and writes data in its place.
func (s *Store) replace(p string, data []byte) error {
	if isDir, _ := afero.IsDir(s.fs, p); isDir {
		return errors.Filesystem("write", p, ErrIsDir)
	}
	if err := s.remove(p); err != nil {
		return err
	}
	if err := afero.WriteFile(s.fs, p, data, filePerm); err != nil {
		return errors.Filesystem("write", p, err)
	}
	return nil
}

func (s *Store) remove(p string) error {
	err := s.fs.Remove(p)
	if err == nil || stderrors.Is(err, os.ErrNotExist) {
		return nil
	}
	return errors.Filesystem("remove", p, err)
}

func cleanInclude(name string) (string, error) {
	if name == "" {
		return "", errors.InvalidInput(errors.PhaseFilesystem, "empty include path")
	}
	if strings.HasPrefix(name, "/") {
		return "", errors.InvalidInput(errors.PhaseFilesystem,
			fmt.Sprintf("include path %q must be relative", name))
	}
	rel := path.Clean(name)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", errors.InvalidInput(errors.PhaseFilesystem,
			fmt.Sprintf("include path %q escapes the include root", name))
	}
	return rel, nil
}

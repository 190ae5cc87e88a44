package git

import (
	"errors"
	"os"
	"sync"

	billy "github.com/go-git/go-billy/v5"
)

const (
	// DefaultMaxFiles is the default number of files a clone may create
	DefaultMaxFiles = 10 * 1000

	// DefaultMaxTotalSize is the default number of bytes a clone may write
	DefaultMaxTotalSize = 100 * 1024 * 1024
)

var (
	// ErrTooManyFiles is returned once a clone creates more than MaxFiles files
	ErrTooManyFiles = errors.New("repository exceeds the maximum number of files")

	// ErrTooLarge is returned once a clone writes more than TotalFileSize bytes
	ErrTooLarge = errors.New("repository exceeds the maximum total size")
)

// limits is shared by a LimitedFs and every filesystem derived from it
type limits struct {
	mu        sync.Mutex
	maxFiles  int64
	maxSize   int64
	files     int64
	totalSize int64
}

func (l *limits) addFile() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.files+1 > l.maxFiles {
		return ErrTooManyFiles
	}
	l.files++
	return nil
}

func (l *limits) addBytes(n int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.totalSize+n > l.maxSize {
		return ErrTooLarge
	}
	l.totalSize += n
	return nil
}

// LimitedFs wraps a billy filesystem and fails writes once the number of
// created files or the total written bytes exceed the configured limits
type LimitedFs struct {
	billy.Filesystem
	limits *limits
}

// NewLimitedFs wraps fs with the given limits
func NewLimitedFs(fs billy.Filesystem, maxFiles, maxTotalSize int64) *LimitedFs {
	return &LimitedFs{
		Filesystem: fs,
		limits:     &limits{maxFiles: maxFiles, maxSize: maxTotalSize},
	}
}

// Create creates a file counted against the limits
func (l *LimitedFs) Create(filename string) (billy.File, error) {
	return l.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
}

// OpenFile opens a file; files opened for creation count against the limits
func (l *LimitedFs) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	if flag&os.O_CREATE != 0 {
		if _, err := l.Filesystem.Stat(filename); errors.Is(err, os.ErrNotExist) {
			if err := l.limits.addFile(); err != nil {
				return nil, err
			}
		}
	}
	f, err := l.Filesystem.OpenFile(filename, flag, perm)
	if err != nil {
		return nil, err
	}
	return &limitedFile{File: f, limits: l.limits}, nil
}

// TempFile creates a temporary file counted against the limits
func (l *LimitedFs) TempFile(dir, prefix string) (billy.File, error) {
	if err := l.limits.addFile(); err != nil {
		return nil, err
	}
	f, err := l.Filesystem.TempFile(dir, prefix)
	if err != nil {
		return nil, err
	}
	return &limitedFile{File: f, limits: l.limits}, nil
}

// Chroot returns a filesystem rooted at path that shares these limits
func (l *LimitedFs) Chroot(path string) (billy.Filesystem, error) {
	fs, err := l.Filesystem.Chroot(path)
	if err != nil {
		return nil, err
	}
	return &LimitedFs{Filesystem: fs, limits: l.limits}, nil
}

// Usage reports the files created and bytes written so far
func (l *LimitedFs) Usage() (files, bytes int64) {
	l.limits.mu.Lock()
	defer l.limits.mu.Unlock()
	return l.limits.files, l.limits.totalSize
}

type limitedFile struct {
	billy.File
	limits *limits
}

func (f *limitedFile) Write(p []byte) (int, error) {
	if err := f.limits.addBytes(int64(len(p))); err != nil {
		return 0, err
	}
	return f.File.Write(p)
}

package emu

import (
	"os"
	"path/filepath"
	"sync"
)

// File open flags passed in $a1 of the open syscall.
const (
	OpenRead   uint32 = 0
	OpenWrite  uint32 = 1
	OpenAppend uint32 = 9
)

// FileDescriptor represents an open file descriptor.
type FileDescriptor struct {
	HostFile *os.File // Host file handle (nil for the standard streams)
	Path     string
	Write    bool
	IsOpen   bool
}

// FDTable maps simulated file descriptors to host files. Descriptors 0-2
// are the standard streams and are serviced by the syscall handler.
type FDTable struct {
	fds    map[uint32]*FileDescriptor
	nextFD uint32
	dir    string
	mu     sync.Mutex
}

// NewFDTable creates a table resolving relative paths against dir. An
// empty dir means the process working directory.
func NewFDTable(dir string) *FDTable {
	t := &FDTable{
		fds:    make(map[uint32]*FileDescriptor),
		nextFD: 3,
		dir:    dir,
	}

	t.fds[0] = &FileDescriptor{Path: "stdin", IsOpen: true}
	t.fds[1] = &FileDescriptor{Path: "stdout", Write: true, IsOpen: true}
	t.fds[2] = &FileDescriptor{Path: "stderr", Write: true, IsOpen: true}

	return t
}

// Open opens path with one of the Open flags and returns a new descriptor.
func (t *FDTable) Open(path string, flag uint32) (uint32, error) {
	var osFlags int
	switch flag {
	case OpenRead:
		osFlags = os.O_RDONLY
	case OpenWrite:
		osFlags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case OpenAppend:
		osFlags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	default:
		return 0, os.ErrInvalid
	}

	if path == "" {
		return 0, os.ErrInvalid
	}
	if !filepath.IsAbs(path) && t.dir != "" {
		path = filepath.Join(t.dir, path)
	}

	hostFile, err := os.OpenFile(path, osFlags, 0o644)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fd := t.nextFD
	t.nextFD++
	t.fds[fd] = &FileDescriptor{
		HostFile: hostFile,
		Path:     path,
		Write:    flag != OpenRead,
		IsOpen:   true,
	}

	return fd, nil
}

// Close closes a file descriptor.
func (t *FDTable) Close(fd uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.fds[fd]
	if !exists || !entry.IsOpen {
		return os.ErrInvalid
	}

	entry.IsOpen = false
	if entry.HostFile == nil {
		return nil
	}

	err := entry.HostFile.Close()
	entry.HostFile = nil
	return err
}

// CloseAll closes every host file still open.
func (t *FDTable) CloseAll() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var first error
	for _, entry := range t.fds {
		if entry.HostFile == nil {
			continue
		}
		if err := entry.HostFile.Close(); err != nil && first == nil {
			first = err
		}
		entry.HostFile = nil
		entry.IsOpen = false
	}
	return first
}

// Get returns the file descriptor entry if it exists and is open.
func (t *FDTable) Get(fd uint32) (*FileDescriptor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.fds[fd]
	if !exists || !entry.IsOpen {
		return nil, false
	}

	return entry, true
}

// IsOpen checks if a file descriptor is open.
func (t *FDTable) IsOpen(fd uint32) bool {
	_, ok := t.Get(fd)
	return ok
}

// hostFile returns the host file behind fd, if fd names an open file.
func (t *FDTable) hostFile(fd uint32, write bool) (*os.File, error) {
	entry, ok := t.Get(fd)
	if !ok || entry.HostFile == nil || entry.Write != write {
		return nil, os.ErrInvalid
	}
	return entry.HostFile, nil
}

// Read reads from a file descriptor into a buffer.
func (t *FDTable) Read(fd uint32, buf []byte) (int, error) {
	f, err := t.hostFile(fd, false)
	if err != nil {
		return 0, err
	}
	return f.Read(buf)
}

// Write writes a buffer to a file descriptor.
func (t *FDTable) Write(fd uint32, buf []byte) (int, error) {
	f, err := t.hostFile(fd, true)
	if err != nil {
		return 0, err
	}
	return f.Write(buf)
}

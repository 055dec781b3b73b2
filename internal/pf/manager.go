package pf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const (
	createFlags = os.O_RDWR | os.O_CREATE | os.O_EXCL
	rwFlags     = os.O_RDWR
)

// Manager creates, destroys, and opens paged files on a filesystem.
// Tests typically hand it afero.NewMemMapFs().
type Manager struct {
	fs  afero.Fs
	log zerolog.Logger
}

// NewManager returns a Manager over the given filesystem. The logger
// may be zerolog.Nop() for silent operation.
func NewManager(filesystem afero.Fs, log zerolog.Logger) *Manager {
	return &Manager{fs: filesystem, log: log}
}

// CreateFile creates a new, empty paged file.
func (m *Manager) CreateFile(name string) error {
	if ok, err := afero.Exists(m.fs, name); err != nil {
		return fmt.Errorf("pf: stat %q: %w", name, err)
	} else if ok {
		return ErrFileExists
	}

	f, err := m.fs.OpenFile(name, createFlags, 0o644)
	if err != nil {
		return fmt.Errorf("pf: create %q: %w", name, err)
	}
	defer f.Close()

	hdr := make([]byte, fileHdrSize)
	noFreeList := pageListEnd
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(noFreeList))
	binary.LittleEndian.PutUint32(hdr[4:8], 0)
	if _, err := f.WriteAt(hdr, 0); err != nil {
		_ = m.fs.Remove(name)
		return fmt.Errorf("pf: write header of %q: %w", name, err)
	}
	m.log.Debug().Str("file", name).Msg("created paged file")
	return nil
}

// Exists reports whether a file is present on the filesystem.
func (m *Manager) Exists(name string) (bool, error) {
	ok, err := afero.Exists(m.fs, name)
	if err != nil {
		return false, fmt.Errorf("pf: stat %q: %w", name, err)
	}
	return ok, nil
}

// DestroyFile removes the backing file.
func (m *Manager) DestroyFile(name string) error {
	if err := m.fs.Remove(name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrFileNotFound
		}
		return fmt.Errorf("pf: remove %q: %w", name, err)
	}
	m.log.Debug().Str("file", name).Msg("destroyed paged file")
	return nil
}

// OpenFile opens an existing paged file and returns a handle to it.
func (m *Manager) OpenFile(name string) (*FileHandle, error) {
	f, err := m.fs.OpenFile(name, rwFlags, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("pf: open %q: %w", name, err)
	}

	fh := &FileHandle{
		file: f,
		buf:  newBufferPool(f),
		open: true,
		log:  m.log.With().Str("file", name).Logger(),
	}
	if err := fh.readHdr(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return fh, nil
}

// CloseFile flushes and closes an open file handle. Fails if any page
// is still pinned.
func (m *Manager) CloseFile(fh *FileHandle) error {
	if fh == nil || !fh.open {
		return ErrFileClosed
	}
	if err := fh.ForcePages(); err != nil {
		return err
	}
	if err := fh.buf.release(); err != nil {
		return err
	}
	fh.open = false
	if err := fh.file.Close(); err != nil {
		return fmt.Errorf("pf: close: %w", err)
	}
	return nil
}

package pf

import (
	"encoding/binary"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// PageHandle grants access to one pinned page. The data slice aliases
// the buffer frame, so writes through it must be paired with
// MarkDirty before the page is unpinned.
type PageHandle struct {
	num  PageNum
	data []byte
}

// PageNum returns the page number of the pinned page.
func (h PageHandle) PageNum() PageNum { return h.num }

// Data returns the PageSize-byte data area of the pinned page.
func (h PageHandle) Data() []byte { return h.data }

// FileHandle operates on one open paged file. It is not safe for
// concurrent use.
type FileHandle struct {
	file     afero.File
	buf      *bufferPool
	hdr      fileHdr
	hdrDirty bool
	open     bool
	log      zerolog.Logger
}

// GetThisPage pins page n and returns a handle to it. Every
// successful call must be matched by UnpinPage.
func (fh *FileHandle) GetThisPage(n PageNum) (PageHandle, error) {
	if !fh.open {
		return PageHandle{}, ErrFileClosed
	}
	if n < 0 || n >= fh.hdr.numPages {
		return PageHandle{}, ErrInvalidPage
	}
	f, err := fh.buf.fetch(n)
	if err != nil {
		return PageHandle{}, err
	}
	if f.nextFree != pageUsed {
		_ = fh.buf.unpin(n)
		return PageHandle{}, ErrPageFree
	}
	return PageHandle{num: n, data: f.data}, nil
}

// AllocatePage returns a pinned, zeroed page, reusing the free list
// before growing the file.
func (fh *FileHandle) AllocatePage() (PageHandle, error) {
	if !fh.open {
		return PageHandle{}, ErrFileClosed
	}

	if n := fh.hdr.firstFree; n != pageListEnd {
		f, err := fh.buf.fetch(n)
		if err != nil {
			return PageHandle{}, err
		}
		fh.hdr.firstFree = f.nextFree
		fh.hdrDirty = true
		for i := range f.data {
			f.data[i] = 0
		}
		f.nextFree = pageUsed
		f.dirty = true
		return PageHandle{num: n, data: f.data}, nil
	}

	n := fh.hdr.numPages
	f, err := fh.buf.alloc(n)
	if err != nil {
		return PageHandle{}, err
	}
	fh.hdr.numPages++
	fh.hdrDirty = true
	return PageHandle{num: n, data: f.data}, nil
}

// DisposePage puts page n on the free list. The page must not be
// pinned; disposing a page that holds a pin fails with ErrPagePinned.
func (fh *FileHandle) DisposePage(n PageNum) error {
	if !fh.open {
		return ErrFileClosed
	}
	if n < 0 || n >= fh.hdr.numPages {
		return ErrInvalidPage
	}
	f, err := fh.buf.fetch(n)
	if err != nil {
		return err
	}
	if f.nextFree != pageUsed {
		_ = fh.buf.unpin(n)
		return ErrPageFree
	}
	if f.pinCount > 1 {
		_ = fh.buf.unpin(n)
		return ErrPagePinned
	}
	f.nextFree = fh.hdr.firstFree
	f.dirty = true
	fh.hdr.firstFree = n
	fh.hdrDirty = true
	return fh.buf.unpin(n)
}

// MarkDirty records that the caller mutated page n. The page must be
// pinned.
func (fh *FileHandle) MarkDirty(n PageNum) error {
	if !fh.open {
		return ErrFileClosed
	}
	return fh.buf.markDirty(n)
}

// UnpinPage releases one pin on page n.
func (fh *FileHandle) UnpinPage(n PageNum) error {
	if !fh.open {
		return ErrFileClosed
	}
	return fh.buf.unpin(n)
}

// ForcePages writes the file header and every dirty page to disk.
func (fh *FileHandle) ForcePages() error {
	if !fh.open {
		return ErrFileClosed
	}
	if err := fh.writeHdr(); err != nil {
		return err
	}
	if err := fh.buf.flushAll(); err != nil {
		return err
	}
	if err := fh.file.Sync(); err != nil {
		return fmt.Errorf("pf: sync: %w", err)
	}
	fh.log.Debug().Int32("pages", fh.hdr.numPages).Msg("forced pages")
	return nil
}

// NumPages reports the number of page slots ever allocated in the
// file, live or free.
func (fh *FileHandle) NumPages() PageNum {
	return fh.hdr.numPages
}

func (fh *FileHandle) writeHdr() error {
	if !fh.hdrDirty {
		return nil
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(fh.hdr.firstFree))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(fh.hdr.numPages))
	if _, err := fh.file.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("pf: write file header: %w", err)
	}
	fh.hdrDirty = false
	return nil
}

func (fh *FileHandle) readHdr() error {
	buf := make([]byte, 8)
	if _, err := fh.file.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("pf: read file header: %w", err)
	}
	fh.hdr.firstFree = PageNum(binary.LittleEndian.Uint32(buf[0:4]))
	fh.hdr.numPages = PageNum(binary.LittleEndian.Uint32(buf[4:8]))
	return nil
}

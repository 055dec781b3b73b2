package pf

import (
	"container/list"
	"encoding/binary"
	"fmt"

	"github.com/spf13/afero"
)

// frame holds one page's data while it is resident in memory.
type frame struct {
	pageNum  PageNum
	data     []byte // PageSize bytes
	nextFree PageNum
	pinCount int
	dirty    bool
	lruElem  *list.Element // position in bufferPool.lru while unpinned
}

// bufferPool caches up to BufferSize pages of a single file. Frames
// with a zero pin count sit on the LRU list and are eligible for
// eviction; dirty victims are written back before reuse.
type bufferPool struct {
	file   afero.File
	frames map[PageNum]*frame
	lru    *list.List // of PageNum, front = least recently used
	max    int
}

func newBufferPool(file afero.File) *bufferPool {
	return &bufferPool{
		file:   file,
		frames: make(map[PageNum]*frame),
		lru:    list.New(),
		max:    BufferSize,
	}
}

func pageOffset(n PageNum) int64 {
	return fileHdrSize + int64(n)*pageSlotSize
}

// fetch returns the frame for page n, reading it from disk if needed,
// and pins it. The caller owns one pin on return.
func (b *bufferPool) fetch(n PageNum) (*frame, error) {
	if f, ok := b.frames[n]; ok {
		b.pin(f)
		return f, nil
	}
	f, err := b.newFrame(n)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, pageSlotSize)
	if _, err := b.file.ReadAt(buf, pageOffset(n)); err != nil {
		delete(b.frames, n)
		return nil, fmt.Errorf("pf: read page %d: %w", n, err)
	}
	f.nextFree = PageNum(binary.LittleEndian.Uint32(buf[0:4]))
	copy(f.data, buf[4:])
	b.pin(f)
	return f, nil
}

// alloc installs a fresh zeroed frame for page n without touching the
// disk. Used when a page is (re)allocated and its old contents are
// irrelevant. The caller owns one pin on return.
func (b *bufferPool) alloc(n PageNum) (*frame, error) {
	if f, ok := b.frames[n]; ok {
		// reallocating a disposed page that is still resident
		for i := range f.data {
			f.data[i] = 0
		}
		f.nextFree = pageUsed
		f.dirty = true
		b.pin(f)
		return f, nil
	}
	f, err := b.newFrame(n)
	if err != nil {
		return nil, err
	}
	f.nextFree = pageUsed
	f.dirty = true
	b.pin(f)
	return f, nil
}

// newFrame finds room for one more frame, evicting the least recently
// used unpinned page if the pool is full.
func (b *bufferPool) newFrame(n PageNum) (*frame, error) {
	if len(b.frames) >= b.max {
		if err := b.evict(); err != nil {
			return nil, err
		}
	}
	f := &frame{pageNum: n, data: make([]byte, PageSize)}
	b.frames[n] = f
	return f, nil
}

func (b *bufferPool) pin(f *frame) {
	if f.lruElem != nil {
		b.lru.Remove(f.lruElem)
		f.lruElem = nil
	}
	f.pinCount++
}

func (b *bufferPool) unpin(n PageNum) error {
	f, ok := b.frames[n]
	if !ok || f.pinCount == 0 {
		return ErrPageUnpinned
	}
	f.pinCount--
	if f.pinCount == 0 {
		f.lruElem = b.lru.PushBack(n)
	}
	return nil
}

func (b *bufferPool) markDirty(n PageNum) error {
	f, ok := b.frames[n]
	if !ok || f.pinCount == 0 {
		return ErrPageUnpinned
	}
	f.dirty = true
	return nil
}

func (b *bufferPool) evict() error {
	elem := b.lru.Front()
	if elem == nil {
		return ErrNoBufSpace
	}
	n := elem.Value.(PageNum)
	f := b.frames[n]
	if f.dirty {
		if err := b.writeBack(f); err != nil {
			return err
		}
	}
	b.lru.Remove(elem)
	delete(b.frames, n)
	return nil
}

func (b *bufferPool) writeBack(f *frame) error {
	buf := make([]byte, pageSlotSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(f.nextFree))
	copy(buf[4:], f.data)
	if _, err := b.file.WriteAt(buf, pageOffset(f.pageNum)); err != nil {
		return fmt.Errorf("pf: write page %d: %w", f.pageNum, err)
	}
	f.dirty = false
	return nil
}

// flushAll writes every dirty frame back to disk. Frames stay
// resident and keep their pin counts.
func (b *bufferPool) flushAll() error {
	for _, f := range b.frames {
		if f.dirty {
			if err := b.writeBack(f); err != nil {
				return err
			}
		}
	}
	return nil
}

// release drops every frame, writing back dirty ones. Fails if any
// frame is still pinned.
func (b *bufferPool) release() error {
	for _, f := range b.frames {
		if f.pinCount > 0 {
			return ErrPagePinned
		}
	}
	if err := b.flushAll(); err != nil {
		return err
	}
	b.frames = make(map[PageNum]*frame)
	b.lru.Init()
	return nil
}

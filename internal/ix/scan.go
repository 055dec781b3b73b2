package ix

import (
	"errors"

	"tinybase/internal/pf"
	"tinybase/internal/rm"
)

// IndexScan iterates over the entries satisfying a comparison against
// a reference key. It holds no pin between GetNextEntry calls and
// relocates by the last returned (key, rid) pair, so deleting the
// entry a scan just returned is safe.
type IndexScan struct {
	h     *IndexHandle
	op    CompOp
	value []byte

	open bool
	eof  bool

	cur pf.PageNum // leaf holding the next candidate
	pos int        // entry index of the next candidate within cur

	started     bool // at least one entry returned
	lastKey     []byte
	lastRID     rm.RID
	nextAtYield pf.PageNum // cur's successor when the last entry was returned
}

// OpenScan positions the scan for the given operator. value supplies
// the reference key and may be nil only for NoOp.
func (s *IndexScan) OpenScan(h *IndexHandle, op CompOp, value []byte) error {
	if s.open {
		return ErrScanOpen
	}
	if h == nil || !h.open {
		return ErrFileClosed
	}
	switch op {
	case NoOp, EQ, LT, GT, LE, GE, NE:
	default:
		return ErrInvalidCompOp
	}
	if op != NoOp {
		if value == nil {
			return ErrNullPointer
		}
		if len(value) != h.attrLength {
			return ErrInvalidAttr
		}
	}

	s.h = h
	s.op = op
	if value != nil {
		s.value = make([]byte, h.attrLength)
		copy(s.value, value)
	} else {
		s.value = nil
	}

	// EQ/GE/GT start at the leftmost leaf that can hold the key;
	// everything else walks from the leftmost leaf of the tree.
	var start pf.PageNum
	var err error
	switch op {
	case EQ, GE, GT:
		start, err = h.findLeaf(s.value)
	default:
		start, err = h.findLeaf(nil)
	}
	if err != nil {
		return err
	}

	s.cur = start
	s.pos = 0
	s.eof = false
	s.started = false
	s.lastKey = nil
	s.lastRID = rm.NullRID
	s.nextAtYield = noMoreNode
	s.open = true
	return nil
}

// GetNextEntry returns the rid of the next matching entry, or ErrEOF
// once the scan is exhausted.
func (s *IndexScan) GetNextEntry() (rm.RID, error) {
	if !s.open {
		return rm.NullRID, ErrScanClosed
	}
	if s.eof {
		return rm.NullRID, ErrEOF
	}

	ph, err := s.h.fh.GetThisPage(s.cur)
	if errors.Is(err, pf.ErrPageFree) || errors.Is(err, pf.ErrInvalidPage) {
		// The leaf was disposed after its last entry (ours) was
		// deleted; resume at the successor remembered at yield
		// time.
		if s.nextAtYield == noMoreNode {
			s.eof = true
			return rm.NullRID, ErrEOF
		}
		s.cur = s.nextAtYield
		s.pos = 0
		ph, err = s.h.fh.GetThisPage(s.cur)
		if errors.Is(err, pf.ErrPageFree) {
			// The successor was the last leaf left and the root
			// contracted into it: its entries now live in page 0.
			s.cur = rootPage
			ph, err = s.h.fh.GetThisPage(s.cur)
		}
	}
	if err != nil {
		return rm.NullRID, err
	}
	p := ph.Data()
	hdr := readNodeHdr(p)

	if s.started && s.pos > 0 {
		// If the previously returned entry vanished, everything
		// after it shifted left by one.
		prev := s.pos - 1
		lay := s.h.layout
		if prev >= int(hdr.numKeys) ||
			compareKeys(s.h.attrType, lay.leafKey(p, prev), s.lastKey) != 0 ||
			lay.leafRID(p, prev) != s.lastRID {
			s.pos = prev
		}
	}

	for {
		numKeys := int(hdr.numKeys)
		if s.pos >= numKeys {
			next := s.leafNext(hdr)
			if err := s.h.fh.UnpinPage(s.cur); err != nil {
				return rm.NullRID, err
			}
			if next == noMoreNode {
				s.eof = true
				return rm.NullRID, ErrEOF
			}
			s.cur = next
			s.pos = 0
			ph, err = s.h.fh.GetThisPage(s.cur)
			if err != nil {
				return rm.NullRID, err
			}
			p = ph.Data()
			hdr = readNodeHdr(p)
			continue
		}

		key := s.h.layout.leafKey(p, s.pos)
		match, stop := s.matches(key)
		if stop {
			if err := s.h.fh.UnpinPage(s.cur); err != nil {
				return rm.NullRID, err
			}
			s.eof = true
			return rm.NullRID, ErrEOF
		}
		if !match {
			s.pos++
			continue
		}

		rid := s.h.layout.leafRID(p, s.pos)
		if s.lastKey == nil {
			s.lastKey = make([]byte, s.h.attrLength)
		}
		copy(s.lastKey, key)
		s.lastRID = rid
		s.nextAtYield = s.leafNext(hdr)
		s.started = true
		s.pos++
		if err := s.h.fh.UnpinPage(s.cur); err != nil {
			return rm.NullRID, err
		}
		return rid, nil
	}
}

// CloseScan releases the scan's state. The scan may be reopened.
func (s *IndexScan) CloseScan() error {
	if !s.open {
		return ErrScanClosed
	}
	*s = IndexScan{}
	return nil
}

// leafNext reads the successor of the current leaf. A root leaf has
// no successor: its header slots hold the file metadata.
func (s *IndexScan) leafNext(hdr nodeHdr) pf.PageNum {
	if s.cur == rootPage {
		return noMoreNode
	}
	return hdr.nextNode
}

// matches evaluates the scan predicate for a key and reports whether
// the key matches and whether the scan can terminate: key order makes
// EQ, LT, and LE falsifiable once the bound is passed.
func (s *IndexScan) matches(key []byte) (match, stop bool) {
	if s.op == NoOp {
		return true, false
	}
	c := compareKeys(s.h.attrType, key, s.value)
	switch s.op {
	case EQ:
		return c == 0, c > 0
	case LT:
		return c < 0, c >= 0
	case LE:
		return c <= 0, c > 0
	case GT:
		return c > 0, false
	case GE:
		return c >= 0, false
	case NE:
		return c != 0, false
	}
	return false, false
}

// findLeaf descends from the root to the leftmost leaf that can hold
// value, taking the child left of any equal separator. A nil value
// descends to the leftmost leaf of the tree.
func (h *IndexHandle) findLeaf(value []byte) (pf.PageNum, error) {
	node := rootPage
	for {
		ph, err := h.fh.GetThisPage(node)
		if err != nil {
			return 0, err
		}
		p := ph.Data()
		hdr := readNodeHdr(p)

		if hdr.isLeaf() {
			if err := h.fh.UnpinPage(node); err != nil {
				return 0, err
			}
			return node, nil
		}

		numKeys := int(hdr.numKeys)
		j := 0
		if value != nil {
			for ; j < numKeys; j++ {
				if compareKeys(h.attrType, value, h.layout.internalKey(p, j)) <= 0 {
					break
				}
			}
		}
		child := h.layout.internalPtr(p, j)
		if err := h.fh.UnpinPage(node); err != nil {
			return 0, err
		}
		node = child
	}
}

package ix

import (
	"errors"
	"fmt"

	"tinybase/internal/pf"
	"tinybase/internal/rm"
)

// errNotFoundSoFar is returned by the leftward duplicate walk to tell
// the original leaf that no matching (key, rid) pair exists in any
// earlier leaf and the insertion should happen at the original leaf.
// It never escapes the handle.
var errNotFoundSoFar = errors.New("ix: not found so far")

// IndexHandle operates on one open index file. Obtain one from
// Manager.OpenIndex; it is not safe for concurrent use.
type IndexHandle struct {
	fh         *pf.FileHandle
	name       string
	attrType   AttrType
	attrLength int
	layout     nodeLayout
	open       bool
}

// AttrType reports the declared type of the indexed attribute.
func (h *IndexHandle) AttrType() AttrType { return h.attrType }

// AttrLength reports the fixed key length in bytes.
func (h *IndexHandle) AttrLength() int { return h.attrLength }

func (h *IndexHandle) checkEntryArgs(key []byte, rid rm.RID) error {
	if !h.open {
		return ErrFileClosed
	}
	if key == nil {
		return ErrNullPointer
	}
	if len(key) != h.attrLength {
		return ErrInvalidAttr
	}
	if !rid.Viable() {
		return ErrInviableRID
	}
	return nil
}

// InsertEntry adds the (key, rid) pair to the index. Duplicate keys
// with distinct rids are accepted; inserting a pair that is already
// present fails with ErrEntryExists.
func (h *IndexHandle) InsertEntry(key []byte, rid rm.RID) error {
	if err := h.checkEntryArgs(key, rid); err != nil {
		return err
	}
	_, _, err := h.insertToNode(rootPage, key, rid)
	return err
}

// DeleteEntry removes the exact (key, rid) pair. Deletion is lazy:
// nodes are disposed only once empty, and the root contracts when a
// single-pointer chain remains.
func (h *IndexHandle) DeleteEntry(key []byte, rid rm.RID) error {
	if err := h.checkEntryArgs(key, rid); err != nil {
		return err
	}
	_, _, err := h.deleteFromNode(rootPage, key, rid)
	return err
}

// ForcePages makes all dirty index pages durable.
func (h *IndexHandle) ForcePages() error {
	if !h.open {
		return ErrFileClosed
	}
	return h.fh.ForcePages()
}

// insertToNode inserts (key, rid) into the subtree rooted at node.
// When the node splits, it returns the new right sibling and the
// separator key the caller must add; otherwise splitNode is
// dontSplit.
func (h *IndexHandle) insertToNode(node pf.PageNum, key []byte, rid rm.RID) ([]byte, pf.PageNum, error) {
	ph, err := h.fh.GetThisPage(node)
	if err != nil {
		return nil, dontSplit, err
	}
	p := ph.Data()
	hdr := readNodeHdr(p)

	if hdr.isLeaf() {
		if err := h.fh.UnpinPage(node); err != nil {
			return nil, dontSplit, err
		}
		return h.insertToLeaf(node, key, rid, true)
	}

	// Ties descend right of equal separators, so among duplicates
	// the descent ends in the rightmost subtree that may hold the
	// key; the leaf-level walk covers earlier leaves of the run.
	numKeys := int(hdr.numKeys)
	j := 0
	for ; j < numKeys; j++ {
		if compareKeys(h.attrType, key, h.layout.internalKey(p, j)) < 0 {
			break
		}
	}
	child := h.layout.internalPtr(p, j)
	if err := h.fh.UnpinPage(node); err != nil {
		return nil, dontSplit, err
	}

	splitKey, splitNode, err := h.insertToNode(child, key, rid)
	if err != nil {
		return nil, dontSplit, err
	}
	if splitNode != dontSplit {
		return h.insertToInternal(node, child, splitKey, splitNode)
	}
	return nil, dontSplit, nil
}

// leafAction is the outcome of inspecting a leaf during the
// duplicate-pair check.
type leafAction int

const (
	actInsertHere leafAction = iota
	actExists
	actNotHere
	actTryPrev
)

// insertToLeaf places (key, rid) into the leaf or, when duplicates of
// key may extend into earlier leaves, first walks the sibling chain
// left to rule out an existing identical pair. Only the original leaf
// is allowed to split; earlier leaves report errNotFoundSoFar when
// they would have to.
func (h *IndexHandle) insertToLeaf(node pf.PageNum, key []byte, rid rm.RID, original bool) ([]byte, pf.PageNum, error) {
	ph, err := h.fh.GetThisPage(node)
	if err != nil {
		return nil, dontSplit, err
	}
	p := ph.Data()
	hdr := readNodeHdr(p)
	numKeys := int(hdr.numKeys)

	action := actInsertHere
	var prev pf.PageNum

	j := numKeys - 1
	for ; j >= 0; j-- {
		if compareKeys(h.attrType, key, h.layout.leafKey(p, j)) == 0 {
			break
		}
	}
	if j < 0 {
		if !original {
			action = actNotHere
		}
	} else {
		for ; j >= 0; j-- {
			if compareKeys(h.attrType, key, h.layout.leafKey(p, j)) > 0 {
				break
			}
			if rid == h.layout.leafRID(p, j) {
				action = actExists
				break
			}
		}
		// Every key down to the front matched: duplicates may
		// continue in the previous leaf.
		if action != actExists && j < 0 && node != rootPage && hdr.prevNode != noMoreNode {
			action = actTryPrev
			prev = hdr.prevNode
		}
	}

	if err := h.fh.UnpinPage(node); err != nil {
		return nil, dontSplit, err
	}

	switch action {
	case actExists:
		return nil, dontSplit, ErrEntryExists
	case actNotHere:
		return nil, dontSplit, errNotFoundSoFar
	case actTryPrev:
		splitKey, splitNode, err := h.insertToLeaf(prev, key, rid, false)
		if !errors.Is(err, errNotFoundSoFar) {
			// Inserted in an earlier leaf, found an existing
			// pair, or failed outright.
			return splitKey, splitNode, err
		}
		// Safe to insert at this leaf.
	}

	if h.layout.leafHasRoom(numKeys) {
		return nil, dontSplit, h.insertToLeafNoSplit(node, key, rid)
	}
	if !original {
		return nil, dontSplit, errNotFoundSoFar
	}
	return h.insertToLeafSplit(node, key, rid)
}

// insertToLeafNoSplit adds the entry in sorted position. Equal keys
// keep insertion order: the new entry lands after existing ones.
func (h *IndexHandle) insertToLeafNoSplit(node pf.PageNum, key []byte, rid rm.RID) error {
	ph, err := h.fh.GetThisPage(node)
	if err != nil {
		return err
	}
	p := ph.Data()
	hdr := readNodeHdr(p)
	numKeys := int(hdr.numKeys)

	j := 0
	for ; j < numKeys; j++ {
		if compareKeys(h.attrType, key, h.layout.leafKey(p, j)) < 0 {
			h.layout.shiftLeafRight(p, j, numKeys)
			break
		}
	}
	h.layout.setLeafEntry(p, j, key, rid)
	setHdrNumKeys(p, numKeys+1)

	if err := h.fh.MarkDirty(node); err != nil {
		return err
	}
	return h.fh.UnpinPage(node)
}

// insertToLeafSplit splits a full leaf around its midpoint, splices
// the new right sibling into the chain, inserts the entry into the
// correct half, and reports the right half's first key as the
// separator. Splitting the root runs the fixed-root dance instead of
// propagating.
func (h *IndexHandle) insertToLeafSplit(node pf.PageNum, key []byte, rid rm.RID) ([]byte, pf.PageNum, error) {
	ph, err := h.fh.GetThisPage(node)
	if err != nil {
		return nil, dontSplit, err
	}
	p := ph.Data()
	hdr := readNodeHdr(p)
	numKeys := int(hdr.numKeys)

	newPh, err := h.fh.AllocatePage()
	if err != nil {
		_ = h.fh.UnpinPage(node)
		return nil, dontSplit, err
	}
	np := newPh.Data()
	newNode := newPh.PageNum()

	unpinned := false
	defer func() {
		if !unpinned {
			_ = h.fh.UnpinPage(node)
			_ = h.fh.UnpinPage(newNode)
		}
	}()

	pivot := numKeys / 2
	insertRight := compareKeys(h.attrType, key, h.layout.leafKey(p, pivot)) > 0
	if insertRight {
		pivot++
	}

	h.layout.moveLeafEntries(np, p, pivot, numKeys-pivot)

	newHdr := hdr
	newHdr.numKeys = uint16(numKeys - pivot)
	newHdr.prevNode = node
	hdr.numKeys = uint16(pivot)
	hdr.nextNode = newNode
	writeNodeHdr(p, hdr)
	writeNodeHdr(np, newHdr)

	if node != rootPage && newHdr.nextNode != noMoreNode {
		if err := h.setPrevOf(newHdr.nextNode, newNode); err != nil {
			return nil, dontSplit, err
		}
	}

	if insertRight {
		err = h.insertToLeafNoSplit(newNode, key, rid)
	} else {
		err = h.insertToLeafNoSplit(node, key, rid)
	}
	if err != nil {
		return nil, dontSplit, err
	}

	splitKey := make([]byte, h.attrLength)
	copy(splitKey, h.layout.leafKey(np, 0))
	splitNode := newNode

	if node == rootPage {
		if err := h.splitRoot(p, np, newNode, splitKey); err != nil {
			return nil, dontSplit, err
		}
		splitKey, splitNode = nil, dontSplit
	}

	if err := h.fh.MarkDirty(node); err != nil {
		return nil, dontSplit, err
	}
	if err := h.fh.MarkDirty(newNode); err != nil {
		return nil, dontSplit, err
	}
	unpinned = true
	if err := h.fh.UnpinPage(node); err != nil {
		return nil, dontSplit, err
	}
	if err := h.fh.UnpinPage(newNode); err != nil {
		return nil, dontSplit, err
	}
	return splitKey, splitNode, nil
}

// insertToInternal adds the (separator, child) pair propagated by a
// split of child into the internal node.
func (h *IndexHandle) insertToInternal(node, child pf.PageNum, splitKey []byte, splitNode pf.PageNum) ([]byte, pf.PageNum, error) {
	ph, err := h.fh.GetThisPage(node)
	if err != nil {
		return nil, dontSplit, err
	}
	numKeys := int(readNodeHdr(ph.Data()).numKeys)
	if err := h.fh.UnpinPage(node); err != nil {
		return nil, dontSplit, err
	}

	if h.layout.internalHasRoom(numKeys) {
		return nil, dontSplit, h.insertToIntlNoSplit(node, child, splitKey, splitNode)
	}
	return h.insertToIntlSplit(node, child, splitKey, splitNode)
}

// insertToIntlNoSplit places splitKey at the position of child and
// splitNode just after it. The slot is located by child pointer
// identity, not key comparison, so insertion order among duplicate
// keys is preserved.
func (h *IndexHandle) insertToIntlNoSplit(node, child pf.PageNum, splitKey []byte, splitNode pf.PageNum) error {
	ph, err := h.fh.GetThisPage(node)
	if err != nil {
		return err
	}
	p := ph.Data()
	numKeys := int(readNodeHdr(p).numKeys)

	j := 0
	for ; j < numKeys; j++ {
		if h.layout.internalPtr(p, j) == child {
			es := h.layout.internalEntrySize()
			src := h.layout.internalKeyOff(j)
			copy(p[src+es:src+es+(numKeys-j)*es], p[src:src+(numKeys-j)*es])
			break
		}
	}
	h.layout.setInternalKey(p, j, splitKey)
	h.layout.setInternalPtr(p, j+1, splitNode)
	setHdrNumKeys(p, numKeys+1)

	if err := h.fh.MarkDirty(node); err != nil {
		return err
	}
	return h.fh.UnpinPage(node)
}

// insertToIntlSplit splits a full internal node. Depending on where
// the traversed child sits relative to the pivot, the propagated pair
// goes to the left half, the right half, or straight up as the new
// separator without landing in either half.
func (h *IndexHandle) insertToIntlSplit(node, child pf.PageNum, splitKey []byte, splitNode pf.PageNum) ([]byte, pf.PageNum, error) {
	ph, err := h.fh.GetThisPage(node)
	if err != nil {
		return nil, dontSplit, err
	}
	p := ph.Data()
	hdr := readNodeHdr(p)
	numKeys := int(hdr.numKeys)

	newPh, err := h.fh.AllocatePage()
	if err != nil {
		_ = h.fh.UnpinPage(node)
		return nil, dontSplit, err
	}
	np := newPh.Data()
	newNode := newPh.PageNum()

	unpinned := false
	defer func() {
		if !unpinned {
			_ = h.fh.UnpinPage(node)
			_ = h.fh.UnpinPage(newNode)
		}
	}()

	j := 0
	for ; j <= numKeys; j++ {
		if h.layout.internalPtr(p, j) == child {
			break
		}
	}

	pivot := (numKeys + 1) / 2
	var insertLoc int
	switch {
	case j > pivot:
		insertLoc = 1
	case j < pivot:
		pivot--
		insertLoc = -1
	default:
		insertLoc = 0
	}

	es := h.layout.internalEntrySize()
	newSplitKey := make([]byte, h.attrLength)
	moved := (numKeys - pivot) * es
	if insertLoc == 0 {
		// The propagated pair becomes the right half's first
		// unit and its key moves up as the separator.
		src := h.layout.internalKeyOff(pivot)
		dst := h.layout.internalKeyOff(0)
		copy(np[dst:dst+moved], p[src:src+moved])
		h.layout.setInternalPtr(np, 0, splitNode)
		copy(newSplitKey, splitKey)
	} else {
		src := h.layout.internalPtrOff(pivot + 1)
		copy(np[nodeHdrSize:nodeHdrSize+moved], p[src:src+moved])
		copy(newSplitKey, h.layout.internalKey(p, pivot))
	}

	newHdr := hdr
	newHdr.numKeys = uint16(numKeys - pivot - insertLoc*insertLoc)
	newHdr.prevNode = node
	hdr.numKeys = uint16(pivot)
	hdr.nextNode = newNode
	writeNodeHdr(p, hdr)
	writeNodeHdr(np, newHdr)

	if node != rootPage && newHdr.nextNode != noMoreNode {
		if err := h.setPrevOf(newHdr.nextNode, newNode); err != nil {
			return nil, dontSplit, err
		}
	}

	if insertLoc > 0 {
		err = h.insertToIntlNoSplit(newNode, child, splitKey, splitNode)
	} else if insertLoc < 0 {
		err = h.insertToIntlNoSplit(node, child, splitKey, splitNode)
	}
	if err != nil {
		return nil, dontSplit, err
	}

	retKey, retNode := newSplitKey, newNode

	if node == rootPage {
		if err := h.splitRoot(p, np, newNode, newSplitKey); err != nil {
			return nil, dontSplit, err
		}
		retKey, retNode = nil, dontSplit
	}

	if err := h.fh.MarkDirty(node); err != nil {
		return nil, dontSplit, err
	}
	if err := h.fh.MarkDirty(newNode); err != nil {
		return nil, dontSplit, err
	}
	unpinned = true
	if err := h.fh.UnpinPage(node); err != nil {
		return nil, dontSplit, err
	}
	if err := h.fh.UnpinPage(newNode); err != nil {
		return nil, dontSplit, err
	}
	return retKey, retNode, nil
}

// splitRoot runs the fixed-root dance after page 0 itself split: the
// left half moves to a fresh page, page 0 becomes a one-key internal
// root over both halves, and the metadata overload is re-established.
// p and np must be the still-pinned page 0 and right-sibling buffers.
func (h *IndexHandle) splitRoot(p, np []byte, newNode pf.PageNum, separator []byte) error {
	leftPh, err := h.fh.AllocatePage()
	if err != nil {
		return err
	}
	lp := leftPh.Data()
	leftNode := leftPh.PageNum()

	copy(lp, p)

	for i := range p {
		p[i] = 0
	}
	writeNodeHdr(p, nodeHdr{
		flags:    flagInternal,
		numKeys:  1,
		prevNode: pf.PageNum(h.attrType),
		nextNode: pf.PageNum(h.attrLength),
	})
	h.layout.setInternalPtr(p, 0, leftNode)
	h.layout.setInternalKey(p, 0, separator)
	h.layout.setInternalPtr(p, 1, newNode)

	// The copied header carried page 0's metadata overload in its
	// sibling slots; both new endpoints must read noMoreNode.
	setHdrPrev(lp, noMoreNode)
	setHdrNext(np, noMoreNode)
	setHdrPrev(np, leftNode)

	if err := h.fh.MarkDirty(leftNode); err != nil {
		return err
	}
	return h.fh.UnpinPage(leftNode)
}

// setPrevOf updates the back pointer of a sibling node.
func (h *IndexHandle) setPrevOf(node, prev pf.PageNum) error {
	ph, err := h.fh.GetThisPage(node)
	if err != nil {
		return err
	}
	setHdrPrev(ph.Data(), prev)
	if err := h.fh.MarkDirty(node); err != nil {
		return err
	}
	return h.fh.UnpinPage(node)
}

// setNextOf updates the forward pointer of a sibling node.
func (h *IndexHandle) setNextOf(node, next pf.PageNum) error {
	ph, err := h.fh.GetThisPage(node)
	if err != nil {
		return err
	}
	setHdrNext(ph.Data(), next)
	if err := h.fh.MarkDirty(node); err != nil {
		return err
	}
	return h.fh.UnpinPage(node)
}

// linkSiblings splices a disposed node out of its level's chain.
func (h *IndexHandle) linkSiblings(prev, next pf.PageNum) error {
	if prev != noMoreNode {
		if err := h.setNextOf(prev, next); err != nil {
			return err
		}
	}
	if next != noMoreNode {
		if err := h.setPrevOf(next, prev); err != nil {
			return err
		}
	}
	return nil
}

// deleteFromNode removes (key, rid) from the subtree rooted at node.
// It reports upward the subtree's new smallest key when the leftmost
// entry changed, and the page number of the child it disposed, if
// any.
func (h *IndexHandle) deleteFromNode(node pf.PageNum, key []byte, rid rm.RID) ([]byte, pf.PageNum, error) {
	ph, err := h.fh.GetThisPage(node)
	if err != nil {
		return nil, notDeleted, err
	}
	p := ph.Data()
	hdr := readNodeHdr(p)

	if hdr.isLeaf() {
		if err := h.fh.UnpinPage(node); err != nil {
			return nil, notDeleted, err
		}
		return h.deleteFromLeaf(node, key, rid)
	}

	numKeys := int(hdr.numKeys)
	j := 0
	for ; j < numKeys; j++ {
		if compareKeys(h.attrType, key, h.layout.internalKey(p, j)) < 0 {
			break
		}
	}
	child := h.layout.internalPtr(p, j)
	if err := h.fh.UnpinPage(node); err != nil {
		return nil, notDeleted, err
	}

	smallestKey, deletedNode, err := h.deleteFromNode(child, key, rid)
	if err != nil {
		return nil, notDeleted, err
	}

	// The deleted entry was the leftmost of child's subtree: its
	// separator lives in this node unless child is our leftmost,
	// in which case the new smallest keeps bubbling up.
	if smallestKey != nil && j > 0 {
		ph, err := h.fh.GetThisPage(node)
		if err != nil {
			return nil, notDeleted, err
		}
		h.layout.setInternalKey(ph.Data(), j-1, smallestKey)
		if err := h.fh.MarkDirty(node); err != nil {
			return nil, notDeleted, err
		}
		if err := h.fh.UnpinPage(node); err != nil {
			return nil, notDeleted, err
		}
		smallestKey = nil
	}

	if deletedNode != notDeleted {
		return h.deleteFromInternal(node, deletedNode)
	}
	return smallestKey, notDeleted, nil
}

// deleteFromLeaf locates the exact (key, rid) pair, walking the
// sibling chain leftward when duplicates of key spill into earlier
// leaves, and removes it. A leaf holding its last entry is disposed
// and spliced out of the chain.
func (h *IndexHandle) deleteFromLeaf(node pf.PageNum, key []byte, rid rm.RID) ([]byte, pf.PageNum, error) {
	ph, err := h.fh.GetThisPage(node)
	if err != nil {
		return nil, notDeleted, err
	}
	p := ph.Data()
	hdr := readNodeHdr(p)
	numKeys := int(hdr.numKeys)

	j := numKeys - 1
	for ; j >= 0; j-- {
		if compareKeys(h.attrType, key, h.layout.leafKey(p, j)) == 0 {
			break
		}
	}
	if j < 0 {
		if err := h.fh.UnpinPage(node); err != nil {
			return nil, notDeleted, err
		}
		return nil, notDeleted, ErrEntryNotFound
	}

	for ; j >= 0; j-- {
		if compareKeys(h.attrType, key, h.layout.leafKey(p, j)) > 0 {
			if err := h.fh.UnpinPage(node); err != nil {
				return nil, notDeleted, err
			}
			return nil, notDeleted, ErrEntryNotFound
		}
		if rid == h.layout.leafRID(p, j) {
			break
		}
	}

	if j < 0 {
		// Every equal key here has a different rid; duplicates
		// may continue in the previous leaf.
		prev := hdr.prevNode
		if err := h.fh.UnpinPage(node); err != nil {
			return nil, notDeleted, err
		}
		if node == rootPage || prev == noMoreNode {
			return nil, notDeleted, ErrEntryNotFound
		}
		return h.deleteFromLeaf(prev, key, rid)
	}

	if numKeys == 1 && node != rootPage {
		if err := h.linkSiblings(hdr.prevNode, hdr.nextNode); err != nil {
			return nil, notDeleted, err
		}
		if err := h.fh.UnpinPage(node); err != nil {
			return nil, notDeleted, err
		}
		if err := h.fh.DisposePage(node); err != nil {
			return nil, notDeleted, err
		}
		return nil, node, nil
	}

	var smallestKey []byte
	if j == 0 && node != rootPage && hdr.prevNode != noMoreNode &&
		compareKeys(h.attrType, h.layout.leafKey(p, 0), h.layout.leafKey(p, 1)) < 0 {
		smallestKey = make([]byte, h.attrLength)
		copy(smallestKey, h.layout.leafKey(p, 1))
	}

	h.layout.shiftLeafLeft(p, j, numKeys)
	setHdrNumKeys(p, numKeys-1)

	if err := h.fh.MarkDirty(node); err != nil {
		return nil, notDeleted, err
	}
	if err := h.fh.UnpinPage(node); err != nil {
		return nil, notDeleted, err
	}
	return smallestKey, notDeleted, nil
}

// deleteFromInternal erases the (separator, pointer) pair of a
// disposed child. The pair may live in a left-sibling internal node
// when duplicate keys steered the descent down a neighbor, so the
// search walks prevNode until the pointer is found.
func (h *IndexHandle) deleteFromInternal(node, deletedChild pf.PageNum) ([]byte, pf.PageNum, error) {
	ph, err := h.fh.GetThisPage(node)
	if err != nil {
		return nil, notDeleted, err
	}
	p := ph.Data()
	hdr := readNodeHdr(p)
	numKeys := int(hdr.numKeys)

	j := numKeys
	for ; j >= 0; j-- {
		if h.layout.internalPtr(p, j) == deletedChild {
			break
		}
	}

	if j < 0 {
		prev := hdr.prevNode
		if err := h.fh.UnpinPage(node); err != nil {
			return nil, notDeleted, err
		}
		if node == rootPage || prev == noMoreNode {
			return nil, notDeleted, fmt.Errorf("ix: no internal node references disposed child %d", deletedChild)
		}
		return h.deleteFromInternal(prev, deletedChild)
	}

	if numKeys == 0 {
		if node == rootPage {
			_ = h.fh.UnpinPage(node)
			return nil, notDeleted, fmt.Errorf("ix: root erase underflow")
		}
		// The disposed child was this node's only pointer;
		// dispose this node too and keep unwinding.
		if err := h.linkSiblings(hdr.prevNode, hdr.nextNode); err != nil {
			return nil, notDeleted, err
		}
		if err := h.fh.UnpinPage(node); err != nil {
			return nil, notDeleted, err
		}
		if err := h.fh.DisposePage(node); err != nil {
			return nil, notDeleted, err
		}
		return nil, node, nil
	}

	es := h.layout.internalEntrySize()
	var smallestKey []byte
	if j == 0 && node != rootPage && hdr.prevNode != noMoreNode {
		// Removing the leftmost pointer: its right neighbor's
		// separator becomes this subtree's smallest key.
		smallestKey = make([]byte, h.attrLength)
		copy(smallestKey, h.layout.internalKey(p, 0))

		src := h.layout.internalPtrOff(1)
		dst := h.layout.internalPtrOff(0)
		copy(p[dst:dst+numKeys*es], p[src:src+numKeys*es])
	} else {
		if j == 0 {
			// Leftmost pointer of the root (or of a chain
			// head): drop (ptr 0, key 0) without surfacing
			// a smallest key.
			src := h.layout.internalPtrOff(1)
			dst := h.layout.internalPtrOff(0)
			copy(p[dst:dst+numKeys*es], p[src:src+numKeys*es])
		} else {
			src := h.layout.internalKeyOff(j)
			dst := h.layout.internalKeyOff(j - 1)
			copy(p[dst:dst+(numKeys-j)*es], p[src:src+(numKeys-j)*es])
		}
	}
	numKeys--
	setHdrNumKeys(p, numKeys)

	if node == rootPage && numKeys == 0 {
		if err := h.contractRoot(p); err != nil {
			return nil, notDeleted, err
		}
	}

	if err := h.fh.MarkDirty(node); err != nil {
		return nil, notDeleted, err
	}
	if err := h.fh.UnpinPage(node); err != nil {
		return nil, notDeleted, err
	}
	return smallestKey, notDeleted, nil
}

// contractRoot collapses a root left with a single child pointer:
// follow single-pointer internal nodes downward, disposing each, then
// move the first leaf or non-trivial node found into page 0 and
// restore the metadata overload. p must be the still-pinned page 0
// buffer.
func (h *IndexHandle) contractRoot(p []byte) error {
	child := h.layout.internalPtr(p, 0)
	newRoot, rootData, err := h.findNewRoot(child)
	if err != nil {
		return err
	}

	copy(p, rootData)
	setHdrPrev(p, pf.PageNum(h.attrType))
	setHdrNext(p, pf.PageNum(h.attrLength))

	if err := h.fh.UnpinPage(newRoot); err != nil {
		return err
	}
	return h.fh.DisposePage(newRoot)
}

// findNewRoot descends the single-pointer chain from node, disposing
// every trivial internal page, and returns the first leaf or
// non-trivial internal node, pinned.
func (h *IndexHandle) findNewRoot(node pf.PageNum) (pf.PageNum, []byte, error) {
	ph, err := h.fh.GetThisPage(node)
	if err != nil {
		return 0, nil, err
	}
	p := ph.Data()
	hdr := readNodeHdr(p)

	if hdr.isLeaf() || hdr.numKeys > 0 {
		return node, p, nil
	}

	child := h.layout.internalPtr(p, 0)
	if err := h.fh.UnpinPage(node); err != nil {
		return 0, nil, err
	}
	if err := h.fh.DisposePage(node); err != nil {
		return 0, nil, err
	}
	return h.findNewRoot(child)
}

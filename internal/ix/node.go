package ix

import (
	"encoding/binary"

	"tinybase/internal/pf"
	"tinybase/internal/rm"
)

const (
	nodeHdrSize = 12

	flagInternal uint16 = 0x00
	flagLeaf     uint16 = 0x01
)

// nodeHdr is the fixed header at the start of every node page.
//
//	offset  size  field
//	0       2     flags (leaf bit)
//	2       2     numKeys
//	4       4     prevNode (page 0: attrType)
//	8       4     nextNode (page 0: attrLength)
//
// On page 0 the sibling fields store the file metadata instead; the
// root has no siblings, so the slots are free for that use. Every
// root transition must put the metadata back.
type nodeHdr struct {
	flags    uint16
	numKeys  uint16
	prevNode pf.PageNum
	nextNode pf.PageNum
}

func (h nodeHdr) isLeaf() bool { return h.flags&flagLeaf != 0 }

func readNodeHdr(p []byte) nodeHdr {
	return nodeHdr{
		flags:    binary.LittleEndian.Uint16(p[0:2]),
		numKeys:  binary.LittleEndian.Uint16(p[2:4]),
		prevNode: pf.PageNum(binary.LittleEndian.Uint32(p[4:8])),
		nextNode: pf.PageNum(binary.LittleEndian.Uint32(p[8:12])),
	}
}

func writeNodeHdr(p []byte, h nodeHdr) {
	binary.LittleEndian.PutUint16(p[0:2], h.flags)
	binary.LittleEndian.PutUint16(p[2:4], h.numKeys)
	binary.LittleEndian.PutUint32(p[4:8], uint32(h.prevNode))
	binary.LittleEndian.PutUint32(p[8:12], uint32(h.nextNode))
}

func setHdrNumKeys(p []byte, n int) {
	binary.LittleEndian.PutUint16(p[2:4], uint16(n))
}

func setHdrPrev(p []byte, n pf.PageNum) {
	binary.LittleEndian.PutUint32(p[4:8], uint32(n))
}

func setHdrNext(p []byte, n pf.PageNum) {
	binary.LittleEndian.PutUint32(p[8:12], uint32(n))
}

// nodeLayout computes entry offsets for a given attribute length.
// Internal nodes store [child i32 | key] units with one trailing
// child pointer; leaves store [key | rid] units.
type nodeLayout struct {
	attrLength int
}

func (l nodeLayout) internalEntrySize() int { return 4 + l.attrLength }
func (l nodeLayout) leafEntrySize() int     { return l.attrLength + rm.RIDSize }

// internalHasRoom reports whether one more key/pointer pair fits.
// The +2 accounts for the new unit plus the unit holding the final
// trailing pointer.
func (l nodeLayout) internalHasRoom(numKeys int) bool {
	return nodeHdrSize+(numKeys+2)*l.internalEntrySize() <= pf.PageSize
}

// leafHasRoom reports whether one more entry fits.
func (l nodeLayout) leafHasRoom(numKeys int) bool {
	return nodeHdrSize+(numKeys+1)*l.leafEntrySize() <= pf.PageSize
}

func (l nodeLayout) internalPtrOff(i int) int {
	return nodeHdrSize + i*l.internalEntrySize()
}

func (l nodeLayout) internalKeyOff(i int) int {
	return l.internalPtrOff(i) + 4
}

func (l nodeLayout) internalPtr(p []byte, i int) pf.PageNum {
	off := l.internalPtrOff(i)
	return pf.PageNum(binary.LittleEndian.Uint32(p[off : off+4]))
}

func (l nodeLayout) setInternalPtr(p []byte, i int, n pf.PageNum) {
	off := l.internalPtrOff(i)
	binary.LittleEndian.PutUint32(p[off:off+4], uint32(n))
}

func (l nodeLayout) internalKey(p []byte, i int) []byte {
	off := l.internalKeyOff(i)
	return p[off : off+l.attrLength]
}

func (l nodeLayout) setInternalKey(p []byte, i int, key []byte) {
	copy(l.internalKey(p, i), key)
}

func (l nodeLayout) leafKeyOff(i int) int {
	return nodeHdrSize + i*l.leafEntrySize()
}

func (l nodeLayout) leafKey(p []byte, i int) []byte {
	off := l.leafKeyOff(i)
	return p[off : off+l.attrLength]
}

func (l nodeLayout) leafRID(p []byte, i int) rm.RID {
	off := l.leafKeyOff(i) + l.attrLength
	return rm.UnmarshalRID(p[off : off+rm.RIDSize])
}

func (l nodeLayout) setLeafEntry(p []byte, i int, key []byte, rid rm.RID) {
	off := l.leafKeyOff(i)
	copy(p[off:off+l.attrLength], key)
	rid.Marshal(p[off+l.attrLength : off+l.attrLength+rm.RIDSize])
}

// shiftLeafRight opens a one-entry hole at position i by moving
// entries [i, numKeys) up.
func (l nodeLayout) shiftLeafRight(p []byte, i, numKeys int) {
	es := l.leafEntrySize()
	src := l.leafKeyOff(i)
	copy(p[src+es:src+es+(numKeys-i)*es], p[src:src+(numKeys-i)*es])
}

// shiftLeafLeft closes the hole at position i by moving entries
// [i+1, numKeys) down.
func (l nodeLayout) shiftLeafLeft(p []byte, i, numKeys int) {
	es := l.leafEntrySize()
	dst := l.leafKeyOff(i)
	copy(p[dst:dst+(numKeys-i-1)*es], p[dst+es:dst+es+(numKeys-i-1)*es])
}

// moveLeafEntries copies entries [from, from+n) of src into dst
// starting at entry position 0.
func (l nodeLayout) moveLeafEntries(dst, src []byte, from, n int) {
	es := l.leafEntrySize()
	off := l.leafKeyOff(from)
	copy(dst[nodeHdrSize:nodeHdrSize+n*es], src[off:off+n*es])
}

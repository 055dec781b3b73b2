// Package ix implements a disk-resident B+-tree secondary index
// mapping fixed-width typed keys to record identifiers. Duplicate
// keys are expected; each distinct (key, rid) pair is stored once.
//
// Every node occupies one page of the backing pf file. The root is
// always page 0; while page 0 exists its sibling-pointer header
// fields double as the file metadata (attribute type and length), so
// reopening an index needs nothing beyond page 0's header.
package ix

import (
	"bytes"
	"encoding/binary"
	"math"

	"tinybase/internal/pf"
)

// AttrType is the declared type of the indexed attribute. The values
// are part of the on-disk format (stored in page 0's header).
type AttrType int32

const (
	Int AttrType = iota
	Float
	String
)

func (t AttrType) String() string {
	switch t {
	case Int:
		return "INT"
	case Float:
		return "FLOAT"
	case String:
		return "STRING"
	}
	return "UNKNOWN"
}

// CompOp selects the predicate of an index scan.
type CompOp int

const (
	NoOp CompOp = iota // every entry matches
	EQ
	LT
	GT
	LE
	GE
	NE
)

const (
	// MaxStringLen bounds the length of a STRING attribute.
	MaxStringLen = 255

	// numericAttrLen is the mandatory length of INT and FLOAT keys.
	numericAttrLen = 4

	// noMoreNode terminates a sibling chain.
	noMoreNode pf.PageNum = -1
	// dontSplit means the child did not split during insertion.
	dontSplit pf.PageNum = -1
	// notDeleted means the child was not disposed during deletion.
	notDeleted pf.PageNum = -1

	// rootPage is the fixed page number of the root node.
	rootPage pf.PageNum = 0
)

// validAttr reports whether the (type, length) pair is acceptable at
// index creation time.
func validAttr(attrType AttrType, attrLength int) bool {
	switch attrType {
	case Int, Float:
		return attrLength == numericAttrLen
	case String:
		return attrLength >= 1 && attrLength <= MaxStringLen
	}
	return false
}

// compareKeys orders two raw keys of the given type. Both slices must
// hold at least attrLength bytes.
func compareKeys(attrType AttrType, a, b []byte) int {
	switch attrType {
	case Int:
		av := int32(binary.LittleEndian.Uint32(a))
		bv := int32(binary.LittleEndian.Uint32(b))
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case Float:
		av := math.Float32frombits(binary.LittleEndian.Uint32(a))
		bv := math.Float32frombits(binary.LittleEndian.Uint32(b))
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	default:
		return bytes.Compare(a, b)
	}
}

// IntKey encodes an INT attribute value as a raw key.
func IntKey(v int32) []byte {
	buf := make([]byte, numericAttrLen)
	binary.LittleEndian.PutUint32(buf, uint32(v))
	return buf
}

// FloatKey encodes a FLOAT attribute value as a raw key.
func FloatKey(v float32) []byte {
	buf := make([]byte, numericAttrLen)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
	return buf
}

// StringKey encodes a STRING attribute value as a raw key of the
// given length, padding with zero bytes and truncating as needed.
func StringKey(s string, attrLength int) []byte {
	buf := make([]byte, attrLength)
	copy(buf, s)
	return buf
}

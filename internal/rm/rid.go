// Package rm holds the record-level types shared across the storage
// stack. The index engine consumes only the record identifier.
package rm

import (
	"encoding/binary"
	"errors"

	"tinybase/internal/pf"
)

// ErrInviableRID reports a record identifier that cannot refer to a
// stored record.
var ErrInviableRID = errors.New("rm: inviable rid")

const (
	// NullPage and NullSlot mark an unset RID component.
	NullPage pf.PageNum = -1
	NullSlot pf.SlotNum = -1

	// RIDSize is the fixed on-disk size of a RID.
	RIDSize = 8
)

// RID identifies a record: the heap page it lives on and its slot
// within that page. Page 0 of a record file holds file metadata, so a
// viable RID always has Page > 0.
type RID struct {
	Page pf.PageNum
	Slot pf.SlotNum
}

// NullRID is the unset record identifier.
var NullRID = RID{Page: NullPage, Slot: NullSlot}

// NewRID builds a RID from its components.
func NewRID(page pf.PageNum, slot pf.SlotNum) RID {
	return RID{Page: page, Slot: slot}
}

// Viable reports whether the RID can refer to a stored record.
func (r RID) Viable() bool {
	return r.Page > 0
}

// PageNum returns the page component, or ErrInviableRID when the RID
// is not viable.
func (r RID) PageNum() (pf.PageNum, error) {
	if !r.Viable() {
		return 0, ErrInviableRID
	}
	return r.Page, nil
}

// SlotNum returns the slot component, or ErrInviableRID when the RID
// is not viable.
func (r RID) SlotNum() (pf.SlotNum, error) {
	if !r.Viable() {
		return 0, ErrInviableRID
	}
	return r.Slot, nil
}

// Marshal writes the RID into buf, which must be at least RIDSize
// bytes.
func (r RID) Marshal(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Page))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(r.Slot))
}

// UnmarshalRID reads a RID from buf, which must be at least RIDSize
// bytes.
func UnmarshalRID(buf []byte) RID {
	return RID{
		Page: pf.PageNum(binary.LittleEndian.Uint32(buf[0:4])),
		Slot: pf.SlotNum(binary.LittleEndian.Uint32(buf[4:8])),
	}
}

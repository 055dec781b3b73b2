package ix

import "errors"

var (
	// ErrNullPointer reports a nil key.
	ErrNullPointer = errors.New("ix: null key pointer")
	// ErrInviableRID reports a rid that cannot refer to a record.
	ErrInviableRID = errors.New("ix: inviable rid")
	// ErrEntryExists reports an insert of an already-present (key, rid) pair.
	ErrEntryExists = errors.New("ix: entry already exists")
	// ErrEntryNotFound reports a delete of an absent (key, rid) pair.
	ErrEntryNotFound = errors.New("ix: entry not found")
	// ErrInvalidAttr reports a bad attribute type or length at create time.
	ErrInvalidAttr = errors.New("ix: invalid attribute parameters")
	// ErrInvalidCompOp reports an unknown comparison operator.
	ErrInvalidCompOp = errors.New("ix: invalid comparison operator")
	// ErrScanOpen reports OpenScan on an already-open scan.
	ErrScanOpen = errors.New("ix: scan is already open")
	// ErrScanClosed reports use of a scan that is not open.
	ErrScanClosed = errors.New("ix: scan is not open")
	// ErrFileOpen reports opening or destroying an index that is
	// already open.
	ErrFileOpen = errors.New("ix: index is already open")
	// ErrFileClosed reports use of a handle that is not open.
	ErrFileClosed = errors.New("ix: index is not open")
	// ErrEOF reports an exhausted scan.
	ErrEOF = errors.New("ix: end of scan")
)

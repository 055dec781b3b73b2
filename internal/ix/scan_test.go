package ix

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"tinybase/internal/pf"
	"tinybase/internal/rm"
)

func TestScanOperatorCounts(t *testing.T) {
	m := newTestManager()
	h := openIntIndex(t, m)

	rng := rand.New(rand.NewSource(5))
	const n = 2000
	keys := make([]int32, n)
	for i := range keys {
		keys[i] = rng.Int31n(2000) + 1
		rid := rm.NewRID(pf.PageNum(i+1), pf.SlotNum(i))
		require.NoError(t, h.InsertEntry(IntKey(keys[i]), rid))
	}

	const v = int32(1000)
	var lt, eq, gt int
	for _, k := range keys {
		switch {
		case k < v:
			lt++
		case k == v:
			eq++
		default:
			gt++
		}
	}

	require.Len(t, collectScan(t, h, LT, IntKey(v)), lt)
	require.Len(t, collectScan(t, h, LE, IntKey(v)), lt+eq)
	require.Len(t, collectScan(t, h, EQ, IntKey(v)), eq)
	require.Len(t, collectScan(t, h, GT, IntKey(v)), gt)
	require.Len(t, collectScan(t, h, GE, IntKey(v)), gt+eq)
	require.Len(t, collectScan(t, h, NE, IntKey(v)), n-eq)
	require.Len(t, collectScan(t, h, NoOp, nil), n)
}

func TestScanEmptyIndex(t *testing.T) {
	m := newTestManager()
	h := openIntIndex(t, m)

	require.Empty(t, collectScan(t, h, NoOp, nil))
	require.Empty(t, collectScan(t, h, EQ, IntKey(5)))
	require.Empty(t, collectScan(t, h, GE, IntKey(5)))
}

func TestScanEOFIsSticky(t *testing.T) {
	m := newTestManager()
	h := openIntIndex(t, m)
	require.NoError(t, h.InsertEntry(IntKey(1), rm.NewRID(1, 1)))

	var scan IndexScan
	require.NoError(t, scan.OpenScan(h, EQ, IntKey(1)))
	_, err := scan.GetNextEntry()
	require.NoError(t, err)
	_, err = scan.GetNextEntry()
	require.ErrorIs(t, err, ErrEOF)
	_, err = scan.GetNextEntry()
	require.ErrorIs(t, err, ErrEOF)
	require.NoError(t, scan.CloseScan())
}

func TestScanLifecycleErrors(t *testing.T) {
	m := newTestManager()
	h := openIntIndex(t, m)

	var scan IndexScan
	_, err := scan.GetNextEntry()
	require.ErrorIs(t, err, ErrScanClosed)
	require.ErrorIs(t, scan.CloseScan(), ErrScanClosed)

	require.ErrorIs(t, scan.OpenScan(h, EQ, nil), ErrNullPointer)
	require.ErrorIs(t, scan.OpenScan(h, CompOp(99), IntKey(1)), ErrInvalidCompOp)
	require.ErrorIs(t, scan.OpenScan(h, EQ, IntKey(1)[:2]), ErrInvalidAttr)

	require.NoError(t, scan.OpenScan(h, NoOp, nil))
	require.ErrorIs(t, scan.OpenScan(h, NoOp, nil), ErrScanOpen)
	require.NoError(t, scan.CloseScan())

	// a closed scan can be reopened
	require.NoError(t, scan.OpenScan(h, NoOp, nil))
	require.NoError(t, scan.CloseScan())
}

// Deleting each entry as the scan returns it must not derail the
// cursor: the scan still yields exactly the entries that matched at
// open time.
func TestScanUnderDelete(t *testing.T) {
	ops := []CompOp{NoOp, EQ, LT, GT, LE, GE, NE}
	rng := rand.New(rand.NewSource(9))

	for _, op := range ops {
		m := newTestManager()
		h := openIntIndex(t, m)

		const n = 100
		keyOf := make(map[rm.RID]int32, n)
		for i := 0; i < n; i++ {
			k := rng.Int31n(40) + 1
			rid := rm.NewRID(pf.PageNum(i+1), pf.SlotNum(rng.Int31n(1000)))
			require.NoError(t, h.InsertEntry(IntKey(k), rid))
			keyOf[rid] = k
		}

		v := rng.Int31n(40) + 1
		expected := 0
		for _, k := range keyOf {
			switch op {
			case NoOp:
				expected++
			case EQ:
				if k == v {
					expected++
				}
			case LT:
				if k < v {
					expected++
				}
			case GT:
				if k > v {
					expected++
				}
			case LE:
				if k <= v {
					expected++
				}
			case GE:
				if k >= v {
					expected++
				}
			case NE:
				if k != v {
					expected++
				}
			}
		}

		var key []byte
		if op != NoOp {
			key = IntKey(v)
		}
		var scan IndexScan
		require.NoError(t, scan.OpenScan(h, op, key))

		deleted := 0
		for {
			rid, err := scan.GetNextEntry()
			if errors.Is(err, ErrEOF) {
				break
			}
			require.NoError(t, err)
			k, ok := keyOf[rid]
			require.True(t, ok, "scan yielded unknown or repeated rid %+v", rid)
			delete(keyOf, rid)
			require.NoError(t, h.DeleteEntry(IntKey(k), rid))
			deleted++
		}
		require.NoError(t, scan.CloseScan())
		require.Equal(t, expected, deleted, "op %v threshold %d", op, v)
	}
}

// The duplicate-heavy variant: every entry shares one key, so the
// scan crosses page boundaries inside a single duplicate run while
// the leaves behind it empty out and get disposed.
func TestScanUnderDeleteDuplicateRun(t *testing.T) {
	m := newTestManager()
	h := openIntIndex(t, m)

	const n = 1500 // several leaves worth of one key
	for i := 0; i < n; i++ {
		require.NoError(t, h.InsertEntry(IntKey(7), rm.NewRID(pf.PageNum(i+1), 0)))
	}

	var scan IndexScan
	require.NoError(t, scan.OpenScan(h, EQ, IntKey(7)))
	deleted := 0
	for {
		rid, err := scan.GetNextEntry()
		if errors.Is(err, ErrEOF) {
			break
		}
		require.NoError(t, err)
		require.NoError(t, h.DeleteEntry(IntKey(7), rid))
		deleted++
	}
	require.NoError(t, scan.CloseScan())
	require.Equal(t, n, deleted)
	require.Empty(t, eqScan(t, h, 7))
}

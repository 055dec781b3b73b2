package ix

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"tinybase/internal/pf"
	"tinybase/internal/rm"
)

func TestCreateValidation(t *testing.T) {
	m := newTestManager()

	require.ErrorIs(t, m.CreateIndex("rel", -1, Int, 4), ErrInvalidAttr)
	require.ErrorIs(t, m.CreateIndex("rel", 0, Int, 8), ErrInvalidAttr)
	require.ErrorIs(t, m.CreateIndex("rel", 0, Float, 2), ErrInvalidAttr)
	require.ErrorIs(t, m.CreateIndex("rel", 0, String, 0), ErrInvalidAttr)
	require.ErrorIs(t, m.CreateIndex("rel", 0, String, MaxStringLen+1), ErrInvalidAttr)
	require.ErrorIs(t, m.CreateIndex("rel", 0, AttrType(42), 4), ErrInvalidAttr)

	require.NoError(t, m.CreateIndex("rel", 0, String, MaxStringLen))
	require.ErrorIs(t, m.CreateIndex("rel", 0, Int, 4), pf.ErrFileExists)
}

func TestCreateInitializesEmptyLeafRoot(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.CreateIndex("rel", 7, Float, 4))

	h, err := m.OpenIndex("rel", 7)
	require.NoError(t, err)
	require.Equal(t, Float, h.AttrType())
	require.Equal(t, 4, h.AttrLength())

	hdr, _ := readNodeCopy(t, h, rootPage)
	require.True(t, hdr.isLeaf())
	require.Zero(t, hdr.numKeys)
	require.EqualValues(t, Float, hdr.prevNode)
	require.EqualValues(t, 4, hdr.nextNode)

	require.NoError(t, m.CloseIndex(h))
}

func TestDoubleOpenRejected(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.CreateIndex("rel", 0, Int, 4))

	h, err := m.OpenIndex("rel", 0)
	require.NoError(t, err)
	_, err = m.OpenIndex("rel", 0)
	require.ErrorIs(t, err, ErrFileOpen)
	require.ErrorIs(t, m.DestroyIndex("rel", 0), ErrFileOpen)

	require.NoError(t, m.CloseIndex(h))
	h, err = m.OpenIndex("rel", 0)
	require.NoError(t, err)
	require.NoError(t, m.CloseIndex(h))
	require.NoError(t, m.DestroyIndex("rel", 0))
}

func TestDestroyIndex(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.CreateIndex("rel", 0, Int, 4))
	require.NoError(t, m.DestroyIndex("rel", 0))
	require.ErrorIs(t, m.DestroyIndex("rel", 0), pf.ErrFileNotFound)

	_, err := m.OpenIndex("rel", 0)
	require.ErrorIs(t, err, pf.ErrFileNotFound)
}

func TestMultipleIndexesPerRelation(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.CreateIndex("rel", 0, Int, 4))
	require.NoError(t, m.CreateIndex("rel", 1, String, 16))

	h0, err := m.OpenIndex("rel", 0)
	require.NoError(t, err)
	h1, err := m.OpenIndex("rel", 1)
	require.NoError(t, err)

	require.NoError(t, h0.InsertEntry(IntKey(1), rm.NewRID(1, 1)))
	require.NoError(t, h1.InsertEntry(StringKey("a", 16), rm.NewRID(1, 1)))

	require.Len(t, eqScan(t, h0, 1), 1)
	require.Len(t, collectScan(t, h1, EQ, StringKey("a", 16)), 1)

	require.NoError(t, m.CloseIndex(h0))
	require.NoError(t, m.CloseIndex(h1))
}

func TestResolveIndexFileAcceptsLegacyNames(t *testing.T) {
	fs := afero.NewMemMapFs()
	pfm := pf.NewManager(fs, zerolog.Nop())
	m := NewManager(pfm, zerolog.Nop())

	require.NoError(t, m.CreateIndex("rel", 4, Int, 4))
	name, err := m.ResolveIndexFile("rel", 4)
	require.NoError(t, err)
	require.Equal(t, "rel.4", name)

	// legacy layouts left behind by older tooling
	require.NoError(t, afero.WriteFile(fs, "old.007", nil, 0o644))
	require.NoError(t, afero.WriteFile(fs, "old.ix8", nil, 0o644))
	require.NoError(t, afero.WriteFile(fs, "old.index9", nil, 0o644))

	name, err = m.ResolveIndexFile("old", 7)
	require.NoError(t, err)
	require.Equal(t, "old.007", name)
	name, err = m.ResolveIndexFile("old", 8)
	require.NoError(t, err)
	require.Equal(t, "old.ix8", name)
	name, err = m.ResolveIndexFile("old", 9)
	require.NoError(t, err)
	require.Equal(t, "old.index9", name)

	_, err = m.ResolveIndexFile("old", 10)
	require.ErrorIs(t, err, pf.ErrFileNotFound)
}

func TestOpenRejectsCorruptMetadata(t *testing.T) {
	fs := afero.NewMemMapFs()
	pfm := pf.NewManager(fs, zerolog.Nop())
	m := NewManager(pfm, zerolog.Nop())

	require.NoError(t, m.CreateIndex("rel", 0, Int, 4))

	// clobber page 0's metadata overload
	fh, err := pfm.OpenFile("rel.0")
	require.NoError(t, err)
	ph, err := fh.GetThisPage(0)
	require.NoError(t, err)
	setHdrNext(ph.Data(), 77) // attrLength 77 is invalid for INT
	require.NoError(t, fh.MarkDirty(0))
	require.NoError(t, fh.UnpinPage(0))
	require.NoError(t, pfm.CloseFile(fh))

	_, err = m.OpenIndex("rel", 0)
	require.ErrorIs(t, err, ErrInvalidAttr)
}

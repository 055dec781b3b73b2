package pf

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(afero.NewMemMapFs(), zerolog.Nop())
}

func TestCreateOpenClose(t *testing.T) {
	m := newTestManager()

	require.NoError(t, m.CreateFile("a.pf"))
	require.ErrorIs(t, m.CreateFile("a.pf"), ErrFileExists)

	fh, err := m.OpenFile("a.pf")
	require.NoError(t, err)
	require.Equal(t, PageNum(0), fh.NumPages())
	require.NoError(t, m.CloseFile(fh))

	_, err = m.OpenFile("missing.pf")
	require.ErrorIs(t, err, ErrFileNotFound)

	require.NoError(t, m.DestroyFile("a.pf"))
	require.ErrorIs(t, m.DestroyFile("a.pf"), ErrFileNotFound)
}

func TestAllocateAndPersist(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.CreateFile("a.pf"))

	fh, err := m.OpenFile("a.pf")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ph, err := fh.AllocatePage()
		require.NoError(t, err)
		require.Equal(t, PageNum(i), ph.PageNum())
		ph.Data()[0] = byte(i + 1)
		require.NoError(t, fh.MarkDirty(ph.PageNum()))
		require.NoError(t, fh.UnpinPage(ph.PageNum()))
	}
	require.NoError(t, m.CloseFile(fh))

	fh, err = m.OpenFile("a.pf")
	require.NoError(t, err)
	require.Equal(t, PageNum(3), fh.NumPages())
	for i := 0; i < 3; i++ {
		ph, err := fh.GetThisPage(PageNum(i))
		require.NoError(t, err)
		require.Equal(t, byte(i+1), ph.Data()[0])
		require.NoError(t, fh.UnpinPage(ph.PageNum()))
	}
	require.NoError(t, m.CloseFile(fh))
}

func TestDisposeAndReuse(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.CreateFile("a.pf"))
	fh, err := m.OpenFile("a.pf")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ph, err := fh.AllocatePage()
		require.NoError(t, err)
		require.NoError(t, fh.UnpinPage(ph.PageNum()))
	}
	require.NoError(t, fh.DisposePage(1))

	_, err = fh.GetThisPage(1)
	require.ErrorIs(t, err, ErrPageFree)

	// the free list hands page 1 back before the file grows
	ph, err := fh.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, PageNum(1), ph.PageNum())
	for _, b := range ph.Data()[:16] {
		require.Zero(t, b)
	}
	require.NoError(t, fh.UnpinPage(1))

	ph, err = fh.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, PageNum(3), ph.PageNum())
	require.NoError(t, fh.UnpinPage(3))

	require.NoError(t, m.CloseFile(fh))
}

func TestPinDiscipline(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.CreateFile("a.pf"))
	fh, err := m.OpenFile("a.pf")
	require.NoError(t, err)

	ph, err := fh.AllocatePage()
	require.NoError(t, err)
	n := ph.PageNum()

	// disposing a page someone else still has pinned must fail
	_, err = fh.GetThisPage(n)
	require.NoError(t, err)
	require.ErrorIs(t, fh.DisposePage(n), ErrPagePinned)
	require.NoError(t, fh.UnpinPage(n))
	require.NoError(t, fh.UnpinPage(n))
	require.ErrorIs(t, fh.UnpinPage(n), ErrPageUnpinned)
	require.ErrorIs(t, fh.MarkDirty(n), ErrPageUnpinned)

	// closing with a pinned page must fail
	_, err = fh.GetThisPage(n)
	require.NoError(t, err)
	require.ErrorIs(t, m.CloseFile(fh), ErrPagePinned)
	require.NoError(t, fh.UnpinPage(n))
	require.NoError(t, m.CloseFile(fh))

	_, err = fh.GetThisPage(n)
	require.ErrorIs(t, err, ErrFileClosed)
}

func TestInvalidPageNumbers(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.CreateFile("a.pf"))
	fh, err := m.OpenFile("a.pf")
	require.NoError(t, err)

	_, err = fh.GetThisPage(0)
	require.ErrorIs(t, err, ErrInvalidPage)
	_, err = fh.GetThisPage(-1)
	require.ErrorIs(t, err, ErrInvalidPage)
	require.ErrorIs(t, fh.DisposePage(7), ErrInvalidPage)

	require.NoError(t, m.CloseFile(fh))
}

func TestEvictionWritesBack(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.CreateFile("a.pf"))
	fh, err := m.OpenFile("a.pf")
	require.NoError(t, err)

	// dirty more pages than the pool holds, then read them all back
	n := BufferSize * 3
	for i := 0; i < n; i++ {
		ph, err := fh.AllocatePage()
		require.NoError(t, err)
		ph.Data()[5] = byte(i % 251)
		require.NoError(t, fh.MarkDirty(ph.PageNum()))
		require.NoError(t, fh.UnpinPage(ph.PageNum()))
	}
	for i := 0; i < n; i++ {
		ph, err := fh.GetThisPage(PageNum(i))
		require.NoError(t, err)
		require.Equal(t, byte(i%251), ph.Data()[5])
		require.NoError(t, fh.UnpinPage(PageNum(i)))
	}

	require.NoError(t, m.CloseFile(fh))
}

func TestForcePagesDurability(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.CreateFile("a.pf"))
	fh, err := m.OpenFile("a.pf")
	require.NoError(t, err)

	ph, err := fh.AllocatePage()
	require.NoError(t, err)
	copy(ph.Data(), []byte("durable"))
	require.NoError(t, fh.MarkDirty(ph.PageNum()))
	require.NoError(t, fh.UnpinPage(ph.PageNum()))
	require.NoError(t, fh.ForcePages())

	// a second handle on the same filesystem sees the forced state
	fh2, err := m.OpenFile("a.pf")
	require.NoError(t, err)
	ph2, err := fh2.GetThisPage(0)
	require.NoError(t, err)
	require.Equal(t, []byte("durable"), ph2.Data()[:7])
	require.NoError(t, fh2.UnpinPage(0))
	require.NoError(t, m.CloseFile(fh2))
	require.NoError(t, m.CloseFile(fh))
}

package ix

import (
	"fmt"

	"github.com/rs/zerolog"

	"tinybase/internal/pf"
)

// Manager creates, destroys, opens, and closes index files. One index
// file holds the B+ tree for a single attribute of a relation; the
// file name encodes the relation's file name and the index number.
type Manager struct {
	pfm  *pf.Manager
	log  zerolog.Logger
	open map[string]*IndexHandle // canonical file name -> open handle
}

// NewManager returns a Manager over the given paged-file manager.
func NewManager(pfm *pf.Manager, log zerolog.Logger) *Manager {
	return &Manager{
		pfm:  pfm,
		log:  log,
		open: make(map[string]*IndexHandle),
	}
}

// IndexFileName is the canonical name of the index file for
// (fileName, indexNo).
func IndexFileName(fileName string, indexNo int) string {
	return fmt.Sprintf("%s.%d", fileName, indexNo)
}

// legacyIndexFileNames lists the historical naming variants, newest
// convention first. Only diagnostic tooling reads these; everything
// the engine writes uses the canonical form.
func legacyIndexFileNames(fileName string, indexNo int) []string {
	return []string{
		fmt.Sprintf("%s.%03d", fileName, indexNo),
		fmt.Sprintf("%s.ix%d", fileName, indexNo),
		fmt.Sprintf("%s.index%d", fileName, indexNo),
	}
}

// ResolveIndexFile returns the name of an existing index file for
// (fileName, indexNo), accepting legacy naming variants. Used by
// diagnostic tooling; returns pf.ErrFileNotFound when no variant
// exists.
func (m *Manager) ResolveIndexFile(fileName string, indexNo int) (string, error) {
	canonical := IndexFileName(fileName, indexNo)
	candidates := append([]string{canonical}, legacyIndexFileNames(fileName, indexNo)...)
	for _, name := range candidates {
		ok, err := m.pfm.Exists(name)
		if err != nil {
			return "", err
		}
		if ok {
			return name, nil
		}
	}
	return "", pf.ErrFileNotFound
}

// CreateIndex creates a new, empty index file. Page 0 starts life as
// an empty leaf root whose sibling slots hold the file metadata.
func (m *Manager) CreateIndex(fileName string, indexNo int, attrType AttrType, attrLength int) error {
	if indexNo < 0 || !validAttr(attrType, attrLength) {
		return ErrInvalidAttr
	}

	name := IndexFileName(fileName, indexNo)
	if err := m.pfm.CreateFile(name); err != nil {
		return err
	}

	fh, err := m.pfm.OpenFile(name)
	if err != nil {
		return err
	}
	ph, err := fh.AllocatePage()
	if err != nil {
		_ = m.pfm.CloseFile(fh)
		return err
	}
	if ph.PageNum() != rootPage {
		_ = fh.UnpinPage(ph.PageNum())
		_ = m.pfm.CloseFile(fh)
		return fmt.Errorf("ix: fresh index file allocated page %d as root", ph.PageNum())
	}
	writeNodeHdr(ph.Data(), nodeHdr{
		flags:    flagLeaf,
		numKeys:  0,
		prevNode: pf.PageNum(attrType),
		nextNode: pf.PageNum(attrLength),
	})
	if err := fh.MarkDirty(rootPage); err != nil {
		return err
	}
	if err := fh.UnpinPage(rootPage); err != nil {
		return err
	}
	if err := m.pfm.CloseFile(fh); err != nil {
		return err
	}

	m.log.Info().Str("file", name).Stringer("attrType", attrType).
		Int("attrLength", attrLength).Msg("created index")
	return nil
}

// DestroyIndex removes the index's backing file. The index must not
// be open.
func (m *Manager) DestroyIndex(fileName string, indexNo int) error {
	name := IndexFileName(fileName, indexNo)
	if _, ok := m.open[name]; ok {
		return ErrFileOpen
	}
	if err := m.pfm.DestroyFile(name); err != nil {
		return err
	}
	m.log.Info().Str("file", name).Msg("destroyed index")
	return nil
}

// OpenIndex opens an index file and recovers the attribute metadata
// from page 0's header.
func (m *Manager) OpenIndex(fileName string, indexNo int) (*IndexHandle, error) {
	name := IndexFileName(fileName, indexNo)
	if _, ok := m.open[name]; ok {
		return nil, ErrFileOpen
	}
	fh, err := m.pfm.OpenFile(name)
	if err != nil {
		return nil, err
	}

	ph, err := fh.GetThisPage(rootPage)
	if err != nil {
		_ = m.pfm.CloseFile(fh)
		return nil, err
	}
	hdr := readNodeHdr(ph.Data())
	attrType := AttrType(hdr.prevNode)
	attrLength := int(hdr.nextNode)
	if err := fh.UnpinPage(rootPage); err != nil {
		_ = m.pfm.CloseFile(fh)
		return nil, err
	}

	if !validAttr(attrType, attrLength) {
		_ = m.pfm.CloseFile(fh)
		return nil, fmt.Errorf("ix: %s: corrupt metadata: %w", name, ErrInvalidAttr)
	}

	h := &IndexHandle{
		fh:         fh,
		name:       name,
		attrType:   attrType,
		attrLength: attrLength,
		layout:     nodeLayout{attrLength: attrLength},
		open:       true,
	}
	m.open[name] = h
	return h, nil
}

// CloseIndex forces all dirty pages and closes the index file. The
// handle becomes unusable.
func (m *Manager) CloseIndex(h *IndexHandle) error {
	if h == nil || !h.open {
		return ErrFileClosed
	}
	if err := m.pfm.CloseFile(h.fh); err != nil {
		return err
	}
	h.open = false
	delete(m.open, h.name)
	return nil
}

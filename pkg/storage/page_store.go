package storage

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dsnet/golib/memfile"
)

// pageMeta carries the heap bookkeeping that lives outside the 4096-byte
// payload. Index pages are self-describing and leave both fields zero.
type pageMeta struct {
	recordCount  int
	usedDataSize int
}

// PageStore is the backing store the buffer pool flushes to and reloads
// from. Pages live in an in-memory paged buffer addressed at
// pageID*PageSize; nothing ever reaches the filesystem, so contents last
// for the process lifetime only.
type PageStore struct {
	mu          sync.Mutex
	buf         *memfile.File
	meta        map[PageID]pageMeta
	totalReads  int64
	totalWrites int64
}

// NewPageStore creates an empty in-memory page store
func NewPageStore() *PageStore {
	return &PageStore{
		buf:  memfile.New(nil),
		meta: make(map[PageID]pageMeta),
	}
}

// WritePage stores the page payload and its heap metadata
func (s *PageStore) WritePage(page *Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset := int64(page.ID) * PageSize
	if _, err := s.buf.WriteAt(page.Data, offset); err != nil {
		return fmt.Errorf("failed to write page %d: %w", page.ID, err)
	}
	s.meta[page.ID] = pageMeta{
		recordCount:  page.RecordCount,
		usedDataSize: page.UsedDataSize,
	}
	s.totalWrites++
	return nil
}

// ReadPage loads a previously written page. The second return value is
// false when the page was never written; callers get a fresh page then.
func (s *PageStore) ReadPage(pageID PageID) (*Page, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meta[pageID]
	if !ok {
		return nil, false, nil
	}

	page := NewPage(pageID)
	offset := int64(pageID) * PageSize
	// A full read at the end of the buffer may come back with io.EOF.
	n, err := s.buf.ReadAt(page.Data, offset)
	if n < PageSize && err != nil && !errors.Is(err, io.EOF) {
		return nil, false, fmt.Errorf("failed to read page %d: %w", pageID, err)
	}
	if n < PageSize {
		return nil, false, fmt.Errorf("short read of page %d: %d bytes", pageID, n)
	}
	page.RecordCount = m.recordCount
	page.UsedDataSize = m.usedDataSize
	s.totalReads++
	return page, true, nil
}

// Contains reports whether the store holds a copy of the page
func (s *PageStore) Contains(pageID PageID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.meta[pageID]
	return ok
}

// Stats returns read/write counters
func (s *PageStore) Stats() (reads, writes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalReads, s.totalWrites
}

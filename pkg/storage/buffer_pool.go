package storage

import (
	"container/list"
	"errors"
	"sync"

	"github.com/syloe1/lightDb/pkg/logger"
	"github.com/syloe1/lightDb/pkg/metrics"
)

// DefaultPoolCapacity is the frame count used when no capacity is configured
const DefaultPoolCapacity = 32

// ErrAllFramesPinned is returned by Fetch when the pool is full and every
// resident frame is pinned. Callers must surface this; it indicates a
// missing Unpin somewhere above.
var ErrAllFramesPinned = errors.New("all frames pinned")

// frame is a resident page plus its pool-local bookkeeping. The dirty flag
// and pin count are tracked here as well as on the page itself.
type frame struct {
	page     *Page
	isDirty  bool
	pinCount int
	lruElem  *list.Element
}

// BufferPool mediates all page access under a capacity bound, evicting the
// least-recently-used unpinned frame when full. Every public method holds
// the pool mutex for its full duration; the page pointer returned by Fetch
// is only valid until the matching Unpin.
type BufferPool struct {
	mu        sync.Mutex
	maxFrames int
	frames    map[PageID]*frame
	lruList   *list.List // front = most recently used
	store     *PageStore
}

// NewBufferPool creates a pool bounded to maxFrames resident pages,
// backed by the given page store
func NewBufferPool(maxFrames int, store *PageStore) *BufferPool {
	if maxFrames <= 0 {
		maxFrames = DefaultPoolCapacity
	}
	return &BufferPool{
		maxFrames: maxFrames,
		frames:    make(map[PageID]*frame, maxFrames),
		lruList:   list.New(),
		store:     store,
	}
}

// Fetch returns the resident page for pageID, pinning it. A miss loads the
// page from the store (or creates a fresh one), evicting the LRU unpinned
// frame first when the pool is full. The caller must Unpin the page when
// done with it.
func (bp *BufferPool) Fetch(pageID PageID) (*Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if f, ok := bp.frames[pageID]; ok {
		bp.lruList.MoveToFront(f.lruElem)
		f.pinCount++
		f.page.Pin()
		metrics.Default.RecordFetchHit()
		logger.Debugf("fetch page %d from buffer, pin_count: %d", pageID, f.pinCount)
		return f.page, nil
	}

	metrics.Default.RecordFetchMiss()

	if len(bp.frames) >= bp.maxFrames {
		if err := bp.evict(); err != nil {
			return nil, err
		}
	}

	page, found, err := bp.store.ReadPage(pageID)
	if err != nil {
		return nil, err
	}
	if !found {
		page = NewPage(pageID)
	}
	page.Pin()

	f := &frame{
		page:     page,
		pinCount: 1,
		lruElem:  bp.lruList.PushFront(pageID),
	}
	bp.frames[pageID] = f
	logger.Debugf("load page %d into buffer", pageID)
	return page, nil
}

// Unpin releases one pin on the page and optionally marks it dirty. The
// page pointer obtained from Fetch must not be used afterwards. Unpinning
// a page that is not resident is a caller bug; it is logged and ignored.
func (bp *BufferPool) Unpin(pageID PageID, dirty bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	f, ok := bp.frames[pageID]
	if !ok {
		logger.Errorf("unpin: page %d not resident", pageID)
		return
	}
	if f.pinCount > 0 {
		f.pinCount--
	}
	f.page.Unpin()
	if dirty {
		f.isDirty = true
		f.page.MarkDirty()
	}
	logger.Debugf("unpin page %d, pin_count: %d", pageID, f.pinCount)
}

// Flush writes the page through to the store if it is dirty and clears the
// dirty flag. Flushing a clean page is a no-op; flushing a page that is
// not resident is logged and ignored.
func (bp *BufferPool) Flush(pageID PageID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.flushLocked(pageID)
}

func (bp *BufferPool) flushLocked(pageID PageID) {
	f, ok := bp.frames[pageID]
	if !ok {
		logger.Errorf("flush: page %d not resident", pageID)
		return
	}
	if !f.isDirty {
		logger.Debugf("page %d is clean, nothing to flush", pageID)
		return
	}
	if err := bp.store.WritePage(f.page); err != nil {
		logger.Errorf("flush: failed to write page %d: %v", pageID, err)
		return
	}
	f.isDirty = false
	f.page.IsDirty = false
	metrics.Default.RecordFlush()
	logger.Infof("flushed dirty page %d", pageID)
}

// FlushAll flushes every dirty resident page
func (bp *BufferPool) FlushAll() {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for pageID := range bp.frames {
		bp.flushLocked(pageID)
	}
}

// evict removes the least-recently-used unpinned frame, flushing it first
// if dirty. Must be called with bp.mu held.
func (bp *BufferPool) evict() error {
	for elem := bp.lruList.Back(); elem != nil; elem = elem.Prev() {
		pageID := elem.Value.(PageID)
		f := bp.frames[pageID]
		if f.pinCount > 0 {
			continue
		}
		if f.isDirty {
			bp.flushLocked(pageID)
		}
		bp.lruList.Remove(elem)
		delete(bp.frames, pageID)
		metrics.Default.RecordEviction()
		logger.Debugf("evicted page %d", pageID)
		return nil
	}
	logger.Errorf("eviction failed: all %d frames pinned", len(bp.frames))
	return ErrAllFramesPinned
}

// Resident reports whether the page currently occupies a frame
func (bp *BufferPool) Resident(pageID PageID) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	_, ok := bp.frames[pageID]
	return ok
}

// PinCount returns the pin count of a resident page, or -1 if absent
func (bp *BufferPool) PinCount(pageID PageID) int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if f, ok := bp.frames[pageID]; ok {
		return f.pinCount
	}
	return -1
}

// TotalPins returns the sum of pin counts across all resident frames
func (bp *BufferPool) TotalPins() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	total := 0
	for _, f := range bp.frames {
		total += f.pinCount
	}
	return total
}

// Size returns the number of resident frames
func (bp *BufferPool) Size() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.frames)
}

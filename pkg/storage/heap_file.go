package storage

import (
	"encoding/binary"

	"github.com/syloe1/lightDb/pkg/logger"
	"github.com/syloe1/lightDb/pkg/metrics"
)

// Record is an opaque byte payload plus the RID stamped on read and scan
type Record struct {
	Data []byte
	RID  RID
}

// HeapFile is an append-biased collection of variable-length records
// organized into pages. Records are packed head-to-tail from offset 0,
// each behind a RecordHeader; a record's slot id is its ordinal position
// within the page. Deletes are tombstones, space is never reclaimed.
type HeapFile struct {
	pool       *BufferPool
	nextPageID PageID
}

// NewHeapFile creates an empty heap file on top of the given pool
func NewHeapFile(pool *BufferPool) *HeapFile {
	return &HeapFile{pool: pool}
}

// Insert appends the record to the first page with room, allocating a new
// page when none fits. Returns InvalidRID when no page can hold it.
func (h *HeapFile) Insert(rec Record) RID {
	required := RecordHeaderSize + len(rec.Data)

	pageID := h.findFreePage(required)
	page, err := h.pool.Fetch(pageID)
	if err != nil {
		logger.Errorf("insert failed: %v", err)
		return InvalidRID
	}

	if page.FreeSpace() < required {
		logger.Errorf("page %d has no room for %d bytes", pageID, required)
		h.pool.Unpin(pageID, false)
		return InvalidRID
	}

	offset := PageSize - page.FreeSpace()
	writeRecordHeader(page.Data[offset:], false, int32(len(rec.Data)))
	copy(page.Data[offset+RecordHeaderSize:], rec.Data)

	page.RecordCount++
	page.UsedDataSize += len(rec.Data)

	rid := NewRID(pageID, int32(page.RecordCount-1))
	h.pool.Unpin(pageID, true)
	metrics.Default.RecordInsert()
	logger.Infof("inserted record at %s", rid)
	return rid
}

// Read returns the record at rid, or an empty record if the slot is out of
// range or tombstoned
func (h *HeapFile) Read(rid RID) Record {
	page, err := h.pool.Fetch(rid.PageID)
	if err != nil {
		logger.Errorf("read %s failed: %v", rid, err)
		return Record{}
	}
	defer h.pool.Unpin(rid.PageID, false)

	offset, deleted, size, ok := h.seekSlot(page, rid.Slot)
	if !ok {
		logger.Errorf("read: invalid slot_id %d on page %d", rid.Slot, rid.PageID)
		return Record{}
	}
	if deleted {
		return Record{}
	}

	data := make([]byte, size)
	copy(data, page.Data[offset+RecordHeaderSize:offset+RecordHeaderSize+int(size)])
	return Record{Data: data, RID: rid}
}

// Delete tombstones the record at rid. The record count is not decremented
// and the bytes stay in place.
func (h *HeapFile) Delete(rid RID) bool {
	page, err := h.pool.Fetch(rid.PageID)
	if err != nil {
		logger.Errorf("delete %s failed: %v", rid, err)
		return false
	}

	offset, _, size, ok := h.seekSlot(page, rid.Slot)
	if !ok {
		logger.Errorf("delete: invalid slot_id %d on page %d", rid.Slot, rid.PageID)
		h.pool.Unpin(rid.PageID, false)
		return false
	}

	writeRecordHeader(page.Data[offset:], true, size)
	h.pool.Unpin(rid.PageID, true)
	metrics.Default.RecordDelete()
	logger.Infof("deleted record at %s", rid)
	return true
}

// SeqScan walks every page in order and returns all live records, each
// stamped with its RID
func (h *HeapFile) SeqScan() []Record {
	var records []Record

	for pageID := PageID(0); pageID < h.nextPageID; pageID++ {
		page, err := h.pool.Fetch(pageID)
		if err != nil {
			logger.Errorf("seqscan: fetch page %d failed: %v", pageID, err)
			continue
		}

		offset := 0
		for i := 0; i < page.RecordCount; i++ {
			deleted, size := readRecordHeader(page.Data[offset:])
			if !deleted {
				data := make([]byte, size)
				copy(data, page.Data[offset+RecordHeaderSize:offset+RecordHeaderSize+int(size)])
				records = append(records, Record{Data: data, RID: NewRID(pageID, int32(i))})
			}
			offset += RecordHeaderSize + int(size)
		}

		h.pool.Unpin(pageID, false)
	}

	logger.Infof("seqscan completed, %d records", len(records))
	return records
}

// findFreePage returns the first existing page with room for required
// bytes, allocating a fresh page id when none fits. First-fit keeps the
// policy simple; it makes no attempt to minimize fragmentation.
func (h *HeapFile) findFreePage(required int) PageID {
	for pageID := PageID(0); pageID < h.nextPageID; pageID++ {
		page, err := h.pool.Fetch(pageID)
		if err != nil {
			continue
		}
		fits := page.FreeSpace() >= required
		h.pool.Unpin(pageID, false)
		if fits {
			return pageID
		}
	}

	pageID := h.nextPageID
	h.nextPageID++
	return pageID
}

// seekSlot walks the record run from offset 0 to the target slot. Returns
// the record's byte offset, its header fields, and whether the slot exists.
func (h *HeapFile) seekSlot(page *Page, slot int32) (offset int, deleted bool, size int32, ok bool) {
	if slot < 0 || int(slot) >= page.RecordCount {
		return 0, false, 0, false
	}
	for i := int32(0); ; i++ {
		deleted, size = readRecordHeader(page.Data[offset:])
		if i == slot {
			return offset, deleted, size, true
		}
		offset += RecordHeaderSize + int(size)
	}
}

func writeRecordHeader(b []byte, deleted bool, size int32) {
	if deleted {
		b[0] = 1
	} else {
		b[0] = 0
	}
	binary.LittleEndian.PutUint32(b[1:5], uint32(size))
}

func readRecordHeader(b []byte) (deleted bool, size int32) {
	deleted = b[0] == 1
	size = int32(binary.LittleEndian.Uint32(b[1:5]))
	return deleted, size
}

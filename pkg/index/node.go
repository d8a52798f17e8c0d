package index

import (
	"encoding/binary"

	"github.com/syloe1/lightDb/pkg/storage"
)

// Node page layout, little-endian, offsets within the 4096-byte payload:
//
//	common   [0]    is_leaf flag (1 byte)
//	         [1]    size (int32)
//	         [5]    parent page id (int32)
//	leaf     [9]    prev leaf page id (int32)
//	         [13]   next leaf page id (int32)
//	         [17]   size entries of (key int32, page_id int32, slot_id int32)
//	internal [9]    size+1 child page ids (int32 each)
//	         [9+4*(size+1)]  size keys (int32 each)
const (
	nodeHeaderSize = 9
	leafHeaderSize = 17
	leafEntrySize  = 12
)

// leafEntry is one (key, RID) pair in a leaf node
type leafEntry struct {
	key int32
	rid storage.RID
}

// node is the common surface of leaf and internal nodes. Nodes are
// in-memory images of a single page; every mutation must be saved back
// through the tree.
type node interface {
	id() storage.PageID
	setParent(storage.PageID)
	writeTo(data []byte)
}

// leafNode holds (key, RID) entries in strictly increasing key order.
// Leaves form a doubly linked list in key order.
type leafNode struct {
	pageID  storage.PageID
	parent  storage.PageID
	prev    storage.PageID
	next    storage.PageID
	entries []leafEntry
}

func newLeafNode(pageID storage.PageID) *leafNode {
	return &leafNode{
		pageID: pageID,
		parent: storage.InvalidPageID,
		prev:   storage.InvalidPageID,
		next:   storage.InvalidPageID,
	}
}

func (n *leafNode) id() storage.PageID         { return n.pageID }
func (n *leafNode) setParent(p storage.PageID) { n.parent = p }

func (n *leafNode) writeTo(data []byte) {
	data[0] = 1
	putInt32(data[1:], int32(len(n.entries)))
	putInt32(data[5:], int32(n.parent))
	putInt32(data[9:], int32(n.prev))
	putInt32(data[13:], int32(n.next))
	offset := leafHeaderSize
	for _, e := range n.entries {
		putInt32(data[offset:], e.key)
		putInt32(data[offset+4:], int32(e.rid.PageID))
		putInt32(data[offset+8:], e.rid.Slot)
		offset += leafEntrySize
	}
}

func readLeafNode(pageID storage.PageID, data []byte) *leafNode {
	n := newLeafNode(pageID)
	size := int(getInt32(data[1:]))
	n.parent = storage.PageID(getInt32(data[5:]))
	n.prev = storage.PageID(getInt32(data[9:]))
	n.next = storage.PageID(getInt32(data[13:]))
	n.entries = make([]leafEntry, size)
	offset := leafHeaderSize
	for i := 0; i < size; i++ {
		n.entries[i] = leafEntry{
			key: getInt32(data[offset:]),
			rid: storage.NewRID(storage.PageID(getInt32(data[offset+4:])), getInt32(data[offset+8:])),
		}
		offset += leafEntrySize
	}
	return n
}

// internalNode holds size separator keys and size+1 children. All keys in
// children[i] are < keys[i]; all keys in children[i+1] are >= keys[i].
type internalNode struct {
	pageID   storage.PageID
	parent   storage.PageID
	keys     []int32
	children []storage.PageID
}

func newInternalNode(pageID storage.PageID) *internalNode {
	return &internalNode{
		pageID: pageID,
		parent: storage.InvalidPageID,
	}
}

func (n *internalNode) id() storage.PageID         { return n.pageID }
func (n *internalNode) setParent(p storage.PageID) { n.parent = p }

func (n *internalNode) writeTo(data []byte) {
	data[0] = 0
	putInt32(data[1:], int32(len(n.keys)))
	putInt32(data[5:], int32(n.parent))
	offset := nodeHeaderSize
	for _, child := range n.children {
		putInt32(data[offset:], int32(child))
		offset += 4
	}
	for _, key := range n.keys {
		putInt32(data[offset:], key)
		offset += 4
	}
}

func readInternalNode(pageID storage.PageID, data []byte) *internalNode {
	n := newInternalNode(pageID)
	size := int(getInt32(data[1:]))
	n.parent = storage.PageID(getInt32(data[5:]))
	n.children = make([]storage.PageID, size+1)
	offset := nodeHeaderSize
	for i := 0; i <= size; i++ {
		n.children[i] = storage.PageID(getInt32(data[offset:]))
		offset += 4
	}
	n.keys = make([]int32, size)
	for i := 0; i < size; i++ {
		n.keys[i] = getInt32(data[offset:])
		offset += 4
	}
	return n
}

func putInt32(b []byte, v int32) {
	binary.LittleEndian.PutUint32(b, uint32(v))
}

func getInt32(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b))
}

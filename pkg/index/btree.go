package index

import (
	"fmt"
	"sort"

	"github.com/syloe1/lightDb/pkg/logger"
	"github.com/syloe1/lightDb/pkg/metrics"
	"github.com/syloe1/lightDb/pkg/storage"
)

const (
	// DefaultOrder is the order used when none is configured
	DefaultOrder = 100

	// minOrder is the smallest order that still splits meaningfully
	minOrder = 4

	// maxOrder keeps a leaf holding order-1 entries inside one page
	maxOrder = (storage.PageSize - leafHeaderSize) / leafEntrySize
)

// BTree is a disk-resident B+tree mapping int32 keys to RIDs. Nodes are
// persisted one per page through the buffer pool; every mutation is saved
// immediately. A node splits when its key count reaches order-1. Deletion
// does not rebalance, so the tree may hold underfull nodes; search and
// range scans stay correct regardless.
type BTree struct {
	pool       *storage.BufferPool
	rootPageID storage.PageID
	order      int
	nextPageID storage.PageID
}

// New creates an empty tree whose root is a fresh leaf
func New(pool *storage.BufferPool, order int) (*BTree, error) {
	if order == 0 {
		order = DefaultOrder
	}
	if order < minOrder || order > maxOrder {
		return nil, fmt.Errorf("%w: %d (want %d..%d)", ErrInvalidOrder, order, minOrder, maxOrder)
	}

	t := &BTree{
		pool:       pool,
		rootPageID: storage.InvalidPageID,
		order:      order,
	}
	t.rootPageID = t.allocatePage()
	root := newLeafNode(t.rootPageID)
	if err := t.saveNode(root); err != nil {
		return nil, err
	}
	return t, nil
}

// Order returns the configured order
func (t *BTree) Order() int {
	return t.order
}

// Insert adds a key→RID mapping. Returns false on a duplicate key, leaving
// the tree untouched, or when the underlying pool fails; a pool failure
// part-way through a split leaves the nodes already saved in place.
func (t *BTree) Insert(key int32, rid storage.RID) bool {
	splitKey, newPageID, err := t.insertInto(t.rootPageID, key, rid)
	if err != nil {
		return false
	}

	if newPageID != storage.InvalidPageID {
		if err := t.growRoot(splitKey, newPageID); err != nil {
			logger.Errorf("root growth failed: %v", err)
			return false
		}
	}
	metrics.Default.RecordKeyInsert()
	return true
}

// Search returns the RID stored for key
func (t *BTree) Search(key int32) (storage.RID, bool) {
	current := t.rootPageID
	for current != storage.InvalidPageID {
		n, err := t.fetchNode(current)
		if err != nil {
			logger.Errorf("search: %v", err)
			return storage.InvalidRID, false
		}

		switch node := n.(type) {
		case *leafNode:
			pos := sort.Search(len(node.entries), func(i int) bool {
				return node.entries[i].key >= key
			})
			if pos < len(node.entries) && node.entries[pos].key == key {
				return node.entries[pos].rid, true
			}
			return storage.InvalidRID, false
		case *internalNode:
			current = node.children[node.descend(key)]
		}
	}
	return storage.InvalidRID, false
}

// RangeScan returns the RIDs for every key in [start, end], in ascending
// key order. Both bounds are inclusive; start > end yields nothing.
func (t *BTree) RangeScan(start, end int32) []storage.RID {
	if start > end {
		return nil
	}

	var result []storage.RID
	current := t.findLeaf(start)
	for current != storage.InvalidPageID {
		n, err := t.fetchNode(current)
		if err != nil {
			logger.Errorf("range scan: %v", err)
			return result
		}
		leaf, ok := n.(*leafNode)
		if !ok {
			break
		}

		for _, e := range leaf.entries {
			if e.key > end {
				return result
			}
			if e.key >= start {
				result = append(result, e.rid)
			}
		}
		current = leaf.next
	}
	return result
}

// Delete removes the entry for key if present. Underflow is not repaired.
func (t *BTree) Delete(key int32) bool {
	if t.deleteFrom(t.rootPageID, key) {
		metrics.Default.RecordKeyDelete()
		return true
	}
	return false
}

// insertInto descends to the leaf for key and inserts. When the visited
// node splits, the separator key and the new right sibling's page id are
// propagated back up for the parent to absorb.
func (t *BTree) insertInto(pageID storage.PageID, key int32, rid storage.RID) (int32, storage.PageID, error) {
	n, err := t.fetchNode(pageID)
	if err != nil {
		logger.Errorf("insert: %v", err)
		return 0, storage.InvalidPageID, err
	}

	switch node := n.(type) {
	case *leafNode:
		return t.insertIntoLeaf(node, key, rid)
	case *internalNode:
		return t.insertIntoInternal(node, key, rid)
	}
	return 0, storage.InvalidPageID, fmt.Errorf("unknown node type on page %d", pageID)
}

func (t *BTree) insertIntoLeaf(leaf *leafNode, key int32, rid storage.RID) (int32, storage.PageID, error) {
	pos := sort.Search(len(leaf.entries), func(i int) bool {
		return leaf.entries[i].key >= key
	})
	if pos < len(leaf.entries) && leaf.entries[pos].key == key {
		logger.Warnf("duplicate key insertion: %d", key)
		return 0, storage.InvalidPageID, ErrDuplicateKey
	}

	leaf.entries = append(leaf.entries, leafEntry{})
	copy(leaf.entries[pos+1:], leaf.entries[pos:])
	leaf.entries[pos] = leafEntry{key: key, rid: rid}
	if err := t.saveNode(leaf); err != nil {
		return 0, storage.InvalidPageID, err
	}

	if len(leaf.entries) < t.order-1 {
		return 0, storage.InvalidPageID, nil
	}

	// Leaf split: the right half moves to a new leaf spliced into the
	// chain; its first key becomes the separator.
	newLeafID := t.allocatePage()
	newLeaf := newLeafNode(newLeafID)
	newLeaf.parent = leaf.parent

	mid := len(leaf.entries) / 2
	splitKey := leaf.entries[mid].key
	newLeaf.entries = append([]leafEntry(nil), leaf.entries[mid:]...)
	leaf.entries = leaf.entries[:mid:mid]

	newLeaf.next = leaf.next
	if newLeaf.next != storage.InvalidPageID {
		succ, err := t.fetchNode(newLeaf.next)
		if err != nil {
			return 0, storage.InvalidPageID, err
		}
		if succLeaf, ok := succ.(*leafNode); ok {
			succLeaf.prev = newLeafID
			if err := t.saveNode(succLeaf); err != nil {
				return 0, storage.InvalidPageID, err
			}
		}
	}
	leaf.next = newLeafID
	newLeaf.prev = leaf.pageID

	if err := t.saveNode(leaf); err != nil {
		return 0, storage.InvalidPageID, err
	}
	if err := t.saveNode(newLeaf); err != nil {
		return 0, storage.InvalidPageID, err
	}
	logger.Debugf("split leaf %d, new leaf %d, split key %d", leaf.pageID, newLeafID, splitKey)
	return splitKey, newLeafID, nil
}

func (t *BTree) insertIntoInternal(node *internalNode, key int32, rid storage.RID) (int32, storage.PageID, error) {
	pos := node.descend(key)

	childSplitKey, childNewID, err := t.insertInto(node.children[pos], key, rid)
	if err != nil {
		return 0, storage.InvalidPageID, err
	}
	if childNewID == storage.InvalidPageID {
		return 0, storage.InvalidPageID, nil
	}

	// The child split: absorb the separator at the descent position and
	// hang the new child immediately to its right.
	node.keys = append(node.keys, 0)
	copy(node.keys[pos+1:], node.keys[pos:])
	node.keys[pos] = childSplitKey

	node.children = append(node.children, storage.InvalidPageID)
	copy(node.children[pos+2:], node.children[pos+1:])
	node.children[pos+1] = childNewID

	if err := t.saveNode(node); err != nil {
		return 0, storage.InvalidPageID, err
	}

	if len(node.keys) < t.order-1 {
		return 0, storage.InvalidPageID, nil
	}

	// Internal split: the middle key moves up, the right halves of keys
	// and children move to a new node whose children must be reparented.
	newNodeID := t.allocatePage()
	newNode := newInternalNode(newNodeID)
	newNode.parent = node.parent

	mid := len(node.keys) / 2
	splitKey := node.keys[mid]
	newNode.keys = append([]int32(nil), node.keys[mid+1:]...)
	newNode.children = append([]storage.PageID(nil), node.children[mid+1:]...)
	node.keys = node.keys[:mid:mid]
	node.children = node.children[: mid+1 : mid+1]

	for _, childID := range newNode.children {
		child, err := t.fetchNode(childID)
		if err != nil {
			return 0, storage.InvalidPageID, err
		}
		child.setParent(newNodeID)
		if err := t.saveNode(child); err != nil {
			return 0, storage.InvalidPageID, err
		}
	}

	if err := t.saveNode(node); err != nil {
		return 0, storage.InvalidPageID, err
	}
	if err := t.saveNode(newNode); err != nil {
		return 0, storage.InvalidPageID, err
	}
	logger.Debugf("split internal %d, new node %d, split key %d", node.pageID, newNodeID, splitKey)
	return splitKey, newNodeID, nil
}

// growRoot replaces the root after it split
func (t *BTree) growRoot(splitKey int32, newPageID storage.PageID) error {
	newRootID := t.allocatePage()
	newRoot := newInternalNode(newRootID)
	newRoot.keys = []int32{splitKey}
	newRoot.children = []storage.PageID{t.rootPageID, newPageID}

	for _, childID := range newRoot.children {
		child, err := t.fetchNode(childID)
		if err != nil {
			return err
		}
		child.setParent(newRootID)
		if err := t.saveNode(child); err != nil {
			return err
		}
	}

	if err := t.saveNode(newRoot); err != nil {
		return err
	}
	t.rootPageID = newRootID
	logger.Debugf("root grew to page %d", newRootID)
	return nil
}

func (t *BTree) deleteFrom(pageID storage.PageID, key int32) bool {
	n, err := t.fetchNode(pageID)
	if err != nil {
		logger.Errorf("delete: %v", err)
		return false
	}

	switch node := n.(type) {
	case *leafNode:
		pos := sort.Search(len(node.entries), func(i int) bool {
			return node.entries[i].key >= key
		})
		if pos >= len(node.entries) || node.entries[pos].key != key {
			return false
		}
		node.entries = append(node.entries[:pos], node.entries[pos+1:]...)
		if err := t.saveNode(node); err != nil {
			return false
		}
		return true
	case *internalNode:
		return t.deleteFrom(node.children[node.descend(key)], key)
	}
	return false
}

// findLeaf descends to the leaf that would contain key
func (t *BTree) findLeaf(key int32) storage.PageID {
	current := t.rootPageID
	for current != storage.InvalidPageID {
		n, err := t.fetchNode(current)
		if err != nil {
			logger.Errorf("find leaf: %v", err)
			return storage.InvalidPageID
		}
		internal, ok := n.(*internalNode)
		if !ok {
			return current
		}
		current = internal.children[internal.descend(key)]
	}
	return storage.InvalidPageID
}

// descend picks the child slot for key. Equality advances past the
// separator: a split promotes the right node's first key, so an equal key
// lives in the subtree to the separator's right.
func (n *internalNode) descend(key int32) int {
	pos := 0
	for pos < len(n.keys) && key >= n.keys[pos] {
		pos++
	}
	return pos
}

// fetchNode materializes the node stored on a page. The page is unpinned
// clean before returning; the in-memory node is the working copy.
func (t *BTree) fetchNode(pageID storage.PageID) (node, error) {
	page, err := t.pool.Fetch(pageID)
	if err != nil {
		return nil, fmt.Errorf("fetch node page %d: %w", pageID, err)
	}
	defer t.pool.Unpin(pageID, false)

	if page.Data[0] == 1 {
		return readLeafNode(pageID, page.Data), nil
	}
	return readInternalNode(pageID, page.Data), nil
}

// saveNode serializes the node over its page and unpins dirty
func (t *BTree) saveNode(n node) error {
	page, err := t.pool.Fetch(n.id())
	if err != nil {
		return fmt.Errorf("save node page %d: %w", n.id(), err)
	}
	n.writeTo(page.Data)
	t.pool.Unpin(n.id(), true)
	return nil
}

func (t *BTree) allocatePage() storage.PageID {
	id := t.nextPageID
	t.nextPageID++
	return id
}

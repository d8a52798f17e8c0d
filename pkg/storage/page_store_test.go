package storage

import (
	"bytes"
	"testing"
)

func TestPageStoreRoundTrip(t *testing.T) {
	store := NewPageStore()

	page := NewPage(3)
	copy(page.Data, []byte("hello page store"))
	page.RecordCount = 2
	page.UsedDataSize = 16

	if err := store.WritePage(page); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, found, err := store.ReadPage(3)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !found {
		t.Fatal("page 3 not found after write")
	}
	if !bytes.Equal(loaded.Data, page.Data) {
		t.Error("payload changed across round trip")
	}
	if loaded.RecordCount != 2 || loaded.UsedDataSize != 16 {
		t.Errorf("metadata lost: count=%d used=%d", loaded.RecordCount, loaded.UsedDataSize)
	}
}

func TestPageStoreUnknownPage(t *testing.T) {
	store := NewPageStore()

	if store.Contains(7) {
		t.Error("empty store claims to contain page 7")
	}
	_, found, err := store.ReadPage(7)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if found {
		t.Error("read of never-written page reported found")
	}
}

func TestPageStoreSparseWrite(t *testing.T) {
	store := NewPageStore()

	// Writing a high page id must not disturb earlier ids.
	far := NewPage(100)
	far.Data[0] = 0x7F
	if err := store.WritePage(far); err != nil {
		t.Fatalf("write: %v", err)
	}

	if store.Contains(50) {
		t.Error("hole page 50 reported present")
	}
	loaded, found, err := store.ReadPage(100)
	if err != nil || !found {
		t.Fatalf("read 100: found=%v err=%v", found, err)
	}
	if loaded.Data[0] != 0x7F {
		t.Error("payload lost on sparse write")
	}
}

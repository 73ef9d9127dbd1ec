package bplustree

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestDiskPagerBasicOperations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.dat")

	pager, err := NewOnDiskPager(path, testCacheBytes)
	if err != nil {
		t.Fatalf("Failed to create disk pager: %v", err)
	}
	defer pager.Close()

	id, err := pager.NewPage()
	if err != nil {
		t.Fatalf("Failed to allocate page: %v", err)
	}
	if id != 1 {
		t.Errorf("Expected first page id to be 1, got %d", id)
	}

	data := make([]byte, PageSize)
	copy(data, []byte("hello, pager"))
	if err := pager.WritePage(id, data); err != nil {
		t.Fatalf("Failed to write page: %v", err)
	}
	read, err := pager.ReadPage(id)
	if err != nil {
		t.Fatalf("Failed to read page: %v", err)
	}
	if !bytes.Equal(data, read) {
		t.Errorf("Read back different data: %q", read[:16])
	}

	id2, err := pager.NewPage()
	if err != nil {
		t.Fatalf("Failed to allocate second page: %v", err)
	}
	if id2 != 2 {
		t.Errorf("Expected second page id to be 2, got %d", id2)
	}

	if _, err := pager.ReadPage(0); err == nil {
		t.Errorf("Reading the header page id should fail")
	}
	if _, err := pager.ReadPage(-1); err == nil {
		t.Errorf("Reading a negative page id should fail")
	}
}

func TestDiskPagerReadYourWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.dat")

	pager, err := NewOnDiskPager(path, testCacheBytes)
	if err != nil {
		t.Fatalf("Failed to create disk pager: %v", err)
	}
	defer pager.Close()

	id, err := pager.NewPage()
	if err != nil {
		t.Fatalf("Failed to allocate page: %v", err)
	}

	// Every read must observe the latest write, not an older cached
	// copy of the same page.
	data := make([]byte, PageSize)
	for i := 0; i < 500; i++ {
		data[0], data[1] = byte(i), byte(i>>8)
		if err := pager.WritePage(id, data); err != nil {
			t.Fatalf("Failed to write version %d: %v", i, err)
		}
		read, err := pager.ReadPage(id)
		if err != nil {
			t.Fatalf("Failed to read version %d: %v", i, err)
		}
		if read[0] != byte(i) || read[1] != byte(i>>8) {
			t.Fatalf("Read version %d after writing version %d", int(read[0])|int(read[1])<<8, i)
		}
	}
}

func TestDiskPagerCursorPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.dat")

	pager, err := NewOnDiskPager(path, testCacheBytes)
	if err != nil {
		t.Fatalf("Failed to create disk pager: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := pager.NewPage(); err != nil {
			t.Fatalf("Failed to allocate page %d: %v", i, err)
		}
	}
	if err := pager.Close(); err != nil {
		t.Fatalf("Failed to close pager: %v", err)
	}

	pager, err = NewOnDiskPager(path, testCacheBytes)
	if err != nil {
		t.Fatalf("Failed to reopen pager: %v", err)
	}
	defer pager.Close()
	id, err := pager.NewPage()
	if err != nil {
		t.Fatalf("Failed to allocate after reopen: %v", err)
	}
	if id != 6 {
		t.Errorf("Expected page id 6 after reopen, got %d", id)
	}
}

func TestDiskPagerClearResetsCursor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.dat")

	pager, err := NewOnDiskPager(path, testCacheBytes)
	if err != nil {
		t.Fatalf("Failed to create disk pager: %v", err)
	}
	defer pager.Close()

	for i := 0; i < 3; i++ {
		pager.NewPage()
	}
	if err := pager.Clear(); err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}
	id, err := pager.NewPage()
	if err != nil {
		t.Fatalf("Failed to allocate after clear: %v", err)
	}
	if id != 1 {
		t.Errorf("Expected id 1 after clear, got %d", id)
	}
}

func TestNodeCodecRoundTrip(t *testing.T) {
	codec := newNodeCodec[int64, int64](Int64Codec{}, Int64Codec{})
	n := &node[int64, int64]{self: 7, prev: 3, next: 9}
	for k := int64(0); k < 20; k++ {
		n.data = append(n.data, Pair[int64, int64]{First: k, Second: k * 10})
	}

	page, err := codec.encode(n)
	if err != nil {
		t.Fatalf("Failed to encode node: %v", err)
	}
	got, err := codec.decode(page)
	if err != nil {
		t.Fatalf("Failed to decode node: %v", err)
	}
	if got.self != n.self || got.prev != n.prev || got.next != n.next {
		t.Errorf("Header mismatch: got (%d,%d,%d)", got.self, got.prev, got.next)
	}
	if len(got.data) != len(n.data) {
		t.Fatalf("Entry count mismatch: got %d, want %d", len(got.data), len(n.data))
	}
	for i := range n.data {
		if got.data[i] != n.data[i] {
			t.Fatalf("Entry %d mismatch: got %+v", i, got.data[i])
		}
	}
}

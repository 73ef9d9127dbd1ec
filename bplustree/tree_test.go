package bplustree

import (
	"path/filepath"
	"testing"

	"RailwayDB/fileconfig"
)

const testCacheBytes = 1 << 20

func openInt64Tree(t *testing.T, dir string) (*Tree[int64, int64], *fileconfig.Slab) {
	t.Helper()
	slab, err := fileconfig.Open(filepath.Join(dir, "counters.dat"))
	if err != nil {
		t.Fatalf("Failed to open counter slab: %v", err)
	}
	tree, err := Open(filepath.Join(dir, "tree.dat"), slab, testCacheBytes,
		CompareInt64, Int64Codec{}, Int64Codec{})
	if err != nil {
		t.Fatalf("Failed to open tree: %v", err)
	}
	return tree, slab
}

func TestTreeInsertFindErase(t *testing.T) {
	dir := t.TempDir()
	tree, _ := openInt64Tree(t, dir)
	defer tree.Close()

	if err := tree.Insert(42, 420); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}
	v, ok, err := tree.Find(42)
	if err != nil {
		t.Fatalf("Failed to find: %v", err)
	}
	if !ok || v != 420 {
		t.Errorf("Expected (420, true), got (%d, %v)", v, ok)
	}

	// Overwrite on duplicate key
	if err := tree.Insert(42, 421); err != nil {
		t.Fatalf("Failed to overwrite: %v", err)
	}
	v, ok, _ = tree.Find(42)
	if !ok || v != 421 {
		t.Errorf("Expected overwritten value 421, got (%d, %v)", v, ok)
	}

	if _, ok, _ := tree.Find(43); ok {
		t.Errorf("Found a key that was never inserted")
	}

	erased, err := tree.Erase(42)
	if err != nil {
		t.Fatalf("Failed to erase: %v", err)
	}
	if !erased {
		t.Errorf("Erase reported key missing")
	}
	if _, ok, _ := tree.Find(42); ok {
		t.Errorf("Key still present after erase")
	}
	if erased, _ := tree.Erase(42); erased {
		t.Errorf("Second erase of same key reported success")
	}
}

func TestTreeSplitMergeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tree, _ := openInt64Tree(t, dir)
	defer tree.Close()

	// Enough keys to split the root: ascending inserts leave leaves
	// about half full, so sizeMax^2 keys produce well over sizeMax
	// leaves and force a second inner level.
	s := int64(tree.leaf.meta.sizeMax)
	n := s * s
	for k := int64(1); k <= n; k++ {
		if err := tree.Insert(k, k*2); err != nil {
			t.Fatalf("Failed to insert key %d: %v", k, err)
		}
	}
	if tree.Height() == 0 {
		t.Errorf("Expected the tree to grow past one inner level")
	}

	entries, err := tree.RangeFind(1, n)
	if err != nil {
		t.Fatalf("Failed to range scan: %v", err)
	}
	if int64(len(entries)) != n {
		t.Fatalf("Range scan returned %d entries, want %d", len(entries), n)
	}
	for i, e := range entries {
		want := int64(i + 1)
		if e.First != want || e.Second != want*2 {
			t.Fatalf("Entry %d is (%d, %d), want (%d, %d)", i, e.First, e.Second, want, want*2)
		}
	}

	// Erase everything in reverse; the tree must shrink back down.
	for k := n; k >= 1; k-- {
		erased, err := tree.Erase(k)
		if err != nil {
			t.Fatalf("Failed to erase key %d: %v", k, err)
		}
		if !erased {
			t.Fatalf("Erase missed key %d", k)
		}
	}
	if tree.Height() != 0 {
		t.Errorf("Expected height 0 after erasing all keys, got %d", tree.Height())
	}
	entries, err = tree.RangeFind(1, n)
	if err != nil {
		t.Fatalf("Failed to range scan empty tree: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no entries after erasing everything, got %d", len(entries))
	}
}

func TestTreeModifyAndRangeModify(t *testing.T) {
	dir := t.TempDir()
	tree, _ := openInt64Tree(t, dir)
	defer tree.Close()

	for k := int64(1); k <= 10; k++ {
		if err := tree.Insert(k, 100); err != nil {
			t.Fatalf("Failed to insert key %d: %v", k, err)
		}
	}

	ok, err := tree.Modify(5, func(v *int64) { *v = 55 })
	if err != nil {
		t.Fatalf("Failed to modify: %v", err)
	}
	if !ok {
		t.Errorf("Modify reported key missing")
	}
	if v, _, _ := tree.Find(5); v != 55 {
		t.Errorf("Expected modified value 55, got %d", v)
	}

	count, err := tree.RangeModify(3, 7, func(v *int64) { *v -= 10 })
	if err != nil {
		t.Fatalf("Failed to range modify: %v", err)
	}
	if count != 5 {
		t.Errorf("Range modify touched %d values, want 5", count)
	}
	if v, _, _ := tree.Find(4); v != 90 {
		t.Errorf("Expected 90 at key 4, got %d", v)
	}
	if v, _, _ := tree.Find(5); v != 45 {
		t.Errorf("Expected 45 at key 5, got %d", v)
	}
	if v, _, _ := tree.Find(8); v != 100 {
		t.Errorf("Key 8 outside the range was modified to %d", v)
	}
}

func TestTreePersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	tree, slab := openInt64Tree(t, dir)

	for k := int64(1); k <= 500; k++ {
		if err := tree.Insert(k, k); err != nil {
			t.Fatalf("Failed to insert key %d: %v", k, err)
		}
	}
	if err := tree.Close(); err != nil {
		t.Fatalf("Failed to close tree: %v", err)
	}
	if err := slab.Close(); err != nil {
		t.Fatalf("Failed to close slab: %v", err)
	}

	tree, _ = openInt64Tree(t, dir)
	defer tree.Close()
	for k := int64(1); k <= 500; k++ {
		v, ok, err := tree.Find(k)
		if err != nil {
			t.Fatalf("Failed to find key %d after reopen: %v", k, err)
		}
		if !ok || v != k {
			t.Fatalf("Key %d lost across reopen: (%d, %v)", k, v, ok)
		}
	}
}

func TestTreeClear(t *testing.T) {
	dir := t.TempDir()
	tree, _ := openInt64Tree(t, dir)
	defer tree.Close()

	for k := int64(1); k <= 100; k++ {
		if err := tree.Insert(k, k); err != nil {
			t.Fatalf("Failed to insert key %d: %v", k, err)
		}
	}
	if err := tree.Clear(); err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}
	if _, ok, _ := tree.Find(50); ok {
		t.Errorf("Key survived clear")
	}
	// Clear twice behaves like clear once
	if err := tree.Clear(); err != nil {
		t.Fatalf("Failed to clear again: %v", err)
	}
	if err := tree.Insert(7, 70); err != nil {
		t.Fatalf("Failed to insert after clear: %v", err)
	}
	if v, ok, _ := tree.Find(7); !ok || v != 70 {
		t.Errorf("Tree unusable after clear: (%d, %v)", v, ok)
	}
}

package utils_test

import (
	"testing"

	"n2t.dev/toolchain/pkg/utils"
)

func TestOrderedMapSetGet(t *testing.T) {
	om := utils.NewOrderedMap[string, int]()

	om.Set("a", 1)
	om.Set("b", 2)
	om.Set("c", 3)

	if v, found := om.Get("b"); !found || v != 2 {
		t.Fatalf("expected to find 'b' mapped to 2, got %d (found=%v)", v, found)
	}
	if _, found := om.Get("missing"); found {
		t.Fatalf("expected 'missing' to not be found")
	}
	if !om.Has("a") || om.Has("z") {
		t.Fatalf("'Has' disagrees with 'Get' on membership")
	}
	if om.Size() != 3 {
		t.Fatalf("expected size 3, got %d", om.Size())
	}
}

func TestOrderedMapReSetUpdatesInPlace(t *testing.T) {
	om := utils.NewOrderedMap[string, int]()
	om.Set("a", 1)
	om.Set("b", 2)
	om.Set("a", 99) // Re-setting a key must update the value without moving its position

	var keys []string
	var values []int
	for k, v := range om.Entries() {
		keys = append(keys, k)
		values = append(values, v)
	}

	if om.Size() != 2 {
		t.Fatalf("expected size to remain 2 after re-setting an existing key, got %d", om.Size())
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("expected insertion order ['a', 'b'] to survive a re-set, got %v", keys)
	}
	if values[0] != 99 {
		t.Fatalf("expected 'a' to have been updated to 99, got %d", values[0])
	}
}

func TestOrderedMapEntriesPreservesInsertionOrder(t *testing.T) {
	om := utils.NewOrderedMap[string, int]()
	inserted := []string{"z", "a", "m", "b"}
	for i, key := range inserted {
		om.Set(key, i)
	}

	var replayed []string
	for k := range om.Entries() {
		replayed = append(replayed, k)
	}

	if len(replayed) != len(inserted) {
		t.Fatalf("expected %d entries, got %d", len(inserted), len(replayed))
	}
	for i, key := range inserted {
		if replayed[i] != key {
			t.Fatalf("expected entry %d to be '%s', got '%s'", i, key, replayed[i])
		}
	}
}

func TestOrderedMapEntriesEarlyStop(t *testing.T) {
	om := utils.NewOrderedMap[string, int]()
	om.Set("a", 1)
	om.Set("b", 2)
	om.Set("c", 3)

	var seen []string
	for k := range om.Entries() {
		seen = append(seen, k)
		if k == "b" {
			break // The range-over-func iterator must honor an early 'yield' return of false
		}
	}

	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Fatalf("expected iteration to stop right after 'b', got %v", seen)
	}
}

func TestNewOrderedMapFromList(t *testing.T) {
	list := []utils.MapEntry[string, int]{
		{Key: "first", Value: 1},
		{Key: "second", Value: 2},
		{Key: "first", Value: 100}, // Duplicate key: value wins, position doesn't move
	}

	om := utils.NewOrderedMapFromList(list)

	if om.Size() != 2 {
		t.Fatalf("expected size 2 (duplicate key collapses), got %d", om.Size())
	}

	var keys []string
	for k := range om.Entries() {
		keys = append(keys, k)
	}
	if len(keys) != 2 || keys[0] != "first" || keys[1] != "second" {
		t.Fatalf("expected ['first', 'second'] order to be kept from first occurrence, got %v", keys)
	}

	if v, _ := om.Get("first"); v != 100 {
		t.Fatalf("expected the later duplicate's value (100) to win, got %d", v)
	}
}

func TestOrderedMapZeroValue(t *testing.T) {
	var om utils.OrderedMap[string, int]

	if om.Size() != 0 {
		t.Fatalf("expected zero-value map to have size 0, got %d", om.Size())
	}
	if _, found := om.Get("anything"); found {
		t.Fatalf("expected zero-value map lookups to miss")
	}

	// 'Set' must work on the zero value (lazily initializes the backing index).
	om.Set("a", 1)
	if v, found := om.Get("a"); !found || v != 1 {
		t.Fatalf("expected 'Set' on a zero-value map to succeed, got %d (found=%v)", v, found)
	}
}

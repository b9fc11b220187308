package utils

// MapEntry pairs a key with its value, used to seed an OrderedMap while
// preserving a specific insertion order.
type MapEntry[K comparable, V any] struct {
	Key   K
	Value V
}

// OrderedMap behaves like a map but remembers the order keys were first
// inserted in, so that 'Entries()' always replays them deterministically.
// Re-setting an existing key updates its value in place without moving it.
type OrderedMap[K comparable, V any] struct {
	index   map[K]int
	entries []MapEntry[K, V]
}

// Returns a brand new, empty 'OrderedMap'.
func NewOrderedMap[K comparable, V any]() OrderedMap[K, V] {
	return OrderedMap[K, V]{index: map[K]int{}}
}

// Builds an 'OrderedMap' from a pre-built list of entries, preserving the
// list's order. Later entries with a duplicate key overwrite earlier ones
// in place (position is kept from the first occurrence).
func NewOrderedMapFromList[K comparable, V any](list []MapEntry[K, V]) OrderedMap[K, V] {
	om := NewOrderedMap[K, V]()
	for _, entry := range list {
		om.Set(entry.Key, entry.Value)
	}
	return om
}

// Inserts or updates the value associated with 'key'.
func (om *OrderedMap[K, V]) Set(key K, value V) {
	if om.index == nil {
		om.index = map[K]int{}
	}

	if i, found := om.index[key]; found {
		om.entries[i].Value = value
		return
	}

	om.index[key] = len(om.entries)
	om.entries = append(om.entries, MapEntry[K, V]{Key: key, Value: value})
}

// Looks up the value associated with 'key', the second return tells the
// caller whether the key was present at all.
func (om *OrderedMap[K, V]) Get(key K) (V, bool) {
	if i, found := om.index[key]; found {
		return om.entries[i].Value, true
	}
	var zero V
	return zero, false
}

// Returns true if 'key' is currently present in the map.
func (om *OrderedMap[K, V]) Has(key K) bool {
	_, found := om.index[key]
	return found
}

// Returns the number of entries currently stored.
func (om *OrderedMap[K, V]) Size() int {
	return len(om.entries)
}

// Returns a key/value iterator that replays every entry in insertion order,
// for use with 'for k, v := range om.Entries()'.
func (om *OrderedMap[K, V]) Entries() func(yield func(K, V) bool) {
	return func(yield func(K, V) bool) {
		for _, entry := range om.entries {
			if !yield(entry.Key, entry.Value) {
				return
			}
		}
	}
}

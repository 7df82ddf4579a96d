package store

// MemStore is the in-memory WordStore. It is the authoritative state
// image of a running core; durability comes from the event log plus
// periodic snapshots of this map.
// Not thread-safe; only accessed from the single-threaded core.
type MemStore struct {
	entries map[Key][]uint64
}

func NewMemStore() *MemStore {
	return &MemStore{
		entries: make(map[Key][]uint64),
	}
}

func (m *MemStore) Get(key Key) ([]uint64, bool) {
	words, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	out := make([]uint64, len(words))
	copy(out, words)
	return out, true
}

func (m *MemStore) Set(key Key, words []uint64) {
	stored := make([]uint64, len(words))
	copy(stored, words)
	m.entries[key] = stored
}

func (m *MemStore) Delete(key Key) {
	delete(m.entries, key)
}

// Len returns the number of stored entries.
func (m *MemStore) Len() int {
	return len(m.entries)
}

// Export copies every entry keyed by its hex encoding, for snapshotting.
func (m *MemStore) Export() map[string][]uint64 {
	out := make(map[string][]uint64, len(m.entries))
	for k, words := range m.entries {
		cp := make([]uint64, len(words))
		copy(cp, words)
		out[k.Encode()] = cp
	}
	return out
}

// Import replaces the store contents with a previously exported image.
func (m *MemStore) Import(image map[string][]uint64) error {
	entries := make(map[Key][]uint64, len(image))
	for enc, words := range image {
		key, err := DecodeKey(enc)
		if err != nil {
			return err
		}
		cp := make([]uint64, len(words))
		copy(cp, words)
		entries[key] = cp
	}
	m.entries = entries
	return nil
}
